package domain

import (
	"errors"
	"testing"
)

func TestNormalizeRoleNames(t *testing.T) {
	got, err := NormalizeRoleNames([]string{" Admin", "User", "Admin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "Admin" || got[1] != "User" {
		t.Fatalf("unexpected roles: %v", got)
	}

	if _, err := NormalizeRoleNames(nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for empty list, got %v", err)
	}
	if _, err := NormalizeRoleNames([]string{"User", "  "}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for blank name, got %v", err)
	}
}

func TestDiffRoles(t *testing.T) {
	add, remove := DiffRoles([]string{"Admin", "User"}, []string{"User", "Support"})
	if len(add) != 1 || add[0] != "Support" {
		t.Errorf("toAdd: got %v", add)
	}
	if len(remove) != 1 || remove[0] != "Admin" {
		t.Errorf("toRemove: got %v", remove)
	}
	if !SameRoles([]string{"A", "B"}, []string{"B", "A"}) {
		t.Error("expected order-independent equality")
	}
}

func TestUserNotFoundError(t *testing.T) {
	err := error(&UserNotFoundError{Username: "ghost"})
	if err.Error() != "User with username ghost not found" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !errors.Is(err, ErrUserNotFound) {
		t.Error("expected errors.Is(ErrUserNotFound)")
	}
}

func TestStoreErrorMessage(t *testing.T) {
	err := &StoreError{Op: "add", Reasons: []string{MissingRoleReason("Foo"), MissingRoleReason("Bar")}}
	want := "Failed to add new roles: Role Foo does not exist., Role Bar does not exist."
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestTokenErrorUnwrap(t *testing.T) {
	err := error(&TokenError{Kind: TokenUserNotFound, Username: "bob", Err: ErrUserNotFound})
	if !errors.Is(err, ErrUserNotFound) {
		t.Error("expected cause to be preserved")
	}
	var te *TokenError
	if !errors.As(err, &te) || te.Kind != TokenUserNotFound {
		t.Errorf("expected TokenUserNotFound kind, got %+v", te)
	}
}

func TestPasswordPolicy_Check(t *testing.T) {
	policy := PasswordPolicy{
		RequiredLength:         6,
		RequireDigit:           true,
		RequireLowercase:       true,
		RequireUppercase:       true,
		RequireNonAlphanumeric: true,
	}

	if reasons := policy.Check("Admin123!"); len(reasons) != 0 {
		t.Fatalf("expected strong password to pass, got %v", reasons)
	}

	reasons := policy.Check("abc")
	// too short, no symbol, no digit, no uppercase
	if len(reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %d: %v", len(reasons), reasons)
	}

	if reasons := (PasswordPolicy{}).Check(""); reasons != nil {
		t.Errorf("empty policy must accept anything, got %v", reasons)
	}
}
