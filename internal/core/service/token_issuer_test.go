package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/storefront/identity-service/internal/core/domain"
)

var testTokenConfig = TokenConfig{
	SecurityKey: "a-very-secret-signing-key-for-tests",
	Issuer:      "storefront-identity",
	Audience:    "storefront",
	ExpiryDays:  7,
}

func newTestIssuer(t *testing.T, store *stubStore, now time.Time) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(store, testTokenConfig, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	issuer.now = func() time.Time { return now }
	return issuer
}

func decodeClaims(t *testing.T, token string) *sessionClaims {
	t.Helper()
	claims := &sessionClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testTokenConfig.SecurityKey), nil
	}); err != nil {
		t.Fatalf("decode token: %v", err)
	}
	return claims
}

func TestTokenIssuer_ClaimsMatchStoreRoles(t *testing.T) {
	store := newStubStore(domain.RoleAdmin, domain.RoleUser)
	store.addUser("alice", domain.RoleAdmin, domain.RoleUser)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, store, now)

	tok, err := issuer.IssueToken(context.Background(), "alice")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	claims := decodeClaims(t, tok.Value)
	if claims.Name != "alice" || claims.NameIdentifier != "id-alice" {
		t.Errorf("unexpected identity claims: name=%q nameid=%q", claims.Name, claims.NameIdentifier)
	}
	if !domain.SameRoles(claims.Roles, []string{domain.RoleAdmin, domain.RoleUser}) {
		t.Errorf("role claims %v do not match store roles", claims.Roles)
	}
	if claims.Issuer != testTokenConfig.Issuer {
		t.Errorf("issuer: got %q", claims.Issuer)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != testTokenConfig.Audience {
		t.Errorf("audience: got %v", claims.Audience)
	}
	if claims.ID == "" {
		t.Error("expected a jti claim")
	}
}

func TestTokenIssuer_ReflectsRolesAtCallTime(t *testing.T) {
	store := newStubStore(domain.RoleAdmin, domain.RoleUser)
	u := store.addUser("bob", domain.RoleUser)
	issuer := newTestIssuer(t, store, time.Now())

	first, err := issuer.IssueToken(context.Background(), "bob")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if err := store.SetRoles(context.Background(), u.ID, []string{domain.RoleAdmin}); err != nil {
		t.Fatalf("SetRoles: %v", err)
	}
	second, err := issuer.IssueToken(context.Background(), "bob")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if got := decodeClaims(t, first.Value).Roles; !domain.SameRoles(got, []string{domain.RoleUser}) {
		t.Errorf("first token roles: %v", got)
	}
	if got := decodeClaims(t, second.Value).Roles; !domain.SameRoles(got, []string{domain.RoleAdmin}) {
		t.Errorf("second token roles: %v", got)
	}
}

func TestTokenIssuer_ExpiryIsConfiguredDays(t *testing.T) {
	store := newStubStore(domain.RoleUser)
	store.addUser("carol", domain.RoleUser)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, store, now)

	tok, err := issuer.IssueToken(context.Background(), "carol")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	want := now.Add(7 * 24 * time.Hour)
	if !tok.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt: got %v, want %v", tok.ExpiresAt, want)
	}
	if exp := decodeClaims(t, tok.Value).ExpiresAt; exp == nil || !exp.Time.Equal(want) {
		t.Errorf("exp claim: got %v, want %v", exp, want)
	}
}

func TestTokenIssuer_UnknownUser(t *testing.T) {
	store := newStubStore(domain.RoleUser)
	issuer := newTestIssuer(t, store, time.Now())

	tok, err := issuer.IssueToken(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error for unknown user")
	}
	if tok.Value != "" {
		t.Errorf("expected no token, got %q", tok.Value)
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	var te *domain.TokenError
	if !errors.As(err, &te) || te.Kind != domain.TokenUserNotFound {
		t.Errorf("expected TokenUserNotFound, got %v", err)
	}
}

func TestTokenIssuer_StoreFailure(t *testing.T) {
	store := newStubStore(domain.RoleUser)
	store.addUser("dave", domain.RoleUser)
	store.getRolesErr = errStoreDown
	issuer := newTestIssuer(t, store, time.Now())

	_, err := issuer.IssueToken(context.Background(), "dave")
	var te *domain.TokenError
	if !errors.As(err, &te) || te.Kind != domain.TokenStoreFailure {
		t.Fatalf("expected TokenStoreFailure, got %v", err)
	}
	if !errors.Is(err, errStoreDown) {
		t.Errorf("expected cause to be preserved, got %v", err)
	}
}

func TestNewTokenIssuer_InvalidConfig(t *testing.T) {
	cases := map[string]TokenConfig{
		"empty key":      {Issuer: "i", Audience: "a", ExpiryDays: 7},
		"empty issuer":   {SecurityKey: "k", Audience: "a", ExpiryDays: 7},
		"empty audience": {SecurityKey: "k", Issuer: "i", ExpiryDays: 7},
		"zero expiry":    {SecurityKey: "k", Issuer: "i", Audience: "a"},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTokenIssuer(newStubStore(), cfg, zerolog.Nop())
			var te *domain.TokenError
			if !errors.As(err, &te) || te.Kind != domain.TokenConfigInvalid {
				t.Fatalf("expected TokenConfigInvalid, got %v", err)
			}
		})
	}
}

func TestTokenIssuer_Verify(t *testing.T) {
	store := newStubStore(domain.RoleAdmin)
	store.addUser("erin", domain.RoleAdmin)
	issuer := newTestIssuer(t, store, time.Now())

	tok, err := issuer.IssueToken(context.Background(), "erin")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	p, err := issuer.Verify(tok.Value)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Username != "erin" || p.UserID != "id-erin" || !p.HasAnyRole(domain.RoleAdmin) {
		t.Errorf("unexpected principal: %+v", p)
	}
}

func TestTokenIssuer_VerifyRejectsForeignTokens(t *testing.T) {
	store := newStubStore(domain.RoleUser)
	store.addUser("frank", domain.RoleUser)
	issuer := newTestIssuer(t, store, time.Now())

	other := testTokenConfig
	other.Audience = "someone-else"
	foreign, err := NewTokenIssuer(store, other, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	tok, err := foreign.IssueToken(context.Background(), "frank")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := issuer.Verify(tok.Value); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("expected audience mismatch to be rejected, got %v", err)
	}

	expired := newTestIssuer(t, store, time.Now().AddDate(0, 0, -30))
	old, err := expired.IssueToken(context.Background(), "frank")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if _, err := issuer.Verify(old.Value); err == nil {
		t.Error("expected expired token to be rejected")
	}

	if _, err := issuer.Verify("not-a-jwt"); err == nil {
		t.Error("expected malformed token to be rejected")
	}
}
