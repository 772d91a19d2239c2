//go:build integration

package mongo

import (
	"context"
	"errors"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/identity-service/internal/core/domain"
)

// Run with: MONGO_TEST_URI=mongodb://... go test -tags integration ./internal/infrastructure/db/mongo/
func newTestStore(t *testing.T) *CredentialStore {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	ctx := context.Background()
	client, db, err := Connect(ctx, Config{URI: uri, Database: "identity_it_" + uuid.NewString()[:8]})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	if err := EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}

	s := NewCredentialStore(db)
	for _, name := range []string{domain.RoleAdmin, domain.RoleUser, "Support"} {
		if err := s.CreateRole(ctx, &domain.Role{ID: uuid.NewString(), Name: name, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("create role %s: %v", name, err)
		}
	}
	return s
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func TestCredentialStore_SetRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	u, err := s.Create(ctx, &domain.User{
		ID: uuid.NewString(), Username: "alice", Email: "alice@example.com",
		PasswordHash: "x", Roles: []string{domain.RoleUser, "Support"},
		CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := s.SetRoles(ctx, u.ID, []string{domain.RoleAdmin, domain.RoleUser}); err != nil {
		t.Fatalf("SetRoles: %v", err)
	}
	got, _ := s.GetRoles(ctx, u.ID)
	if g := sortedCopy(got); len(g) != 2 || g[0] != domain.RoleAdmin || g[1] != domain.RoleUser {
		t.Fatalf("expected [Admin User], got %v", got)
	}

	err = s.SetRoles(ctx, u.ID, []string{"Support", "Ghost"})
	var se *domain.StoreError
	if !errors.As(err, &se) || len(se.Reasons) != 1 {
		t.Fatalf("expected StoreError with one reason, got %v", err)
	}
	after, _ := s.GetRoles(ctx, u.ID)
	if len(after) != 2 {
		t.Fatalf("roles must be unchanged after a rejected set, got %v", after)
	}
}

func TestCredentialStore_RoleLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.FindRole(ctx, "Ghost"); !errors.Is(err, domain.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
	if err := s.CreateRole(ctx, &domain.Role{ID: uuid.NewString(), Name: domain.RoleAdmin, CreatedAt: time.Now()}); !errors.Is(err, domain.ErrRoleExists) {
		t.Fatalf("expected ErrRoleExists, got %v", err)
	}
	roles, err := s.ListRoles(ctx)
	if err != nil || len(roles) != 3 {
		t.Fatalf("ListRoles: %d roles, %v", len(roles), err)
	}
}
