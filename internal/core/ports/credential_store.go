package ports

import (
	"context"

	"github.com/storefront/identity-service/internal/core/domain"
)

// ListUsersFilter carries the query parameters for listing users.
type ListUsersFilter struct {
	Search string // optional: partial match on username or email
	Page   int    // 1-based
	Limit  int
}

// CredentialStore is the system of record for users, roles and their
// association. Role operations reject the whole request with a
// *domain.StoreError when any named role is unknown.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context, filter ListUsersFilter) ([]*domain.User, int64, error)
	// Create inserts the user together with its initial roles.
	// Returns domain.ErrUserExists on a duplicate username.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)

	GetRoles(ctx context.Context, userID string) ([]string, error)
	AddToRoles(ctx context.Context, userID string, roles []string) error
	RemoveFromRoles(ctx context.Context, userID string, roles []string) error
	// SetRoles atomically replaces the user's role set with roles.
	SetRoles(ctx context.Context, userID string, roles []string) error

	FindRole(ctx context.Context, name string) (*domain.Role, error)
	// CreateRole returns domain.ErrRoleExists when the name is taken.
	CreateRole(ctx context.Context, role *domain.Role) error
	ListRoles(ctx context.Context) ([]*domain.Role, error)

	Ping(ctx context.Context) error
}
