package ports

import (
	"context"

	"github.com/storefront/identity-service/internal/core/domain"
)

// ReplaceRolesInput carries a role replacement request.
type ReplaceRolesInput struct {
	Username  string
	Roles     []string
	ChangedBy string // username of the administrator
}

// ListUsersInput carries the parameters for the user listing.
type ListUsersInput struct {
	Search string
	Page   int
	Limit  int
}

// ListUsersResult is a page of users.
type ListUsersResult struct {
	Items      []*domain.User
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

// RoleAdministrator covers the admin-only user operations.
type RoleAdministrator interface {
	ReplaceRoles(ctx context.Context, input ReplaceRolesInput) (*domain.RoleChange, error)
	ListUsers(ctx context.Context, input ListUsersInput) (*ListUsersResult, error)
	GetUser(ctx context.Context, username string) (*domain.User, error)
	RoleHistory(ctx context.Context, username string, limit int) ([]*domain.RoleChange, error)
	ListRoles(ctx context.Context) ([]*domain.Role, error)
}
