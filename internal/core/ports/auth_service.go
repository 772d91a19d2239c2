package ports

import (
	"context"

	"github.com/storefront/identity-service/internal/core/domain"
)

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token domain.Token
	User  *domain.User
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	CurrentUser(ctx context.Context, username string) (*domain.User, error)
}

// TokenIssuer builds signed session tokens for existing users.
type TokenIssuer interface {
	IssueToken(ctx context.Context, username string) (domain.Token, error)
}
