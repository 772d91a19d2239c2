package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/storefront/identity-service/internal/core/domain"
	"github.com/storefront/identity-service/internal/core/ports"
)

// AdminSeed describes the optional administrator account created at startup.
type AdminSeed struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

// Enabled reports whether enough fields are set to create the account.
func (a AdminSeed) Enabled() bool {
	return a.Username != "" && a.Password != ""
}

// Seeder makes sure the baseline roles, and optionally an administrator,
// exist. Every step is safe to repeat.
type Seeder struct {
	store  ports.CredentialStore
	hasher ports.PasswordHasher
	log    zerolog.Logger
}

func NewSeeder(store ports.CredentialStore, hasher ports.PasswordHasher, log zerolog.Logger) *Seeder {
	return &Seeder{store: store, hasher: hasher, log: log}
}

// Run seeds the baseline roles and then the admin account if one is configured.
func (s *Seeder) Run(ctx context.Context, admin AdminSeed) error {
	if err := s.EnsureRoles(ctx); err != nil {
		return err
	}
	if !admin.Enabled() {
		return nil
	}
	return s.EnsureAdmin(ctx, admin)
}

// EnsureRoles creates every missing baseline role. A create that loses the
// race against another instance (ErrRoleExists) counts as success.
func (s *Seeder) EnsureRoles(ctx context.Context) error {
	for _, name := range domain.BaselineRoles {
		_, err := s.store.FindRole(ctx, name)
		if err == nil {
			s.log.Debug().Str("role", name).Msg("role already present")
			continue
		}
		if !errors.Is(err, domain.ErrRoleNotFound) {
			return fmt.Errorf("seed role %s: %w", name, err)
		}

		role := &domain.Role{
			ID:        uuid.NewString(),
			Name:      name,
			CreatedAt: time.Now().UTC(),
		}
		err = s.store.CreateRole(ctx, role)
		switch {
		case err == nil:
			s.log.Info().Str("role", name).Msg("role created")
		case errors.Is(err, domain.ErrRoleExists):
			s.log.Debug().Str("role", name).Msg("role created concurrently")
		default:
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	return nil
}

// EnsureAdmin creates the administrator with the Admin role unless a user
// with that username already exists. Existing users are left untouched.
func (s *Seeder) EnsureAdmin(ctx context.Context, admin AdminSeed) error {
	if _, err := s.store.FindByUsername(ctx, admin.Username); err == nil {
		s.log.Debug().Str("username", admin.Username).Msg("admin user already present")
		return nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("seed admin: %w", err)
	}

	hash, err := s.hasher.Hash(admin.Password)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     admin.Username,
		Email:        admin.Email,
		FirstName:    admin.FirstName,
		LastName:     admin.LastName,
		PasswordHash: hash,
		Roles:        []string{domain.RoleAdmin},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil
		}
		return fmt.Errorf("seed admin: %w", err)
	}

	s.log.Info().Str("username", admin.Username).Msg("admin user created")
	return nil
}
