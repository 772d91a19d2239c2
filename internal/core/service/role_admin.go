package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/storefront/identity-service/internal/api/metrics"
	"github.com/storefront/identity-service/internal/core/domain"
	"github.com/storefront/identity-service/internal/core/ports"
)

const (
	defaultPageLimit    = 20
	maxPageLimit        = 100
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type roleAdminService struct {
	store    ports.CredentialStore
	audit    ports.AuditRepository
	recorder ports.AuditRecorder
	now      func() time.Time
	log      zerolog.Logger
}

// NewRoleAdminService returns a RoleAdministrator implementation. recorder
// and audit may be nil; role changes are then not audited and the history is
// always empty.
func NewRoleAdminService(
	store ports.CredentialStore,
	audit ports.AuditRepository,
	recorder ports.AuditRecorder,
	log zerolog.Logger,
) ports.RoleAdministrator {
	return &roleAdminService{
		store:    store,
		audit:    audit,
		recorder: recorder,
		now:      time.Now,
		log:      log,
	}
}

// ReplaceRoles sets the user's role set to exactly input.Roles. The store
// applies the change atomically: either every role is in place afterwards or
// nothing changed.
func (s *roleAdminService) ReplaceRoles(ctx context.Context, in ports.ReplaceRolesInput) (*domain.RoleChange, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		metrics.RoleReplacementsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.NewValidationError("username is required")
	}

	roles, err := domain.NormalizeRoleNames(in.Roles)
	if err != nil {
		metrics.RoleReplacementsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.NewValidationError("roles must be a non-empty list of role names")
	}

	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			metrics.RoleReplacementsTotal.WithLabelValues("not_found").Inc()
			return nil, &domain.UserNotFoundError{Username: username}
		}
		metrics.RoleReplacementsTotal.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("replace roles: %w", err)
	}

	previous, err := s.store.GetRoles(ctx, user.ID)
	if err != nil {
		metrics.RoleReplacementsTotal.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("replace roles: %w", err)
	}

	if err := s.store.SetRoles(ctx, user.ID, roles); err != nil {
		metrics.RoleReplacementsTotal.WithLabelValues("store_error").Inc()
		s.log.Warn().Err(err).Str("username", username).Strs("roles", roles).Msg("role replacement rejected")
		return nil, fmt.Errorf("replace roles: %w", err)
	}

	change := domain.RoleChange{
		UserID:    user.ID,
		Username:  user.Username,
		Previous:  previous,
		Current:   roles,
		ChangedBy: in.ChangedBy,
		ChangedAt: s.now().UTC(),
	}
	if s.recorder != nil {
		s.recorder.Record(change)
	}

	metrics.RoleReplacementsTotal.WithLabelValues("success").Inc()
	s.log.Info().
		Str("username", user.Username).
		Strs("previous", previous).
		Strs("roles", roles).
		Str("changed_by", in.ChangedBy).
		Msg("roles replaced")

	return &change, nil
}

func (s *roleAdminService) ListUsers(ctx context.Context, in ports.ListUsersInput) (*ports.ListUsersResult, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	users, total, err := s.store.List(ctx, ports.ListUsersFilter{
		Search: strings.TrimSpace(in.Search),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &ports.ListUsersResult{
		Items:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, nil
}

func (s *roleAdminService) GetUser(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, &domain.UserNotFoundError{Username: username}
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListRoles returns every role that can be assigned.
func (s *roleAdminService) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	return roles, nil
}

// RoleHistory returns the most recent role changes for username, newest first.
func (s *roleAdminService) RoleHistory(ctx context.Context, username string, limit int) ([]*domain.RoleChange, error) {
	if _, err := s.GetUser(ctx, username); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return []*domain.RoleChange{}, nil
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	changes, err := s.audit.ListByUsername(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("role history: %w", err)
	}
	return changes, nil
}
