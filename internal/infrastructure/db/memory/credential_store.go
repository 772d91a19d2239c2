// Package memory provides process-local implementations of the storage
// ports. They back STORE_DRIVER=memory and the end-to-end router tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/storefront/identity-service/internal/core/domain"
	"github.com/storefront/identity-service/internal/core/ports"
)

// CredentialStore keeps users and roles in maps guarded by one RWMutex.
// Every role mutation happens under the write lock, so readers never observe
// a partially applied change.
type CredentialStore struct {
	mu         sync.RWMutex
	users      map[string]*domain.User // by ID
	byUsername map[string]string       // username -> ID
	roles      map[string]*domain.Role // by name
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		users:      make(map[string]*domain.User),
		byUsername: make(map[string]string),
		roles:      make(map[string]*domain.Role),
	}
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Roles = append([]string{}, u.Roles...)
	return &c
}

func (s *CredentialStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *CredentialStore) List(_ context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(f.Search)
	matched := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Username < matched[j].Username })

	total := int64(len(matched))
	start := (f.Page - 1) * f.Limit
	if start < 0 || start >= len(matched) {
		return []*domain.User{}, total, nil
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*domain.User, 0, end-start)
	for _, u := range matched[start:end] {
		page = append(page, cloneUser(u))
	}
	return page, total, nil
}

func (s *CredentialStore) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username]; exists {
		return nil, domain.ErrUserExists
	}
	if reasons := s.missingLocked(user.Roles); len(reasons) > 0 {
		return nil, &domain.StoreError{Op: "add", Reasons: reasons}
	}

	stored := cloneUser(user)
	stored.Roles = uniqueRoles(stored.Roles)
	s.users[stored.ID] = stored
	s.byUsername[stored.Username] = stored.ID
	return cloneUser(stored), nil
}

func (s *CredentialStore) GetRoles(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return append([]string{}, u.Roles...), nil
}

func (s *CredentialStore) AddToRoles(_ context.Context, userID string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	roles = uniqueRoles(roles)
	if reasons := s.missingLocked(roles); len(reasons) > 0 {
		return &domain.StoreError{Op: "add", Reasons: reasons}
	}
	add, _ := domain.DiffRoles(u.Roles, roles)
	u.Roles = append(u.Roles, add...)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *CredentialStore) RemoveFromRoles(_ context.Context, userID string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	roles = uniqueRoles(roles)
	var reasons []string
	for _, r := range roles {
		if !u.HasRole(r) {
			reasons = append(reasons, domain.NotInRoleReason(r))
		}
	}
	if len(reasons) > 0 {
		return &domain.StoreError{Op: "remove", Reasons: reasons}
	}
	_, keep := domain.DiffRoles(u.Roles, roles)
	u.Roles = keep
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *CredentialStore) SetRoles(_ context.Context, userID string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if reasons := s.missingLocked(roles); len(reasons) > 0 {
		return &domain.StoreError{Op: "add", Reasons: reasons}
	}
	u.Roles = uniqueRoles(roles)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *CredentialStore) FindRole(_ context.Context, name string) (*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[name]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	c := *r
	return &c, nil
}

func (s *CredentialStore) CreateRole(_ context.Context, role *domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.roles[role.Name]; exists {
		return domain.ErrRoleExists
	}
	c := *role
	s.roles[role.Name] = &c
	return nil
}

func (s *CredentialStore) ListRoles(_ context.Context) ([]*domain.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Role, 0, len(s.roles))
	for _, r := range s.roles {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *CredentialStore) Ping(context.Context) error { return nil }

func (s *CredentialStore) missingLocked(names []string) []string {
	var reasons []string
	for _, n := range names {
		if _, ok := s.roles[n]; !ok {
			reasons = append(reasons, domain.MissingRoleReason(n))
		}
	}
	return reasons
}

// uniqueRoles returns roles without repeated names, in first-seen order.
func uniqueRoles(roles []string) []string {
	seen := make(map[string]struct{}, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
