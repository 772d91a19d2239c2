package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/storefront/identity-service/internal/core/domain"
	"github.com/storefront/identity-service/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub credential store
// ---------------------------------------------------------------------------

type stubStore struct {
	mu        sync.Mutex
	users     map[string]*domain.User // by username
	roles     map[string]*domain.Role // by name
	userRoles map[string][]string     // by user ID

	findErr     error // if set, FindByUsername returns this error
	getRolesErr error // if set, GetRoles returns this error
	setRolesErr error // if set, SetRoles returns this error
	findRoleErr error // if set, FindRole returns this error
	createCalls int
	roleCalls   int
}

func newStubStore(roleNames ...string) *stubStore {
	s := &stubStore{
		users:     make(map[string]*domain.User),
		roles:     make(map[string]*domain.Role),
		userRoles: make(map[string][]string),
	}
	for _, n := range roleNames {
		s.roles[n] = &domain.Role{ID: "role-" + n, Name: n}
	}
	return s
}

// addUser inserts a user directly, bypassing role checks.
func (s *stubStore) addUser(username string, roles ...string) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &domain.User{ID: "id-" + username, Username: username, Email: username + "@example.com", PasswordHash: "hashed:secret"}
	s.users[username] = u
	s.userRoles[u.ID] = append([]string(nil), roles...)
	return u
}

func (s *stubStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	u, ok := s.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	clone.Roles = append([]string(nil), s.userRoles[u.ID]...)
	return &clone, nil
}

func (s *stubStore) List(_ context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*domain.User
	for _, u := range s.users {
		if f.Search != "" && !strings.Contains(u.Username, f.Search) {
			continue
		}
		clone := *u
		matched = append(matched, &clone)
	}
	total := int64(len(matched))
	start := (f.Page - 1) * f.Limit
	if start >= len(matched) {
		return []*domain.User{}, total, nil
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *stubStore) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if _, exists := s.users[user.Username]; exists {
		return nil, domain.ErrUserExists
	}
	clone := *user
	s.users[user.Username] = &clone
	s.userRoles[user.ID] = append([]string(nil), user.Roles...)
	out := clone
	return &out, nil
}

func (s *stubStore) GetRoles(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getRolesErr != nil {
		return nil, s.getRolesErr
	}
	return append([]string{}, s.userRoles[userID]...), nil
}

func (s *stubStore) missing(roles []string) []string {
	var reasons []string
	for _, r := range roles {
		if _, ok := s.roles[r]; !ok {
			reasons = append(reasons, domain.MissingRoleReason(r))
		}
	}
	return reasons
}

func (s *stubStore) AddToRoles(_ context.Context, userID string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reasons := s.missing(roles); len(reasons) > 0 {
		return &domain.StoreError{Op: "add", Reasons: reasons}
	}
	add, _ := domain.DiffRoles(s.userRoles[userID], roles)
	s.userRoles[userID] = append(s.userRoles[userID], add...)
	return nil
}

func (s *stubStore) RemoveFromRoles(_ context.Context, userID string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, keep := domain.DiffRoles(roles, s.userRoles[userID])
	s.userRoles[userID] = keep
	return nil
}

func (s *stubStore) SetRoles(_ context.Context, userID string, roles []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setRolesErr != nil {
		return s.setRolesErr
	}
	if reasons := s.missing(roles); len(reasons) > 0 {
		return &domain.StoreError{Op: "add", Reasons: reasons}
	}
	s.userRoles[userID] = append([]string(nil), roles...)
	return nil
}

func (s *stubStore) FindRole(_ context.Context, name string) (*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findRoleErr != nil {
		return nil, s.findRoleErr
	}
	r, ok := s.roles[name]
	if !ok {
		return nil, domain.ErrRoleNotFound
	}
	clone := *r
	return &clone, nil
}

func (s *stubStore) CreateRole(_ context.Context, role *domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleCalls++
	if _, ok := s.roles[role.Name]; ok {
		return domain.ErrRoleExists
	}
	clone := *role
	s.roles[role.Name] = &clone
	return nil
}

func (s *stubStore) ListRoles(_ context.Context) ([]*domain.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Role, 0, len(s.roles))
	for _, r := range s.roles {
		clone := *r
		out = append(out, &clone)
	}
	return out, nil
}

func (s *stubStore) Ping(context.Context) error { return nil }

// ---------------------------------------------------------------------------
// Stub hasher, throttle and audit
// ---------------------------------------------------------------------------

type stubHasher struct{}

func (stubHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (stubHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return domain.ErrInvalidCredentials
	}
	return nil
}

type stubThrottle struct {
	limit    int
	failures map[string]int
	err      error
}

func newStubThrottle(limit int) *stubThrottle {
	return &stubThrottle{limit: limit, failures: make(map[string]int)}
}

func (t *stubThrottle) Allowed(_ context.Context, username string) (bool, error) {
	if t.err != nil {
		return false, t.err
	}
	return t.failures[username] < t.limit, nil
}

func (t *stubThrottle) RecordFailure(_ context.Context, username string) error {
	t.failures[username]++
	return nil
}

func (t *stubThrottle) Reset(_ context.Context, username string) error {
	delete(t.failures, username)
	return nil
}

type stubRecorder struct {
	changes []domain.RoleChange
}

func (r *stubRecorder) Record(c domain.RoleChange) { r.changes = append(r.changes, c) }

type stubAuditRepo struct {
	byUser map[string][]*domain.RoleChange
	err    error
}

func (a *stubAuditRepo) Insert(_ context.Context, c *domain.RoleChange) error {
	if a.byUser == nil {
		a.byUser = make(map[string][]*domain.RoleChange)
	}
	a.byUser[c.Username] = append([]*domain.RoleChange{c}, a.byUser[c.Username]...)
	return nil
}

func (a *stubAuditRepo) ListByUsername(_ context.Context, username string, limit int) ([]*domain.RoleChange, error) {
	if a.err != nil {
		return nil, a.err
	}
	list := a.byUser[username]
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

var errStoreDown = errors.New("store unavailable")
