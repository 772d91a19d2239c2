package memory

import (
	"context"
	"sync"

	"github.com/storefront/identity-service/internal/core/domain"
	"github.com/storefront/identity-service/internal/core/ports"
)

// AuditRepository keeps role changes per username, newest first.
type AuditRepository struct {
	mu     sync.RWMutex
	byUser map[string][]*domain.RoleChange
}

func NewAuditRepository() *AuditRepository {
	return &AuditRepository{byUser: make(map[string][]*domain.RoleChange)}
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

func (r *AuditRepository) Insert(_ context.Context, c *domain.RoleChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *c
	r.byUser[c.Username] = append([]*domain.RoleChange{&clone}, r.byUser[c.Username]...)
	return nil
}

func (r *AuditRepository) ListByUsername(_ context.Context, username string, limit int) ([]*domain.RoleChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byUser[username]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]*domain.RoleChange, 0, len(list))
	for _, c := range list {
		clone := *c
		out = append(out, &clone)
	}
	return out, nil
}
