package ports

import (
	"context"

	"github.com/storefront/identity-service/internal/core/domain"
)

// AuditRepository persists role-change records.
type AuditRepository interface {
	Insert(ctx context.Context, change *domain.RoleChange) error
	// ListByUsername returns the most recent records first.
	ListByUsername(ctx context.Context, username string, limit int) ([]*domain.RoleChange, error)
}

// AuditRecorder accepts role-change records for asynchronous persistence.
type AuditRecorder interface {
	Record(change domain.RoleChange)
}
