package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/storefront/identity-service/internal/core/domain"
	"github.com/storefront/identity-service/internal/core/ports"
)

// AuditRepository implements ports.AuditRepository on the role_audit table.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

func (r *AuditRepository) Insert(ctx context.Context, c *domain.RoleChange) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	previous, current := c.Previous, c.Current
	if previous == nil {
		previous = []string{}
	}
	if current == nil {
		current = []string{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO role_audit (user_id, username, previous_roles, current_roles, changed_by, changed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.UserID, c.Username, previous, current, c.ChangedBy, c.ChangedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert role change: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByUsername(ctx context.Context, username string, limit int) ([]*domain.RoleChange, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, username, previous_roles, current_roles, changed_by, changed_at
		 FROM role_audit WHERE username = $1
		 ORDER BY changed_at DESC LIMIT $2`, username, limit)
	if err != nil {
		return nil, fmt.Errorf("list role changes: %w", err)
	}
	defer rows.Close()

	out := []*domain.RoleChange{}
	for rows.Next() {
		c := &domain.RoleChange{}
		if err := rows.Scan(&c.UserID, &c.Username, textArray(&c.Previous), textArray(&c.Current), &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan role change: %w", err)
		}
		c.ChangedAt = c.ChangedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
