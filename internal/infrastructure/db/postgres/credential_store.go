package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/storefront/identity-service/internal/core/domain"
	"github.com/storefront/identity-service/internal/core/ports"
)

// CredentialStore implements ports.CredentialStore on PostgreSQL. Role
// membership lives in the user_roles join table.
type CredentialStore struct {
	db *sql.DB
}

func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

const selectUser = `
	SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash,
	       u.created_at, u.updated_at,
	       COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.name IS NOT NULL), '{}')
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	roles := []string{}
	if err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&u.CreatedAt, &u.UpdatedAt, textArray(&roles),
	); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	u.Roles = roles
	return u, nil
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx, selectUser+` WHERE u.username = $1 GROUP BY u.id`, username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// List returns a page of users ordered by username. Search is a
// case-insensitive substring match on username or email.
func (s *CredentialStore) List(ctx context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	where := ""
	args := []any{}
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		where = ` WHERE u.username ILIKE $1 OR u.email ILIKE $1`
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM users u`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`%s%s GROUP BY u.id ORDER BY u.username LIMIT $%d OFFSET $%d`,
		selectUser, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, (f.Page-1)*f.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0, f.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// Create inserts the user and its initial roles in one transaction.
func (s *CredentialStore) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, email, first_name, last_name, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID, user.Username, user.Email, user.FirstName, user.LastName, user.PasswordHash,
		user.CreatedAt.UTC(), user.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if len(user.Roles) > 0 {
		if err := requireRoles(ctx, tx, user.Roles); err != nil {
			return nil, err
		}
		if err := insertMemberships(ctx, tx, user.ID, user.Roles); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	created := *user
	created.Roles = append([]string{}, user.Roles...)
	return &created, nil
}

func (s *CredentialStore) GetRoles(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("get roles: %w", err)
	}
	if !exists {
		return nil, domain.ErrUserNotFound
	}
	return currentRoles(ctx, s.db, userID)
}

func (s *CredentialStore) AddToRoles(ctx context.Context, userID string, roles []string) error {
	return s.inTx(ctx, userID, func(ctx context.Context, tx *sql.Tx) error {
		if err := requireRoles(ctx, tx, roles); err != nil {
			return err
		}
		return insertMemberships(ctx, tx, userID, roles)
	})
}

// RemoveFromRoles rejects the whole request when the user is not in one of
// the named roles.
func (s *CredentialStore) RemoveFromRoles(ctx context.Context, userID string, roles []string) error {
	return s.inTx(ctx, userID, func(ctx context.Context, tx *sql.Tx) error {
		current, err := currentRoles(ctx, tx, userID)
		if err != nil {
			return err
		}
		held := make(map[string]struct{}, len(current))
		for _, r := range current {
			held[r] = struct{}{}
		}
		var reasons []string
		for _, r := range roles {
			if _, ok := held[r]; !ok {
				reasons = append(reasons, domain.NotInRoleReason(r))
			}
		}
		if len(reasons) > 0 {
			return &domain.StoreError{Op: "remove", Reasons: reasons}
		}
		return deleteMemberships(ctx, tx, userID, roles)
	})
}

// SetRoles replaces the user's roles inside one transaction: the user row is
// locked, unknown role names abort everything, and only the symmetric
// difference is written.
func (s *CredentialStore) SetRoles(ctx context.Context, userID string, roles []string) error {
	return s.inTx(ctx, userID, func(ctx context.Context, tx *sql.Tx) error {
		if err := requireRoles(ctx, tx, roles); err != nil {
			return err
		}
		current, err := currentRoles(ctx, tx, userID)
		if err != nil {
			return err
		}

		toAdd, toRemove := domain.DiffRoles(current, roles)
		if len(toRemove) > 0 {
			if err := deleteMemberships(ctx, tx, userID, toRemove); err != nil {
				return err
			}
		}
		if len(toAdd) > 0 {
			if err := insertMemberships(ctx, tx, userID, toAdd); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *CredentialStore) FindRole(ctx context.Context, name string) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	r := &domain.Role{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM roles WHERE name = $1`, name).
		Scan(&r.ID, &r.Name, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

// CreateRole relies on the unique name constraint; a duplicate yields
// domain.ErrRoleExists.
func (s *CredentialStore) CreateRole(ctx context.Context, role *domain.Role) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO roles (id, name, created_at) VALUES ($1, $2, $3)`,
		role.ID, role.Name, role.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrRoleExists
		}
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

func (s *CredentialStore) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []*domain.Role
	for rows.Next() {
		r := &domain.Role{}
		if err := rows.Scan(&r.ID, &r.Name, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// inTx locks the user row and runs fn in a transaction, touching updated_at
// on success.
func (s *CredentialStore) inTx(ctx context.Context, userID string, fn func(context.Context, *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET updated_at = now() WHERE id = $1`, userID); err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func currentRoles(ctx context.Context, q queryer, userID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = $1 ORDER BY r.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("current roles: %w", err)
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

// requireRoles returns a StoreError listing every name without a role row.
func requireRoles(ctx context.Context, tx *sql.Tx, names []string) error {
	rows, err := tx.QueryContext(ctx, `SELECT name FROM roles WHERE name = ANY($1)`, names)
	if err != nil {
		return fmt.Errorf("lookup roles: %w", err)
	}
	defer rows.Close()

	found := make(map[string]struct{}, len(names))
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan role: %w", err)
		}
		found[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lookup roles: %w", err)
	}

	var reasons []string
	for _, n := range names {
		if _, ok := found[n]; !ok {
			reasons = append(reasons, domain.MissingRoleReason(n))
		}
	}
	if len(reasons) > 0 {
		return &domain.StoreError{Op: "add", Reasons: reasons}
	}
	return nil
}

func insertMemberships(ctx context.Context, tx *sql.Tx, userID string, names []string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT $1, id FROM roles WHERE name = ANY($2)
		 ON CONFLICT DO NOTHING`, userID, names)
	if err != nil {
		return fmt.Errorf("add roles: %w", err)
	}
	return nil
}

func deleteMemberships(ctx context.Context, tx *sql.Tx, userID string, names []string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM user_roles
		 WHERE user_id = $1 AND role_id IN (SELECT id FROM roles WHERE name = ANY($2))`, userID, names)
	if err != nil {
		return fmt.Errorf("remove roles: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
