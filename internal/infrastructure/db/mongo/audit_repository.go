package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/storefront/identity-service/internal/core/domain"
	"github.com/storefront/identity-service/internal/core/ports"
)

const collectionRoleAudit = "role_audit"

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionRoleAudit)}
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

type roleChangeDoc struct {
	UserID     string    `bson:"user_id"`
	Username   string    `bson:"username"`
	Previous   []string  `bson:"previous"`
	Current    []string  `bson:"current"`
	ChangedBy  string    `bson:"changed_by"`
	ChangedAt  time.Time `bson:"changed_at"`
	RecordedAt time.Time `bson:"recorded_at"`
}

// Insert persists a role change to the role_audit collection.
func (r *AuditRepository) Insert(ctx context.Context, c *domain.RoleChange) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := roleChangeDoc{
		UserID:     c.UserID,
		Username:   c.Username,
		Previous:   c.Previous,
		Current:    c.Current,
		ChangedBy:  c.ChangedBy,
		ChangedAt:  c.ChangedAt.UTC(),
		RecordedAt: time.Now().UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert role change: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByUsername(ctx context.Context, username string, limit int) ([]*domain.RoleChange, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "changed_at", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, bson.M{"username": username}, opts)
	if err != nil {
		return nil, fmt.Errorf("list role changes: %w", err)
	}
	var docs []roleChangeDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode role changes: %w", err)
	}

	out := make([]*domain.RoleChange, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.RoleChange{
			UserID:    d.UserID,
			Username:  d.Username,
			Previous:  d.Previous,
			Current:   d.Current,
			ChangedBy: d.ChangedBy,
			ChangedAt: d.ChangedAt.UTC(),
		})
	}
	return out, nil
}

// EnsureIndexes creates the history lookup index.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "username", Value: 1}, {Key: "changed_at", Value: -1}},
	})
	return err
}
