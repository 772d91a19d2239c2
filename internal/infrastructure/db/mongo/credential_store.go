package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/storefront/identity-service/internal/core/domain"
	"github.com/storefront/identity-service/internal/core/ports"
)

const (
	collectionUsers = "users"
	collectionRoles = "roles"
)

// CredentialStore implements ports.CredentialStore on MongoDB. A user's roles
// are embedded in the user document, so every role change is a single
// document update.
type CredentialStore struct {
	db    *mongo.Database
	users *mongo.Collection
	roles *mongo.Collection
}

func NewCredentialStore(db *mongo.Database) *CredentialStore {
	return &CredentialStore{
		db:    db,
		users: db.Collection(collectionUsers),
		roles: db.Collection(collectionRoles),
	}
}

var _ ports.CredentialStore = (*CredentialStore)(nil)

type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	Email        string    `bson:"email"`
	FirstName    string    `bson:"first_name,omitempty"`
	LastName     string    `bson:"last_name,omitempty"`
	PasswordHash string    `bson:"password_hash"`
	Roles        []string  `bson:"roles"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

func (d *userDoc) toDomain() *domain.User {
	roles := d.Roles
	if roles == nil {
		roles = []string{}
	}
	return &domain.User{
		ID:           d.ID,
		Username:     d.Username,
		Email:        d.Email,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		PasswordHash: d.PasswordHash,
		Roles:        roles,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

type roleDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"created_at"`
}

// EnsureIndexes makes usernames and role names unique.
func (s *CredentialStore) EnsureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}},
	}); err != nil {
		return err
	}
	_, err := s.roles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *CredentialStore) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDoc
	if err := s.users.FindOne(ctx, bson.M{"username": username}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}

// List returns a page of users sorted by username. Search is a
// case-insensitive substring match on username or email.
func (s *CredentialStore) List(ctx context.Context, f ports.ListUsersFilter) ([]*domain.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.Search != "" {
		pattern := containsPattern(f.Search)
		filter["$or"] = bson.A{
			bson.M{"username": pattern},
			bson.M{"email": pattern},
		}
	}

	total, err := s.users.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "username", Value: 1}}).
		SetSkip(int64((f.Page - 1) * f.Limit)).
		SetLimit(int64(f.Limit))

	cur, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	users := make([]*domain.User, 0, f.Limit)
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("decode user: %w", err)
		}
		users = append(users, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// Create inserts the user with its initial roles, which must all exist.
func (s *CredentialStore) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if reasons, err := s.missingRoles(ctx, user.Roles); err != nil {
		return nil, err
	} else if len(reasons) > 0 {
		return nil, &domain.StoreError{Op: "add", Reasons: reasons}
	}

	roles := user.Roles
	if roles == nil {
		roles = []string{}
	}
	doc := userDoc{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		PasswordHash: user.PasswordHash,
		Roles:        roles,
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *CredentialStore) GetRoles(ctx context.Context, userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc userDoc
	opts := options.FindOne().SetProjection(bson.M{"roles": 1})
	if err := s.users.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get roles: %w", err)
	}
	if doc.Roles == nil {
		return []string{}, nil
	}
	return doc.Roles, nil
}

func (s *CredentialStore) AddToRoles(ctx context.Context, userID string, roles []string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	reasons, err := s.missingRoles(ctx, roles)
	if err != nil {
		return err
	}
	if len(reasons) > 0 {
		return &domain.StoreError{Op: "add", Reasons: reasons}
	}

	return s.updateUser(ctx, userID, bson.M{
		"$addToSet": bson.M{"roles": bson.M{"$each": roles}},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
}

// RemoveFromRoles rejects the whole request when the user is not in one of
// the named roles.
func (s *CredentialStore) RemoveFromRoles(ctx context.Context, userID string, roles []string) error {
	current, err := s.GetRoles(ctx, userID)
	if err != nil {
		return err
	}

	var reasons []string
	held := make(map[string]struct{}, len(current))
	for _, r := range current {
		held[r] = struct{}{}
	}
	for _, r := range roles {
		if _, ok := held[r]; !ok {
			reasons = append(reasons, domain.NotInRoleReason(r))
		}
	}
	if len(reasons) > 0 {
		return &domain.StoreError{Op: "remove", Reasons: reasons}
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return s.updateUser(ctx, userID, bson.M{
		"$pullAll": bson.M{"roles": roles},
		"$set":     bson.M{"updated_at": time.Now().UTC()},
	})
}

// SetRoles validates every role name first and then replaces the embedded
// role array in one update.
func (s *CredentialStore) SetRoles(ctx context.Context, userID string, roles []string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	reasons, err := s.missingRoles(ctx, roles)
	if err != nil {
		return err
	}
	if len(reasons) > 0 {
		return &domain.StoreError{Op: "add", Reasons: reasons}
	}

	return s.updateUser(ctx, userID, bson.M{
		"$set": bson.M{"roles": roles, "updated_at": time.Now().UTC()},
	})
}

func (s *CredentialStore) FindRole(ctx context.Context, name string) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc roleDoc
	if err := s.roles.FindOne(ctx, bson.M{"name": name}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrRoleNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return &domain.Role{ID: doc.ID, Name: doc.Name, CreatedAt: doc.CreatedAt.UTC()}, nil
}

// CreateRole relies on the unique name index; a duplicate yields
// domain.ErrRoleExists.
func (s *CredentialStore) CreateRole(ctx context.Context, role *domain.Role) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := roleDoc{ID: role.ID, Name: role.Name, CreatedAt: role.CreatedAt.UTC()}
	if _, err := s.roles.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrRoleExists
		}
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

func (s *CredentialStore) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := s.roles.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	var docs []roleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}

	roles := make([]*domain.Role, 0, len(docs))
	for _, d := range docs {
		roles = append(roles, &domain.Role{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt.UTC()})
	}
	return roles, nil
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.Client().Ping(ctx, nil)
}

// missingRoles returns one reason per role name that has no role document.
func (s *CredentialStore) missingRoles(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	cur, err := s.roles.Find(ctx, bson.M{"name": bson.M{"$in": names}}, options.Find().SetProjection(bson.M{"name": 1}))
	if err != nil {
		return nil, fmt.Errorf("lookup roles: %w", err)
	}
	var docs []roleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("lookup roles: %w", err)
	}

	found := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		found[d.Name] = struct{}{}
	}
	var reasons []string
	for _, n := range names {
		if _, ok := found[n]; !ok {
			reasons = append(reasons, domain.MissingRoleReason(n))
		}
	}
	return reasons, nil
}

func (s *CredentialStore) updateUser(ctx context.Context, userID string, update bson.M) error {
	res, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("update user roles: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func containsPattern(search string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
}
