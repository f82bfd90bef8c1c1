package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tafelzaak/identity/internal/core/domain"
)

const (
	collectionUsers  = "users"
	collectionSystem = "system"

	indexUsername = "uniq_username"
	indexEmail    = "uniq_email"

	ownerMarkerID   = "owner_bootstrap"
	ownerClaimGrace = time.Minute
)

// UserRepository persists accounts and their role set in MongoDB. Password
// hashing is the caller's job; the repository only stores the hash.
type UserRepository struct {
	col    *mongo.Collection
	system *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		col:    db.Collection(collectionUsers),
		system: db.Collection(collectionSystem),
	}
}

type mongoProfile struct {
	FirstName   string `bson:"first_name,omitempty"`
	LastName    string `bson:"last_name,omitempty"`
	Street      string `bson:"street,omitempty"`
	HouseNumber string `bson:"house_number,omitempty"`
	PostalCode  string `bson:"postal_code,omitempty"`
	City        string `bson:"city,omitempty"`
	CountryID   string `bson:"country_id,omitempty"`
}

type mongoUser struct {
	ID             primitive.ObjectID `bson:"_id"`
	Username       string             `bson:"username"`
	Email          string             `bson:"email"`
	EmailConfirmed bool               `bson:"email_confirmed"`
	PasswordHash   string             `bson:"password_hash"`
	Roles          []string           `bson:"roles"`
	Profile        mongoProfile       `bson:"profile"`
	CreatedAt      int64              `bson:"created_at"`
	UpdatedAt      int64              `bson:"updated_at"`
}

func toDoc(u *domain.User) mongoUser {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, string(r))
	}
	return mongoUser{
		Username:       u.Username,
		Email:          strings.ToLower(u.Email),
		EmailConfirmed: u.EmailConfirmed,
		PasswordHash:   u.PasswordHash,
		Roles:          roles,
		Profile:        mongoProfile(u.Profile),
		CreatedAt:      u.CreatedAt.Unix(),
		UpdatedAt:      u.UpdatedAt.Unix(),
	}
}

func (m mongoUser) toDomain() *domain.User {
	roles := make([]domain.Role, 0, len(m.Roles))
	for _, r := range m.Roles {
		roles = append(roles, domain.Role(r))
	}
	return &domain.User{
		ID:             m.ID.Hex(),
		Username:       m.Username,
		Email:          m.Email,
		EmailConfirmed: m.EmailConfirmed,
		PasswordHash:   m.PasswordHash,
		Roles:          roles,
		Profile:        domain.Profile(m.Profile),
		CreatedAt:      unixToTime(m.CreatedAt),
		UpdatedAt:      unixToTime(m.UpdatedAt),
	}
}

// Insert stores a new account. user.PasswordHash must already be set.
// Duplicate usernames or emails are reported as *domain.ConflictError.
func (r *UserRepository) Insert(ctx context.Context, user *domain.User) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	doc := toDoc(user)
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now.Unix()
	doc.UpdatedAt = now.Unix()

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, conflictFrom(err)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.toDomain(), nil
}

// conflictFrom names the field whose unique index rejected the write.
func conflictFrom(err error) *domain.ConflictError {
	msg := err.Error()
	switch {
	case strings.Contains(msg, indexEmail):
		return &domain.ConflictError{Field: "email"}
	case strings.Contains(msg, indexUsername):
		return &domain.ConflictError{Field: "username"}
	}
	return &domain.ConflictError{}
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.col.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toDomain(), nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// List returns every account ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "username", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoUser
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	users := make([]*domain.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toDomain())
	}
	return users, nil
}

func (r *UserRepository) updateByID(ctx context.Context, id string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return conflictFrom(err)
		}
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// UpdateProfile overwrites the profile fields of user.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	return r.updateByID(ctx, user.ID, bson.M{"$set": bson.M{
		"profile":    mongoProfile(user.Profile),
		"updated_at": time.Now().UTC().Unix(),
	}})
}

// UpdateEmail sets a new email and clears the confirmed flag.
func (r *UserRepository) UpdateEmail(ctx context.Context, id, email string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"email":           strings.ToLower(email),
		"email_confirmed": false,
		"updated_at":      time.Now().UTC().Unix(),
	}})
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, id, hash string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    time.Now().UTC().Unix(),
	}})
}

// SetRoles replaces the role set in a single write.
func (r *UserRepository) SetRoles(ctx context.Context, id string, roles []domain.Role) error {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"roles": names}})
}

func (r *UserRepository) PullRoles(ctx context.Context, id string, roles []domain.Role) error {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	return r.updateByID(ctx, id, bson.M{"$pullAll": bson.M{"roles": names}})
}

func (r *UserRepository) AddRole(ctx context.Context, id string, role domain.Role) error {
	return r.updateByID(ctx, id, bson.M{"$addToSet": bson.M{"roles": string(role)}})
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	r.releaseOwnerMarker(ctx, id)
	return nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.col.CountDocuments(ctx, bson.M{})
}

// ClaimOwner makes id the Owner when no account holds the Owner role. The
// marker document's unique _id settles concurrent sign-ups: exactly one insert
// or takeover wins. The marker is released when its holder is deleted or the
// role write fails.
func (r *UserRepository) ClaimOwner(ctx context.Context, id string) (bool, error) {
	claimed, err := r.claimOwnerMarker(ctx, id)
	if err != nil || !claimed {
		return false, err
	}

	if err := r.SetRoles(ctx, id, []domain.Role{domain.RoleOwner}); err != nil {
		r.releaseOwnerMarker(ctx, id)
		return false, fmt.Errorf("claim owner: %w", err)
	}
	return true, nil
}

type ownerMarker struct {
	UserID    string    `bson:"user_id"`
	ClaimedAt time.Time `bson:"claimed_at"`
}

func (r *UserRepository) claimOwnerMarker(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	_, err := r.system.InsertOne(ctx, bson.M{"_id": ownerMarkerID, "user_id": id, "claimed_at": now})
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("claim owner: %w", err)
	}

	owners, err := r.col.CountDocuments(ctx, bson.M{"roles": string(domain.RoleOwner)}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("claim owner: count owners: %w", err)
	}
	if owners > 0 {
		return false, nil
	}

	var marker ownerMarker
	if err := r.system.FindOne(ctx, bson.M{"_id": ownerMarkerID}).Decode(&marker); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("claim owner: read marker: %w", err)
	}
	stale, err := r.staleOwnerMarker(ctx, marker, now)
	if err != nil || !stale {
		return false, err
	}

	// Compare-and-swap on the previous holder.
	res, err := r.system.UpdateOne(ctx,
		bson.M{"_id": ownerMarkerID, "user_id": marker.UserID},
		bson.M{"$set": bson.M{"user_id": id, "claimed_at": now}},
	)
	if err != nil {
		return false, fmt.Errorf("claim owner: take over marker: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *UserRepository) staleOwnerMarker(ctx context.Context, marker ownerMarker, now time.Time) (bool, error) {
	_, err := r.FindByID(ctx, marker.UserID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return false, fmt.Errorf("claim owner: find holder: %w", err)
	}
	return markerStale(err == nil, marker.ClaimedAt, now), nil
}

// markerStale reports whether an owner marker may be taken over while no
// Owner exists. A holder that still has an account may be between its claim
// and its role write, so it keeps the marker for ownerClaimGrace.
func markerStale(holderExists bool, claimedAt, now time.Time) bool {
	if !holderExists {
		return true
	}
	return now.Sub(claimedAt) > ownerClaimGrace
}

// releaseOwnerMarker drops the marker if id still holds it. A marker left
// behind is taken over by the next claim once its holder is gone.
func (r *UserRepository) releaseOwnerMarker(ctx context.Context, id string) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, _ = r.system.DeleteOne(ctx, bson.M{"_id": ownerMarkerID, "user_id": id})
}

// EnsureIndexes creates the unique username and email indexes.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexUsername),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName(indexEmail),
		},
		{Keys: bson.D{{Key: "roles", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
