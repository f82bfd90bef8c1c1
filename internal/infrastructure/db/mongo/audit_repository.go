package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tafelzaak/identity/internal/core/domain"
)

const collectionAudit = "audit_log"

// AuditRepository is the append-only audit collection. It never updates or
// deletes documents.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(collectionAudit)}
}

type mongoAuditEntry struct {
	Timestamp time.Time `bson:"timestamp"`
	ActorID   string    `bson:"actor_id"`
	Action    string    `bson:"action"`
	Message   string    `bson:"message"`
}

// Append persists a single audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.col.InsertOne(ctx, mongoAuditEntry{
		Timestamp: entry.Timestamp.UTC(),
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		Message:   entry.Message,
	})
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// List returns the newest entries matching filter.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	q := bson.M{}
	if filter.ActorID != "" {
		q["actor_id"] = filter.ActorID
	}
	if filter.Action != "" {
		q["action"] = filter.Action
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(filter.Limit))

	cur, err := r.col.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("find audit entries: %w", err)
	}
	defer cur.Close(ctx)

	var docs []mongoAuditEntry
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode audit entries: %w", err)
	}

	entries := make([]domain.AuditLogEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, domain.AuditLogEntry{
			Timestamp: d.Timestamp.UTC(),
			ActorID:   d.ActorID,
			Action:    d.Action,
			Message:   d.Message,
		})
	}
	return entries, nil
}

func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "actor_id", Value: 1}, {Key: "timestamp", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
