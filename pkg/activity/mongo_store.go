package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/teamsync/pkg/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string
	Database string
}

// ConnectMongoDB connects and pings a MongoDB deployment.
func ConnectMongoDB(ctx context.Context, cfg MongoConfig) (*mongo.Database, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("MongoDB URI not provided")
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	return client.Database(cfg.Database), nil
}

// activityDocument is the stored shape of an entry; ids are kept as strings
// so the collection stays readable from other tools.
type activityDocument struct {
	ID             string         `bson:"id"`
	OrganizationID string         `bson:"organization_id"`
	UserID         string         `bson:"user_id"`
	UserEmail      string         `bson:"user_email"`
	Action         string         `bson:"action"`
	EntityType     string         `bson:"entity_type"`
	EntityID       string         `bson:"entity_id"`
	Metadata       map[string]any `bson:"metadata,omitempty"`
	CreatedAt      time.Time      `bson:"created_at"`
}

func toDocument(e *domain.ActivityLogEntry) activityDocument {
	return activityDocument{
		ID:             e.ID.String(),
		OrganizationID: e.OrganizationID.String(),
		UserID:         e.UserID.String(),
		UserEmail:      e.UserEmail,
		Action:         string(e.Action),
		EntityType:     string(e.EntityType),
		EntityID:       e.EntityID,
		Metadata:       e.Metadata,
		CreatedAt:      e.CreatedAt,
	}
}

func (d activityDocument) toEntry() (*domain.ActivityLogEntry, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, fmt.Errorf("activity id: %w", err)
	}
	orgID, err := uuid.Parse(d.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("activity organization id: %w", err)
	}
	userID, err := uuid.Parse(d.UserID)
	if err != nil {
		return nil, fmt.Errorf("activity user id: %w", err)
	}
	return &domain.ActivityLogEntry{
		ID:             id,
		OrganizationID: orgID,
		UserID:         userID,
		UserEmail:      d.UserEmail,
		Action:         domain.ActivityAction(d.Action),
		EntityType:     domain.EntityType(d.EntityType),
		EntityID:       d.EntityID,
		Metadata:       d.Metadata,
		CreatedAt:      d.CreatedAt,
	}, nil
}

// MongoStore keeps activity in a MongoDB collection.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a store over the activity_logs collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection("activity_logs")}
}

// EnsureIndexes creates the index backing ListByOrganization.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

// Append implements Store.
func (s *MongoStore) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	_, err := s.collection.InsertOne(ctx, toDocument(entry))
	return err
}

// ListByOrganization implements Store.
func (s *MongoStore) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit int) ([]*domain.ActivityLogEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{"organization_id": orgID.String()}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []activityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	entries := make([]*domain.ActivityLogEntry, 0, len(docs))
	for _, doc := range docs {
		entry, err := doc.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
