package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/infrastructure/repository/entity"
	"recently-viewed-backend/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository implements the session, OAuth state and webhook log ports using MongoDB
type MongoRepository struct {
	sessionsCollection *mongo.Collection
	statesCollection   *mongo.Collection
	webhooksCollection *mongo.Collection
}

// NewMongoRepository creates a new MongoDB repository
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		sessionsCollection: db.Collection("sessions"),
		statesCollection:   db.Collection("oauth_states"),
		webhooksCollection: db.Collection("webhook_events"),
	}
}

var (
	_ ports.SessionStore    = (*MongoRepository)(nil)
	_ ports.WebhookEventLog = (*MongoRepository)(nil)
)

// EnsureIndexes creates the unique shop index and the TTL index that expires
// abandoned authorization states.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.sessionsCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "shop", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create sessions index: %w", err)
	}

	_, err = r.statesCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	if err != nil {
		return fmt.Errorf("failed to create oauth_states index: %w", err)
	}

	_, err = r.webhooksCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "shop", Value: 1}, {Key: "receivedAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create webhook_events index: %w", err)
	}
	return nil
}

// Get retrieves a session by shop domain
func (r *MongoRepository) Get(ctx context.Context, shop string) (*domain.Session, error) {
	var doc entity.MongoSessionDoc
	err := r.sessionsCollection.FindOne(ctx, bson.M{"shop": shop}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return doc.ToDomain(), nil
}

// Set saves or replaces a shop's session
func (r *MongoRepository) Set(ctx context.Context, shop, accessToken, scope string) error {
	now := time.Now().UTC()
	filter := bson.M{"shop": shop}
	update := bson.M{
		"$set": bson.M{
			"shop":        shop,
			"accessToken": accessToken,
			"scope":       scope,
			"updatedAt":   now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}

	_, err := r.sessionsCollection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes a shop's session
func (r *MongoRepository) Delete(ctx context.Context, shop string) error {
	if _, err := r.sessionsCollection.DeleteOne(ctx, bson.M{"shop": shop}); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// LogWebhook records a verified webhook event
func (r *MongoRepository) LogWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	if _, err := r.webhooksCollection.InsertOne(ctx, entity.MongoWebhookEventDocFromDomain(event)); err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}
	return nil
}

// OAuthStates exposes the OAuth state store backed by the same database
func (r *MongoRepository) OAuthStates() ports.OAuthStateStore {
	return &mongoOAuthStateStore{collection: r.statesCollection}
}

type mongoOAuthStateStore struct {
	collection *mongo.Collection
}

func (s *mongoOAuthStateStore) Save(ctx context.Context, state *domain.OAuthState) error {
	if _, err := s.collection.InsertOne(ctx, entity.MongoOAuthStateDocFromDomain(state)); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

func (s *mongoOAuthStateStore) Consume(ctx context.Context, state string) (*domain.OAuthState, error) {
	var doc entity.MongoOAuthStateDoc
	err := s.collection.FindOneAndDelete(ctx, bson.M{"_id": state}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume oauth state: %w", err)
	}
	return doc.ToDomain(), nil
}
