package entity

import (
	"time"

	"recently-viewed-backend/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoSessionDoc represents a shop's offline session in MongoDB
type MongoSessionDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Shop        string             `bson:"shop"`
	AccessToken string             `bson:"accessToken"`
	Scope       string             `bson:"scope"`
	CreatedAt   time.Time          `bson:"createdAt,omitempty"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoSessionDoc) ToDomain() *domain.Session {
	return &domain.Session{
		Shop:        d.Shop,
		AccessToken: d.AccessToken,
		Scope:       d.Scope,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoOAuthStateDoc represents an in-flight authorization redirect in MongoDB
type MongoOAuthStateDoc struct {
	State     string    `bson:"_id"`
	Nonce     string    `bson:"nonce"`
	Shop      string    `bson:"shop"`
	Host      string    `bson:"host"`
	ExpiresAt time.Time `bson:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoOAuthStateDoc) ToDomain() *domain.OAuthState {
	return &domain.OAuthState{
		State:     d.State,
		Nonce:     d.Nonce,
		Shop:      d.Shop,
		Host:      d.Host,
		ExpiresAt: d.ExpiresAt,
		CreatedAt: d.CreatedAt,
	}
}

// MongoOAuthStateDocFromDomain converts a domain entity to a MongoDB document
func MongoOAuthStateDocFromDomain(state *domain.OAuthState) *MongoOAuthStateDoc {
	return &MongoOAuthStateDoc{
		State:     state.State,
		Nonce:     state.Nonce,
		Shop:      state.Shop,
		Host:      state.Host,
		ExpiresAt: state.ExpiresAt,
		CreatedAt: state.CreatedAt,
	}
}
