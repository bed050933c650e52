package entity

import (
	"time"

	"recently-viewed-backend/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoWebhookEventDoc is the audit record of a verified webhook. The payload is not
// stored: compliance payloads carry customer data.
type MongoWebhookEventDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	WebhookID   string             `bson:"webhookId"`
	Topic       string             `bson:"topic"`
	Shop        string             `bson:"shop"`
	APIVersion  string             `bson:"apiVersion,omitempty"`
	PayloadSize int                `bson:"payloadSize"`
	Verified    bool               `bson:"verified"`
	ReceivedAt  time.Time          `bson:"receivedAt"`
}

// MongoWebhookEventDocFromDomain converts a domain entity to a MongoDB document
func MongoWebhookEventDocFromDomain(event *domain.WebhookEvent) *MongoWebhookEventDoc {
	return &MongoWebhookEventDoc{
		WebhookID:   event.ID,
		Topic:       event.Topic,
		Shop:        event.Shop,
		APIVersion:  event.APIVersion,
		PayloadSize: len(event.Payload),
		Verified:    event.Verified,
		ReceivedAt:  event.ReceivedAt,
	}
}
