package ports

import (
	"context"

	"recently-viewed-backend/internal/domain"
)

// SessionStore defines the interface for offline access token persistence, keyed by shop
type SessionStore interface {
	// Get returns nil, nil when the shop has no session
	Get(ctx context.Context, shop string) (*domain.Session, error)
	// Set replaces the shop's session and stamps UpdatedAt
	Set(ctx context.Context, shop, accessToken, scope string) error
	// Delete removes the shop's session; deleting an absent session is not an error
	Delete(ctx context.Context, shop string) error
}

// OAuthStateStore defines the interface for in-flight authorization redirects
type OAuthStateStore interface {
	Save(ctx context.Context, state *domain.OAuthState) error
	// Consume returns and deletes the state in one step; nil, nil when unknown
	Consume(ctx context.Context, state string) (*domain.OAuthState, error)
}

// WebhookEventLog defines the interface for the audit trail of verified webhooks
type WebhookEventLog interface {
	LogWebhook(ctx context.Context, event *domain.WebhookEvent) error
}

// EncryptionService defines the interface for sealing secrets at rest
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// WebhookEventPublisher defines the interface for fanning verified webhooks out to
// background consumers
type WebhookEventPublisher interface {
	// Publish never blocks and returns how many consumers received the event
	Publish(event *domain.WebhookEvent) int
}
