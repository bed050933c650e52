package ports

import (
	"context"
	"encoding/json"
	"net/url"

	"recently-viewed-backend/internal/domain"
)

// TokenResponse is the body Shopify returns from /admin/oauth/access_token
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

// GraphQLResponse is the raw GraphQL envelope. Data is null when the operation failed
// before execution; Errors is kept verbatim so callers can surface it.
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors,omitempty"`
}

// ShopifyClient defines the interface for outbound calls to a shop's Admin API
type ShopifyClient interface {
	// Configured reports whether both the API key and secret are set
	Configured() bool
	// ExchangeToken trades an authorization code for an offline access token
	ExchangeToken(ctx context.Context, shop, code string) (*TokenResponse, error)
	// GraphQL executes a document against the shop's Admin GraphQL endpoint
	GraphQL(ctx context.Context, shop, accessToken, document string, variables map[string]any) (*GraphQLResponse, error)
}

// WebhookRegistry defines the interface for managing a shop's webhook subscriptions
type WebhookRegistry interface {
	ListWebhooks(ctx context.Context, shop, accessToken string) ([]domain.WebhookSubscription, error)
	CreateWebhook(ctx context.Context, shop, accessToken, topic, address string) (*domain.WebhookSubscription, error)
}

// WebhookRateLimiter defines the interface for per-shop webhook admission
type WebhookRateLimiter interface {
	Admit(ctx context.Context, shop string) bool
}

// CallbackVerifier defines the interface for authenticating the OAuth callback URL
type CallbackVerifier interface {
	Verify(callback *url.URL) error
}

// SessionTokenVerifier defines the interface for App Bridge session token validation
type SessionTokenVerifier interface {
	Verify(token string) (*domain.SessionToken, error)
}
