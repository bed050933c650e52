package shopify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

type webhookRegistry struct {
	app        goshopify.App
	apiVersion string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewWebhookRegistry creates a registry that manages webhook subscriptions through the
// Admin REST API.
func NewWebhookRegistry(apiKey, apiSecret, apiVersion string, timeout time.Duration, logger zerolog.Logger) ports.WebhookRegistry {
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	return &webhookRegistry{
		app:        goshopify.App{ApiKey: apiKey, ApiSecret: apiSecret},
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "webhook_registry").Logger(),
	}
}

// createClient is a helper to create a goshopify client
func (r *webhookRegistry) createClient(shopDomain, accessToken string) (*goshopify.Client, error) {
	client, err := goshopify.NewClient(r.app, shopDomain, accessToken,
		goshopify.WithVersion(r.apiVersion),
		goshopify.WithHTTPClient(r.httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func (r *webhookRegistry) ListWebhooks(ctx context.Context, shop, accessToken string) ([]domain.WebhookSubscription, error) {
	client, err := r.createClient(shop, accessToken)
	if err != nil {
		return nil, err
	}
	webhooks, err := client.Webhook.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}

	subs := make([]domain.WebhookSubscription, 0, len(webhooks))
	for _, webhook := range webhooks {
		subs = append(subs, domain.WebhookSubscription{
			ID:      webhook.Id,
			Topic:   webhook.Topic,
			Address: webhook.Address,
		})
	}
	return subs, nil
}

func (r *webhookRegistry) CreateWebhook(ctx context.Context, shop, accessToken, topic, address string) (*domain.WebhookSubscription, error) {
	client, err := r.createClient(shop, accessToken)
	if err != nil {
		return nil, err
	}
	created, err := client.Webhook.Create(ctx, goshopify.Webhook{
		Topic:   topic,
		Address: address,
		Format:  "json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	r.logger.Info().
		Str("shop", shop).
		Str("topic", topic).
		Msg("Registered webhook subscription")

	return &domain.WebhookSubscription{ID: created.Id, Topic: created.Topic, Address: created.Address}, nil
}
