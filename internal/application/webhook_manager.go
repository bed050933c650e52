package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/ports"

	"github.com/rs/zerolog"
)

// registrationTimeout bounds a background registration run
const registrationTimeout = 30 * time.Second

// WebhookManager keeps a shop's lifecycle webhook subscriptions pointed at this app.
// The privacy topics are configured in the Partner Dashboard and cannot be registered
// through the Admin API.
type WebhookManager struct {
	registry ports.WebhookRegistry
	topics   []string
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// NewWebhookManager creates a manager for the default lifecycle topics
func NewWebhookManager(registry ports.WebhookRegistry, logger zerolog.Logger) *WebhookManager {
	return &WebhookManager{
		registry: registry,
		topics:   DefaultWebhookTopics(),
		logger:   logger.With().Str("component", "webhook_manager").Logger(),
	}
}

// DefaultWebhookTopics returns the topics registered on install
func DefaultWebhookTopics() []string {
	return []string{domain.TopicAppUninstalled, domain.TopicShopUpdate}
}

// CallbackAddress is the endpoint Shopify should deliver topic to
func CallbackAddress(baseURL, topic string) string {
	return strings.TrimRight(baseURL, "/") + "/webhooks/" + topic
}

// EnsureSubscriptions creates every missing subscription and returns how many were created.
// A subscription already delivering the topic to the same address is left alone.
func (m *WebhookManager) EnsureSubscriptions(ctx context.Context, shop, accessToken, baseURL string) (int, error) {
	existing, err := m.registry.ListWebhooks(ctx, shop, accessToken)
	if err != nil {
		return 0, fmt.Errorf("failed to list webhooks: %w", err)
	}

	registered := make(map[string]bool, len(existing))
	for _, sub := range existing {
		registered[sub.Topic+" "+sub.Address] = true
	}

	created := 0
	var errs []error
	for _, topic := range m.topics {
		address := CallbackAddress(baseURL, topic)
		if registered[topic+" "+address] {
			continue
		}
		if _, err := m.registry.CreateWebhook(ctx, shop, accessToken, topic, address); err != nil {
			m.logger.Warn().Err(err).Str("shop", shop).Str("topic", topic).Msg("Failed to register webhook")
			errs = append(errs, fmt.Errorf("%s: %w", topic, err))
			continue
		}
		created++
	}

	if len(errs) > 0 {
		return created, fmt.Errorf("failed to register %d webhook(s): %v", len(errs), errs)
	}
	return created, nil
}

// EnsureSubscriptionsAsync runs EnsureSubscriptions in the background, detached from
// the request's cancellation. Failures are logged.
func (m *WebhookManager) EnsureSubscriptionsAsync(ctx context.Context, shop, accessToken, baseURL string) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), registrationTimeout)
		defer cancel()

		created, err := m.EnsureSubscriptions(bgCtx, shop, accessToken, baseURL)
		if err != nil {
			m.logger.Error().Err(err).Str("shop", shop).Msg("Webhook registration incomplete")
			return
		}
		m.logger.Info().Str("shop", shop).Int("created", created).Msg("Webhook subscriptions ensured")
	}()
}

// Wait blocks until background registrations finish
func (m *WebhookManager) Wait() {
	m.wg.Wait()
}
