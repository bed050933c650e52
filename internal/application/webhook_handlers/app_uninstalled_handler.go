package webhook_handlers

import (
	"context"
	"fmt"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/ports"

	"github.com/rs/zerolog"
)

// AppUninstalledHandler handles app uninstalled webhook events
type AppUninstalledHandler struct {
	logger   zerolog.Logger
	sessions ports.SessionStore
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(logger zerolog.Logger, sessions ports.SessionStore) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		logger:   logger,
		sessions: sessions,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == domain.TopicAppUninstalled
}

// Handle drops the shop's offline token. Shopify has already revoked it, so keeping it
// would only hold a dead credential. Repeated deliveries are harmless.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) (string, error) {
	var shopData domain.ShopUpdate
	if err := domain.DecodePayload(event.Payload, &shopData); err != nil {
		h.logger.Warn().Err(err).Str("shop", event.Shop).Msg("Unreadable app uninstalled payload")
	}
	if err := domain.VerifyPayloadShop(event.Shop, shopData.MyshopifyDomain); err != nil {
		h.logger.Warn().
			Str("shop", event.Shop).
			Str("payloadShop", shopData.MyshopifyDomain).
			Msg("App uninstalled payload names another shop, keeping session")
		return "", err
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Str("shopName", shopData.Name).
		Msg("Processing app uninstalled webhook event")

	if err := h.sessions.Delete(ctx, event.Shop); err != nil {
		return "", fmt.Errorf("failed to delete session: %w", err)
	}

	h.logger.Info().Str("shop", event.Shop).Msg("App uninstalled - session removed")
	return "App uninstalled successfully", nil
}
