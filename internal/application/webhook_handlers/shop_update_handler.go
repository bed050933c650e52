package webhook_handlers

import (
	"context"

	"recently-viewed-backend/internal/domain"

	"github.com/rs/zerolog"
)

// ShopUpdateHandler handles shop/update webhook events
type ShopUpdateHandler struct {
	logger zerolog.Logger
}

// NewShopUpdateHandler creates a new shop update webhook handler
func NewShopUpdateHandler(logger zerolog.Logger) *ShopUpdateHandler {
	return &ShopUpdateHandler{logger: logger}
}

// CanHandle returns true if this handler can process the given topic
func (h *ShopUpdateHandler) CanHandle(topic string) bool {
	return topic == domain.TopicShopUpdate
}

// Handle records the shop's new profile
func (h *ShopUpdateHandler) Handle(_ context.Context, event *domain.WebhookEvent) (string, error) {
	var shopData domain.ShopUpdate
	if err := domain.DecodePayload(event.Payload, &shopData); err != nil {
		h.logger.Warn().Err(err).Str("shop", event.Shop).Msg("Unreadable shop update payload")
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Int64("shopId", shopData.ID).
		Str("name", shopData.Name).
		Str("domain", shopData.Domain).
		Str("planName", shopData.PlanName).
		Str("currency", shopData.Currency).
		Msg("Shop updated")

	return "Shop updated successfully", nil
}
