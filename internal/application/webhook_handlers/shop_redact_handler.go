package webhook_handlers

import (
	"context"

	"recently-viewed-backend/internal/domain"

	"github.com/rs/zerolog"
)

// ShopRedactHandler acknowledges shop/redact. The data removal itself runs in the
// compliance worker.
type ShopRedactHandler struct {
	logger zerolog.Logger
}

// NewShopRedactHandler creates a new shop redact webhook handler
func NewShopRedactHandler(logger zerolog.Logger) *ShopRedactHandler {
	return &ShopRedactHandler{logger: logger}
}

// CanHandle returns true if this handler can process the given topic
func (h *ShopRedactHandler) CanHandle(topic string) bool {
	return topic == domain.TopicShopRedact
}

// Handle processes a shop redact webhook event
func (h *ShopRedactHandler) Handle(_ context.Context, event *domain.WebhookEvent) (string, error) {
	var request domain.ShopRedactRequest
	if err := domain.DecodePayload(event.Payload, &request); err != nil {
		h.logger.Warn().Err(err).Str("shop", event.Shop).Msg("Unreadable shop redact payload")
	}
	if err := domain.VerifyPayloadShop(event.Shop, request.ShopDomain); err != nil {
		h.logger.Warn().Str("shop", event.Shop).Str("payloadShop", request.ShopDomain).Msg("Shop redact payload names another shop")
		return "", err
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Int64("shopId", request.ShopID).
		Msg("Shop redact request received")

	return "Shop data redacted successfully", nil
}
