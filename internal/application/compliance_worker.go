package application

import (
	"context"
	"fmt"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/ports"

	"github.com/rs/zerolog"
)

// ComplianceWorker performs the privacy work requested by the mandatory compliance
// webhooks, off the request path.
type ComplianceWorker struct {
	sessions ports.SessionStore
	logger   zerolog.Logger
}

// NewComplianceWorker creates a worker that erases shop data from sessions
func NewComplianceWorker(sessions ports.SessionStore, logger zerolog.Logger) *ComplianceWorker {
	return &ComplianceWorker{
		sessions: sessions,
		logger:   logger.With().Str("component", "compliance_worker").Logger(),
	}
}

// Run processes events until the channel closes or ctx is done
func (w *ComplianceWorker) Run(ctx context.Context, events <-chan *domain.WebhookEvent) {
	w.logger.Info().Msg("Compliance worker started")
	defer w.logger.Info().Msg("Compliance worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.Process(ctx, event); err != nil {
				w.logger.Error().Err(err).Str("topic", event.Topic).Str("shop", event.Shop).Msg("Compliance task failed")
			}
		}
	}
}

// Process carries out the work for a single compliance event
func (w *ComplianceWorker) Process(ctx context.Context, event *domain.WebhookEvent) error {
	switch event.Topic {
	case domain.TopicShopRedact:
		var request domain.ShopRedactRequest
		if err := domain.DecodePayload(event.Payload, &request); err != nil {
			return fmt.Errorf("failed to decode shop redact request: %w", err)
		}
		if err := domain.VerifyPayloadShop(event.Shop, request.ShopDomain); err != nil {
			return fmt.Errorf("refusing to erase %s: %w", event.Shop, err)
		}
		if err := w.sessions.Delete(ctx, event.Shop); err != nil {
			return fmt.Errorf("failed to erase shop session: %w", err)
		}
		w.logger.Info().Str("shop", event.Shop).Str("webhookId", event.ID).Msg("Shop data erased")
	case domain.TopicCustomersRedact:
		w.logger.Info().Str("shop", event.Shop).Str("webhookId", event.ID).Msg("Customer redact completed, no customer data held")
	case domain.TopicCustomersDataRequest:
		var request domain.CustomerPrivacyRequest
		if err := domain.DecodePayload(event.Payload, &request); err != nil {
			return fmt.Errorf("failed to decode data request: %w", err)
		}
		w.logger.Info().
			Str("shop", event.Shop).
			Int64("customerId", request.Customer.ID).
			Str("webhookId", event.ID).
			Msg("Customer data request completed, no customer data held")
	default:
		w.logger.Debug().Str("topic", event.Topic).Msg("Ignoring non-compliance event")
	}
	return nil
}
