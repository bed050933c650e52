package application

import (
	"context"
	"fmt"
	"sync"

	"recently-viewed-backend/internal/domain"

	"github.com/rs/zerolog"
)

// WebhookHandler processes one or more webhook topics
type WebhookHandler interface {
	CanHandle(topic string) bool
	// Handle returns the acknowledgement message sent back to Shopify
	Handle(ctx context.Context, event *domain.WebhookEvent) (string, error)
}

// unhandledMessage acknowledges verified events no handler claims
const unhandledMessage = "Webhook received"

// WebhookDispatcher routes verified webhook events to the first handler that claims the topic
type WebhookDispatcher struct {
	mu       sync.RWMutex
	handlers []WebhookHandler
	logger   zerolog.Logger
}

// NewWebhookDispatcher creates a dispatcher with no handlers
func NewWebhookDispatcher(logger zerolog.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		logger: logger.With().Str("component", "webhook_dispatcher").Logger(),
	}
}

// RegisterHandler adds handler; handlers are consulted in registration order
func (d *WebhookDispatcher) RegisterHandler(handler WebhookHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, handler)
}

// Handles reports whether a registered handler claims topic
func (d *WebhookDispatcher) Handles(topic string) bool {
	return d.handlerFor(topic) != nil
}

func (d *WebhookDispatcher) handlerFor(topic string) WebhookHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, h := range d.handlers {
		if h.CanHandle(topic) {
			return h
		}
	}
	return nil
}

// Dispatch runs the handler for event.Topic. A panicking handler is reported as an error.
// Topics without a handler are acknowledged so Shopify stops retrying them.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) (result *domain.WebhookResult, err error) {
	handler := d.handlerFor(event.Topic)
	if handler == nil {
		d.logger.Warn().Str("topic", event.Topic).Str("shop", event.Shop).Msg("No handler registered for webhook topic")
		return &domain.WebhookResult{Success: true, Message: unhandledMessage}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Str("topic", event.Topic).Str("shop", event.Shop).Msg("Webhook handler panicked")
			result = nil
			err = fmt.Errorf("webhook handler for %s panicked: %v", event.Topic, r)
		}
	}()

	message, err := handler.Handle(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to handle %s webhook: %w", event.Topic, err)
	}
	return &domain.WebhookResult{Success: true, Message: message}, nil
}
