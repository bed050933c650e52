package pubsub

import (
	"context"
	"slices"
	"sync"

	"recently-viewed-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// defaultBuffer is the per-subscriber queue depth
const defaultBuffer = 64

// Subscription receives the verified webhook events matching its filter
type Subscription struct {
	ID     string
	Filter Filter
	Events <-chan *domain.WebhookEvent

	events chan *domain.WebhookEvent
	cancel context.CancelFunc
}

// Filter selects events by topic and shop; empty fields match everything
type Filter struct {
	Topics []string
	Shop   string
}

func (f Filter) matches(event *domain.WebhookEvent) bool {
	if len(f.Topics) > 0 && !slices.Contains(f.Topics, event.Topic) {
		return false
	}
	return f.Shop == "" || f.Shop == event.Shop
}

// WebhookPubSub fans verified webhook events out to in-process subscribers so slow
// work runs off the request path. Publishing never blocks.
type WebhookPubSub struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	logger        zerolog.Logger
	onDrop        func(topic string)
}

// NewWebhookPubSub creates an empty event bus
func NewWebhookPubSub(logger zerolog.Logger) *WebhookPubSub {
	return &WebhookPubSub{
		subscriptions: make(map[string]*Subscription),
		logger:        logger.With().Str("component", "webhook_pubsub").Logger(),
	}
}

// OnDrop registers a callback invoked when an event is dropped for a full subscriber
func (ps *WebhookPubSub) OnDrop(fn func(topic string)) {
	ps.onDrop = fn
}

// Subscribe registers a subscriber that lives until ctx is done or Unsubscribe is called
func (ps *WebhookPubSub) Subscribe(ctx context.Context, filter Filter) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)
	events := make(chan *domain.WebhookEvent, defaultBuffer)
	sub := &Subscription{
		ID:     uuid.NewString(),
		Filter: filter,
		Events: events,
		events: events,
		cancel: cancel,
	}

	ps.mu.Lock()
	ps.subscriptions[sub.ID] = sub
	ps.mu.Unlock()

	ps.logger.Debug().
		Str("subscriptionId", sub.ID).
		Strs("topics", filter.Topics).
		Msg("Webhook subscriber registered")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(sub.ID)
	}()

	return sub
}

// Unsubscribe removes a subscriber and closes its channel
func (ps *WebhookPubSub) Unsubscribe(id string) {
	ps.mu.Lock()
	sub, ok := ps.subscriptions[id]
	if ok {
		delete(ps.subscriptions, id)
		close(sub.events)
	}
	ps.mu.Unlock()

	if ok {
		sub.cancel()
		ps.logger.Debug().Str("subscriptionId", id).Msg("Webhook subscriber removed")
	}
}

// Publish delivers event to every matching subscriber and returns how many received it
func (ps *WebhookPubSub) Publish(event *domain.WebhookEvent) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	delivered := 0
	for _, sub := range ps.subscriptions {
		if !sub.Filter.matches(event) {
			continue
		}
		select {
		case sub.events <- event:
			delivered++
		default:
			ps.logger.Warn().
				Str("subscriptionId", sub.ID).
				Str("topic", event.Topic).
				Str("shop", event.Shop).
				Msg("Subscriber buffer full, dropping event")
			if ps.onDrop != nil {
				ps.onDrop(event.Topic)
			}
		}
	}
	return delivered
}

// SubscriberCount returns the number of active subscribers
func (ps *WebhookPubSub) SubscriberCount() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subscriptions)
}
