package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"recently-viewed-backend/internal/application"
	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/infrastructure/metrics"
	shopifyinfra "recently-viewed-backend/internal/infrastructure/shopify"
	"recently-viewed-backend/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxWebhookBody caps an inbound webhook body
const maxWebhookBody = 1 << 20

// Shopify webhook headers
const (
	headerHmac       = "X-Shopify-Hmac-Sha256"
	headerShopDomain = "X-Shopify-Shop-Domain"
	headerTopic      = "X-Shopify-Topic"
	headerWebhookID  = "X-Shopify-Webhook-Id"
	headerAPIVersion = "X-Shopify-API-Version"
)

// WebhookGateway authenticates, rate limits and dispatches inbound webhooks. The raw
// body is read in full before anything parses it.
type WebhookGateway struct {
	verifier   *shopifyinfra.WebhookVerifier
	limiter    ports.WebhookRateLimiter
	dispatcher *application.WebhookDispatcher
	eventLog   ports.WebhookEventLog
	publisher  ports.WebhookEventPublisher
	metrics    *metrics.Metrics
	now        func() time.Time
	logger     zerolog.Logger
}

// NewWebhookGateway creates the gateway. eventLog and publisher may be nil.
func NewWebhookGateway(
	verifier *shopifyinfra.WebhookVerifier,
	limiter ports.WebhookRateLimiter,
	dispatcher *application.WebhookDispatcher,
	eventLog ports.WebhookEventLog,
	publisher ports.WebhookEventPublisher,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *WebhookGateway {
	return &WebhookGateway{
		verifier:   verifier,
		limiter:    limiter,
		dispatcher: dispatcher,
		eventLog:   eventLog,
		publisher:  publisher,
		metrics:    m,
		now:        time.Now,
		logger:     logger.With().Str("component", "webhook_gateway").Logger(),
	}
}

// routeTopic is the topic named by the request path, or empty on the generic endpoint
func routeTopic(r *http.Request) string {
	resource, action := chi.URLParam(r, "resource"), chi.URLParam(r, "action")
	if resource == "" || action == "" {
		return ""
	}
	return resource + "/" + action
}

func (g *WebhookGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			g.reject(w, "", http.StatusRequestEntityTooLarge, "Payload too large")
			return
		}
		g.reject(w, "", http.StatusBadRequest, "Failed to read request body")
		return
	}

	signature := r.Header.Get(headerHmac)
	shop := domain.NormalizeShopDomain(r.Header.Get(headerShopDomain))
	topic := r.Header.Get(headerTopic)
	if signature == "" || shop == "" || topic == "" {
		g.logger.Warn().Str("path", r.URL.Path).Msg("Missing required webhook headers")
		g.reject(w, "", http.StatusBadRequest, "Missing required webhook headers")
		return
	}
	if !domain.IsValidShopDomain(shop) {
		g.logger.Warn().Str("shop", shop).Str("topic", topic).Msg("Invalid shop domain header")
		g.reject(w, "", http.StatusBadRequest, "Invalid shop domain")
		return
	}

	if err := g.verifier.Verify(payload, signature); err != nil {
		if domain.IsKind(err, domain.KindConfig) {
			g.logger.Error().Msg("Webhook secret not configured, rejecting webhook")
			g.reject(w, "", http.StatusInternalServerError, "Webhook secret not configured")
			return
		}
		g.logger.Warn().Str("shop", shop).Str("topic", topic).Msg("Webhook signature verification failed")
		g.reject(w, "", http.StatusUnauthorized, "Invalid signature")
		return
	}

	if expected := routeTopic(r); expected != "" && expected != topic {
		g.logger.Warn().Str("shop", shop).Str("topic", topic).Str("route", expected).Msg("Webhook topic does not match route")
		g.reject(w, topic, http.StatusBadRequest, "Topic mismatch")
		return
	}

	if !g.limiter.Admit(ctx, shop) {
		g.logger.Warn().Str("shop", shop).Str("topic", topic).Msg("Webhook rate limit exceeded")
		limited := domain.NewRateLimitError("Too many requests")
		g.reject(w, topic, domain.HTTPStatus(limited), domain.PublicMessage(limited))
		return
	}

	event := &domain.WebhookEvent{
		ID:         r.Header.Get(headerWebhookID),
		Topic:      topic,
		Shop:       shop,
		APIVersion: r.Header.Get(headerAPIVersion),
		Signature:  signature,
		Payload:    payload,
		Verified:   true,
		ReceivedAt: g.now().UTC(),
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	if g.eventLog != nil {
		if err := g.eventLog.LogWebhook(ctx, event); err != nil {
			g.logger.Error().Err(err).Str("webhookId", event.ID).Msg("Failed to log webhook event")
		}
	}
	if g.publisher != nil {
		g.publisher.Publish(event)
	}

	result, err := g.dispatcher.Dispatch(ctx, event)
	if err != nil {
		g.logger.Error().
			Err(err).
			Str("topic", topic).
			Str("shop", shop).
			Str("webhookId", event.ID).
			Msg("Failed to dispatch webhook event")
		if typed := domain.AsError(err); typed != nil {
			g.reject(w, topic, domain.HTTPStatus(typed), typed.Message)
			return
		}
		g.reject(w, topic, http.StatusInternalServerError, "Internal server error")
		return
	}

	g.metrics.ObserveWebhook(topic, "ok")
	g.logger.Info().Str("topic", topic).Str("shop", shop).Str("webhookId", event.ID).Msg("Webhook processed")
	writeJSON(w, http.StatusOK, result)
}

// reject writes an error response. topic is only used as a metric label once the
// request is authenticated; unauthenticated rejections are counted as unverified.
func (g *WebhookGateway) reject(w http.ResponseWriter, topic string, status int, message string) {
	if topic == "" {
		topic = "unverified"
	}
	g.metrics.ObserveWebhook(topic, http.StatusText(status))
	writeErrorMessage(w, status, message)
}
