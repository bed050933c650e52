package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "recently_viewed"

// Metrics holds the app's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	webhooks        *prometheus.CounterVec
	webhooksDropped *prometheus.CounterVec
	oauth           *prometheus.CounterVec
	billing         *prometheus.CounterVec
	shopifyLatency  *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them, with the Go and process collectors,
// on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Inbound webhooks by topic and outcome.",
		}, []string{"topic", "outcome"}),
		webhooksDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_dropped_total",
			Help:      "Verified webhook events dropped by the in-process event bus.",
		}, []string{"topic"}),
		oauth: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oauth_events_total",
			Help:      "OAuth redirects and callbacks by outcome.",
		}, []string{"stage", "outcome"}),
		billing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "billing_operations_total",
			Help:      "Billing GraphQL operations by outcome.",
		}, []string{"operation", "outcome"}),
		shopifyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "shopify_request_duration_seconds",
			Help:      "Latency of outbound Shopify calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.webhooks,
		m.webhooksDropped,
		m.oauth,
		m.billing,
		m.shopifyLatency,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveWebhook(topic, outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(topic, outcome).Inc()
}

func (m *Metrics) ObserveWebhookDropped(topic string) {
	if m == nil {
		return
	}
	m.webhooksDropped.WithLabelValues(topic).Inc()
}

func (m *Metrics) ObserveOAuth(stage, outcome string) {
	if m == nil {
		return
	}
	m.oauth.WithLabelValues(stage, outcome).Inc()
}

func (m *Metrics) ObserveBilling(operation, outcome string) {
	if m == nil {
		return
	}
	m.billing.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveShopifyCall(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.shopifyLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Middleware records request counts and latency, labelled by chi route pattern
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
