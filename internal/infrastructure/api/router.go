package api

import (
	"net/http"
	"time"

	"recently-viewed-backend/docs"
	"recently-viewed-backend/internal/application"
	"recently-viewed-backend/internal/infrastructure/metrics"
	securitymiddleware "recently-viewed-backend/internal/infrastructure/middleware"
	"recently-viewed-backend/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// Dependencies are the services the HTTP layer is built from
type Dependencies struct {
	OAuth          *application.OAuthService
	Billing        *application.BillingService
	Gateway        *WebhookGateway
	Sessions       ports.SessionStore
	SessionTokens  ports.SessionTokenVerifier
	Metrics        *metrics.Metrics
	AppURL         string
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter wires every route and middleware
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	now := time.Now

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(deps.Metrics.Middleware)
	r.Use(securitymiddleware.AuditLoggingMiddleware(logger))
	r.Use(securitymiddleware.Recoverer(logger))
	r.Use(securitymiddleware.SecurityHeadersMiddleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Shopify-Hmac-Sha256",
			"X-Shopify-Shop-Domain",
			"X-Shopify-Topic",
		},
		MaxAge: 300,
	}))

	r.NotFound(notFoundHandler)
	r.MethodNotAllowed(methodNotAllowedHandler)

	// Public routes
	r.Get("/health", healthHandler(now))
	r.Get("/", rootHandler(now))
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Get("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(docs.SwaggerJSON)
	})
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// OAuth
	r.Get("/auth", authHandler(deps.OAuth, deps.AppURL, deps.Metrics, logger))

	// Billing
	r.Get("/api/billing/status", billingStatusHandler(deps.Billing, deps.Metrics))
	r.Get("/api/billing/subscribe", billingSubscribeHandler(deps.Billing, deps.AppURL, deps.Metrics, logger))

	// App Bridge session tokens
	if deps.SessionTokens != nil {
		r.Route("/api/session", func(r chi.Router) {
			r.Use(securitymiddleware.RequireSessionToken(deps.SessionTokens, logger))
			r.Get("/validate", sessionValidateHandler())
			r.Get("/info", sessionInfoHandler(deps.Sessions, logger))
		})
	}

	// Webhooks: POST /webhooks/{resource}/{action}, plus a generic endpoint routed by header
	r.Post("/webhooks", deps.Gateway.ServeHTTP)
	r.Post("/webhooks/{resource}/{action}", deps.Gateway.ServeHTTP)
	r.Post("/api/webhooks/{resource}/{action}", deps.Gateway.ServeHTTP)

	return r
}
