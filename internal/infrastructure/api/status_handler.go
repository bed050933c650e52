package api

import (
	"net/http"
	"time"

	"recently-viewed-backend/internal/domain"
)

var endpoints = map[string]string{
	"/health":                          "Health check endpoint",
	"/auth":                            "Auth endpoint for Shopify OAuth",
	"/api/billing/status":              "Subscription status",
	"/api/billing/subscribe":           "Start a subscription",
	"/api/session/validate":            "Validate an App Bridge session token",
	"/api/session/info":                "Session details for the current shop",
	"/webhooks/app/uninstalled":        "APP_UNINSTALLED webhook",
	"/webhooks/shop/update":            "SHOP_UPDATE webhook",
	"/webhooks/customers/data_request": "CUSTOMERS_DATA_REQUEST webhook",
	"/webhooks/customers/redact":       "CUSTOMERS_REDACT webhook",
	"/webhooks/shop/redact":            "SHOP_REDACT webhook",
	"/metrics":                         "Prometheus metrics",
	"/swagger/index.html":              "API documentation",
}

func healthHandler(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":    "healthy",
			"timestamp": now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// rootHandler reports service status. Opened from the admin it echoes the shop.
func rootHandler(now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"message":   "Recently Viewed Products Pro",
			"status":    "running",
			"timestamp": now().UTC().Format(time.RFC3339Nano),
			"endpoints": endpoints,
		}
		if shop := domain.NormalizeShopDomain(r.URL.Query().Get("shop")); domain.IsValidShopDomain(shop) {
			body["shop"] = shop
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeErrorMessage(w, http.StatusNotFound, "Endpoint not found")
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
}
