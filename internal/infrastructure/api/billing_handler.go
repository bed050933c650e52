package api

import (
	"net/http"

	"recently-viewed-backend/internal/application"
	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/infrastructure/metrics"

	"github.com/rs/zerolog"
)

// billingStatusHandler serves GET /api/billing/status. Lookup failures are reported in
// the body with a 200 so the admin UI can render them.
func billingStatusHandler(billing *application.BillingService, m *metrics.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shop := domain.NormalizeShopDomain(r.URL.Query().Get("shop"))
		if err := domain.ValidateShopDomain(shop); err != nil {
			writeError(w, err)
			return
		}

		status := billing.GetSubscriptionStatus(r.Context(), shop)
		outcome := "ok"
		if status.Error != "" {
			outcome = "error"
		}
		m.ObserveBilling("status", outcome)
		writeJSON(w, http.StatusOK, status)
	}
}

// billingSubscribeHandler serves GET /api/billing/subscribe and sends the merchant to
// Shopify's charge confirmation page.
func billingSubscribeHandler(billing *application.BillingService, appURL string, m *metrics.Metrics, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		shop := domain.NormalizeShopDomain(query.Get("shop"))
		if err := domain.ValidateShopDomain(shop); err != nil {
			writeError(w, err)
			return
		}

		returnURL := baseURL(r, appURL) + "/?" + shopQuery(shop, query.Get("host"))
		confirmation, err := billing.CreateSubscription(r.Context(), shop, returnURL)
		if err != nil {
			m.ObserveBilling("subscribe", "error")
			logger.Error().Err(err).Str("shop", shop).Msg("Failed to create subscription")
			writeError(w, err)
			return
		}

		m.ObserveBilling("subscribe", "ok")
		http.Redirect(w, r, confirmation.ConfirmationURL, http.StatusFound)
	}
}
