package api

import (
	"net/http"

	"recently-viewed-backend/internal/application"
	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/infrastructure/metrics"

	"github.com/rs/zerolog"
)

// authHandler serves GET /auth. Without a code it starts the install; with a code it
// completes it and returns the merchant to the embedded app.
func authHandler(oauth *application.OAuthService, appURL string, m *metrics.Metrics, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		query := r.URL.Query()
		shop := domain.NormalizeShopDomain(query.Get("shop"))
		host := query.Get("host")
		code := query.Get("code")

		if err := domain.ValidateShopDomain(shop); err != nil {
			m.ObserveOAuth("validate", "invalid_shop")
			writeError(w, err)
			return
		}
		base := baseURL(r, appURL)

		if code == "" {
			authURL, err := oauth.BuildAuthorizationURL(ctx, shop, host, base)
			if err != nil {
				logger.Error().Err(err).Str("shop", shop).Msg("Failed to build authorization URL")
				m.ObserveOAuth("redirect", "error")
				writeError(w, err)
				return
			}
			m.ObserveOAuth("redirect", "ok")
			http.Redirect(w, r, authURL, http.StatusFound)
			return
		}

		_, err := oauth.CompleteAuthorization(ctx, application.CallbackParams{
			Shop:    shop,
			Code:    code,
			State:   query.Get("state"),
			Host:    host,
			BaseURL: base,
			URL:     r.URL,
		})
		if err != nil {
			m.ObserveOAuth("callback", "error")
			status := domain.HTTPStatus(err)
			if status == http.StatusInternalServerError && !domain.IsKind(err, domain.KindConfig) {
				logger.Error().Err(err).Str("shop", shop).Msg("Failed to complete installation")
				writeJSON(w, status, map[string]string{
					"error":    "Failed to complete installation",
					"retryUrl": "/auth?" + shopQuery(shop, host),
				})
				return
			}
			writeError(w, err)
			return
		}

		m.ObserveOAuth("callback", "ok")
		http.Redirect(w, r, "/?"+shopQuery(shop, host), http.StatusFound)
	}
}
