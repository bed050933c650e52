package middleware

import (
	"context"
	"net/http"

	"recently-viewed-backend/internal/domain"
	shopifyinfra "recently-viewed-backend/internal/infrastructure/shopify"
	"recently-viewed-backend/internal/ports"

	"github.com/rs/zerolog"
)

type contextKey string

const sessionTokenKey contextKey = "session_token"

// RequireSessionToken admits requests carrying a valid App Bridge session token in the
// Authorization header and stores the decoded token in the request context.
func RequireSessionToken(verifier ports.SessionTokenVerifier, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := shopifyinfra.BearerToken(r.Header.Get("Authorization"))
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "Missing session token")
				return
			}

			token, err := verifier.Verify(raw)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected session token")
				writeError(w, http.StatusUnauthorized, domain.PublicMessage(err))
				return
			}

			ctx := context.WithValue(r.Context(), sessionTokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionTokenFromContext returns the token stored by RequireSessionToken
func SessionTokenFromContext(ctx context.Context) (*domain.SessionToken, bool) {
	token, ok := ctx.Value(sessionTokenKey).(*domain.SessionToken)
	return token, ok && token != nil
}
