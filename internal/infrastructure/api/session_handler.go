package api

import (
	"net/http"
	"time"

	"recently-viewed-backend/internal/infrastructure/middleware"
	"recently-viewed-backend/internal/ports"

	"github.com/rs/zerolog"
)

type sessionView struct {
	Shop      string    `json:"shop"`
	User      string    `json:"user,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// sessionValidateHandler serves GET /api/session/validate behind RequireSessionToken
func sessionValidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := middleware.SessionTokenFromContext(r.Context())
		if !ok {
			writeErrorMessage(w, http.StatusUnauthorized, "Missing session token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"valid": true,
			"session": sessionView{
				Shop:      token.Shop,
				User:      token.User,
				SessionID: token.SessionID,
				IssuedAt:  token.IssuedAt,
				ExpiresAt: token.ExpiresAt,
			},
		})
	}
}

// sessionInfoHandler serves GET /api/session/info: the decoded token plus whether the
// shop has completed the offline install.
func sessionInfoHandler(sessions ports.SessionStore, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := middleware.SessionTokenFromContext(r.Context())
		if !ok {
			writeErrorMessage(w, http.StatusUnauthorized, "Missing session token")
			return
		}

		session, err := sessions.Get(r.Context(), token.Shop)
		if err != nil {
			logger.Error().Err(err).Str("shop", token.Shop).Msg("Failed to load session")
			writeErrorMessage(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		info := map[string]any{
			"shop":      token.Shop,
			"user":      token.User,
			"sessionId": token.SessionID,
			"installed": session != nil,
		}
		if session != nil {
			info["scope"] = session.Scope
			info["installedAt"] = session.UpdatedAt
		}
		writeJSON(w, http.StatusOK, info)
	}
}
