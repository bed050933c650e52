package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"recently-viewed-backend/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps a classified error to its status and public message
func writeError(w http.ResponseWriter, err error) {
	writeErrorMessage(w, domain.HTTPStatus(err), domain.PublicMessage(err))
}

// baseURL is the app's external origin: the configured app URL, or the origin the
// request arrived on.
func baseURL(r *http.Request, configured string) string {
	if configured != "" {
		return strings.TrimRight(configured, "/")
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host
}

// shopQuery encodes shop and host in the order Shopify sends them
func shopQuery(shop, host string) string {
	return "shop=" + url.QueryEscape(shop) + "&host=" + url.QueryEscape(host)
}
