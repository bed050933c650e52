package middleware

import (
	"net/http"

	"recently-viewed-backend/internal/domain"
)

// adminOrigin is the Shopify admin that frames embedded apps
const adminOrigin = "https://admin.shopify.com"

// SecurityHeadersMiddleware sets response hardening headers. Embedded pages may only be
// framed by the Shopify admin and the requesting shop.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Content-Security-Policy", FrameAncestors(r.URL.Query().Get("shop")))
			next.ServeHTTP(w, r)
		})
	}
}

// FrameAncestors builds the frame-ancestors policy for shop. An invalid or empty shop
// falls back to any myshopify domain.
func FrameAncestors(shop string) string {
	shop = domain.NormalizeShopDomain(shop)
	if domain.IsValidShopDomain(shop) {
		return "frame-ancestors https://" + shop + " " + adminOrigin + ";"
	}
	return "frame-ancestors https://*" + domain.ShopDomainSuffix + " " + adminOrigin + ";"
}
