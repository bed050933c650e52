package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"recently-viewed-backend/internal/domain"
)

// ComputeHMAC returns base64(HMAC-SHA256(body, secret)), the value Shopify sends in
// X-Shopify-Hmac-Sha256.
func ComputeHMAC(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC reports whether signature is the HMAC of the raw, unparsed body.
// Any empty input or a length mismatch is a failure; the comparison is constant time.
func VerifyHMAC(rawBody []byte, signature, secret string) bool {
	if len(rawBody) == 0 || signature == "" || secret == "" {
		return false
	}
	expected := ComputeHMAC(rawBody, secret)
	if len(expected) != len(signature) {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}

// WebhookVerifier checks webhook signatures against the app secret
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a verifier for secret
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// Configured reports whether a signing secret is present
func (v *WebhookVerifier) Configured() bool {
	return v.secret != ""
}

// Verify returns a SignatureError unless signature matches payload
func (v *WebhookVerifier) Verify(payload []byte, signature string) error {
	if !v.Configured() {
		return domain.NewConfigError("Webhook secret not configured", nil)
	}
	if signature == "" {
		return domain.NewSignatureError("Missing signature", nil)
	}
	if !VerifyHMAC(payload, signature, v.secret) {
		return domain.NewSignatureError("Invalid signature", nil)
	}
	return nil
}
