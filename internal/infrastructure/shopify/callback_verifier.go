package shopify

import (
	"net/url"

	"recently-viewed-backend/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// CallbackVerifier checks the hmac query parameter Shopify appends to the OAuth callback
type CallbackVerifier struct {
	app goshopify.App
}

// NewCallbackVerifier creates a verifier for the app's credentials
func NewCallbackVerifier(apiKey, apiSecret string) *CallbackVerifier {
	return &CallbackVerifier{app: goshopify.App{ApiKey: apiKey, ApiSecret: apiSecret}}
}

// Verify returns a SignatureError unless the callback URL was signed with the app secret
func (v *CallbackVerifier) Verify(callback *url.URL) error {
	if callback.Query().Get("hmac") == "" {
		return domain.NewSignatureError("Missing callback signature", nil)
	}
	ok, err := v.app.VerifyAuthorizationURL(callback)
	if err != nil {
		return domain.NewSignatureError("Invalid callback signature", err)
	}
	if !ok {
		return domain.NewSignatureError("Invalid callback signature", nil)
	}
	return nil
}
