package shopify

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"recently-viewed-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// sessionTokenLeeway absorbs clock skew between Shopify and this host
const sessionTokenLeeway = 5 * time.Second

// SessionTokenClaims are the claims of an App Bridge session token
type SessionTokenClaims struct {
	Dest string `json:"dest"`
	Sid  string `json:"sid"`
	jwt.RegisteredClaims
}

// SessionTokenVerifier validates App Bridge session tokens signed with the app secret
type SessionTokenVerifier struct {
	apiKey    string
	apiSecret string
	now       func() time.Time
}

// NewSessionTokenVerifier creates a verifier for tokens issued to apiKey
func NewSessionTokenVerifier(apiKey, apiSecret string) *SessionTokenVerifier {
	return &SessionTokenVerifier{apiKey: apiKey, apiSecret: apiSecret, now: time.Now}
}

// Verify checks the signature, audience, lifetime and shop claims of token
func (v *SessionTokenVerifier) Verify(token string) (*domain.SessionToken, error) {
	if token == "" {
		return nil, unauthorized("Missing session token", nil)
	}

	var claims SessionTokenClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return []byte(v.apiSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.apiKey),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(sessionTokenLeeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, unauthorized("Invalid session token", err)
	}

	dest, err := url.Parse(claims.Dest)
	if err != nil || dest.Host == "" {
		return nil, unauthorized("Invalid session token destination", err)
	}
	shop := domain.NormalizeShopDomain(dest.Host)
	if !domain.IsValidShopDomain(shop) {
		return nil, unauthorized("Invalid session token destination", nil)
	}
	iss, err := url.Parse(claims.Issuer)
	if err != nil || domain.NormalizeShopDomain(iss.Host) != shop {
		return nil, unauthorized("Session token issuer does not match destination", err)
	}

	session := &domain.SessionToken{
		Shop:      shop,
		User:      claims.Subject,
		SessionID: claims.Sid,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func unauthorized(message string, cause error) error {
	return domain.NewAuthError(message, cause).WithStatus(http.StatusUnauthorized)
}
