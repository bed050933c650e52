package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/ports"

	"github.com/rs/zerolog"
)

// offlineGrantOptions requests a non-expiring offline token
const offlineGrantOptions = `{"access_mode":"offline"}`

// CallbackParams carries the query of an OAuth callback request
type CallbackParams struct {
	Shop    string
	Code    string
	State   string
	Host    string
	BaseURL string
	// URL is the full callback URL, used for HMAC verification
	URL *url.URL
}

// OAuthService drives the offline-token install flow
type OAuthService struct {
	apiKey           string
	scopes           []string
	client           ports.ShopifyClient
	sessions         ports.SessionStore
	states           ports.OAuthStateStore
	callbackVerifier ports.CallbackVerifier
	webhooks         *WebhookManager
	strict           bool
	random           io.Reader
	now              func() time.Time
	logger           zerolog.Logger
}

// OAuthOption customizes the OAuth service
type OAuthOption func(*OAuthService)

// WithStrictCallback toggles callback HMAC and state verification
func WithStrictCallback(strict bool) OAuthOption {
	return func(s *OAuthService) {
		s.strict = strict
	}
}

// WithWebhookManager registers lifecycle webhooks after each install
func WithWebhookManager(manager *WebhookManager) OAuthOption {
	return func(s *OAuthService) {
		s.webhooks = manager
	}
}

// WithRandom replaces the source of state and nonce bytes
func WithRandom(r io.Reader) OAuthOption {
	return func(s *OAuthService) {
		s.random = r
	}
}

// WithOAuthClock replaces the clock used for state expiry
func WithOAuthClock(now func() time.Time) OAuthOption {
	return func(s *OAuthService) {
		s.now = now
	}
}

// NewOAuthService creates the OAuth service. Strict callback verification is on by default.
func NewOAuthService(
	apiKey string,
	scopes []string,
	client ports.ShopifyClient,
	sessions ports.SessionStore,
	states ports.OAuthStateStore,
	callbackVerifier ports.CallbackVerifier,
	logger zerolog.Logger,
	opts ...OAuthOption,
) *OAuthService {
	s := &OAuthService{
		apiKey:           apiKey,
		scopes:           scopes,
		client:           client,
		sessions:         sessions,
		states:           states,
		callbackVerifier: callbackVerifier,
		strict:           true,
		random:           rand.Reader,
		now:              time.Now,
		logger:           logger.With().Str("component", "oauth_service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strict reports whether callbacks must carry a valid HMAC and state
func (s *OAuthService) Strict() bool {
	return s.strict
}

// BuildAuthorizationURL returns the shop's consent URL and records the state it carries
func (s *OAuthService) BuildAuthorizationURL(ctx context.Context, shop, host, baseURL string) (string, error) {
	shop = domain.NormalizeShopDomain(shop)
	if err := domain.ValidateShopDomain(shop); err != nil {
		return "", err
	}
	if s.apiKey == "" || !s.client.Configured() {
		return "", domain.NewConfigError("Shopify API credentials are not configured", nil)
	}

	state, err := s.randomHex(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	nonce, err := s.randomHex(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	if s.states != nil {
		now := s.now()
		if err := s.states.Save(ctx, &domain.OAuthState{
			State:     state,
			Nonce:     nonce,
			Shop:      shop,
			Host:      host,
			ExpiresAt: now.Add(domain.OAuthStateTTL),
			CreatedAt: now,
		}); err != nil {
			return "", fmt.Errorf("failed to save oauth state: %w", err)
		}
	}

	params := [][2]string{
		{"client_id", s.apiKey},
		{"scope", strings.Join(s.scopes, ",")},
		{"redirect_uri", strings.TrimRight(baseURL, "/") + "/auth"},
		{"state", state},
		{"nonce", nonce},
		{"grant_options", offlineGrantOptions},
	}
	var query strings.Builder
	for i, p := range params {
		if i > 0 {
			query.WriteByte('&')
		}
		query.WriteString(p[0] + "=" + url.QueryEscape(p[1]))
	}

	s.logger.Info().Str("shop", shop).Msg("Redirecting to Shopify authorization")

	return "https://" + shop + "/admin/oauth/authorize?" + query.String(), nil
}

// CompleteAuthorization verifies a callback and exchanges its code for an offline token
func (s *OAuthService) CompleteAuthorization(ctx context.Context, params CallbackParams) (*domain.Session, error) {
	shop := domain.NormalizeShopDomain(params.Shop)
	if err := domain.ValidateShopDomain(shop); err != nil {
		return nil, err
	}
	if params.Code == "" {
		return nil, domain.NewAuthError("Missing code parameter", nil)
	}

	if s.strict {
		if err := s.verifyCallback(ctx, shop, params); err != nil {
			s.logger.Warn().Err(err).Str("shop", shop).Msg("Rejected OAuth callback")
			return nil, err
		}
	}

	session, err := s.ExchangeCode(ctx, shop, params.Code)
	if err != nil {
		return nil, err
	}

	if s.webhooks != nil && params.BaseURL != "" {
		s.webhooks.EnsureSubscriptionsAsync(ctx, shop, session.AccessToken, params.BaseURL)
	}
	return session, nil
}

func (s *OAuthService) verifyCallback(ctx context.Context, shop string, params CallbackParams) error {
	if s.callbackVerifier != nil {
		if params.URL == nil {
			return domain.NewAuthError("Invalid callback signature", nil).WithStatus(http.StatusUnauthorized)
		}
		if err := s.callbackVerifier.Verify(params.URL); err != nil {
			return domain.NewAuthError("Invalid callback signature", err).WithStatus(http.StatusUnauthorized)
		}
	}

	if s.states == nil {
		return nil
	}
	if params.State == "" {
		return domain.NewAuthError("Missing state parameter", nil).WithStatus(http.StatusUnauthorized)
	}
	saved, err := s.states.Consume(ctx, params.State)
	if err != nil {
		return fmt.Errorf("failed to consume oauth state: %w", err)
	}
	if saved == nil || saved.Expired(s.now()) || saved.Shop != shop {
		return domain.NewAuthError("Invalid or expired state", nil).WithStatus(http.StatusUnauthorized)
	}
	return nil
}

// ExchangeCode trades code for an offline token and persists it as the shop's session
func (s *OAuthService) ExchangeCode(ctx context.Context, shop, code string) (*domain.Session, error) {
	shop = domain.NormalizeShopDomain(shop)
	if err := domain.ValidateShopDomain(shop); err != nil {
		return nil, err
	}

	token, err := s.client.ExchangeToken(ctx, shop, code)
	if err != nil {
		if domain.IsKind(err, domain.KindConfig) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("shop", shop).Msg("Token exchange failed")
		return nil, domain.NewAuthError("Failed to complete installation", err).WithStatus(http.StatusInternalServerError)
	}

	if err := s.sessions.Set(ctx, shop, token.AccessToken, token.Scope); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	session, err := s.sessions.Get(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session for %s missing after store", shop)
	}

	s.logger.Info().Str("shop", shop).Str("scope", token.Scope).Msg("App installed")
	return session, nil
}

func (s *OAuthService) randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
