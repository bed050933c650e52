package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/ports"

	"github.com/rs/zerolog"
)

// DefaultAPIVersion is the Admin API version used when none is configured
const DefaultAPIVersion = "2024-01"

// maxErrorBody caps how much of an error response is kept for diagnostics
const maxErrorBody = 4 << 10

type client struct {
	apiKey      string
	apiSecret   string
	apiVersion  string
	httpClient  *http.Client
	baseURL     func(shop string) string
	rateLimiter *RateLimiter
	retryConfig RetryConfig
	observe     func(operation string, elapsed time.Duration)
	logger      zerolog.Logger
}

// Option customizes the client
type Option func(*client)

// WithHTTPClient replaces the HTTP client used for outbound calls
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL overrides how a shop domain is turned into a base URL
func WithBaseURL(fn func(shop string) string) Option {
	return func(c *client) {
		c.baseURL = fn
	}
}

// WithAPIVersion sets the Admin API version
func WithAPIVersion(version string) Option {
	return func(c *client) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithRateLimiter throttles outbound GraphQL calls per shop
func WithRateLimiter(rateLimiter *RateLimiter) Option {
	return func(c *client) {
		c.rateLimiter = rateLimiter
	}
}

// WithRetryConfig sets the retry policy for GraphQL calls
func WithRetryConfig(retryConfig RetryConfig) Option {
	return func(c *client) {
		c.retryConfig = retryConfig
	}
}

// WithCallObserver reports the latency of every outbound call
func WithCallObserver(observe func(operation string, elapsed time.Duration)) Option {
	return func(c *client) {
		c.observe = observe
	}
}

// NewClient creates a Shopify Admin API client. Every call is bounded by timeout.
func NewClient(apiKey, apiSecret string, timeout time.Duration, logger zerolog.Logger, opts ...Option) ports.ShopifyClient {
	c := &client{
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		apiVersion:  DefaultAPIVersion,
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     shopBaseURL,
		retryConfig: DefaultRetryConfig(),
		logger:      logger.With().Str("component", "shopify_client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func shopBaseURL(shop string) string {
	return "https://" + shop
}

func (c *client) Configured() bool {
	return c.apiKey != "" && c.apiSecret != ""
}

func (c *client) observeSince(operation string, start time.Time) {
	if c.observe != nil {
		c.observe(operation, time.Since(start))
	}
}

// ExchangeToken posts the app credentials and the authorization code to the shop's
// token endpoint.
func (c *client) ExchangeToken(ctx context.Context, shop, code string) (*ports.TokenResponse, error) {
	if !c.Configured() {
		return nil, domain.NewConfigError("Shopify API credentials are not configured", nil)
	}

	body, err := json.Marshal(map[string]string{
		"client_id":     c.apiKey,
		"client_secret": c.apiSecret,
		"code":          code,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}

	tokenURL := c.baseURL(shop) + "/admin/oauth/access_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	defer c.observeSince("token_exchange", time.Now())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("failed to exchange token: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var tokenResponse ports.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return nil, errors.New("token response did not include access_token")
	}

	c.logger.Info().
		Str("shop", shop).
		Str("scope", tokenResponse.Scope).
		Msg("Exchanged authorization code for access token")

	return &tokenResponse, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GraphQL executes document against the shop's Admin GraphQL endpoint. Only responses
// that guarantee the operation did not run (throttled, gateway errors) are retried, so
// mutations are never applied twice.
func (c *client) GraphQL(ctx context.Context, shop, accessToken, document string, variables map[string]any) (*ports.GraphQLResponse, error) {
	body, err := json.Marshal(graphQLRequest{Query: document, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to encode graphql request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/admin/api/%s/graphql.json", c.baseURL(shop), c.apiVersion)

	var out *ports.GraphQLResponse
	err = retryWithBackoff(ctx, c.retryConfig, c.logger.With().Str("shop", shop).Logger(), func() (bool, error) {
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx, shop); err != nil {
				return false, fmt.Errorf("failed to wait for rate limiter: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return false, fmt.Errorf("failed to create graphql request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Shopify-Access-Token", accessToken)

		defer c.observeSince("graphql", time.Now())
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return false, fmt.Errorf("failed to execute graphql request: %w", err)
		}
		defer resp.Body.Close()

		if retryableStatus(resp.StatusCode) {
			return true, fmt.Errorf("graphql request failed: status %d", resp.StatusCode)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return false, fmt.Errorf("graphql request failed: status %d, body: %s", resp.StatusCode, string(bodyBytes))
		}

		var envelope ports.GraphQLResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return false, fmt.Errorf("failed to decode graphql response: %w", err)
		}
		out = &envelope
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
