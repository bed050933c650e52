package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"recently-viewed-backend/internal/application"
	"recently-viewed-backend/internal/application/webhook_handlers"
	"recently-viewed-backend/internal/domain"
	"recently-viewed-backend/internal/infrastructure/metrics"
	"recently-viewed-backend/internal/infrastructure/ratelimit"
	"recently-viewed-backend/internal/infrastructure/repository"
	shopifyinfra "recently-viewed-backend/internal/infrastructure/shopify"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testShop   = "foo.myshopify.com"
	testKey    = "api-key"
	testSecret = "api-secret"
)

type recordingLog struct {
	mu     sync.Mutex
	events []*domain.WebhookEvent
}

func (l *recordingLog) LogWebhook(_ context.Context, event *domain.WebhookEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(event *domain.WebhookEvent) int {
	p.topics = append(p.topics, event.Topic)
	return 1
}

type panicHandler struct{}

func (panicHandler) CanHandle(topic string) bool { return topic == "orders/create" }

func (panicHandler) Handle(context.Context, *domain.WebhookEvent) (string, error) {
	panic("handler exploded")
}

type fixture struct {
	router     http.Handler
	sessions   *repository.MemorySessionStore
	eventLog   *recordingLog
	publisher  *recordingPublisher
	graphQL    string
	tokenFails bool
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	strict bool
	secret string
	limit  int
}

func strictOAuth() fixtureOption { return func(c *fixtureConfig) { c.strict = true } }

func withSecret(secret string) fixtureOption { return func(c *fixtureConfig) { c.secret = secret } }

func withLimit(limit int) fixtureOption { return func(c *fixtureConfig) { c.limit = limit } }

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{secret: testSecret, limit: ratelimit.DefaultLimit}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{
		sessions:  repository.NewMemorySessionStore(),
		eventLog:  &recordingLog{},
		publisher: &recordingPublisher{},
	}

	shopifyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/admin/oauth/access_token":
			if f.tokenFails {
				http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"access_token":"shpat_abc","scope":"read_products,write_products"}`))
		case strings.HasSuffix(r.URL.Path, "/graphql.json"):
			assert.Equal(t, "shpat_abc", r.Header.Get("X-Shopify-Access-Token"))
			w.Write([]byte(f.graphQL))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(shopifyServer.Close)

	logger := zerolog.Nop()
	client := shopifyinfra.NewClient(testKey, testSecret, 5*time.Second, logger,
		shopifyinfra.WithBaseURL(func(string) string { return shopifyServer.URL }),
		shopifyinfra.WithRetryConfig(shopifyinfra.RetryConfig{MaxRetries: 0}),
	)

	oauth := application.NewOAuthService(
		testKey,
		[]string{"read_products", "write_products"},
		client,
		f.sessions,
		repository.NewMemoryOAuthStateStore(),
		shopifyinfra.NewCallbackVerifier(testKey, testSecret),
		logger,
		application.WithStrictCallback(cfg.strict),
	)
	billing := application.NewBillingService(client, f.sessions, domain.DefaultPlan, true, logger)

	dispatcher := application.NewWebhookDispatcher(logger)
	dispatcher.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(logger, f.sessions))
	dispatcher.RegisterHandler(webhook_handlers.NewShopUpdateHandler(logger))
	dispatcher.RegisterHandler(webhook_handlers.NewCustomerPrivacyHandler(logger))
	dispatcher.RegisterHandler(webhook_handlers.NewShopRedactHandler(logger))
	dispatcher.RegisterHandler(panicHandler{})

	m := metrics.New()
	gateway := NewWebhookGateway(
		shopifyinfra.NewWebhookVerifier(cfg.secret),
		ratelimit.NewFixedWindow(cfg.limit, ratelimit.DefaultWindow),
		dispatcher,
		f.eventLog,
		f.publisher,
		m,
		logger,
	)

	f.router = NewRouter(Dependencies{
		OAuth:          oauth,
		Billing:        billing,
		Gateway:        gateway,
		Sessions:       f.sessions,
		SessionTokens:  shopifyinfra.NewSessionTokenVerifier(testKey, testSecret),
		Metrics:        m,
		AppURL:         "https://app.example.com",
		AllowedOrigins: []string{"*"},
		Logger:         logger,
	})
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) get(target string) *httptest.ResponseRecorder {
	return f.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (f *fixture) install(t *testing.T) {
	t.Helper()
	require.NoError(t, f.sessions.Set(context.Background(), testShop, "shpat_abc", "read_products"))
}

func webhookRequest(path, topic, shop string, body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("X-Shopify-Hmac-Sha256", signature)
	}
	if shop != "" {
		req.Header.Set("X-Shopify-Shop-Domain", shop)
	}
	if topic != "" {
		req.Header.Set("X-Shopify-Topic", topic)
	}
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestRootAndNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/?shop=foo.myshopify.com")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, testShop, body["shop"])
	assert.Equal(t, "frame-ancestors https://foo.myshopify.com https://admin.shopify.com;", rec.Header().Get("Content-Security-Policy"))

	rec = f.get("/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Endpoint not found"}`, rec.Body.String())
}

func TestMetricsAndSwagger(t *testing.T) {
	f := newFixture(t)
	f.get("/health")

	rec := f.get("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recently_viewed_http_requests_total")

	rec = f.get("/swagger/doc.json")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/webhooks/{resource}/{action}"`)
}

func TestOAuthStartRedirects(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/auth?shop=foo.myshopify.com&host=xyz")

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "https://foo.myshopify.com/admin/oauth/authorize?client_id=api-key&"))
	assert.True(t, strings.HasSuffix(location, "&grant_options=%7B%22access_mode%22%3A%22offline%22%7D"))
	assert.Contains(t, location, "redirect_uri=https%3A%2F%2Fapp.example.com%2Fauth")
}

func TestOAuthRejectsInvalidShop(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/auth?shop=evil.com")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid shop parameter"}`, rec.Body.String())

	rec = f.get("/auth")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Missing shop parameter"}`, rec.Body.String())
}

func TestOAuthCallbackStoresSession(t *testing.T) {
	f := newFixture(t)
	rec := f.get("/auth?shop=foo.myshopify.com&code=abc&host=xyz")

	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?shop=foo.myshopify.com&host=xyz", rec.Header().Get("Location"))

	session, err := f.sessions.Get(context.Background(), testShop)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "shpat_abc", session.AccessToken)
	assert.Equal(t, "read_products,write_products", session.Scope)
}

func TestOAuthCallbackExchangeFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.tokenFails = true

	rec := f.get("/auth?shop=foo.myshopify.com&code=abc&host=xyz")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to complete installation","retryUrl":"/auth?shop=foo.myshopify.com&host=xyz"}`, rec.Body.String())

	session, err := f.sessions.Get(context.Background(), testShop)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestOAuthCallbackStrictRequiresSignature(t *testing.T) {
	f := newFixture(t, strictOAuth())

	rec := f.get("/auth?shop=foo.myshopify.com&code=abc&host=xyz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	session, err := f.sessions.Get(context.Background(), testShop)
	require.NoError(t, err)
	assert.Nil(t, session)
}

// signCallback appends the hmac Shopify computes over the sorted callback parameters
func signCallback(t *testing.T, params url.Values) string {
	t.Helper()
	message, err := url.QueryUnescape(params.Encode())
	require.NoError(t, err)
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(message))

	signed := url.Values{}
	for k, v := range params {
		signed[k] = v
	}
	signed.Set("hmac", hex.EncodeToString(mac.Sum(nil)))
	return signed.Encode()
}

func TestOAuthStrictRoundTrip(t *testing.T) {
	f := newFixture(t, strictOAuth())

	rec := f.get("/auth?shop=foo.myshopify.com&host=xyz")
	require.Equal(t, http.StatusFound, rec.Code)
	authURL, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.Len(t, state, 32)

	callback := signCallback(t, url.Values{
		"code":      {"abc"},
		"shop":      {testShop},
		"state":     {state},
		"host":      {"xyz"},
		"timestamp": {"1700000000"},
	})
	rec = f.get("/auth?" + callback)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/?shop=foo.myshopify.com&host=xyz", rec.Header().Get("Location"))

	session, err := f.sessions.Get(context.Background(), testShop)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "shpat_abc", session.AccessToken)

	rec = f.get("/auth?" + callback)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a state is single use")
}

func TestOAuthStrictRejectsUnknownState(t *testing.T) {
	f := newFixture(t, strictOAuth())

	callback := signCallback(t, url.Values{
		"code":  {"abc"},
		"shop":  {testShop},
		"state": {"0123456789abcdef0123456789abcdef"},
		"host":  {"xyz"},
	})
	rec := f.get("/auth?" + callback)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	session, err := f.sessions.Get(context.Background(), testShop)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestWebhookShopUpdate(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"id":1,"name":"Foo","domain":"foo.example.com"}`)
	signature := shopifyinfra.ComputeHMAC(body, testSecret)

	rec := f.do(webhookRequest("/webhooks/shop/update", domain.TopicShopUpdate, testShop, body, signature))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Shop updated successfully"}`, rec.Body.String())

	require.Len(t, f.eventLog.events, 1)
	logged := f.eventLog.events[0]
	assert.Equal(t, testShop, logged.Shop)
	assert.True(t, logged.Verified)
	assert.NotEmpty(t, logged.ID)
	assert.Equal(t, []string{domain.TopicShopUpdate}, f.publisher.topics)

	tampered := []byte(signature)
	tampered[0] ^= 0x01
	rec = f.do(webhookRequest("/webhooks/shop/update", domain.TopicShopUpdate, testShop, body, string(tampered)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid signature"}`, rec.Body.String())
	assert.Len(t, f.eventLog.events, 1, "rejected webhooks are never dispatched")
}

func TestWebhookTopicsAcknowledge(t *testing.T) {
	f := newFixture(t)
	f.install(t)

	cases := map[string]string{
		domain.TopicAppUninstalled:       "App uninstalled successfully",
		domain.TopicCustomersDataRequest: "Customer data request processed",
		domain.TopicCustomersRedact:      "Customer data redacted successfully",
		domain.TopicShopRedact:           "Shop data redacted successfully",
	}
	for topic, message := range cases {
		body := []byte(`{"shop_id":1,"shop_domain":"foo.myshopify.com"}`)
		rec := f.do(webhookRequest("/webhooks/"+topic, topic, testShop, body, shopifyinfra.ComputeHMAC(body, testSecret)))
		require.Equal(t, http.StatusOK, rec.Code, topic)
		assert.Equal(t, message, decode(t, rec)["message"], topic)
	}

	session, err := f.sessions.Get(context.Background(), testShop)
	require.NoError(t, err)
	assert.Nil(t, session, "uninstall drops the offline token")
}

func TestWebhookRejections(t *testing.T) {
	body := []byte(`{"id":1}`)
	signature := shopifyinfra.ComputeHMAC(body, testSecret)

	t.Run("missing headers", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(webhookRequest("/webhooks/shop/update", "", testShop, body, signature))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Missing required webhook headers"}`, rec.Body.String())
	})

	t.Run("missing signature is checked before hmac", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(webhookRequest("/webhooks/shop/update", domain.TopicShopUpdate, testShop, body, ""))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("secret not configured", func(t *testing.T) {
		f := newFixture(t, withSecret(""))
		rec := f.do(webhookRequest("/webhooks/shop/update", domain.TopicShopUpdate, testShop, body, signature))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Webhook secret not configured"}`, rec.Body.String())
	})

	t.Run("invalid shop header", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(webhookRequest("/webhooks/shop/update", domain.TopicShopUpdate, "evil.example.com", body, signature))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Invalid shop domain"}`, rec.Body.String())
		assert.Empty(t, f.eventLog.events)
	})

	t.Run("payload names another shop", func(t *testing.T) {
		f := newFixture(t)
		f.install(t)
		payload := []byte(`{"id":1,"myshopify_domain":"bar.myshopify.com"}`)
		rec := f.do(webhookRequest("/webhooks/app/uninstalled", domain.TopicAppUninstalled, testShop, payload, shopifyinfra.ComputeHMAC(payload, testSecret)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Shop mismatch"}`, rec.Body.String())

		session, err := f.sessions.Get(context.Background(), testShop)
		require.NoError(t, err)
		assert.NotNil(t, session, "the session survives a mismatched uninstall")
	})

	t.Run("topic mismatch", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(webhookRequest("/webhooks/shop/redact", domain.TopicShopUpdate, testShop, body, signature))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Topic mismatch"}`, rec.Body.String())
	})

	t.Run("handler panic", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(webhookRequest("/webhooks", "orders/create", testShop, body, signature))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	})

	t.Run("oversized body", func(t *testing.T) {
		f := newFixture(t)
		big := bytes.Repeat([]byte("a"), maxWebhookBody+1)
		rec := f.do(webhookRequest("/webhooks/shop/update", domain.TopicShopUpdate, testShop, big, shopifyinfra.ComputeHMAC(big, testSecret)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestWebhookRateLimit(t *testing.T) {
	f := newFixture(t, withLimit(10))
	body := []byte(`{"id":1}`)
	signature := shopifyinfra.ComputeHMAC(body, testSecret)

	for i := 0; i < 10; i++ {
		rec := f.do(webhookRequest("/webhooks/shop/update", domain.TopicShopUpdate, testShop, body, signature))
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}
	rec := f.do(webhookRequest("/webhooks/shop/update", domain.TopicShopUpdate, testShop, body, signature))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Too many requests"}`, rec.Body.String())

	rec = f.do(webhookRequest("/webhooks/shop/update", domain.TopicShopUpdate, "bar.myshopify.com", body, signature))
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per shop")
}

func TestBillingStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/api/billing/status?shop=foo.myshopify.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"hasSubscription":false,"error":"No session"}`, rec.Body.String())

	f.install(t)
	f.graphQL = `{"data":{"currentAppInstallation":{"activeSubscriptions":[
		{"id":"1","name":"Recently Viewed Products Pro","status":"ACTIVE"},
		{"id":"2","name":"Recently Viewed Products Pro","status":"CANCELLED"}]}}}`
	rec = f.get("/api/billing/status?shop=foo.myshopify.com")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["hasSubscription"])

	rec = f.get("/api/billing/status?shop=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBillingSubscribe(t *testing.T) {
	f := newFixture(t)

	rec := f.get("/api/billing/subscribe?shop=foo.myshopify.com&host=xyz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"No session"}`, rec.Body.String())

	f.install(t)
	f.graphQL = `{"data":{"appSubscriptionCreate":{"userErrors":[],"appSubscription":{"id":"gid://shopify/AppSubscription/1"},
		"confirmationUrl":"https://foo.myshopify.com/admin/charges/1/confirm"}}}`
	rec = f.get("/api/billing/subscribe?shop=foo.myshopify.com&host=xyz")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://foo.myshopify.com/admin/charges/1/confirm", rec.Header().Get("Location"))

	f.graphQL = `{"data":{"appSubscriptionCreate":{"userErrors":[{"field":["name"],"message":"Name is invalid"}]}}}`
	rec = f.get("/api/billing/subscribe?shop=foo.myshopify.com&host=xyz")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Name is invalid"}`, rec.Body.String())
}

func TestSessionEndpoints(t *testing.T) {
	f := newFixture(t)
	now := time.Now()
	claims := shopifyinfra.SessionTokenClaims{
		Dest: "https://foo.myshopify.com",
		Sid:  "sid-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://foo.myshopify.com/admin",
			Subject:   "42",
			Audience:  jwt.ClaimStrings{testKey},
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/session/validate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, testShop, body["session"].(map[string]any)["shop"])

	f.install(t)
	req = httptest.NewRequest(http.MethodGet, "/api/session/info", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, true, body["installed"])
	assert.Equal(t, "42", body["user"])

	rec = f.get("/api/session/info")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
