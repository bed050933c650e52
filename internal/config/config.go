package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"recently-viewed-backend/internal/domain"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Session store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
)

// Config is the process configuration, read from the environment
type Config struct {
	Port string `envconfig:"PORT" default:"8080"`

	APIKey      string        `envconfig:"SHOPIFY_API_KEY"`
	APISecret   string        `envconfig:"SHOPIFY_API_SECRET"`
	Scopes      string        `envconfig:"SHOPIFY_SCOPES" default:"read_products,read_themes,write_products,write_themes"`
	AppURL      string        `envconfig:"SHOPIFY_APP_URL"`
	APIVersion  string        `envconfig:"SHOPIFY_API_VERSION" default:"2024-01"`
	OAuthStrict bool          `envconfig:"SHOPIFY_OAUTH_STRICT" default:"true"`
	BillingTest bool          `envconfig:"SHOPIFY_BILLING_TEST" default:"false"`
	HTTPTimeout time.Duration `envconfig:"SHOPIFY_HTTP_TIMEOUT" default:"15s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	SessionStore   string `envconfig:"SESSION_STORE" default:"memory"`
	RedisURL       string `envconfig:"REDIS_URL"`
	MongoURI       string `envconfig:"MONGODB_URI"`
	MongoDatabase  string `envconfig:"MONGODB_DATABASE" default:"recently_viewed"`
	EncryptionKey  string `envconfig:"ENCRYPTION_KEY"`
	RateLimitStore string `envconfig:"RATE_LIMIT_BACKEND" default:"memory"`

	WebhookRateLimit  int           `envconfig:"WEBHOOK_RATE_LIMIT" default:"10"`
	WebhookRateWindow time.Duration `envconfig:"WEBHOOK_RATE_WINDOW" default:"60s"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load reads an optional .env file and decodes the environment into a validated Config.
// The returned bool reports whether a .env file was loaded.
func Load() (*Config, bool, error) {
	loaded := godotenv.Load() == nil

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, loaded, domain.NewConfigError("invalid environment", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, loaded, err
	}
	return &cfg, loaded, nil
}

// Validate enforces the fail-closed rules: the process must not start without
// credentials, since the API secret also signs every webhook.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return domain.NewConfigError("SHOPIFY_API_KEY is required", nil)
	}
	if strings.TrimSpace(c.APISecret) == "" {
		return domain.NewConfigError("SHOPIFY_API_SECRET is required", nil)
	}
	if c.HTTPTimeout < time.Second || c.HTTPTimeout > 30*time.Second {
		return domain.NewConfigError(fmt.Sprintf("SHOPIFY_HTTP_TIMEOUT must be between 1s and 30s, got %s", c.HTTPTimeout), nil)
	}
	switch c.SessionStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return domain.NewConfigError("REDIS_URL is required when SESSION_STORE=redis", nil)
		}
	case StoreMongo:
		if c.MongoURI == "" {
			return domain.NewConfigError("MONGODB_URI is required when SESSION_STORE=mongo", nil)
		}
	default:
		return domain.NewConfigError(fmt.Sprintf("unknown SESSION_STORE %q", c.SessionStore), nil)
	}
	switch c.RateLimitStore {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			return domain.NewConfigError("REDIS_URL is required when RATE_LIMIT_BACKEND=redis", nil)
		}
	default:
		return domain.NewConfigError(fmt.Sprintf("unknown RATE_LIMIT_BACKEND %q", c.RateLimitStore), nil)
	}
	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return domain.NewConfigError("ENCRYPTION_KEY must be 64 hex characters", err)
		}
	}
	if c.WebhookRateLimit <= 0 || c.WebhookRateWindow <= 0 {
		return domain.NewConfigError("webhook rate limit and window must be positive", nil)
	}
	return nil
}

// ScopeList splits the comma-separated scope string
func (c *Config) ScopeList() []string {
	var scopes []string
	for _, scope := range strings.Split(c.Scopes, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.SessionStore == StoreRedis || c.RateLimitStore == StoreRedis
}
