package ratelimit

import (
	"context"
	"time"

	"recently-viewed-backend/internal/ports"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "rvp:webhook_rate:"

// admitScript increments the shop's counter and gives it the window's expiry whenever it
// has none, so a key can never outlive its window.
var admitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RedisFixedWindow shares webhook admission counters across instances. The counter
// and its expiry are updated in one script, so the key vanishes when the window ends.
type RedisFixedWindow struct {
	store  redis.Scripter
	limit  int64
	window time.Duration
	logger zerolog.Logger
}

// NewRedisFixedWindow creates a distributed limiter over client
func NewRedisFixedWindow(client redis.Cmdable, limit int, window time.Duration, logger zerolog.Logger) *RedisFixedWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisFixedWindow{store: client, limit: int64(limit), window: window, logger: logger}
}

var _ ports.WebhookRateLimiter = (*RedisFixedWindow)(nil)

// Admit counts the request in the shop's current window. It admits the request when
// Redis is unavailable.
func (l *RedisFixedWindow) Admit(ctx context.Context, shop string) bool {
	key := keyPrefix + shop
	count, err := admitScript.Run(ctx, l.store, []string{key}, l.window.Milliseconds()).Int64()
	if err != nil {
		l.logger.Warn().Err(err).Str("shop", shop).Msg("Rate limiter unavailable, admitting webhook")
		return true
	}
	return count <= l.limit
}
