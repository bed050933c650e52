package shopify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound Admin API calls with one token bucket per shop
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	logger   zerolog.Logger
}

// NewRateLimiter creates a limiter matching Shopify's standard leaky bucket
// (2 requests per second, bucket of 40).
func NewRateLimiter(logger zerolog.Logger) *RateLimiter {
	return NewRateLimiterWithLimits(2, 40, logger)
}

// NewRateLimiterWithLimits creates a limiter with a custom refill rate and burst
func NewRateLimiterWithLimits(perSecond float64, burst int, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		logger:   logger,
	}
}

func (rl *RateLimiter) limiterFor(shop string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[shop]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[shop] = limiter
	}
	return limiter
}

// Wait blocks until the shop's bucket has a token or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context, shop string) error {
	limiter := rl.limiterFor(shop)
	if limiter.Tokens() < 1 {
		rl.logger.Debug().Str("shop", shop).Msg("Outbound Shopify call throttled")
	}
	return limiter.Wait(ctx)
}
