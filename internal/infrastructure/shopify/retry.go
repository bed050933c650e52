package shopify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RetryConfig controls retries of throttled or failed Admin API calls
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the retry policy used for GraphQL calls
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     4 * time.Second,
	}
}

// retryWithBackoff runs fn until it succeeds, reports a non-retryable error, runs out of
// attempts or ctx is done. Backoff doubles after each attempt up to MaxBackoff.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, logger zerolog.Logger, fn func() (retryable bool, err error)) error {
	backoff := cfg.InitialBackoff
	for attempt := 0; ; attempt++ {
		retryable, err := fn()
		if err == nil || !retryable || attempt >= cfg.MaxRetries {
			return err
		}

		logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Retrying Shopify API call")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		backoff *= 2
		if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
}
