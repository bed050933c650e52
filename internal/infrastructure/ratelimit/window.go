package ratelimit

import (
	"context"
	"sync"
	"time"

	"recently-viewed-backend/internal/ports"
)

// Defaults bound webhook admission to 10 requests per shop per minute
const (
	DefaultLimit  = 10
	DefaultWindow = 60 * time.Second
)

type counter struct {
	count     int
	resetTime time.Time
}

// FixedWindow admits at most limit requests per shop in each window. A window opens on
// a shop's first request and resets once now is past its reset time.
type FixedWindow struct {
	mu       sync.Mutex
	counters map[string]*counter
	limit    int
	window   time.Duration
	now      func() time.Time
}

// NewFixedWindow creates a limiter. Non-positive arguments fall back to the defaults.
func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &FixedWindow{
		counters: make(map[string]*counter),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// WithClock replaces the time source
func (l *FixedWindow) WithClock(now func() time.Time) *FixedWindow {
	l.now = now
	return l
}

var _ ports.WebhookRateLimiter = (*FixedWindow)(nil)

// Admit records a request for shop and reports whether it is within the limit
func (l *FixedWindow) Admit(_ context.Context, shop string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[shop]
	if !ok {
		c = &counter{resetTime: now.Add(l.window)}
		l.counters[shop] = c
	}

	if now.After(c.resetTime) {
		c.count = 1
		c.resetTime = now.Add(l.window)
		return true
	}
	if c.count >= l.limit {
		return false
	}
	c.count++
	return true
}

// Prune drops counters whose window has ended
func (l *FixedWindow) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for shop, c := range l.counters {
		if now.After(c.resetTime) {
			delete(l.counters, shop)
			removed++
		}
	}
	return removed
}

// RunPruner prunes expired counters every interval until ctx is done
func (l *FixedWindow) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Prune()
		}
	}
}
