package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether another password attempt against key is
// allowed. It returns ErrTooManyRequests once the key has used up its
// attempts for the current window.
type RateLimiter interface {
	Allow(ctx context.Context, key string) error
}

// InProcessLimiter is a fixed-window rate limiter that tracks attempt
// counts per key in memory. It is only correct for a single replica; the
// redislimit package provides the shared variant.
type InProcessLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

type counter struct {
	count    int
	windowAt time.Time
}

// NewInProcessLimiter creates a limiter allowing limit attempts per window
// for each key. A non-positive limit disables limiting.
func NewInProcessLimiter(limit int, window time.Duration) *InProcessLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &InProcessLimiter{
		limit:    limit,
		window:   window,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// Allow checks if the attempt is within the rate limit.
func (l *InProcessLimiter) Allow(_ context.Context, key string) error {
	if l.limit <= 0 {
		return nil // no limit
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowAt) >= l.window {
		// New window.
		l.counters[key] = &counter{count: 1, windowAt: now}
		l.sweep(now)
		return nil
	}

	c.count++
	if c.count > l.limit {
		return ErrTooManyRequests
	}

	return nil
}

// sweep drops expired windows so that one-off keys do not accumulate.
// Must be called with mu held.
func (l *InProcessLimiter) sweep(now time.Time) {
	if len(l.counters) < 1024 {
		return
	}
	for k, c := range l.counters {
		if now.Sub(c.windowAt) >= l.window {
			delete(l.counters, k)
		}
	}
}

// NoLimit is a RateLimiter that allows every attempt.
type NoLimit struct{}

// Allow always returns nil.
func (NoLimit) Allow(context.Context, string) error { return nil }
