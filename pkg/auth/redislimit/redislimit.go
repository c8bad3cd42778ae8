// Package redislimit implements auth.RateLimiter on Redis so that password
// attempt budgets are shared by every replica.
package redislimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rhuss/missive/pkg/auth"
)

// DefaultPrefix namespaces limiter keys when no prefix is configured.
const DefaultPrefix = "missive:attempts"

const callTimeout = 2 * time.Second

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Limiter is a fixed-window limiter backed by Redis. Redis errors fail
// closed: the attempt is refused.
type Limiter struct {
	limit  int
	window time.Duration
	prefix string
	client *redis.Client
	now    func() time.Time
}

var _ auth.RateLimiter = (*Limiter)(nil)

// Config holds the Redis connection and window settings.
type Config struct {
	Addr     string
	Password string
	Prefix   string
	Limit    int
	Window   time.Duration
}

// New creates a Limiter and its Redis client.
func New(cfg Config) (*Limiter, error) {
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return nil, errors.New("redis limiter requires positive limit and window")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis limiter addr is required")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Limiter{
		limit:  cfg.Limit,
		window: cfg.Window,
		prefix: prefix,
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Password,
		}),
		now: time.Now,
	}, nil
}

// Allow counts one attempt against key and returns auth.ErrTooManyRequests
// once the window's budget is exceeded.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	windowMs := l.window.Milliseconds()
	slot := l.now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		slog.Warn("rate limiter unavailable, refusing attempt", "error", err)
		return auth.ErrTooManyRequests
	}
	if count > int64(l.limit) {
		return auth.ErrTooManyRequests
	}
	return nil
}

// HealthCheck pings Redis.
func (l *Limiter) HealthCheck(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (l *Limiter) Close() error {
	return l.client.Close()
}
