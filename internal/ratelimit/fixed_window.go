package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// The window opens on the first hit for a key and lasts until the key expires.
// Returns {hits, remaining ttl in ms}.
var hitScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {hits, ttl}
`)

const (
	defaultPrefix = "records:ratelimit"
	redisTimeout  = 2 * time.Second
)

// Decision is the outcome of one hit against a key.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// FixedWindowLimiter counts hits per key in Redis so every replica shares one quota.
type FixedWindowLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

// NewRedisFixedWindowLimiter allows limit hits per key in each window.
func NewRedisFixedWindowLimiter(addr, password, prefix string, limit int, window time.Duration) (*FixedWindowLimiter, error) {
	if limit <= 0 || window < time.Millisecond {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &FixedWindowLimiter{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password}),
		prefix: prefix,
		limit:  limit,
		window: window,
	}, nil
}

// Hit records one request for key. When Redis cannot be reached the hit is
// rejected with a full-window RetryAfter.
func (l *FixedWindowLimiter) Hit(ctx context.Context, key string) Decision {
	denied := Decision{RetryAfter: l.window}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	res, err := hitScript.Run(ctx, l.client, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		return denied
	}
	hits, ttl := res[0], time.Duration(res[1])*time.Millisecond
	if hits > int64(l.limit) {
		return Decision{RetryAfter: ttl}
	}
	return Decision{Allowed: true, Remaining: l.limit - int(hits)}
}

// Limit is the number of hits allowed per window.
func (l *FixedWindowLimiter) Limit() int {
	return l.limit
}

// Close releases the Redis connection pool.
func (l *FixedWindowLimiter) Close() error {
	return l.client.Close()
}
