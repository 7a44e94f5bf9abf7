package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(srv.Addr(), "", "test:ratelimit", limit, window)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter, srv
}

func TestFixedWindowLimiterQuota(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2, time.Minute)
	ctx := context.Background()

	if d := limiter.Hit(ctx, "create|198.51.100.1"); !d.Allowed || d.Remaining != 1 {
		t.Fatalf("first hit = %+v, want allowed with 1 remaining", d)
	}
	if d := limiter.Hit(ctx, "create|198.51.100.1"); !d.Allowed || d.Remaining != 0 {
		t.Fatalf("second hit = %+v, want allowed with 0 remaining", d)
	}
	d := limiter.Hit(ctx, "create|198.51.100.1")
	if d.Allowed {
		t.Fatalf("third hit should be rejected")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > time.Minute {
		t.Fatalf("retry after = %v, want within (0, 1m]", d.RetryAfter)
	}
	if d := limiter.Hit(ctx, "create|198.51.100.2"); !d.Allowed {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestFixedWindowLimiterWindowResets(t *testing.T) {
	limiter, srv := newTestLimiter(t, 1, time.Second)
	ctx := context.Background()

	if !limiter.Hit(ctx, "k").Allowed {
		t.Fatalf("first hit should pass")
	}
	if limiter.Hit(ctx, "k").Allowed {
		t.Fatalf("second hit in the same window should be rejected")
	}
	srv.FastForward(2 * time.Second)
	if !limiter.Hit(ctx, "k").Allowed {
		t.Fatalf("hit after the window expired should pass")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	limiter, srv := newTestLimiter(t, 1, time.Second)
	srv.Close()
	d := limiter.Hit(context.Background(), "k")
	if d.Allowed {
		t.Fatalf("limiter should fail closed on redis errors")
	}
	if d.RetryAfter != time.Second {
		t.Fatalf("retry after = %v, want full window", d.RetryAfter)
	}
}

func TestNewRedisFixedWindowLimiterValidation(t *testing.T) {
	if _, err := NewRedisFixedWindowLimiter("", "", "p", 1, time.Second); err == nil {
		t.Fatalf("expected error for empty redis addr")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "", 1, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
}
