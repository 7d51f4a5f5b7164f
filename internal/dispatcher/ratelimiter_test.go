package dispatcher

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRateLimiter(t *testing.T) *RateLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRateLimiter(client, testLogger())
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl := setupRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !rl.Allow(ctx, "wh-1", 5) {
			t.Errorf("request %d should be allowed within limit", i+1)
		}
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := setupRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rl.Allow(ctx, "wh-1", 3)
	}
	if rl.Allow(ctx, "wh-1", 3) {
		t.Error("request over the limit should be blocked")
	}
}

func TestRateLimiter_ZeroLimitAllowsAll(t *testing.T) {
	rl := setupRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if !rl.Allow(ctx, "wh-1", 0) {
			t.Fatal("zero limit must disable limiting")
		}
	}
}

func TestRateLimiter_WebhooksAreIsolated(t *testing.T) {
	rl := setupRateLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		rl.Allow(ctx, "wh-1", 2)
	}
	if rl.Allow(ctx, "wh-1", 2) {
		t.Error("wh-1 should be exhausted")
	}
	if !rl.Allow(ctx, "wh-2", 2) {
		t.Error("wh-2 should have its own window")
	}
}
