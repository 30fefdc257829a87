package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"riverbank/internal/config"
)

// newTestRedis connects to RIVERBANK_TEST_REDIS_ADDR or skips the test.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("RIVERBANK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RIVERBANK_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable at %s: %v", addr, err)
	}
	return rdb
}

func TestRedisLimiter_Limit(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()

	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	prefix := "riverbank-test:" + t.Name() + ":" + time.Now().Format("150405.000000")
	l := NewRedisLimiter(rdb, PoliciesFromConfig(config.RateLimitConfig{Throw: 3}),
		WithKeyPrefix(prefix), WithRedisNow(func() time.Time { return now }))
	defer l.Close()

	for i := range 3 {
		ok, err := l.Limit(ctx, "throw:a")
		if err != nil || !ok {
			t.Fatalf("Limit() #%d = %v, %v, want allowed", i+1, ok, err)
		}
	}
	if ok, _ := l.Limit(ctx, "throw:a"); ok {
		t.Error("fourth Limit() allowed, want denied")
	}

	now = now.Add(time.Minute)
	if ok, _ := l.Limit(ctx, "throw:a"); !ok {
		t.Error("Limit() denied in the next window")
	}
}

func TestRedisLimiter_ErrorWhenUnreachable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	l := NewRedisLimiter(rdb, PoliciesFromConfig(config.RateLimitConfig{}))
	defer l.Close()

	if _, err := l.Limit(context.Background(), "throw:a"); err == nil {
		t.Error("Limit() expected error for unreachable redis")
	}
}
