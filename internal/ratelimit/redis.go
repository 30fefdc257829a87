package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"riverbank/internal/riverbank"
)

// RedisLimiter counts requests in fixed windows shared by every instance.
// Each key/window pair is one counter: INCR, then EXPIRE so it vanishes with
// its window.
type RedisLimiter struct {
	rdb      redis.UniversalClient
	prefix   string
	policies Policies
	now      func() time.Time
}

// RedisOption customises a RedisLimiter.
type RedisOption func(*RedisLimiter)

func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLimiter) { l.prefix = strings.Trim(prefix, ":") }
}

func WithRedisNow(now func() time.Time) RedisOption {
	return func(l *RedisLimiter) { l.now = now }
}

func NewRedisLimiter(rdb redis.UniversalClient, policies Policies, opts ...RedisOption) *RedisLimiter {
	l := &RedisLimiter{
		rdb:      rdb,
		prefix:   "riverbank:ratelimit",
		policies: policies,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLimiter) Limit(ctx context.Context, key string) (bool, error) {
	policy := l.policies.forKey(key)
	window := policy.Window
	if window <= 0 {
		window = time.Minute
	}

	slot := l.now().UnixNano() / int64(window)
	counterKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, slot)

	pipe := l.rdb.Pipeline()
	incr := pipe.Incr(ctx, counterKey)
	pipe.Expire(ctx, counterKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("counting %s: %w", key, err)
	}

	return incr.Val() <= int64(policy.Limit), nil
}

// Close closes the underlying client.
func (l *RedisLimiter) Close() error {
	return l.rdb.Close()
}

var _ riverbank.RateLimiter = (*RedisLimiter)(nil)
