package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"riverbank/internal/config"
)

// NewLimiterFromConfig creates a Limiter based on the rate limit config type.
// password authenticates against redis and comes from the environment.
func NewLimiterFromConfig(ctx context.Context, cfg config.RateLimitConfig, password string) (Limiter, error) {
	policies := PoliciesFromConfig(cfg)

	switch cfg.Type {
	case "memory":
		return NewMemoryLimiter(policies), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis_addr required for redis rate limiter")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: password,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		var opts []RedisOption
		if cfg.RedisPrefix != "" {
			opts = append(opts, WithKeyPrefix(cfg.RedisPrefix))
		}
		return NewRedisLimiter(rdb, policies, opts...), nil
	case "none":
		return noLimit{}, nil
	default:
		return nil, fmt.Errorf("unknown rate limit type: %s", cfg.Type)
	}
}
