package ratelimit

import (
	"context"

	"riverbank/internal/metrics"
)

// Limiter is a closable rate limiter.
type Limiter interface {
	Limit(ctx context.Context, key string) (bool, error)
	Close() error
}

type instrumented struct {
	next    Limiter
	metrics *metrics.Metrics
}

// WithMetrics counts every decision of next by action.
func WithMetrics(next Limiter, m *metrics.Metrics) Limiter {
	if m == nil {
		return next
	}
	return &instrumented{next: next, metrics: m}
}

func (l *instrumented) Limit(ctx context.Context, key string) (bool, error) {
	allowed, err := l.next.Limit(ctx, key)
	decision := "allowed"
	switch {
	case err != nil:
		decision = "error"
	case !allowed:
		decision = "denied"
	}
	l.metrics.RateLimitDecision(actionOf(key), decision)
	return allowed, err
}

func (l *instrumented) Close() error {
	return l.next.Close()
}

type noLimit struct{}

func (noLimit) Limit(context.Context, string) (bool, error) { return true, nil }
func (noLimit) Close() error                                { return nil }
