package riverbank

import "context"

// Action namespaces rate limit keys.
type Action string

const (
	ActionThrow         Action = "throw"
	ActionReport        Action = "report"
	ActionReact         Action = "react"
	ActionFalsePositive Action = "false-positive"
)

// RateLimiter answers whether the caller behind key may proceed.
// Keys have the form "<action>:<origin>".
type RateLimiter interface {
	Limit(ctx context.Context, key string) (bool, error)
}

// RateLimitKey builds the limiter key for an action performed by origin.
func RateLimitKey(action Action, origin string) string {
	return string(action) + ":" + origin
}

// NoLimit allows every request.
type NoLimit struct{}

func (NoLimit) Limit(context.Context, string) (bool, error) { return true, nil }
