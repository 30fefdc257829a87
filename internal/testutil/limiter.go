package testutil

import (
	"context"
	"sync"

	"riverbank/internal/riverbank"
)

// StubLimiter allows each key up to Allow times, then denies it.
// A zero Allow never limits. Err, when set, is returned from every call.
type StubLimiter struct {
	Allow int
	Err   error

	mu     sync.Mutex
	counts map[string]int
}

func NewStubLimiter(allow int) *StubLimiter {
	return &StubLimiter{Allow: allow}
}

func (l *StubLimiter) Limit(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[key]++
	if l.Err != nil {
		return false, l.Err
	}
	return l.Allow == 0 || l.counts[key] <= l.Allow, nil
}

// Hits returns how many times key was checked.
func (l *StubLimiter) Hits(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[key]
}

var _ riverbank.RateLimiter = (*StubLimiter)(nil)
