package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"riverbank/internal/riverbank"
)

// MemoryLimiter keeps a token bucket per key in process memory.
// Buckets refill at Limit tokens per Window with a burst of Limit.
// Idle buckets are dropped by the janitor.
type MemoryLimiter struct {
	mu           sync.Mutex
	entries      map[string]*memoryEntry
	policies     Policies
	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time

	stop chan struct{}
	once sync.Once
}

type memoryEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// MemoryOption customises a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

func WithIdleTTL(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) { l.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) { l.cleanupEvery = d }
}

// WithNow replaces the time source, for tests.
func WithNow(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// NewMemoryLimiter creates a limiter and starts its janitor.
// Call Close to stop the janitor.
func NewMemoryLimiter(policies Policies, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		entries:      make(map[string]*memoryEntry),
		policies:     policies,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
		stop:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.startJanitor()
	return l
}

func (l *MemoryLimiter) Limit(_ context.Context, key string) (bool, error) {
	now := l.now()
	return l.limiterFor(key, now).AllowN(now, 1), nil
}

func (l *MemoryLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if ent, ok := l.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	policy := l.policies.forKey(key)
	every := policy.Window / time.Duration(max(policy.Limit, 1))
	lim := rate.NewLimiter(rate.Every(every), policy.Limit)
	l.entries[key] = &memoryEntry{lim: lim, lastSeen: now}
	return lim
}

// Cleanup drops buckets that have not been used for the idle TTL.
func (l *MemoryLimiter) Cleanup() {
	cutoff := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, ent := range l.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(l.entries, k)
		}
	}
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *MemoryLimiter) startJanitor() {
	if l.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(l.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-l.stop:
				return
			case <-t.C:
				l.Cleanup()
			}
		}
	}()
}

// Close stops the janitor. It is safe to call more than once.
func (l *MemoryLimiter) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}

var _ riverbank.RateLimiter = (*MemoryLimiter)(nil)
