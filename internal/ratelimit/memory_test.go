package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"riverbank/internal/config"
)

type fakeNow struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeNow) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

func newTestMemoryLimiter(t *testing.T, clock *fakeNow) *MemoryLimiter {
	t.Helper()
	cfg := config.RateLimitConfig{Type: "memory", Window: config.Duration{Duration: time.Minute}, Throw: 5, Report: 20, React: 20, FalsePositive: 5}
	l := NewMemoryLimiter(PoliciesFromConfig(cfg), WithCleanupEvery(0), WithNow(clock.Now))
	t.Cleanup(func() { l.Close() })
	return l
}

func TestMemoryLimiter_Limit(t *testing.T) {
	ctx := context.Background()

	t.Run("allows the quota then denies", func(t *testing.T) {
		clock := &fakeNow{t: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
		l := newTestMemoryLimiter(t, clock)

		for i := range 5 {
			ok, err := l.Limit(ctx, "throw:1.2.3.4")
			if err != nil || !ok {
				t.Fatalf("Limit() #%d = %v, %v, want allowed", i+1, ok, err)
			}
		}
		ok, _ := l.Limit(ctx, "throw:1.2.3.4")
		if ok {
			t.Error("sixth Limit() allowed, want denied")
		}
	})

	t.Run("actions and origins are independent", func(t *testing.T) {
		clock := &fakeNow{t: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
		l := newTestMemoryLimiter(t, clock)

		for range 5 {
			l.Limit(ctx, "throw:a")
		}
		if ok, _ := l.Limit(ctx, "throw:b"); !ok {
			t.Error("other origin denied")
		}
		if ok, _ := l.Limit(ctx, "report:a"); !ok {
			t.Error("other action denied")
		}
	})

	t.Run("report has a larger quota", func(t *testing.T) {
		clock := &fakeNow{t: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
		l := newTestMemoryLimiter(t, clock)

		allowed := 0
		for range 25 {
			if ok, _ := l.Limit(ctx, "report:a"); ok {
				allowed++
			}
		}
		if allowed != 20 {
			t.Errorf("allowed %d reports, want 20", allowed)
		}
	})

	t.Run("refills over the window", func(t *testing.T) {
		clock := &fakeNow{t: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
		l := newTestMemoryLimiter(t, clock)

		for range 5 {
			l.Limit(ctx, "throw:a")
		}
		if ok, _ := l.Limit(ctx, "throw:a"); ok {
			t.Fatal("Limit() allowed past quota")
		}

		clock.Advance(12 * time.Second)
		if ok, _ := l.Limit(ctx, "throw:a"); !ok {
			t.Error("Limit() denied after one refill interval")
		}
	})
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	clock := &fakeNow{t: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)}
	cfg := config.RateLimitConfig{Throw: 5}
	l := NewMemoryLimiter(PoliciesFromConfig(cfg), WithCleanupEvery(0), WithIdleTTL(time.Minute), WithNow(clock.Now))
	defer l.Close()

	l.Limit(context.Background(), "throw:a")
	clock.Advance(30 * time.Second)
	l.Limit(context.Background(), "throw:b")
	clock.Advance(45 * time.Second)

	l.Cleanup()
	if l.Len() != 1 {
		t.Errorf("Len() = %d after cleanup, want 1", l.Len())
	}
}

func TestMemoryLimiter_CloseTwice(t *testing.T) {
	l := NewMemoryLimiter(PoliciesFromConfig(config.RateLimitConfig{}), WithCleanupEvery(time.Hour))
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestPoliciesFromConfig_Defaults(t *testing.T) {
	p := PoliciesFromConfig(config.RateLimitConfig{})

	tests := map[string]int{
		"throw:x":          5,
		"report:x":         20,
		"react:x":          20,
		"false-positive:x": 5,
		"unknown:x":        20,
	}
	for key, want := range tests {
		got := p.forKey(key)
		if got.Limit != want || got.Window != time.Minute {
			t.Errorf("forKey(%q) = %+v, want limit %d per minute", key, got, want)
		}
	}
}
