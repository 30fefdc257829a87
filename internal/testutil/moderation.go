package testutil

import (
	"context"
	"sync"
	"time"

	"riverbank/internal/riverbank"
)

// FakeModerator returns a fixed verdict and records what it was asked.
type FakeModerator struct {
	mu      sync.Mutex
	verdict riverbank.Verdict
	calls   []string
}

func NewFakeModerator(verdict riverbank.Verdict) *FakeModerator {
	return &FakeModerator{verdict: verdict}
}

func (m *FakeModerator) Moderate(_ context.Context, message, _ string) riverbank.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, message)
	return m.verdict
}

// Calls returns the number of Moderate invocations.
func (m *FakeModerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// FakeClassifier answers with a fixed token, error, or delay.
// It satisfies moderation.Classifier.
type FakeClassifier struct {
	Token string
	Err   error
	Delay time.Duration

	mu       sync.Mutex
	contents []string
}

func (c *FakeClassifier) Classify(ctx context.Context, _ string, content string) (string, error) {
	c.mu.Lock()
	c.contents = append(c.contents, content)
	c.mu.Unlock()

	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if c.Err != nil {
		return "", c.Err
	}
	return c.Token, nil
}

// Contents returns every content string the classifier received.
func (c *FakeClassifier) Contents() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.contents...)
}

var _ riverbank.Moderator = (*FakeModerator)(nil)
