package moderation

import (
	"context"
	"errors"
	"strings"
	"time"

	"riverbank/internal/metrics"
	"riverbank/internal/riverbank"
)

// DefaultTimeout bounds a single classification.
const DefaultTimeout = 5 * time.Second

// Moderator turns classifier answers into verdicts.
// It fails open: any classifier error or timeout yields riverbank.Safe.
type Moderator struct {
	classifier Classifier
	timeout    time.Duration
	logger     riverbank.Logger
	metrics    *metrics.Metrics
}

// NewModerator wraps classifier. A non-positive timeout means DefaultTimeout.
// m may be nil.
func NewModerator(classifier Classifier, timeout time.Duration, logger riverbank.Logger, m *metrics.Metrics) *Moderator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Moderator{
		classifier: classifier,
		timeout:    timeout,
		logger:     logger,
		metrics:    m,
	}
}

// Moderate classifies a trimmed message and optional nickname.
// Only an exact "1" from the classifier is Unsafe.
func (m *Moderator) Moderate(ctx context.Context, message, nickname string) riverbank.Verdict {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	token, err := m.classifier.Classify(ctx, Instruction, ComposeContent(message, nickname))
	if err != nil {
		cause := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			cause = "timeout"
		}
		m.logger.Warn("moderation unavailable, allowing content", "cause", cause, "error", err)
		m.metrics.ModerationDecision("fail_open")
		return riverbank.Safe
	}

	if strings.TrimSpace(token) == "1" {
		m.metrics.ModerationDecision("unsafe")
		return riverbank.Unsafe
	}
	m.metrics.ModerationDecision("safe")
	return riverbank.Safe
}

var _ riverbank.Moderator = (*Moderator)(nil)
