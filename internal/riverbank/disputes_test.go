package riverbank_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"riverbank/internal/riverbank"
)

func TestService_SubmitFalsePositive(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the report without moderation", func(t *testing.T) {
		f := newFixture(t, riverbank.Unsafe)

		report, err := f.svc.SubmitFalsePositive(ctx, riverbank.FalsePositiveRequest{
			Message:  "  my poem about storms was rejected  ",
			Nickname: " sailor ",
			Origin:   "o1",
		})
		if err != nil {
			t.Fatalf("SubmitFalsePositive() error = %v", err)
		}
		if report.Message != "my poem about storms was rejected" {
			t.Errorf("Message = %q", report.Message)
		}
		if report.Nickname != "sailor" {
			t.Errorf("Nickname = %q, want sailor", report.Nickname)
		}
		if f.moderator.Calls() != 0 {
			t.Errorf("moderator called %d times, want 0", f.moderator.Calls())
		}

		st, err := f.db.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if st.FalsePositiveReports != 1 || st.ActiveBottles != 0 {
			t.Errorf("Stats() = %+v, want one report and no bottles", st)
		}
	})

	t.Run("short messages are accepted", func(t *testing.T) {
		f := newFixture(t, riverbank.Safe)
		if _, err := f.svc.SubmitFalsePositive(ctx, riverbank.FalsePositiveRequest{Message: "hi"}); err != nil {
			t.Errorf("SubmitFalsePositive() error = %v", err)
		}
	})

	t.Run("rejects empty and oversized messages", func(t *testing.T) {
		f := newFixture(t, riverbank.Safe)

		_, err := f.svc.SubmitFalsePositive(ctx, riverbank.FalsePositiveRequest{Message: "   "})
		if ve, ok := riverbank.IsValidationError(err); !ok || ve.Reason != riverbank.ReasonEmptyMessage {
			t.Errorf("empty: error = %v, want empty_message", err)
		}

		_, err = f.svc.SubmitFalsePositive(ctx, riverbank.FalsePositiveRequest{Message: strings.Repeat("a", 2001)})
		if ve, ok := riverbank.IsValidationError(err); !ok || ve.Reason != riverbank.ReasonTooLong {
			t.Errorf("oversized: error = %v, want too_long", err)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		f := newFixture(t, riverbank.Safe)
		f.limiter.Allow = 1

		req := riverbank.FalsePositiveRequest{Message: "please look again", Origin: "o1"}
		if _, err := f.svc.SubmitFalsePositive(ctx, req); err != nil {
			t.Fatalf("first SubmitFalsePositive() error = %v", err)
		}
		if _, err := f.svc.SubmitFalsePositive(ctx, req); !errors.Is(err, riverbank.ErrRateLimited) {
			t.Errorf("second SubmitFalsePositive() error = %v, want ErrRateLimited", err)
		}
		if f.limiter.Hits("false-positive:o1") != 2 {
			t.Errorf("limiter hits = %d, want 2", f.limiter.Hits("false-positive:o1"))
		}
	})
}
