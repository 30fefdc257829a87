package moderation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"riverbank/internal/metrics"
	"riverbank/internal/moderation"
	"riverbank/internal/riverbank"
	"riverbank/internal/testutil"
)

func TestModerator_Moderate(t *testing.T) {
	tests := []struct {
		name       string
		classifier *testutil.FakeClassifier
		want       riverbank.Verdict
	}{
		{name: "zero is safe", classifier: &testutil.FakeClassifier{Token: "0"}, want: riverbank.Safe},
		{name: "one is unsafe", classifier: &testutil.FakeClassifier{Token: "1"}, want: riverbank.Unsafe},
		{name: "padded one is unsafe", classifier: &testutil.FakeClassifier{Token: " 1\n"}, want: riverbank.Unsafe},
		{name: "anything else is safe", classifier: &testutil.FakeClassifier{Token: "1 because reasons"}, want: riverbank.Safe},
		{name: "empty answer is safe", classifier: &testutil.FakeClassifier{Token: ""}, want: riverbank.Safe},
		{name: "classifier error fails open", classifier: &testutil.FakeClassifier{Err: errors.New("503")}, want: riverbank.Safe},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := moderation.NewModerator(tt.classifier, time.Second, riverbank.NewNopLogger(), nil)
			if got := m.Moderate(context.Background(), "some content here", ""); got != tt.want {
				t.Errorf("Moderate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModerator_TimeoutFailsOpen(t *testing.T) {
	classifier := &testutil.FakeClassifier{Token: "1", Delay: time.Second}
	m := moderation.NewModerator(classifier, 20*time.Millisecond, riverbank.NewNopLogger(), metrics.New())

	start := time.Now()
	got := m.Moderate(context.Background(), "slow classifier today", "")
	if got != riverbank.Safe {
		t.Errorf("Moderate() = %v, want Safe", got)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Moderate() took %v, want it bounded by the timeout", elapsed)
	}
}

func TestModerator_SendsNickname(t *testing.T) {
	classifier := &testutil.FakeClassifier{Token: "0"}
	m := moderation.NewModerator(classifier, time.Second, riverbank.NewNopLogger(), nil)

	m.Moderate(context.Background(), "hello from the bank", "otter")

	contents := classifier.Contents()
	if len(contents) != 1 {
		t.Fatalf("classifier called %d times, want 1", len(contents))
	}
	if contents[0] != "Message: hello from the bank\nNickname: otter" {
		t.Errorf("content = %q", contents[0])
	}
}

func TestModerator_ClassifierErrorLetsThrowProceed(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDatabase(t)
	testutil.SeedBottles(t, db, 3)

	classifier := &testutil.FakeClassifier{Err: errors.New("upstream returned 502")}
	m := metrics.New()
	moderator := moderation.NewModerator(classifier, time.Second, riverbank.NewNopLogger(), m)
	svc := riverbank.NewService(db, moderator, testutil.NewStubLimiter(0), riverbank.NewNopLogger(),
		testutil.FixedClock(), testutil.NewStubIDGenerator())

	res, err := svc.Throw(ctx, riverbank.ThrowRequest{
		Message: "This is a perfectly fine fifteen-char message about hope.",
		Origin:  "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("Throw() error = %v", err)
	}
	if !res.Sent {
		t.Error("Sent = false, want true")
	}
	if len(classifier.Contents()) != 1 {
		t.Errorf("classifier called %d times, want 1", len(classifier.Contents()))
	}

	stored, err := db.FindBottle(ctx, res.Bottle.ID)
	if err != nil {
		t.Fatalf("FindBottle() error = %v", err)
	}
	if stored == nil {
		t.Fatal("thrown bottle was not stored")
	}
	if len(res.Received) != 1 {
		t.Errorf("len(Received) = %d, want 1", len(res.Received))
	}
}
