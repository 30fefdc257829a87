package riverbank_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"riverbank/internal/database"
	"riverbank/internal/model"
	"riverbank/internal/riverbank"
	"riverbank/internal/testutil"
)

type fixture struct {
	svc       *riverbank.Service
	db        *database.SQLiteDatabase
	moderator *testutil.FakeModerator
	limiter   *testutil.StubLimiter
}

func newFixture(t *testing.T, verdict riverbank.Verdict, opts ...riverbank.Option) *fixture {
	t.Helper()
	db := testutil.NewTestDatabase(t)
	moderator := testutil.NewFakeModerator(verdict)
	limiter := testutil.NewStubLimiter(0)
	svc := riverbank.NewService(db, moderator, limiter, riverbank.NewNopLogger(),
		testutil.FixedClock(), testutil.NewStubIDGenerator(), opts...)
	return &fixture{svc: svc, db: db, moderator: moderator, limiter: limiter}
}

func countBottles(t *testing.T, db *database.SQLiteDatabase) int64 {
	t.Helper()
	st, err := db.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	return st.ActiveBottles + st.ReportedBottles
}

func TestService_Throw(t *testing.T) {
	ctx := context.Background()

	t.Run("end to end exchange", func(t *testing.T) {
		f := newFixture(t, riverbank.Safe)
		seeded := testutil.SeedBottles(t, f.db, 5)

		msg := "This is a perfectly fine fifteen-char message about hope."
		res, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: msg, Origin: "203.0.113.9"})
		if err != nil {
			t.Fatalf("Throw() error = %v", err)
		}
		if !res.Sent {
			t.Error("Sent = false, want true")
		}

		want := riverbank.BottlesToReceive(utf8.RuneCountInString(msg))
		if len(res.Received) != want {
			t.Errorf("len(Received) = %d, want %d", len(res.Received), want)
		}
		for _, b := range res.Received {
			if b.ID == res.Bottle.ID {
				t.Error("received the bottle that was just thrown")
			}
		}

		stored, err := f.db.FindBottle(ctx, res.Bottle.ID)
		if err != nil || stored == nil {
			t.Fatalf("FindBottle() = %v, %v", stored, err)
		}
		if stored.Message != msg {
			t.Errorf("Message = %q, want %q", stored.Message, msg)
		}
		if stored.Status != model.StatusActive {
			t.Errorf("Status = %q, want active", stored.Status)
		}
		if stored.SequenceNumber <= seeded[len(seeded)-1].SequenceNumber {
			t.Errorf("SequenceNumber = %d, want > %d", stored.SequenceNumber, seeded[len(seeded)-1].SequenceNumber)
		}
		if stored.OriginAddress != "203.0.113.9" {
			t.Errorf("OriginAddress = %q, want %q", stored.OriginAddress, "203.0.113.9")
		}
	})

	t.Run("longer messages receive more bottles", func(t *testing.T) {
		f := newFixture(t, riverbank.Safe)
		testutil.SeedBottles(t, f.db, 5)

		for _, tc := range []struct {
			length int
			want   int
		}{{60, 1}, {61, 2}, {151, 3}} {
			res, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: strings.Repeat("a", tc.length)})
			if err != nil {
				t.Fatalf("Throw(%d runes) error = %v", tc.length, err)
			}
			if len(res.Received) != tc.want {
				t.Errorf("Throw(%d runes) received %d, want %d", tc.length, len(res.Received), tc.want)
			}
		}
	})

	t.Run("empty river still sends", func(t *testing.T) {
		f := newFixture(t, riverbank.Safe)

		res, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: "first bottle in the river"})
		if err != nil {
			t.Fatalf("Throw() error = %v", err)
		}
		if !res.Sent || len(res.Received) != 0 {
			t.Errorf("Throw() = sent %v, %d received, want sent with none", res.Sent, len(res.Received))
		}
		if res.Received == nil {
			t.Error("Received is nil, want empty slice")
		}
	})

	t.Run("trims and keeps optional fields", func(t *testing.T) {
		f := newFixture(t, riverbank.Safe)

		res, err := f.svc.Throw(ctx, riverbank.ThrowRequest{
			Message:  "   a message with padding around it   ",
			Nickname: "  otter ",
			Country:  " NZ ",
		})
		if err != nil {
			t.Fatalf("Throw() error = %v", err)
		}
		if res.Bottle.Message != "a message with padding around it" {
			t.Errorf("Message = %q", res.Bottle.Message)
		}
		if res.Bottle.Nickname != "otter" || res.Bottle.Country != "NZ" {
			t.Errorf("Nickname, Country = %q, %q", res.Bottle.Nickname, res.Bottle.Country)
		}
	})

	t.Run("link is rejected before moderation", func(t *testing.T) {
		f := newFixture(t, riverbank.Safe)

		_, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: "check out example.com for more"})
		ve, ok := riverbank.IsValidationError(err)
		if !ok || ve.Reason != riverbank.ReasonContainsLink {
			t.Fatalf("Throw() error = %v, want contains_link", err)
		}
		if f.moderator.Calls() != 0 {
			t.Errorf("moderator called %d times, want 0", f.moderator.Calls())
		}
		if n := countBottles(t, f.db); n != 0 {
			t.Errorf("stored %d bottles, want 0", n)
		}
	})

	t.Run("unsafe content is not stored", func(t *testing.T) {
		f := newFixture(t, riverbank.Unsafe)

		_, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: "something the classifier dislikes"})
		if !errors.Is(err, riverbank.ErrModerationRejected) {
			t.Fatalf("Throw() error = %v, want ErrModerationRejected", err)
		}
		if f.moderator.Calls() != 1 {
			t.Errorf("moderator called %d times, want 1", f.moderator.Calls())
		}
		if n := countBottles(t, f.db); n != 0 {
			t.Errorf("stored %d bottles, want 0", n)
		}
	})

	t.Run("rate limit runs first", func(t *testing.T) {
		f := newFixture(t, riverbank.Safe)
		f.limiter.Allow = 1

		if _, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: "the first of two bottles", Origin: "o1"}); err != nil {
			t.Fatalf("first Throw() error = %v", err)
		}
		_, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: "", Origin: "o1"})
		if !errors.Is(err, riverbank.ErrRateLimited) {
			t.Fatalf("second Throw() error = %v, want ErrRateLimited", err)
		}
		if f.limiter.Hits("throw:o1") != 2 {
			t.Errorf("limiter hits = %d, want 2", f.limiter.Hits("throw:o1"))
		}
		if f.moderator.Calls() != 1 {
			t.Errorf("moderator called %d times, want 1", f.moderator.Calls())
		}

		if _, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: "a different sender entirely", Origin: "o2"}); err != nil {
			t.Errorf("Throw() from other origin error = %v", err)
		}
	})

	t.Run("limiter failure lets requests through", func(t *testing.T) {
		f := newFixture(t, riverbank.Safe)
		f.limiter.Err = errors.New("redis down")

		if _, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: "limiter is having a bad day"}); err != nil {
			t.Errorf("Throw() error = %v, want nil", err)
		}
	})

	t.Run("reported bottles are never received", func(t *testing.T) {
		f := newFixture(t, riverbank.Safe)
		seeded := testutil.SeedBottles(t, f.db, 3)
		for _, b := range seeded[:2] {
			if err := f.db.SetBottleStatus(ctx, b.ID, model.StatusReported); err != nil {
				t.Fatalf("SetBottleStatus() error = %v", err)
			}
		}

		res, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: strings.Repeat("b", 200)})
		if err != nil {
			t.Fatalf("Throw() error = %v", err)
		}
		if len(res.Received) != 1 || res.Received[0].ID != seeded[2].ID {
			t.Errorf("Received = %+v, want only %s", res.Received, seeded[2].ID)
		}
	})
}

type sealFunc func(string) (string, error)

func (f sealFunc) Seal(s string) (string, error) { return f(s) }

func TestService_Throw_SealsOrigin(t *testing.T) {
	ctx := context.Background()

	t.Run("stores sealed origin", func(t *testing.T) {
		sealer := sealFunc(func(s string) (string, error) { return "sealed:" + s, nil })
		f := newFixture(t, riverbank.Safe, riverbank.WithOriginSealer(sealer))

		res, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: "keep my address private", Origin: "198.51.100.4"})
		if err != nil {
			t.Fatalf("Throw() error = %v", err)
		}
		stored, err := f.db.FindBottle(ctx, res.Bottle.ID)
		if err != nil {
			t.Fatalf("FindBottle() error = %v", err)
		}
		if stored.OriginAddress != "sealed:198.51.100.4" {
			t.Errorf("OriginAddress = %q, want sealed value", stored.OriginAddress)
		}
	})

	t.Run("sealing failure stores nothing", func(t *testing.T) {
		sealer := sealFunc(func(string) (string, error) { return "", errors.New("no key") })
		f := newFixture(t, riverbank.Safe, riverbank.WithOriginSealer(sealer))

		if _, err := f.svc.Throw(ctx, riverbank.ThrowRequest{Message: "this will not be stored"}); err == nil {
			t.Fatal("Throw() expected error")
		}
		if n := countBottles(t, f.db); n != 0 {
			t.Errorf("stored %d bottles, want 0", n)
		}
	})
}

func TestService_Stats(t *testing.T) {
	f := newFixture(t, riverbank.Safe)
	testutil.SeedBottles(t, f.db, 2)

	st, err := f.svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.ActiveBottles != 2 {
		t.Errorf("ActiveBottles = %d, want 2", st.ActiveBottles)
	}
}
