package governor

import (
	"context"
	"testing"
	"time"

	"fedigate/internal/core/fetcher"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/testkit"
)

func TestLocalAdmitWindowCap(t *testing.T) {
	l := NewLocal(true, 3, time.Minute)
	base := time.Unix(1000, 0)
	l.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		testkit.MustNoErr(t, l.Admit("alice@x.test"))
	}
	err := l.Admit("alice@x.test")
	testkit.MustCode(t, err, perr.ErrorCodeLocalRateLimit)
	if ra := perr.RetryAfterOf(err); ra != time.Minute {
		t.Fatalf("retry-after = %v", ra)
	}

	// other principals are independent
	testkit.MustNoErr(t, l.Admit("bob@x.test"))
	testkit.MustNoErr(t, l.Admit("")) // anonymous

	// lazy reset after the window elapses
	l.now = func() time.Time { return base.Add(time.Minute) }
	testkit.MustNoErr(t, l.Admit("alice@x.test"))
	if rem := l.Remaining("alice@x.test"); rem != 2 {
		t.Fatalf("Remaining = %d", rem)
	}
}

func TestLocalDisabledAdmitsEverything(t *testing.T) {
	l := NewLocal(false, 1, time.Minute)
	for i := 0; i < 10; i++ {
		testkit.MustNoErr(t, l.Admit("x"))
	}
}

func TestAdaptiveObserveAndShouldBackoff(t *testing.T) {
	a := NewAdaptive()
	base := time.Unix(5000, 0)
	a.now = func() time.Time { return base }

	// no state, no backoff
	if d := a.ShouldBackoff("x.test"); d != 0 {
		t.Fatalf("backoff with no state = %v", d)
	}

	// plenty remaining: no backoff
	a.Observe("x.test", fetcher.RateInfo{Present: true, Limit: 300, Remaining: 200, Reset: base.Add(time.Minute)})
	if d := a.ShouldBackoff("x.test"); d != 0 {
		t.Fatalf("backoff with headroom = %v", d)
	}

	// low water: (reset-now)/remaining
	a.Observe("x.test", fetcher.RateInfo{Present: true, Limit: 300, Remaining: 10, Reset: base.Add(time.Minute)})
	if d := a.ShouldBackoff("x.test"); d != 6*time.Second {
		t.Fatalf("backoff = %v, want 6s", d)
	}

	// exhausted: IsRateLimited until reset
	a.Observe("x.test", fetcher.RateInfo{Present: true, Limit: 300, Remaining: 0, Reset: base.Add(5 * time.Second)})
	if !a.IsRateLimited("x.test") {
		t.Fatalf("expected rate limited")
	}
	a.now = func() time.Time { return base.Add(6 * time.Second) }
	if a.IsRateLimited("x.test") {
		t.Fatalf("still limited after reset")
	}
}

func TestAdaptiveWaitFailsFastWhenExhausted(t *testing.T) {
	a := NewAdaptive()
	base := time.Unix(5000, 0)
	a.now = func() time.Time { return base }
	a.Observe("x.test", fetcher.RateInfo{Present: true, Limit: 300, Remaining: 0, Reset: base.Add(5 * time.Second)})

	err := a.Wait(context.Background(), "x.test")
	testkit.MustCode(t, err, perr.ErrorCodeInstanceRateLimited)
	if ra := perr.RetryAfterOf(err); ra != 5*time.Second {
		t.Fatalf("retry-after = %v", ra)
	}
}

func TestAdaptiveWaitSleepsShortDelays(t *testing.T) {
	a := NewAdaptive()
	base := time.Unix(5000, 0)
	a.now = func() time.Time { return base }
	var slept time.Duration
	a.sleep = func(ctx context.Context, d time.Duration) error {
		slept = d
		return nil
	}

	a.Observe("x.test", fetcher.RateInfo{Present: true, Limit: 100, Remaining: 5, Reset: base.Add(10 * time.Second)})
	testkit.MustNoErr(t, a.Wait(context.Background(), "x.test"))
	if slept != 2*time.Second {
		t.Fatalf("slept = %v, want 2s", slept)
	}

	// delays beyond the ceiling fail instead of sleeping
	a.Observe("x.test", fetcher.RateInfo{Present: true, Limit: 100, Remaining: 1, Reset: base.Add(time.Minute)})
	err := a.Wait(context.Background(), "x.test")
	testkit.MustCode(t, err, perr.ErrorCodeInstanceRateLimited)
}

func TestSlotsPerHostCap(t *testing.T) {
	s := NewSlots(4, 1)

	rel1, err := s.Acquire(context.Background(), "a.test")
	testkit.MustNoErr(t, err)

	// second acquire on the same host must block until release
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := s.Acquire(ctx, "a.test"); err == nil {
		t.Fatalf("expected per-host cap to block")
	}

	// a different host is unaffected
	rel2, err := s.Acquire(context.Background(), "b.test")
	testkit.MustNoErr(t, err)
	rel2()

	rel1()
	rel3, err := s.Acquire(context.Background(), "a.test")
	testkit.MustNoErr(t, err)
	rel3()
	rel3() // double release is a no-op
}
