package governor

import (
	"context"
	"sync"
	"time"

	"fedigate/internal/core/fetcher"
	perr "fedigate/internal/platform/errors"
)

const (
	// maxBackoffWait caps how long a call may be delayed to satisfy a
	// remote limit before it fails instead
	maxBackoffWait = 5 * time.Second
	// lowWaterFraction of the limit under which backoff kicks in
	lowWaterFraction = 0.1
)

// RateLimitState is the last observed remote limit for one instance
type RateLimitState struct {
	Limit     int
	Remaining int
	Reset     time.Time
	UpdatedAt time.Time
}

// Adaptive passively tracks remote rate limits per instance
type Adaptive struct {
	mu    sync.RWMutex
	state map[string]RateLimitState
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewAdaptive builds the per-instance limiter
func NewAdaptive() *Adaptive {
	return &Adaptive{
		state: make(map[string]RateLimitState),
		now:   time.Now,
		sleep: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return perr.Cancelledf("backoff interrupted")
	case <-t.C:
		return nil
	}
}

// Observe records rate headers seen on a response from host
func (a *Adaptive) Observe(host string, ri fetcher.RateInfo) {
	if host == "" || !ri.Present {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state[host] = RateLimitState{
		Limit:     ri.Limit,
		Remaining: ri.Remaining,
		Reset:     ri.Reset,
		UpdatedAt: a.now(),
	}
}

// State returns the last observed state for host
func (a *Adaptive) State(host string) (RateLimitState, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.state[host]
	return s, ok
}

// IsRateLimited reports whether host advertised an exhausted window that
// has not reset yet
func (a *Adaptive) IsRateLimited(host string) bool {
	s, ok := a.State(host)
	return ok && s.Remaining == 0 && !s.Reset.IsZero() && a.now().Before(s.Reset)
}

// ShouldBackoff returns the recommended delay before the next call to host:
// (reset-now)/max(1,remaining) once remaining drops under 10% of the limit,
// zero otherwise
func (a *Adaptive) ShouldBackoff(host string) time.Duration {
	s, ok := a.State(host)
	if !ok || s.Reset.IsZero() {
		return 0
	}
	now := a.now()
	if !now.Before(s.Reset) {
		return 0
	}
	if s.Limit > 0 && float64(s.Remaining) >= float64(s.Limit)*lowWaterFraction {
		return 0
	}
	rem := s.Remaining
	if rem < 1 {
		rem = 1
	}
	d := s.Reset.Sub(now) / time.Duration(rem)
	if d < 0 {
		return 0
	}
	return d
}

// Wait blocks until host may be called: exhausted windows fail immediately
// with the time left; advisory delays are slept through up to the 5s
// ceiling, beyond which the call fails with the recommended delay
func (a *Adaptive) Wait(ctx context.Context, host string) error {
	if s, ok := a.State(host); ok && s.Remaining == 0 && !s.Reset.IsZero() {
		if left := s.Reset.Sub(a.now()); left > 0 {
			return perr.InstanceRateLimited(host, left)
		}
	}
	d := a.ShouldBackoff(host)
	if d <= 0 {
		return nil
	}
	if d > maxBackoffWait {
		return perr.InstanceRateLimited(host, d)
	}
	return a.sleep(ctx, d)
}
