// Package governor enforces the two outbound rate-limit tiers: a local
// per-caller window and an adaptive per-instance limiter fed by observed
// X-RateLimit-* headers. It also owns the global and per-instance
// concurrency slots. Both tiers are consulted before the fetcher runs
package governor

import (
	"sync"
	"time"

	perr "fedigate/internal/platform/errors"
)

// window is one caller's admission state; reset happens lazily on the next
// admission after expiry
type window struct {
	start time.Time
	count int
}

// Local is the per-caller sliding-window limiter
type Local struct {
	mu      sync.Mutex
	windows map[string]*window

	enabled bool
	max     int
	span    time.Duration
	now     func() time.Time
}

// NewLocal builds the caller limiter; disabled limiters admit everything
func NewLocal(enabled bool, max int, span time.Duration) *Local {
	if max <= 0 {
		max = 100
	}
	if span <= 0 {
		span = 15 * time.Minute
	}
	return &Local{
		windows: make(map[string]*window),
		enabled: enabled,
		max:     max,
		span:    span,
		now:     time.Now,
	}
}

// Admit counts one operation for principal, failing with
// LocalRateLimitExceeded when the window is already full
func (l *Local) Admit(principal string) error {
	if !l.enabled {
		return nil
	}
	if principal == "" {
		principal = "anonymous"
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[principal]
	if !ok || now.Sub(w.start) >= l.span {
		l.windows[principal] = &window{start: now, count: 1}
		return nil
	}
	if w.count >= l.max {
		wait := l.span - now.Sub(w.start)
		return perr.WithRetryAfter(
			perr.LocalRateLimitf("caller %s exceeded %d requests per %s", principal, l.max, l.span),
			wait,
		)
	}
	w.count++
	return nil
}

// Remaining reports how many admissions principal has left in the current window
func (l *Local) Remaining(principal string) int {
	if !l.enabled {
		return l.max
	}
	if principal == "" {
		principal = "anonymous"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[principal]
	if !ok || l.now().Sub(w.start) >= l.span {
		return l.max
	}
	return l.max - w.count
}
