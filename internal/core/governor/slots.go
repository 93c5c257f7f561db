package governor

import (
	"context"
	"sync"

	perr "fedigate/internal/platform/errors"

	"golang.org/x/sync/semaphore"
)

// Slots bounds in-flight outbound calls globally and per instance
type Slots struct {
	global *semaphore.Weighted

	mu       sync.Mutex
	perHost  map[string]*semaphore.Weighted
	hostCap  int64
}

// NewSlots builds the concurrency caps; non-positive values fall back to
// 16 global / 4 per instance
func NewSlots(global, perHost int) *Slots {
	if global <= 0 {
		global = 16
	}
	if perHost <= 0 {
		perHost = 4
	}
	return &Slots{
		global:  semaphore.NewWeighted(int64(global)),
		perHost: make(map[string]*semaphore.Weighted),
		hostCap: int64(perHost),
	}
}

func (s *Slots) hostSem(host string) *semaphore.Weighted {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.perHost[host]
	if !ok {
		sem = semaphore.NewWeighted(s.hostCap)
		s.perHost[host] = sem
	}
	return sem
}

// Acquire claims a global and a per-host slot, honoring ctx cancellation.
// The returned release must be called exactly once
func (s *Slots) Acquire(ctx context.Context, host string) (release func(), err error) {
	if err := s.global.Acquire(ctx, 1); err != nil {
		return nil, perr.Cancelledf("cancelled waiting for a global slot")
	}
	hs := s.hostSem(host)
	if err := hs.Acquire(ctx, 1); err != nil {
		s.global.Release(1)
		return nil, perr.Cancelledf("cancelled waiting for a slot on %s", host)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			hs.Release(1)
			s.global.Release(1)
		})
	}, nil
}
