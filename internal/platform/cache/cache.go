// Package cache provides a read-through TTL cache. Entries are checked on
// read and dropped when expired; there is no background eviction.
// Writes replace entries atomically
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	val     V
	expires time.Time
}

// TTL is a concurrency-safe map with per-entry expiry
type TTL[V any] struct {
	mu   sync.RWMutex
	data map[string]entry[V]
	ttl  time.Duration
	now  func() time.Time
}

// New builds a TTL cache; non-positive ttl entries never expire
func New[V any](ttl time.Duration) *TTL[V] {
	return &TTL[V]{
		data: make(map[string]entry[V]),
		ttl:  ttl,
		now:  time.Now,
	}
}

// SetClock replaces the time source; tests only
func (c *TTL[V]) SetClock(now func() time.Time) { c.now = now }

// Get returns the live value for key, if any. Expired entries are removed
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	var zero V
	if !ok {
		return zero, false
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.mu.Lock()
		// re-check under the write lock; a concurrent Put may have refreshed it
		if e2, ok2 := c.data[key]; ok2 && !e2.expires.IsZero() && !c.now().Before(e2.expires) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.val, true
}

// Put stores val under key with the cache's TTL
func (c *TTL[V]) Put(key string, val V) {
	var exp time.Time
	if c.ttl > 0 {
		exp = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.data[key] = entry[V]{val: val, expires: exp}
	c.mu.Unlock()
}

// PutFor stores val with an entry-specific lifetime
func (c *TTL[V]) PutFor(key string, val V, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.data[key] = entry[V]{val: val, expires: exp}
	c.mu.Unlock()
}

// Delete removes key
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

// Len counts entries including not-yet-collected expired ones
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
