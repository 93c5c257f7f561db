// Package safety interposes on every outbound call: scheme policy,
// instance blocklist, SSRF guard, and audit logging with credential
// redaction
package safety

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	perr "fedigate/internal/platform/errors"
)

// BlockReason categorizes why an instance is blocked
type BlockReason string

const (
	ReasonPolicy     BlockReason = "policy"
	ReasonUser       BlockReason = "user"
	ReasonSafety     BlockReason = "safety"
	ReasonSpam       BlockReason = "spam"
	ReasonFederation BlockReason = "federation"
	ReasonCustom     BlockReason = "custom"
)

// BlockEntry is one blocklist pattern: an exact host or "*.suffix".
// An entry with a past ExpiresAt is treated as absent but not auto-deleted
type BlockEntry struct {
	Pattern     string      `json:"domain"`
	Reason      BlockReason `json:"reason"`
	Description string      `json:"description,omitempty"`
	AddedAt     time.Time   `json:"added_at"`
	AddedBy     string      `json:"added_by,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
}

// InEffect reports whether the entry currently applies
func (e BlockEntry) InEffect(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// Blocklist matches hosts against exact and wildcard patterns.
// Owned by the safety layer; all access goes through its mutex
type Blocklist struct {
	mu      sync.RWMutex
	entries map[string]BlockEntry
	now     func() time.Time
}

// NewBlocklist seeds a Blocklist from configured patterns, all attributed
// to the policy reason
func NewBlocklist(patterns []string) *Blocklist {
	b := &Blocklist{entries: make(map[string]BlockEntry), now: time.Now}
	for _, p := range patterns {
		b.Add(BlockEntry{Pattern: p, Reason: ReasonPolicy, AddedBy: "config"})
	}
	return b
}

func normalizePattern(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}

// Add inserts or replaces an entry; empty patterns are rejected
func (b *Blocklist) Add(e BlockEntry) error {
	e.Pattern = normalizePattern(e.Pattern)
	if e.Pattern == "" {
		return perr.InvalidInputf("blocklist pattern is empty")
	}
	if e.Reason == "" {
		e.Reason = ReasonCustom
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = b.now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[e.Pattern] = e
	return nil
}

// Remove deletes an entry by pattern; returns whether it existed
func (b *Blocklist) Remove(pattern string) bool {
	pattern = normalizePattern(pattern)
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[pattern]
	delete(b.entries, pattern)
	return ok
}

// Match returns the in-effect entry covering host, if any.
// Matching is case-insensitive; "*.suffix" covers the suffix itself and
// any subdomain of it
func (b *Blocklist) Match(host string) (BlockEntry, bool) {
	host = normalizePattern(host)
	now := b.now()
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range b.entries {
		if !e.InEffect(now) {
			continue
		}
		if suffix, ok := strings.CutPrefix(e.Pattern, "*."); ok {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return e, true
			}
			continue
		}
		if host == e.Pattern {
			return e, true
		}
	}
	return BlockEntry{}, false
}

// IsBlocked reports whether host is covered by an in-effect entry
func (b *Blocklist) IsBlocked(host string) bool {
	_, ok := b.Match(host)
	return ok
}

// List returns all entries, including expired ones (deletion is operator-driven)
func (b *Blocklist) List() []BlockEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]BlockEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	return out
}

// Export renders the blocklist as JSON
func (b *Blocklist) Export() ([]byte, error) {
	return json.MarshalIndent(b.List(), "", "  ")
}

// Import merges entries from a JSON export; existing patterns are replaced
func (b *Blocklist) Import(data []byte) (int, error) {
	var entries []BlockEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, perr.Wrap(err, perr.ErrorCodeInvalidInput, "blocklist import: malformed JSON")
	}
	n := 0
	for _, e := range entries {
		if err := b.Add(e); err == nil {
			n++
		}
	}
	return n, nil
}
