package safety

import (
	"strings"
	"time"

	"fedigate/internal/platform/logger"
	"fedigate/internal/platform/ring"

	"github.com/google/uuid"
)

// AuditKind classifies audit events
type AuditKind string

const (
	AuditToolInvocation  AuditKind = "tool_invocation"
	AuditResourceAccess  AuditKind = "resource_access"
	AuditRateLimited     AuditKind = "rate_limit_exceeded"
	AuditBlockedInstance AuditKind = "blocked_instance"
	AuditSsrfBlocked     AuditKind = "ssrf_blocked"
	AuditError           AuditKind = "error"
)

// AuditRecord is one entry in the bounded audit ring.
// Params has already been through Redact before storage
type AuditRecord struct {
	ID        string         `json:"id"`
	Time      time.Time      `json:"time"`
	Kind      AuditKind      `json:"kind"`
	Principal string         `json:"principal"`
	Subject   string         `json:"subject"`
	Outcome   string         `json:"outcome"`
	Duration  time.Duration  `json:"duration_ns"`
	Params    map[string]any `json:"params,omitempty"`
}

// Auditor owns the audit ring. A disabled Auditor swallows records
type Auditor struct {
	enabled bool
	buf     *ring.Ring[AuditRecord]
	log     logger.Logger
	now     func() time.Time
}

// NewAuditor builds an Auditor with the given ring capacity
func NewAuditor(enabled bool, capacity int) *Auditor {
	return &Auditor{
		enabled: enabled,
		buf:     ring.New[AuditRecord](capacity),
		log:     *logger.Named("audit"),
		now:     time.Now,
	}
}

// Record redacts params and pushes the record
func (a *Auditor) Record(kind AuditKind, principal, subject, outcome string, dur time.Duration, params map[string]any) {
	if !a.enabled {
		return
	}
	if principal == "" {
		principal = "anonymous"
	}
	a.buf.Push(AuditRecord{
		ID:        uuid.NewString(),
		Time:      a.now(),
		Kind:      kind,
		Principal: principal,
		Subject:   subject,
		Outcome:   outcome,
		Duration:  dur,
		Params:    redactMap(params),
	})
}

// Recent returns up to n records, newest last
func (a *Auditor) Recent(n int) []AuditRecord {
	all := a.buf.Snapshot()
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// Len returns the number of retained records
func (a *Auditor) Len() int { return a.buf.Len() }

// Flush drains the ring into the structured log; part of the shutdown contract
func (a *Auditor) Flush() {
	for _, rec := range a.buf.Drain() {
		a.log.Info().
			Str("audit_id", rec.ID).
			Time("at", rec.Time).
			Str("kind", string(rec.Kind)).
			Str("principal", rec.Principal).
			Str("subject", rec.Subject).
			Str("outcome", rec.Outcome).
			Dur("duration", rec.Duration).
			Msg("audit flush")
	}
}

// sensitive key fragments, matched case-insensitively
var sensitiveFragments = []string{"password", "token", "secret", "key", "auth", "credential"}

const redactedLiteral = "<redacted>"

func isSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, frag := range sensitiveFragments {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

// Redact replaces values under sensitive keys with a literal marker,
// descending into nested maps and slices
func Redact(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Redact(item)
		}
		return out
	default:
		return v
	}
}

func redactMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if isSensitiveKey(k) {
			out[k] = redactedLiteral
			continue
		}
		out[k] = Redact(v)
	}
	return out
}
