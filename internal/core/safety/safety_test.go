package safety

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strings"
	"testing"
	"time"

	"fedigate/internal/core/fetcher"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/testkit"
)

func TestBlocklistExactAndWildcard(t *testing.T) {
	b := NewBlocklist([]string{"bad.example", "*.worse.example"})

	cases := []struct {
		host    string
		blocked bool
	}{
		{"bad.example", true},
		{"BAD.EXAMPLE", true},
		{"sub.bad.example", false},
		{"worse.example", true},
		{"sub.worse.example", true},
		{"deep.sub.worse.example", true},
		{"notworse.example", false},
		{"good.example", false},
	}
	for _, c := range cases {
		if got := b.IsBlocked(c.host); got != c.blocked {
			t.Fatalf("IsBlocked(%q) = %v, want %v", c.host, got, c.blocked)
		}
	}
}

func TestBlocklistAddRemoveRoundTrip(t *testing.T) {
	b := NewBlocklist(nil)
	e := BlockEntry{Pattern: "spam.test", Reason: ReasonSpam, Description: "spammy"}
	testkit.MustNoErr(t, b.Add(e))
	if !b.IsBlocked("spam.test") {
		t.Fatalf("entry not in effect after add")
	}
	if !b.Remove("spam.test") {
		t.Fatalf("remove reported missing entry")
	}
	if b.IsBlocked("spam.test") {
		t.Fatalf("entry still in effect after remove")
	}
	if b.Remove("spam.test") {
		t.Fatalf("double remove reported success")
	}
}

func TestBlocklistExpiry(t *testing.T) {
	b := NewBlocklist(nil)
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	testkit.MustNoErr(t, b.Add(BlockEntry{Pattern: "expired.test", Reason: ReasonUser, ExpiresAt: &past}))
	testkit.MustNoErr(t, b.Add(BlockEntry{Pattern: "active.test", Reason: ReasonUser, ExpiresAt: &future}))

	if b.IsBlocked("expired.test") {
		t.Fatalf("expired entry should not match")
	}
	if !b.IsBlocked("active.test") {
		t.Fatalf("active entry should match")
	}
	// expired entries are kept until removed by an operator
	if len(b.List()) != 2 {
		t.Fatalf("List() = %d entries, want 2", len(b.List()))
	}
}

func TestBlocklistExportImportPreservesFields(t *testing.T) {
	b := NewBlocklist(nil)
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	src := BlockEntry{
		Pattern:     "evil.test",
		Reason:      ReasonSafety,
		Description: "bad actor hub",
		AddedAt:     time.Now().UTC().Truncate(time.Second),
		AddedBy:     "ops",
		ExpiresAt:   &exp,
	}
	testkit.MustNoErr(t, b.Add(src))

	data, err := b.Export()
	testkit.MustNoErr(t, err)

	b2 := NewBlocklist(nil)
	n, err := b2.Import(data)
	testkit.MustNoErr(t, err)
	if n != 1 {
		t.Fatalf("imported %d entries", n)
	}
	got, ok := b2.Match("evil.test")
	if !ok {
		t.Fatalf("imported entry not matching")
	}
	if got.Reason != src.Reason || got.Description != src.Description ||
		got.AddedBy != src.AddedBy || !got.AddedAt.Equal(src.AddedAt) ||
		got.ExpiresAt == nil || !got.ExpiresAt.Equal(*src.ExpiresAt) {
		t.Fatalf("round-trip mismatch: %+v vs %+v", got, src)
	}
}

func TestBlocklistImportMalformed(t *testing.T) {
	b := NewBlocklist(nil)
	if _, err := b.Import([]byte("{not json")); perr.CodeOf(err) != perr.ErrorCodeInvalidInput {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestRedact(t *testing.T) {
	in := map[string]any{
		"content":      "hello",
		"access_token": "s3cret",
		"Password":     "hunter2",
		"nested": map[string]any{
			"api_key": "k",
			"plain":   "v",
		},
		"list": []any{
			map[string]any{"authHeader": "Bearer x", "id": 1},
		},
	}
	out := redactMap(in)
	data, _ := json.Marshal(out)
	s := string(data)
	for _, leak := range []string{"s3cret", "hunter2", "Bearer x"} {
		if strings.Contains(s, leak) {
			t.Fatalf("leak %q survived redaction: %s", leak, s)
		}
	}
	testkit.MustContain(t, s, `"content":"hello"`)
	testkit.MustContain(t, s, `"plain":"v"`)
	testkit.MustContain(t, s, redactedLiteral)
}

func TestAuditorRecordAndRecent(t *testing.T) {
	a := NewAuditor(true, 3)
	for i := 0; i < 5; i++ {
		a.Record(AuditToolInvocation, "", "x.test", "ok", time.Millisecond, map[string]any{"token": "t"})
	}
	if a.Len() != 3 {
		t.Fatalf("Len = %d", a.Len())
	}
	recs := a.Recent(2)
	if len(recs) != 2 {
		t.Fatalf("Recent(2) = %d", len(recs))
	}
	if recs[0].Principal != "anonymous" {
		t.Fatalf("principal = %q", recs[0].Principal)
	}
	if recs[0].Params["token"] != redactedLiteral {
		t.Fatalf("params not redacted: %v", recs[0].Params)
	}

	off := NewAuditor(false, 3)
	off.Record(AuditError, "p", "s", "o", 0, nil)
	if off.Len() != 0 {
		t.Fatalf("disabled auditor stored a record")
	}
}

func TestIsInternal(t *testing.T) {
	internal := []string{"127.0.0.1", "10.0.0.8", "192.168.1.1", "172.16.0.1", "169.254.0.5", "224.0.0.1", "0.0.0.0", "::1", "fe80::1", "fc00::1", "ff02::1"}
	for _, s := range internal {
		if !isInternal(netip.MustParseAddr(s)) {
			t.Fatalf("isInternal(%s) = false", s)
		}
	}
	external := []string{"93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946", "8.8.8.8"}
	for _, s := range external {
		if isInternal(netip.MustParseAddr(s)) {
			t.Fatalf("isInternal(%s) = true", s)
		}
	}
}

func newTestGuard(t *testing.T, opts Options, lookupIP string) (*Guard, *Auditor) {
	t.Helper()
	audit := NewAuditor(true, 100)
	g := NewGuard(fetcher.New(fetcher.Options{}), NewBlocklist([]string{"*.bad.example"}), audit, opts)
	g.lookup = func(ctx context.Context, host string) ([]netip.Addr, error) {
		return []netip.Addr{netip.MustParseAddr(lookupIP)}, nil
	}
	return g, audit
}

func TestGuardSchemeRejected(t *testing.T) {
	g, audit := newTestGuard(t, Options{BlockingEnabled: true}, "93.184.216.34")
	err := g.Vet(context.Background(), "http://plain.test/x", "p")
	testkit.MustCode(t, err, perr.ErrorCodeSchemeRejected)
	if audit.Len() != 1 {
		t.Fatalf("audit len = %d", audit.Len())
	}

	gAllow, _ := newTestGuard(t, Options{BlockingEnabled: true, AllowHTTP: true}, "93.184.216.34")
	testkit.MustNoErr(t, gAllow.Vet(context.Background(), "http://plain.test/x", "p"))

	err = g.Vet(context.Background(), "ftp://x.test/a", "p")
	testkit.MustCode(t, err, perr.ErrorCodeSchemeRejected)
}

func TestGuardBlocklistShortCircuitsAndAudits(t *testing.T) {
	g, audit := newTestGuard(t, Options{BlockingEnabled: true}, "93.184.216.34")
	err := g.Vet(context.Background(), "https://sub.bad.example/api", "p")
	testkit.MustCode(t, err, perr.ErrorCodeInstanceBlocked)

	recs := audit.Recent(0)
	if len(recs) != 1 || recs[0].Kind != AuditBlockedInstance {
		t.Fatalf("audit = %+v", recs)
	}

	// blocking disabled lets the host through to the SSRF stage
	gOff, _ := newTestGuard(t, Options{BlockingEnabled: false}, "93.184.216.34")
	testkit.MustNoErr(t, gOff.Vet(context.Background(), "https://sub.bad.example/api", "p"))
}

func TestGuardSsrf(t *testing.T) {
	g, audit := newTestGuard(t, Options{BlockingEnabled: true}, "127.0.0.1")
	err := g.Vet(context.Background(), "https://innocent.test/x", "p")
	testkit.MustCode(t, err, perr.ErrorCodeSsrfBlocked)
	recs := audit.Recent(0)
	if len(recs) != 1 || recs[0].Kind != AuditSsrfBlocked {
		t.Fatalf("audit = %+v", recs)
	}

	// literal IPs rejected by default, even public ones
	err = g.Vet(context.Background(), "https://93.184.216.34/x", "p")
	testkit.MustCode(t, err, perr.ErrorCodeSsrfBlocked)

	gIP, _ := newTestGuard(t, Options{BlockingEnabled: true, AllowIPLiterals: true}, "93.184.216.34")
	testkit.MustNoErr(t, gIP.Vet(context.Background(), "https://93.184.216.34/x", "p"))
	err = gIP.Vet(context.Background(), "https://10.1.2.3/x", "p")
	testkit.MustCode(t, err, perr.ErrorCodeSsrfBlocked)
}

func TestGuardDoAuditsAllowedCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)

	audit := NewAuditor(true, 10)
	g := NewGuard(fetcher.New(fetcher.Options{}), NewBlocklist(nil), audit, Options{AllowHTTP: true, AllowIPLiterals: true})
	// httptest binds to 127.0.0.1; pretend localhost resolves publicly so
	// the SSRF stage passes and the request itself is exercised
	g.lookup = func(ctx context.Context, host string) ([]netip.Addr, error) {
		return []netip.Addr{netip.MustParseAddr("93.184.216.34")}, nil
	}

	resp, err := g.Do(context.Background(), fetcher.Request{Method: http.MethodGet, URL: "http://localhost:" + u.Port() + "/"})
	testkit.MustNoErr(t, err)
	if resp.Status != 200 {
		t.Fatalf("status = %d", resp.Status)
	}
	recs := audit.Recent(0)
	if len(recs) != 1 || recs[0].Kind != AuditResourceAccess || recs[0].Outcome != "ok" {
		t.Fatalf("audit = %+v", recs)
	}
}
