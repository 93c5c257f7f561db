package accounts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"fedigate/internal/core/adapters/masto"
	"fedigate/internal/core/fetcher"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/testkit"
)

func TestRegistryParsing(t *testing.T) {
	r := NewRegistry(Config{
		DefaultInstance: "https://mastodon.social/",
		DefaultToken:    "tok-default",
		DefaultUsername: "me",
		Accounts: []string{
			"work:fosstodon.org:tok-work:worker",
			"broken-record",          // skipped
			"nouser:pixelfed.social:tok-pix", // username optional
		},
	}, nil)

	infos := r.List()
	if len(infos) != 3 {
		t.Fatalf("accounts = %d, want 3", len(infos))
	}
	if infos[0].ID != "default" || infos[0].Instance != "mastodon.social" || !infos[0].Active {
		t.Fatalf("first = %+v", infos[0])
	}
	if infos[1].ID != "work" || infos[1].Username != "worker" || infos[1].Active {
		t.Fatalf("second = %+v", infos[1])
	}
	if infos[2].Username != "" {
		t.Fatalf("third = %+v", infos[2])
	}
	if !r.Enabled() {
		t.Fatalf("registry should be enabled")
	}
}

func TestResolveKeepsActiveUnchanged(t *testing.T) {
	r := NewRegistry(Config{Accounts: []string{
		"one:a.test:t1",
		"two:b.test:t2",
	}}, nil)

	// explicit resolution does not move the active pointer
	a, err := r.Resolve("two")
	testkit.MustNoErr(t, err)
	if a.ID != "two" {
		t.Fatalf("resolved %q", a.ID)
	}
	if r.Active() != "one" {
		t.Fatalf("active = %q, want one", r.Active())
	}

	// empty id means the active account
	a, err = r.Resolve("")
	testkit.MustNoErr(t, err)
	if a.ID != "one" {
		t.Fatalf("resolved %q", a.ID)
	}

	testkit.MustNoErr(t, r.SetActive("two"))
	a, err = r.Resolve("")
	testkit.MustNoErr(t, err)
	if a.ID != "two" {
		t.Fatalf("resolved %q after switch", a.ID)
	}

	testkit.MustCode(t, r.SetActive("nope"), perr.ErrorCodeInvalidInput)
	testkit.MustCode(t, func() error { _, err := r.Resolve("nope"); return err }(), perr.ErrorCodeInvalidInput)
}

func TestResolveWithoutAccounts(t *testing.T) {
	r := NewRegistry(Config{}, nil)
	if r.Enabled() {
		t.Fatalf("empty registry claims accounts")
	}
	_, err := r.Resolve("")
	testkit.MustCode(t, err, perr.ErrorCodeWriteNotEnabled)
}

func TestTokenStaysOutOfInfo(t *testing.T) {
	r := NewRegistry(Config{Accounts: []string{"a:h.test:super-secret:u"}}, nil)
	for _, info := range r.List() {
		if info.Instance == "super-secret" || info.Username == "super-secret" {
			t.Fatalf("token leaked into info: %+v", info)
		}
	}
	a, err := r.Resolve("a")
	testkit.MustNoErr(t, err)
	if a.Token() != "super-secret" {
		t.Fatalf("token accessor broken")
	}
}

func TestRedactRecord(t *testing.T) {
	if got := redactRecord("id:host:secret:user"); got != "id:host:<redacted>:user" {
		t.Fatalf("redactRecord = %q", got)
	}
	if got := redactRecord("garbage"); got != "garbage" {
		t.Fatalf("redactRecord = %q", got)
	}
}

func newVerifyServer(t *testing.T, expectToken string, status int) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/accounts/verify_credentials" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+expectToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte(`{"id": "1", "username": "me", "acct": "me", "url": "http://x/@me"}`))
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	testkit.MustNoErr(t, err)
	return u.Host
}

func newMastoVerifier() *masto.Client {
	c := masto.New(fetcher.New(fetcher.Options{}))
	c.Scheme = "http"
	return c
}

// the default bundle is used below because httptest hosts carry a port,
// and ':' is the record separator

func TestVerifyHappyPath(t *testing.T) {
	host := newVerifyServer(t, "good-token", http.StatusOK)
	r := NewRegistry(Config{DefaultInstance: host, DefaultToken: "good-token", DefaultUsername: "me"}, newMastoVerifier())

	actor, err := r.Verify(context.Background(), "default")
	testkit.MustNoErr(t, err)
	if actor.PreferredUsername != "me" {
		t.Fatalf("actor = %+v", actor)
	}
}

func TestVerifyBadToken(t *testing.T) {
	host := newVerifyServer(t, "good-token", http.StatusOK)
	r := NewRegistry(Config{DefaultInstance: host, DefaultToken: "wrong"}, newMastoVerifier())

	_, err := r.Verify(context.Background(), "")
	testkit.MustCode(t, err, perr.ErrorCodeInvalidCredentials)
}

func TestVerifyServerFailure(t *testing.T) {
	host := newVerifyServer(t, "good-token", http.StatusBadGateway)
	r := NewRegistry(Config{DefaultInstance: host, DefaultToken: "good-token"}, newMastoVerifier())

	_, err := r.Verify(context.Background(), "")
	testkit.MustCode(t, err, perr.ErrorCodeVerifyFailed)
}
