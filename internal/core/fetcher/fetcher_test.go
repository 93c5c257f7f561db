package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/testkit"
)

func TestDoClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   perr.ErrorCode
		ok     bool
	}{
		{"ok", 200, 0, true},
		{"created", 201, 0, true},
		{"redirect verbatim", 301, 0, true},
		{"client error", 404, perr.ErrorCodeClient, false},
		{"rate limited", 429, perr.ErrorCodeInstanceRateLimited, false},
		{"server error", 502, perr.ErrorCodeServer, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if c.status >= 300 && c.status < 400 {
					w.Header().Set("Location", "https://elsewhere.test/")
				}
				w.WriteHeader(c.status)
				_, _ = w.Write([]byte("body"))
			}))
			defer srv.Close()

			cl := New(Options{})
			resp, err := cl.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
			if c.ok {
				testkit.MustNoErr(t, err)
			} else {
				testkit.MustCode(t, err, c.code)
			}
			if resp == nil || resp.Status != c.status {
				t.Fatalf("status = %+v, want %d", resp, c.status)
			}
		})
	}
}

func TestDoSendsUserAgentAndHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
	}))
	defer srv.Close()

	cl := New(Options{UserAgent: "fedigate-test/1.0"})
	h := http.Header{}
	h.Set("Accept", "application/activity+json")
	_, err := cl.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL, Header: h})
	testkit.MustNoErr(t, err)
	if gotUA != "fedigate-test/1.0" {
		t.Fatalf("ua = %q", gotUA)
	}
	if gotAccept != "application/activity+json" {
		t.Fatalf("accept = %q", gotAccept)
	}
}

func TestDoTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	cl := New(Options{Timeout: 20 * time.Millisecond})
	_, err := cl.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	testkit.MustCode(t, err, perr.ErrorCodeTimeout)
}

func TestDoCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	cl := New(Options{})
	_, err := cl.Do(ctx, Request{Method: http.MethodGet, URL: srv.URL})
	testkit.MustCode(t, err, perr.ErrorCodeCancelled)
}

func TestRateAndPageExtractionOnEveryResponse(t *testing.T) {
	reset := time.Now().Add(30 * time.Second).UTC().Format(time.RFC3339)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Limit", "300")
		w.Header().Set("X-RateLimit-Remaining", "7")
		w.Header().Set("X-RateLimit-Reset", reset)
		w.Header().Set("Link", `<https://x.test/api/v1/timelines/public?max_id=1>; rel="next", <https://x.test/api/v1/timelines/public?min_id=9>; rel="prev"`)
		w.WriteHeader(500)
	}))
	defer srv.Close()

	cl := New(Options{})
	resp, err := cl.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	testkit.MustCode(t, err, perr.ErrorCodeServer)
	if !resp.Rate.Present || resp.Rate.Limit != 300 || resp.Rate.Remaining != 7 {
		t.Fatalf("rate = %+v", resp.Rate)
	}
	if resp.Rate.Reset.IsZero() {
		t.Fatalf("reset not parsed")
	}
	if resp.Page.Next != "https://x.test/api/v1/timelines/public?max_id=1" ||
		resp.Page.Prev != "https://x.test/api/v1/timelines/public?min_id=9" {
		t.Fatalf("page = %+v", resp.Page)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(429)
	}))
	defer srv.Close()

	cl := New(Options{})
	resp, err := cl.Do(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	testkit.MustCode(t, err, perr.ErrorCodeInstanceRateLimited)
	if resp.Rate.RetryAfter != 7*time.Second {
		t.Fatalf("retry-after = %v", resp.Rate.RetryAfter)
	}
	if perr.RetryAfterOf(err) != 7*time.Second {
		t.Fatalf("error retry-after = %v", perr.RetryAfterOf(err))
	}
}

func TestEpochRateReset(t *testing.T) {
	h := http.Header{}
	h.Set("X-RateLimit-Reset", "1767225600") // epoch form
	ri := ParseRateHeaders(h, time.Now())
	if ri.Reset.Unix() != 1767225600 {
		t.Fatalf("epoch reset = %v", ri.Reset)
	}
}

func TestParseLinkHeaderMalformed(t *testing.T) {
	h := http.Header{}
	h.Set("Link", `garbage, <also-bad; rel="next"`)
	if pl := ParseLinkHeader(h); pl.Next != "" || pl.Prev != "" {
		t.Fatalf("malformed link parsed: %+v", pl)
	}
}
