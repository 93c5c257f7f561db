package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fedigate/internal/engine"
	"fedigate/internal/platform/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	eng := engine.New(config.Settings{
		UserAgent:                "fedigate-test/0",
		RequestTimeout:           time.Second,
		InstanceBlockingEnabled:  true,
		BlockedInstances:         []string{"evil.test"},
		AuditLogEnabled:          true,
		AuditLogMaxEntries:       64,
		CacheTTLActor:            time.Minute,
		InstanceCacheTTL:         time.Minute,
		MaxConcurrent:            4,
		MaxConcurrentPerInstance: 2,
	})
	srv := httptest.NewServer(New(eng, Options{}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	var body map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestRegistryEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/registry")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	tools, ok := body["tools"].([]any)
	if !ok || len(tools) == 0 {
		t.Fatalf("no tools in %v", body)
	}
	first := tools[0].(map[string]any)
	if first["name"] != "discover_actor" {
		t.Fatalf("first tool = %v", first["name"])
	}
	if kinds, ok := body["resource_kinds"].([]any); !ok || len(kinds) == 0 {
		t.Fatalf("no resource kinds in %v", body)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp, body := get(t, srv.URL+"/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["status"] != "healthy" {
		t.Fatalf("health = %v", body)
	}
}

func TestUnknownToolIs404(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := post(t, srv.URL+"/tools/launch_rockets", `{}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestBlockedInstanceSurfacesAs403(t *testing.T) {
	srv := newTestServer(t)
	resp, body := post(t, srv.URL+"/tools/discover_actor", `{"ref": "user@evil.test"}`)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if body["error_name"] != "InstanceBlocked" {
		t.Fatalf("error_name = %v", body["error_name"])
	}
}

func TestWriteWithoutAccountsIs412(t *testing.T) {
	srv := newTestServer(t)
	resp, body := post(t, srv.URL+"/tools/post_status", `{"status": "hi"}`)
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if body["error_name"] != "WriteNotEnabled" {
		t.Fatalf("error_name = %v", body["error_name"])
	}
}

func TestResourceURIValidation(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := get(t, srv.URL+"/resources?uri=gopher://remote-actor/x")
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	resp, body := get(t, srv.URL+"/resources?uri=activitypub://remote-actor/user@evil.test")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
}

func TestMetricsEndpointCountsOps(t *testing.T) {
	srv := newTestServer(t)
	_, _ = post(t, srv.URL+"/tools/discover_actor", `{"ref": "user@evil.test"}`)

	resp, body := get(t, srv.URL+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	opsStats, ok := body["ops"].(map[string]any)
	if !ok {
		t.Fatalf("no ops in %v", body)
	}
	if _, ok := opsStats["discover_actor"]; !ok {
		t.Fatalf("discover_actor not counted: %v", opsStats)
	}
	errCounts, ok := body["errors"].(map[string]any)
	if !ok || errCounts["InstanceBlocked"] == nil {
		t.Fatalf("errors = %v", errCounts)
	}
}
