package nodeinfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"fedigate/internal/core/fetcher"
	"fedigate/internal/core/model"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/testkit"
)

func TestFetchPrefers21Schema(t *testing.T) {
	var host string
	var servedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/.well-known/nodeinfo":
			_, _ = w.Write([]byte(`{"links": [
				{"rel": "http://nodeinfo.diaspora.software/ns/schema/2.0", "href": "http://` + host + `/nodeinfo/2.0"},
				{"rel": "http://nodeinfo.diaspora.software/ns/schema/2.1", "href": "http://` + host + `/nodeinfo/2.1"}
			]}`))
		case "/nodeinfo/2.0", "/nodeinfo/2.1":
			servedPath = r.URL.Path
			_, _ = w.Write([]byte(`{"version": "2.1", "software": {"name": "mastodon", "version": "4.2.1"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	testkit.MustNoErr(t, err)
	host = u.Host

	c := New(fetcher.New(fetcher.Options{}))
	c.Scheme = "http"
	doc, err := c.Fetch(context.Background(), host)
	testkit.MustNoErr(t, err)
	if servedPath != "/nodeinfo/2.1" {
		t.Fatalf("served %s, want the 2.1 schema", servedPath)
	}
	if doc.Software.Name != "mastodon" {
		t.Fatalf("software = %q", doc.Software.Name)
	}
	if doc.Instance(host).Software != model.SoftwareMastodon {
		t.Fatalf("classified as %s", doc.Instance(host).Software)
	}
}

func TestFetchRejectsSchemalessHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"links": [{"rel": "http://example.org/other", "href": "http://x/y"}]}`))
	}))
	defer srv.Close()
	u, err := url.Parse(srv.URL)
	testkit.MustNoErr(t, err)

	c := New(fetcher.New(fetcher.Options{}))
	c.Scheme = "http"
	_, err = c.Fetch(context.Background(), u.Host)
	testkit.MustCode(t, err, perr.ErrorCodeClient)
}

func TestClassifySoftware(t *testing.T) {
	tests := []struct {
		name string
		want model.Software
	}{
		{"Mastodon", model.SoftwareMastodon},
		{"hometown", model.SoftwareMastodon},
		{"firefish", model.SoftwareMisskey},
		{"sharkey", model.SoftwareMisskey},
		{"lemmy", model.SoftwareLemmy},
		{"peertube", model.SoftwarePeertube},
		{"writefreely", model.SoftwareUnknown},
	}
	for _, tt := range tests {
		if got := ClassifySoftware(tt.name); got != tt.want {
			t.Fatalf("ClassifySoftware(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}
