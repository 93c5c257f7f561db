package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fedigate/internal/core/metrics"
	"fedigate/internal/core/registry"
	"fedigate/internal/ops"
	perr "fedigate/internal/platform/errors"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.eng.Metrics().Health()
	status := http.StatusOK
	if report.Status == metrics.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ops":    s.eng.Metrics().Stats(),
		"errors": s.eng.Metrics().ErrorCounts(),
	})
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tools":          registry.Tools(),
		"resource_kinds": registry.ResourceKinds(),
	})
}

func qInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

// threadRef splits a canonical post URL into the host and trailing status
// id that thread lookups are addressed by
func threadRef(rawURL string) (host, id string, err error) {
	u, uerr := url.Parse(rawURL)
	if uerr != nil || u.Host == "" {
		return "", "", perr.InvalidInputf("post-thread resource %q is not a post URL", rawURL)
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	id = segs[len(segs)-1]
	if id == "" {
		return "", "", perr.InvalidInputf("post-thread resource %q names no status", rawURL)
	}
	return u.Host, id, nil
}

// handleResource reads one addressable resource: the uri query parameter
// carries the activitypub:// URI, and kind-specific options (cursor,
// limit, host) ride alongside as query parameters
func (s *Server) handleResource(w http.ResponseWriter, r *http.Request) {
	res, err := registry.ParseResourceURI(r.URL.Query().Get("uri"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	ctx := r.Context()
	q := r.URL.Query()

	var out any
	switch res.Kind {
	case registry.KindServerInfo:
		cfg := s.eng.Settings()
		out = map[string]any{
			"name":           cfg.ServerName,
			"version":        cfg.ServerVersion,
			"resource_kinds": registry.ResourceKinds(),
		}
	case registry.KindRemoteActor:
		out, err = s.eng.Ops().DiscoverActor(ctx, res.Param)
	case registry.KindRemoteTimeline:
		out, err = s.eng.Ops().FetchTimeline(ctx, ops.TimelineInput{
			Kind: "actor", Actor: res.Param,
			Limit: qInt(r, "limit"), Cursor: q.Get("cursor"),
		})
	case registry.KindRemoteFollowers:
		page, total, e := s.eng.Ops().FetchFollowers(ctx, res.Param, q.Get("cursor"))
		out, err = map[string]any{"page": page, "total": total}, e
	case registry.KindRemoteFollowing:
		page, total, e := s.eng.Ops().FetchFollowing(ctx, res.Param, q.Get("cursor"))
		out, err = map[string]any{"page": page, "total": total}, e
	case registry.KindInstanceInfo:
		out, err = s.eng.Ops().GetInstanceInfo(ctx, res.Param)
	case registry.KindTrending:
		kind := q.Get("kind")
		if kind == "" {
			kind = "tags"
		}
		out, err = s.eng.Ops().Trending(ctx, res.Param, kind, qInt(r, "limit"))
	case registry.KindLocalTimeline, registry.KindFederatedTimeline:
		kind := "public"
		if res.Kind == registry.KindLocalTimeline {
			kind = "local"
		}
		out, err = s.eng.Ops().FetchTimeline(ctx, ops.TimelineInput{
			Host: res.Param, Kind: kind,
			Limit: qInt(r, "limit"), Cursor: q.Get("cursor"),
		})
	case registry.KindPostThread:
		host, id, e := threadRef(res.Param)
		if e != nil {
			err = e
			break
		}
		out, err = s.eng.Ops().FetchThread(ctx, host, id)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
