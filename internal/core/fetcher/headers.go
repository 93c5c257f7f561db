package fetcher

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// RateInfo is the server-advertised rate-limit state carried on a response.
// Reset may arrive as a unix epoch (GitHub style) or ISO-8601 (Mastodon)
type RateInfo struct {
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
	// Present is true when any X-RateLimit-* header was seen
	Present bool
}

// PageLinks carries Link-header pagination URLs when advertised
type PageLinks struct {
	Next string
	Prev string
}

// ParseRateHeaders extracts X-RateLimit-* and Retry-After
func ParseRateHeaders(h http.Header, now time.Time) RateInfo {
	var out RateInfo
	if v := h.Get("X-RateLimit-Limit"); v != "" {
		out.Limit = atoi(v)
		out.Present = true
	}
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		out.Remaining = atoi(v)
		out.Present = true
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		out.Present = true
		if sec := atoi(v); sec > 1_000_000 {
			out.Reset = time.Unix(int64(sec), 0).UTC()
		} else if t, err := time.Parse(time.RFC3339, v); err == nil {
			out.Reset = t.UTC()
		}
	}
	if v := h.Get("Retry-After"); v != "" {
		if sec := atoi(v); sec > 0 {
			out.RetryAfter = time.Duration(sec) * time.Second
		} else if t, err := http.ParseTime(v); err == nil && t.After(now) {
			out.RetryAfter = t.Sub(now)
		}
	}
	return out
}

// ParseLinkHeader extracts rel="next" and rel="prev" targets from a Link
// header of the form `<url>; rel="next", <url>; rel="prev"`
func ParseLinkHeader(h http.Header) PageLinks {
	var out PageLinks
	for _, raw := range h.Values("Link") {
		for _, part := range strings.Split(raw, ",") {
			segs := strings.Split(part, ";")
			if len(segs) < 2 {
				continue
			}
			target := strings.TrimSpace(segs[0])
			if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
				continue
			}
			url := target[1 : len(target)-1]
			for _, attr := range segs[1:] {
				k, v, ok := strings.Cut(strings.TrimSpace(attr), "=")
				if !ok || !strings.EqualFold(strings.TrimSpace(k), "rel") {
					continue
				}
				switch strings.Trim(strings.TrimSpace(v), `"`) {
				case "next":
					out.Next = url
				case "prev":
					out.Prev = url
				}
			}
		}
	}
	return out
}

func atoi(s string) int {
	i, _ := strconv.Atoi(strings.TrimSpace(s))
	return i
}
