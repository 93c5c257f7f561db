// Package paginate normalizes the fediverse's three pagination dialects
// behind one opaque cursor: ActivityPub collection "next"/"prev" URLs,
// RFC 8288 Link headers, and Mastodon-style max_id/min_id/since_id query
// params. Cursors are base64 of a small JSON envelope tagged with the
// dialect they came from, so a cursor is only ever replayed against the
// dialect that produced it
package paginate

import (
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"fedigate/internal/core/fetcher"
	perr "fedigate/internal/platform/errors"
)

// Cursor dialects
const (
	SchemeCollection = "collection"
	SchemeLink       = "link"
	SchemeParams     = "params"
)

// Cursor is the decoded form of an opaque page token
type Cursor struct {
	Scheme string `json:"s"`
	// URL carries the ready-made page URL for collection and link cursors
	URL string `json:"u,omitempty"`
	// id bounds for params cursors
	MaxID   string `json:"max,omitempty"`
	MinID   string `json:"min,omitempty"`
	SinceID string `json:"since,omitempty"`
}

// Page is one window of results with opaque continuation tokens.
// An empty Next means the window is the last one
type Page[T any] struct {
	Items []T    `json:"items"`
	Next  string `json:"next_cursor,omitempty"`
	Prev  string `json:"prev_cursor,omitempty"`
}

// Map converts a page's items, carrying the cursors through
func Map[T, U any](p Page[T], f func(T) U) Page[U] {
	out := Page[U]{Next: p.Next, Prev: p.Prev, Items: make([]U, len(p.Items))}
	for i, it := range p.Items {
		out.Items[i] = f(it)
	}
	return out
}

// Encode seals a cursor into its opaque wire form
func Encode(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode opens an opaque cursor. Tokens that do not decode to a known
// dialect are rejected, not guessed at
func Decode(token string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "malformed cursor")
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "malformed cursor")
	}
	switch c.Scheme {
	case SchemeCollection, SchemeLink, SchemeParams:
		return c, nil
	}
	return Cursor{}, perr.InvalidInputf("unknown cursor dialect %q", c.Scheme)
}

// FromCollection builds a cursor from an ActivityPub collection page URL
func FromCollection(pageURL string) string {
	if pageURL == "" {
		return ""
	}
	return Encode(Cursor{Scheme: SchemeCollection, URL: pageURL})
}

// FromLink builds next/prev cursors from parsed Link header relations
func FromLink(p fetcher.PageLinks) (next, prev string) {
	if p.Next != "" {
		next = Encode(Cursor{Scheme: SchemeLink, URL: p.Next})
	}
	if p.Prev != "" {
		prev = Encode(Cursor{Scheme: SchemeLink, URL: p.Prev})
	}
	return next, prev
}

// FromIDs synthesizes params cursors from the window edges for APIs that
// paginate by id bounds but send no Link header. lastID walks older
// content (max_id), firstID walks newer (min_id)
func FromIDs(firstID, lastID string) (next, prev string) {
	if lastID != "" {
		next = Encode(Cursor{Scheme: SchemeParams, MaxID: lastID})
	}
	if firstID != "" {
		prev = Encode(Cursor{Scheme: SchemeParams, MinID: firstID})
	}
	return next, prev
}

// Derive picks the continuation source for a response that may carry both
// a Link header and collection next/prev fields. ActivityPub media types
// trust the collection body; everything else trusts the header, because
// Mastodon's Link ids are authoritative where its JSON mirrors are not
func Derive(resp *fetcher.Response, collectionNext, collectionPrev string) (next, prev string) {
	ct := ""
	if resp != nil {
		ct = resp.Header.Get("Content-Type")
	}
	apBody := strings.Contains(ct, "activity+json") || strings.Contains(ct, "ld+json")

	if apBody && collectionNext != "" {
		next = FromCollection(collectionNext)
	} else if resp != nil && resp.Page.Next != "" {
		next, _ = FromLink(resp.Page)
	} else if collectionNext != "" {
		next = FromCollection(collectionNext)
	}

	if apBody && collectionPrev != "" {
		prev = FromCollection(collectionPrev)
	} else if resp != nil && resp.Page.Prev != "" {
		_, prev = FromLink(resp.Page)
	} else if collectionPrev != "" {
		prev = FromCollection(collectionPrev)
	}
	return next, prev
}

// Apply translates a cursor into the concrete URL for the next request.
// URL-bearing cursors must stay on the host that issued them; a cursor is
// a continuation, not a redirect
func Apply(token, baseURL string) (string, error) {
	if token == "" {
		return baseURL, nil
	}
	c, err := Decode(token)
	if err != nil {
		return "", err
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeInvalidInput, "bad base url %s", baseURL)
	}

	switch c.Scheme {
	case SchemeCollection, SchemeLink:
		u, err := url.Parse(c.URL)
		if err != nil {
			return "", perr.Wrapf(err, perr.ErrorCodeInvalidInput, "malformed cursor url")
		}
		if !strings.EqualFold(u.Host, base.Host) {
			return "", perr.InvalidInputf("cursor host %s does not match %s", u.Host, base.Host)
		}
		return c.URL, nil
	case SchemeParams:
		q := base.Query()
		if c.MaxID != "" {
			q.Set("max_id", c.MaxID)
		}
		if c.MinID != "" {
			q.Set("min_id", c.MinID)
		}
		if c.SinceID != "" {
			q.Set("since_id", c.SinceID)
		}
		base.RawQuery = q.Encode()
		return base.String(), nil
	}
	return "", perr.InvalidInputf("unknown cursor dialect %q", c.Scheme)
}
