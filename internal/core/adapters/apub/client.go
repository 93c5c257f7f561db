// Package apub reads raw ActivityPub collections and objects. It is the
// fallback for hosts that serve no Mastodon-compatible API: read-only,
// no auth, and deliberately non-transitive. Object references inside
// collection items are kept as URLs, never chased
package apub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fedigate/internal/core/fetcher"
	"fedigate/internal/core/htmltext"
	"fedigate/internal/core/model"
	"fedigate/internal/core/paginate"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/logger"
)

const acceptActivity = `application/activity+json, application/ld+json; profile="https://www.w3.org/ns/activitystreams"`

const publicURI = "https://www.w3.org/ns/activitystreams#Public"

// wireCollection covers OrderedCollection and OrderedCollectionPage.
// first may be a URL string or an embedded page
type wireCollection struct {
	Type         string            `json:"type"`
	TotalItems   int64             `json:"totalItems"`
	First        json.RawMessage   `json:"first"`
	Next         string            `json:"next"`
	Prev         string            `json:"prev"`
	OrderedItems []json.RawMessage `json:"orderedItems"`
	Items        []json.RawMessage `json:"items"`
}

func (w *wireCollection) items() []json.RawMessage {
	if len(w.OrderedItems) > 0 {
		return w.OrderedItems
	}
	return w.Items
}

// wireActivity is a collection item: either an activity wrapping an
// object, or a bare object
type wireActivity struct {
	Type   string          `json:"type"`
	Object json.RawMessage `json:"object"`
}

type wireNote struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	URL          string   `json:"url"`
	AttributedTo string   `json:"attributedTo"`
	Content      string   `json:"content"`
	Summary      string   `json:"summary"`
	Published    string   `json:"published"`
	InReplyTo    string   `json:"inReplyTo"`
	To           []string `json:"to"`
	CC           []string `json:"cc"`
	Attachment   []struct {
		Type      string `json:"type"`
		URL       string `json:"url"`
		MediaType string `json:"mediaType"`
		Name      string `json:"name"`
	} `json:"attachment"`
}

// Client fetches AP documents through the outbound seam
type Client struct {
	do  fetcher.Doer
	log logger.Logger
}

// New builds a Client on top of the given outbound seam
func New(do fetcher.Doer) *Client {
	return &Client{do: do, log: *logger.Named("apub")}
}

func (c *Client) fetch(ctx context.Context, rawURL string, out any) (*fetcher.Response, error) {
	resp, err := c.do.Do(ctx, fetcher.Request{
		Method: http.MethodGet,
		URL:    rawURL,
		Header: http.Header{"Accept": []string{acceptActivity}},
	})
	if err != nil {
		return resp, err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, perr.Wrapf(err, perr.ErrorCodeActorMalformed, "document at %s is not valid JSON", rawURL)
		}
	}
	return resp, nil
}

// Object fetches an arbitrary AP object as raw JSON
func (c *Client) Object(ctx context.Context, rawURL string) (map[string]any, error) {
	var obj map[string]any
	if _, err := c.fetch(ctx, rawURL, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// Post fetches a single note-like object and normalizes it
func (c *Client) Post(ctx context.Context, rawURL string) (model.Post, error) {
	var raw json.RawMessage
	if _, err := c.fetch(ctx, rawURL, &raw); err != nil {
		return model.Post{}, err
	}
	p, ok := c.itemToPost(raw, hostOf(rawURL))
	if !ok {
		return model.Post{}, perr.Newf(perr.ErrorCodeClient, "object at %s is not a post", rawURL)
	}
	return p, nil
}

// Outbox reads one page of an actor's outbox and normalizes the embedded
// notes. Items that only reference their object by URL are dropped
func (c *Client) Outbox(ctx context.Context, outboxURL, cursor string) (paginate.Page[model.Post], error) {
	pageURL, err := paginate.Apply(cursor, outboxURL)
	if err != nil {
		return paginate.Page[model.Post]{}, err
	}

	var col wireCollection
	resp, err := c.fetch(ctx, pageURL, &col)
	if err != nil {
		return paginate.Page[model.Post]{}, err
	}

	// a bare OrderedCollection points at its first page
	if len(col.items()) == 0 && len(col.First) > 0 {
		var firstURL string
		if err := json.Unmarshal(col.First, &firstURL); err == nil && firstURL != "" {
			if resp, err = c.fetch(ctx, firstURL, &col); err != nil {
				return paginate.Page[model.Post]{}, err
			}
		} else {
			// first is an embedded page
			if err := json.Unmarshal(col.First, &col); err != nil {
				return paginate.Page[model.Post]{}, perr.Wrapf(err, perr.ErrorCodeActorMalformed, "unreadable first page in %s", outboxURL)
			}
		}
	}

	host := hostOf(pageURL)
	page := paginate.Page[model.Post]{}
	for _, raw := range col.items() {
		if p, ok := c.itemToPost(raw, host); ok {
			page.Items = append(page.Items, p)
		}
	}
	page.Next, page.Prev = paginate.Derive(resp, col.Next, col.Prev)
	return page, nil
}

// ActorRefs reads one page of a followers/following collection and
// returns the member actor URLs
func (c *Client) ActorRefs(ctx context.Context, collectionURL, cursor string) (paginate.Page[string], int64, error) {
	pageURL, err := paginate.Apply(cursor, collectionURL)
	if err != nil {
		return paginate.Page[string]{}, 0, err
	}

	var col wireCollection
	resp, err := c.fetch(ctx, pageURL, &col)
	if err != nil {
		return paginate.Page[string]{}, 0, err
	}
	total := col.TotalItems

	if len(col.items()) == 0 && len(col.First) > 0 {
		var firstURL string
		if err := json.Unmarshal(col.First, &firstURL); err == nil && firstURL != "" {
			if resp, err = c.fetch(ctx, firstURL, &col); err != nil {
				return paginate.Page[string]{}, 0, err
			}
		}
	}

	page := paginate.Page[string]{}
	for _, raw := range col.items() {
		var ref string
		if err := json.Unmarshal(raw, &ref); err == nil && ref != "" {
			page.Items = append(page.Items, ref)
			continue
		}
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &obj); err == nil && obj.ID != "" {
			page.Items = append(page.Items, obj.ID)
		}
	}
	page.Next, page.Prev = paginate.Derive(resp, col.Next, col.Prev)
	return page, total, nil
}

// itemToPost unwraps Create activities and normalizes embedded notes
func (c *Client) itemToPost(raw json.RawMessage, host string) (model.Post, bool) {
	var act wireActivity
	if err := json.Unmarshal(raw, &act); err != nil {
		return model.Post{}, false
	}

	noteRaw := raw
	switch act.Type {
	case "Create", "Update":
		if len(act.Object) == 0 {
			return model.Post{}, false
		}
		noteRaw = act.Object
	case "Note", "Article", "Question", "Page":
		// bare object, use as-is
	default:
		// Announce and friends reference their object by URL; skipped
		// rather than fetched
		return model.Post{}, false
	}

	var note wireNote
	if err := json.Unmarshal(noteRaw, &note); err != nil {
		return model.Post{}, false
	}
	if note.ID == "" {
		return model.Post{}, false
	}

	p := model.Post{
		ID:          note.ID,
		URL:         firstNonEmpty(note.URL, note.ID),
		Host:        host,
		Author:      model.Actor{ID: note.AttributedTo},
		SpoilerText: note.Summary,
		Visibility:  audienceVisibility(note.To, note.CC),
		InReplyTo:   note.InReplyTo,
	}
	if note.Content != "" {
		p.ContentHTML = htmltext.Sanitize(note.Content)
		p.ContentText = htmltext.Strip(p.ContentHTML)
	}
	if note.Published != "" {
		if ts, err := time.Parse(time.RFC3339, note.Published); err == nil {
			p.Published = ts
		}
	}
	for _, a := range note.Attachment {
		p.Media = append(p.Media, model.MediaAttachment{
			Type:    strings.SplitN(a.MediaType, "/", 2)[0],
			URL:     a.URL,
			AltText: a.Name,
		})
	}
	return p, true
}

// audienceVisibility maps to/cc addressing onto the normalized audience
func audienceVisibility(to, cc []string) model.Visibility {
	if contains(to, publicURI) {
		return model.VisibilityPublic
	}
	if contains(cc, publicURI) {
		return model.VisibilityUnlisted
	}
	for _, addr := range append(append([]string{}, to...), cc...) {
		if strings.HasSuffix(addr, "/followers") {
			return model.VisibilityFollowers
		}
	}
	return model.VisibilityDirect
}

func contains(ss []string, want string) bool {
	for _, s := range ss {
		if s == want {
			return true
		}
	}
	return false
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
