// Package masto speaks the Mastodon client API, the lingua franca also
// served by Pleroma, Akkoma, and Pixelfed. Responses are normalized into
// the shared model; pagination arrives as Link headers and leaves as
// opaque cursors
package masto

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fedigate/internal/core/fetcher"
	"fedigate/internal/core/model"
	"fedigate/internal/core/paginate"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/logger"
)

const defaultLimit = 20

// Client is a Mastodon API client bound to the outbound seam. It is
// host-agnostic: every call names its target instance
type Client struct {
	do  fetcher.Doer
	log logger.Logger
	// Scheme is https outside of tests
	Scheme string
}

// New builds a Client on top of the given outbound seam
func New(do fetcher.Doer) *Client {
	return &Client{do: do, log: *logger.Named("masto"), Scheme: "https"}
}

func (c *Client) base(host, path string) string {
	return c.Scheme + "://" + host + path
}

// call issues a request and decodes the JSON body into out when non-nil
func (c *Client) call(ctx context.Context, method, rawURL, token string, body []byte, contentType string, out any) (*fetcher.Response, error) {
	h := http.Header{"Accept": []string{"application/json"}}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	resp, err := c.do.Do(ctx, fetcher.Request{Method: method, URL: rawURL, Header: h, Body: body})
	if err != nil {
		return resp, err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, perr.Wrapf(err, perr.ErrorCodeClient, "unparseable response from %s", rawURL)
		}
	}
	return resp, nil
}

func (c *Client) get(ctx context.Context, rawURL, token string, out any) (*fetcher.Response, error) {
	return c.call(ctx, http.MethodGet, rawURL, token, nil, "", out)
}

func (c *Client) postJSON(ctx context.Context, rawURL, token string, payload, out any) (*fetcher.Response, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "encode request body")
	}
	return c.call(ctx, http.MethodPost, rawURL, token, b, "application/json", out)
}

// Instance fetches /api/v1/instance and normalizes it
func (c *Client) Instance(ctx context.Context, host string) (model.Instance, error) {
	var w wireInstanceV1
	if _, err := c.get(ctx, c.base(host, "/api/v1/instance"), "", &w); err != nil {
		return model.Instance{}, err
	}
	return toInstance(w, host), nil
}

// statusPage fetches a status list endpoint and derives cursors from the
// Link header, falling back to id-bound synthesis
func (c *Client) statusPage(ctx context.Context, rawURL, token, cursor string, host string) (paginate.Page[model.Post], error) {
	u, err := paginate.Apply(cursor, rawURL)
	if err != nil {
		return paginate.Page[model.Post]{}, err
	}
	var ws []wireStatus
	resp, err := c.get(ctx, u, token, &ws)
	if err != nil {
		return paginate.Page[model.Post]{}, err
	}
	page := paginate.Page[model.Post]{Items: make([]model.Post, 0, len(ws))}
	for _, w := range ws {
		page.Items = append(page.Items, toPost(w, host))
	}
	page.Next, page.Prev = paginate.Derive(resp, "", "")
	if page.Next == "" && len(ws) > 0 {
		page.Next, page.Prev = paginate.FromIDs(ws[0].ID, ws[len(ws)-1].ID)
	}
	return page, nil
}

// PublicTimeline reads the federated or local timeline
func (c *Client) PublicTimeline(ctx context.Context, host string, local bool, limit int, cursor string) (paginate.Page[model.Post], error) {
	q := url.Values{"limit": []string{strconv.Itoa(clampLimit(limit))}}
	if local {
		q.Set("local", "true")
	}
	return c.statusPage(ctx, c.base(host, "/api/v1/timelines/public?"+q.Encode()), "", cursor, host)
}

// TagTimeline reads a hashtag timeline; tag is given without '#'
func (c *Client) TagTimeline(ctx context.Context, host, tag string, limit int, cursor string) (paginate.Page[model.Post], error) {
	q := url.Values{"limit": []string{strconv.Itoa(clampLimit(limit))}}
	u := c.base(host, "/api/v1/timelines/tag/"+url.PathEscape(strings.TrimPrefix(tag, "#"))+"?"+q.Encode())
	return c.statusPage(ctx, u, "", cursor, host)
}

// HomeTimeline reads the authenticated user's home timeline
func (c *Client) HomeTimeline(ctx context.Context, host, token string, limit int, cursor string) (paginate.Page[model.Post], error) {
	q := url.Values{"limit": []string{strconv.Itoa(clampLimit(limit))}}
	return c.statusPage(ctx, c.base(host, "/api/v1/timelines/home?"+q.Encode()), token, cursor, host)
}

// Status fetches a single status by id
func (c *Client) Status(ctx context.Context, host, id string) (model.Post, error) {
	var w wireStatus
	if _, err := c.get(ctx, c.base(host, "/api/v1/statuses/"+url.PathEscape(id)), "", &w); err != nil {
		return model.Post{}, err
	}
	return toPost(w, host), nil
}

// Thread fetches a status and its conversation context
func (c *Client) Thread(ctx context.Context, host, id string) (model.Thread, error) {
	post, err := c.Status(ctx, host, id)
	if err != nil {
		return model.Thread{}, err
	}
	var wc wireContext
	if _, err := c.get(ctx, c.base(host, "/api/v1/statuses/"+url.PathEscape(id)+"/context"), "", &wc); err != nil {
		return model.Thread{}, err
	}
	th := model.Thread{Post: post}
	for _, w := range wc.Ancestors {
		th.Ancestors = append(th.Ancestors, toPost(w, host))
	}
	for _, w := range wc.Descendants {
		th.Descendants = append(th.Descendants, toPost(w, host))
	}
	return th, nil
}

// AccountLookup resolves an acct to the instance-local account record
func (c *Client) AccountLookup(ctx context.Context, host, acct string) (model.Actor, string, error) {
	var w wireAccount
	u := c.base(host, "/api/v1/accounts/lookup?acct="+url.QueryEscape(acct))
	if _, err := c.get(ctx, u, "", &w); err != nil {
		return model.Actor{}, "", err
	}
	return toActor(w, host), w.ID, nil
}

// AccountStatuses reads an account's posts
func (c *Client) AccountStatuses(ctx context.Context, host, accountID string, limit int, cursor string) (paginate.Page[model.Post], error) {
	q := url.Values{"limit": []string{strconv.Itoa(clampLimit(limit))}}
	u := c.base(host, "/api/v1/accounts/"+url.PathEscape(accountID)+"/statuses?"+q.Encode())
	return c.statusPage(ctx, u, "", cursor, host)
}

// accountPage fetches an account list endpoint with Link-header paging
func (c *Client) accountPage(ctx context.Context, rawURL, cursor, host string) (paginate.Page[model.Actor], error) {
	u, err := paginate.Apply(cursor, rawURL)
	if err != nil {
		return paginate.Page[model.Actor]{}, err
	}
	var ws []wireAccount
	resp, err := c.get(ctx, u, "", &ws)
	if err != nil {
		return paginate.Page[model.Actor]{}, err
	}
	page := paginate.Page[model.Actor]{Items: make([]model.Actor, 0, len(ws))}
	for _, w := range ws {
		page.Items = append(page.Items, toActor(w, host))
	}
	page.Next, page.Prev = paginate.Derive(resp, "", "")
	return page, nil
}

// Followers lists an account's followers
func (c *Client) Followers(ctx context.Context, host, accountID string, limit int, cursor string) (paginate.Page[model.Actor], error) {
	q := url.Values{"limit": []string{strconv.Itoa(clampLimit(limit))}}
	u := c.base(host, "/api/v1/accounts/"+url.PathEscape(accountID)+"/followers?"+q.Encode())
	return c.accountPage(ctx, u, cursor, host)
}

// Following lists the accounts an account follows
func (c *Client) Following(ctx context.Context, host, accountID string, limit int, cursor string) (paginate.Page[model.Actor], error) {
	q := url.Values{"limit": []string{strconv.Itoa(clampLimit(limit))}}
	u := c.base(host, "/api/v1/accounts/"+url.PathEscape(accountID)+"/following?"+q.Encode())
	return c.accountPage(ctx, u, cursor, host)
}

// Search runs a v2 search. kind narrows to "accounts", "statuses", or
// "hashtags"; empty searches everything
func (c *Client) Search(ctx context.Context, host, token, query, kind string, limit int) (model.SearchResults, error) {
	q := url.Values{
		"q":     []string{query},
		"limit": []string{strconv.Itoa(clampLimit(limit))},
	}
	if kind != "" {
		q.Set("type", kind)
	}
	var w wireSearch
	if _, err := c.get(ctx, c.base(host, "/api/v2/search?"+q.Encode()), token, &w); err != nil {
		return model.SearchResults{}, err
	}
	out := model.SearchResults{}
	for _, a := range w.Accounts {
		out.Accounts = append(out.Accounts, toActor(a, host))
	}
	for _, s := range w.Statuses {
		out.Posts = append(out.Posts, toPost(s, host))
	}
	for _, t := range w.Hashtags {
		out.Hashtags = append(out.Hashtags, toTag(t))
	}
	return out, nil
}

// TrendingTags lists the instance's trending hashtags
func (c *Client) TrendingTags(ctx context.Context, host string, limit int) ([]model.Tag, error) {
	var ws []wireTag
	u := c.base(host, "/api/v1/trends/tags?limit="+strconv.Itoa(clampLimit(limit)))
	if _, err := c.get(ctx, u, "", &ws); err != nil {
		return nil, err
	}
	out := make([]model.Tag, 0, len(ws))
	for _, w := range ws {
		out = append(out, toTag(w))
	}
	return out, nil
}

// TrendingStatuses lists the instance's trending posts
func (c *Client) TrendingStatuses(ctx context.Context, host string, limit int) ([]model.Post, error) {
	var ws []wireStatus
	u := c.base(host, "/api/v1/trends/statuses?limit="+strconv.Itoa(clampLimit(limit)))
	if _, err := c.get(ctx, u, "", &ws); err != nil {
		return nil, err
	}
	out := make([]model.Post, 0, len(ws))
	for _, w := range ws {
		out = append(out, toPost(w, host))
	}
	return out, nil
}

// VerifyCredentials checks a bearer token and returns the owning account
func (c *Client) VerifyCredentials(ctx context.Context, host, token string) (model.Actor, error) {
	var w wireAccount
	if _, err := c.get(ctx, c.base(host, "/api/v1/accounts/verify_credentials"), token, &w); err != nil {
		return model.Actor{}, err
	}
	return toActor(w, host), nil
}

// Notifications reads the authenticated user's notifications
func (c *Client) Notifications(ctx context.Context, host, token string, limit int, cursor string) (paginate.Page[model.Notification], error) {
	q := url.Values{"limit": []string{strconv.Itoa(clampLimit(limit))}}
	u, err := paginate.Apply(cursor, c.base(host, "/api/v1/notifications?"+q.Encode()))
	if err != nil {
		return paginate.Page[model.Notification]{}, err
	}
	var ws []wireNotification
	resp, err := c.get(ctx, u, token, &ws)
	if err != nil {
		return paginate.Page[model.Notification]{}, err
	}
	page := paginate.Page[model.Notification]{Items: make([]model.Notification, 0, len(ws))}
	for _, w := range ws {
		page.Items = append(page.Items, toNotification(w, host))
	}
	page.Next, page.Prev = paginate.Derive(resp, "", "")
	return page, nil
}

// Relationships reports how the authenticated user relates to the given
// account ids
func (c *Client) Relationships(ctx context.Context, host, token string, ids []string) ([]model.Relationship, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("id[]", id)
	}
	var ws []wireRelationship
	if _, err := c.get(ctx, c.base(host, "/api/v1/accounts/relationships?"+q.Encode()), token, &ws); err != nil {
		return nil, err
	}
	out := make([]model.Relationship, 0, len(ws))
	for _, w := range ws {
		out = append(out, toRelationship(w))
	}
	return out, nil
}

// StatusParams carries everything POST /api/v1/statuses accepts
type StatusParams struct {
	Status      string   `json:"status"`
	Visibility  string   `json:"visibility,omitempty"`
	SpoilerText string   `json:"spoiler_text,omitempty"`
	InReplyToID string   `json:"in_reply_to_id,omitempty"`
	MediaIDs    []string `json:"media_ids,omitempty"`
	Language    string   `json:"language,omitempty"`
	Sensitive   bool     `json:"sensitive,omitempty"`
	ScheduledAt string   `json:"scheduled_at,omitempty"`
	Poll        *struct {
		Options    []string `json:"options"`
		ExpiresIn  int      `json:"expires_in"`
		Multiple   bool     `json:"multiple,omitempty"`
		HideTotals bool     `json:"hide_totals,omitempty"`
	} `json:"poll,omitempty"`
}

// PostStatus publishes a new status immediately
func (c *Client) PostStatus(ctx context.Context, host, token string, p StatusParams) (model.Post, error) {
	p.ScheduledAt = ""
	var w wireStatus
	if _, err := c.postJSON(ctx, c.base(host, "/api/v1/statuses"), token, p, &w); err != nil {
		return model.Post{}, err
	}
	return toPost(w, host), nil
}

// ScheduleStatus queues a status for server-side publication at the given
// RFC 3339 time
func (c *Client) ScheduleStatus(ctx context.Context, host, token string, p StatusParams, at string) (model.ScheduledPost, error) {
	p.ScheduledAt = at
	var w wireScheduled
	if _, err := c.postJSON(ctx, c.base(host, "/api/v1/statuses"), token, p, &w); err != nil {
		return model.ScheduledPost{}, err
	}
	return toScheduled(w), nil
}

// ScheduledStatuses lists queued statuses
func (c *Client) ScheduledStatuses(ctx context.Context, host, token string) ([]model.ScheduledPost, error) {
	var ws []wireScheduled
	if _, err := c.get(ctx, c.base(host, "/api/v1/scheduled_statuses"), token, &ws); err != nil {
		return nil, err
	}
	out := make([]model.ScheduledPost, 0, len(ws))
	for _, w := range ws {
		out = append(out, toScheduled(w))
	}
	return out, nil
}

// CancelScheduled deletes a queued status before it publishes
func (c *Client) CancelScheduled(ctx context.Context, host, token, id string) error {
	u := c.base(host, "/api/v1/scheduled_statuses/"+url.PathEscape(id))
	_, err := c.call(ctx, http.MethodDelete, u, token, nil, "", nil)
	return err
}

// DeleteStatus removes the authenticated user's own status
func (c *Client) DeleteStatus(ctx context.Context, host, token, id string) error {
	u := c.base(host, "/api/v1/statuses/"+url.PathEscape(id))
	_, err := c.call(ctx, http.MethodDelete, u, token, nil, "", nil)
	return err
}

// statusAction hits POST /api/v1/statuses/{id}/{verb}
func (c *Client) statusAction(ctx context.Context, host, token, id, verb string) (model.Post, error) {
	u := c.base(host, "/api/v1/statuses/"+url.PathEscape(id)+"/"+verb)
	var w wireStatus
	if _, err := c.postJSON(ctx, u, token, struct{}{}, &w); err != nil {
		return model.Post{}, err
	}
	return toPost(w, host), nil
}

func (c *Client) Boost(ctx context.Context, host, token, id string) (model.Post, error) {
	return c.statusAction(ctx, host, token, id, "reblog")
}

func (c *Client) Unboost(ctx context.Context, host, token, id string) (model.Post, error) {
	return c.statusAction(ctx, host, token, id, "unreblog")
}

func (c *Client) Favourite(ctx context.Context, host, token, id string) (model.Post, error) {
	return c.statusAction(ctx, host, token, id, "favourite")
}

func (c *Client) Unfavourite(ctx context.Context, host, token, id string) (model.Post, error) {
	return c.statusAction(ctx, host, token, id, "unfavourite")
}

func (c *Client) Bookmark(ctx context.Context, host, token, id string) (model.Post, error) {
	return c.statusAction(ctx, host, token, id, "bookmark")
}

func (c *Client) Unbookmark(ctx context.Context, host, token, id string) (model.Post, error) {
	return c.statusAction(ctx, host, token, id, "unbookmark")
}

// Bookmarks reads the authenticated user's bookmarked posts
func (c *Client) Bookmarks(ctx context.Context, host, token string, limit int, cursor string) (paginate.Page[model.Post], error) {
	q := url.Values{"limit": []string{strconv.Itoa(clampLimit(limit))}}
	return c.statusPage(ctx, c.base(host, "/api/v1/bookmarks?"+q.Encode()), token, cursor, host)
}

// accountAction hits POST /api/v1/accounts/{id}/{verb}
func (c *Client) accountAction(ctx context.Context, host, token, accountID, verb string) (model.Relationship, error) {
	u := c.base(host, "/api/v1/accounts/"+url.PathEscape(accountID)+"/"+verb)
	var w wireRelationship
	if _, err := c.postJSON(ctx, u, token, struct{}{}, &w); err != nil {
		return model.Relationship{}, err
	}
	return toRelationship(w), nil
}

func (c *Client) Follow(ctx context.Context, host, token, accountID string) (model.Relationship, error) {
	return c.accountAction(ctx, host, token, accountID, "follow")
}

func (c *Client) Unfollow(ctx context.Context, host, token, accountID string) (model.Relationship, error) {
	return c.accountAction(ctx, host, token, accountID, "unfollow")
}

func (c *Client) Mute(ctx context.Context, host, token, accountID string) (model.Relationship, error) {
	return c.accountAction(ctx, host, token, accountID, "mute")
}

func (c *Client) Unmute(ctx context.Context, host, token, accountID string) (model.Relationship, error) {
	return c.accountAction(ctx, host, token, accountID, "unmute")
}

func (c *Client) Block(ctx context.Context, host, token, accountID string) (model.Relationship, error) {
	return c.accountAction(ctx, host, token, accountID, "block")
}

func (c *Client) Unblock(ctx context.Context, host, token, accountID string) (model.Relationship, error) {
	return c.accountAction(ctx, host, token, accountID, "unblock")
}

// VotePoll casts votes on a poll; choices are option indexes
func (c *Client) VotePoll(ctx context.Context, host, token, pollID string, choices []int) (*model.Poll, error) {
	u := c.base(host, "/api/v1/polls/"+url.PathEscape(pollID)+"/votes")
	payload := struct {
		Choices []int `json:"choices"`
	}{Choices: choices}
	var w wirePoll
	if _, err := c.postJSON(ctx, u, token, payload, &w); err != nil {
		return nil, err
	}
	return toPoll(w), nil
}

// UploadMedia pushes a file to /api/v2/media as multipart form data.
// focus is the "x,y" focal point, empty to omit
func (c *Client) UploadMedia(ctx context.Context, host, token, filename string, data []byte, description, focus string) (model.Media, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return model.Media{}, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "build multipart body")
	}
	if _, err := fw.Write(data); err != nil {
		return model.Media{}, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "build multipart body")
	}
	if description != "" {
		if err := mw.WriteField("description", description); err != nil {
			return model.Media{}, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "build multipart body")
		}
	}
	if focus != "" {
		if err := mw.WriteField("focus", focus); err != nil {
			return model.Media{}, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "build multipart body")
		}
	}
	if err := mw.Close(); err != nil {
		return model.Media{}, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "build multipart body")
	}

	var w wireMedia
	if _, err := c.call(ctx, http.MethodPost, c.base(host, "/api/v2/media"), token, buf.Bytes(), mw.FormDataContentType(), &w); err != nil {
		return model.Media{}, err
	}
	if w.ID == "" {
		return model.Media{}, perr.New(perr.ErrorCodeClient, "media upload returned no id")
	}
	return toMedia(w), nil
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	if n > 40 {
		return 40
	}
	return n
}
