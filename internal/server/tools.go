package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"fedigate/internal/core/registry"
	"fedigate/internal/ops"
	perr "fedigate/internal/platform/errors"
)

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidInput, "malformed request body")
	}
	return nil
}

type okWire struct {
	OK bool `json:"ok"`
}

// handleTool dispatches one catalog operation by name. The request body
// carries the operation's parameters as JSON
func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := registry.Find(name); !ok {
		writeJSON(w, http.StatusNotFound, errWire{
			Error:     perr.WireFrom(perr.InvalidInputf("unknown tool %q", name)),
			ErrorName: perr.CodeName(perr.ErrorCodeInvalidInput),
		})
		return
	}
	out, err := s.dispatch(r, name)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) dispatch(r *http.Request, name string) (any, error) {
	ctx := r.Context()
	o := s.eng.Ops()

	switch name {
	case "discover_actor":
		var in struct {
			Ref string `json:"ref"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.DiscoverActor(ctx, in.Ref)

	case "get_instance_info":
		var in struct {
			Host string `json:"host"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.GetInstanceInfo(ctx, in.Host)

	case "fetch_timeline":
		var in ops.TimelineInput
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.FetchTimeline(ctx, in)

	case "fetch_thread":
		var in struct {
			Host string `json:"host"`
			ID   string `json:"id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.FetchThread(ctx, in.Host, in.ID)

	case "fetch_post":
		var in struct {
			URL string `json:"url"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.FetchPost(ctx, in.URL)

	case "search":
		var in ops.SearchInput
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.Search(ctx, in)

	case "trending":
		var in struct {
			Host  string `json:"host"`
			Kind  string `json:"kind"`
			Limit int    `json:"limit"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.Trending(ctx, in.Host, in.Kind, in.Limit)

	case "fetch_followers", "fetch_following":
		var in struct {
			Acct   string `json:"acct"`
			Cursor string `json:"cursor"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		fetch := o.FetchFollowers
		if name == "fetch_following" {
			fetch = o.FetchFollowing
		}
		page, total, err := fetch(ctx, in.Acct, in.Cursor)
		if err != nil {
			return nil, err
		}
		return map[string]any{"page": page, "total": total}, nil

	case "post_status":
		var in ops.PostStatusInput
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.PostStatus(ctx, in)

	case "delete_status":
		var in struct {
			ID        string `json:"id"`
			AccountID string `json:"account_id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return okWire{OK: true}, o.DeleteStatus(ctx, in.ID, in.AccountID)

	case "interact_status":
		var in struct {
			ID        string `json:"id"`
			Action    string `json:"action"`
			AccountID string `json:"account_id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.Interact(ctx, in.ID, in.Action, in.AccountID)

	case "manage_relationship":
		var in struct {
			Acct      string `json:"acct"`
			Action    string `json:"action"`
			AccountID string `json:"account_id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.ManageRelationship(ctx, in.Acct, in.Action, in.AccountID)

	case "get_relationships":
		var in struct {
			Accts     []string `json:"accts"`
			AccountID string   `json:"account_id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.Relationships(ctx, in.Accts, in.AccountID)

	case "fetch_notifications":
		var in struct {
			Limit     int    `json:"limit"`
			Cursor    string `json:"cursor"`
			AccountID string `json:"account_id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.Notifications(ctx, in.AccountID, in.Limit, in.Cursor)

	case "fetch_bookmarks":
		var in struct {
			Limit     int    `json:"limit"`
			Cursor    string `json:"cursor"`
			AccountID string `json:"account_id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.Bookmarks(ctx, in.AccountID, in.Limit, in.Cursor)

	case "vote_poll":
		var in struct {
			PollID    string `json:"poll_id"`
			Choices   []int  `json:"choices"`
			AccountID string `json:"account_id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.VotePoll(ctx, in.PollID, in.Choices, in.AccountID)

	case "upload_media":
		var in ops.UploadMediaInput
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.UploadMedia(ctx, in)

	case "schedule_status":
		var in ops.ScheduleStatusInput
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.ScheduleStatus(ctx, in)

	case "list_scheduled":
		var in struct {
			AccountID string `json:"account_id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.ListScheduled(ctx, in.AccountID)

	case "cancel_scheduled":
		var in struct {
			ID        string `json:"id"`
			AccountID string `json:"account_id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return okWire{OK: true}, o.CancelScheduled(ctx, in.ID, in.AccountID)

	case "batch_fetch_actors":
		var in struct {
			Refs []string `json:"refs"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.BatchFetchActors(ctx, in.Refs)

	case "batch_fetch_posts":
		var in struct {
			URLs []string `json:"urls"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.BatchFetchPosts(ctx, in.URLs)

	case "export_posts":
		var in struct {
			Acct   string `json:"acct"`
			Format string `json:"format"`
			Limit  int    `json:"limit"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.ExportPosts(ctx, in.Acct, in.Format, in.Limit)

	case "list_accounts":
		return o.ListAccounts(), nil

	case "set_active_account":
		var in struct {
			AccountID string `json:"account_id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		if err := o.SetActiveAccount(in.AccountID); err != nil {
			return nil, err
		}
		return o.ListAccounts(), nil

	case "verify_account":
		var in struct {
			AccountID string `json:"account_id"`
		}
		if err := decodeBody(r, &in); err != nil {
			return nil, err
		}
		return o.VerifyAccount(ctx, in.AccountID)
	}
	return nil, perr.InvalidInputf("unknown tool %q", name)
}
