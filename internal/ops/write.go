package ops

import (
	"context"
	"encoding/base64"
	"time"

	"fedigate/internal/core/accounts"
	"fedigate/internal/core/adapters/masto"
	"fedigate/internal/core/model"
	"fedigate/internal/core/paginate"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/validate"
)

// minScheduleLead is how far ahead a scheduled status must be; Mastodon
// rejects anything closer
const minScheduleLead = 5 * time.Minute

// PostStatusInput is everything post_status accepts
type PostStatusInput struct {
	Status      string   `json:"status" validate:"required,max=5000"`
	Visibility  string   `json:"visibility" validate:"omitempty,oneof=public unlisted private direct"`
	SpoilerText string   `json:"spoiler_text" validate:"max=200"`
	InReplyToID string   `json:"in_reply_to_id"`
	MediaIDs    []string `json:"media_ids" validate:"max=4"`
	Language    string   `json:"language"`
	Sensitive   bool     `json:"sensitive"`
	AccountID   string   `json:"account_id"`
}

func (in PostStatusInput) params() masto.StatusParams {
	return masto.StatusParams{
		Status:      in.Status,
		Visibility:  in.Visibility,
		SpoilerText: in.SpoilerText,
		InReplyToID: in.InReplyToID,
		MediaIDs:    in.MediaIDs,
		Language:    model.NormalizeLanguage(in.Language),
		Sensitive:   in.Sensitive,
	}
}

// PostStatus publishes a status from a configured account
func (s *Service) PostStatus(ctx context.Context, in PostStatusInput) (model.Post, error) {
	if err := validate.Struct(in); err != nil {
		return model.Post{}, err
	}
	finish, err := s.begin(ctx, "post_status", map[string]any{"account_id": in.AccountID, "visibility": in.Visibility})
	if err != nil {
		return model.Post{}, err
	}
	var post model.Post
	acct, err := s.accounts.Resolve(in.AccountID)
	if err == nil {
		post, err = s.detector.Masto().PostStatus(ctx, acct.Instance, acct.Token(), in.params())
	}
	finish(err)
	return post, err
}

// DeleteStatus removes one of the account's own statuses
func (s *Service) DeleteStatus(ctx context.Context, id, accountID string) error {
	finish, err := s.begin(ctx, "delete_status", map[string]any{"id": id, "account_id": accountID})
	if err != nil {
		return err
	}
	acct, err := s.accounts.Resolve(accountID)
	if err == nil {
		err = s.detector.Masto().DeleteStatus(ctx, acct.Instance, acct.Token(), id)
	}
	finish(err)
	return err
}

// Interact applies a status interaction: boost, favourite, bookmark, or
// any of their undos
func (s *Service) Interact(ctx context.Context, id, action, accountID string) (model.Post, error) {
	finish, err := s.begin(ctx, "interact_status", map[string]any{"id": id, "action": action, "account_id": accountID})
	if err != nil {
		return model.Post{}, err
	}
	var post model.Post
	acct, err := s.accounts.Resolve(accountID)
	if err == nil {
		m := s.detector.Masto()
		switch action {
		case "boost":
			post, err = m.Boost(ctx, acct.Instance, acct.Token(), id)
		case "unboost":
			post, err = m.Unboost(ctx, acct.Instance, acct.Token(), id)
		case "favourite":
			post, err = m.Favourite(ctx, acct.Instance, acct.Token(), id)
		case "unfavourite":
			post, err = m.Unfavourite(ctx, acct.Instance, acct.Token(), id)
		case "bookmark":
			post, err = m.Bookmark(ctx, acct.Instance, acct.Token(), id)
		case "unbookmark":
			post, err = m.Unbookmark(ctx, acct.Instance, acct.Token(), id)
		default:
			err = perr.InvalidInputf("unknown status action %q", action)
		}
	}
	finish(err)
	return post, err
}

// ManageRelationship follows, mutes, or blocks an actor by acct, or
// undoes any of those. The acct is resolved to the account's instance
// before the action is applied
func (s *Service) ManageRelationship(ctx context.Context, targetAcct, action, accountID string) (model.Relationship, error) {
	if !validate.IsAcct(targetAcct) {
		return model.Relationship{}, perr.InvalidInputf("%q is not a user@host handle", targetAcct)
	}
	finish, err := s.begin(ctx, "manage_relationship", map[string]any{"acct": targetAcct, "action": action, "account_id": accountID})
	if err != nil {
		return model.Relationship{}, err
	}
	var rel model.Relationship
	acct, err := s.accounts.Resolve(accountID)
	if err == nil {
		rel, err = s.relate(ctx, acct, targetAcct, action)
	}
	finish(err)
	return rel, err
}

func (s *Service) relate(ctx context.Context, acct *accounts.Account, targetAcct, action string) (model.Relationship, error) {
	m := s.detector.Masto()
	_, localID, err := m.AccountLookup(ctx, acct.Instance, targetAcct)
	if err != nil {
		return model.Relationship{}, err
	}
	switch action {
	case "follow":
		return m.Follow(ctx, acct.Instance, acct.Token(), localID)
	case "unfollow":
		return m.Unfollow(ctx, acct.Instance, acct.Token(), localID)
	case "mute":
		return m.Mute(ctx, acct.Instance, acct.Token(), localID)
	case "unmute":
		return m.Unmute(ctx, acct.Instance, acct.Token(), localID)
	case "block":
		return m.Block(ctx, acct.Instance, acct.Token(), localID)
	case "unblock":
		return m.Unblock(ctx, acct.Instance, acct.Token(), localID)
	}
	return model.Relationship{}, perr.InvalidInputf("unknown relationship action %q", action)
}

// Relationships reports how the account relates to the given actors
func (s *Service) Relationships(ctx context.Context, targetAccts []string, accountID string) ([]model.Relationship, error) {
	if len(targetAccts) == 0 || len(targetAccts) > 20 {
		return nil, perr.InvalidInputf("between 1 and 20 accts required, got %d", len(targetAccts))
	}
	finish, err := s.begin(ctx, "get_relationships", map[string]any{"count": len(targetAccts), "account_id": accountID})
	if err != nil {
		return nil, err
	}
	var rels []model.Relationship
	acct, err := s.accounts.Resolve(accountID)
	if err == nil {
		m := s.detector.Masto()
		ids := make([]string, 0, len(targetAccts))
		for _, ta := range targetAccts {
			_, localID, e := m.AccountLookup(ctx, acct.Instance, ta)
			if e != nil {
				err = e
				break
			}
			ids = append(ids, localID)
		}
		if err == nil {
			rels, err = m.Relationships(ctx, acct.Instance, acct.Token(), ids)
		}
	}
	finish(err)
	return rels, err
}

// Notifications reads the account's notifications
func (s *Service) Notifications(ctx context.Context, accountID string, limit int, cursor string) (paginate.Page[model.Notification], error) {
	finish, err := s.begin(ctx, "fetch_notifications", map[string]any{"account_id": accountID})
	if err != nil {
		return paginate.Page[model.Notification]{}, err
	}
	var page paginate.Page[model.Notification]
	acct, err := s.accounts.Resolve(accountID)
	if err == nil {
		page, err = s.detector.Masto().Notifications(ctx, acct.Instance, acct.Token(), limit, cursor)
	}
	finish(err)
	return page, err
}

// Bookmarks reads the account's bookmarked posts
func (s *Service) Bookmarks(ctx context.Context, accountID string, limit int, cursor string) (paginate.Page[model.Post], error) {
	finish, err := s.begin(ctx, "fetch_bookmarks", map[string]any{"account_id": accountID})
	if err != nil {
		return paginate.Page[model.Post]{}, err
	}
	var page paginate.Page[model.Post]
	acct, err := s.accounts.Resolve(accountID)
	if err == nil {
		page, err = s.detector.Masto().Bookmarks(ctx, acct.Instance, acct.Token(), limit, cursor)
	}
	finish(err)
	return page, err
}

// VotePoll casts votes on a poll
func (s *Service) VotePoll(ctx context.Context, pollID string, choices []int, accountID string) (*model.Poll, error) {
	if len(choices) == 0 {
		return nil, perr.InvalidInputf("at least one choice required")
	}
	finish, err := s.begin(ctx, "vote_poll", map[string]any{"poll_id": pollID, "account_id": accountID})
	if err != nil {
		return nil, err
	}
	var poll *model.Poll
	acct, err := s.accounts.Resolve(accountID)
	if err == nil {
		poll, err = s.detector.Masto().VotePoll(ctx, acct.Instance, acct.Token(), pollID, choices)
	}
	finish(err)
	return poll, err
}

// UploadMediaInput carries an upload; Data is base64
type UploadMediaInput struct {
	Filename    string `json:"filename" validate:"required"`
	Data        string `json:"data" validate:"required"`
	Description string `json:"description" validate:"max=1500"`
	Focus       string `json:"focus" validate:"omitempty,focus"`
	AccountID   string `json:"account_id"`
}

// UploadMedia pushes a file to the account's instance for later
// attachment
func (s *Service) UploadMedia(ctx context.Context, in UploadMediaInput) (model.Media, error) {
	if err := validate.Struct(in); err != nil {
		return model.Media{}, err
	}
	raw, err := base64.StdEncoding.DecodeString(in.Data)
	if err != nil {
		return model.Media{}, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "media data is not valid base64")
	}
	finish, err := s.begin(ctx, "upload_media", map[string]any{"filename": in.Filename, "bytes": len(raw), "account_id": in.AccountID})
	if err != nil {
		return model.Media{}, err
	}
	var media model.Media
	acct, err := s.accounts.Resolve(in.AccountID)
	if err == nil {
		media, err = s.detector.Masto().UploadMedia(ctx, acct.Instance, acct.Token(), in.Filename, raw, in.Description, in.Focus)
	}
	if err == nil && s.mediaTTL > 0 {
		media.ExpiresAt = s.now().Add(s.mediaTTL)
	}
	finish(err)
	return media, err
}

// ScheduleStatusInput queues a status for later publication
type ScheduleStatusInput struct {
	PostStatusInput
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// ScheduleStatus queues a status server-side
func (s *Service) ScheduleStatus(ctx context.Context, in ScheduleStatusInput) (model.ScheduledPost, error) {
	if err := validate.Struct(in); err != nil {
		return model.ScheduledPost{}, err
	}
	if in.ScheduledAt.Before(s.now().Add(minScheduleLead)) {
		return model.ScheduledPost{}, perr.InvalidInputf("scheduled_at must be at least %s ahead", minScheduleLead)
	}
	finish, err := s.begin(ctx, "schedule_status", map[string]any{"account_id": in.AccountID, "scheduled_at": in.ScheduledAt})
	if err != nil {
		return model.ScheduledPost{}, err
	}
	var sp model.ScheduledPost
	acct, err := s.accounts.Resolve(in.AccountID)
	if err == nil {
		sp, err = s.detector.Masto().ScheduleStatus(ctx, acct.Instance, acct.Token(), in.params(), in.ScheduledAt.UTC().Format(time.RFC3339))
	}
	finish(err)
	return sp, err
}

// ListScheduled lists the account's queued statuses
func (s *Service) ListScheduled(ctx context.Context, accountID string) ([]model.ScheduledPost, error) {
	finish, err := s.begin(ctx, "list_scheduled", map[string]any{"account_id": accountID})
	if err != nil {
		return nil, err
	}
	var out []model.ScheduledPost
	acct, err := s.accounts.Resolve(accountID)
	if err == nil {
		out, err = s.detector.Masto().ScheduledStatuses(ctx, acct.Instance, acct.Token())
	}
	finish(err)
	return out, err
}

// CancelScheduled cancels a queued status
func (s *Service) CancelScheduled(ctx context.Context, id, accountID string) error {
	finish, err := s.begin(ctx, "cancel_scheduled", map[string]any{"id": id, "account_id": accountID})
	if err != nil {
		return err
	}
	acct, err := s.accounts.Resolve(accountID)
	if err == nil {
		err = s.detector.Masto().CancelScheduled(ctx, acct.Instance, acct.Token(), id)
	}
	finish(err)
	return err
}

// ListAccounts returns the redacted account records
func (s *Service) ListAccounts() []accounts.Info { return s.accounts.List() }

// SetActiveAccount switches the default write identity
func (s *Service) SetActiveAccount(id string) error { return s.accounts.SetActive(id) }

// VerifyAccount checks an account's token against its instance
func (s *Service) VerifyAccount(ctx context.Context, accountID string) (model.Actor, error) {
	finish, err := s.begin(ctx, "verify_account", map[string]any{"account_id": accountID})
	if err != nil {
		return model.Actor{}, err
	}
	actor, err := s.accounts.Verify(ctx, accountID)
	finish(err)
	return actor, err
}
