package masto

import (
	"strconv"
	"strings"

	"fedigate/internal/core/htmltext"
	"fedigate/internal/core/model"
)

// toActor maps a Mastodon account onto the normalized actor. Mastodon
// writes local accounts with a bare username in acct; the host is filled
// in so downstream code never has to special-case that
func toActor(w wireAccount, host string) model.Actor {
	acct := w.Acct
	if acct != "" && !strings.Contains(acct, "@") {
		acct = acct + "@" + host
	}
	a := model.Actor{
		Acct:              acct,
		ID:                w.URL,
		PreferredUsername: w.Username,
		DisplayName:       w.DisplayName,
		AvatarURL:         w.Avatar,
	}
	if w.Note != "" {
		a.SummaryHTML = htmltext.Sanitize(w.Note)
		a.SummaryText = htmltext.Strip(a.SummaryHTML)
	}
	return a
}

// toPost maps a status. Boost wrappers are unwrapped to the boosted post;
// the wrapper itself carries no content of its own
func toPost(w wireStatus, host string) model.Post {
	if w.Reblog != nil {
		return toPost(*w.Reblog, host)
	}
	p := model.Post{
		ID:          w.ID,
		URL:         w.URL,
		Host:        host,
		Author:      toActor(w.Account, host),
		SpoilerText: w.SpoilerText,
		Visibility:  toVisibility(w.Visibility),
		Published:   w.CreatedAt,
		InReplyTo:   w.InReplyToID,
		Replies:     w.RepliesCount,
		Boosts:      w.ReblogsCount,
		Favourites:  w.FavouritesCount,
		Language:    model.NormalizeLanguage(w.Language),
	}
	if p.URL == "" {
		p.URL = w.URI
	}
	if w.Content != "" {
		p.ContentHTML = htmltext.Sanitize(w.Content)
		p.ContentText = htmltext.Strip(p.ContentHTML)
	}
	for _, m := range w.MediaAttachments {
		att := model.MediaAttachment{
			Type:    m.Type,
			URL:     m.URL,
			AltText: m.Description,
		}
		if m.Meta != nil && m.Meta.Focus != nil {
			att.Focus = &[2]float64{m.Meta.Focus.X, m.Meta.Focus.Y}
		}
		p.Media = append(p.Media, att)
	}
	if w.Poll != nil {
		p.Poll = toPoll(*w.Poll)
	}
	return p
}

func toPoll(w wirePoll) *model.Poll {
	poll := &model.Poll{
		ID:          w.ID,
		ExpiresAt:   w.ExpiresAt,
		Expired:     w.Expired,
		Multiple:    w.Multiple,
		VotersCount: w.VotersCount,
		OwnVotes:    w.OwnVotes,
	}
	for _, o := range w.Options {
		poll.Options = append(poll.Options, model.PollOption{Title: o.Title, VotesCount: o.VotesCount})
	}
	return poll
}

func toVisibility(s string) model.Visibility {
	switch s {
	case "public":
		return model.VisibilityPublic
	case "unlisted":
		return model.VisibilityUnlisted
	case "private":
		return model.VisibilityFollowers
	case "direct":
		return model.VisibilityDirect
	}
	return model.VisibilityPublic
}

func toInstance(w wireInstanceV1, host string) model.Instance {
	inst := model.Instance{
		Domain:           host,
		Software:         classifyVersion(w.Version),
		Version:          w.Version,
		Title:            w.Title,
		Description:      firstNonEmpty(w.ShortDescription, w.Description),
		Users:            w.Stats.UserCount,
		Posts:            w.Stats.StatusCount,
		Domains:          w.Stats.DomainCount,
		Languages:        w.Languages,
		RegistrationOpen: w.Registrations,
	}
	if w.ContactAccount != nil {
		inst.ContactAccount = w.ContactAccount.Acct
	}
	return inst
}

// classifyVersion infers the server family from a Mastodon-compatible
// version string such as "4.2.1 (compatible; Pleroma 2.6.0)"
func classifyVersion(v string) model.Software {
	lv := strings.ToLower(v)
	switch {
	case strings.Contains(lv, "akkoma"):
		return model.SoftwareAkkoma
	case strings.Contains(lv, "pleroma"):
		return model.SoftwarePleroma
	case strings.Contains(lv, "pixelfed"):
		return model.SoftwarePixelfed
	case lv == "":
		return model.SoftwareUnknown
	}
	return model.SoftwareMastodon
}

func toTag(w wireTag) model.Tag {
	t := model.Tag{Name: w.Name, URL: w.URL}
	for _, h := range w.History {
		if n, err := strconv.ParseInt(h.Uses, 10, 64); err == nil {
			t.Uses += n
		}
	}
	return t
}

func toRelationship(w wireRelationship) model.Relationship {
	return model.Relationship{
		ID:         w.ID,
		Following:  w.Following,
		FollowedBy: w.FollowedBy,
		Muting:     w.Muting,
		Blocking:   w.Blocking,
		Requested:  w.Requested,
	}
}

func toNotification(w wireNotification, host string) model.Notification {
	n := model.Notification{
		ID:        w.ID,
		Type:      w.Type,
		CreatedAt: w.CreatedAt,
		Account:   toActor(w.Account, host),
	}
	if w.Status != nil {
		p := toPost(*w.Status, host)
		n.Post = &p
	}
	return n
}

func toScheduled(w wireScheduled) model.ScheduledPost {
	return model.ScheduledPost{
		ID:          w.ID,
		ScheduledAt: w.ScheduledAt,
		Content:     w.Params.Text,
		Visibility:  toVisibility(w.Params.Visibility),
	}
}

func toMedia(w wireMedia) model.Media {
	return model.Media{
		ID:          w.ID,
		URL:         w.URL,
		PreviewURL:  w.PreviewURL,
		Description: w.Description,
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
