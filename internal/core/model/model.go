// Package model defines the normalized schema every protocol adapter
// projects onto: actors, posts, instances, and their fragments.
// Collection URLs are stored as plain strings and never resolved
// transitively; expansion happens only on explicit request
package model

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Visibility is the normalized audience of a post
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityUnlisted  Visibility = "unlisted"
	VisibilityFollowers Visibility = "private"
	VisibilityDirect    Visibility = "direct"
)

// Valid reports whether v is one of the four normalized visibilities
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityFollowers, VisibilityDirect:
		return true
	}
	return false
}

// Software identifies a fediverse server family
type Software string

const (
	SoftwareMastodon Software = "mastodon"
	SoftwarePleroma  Software = "pleroma"
	SoftwareAkkoma   Software = "akkoma"
	SoftwarePixelfed Software = "pixelfed"
	SoftwareMisskey  Software = "misskey"
	SoftwareLemmy    Software = "lemmy"
	SoftwarePeertube Software = "peertube"
	SoftwareUnknown  Software = "unknown"
)

// Actor is a normalized fediverse account.
// Invariant: when an Actor sits in a cache, Acct and ID are both set and
// agree on the host
type Actor struct {
	// Acct is the canonical "user@host" form (no acct: prefix, no leading @)
	Acct string `json:"acct"`
	// ID is the ActivityPub actor URL
	ID                string `json:"id"`
	PreferredUsername string `json:"preferred_username"`
	DisplayName       string `json:"display_name,omitempty"`
	// SummaryHTML is the sanitized bio; SummaryText its plain-text derivation
	SummaryHTML string `json:"summary_html,omitempty"`
	SummaryText string `json:"summary_text,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Inbox       string `json:"inbox"`
	Outbox      string `json:"outbox"`
	Followers   string `json:"followers,omitempty"`
	Following   string `json:"following,omitempty"`
	SharedInbox string `json:"shared_inbox,omitempty"`
	PublicKey   string `json:"public_key,omitempty"`
}

// Host returns the host component of the actor's acct
func (a Actor) Host() string {
	_, host, _ := strings.Cut(a.Acct, "@")
	return host
}

// MediaAttachment is a normalized post attachment
type MediaAttachment struct {
	Type    string   `json:"type"`
	URL     string   `json:"url"`
	AltText string   `json:"alt_text,omitempty"`
	Focus   *[2]float64 `json:"focus,omitempty"`
}

// PollOption is one poll choice with its tally
type PollOption struct {
	Title      string `json:"title"`
	VotesCount int64  `json:"votes_count"`
}

// Poll is a normalized poll attached to a post
type Poll struct {
	ID          string       `json:"id"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	Expired     bool         `json:"expired"`
	Multiple    bool         `json:"multiple"`
	VotersCount int64        `json:"voters_count"`
	Options     []PollOption `json:"options"`
	OwnVotes    []int        `json:"own_votes,omitempty"`
}

// Post is a normalized status/note.
// Invariant: the author's host equals the host of URL
type Post struct {
	// ID is the server-assigned id, stable within Host
	ID   string `json:"id"`
	URL  string `json:"url"`
	Host string `json:"host"`
	// Author may be partially filled for adapters that only carry a handle
	Author Actor `json:"author"`
	// ContentHTML is the sanitized body; ContentText its plain-text derivation
	ContentHTML string     `json:"content_html"`
	ContentText string     `json:"content_text"`
	SpoilerText string     `json:"spoiler_text,omitempty"`
	Visibility  Visibility `json:"visibility"`
	Published   time.Time  `json:"published"`
	InReplyTo   string     `json:"in_reply_to,omitempty"`
	Replies     int64      `json:"replies_count"`
	Boosts      int64      `json:"boosts_count"`
	Favourites  int64      `json:"favourites_count"`
	Media       []MediaAttachment `json:"media,omitempty"`
	Poll        *Poll      `json:"poll,omitempty"`
	Language    string     `json:"language,omitempty"`
}

// Thread is a post with its ancestors and descendants
type Thread struct {
	Ancestors   []Post `json:"ancestors"`
	Post        Post   `json:"post"`
	Descendants []Post `json:"descendants"`
}

// Relationship is the normalized view of accounts/relationships
type Relationship struct {
	ID         string `json:"id"`
	Following  bool   `json:"following"`
	FollowedBy bool   `json:"followed_by"`
	Muting     bool   `json:"muting"`
	Blocking   bool   `json:"blocking"`
	Requested  bool   `json:"requested"`
}

// Notification is a normalized notification entry
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Account   Actor     `json:"account"`
	Post      *Post     `json:"post,omitempty"`
}

// Tag is a normalized trending hashtag
type Tag struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Uses int64  `json:"uses,omitempty"`
}

// Media is the result of an upload, attachable to a later post
type Media struct {
	ID          string `json:"id"`
	URL         string `json:"url,omitempty"`
	PreviewURL  string `json:"preview_url,omitempty"`
	Description string `json:"description,omitempty"`
	// ExpiresAt is when the id stops being attachable to a new post
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// ScheduledPost is a status queued server-side for later publication
type ScheduledPost struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Content     string    `json:"content"`
	Visibility  Visibility `json:"visibility"`
}

// Instance is a normalized fediverse host description
type Instance struct {
	Domain           string   `json:"domain"`
	Software         Software `json:"software"`
	Version          string   `json:"version,omitempty"`
	Title            string   `json:"title,omitempty"`
	Description      string   `json:"description,omitempty"`
	Users            int64    `json:"users,omitempty"`
	Posts            int64    `json:"posts,omitempty"`
	Domains          int64    `json:"domains,omitempty"`
	Languages        []string `json:"languages,omitempty"`
	RegistrationOpen bool     `json:"registration_open"`
	ContactAccount   string   `json:"contact_account,omitempty"`
}

// SearchResults groups the three search result kinds
type SearchResults struct {
	Accounts []Actor  `json:"accounts"`
	Posts    []Post   `json:"posts"`
	Hashtags []Tag    `json:"hashtags"`
}

// NormalizeLanguage canonicalizes a BCP-47 language code ("EN-us" -> "en-US").
// Unparseable codes are returned empty rather than guessed
func NormalizeLanguage(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	return tag.String()
}
