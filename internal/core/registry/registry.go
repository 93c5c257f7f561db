// Package registry is the gateway's self-description: the catalog of
// callable operations with their typed parameters, and the parser for
// activitypub:// resource URIs. The catalog is what the HTTP surface
// serves to clients that want to discover what the gateway can do
package registry

import (
	"net/url"
	"strings"

	perr "fedigate/internal/platform/errors"
)

// Param types
const (
	TypeString = "string"
	TypeInt    = "integer"
	TypeBool   = "boolean"
	TypeArray  = "array"
)

// Param describes one operation input
type Param struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Min         int      `json:"min,omitempty"`
	Max         int      `json:"max,omitempty"`
}

// Tool describes one callable operation
type Tool struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Params      []Param  `json:"params,omitempty"`
	Output      string   `json:"output"`
	// Errors lists the wire error names this operation can return beyond
	// the transport baseline
	Errors []string `json:"errors,omitempty"`
}

var errsResolve = []string{
	perr.CodeName(perr.ErrorCodeActorNotFound),
	perr.CodeName(perr.ErrorCodeActorNotDiscoverable),
	perr.CodeName(perr.ErrorCodeActorUnavailable),
	perr.CodeName(perr.ErrorCodeActorMalformed),
	perr.CodeName(perr.ErrorCodeActorUnreachable),
}

var errsWrite = []string{
	perr.CodeName(perr.ErrorCodeWriteNotEnabled),
	perr.CodeName(perr.ErrorCodeInvalidCredentials),
}

var visibilityEnum = []string{"public", "unlisted", "private", "direct"}

var acctParam = Param{Name: "acct", Type: TypeString, Description: "handle as user@host, leading @ accepted", Required: true}
var hostParam = Param{Name: "host", Type: TypeString, Description: "instance hostname", Required: true}
var cursorParam = Param{Name: "cursor", Type: TypeString, Description: "opaque continuation token from a previous page"}
var limitParam = Param{Name: "limit", Type: TypeInt, Description: "page size", Min: 1, Max: 40}
var accountParam = Param{Name: "account_id", Type: TypeString, Description: "configured account to act as; empty means the active account"}

var tools = []Tool{
	{
		Name:        "discover_actor",
		Description: "Resolve a handle or actor URL to a normalized actor profile",
		Params: []Param{
			{Name: "ref", Type: TypeString, Description: "user@host handle or https actor URL", Required: true},
		},
		Output: "actor",
		Errors: errsResolve,
	},
	{
		Name:        "get_instance_info",
		Description: "Identify an instance's software and metadata",
		Params:      []Param{hostParam},
		Output:      "instance",
	},
	{
		Name:        "fetch_timeline",
		Description: "Read an instance timeline or an actor's posts",
		Params: []Param{
			{Name: "host", Type: TypeString, Description: "instance hostname, required unless kind is actor"},
			{Name: "kind", Type: TypeString, Enum: []string{"public", "local", "tag", "home", "actor"}, Required: true},
			{Name: "actor", Type: TypeString, Description: "handle or actor URL, required when kind is actor"},
			{Name: "tag", Type: TypeString, Description: "hashtag, required when kind is tag"},
			limitParam, cursorParam, accountParam,
		},
		Output: "post_page",
		Errors: errsResolve,
	},
	{
		Name:        "fetch_thread",
		Description: "Fetch a post with its ancestors and replies",
		Params:      []Param{hostParam, {Name: "id", Type: TypeString, Required: true}},
		Output:      "thread",
	},
	{
		Name:        "fetch_post",
		Description: "Fetch one post by its ActivityPub object URL",
		Params:      []Param{{Name: "url", Type: TypeString, Required: true}},
		Output:      "post",
	},
	{
		Name:        "search",
		Description: "Search an instance for accounts, posts, and hashtags",
		Params: []Param{
			hostParam,
			{Name: "query", Type: TypeString, Required: true},
			{Name: "type", Type: TypeString, Enum: []string{"accounts", "statuses", "hashtags"}},
			limitParam,
		},
		Output: "search_results",
	},
	{
		Name:        "trending",
		Description: "Read an instance's trending hashtags or posts",
		Params: []Param{
			hostParam,
			{Name: "kind", Type: TypeString, Enum: []string{"tags", "statuses"}, Required: true},
			limitParam,
		},
		Output: "trends",
	},
	{
		Name:        "fetch_followers",
		Description: "List an actor's followers",
		Params:      []Param{acctParam, limitParam, cursorParam},
		Output:      "actor_page",
		Errors:      errsResolve,
	},
	{
		Name:        "fetch_following",
		Description: "List who an actor follows",
		Params:      []Param{acctParam, limitParam, cursorParam},
		Output:      "actor_page",
		Errors:      errsResolve,
	},
	{
		Name:        "post_status",
		Description: "Publish a status from a configured account",
		Params: []Param{
			{Name: "status", Type: TypeString, Required: true, Max: 5000},
			{Name: "visibility", Type: TypeString, Enum: visibilityEnum},
			{Name: "spoiler_text", Type: TypeString, Description: "content warning shown before the body"},
			{Name: "in_reply_to_id", Type: TypeString},
			{Name: "media_ids", Type: TypeArray},
			{Name: "language", Type: TypeString},
			accountParam,
		},
		Output: "post",
		Errors: errsWrite,
	},
	{
		Name:        "delete_status",
		Description: "Delete one of the account's own statuses",
		Params:      []Param{{Name: "id", Type: TypeString, Required: true}, accountParam},
		Output:      "none",
		Errors:      errsWrite,
	},
	{
		Name:        "interact_status",
		Description: "Boost, favourite, or bookmark a status, or undo any of those",
		Params: []Param{
			{Name: "id", Type: TypeString, Required: true},
			{Name: "action", Type: TypeString, Required: true,
				Enum: []string{"boost", "unboost", "favourite", "unfavourite", "bookmark", "unbookmark"}},
			accountParam,
		},
		Output: "post",
		Errors: errsWrite,
	},
	{
		Name:        "manage_relationship",
		Description: "Follow, mute, or block an account, or undo any of those",
		Params: []Param{
			acctParam,
			{Name: "action", Type: TypeString, Required: true,
				Enum: []string{"follow", "unfollow", "mute", "unmute", "block", "unblock"}},
			accountParam,
		},
		Output: "relationship",
		Errors: append(append([]string{}, errsResolve...), errsWrite...),
	},
	{
		Name:        "get_relationships",
		Description: "Report how the account relates to other actors",
		Params:      []Param{{Name: "accts", Type: TypeArray, Required: true, Max: 20}, accountParam},
		Output:      "relationships",
		Errors:      errsWrite,
	},
	{
		Name:        "fetch_notifications",
		Description: "Read the account's notifications",
		Params:      []Param{limitParam, cursorParam, accountParam},
		Output:      "notification_page",
		Errors:      errsWrite,
	},
	{
		Name:        "fetch_bookmarks",
		Description: "Read the account's bookmarked posts",
		Params:      []Param{limitParam, cursorParam, accountParam},
		Output:      "post_page",
		Errors:      errsWrite,
	},
	{
		Name:        "vote_poll",
		Description: "Vote on a poll",
		Params: []Param{
			{Name: "poll_id", Type: TypeString, Required: true},
			{Name: "choices", Type: TypeArray, Required: true},
			accountParam,
		},
		Output: "poll",
		Errors: errsWrite,
	},
	{
		Name:        "upload_media",
		Description: "Upload a media file for attachment to a later post",
		Params: []Param{
			{Name: "filename", Type: TypeString, Required: true},
			{Name: "data", Type: TypeString, Description: "base64 file content", Required: true},
			{Name: "description", Type: TypeString, Description: "alt text"},
			{Name: "focus", Type: TypeString, Description: "focal point x,y in [-1,1]"},
			accountParam,
		},
		Output: "media",
		Errors: errsWrite,
	},
	{
		Name:        "schedule_status",
		Description: "Queue a status for server-side publication",
		Params: []Param{
			{Name: "status", Type: TypeString, Required: true, Max: 5000},
			{Name: "scheduled_at", Type: TypeString, Description: "RFC 3339, at least 5 minutes ahead", Required: true},
			{Name: "visibility", Type: TypeString, Enum: visibilityEnum},
			accountParam,
		},
		Output: "scheduled_post",
		Errors: errsWrite,
	},
	{
		Name:        "list_scheduled",
		Description: "List statuses queued for publication",
		Params:      []Param{accountParam},
		Output:      "scheduled_posts",
		Errors:      errsWrite,
	},
	{
		Name:        "cancel_scheduled",
		Description: "Cancel a queued status",
		Params:      []Param{{Name: "id", Type: TypeString, Required: true}, accountParam},
		Output:      "none",
		Errors:      errsWrite,
	},
	{
		Name:        "batch_fetch_actors",
		Description: "Resolve up to 20 handles in parallel with per-item outcomes",
		Params:      []Param{{Name: "refs", Type: TypeArray, Required: true, Max: 20}},
		Output:      "batch_results",
		Errors:      errsResolve,
	},
	{
		Name:        "batch_fetch_posts",
		Description: "Fetch up to 20 posts in parallel with per-item outcomes",
		Params:      []Param{{Name: "urls", Type: TypeArray, Required: true, Max: 20}},
		Output:      "batch_results",
	},
	{
		Name:        "export_posts",
		Description: "Export an actor's recent posts as JSON, Markdown, or CSV",
		Params: []Param{
			acctParam,
			{Name: "format", Type: TypeString, Enum: []string{"json", "markdown", "csv"}, Required: true},
			limitParam,
		},
		Output: "export",
		Errors: errsResolve,
	},
	{
		Name:        "list_accounts",
		Description: "List configured write accounts (tokens are never returned)",
		Output:      "accounts",
	},
	{
		Name:        "set_active_account",
		Description: "Switch the default write account",
		Params:      []Param{{Name: "account_id", Type: TypeString, Required: true}},
		Output:      "accounts",
	},
	{
		Name:        "verify_account",
		Description: "Check an account's token against its instance",
		Params:      []Param{accountParam},
		Output:      "actor",
		Errors:      errsWrite,
	},
}

// Tools returns the full operation catalog
func Tools() []Tool { return tools }

// Find looks up a tool by name
func Find(name string) (Tool, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// Resource kinds addressable as activitypub://kind/param
const (
	KindServerInfo        = "server-info"
	KindRemoteActor       = "remote-actor"
	KindRemoteTimeline    = "remote-timeline"
	KindRemoteFollowers   = "remote-followers"
	KindRemoteFollowing   = "remote-following"
	KindInstanceInfo      = "instance-info"
	KindTrending          = "trending"
	KindLocalTimeline     = "local-timeline"
	KindFederatedTimeline = "federated-timeline"
	KindPostThread        = "post-thread"
)

var resourceKinds = map[string]bool{
	KindServerInfo: true, KindRemoteActor: true, KindRemoteTimeline: true,
	KindRemoteFollowers: true, KindRemoteFollowing: true, KindInstanceInfo: true,
	KindTrending: true, KindLocalTimeline: true, KindFederatedTimeline: true,
	KindPostThread: true,
}

// Resource is a parsed activitypub:// URI
type Resource struct {
	Kind  string
	Param string
}

// ParseResourceURI splits "activitypub://kind/param" into its parts.
// The param is percent-decoded; post-thread params carry a percent-encoded
// post URL. server-info is the only kind that takes no param
func ParseResourceURI(uri string) (Resource, error) {
	const scheme = "activitypub://"
	if !strings.HasPrefix(uri, scheme) {
		return Resource{}, perr.InvalidInputf("resource uri %q must use the activitypub:// scheme", uri)
	}
	rest := strings.TrimPrefix(uri, scheme)
	kind, param, _ := strings.Cut(rest, "/")
	if !resourceKinds[kind] {
		return Resource{}, perr.InvalidInputf("unknown resource kind %q", kind)
	}
	decoded, err := url.PathUnescape(param)
	if err != nil {
		return Resource{}, perr.InvalidInputf("undecodable resource param %q", param)
	}
	if decoded == "" && kind != KindServerInfo {
		return Resource{}, perr.InvalidInputf("resource uri %q names no %s", uri, kind)
	}
	return Resource{Kind: kind, Param: decoded}, nil
}

// ResourceKinds lists the addressable kinds
func ResourceKinds() []string {
	out := make([]string, 0, len(resourceKinds))
	for k := range resourceKinds {
		out = append(out, k)
	}
	return out
}
