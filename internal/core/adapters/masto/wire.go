package masto

import "time"

// Wire shapes for the Mastodon client API (v1/v2). Only the fields the
// normalizer consumes are declared; everything else passes through decode
// untouched

type wireAccount struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	Note        string `json:"note"`
	Avatar      string `json:"avatar"`
	URL         string `json:"url"`
}

type wireFocus struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type wireAttachment struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	PreviewURL  string `json:"preview_url"`
	Description string `json:"description"`
	Meta        *struct {
		Focus *wireFocus `json:"focus"`
	} `json:"meta"`
}

type wirePollOption struct {
	Title      string `json:"title"`
	VotesCount int64  `json:"votes_count"`
}

type wirePoll struct {
	ID          string           `json:"id"`
	ExpiresAt   *time.Time       `json:"expires_at"`
	Expired     bool             `json:"expired"`
	Multiple    bool             `json:"multiple"`
	VotersCount int64            `json:"voters_count"`
	Options     []wirePollOption `json:"options"`
	OwnVotes    []int            `json:"own_votes"`
}

type wireStatus struct {
	ID               string           `json:"id"`
	URI              string           `json:"uri"`
	URL              string           `json:"url"`
	Account          wireAccount      `json:"account"`
	Content          string           `json:"content"`
	SpoilerText      string           `json:"spoiler_text"`
	Visibility       string           `json:"visibility"`
	CreatedAt        time.Time        `json:"created_at"`
	InReplyToID      string           `json:"in_reply_to_id"`
	RepliesCount     int64            `json:"replies_count"`
	ReblogsCount     int64            `json:"reblogs_count"`
	FavouritesCount  int64            `json:"favourites_count"`
	MediaAttachments []wireAttachment `json:"media_attachments"`
	Poll             *wirePoll        `json:"poll"`
	Language         string           `json:"language"`
	Reblog           *wireStatus      `json:"reblog"`
}

type wireContext struct {
	Ancestors   []wireStatus `json:"ancestors"`
	Descendants []wireStatus `json:"descendants"`
}

type wireInstanceV1 struct {
	URI              string `json:"uri"`
	Title            string `json:"title"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
	Version          string `json:"version"`
	Languages        []string `json:"languages"`
	Registrations    bool   `json:"registrations"`
	ContactAccount   *struct {
		Acct string `json:"acct"`
	} `json:"contact_account"`
	Stats struct {
		UserCount   int64 `json:"user_count"`
		StatusCount int64 `json:"status_count"`
		DomainCount int64 `json:"domain_count"`
	} `json:"stats"`
}

type wireTag struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	History []struct {
		Uses string `json:"uses"`
	} `json:"history"`
}

type wireSearch struct {
	Accounts []wireAccount `json:"accounts"`
	Statuses []wireStatus  `json:"statuses"`
	Hashtags []wireTag     `json:"hashtags"`
}

type wireRelationship struct {
	ID         string `json:"id"`
	Following  bool   `json:"following"`
	FollowedBy bool   `json:"followed_by"`
	Muting     bool   `json:"muting"`
	Blocking   bool   `json:"blocking"`
	Requested  bool   `json:"requested"`
}

type wireNotification struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	CreatedAt time.Time   `json:"created_at"`
	Account   wireAccount `json:"account"`
	Status    *wireStatus `json:"status"`
}

type wireScheduled struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Params      struct {
		Text       string `json:"text"`
		Visibility string `json:"visibility"`
	} `json:"params"`
}

type wireMedia struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	PreviewURL  string `json:"preview_url"`
	Description string `json:"description"`
}
