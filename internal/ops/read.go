package ops

import (
	"context"

	"fedigate/internal/core/adapters"
	"fedigate/internal/core/model"
	"fedigate/internal/core/paginate"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/validate"
)

// DiscoverActor resolves a handle or actor URL to a normalized profile
func (s *Service) DiscoverActor(ctx context.Context, ref string) (model.Actor, error) {
	finish, err := s.begin(ctx, "discover_actor", map[string]any{"ref": ref})
	if err != nil {
		return model.Actor{}, err
	}
	var actor model.Actor
	err = retryRead(ctx, func() error {
		var e error
		actor, e = s.resolver.Resolve(ctx, ref)
		return e
	})
	finish(err)
	return actor, err
}

// GetInstanceInfo identifies an instance's software and metadata
func (s *Service) GetInstanceInfo(ctx context.Context, host string) (model.Instance, error) {
	finish, err := s.begin(ctx, "get_instance_info", map[string]any{"host": host})
	if err != nil {
		return model.Instance{}, err
	}
	var inst model.Instance
	err = retryRead(ctx, func() error {
		var e error
		inst, e = s.detector.Probe(ctx, host)
		return e
	})
	finish(err)
	return inst, err
}

// TimelineInput selects a timeline to read. Actor timelines name a handle
// or actor URL instead of a host; the host comes from resolution
type TimelineInput struct {
	Host      string `json:"host" validate:"required_unless=Kind actor"`
	Kind      string `json:"kind" validate:"required,oneof=public local tag home actor"`
	Actor     string `json:"actor" validate:"required_if=Kind actor"`
	Tag       string `json:"tag" validate:"required_if=Kind tag"`
	Limit     int    `json:"limit" validate:"omitempty,min=1,max=40"`
	Cursor    string `json:"cursor"`
	AccountID string `json:"account_id"`
}

// FetchTimeline reads a public, local, hashtag, home, or actor timeline
func (s *Service) FetchTimeline(ctx context.Context, in TimelineInput) (paginate.Page[model.Post], error) {
	if err := validate.Struct(in); err != nil {
		return paginate.Page[model.Post]{}, err
	}
	finish, err := s.begin(ctx, "fetch_timeline", map[string]any{"host": in.Host, "kind": in.Kind, "tag": in.Tag, "actor": in.Actor})
	if err != nil {
		return paginate.Page[model.Post]{}, err
	}
	var page paginate.Page[model.Post]
	err = retryRead(ctx, func() error {
		if in.Kind == "actor" {
			var e error
			page, e = s.actorTimeline(ctx, in)
			return e
		}
		d, _, e := s.mastoFor(ctx, in.Host)
		if e != nil {
			return e
		}
		switch in.Kind {
		case "public":
			page, e = d.Masto().PublicTimeline(ctx, in.Host, false, in.Limit, in.Cursor)
		case "local":
			page, e = d.Masto().PublicTimeline(ctx, in.Host, true, in.Limit, in.Cursor)
		case "tag":
			page, e = d.Masto().TagTimeline(ctx, in.Host, in.Tag, in.Limit, in.Cursor)
		case "home":
			acct, aerr := s.accounts.Resolve(in.AccountID)
			if aerr != nil {
				return aerr
			}
			if acct.Instance != in.Host {
				return perr.InvalidInputf("account %q lives on %s, not %s", acct.ID, acct.Instance, in.Host)
			}
			page, e = d.Masto().HomeTimeline(ctx, in.Host, acct.Token(), in.Limit, in.Cursor)
		}
		return e
	})
	finish(err)
	return page, err
}

// actorTimeline pages an actor's posts: resolve the identifier, then read
// /api/v1/accounts/{id}/statuses when the home instance speaks the
// Mastodon API, or walk the ActivityPub outbox otherwise
func (s *Service) actorTimeline(ctx context.Context, in TimelineInput) (paginate.Page[model.Post], error) {
	actor, err := s.resolver.Resolve(ctx, in.Actor)
	if err != nil {
		return paginate.Page[model.Post]{}, err
	}
	host := hostOfAcct(actor.Acct)

	if inst, e := s.detector.Probe(ctx, host); e == nil && adapters.Capabilities(inst.Software).MastoAPI {
		if _, localID, e := s.detector.Masto().AccountLookup(ctx, host, actor.Acct); e == nil {
			return s.detector.Masto().AccountStatuses(ctx, host, localID, in.Limit, in.Cursor)
		}
	}

	if actor.Outbox == "" {
		return paginate.Page[model.Post]{}, perr.Newf(perr.ErrorCodeActorNotDiscoverable, "%s exposes no outbox", in.Actor)
	}
	page, err := s.apub.Outbox(ctx, actor.Outbox, in.Cursor)
	if err != nil {
		return paginate.Page[model.Post]{}, err
	}
	if in.Limit > 0 && len(page.Items) > in.Limit {
		page.Items = page.Items[:in.Limit]
	}
	return page, nil
}

// FetchPost fetches one post by its ActivityPub object URL
func (s *Service) FetchPost(ctx context.Context, rawURL string) (model.Post, error) {
	finish, err := s.begin(ctx, "fetch_post", map[string]any{"url": rawURL})
	if err != nil {
		return model.Post{}, err
	}
	var post model.Post
	err = retryRead(ctx, func() error {
		var e error
		post, e = s.apub.Post(ctx, rawURL)
		return e
	})
	finish(err)
	return post, err
}

// FetchThread fetches a post with its ancestors and replies
func (s *Service) FetchThread(ctx context.Context, host, id string) (model.Thread, error) {
	finish, err := s.begin(ctx, "fetch_thread", map[string]any{"host": host, "id": id})
	if err != nil {
		return model.Thread{}, err
	}
	var th model.Thread
	err = retryRead(ctx, func() error {
		d, _, e := s.mastoFor(ctx, host)
		if e != nil {
			return e
		}
		th, e = d.Masto().Thread(ctx, host, id)
		return e
	})
	finish(err)
	return th, err
}

// SearchInput scopes a search to one instance
type SearchInput struct {
	Host  string `json:"host" validate:"required"`
	Query string `json:"query" validate:"required"`
	Type  string `json:"type" validate:"omitempty,oneof=accounts statuses hashtags"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=40"`
}

// Search queries an instance for accounts, posts, and hashtags
func (s *Service) Search(ctx context.Context, in SearchInput) (model.SearchResults, error) {
	if err := validate.Struct(in); err != nil {
		return model.SearchResults{}, err
	}
	finish, err := s.begin(ctx, "search", map[string]any{"host": in.Host, "query": in.Query, "type": in.Type})
	if err != nil {
		return model.SearchResults{}, err
	}
	var res model.SearchResults
	err = retryRead(ctx, func() error {
		d, _, e := s.mastoFor(ctx, in.Host)
		if e != nil {
			return e
		}
		res, e = d.Masto().Search(ctx, in.Host, "", in.Query, in.Type, in.Limit)
		return e
	})
	finish(err)
	return res, err
}

// Trends groups the two trending result kinds
type Trends struct {
	Tags  []model.Tag  `json:"tags,omitempty"`
	Posts []model.Post `json:"posts,omitempty"`
}

// Trending reads an instance's trending hashtags or posts
func (s *Service) Trending(ctx context.Context, host, kind string, limit int) (Trends, error) {
	if kind != "tags" && kind != "statuses" {
		return Trends{}, perr.InvalidInputf("trending kind must be tags or statuses, got %q", kind)
	}
	finish, err := s.begin(ctx, "trending", map[string]any{"host": host, "kind": kind})
	if err != nil {
		return Trends{}, err
	}
	var out Trends
	err = retryRead(ctx, func() error {
		d, inst, e := s.mastoFor(ctx, host)
		if e != nil {
			return e
		}
		if !adapters.Capabilities(inst.Software).Trends {
			return perr.Newf(perr.ErrorCodeClient, "%s does not expose trends", host)
		}
		if kind == "tags" {
			out.Tags, e = d.Masto().TrendingTags(ctx, host, limit)
		} else {
			out.Posts, e = d.Masto().TrendingStatuses(ctx, host, limit)
		}
		return e
	})
	finish(err)
	return out, err
}

// followCollection walks a followers/following collection without
// expanding its members; each entry is an actor reference
func (s *Service) followCollection(ctx context.Context, op, acct, cursor string, following bool) (paginate.Page[model.Actor], int64, error) {
	finish, err := s.begin(ctx, op, map[string]any{"acct": acct})
	if err != nil {
		return paginate.Page[model.Actor]{}, 0, err
	}
	var page paginate.Page[model.Actor]
	var total int64
	err = retryRead(ctx, func() error {
		actor, e := s.resolver.Resolve(ctx, acct)
		if e != nil {
			return e
		}
		colURL := actor.Followers
		if following {
			colURL = actor.Following
		}
		if colURL == "" {
			return perr.Newf(perr.ErrorCodeActorNotDiscoverable, "%s exposes no such collection", acct)
		}
		refs, n, e := s.apub.ActorRefs(ctx, colURL, cursor)
		if e != nil {
			return e
		}
		total = n
		page = paginate.Map(refs, func(ref string) model.Actor { return model.Actor{ID: ref} })
		return nil
	})
	finish(err)
	return page, total, err
}

// FetchFollowers lists an actor's followers as references
func (s *Service) FetchFollowers(ctx context.Context, acct, cursor string) (paginate.Page[model.Actor], int64, error) {
	return s.followCollection(ctx, "fetch_followers", acct, cursor, false)
}

// FetchFollowing lists who an actor follows, as references
func (s *Service) FetchFollowing(ctx context.Context, acct, cursor string) (paginate.Page[model.Actor], int64, error) {
	return s.followCollection(ctx, "fetch_following", acct, cursor, true)
}
