// Package resolver turns fediverse handles and actor URLs into normalized
// actors. Resolution is WebFinger first (JRD lookup, self-link extraction),
// then an ActivityPub actor fetch. Both stages are cached read-through;
// failures are never cached
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fedigate/internal/core/fetcher"
	"fedigate/internal/core/htmltext"
	"fedigate/internal/core/model"
	"fedigate/internal/platform/cache"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/logger"
)

const (
	acceptJRD      = "application/jrd+json, application/json"
	acceptActivity = `application/activity+json, application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
)

// jrd is the subset of a WebFinger JSON Resource Descriptor we consume.
// Links is a pointer so an absent array is told apart from an empty one
type jrd struct {
	Subject string     `json:"subject"`
	Links   *[]jrdLink `json:"links"`
}

type jrdLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type"`
	Href string `json:"href"`
}

// apActor is the wire shape of a remote ActivityPub actor document
type apActor struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferredUsername"`
	Summary           string `json:"summary"`
	Inbox             string `json:"inbox"`
	Outbox            string `json:"outbox"`
	Followers         string `json:"followers"`
	Following         string `json:"following"`
	Icon              *struct {
		URL string `json:"url"`
	} `json:"icon"`
	Endpoints *struct {
		SharedInbox string `json:"sharedInbox"`
	} `json:"endpoints"`
	PublicKey *struct {
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

// actorTypes are the AP object types that count as actors
var actorTypes = map[string]bool{
	"Person":       true,
	"Service":      true,
	"Application":  true,
	"Group":        true,
	"Organization": true,
}

// Options configures the Resolver caches
type Options struct {
	ActorTTL time.Duration
	// Scheme is https outside of tests
	Scheme string
}

// Resolver resolves acct handles and actor URLs to normalized actors
type Resolver struct {
	do fetcher.Doer
	// jrdCache maps canonical acct -> actor URL; actors maps both the
	// canonical acct and the actor URL to the normalized record
	jrdCache *cache.TTL[string]
	actors   *cache.TTL[model.Actor]
	log      logger.Logger
	// scheme is https outside of tests
	scheme string
}

// New builds a Resolver on top of the given outbound seam
func New(do fetcher.Doer, o Options) *Resolver {
	if o.ActorTTL <= 0 {
		o.ActorTTL = 5 * time.Minute
	}
	if o.Scheme == "" {
		o.Scheme = "https"
	}
	return &Resolver{
		do:       do,
		jrdCache: cache.New[string](o.ActorTTL),
		actors:   cache.New[model.Actor](o.ActorTTL),
		log:      *logger.Named("resolver"),
		scheme:   o.Scheme,
	}
}

// NormalizeAcct canonicalizes a handle: leading "@" and "acct:" prefixes are
// stripped, the host is lowercased, and the username keeps its case.
// Remote servers treat username case as significant often enough that
// folding it would resolve the wrong account
func NormalizeAcct(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "acct:")
	s = strings.TrimPrefix(s, "@")
	user, host, ok := strings.Cut(s, "@")
	if !ok || user == "" || host == "" {
		return "", perr.InvalidInputf("invalid handle %q: expected user@host", raw)
	}
	if strings.Contains(host, "@") || strings.Contains(host, "/") {
		return "", perr.InvalidInputf("invalid handle %q: malformed host", raw)
	}
	return user + "@" + strings.ToLower(host), nil
}

// Resolve accepts either an acct handle ("@user@host", "user@host") or an
// ActivityPub actor URL and returns the normalized actor
func (r *Resolver) Resolve(ctx context.Context, ref string) (model.Actor, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
		return r.resolveURL(ctx, ref)
	}
	return r.resolveAcct(ctx, ref)
}

func (r *Resolver) resolveAcct(ctx context.Context, raw string) (model.Actor, error) {
	acct, err := NormalizeAcct(raw)
	if err != nil {
		return model.Actor{}, err
	}
	if a, ok := r.actors.Get(acct); ok {
		return a, nil
	}

	actorURL, ok := r.jrdCache.Get(acct)
	if !ok {
		actorURL, err = r.webfinger(ctx, acct)
		if err != nil {
			return model.Actor{}, err
		}
		r.jrdCache.Put(acct, actorURL)
	}

	a, err := r.fetchActor(ctx, actorURL)
	if err != nil {
		return model.Actor{}, err
	}
	// the JRD subject is authoritative for the acct; the actor doc's
	// preferredUsername can disagree with what the user typed
	a.Acct = acct
	r.cacheActor(a)
	return a, nil
}

func (r *Resolver) resolveURL(ctx context.Context, actorURL string) (model.Actor, error) {
	if a, ok := r.actors.Get(actorURL); ok {
		return a, nil
	}
	a, err := r.fetchActor(ctx, actorURL)
	if err != nil {
		return model.Actor{}, err
	}
	r.cacheActor(a)
	return a, nil
}

func (r *Resolver) cacheActor(a model.Actor) {
	if a.Acct != "" {
		r.actors.Put(a.Acct, a)
	}
	if a.ID != "" {
		r.actors.Put(a.ID, a)
	}
}

// webfinger performs the JRD lookup and extracts the self activity+json link
func (r *Resolver) webfinger(ctx context.Context, acct string) (string, error) {
	_, host, _ := strings.Cut(acct, "@")
	wfURL := r.scheme + "://" + host + "/.well-known/webfinger?resource=" +
		url.QueryEscape("acct:"+acct)

	resp, err := r.do.Do(ctx, fetcher.Request{
		Method: http.MethodGet,
		URL:    wfURL,
		Header: http.Header{"Accept": []string{acceptJRD}},
	})
	if err != nil {
		return "", remapWebfingerErr(err, acct)
	}

	var doc jrd
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeActorMalformed, "webfinger response for %s is not valid JRD", acct)
	}
	// RFC 7033 requires the subject; a descriptor without a links array
	// cannot name an actor either
	if doc.Subject == "" || doc.Links == nil {
		return "", perr.Newf(perr.ErrorCodeActorMalformed,
			"webfinger document for %s lacks a subject or links array", acct)
	}
	for _, l := range *doc.Links {
		if l.Rel != "self" || l.Href == "" {
			continue
		}
		if l.Type == "application/activity+json" ||
			l.Type == `application/ld+json; profile="https://www.w3.org/ns/activitystreams"` {
			return l.Href, nil
		}
	}
	return "", perr.Newf(perr.ErrorCodeActorNotDiscoverable,
		"%s has no ActivityPub self link in its WebFinger document", acct)
}

// fetchActor retrieves and validates an AP actor document
func (r *Resolver) fetchActor(ctx context.Context, actorURL string) (model.Actor, error) {
	resp, err := r.do.Do(ctx, fetcher.Request{
		Method: http.MethodGet,
		URL:    actorURL,
		Header: http.Header{"Accept": []string{acceptActivity}},
	})
	if err != nil {
		return model.Actor{}, remapActorErr(err, actorURL)
	}

	var doc apActor
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return model.Actor{}, perr.Wrapf(err, perr.ErrorCodeActorMalformed, "actor document at %s is not valid JSON", actorURL)
	}
	if doc.ID == "" || doc.Inbox == "" || doc.Outbox == "" || !actorTypes[doc.Type] {
		return model.Actor{}, perr.Newf(perr.ErrorCodeActorMalformed,
			"actor document at %s is missing required fields", actorURL)
	}

	a := model.Actor{
		ID:                doc.ID,
		PreferredUsername: doc.PreferredUsername,
		DisplayName:       doc.Name,
		Inbox:             doc.Inbox,
		Outbox:            doc.Outbox,
		Followers:         doc.Followers,
		Following:         doc.Following,
	}
	if doc.Summary != "" {
		a.SummaryHTML = htmltext.Sanitize(doc.Summary)
		a.SummaryText = htmltext.Strip(a.SummaryHTML)
	}
	if doc.Icon != nil {
		a.AvatarURL = doc.Icon.URL
	}
	if doc.Endpoints != nil {
		a.SharedInbox = doc.Endpoints.SharedInbox
	}
	if doc.PublicKey != nil {
		a.PublicKey = doc.PublicKey.PublicKeyPem
	}
	if host := hostOf(doc.ID); host != "" && doc.PreferredUsername != "" {
		a.Acct = doc.PreferredUsername + "@" + host
	}

	r.log.Debug().Str("actor", doc.ID).Str("type", doc.Type).Msg("actor resolved")
	return a, nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// remapWebfingerErr translates WebFinger failures into the actor
// resolution taxonomy. A 404 or 410 here means the handle itself does not
// exist; only this phase may produce ActorNotFound
func remapWebfingerErr(err error, acct string) error {
	if perr.CodeOf(err) == perr.ErrorCodeClient {
		if st := perr.StatusOf(err); st == http.StatusNotFound || st == http.StatusGone {
			return perr.Wrapf(err, perr.ErrorCodeActorNotFound, "%s does not exist", acct)
		}
	}
	return remapTransportErr(err, acct)
}

// remapActorErr translates actor-document fetch failures. WebFinger
// already vouched for the handle, so a missing document is the host
// failing to serve it, not a missing actor
func remapActorErr(err error, actorURL string) error {
	return remapTransportErr(err, actorURL)
}

// remapTransportErr is the shared tail of both phases. Safety and
// throttling refusals pass through untouched so the caller sees why the
// call never reached the host
func remapTransportErr(err error, subject string) error {
	switch perr.CodeOf(err) {
	case perr.ErrorCodeClient:
		return perr.WithStatus(
			perr.Wrap(err, perr.ErrorCodeActorUnavailable, fmt.Sprintf("%s refused the lookup", subject)),
			perr.StatusOf(err))
	case perr.ErrorCodeServer:
		return perr.WithStatus(
			perr.Wrap(err, perr.ErrorCodeActorUnavailable, fmt.Sprintf("%s failed during lookup", subject)),
			perr.StatusOf(err))
	case perr.ErrorCodeNetwork, perr.ErrorCodeTimeout:
		return perr.Wrapf(err, perr.ErrorCodeActorUnreachable, "could not reach host for %s", subject)
	default:
		return err
	}
}
