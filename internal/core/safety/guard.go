package safety

import (
	"context"
	"net/url"
	"strings"
	"time"

	"fedigate/internal/core/fetcher"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/logger"
)

// Options configures the Guard
type Options struct {
	BlockingEnabled        bool
	AllowHTTP              bool
	AllowIPLiterals        bool
	RespectContentWarnings bool
}

// Guard decorates the fetcher: every outbound call passes scheme, blocklist,
// and SSRF checks, and produces an audit record whether allowed or rejected
type Guard struct {
	fetch   *fetcher.Client
	blocks  *Blocklist
	audit   *Auditor
	opts    Options
	lookup  LookupFunc
	log     logger.Logger
}

// NewGuard wires the decorator
func NewGuard(fetch *fetcher.Client, blocks *Blocklist, audit *Auditor, opts Options) *Guard {
	return &Guard{
		fetch:  fetch,
		blocks: blocks,
		audit:  audit,
		opts:   opts,
		lookup: defaultLookup,
		log:    *logger.Named("safety"),
	}
}

// Blocklist exposes the owned blocklist for runtime management
func (g *Guard) Blocklist() *Blocklist { return g.blocks }

// Auditor exposes the owned audit ring
func (g *Guard) Auditor() *Auditor { return g.audit }

// RespectContentWarnings reports the CW policy flag. Responses with a
// spoiler are never altered; the presentation layer reads this to decide
// how to render them
func (g *Guard) RespectContentWarnings() bool { return g.opts.RespectContentWarnings }

// Vet enforces the outbound policy for rawURL without issuing a request.
// Rejections are audited here; allowed calls are audited by Do
func (g *Guard) Vet(ctx context.Context, rawURL, principal string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		g.audit.Record(AuditError, principal, rawURL, "unparseable url", 0, nil)
		return perr.InvalidInputf("unparseable url %q", rawURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "https":
	case "http":
		if !g.opts.AllowHTTP {
			g.audit.Record(AuditError, principal, u.Hostname(), "scheme rejected", 0, nil)
			return perr.SchemeRejectedf("http rejected for %s", u.Hostname())
		}
	default:
		g.audit.Record(AuditError, principal, u.Hostname(), "scheme rejected", 0, nil)
		return perr.SchemeRejectedf("scheme %q rejected", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())

	if g.opts.BlockingEnabled {
		if entry, blocked := g.blocks.Match(host); blocked {
			g.audit.Record(AuditBlockedInstance, principal, host, "blocked: "+string(entry.Reason), 0, nil)
			return perr.InstanceBlockedf("instance %s blocked (%s)", host, entry.Reason)
		}
	}

	if err := vetHost(ctx, host, g.opts.AllowIPLiterals, g.lookup); err != nil {
		if perr.IsCode(err, perr.ErrorCodeSsrfBlocked) {
			g.audit.Record(AuditSsrfBlocked, principal, host, "ssrf blocked", 0, nil)
		}
		return err
	}
	return nil
}

// Do vets the request and forwards it to the fetcher, auditing the outcome
func (g *Guard) Do(ctx context.Context, r fetcher.Request) (*fetcher.Response, error) {
	principal := logger.Principal(ctx)
	if err := g.Vet(ctx, r.URL, principal); err != nil {
		return nil, err
	}

	host := hostOf(r.URL)
	start := time.Now()
	resp, err := g.fetch.Do(ctx, r)
	dur := time.Since(start)

	outcome := "ok"
	if err != nil {
		outcome = "error: " + perr.CodeName(perr.CodeOf(err))
	}
	g.audit.Record(AuditResourceAccess, principal, host, outcome, dur, map[string]any{
		"method": r.Method,
		"url":    r.URL,
	})
	return resp, err
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
