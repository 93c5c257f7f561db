// Package engine assembles the gateway from configuration: the outbound
// pipeline (fetcher wrapped in safety and throttling), the resolver and
// dialect adapters on top of it, and the operation service the server
// exposes
package engine

import (
	"context"
	"net/url"
	"strings"

	"fedigate/internal/core/accounts"
	"fedigate/internal/core/adapters"
	"fedigate/internal/core/adapters/apub"
	"fedigate/internal/core/fetcher"
	"fedigate/internal/core/governor"
	"fedigate/internal/core/metrics"
	"fedigate/internal/core/resolver"
	"fedigate/internal/core/safety"
	"fedigate/internal/ops"
	"fedigate/internal/platform/config"
	"fedigate/internal/platform/logger"
)

// pipeline is the outbound call path every component above the fetcher
// shares: per-instance backoff, concurrency slots, then the safety guard.
// Rate headers on the response feed back into the adaptive limiter
type pipeline struct {
	guard    *safety.Guard
	adaptive *governor.Adaptive
	slots    *governor.Slots
}

func (p *pipeline) Do(ctx context.Context, r fetcher.Request) (*fetcher.Response, error) {
	host := hostOf(r.URL)
	if err := p.adaptive.Wait(ctx, host); err != nil {
		return nil, err
	}
	release, err := p.slots.Acquire(ctx, host)
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := p.guard.Do(ctx, r)
	if resp != nil {
		p.adaptive.Observe(host, resp.Rate)
	}
	return resp, err
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// Engine owns the assembled components for the lifetime of the process
type Engine struct {
	cfg config.Settings

	guard    *safety.Guard
	adaptive *governor.Adaptive
	audit    *safety.Auditor
	metrics  *metrics.Collector
	detector *adapters.Detector
	accounts *accounts.Registry
	ops      *ops.Service
	log      logger.Logger
}

// New builds the full component graph from Settings
func New(cfg config.Settings) *Engine {
	fetch := fetcher.New(fetcher.Options{
		UserAgent: cfg.UserAgent,
		Timeout:   cfg.RequestTimeout,
	})
	audit := safety.NewAuditor(cfg.AuditLogEnabled, cfg.AuditLogMaxEntries)
	guard := safety.NewGuard(fetch, safety.NewBlocklist(cfg.BlockedInstances), audit, safety.Options{
		BlockingEnabled:        cfg.InstanceBlockingEnabled,
		AllowHTTP:              cfg.AllowHTTP,
		AllowIPLiterals:        cfg.AllowIPLiterals,
		RespectContentWarnings: cfg.RespectContentWarnings,
	})
	pipe := &pipeline{
		guard:    guard,
		adaptive: governor.NewAdaptive(),
		slots:    governor.NewSlots(cfg.MaxConcurrent, cfg.MaxConcurrentPerInstance),
	}

	detector := adapters.NewDetector(pipe, adapters.Options{InstanceTTL: cfg.InstanceCacheTTL})
	registry := accounts.NewRegistry(accounts.Config{
		DefaultInstance: cfg.DefaultInstance,
		DefaultToken:    cfg.DefaultToken,
		DefaultUsername: cfg.DefaultUsername,
		Accounts:        cfg.Accounts,
	}, detector.Masto())
	col := metrics.New(0)

	svc := ops.New(ops.Deps{
		Resolver: resolver.New(pipe, resolver.Options{ActorTTL: cfg.CacheTTLActor}),
		Detector: detector,
		APub:     apub.New(pipe),
		Accounts: registry,
		Local:    governor.NewLocal(cfg.RateLimitEnabled, cfg.RateLimitMax, cfg.RateLimitWindow),
		Metrics:  col,
		Audit:    audit,
		MediaTTL: cfg.CacheTTLMedia,
	})

	return &Engine{
		cfg:      cfg,
		guard:    guard,
		adaptive: pipe.adaptive,
		audit:    audit,
		metrics:  col,
		detector: detector,
		accounts: registry,
		ops:      svc,
		log:      *logger.Named("engine"),
	}
}

// Ops returns the operation service
func (e *Engine) Ops() *ops.Service { return e.ops }

// Metrics returns the timing collector
func (e *Engine) Metrics() *metrics.Collector { return e.metrics }

// Audit returns the audit ring
func (e *Engine) Audit() *safety.Auditor { return e.audit }

// Guard returns the safety layer
func (e *Engine) Guard() *safety.Guard { return e.guard }

// RateState reports the last observed remote limit for host
func (e *Engine) RateState(host string) (governor.RateLimitState, bool) {
	return e.adaptive.State(host)
}

// Settings returns the immutable configuration the engine was built with
func (e *Engine) Settings() config.Settings { return e.cfg }

// Shutdown drains the audit ring into the log and flushes metrics
func (e *Engine) Shutdown(ctx context.Context) error {
	e.log.Info().Msg("engine shutting down")
	e.audit.Flush()
	e.metrics.Flush()
	return ctx.Err()
}
