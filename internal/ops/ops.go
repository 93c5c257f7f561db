// Package ops is the operation layer: every callable gateway operation
// lives here, composed from the resolver, the dialect adapters, the
// account registry, and the governors. Each operation admits against the
// local rate limit before any network work, records an audit trail and a
// timing sample, and returns platform errors
package ops

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"fedigate/internal/core/accounts"
	"fedigate/internal/core/adapters"
	"fedigate/internal/core/adapters/apub"
	"fedigate/internal/core/governor"
	"fedigate/internal/core/metrics"
	"fedigate/internal/core/model"
	"fedigate/internal/core/resolver"
	"fedigate/internal/core/safety"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/logger"
)

// Service exposes the gateway operations
type Service struct {
	resolver *resolver.Resolver
	detector *adapters.Detector
	apub     *apub.Client
	accounts *accounts.Registry
	local    *governor.Local
	metrics  *metrics.Collector
	audit    *safety.Auditor
	mediaTTL time.Duration
	log      logger.Logger
	now      func() time.Time
}

// Deps carries the constructed components the Service composes
type Deps struct {
	Resolver *resolver.Resolver
	Detector *adapters.Detector
	APub     *apub.Client
	Accounts *accounts.Registry
	Local    *governor.Local
	Metrics  *metrics.Collector
	Audit    *safety.Auditor
	// MediaTTL is how long an uploaded media id stays attachable
	MediaTTL time.Duration
}

// New wires a Service from its dependencies
func New(d Deps) *Service {
	return &Service{
		resolver: d.Resolver,
		detector: d.Detector,
		apub:     d.APub,
		accounts: d.Accounts,
		local:    d.Local,
		metrics:  d.Metrics,
		audit:    d.Audit,
		mediaTTL: d.MediaTTL,
		log:      *logger.Named("ops"),
		now:      time.Now,
	}
}

// begin runs the per-operation preamble: local admission and the audit
// record. The returned finish func records the timing sample
func (s *Service) begin(ctx context.Context, op string, params map[string]any) (finish func(error), err error) {
	principal := logger.Principal(ctx)
	if err := s.local.Admit(principal); err != nil {
		s.audit.Record(safety.AuditRateLimited, principal, op, "rejected", 0, params)
		return nil, err
	}
	start := s.now()
	return func(opErr error) {
		dur := s.now().Sub(start)
		outcome := "ok"
		if opErr != nil {
			outcome = "error: " + perr.CodeName(perr.CodeOf(opErr))
			s.log.Warn().Err(opErr).Str("op", op).Msg("operation failed")
		}
		s.audit.Record(safety.AuditToolInvocation, principal, op, outcome, dur, params)
		s.metrics.Record(op, dur, opErr)
	}, nil
}

// retryRead runs fn, retrying once when the failure is a timeout or a
// remote 5xx. Reads are idempotent; anything else is permanent
func retryRead(ctx context.Context, fn func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1), ctx)
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		switch perr.CodeOf(err) {
		case perr.ErrorCodeTimeout, perr.ErrorCodeServer:
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

// hostOfAcct extracts the host from a normalized acct
func hostOfAcct(acct string) string {
	_, host, _ := strings.Cut(acct, "@")
	return host
}

// mastoFor checks that the host speaks the Mastodon dialect and returns
// the shared client
func (s *Service) mastoFor(ctx context.Context, host string) (*adapters.Detector, model.Instance, error) {
	inst, err := s.detector.Probe(ctx, host)
	if err != nil {
		return nil, model.Instance{}, err
	}
	if !adapters.Capabilities(inst.Software).MastoAPI {
		return nil, inst, perr.Newf(perr.ErrorCodeClient,
			"%s runs %s, which does not serve this operation", host, inst.Software)
	}
	return s.detector, inst, nil
}
