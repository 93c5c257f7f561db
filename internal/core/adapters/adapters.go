// Package adapters selects the protocol dialect for a host. Detection
// probes the Mastodon API first (it is also what Pleroma, Akkoma, and
// Pixelfed serve), refines the software family through NodeInfo, and
// falls back to the Misskey and Lemmy dialects before giving up.
// Results are cached; only dead hosts are negatively cached, and briefly
package adapters

import (
	"context"
	"time"

	"fedigate/internal/core/adapters/lemmy"
	"fedigate/internal/core/adapters/masto"
	"fedigate/internal/core/adapters/misskey"
	"fedigate/internal/core/adapters/nodeinfo"
	"fedigate/internal/core/fetcher"
	"fedigate/internal/core/model"
	"fedigate/internal/platform/cache"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/logger"
)

const deadHostTTL = 60 * time.Second

// Caps describes what a server family can do through its native API.
// Hosts without a Mastodon-compatible API degrade to ActivityPub reads
type Caps struct {
	MastoAPI      bool
	Timelines     bool
	Threads       bool
	Search        bool
	Trends        bool
	Writes        bool
	Notifications bool
	Media         bool
	Scheduled     bool
	Polls         bool
}

// Capabilities reports the capability set for a server family
func Capabilities(s model.Software) Caps {
	switch s {
	case model.SoftwareMastodon, model.SoftwarePleroma, model.SoftwareAkkoma:
		return Caps{
			MastoAPI: true, Timelines: true, Threads: true, Search: true,
			Trends: true, Writes: true, Notifications: true, Media: true,
			Scheduled: true, Polls: true,
		}
	case model.SoftwarePixelfed:
		// Pixelfed serves the Mastodon dialect without trends or scheduling
		return Caps{
			MastoAPI: true, Timelines: true, Threads: true, Search: true,
			Writes: true, Notifications: true, Media: true,
		}
	}
	return Caps{}
}

// Options configures detection caching
type Options struct {
	InstanceTTL time.Duration
}

// Detector probes hosts and remembers what they run
type Detector struct {
	masto *masto.Client
	ni    *nodeinfo.Client
	mk    *misskey.Client
	lm    *lemmy.Client

	instances *cache.TTL[model.Instance]
	dead      *cache.TTL[error]
	log       logger.Logger
}

// NewDetector builds a Detector sharing one outbound seam across all
// dialect clients
func NewDetector(do fetcher.Doer, o Options) *Detector {
	if o.InstanceTTL <= 0 {
		o.InstanceTTL = 5 * time.Minute
	}
	return &Detector{
		masto:     masto.New(do),
		ni:        nodeinfo.New(do),
		mk:        misskey.New(do),
		lm:        lemmy.New(do),
		instances: cache.New[model.Instance](o.InstanceTTL),
		dead:      cache.New[error](deadHostTTL),
		log:       *logger.Named("adapters"),
	}
}

// Masto exposes the Mastodon dialect client for hosts whose capability
// set includes it
func (d *Detector) Masto() *masto.Client { return d.masto }

// SetScheme switches all dialect clients off https; tests only
func (d *Detector) SetScheme(scheme string) {
	d.masto.Scheme = scheme
	d.ni.Scheme = scheme
	d.mk.Scheme = scheme
	d.lm.Scheme = scheme
}

// Probe identifies a host and returns its normalized instance record
func (d *Detector) Probe(ctx context.Context, host string) (model.Instance, error) {
	if inst, ok := d.instances.Get(host); ok {
		return inst, nil
	}
	if err, ok := d.dead.Get(host); ok {
		return model.Instance{}, err
	}

	inst, err := d.probe(ctx, host)
	if err != nil {
		// only unreachable hosts are negatively cached; a 500 or an odd
		// body may clear up on the next call
		switch perr.CodeOf(err) {
		case perr.ErrorCodeNetwork, perr.ErrorCodeTimeout:
			d.dead.Put(host, err)
		}
		return model.Instance{}, err
	}
	d.instances.Put(host, inst)
	return inst, nil
}

func (d *Detector) probe(ctx context.Context, host string) (model.Instance, error) {
	inst, mastoErr := d.masto.Instance(ctx, host)
	if mastoErr == nil {
		// the version string lies for forks; NodeInfo names the software
		// outright, so prefer it when available
		if doc, err := d.ni.Fetch(ctx, host); err == nil {
			if s := nodeinfo.ClassifySoftware(doc.Software.Name); s != model.SoftwareUnknown {
				inst.Software = s
			}
			if inst.Version == "" {
				inst.Version = doc.Software.Version
			}
		}
		d.log.Debug().Str("host", host).Str("software", string(inst.Software)).Msg("host identified")
		return inst, nil
	}
	if code := perr.CodeOf(mastoErr); code == perr.ErrorCodeNetwork || code == perr.ErrorCodeTimeout {
		return model.Instance{}, mastoErr
	}

	if doc, err := d.ni.Fetch(ctx, host); err == nil {
		switch nodeinfo.ClassifySoftware(doc.Software.Name) {
		case model.SoftwareMisskey:
			if inst, err := d.mk.Instance(ctx, host); err == nil {
				return inst, nil
			}
		case model.SoftwareLemmy:
			if inst, err := d.lm.Instance(ctx, host); err == nil {
				return inst, nil
			}
		}
		return doc.Instance(host), nil
	}

	if inst, err := d.mk.Instance(ctx, host); err == nil {
		return inst, nil
	}
	if inst, err := d.lm.Instance(ctx, host); err == nil {
		return inst, nil
	}
	return model.Instance{}, perr.Wrapf(mastoErr, perr.CodeOf(mastoErr),
		"%s answers none of the known dialects", host)
}
