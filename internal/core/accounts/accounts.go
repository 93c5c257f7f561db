// Package accounts holds the authenticated identities the gateway can
// write through. Accounts come from the environment at startup; tokens
// never appear in returned records or logs and are only attached to a
// request at preparation time
package accounts

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"fedigate/internal/core/adapters/masto"
	"fedigate/internal/core/model"
	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/logger"
)

// Account is one configured identity. The bearer token stays unexported
type Account struct {
	ID       string
	Instance string
	Username string

	token string
}

// Info is the redacted, caller-facing view of an account
type Info struct {
	ID       string `json:"id"`
	Instance string `json:"instance"`
	Username string `json:"username,omitempty"`
	Active   bool   `json:"active"`
}

// Verifier checks a token against its instance. The Mastodon client
// satisfies it
type Verifier interface {
	VerifyCredentials(ctx context.Context, host, token string) (model.Actor, error)
}

var _ Verifier = (*masto.Client)(nil)

// Registry is the in-memory account store. The active account receives
// writes that do not name an account explicitly
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	order    []string
	active   string
	verify   Verifier
	log      logger.Logger
}

// Config carries the account-relevant settings slice
type Config struct {
	DefaultInstance string
	DefaultToken    string
	DefaultUsername string
	// Records formatted "id:instance:token:username"; username optional
	Accounts []string
}

// NewRegistry parses the configured accounts. Malformed records are
// skipped with a warning rather than failing startup; the first account
// parsed becomes active
func NewRegistry(cfg Config, v Verifier) *Registry {
	r := &Registry{
		accounts: make(map[string]*Account),
		verify:   v,
		log:      *logger.Named("accounts"),
	}

	if cfg.DefaultInstance != "" && cfg.DefaultToken != "" {
		r.add(&Account{
			ID:       "default",
			Instance: normalizeHost(cfg.DefaultInstance),
			Username: cfg.DefaultUsername,
			token:    cfg.DefaultToken,
		})
	}

	for _, rec := range cfg.Accounts {
		parts := strings.Split(rec, ":")
		if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			r.log.Warn().Str("record", redactRecord(rec)).Msg("skipping malformed account record")
			continue
		}
		a := &Account{
			ID:       parts[0],
			Instance: normalizeHost(parts[1]),
			token:    parts[2],
		}
		if len(parts) > 3 {
			a.Username = parts[3]
		}
		r.add(a)
	}
	return r
}

func (r *Registry) add(a *Account) {
	if _, dup := r.accounts[a.ID]; dup {
		r.log.Warn().Str("account", a.ID).Msg("duplicate account id, keeping the first")
		return
	}
	r.accounts[a.ID] = a
	r.order = append(r.order, a.ID)
	if r.active == "" {
		r.active = a.ID
	}
}

// List returns redacted account records in configuration order
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		a := r.accounts[id]
		out = append(out, Info{
			ID:       a.ID,
			Instance: a.Instance,
			Username: a.Username,
			Active:   id == r.active,
		})
	}
	return out
}

// Enabled reports whether any account is configured
func (r *Registry) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts) > 0
}

// Resolve picks the account for a write. An empty id means the active
// account; naming an account explicitly does not change the active one
func (r *Registry) Resolve(id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.accounts) == 0 {
		return nil, perr.New(perr.ErrorCodeWriteNotEnabled,
			"no account is configured; writes are disabled")
	}
	if id == "" {
		id = r.active
	}
	a, ok := r.accounts[id]
	if !ok {
		return nil, perr.InvalidInputf("unknown account %q", id)
	}
	return a, nil
}

// SetActive switches the default write identity
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return perr.InvalidInputf("unknown account %q", id)
	}
	r.active = id
	r.log.Info().Str("account", id).Msg("active account switched")
	return nil
}

// Active returns the id of the current default write identity
func (r *Registry) Active() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Verify checks the account's token against its instance and returns the
// owning actor. 401 means the token is bad; any other failure is
// reported as a verification failure, not a credential problem
func (r *Registry) Verify(ctx context.Context, id string) (model.Actor, error) {
	a, err := r.Resolve(id)
	if err != nil {
		return model.Actor{}, err
	}
	actor, err := r.verify.VerifyCredentials(ctx, a.Instance, a.token)
	if err != nil {
		if perr.StatusOf(err) == http.StatusUnauthorized {
			return model.Actor{}, perr.Wrapf(err, perr.ErrorCodeInvalidCredentials,
				"token for account %q was rejected by %s", a.ID, a.Instance)
		}
		return model.Actor{}, perr.Wrapf(err, perr.ErrorCodeVerifyFailed,
			"could not verify account %q against %s", a.ID, a.Instance)
	}
	return actor, nil
}

// Token hands the bearer token to request preparation. It is the only
// accessor; nothing else ever sees the secret
func (a *Account) Token() string { return a.token }

// normalizeHost strips a scheme and trailing slash from a configured
// instance so "https://mastodon.social/" and "mastodon.social" agree
func normalizeHost(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	return strings.ToLower(strings.TrimSuffix(s, "/"))
}

// redactRecord hides the token segment of an account record for logging
func redactRecord(rec string) string {
	parts := strings.Split(rec, ":")
	if len(parts) >= 3 {
		parts[2] = "<redacted>"
	}
	return strings.Join(parts, ":")
}
