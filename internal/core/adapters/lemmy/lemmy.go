// Package lemmy covers the Lemmy HTTP API, which shares nothing with the
// Mastodon dialect but serves a single rich site document
package lemmy

import (
	"context"
	"encoding/json"
	"net/http"

	"fedigate/internal/core/fetcher"
	"fedigate/internal/core/htmltext"
	"fedigate/internal/core/model"
	perr "fedigate/internal/platform/errors"
)

type wireSite struct {
	Version  string `json:"version"`
	SiteView struct {
		Site struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Sidebar     string `json:"sidebar"`
		} `json:"site"`
		LocalSite struct {
			RegistrationMode string `json:"registration_mode"`
		} `json:"local_site"`
		Counts struct {
			Users int64 `json:"users"`
			Posts int64 `json:"posts"`
		} `json:"counts"`
	} `json:"site_view"`
}

// Client speaks the Lemmy site endpoint through the outbound seam
type Client struct {
	do fetcher.Doer
	// Scheme is https outside of tests
	Scheme string
}

// New builds a Client on top of the given outbound seam
func New(do fetcher.Doer) *Client {
	return &Client{do: do, Scheme: "https"}
}

// Instance fetches /api/v3/site and normalizes it
func (c *Client) Instance(ctx context.Context, host string) (model.Instance, error) {
	resp, err := c.do.Do(ctx, fetcher.Request{
		Method: http.MethodGet,
		URL:    c.Scheme + "://" + host + "/api/v3/site",
		Header: http.Header{"Accept": []string{"application/json"}},
	})
	if err != nil {
		return model.Instance{}, err
	}
	var w wireSite
	if err := json.Unmarshal(resp.Body, &w); err != nil {
		return model.Instance{}, perr.Wrapf(err, perr.ErrorCodeClient, "unparseable site document from %s", host)
	}
	inst := model.Instance{
		Domain:           host,
		Software:         model.SoftwareLemmy,
		Version:          w.Version,
		Title:            w.SiteView.Site.Name,
		Description:      w.SiteView.Site.Description,
		Users:            w.SiteView.Counts.Users,
		Posts:            w.SiteView.Counts.Posts,
		RegistrationOpen: w.SiteView.LocalSite.RegistrationMode == "open",
	}
	if inst.Description == "" && w.SiteView.Site.Sidebar != "" {
		inst.Description = htmltext.Strip(w.SiteView.Site.Sidebar)
	}
	return inst, nil
}
