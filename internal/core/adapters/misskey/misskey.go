// Package misskey covers the Misskey API family (Misskey, Firefish,
// Sharkey). Misskey is POST-only: even metadata reads are POSTs with a
// JSON body
package misskey

import (
	"context"
	"encoding/json"
	"net/http"

	"fedigate/internal/core/fetcher"
	"fedigate/internal/core/htmltext"
	"fedigate/internal/core/model"
	perr "fedigate/internal/platform/errors"
)

type wireMeta struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	MaintainerEmail string `json:"maintainerEmail"`
	Langs           []string `json:"langs"`
	DisableRegistration bool `json:"disableRegistration"`
}

type wireStats struct {
	OriginalUsersCount int64 `json:"originalUsersCount"`
	OriginalNotesCount int64 `json:"originalNotesCount"`
	Instances          int64 `json:"instances"`
}

// Client speaks the Misskey meta endpoints through the outbound seam
type Client struct {
	do fetcher.Doer
	// Scheme is https outside of tests
	Scheme string
}

// New builds a Client on top of the given outbound seam
func New(do fetcher.Doer) *Client {
	return &Client{do: do, Scheme: "https"}
}

func (c *Client) post(ctx context.Context, host, path string, out any) error {
	resp, err := c.do.Do(ctx, fetcher.Request{
		Method: http.MethodPost,
		URL:    c.Scheme + "://" + host + path,
		Header: http.Header{
			"Accept":       []string{"application/json"},
			"Content-Type": []string{"application/json"},
		},
		Body: []byte("{}"),
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeClient, "unparseable response from %s%s", host, path)
	}
	return nil
}

// Instance fetches /api/meta and /api/stats and normalizes them. A
// failing stats call degrades to metadata-only rather than erroring
func (c *Client) Instance(ctx context.Context, host string) (model.Instance, error) {
	var meta wireMeta
	if err := c.post(ctx, host, "/api/meta", &meta); err != nil {
		return model.Instance{}, err
	}
	inst := model.Instance{
		Domain:           host,
		Software:         model.SoftwareMisskey,
		Version:          meta.Version,
		Title:            meta.Name,
		Languages:        meta.Langs,
		RegistrationOpen: !meta.DisableRegistration,
	}
	if meta.Description != "" {
		inst.Description = htmltext.Strip(meta.Description)
	}

	var stats wireStats
	if err := c.post(ctx, host, "/api/stats", &stats); err == nil {
		inst.Users = stats.OriginalUsersCount
		inst.Posts = stats.OriginalNotesCount
		inst.Domains = stats.Instances
	}
	return inst, nil
}
