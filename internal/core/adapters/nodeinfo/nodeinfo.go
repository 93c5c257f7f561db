// Package nodeinfo discovers server software through the NodeInfo
// well-known document, the one self-description protocol nearly every
// fediverse implementation serves
package nodeinfo

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"fedigate/internal/core/fetcher"
	"fedigate/internal/core/model"
	perr "fedigate/internal/platform/errors"
)

// Doc is the subset of a NodeInfo 2.x document we consume
type Doc struct {
	Version  string `json:"version"`
	Software struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"software"`
	Usage struct {
		Users struct {
			Total int64 `json:"total"`
		} `json:"users"`
		LocalPosts int64 `json:"localPosts"`
	} `json:"usage"`
	OpenRegistrations bool `json:"openRegistrations"`
	Metadata          struct {
		NodeName        string `json:"nodeName"`
		NodeDescription string `json:"nodeDescription"`
	} `json:"metadata"`
}

type wireWellKnown struct {
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
	} `json:"links"`
}

// Client performs NodeInfo discovery through the outbound seam
type Client struct {
	do fetcher.Doer
	// Scheme is https outside of tests
	Scheme string
}

// New builds a Client on top of the given outbound seam
func New(do fetcher.Doer) *Client {
	return &Client{do: do, Scheme: "https"}
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	resp, err := c.do.Do(ctx, fetcher.Request{
		Method: http.MethodGet,
		URL:    rawURL,
		Header: http.Header{"Accept": []string{"application/json"}},
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeClient, "unparseable nodeinfo from %s", rawURL)
	}
	return nil
}

// Fetch discovers and retrieves the host's NodeInfo document, preferring
// schema 2.1 over 2.0 when both are advertised
func (c *Client) Fetch(ctx context.Context, host string) (Doc, error) {
	var wk wireWellKnown
	if err := c.getJSON(ctx, c.Scheme+"://"+host+"/.well-known/nodeinfo", &wk); err != nil {
		return Doc{}, err
	}

	href := ""
	for _, l := range wk.Links {
		if !strings.Contains(l.Rel, "nodeinfo.diaspora.software/ns/schema/2.") {
			continue
		}
		if href == "" || strings.HasSuffix(l.Rel, "/2.1") {
			href = l.Href
		}
	}
	if href == "" {
		return Doc{}, perr.New(perr.ErrorCodeClient, "host advertises no nodeinfo 2.x schema")
	}

	var doc Doc
	if err := c.getJSON(ctx, href, &doc); err != nil {
		return Doc{}, err
	}
	if doc.Software.Name == "" {
		return Doc{}, perr.New(perr.ErrorCodeClient, "nodeinfo document names no software")
	}
	return doc, nil
}

// Instance projects a NodeInfo document onto the normalized instance
func (d Doc) Instance(host string) model.Instance {
	return model.Instance{
		Domain:           host,
		Software:         ClassifySoftware(d.Software.Name),
		Version:          d.Software.Version,
		Title:            d.Metadata.NodeName,
		Description:      d.Metadata.NodeDescription,
		Users:            d.Usage.Users.Total,
		Posts:            d.Usage.LocalPosts,
		RegistrationOpen: d.OpenRegistrations,
	}
}

// ClassifySoftware maps a NodeInfo software name onto the known families
func ClassifySoftware(name string) model.Software {
	switch strings.ToLower(name) {
	case "mastodon", "hometown", "glitchcafe":
		return model.SoftwareMastodon
	case "pleroma":
		return model.SoftwarePleroma
	case "akkoma":
		return model.SoftwareAkkoma
	case "pixelfed":
		return model.SoftwarePixelfed
	case "misskey", "calckey", "firefish", "sharkey", "iceshrimp":
		return model.SoftwareMisskey
	case "lemmy":
		return model.SoftwareLemmy
	case "peertube":
		return model.SoftwarePeertube
	}
	return model.SoftwareUnknown
}
