// Package fetcher is the sole outbound network primitive. It applies the
// per-request deadline, stamps the configured User-Agent, classifies
// responses into platform error codes, and extracts rate-limit and
// pagination headers from every response. Retry policy lives upstream
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	perr "fedigate/internal/platform/errors"
	"fedigate/internal/platform/logger"
)

const (
	defaultTimeout = 10 * time.Second
	defaultUA      = "ActivityPub-MCP-Client/1.1"
	maxBodyBytes   = 4 << 20
)

// Options configures the Client
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// Transport overrides the underlying RoundTripper (tests)
	Transport http.RoundTripper
}

// Request describes one outbound call
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// Timeout caps this call below the client default when positive
	Timeout time.Duration
}

// Response is the classified result of an outbound call. Rate and Page are
// populated from headers regardless of status
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Duration time.Duration
	Rate     RateInfo
	Page     PageLinks
}

// Doer is the outbound-call seam shared by everything above the fetcher:
// the raw Client, the safety Guard, and the engine pipeline all satisfy it
type Doer interface {
	Do(ctx context.Context, r Request) (*Response, error)
}

// Client issues outbound HTTP calls. Same-host redirects are followed;
// cross-host redirects are returned verbatim so the safety layer re-vets
// the new origin
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
	now  func() time.Time
}

// New creates a Client with sane defaults
func New(o Options) *Client {
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	hc := &http.Client{
		Timeout:   o.Timeout,
		Transport: o.Transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if req.URL.Host != via[0].URL.Host {
				return http.ErrUseLastResponse
			}
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			return nil
		},
	}
	return &Client{
		http: hc,
		opts: o,
		log:  *logger.Named("fetcher"),
		now:  time.Now,
	}
}

// Do issues the request and classifies the outcome.
// The Response is returned alongside classified errors whenever the
// transport produced one, so callers can still observe headers
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	timeout := c.opts.Timeout
	if r.Timeout > 0 && r.Timeout < timeout {
		timeout = r.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidInput, "bad request url %s", r.URL)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	start := c.now()
	resp, err := c.http.Do(req)
	elapsed := c.now().Sub(start)

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.Canceled) {
				return nil, perr.Cancelledf("request cancelled: %s", r.URL)
			}
			return nil, perr.Wrapf(err, perr.ErrorCodeTimeout, "deadline exceeded for %s", r.URL)
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeNetwork, "request failed for %s", r.URL)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Error().Err(cerr).Str("url", r.URL).Msg("close body failed")
		}
	}()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeNetwork, "read body failed for %s", r.URL)
	}

	out := &Response{
		Status:   resp.StatusCode,
		Header:   resp.Header,
		Body:     b,
		Duration: elapsed,
		Rate:     ParseRateHeaders(resp.Header, c.now()),
		Page:     ParseLinkHeader(resp.Header),
	}

	c.log.Debug().
		Str("method", r.Method).
		Str("url", r.URL).
		Int("status", resp.StatusCode).
		Dur("latency", elapsed).
		Int("rate_remaining", out.Rate.Remaining).
		Msg("outbound response")

	return out, classify(out)
}

// classify maps a status onto the platform taxonomy. 2xx and 3xx are nil;
// 3xx bodies are handed back verbatim for the caller to decide
func classify(r *Response) error {
	switch {
	case r.Status >= 200 && r.Status < 400:
		return nil
	case r.Status == http.StatusTooManyRequests:
		return perr.WithStatus(perr.InstanceRateLimited("", r.Rate.RetryAfter), r.Status)
	case r.Status >= 400 && r.Status < 500:
		return perr.ClientErr(r.Status, http.StatusText(r.Status))
	default:
		return perr.ServerErr(r.Status, http.StatusText(r.Status))
	}
}
