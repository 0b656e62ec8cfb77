package poller

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher performs the network part of a poll cycle.
type Fetcher interface {
	Fetch(ctx context.Context) Outcome
}

// Client fetches the stats endpoint over HTTPS.
//
// SECURITY: server certificates are NOT verified. The device has no trust
// store provisioning, so the endpoint is reachable by anyone able to
// intercept its traffic.
type Client struct {
	http *http.Client
	url  string
	now  func() time.Time
}

// NewClient creates a Client for baseURL + StatsPath.
func NewClient(baseURL string, timeout time.Duration, now func() time.Time) *Client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // see type doc
		Proxy:           http.ProxyFromEnvironment,
	}
	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			// Redirects are reported, not followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		url: strings.TrimRight(baseURL, "/") + StatsPath,
		now: now,
	}
}

// URL returns the full request URL.
func (c *Client) URL() string {
	return c.url
}

// Fetch performs one GET and classifies the result. It never returns an
// error directly; failures are carried in Outcome.Err.
func (c *Client) Fetch(ctx context.Context) (out Outcome) {
	defer func() { out.Timestamp = c.now() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		out.Metric = ParseFailure
		out.Err = fmt.Errorf("%w: build request: %v", ErrTransport, err)
		return out
	}

	resp, err := c.http.Do(req)
	if err != nil {
		out.Metric = ParseFailure
		out.Err = fmt.Errorf("%w: %v", ErrTransport, err)
		return out
	}
	defer resp.Body.Close()

	out.HTTPStatus = resp.StatusCode
	body, truncated, readErr := readCapped(resp.Body, MaxBodyBytes)
	out.Body = string(body)

	if !successStatus(resp.StatusCode) {
		out.Metric = ParseFailure
		out.Err = &HTTPStatusError{Code: resp.StatusCode, Body: out.Body}
		return out
	}

	switch {
	case readErr != nil:
		out.Metric = ParseFailure
		out.Err = fmt.Errorf("%w: read body: %v", ErrParse, readErr)
	case truncated:
		out.Metric = ParseFailure
		out.Err = fmt.Errorf("%w: body exceeds %d bytes", ErrParse, MaxBodyBytes)
	default:
		out.Metric, err = ParseCount(body)
		if err != nil {
			out.Err = err
		}
	}
	return out
}

// successStatus reports whether code counts as a readable response.
func successStatus(code int) bool {
	return code == http.StatusOK || code == http.StatusMovedPermanently
}

// readCapped reads at most limit bytes and reports whether more followed.
func readCapped(r io.Reader, limit int) ([]byte, bool, error) {
	body, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if len(body) > limit {
		return body[:limit], true, err
	}
	return body, false, err
}

type countDoc struct {
	Count *json.Number `json:"count"`
}

// ParseCount extracts the integer "count" field. On any failure it returns
// ParseFailure together with an error wrapping ErrParse.
//
// The count must be written as a JSON integer. A number with a fraction or
// exponent, even an integral one such as 3.0 or 3e0, is a parse failure and
// yields ParseFailure rather than 3.
func ParseCount(body []byte) (int, error) {
	if len(body) > MaxBodyBytes {
		return ParseFailure, fmt.Errorf("%w: body exceeds %d bytes", ErrParse, MaxBodyBytes)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc countDoc
	if err := dec.Decode(&doc); err != nil {
		return ParseFailure, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc.Count == nil {
		return ParseFailure, fmt.Errorf("%w: missing count", ErrParse)
	}
	n, err := doc.Count.Int64()
	if err != nil {
		return ParseFailure, fmt.Errorf("%w: count %q is not an integer", ErrParse, doc.Count.String())
	}
	return int(n), nil
}
