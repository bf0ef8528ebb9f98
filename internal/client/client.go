// Package client talks to the document-generation REST engine.
//
// Every artifact kind (document, metrics, tag tree) follows the same cycle:
// POST a Template and receive a guid, poll the status until it is 302, GET
// the result, DELETE it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"docgen/internal/metrics"
)

// Kind selects the artifact endpoint.
type Kind string

const (
	KindDocument Kind = "document"
	KindMetrics  Kind = "metrics"
	KindTagTree  Kind = "tagtree"
)

// StatusReady is the status code reported once an artifact can be fetched.
const StatusReady = http.StatusFound

// ErrTimeout is returned by WaitReady when MaxWait elapses.
var ErrTimeout = errors.New("timed out waiting for the engine")

// Client is safe for concurrent use.
type Client struct {
	base *url.URL
	http *http.Client
	log  logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Redirects are never followed,
// so its CheckRedirect is overridden.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		cp := *h
		c.http = &cp
	}
}

// WithTimeout bounds each request. 0 means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the logger for request tracing.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a client for the engine at baseURI.
//
// Errors:
//   - baseURI is empty, unparsable or not http(s).
func New(baseURI string, opts ...Option) (*Client, error) {
	raw := strings.TrimSpace(baseURI)
	if raw == "" {
		return nil, errors.New("client: base uri is empty")
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "client: parse base uri %q", baseURI)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("client: base uri %q must be http or https", baseURI)
	}

	c := &Client{
		base: u,
		http: &http.Client{},
		log:  logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	c.http.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return c, nil
}

// BaseURI returns the resolved base.
func (c *Client) BaseURI() string { return c.base.String() }

// do sends one request. in is JSON-encoded when non-nil; out is decoded from
// a 2xx body when non-nil. Status codes below 400 are returned, not errors.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, errors.Wrapf(err, "encode %s %s", method, path)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return 0, errors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordHTTP(method, 0, err, time.Since(start), 0)
		return 0, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	metrics.RecordHTTP(method, resp.StatusCode, err, time.Since(start), int64(len(data)))
	c.log.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
		"bytes":  len(data),
		"ms":     time.Since(start).Milliseconds(),
	}).Debug("engine request")
	if err != nil {
		return resp.StatusCode, errors.Wrapf(err, "read %s %s", method, path)
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Header.Get("Content-Type"), data),
		}
	}
	if out != nil && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, errors.Wrapf(err, "decode %s %s", method, path)
		}
	}
	return resp.StatusCode, nil
}

// Version queries GET v2/version.
func (c *Client) Version(ctx context.Context) (VersionInfo, error) {
	var v VersionInfo
	_, err := c.do(ctx, http.MethodGet, "v2/version", nil, &v)
	return v, err
}

// Submit posts tpl and returns the tracking guid.
func (c *Client) Submit(ctx context.Context, kind Kind, tpl *Template) (string, error) {
	var r guidResponse
	if _, err := c.do(ctx, http.MethodPost, "v2/"+string(kind), tpl, &r); err != nil {
		return "", err
	}
	if r.Guid == "" {
		return "", errors.Errorf("POST v2/%s: engine returned no guid", kind)
	}
	return r.Guid, nil
}

// Status returns the artifact status code. StatusReady means done.
func (c *Client) Status(ctx context.Context, kind Kind, guid string) (int, error) {
	return c.do(ctx, http.MethodGet, "v2/"+string(kind)+"/"+guid+"/status", nil, nil)
}

// Fetch decodes the finished artifact into out.
func (c *Client) Fetch(ctx context.Context, kind Kind, guid string, out any) error {
	_, err := c.do(ctx, http.MethodGet, "v2/"+string(kind)+"/"+guid, nil, out)
	return err
}

// Delete removes the artifact from the engine.
func (c *Client) Delete(ctx context.Context, kind Kind, guid string) error {
	_, err := c.do(ctx, http.MethodDelete, "v2/"+string(kind)+"/"+guid, nil, nil)
	return err
}

// PollOptions controls WaitReady.
type PollOptions struct {
	// Interval between status checks. Defaults to 100ms.
	Interval time.Duration
	// MaxWait bounds the whole wait. 0 waits until ctx is done.
	MaxWait time.Duration
	// OnStatus, if set, sees every non-ready status.
	OnStatus func(status int)
}

// WaitReady polls Status until it reports StatusReady.
//
// Errors:
//   - Any Status error.
//   - ErrTimeout once MaxWait has passed.
//   - ctx.Err() when ctx is done.
func (c *Client) WaitReady(ctx context.Context, kind Kind, guid string, opts PollOptions) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	var deadline <-chan time.Time
	if opts.MaxWait > 0 {
		t := time.NewTimer(opts.MaxWait)
		defer t.Stop()
		deadline = t.C
	}

	for {
		status, err := c.Status(ctx, kind, guid)
		if err != nil {
			return err
		}
		if status == StatusReady {
			return nil
		}
		if opts.OnStatus != nil {
			opts.OnStatus(status)
		}

		wait := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-deadline:
			wait.Stop()
			return errors.Wrapf(ErrTimeout, "%s %s not ready after %s", kind, guid, opts.MaxWait)
		case <-wait.C:
		}
	}
}

// PostDocument submits a document job.
func (c *Client) PostDocument(ctx context.Context, tpl *Template) (string, error) {
	return c.Submit(ctx, KindDocument, tpl)
}

// GetDocument fetches a finished document.
func (c *Client) GetDocument(ctx context.Context, guid string) (*Document, error) {
	var d Document
	if err := c.Fetch(ctx, KindDocument, guid, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// PostMetrics submits a metrics job.
func (c *Client) PostMetrics(ctx context.Context, tpl *Template) (string, error) {
	return c.Submit(ctx, KindMetrics, tpl)
}

// GetMetrics fetches finished metrics.
func (c *Client) GetMetrics(ctx context.Context, guid string) (*Metrics, error) {
	var m Metrics
	if err := c.Fetch(ctx, KindMetrics, guid, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// PostTagTree submits a tag-tree job.
func (c *Client) PostTagTree(ctx context.Context, tpl *Template) (string, error) {
	return c.Submit(ctx, KindTagTree, tpl)
}

// GetTagTree fetches a finished tag tree.
func (c *Client) GetTagTree(ctx context.Context, guid string) (*TagTree, error) {
	var t TagTree
	if err := c.Fetch(ctx, KindTagTree, guid, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
