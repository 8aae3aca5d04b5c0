// Package backend is the REST collaborator: typed calls to the remote API,
// one normalization function per resource, and the error taxonomy the rest of
// the client classifies failures with.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/md-rashed-zaman/apptremind-calendar/libs/metrics"
	"github.com/md-rashed-zaman/apptremind-calendar/libs/runtime"
)

const (
	defaultTimeout       = 15 * time.Second
	IdempotencyKeyHeader = "Idempotency-Key"
)

// TokenSource supplies credentials for API calls. Refresh is called with the
// token that was rejected; implementations decide whether it still needs
// refreshing.
type TokenSource interface {
	Token() string
	Cookie() string
	Refresh(ctx context.Context, stale string) (string, error)
}

type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *metrics.ClientMetrics
	// Location reads API timestamps that carry no offset until settings
	// report the business zone. Defaults to UTC.
	Location *time.Location
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.ClientMetrics

	zone atomic.Pointer[time.Location]

	mu     sync.RWMutex
	tokens TokenSource
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	c := &Client{
		baseURL:    base,
		httpClient: hc,
		logger:     runtime.OrDiscard(cfg.Logger),
		metrics:    cfg.Metrics,
	}
	c.SetLocation(cfg.Location)
	return c, nil
}

// SetLocation sets the business zone used for naive timestamps. GetSettings
// calls it with the zone the API reports.
func (c *Client) SetLocation(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	c.zone.Store(loc)
}

func (c *Client) location() *time.Location {
	return c.zone.Load()
}

// SetTokenSource wires the session in after construction; the session itself
// needs a client to log in with.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

func (c *Client) tokenSource() TokenSource {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

type call struct {
	endpoint string // metrics label
	method   string
	path     string
	query    url.Values
	body     any
	header   http.Header
	// anonymous calls carry no credentials and never trigger a refresh.
	anonymous bool
	// noRefresh sends credentials but returns a 401 as-is.
	noRefresh bool
}

type response struct {
	status int
	header http.Header
	body   []byte
}

// do sends c and, on a 401, asks the token source for a fresh token and
// retries exactly once.
func (c *Client) do(ctx context.Context, cl call) (*response, error) {
	ts := c.tokenSource()
	token, cookie := "", ""
	if ts != nil && !cl.anonymous {
		token, cookie = ts.Token(), ts.Cookie()
	}

	resp, err := c.send(ctx, cl, token, cookie)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusUnauthorized || ts == nil || cl.anonymous || cl.noRefresh {
		return resp, c.check(resp)
	}

	c.metrics.ObserveRetry("auth_refresh")
	fresh, err := ts.Refresh(ctx, token)
	if err != nil {
		if transient(err) {
			return nil, fmt.Errorf("refresh failed: %w", err)
		}
		return nil, fmt.Errorf("%w: refresh failed: %v", ErrUnauthorized, err)
	}
	resp, err = c.send(ctx, cl, fresh, ts.Cookie())
	if err != nil {
		return nil, err
	}
	return resp, c.check(resp)
}

func (c *Client) check(resp *response) error {
	if resp.status >= 200 && resp.status < 300 {
		return nil
	}
	return newAPIError(resp.status, resp.body)
}

func (c *Client) send(ctx context.Context, cl call, token, cookie string) (*response, error) {
	endpoint := c.baseURL + cl.path
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}

	var payload []byte
	if cl.body != nil {
		var err error
		payload, err = json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
	}
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range cl.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(cl.endpoint, 0, time.Since(start).Seconds())
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(cl.endpoint, resp.StatusCode, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrNetwork, err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn("api non-2xx response", "endpoint", cl.endpoint, "status", resp.StatusCode)
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}
