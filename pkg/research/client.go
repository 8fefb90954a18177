package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"gitlab.com/tinyland/lab/research-pulse/pkg/apperr"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
)

// Client talks to the research backend over HTTP. Non-2xx responses become
// apperr faults, undecodable bodies become *apperr.DecodeError and transport
// errors are returned wrapped but otherwise untouched.
type Client struct {
	base      *url.URL
	http      *http.Client
	log       *zap.Logger
	userAgent string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.http.Timeout = d }
}

// WithLogger sets the request logger.
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient returns a Client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("research: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("research: base url %q must be http or https", baseURL)
	}
	c := &Client{
		base:      u,
		http:      &http.Client{Timeout: defaultTimeout},
		log:       zap.NewNop(),
		userAgent: "research-pulse",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ Service = (*Client)(nil)

func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var u User
	err := c.do(ctx, request{method: http.MethodGet, path: "/v1/me", token: token, resource: "Account"}, &u)
	return u, err
}

func (c *Client) SignIn(ctx context.Context, email, password string) (Session, error) {
	var s Session
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, request{method: http.MethodPost, path: "/v1/auth/sign-in", body: body}, &s)
	return s, err
}

func (c *Client) MarketSummary(ctx context.Context, token string) (MarketSummary, error) {
	var m MarketSummary
	err := c.do(ctx, request{method: http.MethodGet, path: "/v1/market/summary", token: token}, &m)
	return m, err
}

func (c *Client) Movers(ctx context.Context, token string) (Movers, error) {
	var m Movers
	err := c.do(ctx, request{method: http.MethodGet, path: "/v1/market/movers", token: token}, &m)
	return m, err
}

func (c *Client) Search(ctx context.Context, token, query string) ([]SearchResult, error) {
	var out []SearchResult
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/v1/search",
		token:  token,
		query:  url.Values{"q": {query}},
	}, &out)
	return out, err
}

func (c *Client) Series(ctx context.Context, token string, q SeriesQuery) (Series, error) {
	var s Series
	err := c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/v1/subjects/" + url.PathEscape(q.Symbol) + "/series",
		token:    token,
		query:    url.Values{"metric": {string(q.Metric)}, "period": {string(q.Period)}},
		resource: "Series",
	}, &s)
	return s, err
}

func (c *Client) Watchlist(ctx context.Context, token string) ([]WatchItem, error) {
	var out []WatchItem
	err := c.do(ctx, request{method: http.MethodGet, path: "/v1/watchlist", token: token}, &out)
	return out, err
}

func (c *Client) AddToWatchlist(ctx context.Context, token, symbol string) (WatchItem, error) {
	var item WatchItem
	err := c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/v1/watchlist",
		token:    token,
		body:     map[string]string{"symbol": symbol},
		resource: "Subject",
	}, &item)
	return item, err
}

func (c *Client) RemoveFromWatchlist(ctx context.Context, token, id string) error {
	return c.do(ctx, request{
		method:   http.MethodDelete,
		path:     "/v1/watchlist/" + url.PathEscape(id),
		token:    token,
		resource: "Watchlist item",
	}, nil)
}

func (c *Client) Reports(ctx context.Context, token, symbol string) ([]Report, error) {
	path := "/v1/reports"
	if symbol != "" {
		path = "/v1/subjects/" + url.PathEscape(symbol) + "/reports"
	}
	var out []Report
	err := c.do(ctx, request{method: http.MethodGet, path: path, token: token, resource: "Reports"}, &out)
	return out, err
}

type request struct {
	method   string
	path     string
	token    string
	query    url.Values
	body     any
	resource string // names the target in not-found errors
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	u := *c.base
	u.Path = c.base.Path + r.path
	u.RawQuery = r.query.Encode()

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("research: encode %s body: %w", r.path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("research: build %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err))
		return fmt.Errorf("research: %s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("research: read %s: %w", r.path, err)
	}
	c.log.Debug("request done",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.FromResponse(resp.StatusCode, resp.Header, data, r.resource)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	// Some endpoints wrap the payload as {"data": ...}.
	if gjson.ValidBytes(data) {
		if env := gjson.GetBytes(data, "data"); env.Exists() && (env.IsObject() || env.IsArray()) {
			data = []byte(env.Raw)
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &apperr.DecodeError{Err: err}
	}
	return nil
}
