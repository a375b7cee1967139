package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/storefront/auth"
	"github.com/jonwraymond/storefront/cache"
	"github.com/jonwraymond/storefront/observe"
	"github.com/jonwraymond/storefront/resilience"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// RequestIDHeader carries a fresh id on every request.
const RequestIDHeader = "X-Request-ID"

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "http://localhost:5000/api".
	BaseURL string

	// Timeout bounds each request.
	// Default: 15 seconds
	Timeout time.Duration

	// MaxConcurrent caps requests in flight. A request waits up to Timeout
	// for a slot.
	// Default: 6
	MaxConcurrent int

	// RateLimit is the sustained requests per second. Zero disables it.
	RateLimit float64

	// RateBurst is the rate limiter burst.
	// Default: 10
	RateBurst int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: base url: %w", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: base url %q needs http or https", ErrInvalidConfig, c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: base url %q has no host", ErrInvalidConfig, c.BaseURL)
	}
	if c.Timeout < 0 || c.MaxConcurrent < 0 || c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidConfig)
	}
	return nil
}

// UnauthorizedFunc is called once for every 401 response.
type UnauthorizedFunc func(ctx context.Context)

// Client talks to the storefront API.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Reads are cached; returned payloads are shared and must not be modified.
type Client struct {
	base     *url.URL
	http     *http.Client
	exec     *resilience.Executor
	readExec *resilience.Executor
	cache    *cache.QueryCache
	rules    cache.RuleTable
	mw       *observe.Middleware
	logger   observe.Logger

	baseHTTP       *http.Client // from WithHTTPClient; New copies it into http
	token          auth.TokenSource
	onUnauthorized UnauthorizedFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is still wrapped to
// add the bearer token; its cookie jar is kept when set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.baseHTTP = hc
		}
	}
}

// WithTokenSource adds "Authorization: Bearer" from ts to every request.
func WithTokenSource(ts auth.TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

// WithUnauthorized sets the hook called for every 401 response.
func WithUnauthorized(fn UnauthorizedFunc) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithCache sets the query cache. Default: a new cache with DefaultPolicy.
func WithCache(qc *cache.QueryCache) Option {
	return func(c *Client) {
		if qc != nil {
			c.cache = qc
		}
	}
}

// WithRules replaces the mutation invalidation table. Default: Rules().
func WithRules(r cache.RuleTable) Option {
	return func(c *Client) {
		if r != nil {
			c.rules = r
		}
	}
}

// WithMiddleware sets the telemetry middleware.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(c *Client) {
		if mw != nil {
			c.mw = mw
		}
	}
}

// WithLogger sets the logger used when no middleware is given.
func WithLogger(l observe.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client for cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, _ := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if cfg.Timeout == 0 {
		cfg.Timeout = resilience.DefaultTimeout
	}

	c := &Client{
		base:   base,
		rules:  Rules(),
		logger: observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mw == nil {
		c.mw = observe.NewMiddleware(nil, nil, c.logger)
	}
	if c.cache == nil {
		c.cache = cache.New(cache.WithLogger(c.logger), cache.WithMetrics(c.mw.Metrics()))
	}

	hc := &http.Client{}
	if c.baseHTTP != nil {
		*hc = *c.baseHTTP
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("api: cookie jar: %w", err)
		}
		hc.Jar = jar
	}
	if c.token != nil {
		hc.Transport = &auth.Transport{Base: hc.Transport, Token: c.token}
	}
	c.http = hc

	execOpts := []resilience.ExecutorOption{
		resilience.WithTimeout(cfg.Timeout),
		resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.Timeout,
		})),
	}
	if cfg.RateLimit > 0 {
		execOpts = append(execOpts, resilience.WithRateLimiter(resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Rate:    cfg.RateLimit,
			Burst:   cfg.RateBurst,
			MaxWait: cfg.Timeout,
		})))
	}
	c.exec = resilience.NewExecutor(execOpts...)
	c.readExec = c.exec
	return c, nil
}

// WithRetry returns a Client that retries reads with r. Writes are never
// retried. The copy shares the cache, cookies and limits of c.
func (c *Client) WithRetry(r *resilience.Retry) *Client {
	cp := *c
	cp.readExec = c.exec.With(resilience.WithRetry(r))
	return &cp
}

// Cache returns the query cache behind reads.
func (c *Client) Cache() *cache.QueryCache { return c.cache }

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.base.String() }

// request describes one HTTP exchange.
type request struct {
	op    observe.OperationMeta
	path  string
	query url.Values
	body  func() (io.Reader, string, error) // called once per attempt
	out   any
}

func jsonBody(v any) func() (io.Reader, string, error) {
	return func() (io.Reader, string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// read runs a cacheable request.
func (c *Client) read(ctx context.Context, r request) error {
	return c.run(ctx, c.readExec, r)
}

// write runs a mutation and invalidates the tags kind maps to.
func (c *Client) write(ctx context.Context, kind string, r request) error {
	_, err := c.cache.Mutate(ctx, c.rules.TagsFor(kind), func(ctx context.Context) (any, error) {
		return nil, c.run(ctx, c.exec, r)
	})
	return err
}

func (c *Client) run(ctx context.Context, exec *resilience.Executor, r request) error {
	err := c.mw.Wrap(func(ctx context.Context, op observe.OperationMeta) error {
		return exec.Execute(ctx, func(ctx context.Context) error {
			return c.roundTrip(ctx, r)
		})
	})(ctx, r.op)
	if err == nil {
		return nil
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		// Rejected by a client-side guard before any request went out.
		return transportError(err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, r request) error {
	u := c.base.JoinPath(r.path)
	if len(r.query) > 0 {
		u.RawQuery = r.query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	if r.body != nil {
		var err error
		if body, contentType, err = r.body(); err != nil {
			return &Error{Kind: KindValidation, Message: "cannot encode request", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.op.Method, u.String(), body)
	if err != nil {
		return transportError(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := errorFromResponse(resp.StatusCode, data)
		if apiErr.Kind == KindUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return apiErr
	}

	if r.out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, r.out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return nil
}
