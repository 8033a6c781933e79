package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

// StatusError is returned when the server answers with a status >= 400
type StatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("HTTP error %d for %s: %s", e.StatusCode, e.URL, body)
}

// Client wraps resty.Client with retry logic and timeout handling. The resty
// client is replaced, never mutated, when the timeout changes, so requests in
// flight keep the one they started with.
type Client struct {
	resty      atomic.Pointer[resty.Client]
	mu         sync.Mutex
	config     ClientConfig
	maxRetries int
	logger     *slog.Logger
}

// ClientConfig holds configuration for the HTTP client
type ClientConfig struct {
	Timeout    time.Duration
	MaxRetries int
	UserAgent  string
	Debug      bool
	Logger     *slog.Logger
}

// DefaultClientConfig returns sensible defaults for HTTP client
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		UserAgent:  "vmusic/1.0",
	}
}

// NewClient creates a new HTTP client with the given configuration
func NewClient(config ClientConfig) *Client {
	defaults := DefaultClientConfig()
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	client := &Client{
		config:     config,
		maxRetries: config.MaxRetries,
		logger:     config.Logger,
	}
	client.resty.Store(client.newResty(config))

	return client
}

func (c *Client) newResty(config ClientConfig) *resty.Client {
	restyClient := resty.New().
		SetTimeout(config.Timeout).
		SetRetryCount(config.MaxRetries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json, */*")

	restyClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			// A cancelled or expired context will fail again immediately.
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
		return r.StatusCode() >= 500 || r.StatusCode() == 429
	})

	if config.Debug {
		restyClient.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			c.logger.Debug("http request", "method", r.Method, "url", r.URL, "query", r.QueryParam.Encode())
			return nil
		})
		restyClient.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			c.logResponse(r)
			return nil
		})
	}

	return restyClient
}

// RequestOption customizes a single request
type RequestOption func(*resty.Request)

// WithQuery sets a query parameter
func WithQuery(key, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetQueryParam(key, value)
	}
}

// WithQueryParams sets several query parameters
func WithQueryParams(params map[string]string) RequestOption {
	return func(r *resty.Request) {
		r.SetQueryParams(params)
	}
}

// WithHeader sets a request header
func WithHeader(key, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetHeader(key, value)
	}
}

// Get performs a GET request. Responses with status >= 400 are returned
// together with a *StatusError.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*resty.Response, error) {
	req := c.resty.Load().R().SetContext(ctx)
	for _, opt := range opts {
		opt(req)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET request failed for %s: %w", url, err)
	}

	if resp.StatusCode() >= 400 {
		return resp, &StatusError{StatusCode: resp.StatusCode(), URL: url, Body: resp.String()}
	}

	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON body into result
func (c *Client) GetJSON(ctx context.Context, url string, result any, opts ...RequestOption) error {
	resp, err := c.Get(ctx, url, opts...)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", url, err)
	}

	return nil
}

// SetTimeout changes the timeout for subsequent requests. It is safe to call
// while other requests are running.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if timeout == c.config.Timeout {
		return
	}
	c.config.Timeout = timeout
	c.resty.Store(c.newResty(c.config))
}

// GetTimeout returns the configured timeout
func (c *Client) GetTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config.Timeout
}

// GetMaxRetries returns the configured max retries
func (c *Client) GetMaxRetries() int {
	return c.maxRetries
}

// GetRestyClient returns the underlying resty client
func (c *Client) GetRestyClient() *resty.Client {
	return c.resty.Load()
}

func (c *Client) logResponse(r *resty.Response) {
	body := r.String()
	if len(body) > 1000 {
		body = body[:1000] + "... (truncated)"
	}
	c.logger.Debug("http response",
		"status", r.StatusCode(),
		"url", r.Request.URL,
		"time", r.Time(),
		"body", body,
	)
}
