package vk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/veriloft/vmusic/internal/config"
	providerhttp "github.com/veriloft/vmusic/internal/providers/http"
)

// Options are the fixed search parameters sent with every query
type Options struct {
	Autocomplete bool
	Sort         int
	Count        int
}

// Client talks to the audio.search endpoint
type Client struct {
	searchURL  string
	httpClient *providerhttp.Client
	logger     *slog.Logger

	mu   sync.RWMutex
	opts Options
}

// NewClient creates a search client from the api section of the config
func NewClient(cfg config.APIConfig, httpClient *providerhttp.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = providerhttp.NewClient(providerhttp.ClientConfig{
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			UserAgent:  cfg.UserAgent,
			Logger:     logger,
		})
	}

	return &Client{
		searchURL:  cfg.SearchURL,
		httpClient: httpClient,
		logger:     logger.With("component", "vk"),
		opts: Options{
			Autocomplete: cfg.Autocomplete,
			Sort:         cfg.Sort,
			Count:        cfg.Count,
		},
	}
}

// SetOptions replaces the search parameters, used on config reload
func (c *Client) SetOptions(opts Options) {
	c.mu.Lock()
	c.opts = opts
	c.mu.Unlock()
}

// Options returns the current search parameters
func (c *Client) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// Search runs a query and returns the audio items that follow the metadata
// element. Errors are one of *APIError, ErrNotFound, ErrTransport,
// ErrMalformed (wrapped), or *ItemError.
func (c *Client) Search(ctx context.Context, query, accessToken string) ([]Audio, error) {
	opts := c.Options()

	params := map[string]string{
		"q":            query,
		"access_token": accessToken,
		"autocomplete": boolParam(opts.Autocomplete),
		"sort":         strconv.Itoa(opts.Sort),
		"count":        strconv.Itoa(opts.Count),
	}

	resp, err := c.httpClient.Get(ctx, c.searchURL, providerhttp.WithQueryParams(params))
	if err != nil {
		c.logger.Debug("search request failed", "query", query, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}

	return ParseResponse(resp.Body())
}

// ParseResponse decodes a raw search response body
func ParseResponse(body []byte) ([]Audio, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if env.Error != nil {
		return nil, env.Error
	}

	if env.Response == nil {
		return nil, fmt.Errorf("%w: neither response nor error present", ErrMalformed)
	}

	return ParseAudios(env.Response)
}

// ParseAudios maps raw items to Audio, skipping index 0 which carries the
// total count. Fewer than two items means there are no results.
func ParseAudios(raw []json.RawMessage) ([]Audio, error) {
	if len(raw) < 2 {
		return nil, ErrNotFound
	}

	audios := make([]Audio, 0, len(raw)-1)
	for i := 1; i < len(raw); i++ {
		if item := bytes.TrimSpace(raw[i]); len(item) == 0 || item[0] != '{' {
			return nil, &ItemError{Index: i, Err: ErrNotObject}
		}

		var a Audio
		if err := json.Unmarshal(raw[i], &a); err != nil {
			return nil, &ItemError{Index: i, Err: err}
		}
		audios = append(audios, a)
	}

	return audios, nil
}

// IsAuthFailed reports whether err is an API error for a rejected token
func IsAuthFailed(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.AuthFailed()
}

func boolParam(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
