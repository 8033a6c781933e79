package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	providerhttp "github.com/veriloft/vmusic/internal/providers/http"
)

// ErrIncompleteTokens is returned when the endpoint answers without both tokens
var ErrIncompleteTokens = errors.New("token endpoint returned an incomplete token pair")

// Refresher fetches a fresh TokenPair from the token endpoint and stores it.
// Calls made while a refresh is running wait for it and share its result.
type Refresher struct {
	tokenURL   string
	httpClient *providerhttp.Client
	store      Store
	logger     *slog.Logger

	mu       sync.Mutex
	inflight *refreshCall
}

type refreshCall struct {
	done chan struct{}
	pair TokenPair
	err  error
}

// NewRefresher creates a Refresher
func NewRefresher(tokenURL string, httpClient *providerhttp.Client, store Store, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		httpClient = providerhttp.NewClient(providerhttp.DefaultClientConfig())
	}
	return &Refresher{
		tokenURL:   tokenURL,
		httpClient: httpClient,
		store:      store,
		logger:     logger.With("component", "auth"),
	}
}

// Refresh fetches and persists a new pair. The stored pair is left as it was
// when the fetch fails.
func (r *Refresher) Refresh(ctx context.Context) (TokenPair, error) {
	r.mu.Lock()
	if call := r.inflight; call != nil {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.pair, call.err
		case <-ctx.Done():
			return TokenPair{}, ctx.Err()
		}
	}
	call := &refreshCall{done: make(chan struct{})}
	r.inflight = call
	r.mu.Unlock()

	call.pair, call.err = r.refresh(ctx)

	r.mu.Lock()
	r.inflight = nil
	r.mu.Unlock()
	close(call.done)

	return call.pair, call.err
}

func (r *Refresher) refresh(ctx context.Context) (TokenPair, error) {
	r.logger.Info("refreshing access token", "url", r.tokenURL)

	var pair TokenPair
	if err := r.httpClient.GetJSON(ctx, r.tokenURL, &pair); err != nil {
		r.logger.Warn("token refresh failed", "error", err)
		return TokenPair{}, fmt.Errorf("failed to fetch tokens: %w", err)
	}
	if pair.VKToken == "" || pair.LastFMToken == "" {
		r.logger.Warn("token refresh failed", "error", ErrIncompleteTokens,
			"vk_token", pair.VKToken != "", "lastfm_token", pair.LastFMToken != "")
		return TokenPair{}, ErrIncompleteTokens
	}

	if err := r.store.Save(ctx, pair); err != nil {
		return TokenPair{}, err
	}

	r.logger.Info("access token refreshed")
	return pair, nil
}
