// Package search drives a single audio search: it issues the request,
// classifies the answer and tracks what the result view should show.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/veriloft/vmusic/internal/auth"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"golang.org/x/oauth2"
)

// State is what the result view currently shows
type State int

const (
	StateIdle State = iota
	StateLoading
	StateShowingResults
	StateShowingError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateShowingResults:
		return "showing_results"
	case StateShowingError:
		return "showing_error"
	default:
		return "unknown"
	}
}

// Searcher runs one query against the API
type Searcher interface {
	Search(ctx context.Context, query, accessToken string) ([]vk.Audio, error)
}

// Refresher obtains a new token pair
type Refresher interface {
	Refresh(ctx context.Context) (auth.TokenPair, error)
}

// Recorder is notified of every finished search
type Recorder interface {
	Record(ctx context.Context, query string, resultCount int, outcome string) error
}

// Outcome is the result of one search. Exactly one of Results and Err is set.
type Outcome struct {
	Seq     uint64
	Query   string
	Results []vk.Audio
	Err     *Error
}

// OK reports whether the search produced results
func (o Outcome) OK() bool {
	return o.Err == nil
}

func (o Outcome) label() string {
	if o.Err != nil {
		return o.Err.Kind.String()
	}
	return "results"
}

// Snapshot is a copy of the controller's display state
type Snapshot struct {
	State   State
	Seq     uint64
	Query   string
	Results []vk.Audio
	Err     *Error
}

// Config wires a Controller
type Config struct {
	Searcher  Searcher
	Tokens    oauth2.TokenSource
	Refresher Refresher
	Recorder  Recorder // optional
	Logger    *slog.Logger

	// RefreshTimeout bounds the background token refresh. Defaults to 30s.
	RefreshTimeout time.Duration
}

// Controller owns the current result list and the display state machine.
// Searches are stamped with increasing sequence numbers and only the latest
// one may change what is displayed.
type Controller struct {
	searcher       Searcher
	tokens         oauth2.TokenSource
	refresher      Refresher
	recorder       Recorder
	logger         *slog.Logger
	refreshTimeout time.Duration

	mu        sync.Mutex
	seq       uint64
	state     State
	lastQuery string
	results   []vk.Audio
	err       *Error

	refreshes sync.WaitGroup
}

// NewController creates a Controller in the Idle state
func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RefreshTimeout == 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	return &Controller{
		searcher:       cfg.Searcher,
		tokens:         cfg.Tokens,
		refresher:      cfg.Refresher,
		recorder:       cfg.Recorder,
		logger:         cfg.Logger.With("component", "search"),
		refreshTimeout: cfg.RefreshTimeout,
		state:          StateIdle,
	}
}

// Begin clears the previous results, enters Loading and returns the sequence
// number the matching Outcome must carry.
func (c *Controller) Begin(query string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.lastQuery = query
	c.results = nil
	c.err = nil
	c.state = StateLoading

	return c.seq
}

// Fetch performs the request for a search started with Begin. It does not
// change the display state; pass the Outcome to Apply for that. Panics while
// processing the response are reported as KindUnexpected.
func (c *Controller) Fetch(ctx context.Context, seq uint64, query string) (out Outcome) {
	out = Outcome{Seq: seq, Query: query}

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while processing search results",
				"query", query, "panic", r, "stack", string(debug.Stack()))
			out.Results = nil
			out.Err = &Error{Kind: KindUnexpected, Err: fmt.Errorf("panic: %v", r)}
		}
		c.record(ctx, out)
	}()

	token, err := c.accessToken()
	if err != nil {
		out.Err = &Error{Kind: KindUnexpected, Err: err}
		return out
	}

	results, err := c.searcher.Search(ctx, query, token)
	if err != nil {
		out.Err = Classify(err)
		c.logger.Debug("search failed", "query", query, "seq", seq, "kind", out.Err.Kind, "error", err)
		if out.Err.Kind == KindAuthExpired {
			c.refreshInBackground()
		}
		return out
	}

	if len(results) == 0 {
		out.Err = &Error{Kind: KindNotFound, Err: vk.ErrNotFound}
		return out
	}

	out.Results = results
	c.logger.Debug("search finished", "query", query, "seq", seq, "results", len(results))
	return out
}

// Apply installs an Outcome if it belongs to the latest search. Outcomes of
// superseded searches are dropped and Apply returns false.
func (c *Controller) Apply(out Outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if out.Seq != c.seq {
		c.logger.Debug("discarding stale search outcome", "seq", out.Seq, "latest", c.seq, "query", out.Query)
		return false
	}

	if out.Err != nil {
		c.results = nil
		c.err = out.Err
		c.state = StateShowingError
		return true
	}

	c.results = out.Results
	c.err = nil
	c.state = StateShowingResults
	return true
}

// Search runs a query to completion and applies its Outcome
func (c *Controller) Search(ctx context.Context, query string) Outcome {
	seq := c.Begin(query)
	out := c.Fetch(ctx, seq, query)
	c.Apply(out)
	return out
}

// Start begins a query and performs it on a new goroutine. The Outcome is
// sent once on the returned channel; the receiver is expected to Apply it.
func (c *Controller) Start(ctx context.Context, query string) <-chan Outcome {
	seq := c.Begin(query)
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		ch <- c.Fetch(ctx, seq, query)
	}()
	return ch
}

// Retry replays the last query. It returns false when nothing was searched yet.
func (c *Controller) Retry(ctx context.Context) (Outcome, bool) {
	query, ok := c.LastQuery()
	if !ok {
		return Outcome{}, false
	}
	return c.Search(ctx, query), true
}

// LastQuery returns the most recently issued query
func (c *Controller) LastQuery() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastQuery, c.seq > 0
}

// State returns the current display state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Results returns a copy of the displayed results
func (c *Controller) Results() []vk.Audio {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]vk.Audio(nil), c.results...)
}

// Snapshot returns the full display state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:   c.state,
		Seq:     c.seq,
		Query:   c.lastQuery,
		Results: append([]vk.Audio(nil), c.results...),
		Err:     c.err,
	}
}

// WaitRefresh blocks until background token refreshes have finished
func (c *Controller) WaitRefresh() {
	c.refreshes.Wait()
}

func (c *Controller) accessToken() (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	tok, err := c.tokens.Token()
	if errors.Is(err, auth.ErrNoToken) {
		// The API answers with an auth error, which triggers a refresh.
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load access token: %w", err)
	}
	return tok.AccessToken, nil
}

func (c *Controller) refreshInBackground() {
	if c.refresher == nil {
		c.logger.Warn("access token expired and no refresher is configured")
		return
	}

	c.refreshes.Add(1)
	go func() {
		defer c.refreshes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.refreshTimeout)
		defer cancel()

		if _, err := c.refresher.Refresh(ctx); err != nil {
			c.logger.Warn("background token refresh failed", "error", err)
		}
	}()
}

func (c *Controller) record(ctx context.Context, out Outcome) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(context.WithoutCancel(ctx), out.Query, len(out.Results), out.label()); err != nil {
		c.logger.Warn("failed to record search", "query", out.Query, "error", err)
	}
}
