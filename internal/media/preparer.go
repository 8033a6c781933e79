// Package media prepares playable handles off the caller's goroutine and
// keeps at most one of them alive per playback session.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// ErrEmptyLocator is delivered as Failed when Prepare gets an empty locator
var ErrEmptyLocator = errors.New("empty media locator")

// Handle is an acquired, exclusively owned playable resource. Release stops
// playback, resets its state and frees the underlying resources; it must be
// called exactly once.
type Handle interface {
	Locator() string
	Release() error
}

// Acquirer performs the blocking acquisition of a handle
type Acquirer interface {
	Acquire(ctx context.Context, locator string) (Handle, error)
}

// AcquireFunc adapts a function to Acquirer
type AcquireFunc func(ctx context.Context, locator string) (Handle, error)

// Acquire implements Acquirer
func (f AcquireFunc) Acquire(ctx context.Context, locator string) (Handle, error) {
	return f(ctx, locator)
}

// State is the lifecycle of one preparation
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is delivered once per Prepare: Ready when Handle is set, Failed when
// Err is set.
type Result struct {
	Locator string
	Handle  Handle
	Err     error
}

// Ready reports whether the preparation succeeded
func (r Result) Ready() bool {
	return r.Err == nil && r.Handle != nil
}

// State returns StateReady or StateFailed
func (r Result) State() State {
	if r.Ready() {
		return StateReady
	}
	return StateFailed
}

// Preparer runs acquisitions on their own goroutines
type Preparer struct {
	acquirer Acquirer
	logger   *slog.Logger
}

// NewPreparer creates a Preparer backed by acquirer
func NewPreparer(acquirer Acquirer, logger *slog.Logger) *Preparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preparer{acquirer: acquirer, logger: logger.With("component", "media")}
}

// Prepare starts acquiring a handle for locator. Exactly one Result is sent on
// the returned channel, which is then closed. Errors and panics inside the
// acquirer are delivered as Failed. If ctx ends before acquisition returns,
// the result is still delivered; a handle that arrives after the caller gave
// up is the caller's to release.
func (p *Preparer) Prepare(ctx context.Context, locator string) <-chan Result {
	out := make(chan Result, 1)

	go func() {
		defer close(out)
		out <- p.acquire(ctx, locator)
	}()

	return out
}

func (p *Preparer) acquire(ctx context.Context, locator string) (res Result) {
	res.Locator = locator

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic while preparing media", "locator", locator, "panic", r, "stack", string(debug.Stack()))
			if res.Handle != nil {
				_ = res.Handle.Release()
			}
			res.Handle = nil
			res.Err = fmt.Errorf("media preparation panicked: %v", r)
		}
	}()

	if locator == "" {
		res.Err = ErrEmptyLocator
		return res
	}

	p.logger.Debug("preparing media", "locator", locator)
	h, err := p.acquirer.Acquire(ctx, locator)
	switch {
	case err != nil:
		if h != nil {
			_ = h.Release()
		}
		res.Err = err
	case h == nil:
		res.Err = errors.New("acquirer returned no handle")
	default:
		res.Handle = h
	}

	if res.Err != nil {
		p.logger.Warn("media preparation failed", "locator", locator, "error", res.Err)
	}
	return res
}

// Session holds the live handle of one playback surface
type Session struct {
	mu     sync.Mutex
	handle Handle
}

// Start installs h as the live handle, releasing the previous one first
func (s *Session) Start(h Handle) error {
	s.mu.Lock()
	prev := s.handle
	s.handle = h
	s.mu.Unlock()

	if prev != nil && prev != h {
		return prev.Release()
	}
	return nil
}

// Current returns the live handle, or nil
func (s *Session) Current() Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Dismiss releases the live handle and forgets it. Calling it with no live
// handle is a no-op, so a released handle is never released again.
func (s *Session) Dismiss() error {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.Release()
}
