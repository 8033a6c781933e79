package player

import (
	"context"
	"errors"
	"time"
)

// ErrReleased is returned by every operation on a released player
var ErrReleased = errors.New("player already released")

// Player is a single-use audio player. Open blocks until the stream is
// loaded or fails; Release stops playback and frees everything, after which
// the player cannot be opened again.
type Player interface {
	Open(ctx context.Context, url string, options PlayOptions) error
	Release() error

	GetProgress(ctx context.Context) (*PlaybackProgress, error)
	TogglePause(ctx context.Context) error
	Seek(ctx context.Context, offset time.Duration) error
	SetVolume(ctx context.Context, volume int) error

	OnPlaybackEnd(callback func())
	OnError(callback func(err error))

	State() PlaybackState
}

// PlayOptions contains options for starting playback
type PlayOptions struct {
	StartTime time.Duration `json:"start_time,omitempty"`
	Volume    int           `json:"volume,omitempty"` // 0-100
	UserAgent string        `json:"user_agent,omitempty"`
	Title     string        `json:"title,omitempty"`
	ExtraArgs []string      `json:"extra_args,omitempty"`
}

// PlaybackProgress represents the current playback state
type PlaybackProgress struct {
	CurrentTime time.Duration `json:"current_time"`
	Duration    time.Duration `json:"duration"`
	Percentage  float64       `json:"percentage"` // 0.0 - 100.0
	Paused      bool          `json:"paused"`
	Volume      int           `json:"volume"`
	EOF         bool          `json:"eof"`
}

// PlaybackState represents the state of the player
type PlaybackState string

const (
	StateIdle     PlaybackState = "idle"
	StateLoading  PlaybackState = "loading"
	StatePlaying  PlaybackState = "playing"
	StatePaused   PlaybackState = "paused"
	StateError    PlaybackState = "error"
	StateReleased PlaybackState = "released"
)

// String returns the string representation of PlaybackState
func (s PlaybackState) String() string {
	return string(s)
}
