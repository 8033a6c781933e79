package mpv

import (
	"context"

	"github.com/veriloft/vmusic/internal/media"
	"github.com/veriloft/vmusic/internal/player"
)

// Acquirer opens a fresh mpv player per locator. It implements media.Acquirer.
type Acquirer struct {
	opts     Options
	playOpts player.PlayOptions
}

var _ media.Acquirer = (*Acquirer)(nil)

// NewAcquirer creates an Acquirer launching mpv with opts
func NewAcquirer(opts Options, playOpts player.PlayOptions) *Acquirer {
	return &Acquirer{opts: opts, playOpts: playOpts}
}

// Acquire returns an *MPVPlayer that is already playing locator
func (a *Acquirer) Acquire(ctx context.Context, locator string) (media.Handle, error) {
	p := NewMPVPlayer(a.opts)
	if err := p.Open(ctx, locator, a.playOpts); err != nil {
		_ = p.Release()
		return nil, err
	}
	return p, nil
}
