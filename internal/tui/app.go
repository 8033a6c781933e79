// Package tui is the interactive terminal front end.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/veriloft/vmusic/internal/clipboard"
	"github.com/veriloft/vmusic/internal/downloader"
	"github.com/veriloft/vmusic/internal/media"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/search"
	"github.com/veriloft/vmusic/internal/tui/components/downloads"
)

// SearchController runs sequence-stamped searches
type SearchController interface {
	Begin(query string) uint64
	Fetch(ctx context.Context, seq uint64, query string) search.Outcome
	Apply(out search.Outcome) bool
	LastQuery() (string, bool)
}

// MediaPreparer acquires playable handles off the UI goroutine
type MediaPreparer interface {
	Prepare(ctx context.Context, locator string) <-chan media.Result
}

// DownloadQueue is the download manager as seen by the UI
type DownloadQueue interface {
	downloads.Queue
	Enqueue(ctx context.Context, audio vk.Audio) (downloader.DownloadTask, error)
	OnDownloadComplete(callback func(task downloader.DownloadTask))
	OnDownloadError(callback func(task downloader.DownloadTask, err error))
}

// History supplies recent queries and records plays
type History interface {
	RecentQueries(ctx context.Context, limit int) ([]string, error)
	RecordPlay(ctx context.Context, audio vk.Audio) error
}

// Deps are the services the UI drives. Downloads, History, Clipboard and
// OpenURL are optional; the matching actions report that they are
// unavailable.
type Deps struct {
	Search    SearchController
	Preparer  MediaPreparer
	Session   *media.Session
	Downloads DownloadQueue
	History   History
	Clipboard clipboard.Service
	OpenURL   func(url string) error
	Logger    *slog.Logger

	RecentLimit  int  // recent queries shown under the search input
	ShowHelpHint bool // show "? help" in the footer
}

// Start runs the program until the user quits. The live playback handle, if
// any, is released before Start returns.
func Start(ctx context.Context, deps Deps, initialQuery string) error {
	app := NewApp(ctx, deps)
	defer app.shutdown()

	opts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	p := tea.NewProgram(app, opts...)

	if initialQuery != "" {
		go p.Send(startSearchMsg{query: initialQuery})
	}

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}

// startSearchMsg runs a query passed on the command line
type startSearchMsg struct {
	query string
}
