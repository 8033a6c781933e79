package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/tui/common"
	"github.com/veriloft/vmusic/internal/tui/components/nowplaying"
)

const recordPlayTimeout = 5 * time.Second

// handleAction dispatches an entry of the action sheet
func (a *App) handleAction(msg common.ActionChosenMsg) tea.Cmd {
	if a.state == actionsView {
		a.state = resultsView
	}

	switch msg.Action {
	case common.ActionPlay:
		return a.play(msg.Audio)
	case common.ActionDownload:
		return a.enqueueDownload(msg.Audio)
	case common.ActionCopyLink:
		return a.copyLink(msg.Audio)
	case common.ActionOpenLink:
		return a.openLink(msg.Audio)
	}
	return nil
}

// play releases the live handle and prepares a new one for audio. The
// preparation result comes back as a MediaPreparedMsg stamped with playSeq.
func (a *App) play(audio vk.Audio) tea.Cmd {
	if a.deps.Preparer == nil || a.deps.Session == nil {
		return a.setStatus("Playback is not available", true)
	}

	if err := a.deps.Session.Dismiss(); err != nil {
		a.logger.Warn("failed to release previous player", "error", err)
	}

	a.playSeq++
	seq := a.playSeq
	a.nowPlaying.SetPreparing(audio)
	a.state = playerView

	results := a.deps.Preparer.Prepare(a.ctx, audio.Source())
	return func() tea.Msg {
		return common.MediaPreparedMsg{Seq: seq, Audio: audio, Result: <-results}
	}
}

// handleMediaPrepared installs a ready handle, or reports the failure. A
// handle for a request the user already walked away from is released at once.
func (a *App) handleMediaPrepared(msg common.MediaPreparedMsg) tea.Cmd {
	res := msg.Result

	if msg.Seq != a.playSeq || a.state != playerView {
		if res.Ready() {
			if err := res.Handle.Release(); err != nil {
				a.logger.Warn("failed to release abandoned player", "error", err)
			}
		}
		return nil
	}

	if !res.Ready() {
		a.logger.Warn("playback failed", "track", msg.Audio.DisplayName(), "error", res.Err)
		var cmd tea.Cmd
		a.nowPlaying, cmd = a.nowPlaying.Update(common.PlaybackEndedMsg{Err: res.Err})
		return tea.Batch(cmd, a.setStatus("Could not play "+msg.Audio.DisplayName(), true))
	}

	if err := a.deps.Session.Start(res.Handle); err != nil {
		a.logger.Warn("failed to release previous player", "error", err)
	}

	var cmds []tea.Cmd
	if controls, ok := res.Handle.(nowplaying.Controls); ok {
		cmds = append(cmds, a.nowPlaying.SetPlaying(controls))
	}
	cmds = append(cmds, a.recordPlay(msg.Audio))
	return tea.Batch(cmds...)
}

// dismissPlayer releases the live handle and returns to the results
func (a *App) dismissPlayer() tea.Cmd {
	a.playSeq++ // a preparation still in flight is now abandoned
	if a.deps.Session != nil {
		if err := a.deps.Session.Dismiss(); err != nil {
			a.logger.Warn("failed to release player", "error", err)
		}
	}

	a.nowPlaying = nowplaying.New()
	a.nowPlaying, _ = a.nowPlaying.Update(tea.WindowSizeMsg{Width: a.width, Height: a.height})

	if len(a.results.Results()) > 0 {
		a.state = resultsView
		return nil
	}
	a.state = searchView
	return a.search.Focus()
}

func (a *App) recordPlay(audio vk.Audio) tea.Cmd {
	if a.deps.History == nil {
		return nil
	}

	history := a.deps.History
	logger := a.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), recordPlayTimeout)
		defer cancel()
		if err := history.RecordPlay(ctx, audio); err != nil {
			logger.Warn("failed to record play", "track", audio.DisplayName(), "error", err)
		}
		return nil
	}
}
