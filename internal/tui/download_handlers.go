package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/veriloft/vmusic/internal/downloader"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/tui/common"
)

// enqueueDownload hands the track to the download manager
func (a *App) enqueueDownload(audio vk.Audio) tea.Cmd {
	if a.deps.Downloads == nil {
		return a.setStatus("Downloads are not available", true)
	}

	ctx := a.ctx
	queue := a.deps.Downloads
	return func() tea.Msg {
		task, err := queue.Enqueue(ctx, audio)
		return common.DownloadQueuedMsg{Task: task, Err: err}
	}
}

func (a *App) handleDownloadQueued(msg common.DownloadQueuedMsg) tea.Cmd {
	name := msg.Task.DisplayName()

	var cmd tea.Cmd
	switch {
	case msg.Err == nil:
		cmd = a.setStatus("Queued "+name, false)
	case errors.Is(msg.Err, downloader.ErrResumingExisting):
		cmd = a.setStatus("Resuming "+name, false)
	case errors.Is(msg.Err, downloader.ErrAlreadyQueued):
		cmd = a.setStatus(name+" is already in the queue", false)
	case errors.Is(msg.Err, downloader.ErrAlreadyCompleted):
		cmd = a.setStatus(name+" is already downloaded", false)
	default:
		a.logger.Warn("failed to queue download", "error", msg.Err)
		cmd = a.setStatus("Could not download: "+msg.Err.Error(), true)
	}

	if a.state == downloadsView {
		return tea.Batch(cmd, a.downloadsComponent.Refresh())
	}
	return cmd
}

// handleDownloadEvent reports a finished download and keeps listening
func (a *App) handleDownloadEvent(msg common.DownloadEventMsg) tea.Cmd {
	cmds := []tea.Cmd{a.listenForMessages()}

	if msg.Err != nil {
		cmds = append(cmds, a.setStatus("Download failed: "+msg.Task.DisplayName(), true))
	} else {
		cmds = append(cmds, a.setStatus("Downloaded "+msg.Task.DisplayName(), false))
	}

	if a.state == downloadsView {
		var cmd tea.Cmd
		a.downloadsComponent, cmd = a.downloadsComponent.Update(msg)
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}
