package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/veriloft/vmusic/internal/clipboard"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/tui/common"
)

// copyLink copies the track's stream URL to the clipboard
func (a *App) copyLink(audio vk.Audio) tea.Cmd {
	if audio.Source() == "" {
		return a.setStatus("Track has no link", true)
	}
	if a.deps.Clipboard == nil {
		return a.setStatus("Clipboard is not available", true)
	}
	return a.deps.Clipboard.WriteCmd(audio.Source())
}

func (a *App) handleCopied(msg clipboard.CopiedMsg) tea.Cmd {
	if msg.Err != nil {
		a.logger.Warn("failed to copy link", "error", msg.Err)
		return a.setStatus("Could not copy link: "+msg.Err.Error(), true)
	}
	return a.setStatus("📋 Link copied to clipboard", false)
}

// openLink opens the track's stream URL in the default browser
func (a *App) openLink(audio vk.Audio) tea.Cmd {
	if audio.Source() == "" {
		return a.setStatus("Track has no link", true)
	}
	if a.deps.OpenURL == nil {
		return a.setStatus("Opening links is not available", true)
	}

	open := a.deps.OpenURL
	url := audio.Source()
	return func() tea.Msg {
		if err := open(url); err != nil {
			return common.StatusMsg{Text: "Could not open link: " + err.Error(), Error: true}
		}
		return common.StatusMsg{Text: "Opened in browser"}
	}
}
