package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/veriloft/vmusic/internal/tui/common"
)

// handleGlobalKeys handles keys that work regardless of the current view.
// It reports false when the key belongs to the view.
func (a *App) handleGlobalKeys(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return true, tea.Quit
	}

	if a.helpComponent.IsVisible() {
		switch key {
		case "?", "esc", "q":
			a.helpComponent.Hide()
		default:
			a.helpComponent, _ = a.helpComponent.Update(msg)
		}
		return true, nil
	}

	switch key {
	case "ctrl+d":
		if a.state == playerView || a.state == loadingView {
			return false, nil
		}
		return true, func() tea.Msg { return common.GoToDownloadsMsg{} }

	case "ctrl+f":
		if a.state == playerView {
			return false, nil
		}
		return true, func() tea.Msg { return common.GoToSearchMsg{} }

	case "?":
		if a.inputActive() {
			return false, nil
		}
		a.helpComponent.SetContext(a.helpContext())
		a.helpComponent.Show()
		return true, nil

	case "q":
		// q quits from list views; elsewhere it is text or closes a popup
		if a.state == resultsView && !a.inputActive() {
			return true, tea.Quit
		}
	}

	return false, nil
}
