package help

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func sized(width, height int) Model {
	m, _ := New().Update(tea.WindowSizeMsg{Width: width, Height: height})
	return m
}

func TestHelpHiddenByDefault(t *testing.T) {
	m := sized(80, 30)
	assert.False(t, m.IsVisible())
	assert.Empty(t, m.View())
}

func TestHelpView(t *testing.T) {
	m := sized(80, 40)
	m.SetContext(PlayerContext)
	m.Show()

	view := m.View()
	assert.Contains(t, view, "KEYBOARD SHORTCUTS")
	assert.Contains(t, view, "Navigation & General")
	assert.Contains(t, view, "Player Actions")
	assert.Contains(t, view, "Seek 10 seconds")
	assert.NotContains(t, view, "Retry failed download")
}

func TestShortcutsFor(t *testing.T) {
	for _, sc := range shortcutsFor(GlobalContext) {
		assert.Contains(t, sc.Context, GlobalContext)
	}

	downloads := shortcutsFor(DownloadsContext)
	assert.NotEmpty(t, downloads)
	for _, sc := range downloads {
		assert.NotContains(t, sc.Context, GlobalContext)
		assert.Contains(t, sc.Context, DownloadsContext)
	}
}

func TestScrollingClamps(t *testing.T) {
	m := sized(80, 12)
	m.SetContext(DownloadsContext)
	m.Show()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, m.scrollOffset)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	assert.Contains(t, m.View(), "KEYBOARD SHORTCUTS (")

	m.Toggle()
	assert.False(t, m.IsVisible())
	assert.Equal(t, 0, m.scrollOffset)
}
