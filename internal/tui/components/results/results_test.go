package results

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/tui/common"
)

var tracks = []vk.Audio{
	{ID: 1, OwnerID: 10, Artist: "Kino", Title: "Gruppa krovi", Duration: 286, URL: "https://cs1.example/1.mp3"},
	{ID: 2, OwnerID: 10, Artist: "Kino", Title: "Zvezda po imeni Solntse", Duration: 225, URL: "https://cs1.example/2.mp3"},
	{ID: 3, OwnerID: 11, Artist: "Aria", Title: "Bespechnyi angel", Duration: 3700, URL: "https://cs1.example/3.mp3"},
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newModel() Model {
	m := New()
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	m.SetResults("kino", tracks)
	return m
}

func TestNavigationClamps(t *testing.T) {
	m := newModel()

	m, _ = m.Update(key("up"))
	assert.Equal(t, int64(1), m.Selected().ID)

	for range 5 {
		m, _ = m.Update(key("j"))
	}
	assert.Equal(t, int64(3), m.Selected().ID)

	m, _ = m.Update(key("g"))
	assert.Equal(t, int64(1), m.Selected().ID)
}

func TestEnterSelectsTrack(t *testing.T) {
	m := newModel()
	m, _ = m.Update(key("down"))

	_, cmd := m.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, common.AudioSelectedMsg{Audio: tracks[1]}, cmd())
}

func TestShortcutActions(t *testing.T) {
	tests := map[string]common.Action{
		"p": common.ActionPlay,
		"d": common.ActionDownload,
		"y": common.ActionCopyLink,
	}

	for k, action := range tests {
		t.Run(k, func(t *testing.T) {
			_, cmd := newModel().Update(key(k))
			require.NotNil(t, cmd)
			assert.Equal(t, common.ActionChosenMsg{Action: action, Audio: tracks[0]}, cmd())
		})
	}
}

func TestFilter(t *testing.T) {
	m := newModel()

	m, _ = m.Update(key("/"))
	assert.True(t, m.IsInputActive())
	for _, r := range "angel" {
		m, _ = m.Update(key(string(r)))
	}
	m, _ = m.Update(key("enter"))
	assert.False(t, m.IsInputActive())

	require.NotNil(t, m.Selected())
	assert.Equal(t, int64(3), m.Selected().ID)
	assert.Contains(t, m.View(), "1 of 3 tracks")

	m, _ = m.Update(key("esc"))
	assert.Contains(t, m.View(), "3 tracks")
	assert.Equal(t, int64(1), m.Selected().ID)
}

func TestSetResultsReplacesList(t *testing.T) {
	m := newModel()
	m, _ = m.Update(key("down"))

	m.SetResults("aria", tracks[2:])
	assert.Equal(t, int64(3), m.Selected().ID)
	assert.Len(t, m.Results(), 1)

	m.Clear()
	assert.Nil(t, m.Selected())
	assert.Contains(t, m.View(), "No results found")

	_, cmd := m.Update(key("enter"))
	assert.Nil(t, cmd)
}

func TestEscGoesBack(t *testing.T) {
	_, cmd := newModel().Update(key("esc"))
	require.NotNil(t, cmd)
	assert.Equal(t, common.BackMsg{}, cmd())
}

func TestViewShowsTracks(t *testing.T) {
	view := newModel().View()
	assert.Contains(t, view, "Gruppa krovi")
	assert.Contains(t, view, "4:46")
	assert.Contains(t, view, "1:01:40")
}
