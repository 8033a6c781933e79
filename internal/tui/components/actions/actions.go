package actions

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/tui/common"
	"github.com/veriloft/vmusic/internal/tui/styles"
)

var entries = []struct {
	action common.Action
	key    string
}{
	{common.ActionPlay, "p"},
	{common.ActionDownload, "d"},
	{common.ActionCopyLink, "y"},
	{common.ActionOpenLink, "o"},
}

// Model is the action sheet shown for a selected track
type Model struct {
	audio        vk.Audio
	currentIndex int
	width        int
	height       int
}

func New() Model {
	return Model{}
}

// SetAudio opens the sheet for audio
func (m *Model) SetAudio(audio vk.Audio) {
	m.audio = audio
	m.currentIndex = 0
}

func (m Model) Audio() vk.Audio {
	return m.audio
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch k := msg.String(); k {
		case "up", "k":
			if m.currentIndex > 0 {
				m.currentIndex--
			}
		case "down", "j":
			if m.currentIndex < len(entries)-1 {
				m.currentIndex++
			}
		case "enter":
			return m, m.choose(entries[m.currentIndex].action)
		case "esc", "q":
			return m, func() tea.Msg { return common.BackMsg{} }
		default:
			for _, e := range entries {
				if e.key == k {
					return m, m.choose(e.action)
				}
			}
		}
	}
	return m, nil
}

func (m Model) choose(action common.Action) tea.Cmd {
	audio := m.audio
	return func() tea.Msg {
		return common.ActionChosenMsg{Action: action, Audio: audio}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(styles.SubtitleStyle.Render(m.audio.DisplayName()) + "\n")
	b.WriteString(styles.MetadataStyle.Render(m.audio.FormatDuration()) + "\n\n")

	for i, e := range entries {
		line := "[" + e.key + "] " + e.action.String()
		if i == m.currentIndex {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.OxocarbonPurple).Bold(true).Render("› "+line) + "\n")
			continue
		}
		b.WriteString(styles.MetadataStyle.Render("  "+line) + "\n")
	}
	b.WriteString(styles.HintStyle.Render("enter select • esc close"))

	popup := styles.PopupStyle.Render(b.String())
	if m.width == 0 || m.height == 0 {
		return popup
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, popup)
}
