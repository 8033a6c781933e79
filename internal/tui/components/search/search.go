package search

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/veriloft/vmusic/internal/tui/common"
	"github.com/veriloft/vmusic/internal/tui/styles"
)

// Model is the query input with a list of recent queries below it
type Model struct {
	textInput textinput.Model
	recent    []string
	recentIdx int // -1 while the input has focus
	width     int
	height    int
}

func New() Model {
	ti := textinput.New()
	ti.Placeholder = "artist, title or both"
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 80

	ti.PromptStyle = lipgloss.NewStyle().Foreground(styles.OxocarbonPurple)
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.OxocarbonBase05)
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(styles.OxocarbonPurple)

	return Model{textInput: ti, recentIdx: -1}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.width > 20 {
			m.textInput.Width = m.width - 20
		}
		return m, nil

	case common.RecentQueriesMsg:
		m.recent = msg.Queries
		m.recentIdx = -1
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			query := strings.TrimSpace(m.textInput.Value())
			if m.recentIdx >= 0 && m.recentIdx < len(m.recent) {
				query = m.recent[m.recentIdx]
				m.textInput.SetValue(query)
				m.recentIdx = -1
			}
			if query == "" {
				return m, nil
			}
			return m, func() tea.Msg {
				return common.PerformSearchMsg{Query: query}
			}
		case "down", "tab":
			if m.recentIdx < len(m.recent)-1 {
				m.recentIdx++
			}
			return m, nil
		case "up", "shift+tab":
			if m.recentIdx >= 0 {
				m.recentIdx--
			}
			return m, nil
		case "esc":
			if m.recentIdx >= 0 {
				m.recentIdx = -1
				return m, nil
			}
			return m, func() tea.Msg {
				return common.BackMsg{}
			}
		}
		m.recentIdx = -1
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styles.TitleStyle.Render("  SEARCH  ") + "\n")
	b.WriteString(styles.SubtitleStyle.Render("  Find a track") + "\n")
	b.WriteString(styles.MetadataStyle.Render("  (Press / in results to filter)") + "\n\n")

	b.WriteString(styles.ItemSelectedStyle.Render(m.textInput.View()) + "\n")

	if len(m.recent) > 0 {
		b.WriteString("\n" + styles.HeaderStyle.Render("Recent") + "\n")
		for i, q := range m.recent {
			if i == m.recentIdx {
				b.WriteString(styles.ItemSelectedStyle.Render(q) + "\n")
				continue
			}
			b.WriteString(styles.ItemStyle.Render(styles.MetadataStyle.Render(q)) + "\n")
		}
	}

	b.WriteString("\n" + styles.HintStyle.Render("  enter search • ↓/↑ recent • ctrl+d downloads • esc back"))
	return b.String()
}

// SetValue sets the value of the search input
func (m *Model) SetValue(value string) {
	m.textInput.SetValue(value)
	m.textInput.CursorEnd()
}

// GetValue returns the value of the search input
func (m Model) GetValue() string {
	return m.textInput.Value()
}

// Focus gives the input focus again after returning to the view
func (m *Model) Focus() tea.Cmd {
	m.recentIdx = -1
	return m.textInput.Focus()
}
