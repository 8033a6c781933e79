package results

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/tui/common"
	"github.com/veriloft/vmusic/internal/tui/styles"
	"github.com/veriloft/vmusic/internal/tui/utils"
)

// Model lists the tracks of the current search
type Model struct {
	query        string
	results      []vk.Audio
	currentIndex int // index into the filtered list
	fuzzySearch  *common.FuzzySearch
	width        int
	height       int
}

func New() Model {
	return Model{fuzzySearch: common.NewFuzzySearch()}
}

// SetResults replaces the list; nothing of the previous search is kept
func (m *Model) SetResults(query string, results []vk.Audio) {
	m.query = query
	m.results = results
	m.currentIndex = 0
	m.fuzzySearch.Deactivate()
}

// Clear drops the current list
func (m *Model) Clear() {
	m.SetResults("", nil)
}

func (m Model) Results() []vk.Audio {
	return m.results
}

// Selected returns the highlighted track, or nil when the list is empty
func (m Model) Selected() *vk.Audio {
	indices := m.getFilteredIndices()
	if m.currentIndex < 0 || m.currentIndex >= len(indices) {
		return nil
	}
	audio := m.results[indices[m.currentIndex]]
	return &audio
}

// IsInputActive reports whether the filter input is taking keys
func (m Model) IsInputActive() bool {
	return m.fuzzySearch.IsEditing()
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.fuzzySearch.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		if m.fuzzySearch.IsEditing() {
			switch msg.String() {
			case "esc", "enter":
				m.fuzzySearch.Lock()
				return m, nil
			case "up", "down":
				return m.move(msg.String()), nil
			}
			cmd := m.fuzzySearch.Update(msg)
			m.currentIndex = 0
			return m, cmd
		}

		switch msg.String() {
		case "/":
			m.currentIndex = 0
			if m.fuzzySearch.IsLocked() {
				return m, m.fuzzySearch.Unlock()
			}
			return m, m.fuzzySearch.Activate()
		case "up", "k", "down", "j", "home", "g", "end", "G":
			return m.move(msg.String()), nil
		case "enter":
			return m, m.emit(func(a vk.Audio) tea.Msg { return common.AudioSelectedMsg{Audio: a} })
		case "p":
			return m, m.emit(func(a vk.Audio) tea.Msg { return common.ActionChosenMsg{Action: common.ActionPlay, Audio: a} })
		case "d":
			return m, m.emit(func(a vk.Audio) tea.Msg { return common.ActionChosenMsg{Action: common.ActionDownload, Audio: a} })
		case "y":
			return m, m.emit(func(a vk.Audio) tea.Msg { return common.ActionChosenMsg{Action: common.ActionCopyLink, Audio: a} })
		case "esc":
			if m.fuzzySearch.IsActive() {
				m.fuzzySearch.Deactivate()
				m.currentIndex = 0
				return m, nil
			}
			return m, func() tea.Msg { return common.BackMsg{} }
		}
	}

	return m, nil
}

func (m Model) move(key string) Model {
	last := len(m.getFilteredIndices()) - 1
	switch key {
	case "up", "k":
		m.currentIndex--
	case "down", "j":
		m.currentIndex++
	case "home", "g":
		m.currentIndex = 0
	case "end", "G":
		m.currentIndex = last
	}
	m.currentIndex = max(min(m.currentIndex, last), 0)
	return m
}

func (m Model) emit(build func(vk.Audio) tea.Msg) tea.Cmd {
	selected := m.Selected()
	if selected == nil {
		return nil
	}
	audio := *selected
	return func() tea.Msg { return build(audio) }
}

func (m Model) View() string {
	if len(m.results) == 0 {
		return styles.SubtitleStyle.Render("\nNo results found.\n\nPress 'esc' to go back.")
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styles.TitleStyle.Render("  RESULTS  ") + " " + styles.MetadataStyle.Render(m.query) + "\n")

	indices := m.getFilteredIndices()
	count := fmt.Sprintf("%d tracks", len(m.results))
	if m.fuzzySearch.IsActive() {
		count = fmt.Sprintf("%d of %d tracks", len(indices), len(m.results))
	}
	b.WriteString(styles.HelpStyle.Render("  "+count) + "\n")

	if m.fuzzySearch.IsActive() {
		b.WriteString("\n  " + m.fuzzySearch.View() + "\n")
	}
	b.WriteString("\n")

	overhead := 7
	if m.fuzzySearch.IsActive() {
		overhead = 9
	}
	start, end := common.VisibleRange(len(indices), m.currentIndex, m.height, overhead, 2)
	for i := start; i < end; i++ {
		b.WriteString(m.renderItem(m.results[indices[i]], i == m.currentIndex) + "\n")
	}
	if len(indices) == 0 {
		b.WriteString(styles.MetadataStyle.Render("  Nothing matches the filter.") + "\n")
	}

	b.WriteString(styles.HintStyle.Render("  enter actions • p play • d download • y copy link • / filter • ? help • esc back"))
	return b.String()
}

func (m Model) renderItem(audio vk.Audio, selected bool) string {
	boxStyle := styles.ItemStyle
	titleStyle := styles.ItemTitleStyle
	metaStyle := styles.MetadataStyle
	if selected {
		boxStyle = styles.ItemSelectedStyle
		titleStyle = titleStyle.Foreground(styles.OxocarbonPurple)
		metaStyle = metaStyle.Foreground(styles.OxocarbonMauve)
	}

	width := m.width - 12
	if width < 20 {
		width = 60
	}

	duration := audio.FormatDuration()
	title := utils.TruncateWithWidth(audio.Title, width-lipgloss.Width(duration)-2)
	line := titleStyle.Render(title) + "  " + metaStyle.Render(duration)
	artist := metaStyle.Render(utils.TruncateWithWidth(audio.Artist, width))

	return boxStyle.Render(line + "\n" + artist)
}

func (m Model) getFilteredIndices() []int {
	names := make([]string, len(m.results))
	for i, audio := range m.results {
		names[i] = audio.Artist + " " + audio.Title
	}
	return m.fuzzySearch.Filter(names)
}
