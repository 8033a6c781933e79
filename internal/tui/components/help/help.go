package help

import (
	"fmt"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/veriloft/vmusic/internal/tui/styles"
)

// HelpContext represents which view the help is being shown in
type HelpContext int

const (
	GlobalContext HelpContext = iota
	SearchContext
	ResultsContext
	ActionsContext
	PlayerContext
	DownloadsContext
	ErrorContext
)

// Shortcut is a key binding with its description
type Shortcut struct {
	Key         string
	Description string
	Context     []HelpContext
}

// Model is the help overlay
type Model struct {
	context      HelpContext
	width        int
	height       int
	visible      bool
	scrollOffset int
}

var allShortcuts = []Shortcut{
	{Key: "↑/↓ or j/k", Description: "Navigate up/down", Context: []HelpContext{GlobalContext}},
	{Key: "enter", Description: "Select item", Context: []HelpContext{GlobalContext}},
	{Key: "esc", Description: "Go back / Cancel", Context: []HelpContext{GlobalContext}},
	{Key: "ctrl+d", Description: "Go to downloads", Context: []HelpContext{GlobalContext}},
	{Key: "?", Description: "Show/hide this help", Context: []HelpContext{GlobalContext}},
	{Key: "ctrl+c", Description: "Quit application", Context: []HelpContext{GlobalContext}},

	{Key: "enter", Description: "Search", Context: []HelpContext{SearchContext}},
	{Key: "tab/↓", Description: "Pick a recent query", Context: []HelpContext{SearchContext}},

	{Key: "/", Description: "Filter results", Context: []HelpContext{ResultsContext, DownloadsContext}},
	{Key: "p", Description: "Play track", Context: []HelpContext{ResultsContext, ActionsContext}},
	{Key: "d", Description: "Download track", Context: []HelpContext{ResultsContext, ActionsContext}},
	{Key: "y", Description: "Copy link", Context: []HelpContext{ResultsContext, ActionsContext}},
	{Key: "o", Description: "Open link in browser", Context: []HelpContext{ActionsContext}},
	{Key: "g/G", Description: "First/last track", Context: []HelpContext{ResultsContext}},

	{Key: "space", Description: "Pause/resume", Context: []HelpContext{PlayerContext}},
	{Key: "←/→", Description: "Seek 10 seconds", Context: []HelpContext{PlayerContext}},
	{Key: "+/-", Description: "Volume", Context: []HelpContext{PlayerContext}},
	{Key: "esc/s", Description: "Stop and release the player", Context: []HelpContext{PlayerContext}},

	{Key: "p", Description: "Pause download", Context: []HelpContext{DownloadsContext}},
	{Key: "r", Description: "Resume download", Context: []HelpContext{DownloadsContext}},
	{Key: "R", Description: "Retry failed download", Context: []HelpContext{DownloadsContext}},
	{Key: "c", Description: "Cancel download", Context: []HelpContext{DownloadsContext}},
	{Key: "D", Description: "Remove (deletes completed files)", Context: []HelpContext{DownloadsContext}},
	{Key: "x", Description: "Clear finished", Context: []HelpContext{DownloadsContext}},
	{Key: "s", Description: "Cycle sort order", Context: []HelpContext{DownloadsContext}},
	{Key: "ctrl+r", Description: "Refresh list", Context: []HelpContext{DownloadsContext}},

	{Key: "r", Description: "Retry the last query", Context: []HelpContext{ErrorContext}},
	{Key: "/", Description: "New search", Context: []HelpContext{ErrorContext}},
}

func New() Model {
	return Model{context: GlobalContext}
}

func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles resizing and less-style scrolling while visible
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if !m.visible {
			return m, nil
		}
		switch msg.String() {
		case "up", "k":
			m.scrollOffset--
		case "down", "j":
			m.scrollOffset++
		case "ctrl+d", "d":
			m.scrollOffset += 10
		case "ctrl+u", "u":
			m.scrollOffset -= 10
		case "home", "g":
			m.scrollOffset = 0
		case "end", "G":
			m.scrollOffset = 1 << 20 // clamped in View
		}
		m.scrollOffset = max(m.scrollOffset, 0)
	}
	return m, nil
}

// View renders the help panel centered in the terminal
func (m Model) View() string {
	if !m.visible || m.width == 0 || m.height == 0 {
		return ""
	}

	var content strings.Builder
	nav := styles.HelpStyle.Render("↑/↓ j/k scroll • d/u half page • g/G top/bottom • esc/? close")
	content.WriteString(lipgloss.NewStyle().Width(60).Align(lipgloss.Center).Render(nav) + "\n")

	content.WriteString(styles.HeaderStyle.Render("Navigation & General") + "\n")
	for _, sc := range shortcutsFor(GlobalContext) {
		content.WriteString(renderShortcutLine(sc) + "\n")
	}

	if name := contextName(m.context); name != "" {
		if specific := shortcutsFor(m.context); len(specific) > 0 {
			content.WriteString("\n" + styles.HeaderStyle.Render(name+" Actions") + "\n")
			for _, sc := range specific {
				content.WriteString(renderShortcutLine(sc) + "\n")
			}
		}
	}

	lines := strings.Split(content.String(), "\n")
	available := max(m.height-6, 10)

	offset := min(m.scrollOffset, max(len(lines)-available, 0))
	end := min(offset+available, len(lines))
	visible := strings.Join(lines[offset:end], "\n")

	title := "KEYBOARD SHORTCUTS"
	if len(lines) > available {
		title += fmt.Sprintf(" (%d-%d/%d)", offset+1, end, len(lines))
	}

	boxWidth := 64
	if m.width < boxWidth+4 {
		boxWidth = max(m.width-4, 40)
	}

	titleBar := lipgloss.NewStyle().
		Foreground(styles.OxocarbonWhite).
		Background(styles.OxocarbonPurple).
		Padding(0, 2).
		Bold(true).
		Width(boxWidth - 4).
		Align(lipgloss.Center).
		Render(title)

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.OxocarbonPurple).
		Padding(0, 2).
		Width(boxWidth).
		Render(titleBar + "\n\n" + visible)

	if lipgloss.Height(box) >= m.height {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// SetContext sets the view the help describes
func (m *Model) SetContext(ctx HelpContext) {
	m.context = ctx
}

// Toggle flips visibility, resetting the scroll position
func (m *Model) Toggle() {
	m.visible = !m.visible
	m.scrollOffset = 0
}

func (m *Model) Show() {
	m.visible = true
	m.scrollOffset = 0
}

func (m *Model) Hide() {
	m.visible = false
	m.scrollOffset = 0
}

func (m Model) IsVisible() bool {
	return m.visible
}

// shortcutsFor returns the bindings listed under ctx. Global bindings only
// appear under GlobalContext.
func shortcutsFor(ctx HelpContext) []Shortcut {
	var out []Shortcut
	for _, sc := range allShortcuts {
		global := slices.Contains(sc.Context, GlobalContext)
		if ctx == GlobalContext && global || ctx != GlobalContext && !global && slices.Contains(sc.Context, ctx) {
			out = append(out, sc)
		}
	}
	return out
}

func renderShortcutLine(sc Shortcut) string {
	keyStyle := lipgloss.NewStyle().
		Foreground(styles.OxocarbonPurple).
		Bold(true).
		Width(18)
	descStyle := lipgloss.NewStyle().Foreground(styles.OxocarbonBase05)
	return "  " + keyStyle.Render(sc.Key) + descStyle.Render(sc.Description)
}

func contextName(ctx HelpContext) string {
	switch ctx {
	case SearchContext:
		return "Search"
	case ResultsContext:
		return "Results"
	case ActionsContext:
		return "Track"
	case PlayerContext:
		return "Player"
	case DownloadsContext:
		return "Downloads"
	case ErrorContext:
		return "Error"
	default:
		return ""
	}
}
