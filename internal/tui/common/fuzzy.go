package common

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
	"github.com/veriloft/vmusic/internal/tui/styles"
)

// FuzzySearch filters list views in place
type FuzzySearch struct {
	input  textinput.Model
	active bool
	locked bool // filter applied, keys go to the list again
	query  string
}

// NewFuzzySearch creates an inactive filter
func NewFuzzySearch() *FuzzySearch {
	ti := textinput.New()
	ti.Placeholder = "Type to filter..."
	ti.Prompt = ""
	ti.CharLimit = 200
	ti.PromptStyle = styles.ItemTitleStyle
	ti.TextStyle = styles.MetadataStyle
	ti.PlaceholderStyle = styles.MetadataStyle

	return &FuzzySearch{input: ti}
}

// Activate starts editing an empty filter
func (f *FuzzySearch) Activate() tea.Cmd {
	f.active = true
	f.locked = false
	f.input.Focus()
	f.input.SetValue("")
	f.query = ""
	return textinput.Blink
}

// Deactivate drops the filter
func (f *FuzzySearch) Deactivate() {
	f.active = false
	f.locked = false
	f.input.Blur()
	f.input.SetValue("")
	f.query = ""
}

// Lock keeps the filter applied but stops editing it
func (f *FuzzySearch) Lock() {
	if f.active {
		f.locked = true
		f.input.Blur()
	}
}

// Unlock resumes editing a locked filter
func (f *FuzzySearch) Unlock() tea.Cmd {
	if !f.active {
		return nil
	}
	f.locked = false
	f.input.Focus()
	return textinput.Blink
}

func (f *FuzzySearch) IsActive() bool { return f.active }

func (f *FuzzySearch) IsLocked() bool { return f.locked }

// IsEditing reports whether key presses belong to the filter input
func (f *FuzzySearch) IsEditing() bool { return f.active && !f.locked }

func (f *FuzzySearch) Query() string { return f.query }

// Update feeds input to the filter while it is being edited
func (f *FuzzySearch) Update(msg tea.Msg) tea.Cmd {
	if !f.IsEditing() {
		return nil
	}

	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	f.query = f.input.Value()
	return cmd
}

// View renders the filter line
func (f *FuzzySearch) View() string {
	if !f.active {
		return ""
	}

	prompt := styles.ItemTitleStyle.Render("┃")
	label := styles.MetadataStyle.Render("Filter: ")

	if f.locked {
		hint := styles.HelpStyle.Render(" (locked • / to edit • esc to clear)")
		return label + prompt + " " + styles.ItemTitleStyle.Render(f.query) + hint
	}

	hint := styles.HelpStyle.Render(" (enter/esc to lock)")
	return label + prompt + " " + f.input.View() + hint
}

// SetWidth sets the width of the filter input
func (f *FuzzySearch) SetWidth(width int) {
	f.input.Width = width - 20
}

// Filter returns the indices of candidates matching the query, best match
// first. Without a query every index is returned in order.
func (f *FuzzySearch) Filter(candidates []string) []int {
	if !f.active || f.query == "" {
		indices := make([]int, len(candidates))
		for i := range indices {
			indices[i] = i
		}
		return indices
	}

	matches := fuzzy.Find(f.query, candidates)
	indices := make([]int, len(matches))
	for i, match := range matches {
		indices[i] = match.Index
	}
	return indices
}
