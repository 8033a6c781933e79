package downloads

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/pkg/browser"

	"github.com/veriloft/vmusic/internal/downloader"
	"github.com/veriloft/vmusic/internal/tui/common"
	"github.com/veriloft/vmusic/internal/tui/styles"
	"github.com/veriloft/vmusic/internal/tui/utils"
)

const refreshInterval = 500 * time.Millisecond

// Queue is the part of the download manager the view drives
type Queue interface {
	Tasks(ctx context.Context) ([]downloader.DownloadTask, error)
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Retry(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	ClearFinished(ctx context.Context) error
}

// SortMode represents how to sort downloads
type SortMode int

const (
	SortByDate SortMode = iota
	SortByTitle
	SortByStatus
	SortByProgress
)

func (s SortMode) String() string {
	switch s {
	case SortByTitle:
		return "by Title"
	case SortByStatus:
		return "by Status"
	case SortByProgress:
		return "by Progress"
	default:
		return "by Date"
	}
}

// Model is the downloads view
type Model struct {
	queue        Queue
	openFile     func(path string) error
	downloads    []downloader.DownloadTask
	currentIndex int
	fuzzySearch  *common.FuzzySearch
	progressBar  progress.Model
	sortMode     SortMode
	ticking      bool
	width        int
	height       int

	showDeleteDialog bool
	deleteTask       downloader.DownloadTask
}

func getStatusIcon(status downloader.DownloadStatus) string {
	switch status {
	case downloader.StatusQueued:
		return "⏳"
	case downloader.StatusDownloading:
		return "▶"
	case downloader.StatusPaused:
		return "⏸"
	case downloader.StatusCompleted:
		return "✓"
	case downloader.StatusFailed:
		return "✗"
	case downloader.StatusCancelled:
		return "⦸"
	default:
		return "?"
	}
}

// New creates the view. Completed files are opened with the desktop's
// default application.
func New(queue Queue) Model {
	return Model{
		queue:       queue,
		openFile:    browser.OpenFile,
		fuzzySearch: common.NewFuzzySearch(),
		progressBar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(20),
			progress.WithoutPercentage(),
		),
	}
}

// Refresh fetches the queue and keeps polling while the view is shown
func (m *Model) Refresh() tea.Cmd {
	if m.ticking {
		return m.fetch()
	}
	m.ticking = true
	return tea.Batch(m.fetch(), tick())
}

// StopRefresh stops polling once the next tick arrives
func (m *Model) StopRefresh() {
	m.ticking = false
}

// IsInputActive reports whether the filter input is taking keys
func (m Model) IsInputActive() bool {
	return m.fuzzySearch.IsEditing() || m.showDeleteDialog
}

func (m Model) Tasks() []downloader.DownloadTask {
	return m.downloads
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return common.DownloadsTickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.fuzzySearch.SetWidth(msg.Width)
		switch {
		case msg.Width > 120:
			m.progressBar.Width = 40
		case msg.Width > 80:
			m.progressBar.Width = 30
		default:
			m.progressBar.Width = 20
		}

	case common.DownloadsTickMsg:
		if !m.ticking {
			return m, nil
		}
		return m, tea.Batch(m.fetch(), tick())

	case common.DownloadsRefreshMsg:
		if msg.Err != nil {
			return m, nil
		}
		m.setDownloads(msg.Tasks)

	case common.DownloadEventMsg:
		return m, m.fetch()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.showDeleteDialog {
		switch msg.String() {
		case "y", "Y", "enter":
			m.showDeleteDialog = false
			return m, m.act(m.deleteTask.ID, common.DownloadRemove, true)
		case "n", "N", "esc":
			m.showDeleteDialog = false
		}
		return m, nil
	}

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
	case "up", "k", "down", "j":
		return m.move(msg.String()), nil
	case "esc":
		if m.fuzzySearch.IsActive() {
			m.fuzzySearch.Deactivate()
			m.currentIndex = 0
			return m, nil
		}
		m.ticking = false
		return m, func() tea.Msg { return common.BackMsg{} }
	case "s":
		m.sortMode = (m.sortMode + 1) % 4
		m.sortDownloads()
		m.currentIndex = 0
		return m, nil
	case "x":
		return m, m.act("", common.DownloadClearFinished, false)
	case "ctrl+r":
		return m, m.fetch()
	}

	return m.handleAction(msg.String())
}

func (m Model) move(key string) Model {
	last := len(m.getFilteredIndices()) - 1
	switch key {
	case "up", "k":
		m.currentIndex--
	case "down", "j":
		m.currentIndex++
	}
	m.currentIndex = max(min(m.currentIndex, last), 0)
	return m
}

// handleAction applies key to the selected task when its status allows it
func (m Model) handleAction(key string) (Model, tea.Cmd) {
	task, ok := m.selected()
	if !ok {
		return m, nil
	}

	switch key {
	case "enter":
		if task.Status == downloader.StatusCompleted && task.OutputPath != "" {
			return m, m.open(task.OutputPath)
		}
	case "p":
		if task.Status.IsActive() {
			return m, m.act(task.ID, common.DownloadPause, false)
		}
	case "r":
		if task.Status == downloader.StatusPaused {
			return m, m.act(task.ID, common.DownloadResume, false)
		}
	case "R":
		if task.Status == downloader.StatusFailed || task.Status == downloader.StatusCancelled {
			return m, m.act(task.ID, common.DownloadRetry, false)
		}
	case "c":
		if !task.Status.IsComplete() {
			return m, m.act(task.ID, common.DownloadCancel, false)
		}
	case "delete", "D":
		if task.Status == downloader.StatusCompleted {
			m.showDeleteDialog = true
			m.deleteTask = task
			return m, nil
		}
		return m, m.act(task.ID, common.DownloadRemove, false)
	}
	return m, nil
}

func (m Model) selected() (downloader.DownloadTask, bool) {
	indices := m.getFilteredIndices()
	if m.currentIndex < 0 || m.currentIndex >= len(indices) {
		return downloader.DownloadTask{}, false
	}
	return m.downloads[indices[m.currentIndex]], true
}

func (m Model) fetch() tea.Cmd {
	queue := m.queue
	return func() tea.Msg {
		if queue == nil {
			return common.DownloadsRefreshMsg{}
		}
		tasks, err := queue.Tasks(context.Background())
		return common.DownloadsRefreshMsg{Tasks: tasks, Err: err}
	}
}

// act runs one queue operation and reports a refreshed list. deleteFile
// removes a completed track from disk along with its entry.
func (m Model) act(id string, action common.DownloadAction, deleteFile bool) tea.Cmd {
	queue := m.queue
	return func() tea.Msg {
		if queue == nil {
			return nil
		}
		ctx := context.Background()

		var err error
		switch action {
		case common.DownloadPause:
			err = queue.Pause(ctx, id)
		case common.DownloadResume:
			err = queue.Resume(ctx, id)
		case common.DownloadCancel:
			err = queue.Cancel(ctx, id)
		case common.DownloadRetry:
			err = queue.Retry(ctx, id)
		case common.DownloadRemove:
			if deleteFile {
				err = queue.Delete(ctx, id)
			} else {
				err = queue.Remove(ctx, id)
			}
		case common.DownloadClearFinished:
			err = queue.ClearFinished(ctx)
		}
		if err != nil {
			return common.StatusMsg{Text: "Download: " + err.Error(), Error: true}
		}

		tasks, err := queue.Tasks(ctx)
		return common.DownloadsRefreshMsg{Tasks: tasks, Err: err}
	}
}

func (m Model) open(path string) tea.Cmd {
	openFile := m.openFile
	return func() tea.Msg {
		if err := openFile(path); err != nil {
			return common.StatusMsg{Text: "Could not open file: " + err.Error(), Error: true}
		}
		return nil
	}
}

func (m *Model) setDownloads(tasks []downloader.DownloadTask) {
	m.downloads = tasks
	m.sortDownloads()
	last := len(m.getFilteredIndices()) - 1
	m.currentIndex = max(min(m.currentIndex, last), 0)
}

func (m *Model) sortDownloads() {
	less := func(a, b downloader.DownloadTask) bool { return a.CreatedAt.After(b.CreatedAt) }
	switch m.sortMode {
	case SortByTitle:
		less = func(a, b downloader.DownloadTask) bool {
			return strings.ToLower(a.DisplayName()) < strings.ToLower(b.DisplayName())
		}
	case SortByStatus:
		less = func(a, b downloader.DownloadTask) bool { return statusPriority(a.Status) < statusPriority(b.Status) }
	case SortByProgress:
		less = func(a, b downloader.DownloadTask) bool { return a.Progress > b.Progress }
	}
	sort.SliceStable(m.downloads, func(i, j int) bool { return less(m.downloads[i], m.downloads[j]) })
}

func statusPriority(status downloader.DownloadStatus) int {
	switch status {
	case downloader.StatusDownloading:
		return 0
	case downloader.StatusQueued:
		return 1
	case downloader.StatusPaused:
		return 2
	case downloader.StatusFailed:
		return 3
	case downloader.StatusCancelled:
		return 4
	default:
		return 5
	}
}

func (m Model) getFilteredIndices() []int {
	names := make([]string, len(m.downloads))
	for i, task := range m.downloads {
		names[i] = task.DisplayName()
	}
	return m.fuzzySearch.Filter(names)
}

func (m Model) View() string {
	if m.showDeleteDialog {
		return m.renderDeleteDialog()
	}

	if len(m.downloads) == 0 {
		return styles.MetadataStyle.Render("\nNo downloads yet.\n\nPress 'd' on any track to start downloading.\n\nesc back")
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("  DOWNLOADS (%s)  ", m.sortMode)) + "\n")

	active := 0
	for _, task := range m.downloads {
		if task.Status.IsActive() {
			active++
		}
	}
	b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("  %d items", len(m.downloads))) +
		styles.MetadataStyle.Render(fmt.Sprintf(" • %d active", active)) + "\n")

	if m.fuzzySearch.IsActive() {
		b.WriteString("\n  " + m.fuzzySearch.View() + "\n")
	}
	b.WriteString("\n")

	indices := m.getFilteredIndices()
	start, end := common.VisibleRange(len(indices), m.currentIndex, m.height, 8, 3)
	for i := start; i < end; i++ {
		b.WriteString(m.renderDownloadItem(m.downloads[indices[i]], i == m.currentIndex) + "\n")
	}

	help := "  ↑/↓ • ⏎ open • s sort • p/r pause/resume • R retry • c cancel • D del • x clear • / filter • esc back"
	if m.fuzzySearch.IsEditing() {
		help = "  Type to filter • ↑/↓ • esc lock"
	}
	b.WriteString("\n" + styles.HelpStyle.Render(help))
	return b.String()
}

func (m Model) renderDownloadItem(task downloader.DownloadTask, selected bool) string {
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
	title := titleStyle.Render(utils.TruncateWithWidth(task.DisplayName(), width))

	parts := []string{styles.FormatStatusBadge(string(task.Status), getStatusIcon(task.Status))}

	switch task.Status {
	case downloader.StatusDownloading:
		parts = append(parts, m.progressBar.ViewAs(min(max(task.Progress/100, 0), 1)), fmt.Sprintf("%.1f%%", task.Progress))
		if task.Speed > 0 {
			parts = append(parts, humanize.IBytes(uint64(task.Speed))+"/s")
			if remaining := task.TotalBytes - task.BytesDownloaded; task.TotalBytes > 0 && remaining > 0 {
				eta := time.Duration(remaining/task.Speed) * time.Second
				parts = append(parts, "ETA "+utils.FormatClock(eta))
			}
		}
	case downloader.StatusCompleted:
		if task.TotalBytes > 0 {
			parts = append(parts, humanize.IBytes(uint64(task.TotalBytes)))
		}
		if task.CompletedAt != nil {
			parts = append(parts, humanize.Time(*task.CompletedAt))
		}
	case downloader.StatusFailed:
		if task.Error != "" {
			parts = append(parts, utils.TruncateWithWidth(task.Error, 40))
		}
	case downloader.StatusPaused:
		if task.Progress > 0 {
			parts = append(parts, fmt.Sprintf("%.1f%%", task.Progress))
		}
	case downloader.StatusQueued:
		parts = append(parts, humanize.Time(task.CreatedAt))
	}

	return boxStyle.Render(title + "\n" + metaStyle.Render(strings.Join(parts, " • ")))
}

func (m Model) renderDeleteDialog() string {
	dialog := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.OxocarbonRed).
		Padding(1, 2).
		Render(fmt.Sprintf(
			"%s\n\nDelete this file from disk?\n%s\n\n%s",
			styles.TitleStyle.Background(styles.OxocarbonRed).Render("DELETE FILE"),
			styles.ItemTitleStyle.Render(m.deleteTask.DisplayName()),
			styles.HelpStyle.Render("(y) Confirm • (n/esc) Cancel"),
		))

	if m.width == 0 || m.height == 0 {
		return dialog
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, dialog)
}
