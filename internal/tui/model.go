package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/veriloft/vmusic/internal/clipboard"
	"github.com/veriloft/vmusic/internal/downloader"
	"github.com/veriloft/vmusic/internal/search"
	"github.com/veriloft/vmusic/internal/tui/common"
	"github.com/veriloft/vmusic/internal/tui/components/actions"
	"github.com/veriloft/vmusic/internal/tui/components/downloads"
	"github.com/veriloft/vmusic/internal/tui/components/help"
	"github.com/veriloft/vmusic/internal/tui/components/nowplaying"
	"github.com/veriloft/vmusic/internal/tui/components/results"
	searchview "github.com/veriloft/vmusic/internal/tui/components/search"
	"github.com/veriloft/vmusic/internal/tui/styles"
)

type sessionState int

const (
	searchView sessionState = iota
	loadingView
	resultsView
	errorView
	actionsView
	playerView
	downloadsView
)

const statusTimeout = 3 * time.Second

type App struct {
	ctx    context.Context
	deps   Deps
	logger *slog.Logger

	state         sessionState
	previousState sessionState
	width         int
	height        int

	search             searchview.Model
	results            results.Model
	actions            actions.Model
	nowPlaying         nowplaying.Model
	downloadsComponent downloads.Model
	helpComponent      help.Model
	spinner            spinner.Model

	// search in flight, shown by the loading view
	loadingQuery string
	searchErr    *search.Error

	// play request the now-playing view waits for
	playSeq uint64

	statusMsg   string
	statusError bool
	statusID    int

	// events from downloader goroutines
	msgChan chan tea.Msg
}

// NewApp builds the root model. Downloader callbacks are routed into the
// program through msgChan.
func NewApp(ctx context.Context, deps Deps) *App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.RecentLimit <= 0 {
		deps.RecentLimit = 10
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.OxocarbonPurple)

	a := &App{
		ctx:                ctx,
		deps:               deps,
		logger:             deps.Logger.With("component", "tui"),
		state:              searchView,
		search:             searchview.New(),
		results:            results.New(),
		actions:            actions.New(),
		nowPlaying:         nowplaying.New(),
		downloadsComponent: downloads.New(deps.Downloads),
		helpComponent:      help.New(),
		spinner:            s,
		msgChan:            make(chan tea.Msg, 100),
	}

	if deps.Downloads != nil {
		deps.Downloads.OnDownloadComplete(func(task downloader.DownloadTask) {
			a.sendAsync(common.DownloadEventMsg{Task: task})
		})
		deps.Downloads.OnDownloadError(func(task downloader.DownloadTask, err error) {
			a.sendAsync(common.DownloadEventMsg{Task: task, Err: err})
		})
	}

	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.search.Init(),
		a.loadRecentQueries(),
		a.listenForMessages(),
	)
}

// listenForMessages waits for the next message from background goroutines
func (a *App) listenForMessages() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-a.msgChan:
			return msg
		case <-a.ctx.Done():
			return nil
		}
	}
}

// sendAsync hands msg to the program without blocking the caller. Events
// are dropped while the buffer is full.
func (a *App) sendAsync(msg tea.Msg) {
	select {
	case a.msgChan <- msg:
	default:
		a.logger.Debug("dropping background message", "type", fmt.Sprintf("%T", msg))
	}
}

// shutdown releases the live playback handle
func (a *App) shutdown() {
	if a.deps.Session == nil {
		return
	}
	if err := a.deps.Session.Dismiss(); err != nil {
		a.logger.Warn("failed to release player on exit", "error", err)
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// components keep their own copy of the size
		a.search, cmd = a.search.Update(msg)
		cmds = append(cmds, cmd)
		a.results, _ = a.results.Update(msg)
		a.actions, _ = a.actions.Update(msg)
		a.nowPlaying, _ = a.nowPlaying.Update(msg)
		a.downloadsComponent, _ = a.downloadsComponent.Update(msg)
		a.helpComponent, _ = a.helpComponent.Update(msg)
		return a, tea.Batch(cmds...)

	case tea.KeyMsg:
		if handled, cmd := a.handleGlobalKeys(msg); handled {
			return a, cmd
		}

	case startSearchMsg:
		a.search.SetValue(msg.query)
		return a, a.performSearch(msg.query)

	case common.PerformSearchMsg:
		return a, a.performSearch(msg.Query)

	case common.RetrySearchMsg:
		return a, a.retrySearch()

	case common.SearchResultMsg:
		return a, a.handleSearchResult(msg.Outcome)

	case common.RecentQueriesMsg:
		a.search, cmd = a.search.Update(msg)
		return a, cmd

	case common.AudioSelectedMsg:
		a.actions.SetAudio(msg.Audio)
		a.state = actionsView
		return a, nil

	case common.ActionChosenMsg:
		return a, a.handleAction(msg)

	case common.MediaPreparedMsg:
		return a, a.handleMediaPrepared(msg)

	case common.DismissPlayerMsg:
		return a, a.dismissPlayer()

	case common.PlaybackTickMsg, common.PlaybackProgressMsg, common.PlaybackEndedMsg:
		a.nowPlaying, cmd = a.nowPlaying.Update(msg)
		return a, cmd

	case common.DownloadQueuedMsg:
		return a, a.handleDownloadQueued(msg)

	case common.DownloadEventMsg:
		return a, a.handleDownloadEvent(msg)

	case common.DownloadsTickMsg, common.DownloadsRefreshMsg:
		a.downloadsComponent, cmd = a.downloadsComponent.Update(msg)
		return a, cmd

	case common.GoToDownloadsMsg:
		return a, a.goToDownloads()

	case common.GoToSearchMsg:
		a.state = searchView
		return a, tea.Batch(a.search.Focus(), a.loadRecentQueries())

	case common.BackMsg:
		return a, a.goBack()

	case common.StatusMsg:
		return a, a.setStatus(msg.Text, msg.Error)

	case clipboard.CopiedMsg:
		return a, a.handleCopied(msg)

	case common.ClearStatusMsg:
		if msg.ID == a.statusID {
			a.statusMsg = ""
		}
		return a, nil

	case spinner.TickMsg:
		if a.state != loadingView {
			return a, nil
		}
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, a.updateCurrentView(msg)
}

// updateCurrentView forwards msg to the component of the current view
func (a *App) updateCurrentView(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.state {
	case searchView:
		a.search, cmd = a.search.Update(msg)
	case resultsView:
		a.results, cmd = a.results.Update(msg)
	case actionsView:
		a.actions, cmd = a.actions.Update(msg)
	case playerView:
		a.nowPlaying, cmd = a.nowPlaying.Update(msg)
	case downloadsView:
		a.downloadsComponent, cmd = a.downloadsComponent.Update(msg)
	case errorView:
		cmd = a.handleErrorViewKeys(msg)
	case loadingView:
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
			// the outcome still lands in the controller, the view just stops waiting
			a.state = searchView
			cmd = a.search.Focus()
		}
	}
	return cmd
}

// goBack leaves the current view
func (a *App) goBack() tea.Cmd {
	switch a.state {
	case resultsView:
		a.state = searchView
		return tea.Batch(a.search.Focus(), a.loadRecentQueries())
	case actionsView:
		a.state = resultsView
	case downloadsView:
		a.downloadsComponent.StopRefresh()
		a.state = a.previousState
		if a.state == searchView {
			return a.search.Focus()
		}
	case searchView:
		if len(a.results.Results()) > 0 {
			a.state = resultsView
		}
	}
	return nil
}

func (a *App) goToDownloads() tea.Cmd {
	if a.state == downloadsView {
		return nil
	}
	if a.deps.Downloads == nil {
		return a.setStatus("Downloads are not available", true)
	}
	a.previousState = a.state
	a.state = downloadsView
	return a.downloadsComponent.Refresh()
}

// setStatus shows text in the footer until statusTimeout passes
func (a *App) setStatus(text string, isError bool) tea.Cmd {
	a.statusID++
	a.statusMsg = text
	a.statusError = isError

	id := a.statusID
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return common.ClearStatusMsg{ID: id}
	})
}

// inputActive reports whether the current view is taking free text
func (a *App) inputActive() bool {
	switch a.state {
	case searchView:
		return true
	case resultsView:
		return a.results.IsInputActive()
	case downloadsView:
		return a.downloadsComponent.IsInputActive()
	}
	return false
}

func (a *App) helpContext() help.HelpContext {
	switch a.state {
	case searchView:
		return help.SearchContext
	case resultsView:
		return help.ResultsContext
	case actionsView:
		return help.ActionsContext
	case playerView:
		return help.PlayerContext
	case downloadsView:
		return help.DownloadsContext
	case errorView:
		return help.ErrorContext
	default:
		return help.GlobalContext
	}
}

func (a *App) View() string {
	if a.helpComponent.IsVisible() {
		return a.helpComponent.View()
	}

	view := a.renderView()

	footer := a.renderFooter()
	if footer == "" {
		return view
	}

	view = strings.TrimRight(view, "\n")
	if a.height > 0 {
		lines := strings.Split(view, "\n")
		if len(lines) >= a.height && a.height > 1 {
			view = strings.Join(lines[:a.height-1], "\n")
		} else {
			// pin the footer to the last line
			view += strings.Repeat("\n", max(a.height-1-len(lines), 0))
		}
	}
	return view + "\n" + footer
}

func (a *App) renderView() string {
	switch a.state {
	case searchView:
		return a.search.View()
	case loadingView:
		return fmt.Sprintf("\n\n   %s Searching for %q...\n\n%s", a.spinner.View(), a.loadingQuery,
			styles.HintStyle.Render("   esc back"))
	case resultsView:
		return a.results.View()
	case errorView:
		return a.renderError()
	case actionsView:
		return a.actions.View()
	case playerView:
		return a.nowPlaying.View()
	case downloadsView:
		return a.downloadsComponent.View()
	}
	return ""
}

func (a *App) renderError() string {
	message := "Something went wrong"
	if a.searchErr != nil {
		message = a.searchErr.UserMessage()
	}

	query, _ := a.deps.Search.LastQuery()
	panel := styles.ErrorPanelStyle.Render(
		styles.SubtitleStyle.Render(message) + "\n\n" +
			styles.MetadataStyle.Render("Query: "+query) + "\n\n" +
			styles.HelpStyle.Render("r retry • / new search • esc back"),
	)
	return "\n" + panel
}

func (a *App) renderFooter() string {
	width := a.width
	if width == 0 {
		width = 80
	}

	if a.inputActive() && a.state != searchView {
		return styles.FooterStyle.
			Width(width).
			Background(styles.OxocarbonPurple).
			Foreground(styles.OxocarbonBase00).
			Bold(true).
			Align(lipgloss.Center).
			Render("⌨ INPUT MODE")
	}

	if a.statusMsg != "" {
		color, icon := styles.OxocarbonGreen, "✓"
		if a.statusError {
			color, icon = styles.OxocarbonPink, "✗"
		}
		return styles.FooterStyle.
			Width(width).
			Background(color).
			Foreground(styles.OxocarbonBase00).
			Bold(true).
			Render(icon + " " + a.statusMsg)
	}

	if a.deps.ShowHelpHint && a.state != searchView {
		return styles.HelpStyle.Render(" ? help • ctrl+c quit")
	}
	return ""
}
