package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/veriloft/vmusic/internal/search"
	"github.com/veriloft/vmusic/internal/tui/common"
)

// performSearch clears the previous results, shows the loading view and
// fetches query off the UI goroutine
func (a *App) performSearch(query string) tea.Cmd {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	seq := a.deps.Search.Begin(query)
	a.results.Clear()
	a.searchErr = nil
	a.loadingQuery = query
	a.state = loadingView

	ctx := a.ctx
	controller := a.deps.Search
	fetch := func() tea.Msg {
		return common.SearchResultMsg{Outcome: controller.Fetch(ctx, seq, query)}
	}
	return tea.Batch(a.spinner.Tick, fetch)
}

// retrySearch replays the last query
func (a *App) retrySearch() tea.Cmd {
	query, ok := a.deps.Search.LastQuery()
	if !ok {
		a.state = searchView
		return a.search.Focus()
	}
	return a.performSearch(query)
}

// handleSearchResult installs an outcome unless a newer search superseded it
func (a *App) handleSearchResult(out search.Outcome) tea.Cmd {
	if !a.deps.Search.Apply(out) {
		return nil
	}

	// the user may have left the loading view; the results still replace the old ones
	showing := a.state == loadingView
	cmds := []tea.Cmd{a.loadRecentQueries()}

	if out.OK() {
		a.results.SetResults(out.Query, out.Results)
		if showing {
			a.state = resultsView
		}
		return tea.Batch(cmds...)
	}

	a.searchErr = out.Err
	if showing {
		a.state = errorView
	}
	if out.Err.Kind == search.KindUnexpected {
		cmds = append(cmds, a.setStatus(out.Err.UserMessage(), true))
	}
	a.logger.Debug("search failed", "query", out.Query, "kind", out.Err.Kind, "error", out.Err)
	return tea.Batch(cmds...)
}

// handleErrorViewKeys drives the inline error panel
func (a *App) handleErrorViewKeys(msg tea.Msg) tea.Cmd {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	switch key.String() {
	case "r", "enter":
		return func() tea.Msg { return common.RetrySearchMsg{} }
	case "/", "esc":
		return func() tea.Msg { return common.GoToSearchMsg{} }
	}
	return nil
}

func (a *App) loadRecentQueries() tea.Cmd {
	if a.deps.History == nil {
		return nil
	}

	ctx := a.ctx
	history := a.deps.History
	limit := a.deps.RecentLimit
	logger := a.logger
	return func() tea.Msg {
		queries, err := history.RecentQueries(ctx, limit)
		if err != nil {
			logger.Warn("failed to load recent queries", "error", err)
			return nil
		}
		return common.RecentQueriesMsg{Queries: queries}
	}
}
