package tui

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veriloft/vmusic/internal/clipboard"
	"github.com/veriloft/vmusic/internal/downloader"
	"github.com/veriloft/vmusic/internal/media"
	"github.com/veriloft/vmusic/internal/player"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/search"
	"github.com/veriloft/vmusic/internal/tui/common"
)

type fakeSearch struct {
	seq     uint64
	last    string
	begins  []string
	applied []uint64
}

func (f *fakeSearch) Begin(query string) uint64 {
	f.seq++
	f.last = query
	f.begins = append(f.begins, query)
	return f.seq
}

func (f *fakeSearch) Fetch(_ context.Context, seq uint64, query string) search.Outcome {
	return search.Outcome{Seq: seq, Query: query, Results: tracks}
}

func (f *fakeSearch) Apply(out search.Outcome) bool {
	if out.Seq != f.seq {
		return false
	}
	f.applied = append(f.applied, out.Seq)
	return true
}

func (f *fakeSearch) LastQuery() (string, bool) {
	return f.last, f.seq > 0
}

type fakeHandle struct {
	locator  string
	releases atomic.Int32
}

func (h *fakeHandle) Locator() string { return h.locator }

func (h *fakeHandle) Release() error {
	h.releases.Add(1)
	return nil
}

func (h *fakeHandle) GetProgress(context.Context) (*player.PlaybackProgress, error) {
	return &player.PlaybackProgress{Duration: time.Minute}, nil
}

func (h *fakeHandle) TogglePause(context.Context) error { return nil }
func (h *fakeHandle) Seek(context.Context, time.Duration) error { return nil }
func (h *fakeHandle) SetVolume(context.Context, int) error { return nil }

// fakePreparer hands out the queued results in order
type fakePreparer struct {
	locators []string
	results  []media.Result
}

func (f *fakePreparer) Prepare(_ context.Context, locator string) <-chan media.Result {
	f.locators = append(f.locators, locator)
	ch := make(chan media.Result, 1)
	res := f.results[0]
	f.results = f.results[1:]
	res.Locator = locator
	ch <- res
	close(ch)
	return ch
}

type fakeClipboard struct {
	written []string
	err     error
}

func (f *fakeClipboard) Read(context.Context) (string, error) { return "", nil }

func (f *fakeClipboard) Write(_ context.Context, text string) error {
	f.written = append(f.written, text)
	return f.err
}

func (f *fakeClipboard) WriteCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return clipboard.CopiedMsg{Text: text, Err: f.Write(context.Background(), text)}
	}
}

var tracks = []vk.Audio{
	{ID: 1, OwnerID: 10, Artist: "Kino", Title: "Gruppa krovi", Duration: 286, URL: "https://cs1.vk.me/a.mp3"},
	{ID: 2, OwnerID: 10, Artist: "Kino", Title: "Zvezda", Duration: 215, URL: "https://cs1.vk.me/b.mp3"},
}

func newTestApp(t *testing.T, deps Deps) (*App, *fakeSearch) {
	t.Helper()
	s := &fakeSearch{}
	deps.Search = s
	app := NewApp(context.Background(), deps)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return app, s
}

func send(app *App, msg tea.Msg) tea.Cmd {
	_, cmd := app.Update(msg)
	return cmd
}

// showResults runs a search to completion
func showResults(t *testing.T, app *App) {
	t.Helper()
	send(app, common.PerformSearchMsg{Query: "kino"})
	send(app, common.SearchResultMsg{Outcome: search.Outcome{Seq: 1, Query: "kino", Results: tracks}})
	require.Equal(t, resultsView, app.state)
}

func TestSearch_ShowsResults(t *testing.T) {
	app, s := newTestApp(t, Deps{})

	cmd := send(app, common.PerformSearchMsg{Query: "  kino  "})
	require.NotNil(t, cmd)
	assert.Equal(t, loadingView, app.state)
	assert.Equal(t, []string{"kino"}, s.begins)
	assert.Contains(t, app.View(), `Searching for "kino"`)

	send(app, common.SearchResultMsg{Outcome: search.Outcome{Seq: 1, Query: "kino", Results: tracks}})
	assert.Equal(t, resultsView, app.state)
	assert.Len(t, app.results.Results(), 2)
}

func TestSearch_BlankQueryIgnored(t *testing.T) {
	app, s := newTestApp(t, Deps{})

	assert.Nil(t, send(app, common.PerformSearchMsg{Query: "   "}))
	assert.Equal(t, searchView, app.state)
	assert.Empty(t, s.begins)
}

func TestSearch_StaleOutcomeIgnored(t *testing.T) {
	app, s := newTestApp(t, Deps{})

	send(app, common.PerformSearchMsg{Query: "kino"})
	send(app, common.PerformSearchMsg{Query: "aria"})

	// the first search finishes last
	send(app, common.SearchResultMsg{Outcome: search.Outcome{Seq: 2, Query: "aria", Results: tracks[1:]}})
	send(app, common.SearchResultMsg{Outcome: search.Outcome{Seq: 1, Query: "kino", Results: tracks}})

	assert.Equal(t, []uint64{2}, s.applied)
	assert.Equal(t, resultsView, app.state)
	require.Len(t, app.results.Results(), 1)
	assert.Equal(t, "Zvezda", app.results.Results()[0].Title)
}

func TestSearch_NewSearchClearsResults(t *testing.T) {
	app, _ := newTestApp(t, Deps{})
	showResults(t, app)

	send(app, common.PerformSearchMsg{Query: "aria"})
	assert.Empty(t, app.results.Results())
	assert.Equal(t, loadingView, app.state)
}

func TestSearch_ErrorAndRetry(t *testing.T) {
	app, s := newTestApp(t, Deps{})

	send(app, common.PerformSearchMsg{Query: "kino"})
	out := search.Outcome{Seq: 1, Query: "kino", Err: &search.Error{Kind: search.KindNetwork}}
	send(app, common.SearchResultMsg{Outcome: out})

	assert.Equal(t, errorView, app.state)
	view := app.View()
	assert.Contains(t, view, out.Err.UserMessage())
	assert.Contains(t, view, "Query: kino")
	assert.Empty(t, app.statusMsg, "expected errors stay inline")

	cmd := send(app, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	assert.IsType(t, common.RetrySearchMsg{}, cmd())

	send(app, common.RetrySearchMsg{})
	assert.Equal(t, loadingView, app.state)
	assert.Equal(t, []string{"kino", "kino"}, s.begins)
}

func TestSearch_UnexpectedErrorAlsoShowsStatus(t *testing.T) {
	app, _ := newTestApp(t, Deps{})

	send(app, common.PerformSearchMsg{Query: "kino"})
	out := search.Outcome{Seq: 1, Query: "kino", Err: &search.Error{Kind: search.KindUnexpected, Err: errors.New("boom")}}
	send(app, common.SearchResultMsg{Outcome: out})

	assert.Equal(t, errorView, app.state)
	assert.True(t, app.statusError)
	assert.Equal(t, out.Err.UserMessage(), app.statusMsg)
}

func TestSearch_ErrorViewBackToSearch(t *testing.T) {
	app, _ := newTestApp(t, Deps{})

	send(app, common.PerformSearchMsg{Query: "kino"})
	send(app, common.SearchResultMsg{Outcome: search.Outcome{Seq: 1, Query: "kino", Err: &search.Error{Kind: search.KindNotFound}}})

	cmd := send(app, tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	send(app, cmd())
	assert.Equal(t, searchView, app.state)
}

func TestSearch_LeavingLoadingKeepsOutcome(t *testing.T) {
	app, _ := newTestApp(t, Deps{})

	send(app, common.PerformSearchMsg{Query: "kino"})
	send(app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, searchView, app.state)

	send(app, common.SearchResultMsg{Outcome: search.Outcome{Seq: 1, Query: "kino", Results: tracks}})
	assert.Equal(t, searchView, app.state)
	assert.Len(t, app.results.Results(), 2)
}

func TestPlayback_ReadyThenDismiss(t *testing.T) {
	handle := &fakeHandle{locator: tracks[0].URL}
	preparer := &fakePreparer{results: []media.Result{{Handle: handle}}}
	session := &media.Session{}
	app, _ := newTestApp(t, Deps{Preparer: preparer, Session: session})
	showResults(t, app)

	send(app, common.AudioSelectedMsg{Audio: tracks[0]})
	assert.Equal(t, actionsView, app.state)

	cmd := send(app, common.ActionChosenMsg{Action: common.ActionPlay, Audio: tracks[0]})
	require.NotNil(t, cmd)
	assert.Equal(t, playerView, app.state)
	assert.Equal(t, []string{tracks[0].URL}, preparer.locators)
	assert.Contains(t, app.View(), "Gruppa krovi")

	send(app, cmd())
	assert.Same(t, handle, session.Current())
	assert.Equal(t, int32(0), handle.releases.Load())

	send(app, common.DismissPlayerMsg{})
	assert.Equal(t, resultsView, app.state)
	assert.Nil(t, session.Current())
	assert.Equal(t, int32(1), handle.releases.Load())
}

func TestPlayback_SecondTrackReleasesFirst(t *testing.T) {
	first := &fakeHandle{locator: tracks[0].URL}
	second := &fakeHandle{locator: tracks[1].URL}
	preparer := &fakePreparer{results: []media.Result{{Handle: first}, {Handle: second}}}
	session := &media.Session{}
	app, _ := newTestApp(t, Deps{Preparer: preparer, Session: session})
	showResults(t, app)

	send(app, send(app, common.ActionChosenMsg{Action: common.ActionPlay, Audio: tracks[0]})())
	require.Same(t, first, session.Current())

	send(app, send(app, common.ActionChosenMsg{Action: common.ActionPlay, Audio: tracks[1]})())
	assert.Equal(t, int32(1), first.releases.Load())
	assert.Same(t, second, session.Current())
	assert.Equal(t, int32(0), second.releases.Load())
}

func TestPlayback_AbandonedHandleReleased(t *testing.T) {
	handle := &fakeHandle{locator: tracks[0].URL}
	preparer := &fakePreparer{results: []media.Result{{Handle: handle}}}
	session := &media.Session{}
	app, _ := newTestApp(t, Deps{Preparer: preparer, Session: session})
	showResults(t, app)

	cmd := send(app, common.ActionChosenMsg{Action: common.ActionPlay, Audio: tracks[0]})
	send(app, common.DismissPlayerMsg{})

	// preparation finishes after the user left the player
	send(app, cmd())
	assert.Nil(t, session.Current())
	assert.Equal(t, int32(1), handle.releases.Load())
	assert.Equal(t, resultsView, app.state)
}

func TestPlayback_FailureReported(t *testing.T) {
	preparer := &fakePreparer{results: []media.Result{{Err: errors.New("mpv not found")}}}
	session := &media.Session{}
	app, _ := newTestApp(t, Deps{Preparer: preparer, Session: session})
	showResults(t, app)

	send(app, send(app, common.ActionChosenMsg{Action: common.ActionPlay, Audio: tracks[0]})())

	assert.Equal(t, playerView, app.state)
	assert.Nil(t, session.Current())
	assert.True(t, app.statusError)
	assert.Contains(t, app.statusMsg, "Could not play")
}

func TestPlayback_Unavailable(t *testing.T) {
	app, _ := newTestApp(t, Deps{})
	showResults(t, app)

	send(app, common.ActionChosenMsg{Action: common.ActionPlay, Audio: tracks[0]})
	assert.Equal(t, resultsView, app.state)
	assert.True(t, app.statusError)
}

func TestCopyLink(t *testing.T) {
	clip := &fakeClipboard{}
	app, _ := newTestApp(t, Deps{Clipboard: clip})
	showResults(t, app)

	cmd := send(app, common.ActionChosenMsg{Action: common.ActionCopyLink, Audio: tracks[1]})
	require.NotNil(t, cmd)
	send(app, cmd())

	assert.Equal(t, []string{tracks[1].URL}, clip.written)
	assert.False(t, app.statusError)
	assert.Contains(t, app.statusMsg, "Link copied")

	clip.err = errors.New("no clipboard tool")
	send(app, send(app, common.ActionChosenMsg{Action: common.ActionCopyLink, Audio: tracks[1]})())
	assert.True(t, app.statusError)
	assert.Contains(t, app.statusMsg, "no clipboard tool")
}

func TestOpenLink(t *testing.T) {
	var opened []string
	app, _ := newTestApp(t, Deps{OpenURL: func(url string) error {
		opened = append(opened, url)
		return nil
	}})
	showResults(t, app)

	cmd := send(app, common.ActionChosenMsg{Action: common.ActionOpenLink, Audio: tracks[0]})
	require.NotNil(t, cmd)
	send(app, cmd())

	assert.Equal(t, []string{tracks[0].URL}, opened)
	assert.Equal(t, "Opened in browser", app.statusMsg)
}

func TestTrackWithoutLink(t *testing.T) {
	app, _ := newTestApp(t, Deps{Clipboard: &fakeClipboard{}})

	send(app, common.ActionChosenMsg{Action: common.ActionCopyLink, Audio: vk.Audio{Title: "Blocked"}})
	assert.True(t, app.statusError)
	assert.Equal(t, "Track has no link", app.statusMsg)
}

func TestDownloadQueuedStatus(t *testing.T) {
	task := downloader.DownloadTask{Artist: "Kino", Title: "Zvezda"}

	tests := []struct {
		name    string
		err     error
		want    string
		isError bool
	}{
		{"queued", nil, "Queued Kino - Zvezda", false},
		{"already queued", downloader.ErrAlreadyQueued, "Kino - Zvezda is already in the queue", false},
		{"already completed", downloader.ErrAlreadyCompleted, "Kino - Zvezda is already downloaded", false},
		{"resuming", downloader.ErrResumingExisting, "Resuming Kino - Zvezda", false},
		{"failure", errors.New("disk full"), "Could not download: disk full", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(t, Deps{})
			send(app, common.DownloadQueuedMsg{Task: task, Err: tt.err})
			assert.Equal(t, tt.want, app.statusMsg)
			assert.Equal(t, tt.isError, app.statusError)
		})
	}
}

func TestStatusClearsOnlyLatest(t *testing.T) {
	app, _ := newTestApp(t, Deps{})

	send(app, common.StatusMsg{Text: "first"})
	send(app, common.StatusMsg{Text: "second"})

	send(app, common.ClearStatusMsg{ID: 1})
	assert.Equal(t, "second", app.statusMsg)

	send(app, common.ClearStatusMsg{ID: 2})
	assert.Empty(t, app.statusMsg)
}

func TestSendAsyncDoesNotBlock(t *testing.T) {
	app, _ := newTestApp(t, Deps{})

	for range cap(app.msgChan) + 10 {
		app.sendAsync(common.StatusMsg{Text: "x"})
	}
	assert.Len(t, app.msgChan, cap(app.msgChan))
}

func TestHelpToggle(t *testing.T) {
	app, _ := newTestApp(t, Deps{})
	showResults(t, app)

	send(app, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.True(t, app.helpComponent.IsVisible())

	send(app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, app.helpComponent.IsVisible())
	assert.Equal(t, resultsView, app.state)
}

func TestQuestionMarkIsTextInSearch(t *testing.T) {
	app, _ := newTestApp(t, Deps{})

	send(app, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.False(t, app.helpComponent.IsVisible())
}
