package common

import (
	"time"

	"github.com/veriloft/vmusic/internal/downloader"
	"github.com/veriloft/vmusic/internal/media"
	"github.com/veriloft/vmusic/internal/player"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/search"
)

// Custom tea.Msg types passed between the app and its components.

// GoToSearchMsg switches to the search view.
type GoToSearchMsg struct{}

// GoToDownloadsMsg switches to the downloads view.
type GoToDownloadsMsg struct{}

// BackMsg goes back to the previous view.
type BackMsg struct{}

// PerformSearchMsg triggers a search.
type PerformSearchMsg struct {
	Query string
}

// RetrySearchMsg replays the last query from the error panel.
type RetrySearchMsg struct{}

// SearchResultMsg carries the outcome of one sequence-stamped search.
type SearchResultMsg struct {
	Outcome search.Outcome
}

// RecentQueriesMsg carries the latest distinct queries for the search view.
type RecentQueriesMsg struct {
	Queries []string
}

// AudioSelectedMsg opens the action sheet for a track.
type AudioSelectedMsg struct {
	Audio vk.Audio
}

// Action is an entry of the track action sheet.
type Action int

const (
	ActionPlay Action = iota
	ActionDownload
	ActionCopyLink
	ActionOpenLink
)

func (a Action) String() string {
	switch a {
	case ActionPlay:
		return "Play"
	case ActionDownload:
		return "Download"
	case ActionCopyLink:
		return "Copy link"
	case ActionOpenLink:
		return "Open in browser"
	default:
		return "Unknown"
	}
}

// ActionChosenMsg is sent when an action is picked for a track.
type ActionChosenMsg struct {
	Action Action
	Audio  vk.Audio
}

// MediaPreparedMsg delivers the single result of a media preparation.
// Seq identifies the play request it answers.
type MediaPreparedMsg struct {
	Seq    uint64
	Audio  vk.Audio
	Result media.Result
}

// PlaybackTickMsg asks for a progress refresh of the live handle.
type PlaybackTickMsg struct{}

// PlaybackProgressMsg carries the progress of the live handle.
type PlaybackProgressMsg struct {
	Progress *player.PlaybackProgress
	Err      error
}

// PlaybackEndedMsg is sent when preparation failed or the player died.
type PlaybackEndedMsg struct {
	Err error
}

// DismissPlayerMsg releases the live handle and leaves the player view.
type DismissPlayerMsg struct{}

// DownloadQueuedMsg reports the result of an enqueue request.
type DownloadQueuedMsg struct {
	Task downloader.DownloadTask
	Err  error
}

// DownloadsRefreshMsg carries a fresh copy of the download queue.
type DownloadsRefreshMsg struct {
	Tasks []downloader.DownloadTask
	Err   error
}

// DownloadsTickMsg periodically refreshes the downloads view.
type DownloadsTickMsg time.Time

// DownloadAction is an operation on a queued task.
type DownloadAction int

const (
	DownloadPause DownloadAction = iota
	DownloadResume
	DownloadCancel
	DownloadRetry
	DownloadRemove
	DownloadClearFinished
)

// DownloadEventMsg forwards a manager callback into the program.
type DownloadEventMsg struct {
	Task downloader.DownloadTask
	Err  error
}

// StatusMsg shows a transient line in the footer.
type StatusMsg struct {
	Text  string
	Error bool
}

// ClearStatusMsg hides the footer line if it is still the one with ID.
type ClearStatusMsg struct {
	ID int
}
