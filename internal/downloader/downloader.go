package downloader

import (
	"context"
	"errors"
	"time"

	"github.com/veriloft/vmusic/internal/providers/vk"
)

var (
	// ErrAlreadyQueued is returned when the track is queued or downloading
	ErrAlreadyQueued = errors.New("already queued")
	// ErrAlreadyCompleted is returned when the track was downloaded and the file still exists
	ErrAlreadyCompleted = errors.New("already downloaded")
	// ErrResumingExisting is returned alongside the task when a paused download was resumed instead
	ErrResumingExisting = errors.New("resuming existing download")
	// ErrNoURL is returned for tracks without a stream URL
	ErrNoURL = errors.New("track has no download URL")
	// ErrTaskNotFound is returned for unknown task IDs
	ErrTaskNotFound = errors.New("download not found")
)

// Downloader defines the interface for download managers
type Downloader interface {
	Enqueue(ctx context.Context, audio vk.Audio) (DownloadTask, error)
	Tasks(ctx context.Context) ([]DownloadTask, error)
	Find(ctx context.Context, idPrefix string) (DownloadTask, error)

	Start(ctx context.Context) error
	Stop() error
	Pause(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string) error
	Retry(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	PauseAll(ctx context.Context) error
	ResumeAll(ctx context.Context) error
	ClearFinished(ctx context.Context) error

	OnProgressUpdate(callback func(task DownloadTask))
	OnDownloadComplete(callback func(task DownloadTask))
	OnDownloadError(callback func(task DownloadTask, err error))

	SetConcurrency(workers int)
	SetOutputDir(dir string)
}

// DownloadTask is one track being saved to disk
type DownloadTask struct {
	ID              string         `json:"id"`
	AudioID         string         `json:"audio_id"`
	Artist          string         `json:"artist"`
	Title           string         `json:"title"`
	Duration        int            `json:"duration"`
	URL             string         `json:"url"`
	OutputPath      string         `json:"output_path"`
	Status          DownloadStatus `json:"status"`
	Progress        float64        `json:"progress"` // 0.0 - 100.0
	BytesDownloaded int64          `json:"bytes_downloaded"`
	TotalBytes      int64          `json:"total_bytes"`
	Speed           int64          `json:"speed"` // bytes per second
	Error           string         `json:"error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// DisplayName returns "Artist - Title"
func (t DownloadTask) DisplayName() string {
	return t.Artist + " - " + t.Title
}

// partPath is where bytes land until the download completes
func (t DownloadTask) partPath() string {
	return t.OutputPath + ".part"
}

// DownloadStatus represents the status of a download task
type DownloadStatus string

const (
	StatusQueued      DownloadStatus = "queued"
	StatusDownloading DownloadStatus = "downloading"
	StatusPaused      DownloadStatus = "paused"
	StatusCompleted   DownloadStatus = "completed"
	StatusFailed      DownloadStatus = "failed"
	StatusCancelled   DownloadStatus = "cancelled"
)

// String returns the string representation of DownloadStatus
func (s DownloadStatus) String() string {
	return string(s)
}

// IsActive returns true if the download is queued or running
func (s DownloadStatus) IsActive() bool {
	return s == StatusQueued || s == StatusDownloading
}

// IsComplete returns true if the download is in a terminal state
func (s DownloadStatus) IsComplete() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}
