// Package downloader saves tracks to disk through a persisted queue and a
// pool of workers.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// NativeDownloader streams a track over a single HTTP connection into a
// ".part" file, resuming from its size when the server honours ranges
type NativeDownloader struct {
	client *resty.Client
	logger *slog.Logger

	progressInterval time.Duration
}

// NewNativeDownloader creates a downloader. Downloads have no overall
// timeout; cancellation comes from the context.
func NewNativeDownloader(logger *slog.Logger) *NativeDownloader {
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New().
		SetHeader("User-Agent", defaultUserAgent).
		SetDoNotParseResponse(true)

	return &NativeDownloader{
		client:           client,
		logger:           logger,
		progressInterval: 500 * time.Millisecond,
	}
}

// Download fetches task.URL into task.OutputPath. progress is called with a
// copy of the task at most once per interval while bytes arrive.
func (d *NativeDownloader) Download(ctx context.Context, task *DownloadTask, progress func(DownloadTask)) error {
	partPath := task.partPath()

	var offset int64
	if info, err := os.Stat(partPath); err == nil {
		offset = info.Size()
	}

	req := d.client.R().SetContext(ctx)
	if offset > 0 {
		req.SetHeader("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := req.Get(task.URL)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	body := resp.RawBody()
	defer func() { _ = body.Close() }()

	flags := os.O_CREATE | os.O_WRONLY
	contentLength := resp.RawResponse.ContentLength

	switch resp.StatusCode() {
	case http.StatusPartialContent:
		flags |= os.O_APPEND
		if contentLength >= 0 {
			task.TotalBytes = offset + contentLength
		}
		d.logger.Debug("resuming download", "task_id", task.ID, "offset", offset)
	case http.StatusOK:
		flags |= os.O_TRUNC
		offset = 0
		task.TotalBytes = max(contentLength, 0)
	case http.StatusRequestedRangeNotSatisfiable:
		// Stale part file; start over on the next attempt.
		_ = os.Remove(partPath)
		return fmt.Errorf("server rejected resume range at byte %d", offset)
	default:
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	out, err := os.OpenFile(partPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	downloaded := offset
	task.BytesDownloaded = downloaded

	buffer := make([]byte, 32*1024)
	lastUpdate := time.Now()
	lastDownloaded := downloaded

	for {
		n, readErr := body.Read(buffer)
		if n > 0 {
			if _, err := out.Write(buffer[:n]); err != nil {
				return fmt.Errorf("failed to write to file: %w", err)
			}
			downloaded += int64(n)
			task.BytesDownloaded = downloaded
			if task.TotalBytes > 0 {
				task.Progress = float64(downloaded) / float64(task.TotalBytes) * 100.0
			}

			if elapsed := time.Since(lastUpdate); elapsed >= d.progressInterval {
				task.Speed = int64(float64(downloaded-lastDownloaded) / elapsed.Seconds())
				lastUpdate = time.Now()
				lastDownloaded = downloaded
				if progress != nil {
					progress(*task)
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("error reading response: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("error closing output file: %w", err)
	}
	if err := os.Rename(partPath, task.OutputPath); err != nil {
		return fmt.Errorf("failed to move finished download into place: %w", err)
	}

	task.Progress = 100.0
	task.BytesDownloaded = downloaded
	if task.TotalBytes == 0 {
		task.TotalBytes = downloaded
	}
	task.Speed = 0
	return nil
}
