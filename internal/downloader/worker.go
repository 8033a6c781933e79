package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// worker takes tasks off the queue one at a time
type worker struct {
	id         int
	manager    *Manager
	logger     *slog.Logger
	downloader *NativeDownloader
}

func newWorker(id int, manager *Manager) *worker {
	logger := manager.logger.With("worker_id", id)
	return &worker{
		id:         id,
		manager:    manager,
		logger:     logger,
		downloader: manager.newDownloader(logger),
	}
}

// run processes tasks until ctx is cancelled
func (w *worker) run(ctx context.Context, queue <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-queue:
			w.processTask(ctx, id)
		}
	}
}

// processTask downloads one task and persists how it ended. Tasks that were
// paused, cancelled or removed while waiting in the queue are skipped.
func (w *worker) processTask(ctx context.Context, id string) {
	m := w.manager

	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	if _, busy := m.active[id]; busy {
		m.mu.Unlock()
		return
	}
	task, err := m.loadTask(id)
	if err != nil || task.Status != StatusQueued {
		m.mu.Unlock()
		return
	}
	ad := &activeDownload{task: &task, workerID: w.id, cancel: cancel}
	m.active[id] = ad

	task.Status = StatusDownloading
	task.Error = ""
	now := time.Now()
	task.StartedAt = &now
	_ = m.updateTaskInDB(task)
	m.mu.Unlock()

	m.triggerProgressCallback(task)
	w.logger.Info("download started", "task_id", id, "track", task.DisplayName())

	err = w.downloadWithRetry(taskCtx, &task)

	m.mu.Lock()
	stop, removed := ad.stop, ad.removed
	delete(m.active, id)
	m.mu.Unlock()

	switch {
	case removed:
		_ = os.Remove(task.partPath())
		w.logger.Info("download removed", "task_id", id)

	case err == nil:
		task.Status = StatusCompleted
		completedAt := time.Now()
		task.CompletedAt = &completedAt
		_ = m.updateTaskInDB(task)
		w.logger.Info("download completed", "task_id", id, "path", task.OutputPath)
		m.triggerCompleteCallback(task)

	case stop != "":
		task.Status = stop
		task.Speed = 0
		if stop == StatusCancelled {
			_ = os.Remove(task.partPath())
			task.Progress = 0
			task.BytesDownloaded = 0
		}
		_ = m.updateTaskInDB(task)
		m.triggerProgressCallback(task)

	case ctx.Err() != nil:
		// Manager stopping; pick it up again next time.
		task.Status = StatusPaused
		task.Speed = 0
		_ = m.updateTaskInDB(task)

	default:
		task.Status = StatusFailed
		task.Error = err.Error()
		task.Speed = 0
		_ = m.updateTaskInDB(task)
		w.logger.Warn("download failed", "task_id", id, "error", err)
		m.triggerErrorCallback(task, err)
	}
}

// downloadWithRetry retries failed attempts after retryDelay, keeping the
// part file so later attempts resume
func (w *worker) downloadWithRetry(ctx context.Context, task *DownloadTask) error {
	m := w.manager
	maxRetries := max(m.config.MaxRetries, 0)

	progress := func(t DownloadTask) {
		_ = m.updateTaskInDB(t)
		m.triggerProgressCallback(t)
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			w.logger.Info("retrying download", "attempt", attempt, "max_retries", maxRetries, "task_id", task.ID)
			select {
			case <-time.After(m.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = w.downloader.Download(ctx, task, progress)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(lastErr, context.Canceled) {
			return lastErr
		}

		if attempt < maxRetries {
			task.Error = fmt.Sprintf("Attempt %d failed: %v. Retrying...", attempt+1, lastErr)
			progress(*task)
		}
	}

	return lastErr
}
