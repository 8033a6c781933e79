package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/veriloft/vmusic/internal/config"
	"github.com/veriloft/vmusic/internal/database"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"gorm.io/gorm"
)

// Manager implements the Downloader interface
type Manager struct {
	mu sync.RWMutex

	// Worker pool
	queue    chan string
	pending  []string // enqueued before Start
	active   map[string]*activeDownload
	workerWg sync.WaitGroup

	// State
	running bool
	ctx     context.Context
	cancel  context.CancelFunc

	// Callbacks
	onProgress func(DownloadTask)
	onComplete func(DownloadTask)
	onError    func(DownloadTask, error)

	config *config.DownloadsConfig
	logger *slog.Logger
	db     *gorm.DB

	retryDelay    time.Duration
	newDownloader func(*slog.Logger) *NativeDownloader
}

// activeDownload tracks an in-progress download
type activeDownload struct {
	task     *DownloadTask
	workerID int
	cancel   context.CancelFunc

	stop    DownloadStatus // status to persist once the worker unwinds
	removed bool           // row already deleted, persist nothing
}

var _ Downloader = (*Manager)(nil)

// NewManager creates a new download manager and restores persisted tasks
func NewManager(db *gorm.DB, cfg *config.DownloadsConfig, logger *slog.Logger) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("database cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{
		queue:         make(chan string),
		active:        make(map[string]*activeDownload),
		config:        cfg,
		logger:        logger.With("component", "downloader"),
		db:            db,
		retryDelay:    2 * time.Second,
		newDownloader: NewNativeDownloader,
	}

	if err := m.loadQueueFromDB(); err != nil {
		return nil, fmt.Errorf("failed to load queue from database: %w", err)
	}

	return m, nil
}

// Start starts the worker pool. Workers stop when ctx ends or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("manager already running")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true
	m.startWorkerPool()

	pending := m.pending
	m.pending = nil
	for _, id := range pending {
		m.enqueueLocked(id)
	}

	return nil
}

// Stop stops all workers. Running downloads are persisted as paused.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false

	for _, ad := range m.active {
		ad.stop = StatusPaused
		if ad.cancel != nil {
			ad.cancel()
		}
	}
	m.cancel()
	m.mu.Unlock()

	m.workerWg.Wait()
	return nil
}

// Enqueue queues audio for download. An existing task for the same track is
// handled first: failed or cancelled tasks and completed tasks whose file is
// gone are replaced, a paused task is resumed and returned together with
// ErrResumingExisting, and queued, running or completed tasks are refused.
func (m *Manager) Enqueue(ctx context.Context, audio vk.Audio) (DownloadTask, error) {
	if audio.URL == "" {
		return DownloadTask{}, ErrNoURL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var existing database.Download
	err := m.db.WithContext(ctx).Where("audio_id = ?", audio.Key()).First(&existing).Error
	switch {
	case err == nil:
		task := downloadToTask(existing)
		switch task.Status {
		case StatusFailed, StatusCancelled:
			_ = os.Remove(task.partPath())
			if err := m.deleteTaskFromDB(task.ID); err != nil {
				return DownloadTask{}, err
			}
		case StatusPaused:
			task.Status = StatusQueued
			task.URL = audio.URL
			if err := m.updateTaskInDB(task); err != nil {
				return DownloadTask{}, err
			}
			m.enqueueLocked(task.ID)
			return task, ErrResumingExisting
		case StatusQueued, StatusDownloading:
			return task, ErrAlreadyQueued
		case StatusCompleted:
			if fileExists(task.OutputPath) {
				return task, ErrAlreadyCompleted
			}
			if err := m.deleteTaskFromDB(task.ID); err != nil {
				return DownloadTask{}, err
			}
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return DownloadTask{}, fmt.Errorf("failed to look up existing download: %w", err)
	}

	if err := m.checkDiskSpace(); err != nil {
		return DownloadTask{}, err
	}

	dir := m.config.Path
	if m.config.ByArtist {
		dir = filepath.Join(dir, EncodeFilename(audio.Artist))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return DownloadTask{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	task := DownloadTask{
		ID:         uuid.New().String(),
		AudioID:    audio.Key(),
		Artist:     audio.Artist,
		Title:      audio.Title,
		Duration:   audio.Duration,
		URL:        audio.URL,
		OutputPath: EnsureUniqueFilename(filepath.Join(dir, AudioFilename(audio.Artist, audio.Title))),
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
	}

	if err := m.addTaskToDB(task); err != nil {
		return DownloadTask{}, fmt.Errorf("failed to save task to database: %w", err)
	}
	m.enqueueLocked(task.ID)

	m.logger.Info("download queued", "task_id", task.ID, "track", task.DisplayName(), "path", task.OutputPath)
	return task, nil
}

// Tasks returns all tasks, newest first
func (m *Manager) Tasks(ctx context.Context) ([]DownloadTask, error) {
	var downloads []database.Download
	if err := m.db.WithContext(ctx).Order("created_at DESC").Find(&downloads).Error; err != nil {
		return nil, fmt.Errorf("failed to get downloads: %w", err)
	}

	tasks := make([]DownloadTask, 0, len(downloads))
	for _, d := range downloads {
		tasks = append(tasks, downloadToTask(d))
	}
	return tasks, nil
}

// Find returns the task whose ID starts with idPrefix
func (m *Manager) Find(ctx context.Context, idPrefix string) (DownloadTask, error) {
	if idPrefix == "" {
		return DownloadTask{}, ErrTaskNotFound
	}

	var downloads []database.Download
	if err := m.db.WithContext(ctx).Where("id LIKE ?", idPrefix+"%").Limit(2).Find(&downloads).Error; err != nil {
		return DownloadTask{}, fmt.Errorf("failed to find download: %w", err)
	}

	switch len(downloads) {
	case 0:
		return DownloadTask{}, fmt.Errorf("%w: %s", ErrTaskNotFound, idPrefix)
	case 1:
		return downloadToTask(downloads[0]), nil
	default:
		return DownloadTask{}, fmt.Errorf("download ID prefix %q is ambiguous", idPrefix)
	}
}

// HasActiveDownloads returns true if any task is queued or running
func (m *Manager) HasActiveDownloads() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.active) > 0 {
		return true
	}

	var count int64
	m.db.Model(&database.Download{}).
		Where("status IN ?", []string{string(StatusDownloading), string(StatusQueued)}).
		Count(&count)
	return count > 0
}

// Pause pauses a queued or running download
func (m *Manager) Pause(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ad, ok := m.active[id]; ok {
		ad.stop = StatusPaused
		ad.cancel()
		return nil
	}

	task, err := m.loadTask(id)
	if err != nil {
		return err
	}
	if task.Status != StatusQueued {
		return fmt.Errorf("cannot pause a %s download", task.Status)
	}
	task.Status = StatusPaused
	return m.updateTaskInDB(task)
}

// Resume re-queues a paused download
func (m *Manager) Resume(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.loadTask(id)
	if err != nil {
		return err
	}
	if task.Status != StatusPaused {
		return fmt.Errorf("task is not paused: %s", id)
	}

	task.Status = StatusQueued
	if err := m.updateTaskInDB(task); err != nil {
		return err
	}
	m.enqueueLocked(id)
	return nil
}

// PauseAll pauses every queued or running download
func (m *Manager) PauseAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ad := range m.active {
		ad.stop = StatusPaused
		ad.cancel()
	}

	return m.db.WithContext(ctx).Model(&database.Download{}).
		Where("status = ?", string(StatusQueued)).
		Update("status", string(StatusPaused)).Error
}

// ResumeAll re-queues every paused download
func (m *Manager) ResumeAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var downloads []database.Download
	if err := m.db.WithContext(ctx).Find(&downloads, "status = ?", string(StatusPaused)).Error; err != nil {
		return fmt.Errorf("failed to get paused tasks: %w", err)
	}

	for _, d := range downloads {
		task := downloadToTask(d)
		task.Status = StatusQueued
		if err := m.updateTaskInDB(task); err != nil {
			return err
		}
		m.enqueueLocked(task.ID)
	}
	return nil
}

// Cancel stops a download and discards its partial file
func (m *Manager) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ad, ok := m.active[id]; ok {
		ad.stop = StatusCancelled
		ad.cancel()
		return nil
	}

	task, err := m.loadTask(id)
	if err != nil {
		return err
	}
	if task.Status == StatusCompleted {
		return fmt.Errorf("download already completed: %s", id)
	}

	_ = os.Remove(task.partPath())
	task.Status = StatusCancelled
	task.Progress = 0
	task.BytesDownloaded = 0
	task.Speed = 0
	return m.updateTaskInDB(task)
}

// Retry re-queues a failed or cancelled download
func (m *Manager) Retry(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.loadTask(id)
	if err != nil {
		return err
	}
	if task.Status != StatusFailed && task.Status != StatusCancelled {
		return fmt.Errorf("can only retry failed or cancelled tasks")
	}

	task.Status = StatusQueued
	task.Error = ""
	if err := m.updateTaskInDB(task); err != nil {
		return err
	}
	m.enqueueLocked(id)
	return nil
}

// Remove deletes the task, keeping any finished file
func (m *Manager) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.loadTask(id)
	if err != nil {
		return err
	}
	m.detachLocked(task)
	return m.deleteTaskFromDB(id)
}

// Delete deletes the task together with its file
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, err := m.loadTask(id)
	if err != nil {
		return err
	}
	m.detachLocked(task)

	if task.Status == StatusCompleted && task.OutputPath != "" {
		if err := os.Remove(task.OutputPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
	}
	return m.deleteTaskFromDB(id)
}

// detachLocked stops a running download whose row is about to disappear
func (m *Manager) detachLocked(task DownloadTask) {
	if ad, ok := m.active[task.ID]; ok {
		ad.removed = true
		ad.cancel()
		return
	}
	_ = os.Remove(task.partPath())
}

// ClearFinished deletes completed, failed and cancelled tasks. Files stay.
func (m *Manager) ClearFinished(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var downloads []database.Download
	if err := m.db.WithContext(ctx).Where("status IN ?", []string{
		string(StatusCompleted), string(StatusFailed), string(StatusCancelled),
	}).Find(&downloads).Error; err != nil {
		return fmt.Errorf("failed to get tasks: %w", err)
	}

	for _, d := range downloads {
		if d.Status != string(StatusCompleted) {
			_ = os.Remove(d.FilePath + ".part")
		}
		if err := m.db.Delete(&d).Error; err != nil {
			return fmt.Errorf("failed to delete task %s: %w", d.ID, err)
		}
	}
	return nil
}

// OnProgressUpdate sets the progress update callback
func (m *Manager) OnProgressUpdate(callback func(task DownloadTask)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProgress = callback
}

// OnDownloadComplete sets the download complete callback
func (m *Manager) OnDownloadComplete(callback func(task DownloadTask)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onComplete = callback
}

// OnDownloadError sets the download error callback
func (m *Manager) OnDownloadError(callback func(task DownloadTask, err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = callback
}

// SetConcurrency sets the number of workers used by the next Start
func (m *Manager) SetConcurrency(workers int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Concurrent = min(max(workers, 1), 10)
}

// SetOutputDir sets the directory new downloads are saved to
func (m *Manager) SetOutputDir(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Path = dir
	_ = os.MkdirAll(dir, 0755)
}

func (m *Manager) startWorkerPool() {
	workerCount := m.config.Concurrent
	if workerCount < 1 {
		workerCount = 2
	}

	ctx := m.ctx
	for i := 0; i < workerCount; i++ {
		w := newWorker(i, m)
		m.workerWg.Add(1)
		go func() {
			defer m.workerWg.Done()
			w.run(ctx, m.queue)
		}()
	}
}

// enqueueLocked hands id to the workers without blocking the caller
func (m *Manager) enqueueLocked(id string) {
	if !m.running {
		m.pending = append(m.pending, id)
		return
	}

	ctx := m.ctx
	go func() {
		select {
		case m.queue <- id:
		case <-ctx.Done():
		}
	}()
}

// checkDiskSpace refuses new downloads below the configured free space
func (m *Manager) checkDiskSpace() error {
	if m.config.MinFreeSpace <= 0 {
		return nil
	}

	free, err := freeSpace(m.config.Path)
	if err != nil {
		m.logger.Warn("skipping disk space check", "error", err)
		return nil
	}

	required := uint64(m.config.MinFreeSpace) * 1024 * 1024
	if free < required {
		return fmt.Errorf("insufficient disk space: %s free, %s required",
			humanize.IBytes(free), humanize.IBytes(required))
	}
	return nil
}

// loadQueueFromDB restores tasks left over from a previous run. With
// auto-resume they are queued again, otherwise they are paused.
func (m *Manager) loadQueueFromDB() error {
	var downloads []database.Download
	statuses := []string{string(StatusQueued), string(StatusDownloading)}
	if err := m.db.Where("status IN ?", statuses).Order("created_at ASC").Find(&downloads).Error; err != nil {
		return fmt.Errorf("failed to load downloads: %w", err)
	}

	for _, d := range downloads {
		task := downloadToTask(d)
		task.Speed = 0
		if m.config.AutoResume {
			task.Status = StatusQueued
			m.pending = append(m.pending, task.ID)
		} else {
			task.Status = StatusPaused
		}
		if err := m.updateTaskInDB(task); err != nil {
			return err
		}
	}

	if len(downloads) > 0 {
		m.logger.Info("restored downloads", "count", len(downloads), "auto_resume", m.config.AutoResume)
	}
	return nil
}

func (m *Manager) loadTask(id string) (DownloadTask, error) {
	var download database.Download
	if err := m.db.First(&download, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DownloadTask{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return DownloadTask{}, fmt.Errorf("failed to load task: %w", err)
	}
	return downloadToTask(download), nil
}

func (m *Manager) addTaskToDB(task DownloadTask) error {
	download := taskToDownload(task)
	if err := m.db.Create(&download).Error; err != nil {
		m.logger.Error("failed to create download in db", "error", err, "task_id", task.ID)
		return err
	}
	return nil
}

func (m *Manager) updateTaskInDB(task DownloadTask) error {
	download := taskToDownload(task)
	if err := m.db.Save(&download).Error; err != nil {
		m.logger.Error("failed to update download in db", "error", err, "task_id", task.ID)
		return err
	}
	m.logger.Debug("updated task in db", "task_id", task.ID, "status", task.Status, "progress", task.Progress)
	return nil
}

func (m *Manager) deleteTaskFromDB(id string) error {
	return m.db.Delete(&database.Download{}, "id = ?", id).Error
}

func taskToDownload(task DownloadTask) database.Download {
	return database.Download{
		ID:              task.ID,
		AudioID:         task.AudioID,
		Artist:          task.Artist,
		Title:           task.Title,
		Duration:        task.Duration,
		URL:             task.URL,
		Status:          string(task.Status),
		Progress:        task.Progress,
		BytesDownloaded: task.BytesDownloaded,
		TotalBytes:      task.TotalBytes,
		Speed:           task.Speed,
		Error:           task.Error,
		FilePath:        task.OutputPath,
		CreatedAt:       task.CreatedAt,
		StartedAt:       task.StartedAt,
		CompletedAt:     task.CompletedAt,
	}
}

func downloadToTask(download database.Download) DownloadTask {
	return DownloadTask{
		ID:              download.ID,
		AudioID:         download.AudioID,
		Artist:          download.Artist,
		Title:           download.Title,
		Duration:        download.Duration,
		URL:             download.URL,
		Status:          DownloadStatus(download.Status),
		Progress:        download.Progress,
		BytesDownloaded: download.BytesDownloaded,
		TotalBytes:      download.TotalBytes,
		Speed:           download.Speed,
		Error:           download.Error,
		OutputPath:      download.FilePath,
		CreatedAt:       download.CreatedAt,
		StartedAt:       download.StartedAt,
		CompletedAt:     download.CompletedAt,
	}
}

func (m *Manager) triggerProgressCallback(task DownloadTask) {
	m.mu.RLock()
	callback := m.onProgress
	m.mu.RUnlock()

	if callback != nil {
		go callback(task)
	}
}

func (m *Manager) triggerCompleteCallback(task DownloadTask) {
	m.mu.RLock()
	callback := m.onComplete
	m.mu.RUnlock()

	if callback != nil {
		go callback(task)
	}
}

func (m *Manager) triggerErrorCallback(task DownloadTask, err error) {
	m.mu.RLock()
	callback := m.onError
	m.mu.RUnlock()

	if callback != nil {
		go callback(task, err)
	}
}
