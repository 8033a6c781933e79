package downloader

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veriloft/vmusic/internal/config"
	"github.com/veriloft/vmusic/internal/database"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"gorm.io/gorm"
)

func setupManager(t *testing.T, mutate func(*config.DownloadsConfig)) (*Manager, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := &config.DownloadsConfig{
		Path:       t.TempDir(),
		Concurrent: 2,
		AutoResume: true,
	}
	if mutate != nil {
		mutate(cfg)
	}

	m, err := NewManager(db, cfg, slog.Default())
	require.NoError(t, err)
	m.retryDelay = 10 * time.Millisecond
	t.Cleanup(func() { _ = m.Stop() })
	return m, db
}

func testAudio(url string) vk.Audio {
	return vk.Audio{ID: 456, OwnerID: 123, Artist: "Artist", Title: "Song: Live?", Duration: 200, URL: url}
}

func waitForStatus(t *testing.T, m *Manager, id string, status DownloadStatus) DownloadTask {
	t.Helper()
	var task DownloadTask
	require.Eventually(t, func() bool {
		var err error
		task, err = m.loadTask(id)
		return err == nil && task.Status == status
	}, 5*time.Second, 20*time.Millisecond, "task never reached %s", status)
	return task
}

func TestEncodeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"A? B:C", "A  B C"},
		{`a"b*c|d/e\f<g>h`, "a b c d e f g h"},
		{"Plain Name", "Plain Name"},
		{"???", "   "},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodeFilename(tt.in), tt.in)
	}
}

func TestAudioFilename(t *testing.T) {
	assert.Equal(t, "AC DC - Back In Black.mp3", AudioFilename("AC/DC", "Back In Black"))
	assert.Equal(t, "Artist - Song  Live .mp3", AudioFilename("Artist", "Song: Live?"))
}

func TestEnsureUniqueFilename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.mp3")
	assert.Equal(t, path, EnsureUniqueFilename(path))

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	assert.Equal(t, filepath.Join(dir, "a (1).mp3"), EnsureUniqueFilename(path))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a (1).mp3"), []byte("x"), 0o644))
	assert.Equal(t, filepath.Join(dir, "a (2).mp3"), EnsureUniqueFilename(path))
}

func TestDownloadStatus(t *testing.T) {
	assert.Equal(t, "queued", StatusQueued.String())
	assert.True(t, StatusQueued.IsActive())
	assert.True(t, StatusDownloading.IsActive())
	assert.False(t, StatusPaused.IsActive())

	for _, s := range []DownloadStatus{StatusCompleted, StatusFailed, StatusCancelled} {
		assert.True(t, s.IsComplete(), s)
	}
	assert.False(t, StatusPaused.IsComplete())
}

func TestManager_Enqueue(t *testing.T) {
	ctx := context.Background()
	m, _ := setupManager(t, nil)

	task, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "123_456", task.AudioID)
	assert.Equal(t, StatusQueued, task.Status)
	assert.Equal(t, filepath.Join(m.config.Path, "Artist - Song  Live .mp3"), task.OutputPath)
	assert.NotEmpty(t, task.ID)

	tasks, err := m.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)

	_, err = m.Enqueue(ctx, vk.Audio{ID: 1, Artist: "a", Title: "b"})
	assert.ErrorIs(t, err, ErrNoURL)
}

func TestManager_EnqueueExisting(t *testing.T) {
	ctx := context.Background()

	t.Run("queued is refused", func(t *testing.T) {
		m, _ := setupManager(t, nil)
		first, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
		require.NoError(t, err)

		again, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
		assert.ErrorIs(t, err, ErrAlreadyQueued)
		assert.Equal(t, first.ID, again.ID)
	})

	t.Run("paused is resumed", func(t *testing.T) {
		m, _ := setupManager(t, nil)
		first, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
		require.NoError(t, err)
		require.NoError(t, m.Pause(ctx, first.ID))

		again, err := m.Enqueue(ctx, testAudio("https://example.com/fresh.mp3"))
		assert.ErrorIs(t, err, ErrResumingExisting)
		assert.Equal(t, first.ID, again.ID)

		stored, err := m.loadTask(first.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusQueued, stored.Status)
		assert.Equal(t, "https://example.com/fresh.mp3", stored.URL)
	})

	t.Run("failed and cancelled are replaced", func(t *testing.T) {
		for _, status := range []DownloadStatus{StatusFailed, StatusCancelled} {
			m, db := setupManager(t, nil)
			first, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
			require.NoError(t, err)
			require.NoError(t, db.Model(&database.Download{}).Where("id = ?", first.ID).Update("status", string(status)).Error)

			again, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
			require.NoError(t, err, status)
			assert.NotEqual(t, first.ID, again.ID)

			tasks, err := m.Tasks(ctx)
			require.NoError(t, err)
			assert.Len(t, tasks, 1)
		}
	})

	t.Run("completed with file is refused", func(t *testing.T) {
		m, db := setupManager(t, nil)
		first, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(first.OutputPath, []byte("mp3"), 0o644))
		require.NoError(t, db.Model(&database.Download{}).Where("id = ?", first.ID).Update("status", string(StatusCompleted)).Error)

		_, err = m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
		assert.ErrorIs(t, err, ErrAlreadyCompleted)
	})

	t.Run("completed with missing file is replaced", func(t *testing.T) {
		m, db := setupManager(t, nil)
		first, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
		require.NoError(t, err)
		require.NoError(t, db.Model(&database.Download{}).Where("id = ?", first.ID).Update("status", string(StatusCompleted)).Error)

		again, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, again.ID)
	})
}

func TestManager_ByArtist(t *testing.T) {
	m, _ := setupManager(t, func(cfg *config.DownloadsConfig) { cfg.ByArtist = true })

	task, err := m.Enqueue(context.Background(), vk.Audio{ID: 1, OwnerID: 1, Artist: "AC/DC", Title: "T", URL: "https://example.com/a.mp3"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(m.config.Path, "AC DC", "AC DC - T.mp3"), task.OutputPath)
	assert.DirExists(t, filepath.Join(m.config.Path, "AC DC"))
}

func TestManager_Download(t *testing.T) {
	payload := bytes.Repeat([]byte("vmusic"), 50_000)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "a.mp3", time.Time{}, bytes.NewReader(payload))
	}))
	defer server.Close()

	ctx := context.Background()
	m, _ := setupManager(t, nil)

	completed := make(chan DownloadTask, 1)
	m.OnDownloadComplete(func(task DownloadTask) { completed <- task })

	task, err := m.Enqueue(ctx, testAudio(server.URL+"/a.mp3"))
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))

	select {
	case done := <-completed:
		assert.Equal(t, task.ID, done.ID)
		assert.Equal(t, StatusCompleted, done.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("download did not complete")
	}

	stored := waitForStatus(t, m, task.ID, StatusCompleted)
	assert.Equal(t, float64(100), stored.Progress)
	assert.Equal(t, int64(len(payload)), stored.BytesDownloaded)
	assert.NotNil(t, stored.CompletedAt)

	data, err := os.ReadFile(task.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.NoFileExists(t, task.OutputPath+".part")
}

func TestManager_ResumesPartFile(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 10_000)
	var sawRange atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRange.Store(r.Header.Get("Range"))
		http.ServeContent(w, r, "a.mp3", time.Time{}, bytes.NewReader(payload))
	}))
	defer server.Close()

	ctx := context.Background()
	m, _ := setupManager(t, nil)

	task, err := m.Enqueue(ctx, testAudio(server.URL+"/a.mp3"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(task.partPath(), payload[:4000], 0o644))

	require.NoError(t, m.Start(ctx))
	waitForStatus(t, m, task.ID, StatusCompleted)

	assert.Equal(t, "bytes=4000-", sawRange.Load())
	data, err := os.ReadFile(task.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestManager_DownloadFailure(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	ctx := context.Background()
	m, _ := setupManager(t, func(cfg *config.DownloadsConfig) { cfg.MaxRetries = 2 })

	failed := make(chan error, 1)
	m.OnDownloadError(func(task DownloadTask, err error) { failed <- err })

	task, err := m.Enqueue(ctx, testAudio(server.URL+"/a.mp3"))
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))

	select {
	case err := <-failed:
		assert.Contains(t, err.Error(), "403")
	case <-time.After(5 * time.Second):
		t.Fatal("error callback not called")
	}

	stored := waitForStatus(t, m, task.ID, StatusFailed)
	assert.Contains(t, stored.Error, "403")
	assert.Equal(t, int32(3), hits.Load())

	require.NoError(t, m.Retry(ctx, task.ID))
	waitForStatus(t, m, task.ID, StatusFailed)
	assert.Equal(t, int32(6), hits.Load())
}

func TestManager_PauseResumeCancel(t *testing.T) {
	ctx := context.Background()
	m, _ := setupManager(t, nil)

	task, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
	require.NoError(t, err)

	require.NoError(t, m.Pause(ctx, task.ID))
	stored, err := m.loadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, stored.Status)

	assert.Error(t, m.Pause(ctx, task.ID))
	assert.Error(t, m.Retry(ctx, task.ID))

	require.NoError(t, m.Resume(ctx, task.ID))
	stored, err = m.loadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, stored.Status)

	require.NoError(t, os.WriteFile(task.partPath(), []byte("partial"), 0o644))
	require.NoError(t, m.Cancel(ctx, task.ID))
	stored, err = m.loadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)
	assert.NoFileExists(t, task.partPath())

	require.NoError(t, m.Retry(ctx, task.ID))
	stored, err = m.loadTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, stored.Status)
}

func TestManager_PauseRunningDownload(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000000")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(make([]byte, 1000))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx := context.Background()
	m, _ := setupManager(t, nil)

	task, err := m.Enqueue(ctx, testAudio(server.URL+"/a.mp3"))
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx))

	waitForStatus(t, m, task.ID, StatusDownloading)
	require.Eventually(t, m.HasActiveDownloads, time.Second, 10*time.Millisecond)

	require.NoError(t, m.Pause(ctx, task.ID))
	waitForStatus(t, m, task.ID, StatusPaused)
}

func TestManager_RemoveAndDelete(t *testing.T) {
	ctx := context.Background()
	m, db := setupManager(t, nil)

	kept, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(kept.OutputPath, []byte("mp3"), 0o644))
	require.NoError(t, db.Model(&database.Download{}).Where("id = ?", kept.ID).Update("status", string(StatusCompleted)).Error)

	require.NoError(t, m.Remove(ctx, kept.ID))
	assert.FileExists(t, kept.OutputPath)
	_, err = m.loadTask(kept.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	other := testAudio("https://example.com/b.mp3")
	other.ID = 789
	deleted, err := m.Enqueue(ctx, other)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(deleted.OutputPath, []byte("mp3"), 0o644))
	require.NoError(t, db.Model(&database.Download{}).Where("id = ?", deleted.ID).Update("status", string(StatusCompleted)).Error)

	require.NoError(t, m.Delete(ctx, deleted.ID))
	assert.NoFileExists(t, deleted.OutputPath)

	assert.ErrorIs(t, m.Remove(ctx, "missing"), ErrTaskNotFound)
}

func TestManager_Find(t *testing.T) {
	ctx := context.Background()
	m, _ := setupManager(t, nil)

	task, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
	require.NoError(t, err)

	found, err := m.Find(ctx, task.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, task.ID, found.ID)

	_, err = m.Find(ctx, "zzzz")
	assert.ErrorIs(t, err, ErrTaskNotFound)
	_, err = m.Find(ctx, "")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestManager_ClearFinished(t *testing.T) {
	ctx := context.Background()
	m, db := setupManager(t, nil)

	done, err := m.Enqueue(ctx, testAudio("https://example.com/a.mp3"))
	require.NoError(t, err)
	require.NoError(t, db.Model(&database.Download{}).Where("id = ?", done.ID).Update("status", string(StatusFailed)).Error)

	other := testAudio("https://example.com/b.mp3")
	other.ID = 789
	_, err = m.Enqueue(ctx, other)
	require.NoError(t, err)

	require.NoError(t, m.ClearFinished(ctx))
	tasks, err := m.Tasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "123_789", tasks[0].AudioID)
}

func TestManager_RestoresQueue(t *testing.T) {
	for _, autoResume := range []bool{true, false} {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		require.NoError(t, err)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		sqlDB.SetMaxOpenConns(1)
		require.NoError(t, database.Migrate(db))

		require.NoError(t, db.Create(&database.Download{
			ID: "interrupted", AudioID: "1_1", Artist: "a", Title: "b", URL: "https://example.com/a.mp3",
			Status: string(StatusDownloading), Speed: 1000, CreatedAt: time.Now(),
		}).Error)

		cfg := &config.DownloadsConfig{Path: t.TempDir(), Concurrent: 1, AutoResume: autoResume}
		m, err := NewManager(db, cfg, slog.Default())
		require.NoError(t, err)

		task, err := m.loadTask("interrupted")
		require.NoError(t, err)
		assert.Equal(t, int64(0), task.Speed)
		if autoResume {
			assert.Equal(t, StatusQueued, task.Status)
			assert.Equal(t, []string{"interrupted"}, m.pending)
		} else {
			assert.Equal(t, StatusPaused, task.Status)
			assert.Empty(t, m.pending)
		}
	}
}

func TestManager_SetConcurrency(t *testing.T) {
	m, _ := setupManager(t, nil)

	m.SetConcurrency(4)
	assert.Equal(t, 4, m.config.Concurrent)
	m.SetConcurrency(0)
	assert.Equal(t, 1, m.config.Concurrent)
	m.SetConcurrency(50)
	assert.Equal(t, 10, m.config.Concurrent)

	dir := filepath.Join(t.TempDir(), "new_output")
	m.SetOutputDir(dir)
	assert.Equal(t, dir, m.config.Path)
	assert.DirExists(t, dir)
}

func TestManager_StartTwice(t *testing.T) {
	m, _ := setupManager(t, nil)
	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))
	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
}
