package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "https://api.vk.com/method/audio.search", cfg.API.SearchURL)
	assert.True(t, cfg.API.Autocomplete)
	assert.Equal(t, 2, cfg.API.Sort)
	assert.Equal(t, 300, cfg.API.Count)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, "mpv", cfg.Player.Binary)
	assert.Equal(t, 2, cfg.Downloads.Concurrent)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("reads yaml file over defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("api:\n  count: 50\n  access_token: abc\n"), 0644))

		cfg, v, err := Load(path)
		require.NoError(t, err)
		require.NotNil(t, v)

		assert.Equal(t, 50, cfg.API.Count)
		assert.Equal(t, "abc", cfg.API.AccessToken)
		assert.Equal(t, 2, cfg.API.Sort)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("api:\n  access_token: from-file\n"), 0644))
		t.Setenv("VMUSIC_API_ACCESS_TOKEN", "from-env")

		cfg, _, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.API.AccessToken)
	})

	t.Run("rejects invalid count", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("api:\n  count: 0\n"), 0644))

		_, _, err := Load(path)
		assert.ErrorContains(t, err, "api.count")
	})
}

func TestSaveDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveDefaultConfig(path))

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().API.SearchURL, cfg.API.SearchURL)
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "vmusic"), GetConfigDir())
}

func TestColoredTextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewColoredTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.With("component", "search").Warn("slow response", "ms", 1200)
	out := buf.String()
	assert.Contains(t, out, ansiYellow+"level=WARN"+ansiReset)
	assert.Contains(t, out, "component=search")
	assert.Contains(t, out, "ms=1200")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}
