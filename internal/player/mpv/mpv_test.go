package mpv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veriloft/vmusic/internal/player"
)

func TestNewMPVPlayer(t *testing.T) {
	p := NewMPVPlayer(Options{})
	assert.Equal(t, player.StateIdle, p.State())
	assert.Equal(t, GetMPVExecutable(DetectPlatform()), p.opts.Binary)
	assert.Equal(t, 10*time.Second, p.opts.IPCTimeout)
	assert.Empty(t, p.Locator())
}

func TestBuildMPVArgs(t *testing.T) {
	ipc := &IPCConfig{Type: IPCUnixSocket, Address: "/tmp/vmusic-mpv-test.sock", IsSocket: true}
	base := []string{
		"--input-ipc-server=/tmp/vmusic-mpv-test.sock",
		"--idle=yes",
		"--keep-open=yes",
		"--no-video",
		"--no-terminal",
		"--no-ytdl",
	}

	tests := []struct {
		name     string
		opts     Options
		play     player.PlayOptions
		contains []string
		excludes []string
	}{
		{
			name:     "defaults",
			contains: append(append([]string{}, base...), "--no-config", "--msg-level=all=warn", "--user-agent="+defaultUserAgent),
		},
		{
			name:     "user config and debug",
			opts:     Options{LoadUserConfig: true, Debug: true},
			excludes: []string{"--no-config", "--msg-level=all=warn"},
		},
		{
			name: "play options",
			play: player.PlayOptions{
				StartTime: 30 * time.Second,
				Volume:    70,
				UserAgent: "vmusic/1.0",
				Title:     "Artist - Title",
				ExtraArgs: []string{"--af=loudnorm"},
			},
			contains: []string{
				"--start=30.000000",
				"--volume=70",
				"--user-agent=vmusic/1.0",
				"--force-media-title=Artist - Title",
				"--af=loudnorm",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewMPVPlayer(tt.opts)
			p.ipcConfig = ipc

			args := p.buildMPVArgs("https://cs1.vkuseraudio.net/a.mp3", tt.play)
			assert.Equal(t, "https://cs1.vkuseraudio.net/a.mp3", args[len(args)-1], "URL must be last")
			assert.Equal(t, base, args[:len(base)])
			for _, want := range tt.contains {
				assert.Contains(t, args, want)
			}
			for _, unwanted := range tt.excludes {
				assert.NotContains(t, args, unwanted)
			}
		})
	}
}

func TestOpen_MissingBinary(t *testing.T) {
	p := NewMPVPlayer(Options{Binary: "vmusic-test-no-such-mpv"})

	err := p.Open(context.Background(), "https://example.com/a.mp3", player.PlayOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in PATH")
	assert.Equal(t, player.StateError, p.State())

	require.NoError(t, p.Release())
	assert.Equal(t, player.StateReleased, p.State())
	assert.Empty(t, p.Locator())

	assert.ErrorIs(t, p.Open(context.Background(), "https://example.com/a.mp3", player.PlayOptions{}), player.ErrReleased)
}

func TestOperationsWithoutProcess(t *testing.T) {
	ctx := context.Background()
	p := NewMPVPlayer(Options{})

	_, err := p.GetProgress(ctx)
	assert.Error(t, err)
	assert.Error(t, p.TogglePause(ctx))

	require.NoError(t, p.Release())
	require.NoError(t, p.Release())

	_, err = p.GetProgress(ctx)
	assert.ErrorIs(t, err, player.ErrReleased)
	assert.ErrorIs(t, p.TogglePause(ctx), player.ErrReleased)
	assert.ErrorIs(t, p.Seek(ctx, 5*time.Second), player.ErrReleased)
	assert.ErrorIs(t, p.SetVolume(ctx, 50), player.ErrReleased)
}

func TestReleaseClearsCallbacks(t *testing.T) {
	p := NewMPVPlayer(Options{})
	p.OnPlaybackEnd(func() {})
	p.OnError(func(error) {})

	require.NoError(t, p.Release())
	assert.Nil(t, p.onEnd)
	assert.Nil(t, p.onError)
}

func TestAcquirer_MissingBinary(t *testing.T) {
	a := NewAcquirer(Options{Binary: "vmusic-test-no-such-mpv"}, player.PlayOptions{})

	h, err := a.Acquire(context.Background(), "https://example.com/a.mp3")
	assert.Error(t, err)
	assert.Nil(t, h)
}
