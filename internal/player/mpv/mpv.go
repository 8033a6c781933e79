package mpv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/diniamo/gopv"
	"github.com/veriloft/vmusic/internal/config"
	"github.com/veriloft/vmusic/internal/player"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Options configures how mpv is launched
type Options struct {
	Binary         string
	LoadUserConfig bool
	Debug          bool
	IPCTimeout     time.Duration
	Logger         *slog.Logger
}

// OptionsFromConfig builds Options from the player section of the config
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	return Options{
		Binary:         cfg.Player.Binary,
		LoadUserConfig: cfg.Player.LoadUserConfig,
		Debug:          cfg.Advanced.Debug,
		IPCTimeout:     cfg.Player.IPCTimeout,
		Logger:         logger,
	}
}

// MPVPlayer plays one audio stream through an mpv process driven over IPC
type MPVPlayer struct {
	mu sync.RWMutex

	client    *gopv.Client
	cmd       *exec.Cmd
	ipcConfig *IPCConfig
	platform  Platform
	opts      Options
	logger    *slog.Logger

	state    player.PlaybackState
	url      string
	playOpts player.PlayOptions

	onEnd   func()
	onError func(error)

	cancel context.CancelFunc
	exited chan struct{}
}

var _ player.Player = (*MPVPlayer)(nil)

// NewMPVPlayer creates an idle player
func NewMPVPlayer(opts Options) *MPVPlayer {
	if opts.IPCTimeout == 0 {
		opts.IPCTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	platform := DetectPlatform()
	if opts.Binary == "" {
		opts.Binary = GetMPVExecutable(platform)
	}

	return &MPVPlayer{
		platform: platform,
		opts:     opts,
		logger:   opts.Logger.With("component", "mpv"),
		state:    player.StateIdle,
	}
}

// Locator returns the URL being played
func (p *MPVPlayer) Locator() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

// State returns the current playback state
func (p *MPVPlayer) State() player.PlaybackState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Open starts mpv and blocks until its IPC socket accepts commands. On
// failure the process is killed and the player is left in StateError.
func (p *MPVPlayer) Open(ctx context.Context, url string, opts player.PlayOptions) error {
	p.mu.Lock()
	switch p.state {
	case player.StateIdle:
	case player.StateReleased:
		p.mu.Unlock()
		return player.ErrReleased
	default:
		p.mu.Unlock()
		return fmt.Errorf("player already opened (state %s)", p.state)
	}

	if _, err := exec.LookPath(p.opts.Binary); err != nil {
		p.state = player.StateError
		p.mu.Unlock()
		return fmt.Errorf("%s not found in PATH, please install mpv: %w", p.opts.Binary, err)
	}

	ipcConfig, err := GetIPCConfig(p.platform)
	if err != nil {
		p.state = player.StateError
		p.mu.Unlock()
		return fmt.Errorf("failed to generate IPC config: %w", err)
	}
	p.ipcConfig = ipcConfig
	p.url = url
	p.playOpts = opts

	cmd := exec.Command(p.opts.Binary, p.buildMPVArgs(url, opts)...)
	// Keep mpv away from the terminal the TUI is drawing on.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setupProcessAttributes(cmd)

	if err := cmd.Start(); err != nil {
		p.cleanupIPC()
		p.state = player.StateError
		p.mu.Unlock()
		return fmt.Errorf("failed to start %s: %w", p.opts.Binary, err)
	}

	p.cmd = cmd
	p.state = player.StateLoading
	p.exited = make(chan struct{})
	exited := p.exited
	p.mu.Unlock()

	go p.monitorProcess(cmd, exited)

	waitCtx, cancel := context.WithTimeout(ctx, p.opts.IPCTimeout)
	defer cancel()

	if err := waitForIPC(waitCtx, ipcConfig, exited); err != nil {
		p.fail()
		return fmt.Errorf("mpv IPC at %s not ready: %w", ipcConfig.Address, err)
	}

	client, err := gopv.Connect(GetGopvConnectionString(ipcConfig), p.reportError)
	if err != nil {
		p.fail()
		return fmt.Errorf("failed to connect to mpv IPC at %s: %w", ipcConfig.Address, err)
	}

	p.mu.Lock()
	if p.state != player.StateLoading {
		// Released while we were connecting.
		p.mu.Unlock()
		go quit(client)
		return player.ErrReleased
	}
	p.client = client
	p.state = player.StatePlaying
	monCtx, monCancel := context.WithCancel(context.Background())
	p.cancel = monCancel
	p.mu.Unlock()

	go p.monitorEOF(monCtx)

	p.logger.Debug("mpv ready", "url", url, "ipc", ipcConfig.Address)
	return nil
}

// Release stops playback, resets the player and frees the process and IPC
// resources. The player cannot be reused afterwards.
func (p *MPVPlayer) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == player.StateReleased {
		return nil
	}
	p.state = player.StateReleased

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	// gopv closes the client itself once mpv goes away.
	if p.client != nil {
		go quit(p.client)
		p.client = nil
	}

	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cmd = nil

	p.cleanupIPC()

	p.url = ""
	p.playOpts = player.PlayOptions{}
	p.onEnd = nil
	p.onError = nil

	return nil
}

func quit(client *gopv.Client) {
	done := make(chan struct{})
	go func() {
		_, _ = client.Request("quit")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
	}
}

func (p *MPVPlayer) fail() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.cmd = nil
	p.cleanupIPC()
	if p.state != player.StateReleased {
		p.state = player.StateError
	}
}

func (p *MPVPlayer) cleanupIPC() {
	if p.ipcConfig != nil && p.ipcConfig.IsSocket {
		_ = os.Remove(p.ipcConfig.Address)
	}
	p.ipcConfig = nil
}

func (p *MPVPlayer) reportError(err error) {
	p.mu.RLock()
	cb := p.onError
	released := p.state == player.StateReleased
	p.mu.RUnlock()

	if released {
		return
	}
	p.logger.Warn("mpv IPC error", "error", err)
	if cb != nil {
		cb(err)
	}
}

// GetProgress returns the current playback progress
func (p *MPVPlayer) GetProgress(ctx context.Context) (*player.PlaybackProgress, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.readyLocked(); err != nil {
		return nil, err
	}

	var failures int
	get := func(name string) any {
		v, err := p.client.Request("get_property", name)
		if err != nil {
			failures++
			return nil
		}
		return v
	}

	timePos, _ := get("time-pos").(float64)
	duration, _ := get("duration").(float64)
	paused, _ := get("pause").(bool)
	eof, _ := get("eof-reached").(bool)
	volume, ok := get("volume").(float64)
	if !ok {
		volume = 100
	}

	if failures >= 3 {
		return nil, fmt.Errorf("mpv IPC appears dead (%d property requests failed)", failures)
	}

	var percentage float64
	if duration > 0 {
		percentage = timePos / duration * 100
	}

	return &player.PlaybackProgress{
		CurrentTime: time.Duration(timePos * float64(time.Second)),
		Duration:    time.Duration(duration * float64(time.Second)),
		Percentage:  percentage,
		Paused:      paused,
		Volume:      int(volume),
		EOF:         eof,
	}, nil
}

// TogglePause pauses or resumes playback
func (p *MPVPlayer) TogglePause(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.readyLocked(); err != nil {
		return err
	}
	if _, err := p.client.Request("cycle", "pause"); err != nil {
		return fmt.Errorf("failed to toggle pause: %w", err)
	}

	if p.state == player.StatePaused {
		p.state = player.StatePlaying
	} else {
		p.state = player.StatePaused
	}
	return nil
}

// Seek moves the position by offset, which may be negative
func (p *MPVPlayer) Seek(ctx context.Context, offset time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.readyLocked(); err != nil {
		return err
	}
	if _, err := p.client.Request("seek", offset.Seconds(), "relative"); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

// SetVolume sets the volume, clamped to 0-130
func (p *MPVPlayer) SetVolume(ctx context.Context, volume int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.readyLocked(); err != nil {
		return err
	}
	volume = min(max(volume, 0), 130)
	if _, err := p.client.Request("set_property", "volume", volume); err != nil {
		return fmt.Errorf("failed to set volume: %w", err)
	}
	return nil
}

func (p *MPVPlayer) readyLocked() error {
	if p.state == player.StateReleased {
		return player.ErrReleased
	}
	if p.client == nil {
		return errors.New("player not ready")
	}
	return nil
}

// OnPlaybackEnd sets the end-of-track callback
func (p *MPVPlayer) OnPlaybackEnd(callback func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnd = callback
}

// OnError sets the error callback
func (p *MPVPlayer) OnError(callback func(err error)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onError = callback
}

// monitorEOF fires the end callback once the track has finished
func (p *MPVPlayer) monitorEOF(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.RLock()
			client := p.client
			cb := p.onEnd
			p.mu.RUnlock()

			if client == nil {
				return
			}
			v, err := client.Request("get_property", "eof-reached")
			if err != nil {
				continue
			}
			if eof, _ := v.(bool); eof {
				if cb != nil {
					cb()
				}
				return
			}
		}
	}
}

// monitorProcess waits for mpv to exit and reports exits nobody asked for
func (p *MPVPlayer) monitorProcess(cmd *exec.Cmd, exited chan struct{}) {
	err := cmd.Wait()
	close(exited)

	p.mu.Lock()
	state := p.state
	errCb := p.onError
	endCb := p.onEnd
	if state != player.StateReleased {
		p.state = player.StateError
		p.client = nil
		if p.cancel != nil {
			p.cancel()
			p.cancel = nil
		}
		p.cmd = nil
		p.cleanupIPC()
	}
	p.mu.Unlock()

	switch {
	case state == player.StateReleased || state == player.StateLoading:
		// Open reports its own failure.
	case err != nil && errCb != nil:
		errCb(fmt.Errorf("mpv process exited unexpectedly: %w", err))
	case err == nil && endCb != nil:
		endCb()
	}
}

func (p *MPVPlayer) buildMPVArgs(url string, opts player.PlayOptions) []string {
	args := []string{
		GetMPVIPCArgument(p.ipcConfig),
		"--idle=yes",
		"--keep-open=yes", // leaves eof-reached set at the end of the track
		"--no-video",
		"--no-terminal",
		"--no-ytdl",
	}

	if !p.opts.LoadUserConfig {
		args = append(args, "--no-config")
	}
	if !p.opts.Debug {
		args = append(args, "--msg-level=all=warn")
	}

	if opts.StartTime > 0 {
		args = append(args, fmt.Sprintf("--start=%f", opts.StartTime.Seconds()))
	}
	if opts.Volume > 0 {
		args = append(args, fmt.Sprintf("--volume=%d", opts.Volume))
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	args = append(args, "--user-agent="+userAgent)

	if opts.Title != "" {
		args = append(args, "--force-media-title="+opts.Title)
	}

	args = append(args, opts.ExtraArgs...)

	// URL must be last
	return append(args, url)
}

// waitForIPC polls until the IPC endpoint exists, mpv exits, or ctx ends
func waitForIPC(ctx context.Context, cfg *IPCConfig, exited <-chan struct{}) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-exited:
			return errors.New("mpv exited before IPC was ready")
		case <-ticker.C:
			if ipcReady(cfg) {
				return nil
			}
		}
	}
}

func ipcReady(cfg *IPCConfig) bool {
	switch cfg.Type {
	case IPCUnixSocket:
		conn, err := net.DialTimeout("unix", cfg.Address, 200*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	case IPCTCP:
		conn, err := net.DialTimeout("tcp", cfg.Address, 200*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	case IPCNamedPipe:
		return isPipeReady(cfg.Address)
	default:
		return false
	}
}
