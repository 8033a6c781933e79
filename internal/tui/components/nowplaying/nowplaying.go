package nowplaying

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/veriloft/vmusic/internal/player"
	"github.com/veriloft/vmusic/internal/providers/vk"
	"github.com/veriloft/vmusic/internal/tui/common"
	"github.com/veriloft/vmusic/internal/tui/styles"
	"github.com/veriloft/vmusic/internal/tui/utils"
)

const (
	tickInterval = time.Second
	seekStep     = 10 * time.Second
	volumeStep   = 5
	callTimeout  = 2 * time.Second
)

// Controls is the part of a live handle the view can drive
type Controls interface {
	GetProgress(ctx context.Context) (*player.PlaybackProgress, error)
	TogglePause(ctx context.Context) error
	Seek(ctx context.Context, offset time.Duration) error
	SetVolume(ctx context.Context, volume int) error
}

// Model shows the track being prepared or played
type Model struct {
	audio    vk.Audio
	controls Controls
	progress player.PlaybackProgress
	ended    bool
	err      error
	width    int
	height   int
}

func New() Model {
	return Model{}
}

// SetPreparing shows audio while its handle is being acquired
func (m *Model) SetPreparing(audio vk.Audio) {
	*m = Model{audio: audio, width: m.width, height: m.height}
}

// SetPlaying attaches the live handle's controls and starts polling
func (m *Model) SetPlaying(controls Controls) tea.Cmd {
	m.controls = controls
	m.ended = false
	m.err = nil
	if controls == nil {
		return nil
	}
	return tick()
}

// Preparing reports whether no handle has been attached yet
func (m Model) Preparing() bool {
	return m.controls == nil && m.err == nil
}

func (m Model) Audio() vk.Audio {
	return m.audio
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case common.PlaybackTickMsg:
		if m.controls == nil || m.ended {
			return m, nil
		}
		return m, m.fetchProgress()

	case common.PlaybackProgressMsg:
		if msg.Err != nil {
			m.ended = true
			m.err = msg.Err
			return m, nil
		}
		m.progress = *msg.Progress
		if m.progress.EOF {
			m.ended = true
			return m, nil
		}
		return m, tick()

	case common.PlaybackEndedMsg:
		m.ended = true
		m.err = msg.Err

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "q", "s":
			return m, func() tea.Msg { return common.DismissPlayerMsg{} }
		case " ", "p":
			m.progress.Paused = !m.progress.Paused
			return m, m.control(func(ctx context.Context, c Controls) error { return c.TogglePause(ctx) })
		case "left", "h":
			return m, m.control(func(ctx context.Context, c Controls) error { return c.Seek(ctx, -seekStep) })
		case "right", "l":
			return m, m.control(func(ctx context.Context, c Controls) error { return c.Seek(ctx, seekStep) })
		case "+", "=", "up":
			vol := min(m.progress.Volume+volumeStep, 130)
			m.progress.Volume = vol
			return m, m.control(func(ctx context.Context, c Controls) error { return c.SetVolume(ctx, vol) })
		case "-", "down":
			vol := max(m.progress.Volume-volumeStep, 0)
			m.progress.Volume = vol
			return m, m.control(func(ctx context.Context, c Controls) error { return c.SetVolume(ctx, vol) })
		}
	}
	return m, nil
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return common.PlaybackTickMsg{} })
}

func (m Model) fetchProgress() tea.Cmd {
	controls := m.controls
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		progress, err := controls.GetProgress(ctx)
		return common.PlaybackProgressMsg{Progress: progress, Err: err}
	}
}

// control runs fn against the live handle off the UI goroutine
func (m Model) control(fn func(context.Context, Controls) error) tea.Cmd {
	if m.controls == nil || m.ended {
		return nil
	}
	controls := m.controls
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		if err := fn(ctx, controls); err != nil {
			return common.StatusMsg{Text: "Player: " + err.Error(), Error: true}
		}
		return nil
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(styles.TitleStyle.Render("  NOW PLAYING  ") + "\n\n")
	b.WriteString(styles.ItemTitleStyle.Render(m.audio.Title) + "\n")
	b.WriteString(styles.MetadataStyle.Render(m.audio.Artist) + "\n\n")

	switch {
	case m.err != nil:
		b.WriteString(lipgloss.NewStyle().Foreground(styles.OxocarbonRed).Render("Playback failed: "+m.err.Error()) + "\n")
	case m.controls == nil:
		b.WriteString(styles.MetadataStyle.Render("Preparing...") + "\n")
	default:
		b.WriteString(m.renderProgress() + "\n")
	}

	b.WriteString(styles.HintStyle.Render("space pause • ←/→ seek • +/- volume • esc stop"))
	return styles.AppStyle.Render(b.String())
}

func (m Model) renderProgress() string {
	duration := m.progress.Duration
	if duration == 0 {
		duration = time.Duration(m.audio.Duration) * time.Second
	}

	percent := m.progress.Percentage
	if percent == 0 && duration > 0 {
		percent = float64(m.progress.CurrentTime) / float64(duration) * 100
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = max(min(m.width-30, 80), 10)
	}

	state := "▶"
	switch {
	case m.ended:
		state = "■"
	case m.progress.Paused:
		state = "⏸"
	}

	clock := fmt.Sprintf("%s / %s", utils.FormatClock(m.progress.CurrentTime), utils.FormatClock(duration))
	volume := fmt.Sprintf("vol %d%%", m.progress.Volume)
	return state + " " + styles.ProgressStyle.Render(utils.ProgressBar(percent, barWidth)) + " " +
		styles.MetadataStyle.Render(clock+"  "+volume)
}
