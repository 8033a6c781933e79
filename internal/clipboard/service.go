package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

// Service copies track links to the system clipboard
type Service interface {
	// Read reads content from the system clipboard
	Read(ctx context.Context) (string, error)

	// Write copies text to the system clipboard
	Write(ctx context.Context, text string) error

	// WriteCmd runs Write inside a tea.Cmd and reports a CopiedMsg
	WriteCmd(text string) tea.Cmd
}

// CopiedMsg is sent once a WriteCmd finishes
type CopiedMsg struct {
	Text string
	Err  error
}

// Logger interface for clipboard operations
type Logger interface {
	Debug(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type clipboardService struct {
	logger  Logger
	command string // user configured copy command, tried after the library

	writeAll func(string) error
	readAll  func() (string, error)
}

// NewService creates a clipboard service. command, if set, is run with the
// text on stdin whenever the clipboard library cannot reach a clipboard.
func NewService(logger Logger, command string) Service {
	return &clipboardService{
		logger:   logger,
		command:  command,
		writeAll: clipboard.WriteAll,
		readAll:  clipboard.ReadAll,
	}
}

// Read reads content from the system clipboard
func (s *clipboardService) Read(ctx context.Context) (string, error) {
	text, err := s.readAll()
	if err == nil {
		return text, nil
	}
	s.logger.Debug("clipboard library read failed", "error", err)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "pbpaste")
	case "windows":
		cmd = exec.CommandContext(ctx, "powershell.exe", "-command", "Get-Clipboard")
	case "linux":
		switch {
		case commandExists("wl-paste"):
			cmd = exec.CommandContext(ctx, "wl-paste", "--no-newline")
		case commandExists("xclip"):
			cmd = exec.CommandContext(ctx, "xclip", "-selection", "clipboard", "-o")
		case commandExists("xsel"):
			cmd = exec.CommandContext(ctx, "xsel", "--clipboard", "--output")
		default:
			return "", fmt.Errorf("no clipboard tool found (install xclip, xsel, or wl-clipboard): %w", err)
		}
	default:
		return "", fmt.Errorf("clipboard reading not supported on %s", runtime.GOOS)
	}

	output, cmdErr := cmd.Output()
	if cmdErr != nil {
		return "", fmt.Errorf("failed to execute clipboard command: %w", cmdErr)
	}
	return strings.TrimSpace(string(output)), nil
}

// Write tries the clipboard library, then the configured command, then the
// platform's own tools
func (s *clipboardService) Write(ctx context.Context, text string) error {
	err := s.writeAll(text)
	if err == nil {
		s.logger.Debug("copied to clipboard", "text_length", len(text))
		return nil
	}
	s.logger.Warn("failed to copy to clipboard using primary method", "error", err)

	if s.command != "" {
		cmdErr := s.copyWithCommand(ctx, text, s.command)
		if cmdErr == nil {
			return nil
		}
		err = errors.Join(err, cmdErr)
	}

	for _, candidate := range defaultCommands() {
		if !commandExists(candidate[0]) {
			continue
		}
		cmdErr := s.run(ctx, text, candidate)
		if cmdErr == nil {
			return nil
		}
		err = errors.Join(err, cmdErr)
	}

	s.logger.Error("failed to copy to clipboard", "error", err, "os", runtime.GOOS, "text_length", len(text))
	return fmt.Errorf("copy to clipboard: %w", err)
}

// WriteCmd copies text off the UI goroutine
func (s *clipboardService) WriteCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return CopiedMsg{Text: text, Err: s.Write(context.Background(), text)}
	}
}

func (s *clipboardService) copyWithCommand(ctx context.Context, text, command string) error {
	parts := parseCommand(command)
	if len(parts) == 0 {
		return fmt.Errorf("invalid clipboard command in config: %q", command)
	}
	return s.run(ctx, text, parts)
}

func (s *clipboardService) run(ctx context.Context, text string, parts []string) error {
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stdin = strings.NewReader(text)

	if err := cmd.Run(); err != nil {
		s.logger.Debug("clipboard command failed", "command", parts, "error", err)
		return fmt.Errorf("%s: %w", parts[0], err)
	}
	s.logger.Debug("copied to clipboard", "command", parts, "text_length", len(text))
	return nil
}

// defaultCommands lists the platform's copy tools in order of preference
func defaultCommands() [][]string {
	switch runtime.GOOS {
	case "windows":
		return [][]string{{"clip.exe"}}
	case "darwin":
		return [][]string{{"pbcopy"}}
	case "linux":
		if isWSL() {
			return [][]string{{"clip.exe"}}
		}
		return [][]string{
			{"wl-copy"},
			{"xclip", "-selection", "clipboard"},
			{"xsel", "--clipboard", "--input"},
		}
	default:
		return nil
	}
}

// parseCommand splits a command line into arguments, respecting quotes
func parseCommand(command string) []string {
	var parts []string
	var current strings.Builder
	var inQuotes bool
	var quoteChar rune

	for _, char := range command {
		switch {
		case char == '\'' || char == '"':
			if !inQuotes {
				inQuotes = true
				quoteChar = char
			} else if char == quoteChar {
				inQuotes = false
			} else {
				current.WriteRune(char)
			}
		case char == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	version := strings.ToLower(string(data))
	return strings.Contains(version, "microsoft") || strings.Contains(version, "wsl")
}

func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
