//go:build !windows

package mpv

import (
	"os/exec"
	"syscall"
)

// setupProcessAttributes puts mpv in its own process group so the terminal's
// Ctrl+C reaches the TUI only
func setupProcessAttributes(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
