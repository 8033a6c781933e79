//go:build linux || darwin

package downloader

import (
	"fmt"
	"syscall"
)

// freeSpace returns the bytes available to unprivileged users at path
func freeSpace(path string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("failed to check disk space: %w", err)
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
