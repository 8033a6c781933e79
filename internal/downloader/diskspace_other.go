//go:build !(linux || darwin || windows)

package downloader

import "errors"

var errDiskSpaceUnsupported = errors.New("disk space check not supported on this platform")

// freeSpace is not implemented here; the manager skips the check
func freeSpace(string) (uint64, error) {
	return 0, errDiskSpaceUnsupported
}
