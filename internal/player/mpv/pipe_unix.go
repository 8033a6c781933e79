//go:build !windows

package mpv

// isPipeReady is never used on Unix, where mpv listens on a socket file
func isPipeReady(string) bool {
	return false
}
