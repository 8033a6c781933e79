package downloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var illegalFilenameChars = strings.NewReplacer(
	"?", " ",
	":", " ",
	`"`, " ",
	"*", " ",
	"|", " ",
	"/", " ",
	`\`, " ",
	"<", " ",
	">", " ",
)

// EncodeFilename replaces every character that is illegal in file names on
// common filesystems with a single space. Nothing else is changed.
func EncodeFilename(name string) string {
	return illegalFilenameChars.Replace(name)
}

// AudioFilename returns the file name a track is saved under
func AudioFilename(artist, title string) string {
	return EncodeFilename(artist+" - "+title) + ".mp3"
}

// EnsureUniqueFilename appends " (1)", " (2)", ... before the extension until
// path does not exist yet
func EnsureUniqueFilename(path string) string {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(filepath.Base(path), ext)

	for i := 1; i < 1000; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}

	return path
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
