package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// TruncateWithWidth cuts text to maxWidth terminal cells, accounting for wide
// runes, and appends "..." when something was cut.
func TruncateWithWidth(text string, maxWidth int) string {
	if runewidth.StringWidth(text) <= maxWidth {
		return text
	}
	if maxWidth <= 3 {
		return runewidth.Truncate(text, maxWidth, "")
	}

	width := 0
	for i, r := range text {
		width += runewidth.RuneWidth(r)
		if width > maxWidth-3 {
			return text[:i] + "..."
		}
	}
	return text
}

// PadRight pads text with spaces to exactly width cells, truncating it first
// when it is too long.
func PadRight(text string, width int) string {
	text = TruncateWithWidth(text, width)
	return runewidth.FillRight(text, width)
}

// WrapText wraps text at word boundaries to fit within maxWidth
func WrapText(text string, maxWidth int) []string {
	words := strings.Fields(text)

	var lines []string
	var current strings.Builder
	currentWidth := 0

	for _, word := range words {
		wordWidth := runewidth.StringWidth(word)
		switch {
		case currentWidth == 0:
			current.WriteString(word)
			currentWidth = wordWidth
		case currentWidth+1+wordWidth <= maxWidth:
			current.WriteString(" ")
			current.WriteString(word)
			currentWidth += 1 + wordWidth
		default:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
			currentWidth = wordWidth
		}
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// FormatClock renders d as m:ss, or h:mm:ss past an hour
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ProgressBar draws a bar of width cells filled to percent (0-100)
func ProgressBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	percent = min(max(percent, 0), 100)
	filled := int(percent / 100 * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
