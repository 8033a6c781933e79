package styles

import "github.com/charmbracelet/lipgloss"

// Oxocarbon color scheme
var (
	OxocarbonBlack  = lipgloss.Color("#161616")
	OxocarbonBase00 = lipgloss.Color("#262626")
	OxocarbonBase01 = lipgloss.Color("#393939") // borders
	OxocarbonBase02 = lipgloss.Color("#525252")
	OxocarbonBase03 = lipgloss.Color("#767676") // muted
	OxocarbonBase04 = lipgloss.Color("#dde1e6")
	OxocarbonBase05 = lipgloss.Color("#f2f4f8") // primary foreground
	OxocarbonWhite  = lipgloss.Color("#ffffff")

	OxocarbonTeal   = lipgloss.Color("#3ddbd9")
	OxocarbonBlue   = lipgloss.Color("#78a9ff")
	OxocarbonPink   = lipgloss.Color("#ee5396")
	OxocarbonRed    = lipgloss.Color("#ff5252")
	OxocarbonCyan   = lipgloss.Color("#33b1ff")
	OxocarbonGreen  = lipgloss.Color("#42be65")
	OxocarbonPurple = lipgloss.Color("#be95ff") // main accent
	OxocarbonMauve  = lipgloss.Color("#d1aaff")

	StatusQueued      = OxocarbonBase04
	StatusDownloading = OxocarbonGreen
	StatusPaused      = OxocarbonPink
	StatusCompleted   = OxocarbonBlue
	StatusFailed      = OxocarbonRed
)

var (
	AppStyle = lipgloss.NewStyle().
			Padding(1, 2)

	TitleStyle = lipgloss.NewStyle().
			Foreground(OxocarbonWhite).
			Background(OxocarbonPurple).
			Padding(0, 1).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(OxocarbonMauve).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase03).
			Italic(true)

	// List item with a left border
	ItemStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(OxocarbonBase02).
			BorderLeft(true).
			PaddingLeft(2).
			PaddingRight(2).
			MarginLeft(3)

	ItemSelectedStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.ThickBorder()).
				BorderForeground(OxocarbonPurple).
				BorderLeft(true).
				PaddingLeft(2).
				PaddingRight(2).
				MarginLeft(3)

	ItemTitleStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase05).
			Bold(true)

	MetadataStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase04)

	URLStyle = lipgloss.NewStyle().
			Foreground(OxocarbonCyan).
			Italic(true)

	ProgressStyle = lipgloss.NewStyle().
			Foreground(OxocarbonPurple)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(OxocarbonPurple).
			Bold(true).
			Underline(true).
			MarginBottom(1).
			MarginTop(1)

	HintStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase03).
			MarginTop(1)

	StatusBadgeStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Bold(true)

	ErrorPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(OxocarbonRed).
			Foreground(OxocarbonBase05).
			Padding(1, 2)

	FooterStyle = lipgloss.NewStyle().
			Foreground(OxocarbonBase05).
			Background(OxocarbonBase01).
			Padding(0, 1)

	PopupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(OxocarbonPurple).
			Padding(1, 2).
			Background(OxocarbonBase00).
			Foreground(OxocarbonBase05)
)

// GetStatusColor returns the color for a download status
func GetStatusColor(status string) lipgloss.Color {
	switch status {
	case "queued":
		return StatusQueued
	case "downloading":
		return StatusDownloading
	case "paused":
		return StatusPaused
	case "completed":
		return StatusCompleted
	case "failed", "cancelled":
		return StatusFailed
	default:
		return lipgloss.Color("#A0AEC0")
	}
}

// FormatStatusBadge renders "icon status" in the status color
func FormatStatusBadge(status, icon string) string {
	return StatusBadgeStyle.Foreground(GetStatusColor(status)).Render(icon + " " + status)
}
