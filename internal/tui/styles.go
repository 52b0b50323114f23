package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Layout constants
const (
	MinPanelWidth = 60 // Minimum supported terminal width
	MaxPanelWidth = 90 // Maximum panel width before capping
	gaugeWidth    = 40
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - connected, alive
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors, stale partner
	WarningColor = lipgloss.Color("#FFA500") // Orange - connecting, resync
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Shared panel styles
var (
	// TitleStyle is for the panel banner
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	// SubtitleStyle is for the relay endpoint under the banner
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// LabelStyle is for row labels ("Link:", "Partner:")
	LabelStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(10)

	// ValueStyle is for plain row values
	ValueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	// ConnectedStyle marks an established link or a live partner
	ConnectedStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	// PendingStyle marks an in-flight dial or a pending resync
	PendingStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	// DownStyle marks a lost link or a stale partner
	DownStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	// ErrorStyle is for the last-error row
	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	// HelpStyle is for the key hint footer
	HelpStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			MarginTop(1)

	// PanelBorderStyle frames the whole panel
	PanelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(PrimaryColor).
				Padding(1, 2)
)

// Status markers
const (
	MarkerAlive = "●"
	MarkerStale = "○"
)
