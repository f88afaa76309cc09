// Package tui provides the live terminal view of the alarm store.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/timely/internal/model"
)

// Color palette for the watch view.
var (
	ColorPrimary   = lipgloss.Color("#7C3AED") // Purple
	ColorSecondary = lipgloss.Color("#10B981") // Green
	ColorMuted     = lipgloss.Color("#6B7280") // Gray
	ColorWarning   = lipgloss.Color("#F59E0B") // Yellow
	ColorError     = lipgloss.Color("#EF4444") // Red
	ColorSuccess   = lipgloss.Color("#10B981") // Green
	ColorActive    = lipgloss.Color("#3B82F6") // Blue
	ColorBorder    = lipgloss.Color("#4B5563") // Dark gray
)

// Base styles for the TUI.
var (
	// StyleTitle is used for section titles.
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	// StyleSubtitle is used for subtitles and secondary information.
	StyleSubtitle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StyleClock = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorActive)

	StyleAlarmTitle = lipgloss.NewStyle().
			Bold(true)

	StyleInactive = lipgloss.NewStyle().
			Foreground(ColorMuted)

	StyleWarning = lipgloss.NewStyle().
			Foreground(ColorWarning)

	StyleError = lipgloss.NewStyle().
			Foreground(ColorError)

	StyleSuccess = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// StyleHelp is used for help text at the bottom.
	StyleHelp = lipgloss.NewStyle().
			Foreground(ColorMuted).
			MarginTop(1)

	StyleHelpKey = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSecondary)

	StyleHelpDesc = lipgloss.NewStyle().
			Foreground(ColorMuted)
)

// Box styles for the sections.
var (
	StyleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2).
			MarginBottom(1)

	// StyleNextBox frames the next ring once one is due.
	StyleNextBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSuccess).
			Padding(1, 2).
			MarginBottom(1)
)

// SyncMark renders a one-glyph sync status.
func SyncMark(s model.SyncStatus) string {
	switch s {
	case model.SyncSynced:
		return StyleSuccess.Render("●")
	case model.SyncPending:
		return StyleWarning.Render("◌")
	case model.SyncConflict:
		return StyleError.Render("✗")
	default:
		return StyleInactive.Render("-")
	}
}

// HelpBar renders the key bindings.
func HelpBar() string {
	keys := []struct{ key, desc string }{
		{"r", "reload"},
		{"s", "sync"},
		{"q", "quit"},
	}
	var out string
	for i, k := range keys {
		if i > 0 {
			out += "  "
		}
		out += StyleHelpKey.Render(k.key) + " " + StyleHelpDesc.Render(k.desc)
	}
	return StyleHelp.Render(out)
}
