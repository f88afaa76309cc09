package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/schedule"
)

// Styles for CLI output.
var (
	colorPrimary = lipgloss.Color("#7C3AED") // Purple
	colorMuted   = lipgloss.Color("#6B7280") // Gray
	colorWarning = lipgloss.Color("#F59E0B") // Yellow
	colorError   = lipgloss.Color("#EF4444") // Red
	colorSuccess = lipgloss.Color("#10B981") // Green

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSuccess)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning)

	styleError = lipgloss.NewStyle().
			Foreground(colorError)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleBold = lipgloss.NewStyle().
			Bold(true)

	styleClock = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)
)

// CLIFormatter provides CLI-specific formatting.
type CLIFormatter struct {
	*Formatter
}

// NewCLIFormatter creates a new CLI formatter.
func NewCLIFormatter(f *Formatter) *CLIFormatter {
	return &CLIFormatter{Formatter: f}
}

func (c *CLIFormatter) render(s lipgloss.Style, text string) string {
	if c.IsColorEnabled() {
		return s.Render(text)
	}
	return text
}

// Title prints a title.
func (c *CLIFormatter) Title(text string) {
	c.Println(c.render(styleTitle, text))
}

// Success prints a success message.
func (c *CLIFormatter) Success(text string) {
	c.Println(c.render(styleSuccess, "✓ "+text))
}

// Warning prints a warning message.
func (c *CLIFormatter) Warning(text string) {
	c.Println(c.render(styleWarning, "⚠ "+text))
}

// Error prints an error message.
func (c *CLIFormatter) Error(text string) {
	c.Println(c.render(styleError, "✗ "+text))
}

// Muted prints muted text.
func (c *CLIFormatter) Muted(text string) {
	c.Println(c.render(styleMuted, text))
}

// SyncBadge renders a sync status.
func (c *CLIFormatter) SyncBadge(s model.SyncStatus) string {
	switch s {
	case model.SyncSynced:
		return c.render(styleSuccess, "● synced")
	case model.SyncPending:
		return c.render(styleWarning, "◌ pending")
	case model.SyncConflict:
		return c.render(styleError, "✗ conflict")
	default:
		return c.render(styleMuted, "- unknown")
	}
}

// Clock renders an alarm time.
func (c *CLIFormatter) Clock(hhmm string) string {
	return c.render(styleClock, hhmm)
}

func activeText(active bool) string {
	if active {
		return "on"
	}
	return "off"
}

func nextText(a model.Alarm, now time.Time) string {
	if !a.IsActive {
		return "-"
	}
	at, ok := schedule.NextFor(a, now)
	if !ok {
		return "invalid time"
	}
	return FormatFireTime(at) + " (in " + schedule.Until(at, now) + ")"
}

// PrintAlarm prints one alarm in detail.
func (c *CLIFormatter) PrintAlarm(a model.Alarm, now time.Time) {
	c.Printf("%s  %s\n", c.Clock(a.Time), c.render(styleBold, a.DisplayTitle()))
	c.Printf("  ID:      %d\n", a.ID)
	c.Printf("  Repeats: %s\n", a.Days)
	if a.NoRepeat && len(a.Days) > 0 {
		c.Printf("           %s\n", c.render(styleMuted, "(one-time: noRepeat set)"))
	}
	c.Printf("  Active:  %s\n", activeText(a.IsActive))
	c.Printf("  Sync:    %s\n", c.SyncBadge(a.SyncStatus))
	if a.NativeAlarmID != "" {
		c.Printf("  Native:  %s\n", a.NativeAlarmID)
	}
	if a.IsActive {
		c.Printf("  Next:    %s\n", nextText(a, now))
	}
}

// PrintAlarms prints alarms as a table.
func (c *CLIFormatter) PrintAlarms(alarms []model.Alarm, now time.Time) {
	if len(alarms) == 0 {
		c.Muted("No alarms.")
		c.Muted("Use 'timely alarms add 07:00 --title Wake' to create one.")
		return
	}

	rows := make([]TableRow, 0, len(alarms))
	for _, a := range alarms {
		rows = append(rows, TableRow{Columns: []string{
			strconv.FormatInt(a.ID, 10),
			a.Time,
			a.DisplayTitle(),
			a.Days.String(),
			activeText(a.IsActive),
			string(a.SyncStatus),
			nextText(a, now),
		}})
	}
	c.PrintTable([]string{"ID", "Time", "Title", "Repeats", "Active", "Sync", "Next"}, rows)

	var conflicts int
	for _, a := range alarms {
		if a.SyncStatus == model.SyncConflict {
			conflicts++
		}
	}
	if conflicts > 0 {
		c.Println()
		c.Warning(fmt.Sprintf("%d alarm(s) could not be scheduled on this device. Run 'timely alarms sync' to retry.", conflicts))
	}
}

// PrintUpcoming prints the next firings.
func (c *CLIFormatter) PrintUpcoming(occ []schedule.Occurrence, now time.Time) {
	if len(occ) == 0 {
		c.Muted("Nothing scheduled.")
		return
	}
	for _, o := range occ {
		c.Printf("%s  %-10s %s %s\n",
			c.render(styleBold, FormatFireTime(o.At)),
			"in "+schedule.Until(o.At, now),
			o.Alarm.DisplayTitle(),
			c.render(styleMuted, "#"+strconv.FormatInt(o.Alarm.ID, 10)),
		)
	}
}

// PrintWebhooks prints configured webhooks.
func (c *CLIFormatter) PrintWebhooks(hooks []*model.Webhook) {
	if len(hooks) == 0 {
		c.Muted("No webhooks configured.")
		c.Muted("Use 'timely webhook add <name> <url>' to add one.")
		return
	}
	rows := make([]TableRow, 0, len(hooks))
	for _, w := range hooks {
		status := "enabled"
		if !w.Enabled {
			status = "disabled"
		}
		if w.Failures > 0 {
			status += fmt.Sprintf(" (%d failed)", w.Failures)
		}
		rows = append(rows, TableRow{Columns: []string{w.Name, w.Type, w.EventsText(), status, w.URL}})
	}
	c.PrintTable([]string{"Name", "Type", "Events", "Status", "URL"}, rows)
}

// TableRow is one row of PrintTable.
type TableRow struct {
	Columns []string
}

// PrintTable prints a simple aligned table.
func (c *CLIFormatter) PrintTable(headers []string, rows []TableRow) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, col := range row.Columns {
			if i < len(widths) && lipgloss.Width(col) > widths[i] {
				widths[i] = lipgloss.Width(col)
			}
		}
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-lipgloss.Width(s)) + "  "
	}

	var header strings.Builder
	for i, h := range headers {
		header.WriteString(pad(h, widths[i]))
	}
	c.Println(c.render(styleBold, strings.TrimRight(header.String(), " ")))

	var sep strings.Builder
	for _, w := range widths {
		sep.WriteString(strings.Repeat("─", w) + "  ")
	}
	c.Println(strings.TrimRight(sep.String(), " "))

	for _, row := range rows {
		var line strings.Builder
		for i, col := range row.Columns {
			if i < len(widths) {
				line.WriteString(pad(col, widths[i]))
			}
		}
		c.Println(strings.TrimRight(line.String(), " "))
	}
}
