package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/output"
	"github.com/manav03panchal/timely/internal/schedule"
)

// NextComponent shows the next alarm to ring.
type NextComponent struct {
	Next  *schedule.Occurrence
	Now   time.Time
	Width int
}

// NewNextComponent picks the earliest firing among alarms.
func NewNextComponent(alarms []model.Alarm, now time.Time, width int) *NextComponent {
	nc := &NextComponent{Now: now, Width: width}
	if occ := schedule.Upcoming(alarms, now, 1); len(occ) == 1 {
		nc.Next = &occ[0]
	}
	return nc
}

// View renders the component.
func (nc *NextComponent) View() string {
	var content strings.Builder

	if nc.Next == nil {
		content.WriteString(StyleInactive.Render("No active alarms"))
		content.WriteString("\n\n")
		content.WriteString(StyleSubtitle.Render("Use 'timely alarms add' to create one"))
		return StyleBox.Width(boxWidth(nc.Width)).Render(content.String())
	}

	a := nc.Next.Alarm
	content.WriteString(StyleSuccess.Render("● NEXT"))
	content.WriteString("\n\n")
	content.WriteString(StyleClock.Render(a.Time))
	content.WriteString("  ")
	content.WriteString(StyleAlarmTitle.Render(a.DisplayTitle()))
	content.WriteString("\n\n")
	content.WriteString(StyleSubtitle.Render(fmt.Sprintf("%s, in %s",
		output.FormatFireTime(nc.Next.At), schedule.Until(nc.Next.At, nc.Now))))

	return StyleNextBox.Width(boxWidth(nc.Width)).Render(content.String())
}

// AlarmsComponent lists every alarm with its sync state.
type AlarmsComponent struct {
	Alarms []model.Alarm
	Now    time.Time
	Width  int
	Limit  int
}

// NewAlarmsComponent creates an alarm list truncated to limit rows.
func NewAlarmsComponent(alarms []model.Alarm, now time.Time, width, limit int) *AlarmsComponent {
	return &AlarmsComponent{Alarms: alarms, Now: now, Width: width, Limit: limit}
}

// View renders the component.
func (ac *AlarmsComponent) View() string {
	var content strings.Builder
	content.WriteString(StyleTitle.Render(fmt.Sprintf("Alarms (%d)", len(ac.Alarms))))
	content.WriteString("\n")

	if len(ac.Alarms) == 0 {
		content.WriteString(StyleSubtitle.Render("No alarms yet"))
		return StyleBox.Width(boxWidth(ac.Width)).Render(content.String())
	}

	shown := ac.Alarms
	if ac.Limit > 0 && len(shown) > ac.Limit {
		shown = shown[:ac.Limit]
	}
	for i, a := range shown {
		if i > 0 {
			content.WriteString("\n")
		}
		content.WriteString(ac.renderAlarm(a))
	}
	if hidden := len(ac.Alarms) - len(shown); hidden > 0 {
		content.WriteString("\n")
		content.WriteString(StyleSubtitle.Render(fmt.Sprintf("… %d more", hidden)))
	}
	return StyleBox.Width(boxWidth(ac.Width)).Render(content.String())
}

func (ac *AlarmsComponent) renderAlarm(a model.Alarm) string {
	clock := StyleClock.Render(a.Time)
	title := StyleAlarmTitle.Render(a.DisplayTitle())
	if !a.IsActive {
		clock = StyleInactive.Render(a.Time)
		title = StyleInactive.Render(a.DisplayTitle() + " (off)")
	}
	line := fmt.Sprintf("%s %s  %s  %s", SyncMark(a.SyncStatus), clock, title, StyleSubtitle.Render(a.Days.String()))
	if a.SyncStatus == model.SyncConflict {
		line += "  " + StyleError.Render("not scheduled on this device")
	}
	return line
}

func boxWidth(w int) int {
	if w > 4 {
		return w - 4
	}
	return 0
}
