package schedule

import (
	"fmt"
	"sort"
	"time"

	"github.com/manav03panchal/timely/internal/model"
)

// Occurrence is one future firing of an alarm.
type Occurrence struct {
	Alarm model.Alarm
	At    time.Time
}

// Upcoming lists the next n firings across all active alarms in
// chronological order. One-time alarms contribute at most one entry.
func Upcoming(alarms []model.Alarm, now time.Time, n int) []Occurrence {
	if n <= 0 {
		return nil
	}

	var out []Occurrence
	for _, a := range alarms {
		if !a.IsActive {
			continue
		}
		from := now
		for i := 0; i < n; i++ {
			at, ok := NextFor(a, from)
			if !ok {
				break
			}
			out = append(out, Occurrence{Alarm: a, At: at})
			if a.IsOneTime() {
				break
			}
			from = at
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].At.Equal(out[j].At) {
			return out[i].Alarm.ID < out[j].Alarm.ID
		}
		return out[i].At.Before(out[j].At)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Until formats the time remaining from now to at, e.g. "3h 20m".
func Until(at, now time.Time) string {
	d := at.Sub(now).Round(time.Minute)
	if d < time.Minute {
		return "<1m"
	}
	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)

	switch {
	case days > 0:
		return formatParts(days, "d", hours, "h")
	case hours > 0:
		return formatParts(hours, "h", minutes, "m")
	default:
		return formatParts(minutes, "m", 0, "")
	}
}

func formatParts(a int, au string, b int, bu string) string {
	if b > 0 {
		return fmt.Sprintf("%d%s %d%s", a, au, b, bu)
	}
	return fmt.Sprintf("%d%s", a, au)
}
