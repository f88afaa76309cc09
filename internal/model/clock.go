package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/manav03panchal/timely/internal/errors"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" in 24-hour form. A trailing ":SS" as emitted by
// SQL TIME columns is accepted and ignored.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return Clock{}, invalidClock(s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, invalidClock(s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return Clock{}, invalidClock(s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

func invalidClock(s string) error {
	return errors.NewUserErrorWithField(errors.ErrInvalidTime, "time", s, "invalid alarm time", "")
}

// ClockOf returns the time of day of t, truncated to the minute.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// On returns the instant at this time of day on the calendar date of day,
// in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, c.Hour, c.Minute, 0, 0, day.Location())
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
