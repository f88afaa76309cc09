// Package schedule computes when alarms fire next.
//
// Every function takes the current instant as a parameter and never reads
// the system clock. Times are built in the location of now.
package schedule

import (
	"time"

	"github.com/manav03panchal/timely/internal/model"
)

// NextFireTime returns the next instant strictly after now at which an
// alarm with the given time of day and weekday set fires.
//
// One-time alarms (noRepeat, or no days) fire at today's occurrence of clock
// or tomorrow's if that has passed. Recurring alarms fire on the first
// matching weekday within the coming week. The second result is false only
// when days is non-empty but names no real weekday.
func NextFireTime(clock model.Clock, days model.Days, noRepeat bool, now time.Time) (time.Time, bool) {
	if noRepeat || len(days) == 0 {
		at := clock.On(now)
		if !at.After(now) {
			at = clock.On(now.AddDate(0, 0, 1))
		}
		return at, true
	}

	valid := days.Valid()
	if len(valid) == 0 {
		return time.Time{}, false
	}

	for i := 0; i < 7; i++ {
		at := clock.On(now.AddDate(0, 0, i))
		if valid.Contains(at.Weekday()) && at.After(now) {
			return at, true
		}
	}

	// Only reached when the single matching day is today and its time has
	// passed; the next occurrence is a week out.
	daysToAdd := (valid[0] - int(now.Weekday()) + 7) % 7
	if daysToAdd == 0 && !clock.On(now).After(now) {
		daysToAdd = 7
	}
	return clock.On(now.AddDate(0, 0, daysToAdd)), true
}

// NextFireTimeString is NextFireTime for an "HH:MM" string. A time that
// does not parse yields false.
func NextFireTimeString(hhmm string, days model.Days, noRepeat bool, now time.Time) (time.Time, bool) {
	clock, err := model.ParseClock(hhmm)
	if err != nil {
		return time.Time{}, false
	}
	return NextFireTime(clock, days, noRepeat, now)
}

// NextFor computes the next fire time of an alarm record.
func NextFor(a model.Alarm, now time.Time) (time.Time, bool) {
	return NextFireTimeString(a.Time, a.Days, a.NoRepeat, now)
}
