// Package parser turns human time input from the command line into the
// values the alarm engine works with.
package parser

import (
	"strings"
	"time"

	"github.com/markusmobius/go-dateparser"

	"github.com/manav03panchal/timely/internal/model"
)

// ParseInstant parses a natural language date and time relative to now.
// Empty input and "now" return now. Ambiguous dates resolve into the future.
func ParseInstant(input string, now time.Time) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "now") {
		return now, nil
	}

	cfg := &dateparser.Configuration{
		CurrentTime:         now,
		PreferredDateSource: dateparser.Future,
	}
	result, err := dateparser.Parse(cfg, input)
	if err != nil || result.Time.IsZero() {
		return time.Time{}, NewInstantError(input).ToUserError()
	}
	return result.Time.In(now.Location()), nil
}

// ParseClock reads an alarm time of day. Canonical "HH:MM" is taken as is;
// anything else ("7:30am", "10pm") goes through the date parser and keeps
// only its time of day.
func ParseClock(input string, now time.Time) (model.Clock, error) {
	input = strings.TrimSpace(input)
	if c, err := model.ParseClock(input); err == nil {
		return c, nil
	}
	if input == "" || !strings.ContainsAny(input, "0123456789") {
		return model.Clock{}, NewClockError(input).ToUserError()
	}

	cfg := &dateparser.Configuration{CurrentTime: now}
	result, err := dateparser.Parse(cfg, input)
	if err != nil || result.Time.IsZero() {
		return model.Clock{}, NewClockError(input).ToUserError()
	}
	return model.ClockOf(result.Time.In(now.Location())), nil
}
