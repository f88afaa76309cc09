package parser

import (
	"fmt"
	"strings"

	"github.com/manav03panchal/timely/internal/errors"
)

// TimeParseError represents a time parsing error with helpful suggestions.
type TimeParseError struct {
	Input      string
	Field      string
	Message    string
	Examples   []string
	Suggestion string
	Cause      error
}

func (e *TimeParseError) Error() string {
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Input, e.Message)
}

func (e *TimeParseError) Unwrap() error {
	return e.Cause
}

// FormatWithExamples returns the error message with example suggestions.
func (e *TimeParseError) FormatWithExamples() string {
	var sb strings.Builder
	sb.WriteString(e.Error())

	if len(e.Examples) > 0 {
		sb.WriteString("\n\nValid examples:\n")
		for _, ex := range e.Examples {
			sb.WriteString("  - ")
			sb.WriteString(ex)
			sb.WriteString("\n")
		}
	}

	if e.Suggestion != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

// ToUserError converts a TimeParseError to a UserError for consistent handling.
func (e *TimeParseError) ToUserError() *errors.UserError {
	suggestion := e.Suggestion
	if suggestion == "" && len(e.Examples) > 0 {
		suggestion = fmt.Sprintf("Try: %s", strings.Join(e.Examples[:min(3, len(e.Examples))], ", "))
	}
	return errors.NewUserErrorWithField(e.Cause, e.Field, e.Input, e.Message, suggestion)
}

// ClockExamples lists accepted alarm time inputs.
var ClockExamples = []string{
	"07:30",
	"7:30am",
	"10pm",
	"22:05",
}

// InstantExamples lists accepted reference instants.
var InstantExamples = []string{
	"now",
	"tomorrow 6am",
	"friday 18:00",
	"in 3 hours",
	"2024-03-11 07:00",
}

// NewClockError creates an alarm time parse error with standard examples.
func NewClockError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "time",
		Message:    "could not read a time of day",
		Examples:   ClockExamples,
		Suggestion: "Use 24-hour HH:MM or a time like '7:30am'.",
		Cause:      errors.ErrInvalidTime,
	}
}

// NewInstantError creates a reference instant parse error with standard examples.
func NewInstantError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "instant",
		Message:    "could not parse date or time",
		Examples:   InstantExamples,
		Suggestion: "Try natural language like 'tomorrow 6am' or 'in 3 hours'.",
	}
}
