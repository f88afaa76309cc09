// Package errors provides the error taxonomy shared by the timely client.
// Failures that mean the server-side alarm could not be changed are returned
// to callers; failures that only affect the device-local schedule are
// absorbed into an alarm's sync status and never surface here.
package errors

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is across the client.
var (
	ErrAlarmNotFound      = errors.New("alarm not found")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSessionExpired     = errors.New("session expired")
	ErrTransport          = errors.New("backend unreachable")
	ErrInvalidResponse    = errors.New("invalid response from server")
	ErrInvalidTime        = errors.New("invalid alarm time")
	ErrInvalidDays        = errors.New("invalid weekday selection")
	ErrMissingDeviceID    = errors.New("device identifier unavailable")
	ErrRealtimeClosed     = errors.New("realtime channel closed")
	ErrNativeNotScheduled = errors.New("no native alarm scheduled under that id")
	ErrPermissionDenied   = errors.New("alarm permission denied")
)

// UserError is a failure the user fixes by changing their input, such as
// a malformed HH:MM time or an unknown weekday name.
type UserError struct {
	Message    string
	Suggestion string
	// Field and Value name the offending input when there is one.
	Field string
	Value string
	Cause error
}

func (e *UserError) Error() string {
	if e.Field == "" || e.Value == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: '%s'", e.Message, e.Value)
}

func (e *UserError) Unwrap() error { return e.Cause }

// NewUserError creates a UserError with no offending field.
func NewUserError(message, suggestion string) *UserError {
	return &UserError{Message: message, Suggestion: suggestion}
}

// NewUserErrorWithField creates a UserError naming the rejected input. The
// cause is kept so errors.Is matches its sentinel.
func NewUserErrorWithField(cause error, field, value, message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Suggestion: suggestion,
		Field:      field,
		Value:      value,
		Cause:      cause,
	}
}

// SystemError is a local failure the user cannot fix from the command
// line, such as an unreadable session record.
type SystemError struct {
	Op      string
	Message string
	Cause   error
}

func (e *SystemError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	return e.Message + " during " + e.Op
}

func (e *SystemError) Unwrap() error { return e.Cause }

// NewSystemErrorWithOp creates a SystemError for the named operation.
func NewSystemErrorWithOp(op, message string, cause error) *SystemError {
	return &SystemError{Op: op, Message: message, Cause: cause}
}

// RecoverableError is a failed write that will be retried, such as a
// noRepeat correction that hit a transport failure.
type RecoverableError struct {
	Message string
	Cause   error
	// Attempt counts tries so far, out of MaxAttempts.
	Attempt     int
	MaxAttempts int
}

// NewRecoverableError records the outcome of attempt number attempt.
func NewRecoverableError(message string, cause error, attempt, maxAttempts int) *RecoverableError {
	return &RecoverableError{Message: message, Cause: cause, Attempt: attempt, MaxAttempts: maxAttempts}
}

func (e *RecoverableError) Error() string {
	if e.Attempt == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (attempt %d/%d)", e.Message, e.Attempt, e.MaxAttempts)
}

func (e *RecoverableError) Unwrap() error { return e.Cause }

// Exhausted reports whether no attempts remain.
func (e *RecoverableError) Exhausted() bool {
	return e.Attempt >= e.MaxAttempts
}

// IsUserError reports whether err wraps a UserError.
func IsUserError(err error) bool {
	_, ok := AsUserError(err)
	return ok
}

// IsSystemError reports whether err wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// AsUserError extracts a UserError from an error chain.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	ok := errors.As(err, &ue)
	return ue, ok
}

// Wrap adds context to err, passing nil through.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}
