package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a stable, machine-readable classification of a failed operation.
type Kind string

const (
	KindTransport    Kind = "transport"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindConflict     Kind = "conflict"
	KindInvalid      Kind = "invalid"
	KindServer       Kind = "server"
	KindUnknown      Kind = "unknown"
)

// TransportError describes a REST call that did not change server state.
// StatusCode is zero when the request never reached the server.
type TransportError struct {
	Op         string
	StatusCode int
	Status     string
	Detail     string
	Cause      error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		if e.Cause != nil {
			return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Cause)
		}
		return fmt.Sprintf("%s: backend unreachable", e.Op)
	}
	status := e.Status
	if status == "" {
		status = http.StatusText(e.StatusCode)
	}
	msg := fmt.Sprintf("%s: backend error: status %d (%s)", e.Op, e.StatusCode, status)
	if e.Detail != "" {
		msg += " - message: " + e.Detail
	}
	return msg
}

// Unwrap exposes the sentinel matching the status so callers can use
// errors.Is(err, ErrAlarmNotFound) regardless of transport details.
func (e *TransportError) Unwrap() []error {
	var errs []error
	switch {
	case e.StatusCode == 0:
		errs = append(errs, ErrTransport)
	case e.StatusCode == http.StatusNotFound:
		errs = append(errs, ErrAlarmNotFound)
	case e.StatusCode == http.StatusUnauthorized:
		errs = append(errs, ErrSessionExpired)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Kind classifies the error.
func (e *TransportError) Kind() Kind {
	switch {
	case e.StatusCode == 0:
		return KindTransport
	case e.StatusCode == http.StatusNotFound:
		return KindNotFound
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return KindUnauthorized
	case e.StatusCode == http.StatusConflict:
		return KindConflict
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return KindInvalid
	case e.StatusCode >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// NewTransportError creates a TransportError for a request that never got a
// response.
func NewTransportError(op string, cause error) *TransportError {
	return &TransportError{Op: op, Cause: cause}
}

// NewStatusError creates a TransportError for a non-2xx response.
func NewStatusError(op string, code int, status, detail string) *TransportError {
	return &TransportError{Op: op, StatusCode: code, Status: status, Detail: detail}
}

// Kinded is an error that carries its own Kind across a process boundary.
type Kinded interface {
	error
	ErrorKind() Kind
}

// KindOf returns the Kind of any error produced by this module.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind()
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	switch {
	case errors.Is(err, ErrAlarmNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrSessionExpired):
		return KindUnauthorized
	case errors.Is(err, ErrTransport), errors.Is(err, ErrRealtimeClosed):
		return KindTransport
	case IsUserError(err):
		return KindInvalid
	}
	return KindUnknown
}
