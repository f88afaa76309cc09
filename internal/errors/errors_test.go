package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Typed errors
// =============================================================================

func TestUserError(t *testing.T) {
	t.Run("message_only", func(t *testing.T) {
		err := NewUserError("bad input", "try again")
		assert.Equal(t, "bad input", err.Error())
		assert.True(t, IsUserError(err))
		assert.Equal(t, "try again", GetSuggestion(err))
	})

	t.Run("with_field_keeps_cause", func(t *testing.T) {
		err := NewUserErrorWithField(ErrInvalidTime, "time", "25:00", "invalid alarm time", "")
		assert.Equal(t, "invalid alarm time: '25:00'", err.Error())
		assert.True(t, errors.Is(err, ErrInvalidTime))
		assert.Equal(t, Suggestions[ErrInvalidTime], GetSuggestion(err))
	})
}

func TestSystemError(t *testing.T) {
	cause := errors.New("disk gone")
	err := NewSystemErrorWithOp("open session store", "database unavailable", cause)
	assert.Equal(t, "database unavailable during open session store", err.Error())
	assert.True(t, IsSystemError(err))
	assert.True(t, errors.Is(err, cause))

	plain := &SystemError{Message: "database unavailable", Cause: cause}
	assert.Equal(t, "database unavailable", plain.Error())
}

func TestRecoverableError(t *testing.T) {
	tests := []struct {
		attempt   int
		msg       string
		exhausted bool
	}{
		{0, "correction failed", false},
		{1, "correction failed (attempt 1/2)", false},
		{2, "correction failed (attempt 2/2)", true},
	}
	for _, tt := range tests {
		err := NewRecoverableError("correction failed", ErrTransport, tt.attempt, 2)
		assert.Equal(t, tt.msg, err.Error())
		assert.Equal(t, tt.exhausted, err.Exhausted())
		assert.True(t, errors.Is(err, ErrTransport))
	}
}

// =============================================================================
// TransportError
// =============================================================================

func TestTransportErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      *TransportError
		kind     Kind
		sentinel error
	}{
		{"unreachable", NewTransportError("load alarms", errors.New("dial tcp: refused")), KindTransport, ErrTransport},
		{"not_found", NewStatusError("update alarm", http.StatusNotFound, "", "Alarm not found"), KindNotFound, ErrAlarmNotFound},
		{"unauthorized", NewStatusError("load alarms", http.StatusUnauthorized, "", ""), KindUnauthorized, ErrSessionExpired},
		{"conflict", NewStatusError("update alarm", http.StatusConflict, "", ""), KindConflict, nil},
		{"invalid", NewStatusError("create alarm", http.StatusBadRequest, "", "time required"), KindInvalid, nil},
		{"server", NewStatusError("sync alarms", http.StatusBadGateway, "", ""), KindServer, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind())
			assert.Equal(t, tt.kind, KindOf(fmt.Errorf("wrapped: %w", tt.err)))
			if tt.sentinel != nil {
				assert.True(t, errors.Is(tt.err, tt.sentinel))
			}
		})
	}
}

func TestTransportErrorMessage(t *testing.T) {
	err := NewStatusError("update alarm", http.StatusBadRequest, "", "time required")
	assert.Equal(t, "update alarm: backend error: status 400 (Bad Request) - message: time required", err.Error())

	unreachable := NewTransportError("load alarms", errors.New("timeout"))
	assert.Equal(t, "load alarms: backend unreachable: timeout", unreachable.Error())
}

func TestKindOfSentinels(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Equal(t, KindNotFound, KindOf(Wrap(ErrAlarmNotFound, "toggle 4")))
	assert.Equal(t, KindUnauthorized, KindOf(ErrNotAuthenticated))
	assert.Equal(t, KindTransport, KindOf(ErrRealtimeClosed))
	assert.Equal(t, KindInvalid, KindOf(NewUserError("x", "")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
}

// =============================================================================
// Helpers
// =============================================================================

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "ctx"))
	assert.Nil(t, Wrapf(nil, "ctx %d", 1))

	err := Wrapf(ErrAlarmNotFound, "alarm %d", 9)
	require.Error(t, err)
	assert.Equal(t, "alarm 9: alarm not found", err.Error())
	assert.True(t, errors.Is(err, ErrAlarmNotFound))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "boom", Format(errors.New("boom")))

	formatted := Format(ErrNotAuthenticated)
	assert.Contains(t, formatted, "not authenticated\n")
	assert.Contains(t, formatted, "timely login")
}
