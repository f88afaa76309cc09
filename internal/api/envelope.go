package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
)

// envelope is the backend's response wrapper. Some endpoints answer with a
// bare alarm or array instead.
type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Alarm   *model.Alarm    `json:"alarm"`
	Alarms  json.RawMessage `json:"alarms"`
	ID      int64           `json:"id"`
}

func (e envelope) failed() bool {
	return e.Success != nil && !*e.Success
}

func invalid(op, format string, args ...any) error {
	return timelyerrors.Wrapf(timelyerrors.ErrInvalidResponse, "%s: %s", op, fmt.Sprintf(format, args...))
}

// decodeAlarm accepts {"alarm": {...}}, {"id": n} or a bare alarm.
func decodeAlarm(op string, body []byte) (model.Alarm, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return model.Alarm{}, invalid(op, "%v", err)
	}
	if env.failed() {
		return model.Alarm{}, invalid(op, "server reported failure: %s", env.Message)
	}
	if env.Alarm != nil {
		return *env.Alarm, nil
	}
	var a model.Alarm
	if err := json.Unmarshal(body, &a); err != nil {
		return model.Alarm{}, invalid(op, "%v", err)
	}
	if !a.HasID() {
		return model.Alarm{}, invalid(op, "alarm without id")
	}
	return a, nil
}

// decodeAlarms accepts a bare array or {"alarms": [...]}. When required is
// false a missing array means an empty list.
func decodeAlarms(op string, body []byte, required bool) ([]model.Alarm, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []model.Alarm
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, invalid(op, "%v", err)
		}
		return list, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, invalid(op, "%v", err)
	}
	if env.failed() {
		return nil, invalid(op, "server reported failure: %s", env.Message)
	}
	raw := bytes.TrimSpace(env.Alarms)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		if required {
			return nil, invalid(op, "expected an alarms array")
		}
		return []model.Alarm{}, nil
	}
	if raw[0] != '[' {
		return nil, invalid(op, "alarms is not an array")
	}
	var list []model.Alarm
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, invalid(op, "%v", err)
	}
	return list, nil
}
