package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names a realtime channel event.
type EventType string

const (
	EventConnected    EventType = "connected"
	EventAlarmCreated EventType = "alarm_created"
	EventAlarmUpdated EventType = "alarm_updated"
	EventAlarmDeleted EventType = "alarm_deleted"

	// EventReconnected is produced locally when the channel comes back after
	// a drop. Consumers reload the full alarm list.
	EventReconnected EventType = "reconnected"
)

// Envelope is the wire frame of the realtime channel.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// AlarmEvent is a decoded realtime event.
type AlarmEvent struct {
	Type      EventType
	Alarm     *Alarm
	AlarmID   int64
	SessionID string
	At        time.Time
}

type deletedPayload struct {
	ID int64 `json:"id"`
}

type connectedPayload struct {
	SessionID string `json:"sessionId"`
}

// DecodeEnvelope turns a wire frame into an AlarmEvent.
func DecodeEnvelope(env Envelope, at time.Time) (AlarmEvent, error) {
	ev := AlarmEvent{Type: env.Event, At: at}
	switch env.Event {
	case EventAlarmCreated, EventAlarmUpdated:
		var a Alarm
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return ev, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		ev.Alarm = &a
		ev.AlarmID = a.ID
	case EventAlarmDeleted:
		var p deletedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return ev, fmt.Errorf("decode %s: %w", env.Event, err)
		}
		ev.AlarmID = p.ID
	case EventConnected:
		var p connectedPayload
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &p); err != nil {
				return ev, fmt.Errorf("decode %s: %w", env.Event, err)
			}
		}
		ev.SessionID = p.SessionID
	default:
		return ev, fmt.Errorf("unknown realtime event %q", env.Event)
	}
	return ev, nil
}

// EncodeEnvelope builds a wire frame. Used by servers and tests.
func EncodeEnvelope(t EventType, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: t, Data: data})
}
