package model

import "time"

// NotificationType defines the type of notification.
type NotificationType string

const (
	NotifyAlarmRing     NotificationType = "alarm_ring"
	NotifyAlarmDisabled NotificationType = "alarm_disabled"
	NotifySyncConflict  NotificationType = "sync_conflict"
	NotifyTest          NotificationType = "test"
)

// Notification is a message fanned out to webhooks.
type Notification struct {
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Color     int               `json:"color,omitempty"`
	Ring      *RingInfo         `json:"ring,omitempty"`
}

// RingInfo identifies the alarm behind a ring notification.
type RingInfo struct {
	AlarmID  int64  `json:"alarmId,omitempty"`
	NativeID string `json:"nativeId"`
	Time     string `json:"time,omitempty"`
	Sound    string `json:"sound,omitempty"`
}

// NewNotification creates a notification stamped with the current time.
func NewNotification(t NotificationType, title, message string) *Notification {
	return &Notification{
		Type:      t,
		Title:     title,
		Message:   message,
		Fields:    make(map[string]string),
		Timestamp: time.Now(),
		Color:     DefaultColorForType(t),
	}
}

// NewRingNotification describes a native alarm that just fired.
func NewRingNotification(ev NativeEvent) *Notification {
	title := "Alarm"
	if ev.Extra != nil && ev.Extra.Title != "" {
		title = ev.Extra.Title
	}
	n := NewNotification(NotifyAlarmRing, title, "Your alarm is ringing.")
	n.Timestamp = ev.At
	n.Ring = &RingInfo{NativeID: ev.AlarmID}
	if id, ok := ev.ServerID(); ok {
		n.Ring.AlarmID = id
	}
	if ev.Extra != nil {
		n.Ring.Sound = ev.Extra.Sound
	}
	n.WithField("Alarm", ev.AlarmID)
	if !ev.At.IsZero() {
		n.Ring.Time = ev.At.Format("15:04")
		n.WithField("Time", n.Ring.Time)
	}
	return n
}

// Headline is the one-line summary chat webhooks lead with: the ring time
// and title for rings, the title otherwise.
func (n *Notification) Headline() string {
	if n.Ring != nil && n.Ring.Time != "" {
		return n.Ring.Time + " " + n.Title
	}
	return n.Title
}

// WithField adds a field to the notification.
func (n *Notification) WithField(key, value string) *Notification {
	if n.Fields == nil {
		n.Fields = make(map[string]string)
	}
	n.Fields[key] = value
	return n
}

// Notification colors (Discord-compatible hex values).
const (
	ColorSuccess = 0x57F287
	ColorWarning = 0xFEE75C
	ColorInfo    = 0x5865F2
	ColorError   = 0xED4245
)

// DefaultColorForType returns the default color for a notification type.
func DefaultColorForType(t NotificationType) int {
	switch t {
	case NotifyAlarmRing:
		return ColorWarning
	case NotifyAlarmDisabled:
		return ColorSuccess
	case NotifySyncConflict:
		return ColorError
	default:
		return ColorInfo
	}
}

// Icon returns an emoji shortcode for the notification type.
func (n *Notification) Icon() string {
	switch n.Type {
	case NotifyAlarmRing:
		return "alarm_clock"
	case NotifyAlarmDisabled:
		return "zzz"
	case NotifySyncConflict:
		return "warning"
	case NotifyTest:
		return "test_tube"
	default:
		return "bell"
	}
}

// TypeLabel returns a human-readable label for the notification type.
func (n *Notification) TypeLabel() string {
	switch n.Type {
	case NotifyAlarmRing:
		return "Alarm"
	case NotifyAlarmDisabled:
		return "Alarm Disabled"
	case NotifySyncConflict:
		return "Sync Conflict"
	case NotifyTest:
		return "Test"
	default:
		return "Notification"
	}
}
