package model

import "fmt"

// SyncStatus is the client's belief about whether the device-local native
// schedule matches the intended server state of an alarm.
type SyncStatus string

const (
	SyncSynced   SyncStatus = "synced"
	SyncPending  SyncStatus = "pending"
	SyncConflict SyncStatus = "conflict"
)

// Valid reports whether s is one of the known states or empty.
func (s SyncStatus) Valid() bool {
	switch s {
	case "", SyncSynced, SyncPending, SyncConflict:
		return true
	}
	return false
}

// Alarm is a server-side alarm record plus the two client-owned fields
// SyncStatus and NativeAlarmID.
//
// Optional ring attributes are pointers so a merge can tell an absent field
// from a zero value.
type Alarm struct {
	ID             int64      `json:"id,omitempty"`
	UserID         int64      `json:"userId,omitempty"`
	DeviceID       string     `json:"deviceId,omitempty"`
	Title          string     `json:"title"`
	Time           string     `json:"time"`
	Days           Days       `json:"days"`
	IsActive       bool       `json:"isActive"`
	Sound          string     `json:"sound,omitempty"`
	Volume         *int       `json:"volume,omitempty"`
	Vibration      *bool      `json:"vibration,omitempty"`
	SnoozeInterval *int       `json:"snoozeInterval,omitempty"`
	SnoozeCount    *int       `json:"snoozeCount,omitempty"`
	CreatedAt      string     `json:"createdAt,omitempty"`
	UpdatedAt      string     `json:"updatedAt,omitempty"`
	NoRepeat       bool       `json:"noRepeat"`
	SyncStatus     SyncStatus `json:"syncStatus,omitempty"`
	NativeAlarmID  string     `json:"nativeAlarmId,omitempty"`
}

// HasID reports whether the alarm has a persisted server identity.
func (a *Alarm) HasID() bool {
	return a.ID > 0
}

// IsOneTime reports whether the alarm fires once: noRepeat is set or no
// weekday is selected.
func (a *Alarm) IsOneTime() bool {
	return a.NoRepeat || len(a.Days) == 0
}

// DisplayTitle returns the title, or a placeholder for untitled alarms.
func (a *Alarm) DisplayTitle() string {
	if a.Title == "" {
		return "Untitled Alarm"
	}
	return a.Title
}

// Label is a short human identifier used in logs and CLI output.
func (a *Alarm) Label() string {
	return fmt.Sprintf("#%d %s (%s)", a.ID, a.DisplayTitle(), a.Time)
}

// Clone returns a copy that shares no mutable state with a.
func (a Alarm) Clone() Alarm {
	out := a
	out.Days = a.Days.Clone()
	out.Volume = cloneInt(a.Volume)
	out.Vibration = cloneBool(a.Vibration)
	out.SnoozeInterval = cloneInt(a.SnoozeInterval)
	out.SnoozeCount = cloneInt(a.SnoozeCount)
	return out
}

// MergeAlarm overlays incoming on existing. Fields absent from incoming
// (zero ids, empty strings, nil pointers) keep the existing value. Days and
// the boolean flags always come from incoming, since absent and false can't
// be told apart after decoding: incoming must be a complete server record,
// not a partial patch.
func MergeAlarm(existing, incoming Alarm) Alarm {
	out := existing.Clone()
	in := incoming.Clone()

	if in.ID != 0 {
		out.ID = in.ID
	}
	if in.UserID != 0 {
		out.UserID = in.UserID
	}
	if in.DeviceID != "" {
		out.DeviceID = in.DeviceID
	}
	if in.Title != "" {
		out.Title = in.Title
	}
	if in.Time != "" {
		out.Time = in.Time
	}
	out.Days = in.Days
	out.IsActive = in.IsActive
	out.NoRepeat = in.NoRepeat
	if in.Sound != "" {
		out.Sound = in.Sound
	}
	if in.Volume != nil {
		out.Volume = in.Volume
	}
	if in.Vibration != nil {
		out.Vibration = in.Vibration
	}
	if in.SnoozeInterval != nil {
		out.SnoozeInterval = in.SnoozeInterval
	}
	if in.SnoozeCount != nil {
		out.SnoozeCount = in.SnoozeCount
	}
	if in.CreatedAt != "" {
		out.CreatedAt = in.CreatedAt
	}
	if in.UpdatedAt != "" {
		out.UpdatedAt = in.UpdatedAt
	}
	if in.SyncStatus != "" {
		out.SyncStatus = in.SyncStatus
	}
	// The reconciler clears NativeAlarmID explicitly, so an empty value
	// here is authoritative.
	out.NativeAlarmID = in.NativeAlarmID
	return out
}

// AlarmInput is the body of a create request.
type AlarmInput struct {
	Title          string `json:"title"`
	Time           string `json:"time"`
	Days           Days   `json:"days"`
	IsActive       bool   `json:"isActive"`
	NoRepeat       bool   `json:"noRepeat"`
	Sound          string `json:"sound,omitempty"`
	Volume         *int   `json:"volume,omitempty"`
	Vibration      *bool  `json:"vibration,omitempty"`
	SnoozeInterval *int   `json:"snoozeInterval,omitempty"`
	SnoozeCount    *int   `json:"snoozeCount,omitempty"`
	DeviceID       string `json:"deviceId,omitempty"`
}

// Normalize forces NoRepeat when no weekday is selected.
func (in *AlarmInput) Normalize() {
	if len(in.Days) == 0 {
		in.NoRepeat = true
	}
}

// AlarmPatch is the body of a partial update. Nil fields are not sent.
type AlarmPatch struct {
	Title          *string `json:"title,omitempty"`
	Time           *string `json:"time,omitempty"`
	Days           *Days   `json:"days,omitempty"`
	IsActive       *bool   `json:"isActive,omitempty"`
	NoRepeat       *bool   `json:"noRepeat,omitempty"`
	Sound          *string `json:"sound,omitempty"`
	Volume         *int    `json:"volume,omitempty"`
	Vibration      *bool   `json:"vibration,omitempty"`
	SnoozeInterval *int    `json:"snoozeInterval,omitempty"`
	SnoozeCount    *int    `json:"snoozeCount,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p AlarmPatch) IsEmpty() bool {
	return p == AlarmPatch{}
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBool(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
