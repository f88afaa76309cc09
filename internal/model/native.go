package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NativeIDPrefix prefixes every native alarm id derived from a server id.
const NativeIDPrefix = "timely-"

// NativeID derives the native alarm id for a server alarm id.
func NativeID(serverID int64) string {
	return NativeIDPrefix + strconv.FormatInt(serverID, 10)
}

// ServerIDFromNative recovers the server id from a derived native id.
func ServerIDFromNative(nativeID string) (int64, bool) {
	rest, ok := strings.CutPrefix(nativeID, NativeIDPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// NativeExtra is the opaque payload carried with a native alarm and handed
// back on every native event.
type NativeExtra struct {
	BackendAlarmID int64  `json:"backendAlarmId"`
	Title          string `json:"title"`
	Sound          string `json:"sound,omitempty"`
	Volume         *int   `json:"volume,omitempty"`
}

// NativeUI is the text the native alarm screen shows while ringing.
type NativeUI struct {
	TitleText     string `json:"titleText"`
	AlarmNameText string `json:"alarmNameText"`
}

// NativeAlarm is one entry of the device-local alarm schedule.
type NativeAlarm struct {
	Key       string      `json:"key"`
	AlarmID   string      `json:"alarmId"`
	At        time.Time   `json:"at"`
	Name      string      `json:"name"`
	Exact     bool        `json:"exact"`
	Extra     NativeExtra `json:"extra"`
	UI        NativeUI    `json:"uiOptions"`
	CreatedAt time.Time   `json:"createdAt"`
}

// SetKey sets the database key for this schedule entry.
func (n *NativeAlarm) SetKey(key string) {
	n.Key = key
}

// GetKey returns the database key for this schedule entry.
func (n *NativeAlarm) GetKey() string {
	return n.Key
}

// GenerateNativeKey generates a database key for a native alarm id.
func GenerateNativeKey(alarmID string) string {
	return fmt.Sprintf("%s:%s", PrefixNative, alarmID)
}

// NativeAlarmFor builds the schedule entry for a server alarm firing at at.
func NativeAlarmFor(a Alarm, at time.Time) NativeAlarm {
	id := NativeID(a.ID)
	uiTitle := a.Title
	if uiTitle == "" {
		uiTitle = "Alarm"
	}
	return NativeAlarm{
		Key:     GenerateNativeKey(id),
		AlarmID: id,
		At:      at,
		Name:    "Alarm: " + a.DisplayTitle(),
		Exact:   true,
		Extra: NativeExtra{
			BackendAlarmID: a.ID,
			Title:          a.DisplayTitle(),
			Sound:          a.Sound,
			Volume:         cloneInt(a.Volume),
		},
		UI: NativeUI{
			TitleText:     uiTitle,
			AlarmNameText: a.Time,
		},
	}
}

// NativeEventName names a native alarm transition.
type NativeEventName string

const (
	NativeAlarmTriggered NativeEventName = "alarm_triggered"
	NativeAlarmDismissed NativeEventName = "alarmDismissed"
)

// NativeEvent is delivered to gateway listeners.
type NativeEvent struct {
	Name    NativeEventName `json:"name"`
	AlarmID string          `json:"alarmId"`
	Extra   *NativeExtra    `json:"extra,omitempty"`
	At      time.Time       `json:"at"`
}

// ServerID resolves the originating server alarm id, first from the native
// id pattern and then from the extra payload.
func (e NativeEvent) ServerID() (int64, bool) {
	if id, ok := ServerIDFromNative(e.AlarmID); ok {
		return id, true
	}
	if e.Extra != nil && e.Extra.BackendAlarmID > 0 {
		return e.Extra.BackendAlarmID, true
	}
	return 0, false
}
