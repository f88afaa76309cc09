package output

import (
	"time"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/schedule"
)

// JSONFormatter provides JSON-specific formatting.
type JSONFormatter struct {
	*Formatter
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(f *Formatter) *JSONFormatter {
	return &JSONFormatter{Formatter: f}
}

// AlarmOutput is an alarm plus its computed next fire time.
type AlarmOutput struct {
	model.Alarm
	NextFireAt string `json:"nextFireAt,omitempty"`
}

// NewAlarmOutput creates an AlarmOutput for a as of now.
func NewAlarmOutput(a model.Alarm, now time.Time) AlarmOutput {
	out := AlarmOutput{Alarm: a}
	if a.IsActive {
		if at, ok := schedule.NextFor(a, now); ok {
			out.NextFireAt = at.Format(time.RFC3339)
		}
	}
	return out
}

// AlarmResponse is the output of single-alarm commands.
type AlarmResponse struct {
	Status string      `json:"status"`
	Alarm  AlarmOutput `json:"alarm"`
}

// AlarmsResponse is the output of list and sync.
type AlarmsResponse struct {
	Alarms   []AlarmOutput `json:"alarms"`
	Total    int           `json:"total"`
	Synced   int           `json:"synced"`
	Pending  int           `json:"pending"`
	Conflict int           `json:"conflict"`
}

// NewAlarmsResponse creates an AlarmsResponse.
func NewAlarmsResponse(alarms []model.Alarm, now time.Time) *AlarmsResponse {
	resp := &AlarmsResponse{Alarms: make([]AlarmOutput, 0, len(alarms)), Total: len(alarms)}
	for _, a := range alarms {
		resp.Alarms = append(resp.Alarms, NewAlarmOutput(a, now))
		switch a.SyncStatus {
		case model.SyncSynced:
			resp.Synced++
		case model.SyncPending:
			resp.Pending++
		case model.SyncConflict:
			resp.Conflict++
		}
	}
	return resp
}

// OccurrenceOutput is one upcoming firing.
type OccurrenceOutput struct {
	AlarmID int64  `json:"alarmId"`
	Title   string `json:"title"`
	At      string `json:"at"`
	In      string `json:"in"`
}

// UpcomingResponse is the output of next.
type UpcomingResponse struct {
	From     string             `json:"from"`
	Upcoming []OccurrenceOutput `json:"upcoming"`
}

// ErrorResponse represents an error in JSON.
type ErrorResponse struct {
	Status     string            `json:"status"`
	Error      string            `json:"error"`
	Kind       timelyerrors.Kind `json:"kind,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
}

// WebhooksResponse is the output of webhook list.
type WebhooksResponse struct {
	Webhooks []*model.Webhook `json:"webhooks"`
}

// PrintAlarm outputs one alarm with a status word such as "created".
func (j *JSONFormatter) PrintAlarm(status string, a model.Alarm, now time.Time) error {
	return j.JSON(AlarmResponse{Status: status, Alarm: NewAlarmOutput(a, now)})
}

// PrintAlarms outputs an alarm list.
func (j *JSONFormatter) PrintAlarms(alarms []model.Alarm, now time.Time) error {
	return j.JSON(NewAlarmsResponse(alarms, now))
}

// NewUpcomingResponse creates an UpcomingResponse for occ as of now.
func NewUpcomingResponse(occ []schedule.Occurrence, now time.Time) *UpcomingResponse {
	resp := &UpcomingResponse{From: now.Format(time.RFC3339), Upcoming: make([]OccurrenceOutput, 0, len(occ))}
	for _, o := range occ {
		resp.Upcoming = append(resp.Upcoming, OccurrenceOutput{
			AlarmID: o.Alarm.ID,
			Title:   o.Alarm.DisplayTitle(),
			At:      o.At.Format(time.RFC3339),
			In:      schedule.Until(o.At, now),
		})
	}
	return resp
}

// PrintUpcoming outputs upcoming firings.
func (j *JSONFormatter) PrintUpcoming(occ []schedule.Occurrence, now time.Time) error {
	return j.JSON(NewUpcomingResponse(occ, now))
}

// PrintWebhooks outputs webhooks with their URLs.
func (j *JSONFormatter) PrintWebhooks(hooks []*model.Webhook) error {
	if hooks == nil {
		hooks = []*model.Webhook{}
	}
	return j.JSON(WebhooksResponse{Webhooks: hooks})
}

// PrintError outputs err with its kind and suggestion.
func (j *JSONFormatter) PrintError(err error) error {
	return j.JSON(ErrorResponse{
		Status:     "error",
		Error:      err.Error(),
		Kind:       timelyerrors.KindOf(err),
		Suggestion: timelyerrors.GetSuggestion(err),
	})
}

// PrintStatus outputs a bare status word with an optional message.
func (j *JSONFormatter) PrintStatus(status, message string) error {
	return j.JSON(map[string]string{"status": status, "message": message})
}
