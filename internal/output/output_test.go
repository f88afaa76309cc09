package output

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/schedule"
)

// Monday 2024-01-15 06:00 local.
var now = time.Date(2024, 1, 15, 6, 0, 0, 0, time.Local)

func plain(buf *bytes.Buffer) *CLIFormatter {
	return NewCLIFormatter(&Formatter{Writer: buf, Format: FormatCLI, ColorMode: ColorNever})
}

// =============================================================================
// Formatter Tests
// =============================================================================

func TestNewFormatter(t *testing.T) {
	f := NewFormatter()
	assert.Equal(t, FormatCLI, f.Format)
	assert.Equal(t, ColorAuto, f.ColorMode)
}

func TestParseFlags(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatPlain, ParseFormat("plain"))
	assert.Equal(t, FormatCLI, ParseFormat("cli"))
	assert.Equal(t, FormatCLI, ParseFormat("yaml"))

	assert.Equal(t, ColorAlways, ParseColorMode("always"))
	assert.Equal(t, ColorNever, ParseColorMode("never"))
	assert.Equal(t, ColorAuto, ParseColorMode(""))
}

func TestFormatterIsColorEnabled(t *testing.T) {
	t.Run("color_always", func(t *testing.T) {
		f := &Formatter{ColorMode: ColorAlways}
		assert.True(t, f.IsColorEnabled())
	})

	t.Run("color_never", func(t *testing.T) {
		f := &Formatter{ColorMode: ColorNever}
		assert.False(t, f.IsColorEnabled())
	})

	t.Run("color_auto_non_terminal", func(t *testing.T) {
		var buf bytes.Buffer
		f := &Formatter{Writer: &buf, ColorMode: ColorAuto}
		assert.False(t, f.IsColorEnabled())
	})

	t.Run("plain_format_auto", func(t *testing.T) {
		f := &Formatter{Format: FormatPlain, ColorMode: ColorAuto}
		assert.False(t, f.IsColorEnabled())
	})

	t.Run("no_color_env", func(t *testing.T) {
		t.Setenv("NO_COLOR", "1")
		f := &Formatter{Writer: os.Stdout, ColorMode: ColorAuto}
		assert.False(t, f.IsColorEnabled())
		f.ColorMode = ColorAlways
		assert.True(t, f.IsColorEnabled())
	})
}

func TestFormatterJSON(t *testing.T) {
	var buf bytes.Buffer
	f := &Formatter{Writer: &buf}

	require.NoError(t, f.JSON(map[string]string{"key": "value"}))
	assert.Contains(t, buf.String(), `"key": "value"`)
}

// =============================================================================
// CLIFormatter Tests
// =============================================================================

func TestCLIFormatterMessages(t *testing.T) {
	var buf bytes.Buffer
	cli := plain(&buf)

	cli.Title("Alarms")
	cli.Success("Alarm created")
	cli.Warning("Careful")
	cli.Error("Failed")
	cli.Muted("quiet")

	out := buf.String()
	assert.Contains(t, out, "Alarms\n")
	assert.Contains(t, out, "✓ Alarm created")
	assert.Contains(t, out, "⚠ Careful")
	assert.Contains(t, out, "✗ Failed")
	assert.Contains(t, out, "quiet")
}

func TestSyncBadge(t *testing.T) {
	cli := plain(&bytes.Buffer{})
	assert.Equal(t, "● synced", cli.SyncBadge(model.SyncSynced))
	assert.Equal(t, "◌ pending", cli.SyncBadge(model.SyncPending))
	assert.Equal(t, "✗ conflict", cli.SyncBadge(model.SyncConflict))
	assert.Equal(t, "- unknown", cli.SyncBadge(""))
}

func TestPrintAlarms(t *testing.T) {
	var buf bytes.Buffer
	cli := plain(&buf)

	cli.PrintAlarms([]model.Alarm{
		{ID: 1, Title: "Wake", Time: "07:00", Days: model.Days{1, 2, 3, 4, 5}, IsActive: true, SyncStatus: model.SyncSynced},
		{ID: 2, Title: "", Time: "22:30", Days: model.Days{}, IsActive: false, SyncStatus: model.SyncConflict},
	}, now)

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "─")
	assert.Contains(t, out, "Wake")
	assert.Contains(t, out, "Weekdays")
	assert.Contains(t, out, "Untitled Alarm")
	assert.Contains(t, out, "Mon Jan 15 07:00 (in 1h)")
	assert.Contains(t, out, "1 alarm(s) could not be scheduled")
}

func TestPrintAlarmsEmpty(t *testing.T) {
	var buf bytes.Buffer
	plain(&buf).PrintAlarms(nil, now)
	assert.Contains(t, buf.String(), "No alarms.")
}

func TestPrintAlarm(t *testing.T) {
	var buf bytes.Buffer
	plain(&buf).PrintAlarm(model.Alarm{
		ID: 7, Title: "Gym", Time: "06:15", Days: model.Days{1, 3}, NoRepeat: true,
		IsActive: true, SyncStatus: model.SyncSynced, NativeAlarmID: "timely-7",
	}, now)

	out := buf.String()
	assert.Contains(t, out, "06:15  Gym")
	assert.Contains(t, out, "Repeats: Mon Wed")
	assert.Contains(t, out, "one-time")
	assert.Contains(t, out, "Native:  timely-7")
	assert.Contains(t, out, "Next:    Mon Jan 15 06:15")
}

func TestPrintUpcoming(t *testing.T) {
	var buf bytes.Buffer
	a := model.Alarm{ID: 3, Title: "Standup", Time: "09:30", Days: model.Days{1}, IsActive: true}
	plain(&buf).PrintUpcoming(schedule.Upcoming([]model.Alarm{a}, now, 2), now)

	out := buf.String()
	assert.Contains(t, out, "Mon Jan 15 09:30")
	assert.Contains(t, out, "Mon Jan 22 09:30")
	assert.Contains(t, out, "Standup")
	assert.Contains(t, out, "#3")
}

func TestPrintWebhooks(t *testing.T) {
	var buf bytes.Buffer
	hook := model.NewWebhook("ops", "", "https://hooks.slack.com/services/x")
	hook.Enabled = false
	plain(&buf).PrintWebhooks([]*model.Webhook{hook})

	out := buf.String()
	assert.Contains(t, out, "ops")
	assert.Contains(t, out, "slack")
	assert.Contains(t, out, "disabled")
}

func TestPrintTable(t *testing.T) {
	t.Run("aligned", func(t *testing.T) {
		var buf bytes.Buffer
		plain(&buf).PrintTable([]string{"A", "B"}, []TableRow{
			{Columns: []string{"short", "x"}},
			{Columns: []string{"much longer", "y"}},
		})
		lines := bytes.Split(bytes.TrimRight(buf.Bytes(), "\n"), []byte("\n"))
		require.Len(t, lines, 4)
		assert.Equal(t, "A"+strings.Repeat(" ", 12)+"B", string(lines[0]))
		assert.Equal(t, "short"+strings.Repeat(" ", 8)+"x", string(lines[2]))
	})

	t.Run("empty_rows", func(t *testing.T) {
		var buf bytes.Buffer
		plain(&buf).PrintTable([]string{"Name"}, nil)
		assert.Empty(t, buf.String())
	})
}

// =============================================================================
// JSONFormatter Tests
// =============================================================================

func TestJSONPrintAlarms(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONFormatter(&Formatter{Writer: &buf, Format: FormatJSON})

	require.NoError(t, j.PrintAlarms([]model.Alarm{
		{ID: 1, Title: "Wake", Time: "07:00", Days: model.Days{1}, IsActive: true, SyncStatus: model.SyncSynced},
		{ID: 2, Title: "Nap", Time: "bad", IsActive: true, SyncStatus: model.SyncConflict},
	}, now))

	var resp AlarmsResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 1, resp.Synced)
	assert.Equal(t, 1, resp.Conflict)
	require.Len(t, resp.Alarms, 2)
	assert.Equal(t, "Wake", resp.Alarms[0].Title)
	assert.NotEmpty(t, resp.Alarms[0].NextFireAt)
	assert.Empty(t, resp.Alarms[1].NextFireAt)
}

func TestJSONPrintAlarmFlattensFields(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONFormatter(&Formatter{Writer: &buf, Format: FormatJSON})

	require.NoError(t, j.PrintAlarm("created", model.Alarm{ID: 5, Title: "T", Time: "08:00", IsActive: true}, now))

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.JSONEq(t, `"created"`, string(raw["status"]))

	var alarm map[string]any
	require.NoError(t, json.Unmarshal(raw["alarm"], &alarm))
	assert.Equal(t, "T", alarm["title"])
	assert.Equal(t, "08:00", alarm["time"])
	assert.Contains(t, alarm, "nextFireAt")
}

func TestJSONPrintError(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONFormatter(&Formatter{Writer: &buf, Format: FormatJSON})

	require.NoError(t, j.PrintError(timelyerrors.ErrAlarmNotFound))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, timelyerrors.KindNotFound, resp.Kind)
	assert.NotEmpty(t, resp.Suggestion)
}

func TestJSONPrintUpcoming(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONFormatter(&Formatter{Writer: &buf, Format: FormatJSON})
	a := model.Alarm{ID: 3, Title: "Standup", Time: "09:30", Days: model.Days{1}, IsActive: true}

	require.NoError(t, j.PrintUpcoming(schedule.Upcoming([]model.Alarm{a}, now, 1), now))

	var resp UpcomingResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Len(t, resp.Upcoming, 1)
	assert.Equal(t, int64(3), resp.Upcoming[0].AlarmID)
	assert.Equal(t, "3h 30m", resp.Upcoming[0].In)
}

func TestJSONPrintWebhooksEmpty(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSONFormatter(&Formatter{Writer: &buf, Format: FormatJSON})

	require.NoError(t, j.PrintWebhooks(nil))
	assert.Contains(t, buf.String(), `"webhooks": []`)
}
