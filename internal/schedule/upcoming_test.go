package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/timely/internal/model"
)

func TestUpcoming(t *testing.T) {
	now := at(11, 5, 0) // Monday
	alarms := []model.Alarm{
		{ID: 1, Title: "Daily", Time: "07:00", Days: model.Days{0, 1, 2, 3, 4, 5, 6}, IsActive: true},
		{ID: 2, Title: "Once", Time: "06:00", NoRepeat: true, IsActive: true},
		{ID: 3, Title: "Off", Time: "05:30", Days: model.Days{1}, IsActive: false},
		{ID: 4, Title: "Broken", Time: "nope", Days: model.Days{1}, IsActive: true},
	}

	got := Upcoming(alarms, now, 4)
	require.Len(t, got, 4)
	assert.Equal(t, int64(2), got[0].Alarm.ID)
	assert.Equal(t, at(11, 6, 0), got[0].At)
	assert.Equal(t, int64(1), got[1].Alarm.ID)
	assert.Equal(t, at(11, 7, 0), got[1].At)
	assert.Equal(t, at(12, 7, 0), got[2].At)
	assert.Equal(t, at(13, 7, 0), got[3].At)

	assert.Nil(t, Upcoming(alarms, now, 0))
}

func TestUpcomingOneTimeOnlyOnce(t *testing.T) {
	alarms := []model.Alarm{{ID: 9, Time: "08:00", IsActive: true}}
	got := Upcoming(alarms, at(11, 5, 0), 5)
	require.Len(t, got, 1)
	assert.Equal(t, at(11, 8, 0), got[0].At)
}

func TestUntil(t *testing.T) {
	now := at(11, 5, 0)
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "<1m"},
		{45 * time.Minute, "45m"},
		{3*time.Hour + 20*time.Minute, "3h 20m"},
		{2 * time.Hour, "2h"},
		{26 * time.Hour, "1d 2h"},
		{48 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Until(now.Add(tt.d), now), tt.d.String())
	}
}
