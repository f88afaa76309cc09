package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
)

// Monday 2024-03-11 12:00 UTC.
var refNow = time.Date(2024, 3, 11, 12, 0, 0, 0, time.UTC)

func TestParseInstant(t *testing.T) {
	t.Run("empty_and_now", func(t *testing.T) {
		for _, in := range []string{"", "now", "NOW", "  now  "} {
			got, err := ParseInstant(in, refNow)
			require.NoError(t, err, in)
			assert.Equal(t, refNow, got, in)
		}
	})

	t.Run("absolute", func(t *testing.T) {
		got, err := ParseInstant("2024-03-15 07:00", refNow)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC), got)
	})

	t.Run("relative", func(t *testing.T) {
		got, err := ParseInstant("in 3 hours", refNow)
		require.NoError(t, err)
		assert.Equal(t, refNow.Add(3*time.Hour), got)
	})

	t.Run("tomorrow", func(t *testing.T) {
		got, err := ParseInstant("tomorrow", refNow)
		require.NoError(t, err)
		assert.Equal(t, 12, got.Day())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseInstant("the heat death of the universe", refNow)
		require.Error(t, err)
		assert.True(t, timelyerrors.IsUserError(err))
	})
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want model.Clock
	}{
		{"07:30", model.Clock{Hour: 7, Minute: 30}},
		{"22:05", model.Clock{Hour: 22, Minute: 5}},
		{"07:30:00", model.Clock{Hour: 7, Minute: 30}},
		{"7:30am", model.Clock{Hour: 7, Minute: 30}},
		{"10pm", model.Clock{Hour: 22, Minute: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in, refNow)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("rejects_words", func(t *testing.T) {
		for _, in := range []string{"", "soon", "breakfast"} {
			_, err := ParseClock(in, refNow)
			assert.ErrorIs(t, err, timelyerrors.ErrInvalidTime, in)
		}
	})
}
