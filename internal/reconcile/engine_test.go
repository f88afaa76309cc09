package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/gateway"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/store"
)

// Saturday 2024-03-09 08:00 UTC.
var saturday8am = time.Date(2024, 3, 9, 8, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return saturday8am }

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (l *noticeLog) add(n Notice) {
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

func (l *noticeLog) all() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Notice(nil), l.notices...)
}

type engineFixture struct {
	gw      *gateway.Fake
	store   *store.Store
	engine  *Engine
	queue   *CorrectionQueue
	sent    *[]int64
	notices *noticeLog
}

func newEngineFixture(t *testing.T) engineFixture {
	t.Helper()
	var (
		mu   sync.Mutex
		sent []int64
	)
	q := NewCorrectionQueue(func(ctx context.Context, id int64) error {
		mu.Lock()
		sent = append(sent, id)
		mu.Unlock()
		return nil
	})
	f := engineFixture{
		gw:      gateway.NewFake(),
		store:   store.New(),
		queue:   q,
		sent:    &sent,
		notices: &noticeLog{},
	}
	f.engine = NewEngine(f.gw, f.store,
		WithClock(fixedClock),
		WithCorrections(q),
		WithNotifier(f.notices.add),
	)
	return f
}

func weekdayAlarm(id int64) model.Alarm {
	return model.Alarm{ID: id, Title: "Work", Time: "07:00", Days: model.Days{1, 2, 3, 4, 5}, IsActive: true}
}

func TestReconcile_SchedulesActiveAlarm(t *testing.T) {
	f := newEngineFixture(t)

	got := f.engine.Reconcile(context.Background(), weekdayAlarm(1))

	assert.Equal(t, "timely-1", got.NativeAlarmID)
	assert.Equal(t, model.SyncSynced, got.SyncStatus)

	n, ok := f.gw.Scheduled("timely-1")
	require.True(t, ok)
	// Saturday 08:00 with weekdays selected: Monday 07:00.
	assert.True(t, n.At.Equal(time.Date(2024, 3, 11, 7, 0, 0, 0, time.UTC)), "got %s", n.At)
	assert.Equal(t, int64(1), n.Extra.BackendAlarmID)
	assert.Equal(t, "Work", n.Extra.Title)
	assert.Equal(t, "Alarm: Work", n.Name)

	stored, ok := f.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, got, stored)
}

func TestReconcile_Idempotent(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	first := f.engine.Reconcile(ctx, weekdayAlarm(1))
	second := f.engine.Reconcile(ctx, weekdayAlarm(1))

	assert.Equal(t, first.NativeAlarmID, second.NativeAlarmID)
	assert.Equal(t, first.SyncStatus, second.SyncStatus)
	assert.Equal(t, 1, f.gw.ScheduledCount(), "one native alarm per server alarm")
	assert.Equal(t, 1, f.store.Len())

	schedules, cancels := f.gw.Calls()
	assert.Len(t, schedules, 2)
	assert.Equal(t, []string{"timely-1"}, cancels, "the echo costs one cancel and one schedule")
}

func TestReconcile_InheritsNativeIDFromStore(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.engine.Reconcile(ctx, weekdayAlarm(1))
	f.gw.Reset()

	// A server echo never carries the native id.
	echo := weekdayAlarm(1)
	echo.IsActive = false
	got := f.engine.Reconcile(ctx, echo)

	_, cancels := f.gw.Calls()
	assert.Equal(t, []string{"timely-1"}, cancels)
	assert.Empty(t, got.NativeAlarmID)
	assert.Equal(t, model.SyncSynced, got.SyncStatus)
	assert.Zero(t, f.gw.ScheduledCount())
}

func TestReconcile_ScheduleFailureIsConflict(t *testing.T) {
	f := newEngineFixture(t)
	f.gw.SetScheduleErr(errors.New("exact alarms not allowed"))

	got := f.engine.Reconcile(context.Background(), weekdayAlarm(3))

	assert.Equal(t, model.SyncConflict, got.SyncStatus)
	assert.Empty(t, got.NativeAlarmID)
	stored, ok := f.store.Get(3)
	require.True(t, ok, "the record is stored even though scheduling failed")
	assert.Equal(t, model.SyncConflict, stored.SyncStatus)

	notices := f.notices.all()
	require.Len(t, notices, 1)
	assert.Equal(t, NoticeError, notices[0].Level)
	assert.Equal(t, int64(3), notices[0].AlarmID)
}

func TestReconcile_ConflictRecoversOnNextReconcile(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.gw.SetScheduleErr(errors.New("denied"))
	f.engine.Reconcile(ctx, weekdayAlarm(3))

	f.gw.SetScheduleErr(nil)
	got := f.engine.Reconcile(ctx, weekdayAlarm(3))
	assert.Equal(t, model.SyncSynced, got.SyncStatus)
	assert.Equal(t, "timely-3", got.NativeAlarmID)
}

func TestReconcile_InactiveCancelsOnce(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.engine.Reconcile(ctx, weekdayAlarm(4))
	f.gw.Reset()

	off := weekdayAlarm(4)
	off.IsActive = false
	off.NativeAlarmID = "timely-4"
	got := f.engine.Reconcile(ctx, off)

	schedules, cancels := f.gw.Calls()
	assert.Empty(t, schedules)
	assert.Equal(t, []string{"timely-4"}, cancels)
	assert.Empty(t, got.NativeAlarmID)
	assert.Equal(t, model.SyncSynced, got.SyncStatus)
}

func TestReconcile_InactiveWithoutNativeIDDoesNotCancel(t *testing.T) {
	f := newEngineFixture(t)
	off := weekdayAlarm(5)
	off.IsActive = false

	got := f.engine.Reconcile(context.Background(), off)

	schedules, cancels := f.gw.Calls()
	assert.Empty(t, schedules)
	assert.Empty(t, cancels)
	assert.Equal(t, model.SyncSynced, got.SyncStatus)
}

func TestReconcile_WithoutIDIsNotScheduledOrStored(t *testing.T) {
	f := newEngineFixture(t)
	rec := weekdayAlarm(0)
	rec.NativeAlarmID = "timely-99"

	got := f.engine.Reconcile(context.Background(), rec)

	schedules, cancels := f.gw.Calls()
	assert.Empty(t, schedules)
	assert.Equal(t, []string{"timely-99"}, cancels)
	assert.Empty(t, got.NativeAlarmID)
	assert.Zero(t, f.store.Len())
}

func TestReconcile_EmptyDaysForcesNoRepeat(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	rec := model.Alarm{ID: 6, Title: "Dentist", Time: "09:30", IsActive: true}

	got := f.engine.Reconcile(ctx, rec)

	assert.True(t, got.NoRepeat)
	assert.Equal(t, model.Days{}, got.Days)
	n, ok := f.gw.Scheduled("timely-6")
	require.True(t, ok)
	assert.True(t, n.At.Equal(time.Date(2024, 3, 9, 9, 30, 0, 0, time.UTC)), "got %s", n.At)

	assert.Equal(t, 1, f.queue.Stats().QueueSize)
	assert.Equal(t, 1, f.queue.Drain(ctx))
	assert.Equal(t, []int64{6}, *f.sent)
}

func TestReconcile_EmptyDaysOnInactiveAlarmNotCorrected(t *testing.T) {
	f := newEngineFixture(t)
	rec := model.Alarm{ID: 7, Time: "09:30", IsActive: false}

	got := f.engine.Reconcile(context.Background(), rec)

	assert.True(t, got.NoRepeat)
	assert.Zero(t, f.queue.Stats().QueueSize)
}

func TestReconcile_OutOfRangeDaysDropped(t *testing.T) {
	f := newEngineFixture(t)
	rec := model.Alarm{ID: 8, Time: "07:00", Days: model.Days{9, -1, 0, 0}, IsActive: true}

	got := f.engine.Reconcile(context.Background(), rec)

	assert.Equal(t, model.Days{0}, got.Days)
	assert.False(t, got.NoRepeat)
	n, ok := f.gw.Scheduled("timely-8")
	require.True(t, ok)
	assert.Equal(t, time.Sunday, n.At.Weekday())
}

func TestReconcile_InvalidTimeIsConflict(t *testing.T) {
	f := newEngineFixture(t)
	rec := weekdayAlarm(9)
	rec.Time = "25:99"
	rec.NativeAlarmID = "timely-9"

	got := f.engine.Reconcile(context.Background(), rec)

	assert.Equal(t, model.SyncConflict, got.SyncStatus)
	assert.Empty(t, got.NativeAlarmID)
	assert.Zero(t, f.gw.ScheduledCount())
	notices := f.notices.all()
	require.Len(t, notices, 1)
	assert.ErrorIs(t, notices[0].Err, timelyerrors.ErrInvalidTime)
}

func TestReconcile_CancelFailureTolerated(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.engine.Reconcile(ctx, weekdayAlarm(10))
	f.gw.CancelErr = errors.New("plugin crashed")

	got := f.engine.Reconcile(ctx, weekdayAlarm(10))
	assert.Equal(t, model.SyncSynced, got.SyncStatus)
	assert.Equal(t, "timely-10", got.NativeAlarmID)
}

func TestCancelByServerID(t *testing.T) {
	t.Run("known alarm", func(t *testing.T) {
		f := newEngineFixture(t)
		ctx := context.Background()
		f.engine.Reconcile(ctx, weekdayAlarm(1))
		f.gw.Reset()

		f.engine.CancelByServerID(ctx, 1)

		_, cancels := f.gw.Calls()
		assert.Equal(t, []string{"timely-1"}, cancels)
		stored, ok := f.store.Get(1)
		require.True(t, ok)
		assert.Empty(t, stored.NativeAlarmID)
	})

	t.Run("unknown alarm uses derived id", func(t *testing.T) {
		f := newEngineFixture(t)
		f.engine.CancelByServerID(context.Background(), 42)
		_, cancels := f.gw.Calls()
		assert.Equal(t, []string{"timely-42"}, cancels)
	})
}

func TestCancelAll(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.engine.Reconcile(ctx, weekdayAlarm(1))
	f.engine.Reconcile(ctx, weekdayAlarm(2))
	off := weekdayAlarm(3)
	off.IsActive = false
	f.engine.Reconcile(ctx, off)
	f.gw.Reset()

	f.engine.CancelAll(ctx)

	_, cancels := f.gw.Calls()
	assert.ElementsMatch(t, []string{"timely-1", "timely-2"}, cancels)
	assert.Zero(t, f.gw.ScheduledCount())
}

func TestMarkPendingAndRestore(t *testing.T) {
	f := newEngineFixture(t)
	f.engine.Reconcile(context.Background(), weekdayAlarm(1))

	prev, ok := f.engine.MarkPending(1)
	require.True(t, ok)
	assert.Equal(t, model.SyncSynced, prev)
	stored, _ := f.store.Get(1)
	assert.Equal(t, model.SyncPending, stored.SyncStatus)

	f.engine.restore(1, prev)
	stored, _ = f.store.Get(1)
	assert.Equal(t, model.SyncSynced, stored.SyncStatus)

	_, ok = f.engine.MarkPending(99)
	assert.False(t, ok)
}

func TestCountStatuses(t *testing.T) {
	alarms := []model.Alarm{
		{ID: 1, SyncStatus: model.SyncSynced},
		{ID: 2, SyncStatus: model.SyncSynced},
		{ID: 3, SyncStatus: model.SyncConflict},
		{ID: 4, SyncStatus: model.SyncPending},
		{ID: 5},
	}
	c := CountStatuses(alarms)
	assert.Equal(t, StatusCounts{Synced: 2, Pending: 1, Conflict: 1, Unknown: 1}, c)
	assert.Equal(t, 5, c.Total())

	conflicts := Conflicts(alarms)
	require.Len(t, conflicts, 1)
	assert.Equal(t, int64(3), conflicts[0].ID)
}
