// Package reconcile keeps the device-local native alarm schedule consistent
// with server alarm records.
//
// Every record from any source (REST response, realtime push, toggle, sync)
// goes through Engine.Reconcile, which normalizes it, cancels or reschedules
// the native alarm, sets the sync status and writes the result to the store.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/gateway"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/schedule"
	"github.com/manav03panchal/timely/internal/store"
)

// NoticeLevel grades a user-visible notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a secondary outcome worth showing to the user, such as a native
// scheduling failure that did not fail the operation itself.
type Notice struct {
	Level   NoticeLevel
	AlarmID int64
	Message string
	Err     error
}

// Notifier receives notices. It must not block.
type Notifier func(Notice)

// Observer receives reconcile outcomes for metrics.
type Observer interface {
	ObserveReconcile(status model.SyncStatus)
	ObserveNative(op string, err error)
	ObserveCorrection(outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveReconcile(model.SyncStatus) {}
func (nopObserver) ObserveNative(string, error)       {}
func (nopObserver) ObserveCorrection(string)          {}

// Engine reconciles alarm records against the native gateway.
type Engine struct {
	gw          gateway.Gateway
	store       *store.Store
	corrections *CorrectionQueue
	notify      Notifier
	observer    Observer
	now         func() time.Time
	logger      *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the time source used for fire time computation.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithNotifier sets where notices go.
func WithNotifier(fn Notifier) EngineOption {
	return func(e *Engine) { e.notify = fn }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// WithCorrections sets the queue that pushes noRepeat corrections back to
// the server. Without one, corrections are only applied locally.
func WithCorrections(q *CorrectionQueue) EngineOption {
	return func(e *Engine) { e.corrections = q }
}

// NewEngine creates an engine over gw and st.
func NewEngine(gw gateway.Gateway, st *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		gw:       gw,
		store:    st,
		notify:   func(Notice) {},
		observer: nopObserver{},
		now:      time.Now,
		logger:   logging.Component("reconcile"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the store the engine writes to.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Reconcile derives the native schedule for rec, applies it and stores the
// result. Native failures are absorbed into the returned record's
// SyncStatus; Reconcile itself never fails.
func (e *Engine) Reconcile(ctx context.Context, rec model.Alarm) model.Alarm {
	a := rec.Clone()
	logger := e.logger.With(logging.KeyAlarmID, a.ID)

	// The native id is owned here; records from the server never carry it.
	if a.NativeAlarmID == "" && a.HasID() {
		if cur, ok := e.store.Get(a.ID); ok {
			a.NativeAlarmID = cur.NativeAlarmID
		}
	}

	// 1. Normalize days and keep noRepeat consistent with them.
	a.Days = a.Days.Valid()
	if len(a.Days) == 0 && !a.NoRepeat {
		a.NoRepeat = true
		logger.Debug("no days selected, forcing noRepeat")
		if a.IsActive && a.HasID() && e.corrections != nil {
			if e.corrections.Enqueue(a.ID) {
				e.observer.ObserveCorrection("queued")
			}
		}
	}

	// 2. Scheduling is keyed to the server identity.
	if !a.HasID() {
		if a.NativeAlarmID != "" {
			e.cancel(ctx, a.NativeAlarmID)
			a.NativeAlarmID = ""
		}
		logger.Debug("record has no id, not scheduling")
		return a
	}

	// 3. Inactive alarms are intentionally unscheduled.
	if !a.IsActive {
		if a.NativeAlarmID != "" {
			e.cancel(ctx, a.NativeAlarmID)
			a.NativeAlarmID = ""
		}
		a.SyncStatus = model.SyncSynced
		return e.finish(a)
	}

	// 4. Rescheduling starts from a clean slate.
	if a.NativeAlarmID != "" {
		e.cancel(ctx, a.NativeAlarmID)
		a.NativeAlarmID = ""
	}

	// 5. Compute the next fire instant.
	clock, err := model.ParseClock(a.Time)
	if err != nil {
		logger.Error("active alarm has an invalid time", "time", a.Time, logging.KeyError, err)
		a.SyncStatus = model.SyncConflict
		e.notify(Notice{
			Level:   NoticeError,
			AlarmID: a.ID,
			Message: "Alarm " + a.Label() + " has an invalid time and was not scheduled.",
			Err:     err,
		})
		return e.finish(a)
	}
	at, ok := schedule.NextFireTime(clock, a.Days, a.NoRepeat, e.now())

	// 6. No valid instant: leave unscheduled.
	if !ok {
		logger.Warn("no valid fire time", logging.KeyDays, a.Days.String())
		if a.SyncStatus == model.SyncPending {
			a.SyncStatus = model.SyncConflict
		}
		return e.finish(a)
	}

	// 7. Schedule under the id derived from the server id.
	n := model.NativeAlarmFor(a, at)
	nativeID, err := e.gw.Schedule(ctx, n)
	e.observer.ObserveNative("schedule", err)
	if err != nil {
		logger.Error("failed to schedule native alarm",
			logging.KeyNativeID, n.AlarmID, logging.KeyFireAt, at, logging.KeyError, err)
		a.NativeAlarmID = ""
		a.SyncStatus = model.SyncConflict
		e.notify(Notice{
			Level:   NoticeError,
			AlarmID: a.ID,
			Message: "Alarm " + a.Label() + " was saved but could not be scheduled on this device.",
			Err:     err,
		})
		return e.finish(a)
	}
	a.NativeAlarmID = nativeID
	a.SyncStatus = model.SyncSynced
	logger.Debug("native alarm scheduled", logging.KeyNativeID, nativeID, logging.KeyFireAt, at)

	// 8. Store.
	return e.finish(a)
}

// finish writes a to the store and returns the stored value.
func (e *Engine) finish(a model.Alarm) model.Alarm {
	e.observer.ObserveReconcile(a.SyncStatus)
	e.logger.Debug("reconciled",
		logging.KeyAlarmID, a.ID,
		logging.KeySyncStatus, a.SyncStatus,
		logging.KeyNativeID, a.NativeAlarmID)
	return e.store.Upsert(a)
}

// ReconcileAll reconciles each record in order and returns the results.
func (e *Engine) ReconcileAll(ctx context.Context, recs []model.Alarm) []model.Alarm {
	out := make([]model.Alarm, 0, len(recs))
	for _, rec := range recs {
		out = append(out, e.Reconcile(ctx, rec))
	}
	return out
}

// CancelByServerID cancels the native alarm of server alarm id. When the
// store does not know a native id, the derived one is tried.
func (e *Engine) CancelByServerID(ctx context.Context, id int64) {
	if cur, ok := e.store.Get(id); ok && cur.NativeAlarmID != "" {
		e.cancel(ctx, cur.NativeAlarmID)
		e.store.Update(id, func(a *model.Alarm) { a.NativeAlarmID = "" })
		return
	}
	e.cancel(ctx, model.NativeID(id))
}

// CancelAll cancels every native alarm the store knows about.
func (e *Engine) CancelAll(ctx context.Context) {
	for _, a := range e.store.Snapshot() {
		if a.NativeAlarmID != "" {
			e.cancel(ctx, a.NativeAlarmID)
		}
	}
}

// cancel is best-effort: failures are logged and never escalated.
func (e *Engine) cancel(ctx context.Context, nativeID string) {
	err := e.gw.Cancel(ctx, nativeID)
	e.observer.ObserveNative("cancel", err)
	switch {
	case err == nil:
		e.logger.Debug("native alarm cancelled", logging.KeyNativeID, nativeID)
	case errors.Is(err, timelyerrors.ErrNativeNotScheduled):
		e.logger.Debug("native alarm was not scheduled", logging.KeyNativeID, nativeID)
	default:
		e.logger.Warn("failed to cancel native alarm", logging.KeyNativeID, nativeID, logging.KeyError, err)
	}
}
