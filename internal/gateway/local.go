package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/manav03panchal/timely/internal/config"
	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/storage"
)

// onceSchedule is a cron.Schedule that activates a single time.
type onceSchedule struct {
	at time.Time
}

// Next returns the fire instant until it has passed, then the zero time,
// which cron treats as "never again".
func (s onceSchedule) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	return time.Time{}
}

// cronLogger routes cron's own diagnostics into slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, logging.KeyError, err)...)
}

type localEntry struct {
	alarm  model.NativeAlarm
	cronID cron.EntryID
	// held marks a restored entry that came due while the process was
	// down; FirePastDue rings it.
	held bool
}

// Local is the native gateway of a desktop host: one-shot cron entries,
// with the schedule table persisted so alarms survive a restart.
type Local struct {
	cron      *cron.Cron
	repo      *storage.NativeRepo
	now       func() time.Time
	ring      time.Duration
	perm      PermissionStatus
	logger    *slog.Logger
	listeners listenerSet

	mu      sync.Mutex
	entries map[string]*localEntry
	started bool

	events chan model.NativeEvent
	done   chan struct{}
	wg     sync.WaitGroup
}

// LocalOption configures a Local gateway.
type LocalOption func(*Local)

// WithRepo persists the schedule table.
func WithRepo(repo *storage.NativeRepo) LocalOption {
	return func(l *Local) { l.repo = repo }
}

// WithClock overrides the time source used for firing and past-due checks.
func WithClock(now func() time.Time) LocalOption {
	return func(l *Local) { l.now = now }
}

// WithRingDuration sets how long an alarm rings before it is dismissed.
func WithRingDuration(d time.Duration) LocalOption {
	return func(l *Local) { l.ring = d }
}

// WithPermission fixes the permission the host reports.
func WithPermission(p PermissionStatus) LocalOption {
	return func(l *Local) { l.perm = p }
}

// NewLocal creates a local gateway. Call Start before scheduling.
func NewLocal(opts ...LocalOption) *Local {
	logger := logging.Component("gateway")
	l := &Local{
		now:     time.Now,
		ring:    config.Global.Gateway.RingDuration,
		perm:    PermissionGranted,
		logger:  logger,
		entries: make(map[string]*localEntry),
		events:  make(chan model.NativeEvent, config.Global.Gateway.ListenerBuffer),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	cl := cronLogger{l: logger}
	l.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl)),
	)
	return l
}

// Start restores the persisted schedule and begins timing the future
// entries. Entries that came due while the process was down are held until
// FirePastDue, so the caller can subscribe to their rings first.
func (l *Local) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = true
	l.mu.Unlock()

	l.wg.Add(1)
	go l.dispatch()

	if l.repo != nil {
		saved, err := l.repo.List()
		if err != nil {
			return timelyerrors.NewSystemErrorWithOp("gateway start", "failed to load native schedule", err)
		}
		now := l.now()
		for _, n := range saved {
			if !n.At.After(now) {
				l.mu.Lock()
				l.entries[n.AlarmID] = &localEntry{alarm: *n, held: true}
				l.mu.Unlock()
				continue
			}
			if err := l.arm(*n, false); err != nil {
				return err
			}
		}
		if len(saved) > 0 {
			l.logger.Debug("native schedule restored", logging.KeyCount, len(saved))
		}
	}

	l.cron.Start()
	return nil
}

// FirePastDue rings every entry Start held back. Each alarm_triggered
// event is queued for the listeners before it returns.
func (l *Local) FirePastDue() int {
	l.mu.Lock()
	var held []*localEntry
	for _, e := range l.entries {
		if e.held {
			held = append(held, e)
		}
	}
	l.mu.Unlock()
	sort.Slice(held, func(i, j int) bool { return held[i].alarm.At.Before(held[j].alarm.At) })

	fired := 0
	for _, e := range held {
		if !l.consume(e) {
			continue
		}
		l.logger.Info("firing past-due alarm", logging.KeyNativeID, e.alarm.AlarmID, logging.KeyFireAt, e.alarm.At)
		extra := e.alarm.Extra
		l.emit(model.NativeEvent{Name: model.NativeAlarmTriggered, AlarmID: e.alarm.AlarmID, Extra: &extra, At: l.now()})
		l.wg.Add(1)
		go func(e *localEntry) {
			defer l.wg.Done()
			l.dismissAfterRing(e)
		}(e)
		fired++
	}
	return fired
}

// Restore loads the persisted schedule without timing it. A short-lived
// process uses it to reschedule or cancel entries that the daemon's next
// Start arms.
func (l *Local) Restore() error {
	if l.repo == nil {
		return nil
	}
	saved, err := l.repo.List()
	if err != nil {
		return timelyerrors.NewSystemErrorWithOp("gateway restore", "failed to load native schedule", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range saved {
		l.entries[n.AlarmID] = &localEntry{alarm: *n}
	}
	return nil
}

// Stop halts timing and event delivery. Persisted entries remain and are
// restored by the next Start.
func (l *Local) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	l.started = false
	l.mu.Unlock()

	stopped := l.cron.Stop()
	close(l.done)
	<-stopped.Done()
	l.wg.Wait()
}

// Schedule arms n. An instant that is not in the future fires immediately.
func (l *Local) Schedule(ctx context.Context, n model.NativeAlarm) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if n.AlarmID == "" {
		return "", fmt.Errorf("native alarm id is required")
	}
	if l.perm != PermissionGranted {
		return "", timelyerrors.ErrPermissionDenied
	}
	n.Key = model.GenerateNativeKey(n.AlarmID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = l.now()
	}
	if err := l.arm(n, true); err != nil {
		return "", err
	}
	l.logger.Debug("native alarm scheduled", logging.KeyNativeID, n.AlarmID, logging.KeyFireAt, n.At)
	return n.AlarmID, nil
}

// arm replaces any entry under n.AlarmID and times it.
func (l *Local) arm(n model.NativeAlarm, persist bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if old, ok := l.entries[n.AlarmID]; ok {
		l.cron.Remove(old.cronID)
		delete(l.entries, n.AlarmID)
	}
	if persist && l.repo != nil {
		if err := l.repo.Save(&n); err != nil {
			return timelyerrors.NewSystemErrorWithOp("schedule", "failed to persist native alarm", err)
		}
	}

	entry := &localEntry{alarm: n}
	l.entries[n.AlarmID] = entry

	if !n.At.After(l.now()) {
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			l.fire(entry)
		}()
		return nil
	}

	entry.cronID = l.cron.Schedule(onceSchedule{at: n.At}, cron.FuncJob(func() { l.fire(entry) }))
	return nil
}

// Cancel disarms id.
func (l *Local) Cancel(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", timelyerrors.ErrNativeNotScheduled, id)
	}
	l.cron.Remove(entry.cronID)
	delete(l.entries, id)
	if l.repo != nil {
		if err := l.repo.Delete(id); err != nil {
			return timelyerrors.NewSystemErrorWithOp("cancel", "failed to remove native alarm", err)
		}
	}
	l.logger.Debug("native alarm cancelled", logging.KeyNativeID, id)
	return nil
}

// IsScheduled reports whether id is armed.
func (l *Local) IsScheduled(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[id]
	return ok, nil
}

// Entries returns the armed alarms ordered by fire time.
func (l *Local) Entries() []model.NativeAlarm {
	l.mu.Lock()
	out := make([]model.NativeAlarm, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.alarm)
	}
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Listen registers fn for event.
func (l *Local) Listen(event model.NativeEventName, fn Listener) (*Subscription, error) {
	return l.listeners.add(event, fn)
}

// CheckPermissions reports the host permission.
func (l *Local) CheckPermissions(ctx context.Context) (PermissionStatus, error) {
	return l.perm, ctx.Err()
}

// RequestPermissions cannot prompt on a desktop host; it reports the
// current permission.
func (l *Local) RequestPermissions(ctx context.Context) (PermissionStatus, error) {
	return l.perm, ctx.Err()
}

// consume takes entry out of the schedule. It fails when entry was
// cancelled or replaced meanwhile.
func (l *Local) consume(entry *localEntry) bool {
	id := entry.alarm.AlarmID
	l.mu.Lock()
	if l.entries[id] != entry {
		l.mu.Unlock()
		return false
	}
	l.cron.Remove(entry.cronID)
	delete(l.entries, id)
	l.mu.Unlock()

	if l.repo != nil {
		if err := l.repo.Delete(id); err != nil {
			l.logger.Warn("failed to remove fired alarm", logging.KeyNativeID, id, logging.KeyError, err)
		}
	}
	return true
}

// fire rings entry: it is consumed, alarm_triggered is published, and
// alarm_dismissed follows once the ring duration elapses.
func (l *Local) fire(entry *localEntry) {
	if !l.consume(entry) {
		return
	}
	extra := entry.alarm.Extra
	l.logger.Info("alarm ringing", logging.KeyNativeID, entry.alarm.AlarmID, "title", extra.Title)
	l.emit(model.NativeEvent{Name: model.NativeAlarmTriggered, AlarmID: entry.alarm.AlarmID, Extra: &extra, At: l.now()})
	l.dismissAfterRing(entry)
}

func (l *Local) dismissAfterRing(entry *localEntry) {
	extra := entry.alarm.Extra
	dismiss := func() {
		l.emit(model.NativeEvent{Name: model.NativeAlarmDismissed, AlarmID: entry.alarm.AlarmID, Extra: &extra, At: l.now()})
	}
	if l.ring <= 0 {
		dismiss()
		return
	}
	select {
	case <-time.After(l.ring):
		dismiss()
	case <-l.done:
	}
}

func (l *Local) emit(ev model.NativeEvent) {
	select {
	case l.events <- ev:
	case <-l.done:
	}
}

func (l *Local) dispatch() {
	defer l.wg.Done()
	for {
		select {
		case ev := <-l.events:
			l.listeners.deliver(ev)
		case <-l.done:
			return
		}
	}
}
