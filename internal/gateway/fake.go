package gateway

import (
	"context"
	"fmt"
	"sync"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
)

// Fake is an in-memory Gateway for tests. It records every call and can be
// told to fail.
type Fake struct {
	mu        sync.Mutex
	scheduled map[string]model.NativeAlarm
	listeners listenerSet

	ScheduleCalls []model.NativeAlarm
	CancelCalls   []string

	// ScheduleErr, when set, fails every Schedule call.
	ScheduleErr error
	// CancelErr, when set, fails every Cancel call after recording it.
	CancelErr  error
	Permission PermissionStatus
	// Requestable is the status RequestPermissions switches to.
	Requestable PermissionStatus
}

// NewFake creates a Fake with permission granted.
func NewFake() *Fake {
	return &Fake{
		scheduled:   make(map[string]model.NativeAlarm),
		Permission:  PermissionGranted,
		Requestable: PermissionGranted,
	}
}

// Schedule records n and arms it unless ScheduleErr is set.
func (f *Fake) Schedule(ctx context.Context, n model.NativeAlarm) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ScheduleCalls = append(f.ScheduleCalls, n)
	if f.ScheduleErr != nil {
		return "", f.ScheduleErr
	}
	f.scheduled[n.AlarmID] = n
	return n.AlarmID, nil
}

// Cancel records id and disarms it.
func (f *Fake) Cancel(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CancelCalls = append(f.CancelCalls, id)
	if f.CancelErr != nil {
		return f.CancelErr
	}
	if _, ok := f.scheduled[id]; !ok {
		return fmt.Errorf("%w: %s", timelyerrors.ErrNativeNotScheduled, id)
	}
	delete(f.scheduled, id)
	return nil
}

// IsScheduled reports whether id is armed.
func (f *Fake) IsScheduled(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.scheduled[id]
	return ok, nil
}

// Scheduled returns the armed entry for id.
func (f *Fake) Scheduled(id string) (model.NativeAlarm, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.scheduled[id]
	return n, ok
}

// ScheduledCount returns how many alarms are armed.
func (f *Fake) ScheduledCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.scheduled)
}

// Calls returns copies of the recorded schedule and cancel calls.
func (f *Fake) Calls() ([]model.NativeAlarm, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.NativeAlarm(nil), f.ScheduleCalls...), append([]string(nil), f.CancelCalls...)
}

// Reset clears recorded calls, keeping armed alarms.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ScheduleCalls = nil
	f.CancelCalls = nil
}

// SetScheduleErr sets ScheduleErr under the lock.
func (f *Fake) SetScheduleErr(err error) {
	f.mu.Lock()
	f.ScheduleErr = err
	f.mu.Unlock()
}

// Listen registers fn for event.
func (f *Fake) Listen(event model.NativeEventName, fn Listener) (*Subscription, error) {
	return f.listeners.add(event, fn)
}

// Emit delivers ev to listeners synchronously. A triggered event consumes
// the armed entry the way a real ring does.
func (f *Fake) Emit(ev model.NativeEvent) {
	if ev.Name == model.NativeAlarmTriggered {
		f.mu.Lock()
		delete(f.scheduled, ev.AlarmID)
		f.mu.Unlock()
	}
	f.listeners.deliver(ev)
}

// CheckPermissions reports Permission.
func (f *Fake) CheckPermissions(ctx context.Context) (PermissionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Permission, nil
}

// RequestPermissions switches Permission to Requestable.
func (f *Fake) RequestPermissions(ctx context.Context) (PermissionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Permission = f.Requestable
	return f.Permission, nil
}

var (
	_ Gateway = (*Fake)(nil)
	_ Gateway = (*Local)(nil)
)
