// Package gateway is the device-local alarm capability: schedule an alarm to
// fire at an instant under an id, cancel it, ask whether it is scheduled and
// listen for it ringing.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/manav03panchal/timely/internal/model"
)

// PermissionStatus reports whether the device allows scheduling alarms.
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionPrompt  PermissionStatus = "prompt"
)

// Listener receives native alarm transitions.
type Listener func(model.NativeEvent)

// Gateway is the native alarm capability consumed by the reconcile engine.
type Gateway interface {
	// Schedule arms n under n.AlarmID, replacing any prior schedule under the
	// same id, and returns the id it was scheduled under.
	Schedule(ctx context.Context, n model.NativeAlarm) (string, error)
	// Cancel disarms id. Unknown ids yield ErrNativeNotScheduled.
	Cancel(ctx context.Context, id string) error
	IsScheduled(ctx context.Context, id string) (bool, error)
	Listen(event model.NativeEventName, fn Listener) (*Subscription, error)
	CheckPermissions(ctx context.Context) (PermissionStatus, error)
	RequestPermissions(ctx context.Context) (PermissionStatus, error)
}

// Subscription is returned by Listen. Remove stops delivery.
type Subscription struct {
	once   sync.Once
	remove func()
}

// Remove unregisters the listener. Safe to call more than once.
func (s *Subscription) Remove() {
	if s == nil {
		return
	}
	s.once.Do(s.remove)
}

func validEvent(name model.NativeEventName) error {
	switch name {
	case model.NativeAlarmTriggered, model.NativeAlarmDismissed:
		return nil
	}
	return fmt.Errorf("unknown native event %q", name)
}

// listenerSet is the listener registry shared by Local and Fake.
type listenerSet struct {
	mu   sync.Mutex
	next uint64
	byEv map[model.NativeEventName]map[uint64]Listener
}

func (s *listenerSet) add(name model.NativeEventName, fn Listener) (*Subscription, error) {
	if err := validEvent(name); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("nil listener")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byEv == nil {
		s.byEv = make(map[model.NativeEventName]map[uint64]Listener)
	}
	if s.byEv[name] == nil {
		s.byEv[name] = make(map[uint64]Listener)
	}
	s.next++
	id := s.next
	s.byEv[name][id] = fn
	return &Subscription{remove: func() {
		s.mu.Lock()
		delete(s.byEv[name], id)
		s.mu.Unlock()
	}}, nil
}

func (s *listenerSet) snapshot(name model.NativeEventName) []Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Listener, 0, len(s.byEv[name]))
	for _, fn := range s.byEv[name] {
		out = append(out, fn)
	}
	return out
}

func (s *listenerSet) deliver(ev model.NativeEvent) {
	for _, fn := range s.snapshot(ev.Name) {
		fn(ev)
	}
}
