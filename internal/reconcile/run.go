package reconcile

import (
	"context"

	"github.com/manav03panchal/timely/internal/gateway"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/model"
)

// maxPendingNative bounds the native events held while no alarm list is
// loaded.
const maxPendingNative = 64

// Run ties the service to the authentication signal until ctx ends.
//
// When auth turns true the realtime channel is started, native permission is
// checked, and the alarm list is loaded once per session (later sessions
// re-reconcile what the store holds). When it turns false the channel is
// stopped, every native alarm is cancelled and the store is cleared.
// Realtime and native events are handled on this goroutine, one at a time.
// Native events that arrive before the alarm list is loaded are held and
// handled right after the load. rt may be nil.
func (s *Service) Run(ctx context.Context, auth AuthSignal, rt EventSource) error {
	s.corrections.Start(ctx)
	defer s.corrections.Stop()

	native := make(chan model.NativeEvent, 16)
	forward := func(ev model.NativeEvent) {
		select {
		case native <- ev:
		case <-ctx.Done():
		}
	}
	for _, name := range []model.NativeEventName{model.NativeAlarmTriggered, model.NativeAlarmDismissed} {
		sub, err := s.gw.Listen(name, forward)
		if err != nil {
			return err
		}
		defer sub.Remove()
	}
	if s.listening != nil {
		s.listening()
	}

	var events <-chan model.AlarmEvent
	if rt != nil {
		events = rt.Events()
	}

	var (
		stopSession func()
		active      bool
		pending     []model.NativeEvent
	)
	replay := func() {
		if !s.Loaded() {
			return
		}
		held := pending
		pending = nil
		for _, ev := range held {
			s.HandleNativeEvent(ctx, ev)
		}
	}
	authCh := auth.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			if stopSession != nil {
				stopSession()
			}
			return nil

		case on, ok := <-authCh:
			if !ok {
				if stopSession != nil {
					stopSession()
				}
				return nil
			}
			s.logger.Info("authentication changed", logging.KeyAuthEnabled, on)
			if on && !active {
				active = true
				stopSession = s.startSession(ctx, rt)
				replay()
			} else if !on {
				if stopSession != nil {
					stopSession()
					stopSession = nil
				}
				if active {
					// Held rings belong to the session that just ended.
					pending = nil
				}
				active = false
				s.endSession(ctx)
			}

		case ev := <-events:
			if active {
				s.HandleEvent(ctx, ev)
			}

		case ev := <-native:
			if !s.Loaded() {
				if len(pending) < maxPendingNative {
					pending = append(pending, ev)
				} else {
					s.logger.Warn("dropping native event received before load", logging.KeyNativeID, ev.AlarmID)
				}
				continue
			}
			s.HandleNativeEvent(ctx, ev)
		}
	}
}

// startSession connects realtime and brings the native schedule in line
// with the alarm list. The returned func stops the realtime channel.
func (s *Service) startSession(ctx context.Context, rt EventSource) func() {
	stop := func() {}
	if rt != nil {
		sctx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			rt.Run(sctx)
		}()
		stop = func() {
			cancel()
			<-done
		}
	}

	s.ensurePermission(ctx)

	if !s.Loaded() {
		if _, err := s.Load(ctx); err != nil {
			s.logger.Error("failed to load alarms", logging.KeyError, err)
			s.notify(Notice{Level: NoticeError, Message: "Failed to load alarms from server.", Err: err})
		}
	} else {
		s.engine.ReconcileAll(ctx, s.store.Snapshot())
	}
	return stop
}

// endSession cancels the native schedule and forgets the alarm list.
func (s *Service) endSession(ctx context.Context) {
	s.engine.CancelAll(ctx)
	s.store.Clear()
	s.corrections.Clear()
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()
}

func (s *Service) ensurePermission(ctx context.Context) {
	status, err := s.gw.CheckPermissions(ctx)
	if err == nil && status != gateway.PermissionGranted {
		status, err = s.gw.RequestPermissions(ctx)
	}
	switch {
	case err != nil:
		s.logger.Warn("could not check alarm permission", logging.KeyError, err)
	case status != gateway.PermissionGranted:
		s.notify(Notice{Level: NoticeWarning, Message: "Alarm permission is " + string(status) + "; alarms will not ring on this device."})
	}
}
