package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/gateway"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/store"
)

// Backend is the REST surface the service drives. *api.Client implements it.
type Backend interface {
	ListAlarms(ctx context.Context) ([]model.Alarm, error)
	GetAlarm(ctx context.Context, id int64) (model.Alarm, error)
	CreateAlarm(ctx context.Context, in model.AlarmInput) (model.Alarm, error)
	UpdateAlarm(ctx context.Context, id int64, patch model.AlarmPatch) (model.Alarm, error)
	DeleteAlarm(ctx context.Context, id int64) error
	ToggleAlarm(ctx context.Context, id int64, active bool) (model.Alarm, error)
	SyncAlarms(ctx context.Context, alarms []model.Alarm) ([]model.Alarm, error)
}

// AuthSignal is the live authentication state. *auth.Session implements it.
type AuthSignal interface {
	Watch(ctx context.Context) <-chan bool
}

// EventSource is the realtime channel. *realtime.Manager implements it.
type EventSource interface {
	Run(ctx context.Context)
	Events() <-chan model.AlarmEvent
}

// Service exposes the alarm operations. Every record it receives is
// reconciled before it is returned.
type Service struct {
	backend     Backend
	gw          gateway.Gateway
	store       *store.Store
	engine      *Engine
	corrections *CorrectionQueue
	notify      Notifier
	deviceID    string
	listening   func()
	logger      *slog.Logger

	mu     sync.Mutex
	loaded bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDeviceID stamps created alarms with the device id.
func WithDeviceID(id string) ServiceOption {
	return func(s *Service) { s.deviceID = id }
}

// WithListening registers fn to run once Run has subscribed to native
// events. A gateway holding rings that came due while the process was
// down releases them from fn.
func WithListening(fn func()) ServiceOption {
	return func(s *Service) { s.listening = fn }
}

// WithEngineOptions passes options through to the engine.
func WithEngineOptions(opts ...EngineOption) ServiceOption {
	return func(s *Service) {
		s.engine = NewEngine(s.gw, s.store, append([]EngineOption{WithCorrections(s.corrections)}, opts...)...)
	}
}

// NewService wires an engine and a correction queue around backend, gw and
// st.
func NewService(backend Backend, gw gateway.Gateway, st *store.Store, opts ...ServiceOption) *Service {
	s := &Service{
		backend: backend,
		gw:      gw,
		store:   st,
		logger:  logging.Component("alarms"),
	}
	s.corrections = NewCorrectionQueue(s.applyCorrection)
	s.engine = NewEngine(gw, st, WithCorrections(s.corrections))
	for _, opt := range opts {
		opt(s)
	}
	s.corrections.SetObserver(s.engine.observer)
	s.notify = s.engine.notify
	return s
}

// Engine returns the underlying engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Store returns the alarm store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Corrections returns the noRepeat correction queue.
func (s *Service) Corrections() *CorrectionQueue {
	return s.corrections
}

// Loaded reports whether the alarm list was fetched this session.
func (s *Service) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Load fetches the alarm list and reconciles it. On failure the store is
// left as it was.
func (s *Service) Load(ctx context.Context) ([]model.Alarm, error) {
	alarms, err := s.backend.ListAlarms(ctx)
	if err != nil {
		return nil, err
	}
	s.FixInconsistencies(alarms)
	out := s.adopt(ctx, alarms)

	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
	s.logger.Debug("alarms loaded", logging.KeyCount, len(out))
	return out, nil
}

// adopt makes alarms the authoritative list: native alarms of records that
// disappeared are cancelled, client-owned fields carry over, and every
// record is reconciled.
func (s *Service) adopt(ctx context.Context, alarms []model.Alarm) []model.Alarm {
	incoming := make(map[int64]bool, len(alarms))
	for _, a := range alarms {
		incoming[a.ID] = true
	}
	for _, old := range s.store.Snapshot() {
		if !incoming[old.ID] && old.NativeAlarmID != "" {
			s.engine.cancel(ctx, old.NativeAlarmID)
		}
	}

	next := make([]model.Alarm, 0, len(alarms))
	for _, a := range alarms {
		if !a.HasID() {
			continue
		}
		if cur, ok := s.store.Get(a.ID); ok {
			a.NativeAlarmID = cur.NativeAlarmID
			if a.SyncStatus == "" {
				a.SyncStatus = cur.SyncStatus
			}
		}
		next = append(next, a)
	}
	s.store.Replace(next)
	return s.engine.ReconcileAll(ctx, next)
}

// List returns the current store contents.
func (s *Service) List() []model.Alarm {
	return s.store.Snapshot()
}

// Get fetches alarm id from the server. Client-owned fields come from the
// store; nothing is rescheduled.
func (s *Service) Get(ctx context.Context, id int64) (model.Alarm, error) {
	cur, ok := s.store.Get(id)
	if !ok {
		return model.Alarm{}, notFound(id)
	}
	remote, err := s.backend.GetAlarm(ctx, id)
	if err != nil {
		return model.Alarm{}, err
	}
	remote.Days = remote.Days.Valid()
	remote.NativeAlarmID = cur.NativeAlarmID
	remote.SyncStatus = cur.SyncStatus
	return remote, nil
}

// Create creates an alarm on the server and schedules it.
func (s *Service) Create(ctx context.Context, in model.AlarmInput) (model.Alarm, error) {
	if _, err := model.ParseClock(in.Time); err != nil {
		return model.Alarm{}, err
	}
	in.Days = in.Days.Valid()
	in.Normalize()
	if in.DeviceID == "" {
		in.DeviceID = s.deviceID
	}
	created, err := s.backend.CreateAlarm(ctx, in)
	if err != nil {
		return model.Alarm{}, err
	}
	return s.engine.Reconcile(ctx, created), nil
}

// Update applies patch to alarm id.
func (s *Service) Update(ctx context.Context, id int64, patch model.AlarmPatch) (model.Alarm, error) {
	if _, ok := s.store.Get(id); !ok {
		return model.Alarm{}, notFound(id)
	}
	if patch.Time != nil {
		if _, err := model.ParseClock(*patch.Time); err != nil {
			return model.Alarm{}, err
		}
	}
	if patch.Days != nil {
		days := patch.Days.Valid()
		patch.Days = &days
	}

	prev, _ := s.engine.MarkPending(id)
	updated, err := s.backend.UpdateAlarm(ctx, id, patch)
	if err != nil {
		s.engine.restore(id, prev)
		return model.Alarm{}, err
	}
	return s.engine.Reconcile(ctx, updated), nil
}

// Delete removes alarm id. Its native alarm is cancelled first; if the
// server refuses the delete the alarm is rescheduled.
func (s *Service) Delete(ctx context.Context, id int64) error {
	cur, ok := s.store.Get(id)
	if !ok {
		return notFound(id)
	}

	prev, _ := s.engine.MarkPending(id)
	if cur.NativeAlarmID != "" {
		s.engine.cancel(ctx, cur.NativeAlarmID)
	}
	if err := s.backend.DeleteAlarm(ctx, id); err != nil {
		s.engine.restore(id, prev)
		if cur.NativeAlarmID != "" {
			if stored, ok := s.store.Update(id, func(a *model.Alarm) { a.NativeAlarmID = "" }); ok {
				s.engine.Reconcile(ctx, stored)
			}
		}
		return err
	}
	s.store.Remove(id)
	return nil
}

// Toggle activates or deactivates alarm id.
func (s *Service) Toggle(ctx context.Context, id int64, active bool) (model.Alarm, error) {
	if _, ok := s.store.Get(id); !ok {
		return model.Alarm{}, notFound(id)
	}
	prev, _ := s.engine.MarkPending(id)
	toggled, err := s.backend.ToggleAlarm(ctx, id, active)
	if err != nil {
		s.engine.restore(id, prev)
		return model.Alarm{}, err
	}
	return s.engine.Reconcile(ctx, toggled), nil
}

// Sync pushes the local list to the server and adopts the server's answer.
func (s *Service) Sync(ctx context.Context) ([]model.Alarm, error) {
	local := s.store.Snapshot()
	alarms, err := s.backend.SyncAlarms(ctx, local)
	if err != nil {
		return nil, err
	}
	out := s.adopt(ctx, alarms)
	s.logger.Info("alarms synced", logging.KeyCount, len(out))
	return out, nil
}

// HandleEvent applies a realtime event.
func (s *Service) HandleEvent(ctx context.Context, ev model.AlarmEvent) {
	logger := s.logger.With(logging.KeyEvent, ev.Type, logging.KeyAlarmID, ev.AlarmID)
	switch ev.Type {
	case model.EventAlarmCreated, model.EventAlarmUpdated:
		if ev.Alarm == nil {
			logger.Warn("realtime event without alarm")
			return
		}
		s.engine.Reconcile(ctx, *ev.Alarm)
	case model.EventAlarmDeleted:
		s.engine.CancelByServerID(ctx, ev.AlarmID)
		s.store.Remove(ev.AlarmID)
	case model.EventReconnected:
		logger.Info("realtime reconnected, reloading alarms")
		if _, err := s.Load(ctx); err != nil {
			logger.Warn("reload after reconnect failed", logging.KeyError, err)
		}
	case model.EventConnected:
		logger.Debug("realtime session started", logging.KeySocketID, ev.SessionID)
	default:
		logger.Debug("ignoring realtime event")
	}
}

// HandleNativeEvent reacts to an alarm ringing. A one-time alarm is
// switched off on the server; a recurring one is armed for its next
// occurrence.
func (s *Service) HandleNativeEvent(ctx context.Context, ev model.NativeEvent) {
	logger := s.logger.With(logging.KeyEvent, ev.Name, logging.KeyNativeID, ev.AlarmID)
	id, ok := ev.ServerID()
	if !ok {
		logger.Warn("native event without a server alarm id")
		return
	}
	a, ok := s.store.Get(id)
	if !ok {
		logger.Debug("native event for unknown alarm", logging.KeyAlarmID, id)
		return
	}
	if !a.IsActive {
		return
	}

	if a.IsOneTime() {
		if _, err := s.Toggle(ctx, id, false); err != nil {
			logger.Error("failed to disable one-time alarm", logging.KeyAlarmID, id, logging.KeyError, err)
			return
		}
		s.notify(Notice{
			Level:   NoticeInfo,
			AlarmID: id,
			Message: "One-time alarm has been automatically disabled.",
		})
		return
	}

	if ev.Name == model.NativeAlarmTriggered {
		s.engine.Reconcile(ctx, a)
	}
}

// FixInconsistencies marks alarms without days as noRepeat and queues the
// correction for the server. It returns how many alarms were fixed.
func (s *Service) FixInconsistencies(alarms []model.Alarm) int {
	fixed := 0
	for i := range alarms {
		a := &alarms[i]
		if !a.HasID() || a.NoRepeat || len(a.Days.Valid()) > 0 {
			continue
		}
		s.logger.Info("alarm has no days but noRepeat is false", logging.KeyAlarmID, a.ID)
		a.NoRepeat = true
		s.store.Update(a.ID, func(stored *model.Alarm) { stored.NoRepeat = true })
		s.corrections.Enqueue(a.ID)
		fixed++
	}
	return fixed
}

// applyCorrection sends noRepeat=true for id and reconciles the answer.
func (s *Service) applyCorrection(ctx context.Context, id int64) error {
	updated, err := s.backend.UpdateAlarm(ctx, id, model.AlarmPatch{NoRepeat: model.Ptr(true)})
	if err != nil {
		return err
	}
	s.engine.Reconcile(ctx, updated)
	return nil
}

func notFound(id int64) error {
	return timelyerrors.Wrapf(timelyerrors.ErrAlarmNotFound, "alarm %d", id)
}

// IsNotFound reports whether err means the alarm does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, timelyerrors.ErrAlarmNotFound)
}
