package runtime

import (
	"context"
	"sync"

	"github.com/manav03panchal/timely/internal/api"
	"github.com/manav03panchal/timely/internal/auth"
	"github.com/manav03panchal/timely/internal/config"
	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/gateway"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/reconcile"
	"github.com/manav03panchal/timely/internal/storage"
	"github.com/manav03panchal/timely/internal/store"
)

// Local runs the alarm engine inside the CLI process when no daemon is
// serving. Native alarms it schedules are persisted and armed by the next
// daemon start.
type Local struct {
	Client  *api.Client
	Session *auth.Session
	Gateway *gateway.Local
	Service *reconcile.Service

	mu       sync.Mutex
	restored bool
	notices  []reconcile.Notice
}

// NewLocal wires an in-process engine on top of db.
func NewLocal(db *storage.DB, settings *config.Settings) (*Local, error) {
	l := &Local{}
	l.Client = api.New(api.Options{BaseURL: settings.APIURL})
	session, err := auth.New(l.Client, db)
	if err != nil {
		return nil, err
	}
	l.Session = session
	l.Client.SetTokenSource(session)

	l.Gateway = gateway.NewLocal(gateway.WithRepo(storage.NewNativeRepo(db)))
	if err := l.Gateway.Restore(); err != nil {
		return nil, err
	}

	l.Service = reconcile.NewService(l.Client, l.Gateway, store.New(),
		reconcile.WithDeviceID(session.DeviceID()),
		reconcile.WithEngineOptions(reconcile.WithNotifier(l.collect)),
	)
	return l, nil
}

func (l *Local) collect(n reconcile.Notice) {
	logging.Component("cli").Debug("notice", "level", n.Level, logging.KeyAlarmID, n.AlarmID, "message", n.Message)
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

// Notices returns the notices raised so far and forgets them.
func (l *Local) Notices() []reconcile.Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.notices
	l.notices = nil
	return out
}

// ready restores the session and loads the alarm list once.
func (l *Local) ready(ctx context.Context) error {
	l.mu.Lock()
	restored := l.restored
	l.mu.Unlock()
	if !restored {
		if !l.Session.Restore(ctx) {
			if _, ok := l.Session.User(); ok {
				return timelyerrors.Wrap(timelyerrors.ErrTransport, "could not verify the stored session")
			}
			return timelyerrors.ErrNotAuthenticated
		}
		l.mu.Lock()
		l.restored = true
		l.mu.Unlock()
	}
	if l.Service.Loaded() {
		return nil
	}
	_, err := l.Service.Load(ctx)
	return err
}

// List returns every alarm.
func (l *Local) List(ctx context.Context) ([]model.Alarm, error) {
	if err := l.ready(ctx); err != nil {
		return nil, err
	}
	return l.Service.List(), nil
}

// Get returns one alarm, fetched fresh from the server.
func (l *Local) Get(ctx context.Context, id int64) (model.Alarm, error) {
	if err := l.ready(ctx); err != nil {
		return model.Alarm{}, err
	}
	return l.Service.Get(ctx, id)
}

// Create creates an alarm.
func (l *Local) Create(ctx context.Context, in model.AlarmInput) (model.Alarm, error) {
	if err := l.ready(ctx); err != nil {
		return model.Alarm{}, err
	}
	return l.Service.Create(ctx, in)
}

// Update applies a partial update.
func (l *Local) Update(ctx context.Context, id int64, patch model.AlarmPatch) (model.Alarm, error) {
	if err := l.ready(ctx); err != nil {
		return model.Alarm{}, err
	}
	return l.Service.Update(ctx, id, patch)
}

// Delete deletes an alarm.
func (l *Local) Delete(ctx context.Context, id int64) error {
	if err := l.ready(ctx); err != nil {
		return err
	}
	return l.Service.Delete(ctx, id)
}

// Toggle sets an alarm's active flag.
func (l *Local) Toggle(ctx context.Context, id int64, active bool) (model.Alarm, error) {
	if err := l.ready(ctx); err != nil {
		return model.Alarm{}, err
	}
	return l.Service.Toggle(ctx, id, active)
}

// Sync pushes the local list to the server and adopts the answer.
func (l *Local) Sync(ctx context.Context) ([]model.Alarm, error) {
	if err := l.ready(ctx); err != nil {
		return nil, err
	}
	return l.Service.Sync(ctx)
}

// Whoami reports the stored login without contacting the server.
func (l *Local) Whoami(context.Context) (model.User, bool, error) {
	user, ok := l.Session.User()
	return user, ok, nil
}

// Login signs in.
func (l *Local) Login(ctx context.Context, usernameOrEmail, password string) (model.User, error) {
	return l.Session.Login(ctx, usernameOrEmail, password)
}

// Register creates an account and signs in.
func (l *Local) Register(ctx context.Context, username, email, password string) (model.User, error) {
	return l.Session.Register(ctx, username, email, password)
}

// Logout cancels every native alarm of this device and signs out.
func (l *Local) Logout(ctx context.Context) error {
	for _, n := range l.Gateway.Entries() {
		if err := l.Gateway.Cancel(ctx, n.AlarmID); err != nil {
			logging.Warn("failed to cancel native alarm", logging.KeyNativeID, n.AlarmID, logging.KeyError, err)
		}
	}
	return l.Session.Logout(ctx)
}

// Close sends queued corrections once.
func (l *Local) Close(ctx context.Context) {
	if n := l.Service.Corrections().Drain(ctx); n > 0 {
		logging.DebugLog("corrections drained", logging.KeyCount, n)
	}
}
