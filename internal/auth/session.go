// Package auth owns the login session: tokens, the current user and the
// device identity, persisted locally, plus the live "is authenticated"
// signal the rest of the client follows.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/manav03panchal/timely/internal/api"
	"github.com/manav03panchal/timely/internal/config"
	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/storage"
)

// Backend is the subset of the REST client used for authentication.
type Backend interface {
	Login(ctx context.Context, req api.LoginRequest) (api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (api.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken, deviceID string) (api.AuthResponse, error)
	Verify(ctx context.Context, token string) (model.User, error)
	Logout(ctx context.Context, refreshToken string) error
}

// Session is the client's authentication state.
type Session struct {
	backend  Backend
	sessions *storage.SessionRepo
	deviceID string
	skew     time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	current  *model.Session
	watchers map[uint64]*watcher
	nextID   uint64

	refreshes singleflight.Group
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New loads the device identity and any stored session from db.
func New(backend Backend, db *storage.DB, opts ...Option) (*Session, error) {
	deviceID, err := storage.NewDeviceRepo(db).GetOrCreate()
	if err != nil {
		return nil, timelyerrors.NewSystemErrorWithOp("load device id", "failed to read device identity", err)
	}
	s := &Session{
		backend:  backend,
		sessions: storage.NewSessionRepo(db),
		deviceID: deviceID,
		skew:     config.Global.Session.RefreshSkew,
		now:      time.Now,
		watchers: make(map[uint64]*watcher),
	}
	for _, opt := range opts {
		opt(s)
	}
	current, err := s.sessions.Get()
	if err != nil {
		return nil, timelyerrors.NewSystemErrorWithOp("load session", "failed to read stored session", err)
	}
	s.current = current
	return s, nil
}

// DeviceID returns this installation's identifier.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// IsAuthenticated reports whether a user and an access token are present.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return authenticated(s.current)
}

func authenticated(cur *model.Session) bool {
	return cur.IsLoggedIn() && cur.User.Username != ""
}

// AccessToken returns the current bearer token, or "".
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.AccessToken
}

// User returns the logged-in user.
func (s *Session) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !authenticated(s.current) {
		return model.User{}, false
	}
	return s.current.User, true
}

func (s *Session) refreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return ""
	}
	return s.current.RefreshToken
}

// watcher queues every authentication transition for one Watch caller.
type watcher struct {
	mu    sync.Mutex
	queue []bool
	wake  chan struct{}
}

func (w *watcher) push(v bool) {
	w.mu.Lock()
	w.queue = append(w.queue, v)
	w.mu.Unlock()
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *watcher) pop() (bool, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return false, false
	}
	v := w.queue[0]
	w.queue = w.queue[1:]
	return v, true
}

// Watch returns a channel that receives the current authentication state
// and then every transition, in order. A logout followed by a login is
// delivered as false then true even when the reader falls behind. It is
// closed when ctx ends.
func (s *Session) Watch(ctx context.Context) <-chan bool {
	w := &watcher{wake: make(chan struct{}, 1)}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = w
	w.push(authenticated(s.current))
	s.mu.Unlock()

	out := make(chan bool)
	go func() {
		defer close(out)
		defer func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		}()
		for {
			v, ok := w.pop()
			if !ok {
				select {
				case <-w.wake:
					continue
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// set installs next, persists it and notifies watchers when the
// authentication state flips. Switching straight to another user is
// reported as a logout followed by a login.
func (s *Session) set(next *model.Session) error {
	var err error
	if next == nil {
		err = s.sessions.Clear()
	} else {
		next.UpdatedAt = s.now()
		err = s.sessions.Save(next)
	}

	s.mu.Lock()
	before := authenticated(s.current)
	after := authenticated(next)
	var transitions []bool
	switch {
	case before != after:
		transitions = []bool{after}
	case before && s.current.User.ID != next.User.ID:
		transitions = []bool{false, true}
	}
	s.current = next
	for _, w := range s.watchers {
		for _, v := range transitions {
			w.push(v)
		}
	}
	s.mu.Unlock()

	if len(transitions) > 0 {
		logging.Info("authentication changed", logging.KeyAuthEnabled, after)
	}
	if err != nil {
		return timelyerrors.NewSystemErrorWithOp("save session", "failed to persist session", err)
	}
	return nil
}

// Login authenticates with username or email and password.
func (s *Session) Login(ctx context.Context, usernameOrEmail, password string) (model.User, error) {
	resp, err := s.backend.Login(ctx, api.LoginRequest{
		UsernameOrEmail: usernameOrEmail,
		Password:        password,
		DeviceID:        s.deviceID,
	})
	if err != nil {
		return model.User{}, credentialsError(err)
	}
	if !resp.Success || resp.Token == "" || resp.UserID == 0 || resp.Username == "" {
		return model.User{}, failedResponse("login", resp)
	}

	user := resp.User()
	if user.Email == "" && strings.Contains(usernameOrEmail, "@") {
		user.Email = usernameOrEmail
	}
	if resp.RefreshToken == "" {
		logging.Warn("login response carried no refresh token")
	}
	if err := s.set(model.NewSession(resp.Token, resp.RefreshToken, user)); err != nil {
		return model.User{}, err
	}
	logging.Info("logged in", "user", user.Username, logging.KeyDeviceID, s.deviceID)
	return user, nil
}

// Register creates an account and logs in.
func (s *Session) Register(ctx context.Context, username, email, password string) (model.User, error) {
	resp, err := s.backend.Register(ctx, api.RegisterRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return model.User{}, err
	}
	if !resp.Success || resp.Token == "" || resp.RefreshToken == "" || resp.UserID == 0 || resp.Username == "" {
		return model.User{}, failedResponse("registration", resp)
	}
	user := model.User{ID: resp.UserID, Username: resp.Username, Email: email}
	if err := s.set(model.NewSession(resp.Token, resp.RefreshToken, user)); err != nil {
		return model.User{}, err
	}
	return user, nil
}

// Logout revokes the refresh token (best effort) and clears local state.
func (s *Session) Logout(ctx context.Context) error {
	if rt := s.refreshToken(); rt != "" {
		if err := s.backend.Logout(ctx, rt); err != nil {
			logging.Warn("backend logout failed, clearing local session anyway", logging.KeyError, err)
		}
	}
	return s.set(nil)
}

// Restore validates the stored session at startup: the access token is
// verified, and when that fails a refresh is attempted. It reports whether
// the session is usable afterwards.
func (s *Session) Restore(ctx context.Context) bool {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur == nil {
		return false
	}

	if cur.AccessToken != "" {
		user, err := s.backend.Verify(ctx, cur.AccessToken)
		if err == nil {
			next := *cur
			next.User = user
			if err := s.set(&next); err != nil {
				logging.Warn("failed to persist verified user", logging.KeyError, err)
			}
			return true
		}
		logging.DebugContext(ctx, "stored access token rejected, refreshing", logging.KeyError, err)
	}

	if _, err := s.Refresh(ctx); err != nil {
		logging.Warn("session could not be restored", logging.KeyError, err)
		return false
	}
	return true
}

func credentialsError(err error) error {
	var te *timelyerrors.TransportError
	if errors.As(err, &te) && (te.StatusCode == http.StatusUnauthorized || te.StatusCode == http.StatusBadRequest) {
		msg := te.Detail
		if msg == "" {
			msg = "invalid username or password"
		}
		return timelyerrors.NewUserError(msg, "Check your credentials, or create an account with 'timely register'")
	}
	return err
}

func failedResponse(op string, resp api.AuthResponse) error {
	msg := resp.Message
	if msg == "" {
		if resp.Success {
			msg = op + " failed: incomplete server response"
		} else {
			msg = op + " failed"
		}
	}
	return timelyerrors.Wrapf(timelyerrors.ErrInvalidResponse, "%s", msg)
}
