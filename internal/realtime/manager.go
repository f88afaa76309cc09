package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/manav03panchal/timely/internal/config"
	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/model"
)

// TokenProvider supplies a fresh access token for each connection attempt.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Manager keeps a Channel open while Run is active, reconnecting after a
// fixed delay. Events from every channel it opens are merged into Events.
type Manager struct {
	url      string
	tokens   TokenProvider
	deviceID string
	delay    time.Duration
	dial     func(ctx context.Context, url, token, deviceID string) (*Channel, error)

	events chan model.AlarmEvent

	mu      sync.RWMutex
	current *Channel
}

// NewManager creates a manager for the socket at url.
func NewManager(url string, tokens TokenProvider, deviceID string) *Manager {
	return &Manager{
		url:      url,
		tokens:   tokens,
		deviceID: deviceID,
		delay:    config.Global.Realtime.ReconnectDelay,
		dial:     Dial,
		events:   make(chan model.AlarmEvent, config.Global.Realtime.EventBuffer),
	}
}

// SetReconnectDelay overrides the wait between attempts.
func (m *Manager) SetReconnectDelay(d time.Duration) {
	m.delay = d
}

// Events delivers alarm events, plus EventReconnected after a channel came
// back following a drop.
func (m *Manager) Events() <-chan model.AlarmEvent {
	return m.events
}

// SessionID returns the id of the open socket, or "".
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.SessionID()
}

// Connected reports whether a channel is open.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// Run connects and keeps reconnecting until ctx ends. It can be called
// again after it returns.
func (m *Manager) Run(ctx context.Context) {
	logger := logging.Component("realtime")
	connectedBefore := false
	for {
		ch, err := m.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("realtime connect failed", logging.KeyError, err, "retry_in", m.delay)
			if !m.wait(ctx) {
				return
			}
			continue
		}

		m.setCurrent(ch)
		if connectedBefore {
			logger.Info("realtime channel reconnected")
			m.emit(ctx, model.AlarmEvent{Type: model.EventReconnected, At: time.Now()})
		}
		connectedBefore = true

		m.pump(ctx, ch)
		m.setCurrent(nil)

		if ctx.Err() != nil {
			ch.Close()
			return
		}
		logger.Warn("realtime channel dropped", logging.KeyError, ch.Err())
		if !m.wait(ctx) {
			return
		}
	}
}

func (m *Manager) connect(ctx context.Context) (*Channel, error) {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	if m.deviceID == "" {
		return nil, timelyerrors.ErrMissingDeviceID
	}
	return m.dial(ctx, m.url, token, m.deviceID)
}

// pump forwards events until the channel ends or ctx is done.
func (m *Manager) pump(ctx context.Context, ch *Channel) {
	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				return
			}
			if !m.emit(ctx, ev) {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) emit(ctx context.Context, ev model.AlarmEvent) bool {
	select {
	case m.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) wait(ctx context.Context) bool {
	t := time.NewTimer(m.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) setCurrent(ch *Channel) {
	m.mu.Lock()
	m.current = ch
	m.mu.Unlock()
}

// IsClosed reports whether err came from a dropped channel.
func IsClosed(err error) bool {
	return errors.Is(err, timelyerrors.ErrRealtimeClosed)
}
