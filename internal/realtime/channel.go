// Package realtime keeps the push channel to the backend open and turns its
// frames into alarm events.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/manav03panchal/timely/internal/config"
	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/model"
)

const (
	pingPeriod = 30 * time.Second
	pongWait   = 2 * pingPeriod
	writeWait  = 10 * time.Second
)

// Channel is one open websocket session.
type Channel struct {
	conn   *websocket.Conn
	events chan model.AlarmEvent
	done   chan struct{}
	now    func() time.Time

	writeMu sync.Mutex

	mu        sync.RWMutex
	sessionID string
	err       error
	closing   bool
	closeOnce sync.Once
}

// Dial opens a channel. The bearer token goes in the Authorization header
// and the device id in the query string.
func Dial(ctx context.Context, rawURL, token, deviceID string) (*Channel, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, timelyerrors.NewUserErrorWithField(err, "socket_url", rawURL, "invalid socket URL", "")
	}
	q := u.Query()
	if deviceID != "" {
		q.Set("deviceId", deviceID)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: config.Global.Realtime.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, timelyerrors.Wrapf(timelyerrors.ErrSessionExpired, "realtime handshake")
		}
		return nil, timelyerrors.NewTransportError("realtime connect", err)
	}

	ch := &Channel{
		conn:   conn,
		events: make(chan model.AlarmEvent, config.Global.Realtime.EventBuffer),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go ch.readLoop()
	go ch.pingLoop()
	logging.Component("realtime").Debug("channel open", logging.KeyURL, logging.MaskURL(u.String()))
	return ch, nil
}

// Events delivers decoded events until the channel closes.
func (c *Channel) Events() <-chan model.AlarmEvent {
	return c.events
}

// Done is closed when the channel stops.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// SessionID returns the server-assigned id of this socket, once the
// connected frame has arrived.
func (c *Channel) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Err returns why the channel stopped, or nil after a local Close.
func (c *Channel) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Close sends a close frame and tears the connection down.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

func (c *Channel) fail(err error) {
	c.mu.Lock()
	if c.err == nil && !c.closing {
		c.err = err
	}
	c.mu.Unlock()
	c.closeOnce.Do(func() {
		c.conn.Close()
		close(c.done)
	})
}

func (c *Channel) readLoop() {
	defer close(c.events)
	logger := logging.Component("realtime")
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("%w: %v", timelyerrors.ErrRealtimeClosed, err))
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logger.Warn("dropping malformed realtime frame", logging.KeyError, err)
			continue
		}
		ev, err := model.DecodeEnvelope(env, c.now())
		if err != nil {
			logger.Warn("dropping realtime frame", logging.KeyEvent, env.Event, logging.KeyError, err)
			continue
		}
		if ev.Type == model.EventConnected {
			c.mu.Lock()
			c.sessionID = ev.SessionID
			c.mu.Unlock()
			logger.Debug("realtime session established", logging.KeySocketID, ev.SessionID)
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Channel) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.fail(fmt.Errorf("%w: ping: %v", timelyerrors.ErrRealtimeClosed, err))
				return
			}
		case <-c.done:
			return
		}
	}
}
