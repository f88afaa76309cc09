package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
)

// fakeSocket is a backend socket endpoint. Each accepted connection gets
// the connected frame and then whatever is pushed through send.
type fakeSocket struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   []*websocket.Conn
	accepts int32

	lastAuth   atomic.Value
	lastDevice atomic.Value
}

func newFakeSocket(t *testing.T) *fakeSocket {
	t.Helper()
	f := &fakeSocket{t: t}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(func() {
		f.dropAll()
		f.server.Close()
	})
	return f
}

func (f *fakeSocket) url() string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/socket"
}

func (f *fakeSocket) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "Bearer bad" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	f.lastAuth.Store(r.Header.Get("Authorization"))
	f.lastDevice.Store(r.URL.Query().Get("deviceId"))

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if !assert.NoError(f.t, err) {
		return
	}
	n := atomic.AddInt32(&f.accepts, 1)
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()

	frame, err := model.EncodeEnvelope(model.EventConnected, map[string]string{"sessionId": "s" + string(rune('0'+n))})
	assert.NoError(f.t, err)
	assert.NoError(f.t, conn.WriteMessage(websocket.TextMessage, frame))

	// Keep reading so close frames and pings are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (f *fakeSocket) push(frame []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(f.t, f.conns)
	conn := f.conns[len(f.conns)-1]
	assert.NoError(f.t, conn.WriteMessage(websocket.TextMessage, frame))
}

func (f *fakeSocket) dropAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		c.Close()
	}
	f.conns = nil
}

type staticToken struct {
	token string
	err   error
	calls int32
}

func (s *staticToken) Token(ctx context.Context) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.token, s.err
}

func nextEvent(t *testing.T, ch <-chan model.AlarmEvent) model.AlarmEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for realtime event")
		return model.AlarmEvent{}
	}
}

func mustFrame(t *testing.T, typ model.EventType, payload any) []byte {
	t.Helper()
	frame, err := model.EncodeEnvelope(typ, payload)
	require.NoError(t, err)
	return frame
}

// =============================================================================
// Channel
// =============================================================================

func TestDial_ConnectedAndEvents(t *testing.T) {
	srv := newFakeSocket(t)
	ch, err := Dial(context.Background(), srv.url(), "tok", "dev-1")
	require.NoError(t, err)
	defer ch.Close()

	ev := nextEvent(t, ch.Events())
	assert.Equal(t, model.EventConnected, ev.Type)
	assert.Equal(t, "s1", ev.SessionID)
	assert.Equal(t, "s1", ch.SessionID())
	assert.Equal(t, "Bearer tok", srv.lastAuth.Load())
	assert.Equal(t, "dev-1", srv.lastDevice.Load())

	srv.push(mustFrame(t, model.EventAlarmCreated, model.Alarm{ID: 9, Title: "Gym", Time: "06:30", IsActive: true}))
	ev = nextEvent(t, ch.Events())
	assert.Equal(t, model.EventAlarmCreated, ev.Type)
	require.NotNil(t, ev.Alarm)
	assert.Equal(t, int64(9), ev.AlarmID)
	assert.Equal(t, "Gym", ev.Alarm.Title)

	srv.push(mustFrame(t, model.EventAlarmDeleted, map[string]int64{"id": 9}))
	ev = nextEvent(t, ch.Events())
	assert.Equal(t, model.EventAlarmDeleted, ev.Type)
	assert.Equal(t, int64(9), ev.AlarmID)
	assert.Nil(t, ev.Alarm)
}

func TestDial_SkipsBadFrames(t *testing.T) {
	srv := newFakeSocket(t)
	ch, err := Dial(context.Background(), srv.url(), "tok", "dev-1")
	require.NoError(t, err)
	defer ch.Close()
	nextEvent(t, ch.Events())

	srv.push([]byte("not json"))
	srv.push([]byte(`{"event":"mystery","data":{}}`))
	srv.push(mustFrame(t, model.EventAlarmUpdated, model.Alarm{ID: 2, Time: "07:00"}))

	ev := nextEvent(t, ch.Events())
	assert.Equal(t, model.EventAlarmUpdated, ev.Type)
	assert.Equal(t, int64(2), ev.AlarmID)
}

func TestDial_Unauthorized(t *testing.T) {
	srv := newFakeSocket(t)
	_, err := Dial(context.Background(), srv.url(), "bad", "dev-1")
	assert.ErrorIs(t, err, timelyerrors.ErrSessionExpired)
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/socket", "tok", "dev-1")
	assert.Equal(t, timelyerrors.KindTransport, timelyerrors.KindOf(err))
}

func TestChannel_RemoteDrop(t *testing.T) {
	srv := newFakeSocket(t)
	ch, err := Dial(context.Background(), srv.url(), "tok", "dev-1")
	require.NoError(t, err)
	nextEvent(t, ch.Events())

	srv.dropAll()
	select {
	case <-ch.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("channel did not notice the drop")
	}
	assert.True(t, IsClosed(ch.Err()))
}

func TestChannel_LocalCloseHasNoError(t *testing.T) {
	srv := newFakeSocket(t)
	ch, err := Dial(context.Background(), srv.url(), "tok", "dev-1")
	require.NoError(t, err)

	require.NoError(t, ch.Close())
	assert.NoError(t, ch.Close())
	<-ch.Done()
	assert.NoError(t, ch.Err())
}

// =============================================================================
// Manager
// =============================================================================

func TestManager_ReconnectEmitsReconnected(t *testing.T) {
	srv := newFakeSocket(t)
	tokens := &staticToken{token: "tok"}
	m := NewManager(srv.url(), tokens, "dev-1")
	m.SetReconnectDelay(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	ev := nextEvent(t, m.Events())
	assert.Equal(t, model.EventConnected, ev.Type)
	require.Eventually(t, m.Connected, time.Second, 10*time.Millisecond)
	assert.Equal(t, "s1", m.SessionID())

	srv.dropAll()

	ev = nextEvent(t, m.Events())
	assert.Equal(t, model.EventReconnected, ev.Type)
	ev = nextEvent(t, m.Events())
	assert.Equal(t, model.EventConnected, ev.Type)
	assert.Equal(t, "s2", ev.SessionID)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&tokens.calls), int32(2), "each attempt fetches a token")

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, m.Connected())
}

func TestManager_RetriesAfterTokenFailure(t *testing.T) {
	srv := newFakeSocket(t)
	tokens := &staticToken{err: errors.New("offline")}
	m := NewManager(srv.url(), tokens, "dev-1")
	m.SetReconnectDelay(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&tokens.calls) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, m.Connected())
	assert.Zero(t, atomic.LoadInt32(&srv.accepts))
}

func TestManager_RequiresDeviceID(t *testing.T) {
	m := NewManager("ws://unused", &staticToken{token: "tok"}, "")
	_, err := m.connect(context.Background())
	assert.ErrorIs(t, err, timelyerrors.ErrMissingDeviceID)
}
