package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
)

type fakeTokens struct {
	mu        sync.Mutex
	token     string
	next      string
	refreshes atomic.Int32
	err       error
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Refresh(ctx context.Context) (string, error) {
	f.refreshes.Add(1)
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = f.next
	return f.token, nil
}

type backend struct {
	mu       sync.Mutex
	valid    string
	alarms   map[int64]model.Alarm
	nextID   int64
	socketID []string
	authHdr  []string
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{valid: "good", alarms: map[int64]model.Alarm{}, nextID: 1}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			b.mu.Lock()
			b.authHdr = append(b.authHdr, req.Header.Get("Authorization"))
			b.socketID = append(b.socketID, req.Header.Get(HeaderSocketID))
			b.mu.Unlock()
			if req.Header.Get("Authorization") != "Bearer "+b.valid {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid token"})
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	api.HandleFunc("/alarms", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := make([]model.Alarm, 0, len(b.alarms))
		for id := int64(1); id < b.nextID; id++ {
			if a, ok := b.alarms[id]; ok {
				list = append(list, a)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "ok", "alarms": list})
	}).Methods(http.MethodGet)

	api.HandleFunc("/alarms", func(w http.ResponseWriter, req *http.Request) {
		var in model.AlarmInput
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&in))
		b.mu.Lock()
		a := model.Alarm{ID: b.nextID, Title: in.Title, Time: in.Time, Days: in.Days, IsActive: in.IsActive, NoRepeat: in.NoRepeat}
		b.alarms[a.ID] = a
		b.nextID++
		b.mu.Unlock()
		writeJSON(w, http.StatusCreated, a)
	}).Methods(http.MethodPost)

	api.HandleFunc("/alarms/sync", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Alarms []model.Alarm `json:"alarms"`
		}
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "alarms": body.Alarms})
	}).Methods(http.MethodPost)

	lookup := func(w http.ResponseWriter, req *http.Request) (model.Alarm, bool) {
		id, _ := strconv.ParseInt(mux.Vars(req)["id"], 10, 64)
		a, ok := b.alarms[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Alarm not found"})
		}
		return a, ok
	}

	api.HandleFunc("/alarms/{id:[0-9]+}", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		a, ok := lookup(w, req)
		if !ok {
			return
		}
		switch req.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, a)
		case http.MethodPut:
			var p model.AlarmPatch
			assert.NoError(t, json.NewDecoder(req.Body).Decode(&p))
			if p.Title != nil {
				a.Title = *p.Title
			}
			if p.NoRepeat != nil {
				a.NoRepeat = *p.NoRepeat
			}
			b.alarms[a.ID] = a
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "alarm": a})
		case http.MethodDelete:
			delete(b.alarms, a.ID)
			w.WriteHeader(http.StatusNoContent)
		}
	}).Methods(http.MethodGet, http.MethodPut, http.MethodDelete)

	api.HandleFunc("/alarms/{id:[0-9]+}/toggle", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		a, ok := lookup(w, req)
		if !ok {
			return
		}
		var body struct {
			IsActive bool `json:"isActive"`
		}
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		a.IsActive = body.IsActive
		b.alarms[a.ID] = a
		writeJSON(w, http.StatusOK, a)
	}).Methods(http.MethodPut)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return b, srv
}

func newClient(srv *httptest.Server, tokens TokenSource) *Client {
	c := New(Options{BaseURL: srv.URL + "/api/"})
	if tokens != nil {
		c.SetTokenSource(tokens)
	}
	return c
}

func TestAlarmCRUD(t *testing.T) {
	b, srv := newBackend(t)
	c := newClient(srv, &fakeTokens{token: "good"})
	ctx := context.Background()

	created, err := c.CreateAlarm(ctx, model.AlarmInput{Title: "Wake", Time: "07:00", Days: model.Days{1, 2}, IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, model.Days{1, 2}, created.Days)

	got, err := c.GetAlarm(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Wake", got.Title)

	updated, err := c.UpdateAlarm(ctx, 1, model.AlarmPatch{Title: model.Ptr("Rise")})
	require.NoError(t, err)
	assert.Equal(t, "Rise", updated.Title, "enveloped alarm is unwrapped")

	toggled, err := c.ToggleAlarm(ctx, 1, false)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	list, err := c.ListAlarms(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, c.DeleteAlarm(ctx, 1))
	list, err = c.ListAlarms(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.authHdr {
		assert.Equal(t, "Bearer good", h)
	}
}

func TestNotFoundIsDistinctFromTransport(t *testing.T) {
	_, srv := newBackend(t)
	c := newClient(srv, &fakeTokens{token: "good"})

	_, err := c.GetAlarm(context.Background(), 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, timelyerrors.ErrAlarmNotFound)
	assert.NotErrorIs(t, err, timelyerrors.ErrTransport)
	assert.Equal(t, timelyerrors.KindNotFound, timelyerrors.KindOf(err))
	assert.Contains(t, err.Error(), "Alarm not found")
}

func TestUnreachableBackend(t *testing.T) {
	_, srv := newBackend(t)
	c := newClient(srv, &fakeTokens{token: "good"})
	srv.Close()

	_, err := c.ListAlarms(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, timelyerrors.ErrTransport)
	assert.Equal(t, timelyerrors.KindTransport, timelyerrors.KindOf(err))
}

func TestRefreshOn401ThenRetry(t *testing.T) {
	b, srv := newBackend(t)
	tokens := &fakeTokens{token: "stale", next: "good"}
	c := newClient(srv, tokens)

	_, err := c.ListAlarms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), tokens.refreshes.Load())

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, []string{"Bearer stale", "Bearer good"}, b.authHdr)
}

func TestRefreshFailureIsSessionExpired(t *testing.T) {
	_, srv := newBackend(t)
	tokens := &fakeTokens{token: "stale", err: timelyerrors.ErrNotAuthenticated}
	c := newClient(srv, tokens)

	_, err := c.ListAlarms(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, timelyerrors.ErrSessionExpired)
	assert.Equal(t, int32(1), tokens.refreshes.Load())
}

func TestStill401AfterRefresh(t *testing.T) {
	_, srv := newBackend(t)
	tokens := &fakeTokens{token: "stale", next: "also-stale"}
	c := newClient(srv, tokens)

	_, err := c.ListAlarms(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, timelyerrors.ErrSessionExpired)
	assert.Equal(t, int32(1), tokens.refreshes.Load(), "only one refresh per request")
}

func TestSocketIDOnMutationsOnly(t *testing.T) {
	b, srv := newBackend(t)
	c := newClient(srv, &fakeTokens{token: "good"})
	c.SetSocketID(func() string { return "sock-1" })
	ctx := context.Background()

	_, err := c.CreateAlarm(ctx, model.AlarmInput{Time: "07:00", NoRepeat: true})
	require.NoError(t, err)
	_, err = c.ListAlarms(ctx)
	require.NoError(t, err)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, []string{"sock-1", ""}, b.socketID)
}

func TestSyncAlarms(t *testing.T) {
	_, srv := newBackend(t)
	c := newClient(srv, &fakeTokens{token: "good"})

	out, err := c.SyncAlarms(context.Background(), []model.Alarm{{ID: 3, Time: "06:00", Days: model.Days{0}}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(3), out[0].ID)
}

func TestAuthEndpointsSkipBearer(t *testing.T) {
	var gotAuth string
	var gotBody LoginRequest
	r := mux.NewRouter()
	r.HandleFunc("/api/auth/login", func(w http.ResponseWriter, req *http.Request) {
		gotAuth = req.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
		writeJSON(w, http.StatusOK, AuthResponse{Success: true, Token: "a", RefreshToken: "r", UserID: 1, Username: "kim"})
	}).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/verify", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, VerifyResponse{Success: false, Message: "expired"})
	}).Methods(http.MethodPost)
	srv := httptest.NewServer(r)
	defer srv.Close()

	c := newClient(srv, &fakeTokens{token: "good"})
	resp, err := c.Login(context.Background(), LoginRequest{UsernameOrEmail: "kim", Password: "pw", DeviceID: "dev"})
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
	assert.Equal(t, "dev", gotBody.DeviceID)
	assert.Equal(t, model.User{ID: 1, Username: "kim"}, resp.User())

	_, err = c.Verify(context.Background(), "a")
	assert.ErrorIs(t, err, timelyerrors.ErrSessionExpired)
}

func TestDecodeAlarmShapes(t *testing.T) {
	a, err := decodeAlarm("op", []byte(`{"success":true,"alarm":{"id":2,"time":"07:00","days":"[1,3]"}}`))
	require.NoError(t, err)
	assert.Equal(t, model.Days{1, 3}, a.Days)

	a, err = decodeAlarm("op", []byte(`{"id":4,"time":"07:00","days":null}`))
	require.NoError(t, err)
	assert.Equal(t, int64(4), a.ID)

	_, err = decodeAlarm("op", []byte(`{"success":false,"message":"nope"}`))
	assert.ErrorIs(t, err, timelyerrors.ErrInvalidResponse)

	_, err = decodeAlarm("op", []byte(`not json`))
	assert.ErrorIs(t, err, timelyerrors.ErrInvalidResponse)
}

func TestDecodeAlarmsShapes(t *testing.T) {
	list, err := decodeAlarms("op", []byte(` [{"id":1}]`), true)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = decodeAlarms("op", []byte(`{"success":true}`), false)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = decodeAlarms("op", []byte(`{"success":true}`), true)
	assert.ErrorIs(t, err, timelyerrors.ErrInvalidResponse)

	_, err = decodeAlarms("op", []byte(`{"alarms":{"id":1}}`), false)
	assert.ErrorIs(t, err, timelyerrors.ErrInvalidResponse)
}

func TestErrorDetail(t *testing.T) {
	assert.Equal(t, "bad", errorDetail([]byte(`{"message":"bad"}`)))
	assert.Equal(t, "worse", errorDetail([]byte(`{"error":"worse"}`)))
	assert.Equal(t, "plain text", errorDetail([]byte(" plain text \n")))
}
