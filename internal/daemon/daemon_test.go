package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/timely/internal/config"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/reconcile"
	"github.com/manav03panchal/timely/internal/storage"
)

// =============================================================================
// HealthChecker Tests
// =============================================================================

func TestHealthCheckerCheck(t *testing.T) {
	checker := NewHealthChecker("1.0.0")

	status := checker.Check()
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.0.0", status.Version)
	assert.GreaterOrEqual(t, status.Goroutines, 1)
	assert.GreaterOrEqual(t, status.MemoryMB, 0.0)
	assert.Empty(t, status.Checks)
}

func TestHealthCheckerState(t *testing.T) {
	checker := NewHealthChecker("1.0.0")
	checker.SetState(func() (reconcile.StatusCounts, int, int) {
		return reconcile.StatusCounts{Synced: 3, Conflict: 1}, 2, 5
	})

	status := checker.Check()
	assert.Equal(t, 3, status.Alarms.Synced)
	assert.Equal(t, 1, status.Alarms.Conflict)
	assert.Equal(t, 2, status.PendingCorrections)
	assert.Equal(t, 5, status.PendingNotifications)
}

func TestHealthCheckerAddRemoveCheck(t *testing.T) {
	checker := NewHealthChecker("1.0.0")

	checker.AddCheck("alarm_permission", func() error {
		return errors.New("alarm permission denied")
	})

	status := checker.Check()
	assert.Equal(t, "unhealthy", status.Status)
	require.Len(t, status.Checks, 1)
	assert.False(t, status.Checks[0].Healthy)
	assert.Equal(t, "alarm permission denied", status.Checks[0].Error)
	assert.False(t, checker.IsHealthy())

	checker.RemoveCheck("alarm_permission")
	assert.True(t, checker.IsHealthy())
}

func TestHealthCheckerUptime(t *testing.T) {
	checker := NewHealthChecker("1.0.0")
	time.Sleep(10 * time.Millisecond)
	assert.GreaterOrEqual(t, checker.Uptime(), 10*time.Millisecond)
}

// =============================================================================
// Metrics Tests
// =============================================================================

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()

	m.ObserveReconcile(model.SyncSynced)
	m.ObserveReconcile(model.SyncSynced)
	m.ObserveReconcile(model.SyncConflict)
	m.ObserveNative("schedule", nil)
	m.ObserveNative("schedule", errors.New("boom"))
	m.ObserveCorrection("sent")
	m.ObserveNotification(nil)
	m.ObserveNotification(errors.New("timeout"))
	m.ObserveRealtime(model.EventAlarmUpdated)
	m.ObserveRing()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.reconciles.WithLabelValues("synced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconciles.WithLabelValues("conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nativeOps.WithLabelValues("schedule", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nativeOps.WithLabelValues("schedule", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.corrections.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.realtime.WithLabelValues(string(model.EventAlarmUpdated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rings))
}

// =============================================================================
// Router Tests
// =============================================================================

func TestRouterHealth(t *testing.T) {
	checker := NewHealthChecker("1.2.3")
	srv := httptest.NewServer(NewRouter(checker, NewMetrics(), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
}

func TestRouterHealthUnhealthy(t *testing.T) {
	checker := NewHealthChecker("1.2.3")
	checker.AddCheck("broken", func() error { return errors.New("down") })
	srv := httptest.NewServer(NewRouter(checker, NewMetrics(), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRouterRejectsPost(t *testing.T) {
	srv := httptest.NewServer(NewRouter(NewHealthChecker("x"), NewMetrics(), nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRouterMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveRing()
	srv := httptest.NewServer(NewRouter(NewHealthChecker("x"), m, nil))
	defer srv.Close()

	body := get(t, srv.URL+"/metrics")
	assert.Contains(t, body, "timely_alarm_rings_total 1")
}

// =============================================================================
// Assemble Tests
// =============================================================================

func TestAssembleExposesState(t *testing.T) {
	db, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	defer db.Close()

	settings := &config.Settings{APIURL: "http://127.0.0.1:1", SocketURL: "ws://127.0.0.1:1"}
	c, err := Assemble(db, settings, "test")
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(c.Health, c.Metrics, c.Control()))
	defer srv.Close()

	body := get(t, srv.URL+"/metrics")
	assert.Contains(t, body, `timely_alarms{sync_status="synced"} 0`)
	assert.Contains(t, body, "timely_alarms_active 0")
	assert.Contains(t, body, "timely_correction_queue_size 0")
	assert.Contains(t, body, "timely_realtime_connected 0")

	status := c.Health.Check()
	assert.Equal(t, "healthy", status.Status)
	require.Len(t, status.Checks, 1)
	assert.Equal(t, "alarm_permission", status.Checks[0].Name)
}

func get(t *testing.T, url string) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

// =============================================================================
// Files
// =============================================================================

func TestPIDFile(t *testing.T) {
	p := NewPIDFileAt(filepath.Join(t.TempDir(), "state", PIDFileName))

	_, err := p.Read()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, 0, p.RunningPID())
	assert.ErrorIs(t, p.Signal(syscall.Signal(0)), ErrNotRunning)

	require.NoError(t, p.Claim())
	assert.Equal(t, os.Getpid(), p.RunningPID())
	require.NoError(t, p.Claim(), "reclaiming our own file")
	assert.NoError(t, p.Signal(syscall.Signal(0)))

	p.Release()
	assert.Equal(t, 0, p.RunningPID())
	require.NoError(t, p.Clear())
}

func TestPIDFileStaleOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), PIDFileName)
	// PIDs this large are never handed out.
	require.NoError(t, os.WriteFile(path, []byte("2147483646"), 0o644))

	p := NewPIDFileAt(path)
	assert.Equal(t, 0, p.RunningPID())
	require.NoError(t, p.Claim())
	assert.Equal(t, os.Getpid(), p.RunningPID())
}

func TestPIDFileReleaseKeepsForeignOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), PIDFileName)
	require.NoError(t, os.WriteFile(path, []byte("1"), 0o644))

	NewPIDFileAt(path).Release()
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestPIDFileInvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), PIDFileName)
	require.NoError(t, os.WriteFile(path, []byte("nope"), 0o644))

	_, err := NewPIDFileAt(path).Read()
	assert.Error(t, err)
	assert.Equal(t, 0, NewPIDFileAt(path).RunningPID())
}

func TestIsProcessRunning(t *testing.T) {
	assert.True(t, IsProcessRunning(os.Getpid()))
	assert.False(t, IsProcessRunning(0))
	assert.False(t, IsProcessRunning(-1))
}

func TestOpenLogRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFileName)
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0o644))

	f, err := openLogAt(path, 32)
	require.NoError(t, err)
	_, err = f.WriteString("fresh\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Len(t, old, 64)

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fresh\n", string(current))
}

func TestOpenLogAppendsBelowLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFileName)
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	f, err := openLogAt(path, 1024)
	require.NoError(t, err)
	_, _ = f.WriteString("b\n")
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))
	_, err = os.Stat(path + ".old")
	assert.True(t, os.IsNotExist(err))
}

func TestServiceRender(t *testing.T) {
	m := &ServiceManager{
		unit: unitData{
			ExecutablePath: "/usr/local/bin/timely",
			ConfigFile:     "/etc/timely.yaml",
			LogPath:        "/tmp/daemon.log",
			Label:          launchdLabel,
		},
		goos: "linux",
	}
	out, err := m.render()
	require.NoError(t, err)
	assert.Contains(t, string(out), "ExecStart=/usr/local/bin/timely daemon run --config /etc/timely.yaml")
	assert.Contains(t, string(out), "StandardOutput=append:/tmp/daemon.log")

	m.goos = "darwin"
	m.unit.ConfigFile = ""
	out, err = m.render()
	require.NoError(t, err)
	assert.Contains(t, string(out), "<string>dev.timely.daemon</string>")
	assert.NotContains(t, string(out), "--config")
}

func TestServiceUnsupportedOS(t *testing.T) {
	var calls []string
	m := &ServiceManager{
		unit: unitData{ExecutablePath: "/bin/timely"},
		goos: "freebsd",
		run: func(name string, args ...string) ([]byte, error) {
			calls = append(calls, name+" "+strings.Join(args, " "))
			return nil, nil
		},
	}
	assert.Error(t, m.Install())
	assert.False(t, m.IsInstalled())
	assert.Empty(t, calls)
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 15*time.Minute, "2h 15m"},
		{48 * time.Hour, "2d"},
		{50 * time.Hour, "2d 2h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatUptime(tt.d), tt.d.String())
	}
}

func TestRunRingsAlarmsMissedWhileDown(t *testing.T) {
	db, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	defer db.Close()

	received := make(chan string, 4)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- string(body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()
	require.NoError(t, storage.NewWebhookRepo(db).Create(&model.Webhook{
		Name: "ops", Type: model.WebhookTypeGeneric, URL: hook.URL, Enabled: true,
	}))

	natives := storage.NewNativeRepo(db)
	missed := model.NativeAlarmFor(model.Alarm{ID: 5, Title: "Standup", Time: "09:00", NoRepeat: true, IsActive: true},
		time.Now().Add(-time.Hour))
	require.NoError(t, natives.Save(&missed))

	settings := &config.Settings{APIURL: "http://127.0.0.1:1", SocketURL: "ws://127.0.0.1:1"}
	c, err := Assemble(db, settings, "test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case body := <-received:
		assert.Contains(t, body, "Standup")
		assert.Contains(t, body, "timely-5")
	case <-time.After(5 * time.Second):
		t.Fatal("missed alarm never reached the webhook")
	}
	require.Eventually(t, func() bool {
		saved, err := natives.List()
		return err == nil && len(saved) == 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
