package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/manav03panchal/timely/internal/config"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/reconcile"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status               string                 `json:"status"`
	UptimeSeconds        int64                  `json:"uptime_seconds"`
	MemoryMB             float64                `json:"memory_mb"`
	Goroutines           int                    `json:"goroutines"`
	Version              string                 `json:"version,omitempty"`
	LastCheck            time.Time              `json:"last_check"`
	Alarms               reconcile.StatusCounts `json:"alarms"`
	PendingCorrections   int                    `json:"pending_corrections"`
	PendingNotifications int                    `json:"pending_notifications"`
	Checks               []CheckResult          `json:"checks,omitempty"`
}

// CheckResult is the outcome of one named health check.
type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// StateFunc reports live counters for the health body.
type StateFunc func() (alarms reconcile.StatusCounts, corrections, notifications int)

// HealthChecker computes the daemon health.
type HealthChecker struct {
	mu           sync.RWMutex
	startTime    time.Time
	version      string
	state        StateFunc
	customChecks map[string]func() error
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		startTime:    time.Now(),
		version:      version,
		customChecks: make(map[string]func() error),
	}
}

// SetState installs the live counter source.
func (h *HealthChecker) SetState(fn StateFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.state = fn
}

// AddCheck adds a named check. Any failing check makes the daemon unhealthy.
func (h *HealthChecker) AddCheck(name string, check func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.customChecks[name] = check
}

// RemoveCheck removes a named check.
func (h *HealthChecker) RemoveCheck(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.customChecks, name)
}

// Check runs every check and returns the status.
func (h *HealthChecker) Check() *HealthStatus {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	h.mu.RLock()
	state := h.state
	checks := make(map[string]func() error, len(h.customChecks))
	for k, v := range h.customChecks {
		checks[k] = v
	}
	h.mu.RUnlock()

	status := &HealthStatus{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		MemoryMB:      float64(memStats.Alloc) / 1024 / 1024,
		Goroutines:    runtime.NumGoroutine(),
		Version:       h.version,
		LastCheck:     time.Now(),
	}
	if state != nil {
		status.Alarms, status.PendingCorrections, status.PendingNotifications = state()
	}
	for name, check := range checks {
		result := CheckResult{Name: name, Healthy: true}
		if err := check(); err != nil {
			result.Healthy = false
			result.Error = err.Error()
			status.Status = "unhealthy"
		}
		status.Checks = append(status.Checks, result)
	}
	return status
}

// IsHealthy returns true if every check passes.
func (h *HealthChecker) IsHealthy() bool {
	return h.Check().Status == "healthy"
}

// Uptime returns how long the daemon has been running.
func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.startTime)
}

// NewRouter serves /health, /metrics and, when ctl is set, the control API
// under /v1.
func NewRouter(health *HealthChecker, metrics *Metrics, ctl *Control) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		status := health.Check()
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	if ctl != nil {
		registerControl(r, ctl)
	}
	return r
}

// serveHTTP runs handler on addr until ctx ends.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logging.Info("http server listening", logging.KeyURL, "http://"+ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Global.Daemon.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
