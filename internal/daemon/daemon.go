package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/manav03panchal/timely/internal/config"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/storage"
)

// Daemon manages the background alarm process.
type Daemon struct {
	pidFile  *PIDFile
	settings *config.Settings
	version  string
	debug    bool
}

// Status represents the daemon status.
type Status struct {
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Uptime    string    `json:"uptime,omitempty"`
	Addr      string    `json:"listen_addr,omitempty"`
}

// New creates a daemon manager for settings.
func New(settings *config.Settings, version string) *Daemon {
	return &Daemon{
		pidFile:  NewPIDFile(),
		settings: settings,
		version:  version,
	}
}

// SetDebug enables debug mode for background starts.
func (d *Daemon) SetDebug(debug bool) {
	d.debug = debug
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() *Status {
	status := &Status{}
	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return status
	}
	status.Running = true
	status.PID = pid
	if state, err := readState(); err == nil {
		status.StartedAt = state.StartedAt
		status.Uptime = formatUptime(time.Since(state.StartedAt))
		status.Addr = state.ListenAddr
	}
	return status
}

// IsRunning returns true if the daemon is running.
func (d *Daemon) IsRunning() bool {
	return d.pidFile.RunningPID() != 0
}

// Run runs the daemon in the foreground until ctx ends or a shutdown signal
// arrives.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.pidFile.Claim(); err != nil {
		return err
	}
	defer d.pidFile.Release()

	if err := writeState(&State{StartedAt: time.Now(), ListenAddr: d.settings.ListenAddr}); err != nil {
		return err
	}
	defer removeState()

	db, err := storage.Open(storage.Options{Path: d.settings.Database, Holder: storage.HolderDaemon})
	if err != nil {
		return err
	}
	defer db.Close()

	c, err := Assemble(db, d.settings, d.version)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go NewSignalHandler(c.Reload).Run(ctx, cancel)

	if addr := d.settings.ListenAddr; addr != "" {
		go func() {
			if err := serveHTTP(ctx, addr, NewRouter(c.Health, c.Metrics, c.Control())); err != nil {
				logging.Error("http server failed", logging.KeyError, err)
			}
		}()
	}

	logging.Info("daemon started", "pid", os.Getpid(), logging.KeyURL, d.settings.APIURL)
	err = c.Run(ctx)
	logging.Info("daemon stopped")
	return err
}

// StartBackground re-executes the binary as `daemon run` detached from the
// terminal, logging to the daemon log file.
func (d *Daemon) StartBackground(extraArgs ...string) (int, error) {
	if d.IsRunning() {
		return d.pidFile.RunningPID(), ErrAlreadyRunning
	}

	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}

	args := append([]string{"daemon", "run"}, extraArgs...)
	if d.debug {
		args = append(args, "--debug")
	}
	cmd := exec.Command(executable, args...)
	cmd.Stdin = nil

	logFile, err := OpenLog(int64(config.Global.Daemon.LogMaxSize))
	if err == nil {
		defer logFile.Close()
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}

	time.Sleep(config.Global.Daemon.StartupWait)

	if !d.IsRunning() {
		if errMsg := lastLogError(); errMsg != "" {
			return 0, fmt.Errorf("daemon failed to start: %s", errMsg)
		}
		return 0, fmt.Errorf("daemon failed to start (check logs: %s)", GetLogPath())
	}
	return cmd.Process.Pid, nil
}

// lastLogError finds an error line among the last lines of the log file.
func lastLogError() string {
	data, err := os.ReadFile(GetLogPath())
	if err != nil {
		return ""
	}

	lines := strings.Split(string(data), "\n")
	start := len(lines) - 10
	if start < 0 {
		start = 0
	}
	for i := len(lines) - 1; i >= start; i-- {
		line := strings.TrimSpace(lines[i])
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "failed to") {
			return line
		}
	}
	return ""
}

// Stop asks the running daemon to shut down and waits for it, killing it
// after the configured timeout.
func (d *Daemon) Stop() error {
	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return ErrNotRunning
	}

	if err := d.pidFile.Signal(os.Interrupt); err != nil {
		process, ferr := os.FindProcess(pid)
		if ferr != nil {
			return fmt.Errorf("failed to find process: %w", ferr)
		}
		if kerr := process.Kill(); kerr != nil {
			return fmt.Errorf("failed to stop daemon: %w", kerr)
		}
	}

	deadline := time.Now().Add(config.Global.Daemon.KillTimeout)
	for IsProcessRunning(pid) && time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
	}
	if IsProcessRunning(pid) {
		if process, err := os.FindProcess(pid); err == nil {
			_ = process.Kill()
		}
	}

	_ = d.pidFile.Clear()
	removeState()
	return nil
}

// Reload asks the running daemon to fetch the alarm list again.
func (d *Daemon) Reload() error {
	return d.pidFile.Signal(syscall.SIGHUP)
}

// State is persisted while the daemon runs.
type State struct {
	StartedAt  time.Time `json:"started_at"`
	ListenAddr string    `json:"listen_addr,omitempty"`
}

func getStatePath() string {
	return filepath.Join(config.DefaultStateDir(), "daemon.json")
}

func writeState(state *State) error {
	path := getStatePath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readState() (*State, error) {
	data, err := os.ReadFile(getStatePath())
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func removeState() {
	if err := os.Remove(getStatePath()); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove daemon state file", logging.KeyError, err, "path", getStatePath())
	}
}

// formatUptime formats a duration as uptime.
func formatUptime(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		if minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	if hours > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}
