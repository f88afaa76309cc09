// Package daemon runs the alarm engine as a background process and serves
// its health and metrics.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/manav03panchal/timely/internal/config"
)

// PIDFileName is the PID file name.
const PIDFileName = "timely.pid"

var (
	ErrNotRunning     = errors.New("daemon is not running")
	ErrAlreadyRunning = errors.New("daemon is already running")
)

// PIDFile records which process owns the alarm engine. A file left behind
// by a dead process counts as absent.
type PIDFile struct {
	path string
}

// NewPIDFile returns the PID file under the XDG state directory.
func NewPIDFile() *PIDFile {
	return NewPIDFileAt(filepath.Join(config.DefaultStateDir(), PIDFileName))
}

// NewPIDFileAt returns a PID file at path.
func NewPIDFileAt(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Claim records the current process as the owner. It fails with
// ErrAlreadyRunning while another live process holds the file.
func (p *PIDFile) Claim() error {
	if pid := p.RunningPID(); pid != 0 && pid != os.Getpid() {
		return fmt.Errorf("%w (PID %d)", ErrAlreadyRunning, pid)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Release removes the file if it still names the current process.
func (p *PIDFile) Release() {
	if pid, err := p.Read(); err == nil && pid == os.Getpid() {
		_ = os.Remove(p.path)
	}
}

// Clear removes the file regardless of its owner.
func (p *PIDFile) Clear() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID, or ErrNotRunning without a file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// RunningPID returns the recorded PID if that process is alive, else 0.
func (p *PIDFile) RunningPID() int {
	pid, err := p.Read()
	if err != nil || !IsProcessRunning(pid) {
		return 0
	}
	return pid
}

// Signal delivers sig to the recorded process.
func (p *PIDFile) Signal(sig os.Signal) error {
	pid := p.RunningPID()
	if pid == 0 {
		return ErrNotRunning
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	return process.Signal(sig)
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on unix; signal 0 probes the pid.
	return process.Signal(syscall.Signal(0)) == nil
}
