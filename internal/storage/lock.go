package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LockFileName is the name of the lock file in the database directory.
const LockFileName = "timely.lock"

// Lock holders recorded next to the PID.
const (
	HolderDaemon = "daemon"
	HolderCLI    = "cli"
)

var (
	// ErrLockAcquireFailed is returned when the lock cannot be acquired.
	ErrLockAcquireFailed = errors.New("failed to acquire database lock")
	// ErrLockAlreadyHeld is returned when another process holds the lock.
	ErrLockAlreadyHeld = errors.New("database is locked by another process")
)

// Holder identifies the process owning the database lock.
type Holder struct {
	PID  int
	Role string
}

func (h Holder) String() string {
	if h.Role == "" {
		return strconv.Itoa(h.PID)
	}
	return strconv.Itoa(h.PID) + " " + h.Role
}

// parseHolder reads a "PID [role]" record. A bare PID is accepted.
func parseHolder(s string) (Holder, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Holder{}, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return Holder{}, false
	}
	h := Holder{PID: pid}
	if len(fields) > 1 {
		h.Role = fields[1]
	}
	return h, true
}

// FileLock is an exclusive advisory lock on the database directory. The
// lock file names the owning process and its role.
type FileLock struct {
	path string
	role string
	file *os.File
}

// NewFileLock creates a lock in dir for a process acting as role.
func NewFileLock(dir, role string) *FileLock {
	return &FileLock{path: filepath.Join(dir, LockFileName), role: role}
}

// Acquire takes the lock without blocking.
func (l *FileLock) Acquire() error {
	if err := l.cleanStaleLock(); err != nil {
		return err
	}

	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}

	if err := flockAcquire(file); err != nil {
		file.Close()
		if h, ok := l.holder(); ok && errors.Is(err, ErrLockAlreadyHeld) {
			return &heldError{holder: h}
		}
		return err
	}

	if err := l.record(file); err != nil {
		_ = flockRelease(file)
		file.Close()
		return fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	l.file = file
	return nil
}

func (l *FileLock) record(file *os.File) error {
	if err := file.Truncate(0); err != nil {
		return err
	}
	self := Holder{PID: os.Getpid(), Role: l.role}
	if _, err := file.WriteAt([]byte(self.String()), 0); err != nil {
		return err
	}
	return file.Sync()
}

// Release drops the lock and removes the lock file. Releasing twice is
// a no-op.
func (l *FileLock) Release() error {
	if l.file == nil {
		return nil
	}
	file := l.file
	l.file = nil

	err := flockRelease(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// cleanStaleLock removes a lock file left by a process that is gone.
func (l *FileLock) cleanStaleLock() error {
	h, ok := l.holder()
	if !ok || h.PID == os.Getpid() || isProcessRunning(h.PID) {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clean stale lock: %v", err)
	}
	return nil
}

// holder returns the process recorded in the lock file.
func (l *FileLock) holder() (Holder, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Holder{}, false
	}
	return parseHolder(string(data))
}

type heldError struct {
	holder Holder
}

func (e *heldError) Error() string {
	return fmt.Sprintf("%s: PID %d", ErrLockAlreadyHeld, e.holder.PID)
}

func (e *heldError) Unwrap() error {
	return ErrLockAlreadyHeld
}

// LockError explains who holds the database and what to do about it.
type LockError struct {
	Err    error
	Holder Holder
}

func (e *LockError) Error() string {
	switch {
	case e.Holder.PID == 0:
		return fmt.Sprintf("cannot access database: %v", e.Err)
	case e.Holder.Role == HolderDaemon:
		return fmt.Sprintf("cannot access database: the timely daemon (PID %d) has it open; run 'timely daemon stop' first", e.Holder.PID)
	default:
		return fmt.Sprintf("cannot access database: another timely command (PID %d) is using it; wait for it to exit", e.Holder.PID)
	}
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// HeldByDaemon reports whether the running daemon owns the lock.
func (e *LockError) HeldByDaemon() bool {
	return e.Holder.Role == HolderDaemon
}

// NewLockError wraps a lock failure, extracting the holder if known.
func NewLockError(err error) *LockError {
	lockErr := &LockError{Err: err}
	var held *heldError
	if errors.As(err, &held) {
		lockErr.Holder = held.holder
	}
	return lockErr
}
