//go:build !windows

package storage

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

func flock(file *os.File, how int) error {
	return syscall.Flock(int(file.Fd()), how)
}

func flockAcquire(file *os.File) error {
	err := flock(file, syscall.LOCK_EX|syscall.LOCK_NB)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, syscall.EWOULDBLOCK):
		return ErrLockAlreadyHeld
	default:
		return fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
}

func flockRelease(file *os.File) error {
	return flock(file, syscall.LOCK_UN)
}

// isProcessRunning probes pid with signal 0. EPERM means the process
// exists under another user.
func isProcessRunning(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
