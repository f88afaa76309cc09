//go:build windows

package storage

import "os"

// Windows has no flock. Badger's directory lock still turns away a second
// process; the holder record only sharpens the message.
func flockAcquire(*os.File) error { return nil }

func flockRelease(*os.File) error { return nil }

// isProcessRunning treats any PID that can be opened as alive.
func isProcessRunning(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
