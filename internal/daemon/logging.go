package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/manav03panchal/timely/internal/config"
)

// LogFileName is the daemon log file inside the state directory.
const LogFileName = "daemon.log"

// GetLogDir returns the directory containing log files.
func GetLogDir() string {
	return config.DefaultStateDir()
}

// GetLogPath returns the daemon log file path.
func GetLogPath() string {
	return filepath.Join(GetLogDir(), LogFileName)
}

// OpenLog opens the daemon log for appending. A log at or above maxSize
// bytes is moved to daemon.log.old first.
func OpenLog(maxSize int64) (*os.File, error) {
	return openLogAt(GetLogPath(), maxSize)
}

func openLogAt(path string, maxSize int64) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := rotate(path, maxSize); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

func rotate(path string, maxSize int64) error {
	if maxSize <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() < maxSize {
		return nil
	}

	backup := path + ".old"
	_ = os.Remove(backup)
	if err := os.Rename(path, backup); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	return nil
}
