package errors

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// ErrDiskFull is matched by every write that failed for lack of space.
var ErrDiskFull = errors.New("disk full: unable to write to database")

// DiskFullError is a failed local write with its operation and path.
type DiskFullError struct {
	Op    string
	Path  string
	Cause error
}

func (e *DiskFullError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("disk full during %s on %s: %v", e.Op, e.Path, e.Cause)
	}
	return fmt.Sprintf("disk full during %s: %v", e.Op, e.Cause)
}

func (e *DiskFullError) Unwrap() []error {
	return []error{ErrDiskFull, e.Cause}
}

var diskFullPatterns = []string{
	"no space left on device",
	"disk full",
	"not enough space",
	"out of disk space",
}

// IsDiskFull reports whether err means the disk ran out of space, either as
// ENOSPC or as a message a storage engine produced from it.
func IsDiskFull(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDiskFull) || errors.Is(err, syscall.ENOSPC) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range diskFullPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// WrapDiskFull returns a DiskFullError for disk-full failures and err
// unchanged otherwise.
func WrapDiskFull(err error, op, path string) error {
	if err == nil || !IsDiskFull(err) {
		return err
	}
	var dfe *DiskFullError
	if errors.As(err, &dfe) {
		return err
	}
	return &DiskFullError{Op: op, Path: path, Cause: err}
}
