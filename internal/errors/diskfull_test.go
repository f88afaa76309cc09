package errors

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsDiskFull(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"enospc", syscall.ENOSPC, true},
		{"path_error", &os.PathError{Op: "write", Path: "/db", Err: syscall.ENOSPC}, true},
		{"message", errors.New("write vlog: No space left on device"), true},
		{"sentinel", fmt.Errorf("save: %w", ErrDiskFull), true},
		{"other", errors.New("permission denied"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDiskFull(tt.err))
		})
	}
}

func TestWrapDiskFull(t *testing.T) {
	assert.Nil(t, WrapDiskFull(nil, "write", ""))

	plain := errors.New("boom")
	assert.Same(t, plain, WrapDiskFull(plain, "write", ""))

	err := WrapDiskFull(syscall.ENOSPC, "write session", "/data/db")
	var dfe *DiskFullError
	assert.True(t, errors.As(err, &dfe))
	assert.Equal(t, "disk full during write session on /data/db: no space left on device", err.Error())
	assert.ErrorIs(t, err, ErrDiskFull)
	assert.ErrorIs(t, err, syscall.ENOSPC)
	assert.NotEmpty(t, GetSuggestion(err))

	// Already wrapped errors pass through.
	assert.Same(t, err, WrapDiskFull(err, "again", ""))
}
