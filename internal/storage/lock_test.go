package storage

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockFile(dir string) string {
	return filepath.Join(dir, LockFileName)
}

func TestFileLock(t *testing.T) {
	t.Run("records pid and role", func(t *testing.T) {
		dir := t.TempDir()
		lock := NewFileLock(dir, HolderDaemon)
		require.NoError(t, lock.Acquire())

		data, err := os.ReadFile(lockFile(dir))
		require.NoError(t, err)
		assert.Equal(t, strconv.Itoa(os.Getpid())+" daemon", string(data))

		require.NoError(t, lock.Release())
		_, err = os.Stat(lockFile(dir))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("second holder is refused with the first named", func(t *testing.T) {
		dir := t.TempDir()
		first := NewFileLock(dir, HolderDaemon)
		require.NoError(t, first.Acquire())
		defer first.Release()

		err := NewFileLock(dir, HolderCLI).Acquire()
		require.ErrorIs(t, err, ErrLockAlreadyHeld)

		lockErr := NewLockError(err)
		assert.Equal(t, Holder{PID: os.Getpid(), Role: HolderDaemon}, lockErr.Holder)
		assert.True(t, lockErr.HeldByDaemon())
	})

	t.Run("reacquire after release", func(t *testing.T) {
		dir := t.TempDir()
		first := NewFileLock(dir, HolderCLI)
		require.NoError(t, first.Acquire())
		require.NoError(t, first.Release())

		second := NewFileLock(dir, HolderCLI)
		require.NoError(t, second.Acquire())
		require.NoError(t, second.Release())
	})

	t.Run("release twice", func(t *testing.T) {
		lock := NewFileLock(t.TempDir(), HolderCLI)
		require.NoError(t, lock.Acquire())
		require.NoError(t, lock.Release())
		assert.NoError(t, lock.Release())
	})
}

func TestFileLockStaleHolder(t *testing.T) {
	const stalePID = 99999999
	if isProcessRunning(stalePID) {
		t.Skip("stale pid is in use")
	}
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(lockFile(dir), []byte("99999999 daemon"), 0o644))

	lock := NewFileLock(dir, HolderCLI)
	require.NoError(t, lock.Acquire())
	defer lock.Release()

	h, ok := lock.holder()
	require.True(t, ok)
	assert.Equal(t, HolderCLI, h.Role)
}

func TestParseHolder(t *testing.T) {
	tests := []struct {
		in   string
		want Holder
		ok   bool
	}{
		{"12345 daemon", Holder{PID: 12345, Role: "daemon"}, true},
		{"12345", Holder{PID: 12345}, true},
		{" 77 cli\n", Holder{PID: 77, Role: "cli"}, true},
		{"not-a-number", Holder{}, false},
		{"-4 cli", Holder{}, false},
		{"", Holder{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := parseHolder(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLockError(t *testing.T) {
	t.Run("unknown holder", func(t *testing.T) {
		err := NewLockError(ErrLockAlreadyHeld)
		assert.Contains(t, err.Error(), "cannot access database")
		assert.Zero(t, err.Holder.PID)
		assert.ErrorIs(t, err, ErrLockAlreadyHeld)
	})

	t.Run("daemon holder", func(t *testing.T) {
		err := NewLockError(&heldError{holder: Holder{PID: 4242, Role: HolderDaemon}})
		assert.Contains(t, err.Error(), "daemon (PID 4242)")
		assert.Contains(t, err.Error(), "timely daemon stop")
	})

	t.Run("command holder", func(t *testing.T) {
		err := NewLockError(&heldError{holder: Holder{PID: 4243, Role: HolderCLI}})
		assert.Contains(t, err.Error(), "command (PID 4243)")
		assert.False(t, err.HeldByDaemon())
	})
}

func TestOpenLocksDiskDatabase(t *testing.T) {
	t.Run("in-memory has no lock", func(t *testing.T) {
		db, err := Open(Options{InMemory: true})
		require.NoError(t, err)
		defer db.Close()
		assert.Nil(t, db.lock)
	})

	t.Run("daemon open blocks a command", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db")
		db, err := Open(Options{Path: path, Holder: HolderDaemon})
		require.NoError(t, err)
		defer db.Close()

		_, err = Open(Options{Path: path})
		var lockErr *LockError
		require.ErrorAs(t, err, &lockErr)
		assert.True(t, lockErr.HeldByDaemon())
		assert.Equal(t, os.Getpid(), lockErr.Holder.PID)
	})

	t.Run("close frees the directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "db")
		db, err := Open(Options{Path: path})
		require.NoError(t, err)
		data, err := os.ReadFile(lockFile(path))
		require.NoError(t, err)
		assert.Contains(t, string(data), HolderCLI)
		require.NoError(t, db.Close())

		_, err = os.Stat(lockFile(path))
		assert.True(t, os.IsNotExist(err))

		again, err := Open(Options{Path: path})
		require.NoError(t, err)
		require.NoError(t, again.Close())
	})
}
