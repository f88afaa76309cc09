// Package storage provides the local database layer for timely: the device
// identity, the login session, webhooks and the native alarm schedule.
// Alarms themselves are never stored here.
package storage

import (
	"os"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/manav03panchal/timely/internal/config"
	"github.com/manav03panchal/timely/internal/logging"
)

// DB wraps a Badger database connection.
type DB struct {
	db   *badger.DB
	path string
	lock *FileLock
}

// Options configures the database connection.
type Options struct {
	// Path is the database directory path. Empty string uses in-memory mode.
	Path string
	// InMemory forces in-memory mode regardless of Path.
	InMemory bool
	// Holder is recorded in the lock file; empty means HolderCLI.
	Holder string
}

// DefaultPath returns the default database path following XDG spec.
func DefaultPath() string {
	return config.DefaultDatabasePath()
}

// Open opens or creates a database. On-disk databases are guarded by a
// lock file so a second process gets a LockError naming the holder.
func Open(opts Options) (*DB, error) {
	if opts.InMemory || opts.Path == "" {
		badgerOpts := badger.DefaultOptions("").
			WithInMemory(true).
			WithLoggingLevel(badger.ERROR)
		db, err := badger.Open(badgerOpts)
		if err != nil {
			return nil, err
		}
		return &DB{db: db}, nil
	}

	if err := os.MkdirAll(opts.Path, 0o700); err != nil {
		return nil, err
	}

	holder := opts.Holder
	if holder == "" {
		holder = HolderCLI
	}
	lock := NewFileLock(opts.Path, holder)
	if err := lock.Acquire(); err != nil {
		return nil, NewLockError(err)
	}

	badgerOpts := badger.DefaultOptions(opts.Path).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(badgerOpts)
	if err != nil {
		_ = lock.Release()
		return nil, err
	}

	logging.DebugLog("database opened", "path", opts.Path)
	return &DB{db: db, path: opts.Path, lock: lock}, nil
}

// Close closes the database connection and releases the lock.
func (d *DB) Close() error {
	err := d.db.Close()
	if d.lock != nil {
		if lerr := d.lock.Release(); err == nil {
			err = lerr
		}
		d.lock = nil
	}
	return err
}

// Path returns the database directory, empty for in-memory databases.
func (d *DB) Path() string {
	return d.path
}

// Badger returns the underlying Badger database for advanced operations.
func (d *DB) Badger() *badger.DB {
	return d.db
}
