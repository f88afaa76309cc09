package storage

import (
	"encoding/json"
	"errors"

	badger "github.com/dgraph-io/badger/v4"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
)

// ErrKeyNotFound is returned when a key is not found in the database.
var ErrKeyNotFound = errors.New("key not found")

// IsErrKeyNotFound matches both our sentinel and badger's.
func IsErrKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, badger.ErrKeyNotFound)
}

// maxConflictRetries bounds Modify when concurrent writers keep colliding.
const maxConflictRetries = 10

func readInto(txn *badger.Txn, key string, v model.Model) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrKeyNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return err
		}
		v.SetKey(key)
		return nil
	})
}

func writeFrom(txn *badger.Txn, v model.Model) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(v.GetKey()), data)
}

// Get retrieves a value by key and unmarshals it into v.
func (d *DB) Get(key string, v model.Model) error {
	return d.db.View(func(txn *badger.Txn) error {
		return readInto(txn, key, v)
	})
}

// Set stores a model under its key.
func (d *DB) Set(v model.Model) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return writeFrom(txn, v)
	})
	return timelyerrors.WrapDiskFull(err, "write "+v.GetKey(), d.path)
}

// Modify loads key into v, applies mutate and writes v back in one
// transaction. A write conflict with another goroutine is retried.
func (d *DB) Modify(key string, v model.Model, mutate func() error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = d.db.Update(func(txn *badger.Txn) error {
			if err := readInto(txn, key, v); err != nil {
				return err
			}
			if err := mutate(); err != nil {
				return err
			}
			return writeFrom(txn, v)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return timelyerrors.WrapDiskFull(err, "modify "+key, d.path)
}

// Delete removes a key. Deleting a missing key is not an error.
func (d *DB) Delete(key string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Exists checks if a key exists in the database.
func (d *DB) Exists(key string) (bool, error) {
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// keysWithPrefix collects the keys under prefix without loading values.
func (d *DB) keysWithPrefix(prefix string) ([][]byte, error) {
	var keys [][]byte
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	return keys, err
}

// DeleteByPrefix removes every key with the given prefix and returns how
// many were removed.
func (d *DB) DeleteByPrefix(prefix string) (int, error) {
	keys, err := d.keysWithPrefix(prefix)
	if err != nil || len(keys) == 0 {
		return 0, err
	}
	wb := d.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// GetAllByPrefix decodes every value under prefix into a fresh T.
func GetAllByPrefix[T model.Model](d *DB, prefix string, newFunc func() T) ([]T, error) {
	var results []T
	err := d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			v := newFunc()
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, v) }); err != nil {
				return err
			}
			v.SetKey(string(item.Key()))
			results = append(results, v)
		}
		return nil
	})
	return results, err
}
