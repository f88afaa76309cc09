package storage

import (
	"sort"

	"github.com/manav03panchal/timely/internal/model"
)

// NativeRepo persists the device-local alarm schedule so it survives a
// restart of the daemon.
type NativeRepo struct {
	db *DB
}

// NewNativeRepo creates a new native schedule repository.
func NewNativeRepo(db *DB) *NativeRepo {
	return &NativeRepo{db: db}
}

// Save stores or replaces a schedule entry.
func (r *NativeRepo) Save(n *model.NativeAlarm) error {
	if n.Key == "" {
		n.Key = model.GenerateNativeKey(n.AlarmID)
	}
	return r.db.Set(n)
}

// Get returns the entry for a native alarm id.
func (r *NativeRepo) Get(alarmID string) (*model.NativeAlarm, error) {
	n := &model.NativeAlarm{}
	if err := r.db.Get(model.GenerateNativeKey(alarmID), n); err != nil {
		return nil, err
	}
	return n, nil
}

// Delete removes the entry for a native alarm id.
func (r *NativeRepo) Delete(alarmID string) error {
	return r.db.Delete(model.GenerateNativeKey(alarmID))
}

// List returns every scheduled entry ordered by fire time.
func (r *NativeRepo) List() ([]*model.NativeAlarm, error) {
	entries, err := GetAllByPrefix(r.db, model.PrefixNative+":", func() *model.NativeAlarm {
		return &model.NativeAlarm{}
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].At.Before(entries[j].At)
	})
	return entries, nil
}

// Clear removes every scheduled entry.
func (r *NativeRepo) Clear() (int, error) {
	return r.db.DeleteByPrefix(model.PrefixNative + ":")
}
