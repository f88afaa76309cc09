package storage

import (
	"github.com/google/uuid"

	"github.com/manav03panchal/timely/internal/model"
)

// SessionRepo persists the single login session.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Get returns the stored session, or nil when logged out.
func (r *SessionRepo) Get() (*model.Session, error) {
	s := &model.Session{}
	if err := r.db.Get(model.KeySession, s); err != nil {
		if IsErrKeyNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// Save replaces the stored session.
func (r *SessionRepo) Save(s *model.Session) error {
	s.Key = model.KeySession
	return r.db.Set(s)
}

// Clear removes the stored session.
func (r *SessionRepo) Clear() error {
	return r.db.Delete(model.KeySession)
}

// DeviceRepo holds the installation's device identity.
type DeviceRepo struct {
	db *DB
}

// NewDeviceRepo creates a new device repository.
func NewDeviceRepo(db *DB) *DeviceRepo {
	return &DeviceRepo{db: db}
}

// GetOrCreate returns the device id, generating and persisting one on first
// use. The id never changes afterwards.
func (r *DeviceRepo) GetOrCreate() (string, error) {
	d := &model.Device{}
	err := r.db.Get(model.KeyDevice, d)
	if err == nil && d.DeviceID != "" {
		return d.DeviceID, nil
	}
	if err != nil && !IsErrKeyNotFound(err) {
		return "", err
	}
	d = model.NewDevice(uuid.NewString())
	if err := r.db.Set(d); err != nil {
		return "", err
	}
	return d.DeviceID, nil
}
