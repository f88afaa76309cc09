package model

import "time"

// User is the account a session belongs to.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Session is the persisted login state (singleton).
type Session struct {
	Key          string    `json:"key"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	User         User      `json:"user"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SetKey sets the database key for this session.
func (s *Session) SetKey(key string) {
	s.Key = key
}

// GetKey returns the database key for this session.
func (s *Session) GetKey() string {
	return s.Key
}

// IsLoggedIn reports whether the session holds an access token.
func (s *Session) IsLoggedIn() bool {
	return s != nil && s.AccessToken != ""
}

// NewSession creates a session record.
func NewSession(access, refresh string, user User) *Session {
	return &Session{
		Key:          KeySession,
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user,
		UpdatedAt:    time.Now(),
	}
}

// Device identifies this installation. Generated once and never rotated.
type Device struct {
	Key       string    `json:"key"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SetKey sets the database key for this device record.
func (d *Device) SetKey(key string) {
	d.Key = key
}

// GetKey returns the database key for this device record.
func (d *Device) GetKey() string {
	return d.Key
}

// NewDevice creates the device singleton.
func NewDevice(id string) *Device {
	return &Device{
		Key:       KeyDevice,
		DeviceID:  id,
		CreatedAt: time.Now(),
	}
}
