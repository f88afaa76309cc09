package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettingsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `api_url: https://alarms.example.com/api/
database: /tmp/timely-test-db
listen_addr: 127.0.0.1:9310
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "https://alarms.example.com/api", s.APIURL)
	assert.Equal(t, "wss://alarms.example.com/ws", s.SocketURL)
	assert.Equal(t, "/tmp/timely-test-db", s.Database)
	assert.Equal(t, "127.0.0.1:9310", s.ListenAddr)
	assert.Equal(t, DefaultLogLevel, s.LogLevel)
	assert.Equal(t, path, s.File)
}

func TestLoadSettingsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_url: http://file.example/api\n"), 0o644))

	t.Setenv("TIMELY_API_URL", "http://env.example:8080/api")
	t.Setenv("TIMELY_SOCKET_URL", "ws://sockets.example/live")

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env.example:8080/api", s.APIURL)
	assert.Equal(t, "ws://sockets.example/live", s.SocketURL)
}

func TestLoadSettingsMissingExplicitFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDeriveSocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://localhost:3000/api", "ws://localhost:3000/ws", false},
		{"https://alarms.example.com/api?x=1", "wss://alarms.example.com/ws", false},
		{"not a url", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := DeriveSocketURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultAPIURL, s.APIURL)

	// An existing file is left alone.
	require.NoError(t, os.WriteFile(path, []byte("api_url: http://kept.example/api\n"), 0o644))
	require.NoError(t, WriteDefault(path))
	s, err = LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "http://kept.example/api", s.APIURL)
}

func TestSetValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: /tmp/timely-db\n"), 0o644))

	require.NoError(t, SetValue(path, "api_url", "https://alarms.example/api"))

	s, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "https://alarms.example/api", s.APIURL)
	assert.Equal(t, "wss://alarms.example/ws", s.SocketURL)
	assert.Equal(t, "/tmp/timely-db", s.Database, "other keys are kept")

	t.Run("creates_missing_file", func(t *testing.T) {
		fresh := filepath.Join(t.TempDir(), "a", "config.yaml")
		require.NoError(t, SetValue(fresh, "listen_addr", "127.0.0.1:9000"))
		s, err := LoadSettings(fresh)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9000", s.ListenAddr)
	})

	t.Run("rejects_unknown_key", func(t *testing.T) {
		assert.Error(t, SetValue(path, "colour", "blue"))
	})

	t.Run("rejects_bad_api_url", func(t *testing.T) {
		assert.Error(t, SetValue(path, "api_url", "not a url"))
	})

	t.Run("log_level", func(t *testing.T) {
		assert.Error(t, SetValue(path, "log_level", "chatty"))
		require.NoError(t, SetValue(path, "log_level", "debug"))
		s, err := LoadSettings(path)
		require.NoError(t, err)
		assert.Equal(t, "debug", s.LogLevel)
	})
}
