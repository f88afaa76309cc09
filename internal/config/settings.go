package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/manav03panchal/timely/internal/logging"
)

const appName = "timely"

// Default settings values.
const (
	DefaultAPIURL     = "http://localhost:3000/api"
	DefaultListenAddr = "127.0.0.1:7787"
	DefaultLogLevel   = "info"
)

// Settings is the user-facing configuration loaded from the settings file
// and TIMELY_* environment variables.
type Settings struct {
	APIURL      string `mapstructure:"api_url" json:"api_url"`
	SocketURL   string `mapstructure:"socket_url" json:"socket_url"`
	Database    string `mapstructure:"database" json:"database"`
	ListenAddr  string `mapstructure:"listen_addr" json:"listen_addr,omitempty"`
	// LogLevel is the daemon's log threshold: debug, info, warn or error.
	LogLevel string `mapstructure:"log_level" json:"log_level,omitempty"`

	// File is the settings file that was read, empty when none was found.
	File string `mapstructure:"-" json:"file,omitempty"`
}

// DefaultConfigFile returns the settings file path under XDG_CONFIG_HOME.
func DefaultConfigFile() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// DefaultDatabasePath returns the badger directory under XDG_DATA_HOME.
func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, appName, "db")
}

// DefaultStateDir returns the directory for daemon logs.
func DefaultStateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// LoadSettings reads settings from cfgFile, or from the default location
// when cfgFile is empty. A missing default file is not an error.
func LoadSettings(cfgFile string) (*Settings, error) {
	v := viper.New()
	v.SetDefault("api_url", DefaultAPIURL)
	v.SetDefault("socket_url", "")
	v.SetDefault("database", DefaultDatabasePath())
	v.SetDefault("listen_addr", DefaultListenAddr)
	v.SetDefault("log_level", DefaultLogLevel)

	v.SetEnvPrefix("TIMELY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, appName))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	s.File = v.ConfigFileUsed()
	s.APIURL = strings.TrimRight(s.APIURL, "/")
	if s.SocketURL == "" {
		derived, err := DeriveSocketURL(s.APIURL)
		if err != nil {
			return nil, err
		}
		s.SocketURL = derived
	}
	return &s, nil
}

// DeriveSocketURL maps an API base URL to the realtime endpoint on the same
// origin: http(s)://host/api becomes ws(s)://host/ws.
func DeriveSocketURL(apiURL string) (string, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid api_url %q", apiURL)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// WriteDefault writes a settings file with the default values if none exists.
func WriteDefault(path string) error {
	if path == "" {
		path = DefaultConfigFile()
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	v := viper.New()
	v.Set("api_url", DefaultAPIURL)
	v.Set("database", DefaultDatabasePath())
	v.Set("listen_addr", DefaultListenAddr)
	v.Set("log_level", DefaultLogLevel)
	return v.WriteConfigAs(path)
}

// SettingKeys lists the keys SetValue accepts.
var SettingKeys = []string{"api_url", "socket_url", "database", "listen_addr", "log_level"}

// SetValue writes key=value into the settings file at path, keeping the
// other values. The file is created when missing.
func SetValue(path, key, value string) error {
	if path == "" {
		path = DefaultConfigFile()
	}
	known := false
	for _, k := range SettingKeys {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown setting %q (valid: %s)", key, strings.Join(SettingKeys, ", "))
	}
	switch key {
	case "api_url":
		if _, err := DeriveSocketURL(value); err != nil {
			return err
		}
	case "log_level":
		if _, err := logging.ParseLevel(value); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read settings: %w", err)
		}
	}
	v.Set(key, value)
	return v.WriteConfigAs(path)
}
