package daemon

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/adrg/xdg"

	"github.com/manav03panchal/timely/internal/logging"
)

const (
	launchdLabel = "dev.timely.daemon"
	systemdUnit  = "timely.service"
)

// ServiceManager installs the daemon as a per-user system service.
type ServiceManager struct {
	unit unitData
	goos string
	home string
	run  func(name string, args ...string) ([]byte, error)
}

type unitData struct {
	ExecutablePath string
	ConfigFile     string
	LogPath        string
	HomeDirectory  string
	DataHome       string
	StateHome      string
	Label          string
}

// NewServiceManager creates a service manager for the running executable.
// configFile is passed to the service with --config when set.
func NewServiceManager(configFile string) (*ServiceManager, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}
	home, _ := os.UserHomeDir()
	return &ServiceManager{
		unit: unitData{
			ExecutablePath: execPath,
			ConfigFile:     configFile,
			LogPath:        GetLogPath(),
			HomeDirectory:  home,
			DataHome:       xdg.DataHome,
			StateHome:      xdg.StateHome,
			Label:          launchdLabel,
		},
		goos: runtime.GOOS,
		home: home,
		run: func(name string, args ...string) ([]byte, error) {
			return exec.Command(name, args...).CombinedOutput()
		},
	}, nil
}

// Path returns where the service definition lives on this platform.
func (m *ServiceManager) Path() (string, error) {
	switch m.goos {
	case "darwin":
		return filepath.Join(m.home, "Library", "LaunchAgents", launchdLabel+".plist"), nil
	case "linux":
		return filepath.Join(xdg.ConfigHome, "systemd", "user", systemdUnit), nil
	default:
		return "", fmt.Errorf("service installation not supported on %s", m.goos)
	}
}

// Install writes the service definition and starts it.
func (m *ServiceManager) Install() error {
	path, err := m.Path()
	if err != nil {
		return err
	}
	content, err := m.render()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create service directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}

	var steps [][]string
	if m.goos == "darwin" {
		steps = [][]string{{"launchctl", "load", path}}
	} else {
		steps = [][]string{
			{"systemctl", "--user", "daemon-reload"},
			{"systemctl", "--user", "enable", systemdUnit},
			{"systemctl", "--user", "start", systemdUnit},
		}
	}
	for _, step := range steps {
		if out, err := m.run(step[0], step[1:]...); err != nil {
			return fmt.Errorf("%s failed: %w: %s", step[0], err, out)
		}
	}
	logging.DebugLog("installed service", "path", path)
	return nil
}

// Uninstall stops the service and removes its definition.
func (m *ServiceManager) Uninstall() error {
	path, err := m.Path()
	if err != nil {
		return err
	}

	// Stop and disable failures mean it was not loaded.
	if m.goos == "darwin" {
		_, _ = m.run("launchctl", "unload", path)
	} else {
		_, _ = m.run("systemctl", "--user", "stop", systemdUnit)
		_, _ = m.run("systemctl", "--user", "disable", systemdUnit)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove service file: %w", err)
	}
	if m.goos != "darwin" {
		_, _ = m.run("systemctl", "--user", "daemon-reload")
	}
	logging.DebugLog("uninstalled service", "path", path)
	return nil
}

// IsInstalled checks if the service definition exists.
func (m *ServiceManager) IsInstalled() bool {
	path, err := m.Path()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (m *ServiceManager) render() ([]byte, error) {
	text := systemdTemplate
	if m.goos == "darwin" {
		text = launchdTemplate
	}
	tmpl, err := template.New("service").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, m.unit); err != nil {
		return nil, fmt.Errorf("failed to render service template: %w", err)
	}
	return buf.Bytes(), nil
}

const launchdTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
        <string>daemon</string>
        <string>run</string>{{if .ConfigFile}}
        <string>--config</string>
        <string>{{.ConfigFile}}</string>{{end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <true/>
    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>
    <key>StandardErrorPath</key>
    <string>{{.LogPath}}</string>
</dict>
</plist>
`

const systemdTemplate = `[Unit]
Description=Timely alarm daemon
After=network-online.target

[Service]
Type=simple
ExecStart={{.ExecutablePath}} daemon run{{if .ConfigFile}} --config {{.ConfigFile}}{{end}}
Restart=on-failure
RestartSec=5
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.LogPath}}
Environment="HOME={{.HomeDirectory}}"
Environment="XDG_DATA_HOME={{.DataHome}}"
Environment="XDG_STATE_HOME={{.StateHome}}"

[Install]
WantedBy=default.target
`
