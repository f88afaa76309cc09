package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/timely/internal/daemon"
	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/notify"
	"github.com/manav03panchal/timely/internal/storage"
)

// Daemon command flags.
var (
	daemonStartFlagForeground bool
	daemonLogsFlagTail        int
	daemonLogsFlagFollow      bool
	daemonInstallFlagForce    bool
)

// daemonCmd represents the daemon command.
var daemonCmd = &cobra.Command{
	Use:     "daemon [command]",
	Aliases: []string{"d", "service"},
	Short:   "Manage the background alarm daemon",
	Long: `Manage the timely daemon. The daemon keeps the realtime connection to
the server open, rings alarms on time and posts to your webhooks when
one rings. While it runs, other commands talk to it instead of the
database.

Examples:
  timely daemon start
  timely daemon status
  timely daemon stop
  timely daemon logs --tail 20`,
	RunE: runDaemonStatus,
}

var daemonRunCmd = &cobra.Command{
	Use:    "run",
	Short:  "Run the daemon in the foreground",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runDaemonForeground,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	Long: `Start the timely daemon.

Examples:
  timely daemon start               # Start in background
  timely daemon start --foreground  # Stay attached (for debugging)`,
	Args: cobra.NoArgs,
	RunE: runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStop,
}

var daemonReloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Make the daemon fetch all alarms again",
	Long: `Send SIGHUP to the daemon. It fetches the alarm list from the server
and reschedules every alarm on this device.`,
	Args: cobra.NoArgs,
	RunE: runDaemonReload,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Args:  cobra.NoArgs,
	RunE:  runDaemonStatus,
}

var daemonLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View daemon logs",
	Long: `View the daemon log file.

Examples:
  timely daemon logs
  timely daemon logs --tail 50
  timely daemon logs --follow`,
	Args: cobra.NoArgs,
	RunE: runDaemonLogs,
}

var daemonInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the daemon as a per-user system service",
	Long: `Install the timely daemon as a service that starts on login.

On macOS this creates a launchd agent in ~/Library/LaunchAgents.
On Linux this creates a systemd user unit in ~/.config/systemd/user.`,
	Args: cobra.NoArgs,
	RunE: runDaemonInstall,
}

var daemonUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the daemon system service",
	Args:  cobra.NoArgs,
	RunE:  runDaemonUninstall,
}

func init() {
	daemonStartCmd.Flags().BoolVar(&daemonStartFlagForeground, "foreground", false,
		"Run in foreground (don't daemonize)")

	daemonLogsCmd.Flags().IntVarP(&daemonLogsFlagTail, "tail", "n", 20,
		"Number of lines to show")
	daemonLogsCmd.Flags().BoolVar(&daemonLogsFlagFollow, "follow", false,
		"Follow log output (like tail -f)")

	daemonInstallCmd.Flags().BoolVar(&daemonInstallFlagForce, "force", false,
		"Force reinstall if already installed")

	daemonCmd.AddCommand(daemonRunCmd)
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonReloadCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonLogsCmd)
	daemonCmd.AddCommand(daemonInstallCmd)
	daemonCmd.AddCommand(daemonUninstallCmd)

	rootCmd.AddCommand(daemonCmd)
}

// runDaemonForeground runs the engine until interrupted. Output goes to
// stderr, which a background start points at the log file.
func runDaemonForeground(cmd *cobra.Command, args []string) error {
	if !flagDebug {
		cfg, err := logging.DaemonConfig(ctx.Settings.LogLevel)
		if err != nil {
			return timelyerrors.NewUserErrorWithField(err, "log_level", ctx.Settings.LogLevel, "invalid log level",
				"Fix it with 'timely config set log_level info'.")
		}
		logging.Init(cfg)
	}
	d := ctx.Daemon()
	return d.Run(cmd.Context())
}

// warnWithoutWebhooks points out that a ringing alarm will notify nobody.
// It opens the database briefly; the daemon needs it free to start.
func warnWithoutWebhooks() {
	if ctx.IsJSON() {
		return
	}
	db, err := ctx.DB()
	if err != nil {
		return
	}
	count := notify.NewDispatcher(storage.NewWebhookRepo(db)).CountEnabledWebhooks()
	_ = ctx.Close()
	if count == 0 {
		ctx.CLIFormatter().Muted("No webhooks configured; rings stay on this device. Add one with: timely webhook add")
	}
}

func runDaemonStart(cmd *cobra.Command, args []string) error {
	d := ctx.Daemon()
	if d.IsRunning() {
		status := d.GetStatus()
		if ctx.IsJSON() {
			return ctx.JSONFormatter().JSON(map[string]any{"status": "already_running", "pid": status.PID})
		}
		return fmt.Errorf("daemon is already running (PID: %d)", status.PID)
	}

	warnWithoutWebhooks()

	if daemonStartFlagForeground {
		if !ctx.IsJSON() {
			ctx.Formatter.Println("Starting timely daemon (foreground mode)...")
		}
		return runDaemonForeground(cmd, args)
	}

	var extra []string
	if ctx.Settings.File != "" {
		extra = append(extra, "--config", ctx.Settings.File)
	}
	pid, err := d.StartBackground(extra...)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(map[string]any{"status": "started", "pid": pid, "listen_addr": ctx.Settings.ListenAddr})
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Daemon started (PID: %d)", pid))
	if ctx.Settings.ListenAddr != "" {
		ctx.CLIFormatter().Muted("Control API on " + ctx.Settings.ListenAddr)
	}
	return nil
}

func runDaemonStop(cmd *cobra.Command, args []string) error {
	d := ctx.Daemon()
	status := d.GetStatus()
	if !status.Running {
		if ctx.IsJSON() {
			return ctx.JSONFormatter().PrintStatus("not_running", "")
		}
		ctx.Formatter.Println("Daemon is not running")
		return nil
	}

	if err := d.Stop(); err != nil && !errors.Is(err, daemon.ErrNotRunning) {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(map[string]any{"status": "stopped", "pid": status.PID})
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Daemon stopped (was PID: %d)", status.PID))
	return nil
}

func runDaemonReload(cmd *cobra.Command, args []string) error {
	if err := ctx.Daemon().Reload(); err != nil {
		if errors.Is(err, daemon.ErrNotRunning) {
			return timelyerrors.NewUserError("daemon is not running", "Start it with 'timely daemon start'.")
		}
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintStatus("reloading", "")
	}
	ctx.CLIFormatter().Success("Reload requested")
	return nil
}

func runDaemonStatus(cmd *cobra.Command, args []string) error {
	status := ctx.Daemon().GetStatus()
	installed := false
	if mgr, err := daemon.NewServiceManager(ctx.Settings.File); err == nil {
		installed = mgr.IsInstalled()
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(map[string]any{
			"daemon":    status,
			"installed": installed,
			"log":       daemon.GetLogPath(),
		})
	}

	cli := ctx.CLIFormatter()
	cli.Title("timely daemon")
	if status.Running {
		cli.Printf("  Status:    running\n")
		cli.Printf("  PID:       %d\n", status.PID)
		cli.Printf("  Uptime:    %s\n", status.Uptime)
		if status.Addr != "" {
			cli.Printf("  Listening: %s\n", status.Addr)
		}
	} else {
		cli.Printf("  Status:    stopped\n")
	}
	cli.Printf("  Service:   %s\n", map[bool]string{true: "installed", false: "not installed"}[installed])
	cli.Printf("  Log:       %s\n", daemon.GetLogPath())
	if !status.Running {
		cli.Println()
		cli.Muted("Start with: timely daemon start")
	}
	return nil
}

func runDaemonLogs(cmd *cobra.Command, args []string) error {
	logPath := daemon.GetLogPath()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		ctx.Formatter.Println("No log file found.")
		ctx.Formatter.Printf("Log path: %s\n", logPath)
		return nil
	}

	lines, err := tailFile(logPath, daemonLogsFlagTail)
	if err != nil {
		return err
	}
	for _, line := range lines {
		ctx.Formatter.Println(line)
	}

	if daemonLogsFlagFollow {
		return followLogs(cmd.Context(), logPath, ctx.Formatter.Writer)
	}
	return nil
}

// tailFile reads the last n lines from a file.
func tailFile(path string, n int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// followLogs copies lines appended to path to w until c ends.
func followLogs(c context.Context, path string, w io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		for {
			line, err := reader.ReadString('\n')
			if len(line) > 0 {
				fmt.Fprint(w, line)
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return err
			}
		}
		select {
		case <-c.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runDaemonInstall(cmd *cobra.Command, args []string) error {
	mgr, err := daemon.NewServiceManager(ctx.Settings.File)
	if err != nil {
		return err
	}

	if mgr.IsInstalled() && !daemonInstallFlagForce {
		if ctx.IsJSON() {
			return ctx.JSONFormatter().PrintStatus("already_installed", "")
		}
		ctx.Formatter.Println("Service is already installed.")
		ctx.Formatter.Println("Use --force to reinstall.")
		return nil
	}

	if mgr.IsInstalled() {
		if err := mgr.Uninstall(); err != nil {
			return fmt.Errorf("failed to remove existing service: %w", err)
		}
	}

	// The service takes over the database, so a manually started daemon
	// has to go first.
	if d := ctx.Daemon(); d.IsRunning() {
		if err := d.Stop(); err != nil {
			return err
		}
	}

	if err := mgr.Install(); err != nil {
		return err
	}

	path, _ := mgr.Path()
	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(map[string]any{"status": "installed", "path": path})
	}
	cli := ctx.CLIFormatter()
	cli.Success("✓ Service installed")
	cli.Muted("  " + path)
	ctx.Formatter.Println("")
	ctx.Formatter.Println("The daemon now starts automatically when you log in.")
	ctx.Formatter.Println("To remove: timely daemon uninstall")
	return nil
}

func runDaemonUninstall(cmd *cobra.Command, args []string) error {
	mgr, err := daemon.NewServiceManager(ctx.Settings.File)
	if err != nil {
		return err
	}

	if !mgr.IsInstalled() {
		if ctx.IsJSON() {
			return ctx.JSONFormatter().PrintStatus("not_installed", "")
		}
		ctx.Formatter.Println("Service is not installed.")
		return nil
	}

	if err := mgr.Uninstall(); err != nil {
		return err
	}

	// Uninstall stops the service; a manually started daemon keeps running.
	if d := ctx.Daemon(); d.IsRunning() {
		ctx.Debugf("daemon still running after uninstall; stopping it")
		if err := d.Stop(); err != nil {
			ctx.Debugf("failed to stop daemon: %v", err)
		}
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintStatus("uninstalled", "")
	}
	ctx.CLIFormatter().Success("✓ Service uninstalled")
	ctx.Formatter.Println("The daemon will no longer start automatically.")
	return nil
}
