// Package cmd provides the CLI commands for timely.
//
// This software is a derivative work based on Zeit (https://github.com/mrusme/zeit)
// Original work copyright (c) マリウス (mrusme)
// Modifications copyright (c) Manav Panchal
//
// Licensed under the SEGV License, Version 1.0
// See LICENSE file for full license text.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/logging"
	"github.com/manav03panchal/timely/internal/output"
	"github.com/manav03panchal/timely/internal/runtime"
	"github.com/manav03panchal/timely/internal/schedule"
)

// Version information (set at build time via ldflags).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Global flags.
var (
	flagFormat string
	flagColor  string
	flagDebug  bool
	flagConfig string
)

// ctx is the shared runtime context.
var ctx *runtime.Context

// annotationNoSettings marks commands that must work while the settings
// file is missing or broken.
const annotationNoSettings = "timely/no-settings"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "timely",
	Short: "Alarms that stay in step across your devices",
	Long: `timely manages your alarms on the server and keeps this device's
alarm schedule in step with them.

Examples:
  timely login
  timely alarms add 07:00 --title Wake --days weekdays
  timely alarms list
  timely next -n 5
  timely daemon start`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for completion and help commands
		if cmd.Name() == "completion" || cmd.Name() == "help" {
			return nil
		}
		initLogging()
		if cmd.Annotations[annotationNoSettings] != "" {
			return nil
		}
		return initContext()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if ctx != nil {
			return ctx.Close()
		}
		return nil
	},
	RunE: runStatus,
}

// initLogging configures the global logger from --debug.
func initLogging() {
	if flagDebug {
		logging.InitDebug()
		return
	}
	logging.Init(logging.DefaultConfig())
}

// initContext builds the runtime context from the global flags.
func initContext() error {
	if ctx != nil {
		return nil
	}
	opts := runtime.DefaultOptions()
	opts.ConfigFile = flagConfig
	opts.Format = output.ParseFormat(flagFormat)
	opts.ColorMode = output.ParseColorMode(flagColor)
	opts.Debug = flagDebug
	opts.Version = Version

	var err error
	ctx, err = runtime.New(opts)
	return err
}

// runStatus shows who is logged in, the daemon state and the next alarm.
func runStatus(cmd *cobra.Command, args []string) error {
	account, err := ctx.Account()
	if err != nil {
		return err
	}
	user, loggedIn, err := account.Whoami(cmd.Context())
	if err != nil {
		return err
	}
	daemonStatus := ctx.Daemon().GetStatus()

	if !loggedIn {
		if ctx.IsJSON() {
			return ctx.JSONFormatter().JSON(map[string]any{
				"authenticated": false,
				"daemon":        daemonStatus,
			})
		}
		ctx.CLIFormatter().Muted("Not logged in. Run 'timely login' to get started.")
		return nil
	}

	alarms, err := ctx.Alarms()
	if err != nil {
		return err
	}
	list, err := alarms.List(cmd.Context())
	if err != nil {
		return err
	}
	now := time.Now()
	next := schedule.Upcoming(list, now, 1)

	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(map[string]any{
			"authenticated": true,
			"user":          user,
			"daemon":        daemonStatus,
			"alarms":        len(list),
			"next":          output.NewUpcomingResponse(next, now).Upcoming,
		})
	}

	cli := ctx.CLIFormatter()
	cli.Title("timely")
	cli.Printf("  User:    %s\n", user.Username)
	if daemonStatus.Running {
		cli.Printf("  Daemon:  running (PID %d)\n", daemonStatus.PID)
	} else {
		cli.Printf("  Daemon:  stopped\n")
	}
	cli.Printf("  Alarms:  %d\n", len(list))
	cli.Println()
	cli.PrintUpcoming(next, now)
	printNotices(alarms)
	return nil
}

// Execute runs the root command. Errors are printed here, in the
// selected output format, so main only has to set the exit code.
func Execute() error {
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(sigCtx)
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "format", "f", "cli",
		"Output format: cli, json, plain")
	rootCmd.PersistentFlags().StringVar(&flagColor, "color", "auto",
		"Color output: auto, always, never")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false,
		"Enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"Settings file (default $XDG_CONFIG_HOME/timely/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("timely %s\n", Version)
		cmd.Printf("  commit: %s\n", Commit)
		cmd.Printf("  built: %s\n", BuildTime)
	},
}

// printError reports err on stderr, or as a JSON error object on stdout
// when --format json is active.
func printError(err error) {
	if ctx != nil && ctx.IsJSON() {
		_ = ctx.JSONFormatter().PrintError(err)
		return
	}
	fmt.Fprintln(os.Stderr, "Error: "+timelyerrors.Format(err))
}

// Die prints an error and exits.
func Die(err error) {
	printError(err)
	os.Exit(1)
}
