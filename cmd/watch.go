package cmd

import (
	"context"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/runtime"
	"github.com/manav03panchal/timely/internal/tui"
)

// Watch command flags.
var (
	watchFlagInterval time.Duration
	watchFlagLimit    int
)

// watchCmd shows a live view of the alarm list.
var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w", "dash"},
	Short:   "Live view of your alarms and the next one to ring",
	Long: `Open a full-screen view of your alarms, refreshed as they change.

Keys: r reload, s sync, q quit.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchFlagInterval, "interval", 5*time.Second, "Refresh interval while a daemon serves the alarms")
	watchCmd.Flags().IntVar(&watchFlagLimit, "limit", 10, "Alarms shown at once")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ctx.IsJSON() || !isatty.IsTerminal(os.Stdout.Fd()) {
		return timelyerrors.NewUserError("watch needs an interactive terminal", "Use 'timely alarms list' in scripts.")
	}

	alarms, err := ctx.Alarms()
	if err != nil {
		return err
	}

	cfg := tui.WatchConfig{
		Source:       alarms,
		PollInterval: watchFlagInterval,
		MaxAlarms:    watchFlagLimit,
	}

	// The in-process engine publishes every store change; a daemon is polled.
	if local, ok := alarms.(*runtime.Local); ok {
		if _, err := local.List(cmd.Context()); err != nil {
			return err
		}
		subCtx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		cfg.Updates = local.Service.Store().Subscribe(subCtx)
	}

	return tui.Run(cfg)
}
