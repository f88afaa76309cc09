package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/parser"
	"github.com/manav03panchal/timely/internal/schedule"
)

// Next command flags.
var (
	nextFlagCount  int
	nextFlagFrom   string
	nextFlagTime   string
	nextFlagDays   string
	nextFlagRepeat bool
)

// nextCmd previews upcoming firings.
var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show when alarms ring next",
	Long: `Show the next firings across your active alarms.

With --time the calculation runs for a hypothetical alarm and needs no
login. --from moves the reference instant.

Examples:
  timely next
  timely next -n 10
  timely next --from "friday 9pm"
  timely next --time 07:30 --days weekdays --from "saturday noon"`,
	Args: cobra.NoArgs,
	RunE: runNext,
}

func init() {
	nextCmd.Flags().IntVarP(&nextFlagCount, "count", "n", 5, "Number of firings to show")
	nextCmd.Flags().StringVar(&nextFlagFrom, "from", "", `Reference instant, e.g. "tomorrow 8am" (default now)`)
	nextCmd.Flags().StringVar(&nextFlagTime, "time", "", "Preview a hypothetical alarm at this time")
	nextCmd.Flags().StringVarP(&nextFlagDays, "days", "d", "", "Repeat days of the hypothetical alarm")
	nextCmd.Flags().BoolVar(&nextFlagRepeat, "no-repeat", false, "Treat the hypothetical alarm as one-time")
	_ = nextCmd.RegisterFlagCompletionFunc("days", completeDays)

	rootCmd.AddCommand(nextCmd)
}

// previewAlarm builds the hypothetical alarm described by --time and --days.
func previewAlarm(now time.Time) (model.Alarm, error) {
	clock, err := parser.ParseClock(nextFlagTime, now)
	if err != nil {
		return model.Alarm{}, err
	}
	days, err := model.ParseDaysFlag(nextFlagDays)
	if err != nil {
		return model.Alarm{}, err
	}
	return model.Alarm{
		Title:    "Preview",
		Time:     clock.String(),
		Days:     days,
		NoRepeat: nextFlagRepeat,
		IsActive: true,
	}, nil
}

func runNext(cmd *cobra.Command, args []string) error {
	from, err := parser.ParseInstant(nextFlagFrom, time.Now())
	if err != nil {
		return err
	}

	var list []model.Alarm
	if nextFlagTime != "" {
		a, err := previewAlarm(from)
		if err != nil {
			return err
		}
		list = []model.Alarm{a}
	} else {
		alarms, err := ctx.Alarms()
		if err != nil {
			return err
		}
		list, err = alarms.List(cmd.Context())
		if err != nil {
			return err
		}
		defer printNotices(alarms)
	}

	occ := schedule.Upcoming(list, from, nextFlagCount)
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintUpcoming(occ, from)
	}
	ctx.CLIFormatter().PrintUpcoming(occ, from)
	return nil
}
