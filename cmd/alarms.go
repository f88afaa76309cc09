package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/parser"
	"github.com/manav03panchal/timely/internal/reconcile"
	"github.com/manav03panchal/timely/internal/runtime"
	"github.com/manav03panchal/timely/internal/validate"
)

// Alarm command flags.
var (
	alarmFlagTitle          string
	alarmFlagTime           string
	alarmFlagDays           string
	alarmFlagAt             string
	alarmFlagOff            bool
	alarmFlagSound          string
	alarmFlagVolume         int
	alarmFlagVibrate        bool
	alarmFlagSnoozeInterval int
	alarmFlagSnoozeCount    int
	alarmDeleteFlagForce    bool
)

// alarmsCmd represents the alarms command.
var alarmsCmd = &cobra.Command{
	Use:     "alarms [command]",
	Aliases: []string{"alarm", "a"},
	Short:   "Manage alarms",
	Long: `Create, change and remove alarms. Every change goes to the server
first; this device's alarm schedule follows.

Examples:
  timely alarms add 07:00 --title Wake --days weekdays
  timely alarms add --at "tomorrow 6:30am" --title Flight
  timely alarms update 12 --time 07:15
  timely alarms toggle 12 off
  timely alarms delete 12`,
	RunE: runAlarmsList,
}

var alarmsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List alarms with their sync status",
	RunE:    runAlarmsList,
}

var alarmsGetCmd = &cobra.Command{
	Use:               "get ID",
	Aliases:           []string{"show"},
	Short:             "Show one alarm, fetched fresh from the server",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAlarmIDs,
	RunE:              runAlarmsGet,
}

var alarmsAddCmd = &cobra.Command{
	Use:   "add [TIME]",
	Short: "Create an alarm",
	Long: `Create an alarm at TIME (24-hour HH:MM, or a time like 7:30am).

Without --days the alarm rings once. --at takes a natural language
instant within the next day instead of TIME.

Examples:
  timely alarms add 07:00 --title Wake --days weekdays
  timely alarms add 6:45am --days mon,wed,fri
  timely alarms add --at "in 20 minutes" --title Tea`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAlarmsAdd,
}

var alarmsUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Change fields of an alarm",
	Long: `Change fields of an alarm. Only the flags given are sent.

Examples:
  timely alarms update 12 --time 07:15
  timely alarms update 12 --days daily --title "Every day"`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAlarmIDs,
	RunE:              runAlarmsUpdate,
}

var alarmsDeleteCmd = &cobra.Command{
	Use:               "delete ID",
	Aliases:           []string{"rm", "remove"},
	Short:             "Delete an alarm",
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeAlarmIDs,
	RunE:              runAlarmsDelete,
}

var alarmsToggleCmd = &cobra.Command{
	Use:       "toggle ID [on|off]",
	Short:     "Turn an alarm on or off",
	Long:      `Turn an alarm on or off. Without on/off the current state is flipped.`,
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"on", "off"},
	RunE:      runAlarmsToggle,
}

var alarmsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push the local alarm list to the server and reschedule from the answer",
	RunE:  runAlarmsSync,
}

func init() {
	addFlags := alarmsAddCmd.Flags()
	addFlags.StringVarP(&alarmFlagTitle, "title", "t", "", "Alarm title")
	addFlags.StringVarP(&alarmFlagDays, "days", "d", "", "Repeat days: mon,wed | 1,3 | weekdays | weekends | daily | once")
	addFlags.StringVar(&alarmFlagAt, "at", "", `Natural language instant, e.g. "tomorrow 6am"`)
	addFlags.BoolVar(&alarmFlagOff, "off", false, "Create the alarm switched off")
	registerRingFlags(alarmsAddCmd)

	updateFlags := alarmsUpdateCmd.Flags()
	updateFlags.StringVarP(&alarmFlagTitle, "title", "t", "", "New title")
	updateFlags.StringVar(&alarmFlagTime, "time", "", "New time (HH:MM or 7:30am)")
	updateFlags.StringVarP(&alarmFlagDays, "days", "d", "", "New repeat days")
	registerRingFlags(alarmsUpdateCmd)

	_ = alarmsAddCmd.RegisterFlagCompletionFunc("days", completeDays)
	_ = alarmsUpdateCmd.RegisterFlagCompletionFunc("days", completeDays)

	alarmsDeleteCmd.Flags().BoolVar(&alarmDeleteFlagForce, "force", false, "Skip confirmation")

	alarmsToggleCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return completeAlarmIDs(cmd, args, toComplete)
		}
		return []string{"on", "off"}, cobra.ShellCompDirectiveNoFileComp
	}

	alarmsCmd.AddCommand(alarmsListCmd)
	alarmsCmd.AddCommand(alarmsGetCmd)
	alarmsCmd.AddCommand(alarmsAddCmd)
	alarmsCmd.AddCommand(alarmsUpdateCmd)
	alarmsCmd.AddCommand(alarmsDeleteCmd)
	alarmsCmd.AddCommand(alarmsToggleCmd)
	alarmsCmd.AddCommand(alarmsSyncCmd)

	rootCmd.AddCommand(alarmsCmd)
}

func registerRingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&alarmFlagSound, "sound", "", "Ring sound")
	f.IntVar(&alarmFlagVolume, "volume", 0, "Ring volume (0-100)")
	f.BoolVar(&alarmFlagVibrate, "vibrate", false, "Vibrate while ringing")
	f.IntVar(&alarmFlagSnoozeInterval, "snooze-interval", 0, "Snooze length in minutes")
	f.IntVar(&alarmFlagSnoozeCount, "snooze-count", 0, "How many snoozes are allowed")
}

// parseAlarmID parses an alarm id argument.
func parseAlarmID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, timelyerrors.NewUserErrorWithField(nil, "id", s, "invalid alarm id",
			"Use the numeric id shown by 'timely alarms list'.")
	}
	return id, nil
}

// printNotices shows what the in-process engine reported while the command
// ran. A daemon logs its notices instead.
func printNotices(a runtime.Alarms) {
	local, ok := a.(*runtime.Local)
	if !ok || ctx.IsJSON() {
		return
	}
	cli := ctx.CLIFormatter()
	for _, n := range local.Notices() {
		switch n.Level {
		case reconcile.NoticeError, reconcile.NoticeWarning:
			cli.Warning(n.Message)
		default:
			cli.Muted(n.Message)
		}
	}
}

func runAlarmsList(cmd *cobra.Command, args []string) error {
	alarms, err := ctx.Alarms()
	if err != nil {
		return err
	}
	list, err := alarms.List(cmd.Context())
	if err != nil {
		return err
	}

	now := time.Now()
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintAlarms(list, now)
	}
	ctx.CLIFormatter().PrintAlarms(list, now)
	printNotices(alarms)
	return nil
}

func runAlarmsGet(cmd *cobra.Command, args []string) error {
	id, err := parseAlarmID(args[0])
	if err != nil {
		return err
	}
	alarms, err := ctx.Alarms()
	if err != nil {
		return err
	}
	a, err := alarms.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	now := time.Now()
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintAlarm("ok", a, now)
	}
	ctx.CLIFormatter().PrintAlarm(a, now)
	printNotices(alarms)
	return nil
}

// addInput builds the create body from the add arguments and flags.
func addInput(cmd *cobra.Command, args []string, now time.Time) (model.AlarmInput, error) {
	var clock model.Clock
	switch {
	case alarmFlagAt != "" && len(args) > 0:
		return model.AlarmInput{}, timelyerrors.NewUserError("give either TIME or --at, not both", "")
	case alarmFlagAt != "":
		at, err := parser.ParseInstant(alarmFlagAt, now)
		if err != nil {
			return model.AlarmInput{}, err
		}
		if !at.After(now) || at.Sub(now) > 24*time.Hour {
			return model.AlarmInput{}, timelyerrors.NewUserErrorWithField(timelyerrors.ErrInvalidTime, "at", alarmFlagAt,
				"a one-time alarm must ring within the next 24 hours",
				"Use TIME with --days for a repeating alarm.")
		}
		clock = model.ClockOf(at)
	case len(args) == 1:
		c, err := parser.ParseClock(args[0], now)
		if err != nil {
			return model.AlarmInput{}, err
		}
		clock = c
	default:
		return model.AlarmInput{}, timelyerrors.NewUserError("alarm time required", "Pass TIME (07:30) or --at.")
	}

	days, err := model.ParseDaysFlag(alarmFlagDays)
	if err != nil {
		return model.AlarmInput{}, err
	}
	if alarmFlagAt != "" && len(days) > 0 {
		return model.AlarmInput{}, timelyerrors.NewUserError("--at creates a one-time alarm and cannot be combined with --days", "")
	}

	title, err := validate.Title(alarmFlagTitle)
	if err != nil {
		return model.AlarmInput{}, err
	}
	if err := validate.Sound(alarmFlagSound); err != nil {
		return model.AlarmInput{}, err
	}

	in := model.AlarmInput{
		Title:    title,
		Time:     clock.String(),
		Days:     days,
		IsActive: !alarmFlagOff,
		Sound:    alarmFlagSound,
	}
	f := cmd.Flags()
	if f.Changed("volume") {
		in.Volume = model.Ptr(alarmFlagVolume)
	}
	if f.Changed("vibrate") {
		in.Vibration = model.Ptr(alarmFlagVibrate)
	}
	if f.Changed("snooze-interval") {
		in.SnoozeInterval = model.Ptr(alarmFlagSnoozeInterval)
	}
	if f.Changed("snooze-count") {
		in.SnoozeCount = model.Ptr(alarmFlagSnoozeCount)
	}
	return in, nil
}

func runAlarmsAdd(cmd *cobra.Command, args []string) error {
	now := time.Now()
	in, err := addInput(cmd, args, now)
	if err != nil {
		return err
	}
	alarms, err := ctx.Alarms()
	if err != nil {
		return err
	}
	a, err := alarms.Create(cmd.Context(), in)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintAlarm("created", a, now)
	}
	cli := ctx.CLIFormatter()
	cli.Success("Created alarm " + a.Label())
	cli.PrintAlarm(a, now)
	printNotices(alarms)
	return nil
}

// updatePatch builds the update body from the flags that were set.
func updatePatch(cmd *cobra.Command, now time.Time) (model.AlarmPatch, error) {
	var patch model.AlarmPatch
	f := cmd.Flags()
	if f.Changed("title") {
		title, err := validate.Title(alarmFlagTitle)
		if err != nil {
			return patch, err
		}
		patch.Title = model.Ptr(title)
	}
	if f.Changed("time") {
		clock, err := parser.ParseClock(alarmFlagTime, now)
		if err != nil {
			return patch, err
		}
		patch.Time = model.Ptr(clock.String())
	}
	if f.Changed("days") {
		days, err := model.ParseDaysFlag(alarmFlagDays)
		if err != nil {
			return patch, err
		}
		patch.Days = &days
		patch.NoRepeat = model.Ptr(len(days) == 0)
	}
	if f.Changed("sound") {
		if err := validate.Sound(alarmFlagSound); err != nil {
			return patch, err
		}
		patch.Sound = model.Ptr(alarmFlagSound)
	}
	if f.Changed("volume") {
		patch.Volume = model.Ptr(alarmFlagVolume)
	}
	if f.Changed("vibrate") {
		patch.Vibration = model.Ptr(alarmFlagVibrate)
	}
	if f.Changed("snooze-interval") {
		patch.SnoozeInterval = model.Ptr(alarmFlagSnoozeInterval)
	}
	if f.Changed("snooze-count") {
		patch.SnoozeCount = model.Ptr(alarmFlagSnoozeCount)
	}
	if patch.IsEmpty() {
		return patch, timelyerrors.NewUserError("nothing to update", "Pass at least one of --title, --time, --days, --sound, --volume, --vibrate.")
	}
	return patch, nil
}

func runAlarmsUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseAlarmID(args[0])
	if err != nil {
		return err
	}
	now := time.Now()
	patch, err := updatePatch(cmd, now)
	if err != nil {
		return err
	}
	alarms, err := ctx.Alarms()
	if err != nil {
		return err
	}
	a, err := alarms.Update(cmd.Context(), id, patch)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintAlarm("updated", a, now)
	}
	cli := ctx.CLIFormatter()
	cli.Success("Updated alarm " + a.Label())
	cli.PrintAlarm(a, now)
	printNotices(alarms)
	return nil
}

func runAlarmsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseAlarmID(args[0])
	if err != nil {
		return err
	}

	if !alarmDeleteFlagForce && !ctx.IsJSON() {
		ctx.Formatter.Printf("Delete alarm #%d? [y/N] ", id)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			ctx.Formatter.Println("Cancelled.")
			return nil
		}
	}

	alarms, err := ctx.Alarms()
	if err != nil {
		return err
	}
	if err := alarms.Delete(cmd.Context(), id); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(map[string]any{"status": "deleted", "id": id})
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Deleted alarm #%d", id))
	printNotices(alarms)
	return nil
}

func runAlarmsToggle(cmd *cobra.Command, args []string) error {
	id, err := parseAlarmID(args[0])
	if err != nil {
		return err
	}
	alarms, err := ctx.Alarms()
	if err != nil {
		return err
	}

	var active bool
	if len(args) == 2 {
		switch strings.ToLower(args[1]) {
		case "on", "true", "enable":
			active = true
		case "off", "false", "disable":
			active = false
		default:
			return timelyerrors.NewUserErrorWithField(nil, "state", args[1], "expected on or off", "")
		}
	} else {
		current, err := alarms.Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		active = !current.IsActive
	}

	a, err := alarms.Toggle(cmd.Context(), id, active)
	if err != nil {
		return err
	}

	now := time.Now()
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintAlarm("toggled", a, now)
	}
	state := "off"
	if a.IsActive {
		state = "on"
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Alarm %s is %s", a.Label(), state))
	printNotices(alarms)
	return nil
}

func runAlarmsSync(cmd *cobra.Command, args []string) error {
	alarms, err := ctx.Alarms()
	if err != nil {
		return err
	}
	list, err := alarms.Sync(cmd.Context())
	if err != nil {
		return err
	}

	now := time.Now()
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintAlarms(list, now)
	}
	cli := ctx.CLIFormatter()
	cli.Success(fmt.Sprintf("Synced %d alarm(s)", len(list)))
	cli.PrintAlarms(list, now)
	printNotices(alarms)
	return nil
}
