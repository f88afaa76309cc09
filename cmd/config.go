package cmd

import (
	"github.com/spf13/cobra"

	"github.com/manav03panchal/timely/internal/config"
	"github.com/manav03panchal/timely/internal/output"
)

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"cfg", "settings"},
	Short:   "Show or change settings",
	Long: `Show the effective settings or change the settings file.

Environment variables TIMELY_API_URL, TIMELY_SOCKET_URL, TIMELY_DATABASE,
TIMELY_LISTEN_ADDR and TIMELY_LOG_LEVEL override the file.

Examples:
  timely config
  timely config init
  timely config set api_url https://alarms.example.com/api`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:         "init",
	Short:       "Write a settings file with default values",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationNoSettings: "true"},
	RunE:        runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:         "set KEY VALUE",
	Short:       "Set a value in the settings file",
	Args:        cobra.ExactArgs(2),
	ValidArgs:   config.SettingKeys,
	Annotations: map[string]string{annotationNoSettings: "true"},
	RunE:        runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)

	rootCmd.AddCommand(configCmd)
}

// settingsFile is the file config writes to.
func settingsFile() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.DefaultConfigFile()
}

// writerFormatter formats output for commands that run without settings.
func writerFormatter() (*output.CLIFormatter, *output.JSONFormatter) {
	f := output.NewFormatter()
	f.Format = output.ParseFormat(flagFormat)
	f.ColorMode = output.ParseColorMode(flagColor)
	return output.NewCLIFormatter(f), output.NewJSONFormatter(f)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	s := ctx.Settings
	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(s)
	}

	file := s.File
	if file == "" {
		file = "(none, using defaults)"
	}
	cli := ctx.CLIFormatter()
	cli.PrintTable([]string{"Setting", "Value"}, []output.TableRow{
		{Columns: []string{"file", file}},
		{Columns: []string{"api_url", s.APIURL}},
		{Columns: []string{"socket_url", s.SocketURL}},
		{Columns: []string{"database", s.Database}},
		{Columns: []string{"listen_addr", s.ListenAddr}},
		{Columns: []string{"log_level", s.LogLevel}},
	})
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := settingsFile()
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	cli, js := writerFormatter()
	if js.IsJSON() {
		return js.PrintStatus("ok", path)
	}
	cli.Success("Settings file: " + path)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := settingsFile()
	if err := config.SetValue(path, args[0], args[1]); err != nil {
		return err
	}
	cli, js := writerFormatter()
	if js.IsJSON() {
		return js.JSON(map[string]string{"status": "ok", "key": args[0], "value": args[1], "file": path})
	}
	cli.Success(args[0] + " = " + args[1])
	cli.Muted("Restart the daemon for it to pick up the change.")
	return nil
}
