package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	timelyerrors "github.com/manav03panchal/timely/internal/errors"
	"github.com/manav03panchal/timely/internal/model"
	"github.com/manav03panchal/timely/internal/notify"
	"github.com/manav03panchal/timely/internal/storage"
	"github.com/manav03panchal/timely/internal/validate"
)

// Webhook command flags.
var (
	webhookAddFlagType     string
	webhookAddFlagTemplate string
	webhookAddFlagEvents   string
	webhookRemoveFlagForce bool
	webhookTestFlagAll     bool
)

// webhookCmd represents the webhook command.
var webhookCmd = &cobra.Command{
	Use:     "webhook [command]",
	Aliases: []string{"wh", "hook"},
	Short:   "Configure webhooks notified when an alarm rings",
	Long: `Configure webhooks for Discord, Slack, Teams, or custom endpoints.
The daemon posts to every enabled webhook when an alarm rings.

Webhooks live in the local database, so the daemon must be stopped
while you change them.

Examples:
  timely webhook add discord https://discord.com/api/webhooks/...
  timely webhook add slack https://hooks.slack.com/services/...
  timely webhook list
  timely webhook test discord
  timely webhook disable slack
  timely webhook remove discord`,
	RunE: runWebhookList,
}

var webhookAddCmd = &cobra.Command{
	Use:   "add NAME URL",
	Short: "Add a new webhook",
	Long: `Add a webhook for ring notifications.

The webhook type is auto-detected from the URL:
  - Discord: discord.com/api/webhooks/...
  - Slack:   hooks.slack.com/services/...
  - Teams:   outlook.office.com/webhook/...
  - Generic: Any other URL

Examples:
  timely webhook add discord https://discord.com/api/webhooks/123/abc
  timely webhook add my-hook https://example.com/hook --type generic
  timely webhook add alerts https://hooks.slack.com/services/... --events conflict`,
	Args: cobra.ExactArgs(2),
	RunE: runWebhookAdd,
}

var webhookListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all webhooks",
	RunE:  runWebhookList,
}

var webhookTestCmd = &cobra.Command{
	Use:   "test [NAME]",
	Short: "Send a test notification",
	Long: `Send a test notification to verify webhook configuration.

Examples:
  timely webhook test discord
  timely webhook test --all`,
	RunE: runWebhookTest,
}

var webhookRemoveCmd = &cobra.Command{
	Use:     "remove NAME",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove a webhook",
	Args:    cobra.ExactArgs(1),
	RunE:    runWebhookRemove,
}

var webhookEnableCmd = &cobra.Command{
	Use:   "enable NAME",
	Short: "Enable a webhook",
	Args:  cobra.ExactArgs(1),
	RunE:  runWebhookEnable,
}

var webhookDisableCmd = &cobra.Command{
	Use:   "disable NAME",
	Short: "Disable a webhook",
	Args:  cobra.ExactArgs(1),
	RunE:  runWebhookDisable,
}

func init() {
	webhookAddCmd.Flags().StringVarP(&webhookAddFlagType, "type", "t", "",
		"Webhook type: discord, slack, teams, generic (auto-detected from URL if not specified)")
	webhookAddCmd.Flags().StringVar(&webhookAddFlagTemplate, "template", "",
		"Custom payload template for generic webhooks")
	webhookAddCmd.Flags().StringVarP(&webhookAddFlagEvents, "events", "e", "all",
		"Notifications to receive: ring, disabled, conflict or all")

	webhookRemoveCmd.Flags().BoolVar(&webhookRemoveFlagForce, "force", false,
		"Skip confirmation")

	webhookTestCmd.Flags().BoolVarP(&webhookTestFlagAll, "all", "a", false,
		"Test all enabled webhooks")

	webhookTestCmd.ValidArgsFunction = completeWebhookNames
	webhookRemoveCmd.ValidArgsFunction = completeWebhookNames
	webhookEnableCmd.ValidArgsFunction = completeWebhookNames
	webhookDisableCmd.ValidArgsFunction = completeWebhookNames

	webhookCmd.AddCommand(webhookAddCmd)
	webhookCmd.AddCommand(webhookListCmd)
	webhookCmd.AddCommand(webhookTestCmd)
	webhookCmd.AddCommand(webhookRemoveCmd)
	webhookCmd.AddCommand(webhookEnableCmd)
	webhookCmd.AddCommand(webhookDisableCmd)

	rootCmd.AddCommand(webhookCmd)
}

// webhookRepo opens the local database for webhook changes.
func webhookRepo() (*storage.WebhookRepo, error) {
	db, err := ctx.DB()
	if err != nil {
		return nil, err
	}
	return storage.NewWebhookRepo(db), nil
}

// requireWebhook returns a user error when name is not configured.
func requireWebhook(repo *storage.WebhookRepo, name string) error {
	exists, err := repo.Exists(name)
	if err != nil {
		return err
	}
	if !exists {
		return timelyerrors.NewUserErrorWithField(nil, "webhook", name, "webhook not found",
			"Use 'timely webhook list' to see configured webhooks.")
	}
	return nil
}

func runWebhookAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	webhookURL := args[1]

	if err := validate.WebhookName(name); err != nil {
		return err
	}
	if err := validate.URL(webhookURL); err != nil {
		return err
	}

	repo, err := webhookRepo()
	if err != nil {
		return err
	}
	exists, err := repo.Exists(name)
	if err != nil {
		return err
	}
	if exists {
		return timelyerrors.NewUserErrorWithField(nil, "name", name, "webhook already exists",
			"Remove it first with 'timely webhook remove'.")
	}

	webhookType := webhookAddFlagType
	if webhookType == "" {
		webhookType = model.DetectWebhookType(webhookURL)
	}
	if !model.IsValidWebhookType(webhookType) {
		return timelyerrors.NewUserErrorWithField(nil, "type", webhookType, "invalid webhook type",
			"Use discord, slack, teams, or generic.")
	}

	events, err := model.ParseWebhookEvents(webhookAddFlagEvents)
	if err != nil {
		return timelyerrors.NewUserErrorWithField(err, "events", webhookAddFlagEvents, err.Error(), "")
	}

	webhook := model.NewWebhook(name, webhookType, webhookURL)
	webhook.Template = webhookAddFlagTemplate
	webhook.Events = events
	if err := repo.Create(webhook); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(map[string]any{"status": "added", "webhook": webhook})
	}
	cli := ctx.CLIFormatter()
	cli.Success("Added webhook: " + name)
	cli.Printf("  Type: %s\n", webhook.Type)
	cli.Printf("  URL:  %s\n", webhook.URL)
	cli.Printf("  Events: %s\n", webhook.EventsText())
	cli.Println()
	cli.Muted("Test with: timely webhook test " + name)
	return nil
}

func runWebhookList(cmd *cobra.Command, args []string) error {
	repo, err := webhookRepo()
	if err != nil {
		return err
	}
	webhooks, err := repo.List()
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintWebhooks(webhooks)
	}
	ctx.CLIFormatter().PrintWebhooks(webhooks)
	for _, wh := range webhooks {
		if !wh.LastUsed.IsZero() {
			ctx.CLIFormatter().Muted(fmt.Sprintf("%s last used %s", wh.Name, formatTimeAgo(wh.LastUsed)))
		}
	}
	return nil
}

func runWebhookTest(cmd *cobra.Command, args []string) error {
	repo, err := webhookRepo()
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(repo)
	c, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var names []string
	switch {
	case webhookTestFlagAll:
		enabled, err := repo.ListEnabled()
		if err != nil {
			return err
		}
		if len(enabled) == 0 {
			return timelyerrors.NewUserError("no enabled webhooks to test", "Add one with 'timely webhook add'.")
		}
		for _, wh := range enabled {
			names = append(names, wh.Name)
		}
	case len(args) == 1:
		if err := requireWebhook(repo, args[0]); err != nil {
			return err
		}
		names = args
	default:
		return timelyerrors.NewUserError("webhook name required", "Pass a name or use --all.")
	}

	results := make([]notify.DispatchResult, 0, len(names))
	for _, name := range names {
		results = append(results, dispatcher.TestWebhook(c, name))
	}

	if ctx.IsJSON() {
		out := make([]map[string]any, 0, len(results))
		for _, r := range results {
			out = append(out, map[string]any{
				"webhook":     r.WebhookName,
				"success":     r.Success,
				"status_code": r.StatusCode,
				"duration_ms": r.Duration.Milliseconds(),
				"error":       errorString(r.Error),
			})
		}
		return ctx.JSONFormatter().JSON(map[string]any{"results": out})
	}

	cli := ctx.CLIFormatter()
	for _, r := range results {
		if r.Success {
			cli.Success(fmt.Sprintf("✓ %s: delivered in %dms", r.WebhookName, r.Duration.Milliseconds()))
		} else {
			cli.Error(fmt.Sprintf("✗ %s: %s", r.WebhookName, errorString(r.Error)))
		}
	}
	return nil
}

func runWebhookRemove(cmd *cobra.Command, args []string) error {
	name := args[0]
	repo, err := webhookRepo()
	if err != nil {
		return err
	}
	if err := requireWebhook(repo, name); err != nil {
		return err
	}

	if !webhookRemoveFlagForce && !ctx.IsJSON() {
		ctx.Formatter.Printf("Remove webhook %q? [y/N] ", name)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			ctx.Formatter.Println("Cancelled.")
			return nil
		}
	}

	if err := repo.Delete(name); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(map[string]any{"status": "removed", "webhook": name})
	}
	ctx.CLIFormatter().Success("Removed webhook: " + name)
	return nil
}

func runWebhookEnable(cmd *cobra.Command, args []string) error {
	return setWebhookEnabled(args[0], true)
}

func runWebhookDisable(cmd *cobra.Command, args []string) error {
	return setWebhookEnabled(args[0], false)
}

func setWebhookEnabled(name string, enabled bool) error {
	repo, err := webhookRepo()
	if err != nil {
		return err
	}
	if err := requireWebhook(repo, name); err != nil {
		return err
	}
	if err := repo.SetEnabled(name, enabled); err != nil {
		return err
	}

	status := "disabled"
	if enabled {
		status = "enabled"
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().JSON(map[string]any{"status": status, "webhook": name})
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Webhook %s %s", name, status))
	return nil
}

// formatTimeAgo formats a time as a human-readable relative time.
func formatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 48*time.Hour:
		return "yesterday"
	default:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}
}

// errorString returns the error message or empty string if nil.
func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
