package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/timely/internal/storage"
)

// completionContext makes sure the runtime context exists. Completion runs
// without the root pre-run hook.
func completionContext() bool {
	if ctx != nil {
		return true
	}
	return initContext() == nil
}

// completeAlarmIDs completes alarm ids with their title as description.
func completeAlarmIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || !completionContext() {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	alarms, err := ctx.Alarms()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	list, err := alarms.List(cmd.Context())
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, a := range list {
		id := strconv.FormatInt(a.ID, 10)
		if strings.HasPrefix(id, toComplete) {
			completions = append(completions, id+"\t"+a.Time+" "+a.DisplayTitle())
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

// completeDays completes the --days flag.
func completeDays(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	options := []string{
		"weekdays\tMonday to Friday",
		"weekends\tSaturday and Sunday",
		"daily\tevery day",
		"once\tone-time alarm",
		"mon,wed,fri\tselected weekdays",
	}

	var filtered []string
	for _, o := range options {
		if strings.HasPrefix(strings.Split(o, "\t")[0], toComplete) {
			filtered = append(filtered, o)
		}
	}
	return filtered, cobra.ShellCompDirectiveNoFileComp
}

// completeWebhookNames completes webhook names. The database is only
// readable while no daemon holds it.
func completeWebhookNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) != 0 || !completionContext() {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	db, err := ctx.DB()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	webhooks, err := storage.NewWebhookRepo(db).List()
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var names []string
	for _, wh := range webhooks {
		if strings.HasPrefix(wh.Name, toComplete) {
			names = append(names, wh.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
