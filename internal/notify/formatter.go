// Package notify delivers ring notifications to chat and generic webhooks.
package notify

import (
	"sort"

	"github.com/manav03panchal/timely/internal/model"
)

// Formatter formats notifications for a specific webhook type.
type Formatter interface {
	// Format converts a notification into the webhook-specific payload.
	Format(n *model.Notification) ([]byte, error)

	// ContentType returns the HTTP Content-Type for the payload.
	ContentType() string
}

// GetFormatter returns the appropriate formatter for a webhook type.
func GetFormatter(webhookType string) Formatter {
	switch webhookType {
	case model.WebhookTypeDiscord:
		return &DiscordFormatter{}
	case model.WebhookTypeSlack:
		return &SlackFormatter{}
	case model.WebhookTypeTeams:
		return &TeamsFormatter{}
	case model.WebhookTypeGeneric:
		return &GenericFormatter{}
	default:
		return &GenericFormatter{}
	}
}

// footer is the attribution line appended to chat payloads.
const footer = "timely"

type field struct {
	Name  string
	Value string
}

// sortedFields returns the notification fields ordered by name.
func sortedFields(n *model.Notification) []field {
	out := make([]field, 0, len(n.Fields))
	for k, v := range n.Fields {
		out = append(out, field{Name: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func colorFor(n *model.Notification) int {
	if n.Color != 0 {
		return n.Color
	}
	return model.DefaultColorForType(n.Type)
}
