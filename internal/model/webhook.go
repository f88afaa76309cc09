package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Webhook type constants.
const (
	WebhookTypeDiscord = "discord"
	WebhookTypeSlack   = "slack"
	WebhookTypeTeams   = "teams"
	WebhookTypeGeneric = "generic"
)

// Webhook is a destination that receives ring notifications. An empty
// Events list subscribes to every notification type.
type Webhook struct {
	Key       string             `json:"key"`
	Name      string             `json:"name"`
	Type      string             `json:"type"`
	URL       string             `json:"url"`
	Enabled   bool               `json:"enabled"`
	Template  string             `json:"template,omitempty"`
	Events    []NotificationType `json:"events,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	LastUsed  time.Time          `json:"last_used,omitempty"`
	LastError string             `json:"last_error,omitempty"`
	Failures  int                `json:"failures,omitempty"`
}

// Receives reports whether the webhook wants notifications of type t.
// Test notifications always go through.
func (w *Webhook) Receives(t NotificationType) bool {
	if t == NotifyTest || len(w.Events) == 0 {
		return true
	}
	for _, e := range w.Events {
		if e == t {
			return true
		}
	}
	return false
}

// EventsText lists the subscribed types for display.
func (w *Webhook) EventsText() string {
	if len(w.Events) == 0 {
		return "all"
	}
	parts := make([]string, len(w.Events))
	for i, e := range w.Events {
		parts[i] = eventAliases[e]
	}
	return strings.Join(parts, ",")
}

var eventAliases = map[NotificationType]string{
	NotifyAlarmRing:     "ring",
	NotifyAlarmDisabled: "disabled",
	NotifySyncConflict:  "conflict",
}

// ParseWebhookEvents parses a comma-separated list of ring, disabled and
// conflict. "" and "all" subscribe to everything.
func ParseWebhookEvents(s string) ([]NotificationType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return nil, nil
	}
	var out []NotificationType
	seen := make(map[NotificationType]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		var found NotificationType
		for t, alias := range eventAliases {
			if part == alias || part == string(t) {
				found = t
			}
		}
		if found == "" {
			return nil, fmt.Errorf("unknown webhook event %q (use ring, disabled, conflict)", part)
		}
		if !seen[found] {
			seen[found] = true
			out = append(out, found)
		}
	}
	return out, nil
}

// SetKey sets the database key for this webhook.
func (w *Webhook) SetKey(key string) {
	w.Key = key
}

// GetKey returns the database key for this webhook.
func (w *Webhook) GetKey() string {
	return w.Key
}

// GenerateWebhookKey generates a database key for a webhook.
func GenerateWebhookKey(name string) string {
	return fmt.Sprintf("%s:%s", PrefixWebhook, name)
}

// NewWebhook creates a new enabled webhook. An empty type is detected from
// the URL.
func NewWebhook(name, webhookType, url string) *Webhook {
	if webhookType == "" {
		webhookType = DetectWebhookType(url)
	}
	return &Webhook{
		Key:       GenerateWebhookKey(name),
		Name:      name,
		Type:      webhookType,
		URL:       url,
		Enabled:   true,
		CreatedAt: time.Now(),
	}
}

// IsValidWebhookType checks if a type is valid.
func IsValidWebhookType(t string) bool {
	switch t {
	case WebhookTypeDiscord, WebhookTypeSlack, WebhookTypeTeams, WebhookTypeGeneric:
		return true
	}
	return false
}

var webhookNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,49}$`)

// IsValidWebhookName checks if a webhook name is valid.
func IsValidWebhookName(name string) bool {
	return webhookNameRegex.MatchString(name)
}

// DetectWebhookType guesses the webhook type from the URL host.
func DetectWebhookType(url string) string {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "discord.com/api/webhooks"):
		return WebhookTypeDiscord
	case strings.Contains(u, "hooks.slack.com"):
		return WebhookTypeSlack
	case strings.Contains(u, "webhook.office.com"), strings.Contains(u, "outlook.office.com/webhook"):
		return WebhookTypeTeams
	default:
		return WebhookTypeGeneric
	}
}
