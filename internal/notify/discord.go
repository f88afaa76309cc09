package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/manav03panchal/timely/internal/model"
)

// DiscordFormatter formats notifications as a Discord embed.
type DiscordFormatter struct{}

type discordPayload struct {
	Content         string           `json:"content,omitempty"`
	Embeds          []discordEmbed   `json:"embeds,omitempty"`
	AllowedMentions *discordMentions `json:"allowed_mentions,omitempty"`
}

// discordMentions with an empty Parse list stops alarm titles such as
// "@everyone up" from pinging anyone.
type discordMentions struct {
	Parse []string `json:"parse"`
}

type discordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// Format converts a notification to a Discord payload. Rings also set
// content so the headline shows in mobile push notifications.
func (f *DiscordFormatter) Format(n *model.Notification) ([]byte, error) {
	embed := discordEmbed{
		Title:       n.Title,
		Description: n.Message,
		Color:       colorFor(n),
		Footer:      &discordFooter{Text: footer},
		Timestamp:   n.Timestamp.UTC().Format(time.RFC3339),
	}
	for _, fd := range sortedFields(n) {
		embed.Fields = append(embed.Fields, discordField{Name: fd.Name, Value: fd.Value, Inline: true})
	}

	payload := discordPayload{
		Embeds:          []discordEmbed{embed},
		AllowedMentions: &discordMentions{Parse: []string{}},
	}
	if n.Ring != nil {
		payload.Content = fmt.Sprintf(":%s: **%s**", n.Icon(), n.Headline())
	}
	return json.Marshal(payload)
}

// ContentType returns the content type for Discord webhooks.
func (f *DiscordFormatter) ContentType() string {
	return "application/json"
}
