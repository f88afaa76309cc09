package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/manav03panchal/timely/internal/model"
)

// SlackFormatter formats notifications as Slack Block Kit messages.
type SlackFormatter struct{}

type slackPayload struct {
	// Text is what Slack shows in push notifications.
	Text        string        `json:"text,omitempty"`
	Blocks      []slackBlock  `json:"blocks,omitempty"`
	Attachments []slackAttach `json:"attachments,omitempty"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// slackAttach only carries the sidebar color.
type slackAttach struct {
	Color    string `json:"color,omitempty"`
	Fallback string `json:"fallback,omitempty"`
}

func plainText(s string) *slackText { return &slackText{Type: "plain_text", Text: s} }

func mrkdwn(s string) slackText { return slackText{Type: "mrkdwn", Text: s} }

// slackContext is the small print under a message: which alarm rang and when.
func slackContext(n *model.Notification) string {
	parts := []string{footer, n.Timestamp.Format("Jan 2, 15:04")}
	if n.Ring != nil && n.Ring.AlarmID > 0 {
		parts = append([]string{fmt.Sprintf(":%s: alarm #%d", n.Icon(), n.Ring.AlarmID)}, parts...)
	}
	return strings.Join(parts, " | ")
}

// Format converts a notification to a Slack payload.
func (f *SlackFormatter) Format(n *model.Notification) ([]byte, error) {
	blocks := []slackBlock{{Type: "header", Text: plainText(n.Title)}}
	if n.Message != "" {
		msg := mrkdwn(slackEscape(n.Message))
		blocks = append(blocks, slackBlock{Type: "section", Text: &msg})
	}
	if fields := sortedFields(n); len(fields) > 0 {
		section := slackBlock{Type: "section"}
		for _, fd := range fields {
			section.Fields = append(section.Fields, mrkdwn(fmt.Sprintf("*%s*\n%s", slackEscape(fd.Name), slackEscape(fd.Value))))
		}
		blocks = append(blocks, section)
	}
	blocks = append(blocks, slackBlock{Type: "context", Elements: []slackText{mrkdwn(slackContext(n))}})

	return json.Marshal(slackPayload{
		Text:        "*" + slackEscape(n.Headline()) + "*",
		Blocks:      blocks,
		Attachments: []slackAttach{{Color: colorToHex(colorFor(n)), Fallback: n.Headline()}},
	})
}

// ContentType returns the content type for Slack webhooks.
func (f *SlackFormatter) ContentType() string {
	return "application/json"
}

func colorToHex(color int) string {
	return fmt.Sprintf("#%06X", color)
}

var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// slackEscape escapes the three characters mrkdwn treats as control syntax.
func slackEscape(s string) string {
	return slackEscaper.Replace(s)
}
