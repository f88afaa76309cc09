package notify

import (
	"encoding/json"
	"fmt"

	"github.com/manav03panchal/timely/internal/model"
)

// TeamsFormatter renders an Adaptive Card, the format Teams workflow
// webhooks accept.
type TeamsFormatter struct{}

const adaptiveCardSchema = "http://adaptivecards.io/schemas/adaptive-card.json"

type teamsMessage struct {
	Type        string            `json:"type"`
	Summary     string            `json:"summary,omitempty"`
	Attachments []teamsAttachment `json:"attachments"`
}

type teamsAttachment struct {
	ContentType string       `json:"contentType"`
	Content     adaptiveCard `json:"content"`
}

type adaptiveCard struct {
	Schema  string         `json:"$schema"`
	Type    string         `json:"type"`
	Version string         `json:"version"`
	Body    []adaptiveItem `json:"body"`
	MSTeams map[string]any `json:"msteams,omitempty"`
}

// adaptiveItem covers the TextBlock and FactSet elements used here.
type adaptiveItem struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	Size     string         `json:"size,omitempty"`
	Weight   string         `json:"weight,omitempty"`
	Color    string         `json:"color,omitempty"`
	IsSubtle bool           `json:"isSubtle,omitempty"`
	Wrap     bool           `json:"wrap,omitempty"`
	Facts    []adaptiveFact `json:"facts,omitempty"`
}

type adaptiveFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// teamsAccent maps notification kinds onto Adaptive Card text colors.
func teamsAccent(t model.NotificationType) string {
	switch t {
	case model.NotifyAlarmRing:
		return "Warning"
	case model.NotifySyncConflict:
		return "Attention"
	case model.NotifyAlarmDisabled:
		return "Good"
	default:
		return "Accent"
	}
}

// Format converts a notification to a Teams message.
func (f *TeamsFormatter) Format(n *model.Notification) ([]byte, error) {
	body := []adaptiveItem{
		{Type: "TextBlock", Text: n.Headline(), Size: "Large", Weight: "Bolder", Color: teamsAccent(n.Type), Wrap: true},
		{Type: "TextBlock", Text: fmt.Sprintf("%s · %s · %s", n.TypeLabel(), footer, n.Timestamp.Format("Jan 2, 15:04")), IsSubtle: true, Wrap: true},
	}
	if n.Message != "" {
		body = append(body, adaptiveItem{Type: "TextBlock", Text: n.Message, Wrap: true})
	}
	if fields := sortedFields(n); len(fields) > 0 {
		facts := adaptiveItem{Type: "FactSet"}
		for _, fd := range fields {
			facts.Facts = append(facts.Facts, adaptiveFact{Title: fd.Name, Value: fd.Value})
		}
		body = append(body, facts)
	}

	return json.Marshal(teamsMessage{
		Type:    "message",
		Summary: n.TypeLabel() + ": " + n.Headline(),
		Attachments: []teamsAttachment{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: adaptiveCard{
				Schema:  adaptiveCardSchema,
				Type:    "AdaptiveCard",
				Version: "1.4",
				Body:    body,
				MSTeams: map[string]any{"width": "Full"},
			},
		}},
	})
}

// ContentType returns the content type for Teams webhooks.
func (f *TeamsFormatter) ContentType() string {
	return "application/json"
}
