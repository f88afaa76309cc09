package notify

import (
	"bytes"
	"encoding/json"
	"sync"
	"text/template"
	"time"

	"github.com/manav03panchal/timely/internal/model"
)

// GenericFormatter posts a stable JSON document, or renders the webhook's
// custom template when one is set.
type GenericFormatter struct {
	// Template is a text/template source; empty selects the JSON document.
	Template string

	once   sync.Once
	parsed *template.Template
	err    error
}

// NewGenericFormatter creates a generic formatter with an optional template.
func NewGenericFormatter(tmpl string) *GenericFormatter {
	return &GenericFormatter{Template: tmpl}
}

type genericPayload struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Headline  string            `json:"headline"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp string            `json:"timestamp"`
	Color     int               `json:"color,omitempty"`
	Ring      *model.RingInfo   `json:"ring,omitempty"`
}

func newGenericPayload(n *model.Notification) genericPayload {
	return genericPayload{
		Type:      string(n.Type),
		Title:     n.Title,
		Headline:  n.Headline(),
		Message:   n.Message,
		Fields:    n.Fields,
		Timestamp: n.Timestamp.UTC().Format(time.RFC3339),
		Color:     colorFor(n),
		Ring:      n.Ring,
	}
}

// Format converts a notification to the generic payload.
func (f *GenericFormatter) Format(n *model.Notification) ([]byte, error) {
	if f.Template == "" {
		return json.Marshal(newGenericPayload(n))
	}

	tmpl, err := f.compile()
	if err != nil {
		return nil, err
	}
	// Templates see the raw timestamp so they can pick their own layout.
	data := struct {
		genericPayload
		Timestamp time.Time
	}{newGenericPayload(n), n.Timestamp}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// compile parses the template once per formatter.
func (f *GenericFormatter) compile() (*template.Template, error) {
	f.once.Do(func() {
		f.parsed, f.err = template.New("webhook").Option("missingkey=zero").Parse(f.Template)
	})
	return f.parsed, f.err
}

// ContentType returns the content type for generic webhooks.
func (f *GenericFormatter) ContentType() string {
	return "application/json"
}
