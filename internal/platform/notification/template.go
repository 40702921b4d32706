package notification

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	TemplatePaymentStatusUpdate = "payment-status-update"
	TemplateWelcome             = "welcome"
)

// Template defines a reusable notification template. Placeholders are
// written as {{key}}.
type Template struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Subject string           `json:"subject"`
	Body    string           `json:"body"`
	Type    NotificationType `json:"type"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine creates a TemplateEngine with the built-in templates pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplatePaymentStatusUpdate,
			Name:    "Payment Status Update",
			Subject: "CuraKidney payment status update",
			Body: "Dear {{name}},\n\n" +
				"We have recorded a payment of {{amount}} for the following treatments: {{treatment_ids}}.\n\n" +
				"If you have questions about this payment, reply to this email or contact the clinic.\n\n" +
				"CuraKidney",
			Type: TypeEmail,
		},
		{
			ID:      TemplateWelcome,
			Name:    "Welcome",
			Subject: "Welcome to CuraKidney",
			Body: "Dear {{name}},\n\n" +
				"Your CuraKidney account for {{email}} has been created.\n\n" +
				"CuraKidney",
			Type: TypeEmail,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and replaces every {{key}} found in data.
// Placeholders without a value are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	r := newReplacer(data)
	return r.Replace(t.Subject), r.Replace(t.Body), nil
}

// newReplacer substitutes every placeholder in a single pass, so values that
// themselves contain {{key}} are never expanded.
func newReplacer(data map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{{"+k+"}}", data[k])
	}
	return strings.NewReplacer(pairs...)
}
