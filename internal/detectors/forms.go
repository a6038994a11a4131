package detectors

import (
	"regexp"
	"strings"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/events"
)

// sensitiveFieldPattern matches field names whose values must never leave
// the page: credentials, payment data and national-ID variants.
var sensitiveFieldPattern = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|card|cvv|cvc|cpf|cnpj|ssn|social[-_ ]?security)`)

// Field statuses reported for redacted fields.
const (
	fieldFilled = "filled"
	fieldEmpty  = "empty"
)

// FormDetector emits form_submit events for actual <form> submissions.
// Sensitive fields are redacted down to a filled/empty flag.
type FormDetector struct {
	env  *browser.Environment
	send SendFunc
}

// NewFormDetector creates a detector.
func NewFormDetector(env *browser.Environment, send SendFunc) *FormDetector {
	return &FormDetector{env: env, send: send}
}

// OnSubmit processes one form submission.
func (f *FormDetector) OnSubmit(form *browser.Form) {
	if form == nil {
		return
	}

	fields := make(map[string]any, len(form.Fields))
	for _, field := range form.Fields {
		if field.Name == "" {
			continue
		}
		fields[field.Name] = fieldValue(field)
	}

	f.send(events.TypeFormSubmit, map[string]any{
		"form_id":     form.ID(),
		"form_action": form.Action,
		"form_class":  form.Class(),
		"field_count": len(fields),
		"fields":      fields,
	})
}

// fieldValue returns what may be reported for a field: sensitive fields
// (and password inputs regardless of name) reduce to filled/empty.
func fieldValue(field browser.FormField) any {
	if sensitiveFieldPattern.MatchString(field.Name) || strings.EqualFold(field.Type, "password") {
		if strings.TrimSpace(field.Value) != "" {
			return fieldFilled
		}
		return fieldEmpty
	}
	return field.Value
}
