package detectors_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/detectors"
	"rankitopixel/internal/events"
)

type captured struct {
	eventType events.Type
	data      map[string]any
}

func capture(into *[]captured) detectors.SendFunc {
	return func(t events.Type, data map[string]any) {
		*into = append(*into, captured{eventType: t, data: data})
	}
}

func scrollEnv() *browser.Environment {
	// Viewport height 500 over a 5000px document: scrollY 0 is 10%,
	// scrollY 4500 is 100%.
	return &browser.Environment{
		Viewport:  browser.Viewport{Width: 1280, Height: 500},
		DocHeight: 5000,
	}
}

func TestScrollMilestonesFireOnce(t *testing.T) {
	var sent []captured
	env := scrollEnv()
	tracker := detectors.NewScrollTracker(env, capture(&sent), 0)

	tracker.OnScroll(1000) // 30%
	tracker.OnScroll(4000) // 90%: catches up 50 and 75
	tracker.OnScroll(1500) // back to 40%: nothing new
	tracker.OnScroll(4500) // 100%

	require.Len(t, sent, 4)
	var milestones []int
	for _, s := range sent {
		assert.Equal(t, events.TypeScrollDepth, s.eventType)
		milestones = append(milestones, s.data["depth_percentage"].(int))
	}
	assert.Equal(t, []int{25, 50, 75, 100}, milestones)
}

func TestScrollMaxDepthMonotonic(t *testing.T) {
	var sent []captured
	tracker := detectors.NewScrollTracker(scrollEnv(), capture(&sent), 0)

	tracker.OnScroll(4000)
	tracker.OnScroll(500)
	assert.InDelta(t, 90.0, tracker.MaxDepth(), 0.001)
}

func TestClickClassificationPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		el       *browser.Element
		expected events.Type
		matched  bool
	}{
		{
			name: "whatsapp link with text beats generic anchor rule",
			el: &browser.Element{
				Tag:   "a",
				Text:  "Contact us",
				Attrs: map[string]string{"href": "https://wa.me/123"},
			},
			expected: events.TypeWhatsAppClick,
			matched:  true,
		},
		{
			name: "whatsapp api link",
			el: &browser.Element{
				Tag:   "a",
				Attrs: map[string]string{"href": "https://api.whatsapp.com/send?phone=123"},
			},
			expected: events.TypeWhatsAppClick,
			matched:  true,
		},
		{
			name: "tel link",
			el: &browser.Element{
				Tag:   "a",
				Text:  "Call",
				Attrs: map[string]string{"href": "tel:+5511999999999"},
			},
			expected: events.TypePhoneClick,
			matched:  true,
		},
		{
			name: "mailto link",
			el: &browser.Element{
				Tag:   "a",
				Attrs: map[string]string{"href": "mailto:sales@example.com"},
			},
			expected: events.TypeEmailClick,
			matched:  true,
		},
		{
			name:     "button with no href",
			el:       &browser.Element{Tag: "button", Text: "Submit"},
			expected: events.TypeButtonClick,
			matched:  true,
		},
		{
			name: "anchor with text",
			el: &browser.Element{
				Tag:   "a",
				Text:  "Learn more",
				Attrs: map[string]string{"href": "/about"},
			},
			expected: events.TypeButtonClick,
			matched:  true,
		},
		{
			name:    "anchor without text is ignored",
			el:      &browser.Element{Tag: "a", Attrs: map[string]string{"href": "/about"}},
			matched: false,
		},
		{
			name:    "plain div is ignored",
			el:      &browser.Element{Tag: "div", Text: "Hello"},
			matched: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eventType, ok := detectors.ClassifyClick(tc.el)
			assert.Equal(t, tc.matched, ok)
			if tc.matched {
				assert.Equal(t, tc.expected, eventType)
			}
		})
	}
}

func TestClickCapturesElementMetadata(t *testing.T) {
	var sent []captured
	env := scrollEnv()
	env.ScrollY = 4500
	detector := detectors.NewClickDetector(env, capture(&sent))

	detector.OnClick(&browser.Element{
		Tag:  "a",
		Text: "  Chame   agora  ",
		Attrs: map[string]string{
			"href":  "https://wa.me/5511999999999",
			"class": "cta green",
			"id":    "wa-button",
		},
	})

	require.Len(t, sent, 1)
	data := sent[0].data
	assert.Equal(t, "Chame agora", data["cta_text"])
	assert.Equal(t, "a", data["element_tag"])
	assert.Equal(t, "cta green", data["element_class"])
	assert.Equal(t, "wa-button", data["element_id"])
	assert.InDelta(t, 100.0, data["scroll_position"].(float64), 0.001)
}

func TestClickCTATextTruncatesOnRuneBoundary(t *testing.T) {
	var sent []captured
	detector := detectors.NewClickDetector(scrollEnv(), capture(&sent))

	// 99 ASCII bytes followed by accented text puts the 100-byte cap in the
	// middle of a multibyte rune.
	text := strings.Repeat("a", 99) + "ção sem compromisso"
	detector.OnClick(&browser.Element{Tag: "button", Text: text})

	require.Len(t, sent, 1)
	cta := sent[0].data["cta_text"].(string)
	assert.True(t, utf8.ValidString(cta), "truncated CTA text must stay valid UTF-8")
	assert.LessOrEqual(t, len(cta), 100)
	assert.Equal(t, strings.Repeat("a", 99), cta)
}

func TestFormSensitiveFieldRedaction(t *testing.T) {
	var sent []captured
	detector := detectors.NewFormDetector(scrollEnv(), capture(&sent))

	detector.OnSubmit(&browser.Form{
		Element: browser.Element{Tag: "form", Attrs: map[string]string{"id": "checkout"}},
		Action:  "/submit",
		Fields: []browser.FormField{
			{Name: "name", Value: "Maria"},
			{Name: "credit_card_cvv", Value: "123"},
			{Name: "card_number", Value: ""},
			{Name: "login_password", Type: "password", Value: "hunter2"},
			{Name: "cpf", Value: "111.222.333-44"},
		},
	})

	require.Len(t, sent, 1)
	fields := sent[0].data["fields"].(map[string]any)
	assert.Equal(t, "Maria", fields["name"])
	assert.Equal(t, "filled", fields["credit_card_cvv"])
	assert.Equal(t, "empty", fields["card_number"])
	assert.Equal(t, "filled", fields["login_password"])
	assert.Equal(t, "filled", fields["cpf"])

	for name, value := range fields {
		if name == "name" {
			continue
		}
		assert.NotContains(t, []any{"123", "hunter2", "111.222.333-44"}, value,
			"sensitive value leaked for %s", name)
	}
}

func TestFormNilIgnored(t *testing.T) {
	var sent []captured
	detector := detectors.NewFormDetector(scrollEnv(), capture(&sent))
	detector.OnSubmit(nil)
	assert.Empty(t, sent)
}
