package detectors

import (
	"strings"
	"unicode/utf8"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/events"
)

const maxCTATextLength = 100

// ClickDetector classifies clicks on anchors and buttons by destination.
// Classification precedence is fixed: WhatsApp link patterns, then tel:,
// then mailto:, then the generic button/anchor-with-text rule. First match
// wins, so a WhatsApp anchor with visible text never degrades to a plain
// button_click.
type ClickDetector struct {
	env  *browser.Environment
	send SendFunc
}

// NewClickDetector creates a detector.
func NewClickDetector(env *browser.Environment, send SendFunc) *ClickDetector {
	return &ClickDetector{env: env, send: send}
}

// OnClick inspects the nearest enclosing anchor/button element for a click.
// Elements that match no classification produce no event.
func (c *ClickDetector) OnClick(el *browser.Element) {
	if el == nil {
		return
	}

	eventType, ok := ClassifyClick(el)
	if !ok {
		return
	}

	c.send(eventType, map[string]any{
		"cta_text":        ctaText(el),
		"element_tag":     el.Tag,
		"element_class":   el.Class(),
		"element_id":      el.ID(),
		"scroll_position": c.env.ScrollPercent(),
	})
}

// ClassifyClick maps an element to its click event type.
func ClassifyClick(el *browser.Element) (events.Type, bool) {
	href := strings.ToLower(strings.TrimSpace(el.Href()))
	tag := strings.ToLower(el.Tag)

	switch {
	case isWhatsAppLink(href):
		return events.TypeWhatsAppClick, true
	case strings.HasPrefix(href, "tel:"):
		return events.TypePhoneClick, true
	case strings.HasPrefix(href, "mailto:"):
		return events.TypeEmailClick, true
	case tag == "button":
		return events.TypeButtonClick, true
	case tag == "a" && strings.TrimSpace(el.Text) != "":
		return events.TypeButtonClick, true
	default:
		return "", false
	}
}

func isWhatsAppLink(href string) bool {
	return strings.Contains(href, "wa.me/") ||
		strings.Contains(href, "api.whatsapp.com") ||
		strings.Contains(href, "web.whatsapp.com") ||
		strings.HasPrefix(href, "whatsapp:")
}

func ctaText(el *browser.Element) string {
	text := strings.Join(strings.Fields(el.Text), " ")
	if len(text) > maxCTATextLength {
		// Back up to a rune boundary so accented CTA text is never cut
		// mid-sequence.
		cut := maxCTATextLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}
