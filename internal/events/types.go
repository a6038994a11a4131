// Package events defines the event vocabulary and the payload builder.
package events

import "rankitopixel/internal/session"

// Type identifies an event in the ingestion contract.
type Type string

// The fixed event vocabulary.
const (
	TypePageView       Type = "page_view"
	TypePageExit       Type = "page_exit"
	TypeScrollDepth    Type = "scroll_depth"
	TypeWhatsAppClick  Type = "whatsapp_click"
	TypePhoneClick     Type = "phone_click"
	TypeEmailClick     Type = "email_click"
	TypeButtonClick    Type = "button_click"
	TypeFormSubmit     Type = "form_submit"
	TypeProductView    Type = "product_view"
	TypeAddToCart      Type = "add_to_cart"
	TypeRemoveFromCart Type = "remove_from_cart"
	TypeBeginCheckout  Type = "begin_checkout"
	TypePurchase       Type = "purchase"
	TypeSearch         Type = "search"
)

// Payload is the full wire shape posted to the ingestion endpoint.
type Payload struct {
	SiteName         string `json:"site_name"`
	PageURL          string `json:"page_url"`
	EventType        Type   `json:"event_type"`
	SessionID        string `json:"session_id,omitempty"`
	SequenceNumber   int    `json:"sequence_number,omitempty"`
	CTAText          string `json:"cta_text,omitempty"`
	TimeSpentSeconds int    `json:"time_spent_seconds,omitempty"`
	ExitURL          string `json:"exit_url,omitempty"`

	session.Attribution

	Metadata map[string]any `json:"metadata,omitempty"`
}
