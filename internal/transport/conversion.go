package transport

import (
	"encoding/json"
	"log/slog"
)

// ConversionPayload is the reduced wire shape used by the inline per-site
// pixel variant. It carries no session or attribution state.
type ConversionPayload struct {
	SiteName  string         `json:"site_name"`
	PageURL   string         `json:"page_url"`
	EventType string         `json:"event_type"`
	CTAText   string         `json:"cta_text,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ConversionClient speaks the thinner conversion contract in parallel with
// the main ingestion contract. It reuses the Sender failure semantics:
// failed sends land in the same retry queue.
type ConversionClient struct {
	sender Sender
	logger *slog.Logger
}

// NewConversionClient wraps a Sender pointed at the conversion endpoint.
func NewConversionClient(sender Sender, logger *slog.Logger) *ConversionClient {
	return &ConversionClient{sender: sender, logger: logger}
}

// Send delivers a conversion event.
func (c *ConversionClient) Send(payload ConversionPayload) {
	c.send(payload, 0)
}

// Resend re-enters the conversion path for a queued retry entry. The
// payload is rebuilt from the event data captured at first send, so
// conversions and regular events can share the sweeper contract.
func (c *ConversionClient) Resend(eventType string, data map[string]any, retries int) {
	payload := ConversionPayload{EventType: eventType}
	if v, ok := data["site_name"].(string); ok {
		payload.SiteName = v
	}
	if v, ok := data["page_url"].(string); ok {
		payload.PageURL = v
	}
	if v, ok := data["cta_text"].(string); ok {
		payload.CTAText = v
	}
	if v, ok := data["metadata"].(map[string]any); ok {
		payload.Metadata = v
	}
	c.send(payload, retries)
}

func (c *ConversionClient) send(payload ConversionPayload, retries int) {
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Debug("failed to marshal conversion payload", slog.Any("error", err))
		return
	}
	c.sender.Send(payload.EventType, body, map[string]any{
		"site_name": payload.SiteName,
		"page_url":  payload.PageURL,
		"cta_text":  payload.CTAText,
		"metadata":  payload.Metadata,
	}, retries)
}
