package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/config"
	"rankitopixel/internal/pkg/useragent"
	"rankitopixel/internal/session"
	"rankitopixel/internal/transport"
)

// Builder assembles normalized payloads for every captured signal and hands
// them to the transport. It re-reads session and attribution state on every
// call: sequence numbers must reflect true emission order across all signal
// types, and another tab may have advanced the shared store in between.
//
// Emission is serialized by a per-builder mutex. Sends arrive from the host
// thread and from the engine's own timers (scroll debounce, cart polls,
// retry sweeps); without the lock two concurrent sends could read the same
// sequence number from the store. Separate builders over separate stores
// stay unsynchronized, matching cross-tab behavior.
type Builder struct {
	cfg       *config.Config
	env       *browser.Environment
	store     *session.Store
	sender    transport.Sender
	beacon    transport.Beacon
	logger    *slog.Logger
	pageEntry time.Time
	observers []func(Payload)

	mu sync.Mutex
}

// NewBuilder creates a builder for one page load.
func NewBuilder(cfg *config.Config, env *browser.Environment, store *session.Store, sender transport.Sender, beacon transport.Beacon, logger *slog.Logger) *Builder {
	return &Builder{
		cfg:       cfg,
		env:       env,
		store:     store,
		sender:    sender,
		beacon:    beacon,
		logger:    logger,
		pageEntry: env.Clock(),
	}
}

// ResetPageEntry restarts the dwell-time clock; called on page view.
func (b *Builder) ResetPageEntry() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pageEntry = b.env.Clock()
}

// Observe registers a hook invoked with every built payload (debug panel).
func (b *Builder) Observe(fn func(Payload)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, fn)
}

// Send builds and delivers an event. A missing site token is a hard
// precondition failure: the event is abandoned with only a debug log, never
// an error to the caller.
func (b *Builder) Send(t Type, data map[string]any) {
	b.send(t, data, 0)
}

// Resend re-enters the builder path for a queued retry entry, preserving
// its accumulated retry count. The rebuilt payload carries fresh session
// state, so a retried event may get a new sequence number.
func (b *Builder) Resend(eventType string, data map[string]any, retries int) {
	b.send(Type(eventType), data, retries)
}

func (b *Builder) send(t Type, data map[string]any, retries int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.Token == "" {
		b.logger.Debug("no site token configured, dropping event", slog.String("event_type", string(t)))
		return
	}

	sessionID, sequence := b.store.GetSessionID()
	attribution := b.store.GetAdsTrackingData(b.env)

	payload := Payload{
		SiteName:       b.cfg.SiteName,
		PageURL:        b.env.PageURLString(),
		EventType:      t,
		SessionID:      sessionID,
		SequenceNumber: sequence,
		Attribution:    attribution,
		Metadata:       b.standardMetadata(),
	}

	// Event-specific fields override standard metadata keys only when
	// explicitly provided.
	for key, value := range data {
		if key == "cta_text" {
			if text, ok := value.(string); ok {
				payload.CTAText = text
				continue
			}
		}
		payload.Metadata[key] = value
	}

	body, err := json.Marshal(payload)
	if err != nil {
		b.logger.Debug("failed to marshal event payload", slog.Any("error", err))
		return
	}

	b.notify(payload)
	b.sender.Send(string(t), body, data, retries)
}

// SendExit delivers the abbreviated page_exit payload through the beacon
// path. Dwell times under the configured floor are noise, not a page view:
// no network call is made for them. Beacon failures are logged only; the
// page is closing, so queueing would be pointless.
func (b *Builder) SendExit(timeSpent time.Duration, exitURL string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seconds := int(timeSpent.Seconds())
	if seconds < b.cfg.MinDwellSeconds {
		b.logger.Debug("discarding sub-second page exit", slog.Duration("time_spent", timeSpent))
		return
	}
	if b.cfg.Token == "" {
		b.logger.Debug("no site token configured, dropping page exit")
		return
	}

	sessionID, sequence := b.store.GetSessionID()
	payload := Payload{
		SiteName:         b.cfg.SiteName,
		PageURL:          b.env.PageURLString(),
		EventType:        TypePageExit,
		SessionID:        sessionID,
		SequenceNumber:   sequence,
		TimeSpentSeconds: seconds,
		ExitURL:          exitURL,
		Metadata: map[string]any{
			"device": useragent.DeviceClass(b.env.UserAgent),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		b.logger.Debug("failed to marshal exit payload", slog.Any("error", err))
		return
	}

	b.notify(payload)
	if !b.beacon.SendBeacon(body) {
		b.logger.Debug("page exit beacon not delivered")
	}
}

// TimeOnPage returns the dwell time since the page-view timestamp.
func (b *Builder) TimeOnPage() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timeOnPage()
}

func (b *Builder) timeOnPage() time.Duration {
	return b.env.Clock().Sub(b.pageEntry)
}

func (b *Builder) standardMetadata() map[string]any {
	return map[string]any{
		"device":               useragent.DeviceClass(b.env.UserAgent),
		"page_title":           b.env.Title,
		"referrer":             b.env.Referrer,
		"time_on_current_page": int(b.timeOnPage().Seconds()),
		"viewport_scroll":      b.env.ScrollPercent(),
		"viewport_width":       b.env.Viewport.Width,
		"viewport_height":      b.env.Viewport.Height,
	}
}

func (b *Builder) notify(payload Payload) {
	for _, fn := range b.observers {
		fn(payload)
	}
}
