// Package pixel assembles the tracking engine for one page load: session
// store, event builder, transport, signal detectors and the platform
// adapter layer, wired together behind a small signal-facing API.
package pixel

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/config"
	"rankitopixel/internal/detectors"
	"rankitopixel/internal/events"
	"rankitopixel/internal/platform"
	"rankitopixel/internal/session"
	"rankitopixel/internal/transport"
)

// debugRingSize bounds the in-memory event log exposed for debugging.
const debugRingSize = 10

// Engine is the per-page tracking pipeline. The embedding host forwards
// raw browser signals to the On* methods; everything downstream of them is
// fire-and-forget.
type Engine struct {
	cfg    *config.Config
	env    *browser.Environment
	logger *slog.Logger

	store   *session.Store
	builder *events.Builder

	queue   *transport.Queue
	sender  *transport.HTTPSender
	beacon  transport.Beacon
	sweeper *transport.Sweeper

	convQueue   *transport.Queue
	convSender  *transport.HTTPSender
	conversions *transport.ConversionClient
	convSweeper *transport.Sweeper

	scroll    *detectors.ScrollTracker
	clicks    *detectors.ClickDetector
	forms     *detectors.FormDetector
	lifecycle *detectors.Lifecycle

	registry   *platform.Registry
	adapterCtx *platform.Context
	cart       platform.CartReader
	observers  []platform.ClickObserver

	debug bool

	mu     sync.Mutex
	recent []events.Payload
}

// NewEngine builds the full pipeline against the given environment. The
// environment's storage backs the session store, so two engines sharing a
// storage share a visitor session.
func NewEngine(cfg *config.Config, env *browser.Environment, logger *slog.Logger) *Engine {
	e := &Engine{
		cfg:      cfg,
		env:      env,
		logger:   logger,
		registry: platform.NewRegistry(),
	}

	// A rankito_debug=1 query parameter forces the debug panel on for one
	// page load, so support can inspect a live site without redeploying.
	e.debug = cfg.Debug || env.Query("rankito_debug") == "1"

	e.queue = transport.NewQueue(cfg.RetryQueueSize)
	e.sender = transport.NewHTTPSender(
		cfg.Endpoint,
		cfg.Token,
		time.Duration(cfg.RequestTimeoutMs)*time.Millisecond,
		e.queue,
		logger,
	)
	e.beacon = transport.NewHTTPBeacon(cfg.Endpoint, cfg.Token, logger)

	e.store = session.NewStore(
		env.Storage,
		env.Clock,
		time.Duration(cfg.GetSessionTimeout())*time.Second,
		logger,
	)
	e.builder = events.NewBuilder(cfg, env, e.store, e.sender, beaconRef{e}, logger)
	e.builder.Observe(e.record)

	e.sweeper = transport.NewSweeper(
		e.queue,
		time.Duration(cfg.RetryIntervalSeconds)*time.Second,
		cfg.MaxRetries,
		e.builder.Resend,
		logger,
	)

	// Contact conversions ride a parallel wire contract with its own queue:
	// a failed conversion must not be rebuilt as a regular event on retry.
	if cfg.ConversionEndpoint != "" {
		e.convQueue = transport.NewQueue(cfg.RetryQueueSize)
		e.convSender = transport.NewHTTPSender(
			cfg.ConversionEndpoint,
			cfg.Token,
			time.Duration(cfg.RequestTimeoutMs)*time.Millisecond,
			e.convQueue,
			logger,
		)
		e.conversions = transport.NewConversionClient(e.convSender, logger)
		e.convSweeper = transport.NewSweeper(
			e.convQueue,
			time.Duration(cfg.RetryIntervalSeconds)*time.Second,
			cfg.MaxRetries,
			e.conversions.Resend,
			logger,
		)
	}

	e.scroll = detectors.NewScrollTracker(env, e.builder.Send, time.Duration(cfg.ScrollDebounceMs)*time.Millisecond)
	e.clicks = detectors.NewClickDetector(env, e.builder.Send)
	e.forms = detectors.NewFormDetector(env, e.builder.Send)
	e.lifecycle = detectors.NewLifecycle(e.builder)

	return e
}

// SetCartReader attaches a platform cart reader; must be called before
// Start for adapters that poll the cart.
func (e *Engine) SetCartReader(cart platform.CartReader) {
	e.cart = cart
}

// SetBeacon swaps the unload-path transport; intended for tests and the
// replay tool.
func (e *Engine) SetBeacon(beacon transport.Beacon) {
	e.beacon = beacon
}

// beaconRef indirects beacon delivery through the engine so SetBeacon
// takes effect after the builder is constructed.
type beaconRef struct{ e *Engine }

func (b beaconRef) SendBeacon(payload []byte) bool {
	return b.e.beacon.SendBeacon(payload)
}

// Sender exposes the HTTP sender for delivery-mode tweaks in tests.
func (e *Engine) Sender() *transport.HTTPSender {
	return e.sender
}

// ConversionSender exposes the conversion-path sender; nil when no
// conversion endpoint is configured.
func (e *Engine) ConversionSender() *transport.HTTPSender {
	return e.convSender
}

// Start fires the initial page view, wires the platform adapters and
// begins the retry sweep.
func (e *Engine) Start() {
	e.lifecycle.PageView()

	if e.cfg.EnableEcommerce {
		e.wireAdapters()
	}

	e.sweeper.Start()
	if e.convSweeper != nil {
		e.convSweeper.Start()
	}
	e.logger.Debug("pixel engine started",
		slog.String("site", e.cfg.SiteName),
		slog.String("page", e.env.PageURLString()),
		slog.Bool("debug", e.debug))
}

// wireAdapters selects and activates the platform layer for this page.
func (e *Engine) wireAdapters() {
	e.adapterCtx = &platform.Context{
		Env:                e.env,
		Send:               e.builder.Send,
		Logger:             e.logger,
		Cart:               e.cart,
		CartRecheck:        time.Duration(e.cfg.CartRecheckMs) * time.Millisecond,
		CheckoutSettle:     time.Duration(e.cfg.CheckoutSettleMs) * time.Millisecond,
		ConfirmationSettle: time.Duration(e.cfg.ConfirmationSettleMs) * time.Millisecond,
		CartPoll:           time.Duration(e.cfg.CartPollMs) * time.Millisecond,
	}

	primary, dataLayer := e.registry.Select(e.env, e.cfg.Platform)
	if primary != nil {
		e.logger.Debug("platform adapter selected", slog.String("adapter", primary.Name()))
		primary.Wire(e.adapterCtx)
		if observer, ok := primary.(platform.ClickObserver); ok {
			e.observers = append(e.observers, observer)
		}
	}
	if dataLayer != nil {
		dataLayer.Wire(e.adapterCtx)
	}
}

// OnScroll forwards a scroll position sample.
func (e *Engine) OnScroll(scrollY float64) {
	e.scroll.OnScroll(scrollY)
}

// OnClick forwards a click on the nearest anchor/button element. The
// platform adapter sees the raw element too; click classification and
// cart detection are independent consumers of the same signal.
func (e *Engine) OnClick(el *browser.Element) {
	e.clicks.OnClick(el)
	for _, observer := range e.observers {
		observer.OnClick(el)
	}
	e.maybeSendConversion(el)
}

// maybeSendConversion mirrors contact-type clicks onto the conversion
// endpoint. Rank-and-rent reporting treats WhatsApp, phone and email
// clicks as billable conversions, so they go to both contracts.
func (e *Engine) maybeSendConversion(el *browser.Element) {
	if e.conversions == nil || el == nil {
		return
	}
	eventType, ok := detectors.ClassifyClick(el)
	if !ok {
		return
	}
	switch eventType {
	case events.TypeWhatsAppClick, events.TypePhoneClick, events.TypeEmailClick:
	default:
		return
	}

	e.conversions.Send(transport.ConversionPayload{
		SiteName:  e.cfg.SiteName,
		PageURL:   e.env.PageURLString(),
		EventType: string(eventType),
		CTAText:   strings.Join(strings.Fields(el.Text), " "),
		Metadata: map[string]any{
			"element_tag": el.Tag,
			"href":        el.Href(),
		},
	})
}

// OnFormSubmit forwards a form submission.
func (e *Engine) OnFormSubmit(form *browser.Form) {
	e.forms.OnSubmit(form)
}

// OnVisibilityHidden forwards the document-hidden signal.
func (e *Engine) OnVisibilityHidden() {
	e.lifecycle.OnVisibilityHidden()
}

// OnBeforeUnload forwards the before-unload signal.
func (e *Engine) OnBeforeUnload(nextURL string) {
	e.lifecycle.OnBeforeUnload(nextURL)
}

// OnPageHide forwards the page-hide signal.
func (e *Engine) OnPageHide() {
	e.lifecycle.OnPageHide()
}

// Stop cancels timers, pollers and the retry sweep. Queued retry entries
// stay queued; a restarted engine over the same queue would resume them.
func (e *Engine) Stop() {
	e.scroll.Stop()
	e.sweeper.Stop()
	if e.convSweeper != nil {
		e.convSweeper.Stop()
	}
	if e.adapterCtx != nil {
		e.adapterCtx.Stop()
	}
}

// DebugEnabled reports whether the debug panel is active for this load.
func (e *Engine) DebugEnabled() bool {
	return e.debug
}

// RecentEvents returns the last captured payloads, newest last. Empty
// unless debug is enabled.
func (e *Engine) RecentEvents() []events.Payload {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]events.Payload, len(e.recent))
	copy(out, e.recent)
	return out
}

func (e *Engine) record(payload events.Payload) {
	if !e.debug {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recent = append(e.recent, payload)
	if len(e.recent) > debugRingSize {
		e.recent = e.recent[len(e.recent)-debugRingSize:]
	}
}
