// Package platform contains the per-storefront adapters that turn
// platform-specific page state into standard e-commerce events.
package platform

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/events"
)

// SendFunc delivers a semantic event; wired to the event builder.
type SendFunc func(t events.Type, data map[string]any)

// Adapter is one platform strategy. Detect is a capability check against
// the environment; Wire activates the adapter for the page. Every adapter
// step is best-effort: a missing global, selector or parse failure degrades
// to an absent field, never to an error that halts other detectors.
type Adapter interface {
	Name() string
	Detect(env *browser.Environment) bool
	Wire(ctx *Context)
}

// ClickObserver is implemented by adapters that want the raw click stream
// in addition to the standard click classification.
type ClickObserver interface {
	OnClick(el *browser.Element)
}

// CartItem is one line in a platform cart snapshot.
type CartItem struct {
	ID       string
	Title    string
	Quantity int
	Price    float64
}

// CartReader reads the platform's current cart state, for platforms whose
// cart lives behind an endpoint rather than in the DOM.
type CartReader interface {
	ReadCart() ([]CartItem, error)
}

// Context carries everything an adapter needs for one page load.
type Context struct {
	Env    *browser.Environment
	Send   SendFunc
	Logger *slog.Logger
	Cart   CartReader

	// Timings; non-positive values run the scheduled work inline, which
	// tests rely on.
	CartRecheck        time.Duration
	CheckoutSettle     time.Duration
	ConfirmationSettle time.Duration
	CartPoll           time.Duration

	purchaseSent atomic.Bool

	mu      sync.Mutex
	timers  []*time.Timer
	tickers []*time.Ticker
	done    chan struct{}
}

// MarkPurchaseSent flips the page-lifetime purchase flag and reports
// whether this caller won. The DOM-scraping purchase fallback only runs
// when no structured purchase was already sent.
func (c *Context) MarkPurchaseSent() bool {
	return c.purchaseSent.CompareAndSwap(false, true)
}

// PurchaseAlreadySent reports whether a purchase was sent this page load.
func (c *Context) PurchaseAlreadySent() bool {
	return c.purchaseSent.Load()
}

// AfterFunc schedules fn after d with panic recovery. A non-positive d
// runs fn inline.
func (c *Context) AfterFunc(d time.Duration, fn func()) {
	wrapped := func() {
		defer c.recoverPanic()
		fn()
	}
	if d <= 0 {
		wrapped()
		return
	}
	c.mu.Lock()
	c.timers = append(c.timers, time.AfterFunc(d, wrapped))
	c.mu.Unlock()
}

// Every runs fn on a fixed interval until Stop. A non-positive interval
// disables the loop; callers drive fn directly in tests.
func (c *Context) Every(interval time.Duration, fn func()) {
	if interval <= 0 {
		return
	}
	c.mu.Lock()
	if c.done == nil {
		c.done = make(chan struct{})
	}
	ticker := time.NewTicker(interval)
	c.tickers = append(c.tickers, ticker)
	done := c.done
	c.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				func() {
					defer c.recoverPanic()
					fn()
				}()
			case <-done:
				return
			}
		}
	}()
}

// Stop cancels all scheduled adapter work.
func (c *Context) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.timers {
		t.Stop()
	}
	for _, t := range c.tickers {
		t.Stop()
	}
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.timers = nil
	c.tickers = nil
}

func (c *Context) recoverPanic() {
	if r := recover(); r != nil {
		c.Logger.Error("panic recovered in platform adapter", slog.Any("panic", r))
	}
}

// Registry tries adapters in fixed priority order: the storefront builder,
// the storefront plugin, the tag-management layer, then the generic
// convention. First match wins.
type Registry struct {
	adapters []Adapter
}

// NewRegistry builds the default registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: []Adapter{
			NewShopifyAdapter(),
			NewWooCommerceAdapter(),
			NewDataLayerAdapter(),
			NewGenericAdapter(),
		},
	}
}

// Select returns the primary adapter for the environment. An override
// name short-circuits detection; an override that matches no registered
// adapter falls back to detection rather than leaving the page unwired.
// The data-layer adapter is returned separately when present, since it is
// installed in addition to whichever primary adapter owns the page.
func (r *Registry) Select(env *browser.Environment, override string) (primary Adapter, dataLayer Adapter) {
	if override != "" {
		for _, a := range r.adapters {
			if a.Name() == override {
				primary = a
				break
			}
		}
	}
	if primary == nil {
		for _, a := range r.adapters {
			if a.Detect(env) {
				primary = a
				break
			}
		}
	}
	for _, a := range r.adapters {
		if _, ok := a.(*DataLayerAdapter); ok && a != primary && a.Detect(env) {
			dataLayer = a
		}
	}
	return primary, dataLayer
}
