// Package browser models the page environment the pixel engine runs
// against: URL, document, global objects, cookies, viewport and storage.
// The embedding host (headless browser bridge, replay tool, test harness)
// constructs one Environment per page load.
package browser

import (
	"net/url"
	"sync"
	"time"
)

// Viewport holds the visible window dimensions in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// Environment is the explicit context object for one page load.
// It replaces ambient globals: every detector and adapter receives it
// instead of probing a shared window object.
type Environment struct {
	PageURL   *url.URL
	Referrer  string
	Title     string
	UserAgent string
	Cookies   map[string]string
	Globals   map[string]any
	Viewport  Viewport
	ScrollY   float64
	DocHeight float64
	Document  *Document
	Storage   Storage
	Now       func() time.Time

	// Guards ScrollY, which is written by the scroll signal and read by
	// event emission on another goroutine. Every other field is fixed at
	// construction.
	scrollMu sync.Mutex
}

// SetScrollY records the current scroll position; safe to call concurrently
// with ScrollPercent.
func (e *Environment) SetScrollY(y float64) {
	e.scrollMu.Lock()
	e.ScrollY = y
	e.scrollMu.Unlock()
}

// Clock returns the current environment time, defaulting to the wall clock.
func (e *Environment) Clock() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Global looks up a named global object (the window.* analog).
func (e *Environment) Global(name string) (any, bool) {
	if e.Globals == nil {
		return nil, false
	}
	v, ok := e.Globals[name]
	return v, ok
}

// HasGlobal reports whether a global object exists and is non-nil.
func (e *Environment) HasGlobal(name string) bool {
	v, ok := e.Global(name)
	return ok && v != nil
}

// Cookie returns a cookie value, or empty when absent.
func (e *Environment) Cookie(name string) string {
	if e.Cookies == nil {
		return ""
	}
	return e.Cookies[name]
}

// PageURLString returns the full page URL, or empty when unset.
func (e *Environment) PageURLString() string {
	if e.PageURL == nil {
		return ""
	}
	return e.PageURL.String()
}

// Query returns a query parameter from the page URL, or empty when absent.
func (e *Environment) Query(name string) string {
	if e.PageURL == nil {
		return ""
	}
	return e.PageURL.Query().Get(name)
}

// ScrollPercent computes how far down the page the viewport currently sits.
// The denominator is clamped so a zero-height document never divides by zero.
func (e *Environment) ScrollPercent() float64 {
	e.scrollMu.Lock()
	scrollY := e.ScrollY
	e.scrollMu.Unlock()

	height := e.DocHeight
	if height < 1 {
		height = 1
	}
	pct := (scrollY + float64(e.Viewport.Height)) / height * 100
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	return pct
}
