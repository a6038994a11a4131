package detectors

import (
	"time"

	"rankitopixel/internal/events"
)

// Lifecycle handles page view and page exit. Three independent browser
// signals can report the same navigation away (visibility hidden, before
// unload, page hide); each one sends an exit event on its own. Duplicate
// exits are tolerated by the backend, so the semantics here are
// deliberately at-least-once, not exactly-once.
type Lifecycle struct {
	builder *events.Builder
}

// NewLifecycle creates the lifecycle detector.
func NewLifecycle(builder *events.Builder) *Lifecycle {
	return &Lifecycle{builder: builder}
}

// PageView fires the initial page_view and restarts the dwell clock.
func (l *Lifecycle) PageView() {
	l.builder.ResetPageEntry()
	l.builder.Send(events.TypePageView, nil)
}

// OnVisibilityHidden handles the document becoming hidden.
func (l *Lifecycle) OnVisibilityHidden() {
	l.exit("")
}

// OnBeforeUnload handles the before-unload signal. nextURL, when known,
// records where the visitor is headed.
func (l *Lifecycle) OnBeforeUnload(nextURL string) {
	l.exit(nextURL)
}

// OnPageHide handles the page-hide signal.
func (l *Lifecycle) OnPageHide() {
	l.exit("")
}

func (l *Lifecycle) exit(nextURL string) {
	l.builder.SendExit(l.builder.TimeOnPage(), nextURL)
}

// Dwell returns the time spent on the current page so far.
func (l *Lifecycle) Dwell() time.Duration {
	return l.builder.TimeOnPage()
}
