// Package detectors turns raw browser signals into semantic events:
// scroll-depth milestones, classified clicks, form submissions and page
// lifecycle transitions.
package detectors

import (
	"sync"
	"time"

	"rankitopixel/internal/browser"
	"rankitopixel/internal/events"
)

// SendFunc delivers a semantic event; wired to the event builder.
type SendFunc func(t events.Type, data map[string]any)

// Scroll milestones fired at most once per page view.
var scrollMilestones = []int{25, 50, 75, 100}

// ScrollTracker emits scroll_depth events at fixed milestones. Scroll
// bursts are debounced so only the trailing position triggers computation.
// Milestones are cumulative: a jump from 20% to 90% fires 25, 50 and 75 in
// one pass, and each milestone fires exactly once per page view.
type ScrollTracker struct {
	env      *browser.Environment
	send     SendFunc
	debounce time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	maxDepth float64
	tracked  map[int]bool
}

// NewScrollTracker creates a tracker. A non-positive debounce computes
// inline, which tests rely on.
func NewScrollTracker(env *browser.Environment, send SendFunc, debounce time.Duration) *ScrollTracker {
	return &ScrollTracker{
		env:      env,
		send:     send,
		debounce: debounce,
		tracked:  make(map[int]bool),
	}
}

// OnScroll records a new scroll position and schedules the milestone check.
func (s *ScrollTracker) OnScroll(scrollY float64) {
	s.env.SetScrollY(scrollY)
	s.mu.Lock()
	if s.debounce <= 0 {
		s.mu.Unlock()
		s.compute()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.compute)
	s.mu.Unlock()
}

// Stop cancels any pending debounce timer.
func (s *ScrollTracker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
}

// MaxDepth returns the running maximum scroll percentage for this page view.
func (s *ScrollTracker) MaxDepth() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxDepth
}

func (s *ScrollTracker) compute() {
	s.mu.Lock()
	pct := s.env.ScrollPercent()
	if pct > s.maxDepth {
		s.maxDepth = pct
	}
	var fired []int
	for _, milestone := range scrollMilestones {
		if pct >= float64(milestone) && !s.tracked[milestone] {
			s.tracked[milestone] = true
			fired = append(fired, milestone)
		}
	}
	maxDepth := s.maxDepth
	s.mu.Unlock()

	for _, milestone := range fired {
		s.send(events.TypeScrollDepth, map[string]any{
			"depth_percentage": milestone,
			"max_depth":        maxDepth,
		})
	}
}
