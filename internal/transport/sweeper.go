package transport

import (
	"log/slog"
	"sync"
	"time"
)

// ResubmitFunc re-sends a queued event through the full builder path so the
// retried event carries fresh session state. A retried event may therefore
// carry a different sequence number than its original attempt. The retry
// count rides along so a failed resubmit re-enqueues with it intact.
type ResubmitFunc func(eventType string, eventData map[string]any, retries int)

// Sweeper drains the retry queue on a fixed interval. Each tick processes
// exactly one entry: worst-case retry throughput is one event per interval
// regardless of queue depth, a deliberate backpressure bound rather than a
// priority scheme.
type Sweeper struct {
	queue      *Queue
	interval   time.Duration
	maxRetries int
	resubmit   ResubmitFunc
	logger     *slog.Logger

	mu      sync.Mutex
	ticker  *time.Ticker
	done    chan struct{}
	running bool
}

// NewSweeper creates a sweeper over the queue.
func NewSweeper(queue *Queue, interval time.Duration, maxRetries int, resubmit ResubmitFunc, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		queue:      queue,
		interval:   interval,
		maxRetries: maxRetries,
		resubmit:   resubmit,
		logger:     logger,
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.ticker = time.NewTicker(s.interval)
	s.done = make(chan struct{})

	go func() {
		for {
			select {
			case <-s.ticker.C:
				s.sweepSafely()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop halts the sweep loop. Queued entries stay queued.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	s.ticker.Stop()
	close(s.done)
}

// sweepSafely runs one sweep with panic recovery so a resubmit failure can
// never kill the sweep goroutine.
func (s *Sweeper) sweepSafely() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic recovered in retry sweep", slog.Any("panic", r))
		}
	}()
	s.Sweep()
}

// Sweep processes at most one queue entry: exhausted entries are dropped,
// anything else is resubmitted with an incremented retry count. Exported
// so tests can drive sweeps without waiting on the ticker.
func (s *Sweeper) Sweep() {
	entry, ok := s.queue.Pop()
	if !ok {
		return
	}

	if entry.Retries >= s.maxRetries {
		s.logger.Debug("dropping event after retry exhaustion",
			slog.String("event_type", entry.EventType),
			slog.Int("retries", entry.Retries))
		s.queue.Drop(entry)
		return
	}

	entry.Retries++
	s.logger.Debug("retrying queued event",
		slog.String("event_type", entry.EventType),
		slog.Int("attempt", entry.Retries))
	s.resubmit(entry.EventType, entry.EventData, entry.Retries)
}
