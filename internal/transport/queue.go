// Package transport delivers event payloads to the ingestion endpoint:
// a fire-and-forget HTTP path with a bounded retry queue, a beacon-style
// unload path, and the thin conversion-endpoint variant.
package transport

import "sync"

// Entry is one queued event awaiting retry. EventData is the original
// event-specific data, not the serialized payload: retries go back through
// the full builder path and pick up fresh session state.
type Entry struct {
	EventType string
	EventData map[string]any
	Retries   int
}

// Queue is a bounded FIFO retry queue. When full, new entries are handed
// to the drop hook instead of being queued. The hook also observes entries
// dropped after retry exhaustion; the default hook does nothing, keeping
// drops silent as deployed.
type Queue struct {
	mu      sync.Mutex
	entries []Entry
	max     int
	onDrop  func(Entry)
}

// NewQueue creates a queue bounded at max entries.
func NewQueue(max int) *Queue {
	return &Queue{max: max, onDrop: func(Entry) {}}
}

// OnDrop registers an observer invoked for every dropped entry.
func (q *Queue) OnDrop(fn func(Entry)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if fn != nil {
		q.onDrop = fn
	}
}

// Push appends an entry, dropping it when the queue is full.
func (q *Queue) Push(entry Entry) {
	q.mu.Lock()
	if len(q.entries) >= q.max {
		onDrop := q.onDrop
		q.mu.Unlock()
		onDrop(entry)
		return
	}
	q.entries = append(q.entries, entry)
	q.mu.Unlock()
}

// Pop removes and returns the oldest entry.
func (q *Queue) Pop() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return entry, true
}

// Drop reports an entry as dropped to the observer.
func (q *Queue) Drop(entry Entry) {
	q.mu.Lock()
	onDrop := q.onDrop
	q.mu.Unlock()
	onDrop(entry)
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
