package logstream

import (
	"sync"
)

// History is a fixed-capacity ring of records. When full, the oldest record
// is evicted first. It is safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []Record
	head    int // Next write position
	count   int
}

// NewHistory creates a ring with the given capacity, clamped to at least 1
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{entries: make([]Record, capacity)}
}

// Push appends a record, overwriting the oldest one if the ring is full
func (h *History) Push(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[h.head] = r
	h.head = (h.head + 1) % len(h.entries)
	if h.count < len(h.entries) {
		h.count++
	}
}

// Len returns the number of retained records
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Cap returns the ring capacity
func (h *History) Cap() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Snapshot returns the retained records, oldest first
func (h *History) Snapshot() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastLocked(h.count)
}

// Last returns up to n of the most recent records, oldest first
func (h *History) Last(n int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n > h.count {
		n = h.count
	}
	if n < 0 {
		n = 0
	}
	return h.lastLocked(n)
}

// Each calls fn for every retained record, oldest first, until fn returns false.
// The ring is read-locked for the duration; fn must not push to it.
func (h *History) Each(fn func(Record) bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	size := len(h.entries)
	start := (h.head - h.count + size) % size
	for i := 0; i < h.count; i++ {
		if !fn(h.entries[(start+i)%size]) {
			return
		}
	}
}

// resized returns a new ring of the given capacity holding the most recent
// records of h that fit, in original order
func (h *History) resized(capacity int) *History {
	next := NewHistory(capacity)
	for _, r := range h.Last(next.Cap()) {
		next.Push(r)
	}
	return next
}

// lastLocked copies the n most recent records, caller holds the lock
func (h *History) lastLocked(n int) []Record {
	if n == 0 {
		return nil
	}
	size := len(h.entries)
	out := make([]Record, n)
	start := (h.head - n + size) % size
	for i := 0; i < n; i++ {
		out[i] = h.entries[(start+i)%size]
	}
	return out
}
