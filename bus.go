package logstream

import (
	"sync"
	"sync/atomic"
)

// Bus is the fan-in/fan-out point shared by all loggers of a registry.
// Every record emitted by an attached logger is appended to a bounded history
// and then delivered synchronously to all subscribers, in subscription order.
type Bus struct {
	emitMu  sync.Mutex // Serializes append+broadcast and history swaps
	history atomic.Pointer[History]

	subMu  sync.RWMutex
	subs   []*subscription
	nextID uint64

	published atomic.Uint64
	diag      atomic.Pointer[diagnostics]
}

type subscription struct {
	id uint64
	fn func(Record)
}

// BusStats is a point-in-time view of bus activity
type BusStats struct {
	Published   uint64
	Subscribers int
	HistoryLen  int
	HistoryCap  int
}

// NewBus creates a bus whose history holds up to size records
func NewBus(size int) *Bus {
	b := &Bus{}
	b.history.Store(NewHistory(size))
	return b
}

// Attach subscribes the bus to every record the logger emits from now on.
// Attaching the same logger twice results in duplicate records.
func (b *Bus) Attach(l *Logger) {
	l.addSink(b.publish)
}

// Subscribe registers fn for every future record and returns a function that
// removes it. fn runs on the emitting goroutine while the bus is held, so it
// must not log through loggers attached to this bus, call SetHistorySize or
// Replay, or configure a Registry owning the bus (Configure resizes the
// history). Any of these deadlocks.
func (b *Bus) Subscribe(fn func(Record)) (cancel func()) {
	b.subMu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, &subscription{id: id, fn: fn})
	b.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unsubscribe(id) })
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			// Copy-on-write so in-flight broadcasts keep their slice intact
			next := make([]*subscription, 0, len(b.subs)-1)
			next = append(next, b.subs[:i]...)
			b.subs = append(next, b.subs[i+1:]...)
			return
		}
	}
}

// SetHistorySize replaces the history with a ring of capacity n, keeping the
// most recent records that fit. Subscribers are not affected.
func (b *Bus) SetHistorySize(n int) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()
	b.history.Store(b.history.Load().resized(n))
}

// History returns the current history ring. Callers must treat it as read-only.
func (b *Bus) History() *History {
	return b.history.Load()
}

// Replay runs fn with the retained records, oldest first, while nothing is
// being published. A subscriber registered from inside fn receives exactly
// the records that follow the snapshot.
func (b *Bus) Replay(fn func(history []Record)) {
	b.emitMu.Lock()
	defer b.emitMu.Unlock()
	fn(b.history.Load().Snapshot())
}

// Stats returns counters describing the bus
func (b *Bus) Stats() BusStats {
	h := b.History()
	b.subMu.RLock()
	subs := len(b.subs)
	b.subMu.RUnlock()
	return BusStats{
		Published:   b.published.Load(),
		Subscribers: subs,
		HistoryLen:  h.Len(),
		HistoryCap:  h.Cap(),
	}
}

// publish appends a copy of r to the history, then broadcasts it
func (b *Bus) publish(r Record) {
	rec := r.clone()

	b.emitMu.Lock()
	defer b.emitMu.Unlock()

	b.history.Load().Push(rec)
	b.published.Add(1)

	b.subMu.RLock()
	subs := b.subs
	b.subMu.RUnlock()

	for _, s := range subs {
		b.deliver(s, rec)
	}
}

// setDiagnostics routes subscriber panics to d. The first registry wins.
func (b *Bus) setDiagnostics(d *diagnostics) {
	b.diag.CompareAndSwap(nil, d)
}

// deliver isolates the bus from a panicking subscriber
func (b *Bus) deliver(s *subscription, r Record) {
	defer func() {
		if p := recover(); p != nil {
			b.diag.Load().internalLog("subscriber %d panicked: %v\n", s.id, p)
		}
	}()
	s.fn(r)
}
