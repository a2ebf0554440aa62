package logstream

import (
	"io"
	"sync"
	"sync/atomic"
)

// TransportLevels maps transport name to its active level. Only transports
// present on the logger appear.
type TransportLevels map[string]int64

// transport is one output sink of a logger with its own level threshold
type transport struct {
	name   string
	level  atomic.Int64
	format string
	flags  int64

	mu  sync.Mutex // Guards ser
	ser *serializer
	w   io.Writer
}

// newTransport builds a transport from output options writing to w
func newTransport(name string, oc *OutputConfig, w io.Writer) *transport {
	t := &transport{
		name:   name,
		format: oc.Format,
		flags:  oc.flags(),
		ser:    newSerializer(oc.TimestampFormat),
		w:      w,
	}
	t.level.Store(oc.Level)
	return t
}

// accepts reports whether a record at level passes the threshold
func (t *transport) accepts(level int64) bool {
	return level >= t.level.Load()
}

// write serializes and writes the record
func (t *transport) write(r Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data := t.ser.serialize(t.format, t.flags, r)
	if _, err := t.w.Write(data); err != nil {
		return fmtErrorf("transport '%s' write failed: %w", t.name, err)
	}
	return nil
}
