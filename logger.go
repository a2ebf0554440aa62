package logstream

import (
	"slices"
	"sync"
	"time"
)

// Logger is a named record source. It writes each record to the transports
// whose level accepts it and hands accepted records to its sinks (the event
// bus). A logger without transports hands every record to its sinks.
// Loggers are created and memoized by a Registry.
type Logger struct {
	name string
	now  func() time.Time
	diag *diagnostics

	mu         sync.RWMutex
	transports []*transport
	sinks      []func(Record)
}

// newLogger creates a bare logger with no transports
func newLogger(name string, now func() time.Time, diag *diagnostics) *Logger {
	if now == nil {
		now = time.Now
	}
	return &Logger{name: name, now: now, diag: diag}
}

// Name returns the logger name
func (l *Logger) Name() string {
	return l.name
}

// Log emits a record. Errors found in args are reduced to their message.
// Records below every transport level are dropped before reaching the sinks.
// It never panics and never reports failures to the caller.
func (l *Logger) Log(level int64, msg string, args ...any) {
	r := Record{
		Source:  l.name,
		Level:   level,
		Message: msg,
		Args:    normalizeArgs(args),
		Time:    l.now(),
	}

	l.mu.RLock()
	transports := l.transports
	sinks := l.sinks
	l.mu.RUnlock()

	accepted := len(transports) == 0
	for _, t := range transports {
		if !t.accepts(level) {
			continue
		}
		accepted = true
		if err := t.write(r); err != nil {
			l.diag.internalLog("logger '%s': %v\n", l.name, err)
			continue
		}
		r.Transports = append(r.Transports, t.name)
	}
	if !accepted {
		return
	}

	for _, sink := range sinks {
		sink(r)
	}
}

// Debug logs a message at debug level
func (l *Logger) Debug(msg string, args ...any) {
	l.Log(LevelDebug, msg, args...)
}

// Info logs a message at info level
func (l *Logger) Info(msg string, args ...any) {
	l.Log(LevelInfo, msg, args...)
}

// Warn logs a message at warning level
func (l *Logger) Warn(msg string, args ...any) {
	l.Log(LevelWarn, msg, args...)
}

// Error logs a message at error level
func (l *Logger) Error(msg string, args ...any) {
	l.Log(LevelError, msg, args...)
}

// IsDebug reports whether any transport is at debug or all level, letting
// callers skip building expensive debug payloads.
func (l *Logger) IsDebug() bool {
	for _, level := range l.Levels() {
		if level <= LevelDebug {
			return true
		}
	}
	return false
}

// Levels returns the active level of each transport
func (l *Logger) Levels() TransportLevels {
	l.mu.RLock()
	defer l.mu.RUnlock()
	levels := make(TransportLevels, len(l.transports))
	for _, t := range l.transports {
		levels[t.name] = t.level.Load()
	}
	return levels
}

// Transports returns the names of the attached transports
func (l *Logger) Transports() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.transports))
	for _, t := range l.transports {
		names = append(names, t.name)
	}
	return names
}

// SetLevel changes one transport's level, or all of them when transport is
// empty. Unknown transports are ignored.
func (l *Logger) SetLevel(transport string, level int64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.transports {
		if transport == "" || t.name == transport {
			t.level.Store(level)
		}
	}
}

// addTransport attaches or replaces the transport with the same name
func (l *Logger) addTransport(t *transport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := slices.DeleteFunc(slices.Clone(l.transports), func(cur *transport) bool {
		return cur.name == t.name
	})
	l.transports = append(next, t)
}

// addSink registers fn for every record the logger emits
func (l *Logger) addSink(fn func(Record)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(slices.Clone(l.sinks), fn)
}
