package logstream

import (
	"time"
)

// Record is a single log entry as seen by the event bus and its subscribers.
// Records are immutable once published.
type Record struct {
	Source     string    // Name of the emitting logger
	Level      int64     // Severity of the record
	Message    string    // Primary message
	Args       []any     // Metadata, errors already reduced to their message
	Transports []string  // Transports that accepted the record
	Time       time.Time // Emission time
}

// Timestamp returns the emission time in unix milliseconds
func (r Record) Timestamp() int64 {
	return r.Time.UnixMilli()
}

// clone returns a copy that shares no mutable slices or maps with r
func (r Record) clone() Record {
	c := r
	c.Args = normalizeArgs(r.Args)
	if r.Transports != nil {
		c.Transports = append([]string(nil), r.Transports...)
	}
	return c
}

// normalizeArgs copies args, replacing errors by their message and cloning
// nested maps and slices so the caller cannot mutate stored metadata.
func normalizeArgs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, len(args))
	for i, arg := range args {
		out[i] = normalizeValue(arg)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case error:
		return val.Error()
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = normalizeValue(item)
		}
		return m
	case []any:
		return normalizeArgs(val)
	case []byte:
		return append([]byte(nil), val...)
	default:
		return v
	}
}
