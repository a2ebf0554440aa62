package compat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lixenwraith/logstream"
)

// keyValuePattern detects "key=%v" or "key: %v" verbs in printf-style formats
var keyValuePattern = regexp.MustCompile(`(\w+)\s*[:=]\s*%[vsdqxXeEfFgGpbcU]`)

// parseFormat splits a printf-style format into a message and key/value fields.
// Formats without key/value verbs are rendered whole as the message.
func parseFormat(format string, args []any) (string, []any) {
	matches := keyValuePattern.FindAllStringSubmatchIndex(format, -1)
	if len(matches) == 0 || len(matches) > len(args) {
		return fmt.Sprintf(format, args...), nil
	}

	var msg string
	fields := make([]any, 0, len(matches)*2)
	lastEnd := 0

	for i, match := range matches {
		if match[0] > lastEnd && msg == "" {
			msg = strings.TrimSpace(format[lastEnd:match[0]])
		}
		fields = append(fields, format[match[2]:match[3]], args[i])
		lastEnd = match[1]
	}

	// Trailing text and its verbs extend the message
	if lastEnd < len(format) {
		remaining := format[lastEnd:]
		if rest := args[len(matches):]; len(rest) > 0 {
			remaining = fmt.Sprintf(remaining, rest...)
		}
		if remaining = strings.TrimSpace(remaining); remaining != "" {
			if msg == "" {
				msg = remaining
			} else {
				msg = msg + " " + remaining
			}
		}
	}

	return msg, fields
}

// StructuredGnetAdapter provides enhanced structured logging for gnet
type StructuredGnetAdapter struct {
	*GnetAdapter
	extractFields bool
}

// NewStructuredGnetAdapter creates a gnet adapter with structured field extraction
func NewStructuredGnetAdapter(logger *logstream.Logger, opts ...GnetOption) *StructuredGnetAdapter {
	return &StructuredGnetAdapter{
		GnetAdapter:   NewGnetAdapter(logger, opts...),
		extractFields: true,
	}
}

func (a *StructuredGnetAdapter) logf(level int64, format string, args []any) {
	msg, fields := parseFormat(format, args)
	a.logger.Log(level, msg, append(fields, "source", "gnet")...)
}

// Debugf logs with structured field extraction
func (a *StructuredGnetAdapter) Debugf(format string, args ...any) {
	if !a.extractFields {
		a.GnetAdapter.Debugf(format, args...)
		return
	}
	a.logf(logstream.LevelDebug, format, args)
}

// Infof logs with structured field extraction
func (a *StructuredGnetAdapter) Infof(format string, args ...any) {
	if !a.extractFields {
		a.GnetAdapter.Infof(format, args...)
		return
	}
	a.logf(logstream.LevelInfo, format, args)
}

// Warnf logs with structured field extraction
func (a *StructuredGnetAdapter) Warnf(format string, args ...any) {
	if !a.extractFields {
		a.GnetAdapter.Warnf(format, args...)
		return
	}
	a.logf(logstream.LevelWarn, format, args)
}

// Errorf logs with structured field extraction
func (a *StructuredGnetAdapter) Errorf(format string, args ...any) {
	if !a.extractFields {
		a.GnetAdapter.Errorf(format, args...)
		return
	}
	a.logf(logstream.LevelError, format, args)
}
