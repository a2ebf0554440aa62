package logstream

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
)

// serializer manages the buffered writing of log entries. Not safe for
// concurrent use; each transport owns one.
type serializer struct {
	buf             []byte
	timestampFormat string
}

// newSerializer creates a serializer instance.
func newSerializer(timestampFormat string) *serializer {
	s := &serializer{buf: make([]byte, 0, 1024)}
	s.setTimestampFormat(timestampFormat)
	return s
}

// reset clears the serializer buffer for reuse.
func (s *serializer) reset() {
	s.buf = s.buf[:0]
}

// serialize converts a record to the configured format, json, raw, or (default) txt.
func (s *serializer) serialize(format string, flags int64, r Record) []byte {
	s.reset()

	if flags&FlagRaw != 0 || format == "raw" {
		return s.serializeRaw(r)
	}
	if format == "json" {
		return s.serializeJSON(flags, r)
	}
	return s.serializeTxt(flags, r)
}

// AppendJSON appends r to dst as a JSON line with time, level and label.
// An empty timestampFormat selects RFC3339Nano.
func AppendJSON(dst []byte, r Record, timestampFormat string) []byte {
	s := &serializer{buf: dst}
	s.setTimestampFormat(timestampFormat)
	return s.serializeJSON(FlagDefault, r)
}

// serializeRaw formats message and args as space-separated strings without metadata or newline.
func (s *serializer) serializeRaw(r Record) []byte {
	s.buf = append(s.buf, r.Message...)
	for _, arg := range r.Args {
		s.buf = append(s.buf, ' ')
		s.writeRawValue(arg)
	}
	return s.buf
}

// writeRawValue converts any value to its raw string representation,
// falling back to go-spew for types that are not explicitly supported.
func (s *serializer) writeRawValue(v any) {
	switch val := v.(type) {
	case string:
		s.buf = append(s.buf, val...)
	case int:
		s.buf = strconv.AppendInt(s.buf, int64(val), 10)
	case int64:
		s.buf = strconv.AppendInt(s.buf, val, 10)
	case uint64:
		s.buf = strconv.AppendUint(s.buf, val, 10)
	case float64:
		s.buf = strconv.AppendFloat(s.buf, val, 'f', -1, 64)
	case bool:
		s.buf = strconv.AppendBool(s.buf, val)
	case nil:
		s.buf = append(s.buf, "nil"...)
	case time.Time:
		s.buf = val.AppendFormat(s.buf, s.timestampFormat)
	case fmt.Stringer:
		s.buf = append(s.buf, val.String()...)
	case []byte:
		s.buf = hex.AppendEncode(s.buf, val)
	default:
		var b bytes.Buffer
		dumper := &spew.ConfigState{
			Indent:                  " ",
			MaxDepth:                10,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		}
		dumper.Fdump(&b, val)
		s.buf = append(s.buf, bytes.TrimSpace(b.Bytes())...)
	}
}

// serializeTxt formats a record as a plain text line: time, level, [label], message, args.
func (s *serializer) serializeTxt(flags int64, r Record) []byte {
	needsSpace := false

	if flags&FlagShowTimestamp != 0 {
		s.buf = r.Time.AppendFormat(s.buf, s.timestampFormat)
		needsSpace = true
	}

	if flags&FlagShowLevel != 0 {
		if needsSpace {
			s.buf = append(s.buf, ' ')
		}
		s.buf = append(s.buf, levelToString(r.Level)...)
		needsSpace = true
	}

	if flags&FlagShowLabel != 0 && r.Source != "" {
		if needsSpace {
			s.buf = append(s.buf, ' ')
		}
		s.buf = append(s.buf, '[')
		s.buf = append(s.buf, r.Source...)
		s.buf = append(s.buf, ']')
		needsSpace = true
	}

	if needsSpace {
		s.buf = append(s.buf, ' ')
	}
	s.buf = append(s.buf, r.Message...)

	for _, arg := range r.Args {
		s.buf = append(s.buf, ' ')
		s.writeTxtValue(arg)
	}

	s.buf = append(s.buf, '\n')
	return s.buf
}

// writeTxtValue converts any value to its txt representation.
func (s *serializer) writeTxtValue(v any) {
	switch val := v.(type) {
	case string:
		s.writeTxtString(val)
	case int:
		s.buf = strconv.AppendInt(s.buf, int64(val), 10)
	case int64:
		s.buf = strconv.AppendInt(s.buf, val, 10)
	case uint64:
		s.buf = strconv.AppendUint(s.buf, val, 10)
	case float64:
		s.buf = strconv.AppendFloat(s.buf, val, 'f', -1, 64)
	case bool:
		s.buf = strconv.AppendBool(s.buf, val)
	case nil:
		s.buf = append(s.buf, "null"...)
	case time.Time:
		s.buf = val.AppendFormat(s.buf, s.timestampFormat)
	case fmt.Stringer:
		s.writeTxtString(val.String())
	default:
		s.writeTxtString(fmt.Sprintf("%+v", val))
	}
}

// writeTxtString quotes strings that would break field separation
func (s *serializer) writeTxtString(str string) {
	if len(str) == 0 || strings.ContainsAny(str, " \n\r\t\"") {
		s.buf = append(s.buf, '"')
		s.writeString(str)
		s.buf = append(s.buf, '"')
		return
	}
	s.buf = append(s.buf, str...)
}

// serializeJSON formats a record as a JSON object line.
func (s *serializer) serializeJSON(flags int64, r Record) []byte {
	s.buf = append(s.buf, '{')

	if flags&FlagShowTimestamp != 0 {
		s.buf = append(s.buf, `"time":"`...)
		s.buf = r.Time.AppendFormat(s.buf, s.timestampFormat)
		s.buf = append(s.buf, `",`...)
	}

	if flags&FlagShowLevel != 0 {
		s.buf = append(s.buf, `"level":"`...)
		s.buf = append(s.buf, levelToString(r.Level)...)
		s.buf = append(s.buf, `",`...)
	}

	if flags&FlagShowLabel != 0 && r.Source != "" {
		s.buf = append(s.buf, `"label":"`...)
		s.writeString(r.Source)
		s.buf = append(s.buf, `",`...)
	}

	s.buf = append(s.buf, `"message":"`...)
	s.writeString(r.Message)
	s.buf = append(s.buf, '"')

	if len(r.Args) > 0 {
		s.buf = append(s.buf, `,"fields":[`...)
		for i, arg := range r.Args {
			if i > 0 {
				s.buf = append(s.buf, ',')
			}
			s.writeJSONValue(arg)
		}
		s.buf = append(s.buf, ']')
	}

	s.buf = append(s.buf, '}', '\n')
	return s.buf
}

// writeJSONValue converts any value to its JSON representation.
func (s *serializer) writeJSONValue(v any) {
	switch val := v.(type) {
	case string:
		s.buf = append(s.buf, '"')
		s.writeString(val)
		s.buf = append(s.buf, '"')
	case int:
		s.buf = strconv.AppendInt(s.buf, int64(val), 10)
	case int64:
		s.buf = strconv.AppendInt(s.buf, val, 10)
	case uint64:
		s.buf = strconv.AppendUint(s.buf, val, 10)
	case float64:
		s.buf = strconv.AppendFloat(s.buf, val, 'f', -1, 64)
	case bool:
		s.buf = strconv.AppendBool(s.buf, val)
	case nil:
		s.buf = append(s.buf, "null"...)
	case time.Time:
		s.buf = append(s.buf, '"')
		s.buf = val.AppendFormat(s.buf, s.timestampFormat)
		s.buf = append(s.buf, '"')
	case map[string]any:
		s.buf = append(s.buf, '{')
		first := true
		for _, k := range sortedKeys(val) {
			if !first {
				s.buf = append(s.buf, ',')
			}
			first = false
			s.buf = append(s.buf, '"')
			s.writeString(k)
			s.buf = append(s.buf, '"', ':')
			s.writeJSONValue(val[k])
		}
		s.buf = append(s.buf, '}')
	case fmt.Stringer:
		s.buf = append(s.buf, '"')
		s.writeString(val.String())
		s.buf = append(s.buf, '"')
	default:
		s.buf = append(s.buf, '"')
		s.writeString(fmt.Sprintf("%+v", val))
		s.buf = append(s.buf, '"')
	}
}

// sortedKeys gives map output a stable order
func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

const hexChars = "0123456789abcdef"

// writeString appends a string to the buffer, escaping JSON special characters.
func (s *serializer) writeString(str string) {
	lenStr := len(str)
	for i := 0; i < lenStr; {
		if c := str[i]; c < ' ' || c == '"' || c == '\\' {
			switch c {
			case '\\', '"':
				s.buf = append(s.buf, '\\', c)
			case '\n':
				s.buf = append(s.buf, '\\', 'n')
			case '\r':
				s.buf = append(s.buf, '\\', 'r')
			case '\t':
				s.buf = append(s.buf, '\\', 't')
			default:
				s.buf = append(s.buf, `\u00`...)
				s.buf = append(s.buf, hexChars[c>>4], hexChars[c&0xF])
			}
			i++
		} else {
			start := i
			for i < lenStr && str[i] >= ' ' && str[i] != '"' && str[i] != '\\' {
				i++
			}
			s.buf = append(s.buf, str[start:i]...)
		}
	}
}

// setTimestampFormat updates the cached layout
func (s *serializer) setTimestampFormat(format string) {
	if format == "" {
		format = time.RFC3339Nano
	}
	s.timestampFormat = format
}
