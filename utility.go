package logstream

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// diagnostics gates the internal error output of one registry, enabled from
// Config.InternalErrorsToStderr. A nil *diagnostics discards everything.
type diagnostics struct {
	enabled atomic.Bool
	w       io.Writer
}

func newDiagnostics(w io.Writer) *diagnostics {
	if w == nil {
		w = os.Stderr
	}
	return &diagnostics{w: w}
}

// fmtErrorf wrapper
func fmtErrorf(format string, args ...any) error {
	if !strings.HasPrefix(format, "logstream: ") {
		format = "logstream: " + format
	}
	return fmt.Errorf(format, args...)
}

// combineErrors helper
func combineErrors(err1, err2 error) error {
	if err1 == nil {
		return err2
	}
	if err2 == nil {
		return err1
	}
	return fmt.Errorf("%v; %w", err1, err2)
}

// internalLog handles writing internal diagnostics, if enabled.
func (d *diagnostics) internalLog(format string, args ...any) {
	if d == nil || !d.enabled.Load() {
		return
	}
	if !strings.HasPrefix(format, "logstream: ") {
		format = "logstream: " + format
	}
	fmt.Fprintf(d.w, format, args...)
}

// parseKeyValue splits a "key=value" string.
func parseKeyValue(arg string) (string, string, error) {
	parts := strings.SplitN(strings.TrimSpace(arg), "=", 2)
	if len(parts) != 2 {
		return "", "", fmtErrorf("invalid format in override string '%s', expected key=value", arg)
	}
	key := strings.TrimSpace(parts[0])
	value := strings.TrimSpace(parts[1])
	if key == "" {
		return "", "", fmtErrorf("key cannot be empty in override string '%s'", arg)
	}
	return key, value, nil
}

// Level converts level string to numeric constant.
func Level(levelStr string) (int64, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "all":
		return LevelAll, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return 0, fmtErrorf("invalid level string: '%s' (use all, debug, info, warn, error)", levelStr)
	}
}

// LevelName returns the lowercase name of a level, as accepted by Level
func LevelName(level int64) string {
	return strings.ToLower(levelToString(level))
}

func levelToString(level int64) string {
	switch level {
	case LevelAll:
		return "ALL"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", level)
	}
}

// ensureDirectory creates the parent directory of a file path
func ensureDirectory(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmtErrorf("failed to create log directory '%s': %w", dir, err)
	}
	return nil
}

// resolvePath makes a relative filename absolute against root
func resolvePath(root, filename string) string {
	if filename == "" {
		filename = DefaultFilename
	}
	if filepath.IsAbs(filename) {
		return filepath.Clean(filename)
	}
	if root == "" {
		if wd, err := os.Getwd(); err == nil {
			root = wd
		}
	}
	abs, err := filepath.Abs(filepath.Join(root, filename))
	if err != nil {
		return filepath.Join(root, filename)
	}
	return abs
}
