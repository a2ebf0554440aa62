package logstream

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected int64
		wantErr  bool
	}{
		{"all", LevelAll, false},
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{" info ", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := Level(tt.input)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, level)
			}
		})
	}
}

func TestLevelName(t *testing.T) {
	assert.Equal(t, "all", LevelName(LevelAll))
	assert.Equal(t, "warn", LevelName(LevelWarn))
	assert.Equal(t, "level(3)", LevelName(3))
	assert.Equal(t, "ERROR", levelToString(LevelError))

	// Level and LevelName round-trip
	for _, l := range []int64{LevelAll, LevelDebug, LevelInfo, LevelWarn, LevelError} {
		got, err := Level(LevelName(l))
		assert.NoError(t, err)
		assert.Equal(t, l, got)
	}
}

func TestParseKeyValue(t *testing.T) {
	tests := []struct {
		input     string
		wantKey   string
		wantValue string
		wantErr   bool
	}{
		{"key=value", "key", "value", false},
		{" key = value ", "key", "value", false},
		{"key=value=with=equals", "key", "value=with=equals", false},
		{"noequals", "", "", true},
		{"=value", "", "", true},
		{"key=", "key", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			key, value, err := parseKeyValue(tt.input)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantKey, key)
				assert.Equal(t, tt.wantValue, value)
			}
		})
	}
}

func TestFmtErrorf(t *testing.T) {
	err := fmtErrorf("test error: %s", "details")
	assert.Error(t, err)
	assert.Equal(t, "logstream: test error: details", err.Error())

	// Already prefixed
	err = fmtErrorf("logstream: already prefixed")
	assert.Equal(t, "logstream: already prefixed", err.Error())
}

func TestCombineErrors(t *testing.T) {
	a := fmtErrorf("first")
	b := fmtErrorf("second")

	assert.Nil(t, combineErrors(nil, nil))
	assert.Equal(t, a, combineErrors(a, nil))
	assert.Equal(t, b, combineErrors(nil, b))
	assert.Equal(t, "logstream: first; logstream: second", combineErrors(a, b).Error())
}

func TestResolvePath(t *testing.T) {
	root := t.TempDir()

	assert.Equal(t, filepath.Join(root, "app.log"), resolvePath(root, ""))
	assert.Equal(t, filepath.Join(root, "logs", "x.log"), resolvePath(root, "logs/x.log"))
	assert.Equal(t, "/abs/x.log", resolvePath(root, "/abs/../abs/x.log"))
}
