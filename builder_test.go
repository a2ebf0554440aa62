package logstream

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	t.Run("successful build returns configured registry", func(t *testing.T) {
		tmpDir := t.TempDir()
		var stdout bytes.Buffer

		reg, err := NewBuilder().
			RootDir(tmpDir).
			LevelString("debug").
			Format("json").
			BufferSize(64).
			EnableFile(true).
			Filename("svc.log").
			FileLevel(LevelWarn).
			LoggerLevel("db", TransportConsole, LevelError).
			Options(WithConsoleWriters(&stdout, nil)).
			Build()
		require.NoError(t, err)
		defer reg.Shutdown(time.Second)

		assert.Equal(t, 64, reg.Bus().History().Cap())
		assert.Equal(t, TransportLevels{TransportConsole: LevelDebug, TransportFile: LevelWarn}, reg.Get("app").Levels())
		assert.Equal(t, LevelError, reg.Get("db").Levels()[TransportConsole])

		reg.Get("app").Debug("visible on console")
		assert.Contains(t, stdout.String(), `"message":"visible on console"`)
	})

	t.Run("builder error accumulation", func(t *testing.T) {
		reg, err := NewBuilder().
			LevelString("invalid-level-string").
			RootDir("/some/dir").
			Build()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid level string")
		assert.Nil(t, reg)
	})

	t.Run("validation failure", func(t *testing.T) {
		_, err := NewBuilder().ConsoleTarget("printer").Build()
		assert.Error(t, err)
	})

	t.Run("override errors stop the build", func(t *testing.T) {
		_, err := NewBuilder().Override("bogus=1").EnableConsole(false).Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown config key")
	})
}

func TestBuilder_Config(t *testing.T) {
	b := NewBuilder().EnableConsole(false).ConsoleLevel(LevelWarn).Rotation(true)
	cfg, err := b.Config()
	require.NoError(t, err)

	assert.False(t, cfg.Console.Enabled)
	assert.Equal(t, LevelWarn, cfg.Console.Level)
	assert.True(t, cfg.File.Rotation)

	// The returned config is a copy
	cfg.Console.Enabled = true
	again, err := b.Config()
	require.NoError(t, err)
	assert.False(t, again.Console.Enabled)
}
