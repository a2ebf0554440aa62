package logstream

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestRegistry creates a configured registry writing console output to a
// buffer and files to a temp dir
func createTestRegistry(t *testing.T, overrides ...string) (*Registry, *bytes.Buffer, string) {
	t.Helper()
	tmpDir := t.TempDir()
	var stdout bytes.Buffer

	cfg, err := NewConfigFromDefaults(append([]string{"root_dir=" + tmpDir}, overrides...)...)
	require.NoError(t, err)

	reg := NewRegistry(WithConsoleWriters(&stdout, &stdout), WithClock(fixedClock))
	require.NoError(t, reg.Configure(cfg))
	t.Cleanup(func() { _ = reg.Shutdown(time.Second) })
	return reg, &stdout, tmpDir
}

func TestRegistryGetMemoizes(t *testing.T) {
	reg, _, _ := createTestRegistry(t)

	a := reg.Get("api")
	assert.Same(t, a, reg.Get("api"))
	assert.Same(t, reg.Get(""), reg.Get(DefaultLoggerName))
	assert.Equal(t, []string{"api", DefaultLoggerName}, reg.Names())
}

func TestRegistryGetConcurrent(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	loggers := make([]*Logger, 16)
	for i := range loggers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loggers[i] = reg.Get("shared")
		}(i)
	}
	wg.Wait()

	for _, l := range loggers {
		assert.Same(t, loggers[0], l)
	}

	// Attached to the bus exactly once
	loggers[0].Info("once")
	assert.Equal(t, 1, reg.Bus().History().Len())
}

func TestRegistryWithoutConfig(t *testing.T) {
	reg := NewRegistry()
	l := reg.Get("bare")

	assert.Empty(t, l.Transports())
	assert.Empty(t, reg.Levels("bare"))
	assert.False(t, reg.IsDebug("bare"))

	l.Info("bus only")
	assert.Equal(t, 1, reg.Bus().History().Len())
}

func TestRegistryConfigureAffectsNewLoggersOnly(t *testing.T) {
	reg := NewRegistry(WithConsoleWriters(&bytes.Buffer{}, nil))
	before := reg.Get("before")

	cfg := DefaultConfig()
	cfg.BufferSize = 7
	require.NoError(t, reg.Configure(cfg))
	after := reg.Get("after")

	assert.Empty(t, before.Transports())
	assert.Equal(t, []string{TransportConsole}, after.Transports())
	assert.Equal(t, 7, reg.Bus().History().Cap())

	// Later edits to cfg do not leak into the registry
	cfg.Console.Level = LevelError
	assert.Equal(t, LevelInfo, reg.Get("later").Levels()[TransportConsole])
}

func TestRegistryReconfigureKeepsExistingLoggers(t *testing.T) {
	reg, _, _ := createTestRegistry(t)
	worker := reg.Get("worker")

	cfg, err := NewConfigFromDefaults("console.level=error", "file.enabled=true", "file.filename=" + filepath.Join(t.TempDir(), "x.log"))
	require.NoError(t, err)
	require.NoError(t, reg.Configure(cfg))

	assert.Same(t, worker, reg.Get("worker"))
	assert.Equal(t, TransportLevels{TransportConsole: LevelInfo}, reg.Levels("worker"))
	assert.Equal(t, TransportLevels{TransportConsole: LevelError, TransportFile: LevelInfo}, reg.Levels(reg.Get("late").Name()))
}

func TestRegistryConfigureRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.Configure(nil))

	cfg := DefaultConfig()
	cfg.Console.Target = "printer"
	assert.Error(t, reg.Configure(cfg))
}

func TestRegistryLevelOverridesAtCreation(t *testing.T) {
	reg, _, _ := createTestRegistry(t,
		"file.enabled=true",
		"levels.db.file=error",
		"levels.worker.console=debug",
	)
	for _, name := range []string{"db", "worker", "other"} {
		reg.Get(name)
	}

	assert.Equal(t, TransportLevels{TransportConsole: LevelInfo, TransportFile: LevelError}, reg.Levels("db"))
	assert.Equal(t, TransportLevels{TransportConsole: LevelDebug, TransportFile: LevelInfo}, reg.Levels("worker"))
	assert.Equal(t, TransportLevels{TransportConsole: LevelInfo, TransportFile: LevelInfo}, reg.Levels("other"))

	all := reg.AllLevels()
	assert.Len(t, all, 3)
	assert.True(t, reg.IsDebug("worker"))
	assert.False(t, reg.IsDebug("db"))
	assert.False(t, reg.IsDebug("missing"))
}

func TestRegistrySetLevels(t *testing.T) {
	reg, _, _ := createTestRegistry(t, "file.enabled=true")
	reg.Get("a")
	reg.Get("b")

	reg.SetLevels(All(), LevelWarn)
	assert.Equal(t, TransportLevels{TransportConsole: LevelWarn, TransportFile: LevelWarn}, reg.Levels("a"))
	assert.Equal(t, TransportLevels{TransportConsole: LevelWarn, TransportFile: LevelWarn}, reg.Levels("b"))

	reg.SetLevels(ForLogger("a"), LevelDebug)
	assert.Equal(t, TransportLevels{TransportConsole: LevelDebug, TransportFile: LevelDebug}, reg.Levels("a"))
	assert.Equal(t, LevelWarn, reg.Levels("b")[TransportConsole])

	reg.SetLevels(ForTransport(TransportFile), LevelError)
	assert.Equal(t, LevelError, reg.Levels("a")[TransportFile])
	assert.Equal(t, LevelError, reg.Levels("b")[TransportFile])
	assert.Equal(t, LevelDebug, reg.Levels("a")[TransportConsole])

	reg.SetLevels(ForLoggerTransport("b", TransportConsole), LevelAll)
	assert.Equal(t, TransportLevels{TransportConsole: LevelAll, TransportFile: LevelError}, reg.Levels("b"))
	assert.True(t, reg.IsDebug("b"))
}

func TestRegistrySetLevelsUnknownTargets(t *testing.T) {
	reg, _, _ := createTestRegistry(t)
	reg.Get("a")
	before := reg.AllLevels()

	reg.SetLevels(ForLogger("ghost"), LevelError)
	reg.SetLevels(ForTransport("syslog"), LevelError)
	reg.SetLevels(ForTransport(""), LevelError)
	reg.SetLevels(ForLoggerTransport("a", "syslog"), LevelError)

	assert.Equal(t, before, reg.AllLevels())
	assert.NotContains(t, reg.Names(), "ghost")
}

func TestRegistryConsoleOutput(t *testing.T) {
	reg, stdout, _ := createTestRegistry(t, "console.show_timestamp=false")

	reg.Get("api").Info("started", "port", 8080)
	reg.Get("api").Debug("hidden")

	assert.Equal(t, "INFO [api] started port 8080\n", stdout.String())
}

func TestRegistryConsoleTargetStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cfg, err := NewConfigFromDefaults("console.target=stderr")
	require.NoError(t, err)

	reg := NewRegistry(WithConsoleWriters(&stdout, &stderr))
	require.NoError(t, reg.Configure(cfg))
	reg.Get("x").Warn("to stderr")

	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "to stderr")
}

func TestRegistrySharedFileSink(t *testing.T) {
	reg, _, tmpDir := createTestRegistry(t,
		"console.enabled=false",
		"file.enabled=true",
		"file.show_timestamp=false",
	)

	reg.Get("a").Info("from a")
	reg.Get("b").Info("from b")
	require.NoError(t, reg.Shutdown(time.Second))

	data, err := os.ReadFile(filepath.Join(tmpDir, DefaultFilename))
	require.NoError(t, err)
	assert.Equal(t, "INFO [a] from a\nINFO [b] from b\n", string(data))
}

func TestRegistryRelativeFilenameUsesRootDir(t *testing.T) {
	reg, _, tmpDir := createTestRegistry(t,
		"console.enabled=false",
		"file.enabled=true",
		"file.filename=logs/service.log",
	)

	reg.Get("svc").Error("written")
	_, err := os.Stat(filepath.Join(tmpDir, "logs", "service.log"))
	assert.NoError(t, err)
}

func TestRegistryRotationScheduledOncePerPath(t *testing.T) {
	reg, _, tmpDir := createTestRegistry(t,
		"console.enabled=false",
		"file.enabled=true",
		"file.rotation=true",
	)

	reg.Get("a")
	reg.Get("b")

	chains := reg.Rotations().Chains()
	require.Len(t, chains, 1)
	assert.Equal(t, filepath.Join(tmpDir, DefaultFilename), chains[0].Path())
}

func TestRegistryShutdown(t *testing.T) {
	reg, _, _ := createTestRegistry(t,
		"console.enabled=false",
		"file.enabled=true",
		"file.rotation=true",
	)
	reg.Get("a").Info("before")
	chain := reg.Rotations().Chains()[0]

	require.NoError(t, reg.Shutdown(time.Second))
	assert.True(t, chain.Stopped())
	assert.Empty(t, reg.Rotations().Chains())

	// Writes after shutdown are dropped, not raised
	assert.NotPanics(t, func() { reg.Get("a").Info("after") })
	assert.NoError(t, reg.Shutdown(time.Second))
}

func TestRegistryFileOpenFailure(t *testing.T) {
	tmpDir := t.TempDir()
	blocker := filepath.Join(tmpDir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	cfg, err := NewConfigFromDefaults(
		"console.enabled=false",
		"file.enabled=true",
		"file.filename="+filepath.Join(blocker, "app.log"),
	)
	require.NoError(t, err)

	reg := NewRegistry()
	require.NoError(t, reg.Configure(cfg))

	l := reg.Get("x")
	assert.Empty(t, l.Transports())
	assert.NotPanics(t, func() { l.Info("bus still works") })
	assert.True(t, strings.HasPrefix(reg.Bus().History().Last(1)[0].Message, "bus still"))
}

func TestRegistryFilteredRecordsDoNotEvictHistory(t *testing.T) {
	reg, stdout, _ := createTestRegistry(t, "buffer_size=3", "console.level=warn")
	l := reg.Get("api")

	l.Error("important")
	for i := 0; i < 3; i++ {
		l.Debug("noise")
	}

	assert.Equal(t, []string{"important"}, messages(reg.Bus().History().Snapshot()))
	assert.Equal(t, uint64(1), reg.Bus().Stats().Published)
	assert.NotContains(t, stdout.String(), "noise")

	// Lowering the level lets the same traffic through
	reg.SetLevels(ForLogger("api"), LevelDebug)
	l.Debug("noise")
	assert.Equal(t, []string{"important", "noise"}, messages(reg.Bus().History().Snapshot()))
}

// blockedFileConfig points the file output below a regular file so opening it fails
func blockedFileConfig(t *testing.T, overrides ...string) *Config {
	t.Helper()
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	cfg, err := NewConfigFromDefaults(append([]string{
		"console.enabled=false",
		"file.enabled=true",
		"file.filename=" + filepath.Join(blocker, "app.log"),
	}, overrides...)...)
	require.NoError(t, err)
	return cfg
}

func TestRegistryDiagnosticsArePerRegistry(t *testing.T) {
	var loudErr, quietErr bytes.Buffer
	loud := NewRegistry(WithConsoleWriters(nil, &loudErr))
	quiet := NewRegistry(WithConsoleWriters(nil, &quietErr))

	require.NoError(t, loud.Configure(blockedFileConfig(t, "internal_errors_to_stderr=true")))
	require.NoError(t, quiet.Configure(blockedFileConfig(t, "internal_errors_to_stderr=false")))

	loud.Get("a")
	quiet.Get("a")

	assert.Contains(t, loudErr.String(), "logger 'a': file output disabled")
	assert.Empty(t, quietErr.String())

	// Configuring another registry later does not silence this one
	require.NoError(t, NewRegistry().Configure(DefaultConfig()))
	loud.Get("b")
	assert.Contains(t, loudErr.String(), "logger 'b': file output disabled")
}

func TestRegistryFileOutputAfterShutdown(t *testing.T) {
	reg, stdout, tmpDir := createTestRegistry(t,
		"console.enabled=false",
		"file.enabled=true",
		"file.rotation=true",
		"internal_errors_to_stderr=true",
	)
	reg.Get("early").Info("kept")
	require.NoError(t, reg.Shutdown(time.Second))

	// The rotation chain cannot be started, so the file output is not attached
	late := reg.Get("late")
	assert.Empty(t, late.Transports())
	assert.Contains(t, stdout.String(), "logger 'late': file output disabled")

	reg.mu.Lock()
	assert.Empty(t, reg.files, "no sink left open")
	reg.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(tmpDir, DefaultFilename))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "INFO [early] kept\n"))
}
