package logstream

import (
	"context"
	"io"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Registry maps logger names to configured Logger instances and owns the
// shared event bus, file sinks and rotation chains. Create one per
// application and pass it to the components that log.
type Registry struct {
	mu      sync.Mutex
	loggers map[string]*Logger
	files   map[string]*fileSink // Shared sinks by absolute path
	config  atomic.Pointer[Config]

	bus       *Bus
	scheduler *Scheduler
	rootDir   string
	now       func() time.Time
	stdout    io.Writer
	stderr    io.Writer
	diag      *diagnostics
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithBus uses an existing bus instead of creating one
func WithBus(b *Bus) RegistryOption {
	return func(r *Registry) {
		if b != nil {
			r.bus = b
		}
	}
}

// WithRootDir sets the directory relative file names resolve against when
// the configuration does not name one
func WithRootDir(dir string) RegistryOption {
	return func(r *Registry) {
		r.rootDir = dir
	}
}

// WithClock overrides the time source of created loggers
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithConsoleWriters redirects the console transport targets
func WithConsoleWriters(stdout, stderr io.Writer) RegistryOption {
	return func(r *Registry) {
		if stdout != nil {
			r.stdout = stdout
		}
		if stderr != nil {
			r.stderr = stderr
		}
	}
}

// WithScheduler uses a preconfigured rotation scheduler
func WithScheduler(s *Scheduler) RegistryOption {
	return func(r *Registry) {
		if s != nil {
			r.scheduler = s
		}
	}
}

// NewRegistry creates an unconfigured registry. Loggers obtained before
// Configure are bare: they only feed the bus.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		loggers: make(map[string]*Logger),
		files:   make(map[string]*fileSink),
		now:     time.Now,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.diag = newDiagnostics(r.stderr)
	if r.bus == nil {
		r.bus = NewBus(DefaultHistorySize)
	}
	r.bus.setDiagnostics(r.diag)
	if r.scheduler == nil {
		r.scheduler = NewScheduler(WithReporter(r.fileToolLogger), withDiagnostics(r.diag))
	}
	return r
}

// Bus returns the shared event bus
func (r *Registry) Bus() *Bus {
	return r.bus
}

// Rotations returns the scheduler running daily rotation chains
func (r *Registry) Rotations() *Scheduler {
	return r.scheduler
}

// Configure stores the settings used for loggers created from now on.
// Existing loggers are not reconfigured. A positive BufferSize resizes the
// bus history.
func (r *Registry) Configure(cfg *Config) error {
	if cfg == nil {
		return fmtErrorf("configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmtErrorf("invalid configuration: %w", err)
	}
	c := cfg.Clone()
	r.config.Store(c)
	r.diag.enabled.Store(c.InternalErrorsToStderr)

	if c.BufferSize > 0 {
		r.bus.SetHistorySize(int(c.BufferSize))
	}
	return nil
}

// Get returns the logger named name, creating and configuring it on first
// use. An empty name selects "default".
func (r *Registry) Get(name string) *Logger {
	if name == "" {
		name = DefaultLoggerName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.loggers[name]; ok {
		return l
	}

	l := newLogger(name, r.now, r.diag)
	r.bus.Attach(l)
	r.loggers[name] = l

	cfg := r.config.Load()
	if cfg == nil {
		return l
	}

	if cfg.Console.Enabled {
		r.addConsoleOutput(l, cfg)
	}
	if cfg.File.Enabled {
		if err := r.addFileOutput(l, cfg); err != nil {
			r.diag.internalLog("logger '%s': file output disabled: %v\n", name, err)
		}
	}
	return l
}

// Names returns the known logger names, sorted
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.loggers))
	for name := range r.loggers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Levels returns the transport levels of one logger, empty if unknown
func (r *Registry) Levels(name string) TransportLevels {
	if l := r.lookup(name); l != nil {
		return l.Levels()
	}
	return TransportLevels{}
}

// AllLevels returns the transport levels of every known logger
func (r *Registry) AllLevels() map[string]TransportLevels {
	all := make(map[string]TransportLevels)
	for _, l := range r.snapshot() {
		all[l.Name()] = l.Levels()
	}
	return all
}

// SetLevels sets level on the transports picked by sel. Unknown loggers
// and transports are ignored.
func (r *Registry) SetLevels(sel Selector, level int64) {
	if (sel.Scope == ScopeTransport || sel.Scope == ScopeLoggerTransport) && sel.Transport == "" {
		return
	}

	var targets []*Logger
	if sel.matchesAllLoggers() {
		targets = r.snapshot()
	} else if l := r.lookup(sel.Logger); l != nil {
		targets = []*Logger{l}
	}

	for _, l := range targets {
		l.SetLevel(sel.transport(), level)
	}
}

// IsDebug reports whether the named logger has any transport at debug or all
func (r *Registry) IsDebug(name string) bool {
	if l := r.lookup(name); l != nil {
		return l.IsDebug()
	}
	return false
}

// Shutdown stops every rotation chain and closes the file sinks
func (r *Registry) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	finalErr := r.scheduler.Stop(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	for path, fs := range r.files {
		if err := fs.Close(); err != nil {
			finalErr = combineErrors(finalErr, err)
		}
		delete(r.files, path)
	}
	return finalErr
}

// lookup returns an existing logger without creating one
func (r *Registry) lookup(name string) *Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loggers[name]
}

// snapshot returns all loggers ordered by name
func (r *Registry) snapshot() []*Logger {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Logger, 0, len(r.loggers))
	for _, l := range r.loggers {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b *Logger) int {
		switch {
		case a.name < b.name:
			return -1
		case a.name > b.name:
			return 1
		}
		return 0
	})
	return out
}

// fileToolLogger resolves the logger receiving rotation failures
func (r *Registry) fileToolLogger() *Logger {
	return r.Get(FileToolLoggerName)
}

// addConsoleOutput attaches the console transport, caller holds r.mu
func (r *Registry) addConsoleOutput(l *Logger, cfg *Config) {
	w := r.stdout
	if cfg.Console.Target == "stderr" {
		w = r.stderr
	}
	oc := cfg.Console
	if level, ok := cfg.Levels[l.name][TransportConsole]; ok {
		oc.Level = level
	}
	l.addTransport(newTransport(TransportConsole, &oc, w))
}

// addFileOutput attaches the file transport, sharing one sink per path and
// starting its rotation chain once. Caller holds r.mu.
func (r *Registry) addFileOutput(l *Logger, cfg *Config) error {
	root := cfg.RootDir
	if root == "" {
		root = r.rootDir
	}
	path := resolvePath(root, cfg.File.Filename)

	fs, ok := r.files[path]
	if !ok {
		var err error
		if fs, err = openFileSink(path); err != nil {
			return err
		}
		r.files[path] = fs
	}

	if cfg.File.Rotation {
		if _, err := r.scheduler.schedule(path, fs); err != nil {
			if !ok {
				delete(r.files, path)
				err = combineErrors(err, fs.Close())
			}
			return err
		}
	}

	oc := cfg.File
	if level, ok := cfg.Levels[l.name][TransportFile]; ok {
		oc.Level = level
	}
	l.addTransport(newTransport(TransportFile, &oc, fs))
	return nil
}
