package logstream

// Builder provides a fluent API for building a configured Registry.
// It wraps a Config instance and provides chainable methods for setting values.
type Builder struct {
	cfg  *Config
	opts []RegistryOption
	err  error // Accumulate errors for deferred handling
}

// NewBuilder creates a new builder with default configuration values.
func NewBuilder() *Builder {
	return &Builder{
		cfg: DefaultConfig(),
	}
}

// Build validates the configuration and returns a configured Registry.
func (b *Builder) Build() (*Registry, error) {
	cfg, err := b.Config()
	if err != nil {
		return nil, err
	}

	r := NewRegistry(b.opts...)
	if err := r.Configure(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// Config returns a validated copy of the built configuration.
func (b *Builder) Config() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	return b.cfg.Clone(), nil
}

// Options adds registry options applied by Build.
func (b *Builder) Options(opts ...RegistryOption) *Builder {
	b.opts = append(b.opts, opts...)
	return b
}

// Override applies "key=value" overrides, as accepted by Config.ApplyOverride.
func (b *Builder) Override(overrides ...string) *Builder {
	if b.err != nil {
		return b
	}
	b.err = b.cfg.ApplyOverride(overrides...)
	return b
}

// RootDir sets the directory relative file names resolve against.
func (b *Builder) RootDir(dir string) *Builder {
	b.cfg.RootDir = dir
	return b
}

// BufferSize sets the history capacity.
func (b *Builder) BufferSize(size int64) *Builder {
	b.cfg.BufferSize = size
	return b
}

// EnableConsole toggles the console transport.
func (b *Builder) EnableConsole(enable bool) *Builder {
	b.cfg.Console.Enabled = enable
	return b
}

// ConsoleTarget selects "stdout" or "stderr".
func (b *Builder) ConsoleTarget(target string) *Builder {
	b.cfg.Console.Target = target
	return b
}

// ConsoleLevel sets the initial console level.
func (b *Builder) ConsoleLevel(level int64) *Builder {
	b.cfg.Console.Level = level
	return b
}

// EnableFile toggles the file transport.
func (b *Builder) EnableFile(enable bool) *Builder {
	b.cfg.File.Enabled = enable
	return b
}

// Filename sets the file transport target.
func (b *Builder) Filename(name string) *Builder {
	b.cfg.File.Filename = name
	return b
}

// FileLevel sets the initial file level.
func (b *Builder) FileLevel(level int64) *Builder {
	b.cfg.File.Level = level
	return b
}

// Rotation enables daily copy-and-truncate rotation of the file.
func (b *Builder) Rotation(enable bool) *Builder {
	b.cfg.File.Rotation = enable
	return b
}

// Format sets the output format of both transports.
func (b *Builder) Format(format string) *Builder {
	b.cfg.Console.Format = format
	b.cfg.File.Format = format
	return b
}

// LevelString sets the level of both transports from a string.
func (b *Builder) LevelString(level string) *Builder {
	if b.err != nil {
		return b
	}
	levelVal, err := Level(level)
	if err != nil {
		b.err = err
		return b
	}
	b.cfg.Console.Level = levelVal
	b.cfg.File.Level = levelVal
	return b
}

// LoggerLevel sets the initial level of one transport of one logger.
func (b *Builder) LoggerLevel(name, transport string, level int64) *Builder {
	if b.cfg.Levels == nil {
		b.cfg.Levels = make(map[string]TransportLevels)
	}
	if b.cfg.Levels[name] == nil {
		b.cfg.Levels[name] = make(TransportLevels)
	}
	b.cfg.Levels[name][transport] = level
	return b
}

// Example usage:
// reg, err := logstream.NewBuilder().
//
//	RootDir("/var/log/app").
//	LevelString("debug").
//	Format("json").
//	EnableFile(true).
//	Rotation(true).
//	LoggerLevel("db", logstream.TransportConsole, logstream.LevelWarn).
//	Build()
//
// if err == nil {
//
//	 defer reg.Shutdown(time.Second)
//	 reg.Get("app").Info("Registry initialized successfully")
//
// }
