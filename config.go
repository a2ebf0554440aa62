package logstream

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"time"

	"github.com/lixenwraith/config"
)

// OutputConfig holds the options of one transport
type OutputConfig struct {
	Enabled         bool   `toml:"enabled"`
	Level           int64  `toml:"level"`
	Format          string `toml:"format"` // "txt", "json", or "raw"
	TimestampFormat string `toml:"timestamp_format"`
	ShowTimestamp   bool   `toml:"show_timestamp"`
	ShowLevel       bool   `toml:"show_level"`
	ShowLabel       bool   `toml:"show_label"` // Prefix records with [logger name]

	// Console only
	Target string `toml:"target"` // "stdout" or "stderr"

	// File only
	Filename string `toml:"filename"` // Relative names resolve against Config.RootDir
	Rotation bool   `toml:"rotation"` // Daily copy-and-truncate rotation
}

// Config holds the registry settings. Changes only affect loggers created
// after Registry.Configure.
type Config struct {
	BufferSize             int64  `toml:"buffer_size"` // History capacity, 0 keeps the current one
	RootDir                string `toml:"root_dir"`    // Application root for relative file names
	InternalErrorsToStderr bool   `toml:"internal_errors_to_stderr"`

	Console OutputConfig
	File    OutputConfig

	// Per-logger initial levels, applied at logger creation only
	Levels map[string]TransportLevels
}

// settingsKeys is the flat top-level key set registered with the loader
type settingsKeys struct {
	BufferSize             int64  `toml:"buffer_size"`
	RootDir                string `toml:"root_dir"`
	InternalErrorsToStderr bool   `toml:"internal_errors_to_stderr"`
	Levels                 string `toml:"levels"` // "name.transport=level,..."
}

// configPrefix is the root key of the package settings in a config file
const configPrefix = "logstream."

// defaultConfig is the single source for all configurable default values
var defaultConfig = Config{
	BufferSize: DefaultHistorySize,
	Console: OutputConfig{
		Enabled:         true,
		Level:           LevelInfo,
		Format:          "txt",
		TimestampFormat: time.RFC3339Nano,
		ShowTimestamp:   true,
		ShowLevel:       true,
		ShowLabel:       true,
		Target:          "stdout",
	},
	File: OutputConfig{
		Enabled:         false,
		Level:           LevelInfo,
		Format:          "txt",
		TimestampFormat: time.RFC3339Nano,
		ShowTimestamp:   true,
		ShowLevel:       true,
		ShowLabel:       true,
		Filename:        DefaultFilename,
		Rotation:        false,
	},
}

// DefaultConfig returns a copy of the default configuration
func DefaultConfig() *Config {
	return defaultConfig.Clone()
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	copied := *c
	if c.Levels != nil {
		copied.Levels = make(map[string]TransportLevels, len(c.Levels))
		for name, levels := range c.Levels {
			copied.Levels[name] = maps.Clone(levels)
		}
	}
	return &copied
}

// NewConfigFromFile loads configuration from a TOML file with optional CLI
// overrides and returns a validated Config. A missing file yields defaults.
func NewConfigFromFile(path string, args []string) (*Config, error) {
	cfg := DefaultConfig()
	keys := settingsKeys{
		BufferSize:             cfg.BufferSize,
		RootDir:                cfg.RootDir,
		InternalErrorsToStderr: cfg.InternalErrorsToStderr,
	}

	loader := config.New()
	if err := loader.RegisterStruct(configPrefix, keys); err != nil {
		return nil, fmtErrorf("failed to register config struct: %w", err)
	}
	if err := loader.RegisterStruct(configPrefix+"console.", cfg.Console); err != nil {
		return nil, fmtErrorf("failed to register console config: %w", err)
	}
	if err := loader.RegisterStruct(configPrefix+"file.", cfg.File); err != nil {
		return nil, fmtErrorf("failed to register file config: %w", err)
	}

	if err := loader.Load(path, args); err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, fmtErrorf("failed to load config from %s: %w", path, err)
	}

	if err := extractConfig(loader, configPrefix, &keys); err != nil {
		return nil, fmtErrorf("failed to extract config values: %w", err)
	}
	if err := extractConfig(loader, configPrefix+"console.", &cfg.Console); err != nil {
		return nil, fmtErrorf("failed to extract console config: %w", err)
	}
	if err := extractConfig(loader, configPrefix+"file.", &cfg.File); err != nil {
		return nil, fmtErrorf("failed to extract file config: %w", err)
	}

	cfg.BufferSize = keys.BufferSize
	cfg.RootDir = keys.RootDir
	cfg.InternalErrorsToStderr = keys.InternalErrorsToStderr
	if keys.Levels != "" {
		levels, err := parseLevelOverrides(keys.Levels)
		if err != nil {
			return nil, err
		}
		cfg.Levels = levels
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigFromDefaults creates a Config with default values and applies
// key=value overrides
func NewConfigFromDefaults(overrides ...string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.ApplyOverride(overrides...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// extractConfig copies values found by the loader into the tagged fields of target
func extractConfig(loader *config.Config, prefix string, target any) error {
	v := reflect.ValueOf(target).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tomlTag := field.Tag.Get("toml")
		if tomlTag == "" {
			continue
		}

		val, found := loader.Get(prefix + tomlTag)
		if !found {
			continue // Use default value
		}

		if err := setFieldValue(v.Field(i), val); err != nil {
			return fmt.Errorf("failed to set field %s: %w", field.Name, err)
		}
	}
	return nil
}

// setFieldValue sets a reflect.Value with proper type conversion
func setFieldValue(field reflect.Value, value any) error {
	switch field.Kind() {
	case reflect.String:
		strVal, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		field.SetString(strVal)

	case reflect.Int64:
		switch v := value.(type) {
		case int64:
			field.SetInt(v)
		case int:
			field.SetInt(int64(v))
		case string:
			// Levels may be written by name
			level, err := Level(v)
			if err != nil {
				return err
			}
			field.SetInt(level)
		default:
			return fmt.Errorf("expected int64, got %T", value)
		}

	case reflect.Bool:
		boolVal, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		field.SetBool(boolVal)

	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}
	return nil
}

// parseLevelOverrides parses "name.transport=level" entries separated by commas
func parseLevelOverrides(spec string) (map[string]TransportLevels, error) {
	levels := make(map[string]TransportLevels)
	for _, entry := range strings.Split(spec, ",") {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		key, value, err := parseKeyValue(entry)
		if err != nil {
			return nil, err
		}
		if err := setLevelOverride(levels, key, value); err != nil {
			return nil, err
		}
	}
	return levels, nil
}

// setLevelOverride stores "name.transport" -> level into levels
func setLevelOverride(levels map[string]TransportLevels, key, value string) error {
	idx := strings.LastIndex(key, ".")
	if idx <= 0 || idx == len(key)-1 {
		return fmtErrorf("invalid level override key '%s', expected <logger>.<transport>", key)
	}
	name, transport := key[:idx], key[idx+1:]
	if transport != TransportConsole && transport != TransportFile {
		return fmtErrorf("unknown transport '%s' in level override '%s'", transport, key)
	}
	level, err := Level(value)
	if err != nil {
		return err
	}
	if levels[name] == nil {
		levels[name] = make(TransportLevels)
	}
	levels[name][transport] = level
	return nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c.BufferSize < 0 {
		return fmtErrorf("buffer_size cannot be negative: %d", c.BufferSize)
	}
	if err := c.Console.validate(TransportConsole); err != nil {
		return err
	}
	if err := c.File.validate(TransportFile); err != nil {
		return err
	}
	if c.File.Enabled && strings.TrimSpace(c.File.Filename) == "" {
		return fmtErrorf("file.filename cannot be empty when file output is enabled")
	}
	for name, levels := range c.Levels {
		for transport := range levels {
			if transport != TransportConsole && transport != TransportFile {
				return fmtErrorf("unknown transport '%s' in levels of '%s'", transport, name)
			}
		}
	}
	return nil
}

// validate checks the options of one transport
func (oc *OutputConfig) validate(name string) error {
	if oc.Format != "txt" && oc.Format != "json" && oc.Format != "raw" {
		return fmtErrorf("invalid %s.format: '%s' (use txt, json, or raw)", name, oc.Format)
	}
	if oc.Level < LevelAll || oc.Level > LevelError {
		return fmtErrorf("invalid %s.level: %d", name, oc.Level)
	}
	if name == TransportConsole && oc.Target != "stdout" && oc.Target != "stderr" {
		return fmtErrorf("invalid console.target: '%s' (use stdout or stderr)", oc.Target)
	}
	return nil
}

// flags derives the serializer flags from the display options
func (oc *OutputConfig) flags() int64 {
	var flags int64
	if oc.ShowTimestamp {
		flags |= FlagShowTimestamp
	}
	if oc.ShowLevel {
		flags |= FlagShowLevel
	}
	if oc.ShowLabel {
		flags |= FlagShowLabel
	}
	return flags
}
