package logstream

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ApplyOverride applies string key-value overrides to the configuration.
// Each override should be in the format "key=value".
//
// Example:
//
//	cfg := logstream.DefaultConfig()
//	err := cfg.ApplyOverride(
//	    "buffer_size=200",
//	    "file.enabled=true",
//	    "file.filename=/var/log/app.log",
//	    "file.rotation=true",
//	    "levels.worker.console=debug",
//	)
func (c *Config) ApplyOverride(overrides ...string) error {
	var errors []error

	for _, override := range overrides {
		key, value, err := parseKeyValue(override)
		if err != nil {
			errors = append(errors, err)
			continue
		}

		if err := c.applyConfigField(key, value); err != nil {
			errors = append(errors, err)
		}
	}

	return combineConfigErrors(errors)
}

// combineConfigErrors combines multiple configuration errors into a single error.
func combineConfigErrors(errors []error) error {
	if len(errors) == 0 {
		return nil
	}
	if len(errors) == 1 {
		return errors[0]
	}

	var sb strings.Builder
	sb.WriteString("logstream: multiple configuration errors:")
	for i, err := range errors {
		errMsg := strings.TrimPrefix(err.Error(), "logstream: ")
		sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, errMsg))
	}
	return fmt.Errorf("%s", sb.String())
}

// applyConfigField applies a single key-value override
func (c *Config) applyConfigField(key, value string) error {
	switch {
	case key == "buffer_size":
		intVal, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmtErrorf("invalid integer value for buffer_size '%s': %w", value, err)
		}
		c.BufferSize = intVal
	case key == "root_dir":
		c.RootDir = value
	case key == "internal_errors_to_stderr":
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			return fmtErrorf("invalid boolean value for internal_errors_to_stderr '%s': %w", value, err)
		}
		c.InternalErrorsToStderr = boolVal
	case strings.HasPrefix(key, "console."):
		return applyOutputField(&c.Console, strings.TrimPrefix(key, "console."), value)
	case strings.HasPrefix(key, "file."):
		return applyOutputField(&c.File, strings.TrimPrefix(key, "file."), value)
	case strings.HasPrefix(key, "levels."):
		if c.Levels == nil {
			c.Levels = make(map[string]TransportLevels)
		}
		return setLevelOverride(c.Levels, strings.TrimPrefix(key, "levels."), value)
	default:
		return fmtErrorf("unknown config key: %s", key)
	}
	return nil
}

// applyOutputField sets an OutputConfig field addressed by its toml tag
func applyOutputField(oc *OutputConfig, tag, value string) error {
	v := reflect.ValueOf(oc).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("toml") != tag {
			continue
		}
		field := v.Field(i)
		switch field.Kind() {
		case reflect.String:
			field.SetString(value)
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(value)
			if err != nil {
				return fmtErrorf("invalid boolean value for %s '%s': %w", tag, value, err)
			}
			field.SetBool(boolVal)
		case reflect.Int64:
			// Accept both numeric and named levels
			if numVal, err := strconv.ParseInt(value, 10, 64); err == nil {
				field.SetInt(numVal)
				return nil
			}
			level, err := Level(value)
			if err != nil {
				return fmtErrorf("invalid level value '%s': %w", value, err)
			}
			field.SetInt(level)
		}
		return nil
	}
	return fmtErrorf("unknown config key: %s", tag)
}
