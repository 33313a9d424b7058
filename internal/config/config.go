// Package config handles armstack.toml analysis configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/BurntSushi/toml"

	"armstack/internal/arm"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "armstack.toml"

var (
	ErrUnknownLevel   = errors.New("config: unknown log level")
	ErrUnknownProfile = errors.New("config: unknown profile")
)

// Config represents an armstack.toml file.
type Config struct {
	Analysis Analysis `toml:"analysis" json:"analysis"`
	NoReturn NoReturn `toml:"noreturn" json:"noreturn"`
	Log      Log      `toml:"log" json:"log"`

	// Path is the file the configuration was read from (set at load time).
	Path string `toml:"-" json:"-"`
}

// Analysis tunes the analyzer.
type Analysis struct {
	Profile      string `toml:"profile" json:"profile,omitempty" jsonschema:"enum=thumb,enum=arm"`
	Workers      int    `toml:"workers" json:"workers,omitempty" jsonschema:"minimum=0"`
	Strict       bool   `toml:"strict" json:"strict,omitempty" jsonschema:"description=exit non-zero when any function has stack errors"`
	MaxFunctions int    `toml:"max_functions" json:"max_functions,omitempty" jsonschema:"minimum=0"`
}

// NoReturn lists extra functions that never return.
type NoReturn struct {
	Functions []string `toml:"functions" json:"functions,omitempty"`
}

// Log configures the logger.
type Log struct {
	Level  string `toml:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Prefix string `toml:"prefix" json:"prefix,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Analysis: Analysis{Profile: arm.Thumb.Name, Workers: runtime.GOMAXPROCS(0)},
		Log:      Log{Level: "info"},
	}
}

// Load parses armstack.toml from the given directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName))
}

// LoadFile parses a configuration file. Unset values take their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("config: parse error in %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	c.Path = path
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find armstack.toml and loads it.
// Returns Default() if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", startDir, err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	if _, err := c.ProfileValue(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLevel, c.Log.Level)
	}
	if c.Analysis.Workers < 0 || c.Analysis.MaxFunctions < 0 {
		return errors.New("config: workers and max_functions must not be negative")
	}
	return nil
}

// ProfileValue resolves the configured frame-pointer profile.
func (c *Config) ProfileValue() (arm.Profile, error) {
	p, err := arm.ProfileByName(c.Analysis.Profile)
	if err != nil {
		return arm.Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, c.Analysis.Profile)
	}
	return p, nil
}
