// ABOUTME: Configuration for heapmark loaded from YAML
// ABOUTME: Provides defaults, validation and the marking options derived from them

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prateek/heapmark/marking"
)

// ErrInvalid is wrapped by every validation error
var ErrInvalid = errors.New("invalid configuration")

// Config is the top-level configuration file
type Config struct {
	Marking Marking `yaml:"marking"`
	Log     Log     `yaml:"log"`
	Render  Render  `yaml:"render"`
}

// Marking controls the concurrent marker
type Marking struct {
	Enabled bool `yaml:"enabled"`
	Trace   bool `yaml:"trace"`
}

// Log controls diagnostics output
type Log struct {
	Level string `yaml:"level"`
}

// Render controls PNG output
type Render struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Marking: Marking{Enabled: true},
		Log:     Log{Level: "info"},
		Render:  Render{Width: 1024, Height: 768},
	}
}

// Load reads a YAML configuration on top of the defaults
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile is Load for a path. An empty path yields the defaults.
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Load(f)
}

// Validate checks every field for a usable value
func (c Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("%w: render size %dx%d", ErrInvalid, c.Render.Width, c.Render.Height)
	}
	return nil
}

// LogLevel parses the configured log level
func (c Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}
	return level, nil
}

// MarkingConfig returns the marker options with logger as diagnostics sink
func (c Config) MarkingConfig(logger *slog.Logger) marking.Config {
	return marking.Config{
		Enabled: c.Marking.Enabled,
		Trace:   c.Marking.Trace,
		Logger:  logger,
	}
}
