// ABOUTME: Optional arclens.yaml configuration for the CLI and demo runs
// ABOUTME: Loads YAML settings, fills defaults and builds the slog logger

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is the config file LoadOptional looks for.
const FileName = "arclens.yaml"

// Config represents the optional arclens.yaml configuration.
type Config struct {
	Log   LogConfig   `yaml:"log"`
	Store StoreConfig `yaml:"store"`
	Audit AuditConfig `yaml:"audit"`
	Dump  DumpConfig  `yaml:"dump"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level   string `yaml:"level,omitempty"`   // debug, info, warn or error
	Verbose bool   `yaml:"verbose,omitempty"` // include stack traces in error logs
}

// StoreConfig names the store.
type StoreConfig struct {
	Name string `yaml:"name,omitempty"`
}

// AuditConfig tunes the auditor.
type AuditConfig struct {
	MaxPaths int `yaml:"max_paths,omitempty"`
}

// DumpConfig selects the snapshot dump encoding.
type DumpConfig struct {
	Format string `yaml:"format,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Log:   LogConfig{Level: "info"},
		Store: StoreConfig{Name: "arclens"},
		Audit: AuditConfig{MaxPaths: 5},
		Dump:  DumpConfig{Format: "json"},
	}
}

// Load reads the config file at path. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional reads arclens.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Audit.MaxPaths < 0 {
		return fmt.Errorf("audit.max_paths must not be negative, got %d", c.Audit.MaxPaths)
	}
	if strings.TrimSpace(c.Store.Name) == "" {
		c.Store.Name = Default().Store.Name
	}
	return nil
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Logger builds a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
