// Package config loads studydb settings from an optional YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/studydb/internal/blob"
)

// Config holds every setting. Zero values are replaced by Default's.
type Config struct {
	// DataDir holds the file and sqlite blob backends.
	DataDir string `yaml:"data_dir"`

	// Backend is "file", "sqlite" or "memory".
	Backend string `yaml:"backend"`

	// Debounce is the delay between the last save request and its flush.
	Debounce Duration `yaml:"debounce"`

	// Namespace prefixes every durable key.
	Namespace string `yaml:"namespace"`

	// LegacyKeys are snapshot keys from earlier releases, renamed at startup.
	LegacyKeys []string `yaml:"legacy_keys"`

	// AutoMigrate runs the document engine transition at startup.
	AutoMigrate bool `yaml:"auto_migrate"`

	// QuotaBytes caps the blob backend's total size. 0 means unlimited.
	QuotaBytes int64 `yaml:"quota_bytes"`

	// LogLevel is "debug", "info", "warn" or "error".
	LogLevel string `yaml:"log_level"`
}

// Duration is a time.Duration written as a Go duration string ("500ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataDir:    "./studydb-data",
		Backend:    blob.BackendFile,
		Debounce:   Duration(500 * time.Millisecond),
		Namespace:  "studydb",
		LegacyKeys: []string{"sqliteDb"},
		LogLevel:   "info",
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := Parse(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML into cfg, overriding only the keys present, and
// validates the result.
func Parse(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown keys
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Validate checks every setting.
func (c Config) Validate() error {
	switch c.Backend {
	case blob.BackendFile, blob.BackendSQLite, blob.BackendMemory:
	default:
		return fmt.Errorf("backend %q not supported (file, sqlite, memory)", c.Backend)
	}
	if c.Backend != blob.BackendMemory && c.DataDir == "" {
		return errors.New("data_dir is required")
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", time.Duration(c.Debounce))
	}
	if strings.TrimSpace(c.Namespace) == "" {
		return errors.New("namespace is required")
	}
	if c.QuotaBytes < 0 {
		return fmt.Errorf("quota_bytes must not be negative, got %d", c.QuotaBytes)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Level returns the slog level of LogLevel.
func (c Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log_level %q not supported (debug, info, warn, error)", s)
	}
}
