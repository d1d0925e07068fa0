package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "studydb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_NoPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/studydb
backend: sqlite
debounce: 2s
namespace: planner
legacy_keys: [oldDb, sqliteDb]
auto_migrate: true
quota_bytes: 5242880
log_level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, Config{
		DataDir:     "/var/lib/studydb",
		Backend:     "sqlite",
		Debounce:    Duration(2 * time.Second),
		Namespace:   "planner",
		LegacyKeys:  []string{"oldDb", "sqliteDb"},
		AutoMigrate: true,
		QuotaBytes:  5242880,
		LogLevel:    "debug",
	}, cfg)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "backend: memory\n"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, Duration(500*time.Millisecond), cfg.Debounce)
	assert.Equal(t, "studydb", cfg.Namespace)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", "bakend: file\n", "failed to parse YAML"},
		{"bad duration", "debounce: soon\n", "failed to parse YAML"},
		{"bad backend", "backend: s3\n", "backend \"s3\" not supported"},
		{"zero debounce", "debounce: 0s\n", "debounce must be positive"},
		{"negative quota", "quota_bytes: -1\n", "quota_bytes must not be negative"},
		{"bad level", "log_level: loud\n", "log_level \"loud\" not supported"},
		{"empty namespace", "namespace: \" \"\n", "namespace is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
