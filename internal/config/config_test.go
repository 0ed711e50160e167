// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:9000"
  grpc_addr: "0.0.0.0:9001"
  shutdown_timeout: "10s"

storage:
  backend: "sqlite"
  path: "/tmp/state.db"
  driver: "sqlite3"
  busy_timeout: "250ms"

limits:
  history_cap: 500
  history_default_limit: 20
  scan_cache_cap: 10

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:9000" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.GRPCAddr != "0.0.0.0:9001" {
		t.Errorf("Server.GRPCAddr = %q", cfg.Server.GRPCAddr)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.Backend != BackendSQLite || cfg.Storage.Path != "/tmp/state.db" || cfg.Storage.Driver != "sqlite3" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Storage.BusyTimeout != 250*time.Millisecond {
		t.Errorf("Storage.BusyTimeout = %v", cfg.Storage.BusyTimeout)
	}
	if cfg.Limits != (LimitsConfig{HistoryCap: 500, HistoryDefaultLimit: 20, ScanCacheCap: 10}) {
		t.Errorf("Limits = %+v", cfg.Limits)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[server]
http_addr = "127.0.0.1:8000"

[storage]
backend = "file"
data_dir = "/srv/statekeeper"

[limits]
scan_cache_cap = 25
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:8000" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Storage.DataDir != "/srv/statekeeper" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Limits.ScanCacheCap != 25 || cfg.Limits.HistoryCap != 1000 {
		t.Errorf("Limits = %+v", cfg.Limits)
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	path := writeConfig(t, "config.yaml", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:7420" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Server.GRPCAddr != "" {
		t.Errorf("Server.GRPCAddr = %q, want disabled", cfg.Server.GRPCAddr)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.Backend != BackendFile {
		t.Errorf("Storage.Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Storage.DataDir != filepath.Join("/data", "statekeeper") {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Storage.Path != filepath.Join("/data", "statekeeper", "statekeeper.db") {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.Limits != (LimitsConfig{HistoryCap: 1000, HistoryDefaultLimit: 100, ScanCacheCap: 50}) {
		t.Errorf("Limits = %+v", cfg.Limits)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_SK_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("TEST_SK_DIR", "/var/lib/sk")

	path := writeConfig(t, "config.yaml", `
storage:
  data_dir: "${TEST_SK_DIR}"
auth:
  jwt_secret: "${TEST_SK_SECRET}"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.JWTSecret != "0123456789abcdef0123456789abcdef" {
		t.Errorf("Auth.JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Storage.DataDir != "/var/lib/sk" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
}

func TestExpandEnvVars_Unset(t *testing.T) {
	if got := expandEnvVars("a${STATEKEEPER_TEST_UNSET_VAR}b"); got != "ab" {
		t.Errorf("expandEnvVars() = %q, want %q", got, "ab")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"bad yaml", "c.yaml", "server: [", "parsing config file"},
		{"bad toml", "c.toml", "[server", "parsing config file"},
		{"bad duration", "c.yaml", "server:\n  shutdown_timeout: \"soon\"", "shutdown_timeout"},
		{"bad busy timeout", "c.yaml", "storage:\n  busy_timeout: \"1 minute\"", "busy_timeout"},
		{"unknown backend", "c.yaml", "storage:\n  backend: \"redis\"", "storage.backend"},
		{"unknown driver", "c.yaml", "storage:\n  backend: \"sqlite\"\n  driver: \"pg\"", "storage.driver"},
		{"negative cap", "c.yaml", "limits:\n  scan_cache_cap: -1", "must not be negative"},
		{"limit above cap", "c.yaml", "limits:\n  history_cap: 10\n  history_default_limit: 50", "history_default_limit"},
		{"short secret", "c.yaml", "auth:\n  jwt_secret: \"short\"", "jwt_secret"},
		{"bad level", "c.yaml", "logging:\n  level: \"loud\"", "logging.level"},
		{"bad format", "c.yaml", "logging:\n  format: \"xml\"", "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("Load() should have failed")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil || !strings.Contains(err.Error(), "reading config file") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("STATEKEEPER_CONFIG", "/etc/sk.yaml")
	if got := DefaultPath(); got != "/etc/sk.yaml" {
		t.Errorf("DefaultPath() = %q", got)
	}

	t.Setenv("STATEKEEPER_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := DefaultPath(); got != filepath.Join("/xdg", "statekeeper", "config.yaml") {
		t.Errorf("DefaultPath() = %q", got)
	}
}

func TestSample_IsValid(t *testing.T) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(Sample), &cfg); err != nil {
		t.Fatalf("Sample does not parse: %v", err)
	}

	cfg2, err := Load(writeConfig(t, "config.yaml", Sample))
	if err != nil {
		t.Fatalf("Load(Sample) error = %v", err)
	}
	if cfg2.Limits.HistoryCap != 1000 {
		t.Errorf("Limits.HistoryCap = %d", cfg2.Limits.HistoryCap)
	}
}

func TestDefault(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() error = %v", err)
	}
}
