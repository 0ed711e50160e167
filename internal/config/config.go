// ABOUTME: Configuration loading and parsing for statekeeper
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config represents the complete statekeeper configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Limits  LimitsConfig  `yaml:"limits" toml:"limits"`
	Auth    AuthConfig    `yaml:"auth" toml:"auth"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// ServerConfig holds listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// GRPCAddr serves the health service. Empty disables it.
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`

	ShutdownTimeout    time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// StorageConfig selects and configures the document backend
type StorageConfig struct {
	Backend string `yaml:"backend" toml:"backend"`

	// DataDir holds one JSON file per namespace (file backend).
	DataDir string `yaml:"data_dir" toml:"data_dir"`

	// Path and Driver configure the sqlite backend.
	Path   string `yaml:"path" toml:"path"`
	Driver string `yaml:"driver" toml:"driver"`

	BusyTimeout    time.Duration `yaml:"-" toml:"-"`
	BusyTimeoutRaw string        `yaml:"busy_timeout" toml:"busy_timeout"`
}

// LimitsConfig holds collection retention limits
type LimitsConfig struct {
	HistoryCap          int `yaml:"history_cap" toml:"history_cap"`
	HistoryDefaultLimit int `yaml:"history_default_limit" toml:"history_default_limit"`
	ScanCacheCap        int `yaml:"scan_cache_cap" toml:"scan_cache_cap"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTSecret enables bearer auth on the HTTP API when set.
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTPAddr == "" {
		cfg.Server.HTTPAddr = "127.0.0.1:7420"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 5 * time.Second
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = BackendFile
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = DefaultDataDir()
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = filepath.Join(cfg.Storage.DataDir, "statekeeper.db")
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.BusyTimeout == 0 {
		cfg.Storage.BusyTimeout = 5 * time.Second
	}
	if cfg.Limits.HistoryCap == 0 {
		cfg.Limits.HistoryCap = 1000
	}
	if cfg.Limits.HistoryDefaultLimit == 0 {
		cfg.Limits.HistoryDefaultLimit = 100
	}
	if cfg.Limits.ScanCacheCap == 0 {
		cfg.Limits.ScanCacheCap = 50
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all configuration fields are valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.DataDir == "" {
			return fmt.Errorf("storage.data_dir is required for the file backend")
		}
	case BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
		if c.Storage.Driver != "sqlite" && c.Storage.Driver != "sqlite3" {
			return fmt.Errorf("storage.driver must be sqlite or sqlite3, got %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendFile, BackendSQLite, c.Storage.Backend)
	}

	if c.Limits.HistoryCap < 0 || c.Limits.HistoryDefaultLimit < 0 || c.Limits.ScanCacheCap < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	if c.Limits.HistoryDefaultLimit > c.Limits.HistoryCap {
		return fmt.Errorf("limits.history_default_limit (%d) exceeds limits.history_cap (%d)",
			c.Limits.HistoryDefaultLimit, c.Limits.HistoryCap)
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}

	if cfg.Storage.BusyTimeoutRaw != "" {
		cfg.Storage.BusyTimeout, err = time.ParseDuration(cfg.Storage.BusyTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing busy_timeout %q: %w", cfg.Storage.BusyTimeoutRaw, err)
		}
	}

	return nil
}

// DefaultPath returns the config file location.
// Priority: STATEKEEPER_CONFIG env var > XDG_CONFIG_HOME/statekeeper/config.yaml > ~/.config/statekeeper/config.yaml
func DefaultPath() string {
	if envPath := os.Getenv("STATEKEEPER_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "statekeeper", "config.yaml")
}

// DefaultDataDir returns the data directory.
// Priority: XDG_DATA_HOME/statekeeper > ~/.local/share/statekeeper
func DefaultDataDir() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "statekeeper")
}

// Sample is the config written by "statekeeper init".
const Sample = `# statekeeper configuration

server:
  http_addr: "127.0.0.1:7420"
  # grpc_addr: "127.0.0.1:7421"
  shutdown_timeout: "5s"

storage:
  backend: "file"          # file | sqlite
  # data_dir: "/var/lib/statekeeper"
  # path: "/var/lib/statekeeper/statekeeper.db"
  driver: "sqlite"         # sqlite (pure Go) | sqlite3 (cgo)
  busy_timeout: "5s"

limits:
  history_cap: 1000
  history_default_limit: 100
  scan_cache_cap: 50

auth:
  # jwt_secret: "${STATEKEEPER_JWT_SECRET}"

logging:
  level: "info"
  format: "text"
`
