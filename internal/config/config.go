// ABOUTME: Configuration loading and parsing for orgkeeper
// ABOUTME: Supports YAML or TOML files with environment variable expansion, defaults and duration parsing

package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// MinJWTSecretLength matches the HS256 secret floor enforced by the token issuer.
const MinJWTSecretLength = 32

// Tenant storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config represents the complete orgkeeper configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Tenants   TenantsConfig   `yaml:"tenants" toml:"tenants"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`

	ShutdownTimeout    time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeoutRaw string        `yaml:"shutdown_timeout,omitempty" toml:"shutdown_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname,omitempty" toml:"hostname"`
	AuthKey   string `yaml:"auth_key,omitempty" toml:"auth_key"`
	StateDir  string `yaml:"state_dir,omitempty" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral,omitempty" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https,omitempty" toml:"https"` // serve with Tailscale-issued certs on :443
}

// DatabaseConfig holds the control database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// TenantsConfig holds per-organization storage configuration
type TenantsConfig struct {
	Backend string `yaml:"backend" toml:"backend"`
	DataDir string `yaml:"data_dir,omitempty" toml:"data_dir"` // sqlite: one <namespace>.db per organization
	DSN     string `yaml:"dsn,omitempty" toml:"dsn"`           // postgres: server holding one schema per organization

	ProvisionTimeout    time.Duration `yaml:"-" toml:"-"`
	StaleReservationAge time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ProvisionTimeoutRaw    string `yaml:"provision_timeout" toml:"provision_timeout"`
	StaleReservationAgeRaw string `yaml:"stale_reservation_age,omitempty" toml:"stale_reservation_age"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret  string `yaml:"jwt_secret" toml:"jwt_secret"`
	BcryptCost int    `yaml:"bcrypt_cost,omitempty" toml:"bcrypt_cost"`

	// RequireOwnerForUpdate guards PUT /org/update with the same bearer
	// ownership check as delete.
	RequireOwnerForUpdate bool `yaml:"require_owner_for_update" toml:"require_owner_for_update"`

	TokenExpiry    time.Duration `yaml:"-" toml:"-"`
	TokenExpiryRaw string        `yaml:"token_expiry" toml:"token_expiry"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns a configuration with every default applied and no JWT secret.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	_ = parseDurations(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if p := os.Getenv("ORGKEEPER_DB_PATH"); p != "" {
		cfg.Database.Path = p
	}

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Marshal renders cfg as YAML, or TOML when path ends in .toml.
func Marshal(cfg *Config, path string) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("encoding config: %w", err)
		}
		return buf.Bytes(), nil
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}

// envVarPattern matches ${VAR_NAME}.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = "0.0.0.0:5001"
	}
	if c.Server.ShutdownTimeoutRaw == "" {
		c.Server.ShutdownTimeoutRaw = "10s"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./data/orgkeeper.db"
	}
	if c.Tenants.Backend == "" {
		c.Tenants.Backend = BackendSQLite
	}
	if c.Tenants.Backend == BackendSQLite && c.Tenants.DataDir == "" {
		c.Tenants.DataDir = filepath.Join(filepath.Dir(c.Database.Path), "tenants")
	}
	if c.Tenants.ProvisionTimeoutRaw == "" {
		c.Tenants.ProvisionTimeoutRaw = "10s"
	}
	if c.Tenants.StaleReservationAgeRaw == "" {
		c.Tenants.StaleReservationAgeRaw = "10m"
	}
	if c.Auth.TokenExpiryRaw == "" {
		c.Auth.TokenExpiryRaw = "24h"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Tailscale.Enabled && c.Tailscale.StateDir == "" {
		c.Tailscale.StateDir = filepath.Join(filepath.Dir(c.Database.Path), "tsnet")
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Tenants.Backend {
	case BackendSQLite:
		if c.Tenants.DataDir == "" {
			return fmt.Errorf("tenants.data_dir is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Tenants.DSN == "" {
			return fmt.Errorf("tenants.dsn is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("tenants.backend must be one of sqlite, postgres, memory (got %q)", c.Tenants.Backend)
	}

	if len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"tenants.provision_timeout", cfg.Tenants.ProvisionTimeoutRaw, &cfg.Tenants.ProvisionTimeout},
		{"tenants.stale_reservation_age", cfg.Tenants.StaleReservationAgeRaw, &cfg.Tenants.StaleReservationAge},
		{"auth.token_expiry", cfg.Auth.TokenExpiryRaw, &cfg.Auth.TokenExpiry},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive (got %q)", f.name, f.raw)
		}
		*f.dst = d
	}

	return nil
}
