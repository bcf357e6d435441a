// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "127.0.0.1:6000"
  shutdown_timeout: "5s"

database:
  path: "./test.db"

tenants:
  backend: "sqlite"
  data_dir: "./tenants"
  provision_timeout: "3s"

auth:
  jwt_secret: "`+testSecret+`"
  token_expiry: "2h"
  bcrypt_cost: 4
  require_owner_for_update: true

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:6000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:6000")
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, 5*time.Second)
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Tenants.Backend != BackendSQLite {
		t.Errorf("Tenants.Backend = %q, want %q", cfg.Tenants.Backend, BackendSQLite)
	}
	if cfg.Tenants.DataDir != "./tenants" {
		t.Errorf("Tenants.DataDir = %q, want %q", cfg.Tenants.DataDir, "./tenants")
	}
	if cfg.Tenants.ProvisionTimeout != 3*time.Second {
		t.Errorf("Tenants.ProvisionTimeout = %v, want %v", cfg.Tenants.ProvisionTimeout, 3*time.Second)
	}
	if cfg.Auth.TokenExpiry != 2*time.Hour {
		t.Errorf("Auth.TokenExpiry = %v, want %v", cfg.Auth.TokenExpiry, 2*time.Hour)
	}
	if cfg.Auth.BcryptCost != 4 {
		t.Errorf("Auth.BcryptCost = %d, want 4", cfg.Auth.BcryptCost)
	}
	if !cfg.Auth.RequireOwnerForUpdate {
		t.Error("Auth.RequireOwnerForUpdate should be true")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v, want enabled at /metrics", cfg.Metrics)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: "/var/lib/orgkeeper/orgkeeper.db"
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:5001" {
		t.Errorf("Server.HTTPAddr = %q, want default", cfg.Server.HTTPAddr)
	}
	if cfg.Tenants.Backend != BackendSQLite {
		t.Errorf("Tenants.Backend = %q, want %q", cfg.Tenants.Backend, BackendSQLite)
	}
	if cfg.Tenants.DataDir != "/var/lib/orgkeeper/tenants" {
		t.Errorf("Tenants.DataDir = %q, want sibling of database path", cfg.Tenants.DataDir)
	}
	if cfg.Tenants.ProvisionTimeout != 10*time.Second {
		t.Errorf("Tenants.ProvisionTimeout = %v, want 10s", cfg.Tenants.ProvisionTimeout)
	}
	if cfg.Tenants.StaleReservationAge != 10*time.Minute {
		t.Errorf("Tenants.StaleReservationAge = %v, want 10m", cfg.Tenants.StaleReservationAge)
	}
	if cfg.Auth.TokenExpiry != 24*time.Hour {
		t.Errorf("Auth.TokenExpiry = %v, want 24h", cfg.Auth.TokenExpiry)
	}
	if cfg.Auth.RequireOwnerForUpdate {
		t.Error("Auth.RequireOwnerForUpdate should default to false")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want info/text", cfg.Logging)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "orgkeeper.toml", `
[server]
http_addr = "127.0.0.1:7000"

[database]
path = "./orgkeeper.db"

[tenants]
backend = "postgres"
dsn = "postgres://orgkeeper@localhost/tenants"
provision_timeout = "15s"

[auth]
jwt_secret = "`+testSecret+`"
require_owner_for_update = true
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:7000" {
		t.Errorf("Server.HTTPAddr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Tenants.Backend != BackendPostgres {
		t.Errorf("Tenants.Backend = %q, want postgres", cfg.Tenants.Backend)
	}
	if cfg.Tenants.DSN != "postgres://orgkeeper@localhost/tenants" {
		t.Errorf("Tenants.DSN = %q", cfg.Tenants.DSN)
	}
	if cfg.Tenants.DataDir != "" {
		t.Errorf("Tenants.DataDir = %q, want empty for postgres", cfg.Tenants.DataDir)
	}
	if cfg.Tenants.ProvisionTimeout != 15*time.Second {
		t.Errorf("Tenants.ProvisionTimeout = %v, want 15s", cfg.Tenants.ProvisionTimeout)
	}
	if !cfg.Auth.RequireOwnerForUpdate {
		t.Error("Auth.RequireOwnerForUpdate should be true")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_ORGKEEPER_SECRET", testSecret)
	t.Setenv("TEST_ORGKEEPER_ADDR", "127.0.0.1:9999")

	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "${TEST_ORGKEEPER_ADDR}"
database:
  path: "./test.db"
auth:
  jwt_secret: "${TEST_ORGKEEPER_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:9999" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9999")
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("Auth.JWTSecret = %q, want expanded secret", cfg.Auth.JWTSecret)
	}
}

func TestLoad_DBPathOverride(t *testing.T) {
	t.Setenv("ORGKEEPER_DB_PATH", "/tmp/override.db")

	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./test.db"
auth:
  jwt_secret: "`+testSecret+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want override", cfg.Database.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", "server:\n  http_addr: [unclosed\n")
	if _, err := Load(configPath); err == nil {
		t.Fatal("Load() expected error for invalid YAML")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tests := []struct {
		name  string
		field string
		yaml  string
	}{
		{
			name:  "bad provision timeout",
			field: "tenants.provision_timeout",
			yaml:  "tenants:\n  provision_timeout: \"soon\"\n",
		},
		{
			name:  "negative token expiry",
			field: "auth.token_expiry",
			yaml:  "auth:\n  jwt_secret: \"" + testSecret + "\"\n  token_expiry: \"-1h\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := writeConfig(t, "config.yaml", tt.yaml)
			_, err := Load(configPath)
			if err == nil {
				t.Fatal("Load() expected error for invalid duration")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should mention %s", err, tt.field)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Auth.JWTSecret = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"missing http addr", func(c *Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
		{"tailscale without http addr", func(c *Config) {
			c.Server.HTTPAddr = ""
			c.Tailscale.Enabled = true
			c.Tailscale.Hostname = "orgkeeper"
		}, ""},
		{"tailscale without hostname", func(c *Config) { c.Tailscale.Enabled = true }, "tailscale.hostname"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"unknown backend", func(c *Config) { c.Tenants.Backend = "mongo" }, "tenants.backend"},
		{"sqlite without data dir", func(c *Config) { c.Tenants.DataDir = "" }, "tenants.data_dir"},
		{"postgres without dsn", func(c *Config) { c.Tenants.Backend = BackendPostgres }, "tenants.dsn"},
		{"memory backend", func(c *Config) { c.Tenants.Backend = BackendMemory }, ""},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwt_secret"},
		{"bcrypt cost too high", func(c *Config) { c.Auth.BcryptCost = 40 }, "auth.bcrypt_cost"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"relative metrics path", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Path = "metrics"
		}, "metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error mentioning %s", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR1", "value1")
	t.Setenv("TEST_VAR2", "value2")

	tests := []struct {
		input    string
		expected string
	}{
		{"no vars", "no vars"},
		{"${TEST_VAR1}", "value1"},
		{"prefix_${TEST_VAR1}_suffix", "prefix_value1_suffix"},
		{"${TEST_VAR1} and ${TEST_VAR2}", "value1 and value2"},
		{"${UNSET_VAR_ORGKEEPER}", ""},
		{"$TEST_VAR1", "$TEST_VAR1"},
	}

	for _, tt := range tests {
		if got := expandEnvVars(tt.input); got != tt.expected {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Auth.JWTSecret = testSecret

	for _, name := range []string{"orgkeeper.yaml", "orgkeeper.toml"} {
		t.Run(name, func(t *testing.T) {
			data, err := Marshal(cfg, name)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			path := writeConfig(t, name, string(data))
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v\n%s", err, data)
			}
			if loaded.Auth.JWTSecret != testSecret {
				t.Errorf("JWTSecret lost in round trip")
			}
			if loaded.Tenants.ProvisionTimeout != cfg.Tenants.ProvisionTimeout {
				t.Errorf("ProvisionTimeout = %v, want %v", loaded.Tenants.ProvisionTimeout, cfg.Tenants.ProvisionTimeout)
			}
		})
	}
}
