// Package config handles configuration loading for orgkeeper.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The package applies defaults and validates the result.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from ORGKEEPER_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/orgkeeper/orgkeeper.yaml
//  3. ~/.config/orgkeeper/orgkeeper.yaml
//
// Files ending in .toml are decoded as TOML.
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${ORGKEEPER_JWT_SECRET}"
//
// Unset variables expand to the empty string. ORGKEEPER_DB_PATH, when set,
// overrides database.path.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:5001"
//	  shutdown_timeout: "10s"
//
//	database:
//	  path: "./data/orgkeeper.db"       # admins and organizations
//
//	tenants:
//	  backend: "sqlite"                  # sqlite, postgres, memory
//	  data_dir: "./data/tenants"         # sqlite only
//	  dsn: "${ORGKEEPER_TENANT_DSN}"     # postgres only
//	  provision_timeout: "10s"
//	  stale_reservation_age: "10m"
//
//	auth:
//	  jwt_secret: "${ORGKEEPER_JWT_SECRET}"  # at least 32 bytes
//	  token_expiry: "24h"
//	  bcrypt_cost: 10
//	  require_owner_for_update: false
//
//	tailscale:
//	  enabled: false
//	  hostname: "orgkeeper"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: true
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
package config
