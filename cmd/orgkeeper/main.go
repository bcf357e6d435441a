// ABOUTME: Entry point for the orgkeeper organization registry server
// ABOUTME: Provides serve, init, health and version commands

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/orgkeeper/internal/config"
	"github.com/2389/orgkeeper/internal/server"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                  _
  ___  _ __ __ _ | | __ ___  ___  _ __   ___  _ __
 / _ \| '__/ _' || |/ // _ \/ _ \| '_ \ / _ \| '__|
| (_) | | | (_| ||   <|  __/  __/| |_) |  __/| |
 \___/|_|  \__, ||_|\_\\___|\___|| .__/ \___||_|
           |___/                 |_|
`

// getConfigPath returns the path to the server config file.
// Priority: ORGKEEPER_CONFIG env var > XDG_CONFIG_HOME/orgkeeper/orgkeeper.yaml > ~/.config/orgkeeper/orgkeeper.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ORGKEEPER_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "orgkeeper.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "orgkeeper", "orgkeeper.yaml")
}

// getDataPath returns the path to the orgkeeper data directory.
// Priority: XDG_DATA_HOME/orgkeeper > ~/.local/share/orgkeeper
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "orgkeeper")
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: orgkeeper <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve     Start the organization registry server")
	fmt.Fprintln(w, "  init      Create a new config file interactively")
	fmt.Fprintln(w, "  health    Check server health and readiness")
	fmt.Fprintln(w, "  version   Print the version")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "version", "--version", "-v":
		fmt.Printf("orgkeeper %s\n", version)
	case "help", "--help", "-h":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Tenants:   %s", cfg.Tenants.Backend)
	switch cfg.Tenants.Backend {
	case config.BackendSQLite:
		gray.Printf(" (%s)", cfg.Tenants.DataDir)
	case config.BackendMemory:
		yellow.Print(" [not persistent]")
	}
	fmt.Println()

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.HTTPS {
			yellow.Print(" [https]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	} else {
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	}
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}

	fmt.Println()

	logger.Info("starting orgkeeper",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"tenant_backend", cfg.Tenants.Backend,
	)

	srv, err := server.New(cfg, logger, server.WithVersion(version))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

// healthURL builds the base URL used by the health command.
func healthURL(cfg *config.Config) string {
	if cfg.Tailscale.Enabled {
		scheme := "http"
		if cfg.Tailscale.HTTPS {
			scheme = "https"
		}
		return scheme + "://" + cfg.Tailscale.Hostname
	}
	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, "0.0.0.0:") {
		addr = "127.0.0.1:" + strings.TrimPrefix(addr, "0.0.0.0:")
	}
	return "http://" + addr
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	base := healthURL(cfg)
	for _, path := range []string{"/health", "/health/ready"} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unhealthy: %s returned status %d", path, resp.StatusCode)
		}
	}

	fmt.Println("healthy")
	return nil
}

// generateSecret returns a random base64 JWT secret of 32 bytes of entropy.
func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "orgkeeper configuration setup")
	fmt.Fprintln(out, "=============================")
	fmt.Fprintln(out)

	defaultDataPath := getDataPath()

	outputFile := prompt(reader, out, "Config file path (.yaml or .toml)", getConfigPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !yes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	cfg := config.Default()

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	cfg.Server.HTTPAddr = prompt(reader, out, "HTTP address", "localhost:5001")

	fmt.Fprintln(out, "\n--- Storage Configuration ---")
	cfg.Database.Path = prompt(reader, out, "Control database path", filepath.Join(defaultDataPath, "orgkeeper.db"))
	cfg.Tenants.Backend = prompt(reader, out, "Tenant backend (sqlite/postgres/memory)", config.BackendSQLite)
	switch cfg.Tenants.Backend {
	case config.BackendSQLite:
		cfg.Tenants.DataDir = prompt(reader, out, "Tenant data directory", filepath.Join(defaultDataPath, "tenants"))
	case config.BackendPostgres:
		cfg.Tenants.DataDir = ""
		cfg.Tenants.DSN = prompt(reader, out, "PostgreSQL DSN", "${ORGKEEPER_TENANT_DSN}")
	default:
		cfg.Tenants.DataDir = ""
	}

	fmt.Fprintln(out, "\n--- Auth Configuration ---")
	secret, err := generateSecret()
	if err != nil {
		return err
	}
	cfg.Auth.JWTSecret = secret
	cfg.Auth.RequireOwnerForUpdate = yes(prompt(reader, out, "Require owner token for updates?", "no"))

	fmt.Fprintln(out, "\n--- Tailscale Configuration ---")
	cfg.Tailscale.Enabled = yes(prompt(reader, out, "Enable Tailscale?", "no"))
	if cfg.Tailscale.Enabled {
		cfg.Tailscale.Hostname = prompt(reader, out, "Tailscale hostname", "orgkeeper")
		cfg.Tailscale.AuthKey = prompt(reader, out, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		cfg.Tailscale.Ephemeral = yes(prompt(reader, out, "Ephemeral node?", "no"))
		cfg.Tailscale.HTTPS = yes(prompt(reader, out, "Serve HTTPS with Tailscale certs?", "yes"))
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	cfg.Logging.Level = prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	cfg.Logging.Format = prompt(reader, out, "Log format (text/json)", "text")
	cfg.Metrics.Enabled = yes(prompt(reader, out, "Expose Prometheus metrics?", "yes"))

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := config.Marshal(cfg, outputFile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	header := "# orgkeeper configuration\n# Generated by orgkeeper init\n\n"
	if err := os.WriteFile(outputFile, append([]byte(header), data...), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Fprintf(out, "\nConfig written to %s\n", outputFile)
	fmt.Fprintf(out, "Data directory: %s\n", dataDir)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  orgkeeper serve")

	return nil
}

func yes(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return a == "yes" || a == "y"
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
