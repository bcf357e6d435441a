// ABOUTME: Admin CLI for orgkeeper organization management
// ABOUTME: Talks to the HTTP API to create, inspect, update and delete organizations

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/orgkeeper/internal/api"
)

const banner = `
                  _                                     _           _
  ___  _ __ __ _ | | __ ___  ___ _ __   ___ _ __       __ _| |_ __ ___ (_)_ __
 / _ \| '__/ _' || |/ // _ \/ _ \ '_ \ / _ \ '__|____ / _' | | '_ ' _ \| | '_ \
| (_) | | | (_| ||   <|  __/  __/ |_) |  __/ | |_____| (_| | | | | | | | | | | |
 \___/|_|  \__, ||_|\_\\___|\___| .__/ \___|_|        \__,_|_|_| |_| |_|_|_| |_|
           |___/                |_|
`

// cli holds what every command needs.
type cli struct {
	client    *apiClient
	tokenPath string
	in        *bufio.Reader
	out       io.Writer
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := &cli{
		client:    newAPIClient(getEnv("ORGKEEPER_URL", "http://localhost:5001"), getToken()),
		tokenPath: tokenPath(),
		in:        bufio.NewReader(os.Stdin),
		out:       os.Stdout,
	}

	if os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help" {
		printUsage()
		return
	}

	if err := c.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "status":
		return c.cmdStatus(ctx)
	case "login":
		return c.cmdLogin(ctx, args)
	case "logout":
		return c.cmdLogout()
	case "create":
		return c.cmdCreate(ctx, args)
	case "get", "show":
		return c.cmdGet(ctx, args)
	case "update":
		return c.cmdUpdate(ctx, args)
	case "delete", "rm":
		return c.cmdDelete(ctx, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: orgkeeper-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                                     Check server health and readiness")
	fmt.Println("  login --email <e> [--password <p>]         Log in and save the admin token")
	fmt.Println("  logout                                     Remove the saved token")
	fmt.Println("  create --name <n> --email <e> [--password <p>]")
	fmt.Println("                                             Create an organization and its admin")
	fmt.Println("  get <name>                                 Show an organization")
	fmt.Println("  update <name> [--email <e>] [--password <p>]")
	fmt.Println("                                             Change the admin's credentials")
	fmt.Println("  delete <name> [--yes]                      Delete an organization (requires login)")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  ORGKEEPER_URL            Server base URL (default: http://localhost:5001)")
	fmt.Println("  ORGKEEPER_TOKEN          Admin token (default: saved by login)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  orgkeeper-admin create --name acme --email owner@acme.com")
	fmt.Println("  orgkeeper-admin login --email owner@acme.com")
	fmt.Println("  orgkeeper-admin delete acme --yes")
	fmt.Println()
}

// parseFlags splits args into --flag values and positionals.
// Both "--flag value" and "--flag=value" are accepted; known lists boolean flags.
func parseFlags(args []string, boolFlags ...string) (map[string]string, []string, error) {
	isBool := make(map[string]bool, len(boolFlags))
	for _, f := range boolFlags {
		isBool[f] = true
	}

	flags := make(map[string]string)
	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			positional = append(positional, arg)
			continue
		}
		name := strings.TrimLeft(arg, "-")
		if k, v, ok := strings.Cut(name, "="); ok {
			flags[k] = v
			continue
		}
		if isBool[name] {
			flags[name] = "true"
			continue
		}
		if i+1 >= len(args) {
			return nil, nil, fmt.Errorf("--%s requires a value", name)
		}
		flags[name] = args[i+1]
		i++
	}
	return flags, positional, nil
}

func (c *cli) cmdStatus(ctx context.Context) error {
	if err := c.client.Health(ctx); err != nil {
		return fmt.Errorf("server unhealthy: %w", err)
	}
	green := color.New(color.FgGreen)
	green.Fprintf(c.out, "✓ %s is healthy and ready\n", c.client.baseURL)
	if c.client.token != "" {
		fmt.Fprintf(c.out, "  Token:  %s\n", c.tokenPath)
	}
	return nil
}

func (c *cli) cmdLogin(ctx context.Context, args []string) error {
	flags, _, err := parseFlags(args)
	if err != nil {
		return err
	}
	email := flags["email"]
	if email == "" {
		return fmt.Errorf("usage: login --email <email> [--password <password>]")
	}
	password := flags["password"]
	if password == "" {
		password = c.ask("Password")
	}

	res, err := c.client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if err := saveToken(c.tokenPath, res.Token); err != nil {
		return err
	}
	c.client.token = res.Token

	green := color.New(color.FgGreen)
	green.Fprintf(c.out, "✓ Logged in as %s\n", res.Admin.Email)
	if res.Admin.OrganizationName != "" {
		fmt.Fprintf(c.out, "  Organization: %s\n", res.Admin.OrganizationName)
	}
	fmt.Fprintf(c.out, "  Token:        %s (expires %s)\n", c.tokenPath, res.ExpiresAt.Local().Format("Jan 02, 2006 15:04"))
	return nil
}

func (c *cli) cmdLogout() error {
	if err := os.Remove(c.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token: %w", err)
	}
	fmt.Fprintln(c.out, "Logged out.")
	return nil
}

func (c *cli) cmdCreate(ctx context.Context, args []string) error {
	flags, _, err := parseFlags(args)
	if err != nil {
		return err
	}
	name, email := flags["name"], flags["email"]
	if name == "" || email == "" {
		return fmt.Errorf("usage: create --name <organization> --email <admin email> [--password <password>]")
	}
	password := flags["password"]
	if password == "" {
		password = c.ask("Admin password")
	}

	org, err := c.client.Create(ctx, api.CreateOrgRequest{
		OrganizationName: name,
		Email:            email,
		Password:         password,
	})
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(c.out, "✓ Created organization: %s\n", org.OrganizationName)
	c.printOrg(org)
	return nil
}

func (c *cli) cmdGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get <name>")
	}
	org, err := c.client.Get(ctx, args[0])
	if err != nil {
		return err
	}
	c.printOrg(org)
	return nil
}

func (c *cli) cmdUpdate(ctx context.Context, args []string) error {
	flags, positional, err := parseFlags(args)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: update <name> [--email <email>] [--password <password>]")
	}

	var req api.UpdateOrgRequest
	if v, ok := flags["email"]; ok {
		req.Email = &v
	}
	if v, ok := flags["password"]; ok {
		req.Password = &v
	}
	if req.Email == nil && req.Password == nil {
		return fmt.Errorf("provide --email and/or --password")
	}

	res, err := c.client.Update(ctx, positional[0], req)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(c.out, "✓ Updated %s: %s\n", res.OrganizationName, strings.Join(res.UpdatedFields, ", "))
	fmt.Fprintf(c.out, "  Admin email: %s\n", res.AdminEmail)
	return nil
}

func (c *cli) cmdDelete(ctx context.Context, args []string) error {
	flags, positional, err := parseFlags(args, "yes", "y")
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: delete <name> [--yes]")
	}
	if c.client.token == "" {
		return fmt.Errorf("not logged in: run orgkeeper-admin login or set ORGKEEPER_TOKEN")
	}
	name := positional[0]

	if flags["yes"] == "" && flags["y"] == "" {
		answer := c.ask(fmt.Sprintf("Delete organization %q and its admin? Type the name to confirm", name))
		if !strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(name)) {
			fmt.Fprintln(c.out, "Aborted.")
			return nil
		}
	}

	res, err := c.client.Delete(ctx, name)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(c.out, "✓ Deleted organization: %s\n", res.DeletedOrganization)
	fmt.Fprintf(c.out, "  Deleted at: %s\n", res.DeletedAt.Local().Format(time.RFC3339))
	return nil
}

func (c *cli) printOrg(org *api.OrgResponse) {
	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  ID:\t%s\n", org.OrganizationID)
	fmt.Fprintf(w, "  Name:\t%s\n", org.OrganizationName)
	fmt.Fprintf(w, "  Collection:\t%s\n", org.CollectionName)
	fmt.Fprintf(w, "  Admin:\t%s\n", org.AdminEmail)
	fmt.Fprintf(w, "  Created:\t%s\n", org.CreatedAt.Local().Format(time.RFC3339))
	if org.UpdatedAt != nil {
		fmt.Fprintf(w, "  Updated:\t%s\n", org.UpdatedAt.Local().Format(time.RFC3339))
	}
	w.Flush()
}

// ask prompts on out and reads one line.
func (c *cli) ask(question string) string {
	fmt.Fprintf(c.out, "%s: ", question)
	line, _ := c.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// tokenPath returns where login saves the admin token.
func tokenPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "orgkeeper-token"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "orgkeeper", "token")
}

func getToken() string {
	if token := os.Getenv("ORGKEEPER_TOKEN"); token != "" {
		return token
	}
	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
