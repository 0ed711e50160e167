// ABOUTME: Admin CLI for a running statekeeper daemon
// ABOUTME: Reads and edits settings, voice command history and cached scans over the HTTP API

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/statekeeper/internal/auth"
	"github.com/2389/statekeeper/internal/client"
	"github.com/2389/statekeeper/internal/config"
)

const defaultURL = "http://127.0.0.1:7420"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "settings":
		err = runSettings(ctx, os.Args[2:])
	case "history":
		err = runHistory(ctx, os.Args[2:])
	case "scans":
		err = runScans(ctx, os.Args[2:])
	case "status":
		err = runStatus(ctx)
	case "token":
		err = runToken(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if client.IsUnauthorized(err) {
			color.Red("Error: unauthorized (set STATEKEEPER_TOKEN or run 'statekeeper-admin token create')\n")
		} else {
			color.Red("Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow)

	cyan.Println("statekeeper-admin")
	fmt.Println("Manage a running statekeeper daemon")
	fmt.Println()
	yellow.Println("Settings:")
	fmt.Println("  settings get                        Show accessibility settings")
	fmt.Println("  settings set <key=value>...         Update individual settings")
	fmt.Println("  settings reset                      Store the default settings")
	fmt.Println()
	yellow.Println("History:")
	fmt.Println("  history list [--limit N]            Show recent voice commands")
	fmt.Println("  history add <transcript> [flags]    Record a voice command")
	fmt.Println("      --matched <command>             Command the transcript matched")
	fmt.Println("      --confidence <0..1>             Recognizer confidence")
	fmt.Println("  history clear                       Delete all voice commands")
	fmt.Println()
	yellow.Println("Scans:")
	fmt.Println("  scans get <id>                      Show a cached scan")
	fmt.Println("  scans add --path <file> [flags]     Cache a scan result")
	fmt.Println("      --id <id>                       Scan id (generated when omitted)")
	fmt.Println("      --result <json>                 Raw scan result")
	fmt.Println("  scans clear                         Delete all cached scans")
	fmt.Println()
	yellow.Println("Other:")
	fmt.Println("  status                              Show collection sizes")
	fmt.Println("  token create [--subject S] [--expires D]   (no expiry by default)")
	fmt.Println("                                      Mint an API token from the configured secret")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  STATEKEEPER_URL          Server URL (default: " + defaultURL + ")")
	fmt.Println("  STATEKEEPER_TOKEN        API token (or ~/.config/statekeeper/token)")
	fmt.Println("  STATEKEEPER_JWT_SECRET   Signing secret for 'token create'")
}

func newClient() *client.Client {
	return client.New(getEnv("STATEKEEPER_URL", defaultURL),
		client.WithToken(getToken()),
		client.WithTimeout(10*time.Second),
	)
}

func runStatus(ctx context.Context) error {
	stats, err := newClient().Status(ctx)
	if err != nil {
		return err
	}

	w := newTable()
	fmt.Fprintln(w, "COLLECTION\tSIZE\tCAP")
	saved := 0
	if stats.SettingsSaved {
		saved = 1
	}
	fmt.Fprintf(w, "settings\t%d\t1\n", saved)
	fmt.Fprintf(w, "history\t%d\t%d\n", stats.HistoryLen, stats.HistoryCap)
	fmt.Fprintf(w, "scans\t%d\t%d\n", stats.ScansLen, stats.ScansCap)
	return w.Flush()
}

func runToken(args []string) error {
	if len(args) == 0 || args[0] != "create" {
		return fmt.Errorf("usage: statekeeper-admin token create [--subject S] [--expires D]")
	}

	subject := "admin"
	var expires time.Duration
	rest := args[1:]
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case "--subject":
			if i+1 >= len(rest) {
				return fmt.Errorf("--subject requires a value")
			}
			i++
			subject = rest[i]
		case "--expires":
			if i+1 >= len(rest) {
				return fmt.Errorf("--expires requires a value")
			}
			i++
			d, err := time.ParseDuration(rest[i])
			if err != nil {
				return fmt.Errorf("invalid --expires: %w", err)
			}
			expires = d
		default:
			return fmt.Errorf("unknown flag: %s", rest[i])
		}
	}

	secret, err := jwtSecret()
	if err != nil {
		return err
	}

	verifier, err := auth.NewJWTVerifier([]byte(secret))
	if err != nil {
		return err
	}
	token, err := verifier.Generate(subject, expires)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

// jwtSecret reads the signing secret from the environment, then the daemon config.
func jwtSecret() (string, error) {
	if secret := os.Getenv("STATEKEEPER_JWT_SECRET"); secret != "" {
		return secret, nil
	}

	cfg, err := config.Load(config.DefaultPath())
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("no JWT secret: set STATEKEEPER_JWT_SECRET or auth.jwt_secret in %s", config.DefaultPath())
	}
	if err != nil {
		return "", err
	}
	if cfg.Auth.JWTSecret == "" {
		return "", fmt.Errorf("auth is disabled: auth.jwt_secret is empty in %s", config.DefaultPath())
	}
	return cfg.Auth.JWTSecret, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getToken returns the API token from STATEKEEPER_TOKEN or ~/.config/statekeeper/token.
func getToken() string {
	if token := os.Getenv("STATEKEEPER_TOKEN"); token != "" {
		return token
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(home, ".config", "statekeeper", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
