// ABOUTME: Entry point for the statekeeper daemon
// ABOUTME: Serves accessibility settings, voice command history and the scan cache over HTTP

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/statekeeper/internal/client"
	"github.com/2389/statekeeper/internal/config"
	"github.com/2389/statekeeper/internal/server"
)

// Version is set at build time.
var version = "dev"

const banner = `
     _        _       _
 ___| |_ __ _| |_ ___| | _____  ___ _ __   ___ _ __
/ __| __/ _' | __/ _ \ |/ / _ \/ _ \ '_ \ / _ \ '__|
\__ \ || (_| | ||  __/   <  __/  __/ |_) |  __/ |
|___/\__\__,_|\__\___|_|\_\___|\___| .__/ \___|_|
                                   |_|
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: statekeeper <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                  Start the server")
		fmt.Println("  init [--auth]          Write a default config file")
		fmt.Println("  health                 Check server health")
		fmt.Println("  status                 Show stored collection sizes")
		fmt.Println("  version                Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "status":
		err = runStatus(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, falling back to defaults when it does not exist.
func loadConfig() (*config.Config, string, error) {
	configPath := config.DefaultPath()
	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, configPath, nil
}

func runServe(ctx context.Context) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, configPath, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if configPath == "" {
		fmt.Print("Config:    ")
		yellow.Println("(defaults)")
	} else {
		fmt.Printf("Config:    %s\n", configPath)
	}
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("gRPC:      %s\n", cfg.Server.GRPCAddr)
	}
	green.Print("    ▶ ")
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		fmt.Printf("Storage:   sqlite %s ", cfg.Storage.Path)
		gray.Printf("(%s)\n", cfg.Storage.Driver)
	default:
		fmt.Printf("Storage:   files in %s\n", cfg.Storage.DataDir)
	}
	if cfg.Auth.JWTSecret == "" {
		green.Print("    ▶ ")
		fmt.Print("Auth:      ")
		yellow.Println("disabled")
	}
	fmt.Println()

	logger.Info("starting statekeeper",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
		"backend", cfg.Storage.Backend,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

// runInit writes a default config file. With --auth it also generates a JWT secret.
func runInit(args []string) error {
	withAuth := false
	for _, arg := range args {
		switch arg {
		case "--auth":
			withAuth = true
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	configPath := config.DefaultPath()
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	content := config.Sample
	if withAuth {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		secret := base64.StdEncoding.EncodeToString(secretBytes)
		content = strings.Replace(content,
			`  # jwt_secret: "${STATEKEEPER_JWT_SECRET}"`,
			fmt.Sprintf("  jwt_secret: %q", secret), 1)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Wrote %s\n", configPath)
	if withAuth {
		fmt.Println("  Create an admin token with: statekeeper-admin token create")
	}
	return nil
}

// newClient builds an API client for the configured server.
func newClient(cfg *config.Config) *client.Client {
	return client.New("http://"+cfg.Server.HTTPAddr,
		client.WithToken(os.Getenv("STATEKEEPER_TOKEN")),
		client.WithTimeout(5*time.Second),
	)
}

func runHealth(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	if err := newClient(cfg).Health(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	fmt.Println("healthy")
	return nil
}

func runStatus(ctx context.Context) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	stats, err := newClient(cfg).Status(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tSIZE\tCAP")
	saved := "0"
	if stats.SettingsSaved {
		saved = "1"
	}
	fmt.Fprintf(w, "settings\t%s\t1\n", saved)
	fmt.Fprintf(w, "history\t%d\t%d\n", stats.HistoryLen, stats.HistoryCap)
	fmt.Fprintf(w, "scans\t%d\t%d\n", stats.ScansLen, stats.ScansCap)
	return w.Flush()
}
