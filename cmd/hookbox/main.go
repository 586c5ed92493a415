package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/hookbox/internal/account"
	"github.com/mattjoyce/hookbox/internal/api"
	"github.com/mattjoyce/hookbox/internal/config"
	"github.com/mattjoyce/hookbox/internal/doctor"
	"github.com/mattjoyce/hookbox/internal/log"
	"github.com/mattjoyce/hookbox/internal/logstore"
	"github.com/mattjoyce/hookbox/internal/registry"
	"github.com/mattjoyce/hookbox/internal/storage"
	"github.com/mattjoyce/hookbox/internal/tui"
	"github.com/mattjoyce/hookbox/internal/webhook"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		if hasHelpFlag(args) {
			printStartHelp()
			return 0
		}
		return runStart(args)
	case "account":
		return runAccountNoun(args)
	case "config":
		return runConfigNoun(args)
	case "tail":
		if hasHelpFlag(args) {
			printTailHelp()
			return 0
		}
		return runTail(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: hookbox version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("hookbox %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if commit != "" {
		info.Commit = shortenCommit(commit)
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`hookbox - multi-tenant webhook receiver

Usage:
  hookbox <command> [flags]

Commands:
  start             Run the HTTP server in the foreground
  account create    Create an account and print its API key
  config check      Validate configuration (and optionally the database)
  config lock       Write integrity hashes for the config and .env
  tail              Follow requests received by an endpoint
  version           Show version information
  help              Show this help message

Use 'hookbox <command> --help' for command flags.
`)
}

func printStartHelp() {
	fmt.Println("Usage: hookbox start [--config PATH]")
	fmt.Println("Run the ingestion and management server in the foreground.")
}

func printTailHelp() {
	fmt.Println("Usage: hookbox tail --endpoint ID [--url URL] [--key KEY] [--interval DURATION]")
	fmt.Println()
	fmt.Println("Terminal viewer for requests received by one of your endpoints.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --endpoint ID         Endpoint id (from 'GET /endpoints')")
	fmt.Println("  --url URL             Server base URL (default: http://127.0.0.1:5000)")
	fmt.Println("  --key KEY             Account API key (or HOOKBOX_API_KEY env var)")
	fmt.Println("  --interval DURATION   Poll interval (default: 2s)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  r                Refresh now")
	fmt.Println("  ↑/↓, k/j         Select request")
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// defaultConfigPath honours HOOKBOX_CONFIG before falling back to ./hookbox.yaml.
func defaultConfigPath() string {
	if p := strings.TrimSpace(os.Getenv("HOOKBOX_CONFIG")); p != "" {
		return p
	}
	return config.DefaultPath
}

// loadConfig loads .env files (working directory, then next to the config)
// and the config itself.
func loadConfig(configPath string) (*config.Config, error) {
	envFiles := []string{".env"}
	if dir := filepath.Dir(configPath); dir != "." {
		envFiles = append(envFiles, filepath.Join(dir, ".env"))
	}
	if _, err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	return config.Load(configPath)
}

func storageOptions(cfg *config.Config) storage.Options {
	return storage.Options{
		Driver: cfg.State.Driver,
		Path:   cfg.State.Path,
		DSN:    cfg.State.DSN,
	}
}

// --- NOUN DISPATCHERS ---

func runAccountNoun(args []string) int {
	if len(args) < 1 {
		printAccountNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printAccountNounHelp(os.Stdout)
		return 0
	}

	switch args[0] {
	case "create":
		return runAccountCreate(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown account action: %s\n", args[0])
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "lock":
		if hasHelpFlag(actionArgs) {
			printConfigLockHelp()
			return 0
		}
		return runConfigLock(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func printAccountNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: hookbox account <action>")
	fmt.Fprintln(w, "Actions: create")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: hookbox config <action> [flags]")
	fmt.Fprintln(w, "Actions: check, lock")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: hookbox config check [--config PATH] [--db] [--strict] [--json]")
	fmt.Println("Validate configuration. With --db, also connect to the database and check its tables.")
	fmt.Println("")
	fmt.Println("Exit codes:")
	fmt.Println("  0  No errors")
	fmt.Println("  1  One or more errors")
	fmt.Println("  2  Warnings only, with --strict")
}

func printConfigLockHelp() {
	fmt.Println("Usage: hookbox config lock [--config PATH] [-v|--verbose] [--dry-run]")
	fmt.Println("Write BLAKE3 hashes of the config file and its .env to .checksums.")
}

// --- ACTION IMPLEMENTATIONS ---

func runAccountCreate(args []string) int {
	fs := flag.NewFlagSet("account create", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "Path to configuration file")
	username := fs.String("username", "", "Account username")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if strings.TrimSpace(*username) == "" {
		fmt.Fprintln(os.Stderr, "Usage: hookbox account create --username NAME [--config PATH] [--json]")
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.Open(ctx, storageOptions(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	acct, apiKey, err := account.NewStore(db).Create(ctx, *username)
	switch {
	case errors.Is(err, account.ErrDuplicateUsername):
		fmt.Fprintf(os.Stderr, "Account %q already exists\n", strings.TrimSpace(*username))
		return 1
	case errors.Is(err, account.ErrInvalidUsername):
		fmt.Fprintf(os.Stderr, "Invalid username: %v\n", err)
		return 1
	case err != nil:
		fmt.Fprintf(os.Stderr, "Failed to create account: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, err := json.MarshalIndent(map[string]string{
			"id":       acct.ID,
			"username": acct.Username,
			"api_key":  apiKey,
		}, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("Created account %s (%s)\n", acct.Username, acct.ID)
	fmt.Printf("API key: %s\n", apiKey)
	fmt.Println("Store this key now; it cannot be shown again.")
	return 0
}

func runConfigCheck(args []string) int {
	var configPath string
	var checkDB, strict, jsonOut bool

	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", defaultConfigPath(), "Path to configuration file")
	fs.BoolVar(&checkDB, "db", false, "Connect to the database and check its tables")
	fs.BoolVar(&strict, "strict", false, "Treat warnings as errors")
	fs.BoolVar(&jsonOut, "json", false, "Output in JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var db *storage.DB
	if checkDB {
		db, err = storage.Connect(ctx, storageOptions(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Database error: %v\n", err)
			return 1
		}
		defer db.Close()
	}

	result := doctor.New(cfg, db).Validate(ctx)

	if jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	if strict && len(result.Warnings) > 0 {
		return 2
	}
	return 0
}

func runConfigLock(args []string) int {
	var configPath string
	var verbose, verboseShort, dryRun bool

	fs := flag.NewFlagSet("lock", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", defaultConfigPath(), "Path to configuration file")
	fs.BoolVar(&verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&verboseShort, "v", false, "Verbose output")
	fs.BoolVar(&dryRun, "dry-run", false, "Dry run")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	report, err := config.Lock(configPath, dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to lock config: %v\n", err)
		return 1
	}

	if verbose || verboseShort {
		for _, file := range report.Files {
			if file.Exists {
				fmt.Printf("  HASH %s: %s\n", file.Filename, file.Hash)
				continue
			}
			fmt.Printf("  SKIP %s: not found (optional)\n", file.Filename)
		}
	}

	if dryRun {
		fmt.Printf("Dry run: %s not written\n", report.ChecksumPath)
	} else {
		fmt.Printf("Locked configuration: %s\n", report.ChecksumPath)
	}
	return 0
}

func runTail(args []string) int {
	fs := flag.NewFlagSet("tail", flag.ContinueOnError)
	endpointID := fs.String("endpoint", "", "Endpoint id")
	apiURL := fs.String("url", "http://127.0.0.1:5000", "Server base URL")
	apiKey := fs.String("key", os.Getenv("HOOKBOX_API_KEY"), "Account API key")
	interval := fs.Duration("interval", 2*time.Second, "Poll interval")
	limit := fs.Int("limit", logstore.DefaultLimit, "Entries fetched per poll")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *endpointID == "" {
		fmt.Fprintln(os.Stderr, "Error: --endpoint is required.")
		return 1
	}
	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --key or HOOKBOX_API_KEY env var.")
		return 1
	}

	fetch := tui.HTTPFetcher(*apiURL, *apiKey, *endpointID, *limit)
	p := tea.NewProgram(tui.NewMonitor(*endpointID, fetch, *interval))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

// newServer wires the stores, the ingestion handler and the management API
// over an open database.
func newServer(cfg *config.Config, db *storage.DB, logger *slog.Logger) (*api.Server, error) {
	logs := logstore.New(db)
	endpoints := registry.New(db, logs)
	accounts := account.NewStore(db)

	webhookConfig, err := webhook.FromGlobalConfig(&cfg.Webhooks)
	if err != nil {
		return nil, fmt.Errorf("configure webhooks: %w", err)
	}
	ingest := webhook.New(webhookConfig, endpoints, logs, logger.With("component", "webhook"))

	apiConfig := api.Config{
		Listen:       cfg.Server.Listen,
		PublicURL:    cfg.Server.PublicURL,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return api.New(apiConfig, endpoints, logs, db, accounts, ingest.Routes(), logger.With("component", "api")), nil
}

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath(), "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("hookbox starting", "version", version, "config", cfg.SourcePath)

	if cfg.PermissiveAuth() {
		logger.Warn("webhook auth policy is permissive: calls without a bearer token are accepted",
			"field", "webhooks.auth_policy")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.Open(ctx, storageOptions(cfg))
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.State.Driver, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "driver", db.Dialect)

	srv, err := newServer(cfg, db, log.Get())
	if err != nil {
		logger.Error("failed to build server", "error", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("hookbox running (press Ctrl+C to stop)", "listen", cfg.Server.Listen)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
		if err := <-errCh; err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			return 1
		}
	}

	logger.Info("hookbox stopped")
	return 0
}
