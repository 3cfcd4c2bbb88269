package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/hookbox/internal/api"
	"github.com/mattjoyce/hookbox/internal/auth"
	"github.com/mattjoyce/hookbox/internal/config"
	"github.com/mattjoyce/hookbox/internal/doctor"
	"github.com/mattjoyce/hookbox/internal/events"
	"github.com/mattjoyce/hookbox/internal/lock"
	"github.com/mattjoyce/hookbox/internal/log"
	"github.com/mattjoyce/hookbox/internal/maintenance"
	"github.com/mattjoyce/hookbox/internal/message"
	"github.com/mattjoyce/hookbox/internal/metrics"
	"github.com/mattjoyce/hookbox/internal/storage"
	"github.com/mattjoyce/hookbox/internal/tui/watch"
	"github.com/mattjoyce/hookbox/internal/webhook"
)

const version = "0.1.0"

const (
	configEnv     = "HOOKBOX_CONFIG"
	urlEnv        = "HOOKBOX_URL"
	tokenEnv      = "HOOKBOX_TOKEN"
	defaultURL    = "http://localhost:8000"
	eventHistory  = 256
	defaultTTL    = 24 * time.Hour
	exitOK        = 0
	exitFailure   = 1
	exitWarnings  = 2
	shutdownGrace = 10 * time.Second
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitFailure
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "system":
		return runSystemNoun(rest, stdout, stderr)
	case "config":
		return runConfigNoun(rest, stdout, stderr)
	case "token":
		return runTokenNoun(rest, stdout, stderr)

	// Root alias.
	case "start":
		return runStart(rest, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "hookbox version %s\n", version)
		return exitOK
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printUsage(stderr)
		return exitFailure
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `hookbox - signed webhook ingestion service

Usage:
  hookbox <noun> <action> [flags]

System Commands:
  system start      Start the HTTP service in foreground
  system watch      Live dashboard for a running service

Config Commands:
  config show       Print the effective configuration (secrets masked)
  config check      Validate configuration and database reachability

Token Commands:
  token issue       Mint a read-scope JWT signed with READ_JWT_SECRET

General:
  version           Show version information
  help              Show this help message

Configuration is read from --config (or $HOOKBOX_CONFIG) and overridden by
environment variables such as WEBHOOK_SECRET and DATABASE_URL.
`)
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: hookbox system <start|watch> [flags]")
		return exitFailure
	}
	switch action, rest := args[0], args[1:]; action {
	case "start":
		return runStart(rest, stdout, stderr)
	case "watch":
		return runWatch(rest, stderr)
	case "help", "--help", "-h":
		fmt.Fprintln(stdout, "Usage: hookbox system <start|watch> [flags]")
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown system action: %s\n", action)
		return exitFailure
	}
}

func runConfigNoun(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: hookbox config <show|check> [flags]")
		return exitFailure
	}
	switch action, rest := args[0], args[1:]; action {
	case "show":
		return runConfigShow(rest, stdout, stderr)
	case "check":
		return runConfigCheck(rest, stdout, stderr)
	case "help", "--help", "-h":
		fmt.Fprintln(stdout, "Usage: hookbox config <show|check> [flags]")
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown config action: %s\n", action)
		return exitFailure
	}
}

func runTokenNoun(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		fmt.Fprintln(stderr, "Usage: hookbox token issue [flags]")
		return exitFailure
	}
	switch action, rest := args[0], args[1:]; action {
	case "issue":
		return runTokenIssue(rest, stdout, stderr)
	case "help", "--help", "-h":
		fmt.Fprintln(stdout, "Usage: hookbox token issue [flags]")
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown token action: %s\n", action)
		return exitFailure
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting and
// carries the shared --config flag.
func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", os.Getenv(configEnv), "Path to YAML configuration file")
	return fs, configPath
}

func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitFailure, false
	}
	return exitOK, true
}

// --- SYSTEM ---

func runStart(args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("start", stderr)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return exitFailure
	}

	logger := log.SetupWithWriter(stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, logger)
}

// serve wires every component and blocks until ctx is cancelled or one of
// them fails.
func serve(ctx context.Context, cfg *config.Config, base *slog.Logger) int {
	logger := base.With("component", "main")

	target, err := storage.ParseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		logger.Error("invalid database url", "error", err)
		return exitFailure
	}
	logger.Info("hookbox starting", "version", version, "database", target.String(), "profile", cfg.ValidationProfile)

	if target.Backend == storage.BackendSQLite && target.Path != storage.MemoryPath {
		if err := storage.ValidateSQLiteFilesystem(target.Path); err != nil {
			logger.Error("unsupported database location", "error", err)
			return exitFailure
		}
		pidLock, err := lock.Acquire(lock.PathFor(target.Path))
		if err != nil {
			logger.Error("failed to acquire PID lock (another instance may be running)", "error", err)
			return exitFailure
		}
		defer func() { _ = pidLock.Release() }()
		logger.Info("acquired PID lock", "path", pidLock.Path())
	}

	db, _, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "database", target.String(), "error", err)
		return exitFailure
	}
	defer db.Close()

	store := message.NewStore(db)

	profile, err := webhook.ProfileByName(cfg.ValidationProfile)
	if err != nil {
		logger.Error("invalid validation profile", "error", err)
		return exitFailure
	}
	if !cfg.Ready() {
		logger.Warn("WEBHOOK_SECRET is not set; only the demo signature will be accepted and readiness reports 503")
	}

	collector := metrics.New()
	hub := events.NewHub(eventHistory)

	ingestor := webhook.NewIngestor(store, webhook.NewValidator(profile), cfg.WebhookSecret)
	handler := webhook.NewHandler(webhook.HandlerConfig{
		SignatureHeader: cfg.SignatureHeader,
		MaxBodySize:     cfg.MaxBodyBytes(),
	}, ingestor, collector, hub)

	authn := auth.NewAuthenticator(cfg.ReadAuth.Tokens, cfg.ReadAuth.JWTSecret)
	if authn.Enabled() {
		logger.Info("read endpoints require a bearer token")
	}

	server := api.New(api.Config{
		Listen:           cfg.Listen,
		SecretConfigured: cfg.Ready(),
		ShutdownTimeout:  shutdownGrace,
	}, store, handler, collector, hub, authn, base.With("component", "api"))

	runner, err := maintenance.New(store, cfg.MaintenanceInterval, base)
	if err != nil {
		logger.Error("failed to configure maintenance", "error", err)
		return exitFailure
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := runner.Run(gctx); err != nil {
			return fmt.Errorf("maintenance: %w", err)
		}
		return nil
	})

	logger.Info("hookbox running (press Ctrl+C to stop)", "listen", cfg.Listen)
	if err := g.Wait(); err != nil {
		logger.Error("component failed", "error", err)
		return exitFailure
	}
	logger.Info("hookbox stopped")
	return exitOK
}

func runWatch(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	url := fs.String("url", envOr(urlEnv, defaultURL), "Base URL of the hookbox service")
	token := fs.String("token", os.Getenv(tokenEnv), "Bearer token for read endpoints")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	if err := watch.Run(*url, *token); err != nil {
		fmt.Fprintf(stderr, "watch: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// --- CONFIG ---

func runConfigShow(args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("show", stderr)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Config load error: %v\n", err)
		return exitFailure
	}
	out, err := cfg.YAML()
	if err != nil {
		fmt.Fprintf(stderr, "YAML format error: %v\n", err)
		return exitFailure
	}
	_, _ = stdout.Write(out)
	return exitOK
}

func runConfigCheck(args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("check", stderr)
	strict := fs.Bool("strict", false, "Treat warnings as errors")
	jsonOut := fs.Bool("json", false, "Output in JSON")
	offline := fs.Bool("offline", false, "Skip the database connectivity check")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Config load error: %v\n", err)
		return exitFailure
	}

	var ping doctor.Pinger = doctor.PingDatabase
	if *offline {
		ping = nil
	}
	result := doctor.New(cfg, ping).Validate(context.Background())

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(stderr, "JSON format error: %v\n", err)
			return exitFailure
		}
		fmt.Fprintln(stdout, out)
	} else {
		fmt.Fprint(stdout, doctor.FormatHuman(result))
	}

	if !result.Valid {
		return exitFailure
	}
	if *strict && len(result.Warnings) > 0 {
		return exitWarnings
	}
	return exitOK
}

// --- TOKEN ---

func runTokenIssue(args []string, stdout, stderr io.Writer) int {
	fs, configPath := newFlagSet("issue", stderr)
	subject := fs.String("subject", "", "Token subject (required)")
	scopes := fs.String("scope", auth.ScopeMessagesRead, "Space or comma separated scopes")
	ttl := fs.Duration("ttl", defaultTTL, "Token lifetime")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if strings.TrimSpace(*subject) == "" {
		fmt.Fprintln(stderr, "--subject is required")
		return exitFailure
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Config load error: %v\n", err)
		return exitFailure
	}

	list := strings.FieldsFunc(*scopes, func(r rune) bool { return r == ',' || r == ' ' })
	token, err := auth.IssueToken(cfg.ReadAuth.JWTSecret, *subject, list, *ttl)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to issue token: %v (set READ_JWT_SECRET)\n", err)
		return exitFailure
	}
	fmt.Fprintln(stdout, token)
	return exitOK
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
