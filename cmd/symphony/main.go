package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"symphony/internal/config"
	"symphony/internal/observability"
)

var (
	configPath = flag.String("config", "./symphony.toml", "Path to config file")
	auditMode  = flag.Bool("audit", false, "Audit a single file instead of merging")
	watchMode  = flag.Bool("watch", false, "Re-merge whenever sources change")
	outPath    = flag.String("out", "", "Output path for the merged file")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("symphony v%s\n", VERSION)
		os.Exit(0)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if *auditMode && *watchMode {
		fmt.Fprintln(os.Stderr, "--audit and --watch cannot be used together")
		os.Exit(2)
	}
	if flag.NArg() < 1 || flag.NArg() > 2 {
		fmt.Fprintln(os.Stderr, "usage: symphony [flags] <entry.py> [project-root]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	entry := flag.Arg(0)
	root := flag.Arg(1)
	if root == "" {
		root = filepath.Dir(entry)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath != "./symphony.toml" {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg, err = config.Load("./symphony.example.toml")
		if err != nil {
			slog.Debug("no config file found, using defaults")
			cfg = config.Default()
		}
	}

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Observability.OTLPEndpoint, VERSION)
	if err != nil {
		slog.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(ctx); err != nil {
			slog.Warn("tracing shutdown failed", "error", err)
		}
	}()

	if cfg.Observability.MetricsAddr != "" {
		server := observability.NewServer(cfg.Observability.MetricsAddr, VERSION)
		if err := server.Start(ctx); err != nil {
			slog.Error("failed to start observability server", "error", err)
			os.Exit(1)
		}
		defer server.Stop(ctx)
	}

	app, err := NewApp(cfg, *outPath)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	switch {
	case *auditMode:
		passed, err := app.Audit(ctx, entry)
		if err != nil {
			slog.Error("audit failed", "error", err)
			os.Exit(1)
		}
		if !passed {
			os.Exit(1)
		}

	case *watchMode:
		if err := app.Watch(ctx, entry, root); err != nil {
			slog.Error("watch mode failed", "error", err)
			os.Exit(1)
		}
		// Block forever
		select {}

	default:
		if _, err := app.Merge(ctx, entry, root); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}
}
