// Command gatherer snapshots Deribit option tickers on a fixed slot grid and
// writes raw and smile datasets.
//
// Usage:
//
//	gatherer run --config <path> [--once] [--log-level <level>]
//	gatherer version
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

	"github.com/rickgao/deribit-smiles/internal/config"
	"github.com/rickgao/deribit-smiles/internal/version"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	switch args[0] {
	case "run":
		return runCommand(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return exitOK
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `Usage:
  gatherer run --config <path> [--once] [--log-level debug|info|warn|error]
  gatherer version`)
}

func runCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (required)")
	once := fs.Bool("once", false, "run a single cycle now and exit")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if *configPath == "" {
		fmt.Fprintln(stderr, "run: --config is required")
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "run: unexpected arguments %v\n", fs.Args())
		return exitUsage
	}
	level, err := parseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "run: %v\n", err)
		return exitUsage
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("starting gatherer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"once", *once,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		return exitError
	}

	logger.Info("configuration loaded",
		"interval_minutes", cfg.Schedule.IntervalMinutes,
		"currencies", cfg.Universe.Currencies,
		"kind", cfg.Universe.Kind,
		"data_root", cfg.IO.DataRoot,
		"api_url", cfg.API.RestURL,
	)

	// SIGINT/SIGTERM cancel the run context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, err := newGatherer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start gatherer", "err", err)
		return exitError
	}
	defer g.Close()

	if err := g.Run(ctx, *once); err != nil {
		logger.Error("gatherer stopped with error", "err", err)
		return exitError
	}

	logger.Info("gatherer stopped")
	return exitOK
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
