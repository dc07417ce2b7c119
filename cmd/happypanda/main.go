// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command happypanda is the entry point of the gallery library engine.
//
// # Startup Sequence
//
//  1. Parse flags.
//  2. Load configuration from the environment and .env.
//  3. Initialize the structured logger.
//  4. Open the catalog and wire sessions, fetchers and optional backends.
//  5. Run the requested subcommand.
//  6. Remove temporary files and exit.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/taibuivan/happypanda/internal/catalog"
	"github.com/taibuivan/happypanda/internal/platform/config"
	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/logger"
)

// flags are the process-level switches.
type flags struct {
	Debug      bool
	Test       bool
	Version    bool
	Exceptions bool
	Dev        bool
}

const usage = `usage: happypanda [flags] <command> [args]

commands:
  scan PATH...          add the galleries found below each path
  fetch                 fetch metadata for galleries not fetched yet
  download [--to DIR] URL...
                        download galleries and add them to the library
  export [DIR]          write a .hpdb snapshot of user data
  import FILE           restore user data from a .hpdb snapshot
  dedup [--mark]        report galleries sharing the same pages
  rebuild [ID...]       regenerate thumbnails and page hashes, prune lists
  list [ACTION]         show lists, or create, add, remove, delete
  serve                 watch the library and serve the local API
  login SITE            sign in to a site and store the cookies

flags:
`

func main() {
	os.Exit(run())
}

func run() int {
	// ── 1. Flags ──────────────────────────────────────────────────────────
	var opts flags
	fs := pflag.NewFlagSet(constants.AppName, pflag.ContinueOnError)
	fs.BoolVarP(&opts.Debug, "debug", "d", false, "Write a debug log file next to the data directory")
	fs.BoolVarP(&opts.Test, "test", "t", false, "Use a throwaway library filled with fixture galleries")
	fs.BoolVarP(&opts.Version, "version", "v", false, "Print the version and exit")
	fs.BoolVarP(&opts.Exceptions, "exceptions", "e", false, "Let worker panics crash the process")
	fs.BoolVar(&opts.Dev, "dev", false, "Stream human-readable logs")
	fs.SetInterspersed(false)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.Version {
		fmt.Printf("%s %s (db %.2f)\n", constants.AppName, constants.AppVersion, constants.DBVersion)
		return 0
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if opts.Debug {
		cfg.Debug = true
	}
	if err := cfg.EnsureDirs(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	// ── 3. Logger ─────────────────────────────────────────────────────────
	log, closer, err := logger.New(logger.Options{Debug: cfg.Debug, Dev: opts.Dev, LogDir: cfg.DataDir})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closer.Close()
	slog.SetDefault(log)

	log.Info("process_starting",
		slog.String("version", constants.AppVersion),
		slog.String("command", fs.Arg(0)),
		slog.Bool("test", opts.Test),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 4. Wiring ─────────────────────────────────────────────────────────
	app, err := newApp(ctx, cfg, log, opts)
	if errors.Is(err, catalog.ErrDeclined) {
		log.Info("database_recovery_declined")
		return 0
	}
	if err != nil {
		log.Error("startup_failure", slog.Any("error", err))
		return 1
	}
	defer app.Close()

	// ── 5. Command ────────────────────────────────────────────────────────
	err = app.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
	switch {
	case errors.Is(err, errRestart):
		log.Info("restart_requested")
		return constants.RestartExitCode
	case errors.Is(err, errUsage):
		fs.Usage()
		return 2
	case errors.Is(err, context.Canceled):
		log.Info("interrupted")
		return 130
	case err != nil:
		log.Error("command_failed", slog.String("command", fs.Arg(0)), slog.Any("error", err))
		return 1
	}
	return 0
}
