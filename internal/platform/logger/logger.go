// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package logger builds the process-wide structured logger.

Modes:

  - Default: JSON records on stdout at info level.
  - Dev: human-readable text records streamed to stdout.
  - Debug: every record additionally written at debug level to the debug log file.
*/
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/taibuivan/happypanda/internal/platform/constants"
)

// Options selects the handlers installed by [New].
type Options struct {
	Debug  bool
	Dev    bool
	LogDir string
	Stdout io.Writer
}

// New returns the root logger and a closer for the debug log file.
func New(options Options) (*slog.Logger, io.Closer, error) {
	stdout := options.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	level := slog.LevelInfo
	if options.Debug {
		level = slog.LevelDebug
	}

	var console slog.Handler
	if options.Dev {
		console = slog.NewTextHandler(stdout, &slog.HandlerOptions{Level: level})
	} else {
		console = slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level})
	}

	if !options.Debug {
		return slog.New(console).With(slog.String("app", constants.AppName)), nopCloser{}, nil
	}

	path := filepath.Join(options.LogDir, constants.DebugLogFile)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open debug log: %w", err)
	}

	debugHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})
	root := slog.New(fanout{console, debugHandler}).With(slog.String("app", constants.AppName))
	return root, file, nil
}

// fanout forwards every record to each handler that accepts its level.
type fanout []slog.Handler

func (handlers fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			errs = append(errs, handler.Handle(ctx, record.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (handlers fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(handlers))
	for i, handler := range handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return next
}

func (handlers fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(handlers))
	for i, handler := range handlers {
		next[i] = handler.WithGroup(name)
	}
	return next
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
