// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sqlite provides a managed connection to the single-file catalog database.
//
// # Architecture
//
// This package is part of the Infrastructure layer. It manages the physical
// database handle and applies the pragmas every catalog connection relies on
// (foreign-key cascades, WAL journaling). The catalog's command queue is the
// only consumer, so the pool is pinned to one connection.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	// sqlite3 registers the "sqlite3" database/sql driver.
	_ "github.com/mattn/go-sqlite3"
)

// Opinionated settings for the catalog workload.
const (
	// busyTimeoutMillis lets a short-lived external reader finish before writes fail.
	busyTimeoutMillis = 5000
	// pingTimeout is the maximum duration for a health check ping.
	pingTimeout = 2 * time.Second
)

// Open creates the parent directory if needed and opens the catalog file.
//
// # Parameters
//   - ctx: Context for the initial connectivity check.
//   - path: Filesystem location of the database file, or ":memory:".
//   - logger: Structured logger for connection events.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: ensure data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d", path, busyTimeoutMillis)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// One connection keeps ":memory:" databases alive and matches the single-writer queue.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: pragma journal_mode: %w", err)
		}
	}

	if err := Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite_connected", slog.String("path", path))
	return db, nil
}

// Ping verifies that the catalog connection is healthy.
func Ping(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}

	return nil
}
