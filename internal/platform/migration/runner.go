// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration applies the embedded catalog schema with golang-migrate.
//
// # Architecture
//
// Schema files are compiled into the binary and read through an [fs.FS]. The
// catalog runs [Up] on every open, after its own db_v check has decided the
// file is current or has been upgraded from the legacy layout. [Up] reports
// the schema step before and after so the caller can log or stamp it.
package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Report describes one [Up] run. Step 0 means an empty file.
type Report struct {
	From    uint
	To      uint
	Applied bool
}

// Up applies every pending step in dir to an open SQLite handle.
//
// # Parameters
//   - db: An open catalog connection. It stays open after Up returns.
//   - files: Filesystem holding NNNNNN_name.up.sql / .down.sql pairs.
//   - dir: Directory inside files (usually "migrations").
//   - logger: Structured logger for migration events.
func Up(db *sql.DB, files fs.FS, dir string, logger *slog.Logger) (Report, error) {
	source, err := iofs.New(files, dir)
	if err != nil {
		return Report{}, fmt.Errorf("migration: open source: %w", err)
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			logger.Error("migration_source_close_failed", slog.Any("error", closeErr))
		}
	}()

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return Report{}, fmt.Errorf("migration: wrap database: %w", err)
	}

	// Not closed: closing the migrator closes the shared *sql.DB.
	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return Report{}, fmt.Errorf("migration: initialize: %w", err)
	}
	migrator.Log = &migrateLogger{
		logger:  logger,
		verbose: logger.Enabled(context.Background(), slog.LevelDebug),
	}

	from, dirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return Report{}, fmt.Errorf("migration: read step: %w", err)
	}
	if dirty {
		return Report{From: from}, fmt.Errorf("migration: catalog schema is dirty at step %d", from)
	}

	err = migrator.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Debug("catalog_schema_current", slog.Uint64("step", uint64(from)))
		return Report{From: from, To: from}, nil
	}
	if err != nil {
		return Report{From: from}, fmt.Errorf("migration: up: %w", err)
	}

	to, _, err := migrator.Version()
	if err != nil {
		return Report{From: from, Applied: true}, fmt.Errorf("migration: read step: %w", err)
	}
	logger.Info("catalog_schema_migrated",
		slog.Uint64("from_step", uint64(from)),
		slog.Uint64("to_step", uint64(to)),
	)
	return Report{From: from, To: to, Applied: true}, nil
}

// Latest returns the highest step number found in dir, or 0 when it holds none.
func Latest(files fs.FS, dir string) (uint, error) {
	entries, err := fs.ReadDir(files, dir)
	if err != nil {
		return 0, fmt.Errorf("migration: list %s: %w", dir, err)
	}

	var latest uint
	for _, entry := range entries {
		name := path.Base(entry.Name())
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		step, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil {
			continue
		}
		latest = max(latest, uint(step))
	}
	return latest, nil
}

// migrateLogger forwards golang-migrate output to slog at debug level.
type migrateLogger struct {
	logger  *slog.Logger
	verbose bool
}

func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *migrateLogger) Verbose() bool {
	return l.verbose
}
