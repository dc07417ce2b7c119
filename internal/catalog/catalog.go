// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package catalog persists the gallery library in a single SQLite file.

Architecture:

  - Queue: Every read and write is a command run by one worker goroutine that
    owns the *sql.DB. Callers block on a per-command reply channel.
  - Store: Hand-written SQL over the series, chapters, tag, hash and list tables.
  - Modifier: A single-shot builder batching field updates into one UPDATE.
  - Index: A sorted path list answering "is this path already a gallery?".

Startup recovers from unreadable or outdated files only after the user
confirms, through a [Confirmer].
*/
package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/hasher"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/database/schema"
	"github.com/taibuivan/happypanda/internal/platform/dberr"
	"github.com/taibuivan/happypanda/internal/platform/migration"
	"github.com/taibuivan/happypanda/internal/platform/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrDeclined is returned when the user refuses to create or upgrade the database.
var ErrDeclined = errors.New("catalog: database recovery declined")

// # Startup Confirmation

// Prompt identifies a recovery question asked during startup.
type Prompt int

const (
	// PromptCreateFresh asks whether an unreadable database may be replaced by an empty one.
	PromptCreateFresh Prompt = iota
	// PromptUpgrade asks whether an outdated database may be migrated.
	PromptUpgrade
)

func (p Prompt) String() string {
	switch p {
	case PromptCreateFresh:
		return "create_fresh"
	case PromptUpgrade:
		return "upgrade"
	}
	return "unknown"
}

// Confirmer asks the user a yes/no recovery question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt, cause error) bool
}

// ConfirmFunc adapts a function to [Confirmer].
type ConfirmFunc func(ctx context.Context, prompt Prompt, cause error) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt Prompt, cause error) bool {
	return f(ctx, prompt, cause)
}

// BackupUploader copies a database backup off-site. Optional.
type BackupUploader interface {
	UploadFile(ctx context.Context, key, path string) error
}

// # Catalog

// Options configures [Open].
type Options struct {
	// Path is the database file.
	Path string
	// DataDir receives pre-migration backups. Defaults to the directory of Path.
	DataDir string
	// TrashDir receives galleries deleted with [DeleteTrash].
	TrashDir string
	// Hasher computes page hashes and thumbnails. Required for hashing and rebuilds.
	Hasher *hasher.Hasher
	// Thumbs configures thumbnail rendering for rebuilds.
	Thumbs hasher.ThumbOptions
	// Confirm answers startup recovery prompts. Nil declines every prompt.
	Confirm Confirmer
	// Backup uploads pre-migration backups when set.
	Backup BackupUploader
	Logger *slog.Logger
}

// Catalog is the persistent gallery library.
type Catalog struct {
	db      *sql.DB
	queue   *Queue
	index   *pathIndex
	options Options
	logger  *slog.Logger

	guard atomic.Pointer[func(path string)]
}

/*
Open connects to the catalog file, recovering and migrating as needed, and
starts the command queue.

Returns [ErrDeclined] when a recovery prompt is refused.
*/
func Open(ctx context.Context, options Options) (*Catalog, error) {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.DataDir == "" {
		options.DataDir = filepath.Dir(options.Path)
	}
	if options.TrashDir == "" {
		options.TrashDir = filepath.Join(options.DataDir, "trash")
	}
	logger := options.Logger.With(slog.String("component", "catalog"))

	db, err := connect(ctx, options.Path, logger)
	if err != nil {
		logger.Error("catalog_connect_failed", slog.String("path", options.Path), slog.Any("error", err))
		if !confirm(ctx, options.Confirm, PromptCreateFresh, err) {
			return nil, ErrDeclined
		}
		if _, err := moveAside(options.Path, options.DataDir, time.Now()); err != nil {
			return nil, err
		}
		if db, err = connect(ctx, options.Path, logger); err != nil {
			return nil, err
		}
	}

	version, err := storedVersion(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	switch {
	case version > constants.DBVersion:
		_ = db.Close()
		return nil, fmt.Errorf("catalog: database version %.2f is newer than supported %.2f", version, constants.DBVersion)

	case version > 0 && version < constants.DBVersion:
		cause := fmt.Errorf("catalog: database version %.2f needs an upgrade to %.2f", version, constants.DBVersion)
		logger.Warn("catalog_outdated", slog.Float64("version", version))
		if !confirm(ctx, options.Confirm, PromptUpgrade, cause) {
			_ = db.Close()
			return nil, ErrDeclined
		}
		if err := migrateLegacy(ctx, db, options, logger); err != nil {
			return nil, err
		}
		if db, err = connect(ctx, options.Path, logger); err != nil {
			return nil, err
		}
	}

	if err := prepareSchema(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	locations, err := selectLocations(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("catalog_opened", slog.String("path", options.Path), slog.Int("galleries", len(locations)))

	return &Catalog{
		db:      db,
		queue:   newQueue(db, logger),
		index:   newPathIndex(locations),
		options: options,
		logger:  logger,
	}, nil
}

// Close drains the command queue and closes the database.
func (catalog *Catalog) Close() error {
	catalog.queue.Close()
	return catalog.db.Close()
}

// Queue exposes the command queue for callers composing their own commands.
func (catalog *Catalog) Queue() *Queue { return catalog.queue }

// Ping checks the database through the command queue.
func (catalog *Catalog) Ping(ctx context.Context) error {
	return Exec(ctx, catalog.queue, "ping", func(ctx context.Context, db *sql.DB) error {
		return sqlite.Ping(ctx, db)
	})
}

func confirm(ctx context.Context, confirmer Confirmer, prompt Prompt, cause error) bool {
	return confirmer != nil && confirmer.Confirm(ctx, prompt, cause)
}

// connect opens the file and proves it is a readable SQLite database.
func connect(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	db, err := sqlite.Open(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	var tables int
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&tables); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: unreadable database %s: %w", path, err)
	}
	return db, nil
}

func tableExists(ctx context.Context, db dbtx, table string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&count)
	if err != nil {
		return false, dberr.Wrap(err, "inspect schema")
	}
	return count > 0, nil
}

// storedVersion returns the db_v recorded in the file, or 0 for an empty file.
func storedVersion(ctx context.Context, db dbtx) (float64, error) {
	hasVersion, err := tableExists(ctx, db, schema.Version.Table)
	if err != nil {
		return 0, err
	}
	if !hasVersion {
		hasSeries, err := tableExists(ctx, db, schema.Series.Table)
		if err != nil || !hasSeries {
			return 0, err
		}
		return constants.LegacyDBVersion, nil
	}

	var version sql.NullFloat64
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s", schema.Version.Version, schema.Version.Table)
	if err := db.QueryRowContext(ctx, query).Scan(&version); err != nil {
		return 0, dberr.Wrap(err, "read version")
	}
	if !version.Valid {
		return 0, nil
	}
	return version.Float64, nil
}

// prepareSchema applies the embedded migrations and stamps the current db_v.
func prepareSchema(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	latest, err := migration.Latest(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	report, err := migration.Up(db, migrationFiles, "migrations", logger)
	if err != nil {
		return err
	}
	if report.To != latest {
		return fmt.Errorf("catalog: schema step %d, expected %d", report.To, latest)
	}
	return withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+schema.Version.Table); err != nil {
			return dberr.Wrap(err, "reset version")
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?)", schema.Version.Table, schema.Version.Version)
		_, err := tx.ExecContext(ctx, query, constants.DBVersion)
		return dberr.Wrap(err, "write version")
	})
}

// backupName returns happypanda-{YYYY-MM-DD}.hpdb, numbered when taken.
func backupName(dir string, now time.Time) string {
	base := constants.AppName + "-" + now.Format(constants.BackupLayout)
	candidate := filepath.Join(dir, base+constants.HPDBExtension)
	for n := 1; ; n++ {
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, n, constants.HPDBExtension))
	}
}

// moveAside renames the database file (and its WAL companions) to a backup name.
func moveAside(path, dir string, now time.Time) (string, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("catalog: backup dir: %w", err)
	}
	target := backupName(dir, now)
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("catalog: move database aside: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
	return target, nil
}

// # Galleries

// Exists reports whether any gallery with this path is already in the catalog.
func (catalog *Catalog) Exists(path string) bool {
	return catalog.index.Contains(path)
}

// ExistsIn reports whether the gallery at path and the archive folder inArchive
// is already in the catalog. inArchive is empty for folders and whole archives.
func (catalog *Catalog) ExistsIn(path, inArchive string) bool {
	return catalog.index.ContainsIn(path, inArchive)
}

// Count returns the number of galleries known to the path index.
func (catalog *Catalog) Count() int {
	return catalog.index.Len()
}

/*
Add validates and persists galleries, assigning their ids.

All galleries are written in one transaction; a duplicate path and archive
folder fails the whole batch with a CONFLICT error.
*/
func (catalog *Catalog) Add(ctx context.Context, galleries ...*gallery.Gallery) error {
	now := time.Now()
	for _, g := range galleries {
		if err := g.Validate(now); err != nil {
			return err
		}
	}

	err := Exec(ctx, catalog.queue, "add_galleries", func(ctx context.Context, db *sql.DB) error {
		return withTx(ctx, db, func(tx *sql.Tx) error {
			for _, g := range galleries {
				if err := insertGallery(ctx, tx, g); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		for _, g := range galleries {
			g.SetID(0)
		}
		return err
	}

	for _, g := range galleries {
		catalog.index.Insert(g.Path, g.PathInArchive)
		catalog.logger.Debug("gallery_added", slog.Int64("id", g.ID), slog.String("path", g.Path))
	}
	return nil
}

// Get returns one fully loaded gallery.
func (catalog *Catalog) Get(ctx context.Context, id int64) (*gallery.Gallery, error) {
	return Submit(ctx, catalog.queue, "get_gallery", func(ctx context.Context, db *sql.DB) (*gallery.Gallery, error) {
		g, err := selectGallery(ctx, db, id)
		if err != nil {
			return nil, err
		}
		return g, hydrate(ctx, db, []*gallery.Gallery{g})
	})
}

// GetByPath returns the fully loaded gallery stored at path. For an archive
// split into several galleries it is the one with the first archive folder.
func (catalog *Catalog) GetByPath(ctx context.Context, path string) (*gallery.Gallery, error) {
	galleries, err := catalog.AtPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(galleries) == 0 {
		return nil, apperr.NotFound("Gallery")
	}
	return galleries[0], nil
}

// AtPath returns every fully loaded gallery stored at path, ordered by archive folder.
func (catalog *Catalog) AtPath(ctx context.Context, path string) ([]*gallery.Gallery, error) {
	return Submit(ctx, catalog.queue, "galleries_at_path", func(ctx context.Context, db *sql.DB) ([]*gallery.Gallery, error) {
		clause := fmt.Sprintf("WHERE %s = ? ORDER BY %s", schema.Series.Path, schema.Series.PathInArchive)
		galleries, err := selectGalleries(ctx, db, clause, path)
		if err != nil {
			return nil, err
		}
		return galleries, hydrate(ctx, db, galleries)
	})
}

// PageQuery selects one window of the gallery table.
type PageQuery struct {
	Offset int
	Limit  int
	// Sort is a column key such as "title" or "date_added". Unknown keys order by id.
	Sort       string
	Descending bool
	// View restricts the window to one library view. Zero means every view.
	View gallery.View
}

var sortColumns = map[string]string{
	"id":         schema.Series.ID,
	"title":      schema.Series.Title + " COLLATE NOCASE",
	"artist":     schema.Series.Artist + " COLLATE NOCASE",
	"date_added": schema.Series.DateAdded,
	"pub_date":   schema.Series.PubDate,
	"last_read":  schema.Series.LastRead,
	"times_read": schema.Series.TimesRead,
}

// Page returns one window of fully loaded galleries plus the total count of
// galleries matching the query's view. Ties are broken by id.
func (catalog *Catalog) Page(ctx context.Context, query PageQuery) ([]*gallery.Gallery, int, error) {
	type page struct {
		galleries []*gallery.Gallery
		total     int
	}

	column, ok := sortColumns[query.Sort]
	if !ok {
		column = schema.Series.ID
	}
	direction := "ASC"
	if query.Descending {
		direction = "DESC"
	}

	where, args := "", []any{}
	if query.View != 0 {
		where = fmt.Sprintf("WHERE %s = ?", schema.Series.View)
		args = append(args, int(query.View))
	}

	result, err := Submit(ctx, catalog.queue, "page_galleries", func(ctx context.Context, db *sql.DB) (page, error) {
		var total int
		if err := db.QueryRowContext(ctx, "SELECT count(*) FROM "+schema.Series.Table+" "+where, args...).Scan(&total); err != nil {
			return page{}, dberr.Wrap(err, "count galleries")
		}
		order := fmt.Sprintf("%s ORDER BY %s %s, %s %s LIMIT ? OFFSET ?", where, column, direction, schema.Series.ID, direction)
		galleries, err := selectGalleries(ctx, db, order, append(args, query.Limit, query.Offset)...)
		if err != nil {
			return page{}, err
		}
		return page{galleries: galleries, total: total}, hydrate(ctx, db, galleries)
	})
	return result.galleries, result.total, err
}

// Unexed returns galleries no metadata fetch has been attempted for.
func (catalog *Catalog) Unexed(ctx context.Context) ([]*gallery.Gallery, error) {
	return Submit(ctx, catalog.queue, "unexed_galleries", func(ctx context.Context, db *sql.DB) ([]*gallery.Gallery, error) {
		galleries, err := selectGalleries(ctx, db,
			fmt.Sprintf("WHERE %s = 0 ORDER BY %s", schema.Series.Exed, schema.Series.ID))
		if err != nil {
			return nil, err
		}
		return galleries, hydrate(ctx, db, galleries)
	})
}

// SetTags replaces the tags of one gallery atomically.
func (catalog *Catalog) SetTags(ctx context.Context, id int64, tags gallery.Tags) error {
	return Exec(ctx, catalog.queue, "set_tags", func(ctx context.Context, db *sql.DB) error {
		return withTx(ctx, db, func(tx *sql.Tx) error {
			return replaceTags(ctx, tx, id, tags)
		})
	})
}
