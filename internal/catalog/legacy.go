// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/database/schema"
	"github.com/taibuivan/happypanda/internal/platform/dberr"
)

// legacyTimeLayouts are the date spellings found in pre-0.22 files.
var legacyTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

/*
migrateLegacy upgrades a pre-0.22 file in place.

Steps:
 1. Read legacy series, chapters and tags into galleries (thumbnails dropped).
 2. Write them into a fresh file next to the original.
 3. Move the original to happypanda-{YYYY-MM-DD}.hpdb and the new file into its place.

db is closed on return.
*/
func migrateLegacy(ctx context.Context, db *sql.DB, options Options, logger *slog.Logger) error {
	galleries, err := readLegacy(ctx, db, logger)
	closeErr := db.Close()
	if err != nil {
		return fmt.Errorf("catalog: read legacy database: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("catalog: close legacy database: %w", closeErr)
	}

	clearThumbnails(galleries, options.Thumbs.Dir)

	temp := options.Path + ".migrating"
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(temp + suffix)
	}

	fresh, err := connect(ctx, temp, logger)
	if err != nil {
		return err
	}
	if err := prepareSchema(ctx, fresh, logger); err != nil {
		_ = fresh.Close()
		return err
	}
	err = withTx(ctx, fresh, func(tx *sql.Tx) error {
		for _, g := range galleries {
			if err := insertGallery(ctx, tx, g); err != nil {
				return err
			}
		}
		return nil
	})
	if closeErr := fresh.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("catalog: write migrated database: %w", err)
	}

	backup, err := moveAside(options.Path, options.DataDir, time.Now())
	if err != nil {
		return err
	}
	if err := os.Rename(temp, options.Path); err != nil {
		return fmt.Errorf("catalog: swap migrated database: %w", err)
	}

	logger.Info("catalog_migrated",
		slog.Float64("to_version", constants.DBVersion),
		slog.Int("galleries", len(galleries)),
		slog.String("backup", backup),
	)

	if options.Backup != nil && backup != "" {
		if err := options.Backup.UploadFile(ctx, filepath.Base(backup), backup); err != nil {
			logger.Warn("catalog_backup_upload_failed", slog.String("backup", backup), slog.Any("error", err))
		}
	}
	return nil
}

// readLegacy loads every gallery of an old file, tolerating missing columns.
func readLegacy(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]*gallery.Gallery, error) {
	seriesRows, err := selectRecords(ctx, db, "SELECT * FROM "+schema.Series.Table)
	if err != nil {
		return nil, err
	}
	chapterRows, err := selectRecords(ctx, db, "SELECT * FROM "+schema.Chapters.Table)
	if err != nil {
		return nil, err
	}

	chapters := make(map[int64][]*gallery.Chapter)
	for _, record := range chapterRows {
		seriesID := asInt64(record[schema.Chapters.SeriesID])
		chapters[seriesID] = append(chapters[seriesID], &gallery.Chapter{
			Number:    int(asInt64(record[schema.Chapters.Number])),
			Title:     asString(record[schema.Chapters.Title]),
			Path:      asString(record[schema.Chapters.Path]),
			Pages:     max(int(asInt64(record[schema.Chapters.Pages])), 0),
			InArchive: asInt64(record[schema.Chapters.InArchive]) != 0,
		})
	}

	var (
		legacyIDs []int64
		galleries []*gallery.Gallery
		seen      = make(map[string]bool)
	)
	for _, record := range seriesRows {
		legacyID := asInt64(record[schema.Series.ID])
		g := legacyGallery(record)

		if len(chapters[legacyID]) == 0 {
			logger.Warn("legacy_gallery_skipped", slog.Int64("legacy_id", legacyID), slog.String("reason", "no chapters"))
			continue
		}
		key := normcase(g.Path)
		if seen[key] {
			logger.Warn("legacy_gallery_skipped", slog.Int64("legacy_id", legacyID), slog.String("reason", "duplicate path"))
			continue
		}
		seen[key] = true

		for _, chapter := range chapters[legacyID] {
			if err := g.Chapters.Add(chapter); err != nil {
				logger.Warn("legacy_chapter_skipped", slog.Int64("legacy_id", legacyID), slog.Any("error", err))
			}
		}
		legacyIDs = append(legacyIDs, legacyID)
		galleries = append(galleries, g)
	}

	// Older files may predate the tag tables.
	if hasTags, _ := tableExists(ctx, db, schema.SeriesTagsMap.Table); hasTags && len(legacyIDs) > 0 {
		tags, err := selectTags(ctx, db, legacyIDs)
		if err != nil {
			logger.Warn("legacy_tags_skipped", slog.Any("error", err))
		}
		for i, legacyID := range legacyIDs {
			if t, ok := tags[legacyID]; ok {
				galleries[i].Tags = t
			}
		}
	}
	return galleries, nil
}

func legacyGallery(record map[string]any) *gallery.Gallery {
	g := gallery.New(asString(record[schema.Series.Path]))
	g.Title = asString(record[schema.Series.Title])
	g.Artist = asString(record[schema.Series.Artist])
	g.Info = asString(record[schema.Series.Info])
	g.Type = gallery.ParseType(asString(record[schema.Series.Type]))
	g.Language = asString(record[schema.Series.Language])
	g.Link = asString(record[schema.Series.Link])
	g.Fav = asInt64(record[schema.Series.Fav]) != 0
	g.Exed = asInt64(record[schema.Series.Exed]) != 0
	g.IsArchive = asInt64(record[schema.Series.IsArchive]) != 0
	g.PathInArchive = asString(record[schema.Series.PathInArchive])
	g.Rating = min(max(int(asInt64(record[schema.Series.Rating])), 0), 5)
	g.TimesRead = max(int(asInt64(record[schema.Series.TimesRead])), 0)
	g.PubDate = asTime(record[schema.Series.PubDate])
	g.LastRead = asTime(record[schema.Series.LastRead])
	g.Profile = asString(record[schema.Series.Profile])

	if status := asString(record[schema.Series.Status]); status != "" {
		g.Status = gallery.Status(status)
	}
	if view := asInt64(record[schema.Series.View]); view >= 1 && view <= 3 {
		g.View = gallery.View(view)
	}
	if added := asTime(record[schema.Series.DateAdded]); added != nil {
		g.DateAdded = *added
	}
	if now := time.Now().UTC(); g.PubDate != nil && g.PubDate.After(now) {
		g.PubDate = nil
	}
	return g
}

// clearThumbnails drops thumbnail references and the cached files they point to.
func clearThumbnails(galleries []*gallery.Gallery, thumbDir string) {
	for _, g := range galleries {
		if g.Profile != "" && thumbDir != "" && strings.HasPrefix(filepath.Clean(g.Profile), filepath.Clean(thumbDir)) {
			_ = os.Remove(g.Profile)
		}
		g.Profile = ""
	}
}

// selectRecords returns every row of query as column-name keyed maps.
func selectRecords(ctx context.Context, db dbtx, query string) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, dberr.Wrap(err, "select legacy rows")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, dberr.Wrap(err, "read legacy columns")
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, dberr.Wrap(err, "scan legacy row")
		}
		record := make(map[string]any, len(columns))
		for i, column := range columns {
			record[strings.ToLower(column)] = values[i]
		}
		records = append(records, record)
	}
	return records, dberr.Wrap(rows.Err(), "iterate legacy rows")
}

func asString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func asInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	case string, []byte:
		n, _ := strconv.ParseInt(strings.TrimSpace(asString(v)), 10, 64)
		return n
	}
	return 0
}

func asTime(value any) *time.Time {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return nil
		}
		t := v.UTC()
		return &t
	case string, []byte:
		raw := strings.TrimSpace(asString(v))
		if raw == "" {
			return nil
		}
		for _, layout := range legacyTimeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}
