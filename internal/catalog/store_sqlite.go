// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/database/schema"
	"github.com/taibuivan/happypanda/internal/platform/dberr"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, committing on success.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return dberr.Wrap(err, "begin transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return dberr.Wrap(err, "commit transaction")
	}
	return nil
}

// # Series

var seriesSelect = fmt.Sprintf("SELECT %s FROM %s", strings.Join(schema.Series.Columns(), ", "), schema.Series.Table)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGallery(row rowScanner) (*gallery.Gallery, error) {
	var (
		g         = gallery.New("")
		id        int64
		galType   string
		status    string
		view      int
		pubDate   sql.NullTime
		lastRead  sql.NullTime
		dateAdded time.Time
	)
	err := row.Scan(
		&id, &g.Title, &g.Artist, &g.Info, &galType, &g.Language, &status, &g.Rating, &g.Fav,
		&pubDate, &dateAdded, &lastRead, &g.TimesRead, &g.Link, &g.Exed,
		&g.Path, &g.IsArchive, &g.PathInArchive, &view, &g.DBVersion, &g.Profile,
	)
	if err != nil {
		return nil, err
	}

	g.SetID(id)
	g.Type = gallery.Type(galType)
	g.Status = gallery.Status(status)
	g.View = gallery.View(view)
	g.DateAdded = dateAdded.UTC()
	if pubDate.Valid {
		t := pubDate.Time.UTC()
		g.PubDate = &t
	}
	if lastRead.Valid {
		t := lastRead.Time.UTC()
		g.LastRead = &t
	}
	return g, nil
}

func seriesValues(g *gallery.Gallery) []any {
	return []any{
		g.Title, g.Artist, g.Info, string(g.Type), g.Language, string(g.Status), g.Rating, g.Fav,
		nullTime(g.PubDate), g.DateAdded.UTC(), nullTime(g.LastRead), g.TimesRead, g.Link, g.Exed,
		g.Path, g.IsArchive, g.PathInArchive, int(g.View), g.DBVersion, g.Profile,
	}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// insertGallery persists the series row, chapters and tags of g and assigns its id.
func insertGallery(ctx context.Context, tx dbtx, g *gallery.Gallery) error {
	columns := schema.Series.InsertColumns()
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.Series.Table, strings.Join(columns, ", "), placeholders(len(columns)))

	result, err := tx.ExecContext(ctx, query, seriesValues(g)...)
	if err != nil {
		return dberr.Wrap(err, "insert gallery "+g.Path)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return dberr.Wrap(err, "read gallery id")
	}
	g.SetID(id)

	if err := upsertChapters(ctx, tx, id, g.Chapters.List()); err != nil {
		return err
	}
	return replaceTags(ctx, tx, id, g.Tags)
}

func selectGalleries(ctx context.Context, db dbtx, where string, args ...any) ([]*gallery.Gallery, error) {
	rows, err := db.QueryContext(ctx, seriesSelect+" "+where, args...)
	if err != nil {
		return nil, dberr.Wrap(err, "select galleries")
	}
	defer rows.Close()

	var galleries []*gallery.Gallery
	for rows.Next() {
		g, err := scanGallery(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "scan gallery")
		}
		galleries = append(galleries, g)
	}
	return galleries, dberr.Wrap(rows.Err(), "iterate galleries")
}

func selectGallery(ctx context.Context, db dbtx, id int64) (*gallery.Gallery, error) {
	row := db.QueryRowContext(ctx, seriesSelect+fmt.Sprintf(" WHERE %s = ?", schema.Series.ID), id)
	g, err := scanGallery(row)
	if err != nil {
		return nil, dberr.Wrap(err, "select gallery")
	}
	return g, nil
}

func selectLocations(ctx context.Context, db dbtx) ([]location, error) {
	query := fmt.Sprintf("SELECT %s, %s FROM %s", schema.Series.Path, schema.Series.PathInArchive, schema.Series.Table)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, dberr.Wrap(err, "select paths")
	}
	defer rows.Close()

	var locations []location
	for rows.Next() {
		var at location
		if err := rows.Scan(&at.path, &at.inArchive); err != nil {
			return nil, dberr.Wrap(err, "scan path")
		}
		locations = append(locations, at)
	}
	return locations, dberr.Wrap(rows.Err(), "iterate paths")
}

// hydrate loads chapters, tags and hashes for already scanned galleries.
func hydrate(ctx context.Context, db dbtx, galleries []*gallery.Gallery) error {
	ids := galleryIDs(galleries)
	chapters, err := selectChapters(ctx, db, ids)
	if err != nil {
		return err
	}
	tags, err := selectTags(ctx, db, ids)
	if err != nil {
		return err
	}
	hashes, err := selectHashes(ctx, db, ids)
	if err != nil {
		return err
	}
	for _, g := range galleries {
		for _, chapter := range chapters[g.ID] {
			if err := g.Chapters.Add(chapter); err != nil {
				return err
			}
		}
		if t, ok := tags[g.ID]; ok {
			g.Tags = t
		}
		g.Hashes = hashes[g.ID]
	}
	return nil
}

// # Chapters

func selectChapters(ctx context.Context, db dbtx, ids []int64) (map[int64][]*gallery.Chapter, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s) ORDER BY %s, %s",
		strings.Join(schema.Chapters.Columns(), ", "), schema.Chapters.Table,
		schema.Chapters.SeriesID, placeholders(len(ids)),
		schema.Chapters.SeriesID, schema.Chapters.Number)

	rows, err := db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, dberr.Wrap(err, "select chapters")
	}
	defer rows.Close()

	chapters := make(map[int64][]*gallery.Chapter)
	for rows.Next() {
		var chapter gallery.Chapter
		if err := rows.Scan(&chapter.ID, &chapter.GalleryID, &chapter.Title, &chapter.Number,
			&chapter.Path, &chapter.Pages, &chapter.InArchive); err != nil {
			return nil, dberr.Wrap(err, "scan chapter")
		}
		chapters[chapter.GalleryID] = append(chapters[chapter.GalleryID], &chapter)
	}
	return chapters, dberr.Wrap(rows.Err(), "iterate chapters")
}

/*
upsertChapters writes chapters keyed by (gallery, number) and assigns their ids.

A chapter whose path or page count changed loses its cached hashes.
*/
func upsertChapters(ctx context.Context, tx dbtx, galleryID int64, chapters []*gallery.Chapter) error {
	staleHashes := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (
		SELECT %s FROM %s WHERE %s = ? AND %s = ? AND (%s != ? OR %s != ?))`,
		schema.Hashes.Table, schema.Hashes.ChapterID,
		schema.Chapters.ID, schema.Chapters.Table, schema.Chapters.SeriesID, schema.Chapters.Number,
		schema.Chapters.Path, schema.Chapters.Pages)

	upsert := fmt.Sprintf(`INSERT INTO %[1]s (%[2]s, %[3]s, %[4]s, %[5]s, %[6]s, %[7]s)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (%[2]s, %[4]s) DO UPDATE SET
			%[3]s = excluded.%[3]s, %[5]s = excluded.%[5]s,
			%[6]s = excluded.%[6]s, %[7]s = excluded.%[7]s
		RETURNING %[8]s`,
		schema.Chapters.Table, schema.Chapters.SeriesID, schema.Chapters.Title, schema.Chapters.Number,
		schema.Chapters.Path, schema.Chapters.Pages, schema.Chapters.InArchive, schema.Chapters.ID)

	for _, chapter := range chapters {
		if _, err := tx.ExecContext(ctx, staleHashes, galleryID, chapter.Number, chapter.Path, chapter.Pages); err != nil {
			return dberr.Wrap(err, "clear stale chapter hashes")
		}
		row := tx.QueryRowContext(ctx, upsert,
			galleryID, chapter.Title, chapter.Number, chapter.Path, chapter.Pages, chapter.InArchive)
		if err := row.Scan(&chapter.ID); err != nil {
			return dberr.Wrap(err, "upsert chapter")
		}
		chapter.GalleryID = galleryID
	}
	return nil
}

// replaceChapters upserts chapters and drops the numbers no longer present.
func replaceChapters(ctx context.Context, tx dbtx, galleryID int64, chapters []*gallery.Chapter) error {
	if err := upsertChapters(ctx, tx, galleryID, chapters); err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", schema.Chapters.Table, schema.Chapters.SeriesID)
	args := []any{galleryID}
	if len(chapters) > 0 {
		query += fmt.Sprintf(" AND %s NOT IN (%s)", schema.Chapters.Number, placeholders(len(chapters)))
		for _, chapter := range chapters {
			args = append(args, chapter.Number)
		}
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return dberr.Wrap(err, "prune chapters")
}

// # Tags

func selectTags(ctx context.Context, db dbtx, ids []int64) (map[int64]gallery.Tags, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT stm.%s, n.%s, t.%s
		FROM %s stm
		JOIN %s m ON m.%s = stm.%s
		JOIN %s n ON n.%s = m.%s
		JOIN %s t ON t.%s = m.%s
		WHERE stm.%s IN (%s)`,
		schema.SeriesTagsMap.SeriesID, schema.Namespaces.Name, schema.Tags.Name,
		schema.SeriesTagsMap.Table,
		schema.TagsMappings.Table, schema.TagsMappings.ID, schema.SeriesTagsMap.MappingID,
		schema.Namespaces.Table, schema.Namespaces.ID, schema.TagsMappings.NamespaceID,
		schema.Tags.Table, schema.Tags.ID, schema.TagsMappings.TagID,
		schema.SeriesTagsMap.SeriesID, placeholders(len(ids)))

	rows, err := db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, dberr.Wrap(err, "select tags")
	}
	defer rows.Close()

	tags := make(map[int64]gallery.Tags)
	for rows.Next() {
		var (
			id             int64
			namespace, tag string
		)
		if err := rows.Scan(&id, &namespace, &tag); err != nil {
			return nil, dberr.Wrap(err, "scan tag")
		}
		if tags[id] == nil {
			tags[id] = gallery.Tags{}
		}
		tags[id].Add(namespace, tag)
	}
	return tags, dberr.Wrap(rows.Err(), "iterate tags")
}

/*
replaceTags swaps the tag set of one gallery.

Only the gallery's mapping rows are deleted; namespace, tag and
namespace-tag rows are shared and reused through INSERT OR IGNORE.
*/
func replaceTags(ctx context.Context, tx dbtx, galleryID int64, tags gallery.Tags) error {
	unlink := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", schema.SeriesTagsMap.Table, schema.SeriesTagsMap.SeriesID)
	if _, err := tx.ExecContext(ctx, unlink, galleryID); err != nil {
		return dberr.Wrap(err, "clear gallery tags")
	}

	insertNamespace := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (?)", schema.Namespaces.Table, schema.Namespaces.Name)
	insertTag := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (?)", schema.Tags.Table, schema.Tags.Name)
	insertMapping := fmt.Sprintf(`INSERT OR IGNORE INTO %s (%s, %s)
		SELECT n.%s, t.%s FROM %s n, %s t WHERE n.%s = ? AND t.%s = ?`,
		schema.TagsMappings.Table, schema.TagsMappings.NamespaceID, schema.TagsMappings.TagID,
		schema.Namespaces.ID, schema.Tags.ID, schema.Namespaces.Table, schema.Tags.Table,
		schema.Namespaces.Name, schema.Tags.Name)
	link := fmt.Sprintf(`INSERT OR IGNORE INTO %s (%s, %s)
		SELECT ?, m.%s FROM %s m
		JOIN %s n ON n.%s = m.%s
		JOIN %s t ON t.%s = m.%s
		WHERE n.%s = ? AND t.%s = ?`,
		schema.SeriesTagsMap.Table, schema.SeriesTagsMap.SeriesID, schema.SeriesTagsMap.MappingID,
		schema.TagsMappings.ID, schema.TagsMappings.Table,
		schema.Namespaces.Table, schema.Namespaces.ID, schema.TagsMappings.NamespaceID,
		schema.Tags.Table, schema.Tags.ID, schema.TagsMappings.TagID,
		schema.Namespaces.Name, schema.Tags.Name)

	for _, namespace := range tags.Namespaces() {
		if _, err := tx.ExecContext(ctx, insertNamespace, namespace); err != nil {
			return dberr.Wrap(err, "insert namespace")
		}
		for _, tag := range tags.Get(namespace) {
			if _, err := tx.ExecContext(ctx, insertTag, tag); err != nil {
				return dberr.Wrap(err, "insert tag")
			}
			if _, err := tx.ExecContext(ctx, insertMapping, namespace, tag); err != nil {
				return dberr.Wrap(err, "insert tag mapping")
			}
			if _, err := tx.ExecContext(ctx, link, galleryID, namespace, tag); err != nil {
				return dberr.Wrap(err, "link gallery tag")
			}
		}
	}
	return nil
}

// # Hashes

func selectHashes(ctx context.Context, db dbtx, ids []int64) (map[int64][]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT h.%s, h.%s FROM %s h
		JOIN %s c ON c.%s = h.%s
		WHERE h.%s IN (%s)
		ORDER BY h.%s, c.%s, h.%s`,
		schema.Hashes.SeriesID, schema.Hashes.Hash, schema.Hashes.Table,
		schema.Chapters.Table, schema.Chapters.ID, schema.Hashes.ChapterID,
		schema.Hashes.SeriesID, placeholders(len(ids)),
		schema.Hashes.SeriesID, schema.Chapters.Number, schema.Hashes.Page)

	rows, err := db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, dberr.Wrap(err, "select hashes")
	}
	defer rows.Close()

	hashes := make(map[int64][]string)
	for rows.Next() {
		var (
			id  int64
			sum string
		)
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, dberr.Wrap(err, "scan hash")
		}
		hashes[id] = append(hashes[id], sum)
	}
	return hashes, dberr.Wrap(rows.Err(), "iterate hashes")
}

func selectChapterHashes(ctx context.Context, db dbtx, chapterID int64) (map[int]string, error) {
	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = ?",
		schema.Hashes.Page, schema.Hashes.Hash, schema.Hashes.Table, schema.Hashes.ChapterID)

	rows, err := db.QueryContext(ctx, query, chapterID)
	if err != nil {
		return nil, dberr.Wrap(err, "select chapter hashes")
	}
	defer rows.Close()

	hashes := make(map[int]string)
	for rows.Next() {
		var (
			page int
			sum  string
		)
		if err := rows.Scan(&page, &sum); err != nil {
			return nil, dberr.Wrap(err, "scan chapter hash")
		}
		hashes[page] = sum
	}
	return hashes, dberr.Wrap(rows.Err(), "iterate chapter hashes")
}

func insertHashes(ctx context.Context, tx dbtx, galleryID, chapterID int64, hashes map[int]string) error {
	query := fmt.Sprintf("INSERT OR REPLACE INTO %s (%s, %s, %s, %s) VALUES (?, ?, ?, ?)",
		schema.Hashes.Table, schema.Hashes.Hash, schema.Hashes.SeriesID, schema.Hashes.ChapterID, schema.Hashes.Page)
	for page, sum := range hashes {
		if _, err := tx.ExecContext(ctx, query, sum, galleryID, chapterID, page); err != nil {
			return dberr.Wrap(err, "insert hash")
		}
	}
	return nil
}

func deleteHashes(ctx context.Context, tx dbtx, galleryID int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", schema.Hashes.Table, schema.Hashes.SeriesID)
	_, err := tx.ExecContext(ctx, query, galleryID)
	return dberr.Wrap(err, "delete hashes")
}

// # Helpers

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func galleryIDs(galleries []*gallery.Gallery) []int64 {
	ids := make([]int64, len(galleries))
	for i, g := range galleries {
		ids[i] = g.ID
	}
	return ids
}
