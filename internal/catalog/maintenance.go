// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/hasher"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/database/schema"
	"github.com/taibuivan/happypanda/internal/platform/dberr"
)

// errNoHasher is returned by hashing operations on a catalog opened without a hasher.
var errNoHasher = errors.New("catalog: no hasher configured")

// # Deletion

// DeleteMode selects what happens to a deleted gallery's files.
type DeleteMode int

const (
	// DeleteRecord removes only the catalog entry and thumbnail.
	DeleteRecord DeleteMode = iota
	// DeleteTrash moves the gallery files into the trash directory first.
	DeleteTrash
	// DeletePermanent removes the gallery files from disk first.
	DeletePermanent
)

/*
Delete removes a gallery.

Order: gallery files (per mode), then the thumbnail file, then the series row.
Chapters, hashes, tag and list mappings go with the row through cascades.
Files of an archive still holding other galleries are never touched.
*/
func (catalog *Catalog) Delete(ctx context.Context, id int64, mode DeleteMode) error {
	g, err := catalog.Get(ctx, id)
	if err != nil {
		return err
	}

	if mode != DeleteRecord {
		if g.PathInArchive != "" {
			shared, err := catalog.AtPath(ctx, g.Path)
			if err != nil {
				return err
			}
			if len(shared) > 1 {
				return apperr.Conflict("The archive holds other galleries; only the record can be deleted")
			}
		}
		catalog.touching(g.Path)
	}
	switch mode {
	case DeleteTrash:
		if err := catalog.trash(g.Path); err != nil {
			return err
		}
	case DeletePermanent:
		if err := os.RemoveAll(g.Path); err != nil {
			return fmt.Errorf("catalog: remove gallery files: %w", err)
		}
	}

	if g.Profile != "" {
		if err := os.Remove(g.Profile); err != nil && !errors.Is(err, os.ErrNotExist) {
			catalog.logger.Warn("thumbnail_remove_failed", slog.String("path", g.Profile), slog.Any("error", err))
		}
	}

	err = Exec(ctx, catalog.queue, "delete_gallery", func(ctx context.Context, db *sql.DB) error {
		query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", schema.Series.Table, schema.Series.ID)
		_, err := db.ExecContext(ctx, query, id)
		return dberr.Wrap(err, "delete gallery")
	})
	if err != nil {
		return err
	}

	catalog.index.Remove(g.Path, g.PathInArchive)
	catalog.logger.Info("gallery_deleted", slog.Int64("id", id), slog.String("path", g.Path), slog.Int("mode", int(mode)))
	return nil
}

// GuardFiles registers fn to be called with a gallery path right before the
// catalog moves or removes files under it. A nil fn clears the hook.
func (catalog *Catalog) GuardFiles(fn func(path string)) {
	if fn == nil {
		catalog.guard.Store(nil)
		return
	}
	catalog.guard.Store(&fn)
}

func (catalog *Catalog) touching(path string) {
	if fn := catalog.guard.Load(); fn != nil {
		(*fn)(path)
	}
}

func (catalog *Catalog) trash(path string) error {
	if err := os.MkdirAll(catalog.options.TrashDir, 0o755); err != nil {
		return fmt.Errorf("catalog: trash dir: %w", err)
	}
	target := filepath.Join(catalog.options.TrashDir, uuid.NewString()[:8]+"-"+filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("catalog: move to trash: %w", err)
	}
	return nil
}

// # Hashes

// ChapterHashes returns the cached page hashes of one chapter keyed by page index.
func (catalog *Catalog) ChapterHashes(ctx context.Context, chapterID int64) (map[int]string, error) {
	return Submit(ctx, catalog.queue, "chapter_hashes", func(ctx context.Context, db *sql.DB) (map[int]string, error) {
		return selectChapterHashes(ctx, db, chapterID)
	})
}

/*
SampledHashes returns the identity sample of a gallery's first chapter.

Cached pages are read from the catalog; only missing pages are hashed and then
stored. A stale page count triggers one re-count of the chapter before the
hashes are computed again.
*/
func (catalog *Catalog) SampledHashes(ctx context.Context, g *gallery.Gallery) ([]string, error) {
	hashes, err := catalog.PageHashes(ctx, g, nil)
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, len(hashes))
	for index := range hashes {
		indices = append(indices, index)
	}
	slices.Sort(indices)

	sample := make([]string, 0, len(indices))
	for _, index := range indices {
		sample = append(sample, hashes[index])
	}
	return sample, nil
}

// PageHashes returns the first chapter's page hashes at indices, keyed by index.
// A nil indices picks the hasher's sample for the chapter.
func (catalog *Catalog) PageHashes(ctx context.Context, g *gallery.Gallery, indices []int) (map[int]string, error) {
	h := catalog.options.Hasher
	if h == nil {
		return nil, errNoHasher
	}
	chapters := g.Chapters.List()
	if len(chapters) == 0 {
		return nil, fmt.Errorf("catalog: gallery %d has no chapters", g.ID)
	}
	chapter := chapters[0]

	cached := map[int]string{}
	if chapter.ID != 0 {
		var err error
		if cached, err = catalog.ChapterHashes(ctx, chapter.ID); err != nil {
			return nil, err
		}
	}

	wanted := indices
	if wanted == nil {
		wanted = h.Sample(chapter)
	}
	missing := hasher.Missing(cached, wanted)
	if len(missing) > 0 {
		fresh, err := h.HashChapter(g, chapter, missing)
		if apperr.IsCode(err, apperr.CodeInternalPagesMismatch) {
			if err := catalog.recount(ctx, g, chapter); err != nil {
				return nil, err
			}
			cached = map[int]string{}
			if indices == nil {
				wanted = h.Sample(chapter)
			}
			fresh, err = h.HashChapter(g, chapter, wanted)
		}
		if err != nil {
			return nil, err
		}

		if g.ID != 0 && chapter.ID != 0 {
			err := Exec(ctx, catalog.queue, "store_hashes", func(ctx context.Context, db *sql.DB) error {
				return insertHashes(ctx, db, g.ID, chapter.ID, fresh)
			})
			if err != nil {
				return nil, err
			}
		}
		for index, sum := range fresh {
			cached[index] = sum
		}
	}

	hashes := make(map[int]string, len(wanted))
	for _, index := range wanted {
		if sum, ok := cached[index]; ok {
			hashes[index] = sum
		}
	}
	return hashes, nil
}

// recount refreshes a chapter's page count from disk and drops its cached hashes.
func (catalog *Catalog) recount(ctx context.Context, g *gallery.Gallery, chapter *gallery.Chapter) error {
	pages, err := catalog.options.Hasher.CountPages(g, chapter)
	if err != nil {
		return err
	}
	catalog.logger.Warn("chapter_pages_mismatch",
		slog.Int64("gallery_id", g.ID), slog.Int("chapter", chapter.Number),
		slog.Int("stored", chapter.Pages), slog.Int("actual", pages))

	chapter.Pages = pages
	if g.ID == 0 {
		return nil
	}
	return catalog.Modify(g.ID).SetChapters([]*gallery.Chapter{chapter}, false).Execute(ctx)
}

// # Thumbnails & Rebuild

// EnsureThumbnail renders a thumbnail when the gallery has none or its file is gone.
func (catalog *Catalog) EnsureThumbnail(ctx context.Context, g *gallery.Gallery) error {
	if g.Profile != "" {
		if _, err := os.Stat(g.Profile); err == nil {
			return nil
		}
	}
	if catalog.options.Hasher == nil {
		return errNoHasher
	}
	profile, err := catalog.options.Hasher.MakeThumbnail(g, catalog.options.Thumbs)
	if err != nil {
		return err
	}
	g.Profile = profile
	if g.ID == 0 {
		return nil
	}
	return catalog.Modify(g.ID).SetProfile(profile).Execute(ctx)
}

// RebuildOptions selects what [Catalog.Rebuild] regenerates.
type RebuildOptions struct {
	Thumbnails bool
	Hashes     bool
}

/*
Rebuild regenerates thumbnails and hashes and refreshes db_v.

An empty ids slice rebuilds every gallery. Gallery ids are preserved. Per-gallery
failures are logged and joined into the returned error; the remaining galleries
are still processed.
*/
func (catalog *Catalog) Rebuild(ctx context.Context, ids []int64, options RebuildOptions) (int, error) {
	if catalog.options.Hasher == nil && (options.Thumbnails || options.Hashes) {
		return 0, errNoHasher
	}

	if len(ids) == 0 {
		var err error
		ids, err = Submit(ctx, catalog.queue, "rebuild_ids", func(ctx context.Context, db *sql.DB) ([]int64, error) {
			galleries, err := selectGalleries(ctx, db, "ORDER BY "+schema.Series.ID)
			return galleryIDs(galleries), err
		})
		if err != nil {
			return 0, err
		}
	}

	var (
		rebuilt int
		errs    []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}
		if err := catalog.rebuildOne(ctx, id, options); err != nil {
			catalog.logger.Error("gallery_rebuild_failed", slog.Int64("id", id), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("gallery %d: %w", id, err))
			continue
		}
		rebuilt++
	}

	catalog.logger.Info("catalog_rebuilt", slog.Int("rebuilt", rebuilt), slog.Int("failed", len(errs)))
	return rebuilt, errors.Join(errs...)
}

func (catalog *Catalog) rebuildOne(ctx context.Context, id int64, options RebuildOptions) error {
	g, err := catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	h := catalog.options.Hasher
	modifier := catalog.Modify(id).SetDBVersion(constants.DBVersion)

	if options.Thumbnails {
		profile, err := h.MakeThumbnail(g, catalog.options.Thumbs)
		if err != nil {
			return err
		}
		if g.Profile != "" && g.Profile != profile {
			_ = os.Remove(g.Profile)
		}
		modifier.SetProfile(profile)
	}

	if options.Hashes {
		modifier.ClearHashes()
		var recounted []*gallery.Chapter
		for _, chapter := range g.Chapters.List() {
			hashes, err := h.HashChapter(g, chapter, h.Sample(chapter))
			if apperr.IsCode(err, apperr.CodeInternalPagesMismatch) {
				if chapter.Pages, err = h.CountPages(g, chapter); err != nil {
					return err
				}
				recounted = append(recounted, chapter)
				hashes, err = h.HashChapter(g, chapter, h.Sample(chapter))
			}
			if err != nil {
				return err
			}
			modifier.SetHashes(chapter.ID, hashes)
		}
		if len(recounted) > 0 {
			modifier.SetChapters(recounted, false)
		}
	}

	return modifier.Execute(ctx)
}
