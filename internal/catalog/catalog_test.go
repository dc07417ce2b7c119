// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog_test

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/archive"
	"github.com/taibuivan/happypanda/internal/catalog"
	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/hasher"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

type fixture struct {
	root    string
	catalog *catalog.Catalog
}

func openCatalog(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	c, err := catalog.Open(context.Background(), catalog.Options{
		Path:   filepath.Join(root, "data", "happypanda.db"),
		Hasher: hasher.New(archive.Opener{TempDir: filepath.Join(root, "temp")}, 4),
		Thumbs: hasher.ThumbOptions{Dir: filepath.Join(root, "thumbs"), Width: 20, Height: 30},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return &fixture{root: root, catalog: c}
}

// newGallery writes count PNG pages under root/name and returns an unsaved gallery.
func (f *fixture) newGallery(t *testing.T, name string, count int) *gallery.Gallery {
	t.Helper()
	folder := filepath.Join(f.root, "library", name)
	require.NoError(t, os.MkdirAll(folder, 0o755))
	for i := 0; i < count; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		img.Set(0, 0, color.RGBA{R: uint8(i * 10), G: byte(len(name)), B: 1, A: 255})
		file, err := os.Create(filepath.Join(folder, fmt.Sprintf("%03d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(file, img))
		require.NoError(t, file.Close())
	}

	g := gallery.New(folder)
	g.Title = name
	chapter, err := g.Chapters.Create(0)
	require.NoError(t, err)
	chapter.Path, chapter.Pages = folder, count
	return g
}

/*
TestCatalog_AddAndGet verifies a saved gallery loads back unchanged.
*/
func TestCatalog_AddAndGet(t *testing.T) {
	f := openCatalog(t)
	ctx := context.Background()

	// 1. Build a gallery with every kind of field
	g := f.newGallery(t, "round-trip", 3)
	pub := time.Date(2016, 8, 20, 0, 0, 0, 0, time.UTC)
	g.Artist, g.Type, g.Language, g.Rating, g.Fav = "Nokin", gallery.TypeDoujinshi, "english", 4, true
	g.PubDate, g.Link, g.Status = &pub, "https://e-hentai.org/g/1/abc/", gallery.StatusCompleted
	g.Tags.Add("Artist", "nokin")
	g.Tags.Add("female", "glasses")
	g.Tags.Add("", "full color")

	// 2. Persist
	require.NoError(t, f.catalog.Add(ctx, g))
	require.NotZero(t, g.ID)
	assert.True(t, f.catalog.Exists(g.Path))
	assert.Equal(t, 1, f.catalog.Count())

	// 3. Load back
	loaded, err := f.catalog.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.Title, loaded.Title)
	assert.Equal(t, g.Artist, loaded.Artist)
	assert.Equal(t, g.Type, loaded.Type)
	assert.Equal(t, g.Rating, loaded.Rating)
	assert.True(t, loaded.Fav)
	assert.Equal(t, gallery.StatusCompleted, loaded.Status)
	require.NotNil(t, loaded.PubDate)
	assert.True(t, pub.Equal(*loaded.PubDate))
	assert.True(t, g.DateAdded.Equal(loaded.DateAdded))
	assert.Nil(t, loaded.LastRead)
	assert.Equal(t, g.Tags, loaded.Tags)

	chapters := loaded.Chapters.List()
	require.Len(t, chapters, 1)
	assert.Equal(t, 3, chapters[0].Pages)
	assert.Equal(t, g.ID, chapters[0].GalleryID)
	assert.NotZero(t, chapters[0].ID)

	byPath, err := f.catalog.GetByPath(ctx, g.Path)
	require.NoError(t, err)
	assert.Equal(t, g.ID, byPath.ID)
}

/*
TestCatalog_AddRejects covers validation and path uniqueness.
*/
func TestCatalog_AddRejects(t *testing.T) {
	f := openCatalog(t)
	ctx := context.Background()

	t.Run("no_chapters", func(t *testing.T) {
		err := f.catalog.Add(ctx, gallery.New(filepath.Join(f.root, "empty")))
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
	})

	t.Run("duplicate_path", func(t *testing.T) {
		first := f.newGallery(t, "dup", 1)
		require.NoError(t, f.catalog.Add(ctx, first))

		second := f.newGallery(t, "dup", 1)
		err := f.catalog.Add(ctx, second)
		require.Error(t, err)
		assert.Equal(t, "CONFLICT", apperr.As(err).Code)
		assert.Zero(t, second.ID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := f.catalog.Get(ctx, 9999)
		assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
	})
}

/*
TestModifier verifies last-write-wins, sub-operations and single execution.
*/
func TestModifier(t *testing.T) {
	f := openCatalog(t)
	ctx := context.Background()

	g := f.newGallery(t, "modify", 2)
	g.Tags.Add("parody", "original")
	require.NoError(t, f.catalog.Add(ctx, g))

	// 1. Record changes, overriding the title once
	tags := gallery.Tags{}
	tags.Add("language", "japanese")
	moved := filepath.Join(f.root, "library", "moved")

	modifier := f.catalog.Modify(g.ID).
		SetTitle("first").
		SetRating(9).
		SetTitle("second").
		SetTags(tags).
		SetPath(moved, false, "")
	require.NoError(t, modifier.Execute(ctx))

	// 2. Second execution is refused
	assert.ErrorIs(t, modifier.Execute(ctx), catalog.ErrModifierExecuted)

	// 3. Verify
	loaded, err := f.catalog.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.Title)
	assert.Equal(t, 5, loaded.Rating)
	assert.Equal(t, tags, loaded.Tags)
	assert.Equal(t, moved, loaded.Path)
	assert.True(t, f.catalog.Exists(moved))
	assert.False(t, f.catalog.Exists(g.Path))

	// 4. Unknown gallery
	err = f.catalog.Modify(424242).SetTitle("x").Execute(ctx)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)
}

/*
TestCatalog_SetTags replaces one gallery's tags without touching another's.
*/
func TestCatalog_SetTags(t *testing.T) {
	f := openCatalog(t)
	ctx := context.Background()

	first := f.newGallery(t, "first", 1)
	second := f.newGallery(t, "second", 1)
	for _, g := range []*gallery.Gallery{first, second} {
		g.Tags.Add("Female", "glasses")
	}
	require.NoError(t, f.catalog.Add(ctx, first, second))

	// Namespace spelled differently still reuses the stored row
	update := gallery.Tags{}
	update.Add("FEMALE", "glasses")
	update.Add("male", "tall")
	require.NoError(t, f.catalog.SetTags(ctx, first.ID, update))
	require.NoError(t, f.catalog.SetTags(ctx, first.ID, gallery.Tags{}))

	loadedFirst, err := f.catalog.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, loadedFirst.Tags)

	loadedSecond, err := f.catalog.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"glasses"}, loadedSecond.Tags.Get("female"))
}

/*
TestCatalog_Delete moves files to trash and removes every trace of the gallery.
*/
func TestCatalog_Delete(t *testing.T) {
	f := openCatalog(t)
	ctx := context.Background()

	g := f.newGallery(t, "doomed", 2)
	require.NoError(t, f.catalog.Add(ctx, g))
	require.NoError(t, f.catalog.EnsureThumbnail(ctx, g))
	require.FileExists(t, g.Profile)

	list := &gallery.List{Name: "keep", Galleries: []int64{g.ID}}
	require.NoError(t, f.catalog.CreateList(ctx, list))

	require.NoError(t, f.catalog.Delete(ctx, g.ID, catalog.DeleteTrash))

	assert.NoDirExists(t, g.Path)
	assert.NoFileExists(t, g.Profile)
	assert.False(t, f.catalog.Exists(g.Path))

	trashed, err := os.ReadDir(filepath.Join(f.root, "data", "trash"))
	require.NoError(t, err)
	assert.Len(t, trashed, 1)

	_, err = f.catalog.Get(ctx, g.ID)
	assert.Equal(t, "NOT_FOUND", apperr.As(err).Code)

	lists, err := f.catalog.Lists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Empty(t, lists[0].Galleries)
}

/*
TestCatalog_SharedArchive covers galleries that share one file and differ by
archive folder.
*/
func TestCatalog_SharedArchive(t *testing.T) {
	f := openCatalog(t)
	ctx := context.Background()

	// 1. Both folders of one path are stored side by side
	first := f.newGallery(t, "shared", 1)
	first.PathInArchive = "b"
	second := f.newGallery(t, "shared", 1)
	second.PathInArchive = "a"
	require.NoError(t, f.catalog.Add(ctx, first, second))

	assert.True(t, f.catalog.Exists(first.Path))
	assert.True(t, f.catalog.ExistsIn(first.Path, "a"))
	assert.True(t, f.catalog.ExistsIn(first.Path, "b"))
	assert.False(t, f.catalog.ExistsIn(first.Path, "c"))

	at, err := f.catalog.AtPath(ctx, first.Path)
	require.NoError(t, err)
	require.Len(t, at, 2)
	assert.Equal(t, "a", at[0].PathInArchive)

	got, err := f.catalog.GetByPath(ctx, first.Path)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	// 2. Files stay while a sibling still uses them
	err = f.catalog.Delete(ctx, first.ID, catalog.DeleteTrash)
	assert.Equal(t, "CONFLICT", apperr.As(err).Code)
	assert.DirExists(t, first.Path)

	// 3. Record deletes only drop their own folder
	require.NoError(t, f.catalog.Delete(ctx, first.ID, catalog.DeleteRecord))
	assert.False(t, f.catalog.ExistsIn(first.Path, "b"))
	assert.True(t, f.catalog.ExistsIn(first.Path, "a"))

	require.NoError(t, f.catalog.Delete(ctx, second.ID, catalog.DeleteTrash))
	assert.NoDirExists(t, first.Path)
	assert.False(t, f.catalog.Exists(first.Path))
}

/*
TestCatalog_Load streams galleries in batches before their follow-up stages.
*/
func TestCatalog_Load(t *testing.T) {
	f := openCatalog(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g := f.newGallery(t, fmt.Sprintf("load-%d", i), 1)
		g.Tags.Add("artist", fmt.Sprintf("a%d", i))
		require.NoError(t, f.catalog.Add(ctx, g))
	}

	var sizes []int
	stages := map[catalog.LoadStage]int{}
	for event := range f.catalog.Load(ctx, 2) {
		require.NoError(t, event.Err)
		stages[event.Stage]++
		if event.Stage == catalog.StageGalleries {
			sizes = append(sizes, len(event.Galleries))
		}
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
	assert.Equal(t, 3, stages[catalog.StageChapters])
	assert.Equal(t, 3, stages[catalog.StageTags])

	all, err := f.catalog.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, g := range all {
		assert.Equal(t, 1, g.Chapters.Len())
		assert.Equal(t, []string{fmt.Sprintf("a%d", i)}, g.Tags.Get("artist"))
	}
}

/*
TestCatalog_SampledHashes caches sampled hashes and recovers from stale page counts.
*/
func TestCatalog_SampledHashes(t *testing.T) {
	f := openCatalog(t)
	ctx := context.Background()

	g := f.newGallery(t, "hashed", 10)
	require.NoError(t, f.catalog.Add(ctx, g))

	// 1. First call hashes and stores the sample
	sample, err := f.catalog.SampledHashes(ctx, g)
	require.NoError(t, err)
	require.Len(t, sample, 4)

	chapter := g.Chapters.List()[0]
	cached, err := f.catalog.ChapterHashes(ctx, chapter.ID)
	require.NoError(t, err)
	assert.Len(t, cached, 4)

	// 2. Second call is served from the cache
	again, err := f.catalog.SampledHashes(ctx, g)
	require.NoError(t, err)
	assert.Equal(t, sample, again)

	// 3. A stale page count is corrected before hashing
	stale := f.newGallery(t, "stale", 12)
	stale.Chapters.List()[0].Pages = 10
	require.NoError(t, f.catalog.Add(ctx, stale))

	sample, err = f.catalog.SampledHashes(ctx, stale)
	require.NoError(t, err)
	assert.Len(t, sample, 4)

	loaded, err := f.catalog.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, loaded.Chapters.List()[0].Pages)
}

/*
TestCatalog_Lists covers enforced filters and pruning.
*/
func TestCatalog_Lists(t *testing.T) {
	f := openCatalog(t)
	ctx := context.Background()

	tagged := f.newGallery(t, "tagged", 1)
	tagged.Tags.Add("female", "glasses")
	plain := f.newGallery(t, "plain", 1)
	require.NoError(t, f.catalog.Add(ctx, tagged, plain))

	list := &gallery.List{Name: "Glasses", Filter: "female:glasses", Enforce: true}
	require.NoError(t, f.catalog.CreateList(ctx, list))
	require.NotZero(t, list.ID)

	// 1. Enforced membership
	require.NoError(t, f.catalog.AddToList(ctx, list.ID, tagged))
	err := f.catalog.AddToList(ctx, list.ID, plain)
	assert.Equal(t, "UNPROCESSABLE", apperr.As(err).Code)

	// 2. Tag change makes the member stale; pruning removes it
	require.NoError(t, f.catalog.SetTags(ctx, tagged.ID, gallery.Tags{}))
	all, err := f.catalog.LoadAll(ctx)
	require.NoError(t, err)
	removed, err := f.catalog.PruneLists(ctx, all)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	lists, err := f.catalog.Lists(ctx)
	require.NoError(t, err)
	assert.Empty(t, lists[0].Galleries)

	// 3. Initial members of an enforced list must match too
	require.NoError(t, f.catalog.SetTags(ctx, tagged.ID, gallery.ParseTags("female:glasses")))
	seeded := &gallery.List{Name: "Seeded", Filter: "female:glasses", Enforce: true, Galleries: []int64{tagged.ID, plain.ID, 999}}
	require.NoError(t, f.catalog.CreateList(ctx, seeded))
	assert.Equal(t, []int64{tagged.ID}, seeded.Galleries)

	loose := &gallery.List{Name: "Loose", Galleries: []int64{plain.ID}}
	require.NoError(t, f.catalog.CreateList(ctx, loose))
	assert.Equal(t, []int64{plain.ID}, loose.Galleries)

	// 4. Validation and deletion
	assert.Error(t, f.catalog.CreateList(ctx, &gallery.List{Name: "bad", Enforce: true}))
	for _, id := range []int64{list.ID, seeded.ID, loose.ID} {
		require.NoError(t, f.catalog.DeleteList(ctx, id))
	}
	lists, err = f.catalog.Lists(ctx)
	require.NoError(t, err)
	assert.Empty(t, lists)
}

/*
TestCatalog_Rebuild regenerates thumbnails and hashes while keeping ids.
*/
func TestCatalog_Rebuild(t *testing.T) {
	f := openCatalog(t)
	ctx := context.Background()

	first := f.newGallery(t, "rebuild-a", 5)
	second := f.newGallery(t, "rebuild-b", 2)
	require.NoError(t, f.catalog.Add(ctx, first, second))

	rebuilt, err := f.catalog.Rebuild(ctx, nil, catalog.RebuildOptions{Thumbnails: true, Hashes: true})
	require.NoError(t, err)
	assert.Equal(t, 2, rebuilt)

	for _, g := range []*gallery.Gallery{first, second} {
		loaded, err := f.catalog.Get(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g.ID, loaded.ID)
		assert.FileExists(t, loaded.Profile)
		assert.Len(t, loaded.Hashes, min(g.Pages(), 4))
	}
}

/*
TestCatalog_Page verifies windows, orderings and the view filter.
*/
func TestCatalog_Page(t *testing.T) {
	f := openCatalog(t)
	ctx := context.Background()

	// 1. Three galleries, titles out of id order, one in the duplicate view
	for i, title := range []string{"beta", "Alpha", "gamma"} {
		g := f.newGallery(t, title, 1)
		g.TimesRead = i
		if title == "gamma" {
			g.View = gallery.ViewDuplicate
		}
		require.NoError(t, f.catalog.Add(ctx, g))
	}

	titles := func(galleries []*gallery.Gallery) []string {
		var out []string
		for _, g := range galleries {
			out = append(out, g.Title)
		}
		return out
	}

	tests := []struct {
		name   string
		query  catalog.PageQuery
		expect []string
		total  int
	}{
		{"Id order", catalog.PageQuery{Limit: 10}, []string{"beta", "Alpha", "gamma"}, 3},
		{"Title ignores case", catalog.PageQuery{Limit: 10, Sort: "title"}, []string{"Alpha", "beta", "gamma"}, 3},
		{"Most read first", catalog.PageQuery{Limit: 10, Sort: "times_read", Descending: true}, []string{"gamma", "Alpha", "beta"}, 3},
		{"Window", catalog.PageQuery{Offset: 1, Limit: 1, Sort: "title"}, []string{"beta"}, 3},
		{"Unknown sort", catalog.PageQuery{Limit: 10, Sort: "rating; DROP TABLE series"}, []string{"beta", "Alpha", "gamma"}, 3},
		{"Duplicate view", catalog.PageQuery{Limit: 10, View: gallery.ViewDuplicate}, []string{"gamma"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			galleries, total, err := f.catalog.Page(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, titles(galleries))
			assert.Equal(t, tt.total, total)
		})
	}
}
