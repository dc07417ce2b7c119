// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gallery_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

func newGallery(t *testing.T, path string, pages ...int) *gallery.Gallery {
	t.Helper()
	g := gallery.New(path)
	for i, p := range pages {
		chapter, err := g.Chapters.Create(i)
		require.NoError(t, err)
		chapter.Pages = p
		chapter.Path = path
	}
	return g
}

/*
TestChaptersContainer_Integrity covers duplicate numbers and foreign chapters.
*/
func TestChaptersContainer_Integrity(t *testing.T) {
	container := gallery.NewChaptersContainer(7)

	// 1. Create assigns the owner id
	first, err := container.Create(0)
	require.NoError(t, err)
	assert.Equal(t, int64(7), first.GalleryID)

	// 2. Duplicate numbers are refused
	_, err = container.Create(0)
	assert.True(t, apperr.IsCode(err, apperr.CodeChapterExists))

	// 3. Chapters of another gallery are refused
	err = container.Add(&gallery.Chapter{GalleryID: 9, Number: 1})
	assert.True(t, apperr.IsCode(err, apperr.CodeChapterWrongParentGallery))

	// 4. Removal does not renumber
	require.NoError(t, container.Add(&gallery.Chapter{Number: 2, Pages: 3}))
	assert.True(t, container.Remove(0))
	list := container.List()
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Number)
}

/*
TestGallery_SetIDPropagates checks that chapters follow the gallery id.
*/
func TestGallery_SetIDPropagates(t *testing.T) {
	g := newGallery(t, "/library/a", 5, 6)
	g.SetID(12)

	for _, chapter := range g.Chapters.List() {
		assert.Equal(t, int64(12), chapter.GalleryID)
	}
	assert.Equal(t, 11, g.Pages())
}

/*
TestGallery_Validate lists the rules a gallery must satisfy before persistence.
*/
func TestGallery_Validate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 2)

	tests := []struct {
		name    string
		mutate  func(g *gallery.Gallery)
		isValid bool
	}{
		{"valid", func(g *gallery.Gallery) {}, true},
		{"no_chapters", func(g *gallery.Gallery) { g.Chapters = gallery.NewChaptersContainer(0) }, false},
		{"rating_out_of_range", func(g *gallery.Gallery) { g.Rating = 6 }, false},
		{"future_pub_date", func(g *gallery.Gallery) { g.PubDate = &future }, false},
		{"archive_flag_on_folder", func(g *gallery.Gallery) { g.IsArchive = true }, false},
		{"unknown_type", func(g *gallery.Gallery) { g.Type = "Novel" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGallery(t, "/library/folder", 3)
			tt.mutate(g)
			err := g.Validate(now)
			if tt.isValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

/*
TestParseType maps site categories onto gallery types.
*/
func TestParseType(t *testing.T) {
	assert.Equal(t, gallery.TypeArtistCG, gallery.ParseType("artistcg"))
	assert.Equal(t, gallery.TypeNonH, gallery.ParseType("Non-H"))
	assert.Equal(t, gallery.TypeDoujinshi, gallery.ParseType("doujinshi"))
	assert.Equal(t, gallery.TypeMisc, gallery.ParseType("Something else"))
	assert.Equal(t, gallery.Type(""), gallery.ParseType(" "))
}

/*
TestGallery_JSON keeps chapter order through encoding.
*/
func TestGallery_JSON(t *testing.T) {
	g := newGallery(t, "/library/json", 4, 2)
	g.SetID(3)

	encoded, err := json.Marshal(g)
	require.NoError(t, err)

	decoded := &gallery.Gallery{}
	require.NoError(t, json.Unmarshal(encoded, decoded))
	require.Equal(t, 2, decoded.Chapters.Len())
	assert.Equal(t, int64(3), decoded.Chapters.GalleryID())
	assert.Equal(t, 6, decoded.Pages())
}
