// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package hasher_test

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/archive"
	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/hasher"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

/*
TestHashReader checks the digest against a known SHA-1 vector.
*/
func TestHashReader(t *testing.T) {
	sum, err := hasher.HashReader(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "a9993e364706816aba3e25717850c26c9cd0d89d", sum)

	// Larger than one chunk
	big := bytes.Repeat([]byte("x"), 20000)
	first, err := hasher.HashReader(bytes.NewReader(big))
	require.NoError(t, err)
	second, err := hasher.HashReader(bytes.NewReader(big))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

/*
TestSamplePages verifies deterministic, evenly spaced sampling.
*/
func TestSamplePages(t *testing.T) {
	tests := []struct {
		name  string
		pages int
		n     int
		want  []int
	}{
		{"empty", 0, 4, nil},
		{"fewer_pages", 3, 4, []int{0, 1, 2}},
		{"exact", 4, 4, []int{0, 1, 2, 3}},
		{"ten_pages", 10, 4, []int{0, 3, 6, 9}},
		{"eighteen_pages", 18, 4, []int{0, 6, 11, 17}},
		{"single_sample", 30, 1, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasher.SamplePages(tt.pages, tt.n))
			assert.Equal(t, hasher.SamplePages(tt.pages, tt.n), hasher.SamplePages(tt.pages, tt.n))
		})
	}
}

/*
TestMissing returns only uncached indices.
*/
func TestMissing(t *testing.T) {
	cached := map[int]string{0: "a", 6: "b"}
	assert.Equal(t, []int{11, 17}, hasher.Missing(cached, []int{0, 6, 11, 17}))
	assert.Nil(t, hasher.Missing(cached, []int{0}))
}

func writePages(t *testing.T, dir string, count int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i := 0; i < count; i++ {
		body := []byte(fmt.Sprintf("raw page %d", i))
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("%02d.jpg", i)), body, 0o644))
	}
}

func zipDir(t *testing.T, dir, target string) {
	t.Helper()
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		body, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		require.NoError(t, err)
		w, err := writer.Create(entry.Name())
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	require.NoError(t, os.WriteFile(target, buffer.Bytes(), 0o644))
}

/*
TestHashChapter_ContainerInvariant hashes the same pages in a folder and in a zip.
*/
func TestHashChapter_ContainerInvariant(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "folder")
	writePages(t, folder, 6)
	zipped := filepath.Join(root, "folder.zip")
	zipDir(t, folder, zipped)

	h := hasher.New(archive.Opener{TempDir: root}, 4)

	dirGallery := gallery.New(folder)
	dirChapter, _ := dirGallery.Chapters.Create(0)
	dirChapter.Path, dirChapter.Pages = folder, 6

	zipGallery := gallery.New(zipped)
	zipGallery.IsArchive = true
	zipChapter, _ := zipGallery.Chapters.Create(0)
	zipChapter.Pages, zipChapter.InArchive = 6, true

	fromDir, err := h.HashAll(dirGallery, dirChapter)
	require.NoError(t, err)
	fromZip, err := h.HashAll(zipGallery, zipChapter)
	require.NoError(t, err)
	assert.Equal(t, fromDir, fromZip)

	// Rerun is stable
	again, err := h.HashChapter(dirGallery, dirChapter, h.Sample(dirChapter))
	require.NoError(t, err)
	for index, sum := range again {
		assert.Equal(t, fromDir[index], sum)
	}
}

/*
TestHashChapter_PagesMismatch reports a stale page count.
*/
func TestHashChapter_PagesMismatch(t *testing.T) {
	folder := filepath.Join(t.TempDir(), "pages")
	writePages(t, folder, 3)

	g := gallery.New(folder)
	chapter, _ := g.Chapters.Create(0)
	chapter.Path, chapter.Pages = folder, 5

	_, err := hasher.New(archive.Opener{}, 4).HashChapter(g, chapter, []int{0})
	assert.True(t, apperr.IsCode(err, apperr.CodeInternalPagesMismatch))
}

func solid(c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

/*
TestIsColored separates grayscale from colour pages.
*/
func TestIsColored(t *testing.T) {
	assert.False(t, hasher.IsColored(solid(color.Gray{Y: 120})))
	assert.True(t, hasher.IsColored(solid(color.RGBA{R: 200, G: 10, B: 10, A: 255})))

	var encoded bytes.Buffer
	require.NoError(t, png.Encode(&encoded, solid(color.RGBA{R: 5, G: 90, B: 200, A: 255})))
	colored, err := hasher.IsColoredReader(&encoded)
	require.NoError(t, err)
	assert.True(t, colored)
}

/*
TestMakeThumbnail prefers the first coloured page when asked.
*/
func TestMakeThumbnail(t *testing.T) {
	root := t.TempDir()
	folder := filepath.Join(root, "gallery")
	require.NoError(t, os.MkdirAll(folder, 0o755))

	pages := []image.Image{solid(color.Gray{Y: 30}), solid(color.RGBA{R: 250, G: 20, B: 20, A: 255})}
	for i, page := range pages {
		file, err := os.Create(filepath.Join(folder, fmt.Sprintf("%02d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(file, page))
		require.NoError(t, file.Close())
	}

	g := gallery.New(folder)
	chapter, _ := g.Chapters.Create(0)
	chapter.Path, chapter.Pages = folder, 2

	thumbDir := filepath.Join(root, "thumbs")
	path, err := hasher.New(archive.Opener{}, 4).MakeThumbnail(g, hasher.ThumbOptions{
		Dir: thumbDir, Width: 20, Height: 30, PreferColor: true, ColorScan: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, thumbDir, filepath.Dir(path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	config, _, err := image.DecodeConfig(file)
	require.NoError(t, err)
	assert.Equal(t, 20, config.Width)
	assert.Equal(t, 30, config.Height)
}
