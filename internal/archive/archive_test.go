// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package archive_test

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/archive"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

type member struct {
	name string
	body string
}

func writeZip(t *testing.T, path string, members ...member) {
	t.Helper()
	var buffer bytes.Buffer
	writer := zip.NewWriter(&buffer)
	for _, m := range members {
		entry, err := writer.CreateHeader(&zip.FileHeader{Name: m.name, Method: zip.Store})
		require.NoError(t, err)
		_, err = entry.Write([]byte(m.body))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	require.NoError(t, os.WriteFile(path, buffer.Bytes(), 0o644))
}

/*
TestOpener_Rejects covers unsupported extensions, disabled RAR and corrupt containers.
*/
func TestOpener_Rejects(t *testing.T) {
	dir := t.TempDir()
	opener := archive.Opener{TempDir: dir}

	// 1. Unknown extension
	_, err := opener.Open(filepath.Join(dir, "gallery.7z"))
	assert.True(t, apperr.IsCode(err, apperr.CodeCreateArchiveFail))

	// 2. RAR without a configured tool
	_, err = opener.Open(filepath.Join(dir, "gallery.cbr"))
	assert.True(t, apperr.IsCode(err, apperr.CodeCreateArchiveFail))
	assert.NotContains(t, opener.Extensions(), ".rar")

	// 3. Not a zip at all
	garbage := filepath.Join(dir, "garbage.zip")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a zip"), 0o644))
	_, err = opener.Open(garbage)
	assert.True(t, apperr.IsCode(err, apperr.CodeCreateArchiveFail))
}

/*
TestOpener_CRCFailure flips a stored byte so the checksum test fails.
*/
func TestOpener_CRCFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.cbz")
	writeZip(t, path, member{"001.jpg", "page-one-bytes"})

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw = bytes.Replace(raw, []byte("page-one-bytes"), []byte("page-one-BYTES"), 1)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = archive.Opener{TempDir: dir}.Open(path)
	assert.True(t, apperr.IsCode(err, apperr.CodeCreateArchiveFail))
}

/*
TestZip_DirectoryModel checks directory emulation over flat member names.
*/
func TestZip_DirectoryModel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "multi.zip")
	writeZip(t, path,
		member{"cover.jpg", "c"},
		member{"ch1/", ""},
		member{"ch1/001.jpg", "a"},
		member{"ch1/002.jpg", "b"},
		member{"ch2/extra/001.png", "d"},
	)

	arc, err := archive.Opener{TempDir: dir}.Open(path)
	require.NoError(t, err)
	defer arc.Close()

	// 1. Implicit parents become directories
	assert.True(t, arc.IsDir("ch1"))
	assert.True(t, arc.IsDir("ch2/"))
	assert.True(t, arc.IsDir("ch2/extra"))
	assert.False(t, arc.IsDir("cover.jpg"))

	// 2. Top level and immediate children
	top, err := arc.DirContents("")
	require.NoError(t, err)
	assert.Equal(t, []string{"ch1/", "ch2/", "cover.jpg"}, top)

	children, err := arc.DirContents("ch1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ch1/001.jpg", "ch1/002.jpg"}, children)

	// 3. Directory listings
	assert.Equal(t, []string{"ch1/", "ch2/"}, arc.DirList(true))
	assert.Equal(t, []string{"ch1/", "ch2/", "ch2/extra/"}, arc.DirList(false))

	// 4. Unknown members
	_, err = arc.DirContents("ch9")
	assert.True(t, apperr.IsCode(err, apperr.CodeFileNotFoundInArchive))
	_, err = arc.Open("ch1/404.jpg")
	assert.True(t, apperr.IsCode(err, apperr.CodeFileNotFoundInArchive))
}

/*
TestZip_EighteenPages mirrors a single-chapter archive with eighteen top-level pages.
*/
func TestZip_EighteenPages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pages.zip")

	members := make([]member, 0, 18)
	for i := 1; i <= 18; i++ {
		members = append(members, member{fmt.Sprintf("%03d.jpg", i), fmt.Sprintf("page %d", i)})
	}
	writeZip(t, path, members...)

	arc, err := archive.Opener{TempDir: dir}.Open(path)
	require.NoError(t, err)
	defer arc.Close()

	top, err := arc.DirContents("")
	require.NoError(t, err)
	assert.Len(t, top, 18)
	assert.Empty(t, arc.DirList(false))

	data, err := arc.Open("018.jpg")
	require.NoError(t, err)
	assert.Equal(t, "page 18", string(data))

	stream, err := arc.OpenStream("001.jpg")
	require.NoError(t, err)
	streamed, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	assert.Equal(t, "page 1", string(streamed))
}

/*
TestZip_Extract writes members under a fresh temp folder or an explicit destination.
*/
func TestZip_Extract(t *testing.T) {
	dir := t.TempDir()
	temp := filepath.Join(dir, "temp")
	path := filepath.Join(dir, "extract.zip")
	writeZip(t, path,
		member{"ch1/001.jpg", "one"},
		member{"ch1/002.jpg", "two"},
		member{"ch2/001.jpg", "three"},
	)

	arc, err := archive.Opener{TempDir: temp}.Open(path)
	require.NoError(t, err)
	defer arc.Close()

	// 1. Single file into a random temp subfolder
	extracted, err := arc.Extract("ch1/002.jpg", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(extracted, temp))
	content, err := os.ReadFile(extracted)
	require.NoError(t, err)
	assert.Equal(t, "two", string(content))

	// 2. Directory with descendants into an explicit destination
	dest := filepath.Join(dir, "out")
	folder, err := arc.Extract("ch1/", dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "ch1"), folder)
	entries, err := os.ReadDir(folder)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.NoFileExists(t, filepath.Join(dest, "ch2", "001.jpg"))

	// 3. Everything
	all, err := arc.ExtractAll(filepath.Join(dir, "all"))
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(all, "ch2", "001.jpg"))
}
