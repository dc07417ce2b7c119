// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package archive gives ZIP-family and RAR-family containers one read interface.

Architecture:

  - Archive: The capability set shared by every container kind.
  - Opener: Picks the variant from the file extension and self-tests the container.
  - index: Emulates directories over the flat member list; variant independent.

Member names always use '/' as separator, whatever the host OS. RAR support is
optional and only enabled when an external unrar tool is configured.
*/
package archive

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/platform/constants"
)

// # Interface

// Archive is an opened container.
type Archive interface {
	// Path returns the container location on disk.
	Path() string
	// Namelist returns every member, directories included, sorted.
	Namelist() []string
	// IsDir reports whether name is a directory member.
	IsDir(name string) bool
	// DirContents returns the immediate children of dir ("" for the top level).
	DirContents(dir string) ([]string, error)
	// DirList returns directory members; only depth 0 ones when topLevel is set.
	DirList(topLevel bool) []string
	// Open reads a file member fully.
	Open(member string) ([]byte, error)
	// OpenStream returns a reader over a file member.
	OpenStream(member string) (io.ReadCloser, error)
	// Extract writes member and its descendants under dest and returns the extracted path.
	Extract(member, dest string) (string, error)
	// ExtractAll writes every member under dest and returns dest.
	ExtractAll(dest string) (string, error)
	// Close releases the container.
	Close() error
}

// # Opener

// Opener creates archives according to the engine configuration.
type Opener struct {
	// TempDir receives extraction folders when no destination is given.
	TempDir string
	// UnrarTool is the unrar executable; empty disables RAR support.
	UnrarTool string
}

// Extensions returns the accepted archive extensions.
func (o Opener) Extensions() []string {
	extensions := slices.Clone(constants.ZipExtensions)
	if o.UnrarTool != "" {
		extensions = append(extensions, constants.RarExtensions...)
	}
	return extensions
}

// Supports reports whether path has an accepted archive extension.
func (o Opener) Supports(path string) bool {
	return slices.Contains(o.Extensions(), strings.ToLower(filepath.Ext(path)))
}

// Open opens and self-tests the container at path.
//
// Returns a CREATE_ARCHIVE_FAIL error for unsupported extensions, missing tools
// or corrupt containers.
func (o Opener) Open(archivePath string) (Archive, error) {
	ext := strings.ToLower(filepath.Ext(archivePath))
	switch {
	case slices.Contains(constants.ZipExtensions, ext):
		return openZip(archivePath, o.TempDir)
	case slices.Contains(constants.RarExtensions, ext):
		if o.UnrarTool == "" {
			return nil, apperr.CreateArchiveFail(archivePath, errRarDisabled)
		}
		return openRar(archivePath, o.UnrarTool, o.TempDir)
	}
	return nil, apperr.CreateArchiveFail(archivePath, errUnsupported)
}

// # Directory Emulation

// index maps normalized member names to their directory flag.
type index struct {
	entries map[string]bool
	names   []string
}

// newIndex builds the directory model. Parents of nested members are added as
// directories even when the container has no explicit entry for them.
func newIndex(members map[string]bool) *index {
	idx := &index{entries: make(map[string]bool, len(members))}
	for name, isDir := range members {
		name = normalize(name)
		if name == "" {
			continue
		}
		if isDir && !strings.HasSuffix(name, "/") {
			name += "/"
		}
		idx.entries[name] = strings.HasSuffix(name, "/")

		for parent := path.Dir(strings.TrimSuffix(name, "/")); parent != "." && parent != "/"; parent = path.Dir(parent) {
			idx.entries[parent+"/"] = true
		}
	}

	idx.names = make([]string, 0, len(idx.entries))
	for name := range idx.entries {
		idx.names = append(idx.names, name)
	}
	sort.Strings(idx.names)
	return idx
}

func normalize(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(name, "./")
}

// depth counts separators of the name without its trailing slash.
func depth(name string) int {
	return strings.Count(strings.TrimSuffix(name, "/"), "/")
}

func (idx *index) Namelist() []string { return slices.Clone(idx.names) }

func (idx *index) IsDir(name string) bool {
	name = normalize(name)
	if idx.entries[name] {
		return true
	}
	return idx.entries[name+"/"]
}

func (idx *index) has(name string) bool {
	_, ok := idx.entries[normalize(name)]
	return ok || idx.IsDir(name)
}

func (idx *index) DirContents(dir string) ([]string, error) {
	dir = normalize(dir)
	if dir == "" {
		var top []string
		for _, name := range idx.names {
			if depth(name) == 0 {
				top = append(top, name)
			}
		}
		return top, nil
	}

	if !idx.IsDir(dir) {
		return nil, apperr.FileNotFoundInArchive(dir)
	}
	if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}

	childDepth := depth(dir) + 1
	var children []string
	for _, name := range idx.names {
		if name != dir && strings.HasPrefix(name, dir) && depth(name) == childDepth {
			children = append(children, name)
		}
	}
	return children, nil
}

func (idx *index) DirList(topLevel bool) []string {
	var dirs []string
	for _, name := range idx.names {
		if !idx.entries[name] {
			continue
		}
		if topLevel && depth(name) != 0 {
			continue
		}
		dirs = append(dirs, name)
	}
	return dirs
}

// subtree returns the file members at or below member.
func (idx *index) subtree(member string) []string {
	member = normalize(member)
	if !idx.IsDir(member) {
		return []string{member}
	}
	prefix := strings.TrimSuffix(member, "/") + "/"
	var files []string
	for _, name := range idx.names {
		if strings.HasPrefix(name, prefix) && !idx.entries[name] {
			files = append(files, name)
		}
	}
	return files
}

// # Extraction Helpers

// destination resolves dest, creating a fresh random folder under tempDir when empty.
func destination(dest, tempDir string) (string, error) {
	if dest == "" {
		dest = filepath.Join(tempDir, uuid.NewString())
	}
	absolute, err := filepath.Abs(dest)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(absolute, 0o755); err != nil {
		return "", err
	}
	return absolute, nil
}

// safeJoin joins a member name to dest and refuses names escaping dest.
func safeJoin(dest, member string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(member))
	relative, err := filepath.Rel(dest, target)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", apperr.FileNotFoundInArchive(member)
	}
	return target, nil
}
