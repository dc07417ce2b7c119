// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package hasher

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/taibuivan/happypanda/internal/archive"
	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

// Pages is the ordered page view of one chapter, on disk or inside an archive.
type Pages interface {
	// Names returns the page identifiers in reading order.
	Names() []string
	// Open returns a reader over one page.
	Open(name string) (io.ReadCloser, error)
	// Close releases the underlying container.
	Close() error
}

// OpenChapter returns the page view of a chapter.
//
// Archive chapters read from g.Path with chapter.Path naming the internal
// folder ("" for the top level). Directory chapters read from chapter.Path.
func OpenChapter(opener archive.Opener, g *gallery.Gallery, chapter *gallery.Chapter) (Pages, error) {
	if chapter.InArchive || g.IsArchive {
		arc, err := opener.Open(g.Path)
		if err != nil {
			return nil, err
		}
		pages, err := newArchivePages(arc, chapter.Path)
		if err != nil {
			_ = arc.Close()
			return nil, err
		}
		return pages, nil
	}
	return newDirPages(chapter.Path)
}

// # Directory Pages

type dirPages struct {
	root  string
	names []string
}

func newDirPages(root string) (*dirPages, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() && gallery.IsImagePath(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sortPages(names)
	return &dirPages{root: root, names: names}, nil
}

func (d *dirPages) Names() []string { return d.names }

func (d *dirPages) Open(name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(d.root, name))
}

func (d *dirPages) Close() error { return nil }

// # Archive Pages

type archivePages struct {
	arc   archive.Archive
	names []string
}

func newArchivePages(arc archive.Archive, folder string) (*archivePages, error) {
	members, err := arc.DirContents(folder)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(members))
	for _, member := range members {
		if !arc.IsDir(member) && gallery.IsImagePath(member) {
			names = append(names, member)
		}
	}
	sortPages(names)
	return &archivePages{arc: arc, names: names}, nil
}

func (a *archivePages) Names() []string { return a.names }

func (a *archivePages) Open(name string) (io.ReadCloser, error) {
	return a.arc.OpenStream(name)
}

func (a *archivePages) Close() error { return a.arc.Close() }

// sortPages orders pages by case-folded base name so both views agree.
func sortPages(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		left, right := strings.ToLower(path.Base(names[i])), strings.ToLower(path.Base(names[j]))
		if left == right {
			return names[i] < names[j]
		}
		return left < right
	})
}

// CheckPages reports an INTERNAL_PAGES_MISMATCH error when a chapter's stored
// page count differs from the images reachable through its view.
func CheckPages(chapter *gallery.Chapter, pages Pages) error {
	if actual := len(pages.Names()); actual != chapter.Pages {
		return apperr.InternalPagesMismatch(chapter.Path, chapter.Pages, actual)
	}
	return nil
}
