// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package scanner discovers galleries on disk and turns them into catalog entries.

Architecture:

  - Discover: Walks a root and yields gallery sources (archives and folders).
  - Build: Opens one source and produces galleries with chapters and page counts.
  - Ingest: Adds newly found galleries to the library and renders thumbnails.

A folder is a gallery when at least 80% of its files are images. A folder
holding only gallery sub-folders is one gallery with a chapter per
sub-folder, unless OverrideSubfolderAsGallery is set. Archives follow the same
rules over their internal folders; with the override, every internal folder
becomes its own gallery sharing the archive path.
*/
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/taibuivan/happypanda/internal/archive"
	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/constants"
)

// ErrNotGallery is returned when a path holds no recognisable gallery.
var ErrNotGallery = errors.New("scanner: not a gallery")

// Library is the part of the catalog the scanner writes to.
type Library interface {
	// Exists reports whether any gallery lives at path.
	Exists(path string) bool
	// ExistsIn reports whether the gallery at path and archive folder inArchive is known.
	ExistsIn(path, inArchive string) bool
	Add(ctx context.Context, galleries ...*gallery.Gallery) error
	EnsureThumbnail(ctx context.Context, g *gallery.Gallery) error
}

// Options configures a [Scanner].
type Options struct {
	Ignore IgnoreRules
	// Languages extends the recognised title languages.
	Languages []string
	// OverrideSubfolderAsGallery turns every chapter folder into its own gallery.
	OverrideSubfolderAsGallery bool
	Logger                     *slog.Logger
}

// Scanner finds galleries. Safe for concurrent use.
type Scanner struct {
	opener  archive.Opener
	temp    *TempIgnore
	options Options
	logger  *slog.Logger
}

// New creates a scanner. temp may be shared with the download pipeline and watcher.
func New(opener archive.Opener, temp *TempIgnore, options Options) *Scanner {
	if temp == nil {
		temp = NewTempIgnore()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Scanner{
		opener:  opener,
		temp:    temp,
		options: options,
		logger:  options.Logger.With(slog.String("component", "scanner")),
	}
}

// TempIgnore returns the shared temporary ignore set.
func (s *Scanner) TempIgnore() *TempIgnore { return s.temp }

// IsArchive reports whether path has an accepted archive extension.
func (s *Scanner) IsArchive(path string) bool { return s.opener.Supports(path) }

// Skip reports whether path is excluded by the ignore list or a pending temporary ignore.
func (s *Scanner) Skip(path string) bool {
	return s.options.Ignore.Matches(path) || s.temp.Contains(path)
}

// # Discovery

// Candidate is a path that holds one or more galleries.
type Candidate struct {
	Path    string
	Archive bool
}

// layout summarises the direct children of a folder.
type layout struct {
	files    int
	images   int
	archives []string
	chapters []string // sub-folders that are galleries on their own
	others   []string // sub-folders that are not
}

func (l layout) isGallery() bool {
	return l.images > 0 && float64(l.images) >= constants.GalleryImageRatio*float64(l.files)
}

func (l layout) isMultiChapter() bool {
	return l.files == 0 && len(l.chapters) > 0 && len(l.others) == 0
}

func (s *Scanner) readLayout(dir string, deep bool) (layout, error) {
	var l layout
	entries, err := os.ReadDir(dir)
	if err != nil {
		return l, err
	}
	for _, entry := range entries {
		full := filepath.Join(dir, entry.Name())
		if s.Skip(full) {
			continue
		}
		if entry.IsDir() {
			if !deep {
				continue
			}
			child, err := s.readLayout(full, false)
			if err == nil && child.isGallery() {
				l.chapters = append(l.chapters, full)
			} else {
				l.others = append(l.others, full)
			}
			continue
		}
		if isMetafile(entry.Name()) {
			continue
		}
		l.files++
		switch {
		case gallery.IsImagePath(entry.Name()):
			l.images++
		case s.opener.Supports(entry.Name()):
			l.archives = append(l.archives, full)
		}
	}
	sortNames(l.chapters)
	return l, nil
}

/*
Discover walks root and returns every gallery source below it.

An archive root or a root that is itself a gallery folder is returned as is.
Below that, folders are classified one level at a time:
galleries and multi-chapter folders stop the descent, anything else is walked
further.
*/
func (s *Scanner) Discover(ctx context.Context, root string) ([]Candidate, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if s.opener.Supports(root) && !s.Skip(root) {
			return []Candidate{{Path: root, Archive: true}}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNotGallery, root)
	}

	if l, err := s.readLayout(root, false); err == nil && l.isGallery() {
		return []Candidate{{Path: root}}, nil
	}

	var candidates []Candidate
	err = s.walk(ctx, root, &candidates)
	return candidates, err
}

func (s *Scanner) walk(ctx context.Context, dir string, candidates *[]Candidate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l, err := s.readLayout(dir, true)
	if err != nil {
		return err
	}

	for _, archivePath := range l.archives {
		*candidates = append(*candidates, Candidate{Path: archivePath, Archive: true})
	}
	for _, chapter := range l.chapters {
		*candidates = append(*candidates, Candidate{Path: chapter})
	}
	for _, other := range l.others {
		sub, err := s.readLayout(other, true)
		if err != nil {
			s.logger.Warn("scan_dir_unreadable", slog.String("path", other), slog.Any("error", err))
			continue
		}
		if !sub.isMultiChapter() {
			if err := s.walk(ctx, other, candidates); err != nil {
				return err
			}
			continue
		}
		if s.options.OverrideSubfolderAsGallery {
			for _, chapter := range sub.chapters {
				*candidates = append(*candidates, Candidate{Path: chapter})
			}
			continue
		}
		*candidates = append(*candidates, Candidate{Path: other})
	}
	return nil
}

// # Building

// FromPath builds the galleries held by a single archive or folder.
func (s *Scanner) FromPath(path string) ([]*gallery.Gallery, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return s.Build(Candidate{Path: path, Archive: !info.IsDir()})
}

// Build opens a source and returns its galleries with sidecar metadata applied.
func (s *Scanner) Build(candidate Candidate) ([]*gallery.Gallery, error) {
	if candidate.Archive {
		return s.buildArchive(candidate.Path)
	}
	return s.buildDir(candidate.Path)
}

// newGallery fills the name-derived fields.
func (s *Scanner) newGallery(path string) *gallery.Gallery {
	g := gallery.New(path)
	parsed := ParseTitle(path, s.options.Languages)
	g.Title = parsed.Title
	g.Artist = parsed.Artist
	g.Language = parsed.Language
	return g
}

func (s *Scanner) buildDir(dir string) ([]*gallery.Gallery, error) {
	l, err := s.readLayout(dir, true)
	if err != nil {
		return nil, err
	}

	switch {
	case l.isGallery():
		g := s.newGallery(dir)
		if err := g.Chapters.Add(&gallery.Chapter{Number: 0, Title: g.Title, Path: dir, Pages: l.images}); err != nil {
			return nil, err
		}
		s.applyDirMetafile(g, dir)
		return []*gallery.Gallery{g}, nil

	case l.isMultiChapter() && s.options.OverrideSubfolderAsGallery:
		var galleries []*gallery.Gallery
		for _, chapter := range l.chapters {
			built, err := s.buildDir(chapter)
			if err != nil {
				return nil, err
			}
			galleries = append(galleries, built...)
		}
		return galleries, nil

	case l.isMultiChapter():
		g := s.newGallery(dir)
		for number, chapterDir := range l.chapters {
			sub, err := s.readLayout(chapterDir, false)
			if err != nil {
				return nil, err
			}
			chapter := &gallery.Chapter{Number: number, Title: filepath.Base(chapterDir), Path: chapterDir, Pages: sub.images}
			if err := g.Chapters.Add(chapter); err != nil {
				return nil, err
			}
		}
		s.applyDirMetafile(g, dir, l.chapters[0])
		return []*gallery.Gallery{g}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotGallery, dir)
}

func (s *Scanner) applyDirMetafile(g *gallery.Gallery, dirs ...string) {
	for _, dir := range dirs {
		meta, err := readDirMetafile(dir, s.options.Languages)
		if err != nil {
			s.logger.Warn("metafile_unreadable", slog.String("path", dir), slog.Any("error", err))
			continue
		}
		if meta != nil {
			meta.Apply(g)
			return
		}
	}
}

// pageCount returns the image and file counts of one archive folder.
func pageCount(arc archive.Archive, folder string) (images, files int) {
	members, err := arc.DirContents(folder)
	if err != nil {
		return 0, 0
	}
	for _, member := range members {
		if arc.IsDir(member) || isMetafile(member) {
			continue
		}
		files++
		if gallery.IsImagePath(member) {
			images++
		}
	}
	return images, files
}

func passes(images, files int) bool {
	return images > 0 && float64(images) >= constants.GalleryImageRatio*float64(files)
}

/*
buildArchive reads the internal layout of an archive.

Pages at the top level make a single chapter. Otherwise every internal folder
passing the image test becomes a chapter, in name order. With
OverrideSubfolderAsGallery and more than one such folder, each folder is
returned as its own gallery with PathInArchive naming it.
*/
func (s *Scanner) buildArchive(archivePath string) ([]*gallery.Gallery, error) {
	arc, err := s.opener.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer arc.Close()

	if images, files := pageCount(arc, ""); passes(images, files) {
		g := s.newGallery(archivePath)
		g.IsArchive = true
		if err := g.Chapters.Add(&gallery.Chapter{Title: g.Title, Pages: images, InArchive: true}); err != nil {
			return nil, err
		}
		s.applyArchiveMetafile(arc, g, "")
		return []*gallery.Gallery{g}, nil
	}

	var folders []string
	for _, dir := range arc.DirList(false) {
		if images, files := pageCount(arc, dir); passes(images, files) {
			folders = append(folders, strings.TrimSuffix(dir, "/"))
		}
	}
	sortNames(folders)
	if len(folders) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotGallery, archivePath)
	}

	if s.options.OverrideSubfolderAsGallery && len(folders) > 1 {
		galleries := make([]*gallery.Gallery, 0, len(folders))
		for _, folder := range folders {
			g := s.newGallery(archivePath)
			parsed := ParseTitle(path.Base(folder), s.options.Languages)
			g.Title, g.Artist, g.Language = parsed.Title, parsed.Artist, parsed.Language
			g.IsArchive = true
			g.PathInArchive = folder
			images, _ := pageCount(arc, folder)
			if err := g.Chapters.Add(&gallery.Chapter{Title: g.Title, Path: folder, Pages: images, InArchive: true}); err != nil {
				return nil, err
			}
			s.applyArchiveMetafile(arc, g, folder)
			galleries = append(galleries, g)
		}
		return galleries, nil
	}

	g := s.newGallery(archivePath)
	g.IsArchive = true
	for number, folder := range folders {
		images, _ := pageCount(arc, folder)
		chapter := &gallery.Chapter{Number: number, Title: path.Base(folder), Path: folder, Pages: images, InArchive: true}
		if err := g.Chapters.Add(chapter); err != nil {
			return nil, err
		}
	}
	if len(folders) == 1 {
		g.PathInArchive = folders[0]
	}
	s.applyArchiveMetafile(arc, g, folders[0])
	return []*gallery.Gallery{g}, nil
}

func (s *Scanner) applyArchiveMetafile(arc archive.Archive, g *gallery.Gallery, folder string) {
	meta, err := readArchiveMetafile(arc, folder, s.options.Languages)
	if err != nil {
		s.logger.Warn("metafile_unreadable", slog.String("path", g.Path), slog.String("folder", folder), slog.Any("error", err))
		return
	}
	if meta != nil {
		meta.Apply(g)
	}
}

// sortNames orders paths by case-folded name.
func sortNames(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
}

// # Ingestion

// Report summarises one [Scanner.Ingest] run.
type Report struct {
	Added   []*gallery.Gallery
	Skipped int
	Failed  int
}

/*
Ingest discovers galleries under root and adds the unknown ones to library.

Known paths are skipped before their archives are opened. A failing source is
logged and joined into the returned error; the rest are still added.
Thumbnails are rendered after each add; failures there only warn.
*/
func (s *Scanner) Ingest(ctx context.Context, library Library, root string) (Report, error) {
	var report Report

	candidates, err := s.Discover(ctx, root)
	if err != nil {
		return report, err
	}

	var errs []error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if library.Exists(candidate.Path) {
			report.Skipped++
			continue
		}

		galleries, err := s.Build(candidate)
		if err == nil {
			var added []*gallery.Gallery
			added, err = s.add(ctx, library, galleries)
			report.Added = append(report.Added, added...)
		}
		if err != nil {
			report.Failed++
			errs = append(errs, fmt.Errorf("%s: %w", candidate.Path, err))
			s.logger.Warn("scan_candidate_failed", slog.String("path", candidate.Path), slog.Any("error", err))
		}
	}

	s.logger.Info("scan_finished",
		slog.String("root", root),
		slog.Int("added", len(report.Added)),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
	)
	return report, errors.Join(errs...)
}

// IngestPath adds the galleries of a single archive or folder, as reported by the watcher.
func (s *Scanner) IngestPath(ctx context.Context, library Library, path string) ([]*gallery.Gallery, error) {
	if library.Exists(path) {
		return nil, nil
	}
	galleries, err := s.FromPath(path)
	if err != nil {
		return nil, err
	}
	return s.add(ctx, library, galleries)
}

func (s *Scanner) add(ctx context.Context, library Library, galleries []*gallery.Gallery) ([]*gallery.Gallery, error) {
	var added []*gallery.Gallery
	for _, g := range galleries {
		if library.ExistsIn(g.Path, g.PathInArchive) {
			continue
		}
		if err := library.Add(ctx, g); err != nil {
			return added, err
		}
		added = append(added, g)
		s.logger.Info("gallery_added", slog.Int64("id", g.ID), slog.String("path", g.Path), slog.Int("chapters", g.Chapters.Len()))

		if err := library.EnsureThumbnail(ctx, g); err != nil {
			s.logger.Warn("thumbnail_failed", slog.String("path", g.Path), slog.Any("error", err))
		}
	}
	return added, nil
}
