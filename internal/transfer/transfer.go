// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package transfer exports the library to a portable JSON snapshot and imports one back.

Architecture:

  - Document: The .hpdb JSON shape (galleries and lists keyed by the exporting library's ids).
  - Identifier: Sampled page hashes that find the same gallery in another library,
    whatever its path.
  - Export: Writes happypanda-{YYYY-MM-DD HH-MM-SS}.hpdb and optionally uploads it.
  - Import: Matches every entry by regenerating its sample and restores the fields.
    Unmatched entries are skipped.
*/
package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/constants"
)

// Library is the catalog surface used by exports and imports.
type Library interface {
	LoadAll(ctx context.Context) ([]*gallery.Gallery, error)
	Lists(ctx context.Context) ([]*gallery.List, error)
	PageHashes(ctx context.Context, g *gallery.Gallery, indices []int) (map[int]string, error)
	RestoreGallery(ctx context.Context, id int64, from *gallery.Gallery) error
	CreateList(ctx context.Context, list *gallery.List) error
}

// Uploader copies a finished snapshot off-site.
type Uploader interface {
	UploadFile(ctx context.Context, key, path string) error
}

// Service runs exports and imports against one library.
type Service struct {
	library  Library
	uploader Uploader
	now      func() time.Time
	logger   *slog.Logger
}

// NewService builds a service. uploader may be nil.
func NewService(library Library, uploader Uploader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		library:  library,
		uploader: uploader,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "transfer")),
	}
}

// FileName is the snapshot name for a moment in time.
func FileName(at time.Time) string {
	return fmt.Sprintf("%s-%s%s", constants.AppName, at.Format(constants.ExportLayout), constants.HPDBExtension)
}

// # Export

/*
Export writes a snapshot of every gallery and list into dir and returns its path.

A gallery whose pages cannot be hashed is exported without an identifier; it
will not match on import.
*/
func (s *Service) Export(ctx context.Context, dir string) (string, error) {
	galleries, err := s.library.LoadAll(ctx)
	if err != nil {
		return "", err
	}
	lists, err := s.library.Lists(ctx)
	if err != nil {
		return "", err
	}

	doc := Document{
		Galleries: make(map[string]GalleryEntry, len(galleries)),
		Lists:     make(map[string]ListEntry, len(lists)),
	}
	for _, g := range galleries {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		entry := entryFor(g)
		if identifier, err := s.identify(ctx, g); err != nil {
			s.logger.Warn("export_identifier_failed", slog.Int64("gallery_id", g.ID), slog.Any("error", err))
		} else {
			entry.Identifier = identifier
		}
		doc.Galleries[strconv.FormatInt(g.ID, 10)] = entry
	}
	for _, list := range lists {
		doc.Lists[strconv.FormatInt(list.ID, 10)] = ListEntry{
			Name:      list.Name,
			Type:      list.Type,
			Filter:    list.Filter,
			Enforce:   list.Enforce,
			Regex:     list.Regex,
			Case:      list.Case,
			Strict:    list.Strict,
			Galleries: slices.Clone(list.Galleries),
		}
	}

	target := filepath.Join(dir, FileName(s.now()))
	if err := writeDocument(target, doc); err != nil {
		return "", err
	}
	s.logger.Info("export_written",
		slog.String("file", target),
		slog.Int("galleries", len(doc.Galleries)),
		slog.Int("lists", len(doc.Lists)),
	)

	if s.uploader != nil {
		if err := s.uploader.UploadFile(ctx, filepath.Base(target), target); err != nil {
			s.logger.Warn("export_upload_failed", slog.String("file", target), slog.Any("error", err))
		}
	}
	return target, nil
}

func (s *Service) identify(ctx context.Context, g *gallery.Gallery) (*Identifier, error) {
	chapters := g.Chapters.List()
	if len(chapters) == 0 {
		return nil, fmt.Errorf("transfer: gallery %d has no chapters", g.ID)
	}
	hashes, err := s.library.PageHashes(ctx, g, nil)
	if err != nil {
		return nil, err
	}
	return &Identifier{Pages: chapters[0].Pages, Hashes: hashes}, nil
}

func writeDocument(target string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("transfer: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("transfer: create dir: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("transfer: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("transfer: place %s: %w", target, err)
	}
	return nil
}

// # Import

// ImportReport counts the outcome of [Service.Import].
type ImportReport struct {
	Matched int
	Skipped int
	Lists   int
}

/*
Import restores a snapshot into the library.

Each entry is compared with library galleries whose first chapter has the same
page count, hashing the target at the entry's sampled indices. The first
unclaimed match receives the entry's fields. Lists are recreated with their
members translated to the matched galleries.
*/
func (s *Service) Import(ctx context.Context, path string) (ImportReport, error) {
	var report ImportReport

	data, err := os.ReadFile(path)
	if err != nil {
		return report, fmt.Errorf("transfer: read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return report, fmt.Errorf("transfer: decode %s: %w", path, err)
	}

	galleries, err := s.library.LoadAll(ctx)
	if err != nil {
		return report, err
	}
	byPages := make(map[int][]*gallery.Gallery)
	for _, g := range galleries {
		if chapters := g.Chapters.List(); len(chapters) > 0 {
			byPages[chapters[0].Pages] = append(byPages[chapters[0].Pages], g)
		}
	}

	keys := make([]string, 0, len(doc.Galleries))
	for key := range doc.Galleries {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	claimed := make(map[int64]bool)
	translated := make(map[int64]int64)
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		entry := doc.Galleries[key]
		target := s.match(ctx, entry, byPages, claimed)
		if target == nil {
			report.Skipped++
			continue
		}
		if err := s.library.RestoreGallery(ctx, target.ID, entry.gallery()); err != nil {
			return report, err
		}
		claimed[target.ID] = true
		if legacy, err := strconv.ParseInt(key, 10, 64); err == nil {
			translated[legacy] = target.ID
		}
		report.Matched++
	}

	if err := s.importLists(ctx, doc.Lists, translated, &report); err != nil {
		return report, err
	}

	s.logger.Info("import_finished",
		slog.String("file", path),
		slog.Int("matched", report.Matched),
		slog.Int("skipped", report.Skipped),
		slog.Int("lists", report.Lists),
	)
	return report, nil
}

func (s *Service) match(ctx context.Context, entry GalleryEntry, byPages map[int][]*gallery.Gallery, claimed map[int64]bool) *gallery.Gallery {
	if entry.Identifier == nil || len(entry.Identifier.Hashes) == 0 {
		return nil
	}
	indices := entry.Identifier.Indices()
	for _, candidate := range byPages[entry.Identifier.Pages] {
		if claimed[candidate.ID] {
			continue
		}
		hashes, err := s.library.PageHashes(ctx, candidate, indices)
		if err != nil {
			s.logger.Warn("import_hash_failed", slog.Int64("gallery_id", candidate.ID), slog.Any("error", err))
			continue
		}
		if entry.Identifier.Matches(hashes) {
			return candidate
		}
	}
	return nil
}

// importLists creates lists whose name is not taken yet.
func (s *Service) importLists(ctx context.Context, entries map[string]ListEntry, translated map[int64]int64, report *ImportReport) error {
	existing, err := s.library.Lists(ctx)
	if err != nil {
		return err
	}
	taken := make(map[string]bool, len(existing))
	for _, list := range existing {
		taken[list.Name] = true
	}

	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		entry := entries[key]
		if taken[entry.Name] {
			continue
		}
		list := &gallery.List{
			Name:    entry.Name,
			Type:    entry.Type,
			Filter:  entry.Filter,
			Enforce: entry.Enforce,
			Regex:   entry.Regex,
			Case:    entry.Case,
			Strict:  entry.Strict,
		}
		for _, legacy := range entry.Galleries {
			if id, ok := translated[legacy]; ok {
				list.Galleries = append(list.Galleries, id)
			}
		}
		if err := s.library.CreateList(ctx, list); err != nil {
			s.logger.Warn("import_list_failed", slog.String("name", entry.Name), slog.Any("error", err))
			continue
		}
		taken[entry.Name] = true
		report.Lists++
	}
	return nil
}
