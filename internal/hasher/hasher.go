// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package hasher computes page identities for galleries.

Core Responsibility:

  - Identity: SHA-1 over raw page bytes, read in 8 KiB chunks. Pages are never decoded for hashing.
  - Sampling: Deterministic, evenly spaced page indices per chapter.
  - Imagery: Colour-cover detection and thumbnail generation for gallery profiles.

Hash caching lives in the catalog; this package only computes.
*/
package hasher

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/taibuivan/happypanda/internal/archive"
	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/constants"
)

// # Hashing

// HashReader returns the hex SHA-1 of everything read from reader.
func HashReader(reader io.Reader) (string, error) {
	digest := sha1.New()
	buffer := make([]byte, constants.HashChunkSize)
	if _, err := io.CopyBuffer(digest, reader, buffer); err != nil {
		return "", fmt.Errorf("hasher: read: %w", err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// HashFile returns the hex SHA-1 of a file on disk.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("hasher: open: %w", err)
	}
	defer file.Close()
	return HashReader(file)
}

// SamplePages picks up to n evenly spaced page indices out of pages.
//
// The first and last pages are always included once n > 1. The result is
// sorted, unique, and depends only on (pages, n).
func SamplePages(pages, n int) []int {
	if pages <= 0 || n <= 0 {
		return nil
	}
	if pages <= n {
		indices := make([]int, pages)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	if n == 1 {
		return []int{0}
	}

	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		index := (i*(pages-1) + (n-1)/2) / (n - 1)
		if len(indices) == 0 || indices[len(indices)-1] != index {
			indices = append(indices, index)
		}
	}
	return indices
}

// Missing returns the wanted indices absent from cached.
func Missing(cached map[int]string, wanted []int) []int {
	var missing []int
	for _, index := range wanted {
		if _, ok := cached[index]; !ok {
			missing = append(missing, index)
		}
	}
	return missing
}

// # Hasher

// Hasher hashes chapter pages through the configured archive opener.
type Hasher struct {
	opener archive.Opener
	sample int
}

// New creates a hasher sampling n pages per chapter (n < 1 selects the default).
func New(opener archive.Opener, n int) *Hasher {
	if n < 1 {
		n = constants.DefaultHashSample
	}
	return &Hasher{opener: opener, sample: n}
}

// SampleSize returns the number of pages sampled per chapter.
func (h *Hasher) SampleSize() int { return h.sample }

// Sample returns the page indices sampled for chapter.
func (h *Hasher) Sample(chapter *gallery.Chapter) []int {
	return SamplePages(chapter.Pages, h.sample)
}

// HashChapter hashes the requested page indices of a chapter.
//
// Returns an INTERNAL_PAGES_MISMATCH error when the chapter's page count no
// longer matches its images; callers re-scan the chapter in that case.
func (h *Hasher) HashChapter(g *gallery.Gallery, chapter *gallery.Chapter, indices []int) (map[int]string, error) {
	pages, err := OpenChapter(h.opener, g, chapter)
	if err != nil {
		return nil, err
	}
	defer pages.Close()

	if err := CheckPages(chapter, pages); err != nil {
		return nil, err
	}

	names := pages.Names()
	hashes := make(map[int]string, len(indices))
	for _, index := range slices.Compact(slices.Sorted(slices.Values(indices))) {
		if index < 0 || index >= len(names) {
			continue
		}
		stream, err := pages.Open(names[index])
		if err != nil {
			return nil, fmt.Errorf("hasher: open page %d: %w", index, err)
		}
		sum, err := HashReader(stream)
		_ = stream.Close()
		if err != nil {
			return nil, err
		}
		hashes[index] = sum
	}
	return hashes, nil
}

// CountPages returns the number of pages currently reachable through chapter.
func (h *Hasher) CountPages(g *gallery.Gallery, chapter *gallery.Chapter) (int, error) {
	pages, err := OpenChapter(h.opener, g, chapter)
	if err != nil {
		return 0, err
	}
	defer pages.Close()
	return len(pages.Names()), nil
}

// HashAll hashes every page of a chapter in reading order.
func (h *Hasher) HashAll(g *gallery.Gallery, chapter *gallery.Chapter) ([]string, error) {
	indices := make([]int, chapter.Pages)
	for i := range indices {
		indices[i] = i
	}
	hashes, err := h.HashChapter(g, chapter, indices)
	if err != nil {
		return nil, err
	}
	ordered := make([]string, chapter.Pages)
	for index, sum := range hashes {
		ordered[index] = sum
	}
	return ordered, nil
}
