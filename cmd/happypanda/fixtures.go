// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"archive/zip"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/taibuivan/happypanda/internal/catalog"
	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/scanner"
)

const (
	fixtureGalleries = 6
	fixturePages     = 4
)

/*
seedFixtures builds a throwaway library under dir and scans it.

Every gallery folder holds small PNG pages. The last folder copies the first
one so dedup has a pair to report, and one gallery is stored as a zip.
*/
func seedFixtures(ctx context.Context, s *scanner.Scanner, c *catalog.Catalog, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}

	for i := 1; i <= fixtureGalleries; i++ {
		name := fmt.Sprintf("[Fixture Artist %d] Fixture Gallery %d", i, i)
		seed := i
		if i == fixtureGalleries {
			name = "[Fixture Artist 1] Fixture Gallery 1 (copy)"
			seed = 1
		}
		folder := filepath.Join(dir, name)
		if err := writeFixturePages(folder, seed); err != nil {
			return err
		}
	}
	if err := zipFixture(filepath.Join(dir, "[Fixture Artist 2] Fixture Gallery 2"), filepath.Join(dir, "[Fixture Artist 7] Zipped Gallery.zip")); err != nil {
		return err
	}

	report, err := s.Ingest(ctx, c, dir)
	if err != nil {
		return err
	}
	for i, g := range report.Added {
		tags := gallery.ParseTags(fmt.Sprintf("artist:fixture artist %d, female:glasses, fixture", i%3))
		if err := c.SetTags(ctx, g.ID, tags); err != nil {
			return err
		}
	}
	return nil
}

func writeFixturePages(folder string, seed int) error {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return err
	}
	for page := 0; page < fixturePages; page++ {
		img := image.NewRGBA(image.Rect(0, 0, 8, 8))
		for x := 0; x < 8; x++ {
			img.Set(x, page, color.RGBA{R: uint8(seed * 40), G: uint8(page * 60), B: uint8(x * 30), A: 255})
		}
		file, err := os.Create(filepath.Join(folder, fmt.Sprintf("%03d.png", page+1)))
		if err != nil {
			return err
		}
		if err := png.Encode(file, img); err != nil {
			file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
	}
	return nil
}

// zipFixture packs the pages of folder into a flat archive at target.
func zipFixture(folder, target string) error {
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	writer := zip.NewWriter(out)
	entries, err := os.ReadDir(folder)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		member, err := writer.Create(entry.Name())
		if err != nil {
			return err
		}
		page, err := os.Open(filepath.Join(folder, entry.Name()))
		if err != nil {
			return err
		}
		_, err = io.Copy(member, page)
		page.Close()
		if err != nil {
			return err
		}
	}
	return writer.Close()
}
