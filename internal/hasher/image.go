// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package hasher

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	// Extra decoders: imaging registers jpeg/png/gif/bmp/tiff, webp comes from x/image.
	_ "golang.org/x/image/webp"

	"github.com/taibuivan/happypanda/internal/core/gallery"
)

// IsColored reports whether any pixel has differing red, green and blue values.
//
// It compares the extrema of the R-G and R-B channel differences; a grayscale
// page has both maxima at zero.
func IsColored(img image.Image) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if r>>8 != g>>8 || r>>8 != b>>8 {
				return true
			}
		}
	}
	return false
}

// IsColoredReader decodes a page and reports whether it is in colour.
func IsColoredReader(reader io.Reader) (bool, error) {
	img, err := imaging.Decode(reader)
	if err != nil {
		return false, fmt.Errorf("hasher: decode: %w", err)
	}
	return IsColored(img), nil
}

// Thumbnail options for gallery profiles.
type ThumbOptions struct {
	Dir         string
	Width       int
	Height      int
	PreferColor bool
	// ColorScan bounds how many leading pages are decoded when looking for colour.
	ColorScan int
}

// MakeThumbnail renders a JPEG profile for a gallery and returns its path.
//
// The first page of the first chapter is used, or the first coloured page
// among the leading ones when PreferColor is set.
func (h *Hasher) MakeThumbnail(g *gallery.Gallery, options ThumbOptions) (string, error) {
	chapters := g.Chapters.List()
	if len(chapters) == 0 {
		return "", fmt.Errorf("hasher: gallery %d has no chapters", g.ID)
	}

	pages, err := OpenChapter(h.opener, g, chapters[0])
	if err != nil {
		return "", err
	}
	defer pages.Close()

	names := pages.Names()
	if len(names) == 0 {
		return "", fmt.Errorf("hasher: chapter has no pages: %s", chapters[0].Path)
	}

	cover, err := h.pickCover(pages, names, options)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(options.Dir, 0o755); err != nil {
		return "", fmt.Errorf("hasher: thumbnail dir: %w", err)
	}
	target := filepath.Join(options.Dir, uuid.NewString()+".jpg")

	thumb := imaging.Fill(cover, options.Width, options.Height, imaging.Top, imaging.Lanczos)
	if err := imaging.Save(thumb, target, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("hasher: save thumbnail: %w", err)
	}
	return target, nil
}

func (h *Hasher) pickCover(pages Pages, names []string, options ThumbOptions) (image.Image, error) {
	limit := 1
	if options.PreferColor {
		limit = min(max(options.ColorScan, 1), len(names))
	}

	var first image.Image
	for i := 0; i < limit; i++ {
		img, err := decodePage(pages, names[i])
		if err != nil {
			if first == nil && i == limit-1 {
				return nil, err
			}
			continue
		}
		if first == nil {
			first = img
		}
		if !options.PreferColor || IsColored(img) {
			return img, nil
		}
	}
	if first == nil {
		return nil, fmt.Errorf("hasher: no decodable cover page")
	}
	return first, nil
}

func decodePage(pages Pages, name string) (image.Image, error) {
	stream, err := pages.Open(name)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	img, err := imaging.Decode(stream, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("hasher: decode %s: %w", name, err)
	}
	return img, nil
}
