// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gallery

import (
	"encoding/json"
	"sort"

	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

// Chapter is an ordered page collection under a gallery.
//
// GalleryID is the owning gallery's catalog id; chapters never point at the
// gallery value itself.
type Chapter struct {
	ID        int64  `json:"id"`
	GalleryID int64  `json:"gallery_id"`
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Path      string `json:"path"`
	Pages     int    `json:"pages"`
	InArchive bool   `json:"in_archive"`
}

// ChaptersContainer keeps a gallery's chapters keyed by number.
//
// Removing a chapter does not renumber the rest.
type ChaptersContainer struct {
	galleryID int64
	chapters  map[int]*Chapter
}

// NewChaptersContainer creates an empty container owned by galleryID (0 when unsaved).
func NewChaptersContainer(galleryID int64) *ChaptersContainer {
	return &ChaptersContainer{galleryID: galleryID, chapters: make(map[int]*Chapter)}
}

// GalleryID returns the owning gallery id.
func (c *ChaptersContainer) GalleryID() int64 { return c.galleryID }

// Create adds an empty chapter with the given number.
func (c *ChaptersContainer) Create(number int) (*Chapter, error) {
	if _, exists := c.chapters[number]; exists {
		return nil, apperr.ChapterExists(number)
	}
	chapter := &Chapter{GalleryID: c.galleryID, Number: number}
	c.chapters[number] = chapter
	return chapter, nil
}

// Add inserts an existing chapter. The chapter must not belong to another gallery.
func (c *ChaptersContainer) Add(chapter *Chapter) error {
	if chapter.GalleryID != 0 && c.galleryID != 0 && chapter.GalleryID != c.galleryID {
		return apperr.ChapterWrongParentGallery(chapter.GalleryID, c.galleryID)
	}
	if _, exists := c.chapters[chapter.Number]; exists {
		return apperr.ChapterExists(chapter.Number)
	}
	chapter.GalleryID = c.galleryID
	c.chapters[chapter.Number] = chapter
	return nil
}

// Get returns the chapter with the given number.
func (c *ChaptersContainer) Get(number int) (*Chapter, bool) {
	chapter, ok := c.chapters[number]
	return chapter, ok
}

// Remove deletes the chapter with the given number and reports whether it existed.
func (c *ChaptersContainer) Remove(number int) bool {
	if _, ok := c.chapters[number]; !ok {
		return false
	}
	delete(c.chapters, number)
	return true
}

// Len returns the number of chapters.
func (c *ChaptersContainer) Len() int { return len(c.chapters) }

// Pages returns the total page count.
func (c *ChaptersContainer) Pages() int {
	total := 0
	for _, chapter := range c.chapters {
		total += chapter.Pages
	}
	return total
}

// List returns the chapters ordered by number.
func (c *ChaptersContainer) List() []*Chapter {
	list := make([]*Chapter, 0, len(c.chapters))
	for _, chapter := range c.chapters {
		list = append(list, chapter)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Number < list[j].Number })
	return list
}

func (c *ChaptersContainer) setGalleryID(id int64) {
	c.galleryID = id
	for _, chapter := range c.chapters {
		chapter.GalleryID = id
	}
}

// MarshalJSON encodes the container as an ordered chapter array.
func (c *ChaptersContainer) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.List())
}

// UnmarshalJSON decodes an ordered chapter array.
func (c *ChaptersContainer) UnmarshalJSON(data []byte) error {
	var list []*Chapter
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	c.chapters = make(map[int]*Chapter, len(list))
	for _, chapter := range list {
		if c.galleryID == 0 {
			c.galleryID = chapter.GalleryID
		}
		if err := c.Add(chapter); err != nil {
			return err
		}
	}
	return nil
}
