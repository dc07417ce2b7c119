// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package gallery defines the core domain entities of the library engine.

A gallery is a manga or doujinshi work made of one or more ordered chapters,
each an ordered sequence of image pages stored in a directory or inside an
archive.

Core Responsibility:

  - Catalogue: Defines gallery types, statuses and views.
  - Structure: Owns the chapter container and the namespaced tag map.
  - Curation: Evaluates saved-search filters for user lists.

This package acts as the source of truth for all library data models. It has no
storage or I/O concerns.
*/
package gallery

import (
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/validate"
)

// # Domain Enums

// Type classifies the kind of work a gallery holds.
type Type string

const (
	TypeDoujinshi Type = "Doujinshi"
	TypeManga     Type = "Manga"
	TypeArtistCG  Type = "Artist CG"
	TypeGameCG    Type = "Game CG"
	TypeWestern   Type = "Western"
	TypeNonH      Type = "Non-H"
	TypeImageSet  Type = "Image Set"
	TypeCosplay   Type = "Cosplay"
	TypeMisc      Type = "Miscellaneous"
	TypePrivate   Type = "Private"
)

// Types lists every recognised [Type] in display order.
var Types = []Type{
	TypeDoujinshi, TypeManga, TypeArtistCG, TypeGameCG, TypeWestern,
	TypeNonH, TypeImageSet, TypeCosplay, TypeMisc, TypePrivate,
}

// ParseType matches a site or metafile category name case-insensitively.
// Unknown names map to [TypeMisc]; names such as "artistcg" match without spaces.
func ParseType(raw string) Type {
	squashed := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "")
	if squashed == "" {
		return ""
	}
	for _, t := range Types {
		if strings.ReplaceAll(strings.ToLower(string(t)), " ", "") == squashed {
			return t
		}
	}
	switch squashed {
	case "misc":
		return TypeMisc
	case "imageset", "image":
		return TypeImageSet
	}
	return TypeMisc
}

// Status represents the publication status of a gallery.
type Status string

const (
	StatusUnknown   Status = "Unknown"
	StatusCompleted Status = "Completed"
	StatusOngoing   Status = "Ongoing"
)

// View selects which library view a gallery is shown in.
type View int

const (
	ViewDefault   View = 1
	ViewAddition  View = 2
	ViewDuplicate View = 3
)

// # Core Entities

// Gallery is the central aggregate of the library.
//
// ID is zero until the catalog persists the gallery. Path is unique among live galleries.
type Gallery struct {
	ID            int64              `json:"id"`
	Title         string             `json:"title"`
	Artist        string             `json:"artist"`
	Info          string             `json:"info"`
	Type          Type               `json:"type"`
	Language      string             `json:"language"`
	Status        Status             `json:"status"`
	Rating        int                `json:"rating"`
	Fav           bool               `json:"fav"`
	PubDate       *time.Time         `json:"pub_date,omitempty"`
	DateAdded     time.Time          `json:"date_added"`
	LastRead      *time.Time         `json:"last_read,omitempty"`
	TimesRead     int                `json:"times_read"`
	Link          string             `json:"link"`
	Exed          bool               `json:"exed"`
	Path          string             `json:"path"`
	IsArchive     bool               `json:"is_archive"`
	PathInArchive string             `json:"path_in_archive"`
	View          View               `json:"view"`
	DBVersion     float64            `json:"db_v"`
	Profile       string             `json:"profile"`
	Chapters      *ChaptersContainer `json:"chapters"`
	Tags          Tags               `json:"tags"`
	Hashes        []string           `json:"hashes,omitempty"`
}

// New returns an unpersisted gallery with its defaults set.
func New(path string) *Gallery {
	return &Gallery{
		Path:      path,
		Status:    StatusUnknown,
		View:      ViewDefault,
		DateAdded: time.Now().UTC(),
		DBVersion: constants.DBVersion,
		Chapters:  NewChaptersContainer(0),
		Tags:      Tags{},
	}
}

// SetID records the catalog identity and propagates it to owned chapters.
func (g *Gallery) SetID(id int64) {
	g.ID = id
	if g.Chapters == nil {
		g.Chapters = NewChaptersContainer(id)
		return
	}
	g.Chapters.setGalleryID(id)
}

// Pages returns the total page count across all chapters.
func (g *Gallery) Pages() int {
	if g.Chapters == nil {
		return 0
	}
	return g.Chapters.Pages()
}

/*
Validate enforces the gallery invariants before persistence.

Rules:
  - at least one chapter
  - rating within 0..5 and a non-negative read counter
  - publication date not after today
  - archive galleries must point at a supported archive file
*/
func (g *Gallery) Validate(now time.Time) error {
	chapters := 0
	if g.Chapters != nil {
		chapters = g.Chapters.Len()
	}

	v := &validate.Validator{}
	v.Required("path", g.Path).
		Custom("chapters", chapters == 0, "A gallery needs at least one chapter").
		Range("rating", g.Rating, 0, 5).
		NotNegative("times_read", g.TimesRead).
		NotFuture("pub_date", g.PubDate, now).
		Custom("path", g.IsArchive && !IsArchivePath(g.Path, true), "Archive gallery must point at an archive file")

	if g.Type != "" {
		allowed := make([]string, len(Types))
		for i, t := range Types {
			allowed[i] = string(t)
		}
		v.OneOf("type", string(g.Type), allowed...)
	}

	return v.Err()
}

// IsArchivePath reports whether path carries an accepted archive extension.
func IsArchivePath(path string, rarEnabled bool) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if slices.Contains(constants.ZipExtensions, ext) {
		return true
	}
	return rarEnabled && slices.Contains(constants.RarExtensions, ext)
}

// IsImagePath reports whether name carries a recognised page extension.
func IsImagePath(name string) bool {
	return slices.Contains(constants.ImageExtensions, strings.ToLower(filepath.Ext(name)))
}
