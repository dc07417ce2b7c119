// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package transfer

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/taibuivan/happypanda/internal/core/gallery"
)

// Document is the whole .hpdb snapshot. Keys are the exporting library's ids.
type Document struct {
	Galleries map[string]GalleryEntry `json:"galleries"`
	Lists     map[string]ListEntry    `json:"lists"`
}

// GalleryEntry carries the user-editable fields of one gallery.
type GalleryEntry struct {
	Title      string              `json:"title"`
	Artist     string              `json:"artist"`
	Info       string              `json:"info"`
	Fav        bool                `json:"fav"`
	Type       gallery.Type        `json:"type"`
	Link       string              `json:"link"`
	Rating     int                 `json:"rating"`
	View       gallery.View        `json:"view"`
	Language   string              `json:"language"`
	Status     gallery.Status      `json:"status"`
	PubDate    *time.Time          `json:"pub_date"`
	LastRead   *time.Time          `json:"last_read"`
	DateAdded  time.Time           `json:"date_added"`
	TimesRead  int                 `json:"times_read"`
	Exed       bool                `json:"exed"`
	DBVersion  float64             `json:"db_v"`
	Tags       map[string][]string `json:"tags"`
	Identifier *Identifier         `json:"identifier,omitempty"`
}

func entryFor(g *gallery.Gallery) GalleryEntry {
	tags := make(map[string][]string, len(g.Tags))
	for _, namespace := range g.Tags.Namespaces() {
		tags[namespace] = g.Tags.Get(namespace)
	}
	return GalleryEntry{
		Title:     g.Title,
		Artist:    g.Artist,
		Info:      g.Info,
		Fav:       g.Fav,
		Type:      g.Type,
		Link:      g.Link,
		Rating:    g.Rating,
		View:      g.View,
		Language:  g.Language,
		Status:    g.Status,
		PubDate:   g.PubDate,
		LastRead:  g.LastRead,
		DateAdded: g.DateAdded,
		TimesRead: g.TimesRead,
		Exed:      g.Exed,
		DBVersion: g.DBVersion,
		Tags:      tags,
	}
}

// gallery rebuilds the editable fields as an unsaved gallery.
func (e GalleryEntry) gallery() *gallery.Gallery {
	g := gallery.New("")
	g.Title, g.Artist, g.Info = e.Title, e.Artist, e.Info
	g.Fav, g.Type, g.Link, g.Rating = e.Fav, e.Type, e.Link, e.Rating
	g.Language, g.TimesRead, g.Exed = e.Language, e.TimesRead, e.Exed
	g.PubDate, g.LastRead = e.PubDate, e.LastRead
	if e.View != 0 {
		g.View = e.View
	}
	if e.Status != "" {
		g.Status = e.Status
	}
	if !e.DateAdded.IsZero() {
		g.DateAdded = e.DateAdded
	}
	for namespace, values := range e.Tags {
		for _, value := range values {
			g.Tags.Add(namespace, value)
		}
	}
	return g
}

// ListEntry is one saved list with its members as exporting-library ids.
type ListEntry struct {
	Name      string           `json:"name"`
	Type      gallery.ListType `json:"type"`
	Filter    string           `json:"filter"`
	Enforce   bool             `json:"enforce"`
	Regex     bool             `json:"regex"`
	Case      bool             `json:"case"`
	Strict    bool             `json:"strict"`
	Galleries []int64          `json:"galleries"`
}

// # Identifier

/*
Identifier is the page sample that recognises a gallery across libraries.

It serialises as {"pages": N, "page0": sha1, "page7": sha1, ...}.
*/
type Identifier struct {
	Pages  int
	Hashes map[int]string
}

// Indices returns the sampled page indices in ascending order.
func (id Identifier) Indices() []int {
	indices := make([]int, 0, len(id.Hashes))
	for index := range id.Hashes {
		indices = append(indices, index)
	}
	slices.Sort(indices)
	return indices
}

// Matches reports whether hashes holds the same value at every sampled index.
func (id Identifier) Matches(hashes map[int]string) bool {
	if len(id.Hashes) == 0 {
		return false
	}
	for index, sum := range id.Hashes {
		if hashes[index] != sum {
			return false
		}
	}
	return true
}

func (id Identifier) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(id.Hashes)+1)
	raw["pages"] = id.Pages
	for index, sum := range id.Hashes {
		raw["page"+strconv.Itoa(index)] = sum
	}
	return json.Marshal(raw)
}

func (id *Identifier) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id.Hashes = make(map[int]string, len(raw))
	for key, value := range raw {
		if key == "pages" {
			if err := json.Unmarshal(value, &id.Pages); err != nil {
				return fmt.Errorf("transfer: identifier pages: %w", err)
			}
			continue
		}
		suffix, ok := strings.CutPrefix(key, "page")
		if !ok {
			continue
		}
		index, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		var sum string
		if err := json.Unmarshal(value, &sum); err != nil {
			return fmt.Errorf("transfer: identifier %s: %w", key, err)
		}
		id.Hashes[index] = sum
	}
	return nil
}
