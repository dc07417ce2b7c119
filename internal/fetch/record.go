// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package fetch

import (
	"html"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/scanner"
)

// Title holds the default and the optional Japanese title of a record.
type Title struct {
	Default  string `json:"def"`
	Japanese string `json:"jpn,omitempty"`
}

// Record is the canonical metadata of one gallery, whatever site it came from.
type Record struct {
	Title   Title        `json:"title"`
	Type    gallery.Type `json:"type"`
	PubDate *time.Time   `json:"pub_date,omitempty"`
	Tags    gallery.Tags `json:"tags"`
	URL     string       `json:"url,omitempty"`
}

// # Canonical Rules

var titleCaser = cases.Title(language.Und)

// CleanTitle decodes HTML entities and collapses whitespace.
func CleanTitle(raw string) string {
	return strings.Join(strings.Fields(html.UnescapeString(raw)), " ")
}

// Namespace title-cases a tag namespace. An empty one becomes [gallery.DefaultNamespace].
func Namespace(raw string) string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "_", " "))
	if raw == "" || strings.EqualFold(raw, gallery.DefaultNamespace) {
		return gallery.DefaultNamespace
	}
	return titleCaser.String(raw)
}

// TagValue lowercases a tag and turns underscores into spaces.
func TagValue(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(html.UnescapeString(raw), "_", " "))), " ")
}

// AddTag stores one canonical tag in tags.
func AddTag(tags gallery.Tags, namespace, value string) {
	tags.Add(Namespace(namespace), TagValue(value))
}

// SplitTags canonicalizes "namespace:tag" strings; bare tags go to the default namespace.
func SplitTags(raw []string) gallery.Tags {
	tags := gallery.Tags{}
	for _, entry := range raw {
		namespace, value, found := strings.Cut(entry, ":")
		if !found {
			namespace, value = "", entry
		}
		AddTag(tags, namespace, value)
	}
	return tags
}

// Posted converts a unix timestamp to a naive UTC date. Zero yields nil.
func Posted(unix int64) *time.Time {
	if unix <= 0 {
		return nil
	}
	posted := time.Unix(unix, 0).UTC()
	return &posted
}

// # Apply

/*
ApplyMetadata merges record into g.

In append mode, fields that already hold a value are kept and tag sets are
unioned. Otherwise the record's title, type, date, link and tags replace the
gallery's.

The language comes from the Language namespace (the pseudo-tag "translated" is
ignored), else from the parsed title. The artist comes from the Artist namespace,
else from the parsed title.
*/
func ApplyMetadata(g *gallery.Gallery, record Record, appendMode bool, languages []string) {
	parsed := scanner.ParseTitle(record.Title.Default, languages)

	if parsed.Title != "" && (!appendMode || g.Title == "") {
		g.Title = parsed.Title
	}
	if record.Type != "" && (!appendMode || g.Type == "") {
		g.Type = record.Type
	}
	if record.PubDate != nil && (!appendMode || g.PubDate == nil) {
		posted := *record.PubDate
		g.PubDate = &posted
	}
	if record.URL != "" && (!appendMode || g.Link == "") {
		g.Link = record.URL
	}

	if appendMode {
		if g.Tags == nil {
			g.Tags = gallery.Tags{}
		}
		g.Tags.Merge(record.Tags)
	} else {
		g.Tags = record.Tags.Clone()
	}

	artist := parsed.Artist
	if artists := record.Tags.Get("Artist"); len(artists) > 0 {
		artist = titleCaser.String(artists[0])
	}
	if artist != "" && (!appendMode || g.Artist == "") {
		g.Artist = artist
	}

	lang := parsed.Language
	for _, tag := range record.Tags.Get("Language") {
		if tag == "translated" {
			continue
		}
		lang = titleCaser.String(tag)
		break
	}
	if lang != "" && (!appendMode || g.Language == "") {
		g.Language = lang
	}
}
