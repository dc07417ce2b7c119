// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scanner

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/taibuivan/happypanda/internal/archive"
	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/constants"
)

// errUnknownMetafile is returned for a JSON sidecar that is not in the eze shape.
var errUnknownMetafile = errors.New("scanner: unrecognised metafile")

// Metadata is what a sidecar file says about its gallery. Empty fields are unknown.
type Metadata struct {
	Title    string
	Artist   string
	Info     string
	Language string
	Link     string
	Type     gallery.Type
	PubDate  *time.Time
	Tags     gallery.Tags
}

// Apply merges m over g. Known fields replace the scanned ones; tags are unioned.
func (m *Metadata) Apply(g *gallery.Gallery) {
	if m.Title != "" {
		g.Title = m.Title
	}
	if m.Artist != "" {
		g.Artist = m.Artist
	}
	if m.Info != "" {
		g.Info = m.Info
	}
	if m.Language != "" {
		g.Language = m.Language
	}
	if m.Link != "" {
		g.Link = m.Link
	}
	if m.Type != "" {
		g.Type = m.Type
	}
	if m.PubDate != nil {
		g.PubDate = m.PubDate
	}
	if len(m.Tags) > 0 {
		if g.Tags == nil {
			g.Tags = gallery.Tags{}
		}
		g.Tags.Merge(m.Tags)
	}
}

// # Eze (info.json)

type ezeFile struct {
	GalleryInfo *ezeGallery     `json:"gallery_info"`
	ImageInfo   json.RawMessage `json:"image_info"`
	ImageAPIKey json.RawMessage `json:"image_api_key"`
}

type ezeGallery struct {
	Title      string              `json:"title"`
	Category   string              `json:"category"`
	Tags       map[string][]string `json:"tags"`
	Language   string              `json:"language"`
	UploadDate []int               `json:"upload_date"`
	Source     *struct {
		Site  string `json:"site"`
		GID   int64  `json:"gid"`
		Token string `json:"token"`
	} `json:"source"`
}

/*
ParseEze reads an info.json written by the eze browser extension.

The file must carry the gallery_info, image_info and image_api_key keys.
upload_date is a [year, month, day, ...] array.
*/
func ParseEze(data []byte, languages []string) (*Metadata, error) {
	var file ezeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("scanner: decode info.json: %w", err)
	}
	if file.GalleryInfo == nil || file.ImageInfo == nil || file.ImageAPIKey == nil {
		return nil, errUnknownMetafile
	}
	info := file.GalleryInfo
	parsed := ParseTitle(info.Title, languages)

	meta := &Metadata{
		Title:    parsed.Title,
		Artist:   parsed.Artist,
		Language: strings.TrimSpace(info.Language),
		Type:     gallery.ParseType(info.Category),
		Tags:     gallery.Tags{},
	}

	caser := cases.Title(language.Und)
	for namespace, tags := range info.Tags {
		namespace = caser.String(strings.TrimSpace(namespace))
		if namespace == "Misc" {
			namespace = gallery.DefaultNamespace
		}
		for _, tag := range tags {
			meta.Tags.Add(namespace, tag)
		}
	}
	if artists := meta.Tags.Get("Artist"); len(artists) > 0 {
		meta.Artist = caser.String(artists[0])
	}

	if d := info.UploadDate; len(d) >= 3 && d[1] >= 1 && d[1] <= 12 && d[2] >= 1 && d[2] <= 31 {
		date := time.Date(d[0], time.Month(d[1]), d[2], 0, 0, 0, 0, time.UTC)
		meta.PubDate = &date
	}
	if source := info.Source; source != nil && source.Site != "" && source.GID > 0 {
		meta.Link = fmt.Sprintf("https://%s.org/g/%d/%s/", source.Site, source.GID, source.Token)
	}
	return meta, nil
}

// # HDoujin (info.txt)

/*
ParseHDoujin reads an info.txt written by HDoujin Downloader.

Lines are "key: value". Recognised keys are title, artist, tags, description,
circle and url; everything else is ignored.
*/
func ParseHDoujin(data []byte) *Metadata {
	meta := &Metadata{Tags: gallery.Tags{}}

	lines := bufio.NewScanner(bytes.NewReader(data))
	for lines.Scan() {
		key, value, ok := strings.Cut(lines.Text(), ":")
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "title":
			meta.Title = value
		case "artist":
			meta.Artist = value
		case "tags":
			meta.Tags.Merge(gallery.ParseTags(value))
		case "description":
			meta.Info = value
		case "circle":
			meta.Tags.Add("Group", strings.ToLower(value))
		case "url":
			meta.Link = value
		}
	}
	return meta
}

// parseMetafile dispatches on the sidecar file name.
func parseMetafile(name string, data []byte, languages []string) (*Metadata, error) {
	if strings.EqualFold(name, "info.txt") {
		return ParseHDoujin(data), nil
	}
	return ParseEze(data, languages)
}

// # Discovery

// isMetafile reports whether name is a recognised sidecar.
func isMetafile(name string) bool {
	base := path.Base(filepath.ToSlash(name))
	return slices.ContainsFunc(constants.MetafileNames, func(metafile string) bool {
		return strings.EqualFold(metafile, base)
	})
}

// readDirMetafile returns the sidecar metadata of a directory gallery, or nil.
func readDirMetafile(dir string, languages []string) (*Metadata, error) {
	for _, name := range constants.MetafileNames {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		meta, err := parseMetafile(name, data, languages)
		if errors.Is(err, errUnknownMetafile) {
			continue
		}
		return meta, err
	}
	return nil, nil
}

// readArchiveMetafile looks for a sidecar in folder and at the archive root.
func readArchiveMetafile(arc archive.Archive, folder string, languages []string) (*Metadata, error) {
	folders := []string{folder}
	if folder != "" {
		folders = append(folders, "")
	}
	for _, dir := range folders {
		members, err := arc.DirContents(dir)
		if err != nil {
			continue
		}
		for _, member := range members {
			if arc.IsDir(member) || !isMetafile(member) {
				continue
			}
			data, err := arc.Open(member)
			if err != nil {
				return nil, err
			}
			meta, err := parseMetafile(path.Base(member), data, languages)
			if errors.Is(err, errUnknownMetafile) {
				continue
			}
			return meta, err
		}
	}
	return nil, nil
}
