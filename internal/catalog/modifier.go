// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/database/schema"
	"github.com/taibuivan/happypanda/internal/platform/dberr"
)

// ErrModifierExecuted is returned when a modifier is executed twice.
var ErrModifierExecuted = errors.New("catalog: modifier already executed")

/*
Modifier collects changes to one gallery and writes them in one command.

Each setter records its column once; a later call to the same setter replaces
the earlier value. Execute issues a single UPDATE for all recorded columns,
then applies chapter, tag and hash sub-operations in that order, all inside
one transaction. A modifier executes at most once.

	err := catalog.Modify(id).SetTitle("Title").SetRating(4).Execute(ctx)
*/
type Modifier struct {
	catalog *Catalog
	id      int64

	mu       sync.Mutex
	executed bool
	columns  []string
	values   map[string]any
	chapters []*gallery.Chapter
	replace  bool
	tags     gallery.Tags
	hashes   map[int64]map[int]string
	rehash   bool

	newPath      string
	newInArchive string
}

// Modify starts a modifier for gallery id.
func (catalog *Catalog) Modify(id int64) *Modifier {
	return &Modifier{catalog: catalog, id: id, values: make(map[string]any)}
}

func (m *Modifier) set(column string, value any) *Modifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, seen := m.values[column]; !seen {
		m.columns = append(m.columns, column)
	}
	m.values[column] = value
	return m
}

// # Field Setters

func (m *Modifier) SetTitle(title string) *Modifier   { return m.set(schema.Series.Title, title) }
func (m *Modifier) SetArtist(artist string) *Modifier { return m.set(schema.Series.Artist, artist) }
func (m *Modifier) SetInfo(info string) *Modifier     { return m.set(schema.Series.Info, info) }
func (m *Modifier) SetLanguage(lang string) *Modifier { return m.set(schema.Series.Language, lang) }
func (m *Modifier) SetLink(link string) *Modifier     { return m.set(schema.Series.Link, link) }
func (m *Modifier) SetFav(fav bool) *Modifier         { return m.set(schema.Series.Fav, fav) }
func (m *Modifier) SetExed(exed bool) *Modifier       { return m.set(schema.Series.Exed, exed) }
func (m *Modifier) SetProfile(path string) *Modifier  { return m.set(schema.Series.Profile, path) }

func (m *Modifier) SetType(t gallery.Type) *Modifier { return m.set(schema.Series.Type, string(t)) }

func (m *Modifier) SetStatus(status gallery.Status) *Modifier {
	return m.set(schema.Series.Status, string(status))
}

func (m *Modifier) SetView(view gallery.View) *Modifier { return m.set(schema.Series.View, int(view)) }

// SetRating clamps rating into 0..5.
func (m *Modifier) SetRating(rating int) *Modifier {
	return m.set(schema.Series.Rating, min(max(rating, 0), 5))
}

func (m *Modifier) SetTimesRead(times int) *Modifier {
	return m.set(schema.Series.TimesRead, max(times, 0))
}

func (m *Modifier) SetPubDate(date *time.Time) *Modifier {
	return m.set(schema.Series.PubDate, nullTime(date))
}

func (m *Modifier) SetLastRead(date *time.Time) *Modifier {
	return m.set(schema.Series.LastRead, nullTime(date))
}

func (m *Modifier) SetDateAdded(date time.Time) *Modifier {
	return m.set(schema.Series.DateAdded, date.UTC())
}

func (m *Modifier) SetDBVersion(version float64) *Modifier {
	return m.set(schema.Series.DBVersion, version)
}

// SetPath moves the gallery to a new location and keeps the path index in sync.
func (m *Modifier) SetPath(path string, isArchive bool, pathInArchive string) *Modifier {
	m.set(schema.Series.Path, path)
	m.set(schema.Series.IsArchive, isArchive)
	m.set(schema.Series.PathInArchive, pathInArchive)
	m.mu.Lock()
	m.newPath = path
	m.newInArchive = pathInArchive
	m.mu.Unlock()
	return m
}

// # Sub-operations

// SetChapters upserts chapters by number. With replace, numbers not listed are removed.
func (m *Modifier) SetChapters(chapters []*gallery.Chapter, replace bool) *Modifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chapters, m.replace = chapters, replace
	return m
}

// SetTags replaces the gallery's tag set.
func (m *Modifier) SetTags(tags gallery.Tags) *Modifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = tags.Clone()
	return m
}

// SetHashes stores page hashes for one chapter id.
func (m *Modifier) SetHashes(chapterID int64, hashes map[int]string) *Modifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hashes == nil {
		m.hashes = make(map[int64]map[int]string)
	}
	m.hashes[chapterID] = hashes
	return m
}

// ClearHashes drops every cached hash of the gallery before new ones are stored.
func (m *Modifier) ClearHashes() *Modifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rehash = true
	return m
}

/*
Execute writes every recorded change.

Returns:
  - ErrModifierExecuted on a second call
  - NOT_FOUND when the gallery does not exist
*/
func (m *Modifier) Execute(ctx context.Context) error {
	m.mu.Lock()
	if m.executed {
		m.mu.Unlock()
		return ErrModifierExecuted
	}
	m.executed = true
	m.mu.Unlock()

	old, err := Submit(ctx, m.catalog.queue, "modify_gallery", func(ctx context.Context, db *sql.DB) (location, error) {
		var old location
		err := withTx(ctx, db, func(tx *sql.Tx) error {
			lookup := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s = ?",
				schema.Series.Path, schema.Series.PathInArchive, schema.Series.Table, schema.Series.ID)
			if err := tx.QueryRowContext(ctx, lookup, m.id).Scan(&old.path, &old.inArchive); err != nil {
				return dberr.Wrap(err, "lookup gallery")
			}
			return m.apply(ctx, tx)
		})
		return old, err
	})
	if err != nil {
		return err
	}

	moved := location{path: m.newPath, inArchive: m.newInArchive}
	if m.newPath != "" && moved != old {
		m.catalog.index.Remove(old.path, old.inArchive)
		m.catalog.index.Insert(moved.path, moved.inArchive)
	}
	return nil
}

func (m *Modifier) apply(ctx context.Context, tx *sql.Tx) error {
	if len(m.columns) > 0 {
		assignments := make([]string, len(m.columns))
		args := make([]any, 0, len(m.columns)+1)
		for i, column := range m.columns {
			assignments[i] = column + " = ?"
			args = append(args, m.values[column])
		}
		args = append(args, m.id)

		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			schema.Series.Table, strings.Join(assignments, ", "), schema.Series.ID)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return dberr.Wrap(err, "update gallery")
		}
	}

	if m.chapters != nil {
		write := upsertChapters
		if m.replace {
			write = replaceChapters
		}
		if err := write(ctx, tx, m.id, m.chapters); err != nil {
			return err
		}
	}

	if m.tags != nil {
		if err := replaceTags(ctx, tx, m.id, m.tags); err != nil {
			return err
		}
	}

	if m.rehash {
		if err := deleteHashes(ctx, tx, m.id); err != nil {
			return err
		}
	}
	for chapterID, hashes := range m.hashes {
		if err := insertHashes(ctx, tx, m.id, chapterID, hashes); err != nil {
			return err
		}
	}
	return nil
}

// SaveMetadata writes the fetched fields of g and marks it as fetched.
func (catalog *Catalog) SaveMetadata(ctx context.Context, g *gallery.Gallery) error {
	return catalog.Modify(g.ID).
		SetTitle(g.Title).
		SetArtist(g.Artist).
		SetType(g.Type).
		SetLanguage(g.Language).
		SetLink(g.Link).
		SetPubDate(g.PubDate).
		SetTags(g.Tags).
		SetExed(true).
		Execute(ctx)
}

// RestoreGallery copies the user-editable fields of from onto gallery id.
// Paths, chapters and hashes of the target are kept.
func (catalog *Catalog) RestoreGallery(ctx context.Context, id int64, from *gallery.Gallery) error {
	return catalog.Modify(id).
		SetTitle(from.Title).
		SetArtist(from.Artist).
		SetInfo(from.Info).
		SetFav(from.Fav).
		SetType(from.Type).
		SetLink(from.Link).
		SetRating(from.Rating).
		SetView(from.View).
		SetLanguage(from.Language).
		SetStatus(from.Status).
		SetPubDate(from.PubDate).
		SetLastRead(from.LastRead).
		SetDateAdded(from.DateAdded).
		SetTimesRead(from.TimesRead).
		SetExed(from.Exed).
		SetTags(from.Tags).
		Execute(ctx)
}

// SetView moves a gallery to another library view.
func (catalog *Catalog) SetView(ctx context.Context, id int64, view gallery.View) error {
	return catalog.Modify(id).SetView(view).Execute(ctx)
}
