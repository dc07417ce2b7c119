// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/database/schema"
)

// LoadStage tells which part of the library a [LoadEvent] carries.
type LoadStage int

const (
	// StageGalleries delivers bare gallery rows.
	StageGalleries LoadStage = iota
	// StageChapters delivers chapters keyed by gallery id.
	StageChapters
	// StageTags delivers tags keyed by gallery id.
	StageTags
	// StageHashes delivers sampled hashes keyed by gallery id.
	StageHashes
)

// LoadEvent is one batch of the startup load.
//
// Gallery rows arrive first so a grid can render; the follow-up stages carry
// values keyed by gallery id for the consumer to attach.
type LoadEvent struct {
	Stage     LoadStage
	Galleries []*gallery.Gallery
	Chapters  map[int64][]*gallery.Chapter
	Tags      map[int64]gallery.Tags
	Hashes    map[int64][]string
	Err       error
}

/*
Load streams the whole library in batches of batchSize galleries (default 500).

Every batch is a separate queued command so interactive commands submitted
meanwhile are not starved. The channel is closed after the last event; a
failed batch is delivered with Err set and ends the stream.
*/
func (catalog *Catalog) Load(ctx context.Context, batchSize int) <-chan LoadEvent {
	if batchSize <= 0 {
		batchSize = constants.DefaultLoadBatch
	}
	events := make(chan LoadEvent, 4)

	go func() {
		defer close(events)

		send := func(event LoadEvent) bool {
			select {
			case events <- event:
				return event.Err == nil
			case <-ctx.Done():
				return false
			}
		}

		var (
			loaded  [][]int64
			afterID int64
		)
		for {
			batch, err := Submit(ctx, catalog.queue, "load_galleries", func(ctx context.Context, db *sql.DB) ([]*gallery.Gallery, error) {
				return selectGalleries(ctx, db,
					fmt.Sprintf("WHERE %s > ? ORDER BY %s LIMIT ?", schema.Series.ID, schema.Series.ID), afterID, batchSize)
			})
			if err != nil {
				send(LoadEvent{Stage: StageGalleries, Err: err})
				return
			}
			if len(batch) == 0 {
				break
			}
			if !send(LoadEvent{Stage: StageGalleries, Galleries: batch}) {
				return
			}
			loaded = append(loaded, galleryIDs(batch))
			afterID = batch[len(batch)-1].ID
			if len(batch) < batchSize {
				break
			}
		}

		for _, ids := range loaded {
			chapters, err := Submit(ctx, catalog.queue, "load_chapters", func(ctx context.Context, db *sql.DB) (map[int64][]*gallery.Chapter, error) {
				return selectChapters(ctx, db, ids)
			})
			if !send(LoadEvent{Stage: StageChapters, Chapters: chapters, Err: err}) {
				return
			}
		}
		for _, ids := range loaded {
			tags, err := Submit(ctx, catalog.queue, "load_tags", func(ctx context.Context, db *sql.DB) (map[int64]gallery.Tags, error) {
				return selectTags(ctx, db, ids)
			})
			if !send(LoadEvent{Stage: StageTags, Tags: tags, Err: err}) {
				return
			}
		}
		for _, ids := range loaded {
			hashes, err := Submit(ctx, catalog.queue, "load_hashes", func(ctx context.Context, db *sql.DB) (map[int64][]string, error) {
				return selectHashes(ctx, db, ids)
			})
			if !send(LoadEvent{Stage: StageHashes, Hashes: hashes, Err: err}) {
				return
			}
		}
	}()

	return events
}

// LoadAll drains [Catalog.Load] and returns fully assembled galleries in id order.
func (catalog *Catalog) LoadAll(ctx context.Context) ([]*gallery.Gallery, error) {
	var (
		galleries []*gallery.Gallery
		byID      = make(map[int64]*gallery.Gallery)
	)
	for event := range catalog.Load(ctx, 0) {
		if event.Err != nil {
			return nil, event.Err
		}
		switch event.Stage {
		case StageGalleries:
			for _, g := range event.Galleries {
				galleries = append(galleries, g)
				byID[g.ID] = g
			}
		case StageChapters:
			for id, chapters := range event.Chapters {
				for _, chapter := range chapters {
					if g, ok := byID[id]; ok {
						if err := g.Chapters.Add(chapter); err != nil {
							return nil, err
						}
					}
				}
			}
		case StageTags:
			for id, tags := range event.Tags {
				if g, ok := byID[id]; ok {
					g.Tags = tags
				}
			}
		case StageHashes:
			for id, hashes := range event.Hashes {
				if g, ok := byID[id]; ok {
					g.Hashes = hashes
				}
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return galleries, nil
}
