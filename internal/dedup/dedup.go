// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package dedup finds galleries holding the same pages.

Two galleries are duplicates when their sampled page hashes are equal in
sequence. The hashes come from the catalog cache, so a second run only hashes
galleries added since.
*/
package dedup

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/taibuivan/happypanda/internal/core/gallery"
)

// Library is the catalog surface used for duplicate detection.
type Library interface {
	SampledHashes(ctx context.Context, g *gallery.Gallery) ([]string, error)
	SetView(ctx context.Context, id int64, view gallery.View) error
}

// Pair links a duplicate to the gallery it copies.
type Pair struct {
	Original  *gallery.Gallery
	Duplicate *gallery.Gallery
}

// Report is the outcome of one [Finder.Find].
type Report struct {
	Pairs []Pair
	// Failed counts galleries whose pages could not be hashed.
	Failed int
}

// Options tunes a [Finder].
type Options struct {
	// MarkDuplicates moves every duplicate to [gallery.ViewDuplicate].
	MarkDuplicates bool
	Logger         *slog.Logger
}

type Finder struct {
	library Library
	options Options
	logger  *slog.Logger
}

func New(library Library, options Options) *Finder {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Finder{
		library: library,
		options: options,
		logger:  options.Logger.With(slog.String("component", "dedup")),
	}
}

/*
Find compares every gallery with every other one.

Within a group of equal samples the earliest added gallery (lowest id on a tie)
is the original and each other member is paired with it. Galleries without a
sample are never paired.
*/
func (f *Finder) Find(ctx context.Context, galleries []*gallery.Gallery) (Report, error) {
	var report Report

	groups := make(map[string][]*gallery.Gallery)
	var keys []string
	for _, g := range galleries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sample, err := f.library.SampledHashes(ctx, g)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			f.logger.Warn("dedup_hash_failed", slog.Int64("gallery_id", g.ID), slog.String("path", g.Path), slog.Any("error", err))
			report.Failed++
			continue
		}
		if len(sample) == 0 {
			continue
		}
		key := strings.Join(sample, ",")
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], g)
	}

	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			if !group[i].DateAdded.Equal(group[j].DateAdded) {
				return group[i].DateAdded.Before(group[j].DateAdded)
			}
			return group[i].ID < group[j].ID
		})
		for _, duplicate := range group[1:] {
			report.Pairs = append(report.Pairs, Pair{Original: group[0], Duplicate: duplicate})
		}
	}

	if f.options.MarkDuplicates {
		for _, pair := range report.Pairs {
			if err := f.library.SetView(ctx, pair.Duplicate.ID, gallery.ViewDuplicate); err != nil {
				return report, err
			}
			pair.Duplicate.View = gallery.ViewDuplicate
		}
	}

	f.logger.Info("dedup_finished",
		slog.Int("galleries", len(galleries)),
		slog.Int("duplicates", len(report.Pairs)),
		slog.Int("failed", report.Failed),
	)
	return report, nil
}
