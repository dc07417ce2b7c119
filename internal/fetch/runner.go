// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package fetch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/hasher"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/platform/notify"
)

// Library is the catalog side of a metadata run.
type Library interface {
	Unexed(ctx context.Context) ([]*gallery.Gallery, error)
	SaveMetadata(ctx context.Context, g *gallery.Gallery) error
	// PruneLists drops galleries from enforced lists they no longer match.
	PruneLists(ctx context.Context, galleries []*gallery.Gallery) (int, error)
}

// RunnerOptions configures a [Runner].
type RunnerOptions struct {
	// Append keeps existing gallery fields and unions tags.
	Append    bool
	Languages []string
	Cache     Cache
	// Chaika, when set, looks up unlinked archive galleries by file hash.
	Chaika   *Chaika
	Notifier *notify.Notifier
	Logger   *slog.Logger
}

// Runner fetches metadata for every gallery not yet attempted.
type Runner struct {
	library  Library
	registry *Registry
	options  RunnerOptions
	logger   *slog.Logger

	changed []*gallery.Gallery
}

// RunReport counts the outcome of one run.
type RunReport struct {
	Updated  int
	NotFound int
	Failed   int
	Skipped  int
	// Pruned counts enforced list memberships dropped after the new tags were saved.
	Pruned int
}

// NewRunner builds a runner.
func NewRunner(library Library, registry *Registry, options RunnerOptions) *Runner {
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Runner{
		library:  library,
		registry: registry,
		options:  options,
		logger:   options.Logger.With(slog.String("component", "fetch_runner")),
	}
}

/*
Run processes every unfetched gallery.

Galleries with a supported link are fetched in per-site batches. Linked
galleries the site does not know are marked fetched. Failed batches stay
unfetched so the next run retries them. Galleries without a link are looked up
by archive hash when a chaika fetcher is configured, and skipped otherwise.
*/
func (r *Runner) Run(ctx context.Context) (RunReport, error) {
	var report RunReport
	r.changed = nil

	galleries, err := r.library.Unexed(ctx)
	if err != nil {
		return report, err
	}

	groups := make(map[string][]*gallery.Gallery)
	var unlinked []*gallery.Gallery
	for _, g := range galleries {
		if g.Link == "" {
			unlinked = append(unlinked, g)
			continue
		}
		f, err := r.registry.For(g.Link)
		if err != nil {
			unlinked = append(unlinked, g)
			continue
		}
		groups[f.Name()] = append(groups[f.Name()], g)
	}

	for _, f := range r.registry.Fetchers() {
		group := groups[f.Name()]
		if len(group) == 0 {
			continue
		}
		if err := r.runGroup(ctx, f, group, &report); err != nil {
			return report, err
		}
	}

	for _, g := range unlinked {
		if err := r.lookupHash(ctx, g, &report); err != nil {
			return report, err
		}
	}

	if len(r.changed) > 0 {
		pruned, err := r.library.PruneLists(ctx, r.changed)
		report.Pruned = pruned
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			r.logger.Warn("fetch_list_prune_failed", slog.Any("error", err))
		}
	}

	r.logger.Info("fetch_run_finished",
		slog.Int("updated", report.Updated),
		slog.Int("not_found", report.NotFound),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		slog.Int("pruned", report.Pruned),
	)
	return report, nil
}

// runGroup returns an error only when ctx ends.
func (r *Runner) runGroup(ctx context.Context, f Fetcher, group []*gallery.Gallery, report *RunReport) error {
	records := make(map[string]Record, len(group))
	var missing []string
	for _, g := range group {
		if r.options.Cache != nil {
			if record, ok, err := r.options.Cache.Get(ctx, g.Link); err == nil && ok {
				records[g.Link] = record
				continue
			}
		}
		missing = append(missing, g.Link)
	}

	if len(missing) > 0 {
		fetched, err := Metadata(ctx, f, missing)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			r.logger.Warn("fetch_batch_failed", slog.String("site", f.Name()), slog.Any("error", err))
			r.surface(f.Name(), err)
		}
		for u, record := range fetched {
			records[u] = record
			if r.options.Cache != nil {
				if err := r.options.Cache.Set(ctx, u, record); err != nil {
					r.logger.Warn("fetch_cache_failed", slog.String("url", u), slog.Any("error", err))
				}
			}
		}
		if err != nil {
			for _, g := range group {
				if _, ok := records[g.Link]; !ok {
					report.Failed++
				}
			}
			return r.applyAll(ctx, group, records, report, false)
		}
	}
	return r.applyAll(ctx, group, records, report, true)
}

// applyAll saves the found records; with markMissing, galleries without one are marked fetched.
func (r *Runner) applyAll(ctx context.Context, group []*gallery.Gallery, records map[string]Record, report *RunReport, markMissing bool) error {
	for _, g := range group {
		record, ok := records[g.Link]
		if !ok && !markMissing {
			continue
		}
		if ok {
			ApplyMetadata(g, record, r.options.Append, r.options.Languages)
			report.Updated++
		} else {
			report.NotFound++
		}
		if err := r.library.SaveMetadata(ctx, g); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("fetch_save_failed", slog.Int64("gallery_id", g.ID), slog.Any("error", err))
			continue
		}
		if ok {
			r.changed = append(r.changed, g)
		}
	}
	return nil
}

func (r *Runner) lookupHash(ctx context.Context, g *gallery.Gallery, report *RunReport) error {
	if r.options.Chaika == nil || !g.IsArchive {
		report.Skipped++
		return nil
	}
	sum, err := hasher.HashFile(g.Path)
	if err != nil {
		r.logger.Warn("fetch_hash_failed", slog.String("path", g.Path), slog.Any("error", err))
		report.Skipped++
		return nil
	}

	record, ok, err := r.options.Chaika.SearchHash(ctx, sum)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		r.logger.Warn("fetch_hash_search_failed", slog.String("path", g.Path), slog.Any("error", err))
		report.Failed++
		return nil
	}
	if ok {
		ApplyMetadata(g, record, r.options.Append, r.options.Languages)
		report.Updated++
	} else {
		report.NotFound++
	}
	if err := r.library.SaveMetadata(ctx, g); err != nil {
		r.logger.Error("fetch_save_failed", slog.Int64("gallery_id", g.ID), slog.Any("error", err))
		return nil
	}
	if ok {
		r.changed = append(r.changed, g)
	}
	return nil
}

// surface reports user-facing failures on the notifier.
func (r *Runner) surface(site string, err error) {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		r.options.Notifier.Error(site, appErr.Message)
		return
	}
	r.options.Notifier.Error(site, "error")
}
