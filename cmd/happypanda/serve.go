// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/taibuivan/happypanda/internal/api"
	"github.com/taibuivan/happypanda/internal/catalog"
	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/ctxutil"
	"github.com/taibuivan/happypanda/internal/platform/dberr"
	"github.com/taibuivan/happypanda/internal/watcher"
)

/*
serve runs the long-lived engine: library watcher, download workers and the
local API. SIGHUP asks the supervisor to restart the process.
*/
func (a *app) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	// ── Download workers ──────────────────────────────────────────────────
	manager := a.newManager()
	manager.Start(ctx)
	defer manager.Wait()

	// ── Library watcher ───────────────────────────────────────────────────
	if len(a.cfg.MonitorPaths) > 0 {
		w := watcher.New(a.cfg.MonitorPaths, a.scanner, a.catalog, a.temp, a.log)
		a.catalog.GuardFiles(w.OverridePath)
		defer a.catalog.GuardFiles(nil)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Error("watcher_stopped", slog.Any("error", err))
			}
		}()
		go func() {
			defer wg.Done()
			watchCtx := ctxutil.WithPriority(ctxutil.WithJobID(ctx, "watcher"), constants.BackgroundPriority)
			a.applyWatchEvents(watchCtx, w.Events())
		}()
	}

	// ── Local API ─────────────────────────────────────────────────────────
	deps := api.HealthDependencies{
		CheckCatalog: func() error { return a.catalog.Ping(context.Background()) },
	}
	if a.redis != nil {
		deps.CheckCache = func() error { return a.redis.Ping(context.Background()) }
	}
	liveness, readiness := api.NewHealthHandlers(deps, a.log)

	server := api.NewServer(ctx, a.cfg, a.log, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Galleries: api.NewGalleryHandler(a.catalog),
		Downloads: api.NewDownloadHandler(manager, a.log),
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)

	var result error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown_signal_received")
	case <-hangup:
		result = errRestart
	case err := <-serverErr:
		result = err
	}

	a.log.Info("shutting_down", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		a.log.Error("shutdown_error", slog.Any("error", err))
	}
	cancel()
	return result
}

// applyWatchEvents keeps the catalog in step with the library folders.
func (a *app) applyWatchEvents(ctx context.Context, events <-chan watcher.Event) {
	for {
		var event watcher.Event
		select {
		case <-ctx.Done():
			return
		case next, ok := <-events:
			if !ok {
				return
			}
			event = next
		}

		var err error
		switch event.Kind {
		case watcher.Created:
			_, err = a.scanner.IngestPath(ctx, a.catalog, event.Path)
		case watcher.Modified:
			_, err = a.catalog.Rebuild(ctx, []int64{event.GalleryID}, catalog.RebuildOptions{Thumbnails: true, Hashes: true})
		case watcher.Moved:
			err = a.eachAtPath(ctx, event.Gallery, func(g *gallery.Gallery) error {
				return a.catalog.Modify(g.ID).SetPath(event.Path, g.IsArchive, g.PathInArchive).Execute(ctx)
			})
		case watcher.Deleted:
			err = a.eachAtPath(ctx, event.Gallery, func(g *gallery.Gallery) error {
				return a.catalog.Delete(ctx, g.ID, catalog.DeleteRecord)
			})
		}
		if errors.Is(err, dberr.ErrNotFound) {
			a.log.Debug("watch_event_stale", slog.String("kind", event.Kind.String()), slog.String("path", event.Path))
			continue
		}
		if err != nil && ctx.Err() == nil {
			a.log.Warn("watch_event_failed", slog.String("kind", event.Kind.String()), slog.String("path", event.Path), slog.Any("error", err))
			a.notifier.Warn("watcher", err.Error())
		}
	}
}

// eachAtPath runs fn for every gallery stored at the path of known, which
// covers all folders of a split archive.
func (a *app) eachAtPath(ctx context.Context, known *gallery.Gallery, fn func(*gallery.Gallery) error) error {
	galleries, err := a.catalog.AtPath(ctx, known.Path)
	if err != nil {
		return err
	}
	if len(galleries) == 0 {
		return fn(known)
	}
	for _, g := range galleries {
		if err := fn(g); err != nil {
			return err
		}
	}
	return nil
}
