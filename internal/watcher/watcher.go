// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package watcher observes monitored library roots and reports gallery changes.

Architecture:

  - One fsnotify watcher and one goroutine per root, every directory watched.
  - Raw events are filtered to folders and archives outside the ignore set.
  - A rename followed by a create within a short window becomes one move.

Events are resolved against the catalog by path. The application suppresses
the next event with [Watcher.Override], or every event below one gallery with
[Watcher.OverridePath], before it mutates the tree itself.
*/
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/scanner"
)

// MoveWindow is how long a rename waits for its matching create.
const MoveWindow = 500 * time.Millisecond

// OverrideWindow is how long [Watcher.OverridePath] keeps a path quiet. It
// outlasts MoveWindow so a rename out of the tree is covered too.
const OverrideWindow = 4 * MoveWindow

// # Events

// Kind is the semantic change reported for a path.
type Kind int

const (
	Created Kind = iota + 1
	Modified
	Deleted
	Moved
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Moved:
		return "moved"
	}
	return "unknown"
}

// Event is one library change.
//
// Created carries only Path. Modified carries the gallery id. Deleted carries
// the removed gallery. Moved carries the new path and the gallery as stored.
type Event struct {
	Kind      Kind
	Path      string
	GalleryID int64
	Gallery   *gallery.Gallery
}

// # Dependencies

// Filter decides which paths matter.
type Filter interface {
	Skip(path string) bool
	IsArchive(path string) bool
}

// Lookup resolves paths to catalog galleries.
type Lookup interface {
	Exists(path string) bool
	GetByPath(ctx context.Context, path string) (*gallery.Gallery, error)
}

// # Watcher

type pendingMove struct {
	gallery *gallery.Gallery
	timer   *time.Timer
}

// Watcher observes roots until its context ends.
type Watcher struct {
	roots    []string
	filter   Filter
	lookup   Lookup
	temp     *scanner.TempIgnore
	logger   *slog.Logger
	events   chan Event
	expired  chan Event
	override atomic.Bool

	mu      sync.Mutex
	moves   map[string]*pendingMove
	settled map[string]time.Time // old paths already reported, keyed to report time
	quiet   map[string]time.Time // overridden paths, keyed to expiry
}

// New prepares a watcher. temp may be nil.
func New(roots []string, filter Filter, lookup Lookup, temp *scanner.TempIgnore, logger *slog.Logger) *Watcher {
	if temp == nil {
		temp = scanner.NewTempIgnore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		roots:   roots,
		filter:  filter,
		lookup:  lookup,
		temp:    temp,
		logger:  logger.With(slog.String("component", "watcher")),
		events:  make(chan Event, 64),
		expired: make(chan Event, 16),
		moves:   make(map[string]*pendingMove),
		settled: make(map[string]time.Time),
		quiet:   make(map[string]time.Time),
	}
}

// Events returns the stream of library changes. It is closed when Run returns.
func (w *Watcher) Events() <-chan Event { return w.events }

// Override suppresses the next event.
func (w *Watcher) Override() { w.override.Store(true) }

// OverridePath suppresses every event at or below path for [OverrideWindow].
func (w *Watcher) OverridePath(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quiet[filepath.Clean(path)] = time.Now().Add(OverrideWindow)
}

func (w *Watcher) quieted(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	for quiet, until := range w.quiet {
		if now.After(until) {
			delete(w.quiet, quiet)
			continue
		}
		if path == quiet || strings.HasPrefix(path, quiet+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

/*
Run watches every root until ctx ends.

Returns an error when a root cannot be watched; nothing is started in that case.
*/
func (w *Watcher) Run(ctx context.Context) error {
	watchers := make([]*fsnotify.Watcher, 0, len(w.roots))
	closeAll := func() {
		for _, fw := range watchers {
			_ = fw.Close()
		}
	}

	for _, root := range w.roots {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			closeAll()
			return fmt.Errorf("watcher: create: %w", err)
		}
		watchers = append(watchers, fw)
		if err := w.addTree(fw, root); err != nil {
			closeAll()
			return fmt.Errorf("watcher: watch %s: %w", root, err)
		}
	}

	var wg sync.WaitGroup
	for i, fw := range watchers {
		wg.Add(1)
		go func(root string, fw *fsnotify.Watcher) {
			defer wg.Done()
			w.loop(ctx, root, fw)
		}(w.roots[i], fw)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-w.expired:
				w.emit(ctx, event)
			}
		}
	}()
	w.logger.Info("watcher_started", slog.Int("roots", len(w.roots)))

	<-ctx.Done()
	closeAll()
	wg.Wait()

	w.mu.Lock()
	for path, move := range w.moves {
		move.timer.Stop()
		delete(w.moves, path)
	}
	w.mu.Unlock()

	close(w.events)
	w.logger.Info("watcher_stopped")
	return nil
}

// addTree watches dir and every folder below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != dir && w.filter.Skip(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context, root string, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher_error", slog.String("root", root), slog.Any("error", err))
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(ctx, fw, event)
		}
	}
}

// # Classification

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if w.temp.Consume(path) {
		w.logger.Debug("watcher_temp_ignored", slog.String("path", path))
		return
	}
	if w.filter.Skip(path) {
		return
	}

	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if err := w.addTree(fw, path); err != nil {
				w.logger.Warn("watcher_add_failed", slog.String("path", path), slog.Any("error", err))
			}
		}
		if !info.IsDir() && !w.filter.IsArchive(path) {
			w.parentModified(ctx, path)
			return
		}
		if move := w.takeMove(path); move != nil {
			w.emit(ctx, Event{Kind: Moved, Path: path, GalleryID: move.gallery.ID, Gallery: move.gallery})
			return
		}
		w.emit(ctx, Event{Kind: Created, Path: path})

	case event.Has(fsnotify.Write):
		if w.filter.IsArchive(path) {
			if g := w.resolve(ctx, path); g != nil {
				w.emit(ctx, Event{Kind: Modified, Path: path, GalleryID: g.ID})
			}
			return
		}
		w.parentModified(ctx, path)

	case event.Has(fsnotify.Rename):
		g := w.resolve(ctx, path)
		if g == nil {
			w.parentModified(ctx, path)
			return
		}
		w.holdMove(ctx, path, g)

	case event.Has(fsnotify.Remove):
		if w.settle(path) {
			return
		}
		if g := w.resolve(ctx, path); g != nil {
			w.emit(ctx, Event{Kind: Deleted, Path: path, GalleryID: g.ID, Gallery: g})
			return
		}
		w.parentModified(ctx, path)
	}
}

// parentModified reports a page change inside a known folder gallery.
func (w *Watcher) parentModified(ctx context.Context, path string) {
	parent := filepath.Dir(path)
	if !gallery.IsImagePath(path) {
		return
	}
	if g := w.resolve(ctx, parent); g != nil {
		w.emit(ctx, Event{Kind: Modified, Path: parent, GalleryID: g.ID})
	}
}

func (w *Watcher) resolve(ctx context.Context, path string) *gallery.Gallery {
	if !w.lookup.Exists(path) {
		return nil
	}
	g, err := w.lookup.GetByPath(ctx, path)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			w.logger.Warn("watcher_lookup_failed", slog.String("path", path), slog.Any("error", err))
		}
		return nil
	}
	return g
}

// holdMove waits MoveWindow for the create half of a move, else reports a delete.
func (w *Watcher) holdMove(ctx context.Context, path string, g *gallery.Gallery) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.moves[path]; ok || w.settledLocked(path, false) {
		return
	}
	w.moves[path] = &pendingMove{
		gallery: g,
		timer: time.AfterFunc(MoveWindow, func() {
			w.mu.Lock()
			_, pending := w.moves[path]
			delete(w.moves, path)
			w.settled[path] = time.Now()
			w.mu.Unlock()
			if !pending {
				return
			}
			select {
			case w.expired <- Event{Kind: Deleted, Path: path, GalleryID: g.ID, Gallery: g}:
			case <-ctx.Done():
			}
		}),
	}
}

// takeMove returns the pending rename matching a new path: same base name
// first, else the only pending rename.
func (w *Watcher) takeMove(path string) *pendingMove {
	w.mu.Lock()
	defer w.mu.Unlock()

	var match string
	for old := range w.moves {
		if filepath.Base(old) == filepath.Base(path) {
			match = old
			break
		}
	}
	if match == "" && len(w.moves) == 1 {
		for old := range w.moves {
			match = old
		}
	}
	if match == "" {
		return nil
	}
	move := w.moves[match]
	delete(w.moves, match)
	move.timer.Stop()
	w.settled[match] = time.Now()
	return move
}

// settle reports whether path was already reported within MoveWindow, and
// marks it reported otherwise. Directories deliver their own removal event
// after the parent's, so the second one is dropped.
func (w *Watcher) settle(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settledLocked(path, true)
}

func (w *Watcher) settledLocked(path string, mark bool) bool {
	now := time.Now()
	for old, at := range w.settled {
		if now.Sub(at) > MoveWindow {
			delete(w.settled, old)
		}
	}
	if _, ok := w.settled[path]; ok {
		return true
	}
	if mark {
		w.settled[path] = now
	}
	return false
}

func (w *Watcher) emit(ctx context.Context, event Event) {
	if w.quieted(event.Path) {
		w.logger.Debug("watcher_path_overridden", slog.String("kind", event.Kind.String()), slog.String("path", event.Path))
		return
	}
	if w.override.CompareAndSwap(true, false) {
		w.logger.Debug("watcher_event_overridden", slog.String("kind", event.Kind.String()), slog.String("path", event.Path))
		return
	}
	w.logger.Info("library_changed", slog.String("kind", event.Kind.String()), slog.String("path", event.Path))
	select {
	case w.events <- event:
	case <-ctx.Done():
	}
}
