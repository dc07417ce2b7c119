// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package watcher_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/archive"
	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/scanner"
	"github.com/taibuivan/happypanda/internal/watcher"
)

// pathLookup is an in-memory catalog keyed by path.
type pathLookup struct {
	mu        sync.Mutex
	galleries map[string]*gallery.Gallery
}

func (l *pathLookup) put(g *gallery.Gallery) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.galleries[g.Path] = g
}

func (l *pathLookup) Exists(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.galleries[path]
	return ok
}

func (l *pathLookup) GetByPath(_ context.Context, path string) (*gallery.Gallery, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if g, ok := l.galleries[path]; ok {
		return g, nil
	}
	return nil, apperr.NotFound("Gallery")
}

func next(t *testing.T, events <-chan watcher.Event) watcher.Event {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("no watcher event")
		return watcher.Event{}
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("zip"), 0o644))
}

/*
TestWatcher_Events drives a watched root through every kind of change.
*/
func TestWatcher_Events(t *testing.T) {
	root := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	known := gallery.New(filepath.Join(root, "known.zip"))
	known.SetID(7)
	touch(t, known.Path)
	doomed := gallery.New(filepath.Join(root, "doomed.zip"))
	doomed.SetID(8)
	touch(t, doomed.Path)

	lookup := &pathLookup{galleries: map[string]*gallery.Gallery{}}
	lookup.put(known)
	lookup.put(doomed)

	temp := scanner.NewTempIgnore()
	filter := scanner.New(archive.Opener{}, temp, scanner.Options{Logger: logger})
	w := watcher.New([]string{root}, filter, lookup, temp, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()
	time.Sleep(100 * time.Millisecond)

	// 1. A new archive
	touch(t, filepath.Join(root, "new.zip"))
	event := next(t, w.Events())
	assert.Equal(t, watcher.Created, event.Kind)
	assert.Equal(t, filepath.Join(root, "new.zip"), event.Path)

	// 2. Temporary ignores and the override flag swallow one event each
	temp.Add(filepath.Join(root, "download.zip"))
	touch(t, filepath.Join(root, "download.zip"))
	w.Override()
	touch(t, filepath.Join(root, "quiet.zip"))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.Mkdir(filepath.Join(root, "folder"), 0o755))
	event = next(t, w.Events())
	assert.Equal(t, watcher.Created, event.Kind)
	assert.Equal(t, filepath.Join(root, "folder"), event.Path)

	// 3. Rename of a known gallery
	require.NoError(t, os.Rename(known.Path, filepath.Join(root, "renamed.zip")))
	event = next(t, w.Events())
	assert.Equal(t, watcher.Moved, event.Kind)
	assert.Equal(t, filepath.Join(root, "renamed.zip"), event.Path)
	assert.Equal(t, int64(7), event.GalleryID)

	// 4. Removal of a known gallery
	require.NoError(t, os.Remove(doomed.Path))
	event = next(t, w.Events())
	assert.Equal(t, watcher.Deleted, event.Kind)
	assert.Equal(t, doomed.Path, event.Path)
	require.NotNil(t, event.Gallery)
	assert.Equal(t, int64(8), event.Gallery.ID)
}

/*
TestWatcher_RenameOutside reports a delete when no create follows the rename.
*/
func TestWatcher_RenameOutside(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	g := gallery.New(filepath.Join(root, "leaving.zip"))
	g.SetID(3)
	touch(t, g.Path)
	lookup := &pathLookup{galleries: map[string]*gallery.Gallery{g.Path: g}}

	filter := scanner.New(archive.Opener{}, nil, scanner.Options{Logger: logger})
	w := watcher.New([]string{root}, filter, lookup, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.Rename(g.Path, filepath.Join(outside, "leaving.zip")))
	event := next(t, w.Events())
	assert.Equal(t, watcher.Deleted, event.Kind)
	assert.Equal(t, int64(3), event.GalleryID)
}

/*
TestWatcher_OverridePath keeps a gallery quiet while the application moves it
away, then lets later events through.
*/
func TestWatcher_OverridePath(t *testing.T) {
	root := t.TempDir()
	trash := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	folder := gallery.New(filepath.Join(root, "folder"))
	folder.SetID(5)
	require.NoError(t, os.Mkdir(folder.Path, 0o755))
	touch(t, filepath.Join(folder.Path, "001.png"))
	archived := gallery.New(filepath.Join(root, "gone.zip"))
	archived.SetID(6)
	touch(t, archived.Path)

	lookup := &pathLookup{galleries: map[string]*gallery.Gallery{}}
	lookup.put(folder)
	lookup.put(archived)

	filter := scanner.New(archive.Opener{}, nil, scanner.Options{Logger: logger})
	w := watcher.New([]string{root}, filter, lookup, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()
	time.Sleep(100 * time.Millisecond)

	// 1. Moved out of the tree and removed, both overridden
	w.OverridePath(folder.Path)
	require.NoError(t, os.Rename(folder.Path, filepath.Join(trash, "folder")))
	w.OverridePath(archived.Path)
	require.NoError(t, os.Remove(archived.Path))
	time.Sleep(watcher.MoveWindow + 200*time.Millisecond)

	// 2. The next change is reported, nothing from before it
	touch(t, filepath.Join(root, "after.zip"))
	event := next(t, w.Events())
	assert.Equal(t, watcher.Created, event.Kind)
	assert.Equal(t, filepath.Join(root, "after.zip"), event.Path)
}
