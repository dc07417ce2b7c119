// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/archive"
	"github.com/taibuivan/happypanda/internal/catalog"
	"github.com/taibuivan/happypanda/internal/dedup"
	"github.com/taibuivan/happypanda/internal/hasher"
	"github.com/taibuivan/happypanda/internal/platform/notify"
	"github.com/taibuivan/happypanda/internal/scanner"
	"github.com/taibuivan/happypanda/internal/watcher"
)

func TestStdinConfirmer(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect bool
	}{
		{"Yes", "y\n", true},
		{"Full word", " YES \n", true},
		{"No", "n\n", false},
		{"Empty line", "\n", false},
		{"Closed input", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			confirmer := stdinConfirmer{in: strings.NewReader(tt.input), out: &out}
			assert.Equal(t, tt.expect, confirmer.Confirm(context.Background(), catalog.PromptUpgrade, nil))
			assert.Contains(t, out.String(), "[y/N]")
		})
	}
}

func TestCleanTemp(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "extract", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.png"), []byte("x"), 0o644))

	cleanTemp(dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

/*
TestSeedFixtures builds the --test library and checks it holds one duplicate pair.
*/
func TestSeedFixtures(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	opener := archive.Opener{TempDir: filepath.Join(root, "temp")}

	c, err := catalog.Open(ctx, catalog.Options{
		Path:   filepath.Join(root, "data", "test.db"),
		Hasher: hasher.New(opener, 2),
		Logger: log,
	})
	require.NoError(t, err)
	defer c.Close()

	s := scanner.New(opener, nil, scanner.Options{Logger: log})
	require.NoError(t, seedFixtures(ctx, s, c, filepath.Join(root, "fixtures")))
	assert.Equal(t, fixtureGalleries+1, c.Count())

	galleries, err := c.LoadAll(ctx)
	require.NoError(t, err)
	report, err := dedup.New(c, dedup.Options{Logger: log}).Find(ctx, galleries)
	require.NoError(t, err)

	// The zip repeats gallery 2 and the copy folder repeats gallery 1.
	assert.Len(t, report.Pairs, 2)
	assert.Zero(t, report.Failed)
}

/*
TestApplyWatchEvents_GuardedDelete trashes a watched gallery through the catalog
and checks the watcher neither deletes it twice nor stops reporting new galleries.
*/
func TestApplyWatchEvents_GuardedDelete(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := t.TempDir()
	root := filepath.Join(base, "library")
	staging := filepath.Join(base, "staging")
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	opener := archive.Opener{TempDir: filepath.Join(base, "temp")}
	temp := scanner.NewTempIgnore()

	c, err := catalog.Open(ctx, catalog.Options{
		Path:     filepath.Join(base, "data", "watch.db"),
		TrashDir: filepath.Join(base, "trash"),
		Hasher:   hasher.New(opener, 2),
		Logger:   log,
	})
	require.NoError(t, err)
	defer c.Close()

	s := scanner.New(opener, temp, scanner.Options{Logger: log})
	require.NoError(t, writeFixturePages(filepath.Join(root, "[Artist] Doomed"), 1))
	report, err := s.Ingest(ctx, c, root)
	require.NoError(t, err)
	require.Len(t, report.Added, 1)
	doomed := report.Added[0]

	a := &app{log: log, notifier: notify.New(8, log), temp: temp, catalog: c, scanner: s}
	w := watcher.New([]string{root}, s, c, temp, log)
	c.GuardFiles(w.OverridePath)

	watching := make(chan error, 1)
	applying := make(chan struct{})
	go func() { watching <- w.Run(ctx) }()
	go func() {
		defer close(applying)
		a.applyWatchEvents(ctx, w.Events())
	}()
	defer func() {
		cancel()
		require.NoError(t, <-watching)
		<-applying
	}()
	time.Sleep(100 * time.Millisecond)

	// 1. Trash through the catalog; the watcher stays quiet about it
	require.NoError(t, c.Delete(ctx, doomed.ID, catalog.DeleteTrash))
	time.Sleep(watcher.MoveWindow + 300*time.Millisecond)
	select {
	case notice := <-a.notifier.Notices():
		t.Fatalf("unexpected notice: %+v", notice)
	default:
	}
	assert.Zero(t, c.Count())

	// 2. A gallery moved in afterwards is still picked up
	require.NoError(t, writeFixturePages(filepath.Join(staging, "[Artist] Fresh"), 2))
	require.NoError(t, os.Rename(filepath.Join(staging, "[Artist] Fresh"), filepath.Join(root, "[Artist] Fresh")))
	assert.Eventually(t, func() bool { return c.Count() == 1 }, 5*time.Second, 50*time.Millisecond)
}
