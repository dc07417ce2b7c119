// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/platform/ctxutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

/*
TestQueue_PriorityOrder verifies lower priorities run first and ties stay FIFO.
*/
func TestQueue_PriorityOrder(t *testing.T) {
	queue := newQueue(nil, discardLogger())
	defer queue.Close()

	// 1. Park the worker so the next commands pile up
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, Post(context.Background(), queue, "block", func(context.Context, *sql.DB) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	// 2. Enqueue out of order
	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	enqueue := func(name string, priority int) {
		wg.Add(1)
		ctx := ctxutil.WithPriority(context.Background(), priority)
		require.NoError(t, Post(ctx, queue, name, func(context.Context, *sql.DB) error {
			defer wg.Done()
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}))
	}
	enqueue("default-a", 999)
	enqueue("urgent", 0)
	enqueue("default-b", 999)
	enqueue("high", 5)
	assert.Equal(t, 4, queue.Pending())

	// 3. Release and check
	close(release)
	wg.Wait()
	assert.Equal(t, []string{"urgent", "high", "default-a", "default-b"}, order)
}

/*
TestSubmit_ReturnsValue covers the blocking round trip and error propagation.
*/
func TestSubmit_ReturnsValue(t *testing.T) {
	queue := newQueue(nil, discardLogger())
	defer queue.Close()

	value, err := Submit(context.Background(), queue, "answer", func(context.Context, *sql.DB) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	_, err = Submit(context.Background(), queue, "panics", func(context.Context, *sql.DB) (int, error) {
		panic("boom")
	})
	assert.ErrorContains(t, err, "panicked")

	// The worker survives the panic
	value, err = Submit(context.Background(), queue, "after", func(context.Context, *sql.DB) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, value)
}

/*
TestSubmit_Cancelled returns the context error without waiting for the worker.
*/
func TestSubmit_Cancelled(t *testing.T) {
	queue := newQueue(nil, discardLogger())
	defer queue.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, Post(context.Background(), queue, "block", func(context.Context, *sql.DB) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	_, err := Submit(ctx, queue, "late", func(context.Context, *sql.DB) (bool, error) {
		ran = true
		return true, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.NoError(t, Exec(context.Background(), queue, "sync", func(context.Context, *sql.DB) error { return nil }))
	assert.False(t, ran)
}

/*
TestQueue_Close drains pending work and rejects new commands.
*/
func TestQueue_Close(t *testing.T) {
	queue := newQueue(nil, discardLogger())

	done := make(chan struct{})
	require.NoError(t, Post(context.Background(), queue, "last", func(context.Context, *sql.DB) error {
		close(done)
		return nil
	}))
	queue.Close()

	select {
	case <-done:
	default:
		t.Fatal("queued command was not drained")
	}

	err := Exec(context.Background(), queue, "rejected", func(context.Context, *sql.DB) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

/*
TestPathIndex verifies normalized binary-search membership.
*/
func TestPathIndex(t *testing.T) {
	index := newPathIndex([]location{{path: "/library/b"}, {path: "/library/a/"}, {path: "/library/a"}})
	assert.Equal(t, 2, index.Len())
	assert.True(t, index.Contains("/library/a"))
	assert.True(t, index.Contains("/library/./b"))
	assert.False(t, index.Contains("/library/c"))

	index.Insert("/library/c", "")
	assert.True(t, index.Contains("/library/c"))

	index.Remove("/library/a", "")
	assert.False(t, index.Contains("/library/a"))
	assert.Equal(t, 2, index.Len())
}

/*
TestPathIndex_InArchive keeps galleries split out of one archive apart.
*/
func TestPathIndex_InArchive(t *testing.T) {
	index := newPathIndex([]location{
		{path: "/library/set.zip", inArchive: "a"},
		{path: "/library/set.zip", inArchive: "b"},
		{path: "/library/set"},
	})
	assert.Equal(t, 3, index.Len())

	// 1. Any gallery of the archive counts for the path
	assert.True(t, index.Contains("/library/set.zip"))
	assert.True(t, index.ContainsIn("/library/set.zip", "a"))
	assert.False(t, index.ContainsIn("/library/set.zip", ""))
	assert.False(t, index.ContainsIn("/library/set.zip", "c"))
	assert.False(t, index.Contains("/library/set.z"))

	// 2. The archive stays known until its last gallery goes
	index.Remove("/library/set.zip", "a")
	assert.True(t, index.Contains("/library/set.zip"))
	index.Remove("/library/set.zip", "b")
	assert.False(t, index.Contains("/library/set.zip"))
	assert.True(t, index.Contains("/library/set"))
}
