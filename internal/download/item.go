// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package download

import (
	"context"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/taibuivan/happypanda/internal/fetch"
)

// State is the lifecycle of a [HenItem].
type State int

const (
	StateInQueue State = iota + 1
	StateDownloading
	StateFinished
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateInQueue:
		return "in_queue"
	case StateDownloading:
		return "downloading"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Progress is one transfer update for an item.
type Progress struct {
	Current int64
	Total   int64
}

/*
HenItem is one queued download.

The listing is fixed once queued. State, sizes and the final file change while
a worker runs it and are read through [HenItem.Snapshot].
*/
type HenItem struct {
	ID      string
	Listing fetch.Listing
	// Dir overrides the manager download directory for this item when set.
	Dir string

	mu          sync.RWMutex
	state       State
	currentSize int64
	totalSize   int64
	file        string
	err         error

	ctx      context.Context
	cancel   context.CancelFunc
	progress chan Progress
}

func newItem(id string, listing fetch.Listing) *HenItem {
	ctx, cancel := context.WithCancel(context.Background())
	return &HenItem{
		ID:       id,
		Listing:  listing,
		state:    StateInQueue,
		ctx:      ctx,
		cancel:   cancel,
		progress: make(chan Progress, 1),
	}
}

// Progress delivers the latest transfer update; stale updates are dropped.
func (item *HenItem) Progress() <-chan Progress { return item.progress }

// Cancel stops the item at the next block boundary.
func (item *HenItem) Cancel() { item.cancel() }

// Cancelled reports whether Cancel was called.
func (item *HenItem) Cancelled() bool { return item.ctx.Err() != nil }

func (item *HenItem) State() State {
	item.mu.RLock()
	defer item.mu.RUnlock()
	return item.state
}

// File is the placed archive, torrent or image folder once finished.
func (item *HenItem) File() string {
	item.mu.RLock()
	defer item.mu.RUnlock()
	return item.file
}

func (item *HenItem) setState(state State) {
	item.mu.Lock()
	item.state = state
	item.mu.Unlock()
}

func (item *HenItem) finish(state State, file string, err error) {
	item.mu.Lock()
	item.state = state
	item.file = file
	item.err = err
	item.mu.Unlock()
}

func (item *HenItem) setTotal(total int64) {
	item.mu.Lock()
	item.totalSize = total
	item.mu.Unlock()
}

// advance adds n transferred bytes and publishes the new position.
func (item *HenItem) advance(n int64) {
	item.mu.Lock()
	item.currentSize += n
	update := Progress{Current: item.currentSize, Total: item.totalSize}
	item.mu.Unlock()

	select {
	case item.progress <- update:
	default:
		select {
		case <-item.progress:
		default:
		}
		select {
		case item.progress <- update:
		default:
		}
	}
}

// Snapshot is a read-only view of a [HenItem].
type Snapshot struct {
	ID          string `json:"id"`
	GalleryURL  string `json:"gallery_url"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	ThumbURL    string `json:"thumb_url,omitempty"`
	Size        string `json:"size,omitempty"`
	Cost        string `json:"cost,omitempty"`
	State       string `json:"state"`
	CurrentSize int64  `json:"current_size"`
	TotalSize   int64  `json:"total_size"`
	Progress    string `json:"progress"`
	File        string `json:"file,omitempty"`
	Error       string `json:"error,omitempty"`
}

func (item *HenItem) Snapshot() Snapshot {
	item.mu.RLock()
	defer item.mu.RUnlock()

	snapshot := Snapshot{
		ID:          item.ID,
		GalleryURL:  item.Listing.GalleryURL,
		Name:        item.Listing.Name,
		Type:        item.Listing.Type.String(),
		ThumbURL:    item.Listing.ThumbURL,
		Size:        item.Listing.Size,
		Cost:        item.Listing.Cost,
		State:       item.state.String(),
		CurrentSize: item.currentSize,
		TotalSize:   item.totalSize,
		Progress:    humanize.Bytes(uint64(item.currentSize)),
		File:        item.file,
	}
	if item.totalSize > 0 {
		snapshot.Progress += " / " + humanize.Bytes(uint64(item.totalSize))
	}
	if item.err != nil {
		snapshot.Error = item.err.Error()
	}
	return snapshot
}
