// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package download runs the gallery download queue.

Architecture:

  - Manager: One queue drained by N workers (default 4). Constructed once and passed around.
  - HenItem: A resolved [fetch.Listing] plus its live state, sizes and final file.
  - Placement: Single files stream into "name.part" in 1 KiB blocks and are renamed
    into place, trying "(N)name" on collisions. Image sets land in their own folder.
  - Delivery: Finished archives and image sets go to the [Ingester]; torrents are
    handed to the configured client.

Every path the manager writes is added to the shared [scanner.TempIgnore] first
so the library watcher does not ingest it a second time.
*/
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/taibuivan/happypanda/internal/fetch"
	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/ctxutil"
	"github.com/taibuivan/happypanda/internal/platform/notify"
	"github.com/taibuivan/happypanda/internal/scanner"
	"github.com/taibuivan/happypanda/internal/site"
	"github.com/taibuivan/happypanda/pkg/uuidv7"
)

// Ingester adds a finished download to the library with the metadata it was queued with.
type Ingester interface {
	Ingest(ctx context.Context, path string, record fetch.Record) error
}

// Launcher opens a finished torrent file, in client when one is configured.
type Launcher func(ctx context.Context, client, file string) error

// # Events

// EventKind tells subscribers what changed.
type EventKind int

const (
	EventItemAdded EventKind = iota + 1
	EventItemUpdated
	// EventFileReady fires once the file is in its final place.
	EventFileReady
	// EventItemFinished fires once per item, on success, failure or cancel.
	EventItemFinished
)

func (k EventKind) String() string {
	switch k {
	case EventItemAdded:
		return "item_added"
	case EventItemUpdated:
		return "item_updated"
	case EventFileReady:
		return "file_ready"
	case EventItemFinished:
		return "item_finished"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	Item Snapshot
}

// # Manager

// Options configures a [Manager].
type Options struct {
	// Dir receives finished downloads.
	Dir string
	// Workers defaults to [constants.DefaultDownloadWorkers].
	Workers   int
	QueueSize int
	Session   *site.Session
	Registry  *fetch.Registry
	Temp      *scanner.TempIgnore
	Ingester  Ingester
	// TorrentClient is an executable given the .torrent path. Empty opens it with the OS handler.
	TorrentClient string
	Launch        Launcher
	Notifier      *notify.Notifier
	// NoRecover lets worker panics crash the process.
	NoRecover bool
	Logger    *slog.Logger
}

// Manager owns the download queue and its workers. Safe for concurrent use.
type Manager struct {
	options Options
	queue   chan *HenItem
	logger  *slog.Logger

	mu    sync.RWMutex
	items map[string]*HenItem
	order []string

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int

	wg sync.WaitGroup
}

// NewManager builds a manager. Call [Manager.Start] to begin draining the queue.
func NewManager(options Options) *Manager {
	if options.Workers < 1 {
		options.Workers = constants.DefaultDownloadWorkers
	}
	if options.QueueSize < 1 {
		options.QueueSize = 256
	}
	if options.Temp == nil {
		options.Temp = scanner.NewTempIgnore()
	}
	if options.Launch == nil {
		options.Launch = OpenTorrent
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Manager{
		options: options,
		queue:   make(chan *HenItem, options.QueueSize),
		logger:  options.Logger.With(slog.String("component", "download")),
		items:   make(map[string]*HenItem),
		subs:    make(map[int]chan Event),
	}
}

// Start launches the workers. They stop when ctx ends; see [Manager.Wait].
func (m *Manager) Start(ctx context.Context) {
	for i := 0; i < m.options.Workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case item := <-m.queue:
					m.run(ctx, item)
				}
			}
		}()
	}
	m.logger.Info("download_workers_started", slog.Int("workers", m.options.Workers), slog.String("dir", m.options.Dir))
}

// Wait blocks until every worker has returned.
func (m *Manager) Wait() { m.wg.Wait() }

// Add resolves rawURL with the fetcher that owns it and queues the result.
func (m *Manager) Add(ctx context.Context, rawURL string) (*HenItem, error) {
	return m.AddIn(ctx, rawURL, "")
}

// AddIn is [Manager.Add] with a target base directory, see [Manager.EnqueueIn].
func (m *Manager) AddIn(ctx context.Context, rawURL, dir string) (*HenItem, error) {
	if m.options.Registry == nil {
		return nil, errors.New("download: no fetchers configured")
	}
	f, err := m.options.Registry.For(rawURL)
	if err != nil {
		return nil, err
	}
	listing, err := f.FromGalleryURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return m.EnqueueIn(ctx, *listing, dir)
}

// Enqueue queues an already resolved listing for the download directory.
func (m *Manager) Enqueue(ctx context.Context, listing fetch.Listing) (*HenItem, error) {
	return m.EnqueueIn(ctx, listing, "")
}

// EnqueueIn queues listing with dir as its target base. An empty dir means [Options.Dir].
func (m *Manager) EnqueueIn(ctx context.Context, listing fetch.Listing, dir string) (*HenItem, error) {
	item := newItem(uuidv7.New(), listing)
	item.Dir = dir

	m.mu.Lock()
	m.items[item.ID] = item
	m.order = append(m.order, item.ID)
	m.mu.Unlock()

	select {
	case m.queue <- item:
	case <-ctx.Done():
		item.Cancel()
		item.finish(StateCancelled, "", ctx.Err())
		return nil, ctx.Err()
	}

	m.logger.Info("download_queued",
		slog.String("id", item.ID),
		slog.String("url", listing.GalleryURL),
		slog.String("type", listing.Type.String()),
		slog.String("dir", m.baseDir(item)),
	)
	m.publish(EventItemAdded, item)
	return item, nil
}

// Item returns a queued or finished item.
func (m *Manager) Item(id string) (*HenItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	return item, ok
}

// Items lists every item in queue order.
func (m *Manager) Items() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshots := make([]Snapshot, 0, len(m.order))
	for _, id := range m.order {
		snapshots = append(snapshots, m.items[id].Snapshot())
	}
	return snapshots
}

// Cancel stops an item. Queued items are dropped when a worker reaches them.
func (m *Manager) Cancel(id string) bool {
	item, ok := m.Item(id)
	if !ok {
		return false
	}
	switch item.State() {
	case StateFinished, StateCancelled:
		return false
	}
	item.Cancel()
	m.logger.Info("download_cancel_requested", slog.String("id", id))
	return true
}

// Subscribe streams events until the returned func is called. Slow subscribers miss events.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Event, 64)
	m.subs[id] = ch

	return ch, func() {
		m.subsMu.Lock()
		defer m.subsMu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}

func (m *Manager) publish(kind EventKind, item *HenItem) {
	event := Event{Kind: kind, Item: item.Snapshot()}

	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- event:
		default:
			m.logger.Debug("download_event_dropped", slog.String("id", item.ID), slog.String("event", kind.String()))
		}
	}
}

// # Worker

func (m *Manager) run(parent context.Context, item *HenItem) {
	if !m.options.NoRecover {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("download_worker_panic",
					slog.String("id", item.ID),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				item.finish(StateCancelled, "", fmt.Errorf("download: panic: %v", r))
				m.publish(EventItemFinished, item)
			}
		}()
	}

	if item.Cancelled() {
		item.finish(StateCancelled, "", nil)
		m.publish(EventItemFinished, item)
		return
	}

	ctx, cancel := context.WithCancel(ctxutil.WithJobID(item.ctx, item.ID))
	defer cancel()
	stop := context.AfterFunc(parent, cancel)
	defer stop()

	item.setState(StateDownloading)
	m.publish(EventItemUpdated, item)

	var (
		file string
		err  error
	)
	if item.Listing.ImageSet() {
		file, err = m.fetchImageSet(ctx, item)
	} else {
		file, err = m.fetchFile(ctx, item)
	}

	if ctx.Err() != nil {
		item.finish(StateCancelled, file, nil)
		m.logger.Info("download_cancelled", slog.String("id", item.ID), slog.String("partial", file))
		m.publish(EventItemFinished, item)
		return
	}
	if err != nil {
		item.finish(StateCancelled, file, err)
		m.logger.Warn("download_failed", slog.String("id", item.ID), slog.String("url", item.Listing.GalleryURL), slog.Any("error", err))
		if m.options.Notifier != nil {
			m.options.Notifier.Error("download", fmt.Sprintf("%s: %v", item.Listing.Name, err))
		}
		m.publish(EventItemFinished, item)
		return
	}

	item.finish(StateFinished, file, nil)
	m.publish(EventFileReady, item)

	snapshot := item.Snapshot()
	m.logger.Info("download_finished",
		slog.String("id", item.ID),
		slog.String("file", file),
		slog.String("size", humanize.Bytes(uint64(snapshot.CurrentSize))),
	)

	if err := m.deliver(ctx, item, file); err != nil {
		m.logger.Warn("download_delivery_failed", slog.String("id", item.ID), slog.String("file", file), slog.Any("error", err))
	}
	m.publish(EventItemFinished, item)
}

func (m *Manager) deliver(ctx context.Context, item *HenItem, file string) error {
	if item.Listing.Type == fetch.DownloadTorrent {
		return m.options.Launch(ctx, m.options.TorrentClient, file)
	}
	if m.options.Ingester == nil {
		return nil
	}
	return m.options.Ingester.Ingest(ctx, file, item.Listing.Metadata)
}

// # Transfer

func (m *Manager) baseDir(item *HenItem) string {
	if item.Dir != "" {
		return item.Dir
	}
	return m.options.Dir
}

/*
fetchFile streams the single download URL into the item's base directory.

The body is written to "name.part" and renamed to the first free name. When no
name is free after [constants.MaxRenameAttempts] the .part file is kept and
returned. A cancelled or failed transfer removes the .part file.
*/
func (m *Manager) fetchFile(ctx context.Context, item *HenItem) (string, error) {
	if len(item.Listing.URLs) == 0 {
		return "", errors.New("download: listing has no download url")
	}
	base := m.baseDir(item)
	target := filepath.Join(base, SanitizeName(item.Listing.Name))
	part := target + constants.PartSuffix

	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("download: create dir: %w", err)
	}
	m.options.Temp.Add(part)

	file, err := os.Create(part)
	if err != nil {
		return "", fmt.Errorf("download: create %s: %w", part, err)
	}
	_, err = m.stream(ctx, item, item.Listing.URLs[0], file, func(length int64) { item.setTotal(length) })
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(part)
		return "", err
	}

	final, ok := freeName(target)
	if !ok {
		m.logger.Warn("download_rename_exhausted", slog.String("file", part), slog.Int("attempts", constants.MaxRenameAttempts))
		return part, nil
	}
	m.options.Temp.Add(final)
	if err := os.Rename(part, final); err != nil {
		return part, fmt.Errorf("download: place %s: %w", final, err)
	}
	return final, nil
}

/*
fetchImageSet downloads every page into a fresh folder named after the listing.

The total size is predicted from the Content-Length of the pages seen so far.
A cancel keeps the pages already written.
*/
func (m *Manager) fetchImageSet(ctx context.Context, item *HenItem) (string, error) {
	dir, ok := freeName(filepath.Join(m.baseDir(item), SanitizeName(item.Listing.Name)))
	if !ok {
		return "", fmt.Errorf("download: no free folder name for %q", item.Listing.Name)
	}
	m.options.Temp.Add(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("download: create %s: %w", dir, err)
	}

	urls := item.Listing.URLs
	used := make(map[string]bool, len(urls))
	var (
		written int64
		known   int64
		sized   int64
	)
	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return dir, err
		}
		page := filepath.Join(dir, pageName(i, u, used))
		file, err := os.Create(page)
		if err != nil {
			return dir, fmt.Errorf("download: create %s: %w", page, err)
		}
		n, err := m.stream(ctx, item, u, file, func(length int64) {
			known += length
			sized++
			item.setTotal(predictTotal(known, sized, len(urls)))
		})
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(page)
			return dir, err
		}
		written += n
	}
	item.setTotal(written)
	return dir, nil
}

// predictTotal scales the summed Content-Length of sized pages to the whole set.
func predictTotal(known, sized int64, pages int) int64 {
	if sized == 0 {
		return 0
	}
	return known * int64(pages) / sized
}

/*
stream copies rawURL into w in [constants.DownloadBlockSize] blocks.

sized is called with the response Content-Length before the copy when the
server sends one.
*/
func (m *Manager) stream(ctx context.Context, item *HenItem, rawURL string, w io.Writer, sized func(int64)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("download: build request: %w", err)
	}
	resp, err := m.options.Session.Stream(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return 0, fmt.Errorf("download: %s returned %s", rawURL, resp.Status)
	}
	if resp.ContentLength > 0 {
		sized(resp.ContentLength)
	}

	var total int64
	buf := make([]byte, constants.DownloadBlockSize)
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return total, err
			}
			total += int64(n)
			item.advance(int64(n))
		}
		if errors.Is(readErr, io.EOF) {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}

// # Torrents

// OpenTorrent starts client with file, or the OS handler for the file when client is empty.
func OpenTorrent(_ context.Context, client, file string) error {
	var cmd *exec.Cmd
	switch {
	case client != "":
		cmd = exec.Command(client, file)
	case runtime.GOOS == "windows":
		cmd = exec.Command("cmd", "/c", "start", "", file)
	case runtime.GOOS == "darwin":
		cmd = exec.Command("open", file)
	default:
		cmd = exec.Command("xdg-open", file)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("download: launch torrent: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
