// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
)

// location is where one gallery lives: a folder or archive, plus the folder
// inside the archive for galleries split out of one.
type location struct {
	path      string
	inArchive string
}

// pathIndex is a sorted list of normalized gallery locations.
//
// It is read by the scanner and watcher outside the command queue, so it
// carries its own lock. Keys are "path\x00inArchive", which keeps every
// gallery of one archive next to each other.
type pathIndex struct {
	mu   sync.RWMutex
	keys []string
}

// normcase folds a path the way the host filesystem compares names.
func normcase(path string) string {
	path = filepath.Clean(path)
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		path = strings.ToLower(path)
	}
	return path
}

func indexKey(path, inArchive string) string {
	return normcase(path) + "\x00" + inArchive
}

func newPathIndex(locations []location) *pathIndex {
	index := &pathIndex{keys: make([]string, 0, len(locations))}
	for _, at := range locations {
		index.keys = append(index.keys, indexKey(at.path, at.inArchive))
	}
	slices.Sort(index.keys)
	index.keys = slices.Compact(index.keys)
	return index
}

// Contains reports whether any gallery lives at path.
func (index *pathIndex) Contains(path string) bool {
	prefix := normcase(path) + "\x00"
	index.mu.RLock()
	defer index.mu.RUnlock()
	at, _ := slices.BinarySearch(index.keys, prefix)
	return at < len(index.keys) && strings.HasPrefix(index.keys[at], prefix)
}

// ContainsIn reports whether the gallery at exactly path and inArchive is known.
func (index *pathIndex) ContainsIn(path, inArchive string) bool {
	index.mu.RLock()
	defer index.mu.RUnlock()
	_, found := slices.BinarySearch(index.keys, indexKey(path, inArchive))
	return found
}

func (index *pathIndex) Insert(path, inArchive string) {
	key := indexKey(path, inArchive)
	index.mu.Lock()
	defer index.mu.Unlock()
	if at, found := slices.BinarySearch(index.keys, key); !found {
		index.keys = slices.Insert(index.keys, at, key)
	}
}

func (index *pathIndex) Remove(path, inArchive string) {
	key := indexKey(path, inArchive)
	index.mu.Lock()
	defer index.mu.Unlock()
	if at, found := slices.BinarySearch(index.keys, key); found {
		index.keys = slices.Delete(index.keys, at, at+1)
	}
}

func (index *pathIndex) Len() int {
	index.mu.RLock()
	defer index.mu.RUnlock()
	return len(index.keys)
}
