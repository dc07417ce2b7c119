// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scanner

import (
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// # Ignore Rules

// IgnoreRules is the user's ignore list.
//
// Extensions match file suffixes. Paths match either a full path (and
// everything below it) or, when relative, any path segment with that name.
type IgnoreRules struct {
	Paths      []string
	Extensions []string
}

// Matches reports whether path is excluded from scanning.
func (rules IgnoreRules) Matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, ignored := range rules.Extensions {
		ignored = strings.ToLower(strings.TrimSpace(ignored))
		if ignored == "" {
			continue
		}
		if !strings.HasPrefix(ignored, ".") {
			ignored = "." + ignored
		}
		if ext == ignored {
			return true
		}
	}

	target := normpath(path)
	for _, ignored := range rules.Paths {
		ignored = strings.TrimSpace(ignored)
		if ignored == "" {
			continue
		}
		if filepath.IsAbs(ignored) {
			root := normpath(ignored)
			if target == root || strings.HasPrefix(target, root+string(filepath.Separator)) {
				return true
			}
			continue
		}
		segment := normpath(ignored)
		for _, part := range strings.Split(target, string(filepath.Separator)) {
			if part == segment {
				return true
			}
		}
	}
	return false
}

// normpath cleans a path and folds case on case-insensitive filesystems.
func normpath(path string) string {
	path = filepath.Clean(path)
	if runtime.GOOS == "windows" || runtime.GOOS == "darwin" {
		path = strings.ToLower(path)
	}
	return path
}

// # Temporary Ignores

/*
TempIgnore holds paths the application is about to write itself.

The download pipeline adds a path before placing a file; the watcher consumes
the entry on the first event for that path so the file is not ingested twice.
Safe for concurrent use.
*/
type TempIgnore struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewTempIgnore returns an empty set.
func NewTempIgnore() *TempIgnore {
	return &TempIgnore{paths: make(map[string]struct{})}
}

// Add marks path as ignored until consumed.
func (ignore *TempIgnore) Add(path string) {
	ignore.mu.Lock()
	defer ignore.mu.Unlock()
	ignore.paths[normpath(path)] = struct{}{}
}

// Contains reports whether path is currently ignored.
func (ignore *TempIgnore) Contains(path string) bool {
	ignore.mu.Lock()
	defer ignore.mu.Unlock()
	_, ok := ignore.paths[normpath(path)]
	return ok
}

// Consume removes path and reports whether it was present.
func (ignore *TempIgnore) Consume(path string) bool {
	ignore.mu.Lock()
	defer ignore.mu.Unlock()
	key := normpath(path)
	if _, ok := ignore.paths[key]; !ok {
		return false
	}
	delete(ignore.paths, key)
	return true
}

// Len returns the number of pending entries.
func (ignore *TempIgnore) Len() int {
	ignore.mu.Lock()
	defer ignore.mu.Unlock()
	return len(ignore.paths)
}
