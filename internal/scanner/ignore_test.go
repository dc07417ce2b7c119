// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scanner_test

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/happypanda/internal/scanner"
)

func TestIgnoreRules_Matches(t *testing.T) {
	root := t.TempDir()
	rules := scanner.IgnoreRules{
		Paths:      []string{"_unsorted", filepath.Join(root, "private")},
		Extensions: []string{"rar", ".7Z"},
	}

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "a.rar"), true},
		{filepath.Join(root, "a.7z"), true},
		{filepath.Join(root, "a.zip"), false},
		{filepath.Join(root, "_unsorted", "x"), true},
		{filepath.Join(root, "private"), true},
		{filepath.Join(root, "private", "deep", "g.zip"), true},
		{filepath.Join(root, "private-not"), false},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.path), func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Matches(tt.path))
		})
	}
}

/*
TestTempIgnore verifies entries are consumed exactly once under concurrency.
*/
func TestTempIgnore(t *testing.T) {
	ignore := scanner.NewTempIgnore()
	ignore.Add("/downloads/a.zip")
	assert.True(t, ignore.Contains("/downloads/./a.zip"))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		consumed int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ignore.Consume("/downloads/a.zip") {
				mu.Lock()
				consumed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, consumed)
	assert.Zero(t, ignore.Len())
}
