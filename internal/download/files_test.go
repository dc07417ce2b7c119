// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageName(t *testing.T) {
	used := make(map[string]bool)

	// 1. Names come from the URL path
	assert.Equal(t, "cover.jpg", pageName(0, "https://i.example.org/g/1/cover.jpg", used))
	assert.Equal(t, "a b.png", pageName(1, "https://i.example.org/g/1/a%20b.png?x=1", used))

	// 2. A repeat, case-insensitive, takes the indexed name
	assert.Equal(t, "003.jpg", pageName(2, "https://i.example.org/g/2/COVER.JPG", used))
	assert.Equal(t, "(0)004.webp", pageName(3, "https://i.example.org/g/2/cover.webp?dup", map[string]bool{"cover.webp": true, "004.webp": true}))

	// 3. No base name at all
	assert.Equal(t, "005.jpg", pageName(4, "https://i.example.org/", used))
	assert.Equal(t, "006.jpg", pageName(5, "https://i.example.org/%3F%3F", used))
}

/*
TestPredictTotal scales the known Content-Length sum to every page of the set.
*/
func TestPredictTotal(t *testing.T) {
	tests := []struct {
		name  string
		known int64
		sized int64
		pages int
		want  int64
	}{
		{"No header yet", 0, 0, 10, 0},
		{"One page known", 100, 1, 10, 1000},
		{"Average of three", 300, 3, 4, 400},
		{"Everything known", 1000, 10, 10, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, predictTotal(tt.known, tt.sized, tt.pages))
		})
	}
}
