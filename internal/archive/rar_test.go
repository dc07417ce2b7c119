// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

/*
TestParseTechnicalListing reads member names and directory flags from "unrar vt" output.
*/
func TestParseTechnicalListing(t *testing.T) {
	listing := []byte(`
UNRAR 6.24 freeware      Copyright (c) 1993-2023 Alexander Roshal

Archive: /library/gallery.cbr
Details: RAR 5

        Name: chapter 1
        Type: Directory
    Modified: 2016-08-20 11:20:31,000000000 +0200
  Attributes: drwxr-xr-x

        Name: chapter 1/001.jpg
        Type: File
        Size: 284613
 Packed size: 284613

        Name: chapter 1\002.jpg
        Type: File
`)

	members := parseTechnicalListing(listing)

	assert.Equal(t, map[string]bool{
		"chapter 1":         true,
		"chapter 1/001.jpg": false,
		"chapter 1/002.jpg": false,
	}, members)

	idx := newIndex(members)
	assert.Equal(t, []string{"chapter 1/"}, idx.DirList(true))
	children, err := idx.DirContents("chapter 1")
	assert.NoError(t, err)
	assert.Equal(t, []string{"chapter 1/001.jpg", "chapter 1/002.jpg"}, children)
}
