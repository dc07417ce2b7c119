// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// HashesTable represents the 'hashes' table
type HashesTable struct {
	Table     string
	ID        string
	Hash      string
	SeriesID  string
	ChapterID string
	Page      string
}

// Hashes is the schema definition for hashes
var Hashes = HashesTable{
	Table:     "hashes",
	ID:        "hash_id",
	Hash:      "hash",
	SeriesID:  "series_id",
	ChapterID: "chapter_id",
	Page:      "page",
}
