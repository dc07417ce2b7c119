// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// ChaptersTable represents the 'chapters' table
type ChaptersTable struct {
	Table     string
	ID        string
	SeriesID  string
	Title     string
	Number    string
	Path      string
	Pages     string
	InArchive string
}

// Chapters is the schema definition for chapters
var Chapters = ChaptersTable{
	Table:     "chapters",
	ID:        "chapter_id",
	SeriesID:  "series_id",
	Title:     "chapter_title",
	Number:    "chapter_number",
	Path:      "chapter_path",
	Pages:     "pages",
	InArchive: "in_archive",
}

func (t ChaptersTable) Columns() []string {
	return []string{t.ID, t.SeriesID, t.Title, t.Number, t.Path, t.Pages, t.InArchive}
}
