// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the catalog tables and columns used by hand-written SQL.
package schema

// SeriesTable represents the 'series' table (one row per gallery).
type SeriesTable struct {
	Table         string
	ID            string
	Title         string
	Artist        string
	Info          string
	Type          string
	Language      string
	Status        string
	Rating        string
	Fav           string
	PubDate       string
	DateAdded     string
	LastRead      string
	TimesRead     string
	Link          string
	Exed          string
	Path          string
	IsArchive     string
	PathInArchive string
	View          string
	DBVersion     string
	Profile       string
}

// Series is the schema definition for series
var Series = SeriesTable{
	Table:         "series",
	ID:            "series_id",
	Title:         "title",
	Artist:        "artist",
	Info:          "info",
	Type:          "type",
	Language:      "language",
	Status:        "status",
	Rating:        "rating",
	Fav:           "fav",
	PubDate:       "pub_date",
	DateAdded:     "date_added",
	LastRead:      "last_read",
	TimesRead:     "times_read",
	Link:          "link",
	Exed:          "exed",
	Path:          "series_path",
	IsArchive:     "is_archive",
	PathInArchive: "path_in_archive",
	View:          "view",
	DBVersion:     "db_v",
	Profile:       "profile",
}

// Columns lists every column in scan order.
func (t SeriesTable) Columns() []string {
	return []string{
		t.ID, t.Title, t.Artist, t.Info, t.Type, t.Language, t.Status, t.Rating, t.Fav,
		t.PubDate, t.DateAdded, t.LastRead, t.TimesRead, t.Link, t.Exed,
		t.Path, t.IsArchive, t.PathInArchive, t.View, t.DBVersion, t.Profile,
	}
}

// InsertColumns lists every column except the generated id.
func (t SeriesTable) InsertColumns() []string {
	return t.Columns()[1:]
}
