// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// ListTable represents the 'list' table
type ListTable struct {
	Table   string
	ID      string
	Name    string
	Filter  string
	Profile string
	Type    string
	Enforce string
	Regex   string
	Case    string
	Strict  string
}

// List is the schema definition for list
var List = ListTable{
	Table:   "list",
	ID:      "list_id",
	Name:    "list_name",
	Filter:  "list_filter",
	Profile: "profile",
	Type:    "type",
	Enforce: "enforce",
	Regex:   "regex",
	Case:    "l_case",
	Strict:  "strict",
}

func (t ListTable) Columns() []string {
	return []string{t.ID, t.Name, t.Filter, t.Profile, t.Type, t.Enforce, t.Regex, t.Case, t.Strict}
}

// SeriesListMapTable represents the 'series_list_map' table
type SeriesListMapTable struct {
	Table    string
	ListID   string
	SeriesID string
}

// SeriesListMap is the schema definition for series_list_map
var SeriesListMap = SeriesListMapTable{
	Table:    "series_list_map",
	ListID:   "list_id",
	SeriesID: "series_id",
}

// VersionTable represents the 'version' table holding db_v
type VersionTable struct {
	Table   string
	Version string
}

// Version is the schema definition for version
var Version = VersionTable{
	Table:   "version",
	Version: "version",
}
