// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// NamespacesTable represents the 'namespaces' table
type NamespacesTable struct {
	Table string
	ID    string
	Name  string
}

// Namespaces is the schema definition for namespaces
var Namespaces = NamespacesTable{
	Table: "namespaces",
	ID:    "namespace_id",
	Name:  "namespace",
}

// TagsTable represents the 'tags' table
type TagsTable struct {
	Table string
	ID    string
	Name  string
}

// Tags is the schema definition for tags
var Tags = TagsTable{
	Table: "tags",
	ID:    "tag_id",
	Name:  "tag",
}

// TagsMappingsTable represents the 'tags_mappings' table (namespace x tag)
type TagsMappingsTable struct {
	Table       string
	ID          string
	NamespaceID string
	TagID       string
}

// TagsMappings is the schema definition for tags_mappings
var TagsMappings = TagsMappingsTable{
	Table:       "tags_mappings",
	ID:          "tags_mappings_id",
	NamespaceID: "namespace_id",
	TagID:       "tag_id",
}

// SeriesTagsMapTable represents the 'series_tags_map' table (gallery x mapping)
type SeriesTagsMapTable struct {
	Table     string
	SeriesID  string
	MappingID string
}

// SeriesTagsMap is the schema definition for series_tags_map
var SeriesTagsMap = SeriesTagsMapTable{
	Table:     "series_tags_map",
	SeriesID:  "series_id",
	MappingID: "tags_mappings_id",
}
