// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package pagination parses the list window of gallery listings.
//
// # Overview
//
// A window is a 1-indexed page, a page size and an ordering. Orderings follow
// the library sort menu: title, artist, date added, publication date, last
// read and read count. Unknown values fall back to the defaults instead of
// failing the request.
package pagination

import (
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the number of galleries per page if not specified.
	DefaultLimit = 50
	// MaxLimit bounds a single page; the catalog hydrates every row it returns.
	MaxLimit = 500
	// DefaultPage is the starting page (1-indexed).
	DefaultPage = 1
)

// Sort names a gallery ordering.
type Sort string

const (
	SortID        Sort = "id"
	SortTitle     Sort = "title"
	SortArtist    Sort = "artist"
	SortDateAdded Sort = "date_added"
	SortPubDate   Sort = "pub_date"
	SortLastRead  Sort = "last_read"
	SortTimesRead Sort = "times_read"
)

var knownSorts = map[Sort]bool{
	SortID: true, SortTitle: true, SortArtist: true, SortDateAdded: true,
	SortPubDate: true, SortLastRead: true, SortTimesRead: true,
}

// Valid reports whether s is one of the known orderings.
func (s Sort) Valid() bool { return knownSorts[s] }

// Params is one parsed list window.
type Params struct {
	Page       int
	Limit      int
	Sort       Sort
	Descending bool
}

// Offset returns the number of galleries before the window.
func (p Params) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Meta is the window metadata included in list responses.
type Meta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	Sort       Sort `json:"sort"`
	Descending bool `json:"descending"`
}

// NewMeta describes the window p over total galleries.
func NewMeta(p Params, total int) Meta {
	totalPages := 0
	if p.Limit > 0 {
		totalPages = (total + p.Limit - 1) / p.Limit
	}

	return Meta{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		Sort:       p.Sort,
		Descending: p.Descending,
	}
}

// FromRequest parses "page", "limit", "sort" and "order" query parameters.
//
// # Clamping
//
// Invalid values fall back to [DefaultPage] and [DefaultLimit]. A limit above
// [MaxLimit] is cut to it. An unknown sort becomes [SortID]; "order=desc" is
// the only way to reverse it.
func FromRequest(r *http.Request) Params {
	query := r.URL.Query()

	page := parseIntParam(query.Get("page"), DefaultPage)
	if page < 1 {
		page = DefaultPage
	}

	limit := parseIntParam(query.Get("limit"), DefaultLimit)
	switch {
	case limit < 1:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}

	sort := Sort(strings.ToLower(strings.TrimSpace(query.Get("sort"))))
	if !sort.Valid() {
		sort = SortID
	}

	return Params{
		Page:       page,
		Limit:      limit,
		Sort:       sort,
		Descending: strings.EqualFold(query.Get("order"), "desc"),
	}
}

func parseIntParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
