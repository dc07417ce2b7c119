// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/database/schema"
	"github.com/taibuivan/happypanda/internal/platform/dberr"
)

// # Gallery Lists

func insertList(ctx context.Context, tx dbtx, list *gallery.List) error {
	columns := schema.List.Columns()[1:]
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		schema.List.Table, strings.Join(columns, ", "), placeholders(len(columns)))

	result, err := tx.ExecContext(ctx, query,
		list.Name, list.Filter, list.Profile, int(list.Type), list.Enforce, list.Regex, list.Case, list.Strict)
	if err != nil {
		return dberr.Wrap(err, "insert list")
	}
	if list.ID, err = result.LastInsertId(); err != nil {
		return dberr.Wrap(err, "read list id")
	}
	return nil
}

func updateList(ctx context.Context, tx dbtx, list *gallery.List) error {
	query := fmt.Sprintf("UPDATE %s SET %s = ?, %s = ?, %s = ?, %s = ?, %s = ?, %s = ?, %s = ?, %s = ? WHERE %s = ?",
		schema.List.Table, schema.List.Name, schema.List.Filter, schema.List.Profile, schema.List.Type,
		schema.List.Enforce, schema.List.Regex, schema.List.Case, schema.List.Strict, schema.List.ID)

	result, err := tx.ExecContext(ctx, query,
		list.Name, list.Filter, list.Profile, int(list.Type), list.Enforce, list.Regex, list.Case, list.Strict, list.ID)
	if err != nil {
		return dberr.Wrap(err, "update list")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

func deleteList(ctx context.Context, tx dbtx, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", schema.List.Table, schema.List.ID)
	_, err := tx.ExecContext(ctx, query, id)
	return dberr.Wrap(err, "delete list")
}

func selectLists(ctx context.Context, db dbtx) ([]*gallery.List, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		strings.Join(schema.List.Columns(), ", "), schema.List.Table, schema.List.ID)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, dberr.Wrap(err, "select lists")
	}
	defer rows.Close()

	var (
		lists []*gallery.List
		byID  = make(map[int64]*gallery.List)
	)
	for rows.Next() {
		var (
			list     gallery.List
			listType int
		)
		if err := rows.Scan(&list.ID, &list.Name, &list.Filter, &list.Profile, &listType,
			&list.Enforce, &list.Regex, &list.Case, &list.Strict); err != nil {
			return nil, dberr.Wrap(err, "scan list")
		}
		list.Type = gallery.ListType(listType)
		lists = append(lists, &list)
		byID[list.ID] = &list
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "iterate lists")
	}
	rows.Close()

	members := fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY rowid",
		schema.SeriesListMap.ListID, schema.SeriesListMap.SeriesID, schema.SeriesListMap.Table)
	memberRows, err := db.QueryContext(ctx, members)
	if err != nil {
		return nil, dberr.Wrap(err, "select list members")
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var listID, galleryID int64
		if err := memberRows.Scan(&listID, &galleryID); err != nil {
			return nil, dberr.Wrap(err, "scan list member")
		}
		if list, ok := byID[listID]; ok {
			list.Galleries = append(list.Galleries, galleryID)
		}
	}
	return lists, dberr.Wrap(memberRows.Err(), "iterate list members")
}

func insertListMember(ctx context.Context, tx dbtx, listID, galleryID int64) error {
	query := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s, %s) VALUES (?, ?)",
		schema.SeriesListMap.Table, schema.SeriesListMap.ListID, schema.SeriesListMap.SeriesID)
	_, err := tx.ExecContext(ctx, query, listID, galleryID)
	return dberr.Wrap(err, "add list member")
}

func deleteListMember(ctx context.Context, tx dbtx, listID, galleryID int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND %s = ?",
		schema.SeriesListMap.Table, schema.SeriesListMap.ListID, schema.SeriesListMap.SeriesID)
	_, err := tx.ExecContext(ctx, query, listID, galleryID)
	return dberr.Wrap(err, "remove list member")
}
