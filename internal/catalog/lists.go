// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/platform/dberr"
	"github.com/taibuivan/happypanda/internal/platform/validate"
)

// # Gallery Lists

func validateList(list *gallery.List) error {
	v := &validate.Validator{}
	v.Required("name", list.Name).
		MaxLen("name", list.Name, 200).
		Custom("filter", list.Enforce && list.Filter == "", "An enforced list needs a filter")
	return v.Err()
}

/*
CreateList persists a new list together with its initial members.

Initial members of an enforced list go through [gallery.List.Add]; galleries
that are missing or do not match the filter are left out.
*/
func (catalog *Catalog) CreateList(ctx context.Context, list *gallery.List) error {
	if err := validateList(list); err != nil {
		return err
	}
	if list.Enforce && len(list.Galleries) > 0 {
		if err := catalog.filterMembers(ctx, list); err != nil {
			return err
		}
	}
	return Exec(ctx, catalog.queue, "create_list", func(ctx context.Context, db *sql.DB) error {
		return withTx(ctx, db, func(tx *sql.Tx) error {
			if err := insertList(ctx, tx, list); err != nil {
				return err
			}
			for _, galleryID := range list.Galleries {
				if err := insertListMember(ctx, tx, list.ID, galleryID); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (catalog *Catalog) filterMembers(ctx context.Context, list *gallery.List) error {
	candidates := list.Galleries
	list.Galleries = nil
	for _, id := range candidates {
		g, err := catalog.Get(ctx, id)
		if errors.Is(err, dberr.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := list.Add(g); err != nil {
			catalog.logger.Debug("list_member_rejected", slog.String("list", list.Name), slog.Int64("gallery_id", id))
		}
	}
	return nil
}

// UpdateList saves a list's name, filter and flags. Membership is untouched.
func (catalog *Catalog) UpdateList(ctx context.Context, list *gallery.List) error {
	if err := validateList(list); err != nil {
		return err
	}
	return Exec(ctx, catalog.queue, "update_list", func(ctx context.Context, db *sql.DB) error {
		return updateList(ctx, db, list)
	})
}

// DeleteList removes a list; its galleries stay in the library.
func (catalog *Catalog) DeleteList(ctx context.Context, id int64) error {
	return Exec(ctx, catalog.queue, "delete_list", func(ctx context.Context, db *sql.DB) error {
		return deleteList(ctx, db, id)
	})
}

// Lists returns every list with its member ids.
func (catalog *Catalog) Lists(ctx context.Context) ([]*gallery.List, error) {
	return Submit(ctx, catalog.queue, "lists", func(ctx context.Context, db *sql.DB) ([]*gallery.List, error) {
		return selectLists(ctx, db)
	})
}

func (catalog *Catalog) list(ctx context.Context, id int64) (*gallery.List, error) {
	lists, err := catalog.Lists(ctx)
	if err != nil {
		return nil, err
	}
	for _, list := range lists {
		if list.ID == id {
			return list, nil
		}
	}
	return nil, apperr.NotFound("List")
}

// AddToList adds a gallery to a list. Enforced lists reject galleries not matching their filter.
func (catalog *Catalog) AddToList(ctx context.Context, listID int64, g *gallery.Gallery) error {
	list, err := catalog.list(ctx, listID)
	if err != nil {
		return err
	}
	if err := list.Add(g); err != nil {
		return err
	}
	return Exec(ctx, catalog.queue, "add_list_member", func(ctx context.Context, db *sql.DB) error {
		return insertListMember(ctx, db, listID, g.ID)
	})
}

// RemoveFromList drops a gallery from a list.
func (catalog *Catalog) RemoveFromList(ctx context.Context, listID, galleryID int64) error {
	return Exec(ctx, catalog.queue, "remove_list_member", func(ctx context.Context, db *sql.DB) error {
		return deleteListMember(ctx, db, listID, galleryID)
	})
}

/*
PruneLists removes members of enforced lists that no longer match their filter.

galleries must be fully loaded (tags included). Returns the number of
memberships removed.
*/
func (catalog *Catalog) PruneLists(ctx context.Context, galleries []*gallery.Gallery) (int, error) {
	lists, err := catalog.Lists(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, list := range lists {
		for _, galleryID := range list.Prune(galleries) {
			if err := catalog.RemoveFromList(ctx, list.ID, galleryID); err != nil {
				return removed, err
			}
			removed++
			catalog.logger.Info("list_member_pruned", slog.Int64("list_id", list.ID), slog.Int64("gallery_id", galleryID))
		}
	}
	return removed, nil
}
