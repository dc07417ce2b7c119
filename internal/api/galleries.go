// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/happypanda/internal/catalog"
	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
	requestutil "github.com/taibuivan/happypanda/internal/platform/request"
	"github.com/taibuivan/happypanda/internal/platform/respond"
	"github.com/taibuivan/happypanda/internal/platform/validate"
	"github.com/taibuivan/happypanda/pkg/pagination"
)

// GalleryStore is the catalog surface served over HTTP.
type GalleryStore interface {
	Page(ctx context.Context, query catalog.PageQuery) ([]*gallery.Gallery, int, error)
	Get(ctx context.Context, id int64) (*gallery.Gallery, error)
	Delete(ctx context.Context, id int64, mode catalog.DeleteMode) error
}

type GalleryHandler struct {
	store GalleryStore
}

func NewGalleryHandler(store GalleryStore) *GalleryHandler {
	return &GalleryHandler{store: store}
}

// Routes returns the gallery sub-router.
func (handler *GalleryHandler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Get("/", handler.listGalleries)
	router.Get("/{id}", handler.getGallery)
	router.Get("/{id}/thumbnail", handler.getThumbnail)
	router.Delete("/{id}", handler.deleteGallery)
	return router
}

var views = map[string]gallery.View{
	"default":   gallery.ViewDefault,
	"addition":  gallery.ViewAddition,
	"duplicate": gallery.ViewDuplicate,
}

// listGalleries serves one window of the library, optionally narrowed to a view.
func (handler *GalleryHandler) listGalleries(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	query := catalog.PageQuery{
		Offset:     params.Offset(),
		Limit:      params.Limit,
		Sort:       string(params.Sort),
		Descending: params.Descending,
	}
	if raw := request.URL.Query().Get("view"); raw != "" {
		view, ok := views[raw]
		if !ok {
			respond.Error(writer, request, validate.RequiredError("view", "Must be one of default, addition, duplicate"))
			return
		}
		query.View = view
	}

	galleries, total, err := handler.store.Page(request.Context(), query)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Paginated(writer, galleries, pagination.NewMeta(params, total))
}

func (handler *GalleryHandler) getGallery(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.Int64Param(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	g, err := handler.store.Get(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, g)
}

// getThumbnail streams the gallery's cover thumbnail.
func (handler *GalleryHandler) getThumbnail(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.Int64Param(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	g, err := handler.store.Get(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if g.Profile == "" {
		respond.Error(writer, request, apperr.NotFound("Thumbnail"))
		return
	}
	respond.File(writer, request, g.Profile, "Thumbnail")
}

/*
deleteGallery removes a gallery from the catalog.

?files=true removes the files from disk, ?trash=true moves them to the trash
directory instead. Trash wins when both are given.
*/
func (handler *GalleryHandler) deleteGallery(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.Int64Param(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	mode := catalog.DeleteRecord
	switch {
	case requestutil.BoolQuery(request, "trash", false):
		mode = catalog.DeleteTrash
	case requestutil.BoolQuery(request, "files", false):
		mode = catalog.DeletePermanent
	}

	if err := handler.store.Delete(request.Context(), id, mode); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}
