// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/taibuivan/happypanda/internal/download"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/middleware"
	requestutil "github.com/taibuivan/happypanda/internal/platform/request"
	"github.com/taibuivan/happypanda/internal/platform/respond"
	"github.com/taibuivan/happypanda/internal/platform/validate"
)

const (
	eventWriteWait  = 10 * time.Second
	eventPingPeriod = 30 * time.Second
)

// DownloadQueue is the download manager surface served over HTTP.
type DownloadQueue interface {
	Add(ctx context.Context, rawURL string) (*download.HenItem, error)
	Items() []download.Snapshot
	Cancel(id string) bool
	Subscribe() (<-chan download.Event, func())
}

type DownloadHandler struct {
	queue    DownloadQueue
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewDownloadHandler(queue DownloadQueue, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		queue: queue,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(request *http.Request) bool {
				origin := request.Header.Get(constants.HeaderOrigin)
				return origin == "" || middleware.IsLoopbackOrigin(origin)
			},
		},
		logger: logger.With(slog.String("component", "download_api")),
	}
}

// Routes returns the download sub-router. The event stream is exempt from the request timeout.
func (handler *DownloadHandler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Get("/events", handler.streamEvents)

	router.Group(func(timed chi.Router) {
		timed.Use(chimw.Timeout(constants.GlobalRequestTimeout))
		timed.Get("/", handler.listDownloads)
		timed.Post("/", handler.addDownload)
		timed.Delete("/{id}", handler.cancelDownload)
	})
	return router
}

type addDownloadRequest struct {
	URL string `json:"url"`
}

func (handler *DownloadHandler) listDownloads(writer http.ResponseWriter, request *http.Request) {
	respond.OK(writer, handler.queue.Items())
}

func (handler *DownloadHandler) addDownload(writer http.ResponseWriter, request *http.Request) {
	var body addDownloadRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	body.URL = strings.TrimSpace(body.URL)
	v := &validate.Validator{}
	if v.Required("url", body.URL).HasErrors() || v.HTTPURL("url", body.URL).HasErrors() {
		respond.Error(writer, request, v.Err())
		return
	}

	item, err := handler.queue.Add(request.Context(), body.URL)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, item.Snapshot())
}

func (handler *DownloadHandler) cancelDownload(writer http.ResponseWriter, request *http.Request) {
	id := requestutil.Param(request, "id")
	if !handler.queue.Cancel(id) {
		respond.Error(writer, request, apperr.NotFound("Active download"))
		return
	}
	respond.NoContent(writer)
}

// eventMessage is one frame on the event stream.
type eventMessage struct {
	Event string            `json:"event"`
	Item  download.Snapshot `json:"item"`
}

/*
streamEvents upgrades to a websocket and forwards manager events until the
client goes away.

Incoming frames are read and discarded; a read error ends the stream.
*/
func (handler *DownloadHandler) streamEvents(writer http.ResponseWriter, request *http.Request) {
	conn, err := handler.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		handler.logger.Warn("event_stream_upgrade_failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	events, unsubscribe := handler.queue.Subscribe()
	defer unsubscribe()

	handler.logger.Info("event_stream_opened", slog.String("remote", request.RemoteAddr))

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			handler.logger.Info("event_stream_closed", slog.String("remote", request.RemoteAddr))
			return
		case <-request.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
			if err := conn.WriteJSON(eventMessage{Event: event.Kind.String(), Item: event.Item}); err != nil {
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(eventWriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
