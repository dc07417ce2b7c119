// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/fetch"
)

const nhentaiJSON = `{
	"id": 123,
	"media_id": "999",
	"title": {"english": "[Artist] English &amp; Title", "japanese": "日本語", "pretty": "Pretty"},
	"images": {"pages": [{"t": "j"}, {"t": "p"}, {"t": "w"}], "cover": {"t": "j"}},
	"tags": [
		{"type": "tag", "name": "big breasts"},
		{"type": "artist", "name": "Some Artist"},
		{"type": "language", "name": "translated"},
		{"type": "language", "name": "english"},
		{"type": "category", "name": "manga"}
	],
	"upload_date": 1500000000,
	"num_pages": 3
}`

func nhentaiServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/gallery/123" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(nhentaiJSON))
	}))
}

func TestNHentai_Metadata(t *testing.T) {
	server := nhentaiServer(t)
	defer server.Close()
	n := fetch.NewNHentai(newSession(t), fetch.NHentaiOptions{APIBase: server.URL, Logger: quietLogger()})

	u := "https://nhentai.net/g/123/"
	records, err := fetch.Metadata(context.Background(), n, []string{u})
	require.NoError(t, err)

	record := records[u]
	assert.Equal(t, "[Artist] English & Title", record.Title.Default)
	assert.Equal(t, "日本語", record.Title.Japanese)
	assert.Equal(t, gallery.TypeManga, record.Type)
	assert.Equal(t, []string{"big breasts"}, record.Tags.Get(gallery.DefaultNamespace))
	assert.Equal(t, []string{"some artist"}, record.Tags.Get("Artist"))
	assert.Equal(t, []string{"english", "translated"}, record.Tags.Get("Language"))
	assert.Equal(t, u, record.URL)
}

func TestNHentai_FromGalleryURL(t *testing.T) {
	server := nhentaiServer(t)
	defer server.Close()
	n := fetch.NewNHentai(newSession(t), fetch.NHentaiOptions{
		APIBase:   server.URL,
		ImageBase: "https://i.example",
		ThumbBase: "https://t.example",
		Logger:    quietLogger(),
	})

	listing, err := n.FromGalleryURL(context.Background(), "https://nhentai.net/g/123")
	require.NoError(t, err)

	assert.Equal(t, fetch.DownloadOther, listing.Type)
	assert.True(t, listing.ImageSet())
	assert.Equal(t, []string{
		"https://i.example/galleries/999/1.jpg",
		"https://i.example/galleries/999/2.png",
		"https://i.example/galleries/999/3.webp",
	}, listing.URLs)
	assert.Equal(t, "https://t.example/galleries/999/cover.jpg", listing.ThumbURL)
	assert.Equal(t, "[Artist] English & Title", listing.Name)

	_, err = n.FromGalleryURL(context.Background(), "https://nhentai.net/g/404/")
	assert.Error(t, err)
}
