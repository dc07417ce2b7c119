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
	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

const chaikaArchiveJSON = `{
	"id": 10,
	"title": "[Circle] Some &amp; Title",
	"title_jpn": "",
	"category": "Manga",
	"tags": ["artist:foo_bar", "english", "female:sole_female"],
	"posted": 1500000000,
	"gallery": 77,
	"download": "/archive/10/download/",
	"filesize": 1500
}`

func chaikaServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jsearch/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		query := r.URL.Query()
		switch {
		case query.Get("sha1") == "da39a3ee":
			assert.Equal(t, http.MethodPost, r.Method)
			_, _ = w.Write([]byte("[" + chaikaArchiveJSON + "]"))
		case query.Get("sha1") != "":
			_, _ = w.Write([]byte("[]"))
		case query.Get("archive") == "10":
			_, _ = w.Write([]byte(chaikaArchiveJSON))
		case query.Get("gallery") == "77":
			_, _ = w.Write([]byte(`{"title": "Some Title", "category": "Manga", "tags": [], "posted": 1500000000,
				"archives": [{"link": "/archive/10/", "download": "/archive/10/download/"}]}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
}

/*
TestChaika_SearchHash rewrites the record link to the gallery page.
*/
func TestChaika_SearchHash(t *testing.T) {
	server := chaikaServer(t)
	defer server.Close()
	c := fetch.NewChaika(newSession(t), server.URL, quietLogger())

	record, ok, err := c.SearchHash(context.Background(), "da39a3ee")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "http://panda.chaika.moe/gallery/77/", record.URL)
	assert.Equal(t, "[Circle] Some & Title", record.Title.Default)
	assert.Equal(t, gallery.TypeManga, record.Type)
	assert.Equal(t, []string{"foo bar"}, record.Tags.Get("Artist"))
	assert.Equal(t, []string{"english"}, record.Tags.Get(gallery.DefaultNamespace))

	_, ok, err = c.SearchHash(context.Background(), "ffff")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChaika_Metadata(t *testing.T) {
	server := chaikaServer(t)
	defer server.Close()
	c := fetch.NewChaika(newSession(t), server.URL, quietLogger())

	_, err := c.ParseURL("https://nhentai.net/g/1/")
	assert.True(t, apperr.IsCode(err, apperr.CodeWrongURL))

	archiveURL := "http://panda.chaika.moe/archive/10/"
	records, err := fetch.Metadata(context.Background(), c, []string{archiveURL})
	require.NoError(t, err)
	require.Contains(t, records, archiveURL)
	assert.Equal(t, "http://panda.chaika.moe/gallery/77/", records[archiveURL].URL)
}

func TestChaika_FromGalleryURL(t *testing.T) {
	server := chaikaServer(t)
	defer server.Close()
	c := fetch.NewChaika(newSession(t), server.URL, quietLogger())

	for _, u := range []string{"http://panda.chaika.moe/archive/10/", "https://panda.chaika.moe/gallery/77/"} {
		listing, err := c.FromGalleryURL(context.Background(), u)
		require.NoError(t, err, u)
		assert.Equal(t, fetch.DownloadArchive, listing.Type)
		assert.Equal(t, []string{"http://panda.chaika.moe/archive/10/download/"}, listing.URLs)
	}

	_, err := c.FromGalleryURL(context.Background(), "http://panda.chaika.moe/archive/999/")
	assert.True(t, apperr.IsCode(err, apperr.CodeMetadataFetchFail))
}
