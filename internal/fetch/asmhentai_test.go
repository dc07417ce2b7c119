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

const asmPageHTML = `<html><body>
<div class="book_page">
  <div class="cover"><a href="/gallery/555/1/"><img src="//images.asmhentai.com/001/555/cover.jpg"></a></div>
  <div class="info">
    <h1>[Nokin] Scraped &amp; Title</h1>
    <h2>スクレイプ</h2>
    <div class="tags"><h3>Parodies:</h3><div class="tag_list"><a href="/parody/touhou/"><span class="badge tag">touhou project</span></a></div></div>
    <div class="tags"><h3>Tags:</h3><div class="tag_list">
      <a href="/tag/a/"><span class="badge tag">full_color</span></a>
      <a href="/tag/b/"><span class="badge tag">Stockings</span></a>
    </div></div>
    <div class="tags"><h3>Artists:</h3><div class="tag_list"><a href="/artist/nokin/"><span class="badge tag">nokin</span></a></div></div>
    <div class="tags"><h3>Category:</h3><div class="tag_list"><a href="/category/manga/"><span class="badge tag">Manga</span></a></div></div>
    <div class="pages"><h3>Pages: 2</h3></div>
  </div>
</div>
<div class="preview_thumb"><a href="/gallery/555/1/"><img data-src="//images.asmhentai.com/001/555/1t.jpg"></a></div>
<div class="preview_thumb"><a href="/gallery/555/2/"><img data-src="//images.asmhentai.com/001/555/2t.png"></a></div>
</body></html>`

func asmServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/g/555/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(asmPageHTML))
	}))
}

func TestASMHentai_Metadata(t *testing.T) {
	server := asmServer()
	defer server.Close()
	a := fetch.NewASMHentai(newSession(t), server.URL, quietLogger())

	u := "https://asmhentai.com/g/555/"
	records, err := fetch.Metadata(context.Background(), a, []string{u})
	require.NoError(t, err)

	record := records[u]
	assert.Equal(t, "[Nokin] Scraped & Title", record.Title.Default)
	assert.Equal(t, "スクレイプ", record.Title.Japanese)
	assert.Equal(t, gallery.TypeManga, record.Type)
	assert.Equal(t, []string{"touhou project"}, record.Tags.Get("Parody"))
	assert.Equal(t, []string{"full color", "stockings"}, record.Tags.Get(gallery.DefaultNamespace))
	assert.Equal(t, []string{"nokin"}, record.Tags.Get("Artist"))
}

func TestASMHentai_FromGalleryURL(t *testing.T) {
	server := asmServer()
	defer server.Close()
	a := fetch.NewASMHentai(newSession(t), server.URL, quietLogger())

	listing, err := a.FromGalleryURL(context.Background(), "https://asmhentai.com/g/555/")
	require.NoError(t, err)

	assert.Equal(t, fetch.DownloadOther, listing.Type)
	assert.Equal(t, []string{
		"https://images.asmhentai.com/001/555/1.jpg",
		"https://images.asmhentai.com/001/555/2.png",
	}, listing.URLs)
	assert.Equal(t, "https://images.asmhentai.com/001/555/cover.jpg", listing.ThumbURL)

	_, err = a.FromGalleryURL(context.Background(), "https://asmhentai.com/g/1/")
	assert.Error(t, err)
}
