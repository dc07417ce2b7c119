// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scanner_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/scanner"
)

const ezeInfo = `{
	"gallery_info": {
		"title": "[Circle (Some Artist)] Some Title [English]",
		"category": "doujinshi",
		"tags": {"artist": ["some artist"], "female": ["glasses"], "misc": ["full color"]},
		"language": "English",
		"upload_date": [2016, 3, 14, 10, 0, 0],
		"source": {"site": "exhentai", "gid": 123, "token": "abcdef"}
	},
	"image_info": [],
	"image_api_key": "key"
}`

/*
TestParseEze reads the browser extension sidecar.
*/
func TestParseEze(t *testing.T) {
	meta, err := scanner.ParseEze([]byte(ezeInfo), nil)
	require.NoError(t, err)

	assert.Equal(t, "Some Title", meta.Title)
	assert.Equal(t, "Some Artist", meta.Artist)
	assert.Equal(t, "English", meta.Language)
	assert.Equal(t, gallery.TypeDoujinshi, meta.Type)
	assert.Equal(t, "https://exhentai.org/g/123/abcdef/", meta.Link)
	assert.Equal(t, []string{"glasses"}, meta.Tags.Get("Female"))
	assert.Equal(t, []string{"full color"}, meta.Tags.Get(gallery.DefaultNamespace))
	require.NotNil(t, meta.PubDate)
	assert.Equal(t, time.Date(2016, 3, 14, 0, 0, 0, 0, time.UTC), *meta.PubDate)

	t.Run("other json shapes are rejected", func(t *testing.T) {
		_, err := scanner.ParseEze([]byte(`{"title": "x"}`), nil)
		assert.Error(t, err)
	})
}

/*
TestParseHDoujin reads key/value sidecars and ignores unknown keys.
*/
func TestParseHDoujin(t *testing.T) {
	raw := "Title: Meta Title\n" +
		"Artist: Someone\n" +
		"Tags: female:glasses, male:[muscle, tanlines], full color\n" +
		"Description: A note: with a colon\n" +
		"Circle: Circle X\n" +
		"URL: https://example.org/g/1/\n" +
		"Pages: 5\n" +
		"Empty:\n"

	meta := scanner.ParseHDoujin([]byte(raw))
	assert.Equal(t, "Meta Title", meta.Title)
	assert.Equal(t, "Someone", meta.Artist)
	assert.Equal(t, "A note: with a colon", meta.Info)
	assert.Equal(t, "https://example.org/g/1/", meta.Link)
	assert.Equal(t, []string{"circle x"}, meta.Tags.Get("Group"))
	assert.Equal(t, []string{"muscle", "tanlines"}, meta.Tags.Get("male"))
	assert.Equal(t, []string{"full color"}, meta.Tags.Get(gallery.DefaultNamespace))
}

/*
TestMetadata_Apply replaces known fields and unions tags.
*/
func TestMetadata_Apply(t *testing.T) {
	g := gallery.New("/library/x")
	g.Title = "Scanned"
	g.Artist = "Scanned Artist"
	g.Tags.Add("female", "glasses")

	meta := &scanner.Metadata{Title: "From File", Tags: gallery.Tags{"female": {"ponytail"}}}
	meta.Apply(g)

	assert.Equal(t, "From File", g.Title)
	assert.Equal(t, "Scanned Artist", g.Artist)
	assert.Equal(t, []string{"glasses", "ponytail"}, g.Tags.Get("female"))
}
