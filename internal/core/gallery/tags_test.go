// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gallery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/happypanda/internal/core/gallery"
)

/*
TestTags_FormatParseRoundTrip verifies that parsing a formatted map yields the same map.
*/
func TestTags_FormatParseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tags gallery.Tags
		text string
	}{
		{
			name: "mixed",
			tags: gallery.Tags{"ns1": {"a", "b"}, "default": {"c", "d"}},
			text: "c, d, ns1:[a, b]",
		},
		{
			name: "single_namespace_tag",
			tags: gallery.Tags{"Artist": {"nokin"}, "Parody": {"granblue fantasy", "idolmaster"}},
			text: "Artist:nokin, Parody:[granblue fantasy, idolmaster]",
		},
		{
			name: "colon_in_default_tag",
			tags: gallery.Tags{"default": {"a:b", "c"}},
			text: ":a:b, c",
		},
		{
			name: "colon_in_namespaced_tag",
			tags: gallery.Tags{"ns": {"x:y"}, "other": {"p:q", "r"}},
			text: "ns:x:y, other:[p:q, r]",
		},
		{
			name: "empty",
			tags: gallery.Tags{},
			text: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatted := tt.tags.Format()
			assert.Equal(t, tt.text, formatted)
			assert.Equal(t, tt.tags, gallery.ParseTags(formatted))
		})
	}
}

/*
TestParseTags reads the canonical "ns1:[a, b], c, d" shape.
*/
func TestParseTags(t *testing.T) {
	parsed := gallery.ParseTags("ns1:[a, b], c, d")

	assert.Equal(t, gallery.Tags{
		"ns1":     {"a", "b"},
		"default": {"c", "d"},
	}, parsed)
	assert.Equal(t, "c, d, ns1:[a, b]", parsed.Format())
}

/*
TestTags_Merge checks set union per namespace with deterministic order.
*/
func TestTags_Merge(t *testing.T) {
	existing := gallery.Tags{"ns1": {"tag1"}}
	existing.Merge(gallery.Tags{"ns1": {"tag3"}, "ns2": {"tag2"}})

	assert.Equal(t, gallery.Tags{"ns1": {"tag1", "tag3"}, "ns2": {"tag2"}}, existing)
}

/*
TestTags_NamespaceCaseInsensitive keeps the first spelling of a namespace.
*/
func TestTags_NamespaceCaseInsensitive(t *testing.T) {
	tags := gallery.Tags{}
	tags.Add("Female", "glasses")
	tags.Add("female", "ponytail")
	tags.Add("FEMALE", "glasses")

	assert.Equal(t, gallery.Tags{"Female": {"glasses", "ponytail"}}, tags)
	assert.True(t, tags.Has("female", "ponytail"))
}
