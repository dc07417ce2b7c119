// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gallery

import (
	"slices"
	"sort"
	"strings"
)

// DefaultNamespace holds tags that carry no namespace.
const DefaultNamespace = "default"

// Tags maps a namespace to its set of tags.
//
// Namespaces keep the case of their first insertion and compare case-insensitively.
// Tag slices are kept sorted and free of duplicates.
type Tags map[string][]string

// namespaceKey returns the stored spelling of namespace, or namespace itself when new.
func (t Tags) namespaceKey(namespace string) string {
	if _, ok := t[namespace]; ok {
		return namespace
	}
	for existing := range t {
		if strings.EqualFold(existing, namespace) {
			return existing
		}
	}
	return namespace
}

// Add inserts tag under namespace. An empty namespace means [DefaultNamespace].
func (t Tags) Add(namespace, tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = DefaultNamespace
	}

	key := t.namespaceKey(namespace)
	current := t[key]
	index, found := slices.BinarySearch(current, tag)
	if found {
		return
	}
	t[key] = slices.Insert(current, index, tag)
}

// Get returns the tags stored under namespace (case-insensitive).
func (t Tags) Get(namespace string) []string {
	return t[t.namespaceKey(namespace)]
}

// Has reports whether namespace contains tag.
func (t Tags) Has(namespace, tag string) bool {
	_, found := slices.BinarySearch(t.Get(namespace), tag)
	return found
}

// Merge unions other into t per namespace.
func (t Tags) Merge(other Tags) {
	for namespace, tags := range other {
		for _, tag := range tags {
			t.Add(namespace, tag)
		}
	}
}

// Clone returns a deep copy.
func (t Tags) Clone() Tags {
	clone := make(Tags, len(t))
	for namespace, tags := range t {
		clone[namespace] = slices.Clone(tags)
	}
	return clone
}

// Namespaces returns the namespace keys in sorted order, skipping empty ones.
func (t Tags) Namespaces() []string {
	keys := make([]string, 0, len(t))
	for namespace, tags := range t {
		if len(tags) > 0 {
			keys = append(keys, namespace)
		}
	}
	sort.Strings(keys)
	return keys
}

// Format renders the tags as "ns1:[a, b], ns2:c, d".
//
// Namespaces appear in sorted order. Default tags are written without a prefix
// unless they contain a colon, which gets a bare ":" prefix so they parse back
// under [DefaultNamespace]. Namespaces holding a single tag omit the brackets.
func (t Tags) Format() string {
	parts := make([]string, 0, len(t))
	for _, namespace := range t.Namespaces() {
		tags := t[namespace]
		switch {
		case namespace == DefaultNamespace:
			for _, tag := range tags {
				if strings.Contains(tag, ":") {
					tag = ":" + tag
				}
				parts = append(parts, tag)
			}
		case len(tags) == 1:
			parts = append(parts, namespace+":"+tags[0])
		default:
			parts = append(parts, namespace+":["+strings.Join(tags, ", ")+"]")
		}
	}
	return strings.Join(parts, ", ")
}

// ParseTags is the inverse of [Tags.Format].
//
// Top-level commas separate entries; commas inside brackets separate tags of
// one namespace. Entries without a namespace, or with an empty one as in
// ":a:b", land under [DefaultNamespace].
func ParseTags(raw string) Tags {
	tags := Tags{}

	var entries []string
	var buffer strings.Builder
	level := 0
	for _, r := range raw {
		switch r {
		case '[':
			level++
		case ']':
			if level > 0 {
				level--
			}
		case ',':
			if level == 0 {
				entries = append(entries, buffer.String())
				buffer.Reset()
				continue
			}
		}
		buffer.WriteRune(r)
	}
	entries = append(entries, buffer.String())

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		namespace, value, hasNamespace := strings.Cut(entry, ":")
		if !hasNamespace || strings.TrimSpace(namespace) == "" {
			tags.Add(DefaultNamespace, strings.TrimPrefix(entry, ":"))
			continue
		}

		value = strings.TrimSpace(value)
		if strings.HasPrefix(value, "[") && strings.HasSuffix(value, "]") {
			for _, tag := range strings.Split(value[1:len(value)-1], ",") {
				tags.Add(namespace, tag)
			}
			continue
		}
		tags.Add(namespace, value)
	}

	return tags
}
