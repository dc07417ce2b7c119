// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scanner

import (
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/taibuivan/happypanda/internal/platform/constants"
)

var bracketPattern = regexp.MustCompile(`\[([^\[\]]*)\]`)

// ParsedTitle is what a file or folder name says about its gallery.
type ParsedTitle struct {
	Title    string
	Artist   string
	Language string
}

/*
ParseTitle splits a gallery file or folder name into title, artist and language.

Rules:
  - an archive extension is stripped
  - the first [bracket] is the artist
  - the first bracket naming a known language is the language, else [constants.DefaultLanguage]
  - every bracket is removed from the title and whitespace is collapsed

languages extends [constants.Languages].
*/
func ParseTitle(name string, languages []string) ParsedTitle {
	name = filepath.Base(strings.TrimRight(name, `/\`))
	if ext := strings.ToLower(filepath.Ext(name)); slices.Contains(constants.ZipExtensions, ext) || slices.Contains(constants.RarExtensions, ext) {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	name = collapse(name)

	groups := bracketPattern.FindAllStringSubmatch(name, -1)
	if len(groups) == 0 {
		return ParsedTitle{Title: name, Language: constants.DefaultLanguage}
	}

	parsed := ParsedTitle{
		Artist:   strings.TrimSpace(groups[0][1]),
		Language: constants.DefaultLanguage,
	}
	for _, group := range groups {
		if language, ok := matchLanguage(group[1], languages); ok {
			parsed.Language = language
			break
		}
	}

	parsed.Title = collapse(bracketPattern.ReplaceAllString(name, " "))
	if parsed.Title == "" {
		parsed.Title = name
	}
	return parsed
}

// matchLanguage returns the canonical spelling of a known language.
func matchLanguage(value string, extra []string) (string, bool) {
	value = strings.TrimSpace(value)
	for _, list := range [][]string{constants.Languages, extra} {
		for _, language := range list {
			if strings.EqualFold(language, value) {
				return language, true
			}
		}
	}
	return "", false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
