// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package gallery

import (
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/taibuivan/happypanda/internal/platform/apperr"
)

// ListType distinguishes manual lists from collections.
type ListType int

const (
	ListRegular    ListType = 0
	ListCollection ListType = 1
)

// List is a user-defined saved search or manual collection.
type List struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name"`
	Type      ListType `json:"type"`
	Filter    string   `json:"filter"`
	Enforce   bool     `json:"enforce"`
	Regex     bool     `json:"regex"`
	Case      bool     `json:"case"`
	Strict    bool     `json:"strict"`
	Profile   string   `json:"profile"`
	Galleries []int64  `json:"galleries"`
}

// Matches reports whether g satisfies the list filter. An empty filter matches everything.
func (l *List) Matches(g *Gallery) bool {
	return Search{Query: l.Filter, Regex: l.Regex, Case: l.Case, Strict: l.Strict}.Matches(g)
}

// Add appends g to the list. Enforced lists reject galleries that do not match the filter.
func (l *List) Add(g *Gallery) error {
	if l.Enforce && !l.Matches(g) {
		return apperr.Unprocessable("Gallery does not match the list filter")
	}
	if !slices.Contains(l.Galleries, g.ID) {
		l.Galleries = append(l.Galleries, g.ID)
	}
	return nil
}

// Remove drops a gallery id from the list.
func (l *List) Remove(galleryID int64) bool {
	index := slices.Index(l.Galleries, galleryID)
	if index < 0 {
		return false
	}
	l.Galleries = slices.Delete(l.Galleries, index, index+1)
	return true
}

// Prune removes members of an enforced list that no longer match and returns their ids.
func (l *List) Prune(galleries []*Gallery) []int64 {
	if !l.Enforce {
		return nil
	}
	var removed []int64
	for _, g := range galleries {
		if slices.Contains(l.Galleries, g.ID) && !l.Matches(g) {
			l.Remove(g.ID)
			removed = append(removed, g.ID)
		}
	}
	return removed
}

// # Search Filter

// Search evaluates a filter string against galleries.
//
// Terms are separated by whitespace or commas; double quotes group words.
// A term "ns:value" matches a tag in namespace ns, or the field of that name for
// title, artist, language, type and status. A leading '-' excludes matches.
type Search struct {
	Query  string
	Regex  bool
	Case   bool
	Strict bool
}

type searchTerm struct {
	namespace string
	value     string
	exclude   bool
}

// Matches reports whether every term of the query is satisfied by g.
func (s Search) Matches(g *Gallery) bool {
	for _, term := range parseTerms(s.Query) {
		if s.termMatches(term, g) == term.exclude {
			return false
		}
	}
	return true
}

func (s Search) termMatches(term searchTerm, g *Gallery) bool {
	switch strings.ToLower(term.namespace) {
	case "":
		if s.valueMatches(term.value, g.Title) || s.valueMatches(term.value, g.Artist) {
			return true
		}
		for _, tags := range g.Tags {
			for _, tag := range tags {
				if s.valueMatches(term.value, tag) {
					return true
				}
			}
		}
		return false
	case "title":
		return s.valueMatches(term.value, g.Title)
	case "artist":
		return s.valueMatches(term.value, g.Artist)
	case "language":
		return s.valueMatches(term.value, g.Language)
	case "type":
		return s.valueMatches(term.value, string(g.Type))
	case "status":
		return s.valueMatches(term.value, string(g.Status))
	}

	for _, tag := range g.Tags.Get(term.namespace) {
		if s.valueMatches(term.value, tag) {
			return true
		}
	}
	return false
}

func (s Search) valueMatches(pattern, value string) bool {
	if s.Regex {
		expression := pattern
		if !s.Case {
			expression = "(?i)" + expression
		}
		compiled, err := regexp.Compile(expression)
		if err != nil {
			return false
		}
		if s.Strict {
			return compiled.FindString(value) == value
		}
		return compiled.MatchString(value)
	}

	if !s.Case {
		pattern = strings.ToLower(pattern)
		value = strings.ToLower(value)
	}
	if s.Strict {
		return pattern == value
	}
	return strings.Contains(value, pattern)
}

func parseTerms(query string) []searchTerm {
	var tokens []string
	var buffer strings.Builder
	quoted := false
	flush := func() {
		if buffer.Len() > 0 {
			tokens = append(tokens, buffer.String())
			buffer.Reset()
		}
	}
	for _, r := range query {
		switch {
		case r == '"':
			quoted = !quoted
		case !quoted && (r == ',' || unicode.IsSpace(r)):
			flush()
		default:
			buffer.WriteRune(r)
		}
	}
	flush()

	terms := make([]searchTerm, 0, len(tokens))
	for _, token := range tokens {
		term := searchTerm{}
		if strings.HasPrefix(token, "-") && len(token) > 1 {
			term.exclude = true
			token = token[1:]
		}
		if namespace, value, ok := strings.Cut(token, ":"); ok && namespace != "" && value != "" {
			term.namespace, term.value = namespace, value
		} else {
			term.value = token
		}
		terms = append(terms, term)
	}
	return terms
}
