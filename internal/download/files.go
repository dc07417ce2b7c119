// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package download

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/taibuivan/happypanda/internal/platform/constants"
)

// maxNameLength keeps generated names under common filesystem limits.
const maxNameLength = 200

// SanitizeName strips characters that are invalid in Windows file names.
// A name left empty gets a random one.
func SanitizeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\\', '/', ':', '*', '?', '"', '<', '>', '|':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.TrimRight(cleaned, ". ")

	if runes := []rune(cleaned); len(runes) > maxNameLength {
		ext := filepath.Ext(cleaned)
		if len([]rune(ext)) < maxNameLength {
			cleaned = string(runes[:maxNameLength-len([]rune(ext))]) + ext
		} else {
			cleaned = string(runes[:maxNameLength])
		}
	}
	if cleaned == "" || cleaned == filepath.Ext(cleaned) {
		return uuid.NewString() + cleaned
	}
	return cleaned
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return !errors.Is(err, fs.ErrNotExist)
}

/*
freeName returns target, or "(N)name" in the same directory for the first free N
counting from 0.

It gives up after [constants.MaxRenameAttempts] and reports false.
*/
func freeName(target string) (string, bool) {
	if !exists(target) {
		return target, true
	}
	dir, base := filepath.Split(target)
	for n := 0; n < constants.MaxRenameAttempts; n++ {
		candidate := filepath.Join(dir, fmt.Sprintf("(%d)%s", n, base))
		if !exists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

/*
pageName names the i-th page of an image set after the last element of its URL path.

A URL without a usable base name, or one whose name is already taken in the
folder, gets an indexed name with the URL extension instead.
*/
func pageName(i int, rawURL string, used map[string]bool) string {
	var base string
	ext := ".jpg"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && strings.Trim(b, `\/:*?"<>|. `) != "" {
			base = SanitizeName(b)
		}
		if e := path.Ext(u.Path); e != "" {
			ext = strings.ToLower(e)
		}
	}
	if base != "" && !used[strings.ToLower(base)] {
		used[strings.ToLower(base)] = true
		return base
	}

	name := fmt.Sprintf("%03d%s", i+1, ext)
	for n := 0; used[strings.ToLower(name)]; n++ {
		name = fmt.Sprintf("(%d)%03d%s", n, i+1, ext)
	}
	used[strings.ToLower(name)] = true
	return name
}
