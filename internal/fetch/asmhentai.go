// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package fetch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/site"
)

var (
	asmURL       = regexp.MustCompile(`(?i)^https?://(?:www\.)?asmhentai\.com/g/(\d+)/?`)
	asmThumbName = regexp.MustCompile(`t(\.[a-zA-Z]+)$`)
)

// asmNamespaces maps section headings to tag namespaces. Category sets the type.
var asmNamespaces = map[string]string{
	"tags":       gallery.DefaultNamespace,
	"artists":    "Artist",
	"groups":     "Group",
	"parodies":   "Parody",
	"characters": "Character",
	"languages":  "Language",
}

// ASMHentai scrapes gallery pages of asmhentai.com.
type ASMHentai struct {
	session *site.Session
	base    string
	logger  *slog.Logger
}

// NewASMHentai builds the fetcher. An empty base uses the public site.
func NewASMHentai(session *site.Session, base string, logger *slog.Logger) *ASMHentai {
	if base == "" {
		base = "https://asmhentai.com"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ASMHentai{
		session: session,
		base:    strings.TrimRight(base, "/"),
		logger:  logger.With(slog.String("component", "fetch"), slog.String("site", site.ASMHentai)),
	}
}

func (a *ASMHentai) Name() string { return site.ASMHentai }

func (a *ASMHentai) ParseURL(rawURL string) (Identity, error) {
	match := asmURL.FindStringSubmatch(strings.TrimSpace(rawURL))
	if match == nil {
		return Identity{}, apperr.WrongURL(rawURL)
	}
	return Identity{ID: match[1]}, nil
}

func (a *ASMHentai) pageURL(id string) string {
	return fmt.Sprintf("%s/g/%s/", a.base, id)
}

// GetMetadata downloads one gallery page per URL.
func (a *ASMHentai) GetMetadata(ctx context.Context, urls []string) ([]Raw, error) {
	raws := make([]Raw, 0, len(urls))
	for _, u := range urls {
		identity, err := a.ParseURL(u)
		if err != nil {
			a.logger.Warn("fetch_url_skipped", slog.String("url", u))
			continue
		}
		body, err := getPage(ctx, a.session, a.Name(), a.pageURL(identity.ID))
		if err != nil {
			return raws, err
		}
		raws = append(raws, Raw{Body: body, IDs: map[string]string{identity.ID: u}})
	}
	return raws, nil
}

type asmPage struct {
	record Record
	cover  string
	pages  []string
}

func absolute(src string) string {
	if strings.HasPrefix(src, "//") {
		return "https:" + src
	}
	return src
}

func parseASMPage(body []byte, requested string) (asmPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return asmPage{}, err
	}

	info := doc.Find("div.info").First()
	page := asmPage{
		record: Record{
			Title: Title{
				Default:  CleanTitle(info.Find("h1").First().Text()),
				Japanese: CleanTitle(info.Find("h2").First().Text()),
			},
			Type: gallery.TypeDoujinshi,
			Tags: gallery.Tags{},
			URL:  requested,
		},
	}
	if page.record.Title.Default == "" {
		return asmPage{}, fmt.Errorf("no gallery title on page")
	}

	info.Find("div.tags").Each(func(_ int, section *goquery.Selection) {
		heading := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(section.Find("h3").First().Text()), ":"))
		section.Find("span.tag").Each(func(_ int, tag *goquery.Selection) {
			value := tag.Text()
			if heading == "category" {
				page.record.Type = gallery.ParseType(value)
				return
			}
			namespace, ok := asmNamespaces[heading]
			if !ok {
				namespace = heading
			}
			AddTag(page.record.Tags, namespace, value)
		})
	})

	if src, ok := doc.Find("div.cover img").First().Attr("src"); ok {
		page.cover = absolute(src)
	}
	doc.Find("div.preview_thumb img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("data-src")
		if !ok {
			src, ok = img.Attr("src")
		}
		if ok {
			page.pages = append(page.pages, asmThumbName.ReplaceAllString(absolute(src), "$1"))
		}
	})
	return page, nil
}

func (a *ASMHentai) ParseMetadata(raw Raw) (map[string]Record, error) {
	records := make(map[string]Record, len(raw.IDs))
	for _, requested := range raw.IDs {
		page, err := parseASMPage(raw.Body, requested)
		if err != nil {
			return nil, apperr.MetadataFetchFail(a.Name(), err)
		}
		records[requested] = page.record
	}
	return records, nil
}

// FromGalleryURL lists the full-size page images shown as thumbnails on the gallery page.
func (a *ASMHentai) FromGalleryURL(ctx context.Context, rawURL string) (*Listing, error) {
	identity, err := a.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	body, err := getPage(ctx, a.session, a.Name(), a.pageURL(identity.ID))
	if err != nil {
		return nil, err
	}
	page, err := parseASMPage(body, rawURL)
	if err != nil {
		return nil, apperr.MetadataFetchFail(a.Name(), err)
	}
	if len(page.pages) == 0 {
		return nil, apperr.MetadataFetchFail(a.Name(), fmt.Errorf("gallery %s lists no pages", identity.ID))
	}
	return &Listing{
		GalleryURL: rawURL,
		URLs:       page.pages,
		Type:       DownloadOther,
		ThumbURL:   page.cover,
		Metadata:   page.record,
		Size:       fmt.Sprintf("%d pages", len(page.pages)),
		Name:       page.record.Title.Default,
	}, nil
}
