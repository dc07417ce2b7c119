// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/site"
)

var nhentaiURL = regexp.MustCompile(`(?i)^https?://(?:www\.)?nhentai\.net/g/(\d+)/?`)

// NHentaiOptions configures [NHentai]. Empty fields use the public hosts.
type NHentaiOptions struct {
	APIBase   string
	ImageBase string
	ThumbBase string
	Logger    *slog.Logger
}

// NHentai fetches from nhentai.net through its JSON API.
type NHentai struct {
	session *site.Session
	options NHentaiOptions
	logger  *slog.Logger
}

// NewNHentai builds the fetcher.
func NewNHentai(session *site.Session, options NHentaiOptions) *NHentai {
	if options.APIBase == "" {
		options.APIBase = "https://nhentai.net"
	}
	if options.ImageBase == "" {
		options.ImageBase = "https://i.nhentai.net"
	}
	if options.ThumbBase == "" {
		options.ThumbBase = "https://t.nhentai.net"
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &NHentai{
		session: session,
		options: options,
		logger:  options.Logger.With(slog.String("component", "fetch"), slog.String("site", site.NHentai)),
	}
}

func (n *NHentai) Name() string { return site.NHentai }

func (n *NHentai) ParseURL(rawURL string) (Identity, error) {
	match := nhentaiURL.FindStringSubmatch(strings.TrimSpace(rawURL))
	if match == nil {
		return Identity{}, apperr.WrongURL(rawURL)
	}
	return Identity{ID: match[1]}, nil
}

type nhImage struct {
	Type string `json:"t"`
}

// extension maps the API's one-letter image type.
func (img nhImage) extension() string {
	switch img.Type {
	case "p":
		return "png"
	case "g":
		return "gif"
	case "w":
		return "webp"
	}
	return "jpg"
}

type nhGallery struct {
	MediaID string `json:"media_id"`
	Title   struct {
		English  string `json:"english"`
		Japanese string `json:"japanese"`
		Pretty   string `json:"pretty"`
	} `json:"title"`
	Images struct {
		Pages []nhImage `json:"pages"`
		Cover nhImage   `json:"cover"`
	} `json:"images"`
	Tags []struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"tags"`
	UploadDate int64 `json:"upload_date"`
}

func (data nhGallery) record(requested string) Record {
	record := Record{
		Title:   Title{Default: CleanTitle(data.Title.English), Japanese: CleanTitle(data.Title.Japanese)},
		Type:    gallery.TypeDoujinshi,
		PubDate: Posted(data.UploadDate),
		Tags:    gallery.Tags{},
		URL:     requested,
	}
	if record.Title.Default == "" {
		record.Title.Default = CleanTitle(data.Title.Pretty)
	}
	for _, tag := range data.Tags {
		switch tag.Type {
		case "category":
			record.Type = gallery.ParseType(tag.Name)
		case "tag":
			AddTag(record.Tags, gallery.DefaultNamespace, tag.Name)
		default:
			AddTag(record.Tags, tag.Type, tag.Name)
		}
	}
	return record
}

// GetMetadata requests one gallery per URL.
func (n *NHentai) GetMetadata(ctx context.Context, urls []string) ([]Raw, error) {
	raws := make([]Raw, 0, len(urls))
	for _, u := range urls {
		identity, err := n.ParseURL(u)
		if err != nil {
			n.logger.Warn("fetch_url_skipped", slog.String("url", u))
			continue
		}
		body, err := getPage(ctx, n.session, n.Name(), n.apiURL(identity.ID))
		if err != nil {
			return raws, err
		}
		raws = append(raws, Raw{Body: body, IDs: map[string]string{identity.ID: u}})
	}
	return raws, nil
}

func (n *NHentai) apiURL(id string) string {
	return fmt.Sprintf("%s/api/gallery/%s", strings.TrimRight(n.options.APIBase, "/"), id)
}

func (n *NHentai) ParseMetadata(raw Raw) (map[string]Record, error) {
	var data nhGallery
	if err := json.Unmarshal(raw.Body, &data); err != nil {
		return nil, apperr.MetadataFetchFail(n.Name(), err)
	}
	records := make(map[string]Record, len(raw.IDs))
	for _, requested := range raw.IDs {
		records[requested] = data.record(requested)
	}
	return records, nil
}

// FromGalleryURL lists every page image of the gallery.
func (n *NHentai) FromGalleryURL(ctx context.Context, rawURL string) (*Listing, error) {
	identity, err := n.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	body, err := getPage(ctx, n.session, n.Name(), n.apiURL(identity.ID))
	if err != nil {
		return nil, err
	}
	var data nhGallery
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, apperr.MetadataFetchFail(n.Name(), err)
	}
	if data.MediaID == "" || len(data.Images.Pages) == 0 {
		return nil, apperr.MetadataFetchFail(n.Name(), fmt.Errorf("gallery %s lists no pages", identity.ID))
	}

	images := strings.TrimRight(n.options.ImageBase, "/")
	urls := make([]string, 0, len(data.Images.Pages))
	for i, page := range data.Images.Pages {
		urls = append(urls, fmt.Sprintf("%s/galleries/%s/%d.%s", images, data.MediaID, i+1, page.extension()))
	}

	record := data.record(rawURL)
	return &Listing{
		GalleryURL: rawURL,
		URLs:       urls,
		Type:       DownloadOther,
		ThumbURL:   fmt.Sprintf("%s/galleries/%s/cover.%s", strings.TrimRight(n.options.ThumbBase, "/"), data.MediaID, data.Images.Cover.extension()),
		Metadata:   record,
		Size:       fmt.Sprintf("%d pages", len(urls)),
		Name:       record.Title.Default,
	}, nil
}
