// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/site"
)

// ChaikaSite is the public root used in canonical gallery links.
const ChaikaSite = "http://panda.chaika.moe"

var chaikaURL = regexp.MustCompile(`(?i)^https?://panda\.chaika\.moe/(gallery|archive)/(\d+)/?`)

// Chaika fetches from panda.chaika.moe through its jsearch API.
type Chaika struct {
	session *site.Session
	apiBase string
	logger  *slog.Logger
}

// NewChaika builds the fetcher. An empty apiBase uses [ChaikaSite].
func NewChaika(session *site.Session, apiBase string, logger *slog.Logger) *Chaika {
	if apiBase == "" {
		apiBase = ChaikaSite
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chaika{
		session: session,
		apiBase: strings.TrimRight(apiBase, "/"),
		logger:  logger.With(slog.String("component", "fetch"), slog.String("site", site.Chaika)),
	}
}

func (c *Chaika) Name() string { return site.Chaika }

// ParseURL returns the numeric id; Token holds the kind, "gallery" or "archive".
func (c *Chaika) ParseURL(rawURL string) (Identity, error) {
	match := chaikaURL.FindStringSubmatch(strings.TrimSpace(rawURL))
	if match == nil {
		return Identity{}, apperr.WrongURL(rawURL)
	}
	return Identity{ID: match[2], Token: strings.ToLower(match[1])}, nil
}

type chaikaArchive struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	TitleJpn string   `json:"title_jpn"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Posted   int64    `json:"posted"`
	Gallery  int      `json:"gallery"`
	Download string   `json:"download"`
	Filesize int64    `json:"filesize"`
	Archives []struct {
		Link     string `json:"link"`
		Download string `json:"download"`
	} `json:"archives"`
}

// record canonicalizes an entry. The link always points at the gallery page.
func (a chaikaArchive) record(requested string) Record {
	link := requested
	if a.Gallery > 0 {
		link = fmt.Sprintf("%s/gallery/%d/", ChaikaSite, a.Gallery)
	}
	return Record{
		Title:   Title{Default: CleanTitle(a.Title), Japanese: CleanTitle(a.TitleJpn)},
		Type:    gallery.ParseType(a.Category),
		PubDate: Posted(a.Posted),
		Tags:    SplitTags(a.Tags),
		URL:     link,
	}
}

// GetMetadata issues one jsearch request per URL.
func (c *Chaika) GetMetadata(ctx context.Context, urls []string) ([]Raw, error) {
	raws := make([]Raw, 0, len(urls))
	for _, u := range urls {
		identity, err := c.ParseURL(u)
		if err != nil {
			c.logger.Warn("fetch_url_skipped", slog.String("url", u))
			continue
		}
		body, err := getPage(ctx, c.session, c.Name(), c.jsearch(identity.Token, identity.ID))
		if err != nil {
			return raws, err
		}
		raws = append(raws, Raw{Body: body, IDs: map[string]string{identity.ID: u}})
	}
	return raws, nil
}

func (c *Chaika) jsearch(key, value string) string {
	return fmt.Sprintf("%s/jsearch/?%s=%s", c.apiBase, key, url.QueryEscape(value))
}

// ParseMetadata decodes one jsearch response: an object, or a list for hash searches.
func (c *Chaika) ParseMetadata(raw Raw) (map[string]Record, error) {
	archives, err := decodeChaika(raw.Body)
	if err != nil {
		return nil, apperr.MetadataFetchFail(c.Name(), err)
	}
	records := make(map[string]Record, len(raw.IDs))
	if len(archives) == 0 {
		return records, nil
	}
	for _, requested := range raw.IDs {
		records[requested] = archives[0].record(requested)
	}
	return records, nil
}

func decodeChaika(body []byte) ([]chaikaArchive, error) {
	body = bytes.TrimSpace(body)
	if bytes.HasPrefix(body, []byte("[")) {
		var archives []chaikaArchive
		err := json.Unmarshal(body, &archives)
		return archives, err
	}
	var archive chaikaArchive
	if err := json.Unmarshal(body, &archive); err != nil {
		return nil, err
	}
	if archive.Title == "" {
		return nil, nil
	}
	return []chaikaArchive{archive}, nil
}

/*
SearchHash looks up an archive by the SHA-1 of its file.

Returns false when chaika knows no archive with that hash.
*/
func (c *Chaika) SearchHash(ctx context.Context, sha1 string) (Record, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.jsearch("sha1", sha1), nil)
	if err != nil {
		return Record{}, false, err
	}
	body, err := fetchChecked(ctx, c.session, c.Name(), req)
	if err != nil {
		return Record{}, false, err
	}
	records, err := c.ParseMetadata(Raw{Body: body, IDs: map[string]string{sha1: ""}})
	if err != nil {
		return Record{}, false, err
	}
	record, ok := records[""]
	return record, ok, nil
}

// FromGalleryURL resolves the archive download of a chaika gallery or archive page.
func (c *Chaika) FromGalleryURL(ctx context.Context, rawURL string) (*Listing, error) {
	identity, err := c.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	body, err := getPage(ctx, c.session, c.Name(), c.jsearch(identity.Token, identity.ID))
	if err != nil {
		return nil, err
	}
	archives, err := decodeChaika(body)
	if err != nil {
		return nil, apperr.MetadataFetchFail(c.Name(), err)
	}
	if len(archives) == 0 {
		return nil, apperr.MetadataFetchFail(c.Name(), fmt.Errorf("no archive behind %s", rawURL))
	}
	archive := archives[0]

	download := archive.Download
	if identity.Token == "archive" && download == "" {
		download = fmt.Sprintf("/archive/%s/download/", identity.ID)
	}
	if identity.Token == "gallery" && len(archive.Archives) > 0 {
		download = archive.Archives[0].Download
	}
	if download == "" {
		return nil, apperr.MetadataFetchFail(c.Name(), fmt.Errorf("no download link behind %s", rawURL))
	}
	base, _ := url.Parse(ChaikaSite + "/")
	link, err := base.Parse(download)
	if err != nil {
		return nil, apperr.MetadataFetchFail(c.Name(), err)
	}

	record := archive.record(rawURL)
	return &Listing{
		GalleryURL: rawURL,
		URLs:       []string{link.String()},
		Type:       DownloadArchive,
		Metadata:   record,
		Size:       humanize.Bytes(uint64(max(archive.Filesize, 0))),
		Name:       record.Title.Default + ".zip",
	}, nil
}
