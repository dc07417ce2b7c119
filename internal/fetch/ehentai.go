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
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"

	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/site"
)

var ehGalleryURL = regexp.MustCompile(`(?i)^https?://(?:g\.)?(e-hentai|exhentai)\.org/g/(\d+)/([0-9a-f]+)/?`)

// EHOptions configures [EHentai]. Empty URLs use the public endpoints.
type EHOptions struct {
	APIURL    string
	LoginURL  string
	BaseURL   string
	ExBaseURL string
	// UseEx requires a full login and downloads from exhentai.
	UseEx bool
	// DownloadType is "archive" or "torrent".
	DownloadType string
	Logger       *slog.Logger
}

// EHentai fetches from g.e-hentai.org and exhentai.org.
type EHentai struct {
	session *site.Session
	props   *site.ExProperties
	options EHOptions
	logger  *slog.Logger
}

// NewEHentai builds the fetcher. props may be nil when logins are never persisted.
func NewEHentai(session *site.Session, props *site.ExProperties, options EHOptions) *EHentai {
	if options.APIURL == "" {
		options.APIURL = "https://api.e-hentai.org/api.php"
	}
	if options.LoginURL == "" {
		options.LoginURL = "https://forums.e-hentai.org/index.php?act=Login&CODE=01"
	}
	if options.BaseURL == "" {
		options.BaseURL = "https://e-hentai.org"
	}
	if options.ExBaseURL == "" {
		options.ExBaseURL = "https://exhentai.org"
	}
	if options.DownloadType == "" {
		options.DownloadType = "archive"
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &EHentai{
		session: session,
		props:   props,
		options: options,
		logger:  options.Logger.With(slog.String("component", "fetch"), slog.String("site", site.EHen)),
	}
}

func (e *EHentai) Name() string { return site.EHen }

// ParseURL extracts gid and token from a gallery URL.
func (e *EHentai) ParseURL(rawURL string) (Identity, error) {
	match := ehGalleryURL.FindStringSubmatch(strings.TrimSpace(rawURL))
	if match == nil {
		return Identity{}, apperr.WrongURL(rawURL)
	}
	return Identity{ID: match[2], Token: strings.ToLower(match[3])}, nil
}

// # Login

// CheckLogin grades a cookie set: 2 with member id and pass hash, 1 with only
// a session id, otherwise 0.
func CheckLogin(cookies map[string]string) int {
	_, member := cookies[constants.CookieMemberID]
	_, pass := cookies[constants.CookiePassHash]
	if member && pass {
		return 2
	}
	if _, ok := cookies[constants.CookieSessionID]; ok {
		return 1
	}
	return 0
}

// Restore loads persisted cookies into the session.
func (e *EHentai) Restore() error {
	if e.props == nil {
		return nil
	}
	cookies := e.props.Get(site.EHen).Cookies
	if len(cookies) == 0 {
		return nil
	}
	return e.shareCookies(cookies)
}

func (e *EHentai) shareCookies(cookies map[string]string) error {
	for _, base := range []string{e.options.BaseURL, e.options.ExBaseURL, e.options.APIURL} {
		if err := e.session.MergeCookies(base, cookies); err != nil {
			return err
		}
	}
	return nil
}

// LoginLevel grades the cookies the session would send to exhentai.
func (e *EHentai) LoginLevel() int {
	return CheckLogin(e.session.Cookies(e.options.ExBaseURL))
}

/*
Login signs in through the forum and stores the resulting cookies.

Returns a WRONG_LOGIN error when the forum does not hand out both the member
id and the pass hash.
*/
func (e *EHentai) Login(ctx context.Context, username, password string) error {
	form := url.Values{
		"UserName":   {username},
		"PassWord":   {password},
		"b":          {"d"},
		"bt":         {"1-1"},
		"CookieDate": {"1"},
	}
	if _, _, err := postForm(ctx, e.session, e.Name(), e.options.LoginURL, form); err != nil {
		return err
	}

	cookies := e.session.Cookies(e.options.LoginURL)
	if CheckLogin(cookies) < 2 {
		e.session.Notifier().Error(e.Name(), "Failed to log in with the provided credentials")
		return apperr.WrongLogin(e.Name())
	}
	if err := e.shareCookies(cookies); err != nil {
		return err
	}
	e.logger.Info("site_login_succeeded", slog.String("username", username))

	if e.props == nil {
		return nil
	}
	return e.props.Set(site.EHen, site.Credentials{Cookies: cookies, Username: username, Password: password})
}

// # Metadata

type ehGData struct {
	Gid         int      `json:"gid"`
	Token       string   `json:"token"`
	ArchiverKey string   `json:"archiver_key"`
	Title       string   `json:"title"`
	TitleJpn    string   `json:"title_jpn"`
	Category    string   `json:"category"`
	Thumb       string   `json:"thumb"`
	Posted      string   `json:"posted"`
	Filecount   string   `json:"filecount"`
	Filesize    int64    `json:"filesize"`
	Tags        []string `json:"tags"`
	Error       string   `json:"error,omitempty"`
}

type ehResponse struct {
	GMetadata []ehGData `json:"gmetadata"`
}

func (data ehGData) record(requested string) Record {
	posted, _ := strconv.ParseInt(data.Posted, 10, 64)
	return Record{
		Title:   Title{Default: CleanTitle(data.Title), Japanese: CleanTitle(data.TitleJpn)},
		Type:    gallery.ParseType(data.Category),
		PubDate: Posted(posted),
		Tags:    SplitTags(data.Tags),
		URL:     requested,
	}
}

/*
GetMetadata posts gdata requests of at most 25 galleries each.

URLs that are not gallery URLs are skipped. With UseEx set, a full login is
required first.
*/
func (e *EHentai) GetMetadata(ctx context.Context, urls []string) ([]Raw, error) {
	if e.options.UseEx && e.LoginLevel() < 2 {
		return nil, apperr.NeedLogin(e.Name())
	}

	type entry struct {
		identity Identity
		url      string
	}
	entries := make([]entry, 0, len(urls))
	for _, u := range urls {
		identity, err := e.ParseURL(u)
		if err != nil {
			e.logger.Warn("fetch_url_skipped", slog.String("url", u))
			continue
		}
		entries = append(entries, entry{identity: identity, url: u})
	}

	var raws []Raw
	for start := 0; start < len(entries); start += constants.EHBatchLimit {
		batch := entries[start:min(start+constants.EHBatchLimit, len(entries))]

		gidlist := make([][]any, 0, len(batch))
		ids := make(map[string]string, len(batch))
		for _, item := range batch {
			gid, _ := strconv.Atoi(item.identity.ID)
			gidlist = append(gidlist, []any{gid, item.identity.Token})
			ids[item.identity.ID] = item.url
		}

		body, err := postJSON(ctx, e.session, e.Name(), e.options.APIURL, map[string]any{
			"method":    "gdata",
			"gidlist":   gidlist,
			"namespace": 1,
		})
		if err != nil {
			return raws, err
		}
		raws = append(raws, Raw{Body: body, IDs: ids})
		e.logger.Debug("fetch_batch_done", slog.Int("galleries", len(batch)))
	}
	return raws, nil
}

// ParseMetadata decodes one gdata response.
func (e *EHentai) ParseMetadata(raw Raw) (map[string]Record, error) {
	var response ehResponse
	if err := json.Unmarshal(raw.Body, &response); err != nil {
		return nil, apperr.MetadataFetchFail(e.Name(), err)
	}
	records := make(map[string]Record, len(response.GMetadata))
	for _, data := range response.GMetadata {
		requested, ok := raw.IDs[strconv.Itoa(data.Gid)]
		if !ok {
			continue
		}
		if data.Error != "" {
			e.logger.Warn("fetch_gallery_error", slog.String("url", requested), slog.String("error", data.Error))
			continue
		}
		records[requested] = data.record(requested)
	}
	return records, nil
}

func (e *EHentai) gdata(ctx context.Context, rawURL string) (ehGData, error) {
	raws, err := e.GetMetadata(ctx, []string{rawURL})
	if err != nil {
		return ehGData{}, err
	}
	if len(raws) == 0 {
		return ehGData{}, apperr.WrongURL(rawURL)
	}
	var response ehResponse
	if err := json.Unmarshal(raws[0].Body, &response); err != nil {
		return ehGData{}, apperr.MetadataFetchFail(e.Name(), err)
	}
	if len(response.GMetadata) == 0 || response.GMetadata[0].Error != "" {
		return ehGData{}, apperr.MetadataFetchFail(e.Name(), fmt.Errorf("no metadata for %s", rawURL))
	}
	return response.GMetadata[0], nil
}

// # Downloads

var ehRedirect = regexp.MustCompile(`document\.location\s*=\s*"([^"]+)"`)

/*
FromGalleryURL resolves the archive or torrent of one gallery, depending on
the configured download type.
*/
func (e *EHentai) FromGalleryURL(ctx context.Context, rawURL string) (*Listing, error) {
	identity, err := e.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	data, err := e.gdata(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	record := data.record(rawURL)
	listing := &Listing{
		GalleryURL: rawURL,
		ThumbURL:   data.Thumb,
		Metadata:   record,
		Size:       humanize.Bytes(uint64(max(data.Filesize, 0))),
		Name:       record.Title.Default,
	}

	base := e.options.BaseURL
	if strings.Contains(strings.ToLower(rawURL), "exhentai") {
		base = e.options.ExBaseURL
	}

	if e.options.DownloadType == "torrent" {
		link, err := e.torrentLink(ctx, base, identity)
		if err != nil {
			return nil, err
		}
		listing.Type = DownloadTorrent
		listing.URLs = []string{link}
		listing.Name += ".torrent"
		return listing, nil
	}

	link, err := e.archiveLink(ctx, base, identity, data.ArchiverKey)
	if err != nil {
		return nil, err
	}
	listing.Type = DownloadArchive
	listing.URLs = []string{link}
	listing.Name += ".zip"
	return listing, nil
}

// archiveLink asks the archiver for the original archive and returns its URL.
func (e *EHentai) archiveLink(ctx context.Context, base string, identity Identity, key string) (string, error) {
	archiver := fmt.Sprintf("%s/archiver.php?gid=%s&token=%s&or=%s", base, identity.ID, identity.Token, url.QueryEscape(key))
	form := url.Values{"dltype": {"org"}, "dlcheck": {"Download Original Archive"}}

	resp, body, err := postForm(ctx, e.session, e.Name(), archiver, form)
	if err != nil {
		return "", err
	}
	ok, err := e.session.HandleError(ctx, resp, body)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.MetadataFetchFail(e.Name(), fmt.Errorf("archiver response rejected"))
	}

	link := ""
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		link, _ = doc.Find("#continue a").First().Attr("href")
	}
	if link == "" {
		if match := ehRedirect.FindSubmatch(body); match != nil {
			link = string(match[1])
		}
	}
	if link == "" {
		return "", apperr.MetadataFetchFail(e.Name(), fmt.Errorf("archiver returned no link for gallery %s", identity.ID))
	}
	link = strings.TrimSuffix(link, "?autostart=1")
	return link + "?start=1", nil
}

// torrentLink returns the first torrent offered for a gallery.
func (e *EHentai) torrentLink(ctx context.Context, base string, identity Identity) (string, error) {
	page := fmt.Sprintf("%s/gallerytorrents.php?gid=%s&t=%s", base, identity.ID, identity.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return "", apperr.WrongURL(page)
	}
	body, err := fetchChecked(ctx, e.session, e.Name(), req)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", apperr.MetadataFetchFail(e.Name(), err)
	}

	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, anchor *goquery.Selection) bool {
		href, _ := anchor.Attr("href")
		if strings.Contains(href, ".torrent") {
			link = href
			return false
		}
		return true
	})
	if link == "" {
		return "", apperr.MetadataFetchFail(e.Name(), fmt.Errorf("no torrent for gallery %s", identity.ID))
	}
	resolved, err := req.URL.Parse(link)
	if err != nil {
		return "", apperr.MetadataFetchFail(e.Name(), err)
	}
	return resolved.String(), nil
}
