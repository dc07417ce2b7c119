// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package fetch turns gallery URLs from supported sites into canonical metadata
and download listings.

Architecture:

  - Fetcher: One implementation per site (EH/EX, chaika, nhentai, asmhentai).
  - Record: The canonical metadata shape every site is normalized to.
  - Registry: Routes a URL to the fetcher that owns it.
  - Cache: Optional memory or Redis cache of fetched records.
  - Runner: Fills in galleries the catalog has not tried to fetch yet.

Every request goes through the shared [site.Session], so fetchers never overlap
and always honour the inter-request delay.
*/
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/taibuivan/happypanda/internal/platform/apperr"
	"github.com/taibuivan/happypanda/internal/site"
)

// Identity is what a site URL resolves to. Token is empty for sites without one.
type Identity struct {
	ID    string
	Token string
}

// Raw is one undecoded site response. IDs maps site gallery ids to the URLs
// they were requested for.
type Raw struct {
	Body []byte
	IDs  map[string]string
}

// DownloadType says how a listing is fetched and what happens after.
type DownloadType int

const (
	DownloadArchive DownloadType = iota + 1
	DownloadTorrent
	DownloadOther
)

func (t DownloadType) String() string {
	switch t {
	case DownloadArchive:
		return "archive"
	case DownloadTorrent:
		return "torrent"
	case DownloadOther:
		return "other"
	}
	return "unknown"
}

// Listing describes what to download for one gallery URL.
//
// URLs holds one entry for archives and torrents and one per page for image sets.
type Listing struct {
	GalleryURL string       `json:"gallery_url"`
	URLs       []string     `json:"urls"`
	Type       DownloadType `json:"type"`
	ThumbURL   string       `json:"thumb_url,omitempty"`
	Metadata   Record       `json:"metadata"`
	Size       string       `json:"size,omitempty"`
	Cost       string       `json:"cost,omitempty"`
	Name       string       `json:"name,omitempty"`
}

// ImageSet reports whether the listing downloads page by page.
func (l *Listing) ImageSet() bool { return len(l.URLs) > 1 || l.Type == DownloadOther }

// Fetcher is one supported site.
type Fetcher interface {
	// Name is the site key, also used in ExProperties.
	Name() string
	// ParseURL validates url and extracts the gallery identity.
	ParseURL(url string) (Identity, error)
	// GetMetadata requests metadata for urls, batched as the site allows.
	GetMetadata(ctx context.Context, urls []string) ([]Raw, error)
	// ParseMetadata canonicalizes one response, keyed by requested URL.
	ParseMetadata(raw Raw) (map[string]Record, error)
	// FromGalleryURL resolves what to download for one gallery.
	FromGalleryURL(ctx context.Context, url string) (*Listing, error)
}

// Metadata runs GetMetadata and ParseMetadata for urls on f. When a request
// fails, the records of the responses received before it are still returned.
func Metadata(ctx context.Context, f Fetcher, urls []string) (map[string]Record, error) {
	raws, fetchErr := f.GetMetadata(ctx, urls)
	records := make(map[string]Record, len(urls))
	for _, raw := range raws {
		parsed, err := f.ParseMetadata(raw)
		if err != nil {
			return records, errors.Join(fetchErr, err)
		}
		for u, record := range parsed {
			records[u] = record
		}
	}
	return records, fetchErr
}

// # Registry

// Registry routes URLs to fetchers in registration order.
type Registry struct {
	fetchers []Fetcher
}

// NewRegistry wraps fetchers.
func NewRegistry(fetchers ...Fetcher) *Registry {
	return &Registry{fetchers: fetchers}
}

// For returns the fetcher owning url, or a WRONG_URL error.
func (r *Registry) For(url string) (Fetcher, error) {
	for _, f := range r.fetchers {
		if _, err := f.ParseURL(url); err == nil {
			return f, nil
		}
	}
	return nil, apperr.WrongURL(url)
}

// Named returns the fetcher registered under name.
func (r *Registry) Named(name string) (Fetcher, bool) {
	for _, f := range r.fetchers {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// Fetchers returns every registered fetcher.
func (r *Registry) Fetchers() []Fetcher { return r.fetchers }

// # Request Helpers

// fetchChecked sends req through the session and grades the response.
func fetchChecked(ctx context.Context, session *site.Session, name string, req *http.Request) ([]byte, error) {
	resp, body, err := session.Fetch(req)
	if err != nil {
		return nil, apperr.MetadataFetchFail(name, err)
	}
	ok, err := session.HandleError(ctx, resp, body)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.MetadataFetchFail(name, fmt.Errorf("response rejected"))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apperr.MetadataFetchFail(name, fmt.Errorf("status %d from %s", resp.StatusCode, req.URL))
	}
	return body, nil
}

func getPage(ctx context.Context, session *site.Session, name, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.WrongURL(rawURL)
	}
	return fetchChecked(ctx, session, name, req)
}

func postJSON(ctx context.Context, session *site.Session, name, rawURL string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("fetch: encode %s request: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.WrongURL(rawURL)
	}
	req.Header.Set("Content-Type", "application/json")
	return fetchChecked(ctx, session, name, req)
}

func postForm(ctx context.Context, session *site.Session, name, rawURL string, form url.Values) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, apperr.WrongURL(rawURL)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, body, err := session.Fetch(req)
	if err != nil {
		return nil, nil, apperr.MetadataFetchFail(name, err)
	}
	return resp, body, nil
}
