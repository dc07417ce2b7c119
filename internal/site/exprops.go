// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package site

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Site keys used in [ExProperties].
const (
	EHen      = "ehen"
	Chaika    = "chaika"
	NHentai   = "nhentai"
	ASMHentai = "asmhentai"
)

// Credentials are the persisted login state of one site.
type Credentials struct {
	Cookies  map[string]string `json:"cookies,omitempty"`
	Username string            `json:"username,omitempty"`
	Password string            `json:"password,omitempty"`
}

/*
ExProperties is the per-site credential store, persisted as one JSON file.

Reads are served from memory; every [ExProperties.Set] rewrites the file.
*/
type ExProperties struct {
	path  string
	mu    sync.RWMutex
	sites map[string]Credentials
}

// LoadExProperties reads path. A missing file yields an empty store.
func LoadExProperties(path string) (*ExProperties, error) {
	props := &ExProperties{path: path, sites: make(map[string]Credentials)}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return props, nil
	}
	if err != nil {
		return nil, fmt.Errorf("site: read exprops: %w", err)
	}
	if len(data) == 0 {
		return props, nil
	}
	if err := json.Unmarshal(data, &props.sites); err != nil {
		return nil, fmt.Errorf("site: decode exprops: %w", err)
	}
	return props, nil
}

// Get returns a copy of the stored credentials for site.
func (p *ExProperties) Get(site string) Credentials {
	p.mu.RLock()
	defer p.mu.RUnlock()
	creds := p.sites[site]
	cookies := make(map[string]string, len(creds.Cookies))
	for name, value := range creds.Cookies {
		cookies[name] = value
	}
	creds.Cookies = cookies
	return creds
}

// Set replaces the credentials of site and saves the file.
func (p *ExProperties) Set(site string, creds Credentials) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sites[site] = creds
	return p.saveLocked()
}

// MergeCookies adds cookies to the stored ones of site and saves the file.
func (p *ExProperties) MergeCookies(site string, cookies map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	creds := p.sites[site]
	if creds.Cookies == nil {
		creds.Cookies = make(map[string]string, len(cookies))
	}
	for name, value := range cookies {
		creds.Cookies[name] = value
	}
	p.sites[site] = creds
	return p.saveLocked()
}

func (p *ExProperties) saveLocked() error {
	if p.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(p.sites, "", "  ")
	if err != nil {
		return fmt.Errorf("site: encode exprops: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("site: exprops dir: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("site: write exprops: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("site: replace exprops: %w", err)
	}
	return nil
}
