// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values. A '.env' file next to
the working directory is loaded first when present (see [Load]).

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (catalog, downloader, fetchers) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Configuration Schema

// Config holds all runtime configuration for the library engine.
type Config struct {

	// Local API server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"7006"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Filesystem layout
	DataDir     string `env:"HAPPYPANDA_DATA_DIR"     envDefault:"./data"`
	DBFile      string `env:"HAPPYPANDA_DB_FILE"      envDefault:"happypanda.db"`
	TempDir     string `env:"HAPPYPANDA_TEMP_DIR"     envDefault:"./temp"`
	ThumbDir    string `env:"HAPPYPANDA_THUMB_DIR"    envDefault:"./data/thumbnails"`
	DownloadDir string `env:"HAPPYPANDA_DOWNLOAD_DIR" envDefault:"./downloads"`
	ExPropsFile string `env:"HAPPYPANDA_EXPROPS_FILE" envDefault:"./data/exprops.json"`

	// Library scanning
	MonitorPaths               []string `env:"MONITOR_PATHS"                 envSeparator:";"`
	IgnorePaths                []string `env:"IGNORE_PATHS"                  envSeparator:";"`
	IgnoreExtensions           []string `env:"IGNORE_EXTENSIONS"             envSeparator:";"`
	Languages                  []string `env:"GALLERY_LANGUAGES"             envSeparator:";"`
	OverrideSubfolderAsGallery bool     `env:"OVERRIDE_SUBFOLDER_AS_GALLERY" envDefault:"false"`
	TrashOnDelete              bool     `env:"TRASH_ON_DELETE"               envDefault:"true"`
	UnrarTool                  string   `env:"UNRAR_TOOL_PATH"`

	// Catalog tuning
	HashSampleCount int `env:"HASH_SAMPLE_COUNT" envDefault:"4"`
	LoadBatchSize   int `env:"LOAD_BATCH_SIZE"   envDefault:"500"`
	ThumbWidth      int `env:"THUMB_WIDTH"       envDefault:"145"`
	ThumbHeight     int `env:"THUMB_HEIGHT"      envDefault:"206"`

	// Outbound site traffic
	WebRequestDelay  time.Duration `env:"WEB_REQUEST_DELAY"  envDefault:"5s"`
	MetadataTimeout  time.Duration `env:"METADATA_TIMEOUT"   envDefault:"30s"`
	UserAgent        string        `env:"HTTP_USER_AGENT"    envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:115.0) Gecko/20100101 Firefox/115.0"`
	FetchAppend      bool          `env:"FETCH_APPEND"       envDefault:"true"`
	EHDownloadType   string        `env:"EH_DOWNLOAD_TYPE"   envDefault:"archive"`
	UseExHentai      bool          `env:"USE_EXHENTAI"       envDefault:"false"`
	CABundle         string        `env:"REQUESTS_CA_BUNDLE"`

	// Download pipeline
	DownloadWorkers int    `env:"DOWNLOAD_WORKERS" envDefault:"4"`
	TorrentClient   string `env:"TORRENT_CLIENT"`

	// Key-Value Cache (Redis, optional metadata cache)
	RedisURL string `env:"REDIS_URL"`

	// Object Storage (S3-compatible, optional backup upload)
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION"     envDefault:"auto"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
}

// # Configuration Loading

// Load reads an optional '.env' file and parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Values already present in the environment win over the file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if cfg.DownloadWorkers < 1 {
		cfg.DownloadWorkers = 1
	}
	if cfg.HashSampleCount < 1 {
		cfg.HashSampleCount = 1
	}

	return cfg, nil
}

// DBPath returns the absolute-or-relative location of the catalog file.
func (c *Config) DBPath() string {
	if filepath.IsAbs(c.DBFile) {
		return c.DBFile
	}
	return filepath.Join(c.DataDir, c.DBFile)
}

// RarEnabled reports whether RAR-family archives are accepted.
func (c *Config) RarEnabled() bool {
	return strings.TrimSpace(c.UnrarTool) != ""
}

// S3Enabled reports whether off-site backup upload is configured.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// EnsureDirs creates the data, temp, thumbnail and download directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.TempDir, c.ThumbDir, c.DownloadDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	return nil
}

// IsDevelopment reports whether the process is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
