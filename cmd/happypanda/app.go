// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/taibuivan/happypanda/internal/archive"
	"github.com/taibuivan/happypanda/internal/catalog"
	"github.com/taibuivan/happypanda/internal/fetch"
	"github.com/taibuivan/happypanda/internal/hasher"
	"github.com/taibuivan/happypanda/internal/platform/config"
	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/notify"
	"github.com/taibuivan/happypanda/internal/platform/objstore"
	redisstore "github.com/taibuivan/happypanda/internal/platform/redis"
	"github.com/taibuivan/happypanda/internal/scanner"
	"github.com/taibuivan/happypanda/internal/site"
)

// metadataCacheTTL bounds how long fetched records are reused.
const metadataCacheTTL = 24 * time.Hour

// app holds every long-lived component of one process.
type app struct {
	cfg   *config.Config
	log   *slog.Logger
	flags flags

	notifier *notify.Notifier
	temp     *scanner.TempIgnore
	opener   archive.Opener
	catalog  *catalog.Catalog
	scanner  *scanner.Scanner

	session  *site.Session
	props    *site.ExProperties
	ehentai  *fetch.EHentai
	chaika   *fetch.Chaika
	registry *fetch.Registry
	cache    fetch.Cache

	redis *redisstore.Store
	store *objstore.Store
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger, opts flags) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      log,
		flags:    opts,
		notifier: notify.New(64, log),
		temp:     scanner.NewTempIgnore(),
		opener:   archive.Opener{TempDir: cfg.TempDir, UnrarTool: cfg.UnrarTool},
	}
	go a.drainNotices(ctx)

	// ── Object storage (optional) ─────────────────────────────────────────
	if cfg.S3Enabled() {
		store, err := objstore.New(ctx, objstore.Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Prefix:    constants.AppName,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		a.store = store
	}

	// ── Catalog ───────────────────────────────────────────────────────────
	dbPath := cfg.DBPath()
	if opts.Test {
		dbPath = filepath.Join(cfg.TempDir, "test-"+constants.AppName+".db")
		_ = os.Remove(dbPath)
	}
	options := catalog.Options{
		Path:     dbPath,
		DataDir:  cfg.DataDir,
		TrashDir: filepath.Join(cfg.DataDir, "trash"),
		Hasher:   hasher.New(a.opener, cfg.HashSampleCount),
		Thumbs:   hasher.ThumbOptions{Dir: cfg.ThumbDir, Width: cfg.ThumbWidth, Height: cfg.ThumbHeight},
		Confirm:  stdinConfirmer{in: os.Stdin, out: os.Stderr},
		Logger:   log,
	}
	if a.store != nil {
		options.Backup = a.store
	}
	c, err := catalog.Open(ctx, options)
	if err != nil {
		return nil, err
	}
	a.catalog = c

	a.scanner = scanner.New(a.opener, a.temp, scanner.Options{
		Ignore:                     scanner.IgnoreRules{Paths: cfg.IgnorePaths, Extensions: cfg.IgnoreExtensions},
		Languages:                  cfg.Languages,
		OverrideSubfolderAsGallery: cfg.OverrideSubfolderAsGallery,
		Logger:                     log,
	})

	if opts.Test {
		if err := seedFixtures(ctx, a.scanner, c, filepath.Join(cfg.TempDir, "fixtures")); err != nil {
			a.Close()
			return nil, err
		}
	}

	// ── Sites ─────────────────────────────────────────────────────────────
	session, err := site.NewSession(site.Options{
		Delay:     cfg.WebRequestDelay,
		Timeout:   cfg.MetadataTimeout,
		UserAgent: cfg.UserAgent,
		CABundle:  cfg.CABundle,
		Notifier:  a.notifier,
		Logger:    log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.session = session

	props, err := site.LoadExProperties(cfg.ExPropsFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.props = props

	a.ehentai = fetch.NewEHentai(session, props, fetch.EHOptions{
		UseEx:        cfg.UseExHentai,
		DownloadType: cfg.EHDownloadType,
		Logger:       log,
	})
	if err := a.ehentai.Restore(); err != nil {
		log.Warn("login_restore_failed", slog.String("site", site.EHen), slog.Any("error", err))
	}
	a.chaika = fetch.NewChaika(session, "", log)
	a.registry = fetch.NewRegistry(
		a.ehentai,
		a.chaika,
		fetch.NewNHentai(session, fetch.NHentaiOptions{Logger: log}),
		fetch.NewASMHentai(session, "", log),
	)

	// ── Metadata cache ────────────────────────────────────────────────────
	a.cache = fetch.NewMemoryCache(metadataCacheTTL)
	if cfg.RedisURL != "" {
		shared, err := redisstore.NewStore(ctx, cfg.RedisURL, constants.RedisKeyPrefix, log)
		if err != nil {
			log.Warn("redis_unavailable", slog.Any("error", err))
		} else {
			a.redis = shared
			a.cache = fetch.NewRedisCache(shared, metadataCacheTTL)
		}
	}

	return a, nil
}

// Close releases the catalog and cache and removes temporary files.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("redis_close_failed", slog.Any("error", err))
		}
	}
	if a.catalog != nil {
		if err := a.catalog.Close(); err != nil {
			a.log.Error("catalog_close_failed", slog.Any("error", err))
		}
	}
	cleanTemp(a.cfg.TempDir, a.log)
}

// drainNotices logs user-facing notices; there is no GUI to show them.
func (a *app) drainNotices(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case notice := <-a.notifier.Notices():
			a.log.Info("notice", slog.String("level", string(notice.Level)), slog.String("source", notice.Source), slog.String("message", notice.Message))
		}
	}
}

// cleanTemp empties the temp directory, keeping the directory itself.
func cleanTemp(dir string, log *slog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			log.Warn("temp_cleanup_failed", slog.String("path", entry.Name()), slog.Any("error", err))
		}
	}
}

// # Adapters

// ingester adds finished downloads to the catalog with the metadata that came with them.
type ingester struct {
	scanner *scanner.Scanner
	catalog *catalog.Catalog
	cfg     *config.Config
}

func (i ingester) Ingest(ctx context.Context, path string, record fetch.Record) error {
	galleries, err := i.scanner.IngestPath(ctx, i.catalog, path)
	if err != nil {
		return err
	}
	if record.Title.Default == "" && record.URL == "" {
		return nil
	}
	var errs []error
	for _, g := range galleries {
		fetch.ApplyMetadata(g, record, i.cfg.FetchAppend, i.cfg.Languages)
		errs = append(errs, i.catalog.SaveMetadata(ctx, g))
	}
	return errors.Join(errs...)
}

// stdinConfirmer asks catalog recovery questions on the terminal.
type stdinConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (s stdinConfirmer) Confirm(_ context.Context, prompt catalog.Prompt, cause error) bool {
	if cause != nil {
		fmt.Fprintf(s.out, "%v\n", cause)
	}
	question := "The database could not be opened. Replace it with an empty one?"
	if prompt == catalog.PromptUpgrade {
		question = "The database is from an older version. Back it up and upgrade?"
	}
	fmt.Fprintf(s.out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(s.in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
