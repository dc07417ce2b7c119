// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/taibuivan/happypanda/internal/catalog"
	"github.com/taibuivan/happypanda/internal/core/gallery"
	"github.com/taibuivan/happypanda/internal/dedup"
	"github.com/taibuivan/happypanda/internal/download"
	"github.com/taibuivan/happypanda/internal/fetch"
	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/ctxutil"
	"github.com/taibuivan/happypanda/internal/site"
	"github.com/taibuivan/happypanda/internal/transfer"
	"github.com/taibuivan/happypanda/pkg/uuidv7"
)

var (
	errUsage   = errors.New("usage")
	errRestart = errors.New("restart requested")
)

// backgroundCommands yield the catalog to the local API while they run.
var backgroundCommands = map[string]bool{"fetch": true, "dedup": true, "rebuild": true}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	ctx = ctxutil.WithJobID(ctx, command+"-"+uuidv7.New())
	if backgroundCommands[command] {
		ctx = ctxutil.WithPriority(ctx, constants.BackgroundPriority)
	}

	switch command {
	case "scan":
		return a.scan(ctx, args)
	case "fetch":
		return a.fetch(ctx)
	case "download":
		return a.download(ctx, args)
	case "export":
		return a.export(ctx, args)
	case "import":
		return a.importFile(ctx, args)
	case "dedup":
		return a.dedup(ctx, args)
	case "rebuild":
		return a.rebuild(ctx, args)
	case "serve":
		return a.serve(ctx)
	case "login":
		return a.login(ctx, args)
	case "list":
		return a.lists(ctx, args)
	}
	return errUsage
}

func (a *app) scan(ctx context.Context, roots []string) error {
	if len(roots) == 0 {
		roots = a.cfg.MonitorPaths
	}
	if len(roots) == 0 {
		return errUsage
	}

	var errs []error
	for _, root := range roots {
		report, err := a.scanner.Ingest(ctx, a.catalog, root)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		errs = append(errs, err)
		fmt.Printf("%s: %d added, %d skipped, %d failed\n", root, len(report.Added), report.Skipped, report.Failed)
	}
	return errors.Join(errs...)
}

func (a *app) fetch(ctx context.Context) error {
	runner := fetch.NewRunner(a.catalog, a.registry, fetch.RunnerOptions{
		Append:    a.cfg.FetchAppend,
		Languages: a.cfg.Languages,
		Cache:     a.cache,
		Chaika:    a.chaika,
		Notifier:  a.notifier,
		Logger:    a.log,
	})
	report, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d updated, %d not found, %d failed, %d skipped, %d list members pruned\n", report.Updated, report.NotFound, report.Failed, report.Skipped, report.Pruned)
	return nil
}

func (a *app) newManager() *download.Manager {
	return download.NewManager(download.Options{
		Dir:           a.cfg.DownloadDir,
		Workers:       a.cfg.DownloadWorkers,
		Session:       a.session,
		Registry:      a.registry,
		Temp:          a.temp,
		Ingester:      ingester{scanner: a.scanner, catalog: a.catalog, cfg: a.cfg},
		TorrentClient: a.cfg.TorrentClient,
		Notifier:      a.notifier,
		NoRecover:     a.flags.Exceptions,
		Logger:        a.log,
	})
}

// download queues every URL and waits for all of them to finish.
func (a *app) download(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("download", pflag.ContinueOnError)
	to := fs.String("to", "", "Download into this folder instead of the download directory")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	urls := fs.Args()
	if len(urls) == 0 {
		return errUsage
	}

	ctx, cancel := context.WithCancel(ctx)
	manager := a.newManager()
	events, unsubscribe := manager.Subscribe()
	defer unsubscribe()
	manager.Start(ctx)
	defer func() {
		cancel()
		manager.Wait()
	}()

	pending := make(map[string]bool)
	var errs []error
	for _, rawURL := range urls {
		item, err := manager.AddIn(ctx, rawURL, *to)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", rawURL, err))
			continue
		}
		pending[item.ID] = true
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-events:
			if event.Kind != download.EventItemFinished || !pending[event.Item.ID] {
				continue
			}
			delete(pending, event.Item.ID)
			if event.Item.Error != "" {
				errs = append(errs, fmt.Errorf("%s: %s", event.Item.GalleryURL, event.Item.Error))
				continue
			}
			fmt.Printf("%s -> %s\n", event.Item.GalleryURL, event.Item.File)
		}
	}
	return errors.Join(errs...)
}

func (a *app) transferService() *transfer.Service {
	var uploader transfer.Uploader
	if a.store != nil {
		uploader = a.store
	}
	return transfer.NewService(a.catalog, uploader, a.log)
}

func (a *app) export(ctx context.Context, args []string) error {
	dir := a.cfg.DataDir
	if len(args) > 0 {
		dir = args[0]
	}
	file, err := a.transferService().Export(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Println(file)
	return nil
}

func (a *app) importFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	report, err := a.transferService().Import(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%d matched, %d skipped, %d lists created\n", report.Matched, report.Skipped, report.Lists)
	return nil
}

func (a *app) dedup(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("dedup", pflag.ContinueOnError)
	mark := fs.Bool("mark", false, "Move duplicates to the duplicate view")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	galleries, err := a.catalog.LoadAll(ctx)
	if err != nil {
		return err
	}
	report, err := dedup.New(a.catalog, dedup.Options{MarkDuplicates: *mark, Logger: a.log}).Find(ctx, galleries)
	if err != nil {
		return err
	}
	for _, pair := range report.Pairs {
		fmt.Printf("%d %q duplicates %d %q\n", pair.Duplicate.ID, pair.Duplicate.Path, pair.Original.ID, pair.Original.Path)
	}
	fmt.Printf("%d duplicates, %d unreadable\n", len(report.Pairs), report.Failed)
	return nil
}

func (a *app) rebuild(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("rebuild", pflag.ContinueOnError)
	noThumbs := fs.Bool("no-thumbs", false, "Keep existing thumbnails")
	noHashes := fs.Bool("no-hashes", false, "Keep cached page hashes")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	ids, err := parseIDs(fs.Args())
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	count, err := a.catalog.Rebuild(ctx, ids, catalog.RebuildOptions{Thumbnails: !*noThumbs, Hashes: !*noHashes})
	fmt.Printf("%d galleries rebuilt\n", count)
	if ctx.Err() != nil {
		return errors.Join(err, ctx.Err())
	}

	galleries, loadErr := a.catalog.LoadAll(ctx)
	if loadErr != nil {
		return errors.Join(err, loadErr)
	}
	pruned, pruneErr := a.catalog.PruneLists(ctx, galleries)
	fmt.Printf("%d list members pruned\n", pruned)
	return errors.Join(err, pruneErr)
}

/*
lists manages gallery lists:

	list
	list create NAME [--filter F] [--enforce] [--regex] [--case] [--strict] [ID...]
	list add LIST GALLERY...
	list remove LIST GALLERY...
	list delete LIST
*/
func (a *app) lists(ctx context.Context, args []string) error {
	if len(args) == 0 {
		lists, err := a.catalog.Lists(ctx)
		if err != nil {
			return err
		}
		for _, list := range lists {
			fmt.Printf("%d\t%s\t%d galleries\tfilter=%q enforce=%t\n", list.ID, list.Name, len(list.Galleries), list.Filter, list.Enforce)
		}
		return nil
	}

	action, rest := args[0], args[1:]
	switch action {
	case "create":
		return a.createList(ctx, rest)
	case "add", "remove":
		ids, err := parseIDs(rest)
		if err != nil || len(ids) < 2 {
			return errUsage
		}
		return a.changeMembers(ctx, action, ids[0], ids[1:])
	case "delete":
		ids, err := parseIDs(rest)
		if err != nil || len(ids) != 1 {
			return errUsage
		}
		return a.catalog.DeleteList(ctx, ids[0])
	}
	return errUsage
}

func (a *app) createList(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet("list create", pflag.ContinueOnError)
	list := &gallery.List{}
	fs.StringVar(&list.Filter, "filter", "", "Search filter of the list")
	fs.BoolVar(&list.Enforce, "enforce", false, "Only keep galleries matching the filter")
	fs.BoolVar(&list.Regex, "regex", false, "Treat filter terms as regular expressions")
	fs.BoolVar(&list.Case, "case", false, "Match case-sensitively")
	fs.BoolVar(&list.Strict, "strict", false, "Match whole values only")
	if err := fs.Parse(args); err != nil || fs.NArg() == 0 {
		return errUsage
	}

	list.Name = fs.Arg(0)
	ids, err := parseIDs(fs.Args()[1:])
	if err != nil {
		return errUsage
	}
	list.Galleries = ids
	if err := a.catalog.CreateList(ctx, list); err != nil {
		return err
	}
	fmt.Printf("list %d created with %d galleries\n", list.ID, len(list.Galleries))
	return nil
}

func (a *app) changeMembers(ctx context.Context, action string, listID int64, galleryIDs []int64) error {
	var errs []error
	for _, id := range galleryIDs {
		var err error
		if action == "remove" {
			err = a.catalog.RemoveFromList(ctx, listID, id)
		} else {
			var g *gallery.Gallery
			if g, err = a.catalog.Get(ctx, id); err == nil {
				err = a.catalog.AddToList(ctx, listID, g)
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("gallery %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func parseIDs(raw []string) ([]int64, error) {
	ids := make([]int64, 0, len(raw))
	for _, value := range raw {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q", value)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// login signs in to a site with credentials read from the terminal.
func (a *app) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if args[0] != site.EHen {
		return fmt.Errorf("login: %s needs no login", args[0])
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Fprint(os.Stderr, "username: ")
	username, _ := reader.ReadString('\n')
	fmt.Fprint(os.Stderr, "password: ")
	password, _ := reader.ReadString('\n')

	if err := a.ehentai.Login(ctx, strings.TrimSpace(username), strings.TrimSpace(password)); err != nil {
		return err
	}
	a.log.Info("login_succeeded", slog.String("site", site.EHen), slog.Int("level", a.ehentai.LoginLevel()))
	return nil
}
