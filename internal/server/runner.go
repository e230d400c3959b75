// Package server wires the acquisition pipeline together: stores,
// download clients, the job queue, the importer and the search loop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mydia/mydia/internal/config"
	"github.com/mydia/mydia/internal/download"
	"github.com/mydia/mydia/internal/events"
	"github.com/mydia/mydia/internal/importer"
	"github.com/mydia/mydia/internal/jobs"
	"github.com/mydia/mydia/internal/library"
	"github.com/mydia/mydia/internal/search"
)

// refreshInterval is how often download client states are polled.
const refreshInterval = time.Minute

// Runner owns the lifecycle of all long-running components.
type Runner struct {
	db  *sql.DB
	cfg *config.Config
	log *slog.Logger
}

func NewRunner(db *sql.DB, cfg *config.Config, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{db: db, cfg: cfg, log: log}
}

// Run builds the pipeline and blocks until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	bus := events.NewBus(events.NewLog(r.db), r.log)
	defer func() { _ = bus.Close() }()

	lib := library.NewStore(r.db)
	if err := syncLibraryPaths(lib, r.cfg.Libraries); err != nil {
		return fmt.Errorf("sync library paths: %w", err)
	}

	resolver := download.NewResolver()
	removeOnComplete := registerClients(resolver, r.cfg.Downloaders, r.log)

	downloads := download.NewStore(r.db)
	jobStore := jobs.NewStore(r.db)
	manager := download.NewManager(downloads, resolver, jobs.NewImportScheduler(jobStore), bus, r.log)

	imp := importer.New(downloads, lib, resolver, r.cfg.Import, bus, r.log)
	for name, remove := range removeOnComplete {
		imp.SetRemoveOnComplete(name, remove)
	}
	if ms := r.cfg.Notifications.MediaServer; ms != nil && ms.URL != "" {
		imp.WithNotifier(importer.NewPlexNotifier(ms.URL, ms.Token, r.log))
	}

	queue := jobs.NewRunner(jobStore, r.log)
	jobs.RegisterImportHandler(queue, imp)

	agg := search.NewAggregatorFromConfig(r.cfg.Indexers, r.log)
	searcher := search.NewSearcher(lib, agg, manager, r.cfg.Quality, r.cfg.Search, bus, r.log)

	r.log.Info("server starting",
		"indexers", len(r.cfg.Indexers),
		"libraries", len(r.cfg.Libraries),
		"search_interval", r.cfg.Search.Interval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return queue.Run(ctx) })
	g.Go(func() error { return r.refreshLoop(ctx, manager) })
	g.Go(func() error { return r.searchLoop(ctx, searcher) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// refreshLoop polls download clients so completed downloads flow into
// the import queue.
func (r *Runner) refreshLoop(ctx context.Context, manager *download.Manager) error {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := manager.Refresh(ctx); err != nil {
				r.log.Error("download refresh failed", "error", err)
			}
		}
	}
}

// searchLoop runs the automated search on the configured interval,
// once immediately at startup.
func (r *Runner) searchLoop(ctx context.Context, searcher *search.Searcher) error {
	interval := r.cfg.Search.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := searcher.RunAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.log.Error("search run failed", "error", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := searcher.RunAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.log.Error("search run failed", "error", err)
			}
		}
	}
}

// registerClients builds download clients from config. Registration
// order decides the default client; the returned map carries each
// client's remove-on-complete opt-in.
func registerClients(resolver *download.Resolver, cfg config.DownloadersConfig, log *slog.Logger) map[string]bool {
	removeOnComplete := make(map[string]bool)

	if c := cfg.Torrent; c != nil {
		client := download.NewTorrentClient(c.URL, c.Username, c.Password, c.Category, log)
		resolver.Register(download.TagTorrent, client)
		removeOnComplete[client.Name()] = c.RemoveOnComplete
	}
	if c := cfg.Usenet; c != nil {
		client := download.NewUsenetClient(c.URL, c.APIKey, c.Category, log)
		resolver.Register(download.TagUsenet, client)
		removeOnComplete[client.Name()] = c.RemoveOnComplete
	}
	if c := cfg.Blackhole; c != nil {
		resolver.Register(download.TagBlackhole, download.NewBlackholeClient(c.WatchDir, c.CompletedDir, log))
	}
	if c := cfg.HTTP; c != nil {
		resolver.Register(download.TagHTTP, download.NewHTTPClient(c.SpoolDir, log))
	}
	return removeOnComplete
}

// syncLibraryPaths mirrors the configured library roots into the
// database. Existing roots are left untouched.
func syncLibraryPaths(lib *library.Store, configured []config.LibraryConfig) error {
	for _, lc := range configured {
		p := &library.LibraryPath{
			Root:      lc.Root,
			Type:      library.LibraryType(lc.Type),
			Monitored: lc.Monitored,
		}
		err := lib.AddLibraryPath(p)
		if err != nil && !errors.Is(err, library.ErrDuplicate) {
			return err
		}
	}
	return nil
}
