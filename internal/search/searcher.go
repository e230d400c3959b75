package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mydia/mydia/internal/config"
	"github.com/mydia/mydia/internal/download"
	"github.com/mydia/mydia/internal/events"
	"github.com/mydia/mydia/internal/library"
	"github.com/mydia/mydia/pkg/release"
)

// Initiator hands a selected release to the download orchestrator.
type Initiator interface {
	Initiate(ctx context.Context, req download.Request) (*download.Download, error)
}

// Searcher runs the automated search loop: enumerate missing media,
// query indexers, rank candidates and initiate downloads, all under
// the search budget.
type Searcher struct {
	store     *library.Store
	agg       *Aggregator
	downloads Initiator
	quality   config.QualityConfig
	cfg       config.SearchConfig
	bus       *events.Bus
	log       *slog.Logger
}

func NewSearcher(store *library.Store, agg *Aggregator, downloads Initiator,
	quality config.QualityConfig, cfg config.SearchConfig, bus *events.Bus, log *slog.Logger) *Searcher {
	if log == nil {
		log = slog.Default()
	}
	return &Searcher{
		store:     store,
		agg:       agg,
		downloads: downloads,
		quality:   quality,
		cfg:       cfg,
		bus:       bus,
		log:       log.With("component", "search"),
	}
}

// RunAll searches for every monitored media item missing files.
// Failures are isolated per item: one broken show never aborts the run.
func (s *Searcher) RunAll(ctx context.Context) error {
	if s.agg.Empty() {
		s.log.Warn("no indexers configured, skipping search run")
		return nil
	}

	monitored := true
	items, err := s.store.ListMediaItems(library.MediaItemFilter{Monitored: &monitored})
	if err != nil {
		return fmt.Errorf("list monitored items: %w", err)
	}

	budget := NewBudget(s.cfg.MaxPerRun, s.cfg.MaxPerShow, s.cfg.MaxPerSeason, s.cfg.SearchDelay)
	for _, item := range items {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		budget.NextShow()

		var err error
		switch item.Type {
		case library.MediaTypeMovie:
			err = s.searchMovie(ctx, item, budget)
		case library.MediaTypeTVShow:
			err = s.searchShow(ctx, item, budget)
		}
		if err != nil {
			s.log.Error("search failed", "media_item_id", item.ID, "title", item.Title, "error", err)
		}
	}

	s.log.Info("search run finished", "processed", budget.Processed(), "skipped", budget.Skipped())
	return nil
}

// profileFor resolves an item's quality profile, falling back to the
// configured default. Returns nil when nothing is configured.
func (s *Searcher) profileFor(item *library.MediaItem) *Profile {
	name := item.QualityProfile
	if name == "" {
		name = s.quality.Default
	}
	if p, ok := s.quality.Profiles[name]; ok {
		return ProfileFromConfig(p)
	}
	return nil
}

func (s *Searcher) searchMovie(ctx context.Context, item *library.MediaItem, budget *Budget) error {
	files, err := s.store.ListMediaFilesForItem(item.ID)
	if err != nil {
		return err
	}
	if len(files) > 0 {
		return nil
	}
	if budget.Exhausted() {
		budget.RecordSkipped()
		return nil
	}

	query := item.Title
	if item.Year != nil {
		query = fmt.Sprintf("%s %d", item.Title, *item.Year)
	}
	query = release.NormalizeSearchQuery(query)

	releases, err := s.agg.SearchAll(ctx, query)
	budget.RecordSearch(ctx)
	if err != nil {
		return fmt.Errorf("search indexers: %w", err)
	}
	if len(releases) == 0 {
		s.bus.Publish(ctx, events.NewSearchNoResults(events.EntityMediaItem, item.ID, query))
		return nil
	}

	opts := Options{
		Profile:    s.profileFor(item),
		MinSeeders: s.cfg.MinSeeders,
		Query:      item.Title,
		MediaType:  "movie",
	}
	best, rejections := SelectBest(releases, opts)
	if best == nil {
		s.bus.Publish(ctx, events.NewSearchAllFiltered(events.EntityMediaItem, item.ID, query, len(releases), rejections))
		return nil
	}

	return s.grab(ctx, best, download.Request{
		Title:       best.Release.Title,
		SourceURL:   best.Release.DownloadURL,
		Indexer:     best.Release.Indexer,
		ClientTag:   best.Release.Protocol,
		MediaItemID: &item.ID,
	}, events.EntityMediaItem, item.ID)
}

func (s *Searcher) searchShow(ctx context.Context, item *library.MediaItem, budget *Budget) error {
	missing, err := s.store.ListMissingEpisodes(item.ID)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	// Group by season, preserving the newest-first ordering within and
	// across seasons.
	var seasonOrder []int
	bySeason := make(map[int][]*library.Episode)
	for _, ep := range missing {
		if _, ok := bySeason[ep.Season]; !ok {
			seasonOrder = append(seasonOrder, ep.Season)
		}
		bySeason[ep.Season] = append(bySeason[ep.Season], ep)
	}

	for _, season := range seasonOrder {
		budget.NextSeason()
		if err := s.searchSeason(ctx, item, season, bySeason[season], budget); err != nil {
			s.log.Error("season search failed", "media_item_id", item.ID, "season", season, "error", err)
		}
	}
	return nil
}

// searchSeason runs the pack-vs-episode decision flow for one season.
func (s *Searcher) searchSeason(ctx context.Context, item *library.MediaItem, season int,
	missing []*library.Episode, budget *Budget) error {

	all, err := s.store.ListSeasonEpisodes(item.ID, season)
	if err != nil {
		return err
	}

	if PreferSeasonPack(len(missing), len(all)) {
		grabbed, err := s.trySeasonPack(ctx, item, season, missing, budget)
		if err != nil {
			s.log.Warn("season pack search failed, falling back to episodes",
				"media_item_id", item.ID, "season", season, "error", err)
		}
		if grabbed {
			return nil
		}
		// Unconditional fallback to per-episode search.
	}

	for _, ep := range missing {
		if budget.Exhausted() {
			budget.RecordSkipped()
			continue
		}
		if err := s.searchEpisode(ctx, item, ep, budget); err != nil {
			s.log.Error("episode search failed", "episode_id", ep.ID, "error", err)
		}
	}
	return nil
}

func (s *Searcher) trySeasonPack(ctx context.Context, item *library.MediaItem, season int,
	missing []*library.Episode, budget *Budget) (bool, error) {

	if budget.Exhausted() {
		budget.RecordSkipped()
		return false, nil
	}

	query := release.NormalizeSearchQuery(fmt.Sprintf("%s S%02d", item.Title, season))
	releases, err := s.agg.SearchAll(ctx, query)
	budget.RecordSearch(ctx)
	if err != nil {
		return false, err
	}

	packs := FilterSeasonPacks(releases, season)
	if len(packs) == 0 {
		if len(releases) == 0 {
			s.bus.Publish(ctx, events.NewSearchNoResults(events.EntityMediaItem, item.ID, query))
		}
		return false, nil
	}

	profile := s.profileFor(item)
	var epMin, epMax int64
	if profile != nil {
		epMin, epMax = profile.MinSizeMB, profile.MaxSizeMB
	}
	packMin, packMax := PackSizeRange(epMin, epMax)

	best, rejections := SelectBest(packs, Options{
		Profile:    profile,
		MinSeeders: s.cfg.MinSeeders,
		MinSizeMB:  packMin,
		MaxSizeMB:  packMax,
		Query:      item.Title,
		MediaType:  "episode",
	})
	if best == nil {
		s.bus.Publish(ctx, events.NewSearchAllFiltered(events.EntityMediaItem, item.ID, query, len(packs), rejections))
		return false, nil
	}

	episodeIDs := make([]int64, len(missing))
	for i, ep := range missing {
		episodeIDs[i] = ep.ID
	}
	count := len(missing)

	err = s.grab(ctx, best, download.Request{
		Title:            best.Release.Title,
		SourceURL:        best.Release.DownloadURL,
		Indexer:          best.Release.Indexer,
		ClientTag:        best.Release.Protocol,
		MediaItemID:      &item.ID,
		SeasonPack:       true,
		PackSeason:       &season,
		PackEpisodeCount: &count,
		PackEpisodeIDs:   episodeIDs,
	}, events.EntityMediaItem, item.ID)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Searcher) searchEpisode(ctx context.Context, item *library.MediaItem, ep *library.Episode, budget *Budget) error {
	query := release.NormalizeSearchQuery(fmt.Sprintf("%s S%02dE%02d", item.Title, ep.Season, ep.Episode))

	releases, err := s.agg.SearchAll(ctx, query)
	budget.RecordSearch(ctx)
	if err != nil {
		return fmt.Errorf("search indexers: %w", err)
	}
	if len(releases) == 0 {
		s.bus.Publish(ctx, events.NewSearchNoResults(events.EntityEpisode, ep.ID, query))
		return nil
	}

	best, rejections := SelectBest(releases, Options{
		Profile:    s.profileFor(item),
		MinSeeders: s.cfg.MinSeeders,
		Query:      item.Title,
		MediaType:  "episode",
	})
	if best == nil {
		s.bus.Publish(ctx, events.NewSearchAllFiltered(events.EntityEpisode, ep.ID, query, len(releases), rejections))
		return nil
	}

	return s.grab(ctx, best, download.Request{
		Title:     best.Release.Title,
		SourceURL: best.Release.DownloadURL,
		Indexer:   best.Release.Indexer,
		ClientTag: best.Release.Protocol,
		EpisodeID: &ep.ID,
	}, events.EntityEpisode, ep.ID)
}

func (s *Searcher) grab(ctx context.Context, best *ScoredResult, req download.Request,
	entityType string, entityID int64) error {

	if _, err := s.downloads.Initiate(ctx, req); err != nil {
		return fmt.Errorf("initiate download: %w", err)
	}
	s.log.Info("release selected", "title", best.Release.Title,
		"indexer", best.Release.Indexer, "score", best.Score, "season_pack", req.SeasonPack)
	s.bus.Publish(ctx, events.NewSearchCompleted(entityType, entityID,
		best.Release.Title, best.Release.Indexer, best.Score, req.SeasonPack))
	return nil
}
