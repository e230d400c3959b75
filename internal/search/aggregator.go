package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mydia/mydia/internal/config"
)

// Indexer is the contract the aggregator fans queries out to.
type Indexer interface {
	Name() string
	Search(ctx context.Context, query string) ([]Release, error)
}

// Aggregator queries all configured indexers concurrently and merges
// their results. Partial failures are tolerated: one slow or broken
// indexer never empties the whole result set.
type Aggregator struct {
	indexers []Indexer
	timeout  time.Duration
	log      *slog.Logger
}

func NewAggregator(indexers []Indexer, timeout time.Duration, log *slog.Logger) *Aggregator {
	if log == nil {
		log = slog.Default()
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Aggregator{
		indexers: indexers,
		timeout:  timeout,
		log:      log.With("component", "aggregator"),
	}
}

// NewAggregatorFromConfig builds torznab clients for every configured
// indexer.
func NewAggregatorFromConfig(indexers map[string]config.IndexerConfig, log *slog.Logger) *Aggregator {
	clients := make([]Indexer, 0, len(indexers))
	for name, cfg := range indexers {
		clients = append(clients, NewTorznabClient(name, cfg.URL, cfg.APIKey, cfg.Protocol, log))
	}
	return NewAggregator(clients, 0, log)
}

// Empty reports whether no indexers are configured.
func (a *Aggregator) Empty() bool { return len(a.indexers) == 0 }

// SearchAll fans the query out to every indexer with a per-indexer
// timeout and returns the deduplicated union of results. Only returns
// an error when every indexer failed.
func (a *Aggregator) SearchAll(ctx context.Context, query string) ([]Release, error) {
	var mu sync.Mutex
	var all []Release
	var lastErr error
	failures := 0

	g, ctx := errgroup.WithContext(ctx)
	for _, idx := range a.indexers {
		g.Go(func() error {
			searchCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			releases, err := idx.Search(searchCtx, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				a.log.Warn("indexer search failed", "indexer", idx.Name(), "error", err)
				failures++
				lastErr = err
				return nil
			}
			all = append(all, releases...)
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(a.indexers) && failures > 0 {
		return nil, lastErr
	}
	return dedupe(all), nil
}

// dedupe removes duplicate (title, indexer) pairs, keeping the first.
func dedupe(releases []Release) []Release {
	seen := make(map[string]bool, len(releases))
	out := releases[:0]
	for _, rel := range releases {
		key := rel.Title + "\x00" + rel.Indexer
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rel)
	}
	return out
}
