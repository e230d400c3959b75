package search

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mydia/mydia/internal/config"
	"github.com/mydia/mydia/internal/download"
	"github.com/mydia/mydia/internal/library"
	"github.com/mydia/mydia/internal/migrations"
)

func profileCfg(resolutions []string, exclusive bool) config.QualityProfile {
	return config.QualityProfile{Resolutions: resolutions, Exclusive: exclusive}
}

func setupLibrary(t *testing.T) *library.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(db))
	return library.NewStore(db)
}

// fakeIndexer returns canned results per query, or an error.
type fakeIndexer struct {
	name    string
	results map[string][]Release
	err     error
	queries []string
}

func (f *fakeIndexer) Name() string { return f.name }

func (f *fakeIndexer) Search(ctx context.Context, query string) ([]Release, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

// fakeInitiator records download requests.
type fakeInitiator struct {
	requests []download.Request
	err      error
}

func (f *fakeInitiator) Initiate(ctx context.Context, req download.Request) (*download.Download, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, req)
	return &download.Download{ID: int64(len(f.requests)), Title: req.Title}, nil
}

var errIndexerDown = errors.New("indexer down")

func pastDate(daysAgo int) time.Time {
	return time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour)
}
