package importer

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mydia/mydia/internal/config"
	"github.com/mydia/mydia/internal/download"
	"github.com/mydia/mydia/internal/events"
	"github.com/mydia/mydia/internal/library"
	"github.com/mydia/mydia/internal/migrations"
)

// fixture wires an Importer with in-memory stores and a scriptable client.
type fixture struct {
	importer  *Importer
	downloads *download.Store
	library   *library.Store
	client    *fakeClient
	bus       *events.Bus
}

func setup(t *testing.T, cfg config.ImportConfig) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(db))

	bus := events.NewBus(nil, nil)
	t.Cleanup(func() { _ = bus.Close() })

	client := &fakeClient{name: "fake", statuses: map[string]*download.ClientStatus{}}
	resolver := download.NewResolver()
	resolver.Register(download.TagTorrent, client)

	downloads := download.NewStore(db)
	lib := library.NewStore(db)

	return &fixture{
		importer:  New(downloads, lib, resolver, cfg, bus, nil),
		downloads: downloads,
		library:   lib,
		client:    client,
		bus:       bus,
	}
}

type fakeClient struct {
	name     string
	statuses map[string]*download.ClientStatus
	removed  []string
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Add(ctx context.Context, url string) (string, error) {
	return "task", nil
}

func (f *fakeClient) Status(ctx context.Context, taskID string) (*download.ClientStatus, error) {
	st, ok := f.statuses[taskID]
	if !ok {
		return nil, download.ErrTaskNotFound
	}
	return st, nil
}

func (f *fakeClient) Remove(ctx context.Context, taskID string) error {
	f.removed = append(f.removed, taskID)
	return nil
}

// completed marks a task done at the given save path.
func (f *fakeClient) completed(taskID, savePath string) {
	f.statuses[taskID] = &download.ClientStatus{TaskID: taskID, SavePath: savePath, Completed: true}
}

type fakeRefresher struct {
	calls int
	fill  func() // invoked on refresh, typically inserts episodes
}

func (f *fakeRefresher) RefreshEpisodes(ctx context.Context, mediaItemID int64) (int, error) {
	f.calls++
	if f.fill != nil {
		f.fill()
	}
	return 1, nil
}

type fakeNotifier struct {
	calls int
	err   error
}

func (f *fakeNotifier) NotifyAll(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeProbe struct {
	info *MediaInfo
	err  error
}

func (f *fakeProbe) Analyze(path string) (*MediaInfo, error) {
	return f.info, f.err
}

// writeFile creates a file with n bytes of content.
func writeFile(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, n), 0o644))
}

func addMoviePath(t *testing.T, f *fixture) *library.LibraryPath {
	t.Helper()
	p := &library.LibraryPath{Root: t.TempDir(), Type: library.LibraryMovies, Monitored: true}
	require.NoError(t, f.library.AddLibraryPath(p))
	return p
}

func addSeriesPath(t *testing.T, f *fixture) *library.LibraryPath {
	t.Helper()
	p := &library.LibraryPath{Root: t.TempDir(), Type: library.LibrarySeries, Monitored: true}
	require.NoError(t, f.library.AddLibraryPath(p))
	return p
}

func addMovieDownload(t *testing.T, f *fixture, title string) (*download.Download, *library.MediaItem) {
	t.Helper()
	year := 1995
	item := &library.MediaItem{Type: library.MediaTypeMovie, Title: "Heat", Year: &year, Monitored: true}
	require.NoError(t, f.library.AddMediaItem(item))

	d := &download.Download{
		MediaItemID:  &item.ID,
		Title:        title,
		SourceURL:    "https://indexer.example/dl/" + title,
		Indexer:      "idx",
		ClientName:   "fake",
		ClientTaskID: "t-" + title,
	}
	require.NoError(t, f.downloads.Add(d))
	return d, item
}
