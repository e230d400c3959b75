package library

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mydia/mydia/internal/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err, "open db")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.Up(db), "apply migrations")
	return db
}

func insertShow(t *testing.T, s *Store, title string) *MediaItem {
	t.Helper()
	m := &MediaItem{Type: MediaTypeTVShow, Title: title, Monitored: true}
	require.NoError(t, s.AddMediaItem(m))
	return m
}

func insertEpisode(t *testing.T, s *Store, showID int64, season, episode int, aired time.Time) *Episode {
	t.Helper()
	e := &Episode{MediaItemID: showID, Season: season, Episode: episode, AirDate: &aired, Monitored: true}
	require.NoError(t, s.AddEpisode(e))
	return e
}
