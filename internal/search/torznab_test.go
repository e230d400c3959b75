package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const torznabFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
  <channel>
    <item>
      <title>Show.S01E01.1080p.WEB-DL.x265-GRP</title>
      <guid>abc123</guid>
      <link>https://indexer.example/dl/abc123.torrent</link>
      <pubDate>Fri, 15 Aug 2025 10:30:00 +0000</pubDate>
      <enclosure url="https://indexer.example/dl/abc123.torrent" length="2147483648"/>
      <torznab:attr name="seeders" value="42"/>
      <torznab:attr name="size" value="2147483648"/>
    </item>
    <item>
      <title>Show.S01E01.720p.HDTV.x264-OTHER</title>
      <guid>def456</guid>
      <size>734003200</size>
      <pubDate>not a date</pubDate>
      <enclosure url="https://indexer.example/dl/def456.nzb" length="734003200"/>
    </item>
  </channel>
</rss>`

func TestTorznabSearch(t *testing.T) {
	var gotQuery, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api", r.URL.Path)
		require.Equal(t, "search", r.URL.Query().Get("t"))
		gotQuery = r.URL.Query().Get("q")
		gotKey = r.URL.Query().Get("apikey")
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(torznabFeed))
	}))
	defer srv.Close()

	c := NewTorznabClient("tracker", srv.URL, "secret", "torrent", nil)
	releases, err := c.Search(context.Background(), "Show S01E01")
	require.NoError(t, err)
	require.Equal(t, "Show S01E01", gotQuery)
	require.Equal(t, "secret", gotKey)
	require.Len(t, releases, 2)

	first := releases[0]
	require.Equal(t, "Show.S01E01.1080p.WEB-DL.x265-GRP", first.Title)
	require.Equal(t, "https://indexer.example/dl/abc123.torrent", first.DownloadURL)
	require.Equal(t, int64(2147483648), first.Size)
	require.Equal(t, 42, first.Seeders)
	require.Equal(t, "tracker", first.Indexer)
	require.Equal(t, "torrent", first.Protocol)
	require.False(t, first.PublishDate.IsZero())
	require.NotNil(t, first.Info)
	require.Equal(t, "Show", first.Info.Title)

	second := releases[1]
	require.Equal(t, -1, second.Seeders, "no seeders attr means unknown")
	require.Equal(t, "https://indexer.example/dl/def456.nzb", second.DownloadURL, "enclosure fills missing link")
	require.Equal(t, int64(734003200), second.Size)
	require.True(t, second.PublishDate.IsZero(), "unparseable pubDate left zero")
}

func TestTorznabSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewTorznabClient("tracker", srv.URL, "wrong", "usenet", nil)
	_, err := c.Search(context.Background(), "q")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status: 401")
}

func TestTorznabSearchBadXML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not xml at all"))
	}))
	defer srv.Close()

	c := NewTorznabClient("tracker", srv.URL, "key", "usenet", nil)
	_, err := c.Search(context.Background(), "q")
	require.Error(t, err)
}

func TestTorznabSearchEmptyFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<?xml version="1.0"?><rss><channel></channel></rss>`))
	}))
	defer srv.Close()

	c := NewTorznabClient("tracker", srv.URL, "key", "usenet", nil)
	releases, err := c.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Empty(t, releases)
}
