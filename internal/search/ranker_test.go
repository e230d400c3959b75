package search

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rel(title string, sizeMB int64, seeders int) Release {
	return Release{
		Title:       title,
		DownloadURL: "http://idx/" + title,
		Size:        sizeMB * 1024 * 1024,
		Seeders:     seeders,
		Indexer:     "test",
	}
}

func TestSelectBestSeedersBoundary(t *testing.T) {
	releases := []Release{
		rel("Show.S01E01.1080p.WEB-DL.x265-AAA", 2000, 5),
		rel("Show.S01E01.1080p.WEB-DL.x265-BBB", 2000, 4),
	}
	opts := Options{MinSeeders: 5, Query: "Show"}

	best, rejections := SelectBest(releases, opts)
	require.NotNil(t, best)
	require.Equal(t, "Show.S01E01.1080p.WEB-DL.x265-AAA", best.Release.Title, "seeders == min passes")
	require.Equal(t, 1, rejections[RejectMinSeeders], "seeders == min-1 rejected")
}

func TestSelectBestUnknownSeedersExempt(t *testing.T) {
	releases := []Release{rel("Show.S01E01.1080p.WEB-DL.x265-AAA", 2000, -1)}
	best, _ := SelectBest(releases, Options{MinSeeders: 10, Query: "Show"})
	require.NotNil(t, best, "usenet releases without seeder counts pass the filter")
}

func TestSelectBestBlockedTag(t *testing.T) {
	releases := []Release{
		rel("Show.S01E01.2160p.BluRay.x265-BADGROUP", 4000, 100),
		rel("Show.S01E01.1080p.WEB-DL.x265-OK", 2000, 50),
	}
	best, rejections := SelectBest(releases, Options{Blocked: []string{"badgroup"}, Query: "Show"})
	require.NotNil(t, best)
	require.Equal(t, "Show.S01E01.1080p.WEB-DL.x265-OK", best.Release.Title)
	require.Equal(t, 1, rejections[RejectBlockedTag])
}

func TestSelectBestExclusiveResolution(t *testing.T) {
	profile := ProfileFromConfig(profileCfg([]string{"1080p"}, true))
	releases := []Release{
		rel("Show.S01E01.2160p.BluRay.x265-AAA", 8000, 100),
		rel("Show.S01E01.1080p.WEB-DL.x265-BBB", 2000, 10),
	}
	best, rejections := SelectBest(releases, Options{Profile: profile, Query: "Show"})
	require.NotNil(t, best)
	require.Equal(t, "Show.S01E01.1080p.WEB-DL.x265-BBB", best.Release.Title)
	require.Equal(t, 1, rejections[RejectResolution])
}

func TestSelectBestTitleRelevanceGate(t *testing.T) {
	releases := []Release{
		rel("Completely.Different.Show.S01E01.1080p.WEB-DL.x265-AAA", 2000, 100),
	}
	best, rejections := SelectBest(releases, Options{Query: "Severance"})
	require.Nil(t, best)
	require.Equal(t, 1, rejections[RejectTitleMatch])
}

// A 1080p x265 release must beat 2160p x264 when the profile ranks
// 1080p first and prefers x265.
func TestSelectBestProfilePreferenceBeatsRawResolution(t *testing.T) {
	cfg := profileCfg([]string{"1080p", "2160p"}, false)
	cfg.Codecs = []string{"x265", "x264"}
	profile := ProfileFromConfig(cfg)

	releases := []Release{
		rel("Show.S01E01.2160p.WEB-DL.x264-AAA", 8000, 50),
		rel("Show.S01E01.1080p.WEB-DL.x265-BBB", 2000, 50),
	}
	best, _ := SelectBest(releases, Options{Profile: profile, Query: "Show"})
	require.NotNil(t, best)
	require.Equal(t, "Show.S01E01.1080p.WEB-DL.x265-BBB", best.Release.Title)
	require.Greater(t, best.Breakdown["resolution"], 0.9)
	require.Greater(t, best.Breakdown["video_codec"], 0.9)
}

func TestSelectBestTieBreakBySeeders(t *testing.T) {
	releases := []Release{
		rel("Show.S01E01.1080p.WEB-DL.x265-AAA", 2000, 10),
		rel("Show.S01E01.1080p.WEB-DL.x265-BBB", 2000, 90),
	}
	best, _ := SelectBest(releases, Options{Query: "Show"})
	require.NotNil(t, best)
	require.Equal(t, 90, best.Release.Seeders)
}

func TestSelectBestDeterministic(t *testing.T) {
	releases := []Release{
		rel("Show.S01E01.720p.HDTV.x264-AAA", 700, 20),
		rel("Show.S01E01.1080p.WEB-DL.x265-BBB", 2000, 15),
		rel("Show.S01E01.2160p.BluRay.x265.HDR10-CCC", 9000, 5),
	}
	opts := Options{Profile: ProfileFromConfig(profileCfg([]string{"2160p", "1080p", "720p"}, false)), Query: "Show"}

	first, _ := SelectBest(releases, opts)
	for range 10 {
		again, _ := SelectBest(releases, opts)
		require.Equal(t, first.Release.Title, again.Release.Title)
		require.Equal(t, first.Score, again.Score)
		require.Equal(t, first.Breakdown, again.Breakdown)
	}
}

func TestSelectBestDedupesByTitleAndIndexer(t *testing.T) {
	dup := rel("Show.S01E01.1080p.WEB-DL.x265-AAA", 2000, 10)
	best, rejections := SelectBest([]Release{dup, dup, dup}, Options{Query: "Show"})
	require.NotNil(t, best)
	require.Empty(t, rejections)
}

func TestSelectBestEmptyInput(t *testing.T) {
	best, rejections := SelectBest(nil, Options{Query: "Show"})
	require.Nil(t, best)
	require.Empty(t, rejections)
}

func TestSelectBestGenericScoring(t *testing.T) {
	releases := []Release{
		rel("Movie.2020.1080p.BluRay.x265.TrueHD-AAA", 8000, 10),
		rel("Movie.2020.720p.HDTV.x264-BBB", 1500, 10),
	}
	best, _ := SelectBest(releases, Options{Query: "Movie", MediaType: "movie"})
	require.NotNil(t, best)
	require.Equal(t, "Movie.2020.1080p.BluRay.x265.TrueHD-AAA", best.Release.Title)
	require.LessOrEqual(t, best.Score, 100.0)
}

func TestSelectBestHDRPreference(t *testing.T) {
	cfg := profileCfg([]string{"2160p"}, false)
	cfg.PreferHDR = true
	profile := ProfileFromConfig(cfg)

	releases := []Release{
		rel("Movie.2020.2160p.WEB-DL.x265.SDR-AAA", 8000, 10),
		rel("Movie.2020.2160p.WEB-DL.x265.HDR10-BBB", 8000, 10),
	}
	best, _ := SelectBest(releases, Options{Profile: profile, Query: "Movie", MediaType: "movie"})
	require.NotNil(t, best)
	require.Equal(t, "Movie.2020.2160p.WEB-DL.x265.HDR10-BBB", best.Release.Title)
	require.Equal(t, 1.0, best.Breakdown["hdr"])
}

func TestSizeFitScore(t *testing.T) {
	tests := []struct {
		name   string
		sizeMB int64
		min    int64
		max    int64
		want   float64
	}{
		{"inside range", 2000, 1000, 4000, 1.0},
		{"at lower bound", 1000, 1000, 4000, 1.0},
		{"at upper bound", 4000, 1000, 4000, 1.0},
		{"below range", 500, 1000, 4000, 0.5},
		{"above range", 8000, 1000, 4000, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sizeFitScore(tt.sizeMB*1024*1024, tt.min, tt.max)
			require.InDelta(t, tt.want, got, 0.01)
		})
	}
}
