package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mydia/mydia/internal/config"
	"github.com/mydia/mydia/internal/download"
	"github.com/mydia/mydia/internal/library"
)

func TestImportMovie(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	path := addMoviePath(t, f)
	d, item := addMovieDownload(t, f, "Heat.1995.1080p.BluRay.x265-GRP")

	src := filepath.Join(t.TempDir(), "Heat.1995.1080p.BluRay.x265-GRP.mkv")
	writeFile(t, src, 512)
	f.client.completed(d.ClientTaskID, src)

	res, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.True(t, res.Done)

	got, err := f.downloads.Get(d.ID)
	require.NoError(t, err)
	require.Equal(t, download.StatusImported, got.Status)
	require.NotNil(t, got.ImportedAt)
	require.Zero(t, got.ImportRetryCount)
	require.Nil(t, got.ImportLastError)
	require.Nil(t, got.ImportNextRetryAt)
	require.Nil(t, got.ImportFailedAt)

	files, err := f.library.ListMediaFilesForItem(item.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "Heat (1995)/Heat.1995.1080p.BluRay.x265-GRP.mkv", files[0].RelativePath)
	require.Equal(t, int64(512), files[0].Size)
	require.Equal(t, "1080p", files[0].Resolution)
	require.Equal(t, "x265", files[0].VideoCodec)
	require.Equal(t, item.ID, *files[0].MediaItemID)
	require.Nil(t, files[0].EpisodeID)

	_, err = os.Stat(filepath.Join(path.Root, files[0].RelativePath))
	require.NoError(t, err)
}

func TestImportIdempotent(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	addMoviePath(t, f)
	d, item := addMovieDownload(t, f, "Heat.1995.1080p.BluRay.x265-GRP")

	src := filepath.Join(t.TempDir(), "Heat.1995.1080p.BluRay.x265-GRP.mkv")
	writeFile(t, src, 512)
	f.client.completed(d.ClientTaskID, src)

	_, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)

	// At-least-once delivery: the second run must be a clean no-op.
	res, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.True(t, res.Done)

	files, err := f.library.ListMediaFilesForItem(item.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestImportSnoozesWhileDownloading(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	addMoviePath(t, f)
	d, _ := addMovieDownload(t, f, "Heat.1995.1080p.BluRay.x265-GRP")
	f.client.statuses[d.ClientTaskID] = &download.ClientStatus{TaskID: d.ClientTaskID, Progress: 40}

	res, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.False(t, res.Done)
	require.Equal(t, 5*time.Minute, res.RetryIn)
	require.Equal(t, 1, res.SnoozeCount)

	got, err := f.downloads.Get(d.ID)
	require.NoError(t, err)
	require.Zero(t, got.ImportRetryCount, "snoozing is not a failure")
}

func TestImportSnoozeCap(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	addMoviePath(t, f)
	d, _ := addMovieDownload(t, f, "Heat.1995.1080p.BluRay.x265-GRP")
	f.client.statuses[d.ClientTaskID] = &download.ClientStatus{TaskID: d.ClientTaskID, Progress: 40}

	res, err := f.importer.Run(context.Background(), d.ID, maxSnoozes)
	require.NoError(t, err)
	require.True(t, res.Done, "13th incomplete observation is terminal")

	got, err := f.downloads.Get(d.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.ImportRetryCount)
	require.Contains(t, *got.ImportLastError, "not completed after waiting")
	require.Nil(t, got.ImportNextRetryAt, "no retry scheduled past the cap")
	require.NotNil(t, got.ImportFailedAt)
}

func TestImportNoLibraryPath(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	d, _ := addMovieDownload(t, f, "Heat.1995.1080p.BluRay.x265-GRP")

	src := filepath.Join(t.TempDir(), "Heat.1995.1080p.BluRay.x265-GRP.mkv")
	writeFile(t, src, 512)
	f.client.completed(d.ClientTaskID, src)

	res, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.False(t, res.Done)
	require.Equal(t, 60*time.Second, res.RetryIn, "first failure takes the first backoff step")

	got, err := f.downloads.Get(d.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.ImportRetryCount)
	require.Contains(t, *got.ImportLastError, "no monitored library")
	require.NotNil(t, got.ImportNextRetryAt)
	require.NotNil(t, got.ImportFailedAt)
}

func TestImportBackoffGrowsAndFailedAtSticks(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	d, _ := addMovieDownload(t, f, "Heat.1995.1080p.BluRay.x265-GRP")

	src := filepath.Join(t.TempDir(), "Heat.1995.1080p.BluRay.x265-GRP.mkv")
	writeFile(t, src, 512)
	f.client.completed(d.ClientTaskID, src)

	res1, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	got, err := f.downloads.Get(d.ID)
	require.NoError(t, err)
	firstFailedAt := *got.ImportFailedAt

	res2, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, res1.RetryIn)
	require.Equal(t, 300*time.Second, res2.RetryIn)

	got, err = f.downloads.Get(d.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.ImportRetryCount)
	require.Equal(t, firstFailedAt.Unix(), got.ImportFailedAt.Unix(), "failed_at survives later failures")
}

func TestImportRecoversAfterFailure(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	d, _ := addMovieDownload(t, f, "Heat.1995.1080p.BluRay.x265-GRP")

	src := filepath.Join(t.TempDir(), "Heat.1995.1080p.BluRay.x265-GRP.mkv")
	writeFile(t, src, 512)
	f.client.completed(d.ClientTaskID, src)

	// No library yet: first attempt fails.
	_, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)

	addMoviePath(t, f)
	res, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.True(t, res.Done)

	got, err := f.downloads.Get(d.ID)
	require.NoError(t, err)
	require.Equal(t, download.StatusImported, got.Status)
	require.Zero(t, got.ImportRetryCount)
	require.Nil(t, got.ImportLastError)
	require.Nil(t, got.ImportNextRetryAt)
	require.Nil(t, got.ImportFailedAt)
}

func TestImportSeasonPack(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	addSeriesPath(t, f)

	show := &library.MediaItem{Type: library.MediaTypeTVShow, Title: "Patriot", Monitored: true}
	require.NoError(t, f.library.AddMediaItem(show))
	for i := 1; i <= 10; i++ {
		require.NoError(t, f.library.AddEpisode(&library.Episode{
			MediaItemID: show.ID, Season: 1, Episode: i, Monitored: true,
		}))
	}

	season := 1
	count := 10
	d := &download.Download{
		MediaItemID:      &show.ID,
		Title:            "Patriot.S01.1080p.WEB-DL.x265-GRP",
		SourceURL:        "https://indexer.example/dl/pack",
		ClientName:       "fake",
		ClientTaskID:     "t-pack",
		IsSeasonPack:     true,
		PackSeason:       &season,
		PackEpisodeCount: &count,
	}
	require.NoError(t, f.downloads.Add(d))

	saveDir := t.TempDir()
	for i := 1; i <= 10; i++ {
		writeFile(t, filepath.Join(saveDir, fmt.Sprintf("Patriot.S01E%02d.1080p.WEB-DL.x265-GRP.mkv", i)), 100)
	}
	writeFile(t, filepath.Join(saveDir, "info.nfo"), 10)
	f.client.completed(d.ClientTaskID, saveDir)

	res, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.True(t, res.Done)

	files, err := f.library.ListMediaFilesForItem(show.ID)
	require.NoError(t, err)
	require.Len(t, files, 10, "nfo file filtered out")
	for _, mf := range files {
		require.NotNil(t, mf.EpisodeID)
		require.Contains(t, mf.RelativePath, "Patriot/Season 01/")
	}

	got, err := f.downloads.Get(d.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ImportedAt)
}

func TestImportSeasonPackRefreshesUnknownEpisode(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	addSeriesPath(t, f)

	show := &library.MediaItem{Type: library.MediaTypeTVShow, Title: "Patriot", Monitored: true}
	require.NoError(t, f.library.AddMediaItem(show))

	// Episode 2 appears only after the refresher runs.
	refresher := &fakeRefresher{fill: func() {
		_ = f.library.AddEpisode(&library.Episode{
			MediaItemID: show.ID, Season: 1, Episode: 2, Monitored: true,
		})
	}}
	f.importer.WithRefresher(refresher)

	season := 1
	d := &download.Download{
		MediaItemID:  &show.ID,
		Title:        "Patriot.S01.1080p.WEB-DL.x265-GRP",
		SourceURL:    "https://indexer.example/dl/pack2",
		ClientName:   "fake",
		ClientTaskID: "t-pack2",
		IsSeasonPack: true,
		PackSeason:   &season,
	}
	require.NoError(t, f.downloads.Add(d))

	saveDir := t.TempDir()
	writeFile(t, filepath.Join(saveDir, "Patriot.S01E02.1080p.WEB-DL.x265-GRP.mkv"), 100)
	f.client.completed(d.ClientTaskID, saveDir)

	res, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.True(t, res.Done)
	require.Equal(t, 1, refresher.calls)

	files, err := f.library.ListMediaFilesForItem(show.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NotNil(t, files[0].EpisodeID)
}

func TestImportEpisodeFilenameWins(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	addSeriesPath(t, f)

	show := &library.MediaItem{Type: library.MediaTypeTVShow, Title: "Patriot", Monitored: true}
	require.NoError(t, f.library.AddMediaItem(show))
	ep1 := &library.Episode{MediaItemID: show.ID, Season: 1, Episode: 1, Monitored: true}
	ep2 := &library.Episode{MediaItemID: show.ID, Season: 1, Episode: 2, Monitored: true}
	require.NoError(t, f.library.AddEpisode(ep1))
	require.NoError(t, f.library.AddEpisode(ep2))

	// Download associated with E01 but the file actually is E02.
	d := &download.Download{
		EpisodeID:    &ep1.ID,
		Title:        "Patriot.S01E02.1080p.WEB-DL.x265-GRP",
		SourceURL:    "https://indexer.example/dl/ep",
		ClientName:   "fake",
		ClientTaskID: "t-ep",
	}
	require.NoError(t, f.downloads.Add(d))

	src := filepath.Join(t.TempDir(), "Patriot.S01E02.1080p.WEB-DL.x265-GRP.mkv")
	writeFile(t, src, 100)
	f.client.completed(d.ClientTaskID, src)

	_, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)

	files, err := f.library.ListMediaFilesForItem(show.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, ep2.ID, *files[0].EpisodeID)
}

func TestImportConflictTrackedReuse(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	path := addMoviePath(t, f)
	d, item := addMovieDownload(t, f, "Heat.1995.1080p.BluRay.x265-GRP")

	// The destination already exists and is tracked with the same size.
	rel := "Heat (1995)/Heat.1995.1080p.BluRay.x265-GRP.mkv"
	writeFile(t, filepath.Join(path.Root, rel), 512)
	require.NoError(t, f.library.AddMediaFile(&library.MediaFile{
		LibraryPathID: path.ID, RelativePath: rel, Size: 512, MediaItemID: &item.ID,
	}))

	src := filepath.Join(t.TempDir(), "Heat.1995.1080p.BluRay.x265-GRP.mkv")
	writeFile(t, src, 512)
	f.client.completed(d.ClientTaskID, src)

	res, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.True(t, res.Done)

	files, err := f.library.ListMediaFilesForItem(item.ID)
	require.NoError(t, err)
	require.Len(t, files, 1, "tracked file of equal size is reused")
}

func TestImportConflictUniquified(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	path := addMoviePath(t, f)
	d, item := addMovieDownload(t, f, "Heat.1995.1080p.BluRay.x265-GRP")

	// Untracked file squats on the destination.
	rel := "Heat (1995)/Heat.1995.1080p.BluRay.x265-GRP.mkv"
	writeFile(t, filepath.Join(path.Root, rel), 999)

	src := filepath.Join(t.TempDir(), "Heat.1995.1080p.BluRay.x265-GRP.mkv")
	writeFile(t, src, 512)
	f.client.completed(d.ClientTaskID, src)

	res, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.True(t, res.Done)

	files, err := f.library.ListMediaFilesForItem(item.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NotEqual(t, rel, files[0].RelativePath)
	require.Contains(t, files[0].RelativePath, "Heat (1995)/")

	_, err = os.Stat(filepath.Join(path.Root, files[0].RelativePath))
	require.NoError(t, err)
}

func TestImportTypeMismatchIsTerminal(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	seriesPath := addSeriesPath(t, f)

	year := 1995
	item := &library.MediaItem{Type: library.MediaTypeMovie, Title: "Heat", Year: &year, Monitored: true}
	require.NoError(t, f.library.AddMediaItem(item))

	// Direct association forces the movie into the series library.
	d := &download.Download{
		MediaItemID:   &item.ID,
		LibraryPathID: &seriesPath.ID,
		Title:         "Heat.1995.1080p.BluRay.x265-GRP",
		SourceURL:     "https://indexer.example/dl/mismatch",
		ClientName:    "fake",
		ClientTaskID:  "t-mismatch",
	}
	require.NoError(t, f.downloads.Add(d))

	src := filepath.Join(t.TempDir(), "Heat.1995.1080p.BluRay.x265-GRP.mkv")
	writeFile(t, src, 512)
	f.client.completed(d.ClientTaskID, src)

	res, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.True(t, res.Done)

	got, err := f.downloads.Get(d.ID)
	require.NoError(t, err)
	require.Contains(t, *got.ImportLastError, "cannot import")
	require.Nil(t, got.ImportNextRetryAt)
}

func TestImportSuccessSideEffects(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	addMoviePath(t, f)
	notifier := &fakeNotifier{}
	f.importer.WithNotifier(notifier)
	f.importer.SetRemoveOnComplete("fake", true)

	d, _ := addMovieDownload(t, f, "Heat.1995.1080p.BluRay.x265-GRP")
	src := filepath.Join(t.TempDir(), "Heat.1995.1080p.BluRay.x265-GRP.mkv")
	writeFile(t, src, 512)
	f.client.completed(d.ClientTaskID, src)

	_, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 1, notifier.calls)
	require.Equal(t, []string{d.ClientTaskID}, f.client.removed)
}

func TestImportProbeWinsOverFilename(t *testing.T) {
	f := setup(t, config.ImportConfig{})
	addMoviePath(t, f)
	bitrate := int64(8_000_000)
	f.importer.WithProbe(&fakeProbe{info: &MediaInfo{
		Resolution: "2160p",
		Bitrate:    &bitrate,
	}})

	d, item := addMovieDownload(t, f, "Heat.1995.1080p.BluRay.x265-GRP")
	src := filepath.Join(t.TempDir(), "Heat.1995.1080p.BluRay.x265-GRP.mkv")
	writeFile(t, src, 512)
	f.client.completed(d.ClientTaskID, src)

	_, err := f.importer.Run(context.Background(), d.ID, 0)
	require.NoError(t, err)

	files, err := f.library.ListMediaFilesForItem(item.ID)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "2160p", files[0].Resolution, "probe overrides filename")
	require.Equal(t, "x265", files[0].VideoCodec, "filename fills probe gaps")
	require.Equal(t, bitrate, *files[0].Bitrate)
}
