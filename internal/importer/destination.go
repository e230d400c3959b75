package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mydia/mydia/internal/download"
	"github.com/mydia/mydia/internal/library"
	"github.com/mydia/mydia/pkg/release"
)

// destination is the resolved placement for one downloaded file.
// At most one of episodeID or mediaItemID is set; both nil means a
// specialized-library import with no media association.
type destination struct {
	relPath     string
	episodeID   *int64
	mediaItemID *int64
}

// resolveDestination builds the library-relative target path for one
// file of a download. Falls back to a folder named after the download
// when no media association can be resolved.
func (i *Importer) resolveDestination(ctx context.Context, d *download.Download, src string) destination {
	base := filepath.Base(src)

	switch {
	case d.IsSeasonPack && d.MediaItemID != nil && d.PackSeason != nil:
		if dest, ok := i.packDestination(ctx, d, base); ok {
			return dest
		}
	case d.EpisodeID != nil:
		if dest, ok := i.episodeDestination(d, base); ok {
			return dest
		}
	case d.MediaItemID != nil:
		if item, err := i.library.GetMediaItem(*d.MediaItemID); err == nil {
			if item.Type == library.MediaTypeMovie {
				return destination{
					relPath:     filepath.Join(movieDir(item), base),
					mediaItemID: &item.ID,
				}
			}
			if dest, ok := i.showDestination(item, base); ok {
				return dest
			}
		}
	}

	return destination{relPath: filepath.Join(SanitizeFilename(d.Title), base)}
}

// packDestination places a season-pack file. The pack's season number is
// authoritative; the episode number comes from the filename. A lookup
// miss triggers one episode-list refresh before giving up on the
// association, the path is built regardless.
func (i *Importer) packDestination(ctx context.Context, d *download.Download, base string) (destination, bool) {
	item, err := i.library.GetMediaItem(*d.MediaItemID)
	if err != nil {
		return destination{}, false
	}
	season := *d.PackSeason

	dest := destination{relPath: filepath.Join(seasonDir(item, season), base)}

	info := release.Parse(base)
	if info.Episode > 0 {
		ep, err := i.library.FindEpisode(item.ID, season, info.Episode)
		if errors.Is(err, library.ErrNotFound) && i.refresher != nil {
			if _, rerr := i.refresher.RefreshEpisodes(ctx, item.ID); rerr == nil {
				ep, err = i.library.FindEpisode(item.ID, season, info.Episode)
			}
		}
		if err == nil {
			dest.episodeID = &ep.ID
		}
	}
	if dest.episodeID == nil {
		dest.mediaItemID = &item.ID
	}
	return dest, true
}

// episodeDestination places a file of an episode-associated download.
// Filename episode info wins when it resolves to a known episode,
// otherwise the download's own association is used.
func (i *Importer) episodeDestination(d *download.Download, base string) (destination, bool) {
	ep, err := i.library.GetEpisode(*d.EpisodeID)
	if err != nil {
		return destination{}, false
	}
	item, err := i.library.GetMediaItem(ep.MediaItemID)
	if err != nil {
		return destination{}, false
	}

	chosen := ep
	info := release.Parse(base)
	if info.Season > 0 && info.Episode > 0 {
		if found, ferr := i.library.FindEpisode(item.ID, info.Season, info.Episode); ferr == nil {
			chosen = found
		}
	}

	return destination{
		relPath:   filepath.Join(seasonDir(item, chosen.Season), base),
		episodeID: &chosen.ID,
	}, true
}

// showDestination handles a TV item download with no episode association
// and no pack metadata, placement relies entirely on the filename.
func (i *Importer) showDestination(item *library.MediaItem, base string) (destination, bool) {
	info := release.Parse(base)
	if info.Season == 0 || info.Episode == 0 {
		return destination{}, false
	}

	dest := destination{relPath: filepath.Join(seasonDir(item, info.Season), base)}
	if ep, err := i.library.FindEpisode(item.ID, info.Season, info.Episode); err == nil {
		dest.episodeID = &ep.ID
	} else {
		dest.mediaItemID = &item.ID
	}
	return dest, true
}

// movieDir is "{Title (Year)}", year omitted when unknown.
func movieDir(item *library.MediaItem) string {
	if item.Year != nil {
		return SanitizeFilename(fmt.Sprintf("%s (%d)", item.Title, *item.Year))
	}
	return SanitizeFilename(item.Title)
}

// seasonDir is "{Title}/Season {NN}".
func seasonDir(item *library.MediaItem, season int) string {
	return filepath.Join(SanitizeFilename(item.Title), fmt.Sprintf("Season %02d", season))
}
