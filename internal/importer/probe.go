package importer

import "context"

// MediaInfo is technical metadata produced by a file analysis probe.
// Empty fields mean the probe could not determine the value.
type MediaInfo struct {
	Resolution string
	VideoCodec string
	AudioCodec string
	Bitrate    *int64
	HDR        string
}

// FileProbe extracts technical metadata from a media file on disk.
// Probe values win over filename-derived ones; a probe failure is
// non-fatal and falls back to the filename.
type FileProbe interface {
	Analyze(path string) (*MediaInfo, error)
}

// EpisodeRefresher reloads a show's episode list from the metadata
// provider. Used at most once per import when a season-pack file names
// an episode the library does not know yet.
type EpisodeRefresher interface {
	RefreshEpisodes(ctx context.Context, mediaItemID int64) (int, error)
}
