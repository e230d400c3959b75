package search

import "github.com/mydia/mydia/pkg/release"

// packThreshold is the missing percentage at or above which a season
// pack is preferred over per-episode searches.
const packThreshold = 70.0

// Season-pack size range relative to a single episode. Packs run
// roughly 10-50x an episode.
const (
	packSizeMinFactor = 10
	packSizeMaxFactor = 50
)

// PreferSeasonPack decides whether to search for a season pack. An
// unknown total (0) treats the missing count as the whole season, so
// uncertainty defaults to preferring packs.
func PreferSeasonPack(missing, total int) bool {
	if missing <= 0 {
		return false
	}
	if total <= 0 {
		total = missing
	}
	pct := float64(missing) / float64(total) * 100
	return pct >= packThreshold
}

// IsSeasonPack reports whether a release is a true season pack for the
// given season: it carries the season marker, no episode marker, and
// matches the wanted season.
func IsSeasonPack(info *release.Info, season int) bool {
	return info.IsCompleteSeason && info.Episode == 0 && info.Season == season
}

// FilterSeasonPacks keeps only true packs for the season.
func FilterSeasonPacks(releases []Release, season int) []Release {
	var packs []Release
	for _, rel := range releases {
		info := rel.Info
		if info == nil {
			info = release.Parse(rel.Title)
			rel.Info = info
		}
		if IsSeasonPack(info, season) {
			packs = append(packs, rel)
		}
	}
	return packs
}

// PackSizeRange scales an episode size range up to pack scale.
func PackSizeRange(episodeMinMB, episodeMaxMB int64) (int64, int64) {
	if episodeMinMB == 0 && episodeMaxMB == 0 {
		episodeMinMB, episodeMaxMB = defaultEpisodeMinMB, defaultEpisodeMaxMB
	}
	return episodeMinMB * packSizeMinFactor, episodeMaxMB * packSizeMaxFactor
}
