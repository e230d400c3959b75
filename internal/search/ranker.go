package search

import (
	"strings"

	"github.com/mydia/mydia/pkg/release"
)

// Scoring factor weights. They sum to 1.0 so the weighted score lands
// on a 0-100 scale.
const (
	weightResolution   = 0.20
	weightCodec        = 0.20
	weightAudio        = 0.15
	weightSource       = 0.10
	weightChannels     = 0.10
	weightBitrate      = 0.10
	weightSizeFit      = 0.05
	weightAudioBitrate = 0.05
	weightHDR          = 0.05
)

// titleMatchThreshold is the minimum Jaro-Winkler similarity between a
// release title and the search query for the release to be considered
// a plausible match.
const titleMatchThreshold = 0.85

// Rejection reasons recorded per filtered release.
const (
	RejectMinSeeders   = "min_seeders"
	RejectBlockedTag   = "blocked_tag"
	RejectResolution   = "resolution_not_allowed"
	RejectTitleMatch   = "title_mismatch"
)

// Default size ranges in MB, used when neither options nor profile
// provide bounds.
const (
	defaultMovieMinMB   = 300
	defaultMovieMaxMB   = 60000
	defaultEpisodeMinMB = 50
	defaultEpisodeMaxMB = 12000
)

// Options steer one ranking pass.
type Options struct {
	Profile    *Profile // nil means generic scoring
	MinSeeders int
	MinSizeMB  int64
	MaxSizeMB  int64
	Query      string // original search query, drives title relevance
	Blocked    []string
	Preferred  []string
	MediaType  string // "movie" or "episode", sets default size range
}

// ScoredResult is the ranking outcome for the winning release.
type ScoredResult struct {
	Release    Release
	Score      float64
	Breakdown  map[string]float64
	Violations []string
}

// Rejections counts filtered releases per reason. Callers use it to
// tell "no results" apart from "results existed but all filtered".
type Rejections map[string]int

// SelectBest ranks candidates and returns the winner, or nil when no
// release survives filtering. Deterministic for a fixed input: ties
// break by higher seeder count, then by input order.
func SelectBest(releases []Release, opts Options) (*ScoredResult, Rejections) {
	rejections := make(Rejections)
	minSeeders := effectiveMinSeeders(opts)
	minSize, maxSize := effectiveSizeRange(opts)

	var best *ScoredResult
	seen := make(map[string]bool, len(releases))
	for _, rel := range releases {
		key := rel.Title + "\x00" + rel.Indexer
		if seen[key] {
			continue
		}
		seen[key] = true

		if rel.Info == nil {
			info := release.Parse(rel.Title)
			rel.Info = info
		}

		// Seeders filter. Unknown counts (usenet) are exempt.
		if minSeeders > 0 && rel.Seeders >= 0 && rel.Seeders < minSeeders {
			rejections[RejectMinSeeders]++
			continue
		}

		if violations := hardViolations(rel, opts); len(violations) > 0 {
			for _, v := range violations {
				rejections[v]++
			}
			continue
		}

		scored := score(rel, opts, minSize, maxSize)
		if better(scored, best) {
			best = scored
		}
	}

	return best, rejections
}

func better(candidate, current *ScoredResult) bool {
	if current == nil {
		return true
	}
	if candidate.Score != current.Score {
		return candidate.Score > current.Score
	}
	return candidate.Release.Seeders > current.Release.Seeders
}

func effectiveMinSeeders(opts Options) int {
	min := opts.MinSeeders
	if opts.Profile != nil && opts.Profile.MinSeeders > min {
		min = opts.Profile.MinSeeders
	}
	return min
}

func effectiveSizeRange(opts Options) (int64, int64) {
	min, max := opts.MinSizeMB, opts.MaxSizeMB
	if opts.Profile != nil {
		if min == 0 {
			min = opts.Profile.MinSizeMB
		}
		if max == 0 {
			max = opts.Profile.MaxSizeMB
		}
	}
	if min == 0 && max == 0 {
		if opts.MediaType == "movie" {
			return defaultMovieMinMB, defaultMovieMaxMB
		}
		return defaultEpisodeMinMB, defaultEpisodeMaxMB
	}
	return min, max
}

// hardViolations returns the constraint names a release breaks.
// Any violation excludes the release regardless of score.
func hardViolations(rel Release, opts Options) []string {
	var violations []string

	blocked := opts.Blocked
	if opts.Profile != nil {
		blocked = append(blocked, opts.Profile.Blocked...)
	}
	if containsTag(rel.Title, blocked) {
		violations = append(violations, RejectBlockedTag)
	}

	if opts.Profile != nil && opts.Profile.Exclusive {
		if resolutionRank(rel.Info.Resolution, opts.Profile.Resolutions) < 0 {
			violations = append(violations, RejectResolution)
		}
	}

	if opts.Query != "" {
		if release.Similarity(rel.Info.Title, opts.Query) < titleMatchThreshold {
			violations = append(violations, RejectTitleMatch)
		}
	}

	return violations
}

func score(rel Release, opts Options, minSizeMB, maxSizeMB int64) *ScoredResult {
	if opts.Profile == nil {
		return genericScore(rel)
	}
	return profileScore(rel, opts, minSizeMB, maxSizeMB)
}

// profileScore computes the weighted factor score against a profile.
func profileScore(rel Release, opts Options, minSizeMB, maxSizeMB int64) *ScoredResult {
	p := opts.Profile
	info := rel.Info
	breakdown := make(map[string]float64, 9)

	breakdown["resolution"] = listScore(resolutionRank(info.Resolution, p.Resolutions), len(p.Resolutions))
	breakdown["video_codec"] = codecScore(info.Codec, p.Codecs)
	breakdown["audio_codec"] = audioScore(info.Audio, p.Audio)
	breakdown["source"] = sourceScore(info.Source, p.Sources)
	breakdown["channels"] = channelsScore(info.Channels)
	breakdown["bitrate"] = bitrateScore(rel.Size, minSizeMB, maxSizeMB)
	breakdown["size_fit"] = sizeFitScore(rel.Size, minSizeMB, maxSizeMB)
	breakdown["audio_bitrate"] = audioBitrateScore(info.Audio)
	breakdown["hdr"] = hdrScore(info, p.PreferHDR)

	total := breakdown["resolution"]*weightResolution +
		breakdown["video_codec"]*weightCodec +
		breakdown["audio_codec"]*weightAudio +
		breakdown["source"]*weightSource +
		breakdown["channels"]*weightChannels +
		breakdown["bitrate"]*weightBitrate +
		breakdown["size_fit"]*weightSizeFit +
		breakdown["audio_bitrate"]*weightAudioBitrate +
		breakdown["hdr"]*weightHDR

	score := total * 100

	preferred := opts.Preferred
	preferred = append(preferred, p.Preferred...)
	if bonus := preferredBonus(rel.Title, preferred); bonus > 0 {
		breakdown["preferred_tags"] = bonus
		score += bonus
	}
	if info.Proper || info.Repack {
		breakdown["proper"] = 1
		score++
	}
	if score > 100 {
		score = 100
	}

	return &ScoredResult{Release: rel, Score: score, Breakdown: breakdown}
}

// genericScore ranks by intrinsic quality when no profile applies.
func genericScore(rel Release) *ScoredResult {
	info := rel.Info
	breakdown := make(map[string]float64, 6)

	var resolution float64
	switch info.Resolution {
	case release.Resolution2160p:
		resolution = 45
	case release.Resolution1080p:
		resolution = 40
	case release.Resolution720p:
		resolution = 25
	case release.Resolution480p:
		resolution = 10
	default:
		resolution = 5
	}
	breakdown["resolution"] = resolution

	var source float64
	switch info.Source {
	case release.SourceBluRay:
		source = 20
	case release.SourceWEBDL:
		source = 15
	case release.SourceWEBRip:
		source = 12
	case release.SourceHDTV:
		source = 8
	case release.SourceDVD:
		source = 5
	}
	breakdown["source"] = source

	var codec float64
	switch info.Codec {
	case release.CodecX265:
		codec = 15
	case release.CodecAV1:
		codec = 13
	case release.CodecX264:
		codec = 10
	}
	breakdown["video_codec"] = codec

	breakdown["audio_codec"] = audioBitrateScore(info.Audio) * 10

	if info.HasHDR() {
		breakdown["hdr"] = 5
	}
	if info.IsRemux {
		breakdown["remux"] = 5
	}
	if info.Proper || info.Repack {
		breakdown["proper"] = 2
	}

	var total float64
	for _, v := range breakdown {
		total += v
	}
	if total > 100 {
		total = 100
	}
	return &ScoredResult{Release: rel, Score: total, Breakdown: breakdown}
}

// resolutionRank returns the index of the resolution in the preference
// list, or -1 when absent.
func resolutionRank(r release.Resolution, prefs []release.Resolution) int {
	for i, p := range prefs {
		if p == r {
			return i
		}
	}
	return -1
}

// listScore converts a preference-list position into [0,1]: the first
// entry scores 1.0, later entries proportionally less, absent 0.
func listScore(rank, n int) float64 {
	if rank < 0 || n == 0 {
		return 0
	}
	return float64(n-rank) / float64(n)
}

var defaultCodecOrder = []release.Codec{release.CodecX265, release.CodecAV1, release.CodecX264}

func codecScore(c release.Codec, prefs []release.Codec) float64 {
	if c == release.CodecUnknown {
		return 0.25
	}
	order := prefs
	if len(order) == 0 {
		order = defaultCodecOrder
	}
	for i, p := range order {
		if p == c {
			return listScore(i, len(order))
		}
	}
	return 0
}

var defaultAudioOrder = []release.AudioCodec{
	release.AudioAtmos, release.AudioTrueHD, release.AudioDTSHD, release.AudioFLAC,
	release.AudioDTS, release.AudioEAC3, release.AudioAC3, release.AudioAAC, release.AudioOpus,
}

func audioScore(a release.AudioCodec, prefs []release.AudioCodec) float64 {
	if a == release.AudioUnknown {
		return 0.25
	}
	order := prefs
	if len(order) == 0 {
		order = defaultAudioOrder
	}
	for i, p := range order {
		if p == a {
			return listScore(i, len(order))
		}
	}
	return 0
}

var defaultSourceOrder = []release.Source{
	release.SourceBluRay, release.SourceWEBDL, release.SourceWEBRip,
	release.SourceHDTV, release.SourceDVD,
}

func sourceScore(s release.Source, prefs []release.Source) float64 {
	switch s {
	case release.SourceCAM, release.SourceTelesync:
		return 0
	case release.SourceUnknown:
		return 0.25
	}
	order := prefs
	if len(order) == 0 {
		order = defaultSourceOrder
	}
	for i, p := range order {
		if p == s {
			return listScore(i, len(order))
		}
	}
	return 0
}

func channelsScore(channels string) float64 {
	switch channels {
	case "7.1":
		return 1.0
	case "5.1":
		return 0.85
	case "2.0":
		return 0.4
	default:
		return 0.5
	}
}

// bitrateScore rewards sizes near the middle of the expected range,
// which correlates with a healthy bitrate for the target resolution.
func bitrateScore(size int64, minSizeMB, maxSizeMB int64) float64 {
	if size <= 0 || maxSizeMB <= 0 {
		return 0.5
	}
	ideal := float64(minSizeMB+maxSizeMB) / 2 * 1024 * 1024
	if ideal <= 0 {
		return 0.5
	}
	deviation := float64(size) - ideal
	if deviation < 0 {
		deviation = -deviation
	}
	score := 1 - deviation/ideal
	if score < 0 {
		return 0
	}
	return score
}

// sizeFitScore is 1.0 inside the configured range and degrades
// proportionally outside it.
func sizeFitScore(size int64, minSizeMB, maxSizeMB int64) float64 {
	if size <= 0 {
		return 0.5
	}
	sizeMB := size / (1024 * 1024)
	if minSizeMB > 0 && sizeMB < minSizeMB {
		return float64(sizeMB) / float64(minSizeMB)
	}
	if maxSizeMB > 0 && sizeMB > maxSizeMB {
		return float64(maxSizeMB) / float64(sizeMB)
	}
	return 1.0
}

// audioBitrateScore classifies audio codecs by fidelity class.
func audioBitrateScore(a release.AudioCodec) float64 {
	switch a {
	case release.AudioTrueHD, release.AudioDTSHD, release.AudioFLAC, release.AudioAtmos:
		return 1.0
	case release.AudioEAC3, release.AudioDTS:
		return 0.7
	case release.AudioAC3, release.AudioAAC, release.AudioOpus:
		return 0.5
	default:
		return 0.3
	}
}

func hdrScore(info *release.Info, preferHDR bool) float64 {
	if preferHDR {
		if info.HasHDR() {
			return 1.0
		}
		return 0
	}
	if info.HasHDR() {
		return 0.5
	}
	return 1.0
}

func containsTag(title string, tags []string) bool {
	lower := strings.ToLower(title)
	for _, tag := range tags {
		if tag != "" && strings.Contains(lower, strings.ToLower(tag)) {
			return true
		}
	}
	return false
}

func preferredBonus(title string, tags []string) float64 {
	lower := strings.ToLower(title)
	var bonus float64
	for _, tag := range tags {
		if tag != "" && strings.Contains(lower, strings.ToLower(tag)) {
			bonus += 2
		}
	}
	if bonus > 6 {
		bonus = 6
	}
	return bonus
}
