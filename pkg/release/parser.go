package release

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	yearRegex = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

	// S01E05, s1e5, S01E05E06, S01E05-E07
	seasonEpisodeRegex = regexp.MustCompile(`(?i)\bS(\d{1,2})[\s.]?E(\d{1,3})((?:[-\s.]?E\d{1,3})*)\b`)
	extraEpisodeRegex  = regexp.MustCompile(`(?i)E(\d{1,3})`)

	// 3x07 style
	altEpisodeRegex = regexp.MustCompile(`\b(\d{1,2})x(\d{2,3})\b`)

	// Season-only markers: "S03" or "Season 3" with no episode part.
	seasonOnlyRegex   = regexp.MustCompile(`(?i)\bS(\d{1,2})\b`)
	seasonWordRegex   = regexp.MustCompile(`(?i)\bseason[\s.]?(\d{1,2})\b`)
	channelsRegex     = regexp.MustCompile(`\b([257])[\s.]([01])\b`)
	serviceTagRegex   = regexp.MustCompile(`\b(NF|AMZN|DSNP|HULU|MAX|ATVP|PCOK|PMTP)\b`)
	groupSuffixRegex  = regexp.MustCompile(`-([A-Za-z0-9]+)$`)
	fileExtUnderParse = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|m4v|ts|wmv|mov)$`)
	dvRegex           = regexp.MustCompile(`(?i)\bdv\b`)
	hdrRegex          = regexp.MustCompile(`(?i)\bhdr\b`)
)

// Parse extracts a quality descriptor from a release title or filename.
// It is total: any input (including empty) yields an Info, with unmatched
// fields left at their unknown zero value.
func Parse(name string) *Info {
	info := &Info{}

	raw := fileExtUnderParse.ReplaceAllString(name, "")

	// Dots and underscores are word separators in scene names.
	spaced := strings.ReplaceAll(raw, ".", " ")
	spaced = strings.ReplaceAll(spaced, "_", " ")
	lower := strings.ToLower(spaced)

	info.Resolution = parseResolution(lower)
	info.Source = parseSource(lower)
	info.Codec = parseCodec(lower)
	info.Audio = parseAudio(lower)
	info.HDR = parseHDR(spaced)

	info.Proper = strings.Contains(lower, "proper")
	info.Repack = containsAny(lower, "repack", "rerip")
	info.IsRemux = strings.Contains(lower, "remux")

	if m := channelsRegex.FindStringSubmatch(raw); len(m) == 3 {
		info.Channels = m[1] + "." + m[2]
	}
	if m := serviceTagRegex.FindStringSubmatch(spaced); len(m) == 2 {
		info.Service = m[1]
	}

	titleEnd := len(spaced)

	if m := seasonEpisodeRegex.FindStringSubmatchIndex(spaced); m != nil {
		info.Season = atoi(spaced[m[2]:m[3]])
		first := atoi(spaced[m[4]:m[5]])
		info.Episodes = []int{first}
		if m[6] >= 0 {
			for _, em := range extraEpisodeRegex.FindAllStringSubmatch(spaced[m[6]:m[7]], -1) {
				info.Episodes = append(info.Episodes, atoi(em[1]))
			}
		}
		info.Episode = first
		titleEnd = min(titleEnd, m[0])
	} else if m := altEpisodeRegex.FindStringSubmatchIndex(spaced); m != nil {
		info.Season = atoi(spaced[m[2]:m[3]])
		info.Episode = atoi(spaced[m[4]:m[5]])
		info.Episodes = []int{info.Episode}
		titleEnd = min(titleEnd, m[0])
	} else if m := seasonWordRegex.FindStringSubmatchIndex(spaced); m != nil {
		info.Season = atoi(spaced[m[2]:m[3]])
		info.IsCompleteSeason = true
		titleEnd = min(titleEnd, m[0])
	} else if m := seasonOnlyRegex.FindStringSubmatchIndex(spaced); m != nil {
		info.Season = atoi(spaced[m[2]:m[3]])
		info.IsCompleteSeason = true
		titleEnd = min(titleEnd, m[0])
	}

	// Year: last match wins so titles like "1984 2021" keep the release year.
	if matches := yearRegex.FindAllStringIndex(spaced, -1); len(matches) > 0 {
		last := matches[len(matches)-1]
		info.Year = atoi(spaced[last[0]:last[1]])
		if last[0] > 0 && last[0] < titleEnd {
			titleEnd = last[0]
		}
	}

	// Group is the trailing -TAG on the raw name.
	if m := groupSuffixRegex.FindStringSubmatch(strings.TrimSpace(raw)); len(m) == 2 {
		info.Group = m[1]
	}

	title := strings.TrimSpace(spaced[:titleEnd])
	title = strings.Trim(title, "-([ ")
	info.Title = title
	info.CleanTitle = CleanTitle(title)

	return info
}

func parseResolution(lower string) Resolution {
	switch {
	case containsAny(lower, "2160p", "4k", "uhd"):
		return Resolution2160p
	case strings.Contains(lower, "1080p"):
		return Resolution1080p
	case strings.Contains(lower, "720p"):
		return Resolution720p
	case strings.Contains(lower, "480p"):
		return Resolution480p
	default:
		return ResolutionUnknown
	}
}

func parseSource(lower string) Source {
	switch {
	case containsAny(lower, "bluray", "blu-ray", "bdrip", "brrip", "bdremux"):
		return SourceBluRay
	case containsAny(lower, "web-dl", "webdl", " web "):
		return SourceWEBDL
	case containsAny(lower, "webrip", "web-rip"):
		return SourceWEBRip
	case strings.Contains(lower, "hdtv"):
		return SourceHDTV
	case containsAny(lower, "dvdrip", "dvd"):
		return SourceDVD
	case containsAny(lower, "hdcam", "camrip", " cam "):
		return SourceCAM
	case containsAny(lower, "telesync", "hdts", " ts "):
		return SourceTelesync
	default:
		return SourceUnknown
	}
}

func parseCodec(lower string) Codec {
	switch {
	case containsAny(lower, "x265", "h265", "h 265", "hevc"):
		return CodecX265
	case containsAny(lower, "x264", "h264", "h 264", "avc"):
		return CodecX264
	case containsAny(lower, "av1"):
		return CodecAV1
	default:
		return CodecUnknown
	}
}

// parseAudio matches the most specific codec token first: "truehd atmos"
// must map to Atmos, not TrueHD, and "dts-hd" must not map to DTS.
func parseAudio(lower string) AudioCodec {
	switch {
	case strings.Contains(lower, "atmos"):
		return AudioAtmos
	case strings.Contains(lower, "truehd"):
		return AudioTrueHD
	case containsAny(lower, "dts-hd", "dts hd", "dtshd"):
		return AudioDTSHD
	case strings.Contains(lower, "dts"):
		return AudioDTS
	case containsAny(lower, "eac3", "e-ac3", "ddp", "dd+"):
		return AudioEAC3
	case containsAny(lower, "ac3", "dd5", "dd2"):
		return AudioAC3
	case strings.Contains(lower, "flac"):
		return AudioFLAC
	case strings.Contains(lower, "opus"):
		return AudioOpus
	case strings.Contains(lower, "aac"):
		return AudioAAC
	default:
		return AudioUnknown
	}
}

func parseHDR(spaced string) HDRFormat {
	lower := strings.ToLower(spaced)
	switch {
	case containsAny(lower, "dolby vision", "dovi") || dvRegex.MatchString(spaced):
		return DolbyVision
	case containsAny(lower, "hdr10+", "hdr10plus"):
		return HDR10Plus
	case strings.Contains(lower, "hdr10"):
		return HDR10
	case strings.Contains(lower, "hlg"):
		return HLG
	case hdrRegex.MatchString(spaced):
		return HDRGeneric
	default:
		return HDRNone
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}
