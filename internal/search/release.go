// Package search implements the automated release search pipeline:
// indexer aggregation, quality ranking, search budgets and the
// season-pack decision flow.
package search

import (
	"strings"
	"time"

	"github.com/mydia/mydia/internal/config"
	"github.com/mydia/mydia/pkg/release"
)

// Release is one candidate returned by an indexer. Ephemeral, never
// persisted.
type Release struct {
	Title       string
	GUID        string
	DownloadURL string
	Size        int64
	Seeders     int // -1 when the indexer does not report seeders
	PublishDate time.Time
	Indexer     string
	Protocol    string // torrent or usenet, selects the download client
	Info        *release.Info
}

// Profile is a quality profile resolved from configuration into parsed
// enum values, immutable during a ranking pass.
type Profile struct {
	Resolutions []release.Resolution // ordered most-preferred first
	Exclusive   bool
	Codecs      []release.Codec
	Audio       []release.AudioCodec
	Sources     []release.Source
	PreferHDR   bool
	MinSeeders  int
	MinSizeMB   int64
	MaxSizeMB   int64
	Blocked     []string
	Preferred   []string
}

// ProfileFromConfig converts a configured profile into ranking form.
// Unparseable entries are dropped.
func ProfileFromConfig(p config.QualityProfile) *Profile {
	out := &Profile{
		Exclusive:  p.Exclusive,
		PreferHDR:  p.PreferHDR,
		MinSeeders: p.MinSeeders,
		MinSizeMB:  p.MinSizeMB,
		MaxSizeMB:  p.MaxSizeMB,
		Blocked:    p.Blocked,
		Preferred:  p.Preferred,
	}
	for _, s := range p.Resolutions {
		if r := release.ParseResolution(strings.ToLower(s)); r != release.ResolutionUnknown {
			out.Resolutions = append(out.Resolutions, r)
		}
	}
	for _, s := range p.Codecs {
		if c := parseCodecName(s); c != release.CodecUnknown {
			out.Codecs = append(out.Codecs, c)
		}
	}
	for _, s := range p.Audio {
		if a := parseAudioName(s); a != release.AudioUnknown {
			out.Audio = append(out.Audio, a)
		}
	}
	for _, s := range p.Sources {
		if src := parseSourceName(s); src != release.SourceUnknown {
			out.Sources = append(out.Sources, src)
		}
	}
	return out
}

func parseCodecName(s string) release.Codec {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x264", "h264", "avc":
		return release.CodecX264
	case "x265", "h265", "hevc":
		return release.CodecX265
	case "av1":
		return release.CodecAV1
	default:
		return release.CodecUnknown
	}
}

func parseAudioName(s string) release.AudioCodec {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "aac":
		return release.AudioAAC
	case "ac3", "dd":
		return release.AudioAC3
	case "eac3", "dd+", "ddp":
		return release.AudioEAC3
	case "dts":
		return release.AudioDTS
	case "dts-hd", "dtshd", "dts-hd ma":
		return release.AudioDTSHD
	case "truehd":
		return release.AudioTrueHD
	case "atmos":
		return release.AudioAtmos
	case "flac":
		return release.AudioFLAC
	case "opus":
		return release.AudioOpus
	default:
		return release.AudioUnknown
	}
}

func parseSourceName(s string) release.Source {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bluray", "blu-ray":
		return release.SourceBluRay
	case "webdl", "web-dl", "web":
		return release.SourceWEBDL
	case "webrip":
		return release.SourceWEBRip
	case "hdtv":
		return release.SourceHDTV
	case "dvd":
		return release.SourceDVD
	default:
		return release.SourceUnknown
	}
}
