package release

import (
	"reflect"
	"testing"
)

func TestParse_Resolution(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Resolution
	}{
		{"2160p token", "Movie.2021.2160p.WEB-DL.x265", Resolution2160p},
		{"4K token", "Movie 2021 4K UHD BluRay", Resolution2160p},
		{"1080p token", "Movie.2021.1080p.BluRay.x264-GROUP", Resolution1080p},
		{"720p token", "Show.S01E01.720p.HDTV.x264", Resolution720p},
		{"480p token", "Old.Movie.480p.DVDRip", Resolution480p},
		{"no token", "Some Random Name", ResolutionUnknown},
		{"case insensitive", "movie.1080P.bluray", Resolution1080p},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Parse(tt.in).Resolution; got != tt.want {
				t.Errorf("Parse(%q).Resolution = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_SourceAndCodec(t *testing.T) {
	tests := []struct {
		in         string
		wantSource Source
		wantCodec  Codec
	}{
		{"Movie.2021.1080p.BluRay.x264-GRP", SourceBluRay, CodecX264},
		{"Movie.2021.1080p.WEB-DL.H264", SourceWEBDL, CodecX264},
		{"Movie.2021.2160p.WEBRip.h265", SourceWEBRip, CodecX265},
		{"Show.S02E03.HDTV.HEVC", SourceHDTV, CodecX265},
		{"Movie.2021.1080p.WEB.AV1", SourceWEBDL, CodecAV1},
		{"Movie.2003.DVDRip.XviD", SourceDVD, CodecUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			info := Parse(tt.in)
			if info.Source != tt.wantSource {
				t.Errorf("Source = %v, want %v", info.Source, tt.wantSource)
			}
			if info.Codec != tt.wantCodec {
				t.Errorf("Codec = %v, want %v", info.Codec, tt.wantCodec)
			}
		})
	}
}

func TestParse_Audio(t *testing.T) {
	tests := []struct {
		in   string
		want AudioCodec
	}{
		{"Movie.2021.1080p.BluRay.TrueHD.Atmos.7.1", AudioAtmos},
		{"Movie.2021.1080p.BluRay.TrueHD.5.1", AudioTrueHD},
		{"Movie.2021.1080p.BluRay.DTS-HD.MA.5.1", AudioDTSHD},
		{"Movie.2021.1080p.BluRay.DTS", AudioDTS},
		{"Movie.2021.WEB-DL.DDP5.1", AudioEAC3},
		{"Movie.2021.WEB-DL.EAC3", AudioEAC3},
		{"Movie.2021.HDTV.AC3", AudioAC3},
		{"Movie.2021.WEB.AAC", AudioAAC},
		{"Concert.2021.FLAC", AudioFLAC},
		{"Movie.2021.1080p", AudioUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Parse(tt.in).Audio; got != tt.want {
				t.Errorf("Audio = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParse_HDR(t *testing.T) {
	tests := []struct {
		in   string
		want HDRFormat
	}{
		{"Movie.2021.2160p.WEB-DL.DV.HDR10", DolbyVision},
		{"Movie.2021.2160p.HDR10+.x265", HDR10Plus},
		{"Movie.2021.2160p.HDR10.x265", HDR10},
		{"Movie.2021.2160p.HDR.x265", HDRGeneric},
		{"Movie.2021.2160p.HLG", HLG},
		{"Movie.2021.1080p.x264", HDRNone},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Parse(tt.in).HDR; got != tt.want {
				t.Errorf("HDR = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParse_SeasonEpisode(t *testing.T) {
	tests := []struct {
		name         string
		in           string
		wantSeason   int
		wantEpisodes []int
		wantPack     bool
	}{
		{"single episode", "Show.S03E07.1080p.WEB-DL", 3, []int{7}, false},
		{"multi episode", "Show.S01E05E06.720p", 1, []int{5, 6}, false},
		{"alt format", "Show 3x07 HDTV", 3, []int{7}, false},
		{"season pack short", "Show.S03.1080p.BluRay", 3, nil, true},
		{"season pack word", "Show Season 3 Complete 1080p", 3, nil, true},
		{"movie has no season", "Movie.2021.1080p.BluRay", 0, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := Parse(tt.in)
			if info.Season != tt.wantSeason {
				t.Errorf("Season = %d, want %d", info.Season, tt.wantSeason)
			}
			if len(info.Episodes) != len(tt.wantEpisodes) {
				t.Fatalf("Episodes = %v, want %v", info.Episodes, tt.wantEpisodes)
			}
			for i, ep := range tt.wantEpisodes {
				if info.Episodes[i] != ep {
					t.Errorf("Episodes[%d] = %d, want %d", i, info.Episodes[i], ep)
				}
			}
			if info.IsCompleteSeason != tt.wantPack {
				t.Errorf("IsCompleteSeason = %v, want %v", info.IsCompleteSeason, tt.wantPack)
			}
		})
	}
}

func TestParse_TitleAndYear(t *testing.T) {
	tests := []struct {
		in        string
		wantTitle string
		wantYear  int
	}{
		{"The.Matrix.1999.1080p.BluRay.x264-GRP", "The Matrix", 1999},
		{"Show.Name.S01E01.720p.HDTV", "Show Name", 0},
		{"1984.2021.1080p.WEB-DL", "1984", 2021},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			info := Parse(tt.in)
			if info.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", info.Title, tt.wantTitle)
			}
			if info.Year != tt.wantYear {
				t.Errorf("Year = %d, want %d", info.Year, tt.wantYear)
			}
		})
	}
}

// Parse must be total and deterministic for arbitrary input.
func TestParse_TotalAndDeterministic(t *testing.T) {
	inputs := []string{
		"",
		".",
		"----",
		"\x00\x01garbage\xff",
		"S99E999",
		"Movie.2021.2160p.DV.HDR10+.TrueHD.Atmos.7.1.REMUX-GRP",
	}
	for _, in := range inputs {
		first := Parse(in)
		second := Parse(in)
		if first == nil || second == nil {
			t.Fatalf("Parse(%q) returned nil", in)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Parse(%q) not deterministic", in)
		}
	}
}

func TestParse_Group(t *testing.T) {
	info := Parse("Movie.2021.1080p.BluRay.x264-SPARKS")
	if info.Group != "SPARKS" {
		t.Errorf("Group = %q, want SPARKS", info.Group)
	}
}
