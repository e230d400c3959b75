package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mydia/mydia/pkg/release"
)

// parsedJSON is the JSON-friendly view of a parsed release name.
type parsedJSON struct {
	Title      string `json:"title"`
	Year       int    `json:"year,omitempty"`
	Season     int    `json:"season,omitempty"`
	Episode    int    `json:"episode,omitempty"`
	Episodes   []int  `json:"episodes,omitempty"`
	SeasonPack bool   `json:"season_pack,omitempty"`
	Resolution string `json:"resolution"`
	Source     string `json:"source"`
	Codec      string `json:"codec"`
	Audio      string `json:"audio,omitempty"`
	Channels   string `json:"channels,omitempty"`
	HDR        string `json:"hdr,omitempty"`
	Remux      bool   `json:"remux,omitempty"`
	Service    string `json:"service,omitempty"`
	Group      string `json:"group,omitempty"`
	Proper     bool   `json:"proper,omitempty"`
	Repack     bool   `json:"repack,omitempty"`
	CleanTitle string `json:"clean_title"`
}

var parseCmd = &cobra.Command{
	Use:   "parse [flags] <release-name>",
	Short: "Parse a release name (local, no server needed)",
	Long: `Parse a release name to extract metadata.

Examples:
  mydia parse "The.Matrix.1999.2160p.UHD.BluRay.x265-GROUP"
  mydia parse --file releases.txt --json`,
	RunE: runParseCmd,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringP("file", "f", "", "Read release names from file (one per line)")
}

func runParseCmd(cmd *cobra.Command, args []string) error {
	inputFile, _ := cmd.Flags().GetString("file")

	var names []string
	switch {
	case inputFile != "":
		read, err := readReleaseFile(inputFile)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
		names = read
	case len(args) > 0:
		names = args
	default:
		return fmt.Errorf("usage: mydia parse <release-name> or mydia parse --file <filename>")
	}

	infos := make([]*release.Info, 0, len(names))
	for _, name := range names {
		infos = append(infos, release.Parse(name))
	}

	if jsonOutput {
		return printJSON(infos)
	}
	for i, info := range infos {
		if i > 0 {
			fmt.Println()
		}
		printInfo(info)
	}
	return nil
}

// readReleaseFile reads release names one per line, skipping blanks
// and # comments.
func readReleaseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			names = append(names, line)
		}
	}
	return names, scanner.Err()
}

func printInfo(info *release.Info) {
	fmt.Printf("Title:       %s\n", valueOrNone(info.Title))
	if info.Year > 0 {
		fmt.Printf("Year:        %d\n", info.Year)
	}
	if info.Season > 0 {
		fmt.Printf("Season:      %d\n", info.Season)
	}
	switch {
	case len(info.Episodes) > 1:
		fmt.Printf("Episodes:    %s\n", joinInts(info.Episodes))
	case info.Episode > 0:
		fmt.Printf("Episode:     %d\n", info.Episode)
	case info.IsCompleteSeason:
		fmt.Printf("SeasonPack:  yes\n")
	}
	fmt.Printf("Resolution:  %s\n", info.Resolution)
	fmt.Printf("Source:      %s\n", info.Source)
	fmt.Printf("Codec:       %s\n", info.Codec)
	if info.Audio != release.AudioUnknown {
		fmt.Printf("Audio:       %s\n", info.Audio)
	}
	if info.Channels != "" {
		fmt.Printf("Channels:    %s\n", info.Channels)
	}
	if info.HasHDR() {
		fmt.Printf("HDR:         %s\n", info.HDR)
	}
	if info.IsRemux {
		fmt.Printf("Remux:       yes\n")
	}
	if info.Service != "" {
		fmt.Printf("Service:     %s\n", info.Service)
	}
	if info.Group != "" {
		fmt.Printf("Group:       %s\n", info.Group)
	}
	if info.Proper {
		fmt.Printf("Proper:      yes\n")
	}
	if info.Repack {
		fmt.Printf("Repack:      yes\n")
	}
	fmt.Printf("CleanTitle:  %s\n", valueOrNone(info.CleanTitle))
}

func printJSON(infos []*release.Info) error {
	out := make([]parsedJSON, len(infos))
	for i, info := range infos {
		out[i] = parsedJSON{
			Title:      info.Title,
			Year:       info.Year,
			Season:     info.Season,
			Episode:    info.Episode,
			SeasonPack: info.IsCompleteSeason,
			Resolution: info.Resolution.String(),
			Source:     info.Source.String(),
			Codec:      info.Codec.String(),
			Audio:      info.Audio.String(),
			Channels:   info.Channels,
			Remux:      info.IsRemux,
			Service:    info.Service,
			Group:      info.Group,
			Proper:     info.Proper,
			Repack:     info.Repack,
			CleanTitle: info.CleanTitle,
		}
		if len(info.Episodes) > 1 {
			out[i].Episodes = info.Episodes
		}
		if info.HasHDR() {
			out[i].HDR = info.HDR.String()
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if len(out) == 1 {
		return enc.Encode(out[0])
	}
	return enc.Encode(out)
}

func valueOrNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ", ")
}
