package release

import (
	"regexp"

	"github.com/hbollon/go-edlib"
)

var titleNumberRegex = regexp.MustCompile(`\b(\d+)\b`)

// Similarity scores how well a parsed release title matches a wanted title.
// Both sides are normalized through CleanTitle before comparison.
// Jaro-Winkler favors shared prefixes, which suits media titles; sequence
// numbers ("Movie 2" vs "Movie 3") adjust the score since edit distance
// alone barely distinguishes them.
func Similarity(parsedTitle, wantedTitle string) float64 {
	a := CleanTitle(parsedTitle)
	b := CleanTitle(wantedTitle)
	if a == "" || b == "" {
		return 0
	}

	score := float64(edlib.JaroWinklerSimilarity(a, b))
	return adjustForNumbers(score, titleNumberRegex.FindAllString(a, -1), titleNumberRegex.FindAllString(b, -1))
}

// adjustForNumbers applies a bonus when sequence numbers agree between the
// two titles and a penalty when they conflict or are missing on one side.
func adjustForNumbers(score float64, parsedNums, wantedNums []string) float64 {
	if len(wantedNums) == 0 && len(parsedNums) == 0 {
		return score
	}
	if len(parsedNums) == 0 || len(wantedNums) == 0 {
		return score * 0.85
	}

	wanted := make(map[string]bool, len(wantedNums))
	for _, n := range wantedNums {
		wanted[n] = true
	}
	for _, n := range parsedNums {
		if wanted[n] {
			return min(score*1.05, 1.0)
		}
	}
	return score * 0.90
}
