package search

import (
	"context"
	"time"
)

// Budget tracks search counters for one run. A ceiling of 0 means
// unbounded. The budget is a plain value threaded through the search
// loop; counters are never shared across runs.
type Budget struct {
	MaxPerRun    int
	MaxPerShow   int
	MaxPerSeason int
	SearchDelay  time.Duration

	run    int
	show   int
	season int

	processed int
	skipped   int
}

func NewBudget(maxPerRun, maxPerShow, maxPerSeason int, delay time.Duration) *Budget {
	return &Budget{
		MaxPerRun:    maxPerRun,
		MaxPerShow:   maxPerShow,
		MaxPerSeason: maxPerSeason,
		SearchDelay:  delay,
	}
}

// wouldExceed reports whether performing one more search would pass the
// ceiling. A current count equal to the ceiling already exceeds it.
func wouldExceed(current, ceiling int) bool {
	if ceiling <= 0 {
		return false
	}
	return current >= ceiling
}

// WouldExceedRun reports whether the per-run ceiling is reached.
func (b *Budget) WouldExceedRun() bool { return wouldExceed(b.run, b.MaxPerRun) }

// WouldExceedShow reports whether the per-show ceiling is reached.
func (b *Budget) WouldExceedShow() bool { return wouldExceed(b.show, b.MaxPerShow) }

// WouldExceedSeason reports whether the per-season ceiling is reached.
func (b *Budget) WouldExceedSeason() bool { return wouldExceed(b.season, b.MaxPerSeason) }

// Exhausted reports whether any applicable ceiling blocks the next search.
func (b *Budget) Exhausted() bool {
	return b.WouldExceedRun() || b.WouldExceedShow() || b.WouldExceedSeason()
}

// RecordSearch counts one performed search against all ceilings and
// applies the optional post-search delay (indexer rate limit pause).
func (b *Budget) RecordSearch(ctx context.Context) {
	b.run++
	b.show++
	b.season++
	b.processed++

	if b.SearchDelay > 0 {
		select {
		case <-time.After(b.SearchDelay):
		case <-ctx.Done():
		}
	}
}

// RecordSkipped counts a search unit that was not performed because a
// ceiling was hit.
func (b *Budget) RecordSkipped() { b.skipped++ }

// NextShow resets the per-show and per-season counters.
func (b *Budget) NextShow() {
	b.show = 0
	b.season = 0
}

// NextSeason resets the per-season counter.
func (b *Budget) NextSeason() { b.season = 0 }

// Processed returns how many searches this run performed.
func (b *Budget) Processed() int { return b.processed }

// Skipped returns how many search units were skipped due to ceilings.
func (b *Budget) Skipped() int { return b.skipped }
