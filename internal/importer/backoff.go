package importer

import "time"

// backoffSchedule is the retry delay ladder for failed import attempts,
// 1 minute up to 24 hours. Attempts beyond the ladder reuse the last step.
var backoffSchedule = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	900 * time.Second,
	3600 * time.Second,
	14400 * time.Second,
	43200 * time.Second,
	86400 * time.Second,
}

// backoffDelay returns the delay before retry number attempt+1.
// attempt counts prior failures, so the first failure gets the first step.
func backoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(backoffSchedule) {
		return backoffSchedule[len(backoffSchedule)-1]
	}
	return backoffSchedule[attempt]
}
