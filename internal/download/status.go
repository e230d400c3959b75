package download

// Status tracks where a download is in its lifecycle.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusImported    Status = "imported"
	StatusFailed      Status = "failed"
)

// validTransitions maps each status to the statuses it may move to.
var validTransitions = map[Status][]Status{
	StatusPending:     {StatusDownloading, StatusCompleted, StatusFailed},
	StatusDownloading: {StatusCompleted, StatusFailed},
	StatusCompleted:   {StatusImported, StatusFailed},
	StatusImported:    {},
	StatusFailed:      {StatusPending}, // manual retry
}

// CanTransitionTo reports whether moving from s to target is allowed.
func (s Status) CanTransitionTo(target Status) bool {
	valid, ok := validTransitions[s]
	if !ok {
		return false
	}
	for _, v := range valid {
		if v == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the pipeline is done with this download.
func (s Status) IsTerminal() bool {
	return s == StatusImported || s == StatusFailed
}
