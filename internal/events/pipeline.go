package events

import "time"

// Event type constants for the acquisition pipeline.
const (
	TypeSearchNoResults   = "search.no_results"
	TypeSearchAllFiltered = "search.all_filtered"
	TypeSearchCompleted   = "search.completed"
	TypeDownloadInitiated = "download.initiated"
	TypeDownloadFailed    = "download.failed"
	TypeImportCompleted   = "import.completed"
	TypeImportFailed      = "import.failed"
)

// Entity type constants.
const (
	EntityMediaItem = "media_item"
	EntityEpisode   = "episode"
	EntityDownload  = "download"
)

// SearchNoResults is published when every configured indexer returned
// zero candidates for a search target.
type SearchNoResults struct {
	BaseEvent
	Query string `json:"query"`
}

func NewSearchNoResults(entityType string, entityID int64, query string) SearchNoResults {
	return SearchNoResults{
		BaseEvent: newBase(TypeSearchNoResults, entityType, entityID),
		Query:     query,
	}
}

// SearchAllFiltered is published when candidates came back but every one
// was rejected by the quality profile. Rejections maps reason to count so
// operators can see why nothing qualified.
type SearchAllFiltered struct {
	BaseEvent
	Query      string         `json:"query"`
	Candidates int            `json:"candidates"`
	Rejections map[string]int `json:"rejections"`
}

func NewSearchAllFiltered(entityType string, entityID int64, query string, candidates int, rejections map[string]int) SearchAllFiltered {
	return SearchAllFiltered{
		BaseEvent:  newBase(TypeSearchAllFiltered, entityType, entityID),
		Query:      query,
		Candidates: candidates,
		Rejections: rejections,
	}
}

// SearchCompleted is published when a release was selected for a target.
type SearchCompleted struct {
	BaseEvent
	ReleaseTitle string  `json:"release_title"`
	Indexer      string  `json:"indexer"`
	Score        float64 `json:"score"`
	SeasonPack   bool    `json:"season_pack"`
}

func NewSearchCompleted(entityType string, entityID int64, title, indexer string, score float64, seasonPack bool) SearchCompleted {
	return SearchCompleted{
		BaseEvent:    newBase(TypeSearchCompleted, entityType, entityID),
		ReleaseTitle: title,
		Indexer:      indexer,
		Score:        score,
		SeasonPack:   seasonPack,
	}
}

// DownloadInitiated is published after a release was handed to a client.
type DownloadInitiated struct {
	BaseEvent
	ReleaseTitle string `json:"release_title"`
	Client       string `json:"client"`
}

func NewDownloadInitiated(downloadID int64, title, client string) DownloadInitiated {
	return DownloadInitiated{
		BaseEvent:    newBase(TypeDownloadInitiated, EntityDownload, downloadID),
		ReleaseTitle: title,
		Client:       client,
	}
}

// DownloadFailed is published when a download reached a terminal failure.
type DownloadFailed struct {
	BaseEvent
	ReleaseTitle string `json:"release_title"`
	Reason       string `json:"reason"`
}

func NewDownloadFailed(downloadID int64, title, reason string) DownloadFailed {
	return DownloadFailed{
		BaseEvent:    newBase(TypeDownloadFailed, EntityDownload, downloadID),
		ReleaseTitle: title,
		Reason:       reason,
	}
}

// ImportCompleted is published when all files of a finished download were
// moved into the library.
type ImportCompleted struct {
	BaseEvent
	FilesImported int `json:"files_imported"`
}

func NewImportCompleted(downloadID int64, filesImported int) ImportCompleted {
	return ImportCompleted{
		BaseEvent:     newBase(TypeImportCompleted, EntityDownload, downloadID),
		FilesImported: filesImported,
	}
}

// ImportFailed is published when an import attempt failed. NextRetryAt is
// nil once retries are exhausted.
type ImportFailed struct {
	BaseEvent
	Error       string     `json:"error"`
	Attempt     int        `json:"attempt"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
}

func NewImportFailed(downloadID int64, errMsg string, attempt int, nextRetryAt *time.Time) ImportFailed {
	return ImportFailed{
		BaseEvent:   newBase(TypeImportFailed, EntityDownload, downloadID),
		Error:       errMsg,
		Attempt:     attempt,
		NextRetryAt: nextRetryAt,
	}
}
