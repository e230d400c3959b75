// Package download tracks download records and talks to download clients.
package download

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Download is one release handed to a download client. Exactly one of
// MediaItemID (movies, season packs) or EpisodeID is usually set;
// season packs carry the pack metadata fields as well.
type Download struct {
	ID            int64
	MediaItemID   *int64
	EpisodeID     *int64
	LibraryPathID *int64
	Title         string
	SourceURL     string
	Indexer       string
	ClientName    string
	ClientTaskID  string
	Status        Status

	IsSeasonPack     bool
	PackSeason       *int
	PackEpisodeCount *int
	PackEpisodeIDs   []int64

	AddedAt     time.Time
	CompletedAt *time.Time
	ImportedAt  *time.Time

	ImportRetryCount  int
	ImportLastError   *string
	ImportNextRetryAt *time.Time
	ImportFailedAt    *time.Time
}

// Filter specifies criteria for listing downloads.
type Filter struct {
	MediaItemID *int64
	EpisodeID   *int64
	Status      *Status
	Active      bool // only pending and downloading
}

// Store persists download records.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const downloadCols = `id, media_item_id, episode_id, library_path_id, title, source_url, indexer,
	client_name, client_task_id, status, is_season_pack, pack_season, pack_episode_count,
	pack_episode_ids, added_at, completed_at, imported_at,
	import_retry_count, import_last_error, import_next_retry_at, import_failed_at`

func scanDownload(row interface{ Scan(...any) error }) (*Download, error) {
	d := &Download{}
	var taskID sql.NullString
	var packIDs sql.NullString
	err := row.Scan(&d.ID, &d.MediaItemID, &d.EpisodeID, &d.LibraryPathID, &d.Title, &d.SourceURL,
		&d.Indexer, &d.ClientName, &taskID, &d.Status, &d.IsSeasonPack, &d.PackSeason,
		&d.PackEpisodeCount, &packIDs, &d.AddedAt, &d.CompletedAt, &d.ImportedAt,
		&d.ImportRetryCount, &d.ImportLastError, &d.ImportNextRetryAt, &d.ImportFailedAt)
	if err != nil {
		return nil, err
	}
	d.ClientTaskID = taskID.String
	if packIDs.Valid && packIDs.String != "" {
		if err := json.Unmarshal([]byte(packIDs.String), &d.PackEpisodeIDs); err != nil {
			return nil, fmt.Errorf("decode pack episode ids: %w", err)
		}
	}
	return d, nil
}

// Add records a new download. Idempotent: if a download with the same
// title and source URL already exists, the existing record is loaded
// into d instead of inserting a duplicate.
func (s *Store) Add(d *Download) error {
	existing, err := scanDownload(s.db.QueryRow(
		"SELECT "+downloadCols+" FROM downloads WHERE title = ? AND source_url = ?",
		d.Title, d.SourceURL))
	if err == nil {
		*d = *existing
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("check existing download: %w", err)
	}

	var packIDs *string
	if len(d.PackEpisodeIDs) > 0 {
		raw, err := json.Marshal(d.PackEpisodeIDs)
		if err != nil {
			return fmt.Errorf("encode pack episode ids: %w", err)
		}
		str := string(raw)
		packIDs = &str
	}

	if d.Status == "" {
		d.Status = StatusPending
	}
	now := time.Now()
	result, err := s.db.Exec(`
		INSERT INTO downloads (media_item_id, episode_id, library_path_id, title, source_url, indexer,
			client_name, client_task_id, status, is_season_pack, pack_season, pack_episode_count,
			pack_episode_ids, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.MediaItemID, d.EpisodeID, d.LibraryPathID, d.Title, d.SourceURL, d.Indexer,
		d.ClientName, nullString(d.ClientTaskID), d.Status, d.IsSeasonPack, d.PackSeason,
		d.PackEpisodeCount, packIDs, now,
	)
	if err != nil {
		return fmt.Errorf("insert download: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	d.ID = id
	d.AddedAt = now
	return nil
}

// Get retrieves a download by ID.
// Returns ErrNotFound if the download does not exist.
func (s *Store) Get(id int64) (*Download, error) {
	d, err := scanDownload(s.db.QueryRow("SELECT "+downloadCols+" FROM downloads WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get download %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get download %d: %w", id, err)
	}
	return d, nil
}

// SetTask records which client accepted the download and its task ID.
func (s *Store) SetTask(d *Download, clientName, taskID string) error {
	_, err := s.db.Exec("UPDATE downloads SET client_name = ?, client_task_id = ? WHERE id = ?",
		clientName, taskID, d.ID)
	if err != nil {
		return fmt.Errorf("set task for download %d: %w", d.ID, err)
	}
	d.ClientName = clientName
	d.ClientTaskID = taskID
	return nil
}

// Transition changes a download's status after validating the move.
// A move to completed also stamps completed_at.
func (s *Store) Transition(d *Download, to Status) error {
	if !d.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
	}

	now := time.Now()
	var result sql.Result
	var err error
	if to == StatusCompleted {
		result, err = s.db.Exec("UPDATE downloads SET status = ?, completed_at = ? WHERE id = ?", to, now, d.ID)
	} else {
		result, err = s.db.Exec("UPDATE downloads SET status = ? WHERE id = ?", to, d.ID)
	}
	if err != nil {
		return fmt.Errorf("transition download %d: %w", d.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transition download %d: %w", d.ID, ErrNotFound)
	}

	d.Status = to
	if to == StatusCompleted {
		d.CompletedAt = &now
	}
	return nil
}

// MarkImported stamps imported_at, moves the download to imported and
// clears the import retry fields.
func (s *Store) MarkImported(d *Download) error {
	if !d.Status.CanTransitionTo(StatusImported) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, StatusImported)
	}

	now := time.Now()
	result, err := s.db.Exec(`
		UPDATE downloads
		SET status = ?, imported_at = ?,
			import_retry_count = 0, import_last_error = NULL,
			import_next_retry_at = NULL, import_failed_at = NULL
		WHERE id = ?`,
		StatusImported, now, d.ID)
	if err != nil {
		return fmt.Errorf("mark download %d imported: %w", d.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("mark download %d imported: %w", d.ID, ErrNotFound)
	}

	d.Status = StatusImported
	d.ImportedAt = &now
	d.ImportRetryCount = 0
	d.ImportLastError = nil
	d.ImportNextRetryAt = nil
	d.ImportFailedAt = nil
	return nil
}

// RecordImportFailure bumps the retry counter and persists the failure
// details. import_failed_at is stamped only on the first failure so the
// original failure time survives retries. A nil nextRetryAt means retries
// are exhausted.
func (s *Store) RecordImportFailure(d *Download, message string, nextRetryAt *time.Time) error {
	now := time.Now()
	failedAt := d.ImportFailedAt
	if failedAt == nil {
		failedAt = &now
	}

	_, err := s.db.Exec(`
		UPDATE downloads
		SET import_retry_count = ?, import_last_error = ?, import_next_retry_at = ?, import_failed_at = ?
		WHERE id = ?`,
		d.ImportRetryCount+1, message, nextRetryAt, failedAt, d.ID)
	if err != nil {
		return fmt.Errorf("record import failure for download %d: %w", d.ID, err)
	}

	d.ImportRetryCount++
	d.ImportLastError = &message
	d.ImportNextRetryAt = nextRetryAt
	d.ImportFailedAt = failedAt
	return nil
}

// List returns downloads matching the filter, oldest first.
func (s *Store) List(f Filter) ([]*Download, error) {
	var conditions []string
	var args []any

	if f.MediaItemID != nil {
		conditions = append(conditions, "media_item_id = ?")
		args = append(args, *f.MediaItemID)
	}
	if f.EpisodeID != nil {
		conditions = append(conditions, "episode_id = ?")
		args = append(args, *f.EpisodeID)
	}
	if f.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *f.Status)
	}
	if f.Active {
		conditions = append(conditions, "status IN (?, ?)")
		args = append(args, StatusPending, StatusDownloading)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := s.db.Query("SELECT "+downloadCols+" FROM downloads "+whereClause+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan download: %w", err)
		}
		results = append(results, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate downloads: %w", err)
	}
	return results, nil
}

// Delete removes a download record.
// Idempotent: no error if the record does not exist.
func (s *Store) Delete(id int64) error {
	if _, err := s.db.Exec("DELETE FROM downloads WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete download %d: %w", id, err)
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
