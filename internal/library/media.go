package library

import (
	"fmt"
	"strings"
	"time"
)

// MediaType distinguishes movies from TV shows.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeTVShow MediaType = "tv_show"
)

// MediaItem is a movie or TV show tracked by the library.
type MediaItem struct {
	ID             int64
	Type           MediaType
	Title          string
	Year           *int
	Monitored      bool
	QualityProfile string // profile name in config, empty means default
	ProviderID     *string
	AddedAt        time.Time
}

// MediaItemFilter specifies criteria for listing media items.
type MediaItemFilter struct {
	Type      *MediaType
	Monitored *bool
}

const mediaItemCols = "id, type, title, year, monitored, quality_profile, provider_id, added_at"

func scanMediaItem(row interface{ Scan(...any) error }) (*MediaItem, error) {
	m := &MediaItem{}
	err := row.Scan(&m.ID, &m.Type, &m.Title, &m.Year, &m.Monitored, &m.QualityProfile, &m.ProviderID, &m.AddedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func addMediaItem(q querier, m *MediaItem) error {
	now := time.Now()
	result, err := q.Exec(`
		INSERT INTO media_items (type, title, year, monitored, quality_profile, provider_id, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Type, m.Title, m.Year, m.Monitored, m.QualityProfile, m.ProviderID, now,
	)
	if err != nil {
		return fmt.Errorf("insert media item: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	m.ID = id
	m.AddedAt = now
	return nil
}

// AddMediaItem inserts a new media item. Sets ID and AddedAt on the struct.
func (s *Store) AddMediaItem(m *MediaItem) error { return addMediaItem(s.db, m) }

// AddMediaItem inserts a new media item within a transaction.
func (t *Tx) AddMediaItem(m *MediaItem) error { return addMediaItem(t.tx, m) }

func getMediaItem(q querier, id int64) (*MediaItem, error) {
	m, err := scanMediaItem(q.QueryRow(
		"SELECT "+mediaItemCols+" FROM media_items WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("get media item %d: %w", id, mapSQLiteError(err))
	}
	return m, nil
}

// GetMediaItem retrieves a media item by ID.
// Returns ErrNotFound if the item does not exist.
func (s *Store) GetMediaItem(id int64) (*MediaItem, error) { return getMediaItem(s.db, id) }

// GetMediaItem retrieves a media item by ID within a transaction.
func (t *Tx) GetMediaItem(id int64) (*MediaItem, error) { return getMediaItem(t.tx, id) }

func listMediaItems(q querier, f MediaItemFilter) ([]*MediaItem, error) {
	var conditions []string
	var args []any

	if f.Type != nil {
		conditions = append(conditions, "type = ?")
		args = append(args, *f.Type)
	}
	if f.Monitored != nil {
		conditions = append(conditions, "monitored = ?")
		args = append(args, *f.Monitored)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := q.Query("SELECT "+mediaItemCols+" FROM media_items "+whereClause+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("list media items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*MediaItem
	for rows.Next() {
		m, err := scanMediaItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media item: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media items: %w", err)
	}
	return results, nil
}

// ListMediaItems returns media items matching the filter.
func (s *Store) ListMediaItems(f MediaItemFilter) ([]*MediaItem, error) { return listMediaItems(s.db, f) }

// ListMediaItems returns media items matching the filter within a transaction.
func (t *Tx) ListMediaItems(f MediaItemFilter) ([]*MediaItem, error) { return listMediaItems(t.tx, f) }

func setMediaItemMonitored(q querier, id int64, monitored bool) error {
	result, err := q.Exec("UPDATE media_items SET monitored = ? WHERE id = ?", monitored, id)
	if err != nil {
		return fmt.Errorf("update media item %d: %w", id, mapSQLiteError(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update media item %d: %w", id, ErrNotFound)
	}
	return nil
}

// SetMediaItemMonitored toggles the monitoring flag.
// Returns ErrNotFound if the item does not exist.
func (s *Store) SetMediaItemMonitored(id int64, monitored bool) error {
	return setMediaItemMonitored(s.db, id, monitored)
}
