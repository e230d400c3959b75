package library

import (
	"fmt"
	"time"
)

// Episode belongs to exactly one TV show media item.
type Episode struct {
	ID          int64
	MediaItemID int64
	Season      int
	Episode     int
	AirDate     *time.Time
	Monitored   bool
}

const episodeCols = "id, media_item_id, season, episode, air_date, monitored"

func scanEpisode(row interface{ Scan(...any) error }) (*Episode, error) {
	e := &Episode{}
	if err := row.Scan(&e.ID, &e.MediaItemID, &e.Season, &e.Episode, &e.AirDate, &e.Monitored); err != nil {
		return nil, err
	}
	return e, nil
}

func addEpisode(q querier, e *Episode) error {
	result, err := q.Exec(`
		INSERT INTO episodes (media_item_id, season, episode, air_date, monitored)
		VALUES (?, ?, ?, ?, ?)`,
		e.MediaItemID, e.Season, e.Episode, e.AirDate, e.Monitored,
	)
	if err != nil {
		return fmt.Errorf("insert episode: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	e.ID = id
	return nil
}

// AddEpisode inserts a new episode. Sets ID on the struct.
func (s *Store) AddEpisode(e *Episode) error { return addEpisode(s.db, e) }

// AddEpisode inserts a new episode within a transaction.
func (t *Tx) AddEpisode(e *Episode) error { return addEpisode(t.tx, e) }

func getEpisode(q querier, id int64) (*Episode, error) {
	e, err := scanEpisode(q.QueryRow("SELECT "+episodeCols+" FROM episodes WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("get episode %d: %w", id, mapSQLiteError(err))
	}
	return e, nil
}

// GetEpisode retrieves an episode by ID.
// Returns ErrNotFound if the episode does not exist.
func (s *Store) GetEpisode(id int64) (*Episode, error) { return getEpisode(s.db, id) }

// GetEpisode retrieves an episode by ID within a transaction.
func (t *Tx) GetEpisode(id int64) (*Episode, error) { return getEpisode(t.tx, id) }

func findEpisode(q querier, mediaItemID int64, season, episode int) (*Episode, error) {
	e, err := scanEpisode(q.QueryRow(
		"SELECT "+episodeCols+" FROM episodes WHERE media_item_id = ? AND season = ? AND episode = ?",
		mediaItemID, season, episode))
	if err != nil {
		return nil, fmt.Errorf("find episode S%02dE%02d: %w", season, episode, mapSQLiteError(err))
	}
	return e, nil
}

// FindEpisode looks up an episode by (season, episode) within a show.
// Returns ErrNotFound if no such episode exists.
func (s *Store) FindEpisode(mediaItemID int64, season, episode int) (*Episode, error) {
	return findEpisode(s.db, mediaItemID, season, episode)
}

// FindEpisode looks up an episode within a transaction.
func (t *Tx) FindEpisode(mediaItemID int64, season, episode int) (*Episode, error) {
	return findEpisode(t.tx, mediaItemID, season, episode)
}

// ListSeasonEpisodes returns all episodes for one season of a show,
// ordered by episode number.
func (s *Store) ListSeasonEpisodes(mediaItemID int64, season int) ([]*Episode, error) {
	rows, err := s.db.Query(
		"SELECT "+episodeCols+" FROM episodes WHERE media_item_id = ? AND season = ? ORDER BY episode",
		mediaItemID, season)
	if err != nil {
		return nil, fmt.Errorf("list season episodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return results, nil
}

// ListMissingEpisodes returns monitored episodes of a show that have no
// media file and whose air date is in the past, ordered newest-first so
// recently aired content is searched before back catalog.
func (s *Store) ListMissingEpisodes(mediaItemID int64) ([]*Episode, error) {
	rows, err := s.db.Query(`
		SELECT e.id, e.media_item_id, e.season, e.episode, e.air_date, e.monitored
		FROM episodes e
		LEFT JOIN media_files f ON f.episode_id = e.id
		WHERE e.media_item_id = ?
		  AND e.monitored = 1
		  AND f.id IS NULL
		  AND e.air_date IS NOT NULL
		  AND e.air_date <= ?
		ORDER BY e.air_date DESC, e.season DESC, e.episode DESC`,
		mediaItemID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("list missing episodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate episodes: %w", err)
	}
	return results, nil
}

// HasMediaFile reports whether the episode has at least one file on disk.
func (s *Store) HasMediaFile(episodeID int64) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM media_files WHERE episode_id = ?", episodeID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count media files: %w", err)
	}
	return count > 0, nil
}
