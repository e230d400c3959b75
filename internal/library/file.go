package library

import (
	"fmt"
	"time"
)

// MediaFile is a file that has landed in the library. It is associated to
// exactly one of Episode or MediaItem, or neither for specialized
// libraries (music, books).
type MediaFile struct {
	ID            int64
	LibraryPathID int64
	RelativePath  string
	Size          int64
	Resolution    string
	VideoCodec    string
	AudioCodec    string
	Bitrate       *int64
	HDR           string
	EpisodeID     *int64
	MediaItemID   *int64
	VerifiedAt    *time.Time
	AddedAt       time.Time
}

const mediaFileCols = "id, library_path_id, relative_path, size, resolution, video_codec, audio_codec, bitrate, hdr, episode_id, media_item_id, verified_at, added_at"

func scanMediaFile(row interface{ Scan(...any) error }) (*MediaFile, error) {
	f := &MediaFile{}
	err := row.Scan(&f.ID, &f.LibraryPathID, &f.RelativePath, &f.Size, &f.Resolution,
		&f.VideoCodec, &f.AudioCodec, &f.Bitrate, &f.HDR, &f.EpisodeID, &f.MediaItemID,
		&f.VerifiedAt, &f.AddedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func addMediaFile(q querier, f *MediaFile) error {
	now := time.Now()
	result, err := q.Exec(`
		INSERT INTO media_files (library_path_id, relative_path, size, resolution, video_codec, audio_codec, bitrate, hdr, episode_id, media_item_id, verified_at, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.LibraryPathID, f.RelativePath, f.Size, f.Resolution, f.VideoCodec, f.AudioCodec,
		f.Bitrate, f.HDR, f.EpisodeID, f.MediaItemID, f.VerifiedAt, now,
	)
	if err != nil {
		return fmt.Errorf("insert media file: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	f.ID = id
	f.AddedAt = now
	return nil
}

// AddMediaFile inserts a media file record. Sets ID and AddedAt.
// Returns ErrDuplicate when (library_path_id, relative_path) already exists.
func (s *Store) AddMediaFile(f *MediaFile) error { return addMediaFile(s.db, f) }

// AddMediaFile inserts a media file record within a transaction.
func (t *Tx) AddMediaFile(f *MediaFile) error { return addMediaFile(t.tx, f) }

func findMediaFileByPath(q querier, libraryPathID int64, relativePath string) (*MediaFile, error) {
	f, err := scanMediaFile(q.QueryRow(
		"SELECT "+mediaFileCols+" FROM media_files WHERE library_path_id = ? AND relative_path = ?",
		libraryPathID, relativePath))
	if err != nil {
		return nil, fmt.Errorf("find media file %q: %w", relativePath, mapSQLiteError(err))
	}
	return f, nil
}

// FindMediaFileByPath looks up a file by its library-relative path.
// Returns ErrNotFound if no record exists.
func (s *Store) FindMediaFileByPath(libraryPathID int64, relativePath string) (*MediaFile, error) {
	return findMediaFileByPath(s.db, libraryPathID, relativePath)
}

// FindMediaFileByPath looks up a file within a transaction.
func (t *Tx) FindMediaFileByPath(libraryPathID int64, relativePath string) (*MediaFile, error) {
	return findMediaFileByPath(t.tx, libraryPathID, relativePath)
}

// ListMediaFilesForItem returns files associated to a media item, either
// directly or through its episodes.
func (s *Store) ListMediaFilesForItem(mediaItemID int64) ([]*MediaFile, error) {
	rows, err := s.db.Query(`
		SELECT `+mediaFileCols+` FROM media_files
		WHERE media_item_id = ?
		   OR episode_id IN (SELECT id FROM episodes WHERE media_item_id = ?)
		ORDER BY id`,
		mediaItemID, mediaItemID)
	if err != nil {
		return nil, fmt.Errorf("list media files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*MediaFile
	for rows.Next() {
		f, err := scanMediaFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan media file: %w", err)
		}
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media files: %w", err)
	}
	return results, nil
}

// DeleteMediaFile removes a file record by ID.
// Idempotent: no error if the record does not exist.
func (s *Store) DeleteMediaFile(id int64) error {
	if _, err := s.db.Exec("DELETE FROM media_files WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete media file %d: %w", id, mapSQLiteError(err))
	}
	return nil
}
