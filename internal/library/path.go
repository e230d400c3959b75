package library

import (
	"fmt"
	"path/filepath"
	"strings"
)

// LibraryType classifies what a library path holds.
type LibraryType string

const (
	LibraryMovies LibraryType = "movies"
	LibrarySeries LibraryType = "series"
	LibraryMixed  LibraryType = "mixed"
	LibraryMusic  LibraryType = "music"
	LibraryBooks  LibraryType = "books"
	LibraryAdult  LibraryType = "adult"
)

// LibraryPath describes one configured root directory.
type LibraryPath struct {
	ID        int64
	Root      string
	Type      LibraryType
	Monitored bool
}

var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".m4v": true,
	".mov": true, ".wmv": true, ".ts": true, ".webm": true,
}

var audioExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".m4a": true, ".ogg": true,
	".opus": true, ".wav": true, ".aac": true,
}

var bookExtensions = map[string]bool{
	".epub": true, ".mobi": true, ".azw3": true, ".pdf": true,
	".cbz": true, ".cbr": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

// AcceptsFile reports whether a filename's extension is importable into a
// library of this type.
func (t LibraryType) AcceptsFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	switch t {
	case LibraryMovies, LibrarySeries, LibraryMixed:
		return videoExtensions[ext]
	case LibraryMusic:
		return audioExtensions[ext]
	case LibraryBooks:
		return bookExtensions[ext]
	case LibraryAdult:
		return videoExtensions[ext] || imageExtensions[ext]
	default:
		return false
	}
}

// MatchesMediaType reports whether this library type can hold the given
// media kind.
func (t LibraryType) MatchesMediaType(mt MediaType) bool {
	switch mt {
	case MediaTypeMovie:
		return t == LibraryMovies || t == LibraryMixed
	case MediaTypeTVShow:
		return t == LibrarySeries || t == LibraryMixed
	default:
		return false
	}
}

const libraryPathCols = "id, root, type, monitored"

func scanLibraryPath(row interface{ Scan(...any) error }) (*LibraryPath, error) {
	p := &LibraryPath{}
	if err := row.Scan(&p.ID, &p.Root, &p.Type, &p.Monitored); err != nil {
		return nil, err
	}
	return p, nil
}

// AddLibraryPath inserts a library path. Sets ID on the struct.
func (s *Store) AddLibraryPath(p *LibraryPath) error {
	result, err := s.db.Exec(
		"INSERT INTO library_paths (root, type, monitored) VALUES (?, ?, ?)",
		p.Root, p.Type, p.Monitored,
	)
	if err != nil {
		return fmt.Errorf("insert library path: %w", mapSQLiteError(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	p.ID = id
	return nil
}

// GetLibraryPath retrieves a library path by ID.
// Returns ErrNotFound if it does not exist.
func (s *Store) GetLibraryPath(id int64) (*LibraryPath, error) {
	p, err := scanLibraryPath(s.db.QueryRow(
		"SELECT "+libraryPathCols+" FROM library_paths WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("get library path %d: %w", id, mapSQLiteError(err))
	}
	return p, nil
}

// ListLibraryPaths returns all configured library paths.
func (s *Store) ListLibraryPaths() ([]*LibraryPath, error) {
	rows, err := s.db.Query("SELECT " + libraryPathCols + " FROM library_paths ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list library paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*LibraryPath
	for rows.Next() {
		p, err := scanLibraryPath(rows)
		if err != nil {
			return nil, fmt.Errorf("scan library path: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate library paths: %w", err)
	}
	return results, nil
}

// FindLibraryPathFor returns the first monitored library path whose type
// matches the media kind. Returns ErrNotFound when none qualifies.
func (s *Store) FindLibraryPathFor(mt MediaType) (*LibraryPath, error) {
	paths, err := s.ListLibraryPaths()
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		if p.Monitored && p.Type.MatchesMediaType(mt) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no monitored library for %s: %w", mt, ErrNotFound)
}
