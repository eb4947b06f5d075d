package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// UpsertSong inserts a song or updates the existing row with the same
// source file. Returns the song's id. A song without a source file (added by
// hand rather than scanned) always inserts a new row.
func (s *Store) UpsertSong(song Song) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if song.SourceFile == "" {
		res, err := s.db.Exec(
			`INSERT INTO songs (title, composer, source_file, total_measures) VALUES (?, ?, NULL, ?)`,
			song.Title, song.Composer, song.TotalMeasures,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert song: %w", err)
		}
		return res.LastInsertId()
	}

	var id int64
	err := s.db.QueryRow(`SELECT id FROM songs WHERE source_file = ?`, song.SourceFile).Scan(&id)
	switch {
	case err == nil:
		_, err = s.db.Exec(
			`UPDATE songs SET title = ?, composer = ?, total_measures = ? WHERE id = ?`,
			song.Title, song.Composer, song.TotalMeasures, id,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to update song: %w", err)
		}
		return id, nil
	case errors.Is(err, sql.ErrNoRows):
		res, err := s.db.Exec(
			`INSERT INTO songs (title, composer, source_file, total_measures) VALUES (?, ?, ?, ?)`,
			song.Title, song.Composer, song.SourceFile, song.TotalMeasures,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert song: %w", err)
		}
		return res.LastInsertId()
	default:
		return 0, fmt.Errorf("failed to look up song: %w", err)
	}
}

// ListSongs returns all songs ordered by title.
func (s *Store) ListSongs() ([]Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT id, title, COALESCE(composer, ''), COALESCE(source_file, ''), total_measures
		 FROM songs ORDER BY title`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list songs: %w", err)
	}
	defer rows.Close()

	var songs []Song
	for rows.Next() {
		var song Song
		if err := rows.Scan(&song.ID, &song.Title, &song.Composer, &song.SourceFile, &song.TotalMeasures); err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		songs = append(songs, song)
	}
	return songs, rows.Err()
}

// GetSong returns the song with the given id, or sql.ErrNoRows.
func (s *Store) GetSong(id int64) (Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var song Song
	err := s.db.QueryRow(
		`SELECT id, title, COALESCE(composer, ''), COALESCE(source_file, ''), total_measures
		 FROM songs WHERE id = ?`, id,
	).Scan(&song.ID, &song.Title, &song.Composer, &song.SourceFile, &song.TotalMeasures)
	if err != nil {
		return Song{}, err
	}
	return song, nil
}

// FindSongBySourceStem matches a song whose source file contains the given
// stem. Used to resolve practice submissions that carry only a rendered
// file name instead of a fragment identifier.
func (s *Store) FindSongBySourceStem(stem string) (Song, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var song Song
	err := s.db.QueryRow(
		`SELECT id, title, COALESCE(composer, ''), COALESCE(source_file, ''), total_measures
		 FROM songs WHERE source_file LIKE '%' || ? || '%' LIMIT 1`, stem,
	).Scan(&song.ID, &song.Title, &song.Composer, &song.SourceFile, &song.TotalMeasures)
	if err != nil {
		return Song{}, err
	}
	return song, nil
}
