package store

import (
	"fmt"

	"etude/internal/logging"
)

// ReplaceMeasureGroups reconciles the measure groups of a song against a
// fresh scan. Existing groups keep their created_at (and with it their
// practice history); groups no longer present on disk are removed.
func (s *Store) ReplaceMeasureGroups(songID int64, groups []MeasureGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	keep := make(map[string]bool, len(groups))
	for _, g := range groups {
		keep[g.ID] = true
		_, err := tx.Exec(
			`INSERT INTO measure_groups (id, song_id, start_measure, end_measure)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			g.ID, songID, g.StartMeasure, g.EndMeasure,
		)
		if err != nil {
			return fmt.Errorf("failed to insert measure group %s: %w", g.ID, err)
		}
	}

	rows, err := tx.Query(`SELECT id FROM measure_groups WHERE song_id = ?`, songID)
	if err != nil {
		return fmt.Errorf("failed to list measure groups: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan measure group: %w", err)
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range stale {
		if _, err := tx.Exec(`DELETE FROM measure_groups WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete measure group %s: %w", id, err)
		}
		logging.Store("removed stale measure group %s", id)
	}

	return tx.Commit()
}

// ListMeasureGroups returns measure groups, newest first. songID of 0
// returns groups for every song.
func (s *Store) ListMeasureGroups(songID int64) ([]MeasureGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT g.id, g.song_id, s.title, g.start_measure, g.end_measure, g.group_size
		FROM measure_groups g
		JOIN songs s ON s.id = g.song_id`
	args := []any{}
	if songID != 0 {
		query += ` WHERE g.song_id = ?`
		args = append(args, songID)
	}
	query += ` ORDER BY g.created_at DESC, g.start_measure ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list measure groups: %w", err)
	}
	defer rows.Close()

	var groups []MeasureGroup
	for rows.Next() {
		var g MeasureGroup
		if err := rows.Scan(&g.ID, &g.SongID, &g.SongTitle, &g.StartMeasure, &g.EndMeasure, &g.GroupSize); err != nil {
			return nil, fmt.Errorf("failed to scan measure group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetMeasureGroup returns the group with the given fragment identifier,
// or sql.ErrNoRows.
func (s *Store) GetMeasureGroup(id string) (MeasureGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var g MeasureGroup
	err := s.db.QueryRow(
		`SELECT g.id, g.song_id, s.title, g.start_measure, g.end_measure, g.group_size
		 FROM measure_groups g
		 JOIN songs s ON s.id = g.song_id
		 WHERE g.id = ?`, id,
	).Scan(&g.ID, &g.SongID, &g.SongTitle, &g.StartMeasure, &g.EndMeasure, &g.GroupSize)
	if err != nil {
		return MeasureGroup{}, err
	}
	return g, nil
}

// FindGroupContaining returns the smallest measure group of a song that
// contains the given measure, or sql.ErrNoRows.
func (s *Store) FindGroupContaining(songID int64, measure int) (MeasureGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var g MeasureGroup
	err := s.db.QueryRow(
		`SELECT g.id, g.song_id, s.title, g.start_measure, g.end_measure, g.group_size
		 FROM measure_groups g
		 JOIN songs s ON s.id = g.song_id
		 WHERE g.song_id = ? AND g.start_measure <= ? AND g.end_measure >= ?
		 ORDER BY g.group_size ASC
		 LIMIT 1`, songID, measure, measure,
	).Scan(&g.ID, &g.SongID, &g.SongTitle, &g.StartMeasure, &g.EndMeasure, &g.GroupSize)
	if err != nil {
		return MeasureGroup{}, err
	}
	return g, nil
}
