package store

import (
	"fmt"

	"etude/internal/practice"
)

// NextGroup picks the measure group of a song that should be practiced
// next: the least practiced one, oldest first among ties. Returns
// sql.ErrNoRows when the song has no measure groups.
func (s *Store) NextGroup(songID int64) (MeasureGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var g MeasureGroup
	err := s.db.QueryRow(
		`SELECT g.id, g.song_id, s.title, g.start_measure, g.end_measure, g.group_size
		 FROM measure_groups g
		 JOIN songs s ON s.id = g.song_id
		 LEFT JOIN (
		     SELECT measure_group_id, COUNT(*) AS practice_count
		     FROM practice_sessions
		     GROUP BY measure_group_id
		 ) p ON p.measure_group_id = g.id
		 WHERE g.song_id = ?
		 ORDER BY COALESCE(p.practice_count, 0) ASC, g.created_at ASC, g.start_measure ASC
		 LIMIT 1`, songID,
	).Scan(&g.ID, &g.SongID, &g.SongTitle, &g.StartMeasure, &g.EndMeasure, &g.GroupSize)
	if err != nil {
		return MeasureGroup{}, err
	}
	return g, nil
}

// GroupStats aggregates the practice history of one measure group.
func (s *Store) GroupStats(groupID string) (GroupStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT rating, practiced_at FROM practice_sessions WHERE measure_group_id = ?`,
		groupID,
	)
	if err != nil {
		return GroupStats{}, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var stats GroupStats
	for rows.Next() {
		var rating, practicedAt string
		if err := rows.Scan(&rating, &practicedAt); err != nil {
			return GroupStats{}, fmt.Errorf("failed to scan session: %w", err)
		}
		stats.PracticeCount++
		if r, err := practice.ParseRating(rating); err == nil {
			if score := r.Score(); score > stats.BestRating {
				stats.BestRating = score
			}
		}
		if t, ok := parseTime(practicedAt); ok {
			if stats.LastPracticedAt == nil || t.After(*stats.LastPracticedAt) {
				last := t
				stats.LastPracticedAt = &last
			}
		}
	}
	return stats, rows.Err()
}
