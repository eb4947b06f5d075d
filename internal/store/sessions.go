package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"etude/internal/logging"
)

// InsertSession records a practice session. A missing ID is assigned, a
// missing PracticedAt defaults to now. Returns the stored session ID.
func (s *Store) InsertSession(sess Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if sess.PracticedAt.IsZero() {
		sess.PracticedAt = time.Now().UTC()
	}

	var duration sql.NullInt64
	if sess.DurationSeconds > 0 {
		duration = sql.NullInt64{Int64: int64(sess.DurationSeconds), Valid: true}
	}
	var notes sql.NullString
	if sess.Notes != "" {
		notes = sql.NullString{String: sess.Notes, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO practice_sessions (id, song_id, measure_group_id, practiced_at, rating, duration_seconds, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.SongID, sess.FragmentID, sess.PracticedAt.Format(timeLayout),
		sess.Rating, duration, notes,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	logging.Store("recorded session %s: song=%d group=%s rating=%s", sess.ID, sess.SongID, sess.FragmentID, sess.Rating)
	return sess.ID, nil
}

// ListSessions returns practice sessions newest first. limit of 0 returns
// all of them.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT p.id, p.song_id, s.title, p.measure_group_id,
		       COALESCE(g.start_measure, 0), COALESCE(g.end_measure, 0),
		       p.practiced_at, p.rating, COALESCE(p.duration_seconds, 0), COALESCE(p.notes, '')
		FROM practice_sessions p
		JOIN songs s ON s.id = p.song_id
		LEFT JOIN measure_groups g ON g.id = p.measure_group_id
		ORDER BY p.practiced_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var practicedAt string
		if err := rows.Scan(&sess.ID, &sess.SongID, &sess.SongTitle, &sess.FragmentID,
			&sess.StartMeasure, &sess.EndMeasure, &practicedAt, &sess.Rating,
			&sess.DurationSeconds, &sess.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		if t, ok := parseTime(practicedAt); ok {
			sess.PracticedAt = t
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// ClearSessions deletes the entire practice history and returns how many
// sessions were removed.
func (s *Store) ClearSessions() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM practice_sessions`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	logging.Store("cleared %d practice sessions", n)
	return n, nil
}
