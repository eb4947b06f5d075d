package server

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"etude/internal/practice"
	"etude/internal/store"
)

// Review intervals by best historical rating. The client treats dueAt as
// opaque; only the server knows the schedule.
var reviewIntervals = map[int]time.Duration{
	practice.RatingSnooze.Score(): time.Hour,
	practice.RatingHard.Score():   24 * time.Hour,
	practice.RatingMedium.Score(): 3 * 24 * time.Hour,
	practice.RatingEasy.Score():   7 * 24 * time.Hour,
}

// Recommender turns store queries into wire Recommendations.
type Recommender struct {
	st *store.Store
}

// NewRecommender creates a Recommender over the given store.
func NewRecommender(st *store.Store) *Recommender {
	return &Recommender{st: st}
}

// Next picks the fragment a song's player should practice next. Returns
// (nil, nil) when the song has no measure groups.
func (rc *Recommender) Next(songID int64) (*practice.Recommendation, error) {
	group, err := rc.st.NextGroup(songID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pick next group: %w", err)
	}

	stats, err := rc.StatsFor(group.ID)
	if err != nil {
		return nil, err
	}
	return &practice.Recommendation{FragmentID: group.ID, Stats: stats}, nil
}

// StatsFor derives display stats for one measure group.
func (rc *Recommender) StatsFor(groupID string) (practice.Stats, error) {
	gs, err := rc.st.GroupStats(groupID)
	if err != nil {
		return practice.Stats{}, fmt.Errorf("failed to aggregate stats: %w", err)
	}
	return deriveStats(gs), nil
}

func deriveStats(gs store.GroupStats) practice.Stats {
	stats := practice.Stats{
		BestRating:      gs.BestRating,
		PracticeCount:   gs.PracticeCount,
		LastPracticedAt: gs.LastPracticedAt,
	}
	switch {
	case gs.PracticeCount == 0:
		stats.Category = practice.CategoryUnlearned
	case gs.BestRating >= practice.RatingEasy.Score():
		stats.Category = practice.CategoryProficient
	default:
		stats.Category = practice.CategoryChallenging
	}
	if gs.LastPracticedAt != nil {
		due := gs.LastPracticedAt.Add(reviewIntervals[gs.BestRating])
		stats.DueAt = &due
	}
	return stats
}
