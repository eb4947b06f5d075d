package practice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"etude/internal/fragment"
	"etude/internal/logging"
)

// Category buckets a measure group by practice history.
type Category string

const (
	CategoryUnlearned   Category = "unlearned"
	CategoryChallenging Category = "challenging"
	CategoryProficient  Category = "proficient"
)

// Stats is the display-only history summary attached to a recommendation.
// BestRating uses the 0..3 scale of Rating.Score.
type Stats struct {
	Category        Category   `json:"category"`
	BestRating      int        `json:"bestRating"`
	PracticeCount   int        `json:"practiceCount"`
	LastPracticedAt *time.Time `json:"lastPracticedAt"`
	DueAt           *time.Time `json:"dueAt"`
}

// Recommendation is what the recommender returns: the fragment to practice
// next plus its stats. The navigator only interprets FragmentID; Stats pass
// through untouched for display.
type Recommendation struct {
	FragmentID string `json:"fragmentId"`
	Stats      Stats  `json:"stats"`
}

// RecommendationSource produces the next fragment for a song. A (nil, nil)
// return means the song has nothing to recommend. internal/client
// implements it against the HTTP API; internal/server's recommender is the
// other end of the same contract.
type RecommendationSource interface {
	NextMeasure(ctx context.Context, songID int) (*Recommendation, error)
}

// NavState is the navigator's fetch state machine: Idle until the first
// request, Fetching while one is outstanding, then Ready or Failed.
type NavState int

const (
	NavIdle NavState = iota
	NavFetching
	NavReady
	NavFailed
)

func (s NavState) String() string {
	switch s {
	case NavIdle:
		return "idle"
	case NavFetching:
		return "fetching"
	case NavReady:
		return "ready"
	case NavFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Navigator owns the active fragment. Everything downstream (codec,
// resolver, pool, sequencer) is driven from its current recommendation and
// never from independent copies. A failed fetch keeps the previous
// fragment on display; a newer fetch started while an older one is still
// in flight wins unconditionally (epoch check on resolution).
type Navigator struct {
	source RecommendationSource

	mu       sync.Mutex
	state    NavState
	songID   int
	epoch    uint64
	current  *Recommendation
	active   fragment.ID
	lastErr  error
	fetchCnt int
}

// NewNavigator returns an idle navigator reading from source.
func NewNavigator(source RecommendationSource) *Navigator {
	return &Navigator{source: source}
}

// SelectSong switches the navigator to songID and fetches its first
// recommendation. The previous fragment stays on display until the fetch
// lands.
func (n *Navigator) SelectSong(ctx context.Context, songID int) error {
	n.mu.Lock()
	n.songID = songID
	n.mu.Unlock()
	logging.Practice("song selected: %d", songID)
	return n.Advance(ctx)
}

// Advance asks the recommender for the next fragment of the current song.
// Called on song selection, on explicit song switch, and once after each
// completed practice event.
func (n *Navigator) Advance(ctx context.Context) error {
	n.mu.Lock()
	songID := n.songID
	if songID == 0 {
		n.mu.Unlock()
		return fmt.Errorf("practice: no song selected")
	}
	n.epoch++
	myEpoch := n.epoch
	n.state = NavFetching
	n.fetchCnt++
	n.mu.Unlock()

	rec, err := n.source.NextMeasure(ctx, songID)

	n.mu.Lock()
	defer n.mu.Unlock()

	if myEpoch != n.epoch {
		// A newer Advance superseded this one; its result already landed
		// or will land. Drop ours without touching state.
		logging.PracticeDebug("stale recommendation fetch dropped (epoch %d < %d)", myEpoch, n.epoch)
		return nil
	}

	if err != nil {
		// Keep the previously displayed fragment; only the state flips.
		n.state = NavFailed
		n.lastErr = err
		logging.PracticeWarn("next-measure fetch failed for song %d: %v", songID, err)
		return fmt.Errorf("fetch next measure: %w", err)
	}

	n.state = NavReady
	n.lastErr = nil
	n.current = rec

	if rec == nil {
		// Nothing to practice for this song.
		n.active = fragment.ID{}
		logging.Practice("no recommendation for song %d", songID)
		return nil
	}

	id, perr := fragment.Parse(rec.FragmentID)
	if perr != nil {
		// Malformed identifier from the recommender: treat as "no fragment
		// selected" and suppress rendering rather than failing the view.
		logging.PracticeWarn("recommender returned bad fragment id %q: %v", rec.FragmentID, perr)
		n.active = fragment.ID{}
		return nil
	}
	n.active = id
	logging.Practice("next fragment: %s (%s, practiced %d times)",
		rec.FragmentID, rec.Stats.Category, rec.Stats.PracticeCount)
	return nil
}

// State returns the fetch state and the last fetch error, if any.
func (n *Navigator) State() (NavState, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state, n.lastErr
}

// SongID returns the currently selected song, 0 if none.
func (n *Navigator) SongID() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.songID
}

// Current returns the latest recommendation, or ok=false if none is held.
func (n *Navigator) Current() (Recommendation, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Recommendation{}, false
	}
	return *n.current, true
}

// ActiveFragment returns the fragment currently selected for display. The
// zero ID means nothing is selected.
func (n *Navigator) ActiveFragment() fragment.ID {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// FetchCount returns how many recommendation fetches have been started.
// Exists for tests that pin down the exactly-one-fetch-per-trigger rule.
func (n *Navigator) FetchCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.fetchCnt
}
