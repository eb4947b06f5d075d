package practice

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"etude/internal/logging"
)

// ErrSubmitPending is returned when a second submission arrives while one
// is still in flight. One rating click equals at most one event on the
// wire; the caller drops the extra click rather than queue it.
var ErrSubmitPending = errors.New("practice: submission already in flight")

// Event is one practice rating for a fragment of a song. Immutable once
// submitted.
type Event struct {
	SongID          int
	FragmentID      string
	Rating          Rating
	DurationSeconds int
	Notes           string
}

// Submitter posts practice events to the session store. internal/client
// implements it against the HTTP API.
type Submitter interface {
	SubmitPractice(ctx context.Context, ev Event) error
}

// Recorder validates and submits practice events. It enforces the single
// in-flight rule and guarantees the event is on the wire before the
// completion hook fires, so a recommender queried right after reflects the
// new rating.
type Recorder struct {
	submitter  Submitter
	onComplete func(Event)

	mu       sync.Mutex
	inFlight bool
}

// NewRecorder returns a recorder posting through submitter. onComplete may
// be nil; when set it runs synchronously after each successful submission,
// before Submit returns.
func NewRecorder(submitter Submitter, onComplete func(Event)) *Recorder {
	return &Recorder{submitter: submitter, onComplete: onComplete}
}

// Submit posts one practice event. A rating without a resolvable target is
// meaningless, so a zero songID or empty fragmentID is a silent no-op. An
// unknown rating is rejected before any network call. Transport failure is
// logged and returned, never retried; the caller must not block further
// interaction on it.
func (r *Recorder) Submit(ctx context.Context, ev Event) error {
	if ev.SongID == 0 || ev.FragmentID == "" {
		logging.PracticeDebug("submit skipped: no target (song=%d fragment=%q)", ev.SongID, ev.FragmentID)
		return nil
	}
	if !ev.Rating.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRating, ev.Rating)
	}

	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return ErrSubmitPending
	}
	r.inFlight = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight = false
		r.mu.Unlock()
	}()

	if err := r.submitter.SubmitPractice(ctx, ev); err != nil {
		logging.PracticeError("rating lost: song=%d fragment=%s rating=%s: %v",
			ev.SongID, ev.FragmentID, ev.Rating, err)
		return fmt.Errorf("submit practice event: %w", err)
	}

	logging.Practice("recorded %s for song=%d fragment=%s", ev.Rating, ev.SongID, ev.FragmentID)
	if r.onComplete != nil {
		r.onComplete(ev)
	}
	return nil
}

// Pending reports whether a submission is currently in flight.
func (r *Recorder) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}
