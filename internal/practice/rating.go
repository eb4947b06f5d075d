// Package practice holds the session side of the loop: the rating
// vocabulary, the recorder that submits practice events, and the navigator
// that asks the recommender which fragment comes next and owns the single
// source of truth for the active fragment.
package practice

import (
	"errors"
	"fmt"
)

// Rating is the closed set of practice outcomes. Anything else is rejected
// at the boundary.
type Rating string

const (
	RatingEasy   Rating = "easy"
	RatingMedium Rating = "medium"
	RatingHard   Rating = "hard"
	RatingSnooze Rating = "snooze"
)

// ErrInvalidRating is returned for any rating outside the enum.
var ErrInvalidRating = errors.New("practice: invalid rating")

// Ratings lists the valid ratings in mastery order, weakest first.
func Ratings() []Rating {
	return []Rating{RatingSnooze, RatingHard, RatingMedium, RatingEasy}
}

// Valid reports whether r is one of the four known ratings.
func (r Rating) Valid() bool {
	switch r {
	case RatingEasy, RatingMedium, RatingHard, RatingSnooze:
		return true
	}
	return false
}

// Score maps the rating onto the 0..3 mastery scale used by the
// recommender's stats: snooze=0, hard=1, medium=2, easy=3.
func (r Rating) Score() int {
	switch r {
	case RatingSnooze:
		return 0
	case RatingHard:
		return 1
	case RatingMedium:
		return 2
	case RatingEasy:
		return 3
	default:
		return 0
	}
}

// ParseRating validates a wire string into a Rating.
func ParseRating(s string) (Rating, error) {
	r := Rating(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRating, s)
	}
	return r, nil
}
