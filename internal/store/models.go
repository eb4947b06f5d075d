package store

import "time"

// Song is one folder of sheet music in the library.
type Song struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Composer      string `json:"composer,omitempty"`
	SourceFile    string `json:"sourceFile"`
	TotalMeasures int    `json:"totalMeasures"`
}

// MeasureGroup is a practicable fragment of a song. ID is the composite
// fragment identifier ("folder|measureN" or "folder|measureN-M").
type MeasureGroup struct {
	ID           string `json:"id"`
	SongID       int64  `json:"songId"`
	SongTitle    string `json:"songTitle,omitempty"`
	StartMeasure int    `json:"startMeasure"`
	EndMeasure   int    `json:"endMeasure"`
	GroupSize    int    `json:"groupSize"`
}

// Session is one recorded practice of a measure group.
type Session struct {
	ID              string    `json:"id"`
	SongID          int64     `json:"songId"`
	SongTitle       string    `json:"songTitle,omitempty"`
	FragmentID      string    `json:"fragmentId"`
	StartMeasure    int       `json:"startMeasure,omitempty"`
	EndMeasure      int       `json:"endMeasure,omitempty"`
	PracticedAt     time.Time `json:"practicedAt"`
	Rating          string    `json:"rating"`
	DurationSeconds int       `json:"durationSeconds,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// GroupStats aggregates the practice history of one measure group.
// BestRating is the highest rating score ever recorded (0..3);
// LastPracticedAt is nil when the group has never been practiced.
type GroupStats struct {
	PracticeCount   int
	BestRating      int
	LastPracticedAt *time.Time
}
