// Package fragment defines the composite fragment identifier used across
// etude: a song folder plus a single measure or a contiguous measure range.
// Identifiers travel as opaque strings ("alicia|measure12" or
// "alicia|measure12-15") between the store, the API, and the viewer; this
// package is the only place that understands their structure.
package fragment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidIdentifier is returned by Parse for any string that does not
// match the folder|measureN or folder|measureN-M shape. Callers treat it
// as "no fragment selected", never as a fatal condition.
var ErrInvalidIdentifier = errors.New("invalid fragment identifier")

const measurePrefix = "measure"

// ID is a parsed fragment identifier. Start and End are 1-based and
// inclusive; a single measure has Start == End.
type ID struct {
	Folder string
	Start  int
	End    int
}

// Parse splits id on the first '|' and decodes the measure part. Anything
// malformed (missing separator, empty folder, bad numbers, reversed range,
// trailing junk) yields the zero ID and ErrInvalidIdentifier. There are no
// partial results: either the whole identifier parses or none of it does.
func Parse(id string) (ID, error) {
	folder, rest, ok := strings.Cut(id, "|")
	if !ok || folder == "" {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}

	span, ok := strings.CutPrefix(rest, measurePrefix)
	if !ok || span == "" {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}

	startText, endText, ranged := strings.Cut(span, "-")
	start, err := parseMeasureNumber(startText)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}

	end := start
	if ranged {
		end, err = parseMeasureNumber(endText)
		if err != nil || end < start {
			return ID{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
		}
	}

	return ID{Folder: folder, Start: start, End: end}, nil
}

// parseMeasureNumber accepts plain positive decimal integers only. Signs,
// spaces, and empty strings are rejected so that "measure-3" and
// "measure 3" never half-parse.
func parseMeasureNumber(s string) (int, error) {
	if s == "" || s[0] == '+' || s[0] == '-' {
		return 0, ErrInvalidIdentifier
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, ErrInvalidIdentifier
	}
	return n, nil
}

// IsZero reports whether the ID is the zero value, i.e. no fragment.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Span returns the number of measures the fragment covers.
func (id ID) Span() int {
	if id.IsZero() {
		return 0
	}
	return id.End - id.Start + 1
}

// String re-encodes the ID in the composite wire form. The zero ID encodes
// as the empty string.
func (id ID) String() string {
	switch {
	case id.IsZero():
		return ""
	case id.Start == id.End:
		return fmt.Sprintf("%s|%s%d", id.Folder, measurePrefix, id.Start)
	default:
		return fmt.Sprintf("%s|%s%d-%d", id.Folder, measurePrefix, id.Start, id.End)
	}
}
