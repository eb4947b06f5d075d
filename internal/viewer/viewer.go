// Package viewer owns the display side of the practice loop: a Pool of
// render slots (one engine instance and one container per displayed
// fragment) and a Sequencer that drives each slot through the async
// fetch/verify/decode/load/render pipeline. The pool maintains a generation
// counter; every load captures the generation of its slot at start and any
// result arriving after the selection has moved on is discarded unseen.
package viewer

import "errors"

// Failure classes recorded per slot. Identifier errors never reach here;
// they are caught before any network call (fragment.ErrInvalidIdentifier).
var (
	// ErrNotFound means the fetch succeeded but returned a markup document
	// instead of notation. The usual cause is a misrouted request answered
	// by an HTML fallback page with status 200.
	ErrNotFound = errors.New("viewer: document not found")

	// ErrUnsupportedFormat means the payload is a compressed container
	// (leading "PK" ZIP signature) or otherwise not decodable text. Only
	// the uncompressed .musicxml form is renderable.
	ErrUnsupportedFormat = errors.New("viewer: unsupported document format")

	// ErrTransport covers network and HTTP-status failures.
	ErrTransport = errors.New("viewer: transport failure")

	// ErrRender means the engine rejected the document at load or render.
	ErrRender = errors.New("viewer: render failure")

	// ErrStale marks a load whose result was discarded because the active
	// fragment changed while it was in flight. Callers treat it as silence,
	// not as a slot failure.
	ErrStale = errors.New("viewer: stale load discarded")
)

// Status is the lifecycle state of a slot.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusRendered
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusRendered:
		return "rendered"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}
