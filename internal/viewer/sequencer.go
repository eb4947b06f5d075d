package viewer

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"etude/internal/logging"
)

// Fetcher retrieves raw notation bytes for a resolved document path and
// reports the declared content type. internal/client implements it against
// the HTTP API; tests implement it in memory.
type Fetcher interface {
	FetchData(ctx context.Context, path string) (data []byte, contentType string, err error)
}

// Sequencer runs the load pipeline for slots of one pool. It holds no
// per-load state; all staleness tracking lives in the generation captured
// from the slot at load start.
type Sequencer struct {
	pool    *Pool
	fetcher Fetcher
}

// NewSequencer returns a sequencer loading slots of pool through fetcher.
func NewSequencer(pool *Pool, fetcher Fetcher) *Sequencer {
	return &Sequencer{pool: pool, fetcher: fetcher}
}

// Load drives one slot through fetch, content-type check, ZIP-signature
// check, decode, engine load, and engine render. Each step that follows a
// suspension point re-validates the slot's generation against the pool and
// bails out with ErrStale on mismatch, leaving the slot untouched. A
// terminal failure is recorded on the slot as Failed(reason) and returned;
// sibling slots are unaffected.
func (s *Sequencer) Load(ctx context.Context, slot *Slot) error {
	if slot == nil {
		return nil
	}
	gen := slot.Generation()
	if !s.pool.Current(gen) {
		return ErrStale
	}
	slot.setStatus(StatusLoading, nil)
	logging.FetchDebug("load start: %s (generation %d)", slot.Path(), gen)

	data, contentType, err := s.fetcher.FetchData(ctx, slot.Path())
	if !s.pool.Current(gen) {
		logging.FetchDebug("load stale after fetch: %s", slot.Path())
		return ErrStale
	}
	if err != nil {
		// The fetcher may have classified the failure already (a real 404
		// from the API is NotFound, not a transport problem).
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnsupportedFormat) {
			return s.fail(slot, err)
		}
		return s.fail(slot, fmt.Errorf("%w: %v", ErrTransport, err))
	}

	if isMarkupType(contentType) {
		// A 200 with an HTML body is the router's fallback page, not music.
		return s.fail(slot, fmt.Errorf("%w: got %q for %s", ErrNotFound, contentType, slot.Path()))
	}
	if len(data) >= 2 && data[0] == 'P' && data[1] == 'K' {
		return s.fail(slot, fmt.Errorf("%w: compressed container at %s", ErrUnsupportedFormat, slot.Path()))
	}

	text, err := decodeText(data)
	if err != nil {
		return s.fail(slot, err)
	}

	if err := slot.engine.Load(text); err != nil {
		return s.fail(slot, fmt.Errorf("%w: %v", ErrRender, err))
	}
	if !s.pool.Current(gen) {
		logging.FetchDebug("load stale after engine load: %s", slot.Path())
		return ErrStale
	}
	if err := slot.engine.Render(); err != nil {
		return s.fail(slot, fmt.Errorf("%w: %v", ErrRender, err))
	}
	if !s.pool.Current(gen) {
		// The render wrote into a detached container, so nothing shows;
		// just refrain from flipping the dead slot to Rendered.
		return ErrStale
	}

	slot.setStatus(StatusRendered, nil)
	logging.RenderDebug("rendered %s (%d bytes)", slot.Path(), len(data))
	return nil
}

// fail records err on the slot unless the result has gone stale, in which
// case even the failure is discarded.
func (s *Sequencer) fail(slot *Slot, err error) error {
	if !s.pool.Current(slot.Generation()) {
		return ErrStale
	}
	slot.setStatus(StatusFailed, err)
	logging.RenderWarn("slot %s failed: %v", slot.Path(), err)
	return err
}

// isMarkupType reports whether the declared content type is a generic
// document/markup type rather than notation.
func isMarkupType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// decodeText converts the payload to UTF-8 text. Strips a UTF-8 BOM if
// present; anything not valid UTF-8 is treated as an unsupported binary
// format.
func decodeText(data []byte) (string, error) {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		data = data[3:]
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: payload is not valid UTF-8 text", ErrUnsupportedFormat)
	}
	return string(data), nil
}
