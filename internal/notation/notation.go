// Package notation defines the rendering-engine boundary: an Engine accepts
// raw MusicXML text via a two-phase Load then Render call and draws into a
// Container supplied at construction. The package also ships TextEngine, a
// terminal renderer that sketches the score as a single row of note names.
// Engine lifecycle (creation, teardown, re-creation) is owned entirely by
// the viewer's instance pool; nothing here manages its own lifetime.
package notation

import (
	"errors"
	"sync"
)

var (
	// ErrBadDocument is returned by Load when the payload is not a usable
	// notation document (unparseable XML, or parseable but without measures).
	ErrBadDocument = errors.New("notation: bad document")

	// ErrNotLoaded is returned by Render when no document has been loaded.
	ErrNotLoaded = errors.New("notation: no document loaded")
)

// Config controls what an engine draws. The practice viewer always
// suppresses decorative metadata and forces the continuous single-row
// layout; the flags exist so other surfaces can opt back in.
type Config struct {
	SuppressTitle     bool
	SuppressCredits   bool
	SuppressPartNames bool
	SingleRow         bool
}

// PracticeConfig is the configuration the practice viewer uses for every
// slot: no titles, no credits, no part names, one continuous row.
func PracticeConfig() Config {
	return Config{
		SuppressTitle:     true,
		SuppressCredits:   true,
		SuppressPartNames: true,
		SingleRow:         true,
	}
}

// Engine is the rendering collaborator. Load parses and validates the
// document text; Render draws it into the engine's container; Clear erases
// the container and drops the loaded document. Implementations need not be
// safe for concurrent use; the pool serializes access per slot.
type Engine interface {
	Load(text string) error
	Render() error
	Clear()
}

// Factory creates an engine bound to a container. The pool calls it once
// per slot; tests substitute fakes through it.
type Factory func(cfg Config, c *Container) Engine

// Container is the drawing surface a slot hands to its engine. Content is
// whatever the engine last rendered; a detached container drops all writes,
// which is how a torn-down view keeps late-resolving work from drawing into
// it.
type Container struct {
	mu       sync.Mutex
	content  string
	detached bool
}

// NewContainer returns an empty, attached container.
func NewContainer() *Container {
	return &Container{}
}

// SetContent replaces the container's content. Writes to a detached
// container are silently dropped.
func (c *Container) SetContent(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return
	}
	c.content = s
}

// Content returns the current content.
func (c *Container) Content() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content
}

// Clear erases the content. Clearing works even when detached so teardown
// can always leave the surface empty.
func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = ""
}

// Detach clears the container and marks it dead: every later SetContent is
// a no-op. Detach is idempotent.
func (c *Container) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = ""
	c.detached = true
}

// Detached reports whether the container has been detached.
func (c *Container) Detached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detached
}
