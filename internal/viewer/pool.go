package viewer

import (
	"sync"

	"etude/internal/fragment"
	"etude/internal/logging"
	"etude/internal/notation"
)

// Slot is one render target: a fragment, the document path that renders it,
// a container, and the engine instance that draws into it. Slots are
// created only by the pool and die on the next fragment change; they are
// never reused.
type Slot struct {
	id        fragment.ID
	path      string
	gen       uint64
	container *notation.Container
	engine    notation.Engine

	mu     sync.Mutex
	status Status
	err    error
}

// Fragment returns the fragment this slot displays.
func (s *Slot) Fragment() fragment.ID { return s.id }

// Path returns the document path the slot renders.
func (s *Slot) Path() string { return s.path }

// Generation returns the pool generation the slot was created under.
func (s *Slot) Generation() uint64 { return s.gen }

// Status returns the slot's current state and, for StatusFailed, the
// failure reason.
func (s *Slot) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.err
}

// Content returns whatever the engine last drew into the slot's container.
func (s *Slot) Content() string { return s.container.Content() }

func (s *Slot) setStatus(st Status, err error) {
	s.mu.Lock()
	s.status = st
	s.err = err
	s.mu.Unlock()
}

// Pool owns every slot's lifecycle. On each fragment change it discards all
// existing instances and clears their containers before creating fresh
// ones, so an old render can never show through a new one. A closed pool
// (host view torn down) turns SetFragments into a silent no-op.
type Pool struct {
	mu      sync.RWMutex
	factory notation.Factory
	cfg     notation.Config
	slots   []*Slot
	gen     uint64
	closed  bool
}

// NewPool returns an empty pool creating engines via factory with cfg.
func NewPool(factory notation.Factory, cfg notation.Config) *Pool {
	return &Pool{factory: factory, cfg: cfg}
}

// SetFragments replaces the displayed fragment list. Teardown of the old
// slots completes before any new slot exists. Slots come back in fragment
// order, one per resolved document (each fragment resolves to exactly one).
// Fragments that resolve to nothing (the zero ID) contribute no slot.
// Returns the new slots, or nil when the pool is closed.
func (p *Pool) SetFragments(ids ...fragment.ID) []*Slot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		logging.RenderDebug("pool closed, ignoring SetFragments(%d fragments)", len(ids))
		return nil
	}

	p.teardownLocked()
	p.gen++

	for _, id := range ids {
		for _, path := range fragment.Resolve(id) {
			container := notation.NewContainer()
			slot := &Slot{
				id:        id,
				path:      path,
				gen:       p.gen,
				container: container,
				engine:    p.factory(p.cfg, container),
				status:    StatusIdle,
			}
			p.slots = append(p.slots, slot)
		}
	}

	logging.RenderDebug("pool generation %d: %d slot(s)", p.gen, len(p.slots))

	out := make([]*Slot, len(p.slots))
	copy(out, p.slots)
	return out
}

// teardownLocked discards every slot: the engine clears, the container
// detaches so late writes vanish. Caller holds p.mu.
func (p *Pool) teardownLocked() {
	for _, s := range p.slots {
		s.engine.Clear()
		s.container.Detach()
	}
	p.slots = nil
}

// Slots returns a snapshot of the current slots.
func (p *Pool) Slots() []*Slot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Slot, len(p.slots))
	copy(out, p.slots)
	return out
}

// Generation returns the current pool generation.
func (p *Pool) Generation() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.gen
}

// Current reports whether gen is still the live generation of an open
// pool. The sequencer checks this before applying any async result.
func (p *Pool) Current(gen uint64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && gen == p.gen
}

// Close tears down all slots and marks the pool dead. Idempotent. After
// Close every SetFragments is a no-op and every in-flight load resolves
// stale.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.teardownLocked()
	p.closed = true
	p.gen++
}
