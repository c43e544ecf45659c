package engine

import (
	"sync"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
)

// PositionSource answers "where is this subject right now". The release
// pipeline and parole supervision both read through it.
type PositionSource interface {
	CurrentPosition(id subject.ID) (subject.Vector3, bool)
}

// Relocator teleports a subject to a point. Fire-and-forget toward the
// presentation layer; the engine never waits on the result.
type Relocator interface {
	Relocate(id subject.ID, to subject.Vector3)
}

// PositionRegistry tracks last-reported subject positions. Position updates
// arrive at high frequency straight from transport handlers, so this is the
// one piece of engine state guarded by its own lock instead of the command
// loop.
type PositionRegistry struct {
	mu        sync.RWMutex
	positions map[subject.ID]subject.Vector3
}

// NewPositionRegistry creates an empty registry.
func NewPositionRegistry() *PositionRegistry {
	return &PositionRegistry{positions: make(map[subject.ID]subject.Vector3)}
}

// Set records the latest known position for a subject.
func (r *PositionRegistry) Set(id subject.ID, pos subject.Vector3) {
	r.mu.Lock()
	r.positions[id] = pos
	r.mu.Unlock()
}

// CurrentPosition returns the last reported position, if any.
func (r *PositionRegistry) CurrentPosition(id subject.ID) (subject.Vector3, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.positions[id]
	return pos, ok
}

// Relocate overwrites the tracked position. Deployments with a presentation
// layer wrap this to also move the character model.
func (r *PositionRegistry) Relocate(id subject.ID, to subject.Vector3) {
	r.Set(id, to)
}

// Forget drops tracking for a subject.
func (r *PositionRegistry) Forget(id subject.ID) {
	r.mu.Lock()
	delete(r.positions, id)
	r.mu.Unlock()
}
