package engine

import (
	"math"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/officer"
	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
)

// OfficerRegistry tracks supervising personnel. Only the engine command loop
// mutates it; pipelines read officer state to gate stage confirmations.
type OfficerRegistry struct {
	officers map[string]*officer.Officer
	logger   *logger.Logger
}

// NewOfficerRegistry creates an empty registry.
func NewOfficerRegistry(log *logger.Logger) *OfficerRegistry {
	return &OfficerRegistry{
		officers: make(map[string]*officer.Officer),
		logger:   log,
	}
}

// Upsert registers an officer or refreshes its state and position.
func (r *OfficerRegistry) Upsert(o officer.Officer) {
	existing, ok := r.officers[o.ID]
	if !ok {
		copied := o
		r.officers[o.ID] = &copied
		r.logger.Infof("officer %s (%s) registered as %s", o.ID, o.Name, o.Role)
		return
	}
	// Escort assignment is owned by the pipelines, never by transport updates.
	existing.Name = o.Name
	existing.Role = o.Role
	existing.State = o.State
	existing.Position = o.Position
	if !existing.Reachable() && existing.Escorting != "" {
		r.logger.Warnf("officer %s became %s while escorting %s", o.ID, o.State, existing.Escorting)
	}
}

// Get returns the live officer record.
func (r *OfficerRegistry) Get(id string) (*officer.Officer, bool) {
	o, ok := r.officers[id]
	return o, ok
}

// FindAvailable returns the available officer of the given role nearest to
// near, or nil when none can take an assignment.
func (r *OfficerRegistry) FindAvailable(role officer.Role, near subject.Vector3) *officer.Officer {
	var best *officer.Officer
	bestDist := math.MaxFloat64
	for _, o := range r.officers {
		if o.Role != role || !o.Available() {
			continue
		}
		if d := o.Position.DistanceTo(near); d < bestDist {
			best, bestDist = o, d
		}
	}
	return best
}

// PresentAt reports whether the named officer stands within radius of point.
// Unknown officers are never present.
func (r *OfficerRegistry) PresentAt(id string, point subject.Vector3, radius float64) bool {
	o, ok := r.officers[id]
	if !ok {
		return false
	}
	return o.PresentAt(point, radius)
}

// Release clears any escort held by the named officer.
func (r *OfficerRegistry) Release(id string) {
	if o, ok := r.officers[id]; ok {
		o.ClearEscort()
	}
}

// All returns a snapshot copy of every registered officer.
func (r *OfficerRegistry) All() []officer.Officer {
	out := make([]officer.Officer, 0, len(r.officers))
	for _, o := range r.officers {
		out = append(out, *o)
	}
	return out
}
