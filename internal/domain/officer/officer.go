// Package officer defines the tagged variant for supervising personnel.
// Guards, release escorts and parole officers share one struct distinguished
// by Role; behavior differences live in the pipelines that consume them.
// This package is PURE and must NOT import any infrastructure packages.
package officer

import "github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"

// Role identifies what duty an officer performs.
type Role string

const (
	RoleGuard         Role = "GUARD"          // Booking supervision, cell block patrol
	RoleReleaseEscort Role = "RELEASE_ESCORT" // Walks detainees through the release pipeline
	RoleParoleOfficer Role = "PAROLE_OFFICER" // Post-release supervision and searches
)

// State is the officer's current duty status.
type State string

const (
	StateOnDuty      State = "ON_DUTY"
	StateEscorting   State = "ESCORTING"
	StateUnreachable State = "UNREACHABLE" // Despawned or pathing failure; presence checks fail
	StateOffDuty     State = "OFF_DUTY"
)

// Officer is the lifecycle engine's view of a supervising presence.
type Officer struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Role     Role            `json:"role"`
	State    State           `json:"state"`
	Position subject.Vector3 `json:"position"`

	// Escorting is the subject this officer is currently walking through a
	// pipeline, empty when none.
	Escorting subject.ID `json:"escorting,omitempty"`
}

// New creates an on-duty officer at the given post.
func New(id, name string, role Role, pos subject.Vector3) *Officer {
	return &Officer{
		ID:       id,
		Name:     name,
		Role:     role,
		State:    StateOnDuty,
		Position: pos,
	}
}

// Available reports whether the officer can take a new escort assignment.
func (o *Officer) Available() bool {
	return o.State == StateOnDuty && o.Escorting == ""
}

// Reachable reports whether presence checks against this officer can succeed.
func (o *Officer) Reachable() bool {
	return o.State == StateOnDuty || o.State == StateEscorting
}

// PresentAt reports whether the officer is within radius of a supervision point.
// Unreachable or off-duty officers are never present anywhere.
func (o *Officer) PresentAt(point subject.Vector3, radius float64) bool {
	if !o.Reachable() {
		return false
	}
	return o.Position.DistanceTo(point) <= radius
}

// AssignEscort marks the officer as escorting a subject.
func (o *Officer) AssignEscort(id subject.ID) {
	o.Escorting = id
	o.State = StateEscorting
}

// ClearEscort returns the officer to regular duty.
func (o *Officer) ClearEscort() {
	o.Escorting = ""
	if o.State == StateEscorting {
		o.State = StateOnDuty
	}
}
