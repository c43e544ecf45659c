// Package cell defines the domain entity for a holding cell.
// This package is PURE and must NOT import any infrastructure packages.
package cell

import "github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"

// Cell represents one physical cell in the facility. Exactly one subject or
// none occupies it at any time; the Cell Assignment Manager is the only
// writer of Occupant.
type Cell struct {
	Index      int        `json:"index"`
	Occupant   subject.ID `json:"occupant,omitempty"`
	DoorLocked bool       `json:"door_locked"`
}

// New creates an empty, unlocked cell.
func New(index int) *Cell {
	return &Cell{Index: index}
}

// Vacant reports whether the cell has no occupant.
func (c *Cell) Vacant() bool {
	return c.Occupant == ""
}

// Claim assigns an occupant. Returns false if the cell is already taken.
func (c *Cell) Claim(id subject.ID) bool {
	if !c.Vacant() {
		return false
	}
	c.Occupant = id
	return true
}

// Clear empties the cell and unlocks the door.
func (c *Cell) Clear() {
	c.Occupant = ""
	c.DoorLocked = false
}
