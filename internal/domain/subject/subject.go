// Package subject defines the core domain identity for detained characters.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package subject

import "math"

// ID is the stable identifier of a detainee. The engine never owns the
// character behind it; everything downstream keys off this ID.
type ID string

// Subject is the detainee identity as seen by the lifecycle engine.
type Subject struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`

	// Level is the character progression level at arrest time.
	Level int `json:"level"`
	// WealthTier buckets the character's economy: 0 (broke) to 3 (rich).
	WealthTier int `json:"wealth_tier"`
}

// New creates a subject with sane bounds on level and wealth tier.
func New(id ID, name string, level, wealthTier int) *Subject {
	if level < 1 {
		level = 1
	}
	if wealthTier < 0 {
		wealthTier = 0
	}
	if wealthTier > 3 {
		wealthTier = 3
	}
	return &Subject{
		ID:         id,
		Name:       name,
		Level:      level,
		WealthTier: wealthTier,
	}
}

// Vector3 is a position in facility space, in meters.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sub returns v - o.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Length returns the Euclidean magnitude of v.
func (v Vector3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// DistanceTo returns the Euclidean distance between two points.
func (v Vector3) DistanceTo(o Vector3) float64 {
	return v.Sub(o).Length()
}

// Zone is a spherical trigger volume (exit zones, supervision points).
type Zone struct {
	Center Vector3 `json:"center"`
	Radius float64 `json:"radius"`
}

// Contains reports whether p is inside the zone.
func (z Zone) Contains(p Vector3) bool {
	return z.Center.DistanceTo(p) <= z.Radius
}
