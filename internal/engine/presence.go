package engine

import (
	"math"

	"github.com/SirTidez/Behind-Bars-sub007/internal/domain/subject"
	"github.com/SirTidez/Behind-Bars-sub007/internal/events"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/config"
	"github.com/SirTidez/Behind-Bars-sub007/internal/platform/logger"
)

// RouteKind distinguishes stationary supervision posts from patrol loops.
type RouteKind string

const (
	RouteSupervising RouteKind = "SUPERVISING" // Stationary, spawns at parole start
	RoutePatrol      RouteKind = "PATROL"      // Spawns on proximity, despawns on range
)

// Route is a supervision presence definition: a post (single point) or a
// patrol path (polyline) a parole officer can be materialized onto.
type Route struct {
	Key    string            `json:"key"`
	Kind   RouteKind         `json:"kind"`
	Points []subject.Vector3 `json:"points"`
}

// DistanceTo returns the shortest distance from p to the route geometry.
func (r Route) DistanceTo(p subject.Vector3) float64 {
	if len(r.Points) == 0 {
		return math.MaxFloat64
	}
	if len(r.Points) == 1 {
		return p.DistanceTo(r.Points[0])
	}
	best := math.MaxFloat64
	for i := 0; i < len(r.Points)-1; i++ {
		if d := pointToSegment(p, r.Points[i], r.Points[i+1]); d < best {
			best = d
		}
	}
	return best
}

// pointToSegment returns the distance from p to the segment ab.
func pointToSegment(p, a, b subject.Vector3) float64 {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y + ab.Z*ab.Z
	if lenSq == 0 {
		return p.DistanceTo(a)
	}
	ap := p.Sub(a)
	t := (ap.X*ab.X + ap.Y*ab.Y + ap.Z*ab.Z) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	closest := subject.Vector3{X: a.X + ab.X*t, Y: a.Y + ab.Y*t, Z: a.Z + ab.Z*t}
	return p.DistanceTo(closest)
}

// PresenceSignaler is the fire-and-forget bridge to the presentation layer
// for materializing and removing supervision presences.
type PresenceSignaler interface {
	SpawnPresence(routeKey string)
	DespawnPresence(routeKey string)
}

// PresenceManager decides which supervision presences exist at any moment.
// Patrol presences come and go with parolee proximity, using a deactivation
// radius wider than the activation radius so a parolee hovering at the edge
// cannot flap a presence on and off every tick.
type PresenceManager struct {
	routes  []Route
	spawned map[string]bool

	// supervised is the set of subjects currently on parole.
	supervised map[subject.ID]bool

	positions PositionSource
	signaler  PresenceSignaler

	eventLog *events.EventLog
	logger   *logger.Logger
	cfg      config.LifecycleConfig
}

// NewPresenceManager wires the presence manager over a fixed route set.
func NewPresenceManager(
	routes []Route,
	positions PositionSource,
	signaler PresenceSignaler,
	eventLog *events.EventLog,
	log *logger.Logger,
	cfg config.LifecycleConfig,
) *PresenceManager {
	return &PresenceManager{
		routes:     routes,
		spawned:    make(map[string]bool),
		supervised: make(map[subject.ID]bool),
		positions:  positions,
		signaler:   signaler,
		eventLog:   eventLog,
		logger:     log,
		cfg:        cfg,
	}
}

// OnParoleStart registers a supervised subject and immediately materializes
// the stationary supervising posts.
func (m *PresenceManager) OnParoleStart(id subject.ID, nowMinutes float64) {
	m.supervised[id] = true
	for _, r := range m.routes {
		if r.Kind == RouteSupervising && !m.spawned[r.Key] {
			m.spawn(r, nowMinutes)
		}
	}
}

// OnParoleEnd drops a supervised subject. The last parolee leaving takes
// every presence down with them.
func (m *PresenceManager) OnParoleEnd(id subject.ID, nowMinutes float64) {
	delete(m.supervised, id)
	if len(m.supervised) > 0 {
		return
	}
	for _, r := range m.routes {
		if m.spawned[r.Key] {
			m.despawn(r, nowMinutes)
		}
	}
}

// OnTick re-evaluates patrol presences against parolee positions.
func (m *PresenceManager) OnTick(nowMinutes float64) {
	if len(m.supervised) == 0 {
		return
	}
	for _, r := range m.routes {
		if r.Kind != RoutePatrol {
			continue
		}
		d := m.nearestSupervisedDistance(r)
		switch {
		case !m.spawned[r.Key] && d <= m.cfg.PresenceActivationRadius:
			m.spawn(r, nowMinutes)
		case m.spawned[r.Key] && d > m.cfg.PresenceDeactivationRadius:
			m.despawn(r, nowMinutes)
		}
	}
}

// NearestActiveDistance returns the distance from p to the closest spawned
// presence. Parole search eligibility reads this.
func (m *PresenceManager) NearestActiveDistance(p subject.Vector3) (float64, bool) {
	best := math.MaxFloat64
	found := false
	for _, r := range m.routes {
		if !m.spawned[r.Key] {
			continue
		}
		if d := r.DistanceTo(p); d < best {
			best = d
			found = true
		}
	}
	return best, found
}

// ActiveCount returns how many presences are currently materialized.
func (m *PresenceManager) ActiveCount() int {
	n := 0
	for _, up := range m.spawned {
		if up {
			n++
		}
	}
	return n
}

func (m *PresenceManager) nearestSupervisedDistance(r Route) float64 {
	best := math.MaxFloat64
	for id := range m.supervised {
		pos, ok := m.positions.CurrentPosition(id)
		if !ok {
			continue
		}
		if d := r.DistanceTo(pos); d < best {
			best = d
		}
	}
	return best
}

func (m *PresenceManager) spawn(r Route, nowMinutes float64) {
	m.spawned[r.Key] = true
	if m.signaler != nil {
		m.signaler.SpawnPresence(r.Key)
	}
	m.eventLog.Append(events.GameEvent{
		Type:        events.EventTypePresenceSpawn,
		Payload:     map[string]string{"route": r.Key, "kind": string(r.Kind)},
		GameMinutes: nowMinutes,
	})
	m.logger.Infof("presence spawned on route %s", r.Key)
}

func (m *PresenceManager) despawn(r Route, nowMinutes float64) {
	delete(m.spawned, r.Key)
	if m.signaler != nil {
		m.signaler.DespawnPresence(r.Key)
	}
	m.eventLog.Append(events.GameEvent{
		Type:        events.EventTypePresenceDespawn,
		Payload:     map[string]string{"route": r.Key, "kind": string(r.Kind)},
		GameMinutes: nowMinutes,
	})
	m.logger.Infof("presence despawned on route %s", r.Key)
}
