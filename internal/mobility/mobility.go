// Package mobility supplies node positions to the propagation and
// channel layers.
package mobility

import (
	"time"

	"github.com/golang/geo/r2"
)

// Position is a point in the simulation plane, in meters.
type Position = r2.Point

// NodeID identifies a station within a Model.
type NodeID uint32

// Model answers "where is this node right now?" queries. Mobility is
// polled on every send — implementations must not hold locks or block.
type Model interface {
	PositionOf(id NodeID) Position
}

// Static pins every node at a fixed position set at construction time.
type Static struct {
	positions map[NodeID]Position
}

// NewStatic builds a Static model from an explicit id->position map.
func NewStatic(positions map[NodeID]Position) *Static {
	s := &Static{positions: make(map[NodeID]Position, len(positions))}
	for id, p := range positions {
		s.positions[id] = p
	}
	return s
}

// Set overrides (or adds) a node's fixed position.
func (s *Static) Set(id NodeID, p Position) { s.positions[id] = p }

// PositionOf implements Model.
func (s *Static) PositionOf(id NodeID) Position { return s.positions[id] }

// Waypoint is a (time, position) sample of constant-velocity motion.
type Waypoint struct {
	At       time.Duration
	Position Position
}

// Linear moves each node at constant velocity between two waypoints and
// holds its position fixed before the first and after the last. It
// gives callers of PositionOf the node's position at the time they ask
// — the caller supplies "now" via Clock so polling stays side-effect
// free.
type Linear struct {
	Clock     func() time.Duration
	waypoints map[NodeID][]Waypoint
}

// NewLinear builds a Linear model. clock reports the current simulated
// time; it is typically sim.Scheduler.Now.
func NewLinear(clock func() time.Duration) *Linear {
	return &Linear{Clock: clock, waypoints: make(map[NodeID][]Waypoint)}
}

// AddWaypoint appends a waypoint for id. Waypoints must be added in
// non-decreasing time order.
func (l *Linear) AddWaypoint(id NodeID, w Waypoint) {
	l.waypoints[id] = append(l.waypoints[id], w)
}

// PositionOf implements Model, interpolating linearly between the two
// waypoints bracketing the current clock time.
func (l *Linear) PositionOf(id NodeID) Position {
	wps := l.waypoints[id]
	if len(wps) == 0 {
		return Position{}
	}
	now := l.Clock()
	if now <= wps[0].At {
		return wps[0].Position
	}
	last := wps[len(wps)-1]
	if now >= last.At {
		return last.Position
	}
	for i := 0; i+1 < len(wps); i++ {
		a, b := wps[i], wps[i+1]
		if now >= a.At && now <= b.At {
			span := b.At - a.At
			if span <= 0 {
				return a.Position
			}
			frac := float64(now-a.At) / float64(span)
			return Position{
				X: a.Position.X + (b.Position.X-a.Position.X)*frac,
				Y: a.Position.Y + (b.Position.Y-a.Position.Y)*frac,
			}
		}
	}
	return last.Position
}

// Distance returns the Euclidean distance between two positions, in
// the same units the positions are expressed in (meters throughout
// this simulator).
func Distance(a, b Position) float64 {
	return a.Sub(b).Norm()
}
