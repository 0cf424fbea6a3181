// Package course provides the waypoint network a vehicle can be driven
// around: nodes on the ground plane joined by directed legs, with cached
// shortest routes between any two waypoints.
package course

import (
	"fmt"
	"math"

	"github.com/cxd309/drive-engine/internal/vmath"
)

// WaypointID, LegID, RouteID are string aliases used as identifiers.
type (
	WaypointID = string
	LegID      = string
	RouteID    = string
)

// Loc is a point on the ground plane in metres, in the vehicle's local frame.
type Loc struct {
	X float64 `json:"x"` // metres
	Z float64 `json:"z"` // metres
}

// Vec3 lifts the location onto the ground plane.
func (l Loc) Vec3() vmath.Vec3 { return vmath.Vec3{X: l.X, Z: l.Z} }

// Waypoint is a point the vehicle can be routed through.
type Waypoint struct {
	ID  WaypointID `json:"waypoint_id"`
	Loc Loc        `json:"loc"`
}

// Leg is a directed connection between two waypoints.
// Length defaults to the straight-line distance when zero.
// SpeedLimit is optional: if nil the vehicle's own maximum applies.
type Leg struct {
	ID         LegID      `json:"leg_id"`
	U          WaypointID `json:"u"`
	V          WaypointID `json:"v"`
	Length     float64    `json:"length,omitempty"`      // metres
	SpeedLimit *float64   `json:"speed_limit,omitempty"` // vehicle velocity units; nil = no restriction
}

// Data is the serialisable input representation of a course.
type Data struct {
	Waypoints []Waypoint `json:"waypoints"`
	Legs      []Leg      `json:"legs"`
}

// Route holds the result of a shortest-route computation.
type Route struct {
	ID        RouteID
	Waypoints []WaypointID // ordered waypoint IDs from start to end
	Length    float64      // total route length in metres
}

// Course is a directed weighted graph of waypoints with cached routing.
type Course struct {
	waypoints   []Waypoint
	legs        []Leg
	waypointMap map[WaypointID]Waypoint
	legMap      map[LegID]Leg
	legByEnds   map[WaypointID]map[WaypointID]Leg // u → v → leg
	routes      *routeTable                       // nil until needed or after a change
}

// New builds a Course from Data, returning an error if any waypoint or leg
// references are invalid.
func New(data Data) (*Course, error) {
	c := &Course{
		waypointMap: make(map[WaypointID]Waypoint),
		legMap:      make(map[LegID]Leg),
		legByEnds:   make(map[WaypointID]map[WaypointID]Leg),
	}
	for _, w := range data.Waypoints {
		if err := c.AddWaypoint(w); err != nil {
			return nil, err
		}
	}
	for _, l := range data.Legs {
		if err := c.AddLeg(l); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddWaypoint adds a waypoint. Returns an error if the ID already exists.
func (c *Course) AddWaypoint(w Waypoint) error {
	if _, exists := c.waypointMap[w.ID]; exists {
		return fmt.Errorf("waypoint %q already exists", w.ID)
	}
	c.waypoints = append(c.waypoints, w)
	c.waypointMap[w.ID] = w
	c.invalidate()
	return nil
}

// AddLeg adds a directed leg. Returns an error if the leg ID already exists,
// either endpoint is missing, or the length is negative.
func (c *Course) AddLeg(l Leg) error {
	if _, exists := c.legMap[l.ID]; exists {
		return fmt.Errorf("leg %q already exists", l.ID)
	}
	u, ok := c.waypointMap[l.U]
	if !ok {
		return fmt.Errorf("leg %q: source waypoint %q not found", l.ID, l.U)
	}
	v, ok := c.waypointMap[l.V]
	if !ok {
		return fmt.Errorf("leg %q: target waypoint %q not found", l.ID, l.V)
	}
	if l.Length < 0 || math.IsNaN(l.Length) {
		return fmt.Errorf("leg %q: invalid length %v", l.ID, l.Length)
	}
	if l.Length == 0 {
		l.Length = math.Hypot(v.Loc.X-u.Loc.X, v.Loc.Z-u.Loc.Z)
	}
	c.legs = append(c.legs, l)
	c.legMap[l.ID] = l
	if c.legByEnds[l.U] == nil {
		c.legByEnds[l.U] = make(map[WaypointID]Leg)
	}
	// Parallel legs: routing and RouteLegs both use the shortest.
	if prev, ok := c.legByEnds[l.U][l.V]; !ok || l.Length < prev.Length {
		c.legByEnds[l.U][l.V] = l
	}
	c.invalidate()
	return nil
}

// routeKey returns a canonical string key for a start→end pair.
func routeKey(start, end WaypointID) RouteID { return start + "->" + end }

// Waypoint looks up a waypoint by its ID.
func (c *Course) Waypoint(id WaypointID) (Waypoint, error) {
	w, ok := c.waypointMap[id]
	if !ok {
		return Waypoint{}, fmt.Errorf("waypoint %q: %w", id, ErrUnknownWaypoint)
	}
	return w, nil
}

// Waypoints returns every waypoint in insertion order.
func (c *Course) Waypoints() []Waypoint { return c.waypoints }

// LegByID looks up a leg by its ID.
func (c *Course) LegByID(id LegID) (Leg, error) {
	l, ok := c.legMap[id]
	if !ok {
		return Leg{}, fmt.Errorf("leg %q not found", id)
	}
	return l, nil
}

// Leg returns the directed leg from u to v.
func (c *Course) Leg(u, v WaypointID) (Leg, error) {
	if m, ok := c.legByEnds[u]; ok {
		if l, ok := m[v]; ok {
			return l, nil
		}
	}
	return Leg{}, fmt.Errorf("no leg from %q to %q", u, v)
}

// RouteLegs expands a route into its legs.
func (c *Course) RouteLegs(r Route) ([]Leg, error) {
	if len(r.Waypoints) < 2 {
		return nil, nil
	}
	legs := make([]Leg, 0, len(r.Waypoints)-1)
	for i := 1; i < len(r.Waypoints); i++ {
		l, err := c.Leg(r.Waypoints[i-1], r.Waypoints[i])
		if err != nil {
			return nil, err
		}
		legs = append(legs, l)
	}
	return legs, nil
}
