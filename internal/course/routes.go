package course

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownWaypoint is returned when an ID names no waypoint.
	ErrUnknownWaypoint = errors.New("waypoint not found")
	// ErrNoRoute is returned when the end cannot be reached from the start.
	ErrNoRoute = errors.New("no route")
)

// routeTable holds all-pairs shortest distances and first hops, indexed by
// waypoint insertion order, plus the routes built from them so far. It is
// dropped as a whole whenever the course changes.
type routeTable struct {
	index map[WaypointID]int
	dist  [][]float64
	hop   [][]int // first waypoint after i on the way to j, -1 if none
	built map[RouteID]Route
}

// newRouteTable runs Floyd-Warshall over the current waypoints and legs.
func newRouteTable(waypoints []Waypoint, legs []Leg) *routeTable {
	n := len(waypoints)
	t := &routeTable{
		index: make(map[WaypointID]int, n),
		dist:  make([][]float64, n),
		hop:   make([][]int, n),
		built: make(map[RouteID]Route),
	}
	for i, w := range waypoints {
		t.index[w.ID] = i
		t.dist[i] = make([]float64, n)
		t.hop[i] = make([]int, n)
		for j := range t.dist[i] {
			t.dist[i][j] = math.Inf(1)
			t.hop[i][j] = -1
		}
		t.dist[i][i] = 0
		t.hop[i][i] = i
	}
	for _, l := range legs {
		u, v := t.index[l.U], t.index[l.V]
		if l.Length < t.dist[u][v] {
			t.dist[u][v] = l.Length
			t.hop[u][v] = v
		}
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			if math.IsInf(t.dist[i][k], 1) {
				continue
			}
			for j := 0; j < n; j++ {
				if d := t.dist[i][k] + t.dist[k][j]; d < t.dist[i][j] {
					t.dist[i][j] = d
					t.hop[i][j] = t.hop[i][k]
				}
			}
		}
	}
	return t
}

// table returns the route table, rebuilding it after any change.
func (c *Course) table() *routeTable {
	if c.routes == nil {
		c.routes = newRouteTable(c.waypoints, c.legs)
	}
	return c.routes
}

// invalidate drops every computed route.
func (c *Course) invalidate() { c.routes = nil }

// ShortestRoute returns the shortest route from start to end. Routes are
// cached until the next AddWaypoint or AddLeg. Unknown waypoints yield
// ErrUnknownWaypoint, unreachable ones ErrNoRoute.
func (c *Course) ShortestRoute(start, end WaypointID) (Route, error) {
	for _, id := range []WaypointID{start, end} {
		if _, err := c.Waypoint(id); err != nil {
			return Route{}, err
		}
	}
	t := c.table()
	key := routeKey(start, end)
	if r, ok := t.built[key]; ok {
		return r, nil
	}

	i, j := t.index[start], t.index[end]
	if math.IsInf(t.dist[i][j], 1) {
		return Route{}, fmt.Errorf("%w from %q to %q", ErrNoRoute, start, end)
	}
	r := Route{ID: key, Waypoints: []WaypointID{start}, Length: t.dist[i][j]}
	for i != j {
		i = t.hop[i][j]
		r.Waypoints = append(r.Waypoints, c.waypoints[i].ID)
	}
	t.built[key] = r
	return r, nil
}

// Tour chains shortest routes through stops in order, e.g. a lap
// start → a → b → start. Consecutive duplicate waypoints are collapsed.
func (c *Course) Tour(stops []WaypointID) (Route, error) {
	if len(stops) == 0 {
		return Route{}, fmt.Errorf("tour needs at least one stop")
	}
	tour := Route{ID: stops[0], Waypoints: []WaypointID{stops[0]}}
	if _, err := c.Waypoint(stops[0]); err != nil {
		return Route{}, err
	}
	for i := 1; i < len(stops); i++ {
		r, err := c.ShortestRoute(stops[i-1], stops[i])
		if err != nil {
			return Route{}, fmt.Errorf("tour stop %d: %w", i, err)
		}
		tour.Waypoints = append(tour.Waypoints, r.Waypoints[1:]...)
		tour.Length += r.Length
		tour.ID += "->" + stops[i]
	}
	return tour, nil
}
