// Package autopilot drives a vehicle along a course route by producing the
// same InputState a human driver would: direction buttons and a steer ratio.
package autopilot

import (
	"errors"
	"fmt"
	"math"

	"github.com/cxd309/drive-engine/internal/course"
	"github.com/cxd309/drive-engine/internal/kinematics"
	"github.com/cxd309/drive-engine/internal/vehicle"
	"github.com/cxd309/drive-engine/internal/vmath"
)

// ErrEmptyRoute is returned when a route has no waypoints to follow.
var ErrEmptyRoute = errors.New("route has no waypoints")

// Config tunes the route follower.
type Config struct {
	FullLockDegrees float64 `json:"full_lock_deg" mapstructure:"fullLockDegrees"` // heading error that gets full steer
	ArrivalRadius   float64 `json:"arrival_radius" mapstructure:"arrivalRadius"`  // metres
	DeadbandDegrees float64 `json:"deadband_deg" mapstructure:"deadbandDegrees"`  // errors below this drive straight
	Loop            bool    `json:"loop" mapstructure:"loop"`
}

// DefaultConfig returns the follower settings used when a scenario gives none.
func DefaultConfig() Config {
	return Config{
		FullLockDegrees: 30,
		ArrivalRadius:   0.1,
		DeadbandDegrees: 0.5,
	}
}

// Target is one waypoint to reach, with the speed limit of the leg leading to it.
type Target struct {
	ID    course.WaypointID
	Pos   vmath.Vec3
	Limit float64 // +Inf when unrestricted
}

// Autopilot follows an ordered list of targets.
type Autopilot struct {
	cfg     Config
	targets []Target
	idx     int
	reached int
	done    bool
}

// New builds a follower for route on c.
func New(c *course.Course, route course.Route, cfg Config) (*Autopilot, error) {
	if len(route.Waypoints) == 0 {
		return nil, ErrEmptyRoute
	}
	if cfg.FullLockDegrees <= 0 {
		return nil, fmt.Errorf("full lock angle must be positive, got %v", cfg.FullLockDegrees)
	}
	targets := make([]Target, 0, len(route.Waypoints))
	for i, id := range route.Waypoints {
		w, err := c.Waypoint(id)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", route.ID, err)
		}
		t := Target{ID: id, Pos: w.Loc.Vec3(), Limit: math.Inf(1)}
		if i > 0 {
			leg, err := c.Leg(route.Waypoints[i-1], id)
			if err != nil {
				return nil, fmt.Errorf("route %q: %w", route.ID, err)
			}
			if leg.SpeedLimit != nil {
				t.Limit = *leg.SpeedLimit
			}
		}
		targets = append(targets, t)
	}
	return &Autopilot{cfg: cfg, targets: targets}, nil
}

// Done reports whether the last target has been reached.
func (a *Autopilot) Done() bool { return a.done }

// Reached returns how many targets have been reached so far.
func (a *Autopilot) Reached() int { return a.reached }

// Restart sends the follower back to the first target. Targets are in the
// vehicle's local frame, so a vehicle reset to the origin starts over.
func (a *Autopilot) Restart() {
	a.idx = 0
	a.reached = 0
	a.done = false
}

// Target returns the waypoint currently being steered for.
func (a *Autopilot) Target() (Target, bool) {
	if a.done {
		return Target{}, false
	}
	return a.targets[a.idx], true
}

// Next picks the controls for the coming tick from the current pose.
func (a *Autopilot) Next(p vehicle.Pose) vehicle.InputState {
	in := vehicle.InputState{SteerRatio: 1}
	if !a.done {
		a.advance(p.Position)
	}
	if a.done {
		// Brake out of any forward roll, then let friction settle the rest.
		if p.Velocity > 0 {
			in.Direction = vehicle.DirReverse
		}
		return in
	}

	t := a.targets[a.idx]
	heading := kinematics.HeadingFromYaw(p.HeadingDegrees)
	errRad := HeadingError(heading, p.Position, t.Pos)
	absDeg := math.Abs(errRad) * 180 / math.Pi
	if absDeg > a.cfg.DeadbandDegrees {
		in.SteerRatio = math.Min(absDeg/a.cfg.FullLockDegrees, 1)
		if errRad > 0 {
			in.Direction |= vehicle.DirRight
		} else {
			in.Direction |= vehicle.DirLeft
		}
	}
	if p.Velocity < t.Limit {
		in.Direction |= vehicle.DirForward
	}
	return in
}

// advance moves past every target already inside the arrival radius. A
// looping route skips at most one full lap per call.
func (a *Autopilot) advance(pos vmath.Vec3) {
	for i := 0; i < len(a.targets); i++ {
		if a.targets[a.idx].Pos.Sub(pos).LenXZ() > a.cfg.ArrivalRadius {
			return
		}
		a.reached++
		a.idx++
		if a.idx == len(a.targets) {
			if !a.cfg.Loop {
				a.done = true
				return
			}
			a.idx = 0
		}
	}
}

// HeadingError is the signed angle in radians from heading h to the
// direction of target seen from pos, on the ground plane. Positive means the
// target is to the right.
func HeadingError(h, pos, target vmath.Vec3) float64 {
	d := target.Sub(pos).Flat()
	if d.LenXZ() == 0 {
		return 0
	}
	cross := h.X*d.Z - h.Z*d.X
	dot := h.X*d.X + h.Z*d.Z
	return math.Atan2(cross, dot)
}
