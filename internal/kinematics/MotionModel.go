// Package kinematics defines the MotionModel interface for the longitudinal
// (accelerate / brake / coast) physics of a vehicle, along with the lateral
// helpers that turn speed into heading change, body lean and wheel spin.
//
// Adding a new longitudinal model requires only implementing MotionModel and
// registering it in the JSON discriminator in the vehicle package; the
// integrator itself never needs to change.
package kinematics

import "fmt"

// Command is the longitudinal intent decoded from the direction bitmask.
type Command uint8

const (
	CommandCoast Command = iota
	CommandForward
	CommandReverse
)

func (c Command) String() string {
	switch c {
	case CommandForward:
		return "forward"
	case CommandReverse:
		return "reverse"
	default:
		return "coast"
	}
}

// Regime tags which acceleration is currently applied. The integrator keeps
// the last regime between ticks; coasting decides its friction direction from
// it instead of comparing stored float constants.
type Regime uint8

const (
	// RegimeIdle is the neutral state after construction or reset: zero acceleration.
	RegimeIdle Regime = iota
	// RegimeDriveForward accelerates forward from rest or forward motion.
	RegimeDriveForward
	// RegimeDriveReverse accelerates backward from rest or backward motion.
	RegimeDriveReverse
	// RegimeBrakeFromReverse pushes forward while still rolling backward.
	RegimeBrakeFromReverse
	// RegimeBrakeFromForward pushes backward while still rolling forward.
	RegimeBrakeFromForward
	// RegimeCoastForward applies friction against a forward roll; velocity never drops below 0.
	RegimeCoastForward
	// RegimeCoastReverse applies friction against a backward roll; velocity never rises above 0.
	RegimeCoastReverse
)

var regimeNames = [...]string{
	RegimeIdle:             "idle",
	RegimeDriveForward:     "drive_forward",
	RegimeDriveReverse:     "drive_reverse",
	RegimeBrakeFromReverse: "brake_from_reverse",
	RegimeBrakeFromForward: "brake_from_forward",
	RegimeCoastForward:     "coast_forward",
	RegimeCoastReverse:     "coast_reverse",
}

func (r Regime) String() string {
	if int(r) < len(regimeNames) {
		return regimeNames[r]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler so pose logs carry the name.
func (r Regime) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler, accepting the names
// MarshalText writes.
func (r *Regime) UnmarshalText(text []byte) error {
	for i, name := range regimeNames {
		if name == string(text) {
			*r = Regime(i)
			return nil
		}
	}
	return fmt.Errorf("unknown regime %q", text)
}

// IsCoast reports whether r is one of the friction-only regimes.
func (r Regime) IsCoast() bool { return r == RegimeCoastForward || r == RegimeCoastReverse }

// MotionModel is the longitudinal physics contract every implementation must
// satisfy. Velocities are in m/s, accelerations in m/s², time in seconds.
type MotionModel interface {
	// VMax returns the maximum speed magnitude (m/s).
	VMax() float64

	// SelectRegime picks the regime for the coming tick from the decoded
	// command, the velocity before the tick, and the previous regime.
	SelectRegime(cmd Command, v float64, prev Regime) Regime

	// Acceleration returns the signed acceleration applied under r.
	Acceleration(r Regime) float64

	// Step integrates v over dt under r and applies the regime's clamp.
	Step(v float64, r Regime, dt float64) float64
}
