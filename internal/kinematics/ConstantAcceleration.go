package kinematics

import "math"

// ConstantModelName is the JSON discriminator string for the Constant model.
const ConstantModelName = "constant"

// ConstantAcceleration implements MotionModel using fixed driving, reverse and
// friction rates. This is the default and simplest longitudinal model.
//
// JSON discriminator: "model": "constant"
type ConstantAcceleration struct {
	VMaxVal  float64 `json:"v_max"`      // maximum speed magnitude, m/s
	ADrive   float64 `json:"a_drive"`    // acceleration from rest or in the direction of travel, m/s²
	AReverse float64 `json:"a_reverse"`  // acceleration against the direction of travel, m/s²
	Friction float64 `json:"a_friction"` // coasting deceleration, m/s² (negative)
}

func (c ConstantAcceleration) VMax() float64 { return c.VMaxVal }

// Scaled returns a copy with every rate multiplied by s.
func (c ConstantAcceleration) Scaled(s float64) ConstantAcceleration {
	return ConstantAcceleration{
		VMaxVal:  c.VMaxVal * s,
		ADrive:   c.ADrive * s,
		AReverse: c.AReverse * s,
		Friction: c.Friction * s,
	}
}

func (c ConstantAcceleration) SelectRegime(cmd Command, v float64, prev Regime) Regime {
	switch cmd {
	case CommandForward:
		if v < 0 {
			return RegimeBrakeFromReverse
		}
		return RegimeDriveForward
	case CommandReverse:
		if v > 0 {
			return RegimeBrakeFromForward
		}
		return RegimeDriveReverse
	}
	// Keep decelerating a forward roll once we are in it; anything else
	// (idle, reversing, braking) coasts with the mirrored friction.
	if prev == RegimeDriveForward || prev == RegimeCoastForward {
		return RegimeCoastForward
	}
	return RegimeCoastReverse
}

func (c ConstantAcceleration) Acceleration(r Regime) float64 {
	switch r {
	case RegimeDriveForward:
		return c.ADrive
	case RegimeDriveReverse:
		return -c.ADrive
	case RegimeBrakeFromReverse:
		return c.AReverse
	case RegimeBrakeFromForward:
		return -c.AReverse
	case RegimeCoastForward:
		return c.Friction
	case RegimeCoastReverse:
		return -c.Friction
	default:
		return 0
	}
}

func (c ConstantAcceleration) Step(v float64, r Regime, dt float64) float64 {
	next := v + c.Acceleration(r)*dt
	switch r {
	case RegimeCoastForward:
		return math.Max(next, 0)
	case RegimeCoastReverse:
		return math.Min(next, 0)
	default:
		return math.Max(math.Min(next, c.VMaxVal), -c.VMaxVal)
	}
}
