package kinematics

import (
	"math"

	"github.com/cxd309/drive-engine/internal/vmath"
)

// Turn is the lateral intent decoded from the direction bitmask.
type Turn int8

const (
	TurnLeft  Turn = -1
	TurnNone  Turn = 0
	TurnRight Turn = 1
)

// TurnAngle returns the heading change (radians) for travelling at v for dt
// seconds with the given steer ratio, where fullTurnDistance is the distance
// covered while completing one full circle at full lock. The sign follows
// turn: negative for left, positive for right.
func TurnAngle(turn Turn, v, dt, fullTurnDistance, steerRatio float64) float64 {
	return float64(turn) * (v * dt / fullTurnDistance) * steerRatio * 2 * math.Pi
}

// RotateHeading rotates a horizontal heading by theta in the X/Z plane:
//
//	x' = cos θ·x − sin θ·z
//	z' = sin θ·x + cos θ·z
//
// which is a yaw of −θ about +Y. The result is renormalized and kept flat so
// repeated turns cannot drift off unit length.
func RotateHeading(h vmath.Vec3, theta float64) vmath.Vec3 {
	sin, cos := math.Sincos(theta)
	r := vmath.Vec3{
		X: cos*h.X - sin*h.Z,
		Z: sin*h.X + cos*h.Z,
	}
	if n := r.Normalize(); n != (vmath.Vec3{}) {
		return n
	}
	return vmath.Forward
}

// HeadingFromYaw returns the heading reached by yawing the default forward
// vector by yawDegrees about +Y.
func HeadingFromYaw(yawDegrees float64) vmath.Vec3 {
	return RotateHeading(vmath.Forward, -yawDegrees*math.Pi/180)
}

// LeanTarget returns the body roll the vehicle settles at while turning at v.
func LeanTarget(turn Turn, v, vMax, maxLeanDegrees float64) float64 {
	if turn == TurnNone || vMax == 0 {
		return 0
	}
	return float64(turn) * maxLeanDegrees * math.Abs(v/vMax)
}

// StepLean moves current toward target by at most step degrees, snapping onto
// the target once it is within one step.
func StepLean(current, target, step float64) float64 {
	switch d := target - current; {
	case math.Abs(d) <= step:
		return target
	case d > 0:
		return current + step
	default:
		return current - step
	}
}

// SteerAngle returns the visual front-wheel yaw in degrees.
func SteerAngle(turn Turn, steerRatio, maxSteerDegrees float64) float64 {
	return float64(turn) * steerRatio * maxSteerDegrees
}

// SpinDelta returns the wheel rotation in degrees for covering distance at
// signed velocity v. Forward travel spins negative about the axle; reverse
// travel spins the other way.
func SpinDelta(distance, wheelCircumference, v float64) float64 {
	d := -(distance / wheelCircumference) * 360
	if v < 0 {
		d = -d
	}
	return d
}

// WrapDegrees reduces a into [0, 360).
func WrapDegrees(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}
