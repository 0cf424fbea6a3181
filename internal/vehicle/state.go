package vehicle

import (
	"math"
	"time"

	"github.com/cxd309/drive-engine/internal/kinematics"
	"github.com/cxd309/drive-engine/internal/vmath"
)

// State is the mutable simulation state owned by one Integrator.
// Position and Heading are in the anchor's local frame.
type State struct {
	Regime           kinematics.Regime `json:"regime"`
	Acceleration     float64           `json:"acceleration"`  // m/s², signed
	Velocity         float64           `json:"velocity"`      // m/s, signed
	Position         vmath.Vec3        `json:"position"`      // metres
	Heading          vmath.Vec3        `json:"heading"`       // unit, y = 0
	HeadingAngle     float64           `json:"heading_angle"` // radians, accumulated
	LeanDegrees      float64           `json:"lean_deg"`
	SteerDegrees     float64           `json:"steer_deg"`
	WheelSpinDegrees float64           `json:"wheel_spin_deg"` // [0, 360)
}

// neutralState is the state of a freshly created vehicle.
func neutralState() State {
	return State{Heading: vmath.Forward}
}

// Anchor is where the vehicle's local frame sits in the world. It is supplied
// by the placement layer, not by the integrator.
type Anchor struct {
	Position   vmath.Vec3 `json:"position"`
	YawDegrees float64    `json:"yaw_deg"`
	Calibrated bool       `json:"calibrated"`
}

// Pose is the per-tick output consumed by renderers and recorders.
type Pose struct {
	Position            vmath.Vec3        `json:"position"`    // local metres
	HeadingDegrees      float64           `json:"heading_deg"` // local yaw about +Y
	LeanDegrees         float64           `json:"lean_deg"`
	SteerDegrees        float64           `json:"steer_deg"` // front wheels, negative = left
	WheelSpinDegrees    float64           `json:"wheel_spin_deg"`
	Velocity            float64           `json:"velocity"`
	Acceleration        float64           `json:"acceleration"`
	Regime              kinematics.Regime `json:"regime"`
	Anchor              Anchor            `json:"anchor"`
	WorldHeadingDegrees float64           `json:"world_heading_deg"`
}

// WorldPosition returns the pose position in world coordinates.
func (p Pose) WorldPosition() vmath.Vec3 {
	h := kinematics.HeadingFromYaw(p.Anchor.YawDegrees)
	// Local -Z maps onto h, local +X onto h rotated a quarter turn right.
	right := kinematics.RotateHeading(h, math.Pi/2)
	local := p.Position
	return p.Anchor.Position.
		Add(right.Scale(local.X)).
		Add(vmath.Vec3{Y: local.Y}).
		Add(h.Scale(-local.Z))
}

// Frame is one tick's worth of output handed to pose sinks.
type Frame struct {
	Tick    uint64        `json:"tick"`
	Elapsed time.Duration `json:"elapsed"`
	Input   InputState    `json:"input"`
	Pose    Pose          `json:"pose"`
}
