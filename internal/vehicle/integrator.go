package vehicle

import (
	"math"

	"github.com/cxd309/drive-engine/internal/kinematics"
	"github.com/cxd309/drive-engine/internal/vmath"
)

const radToDeg = 180 / math.Pi

// Integrator advances one vehicle by fixed timesteps. It is not safe for
// concurrent use: exactly one goroutine may call Tick, Reset, Place and
// SetInitialHeading, and only one tick may be in flight at a time.
type Integrator struct {
	cfg    Config
	model  kinematics.MotionModel
	dt     float64
	state  State
	anchor Anchor
}

// NewIntegrator creates an integrator in the neutral pose using the
// constant-acceleration model derived from cfg.
func NewIntegrator(cfg Config) *Integrator {
	return NewIntegratorWithModel(cfg, cfg.Motion())
}

// NewIntegratorWithModel creates an integrator with a custom longitudinal model.
func NewIntegratorWithModel(cfg Config, model kinematics.MotionModel) *Integrator {
	return &Integrator{
		cfg:   cfg,
		model: model,
		dt:    cfg.TickSeconds(),
		state: neutralState(),
	}
}

// Config returns the integrator's configuration.
func (it *Integrator) Config() Config { return it.cfg }

// State returns a copy of the current simulation state.
func (it *Integrator) State() State { return it.state }

// Anchor returns the current world placement.
func (it *Integrator) Anchor() Anchor { return it.anchor }

// Tick advances the simulation by one timestep and returns the new pose.
func (it *Integrator) Tick(in InputState) Pose {
	s := &it.state
	cfg := &it.cfg

	// Longitudinal: pick this tick's regime from the pre-update velocity, then integrate.
	s.Regime = it.model.SelectRegime(in.Direction.Command(), s.Velocity, s.Regime)
	s.Acceleration = it.model.Acceleration(s.Regime)
	s.Velocity = it.model.Step(s.Velocity, s.Regime, it.dt)

	// Lateral.
	turn := in.Direction.Turn()
	if turn != kinematics.TurnNone {
		theta := kinematics.TurnAngle(turn, s.Velocity, it.dt, cfg.FullTurnDistance, in.SteerRatio)
		s.Heading = kinematics.RotateHeading(s.Heading, theta)
		s.HeadingAngle -= theta
	}
	s.SteerDegrees = kinematics.SteerAngle(turn, in.SteerRatio, cfg.MaxSteerDegrees)
	lean := kinematics.LeanTarget(turn, s.Velocity, it.model.VMax(), cfg.MaxLeanDegrees)
	s.LeanDegrees = kinematics.StepLean(s.LeanDegrees, lean, cfg.LeanStepDegrees)

	// Translation and wheel spin only while moving.
	if s.Velocity != 0 {
		d := s.Heading.Scale(s.Velocity)
		s.Position = s.Position.Add(d)
		spin := kinematics.SpinDelta(d.Len(), cfg.WheelCircumference, s.Velocity)
		s.WheelSpinDegrees = kinematics.WrapDegrees(s.WheelSpinDegrees + spin)
	}

	return it.Pose()
}

// Pose returns the pose for the current state without advancing it.
func (it *Integrator) Pose() Pose {
	s := it.state
	heading := s.HeadingAngle * radToDeg
	return Pose{
		Position:            s.Position,
		HeadingDegrees:      heading,
		LeanDegrees:         s.LeanDegrees,
		SteerDegrees:        s.SteerDegrees,
		WheelSpinDegrees:    s.WheelSpinDegrees,
		Velocity:            s.Velocity,
		Acceleration:        s.Acceleration,
		Regime:              s.Regime,
		Anchor:              it.anchor,
		WorldHeadingDegrees: it.anchor.YawDegrees + heading,
	}
}

// Reset returns the vehicle to rest at the origin of its local frame, facing
// the default forward direction. Lean, steer and wheel spin are left to decay
// on later ticks. The anchor keeps its yaw and X/Z; its height is pinned to
// anchorY until the caller re-places it.
func (it *Integrator) Reset(anchorY float64) {
	s := &it.state
	s.Regime = kinematics.RegimeIdle
	s.Acceleration = 0
	s.Velocity = 0
	s.Position = vmath.Vec3{}
	s.Heading = vmath.Forward
	s.HeadingAngle = 0
	it.anchor.Position.Y = anchorY
}

// Place moves the anchor to a new world position, keeping its calibrated yaw.
func (it *Integrator) Place(position vmath.Vec3) {
	it.anchor.Position = position
}

// SetInitialHeading applies the one-time orientation calibration reported by
// the placement layer, in degrees. Some trackers report a pure yaw as a
// flipped rotation with non-zero X and Z; in that case the yaw is 180 − Y.
// Only the first call takes effect; it reports whether this one did.
func (it *Integrator) SetInitialHeading(measured vmath.Vec3) bool {
	if it.anchor.Calibrated {
		return false
	}
	it.anchor.YawDegrees = CalibratedYaw(measured)
	it.anchor.Calibrated = true
	return true
}

// CalibratedYaw resolves a measured X/Y/Z rotation (degrees) into a yaw.
func CalibratedYaw(measured vmath.Vec3) float64 {
	if measured.X != 0 && measured.Z != 0 {
		return 180 - measured.Y
	}
	return measured.Y
}
