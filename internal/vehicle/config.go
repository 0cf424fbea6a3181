package vehicle

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cxd309/drive-engine/internal/kinematics"
)

// ErrInvalidConfig is returned by NewConfig when a constant would make the
// integrator produce non-finite values.
var ErrInvalidConfig = errors.New("invalid vehicle config")

// Defaults for the reference car model.
const (
	DefaultScale        = 0.1
	DefaultTickInterval = 16 * time.Millisecond
)

// Geometry holds the unscaled lateral constants of a vehicle.
type Geometry struct {
	FullTurnDistance   float64 `json:"full_turn_distance" mapstructure:"fullTurnDistance"`    // metres travelled per full circle at full lock
	WheelCircumference float64 `json:"wheel_circumference" mapstructure:"wheelCircumference"` // metres
	MaxLeanDegrees     float64 `json:"max_lean_deg" mapstructure:"maxLeanDegrees"`
	LeanStepDegrees    float64 `json:"lean_step_deg" mapstructure:"leanStepDegrees"`
	MaxSteerDegrees    float64 `json:"max_steer_deg" mapstructure:"maxSteerDegrees"`
}

// Base is the full set of unscaled constants a Config is derived from.
type Base struct {
	Motion   kinematics.ConstantAcceleration
	Geometry Geometry
}

// DefaultBase returns the constants of the reference car.
func DefaultBase() Base {
	return Base{
		Motion: kinematics.ConstantAcceleration{
			VMaxVal:  0.19,
			ADrive:   0.08,
			AReverse: 0.17,
			Friction: -0.03,
		},
		Geometry: DefaultGeometry(),
	}
}

// DefaultGeometry returns the lateral constants of the reference car.
func DefaultGeometry() Geometry {
	return Geometry{
		FullTurnDistance:   0.4,
		WheelCircumference: 1,
		MaxLeanDegrees:     10,
		LeanStepDegrees:    0.5,
		MaxSteerDegrees:    60,
	}
}

// Config is the immutable parameter set of one integrator. Every distance,
// speed and acceleration is Scale times its base value; angles are not scaled.
type Config struct {
	Scale               float64
	TickInterval        time.Duration
	MaxSpeed            float64 // m/s
	DrivingAcceleration float64 // m/s²
	ReverseAcceleration float64 // m/s²
	Friction            float64 // m/s², negative
	FullTurnDistance    float64 // m
	WheelCircumference  float64 // m
	MaxLeanDegrees      float64
	LeanStepDegrees     float64
	MaxSteerDegrees     float64
}

// NewConfig derives a Config from scale and base, rejecting values that would
// divide by zero or otherwise yield non-finite angles.
func NewConfig(scale float64, tick time.Duration, base Base) (Config, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return Config{}, fmt.Errorf("%w: scale must be positive and finite, got %v", ErrInvalidConfig, scale)
	}
	if tick <= 0 {
		return Config{}, fmt.Errorf("%w: tick interval must be positive, got %v", ErrInvalidConfig, tick)
	}
	m := base.Motion.Scaled(scale)
	g := base.Geometry
	cfg := Config{
		Scale:               scale,
		TickInterval:        tick,
		MaxSpeed:            m.VMaxVal,
		DrivingAcceleration: m.ADrive,
		ReverseAcceleration: m.AReverse,
		Friction:            m.Friction,
		FullTurnDistance:    g.FullTurnDistance * scale,
		WheelCircumference:  g.WheelCircumference * scale,
		MaxLeanDegrees:      g.MaxLeanDegrees,
		LeanStepDegrees:     g.LeanStepDegrees,
		MaxSteerDegrees:     g.MaxSteerDegrees,
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustConfig is NewConfig for constants known to be valid; it panics otherwise.
func MustConfig(scale float64, tick time.Duration, base Base) Config {
	cfg, err := NewConfig(scale, tick, base)
	if err != nil {
		panic(err)
	}
	return cfg
}

// DefaultConfig returns the reference car at the default scale and tick.
func DefaultConfig() Config {
	return MustConfig(DefaultScale, DefaultTickInterval, DefaultBase())
}

func (c Config) validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"max_speed", c.MaxSpeed},
		{"driving_acceleration", c.DrivingAcceleration},
		{"reverse_acceleration", c.ReverseAcceleration},
		{"friction", c.Friction},
		{"full_turn_distance", c.FullTurnDistance},
		{"wheel_circumference", c.WheelCircumference},
		{"max_lean_deg", c.MaxLeanDegrees},
		{"lean_step_deg", c.LeanStepDegrees},
		{"max_steer_deg", c.MaxSteerDegrees},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidConfig, f.name)
		}
	}
	switch {
	case c.FullTurnDistance == 0:
		return fmt.Errorf("%w: full_turn_distance must be non-zero", ErrInvalidConfig)
	case c.WheelCircumference == 0:
		return fmt.Errorf("%w: wheel_circumference must be non-zero", ErrInvalidConfig)
	case c.MaxSpeed <= 0:
		return fmt.Errorf("%w: max_speed must be positive", ErrInvalidConfig)
	}
	return nil
}

// TickSeconds returns the fixed timestep in seconds.
func (c Config) TickSeconds() float64 { return c.TickInterval.Seconds() }

// Motion returns the scaled longitudinal model.
func (c Config) Motion() kinematics.ConstantAcceleration {
	return kinematics.ConstantAcceleration{
		VMaxVal:  c.MaxSpeed,
		ADrive:   c.DrivingAcceleration,
		AReverse: c.ReverseAcceleration,
		Friction: c.Friction,
	}
}
