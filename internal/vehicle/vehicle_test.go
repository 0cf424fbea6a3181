package vehicle

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cxd309/drive-engine/internal/kinematics"
	"github.com/cxd309/drive-engine/internal/vmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unitConfig is the reference car at scale 1.
func unitConfig(t *testing.T) Config {
	t.Helper()
	cfg, err := NewConfig(1, 16*time.Millisecond, DefaultBase())
	require.NoError(t, err)
	return cfg
}

func TestNewConfig_ScalesDistancesNotAngles(t *testing.T) {
	cfg, err := NewConfig(0.1, 16*time.Millisecond, DefaultBase())
	require.NoError(t, err)

	assert.InDelta(t, 0.019, cfg.MaxSpeed, 1e-15)
	assert.InDelta(t, 0.008, cfg.DrivingAcceleration, 1e-15)
	assert.InDelta(t, 0.017, cfg.ReverseAcceleration, 1e-15)
	assert.InDelta(t, -0.003, cfg.Friction, 1e-15)
	assert.InDelta(t, 0.04, cfg.FullTurnDistance, 1e-15)
	assert.InDelta(t, 0.1, cfg.WheelCircumference, 1e-15)
	assert.Equal(t, 10.0, cfg.MaxLeanDegrees)
	assert.Equal(t, 0.5, cfg.LeanStepDegrees)
	assert.Equal(t, 60.0, cfg.MaxSteerDegrees)
	assert.InDelta(t, 0.016, cfg.TickSeconds(), 1e-15)
}

func TestNewConfig_Rejects(t *testing.T) {
	zeroTurn := DefaultBase()
	zeroTurn.Geometry.FullTurnDistance = 0
	zeroWheel := DefaultBase()
	zeroWheel.Geometry.WheelCircumference = 0
	nanFriction := DefaultBase()
	nanFriction.Motion.Friction = math.NaN()
	noSpeed := DefaultBase()
	noSpeed.Motion.VMaxVal = 0

	tests := []struct {
		name  string
		scale float64
		tick  time.Duration
		base  Base
		want  string
	}{
		{"zero full turn distance", 1, time.Millisecond, zeroTurn, "full_turn_distance"},
		{"zero wheel circumference", 1, time.Millisecond, zeroWheel, "wheel_circumference"},
		{"nan friction", 1, time.Millisecond, nanFriction, "friction"},
		{"zero max speed", 1, time.Millisecond, noSpeed, "max_speed"},
		{"zero scale", 0, time.Millisecond, DefaultBase(), "scale"},
		{"zero tick", 1, 0, DefaultBase(), "tick"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.scale, tt.tick, tt.base)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestVehicleJSON_Defaults(t *testing.T) {
	var v Vehicle
	require.NoError(t, json.Unmarshal([]byte(`{"name":"bee"}`), &v))

	assert.Equal(t, "bee", v.Name)
	assert.Equal(t, DefaultScale, v.Scale)
	assert.Equal(t, 16.0, v.TickMS)
	assert.Equal(t, DefaultBase().Motion, v.Motion)
	assert.Equal(t, DefaultGeometry(), v.Geometry)
}

func TestVehicleJSON_ConstantModel(t *testing.T) {
	data := `{
		"name": "fast",
		"scale": 1,
		"tick_ms": 10,
		"kinematics": {"model": "constant", "v_max": 0.5, "a_drive": 0.2}
	}`
	var v Vehicle
	require.NoError(t, json.Unmarshal([]byte(data), &v))

	assert.Equal(t, 0.5, v.Motion.VMaxVal)
	assert.Equal(t, 0.2, v.Motion.ADrive)
	assert.Equal(t, 0.17, v.Motion.AReverse, "unspecified rates keep their defaults")

	cfg, err := v.Config()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, 0.5, cfg.MaxSpeed)
}

func TestVehicleJSON_PartialGeometry(t *testing.T) {
	var v Vehicle
	require.NoError(t, json.Unmarshal([]byte(`{"geometry": {"max_lean_deg": 20}}`), &v))
	want := DefaultGeometry()
	want.MaxLeanDegrees = 20
	assert.Equal(t, want, v.Geometry)
}

func TestVehicleJSON_UnknownModel(t *testing.T) {
	var v Vehicle
	err := json.Unmarshal([]byte(`{"name":"x","kinematics":{"model":"rocket"}}`), &v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kinematics model "rocket"`)
}

func TestVehicleJSON_RoundTrip(t *testing.T) {
	v := DefaultVehicle()
	v.Geometry.MaxLeanDegrees = 12
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"model":"constant"`)

	var back Vehicle
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, v, back)
}

func TestVehicleConfig_InvalidGeometry(t *testing.T) {
	v := DefaultVehicle()
	v.Geometry.WheelCircumference = 0
	_, err := v.Config()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), `vehicle "reference"`)
}

func TestDirectionDecoding(t *testing.T) {
	assert.Equal(t, kinematics.CommandForward, (DirForward | DirReverse).Command(), "forward wins")
	assert.Equal(t, kinematics.CommandReverse, DirReverse.Command())
	assert.Equal(t, kinematics.CommandCoast, (DirLeft | DirRight).Command())
	assert.Equal(t, kinematics.TurnLeft, (DirLeft | DirRight).Turn(), "left wins")
	assert.Equal(t, kinematics.TurnRight, (DirRight | DirForward).Turn())
	assert.Equal(t, kinematics.TurnNone, DirForward.Turn())
}

func TestDirectionJSON(t *testing.T) {
	out, err := json.Marshal(DirForward | DirLeft)
	require.NoError(t, err)
	assert.JSONEq(t, `["left","forward"]`, string(out))

	out, err = json.Marshal(Direction(0))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(out))

	var d Direction
	require.NoError(t, json.Unmarshal([]byte(`["reverse","right"]`), &d))
	assert.Equal(t, DirReverse|DirRight, d)

	require.NoError(t, json.Unmarshal([]byte(`6`), &d))
	assert.Equal(t, DirForward|DirRight, d)

	assert.ErrorContains(t, json.Unmarshal([]byte(`["jump"]`), &d), `unknown button "jump"`)
	assert.Error(t, json.Unmarshal([]byte(`16`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"forward"`), &d))
}

func TestInputSource_Snapshot(t *testing.T) {
	src := NewInputSource()
	assert.Equal(t, InputState{SteerRatio: 1}, src.Snapshot())

	src.SetDirection(DirForward | DirLeft)
	src.SetSteerRatio(0.25)
	src.SetResetRequested(true)
	assert.Equal(t, InputState{Direction: DirForward | DirLeft, SteerRatio: 0.25, ResetRequested: true}, src.Snapshot())

	src.Set(InputState{Direction: DirReverse})
	assert.Equal(t, InputState{Direction: DirReverse}, src.Snapshot())
}

func TestResetLatch(t *testing.T) {
	var l ResetLatch
	assert.False(t, l.Observe(false))
	assert.True(t, l.Observe(true))
	assert.False(t, l.Observe(true), "held level does not re-trigger")
	assert.False(t, l.Observe(false))
	assert.True(t, l.Observe(true))
}

func TestInFrontOf(t *testing.T) {
	cam := CameraOrientation{Position: vmath.V3(1, 1.6, 2), Forward: vmath.V3(0, -0.6, -0.8)}
	got := InFrontOf(cam, -0.4, 1)
	assert.True(t, got.ApproxEqual(vmath.V3(1, -0.4, 1), 1e-12), "got %v", got)

	straightDown := CameraOrientation{Position: vmath.V3(3, 2, 4), Forward: vmath.V3(0, -1, 0)}
	assert.Equal(t, vmath.V3(3, 0, 4), InFrontOf(straightDown, 0, 1))
}
