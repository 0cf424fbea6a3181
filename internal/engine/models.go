package engine

import (
	"github.com/cxd309/drive-engine/internal/autopilot"
	"github.com/cxd309/drive-engine/internal/course"
	"github.com/cxd309/drive-engine/internal/vehicle"
	"github.com/cxd309/drive-engine/internal/vmath"
)

// ScenarioMeta holds the identity and duration of a scenario run.
type ScenarioMeta struct {
	ScenarioID string  `json:"scenario_id"`
	RunTime    float64 `json:"run_time"` // seconds
}

// InputEvent changes the control levels from time At onward. Nil fields keep
// their previous value.
type InputEvent struct {
	At         float64            `json:"at"` // seconds
	Direction  *vehicle.Direction `json:"direction,omitempty"`
	SteerRatio *float64           `json:"steer_ratio,omitempty"`
	Reset      *bool              `json:"reset,omitempty"`
}

// Placement describes where the vehicle's local frame starts in the world and
// where the viewer stands when a reset asks for re-placement.
type Placement struct {
	AnchorY  float64                    `json:"anchor_y"`           // metres, height of the detected plane
	Camera   *vehicle.CameraOrientation `json:"camera,omitempty"`   // nil = keep the anchor at the origin
	Distance *float64                   `json:"distance,omitempty"` // metres in front of the camera
	Rotation *vmath.Vec3                `json:"rotation,omitempty"` // one-off heading calibration, degrees
}

// CourseSpec lets a scenario be driven by the autopilot instead of the timeline.
type CourseSpec struct {
	course.Data
	Stops     []course.WaypointID `json:"stops"`
	Autopilot *autopilot.Config   `json:"autopilot,omitempty"`
}

// ScenarioInput is the JSON-serialisable input to the engine.
type ScenarioInput struct {
	Meta      ScenarioMeta    `json:"scenario_meta"`
	Vehicle   vehicle.Vehicle `json:"vehicle"`
	Placement *Placement      `json:"placement,omitempty"`
	Inputs    []InputEvent    `json:"inputs"`
	Course    *CourseSpec     `json:"course,omitempty"`
}

// PoseLogRow is the vehicle state after a single tick.
type PoseLogRow struct {
	Timestamp     float64            `json:"timestamp"` // seconds
	Tick          uint64             `json:"tick"`
	Input         vehicle.InputState `json:"input"`
	Pose          vehicle.Pose       `json:"pose"`
	WorldPosition vmath.Vec3         `json:"world_position"`
}

// Summary aggregates a whole run.
type Summary struct {
	Ticks            uint64  `json:"ticks"`
	Distance         float64 `json:"distance"`  // metres travelled in the local frame
	MaxSpeed         float64 `json:"max_speed"` // largest |velocity|
	Resets           int     `json:"resets"`
	WaypointsReached int     `json:"waypoints_reached,omitempty"`
	RouteComplete    bool    `json:"route_complete,omitempty"`
}

// PoseLog is the complete output of a scenario run.
type PoseLog struct {
	Meta    ScenarioMeta    `json:"scenario_meta"`
	Vehicle vehicle.Vehicle `json:"vehicle"`
	Summary Summary         `json:"summary"`
	Output  []PoseLogRow    `json:"output"`
}

// Sim replays one scenario against a single integrator.
type Sim struct {
	meta    ScenarioMeta
	vehicle vehicle.Vehicle
	driver  *Driver
	input   *vehicle.InputSource
	pilot   *autopilot.Autopilot
	events  []InputEvent // sorted by At
	next    int          // index of the first event not yet applied
	ticks   uint64
	dt      float64
}
