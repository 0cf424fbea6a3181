// Package engine runs the vehicle integrator over time.
//
// Two loops share the same per-tick pipeline (Driver.Step):
//
//  1. Scenario runs (Sim) replay a timeline of control changes, or an
//     autopilot route, as fast as possible and return a pose log.
//
//  2. Real-time runs (Driver.Run) tick on a Scheduler, read controls from a
//     shared InputSource and hand every frame to the configured PoseSinks.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cxd309/drive-engine/internal/autopilot"
	"github.com/cxd309/drive-engine/internal/course"
	"github.com/cxd309/drive-engine/internal/vehicle"
	"github.com/cxd309/drive-engine/internal/vmath"
)

// NewSim constructs a Sim from a ScenarioInput, validating the vehicle,
// placing the anchor and building the autopilot route if a course is given.
func NewSim(input ScenarioInput, log zerolog.Logger) (*Sim, error) {
	if input.Meta.RunTime <= 0 || math.IsNaN(input.Meta.RunTime) || math.IsInf(input.Meta.RunTime, 0) {
		return nil, fmt.Errorf("run_time must be a positive number of seconds, got %v", input.Meta.RunTime)
	}
	cfg, err := input.Vehicle.Config()
	if err != nil {
		return nil, err
	}

	events := make([]InputEvent, len(input.Inputs))
	copy(events, input.Inputs)
	for i, ev := range events {
		if ev.At < 0 || math.IsNaN(ev.At) || math.IsInf(ev.At, 0) {
			return nil, fmt.Errorf("input %d: invalid time %v", i, ev.At)
		}
		if ev.SteerRatio != nil && (*ev.SteerRatio < 0 || *ev.SteerRatio > 1) {
			return nil, fmt.Errorf("input %d: steer_ratio %v outside [0, 1]", i, *ev.SteerRatio)
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].At < events[j].At })

	it := vehicle.NewIntegrator(cfg)
	opts := []Option{WithLogger(log)}

	if p := input.Placement; p != nil {
		it.Place(vmath.Vec3{Y: p.AnchorY})
		if p.Camera != nil {
			dist := vehicle.DefaultPlacementDistance
			if p.Distance != nil {
				dist = *p.Distance
			}
			cam := StaticCamera(*p.Camera)
			it.Place(vehicle.InFrontOf(*p.Camera, p.AnchorY, dist))
			opts = append(opts, WithCamera(cam), WithPlacementDistance(dist))
		}
		if p.Rotation != nil {
			it.SetInitialHeading(*p.Rotation)
		}
	}

	var pilot *autopilot.Autopilot
	if cs := input.Course; cs != nil {
		pilot, err = NewPilot(*cs)
		if err != nil {
			return nil, fmt.Errorf("course: %w", err)
		}
		opts = append(opts, WithPilot(pilot))
	}

	src := vehicle.NewInputSource()
	driver, err := NewDriver(it, src, opts...)
	if err != nil {
		return nil, err
	}

	dt := cfg.TickSeconds()
	return &Sim{
		meta:    input.Meta,
		vehicle: input.Vehicle,
		driver:  driver,
		input:   src,
		pilot:   pilot,
		events:  events,
		ticks:   uint64(math.Floor(input.Meta.RunTime/dt + 1e-9)),
		dt:      dt,
	}, nil
}

// NewPilot builds the course in cs and an autopilot touring its stops.
func NewPilot(cs CourseSpec) (*autopilot.Autopilot, error) {
	c, err := course.New(cs.Data)
	if err != nil {
		return nil, err
	}
	route, err := c.Tour(cs.Stops)
	if err != nil {
		return nil, err
	}
	cfg := autopilot.DefaultConfig()
	if cs.Autopilot != nil {
		cfg = *cs.Autopilot
	}
	return autopilot.New(c, route, cfg)
}

// Run executes the full scenario and returns the log.
func (s *Sim) Run(ctx context.Context) (PoseLog, error) {
	out := PoseLog{Meta: s.meta, Vehicle: s.vehicle, Output: make([]PoseLogRow, 0, s.ticks)}
	prev := s.driver.Pose().Position
	for i := uint64(0); i < s.ticks; i++ {
		resets := s.driver.Resets()
		row, err := s.step(ctx, i)
		if err != nil {
			return PoseLog{}, fmt.Errorf("at t=%.3f: %w", float64(i)*s.dt, err)
		}
		if s.driver.Resets() != resets {
			// The tick started from the local origin, not from prev.
			prev = vmath.Vec3{}
		}
		out.Summary.Distance += row.Pose.Position.Sub(prev).Len()
		out.Summary.MaxSpeed = math.Max(out.Summary.MaxSpeed, math.Abs(row.Pose.Velocity))
		prev = row.Pose.Position
		out.Output = append(out.Output, row)
	}
	out.Summary.Ticks = s.ticks
	out.Summary.Resets = s.driver.Resets()
	if s.pilot != nil {
		out.Summary.WaypointsReached = s.pilot.Reached()
		out.Summary.RouteComplete = s.pilot.Done()
	}
	return out, nil
}

// step applies every event due at the start of tick i, then advances one tick.
func (s *Sim) step(ctx context.Context, i uint64) (PoseLogRow, error) {
	now := float64(i) * s.dt
	for s.next < len(s.events) && s.events[s.next].At <= now+1e-9 {
		s.apply(s.events[s.next])
		s.next++
	}
	frame, err := s.driver.Step(ctx)
	if err != nil {
		return PoseLogRow{}, err
	}
	return PoseLogRow{
		Timestamp:     frame.Elapsed.Seconds(),
		Tick:          frame.Tick,
		Input:         frame.Input,
		Pose:          frame.Pose,
		WorldPosition: frame.Pose.WorldPosition(),
	}, nil
}

func (s *Sim) apply(ev InputEvent) {
	if ev.Direction != nil {
		s.input.SetDirection(*ev.Direction)
	}
	if ev.SteerRatio != nil {
		s.input.SetSteerRatio(*ev.SteerRatio)
	}
	if ev.Reset != nil {
		s.input.SetResetRequested(*ev.Reset)
	}
}

// RunJSON is the entry point for the CLI and WASM targets. It accepts a
// JSON-encoded ScenarioInput, runs the scenario, and returns a JSON-encoded
// PoseLog.
func RunJSON(jsonInput string) (string, error) {
	return RunJSONWithLogger(jsonInput, zerolog.Nop())
}

// RunJSONWithLogger is RunJSON with the simulation logging to log.
func RunJSONWithLogger(jsonInput string, log zerolog.Logger) (string, error) {
	input := ScenarioInput{Vehicle: vehicle.DefaultVehicle()}
	if err := json.Unmarshal([]byte(jsonInput), &input); err != nil {
		return "", fmt.Errorf("invalid input JSON: %w", err)
	}

	sim, err := NewSim(input, log)
	if err != nil {
		return "", err
	}

	poseLog, err := sim.Run(context.Background())
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(poseLog)
	if err != nil {
		return "", fmt.Errorf("marshaling output: %w", err)
	}
	return string(out), nil
}
