package recorder

import (
	"context"
	"encoding/json"
	"sync"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/cxd309/drive-engine/internal/vehicle"
	"github.com/cxd309/drive-engine/internal/vmath"
)

// Sample is one recorded frame.
type Sample struct {
	Tick          uint64       `json:"tick"`
	Elapsed       float64      `json:"elapsed"` // seconds
	Pose          vehicle.Pose `json:"pose"`
	WorldPosition vmath.Vec3   `json:"world_position"`
}

// Memory keeps every frame in memory.
type Memory struct {
	mu      sync.Mutex
	session Session
	samples []Sample
}

// NewMemory creates an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Init(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	m.samples = nil
	return nil
}

func (m *Memory) Consume(_ context.Context, f vehicle.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, Sample{
		Tick:          f.Tick,
		Elapsed:       f.Elapsed.Seconds(),
		Pose:          f.Pose,
		WorldPosition: f.Pose.WorldPosition(),
	})
	return nil
}

func (m *Memory) Close(context.Context) error { return nil }

// Session returns the session passed to Init.
func (m *Memory) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Samples returns a copy of everything recorded so far.
func (m *Memory) Samples() []Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

// Trajectory returns the recorded world path on the ground plane.
func (m *Memory) Trajectory() (geom.LineString, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pts := make([]vmath.Vec3, len(m.samples))
	for i, s := range m.samples {
		pts[i] = s.WorldPosition
	}
	return Trajectory(pts)
}

// GeoJSON exports the trajectory as a GeoJSON feature.
func (m *Memory) GeoJSON() ([]byte, error) {
	ls, err := m.Trajectory()
	if err != nil {
		return nil, err
	}
	s := m.Session()
	n := len(m.Samples())
	return json.Marshal(geom.GeoJSONFeature{
		Geometry: ls.AsGeometry(),
		ID:       s.ID,
		Properties: map[string]interface{}{
			"vehicle": s.Vehicle.Name,
			"samples": n,
			"length":  ls.Length(),
		},
	})
}
