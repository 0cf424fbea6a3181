package recorder

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/drive-engine/internal/vmath"
)

func TestTrajectory(t *testing.T) {
	ls, err := Trajectory([]vmath.Vec3{
		vmath.V3(0, 0, 0),
		vmath.V3(0, 5, 0), // same ground point
		vmath.V3(3, 0, 0),
		vmath.V3(3, 0, 4),
	})
	require.NoError(t, err)
	assert.Equal(t, "LINESTRING(0 0,3 0,3 4)", ls.AsText())
	assert.InDelta(t, 7.0, ls.Length(), 1e-12)

	for _, pts := range [][]vmath.Vec3{nil, {vmath.V3(1, 0, 1), vmath.V3(1, 0, 1)}} {
		ls, err := Trajectory(pts)
		require.NoError(t, err)
		assert.True(t, ls.IsEmpty())
	}
}

func TestTrajectory_RejectsNonFinite(t *testing.T) {
	_, err := Trajectory([]vmath.Vec3{vmath.V3(0, 0, 0), vmath.V3(math.NaN(), 0, 1)})
	assert.ErrorContains(t, err, "building trajectory")
}

func TestMemory_RecordsSamples(t *testing.T) {
	m := NewMemory()
	frames := driveFrames(t, 20)
	record(t, m, frames)

	assert.Equal(t, "test-session", m.Session().ID)
	samples := m.Samples()
	require.Len(t, samples, 20)
	assert.Equal(t, uint64(20), samples[19].Tick)
	assert.InDelta(t, 0.32, samples[19].Elapsed, 1e-12)
	assert.Equal(t, frames[19].Pose, samples[19].Pose)
	assert.Equal(t, frames[19].Pose.WorldPosition(), samples[19].WorldPosition)

	// Straight run along -Z.
	ls, err := m.Trajectory()
	require.NoError(t, err)
	assert.InDelta(t, frames[0].Pose.Position.Z-frames[19].Pose.Position.Z, ls.Length(), 1e-12)
}

func TestMemory_GeoJSON(t *testing.T) {
	m := NewMemory()
	record(t, m, driveFrames(t, 5))

	out, err := m.GeoJSON()
	require.NoError(t, err)

	var feature struct {
		Type     string `json:"type"`
		ID       string `json:"id"`
		Geometry struct {
			Type        string      `json:"type"`
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]interface{} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(out, &feature))
	assert.Equal(t, "Feature", feature.Type)
	assert.Equal(t, "test-session", feature.ID)
	assert.Equal(t, "LineString", feature.Geometry.Type)
	assert.Len(t, feature.Geometry.Coordinates, 5)
	assert.Equal(t, "reference", feature.Properties["vehicle"])
	assert.Equal(t, float64(5), feature.Properties["samples"])
}
