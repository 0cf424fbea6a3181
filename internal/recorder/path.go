package recorder

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/cxd309/drive-engine/internal/vmath"
)

// Trajectory projects world positions onto the ground plane (x, z) and joins
// them into a line string. Consecutive repeats are dropped; fewer than two
// distinct points give an empty line string.
func Trajectory(points []vmath.Vec3) (geom.LineString, error) {
	coords := make([]float64, 0, len(points)*2)
	for i, p := range points {
		if !p.IsFinite() {
			return geom.LineString{}, fmt.Errorf("building trajectory: point %d is not finite", i)
		}
		if i > 0 && points[i-1].X == p.X && points[i-1].Z == p.Z {
			continue
		}
		coords = append(coords, p.X, p.Z)
	}
	if len(coords) < 4 {
		return geom.LineString{}, nil
	}
	seq := geom.NewSequence(coords, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("building trajectory: %w", err)
	}
	return ls, nil
}
