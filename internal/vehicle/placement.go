package vehicle

import "github.com/cxd309/drive-engine/internal/vmath"

// DefaultPlacementDistance is how far in front of the camera a reset vehicle lands, metres.
const DefaultPlacementDistance = 1.0

// CameraOrientation is what the tracking layer reports about the viewer.
type CameraOrientation struct {
	Position vmath.Vec3 `json:"position"`
	Forward  vmath.Vec3 `json:"forward"`
}

// InFrontOf returns an anchor position distance metres ahead of the camera
// along its horizontal forward direction, at height anchorY. When the camera
// looks straight up or down the camera's own X/Z is used.
func InFrontOf(cam CameraOrientation, anchorY, distance float64) vmath.Vec3 {
	flat := cam.Forward.Flat()
	mag := flat.LenXZ()
	pos := vmath.Vec3{X: cam.Position.X, Y: anchorY, Z: cam.Position.Z}
	if mag == 0 {
		return pos
	}
	return pos.Add(flat.Scale(distance / mag))
}
