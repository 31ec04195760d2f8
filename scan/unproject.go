package scan

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// unprojectCameraSpace reconstructs the observation's four corner points
// as 3-D camera-space positions using the pinhole model:
// X = (u - cx) * depth / fx, Y = (v - cy) * depth / fy, Z = depth,
// with (u, v) in pixels. Depths come from the per-corner samples when
// present, otherwise the center depth is used for all four.
func unprojectCameraSpace(obs *Observation) ([4]r3.Vector, error) {
	var out [4]r3.Vector
	if !obs.Intrinsics.Valid() {
		return out, fmt.Errorf("unproject: invalid camera intrinsics: %+v", obs.Intrinsics)
	}
	if obs.CenterDepth <= 0 && obs.CornerDepths == nil {
		return out, fmt.Errorf("unproject: %w", ErrInsufficientSignal)
	}

	ci := obs.Intrinsics
	for i, c := range obs.Corners {
		depth := obs.CenterDepth
		if obs.CornerDepths != nil && obs.CornerDepths[i] > 0 {
			depth = obs.CornerDepths[i]
		}
		if depth <= 0 {
			return out, fmt.Errorf("unproject: corner %d has no depth: %w", i, ErrInsufficientSignal)
		}

		u := c.X() * float64(ci.Width)
		v := c.Y() * float64(ci.Height)
		out[i] = r3.Vector{
			X: (u - ci.Cx) * depth / ci.Fx,
			Y: (v - ci.Cy) * depth / ci.Fy,
			Z: depth,
		}
	}
	return out, nil
}

// UnprojectCorners reconstructs the four corner points and transforms them
// into the pose's stable world frame.
func UnprojectCorners(obs *Observation) ([4]r3.Vector, error) {
	pts, err := unprojectCameraSpace(obs)
	if err != nil {
		return pts, err
	}
	for i := range pts {
		pts[i] = obs.Pose.Apply(pts[i])
	}
	return pts, nil
}
