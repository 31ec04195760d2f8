package scan

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// degenerateAreaEps is the cross-product magnitude below which a triangle
// is treated as degenerate and skipped.
const degenerateAreaEps = 1e-12

// Unit conversion from meters, assuming scene units are meters once the
// calibration factor is applied.
const (
	mToCm   = 100.0
	m3ToCm3 = 1e6
	m2ToCm2 = 1e4
)

// MeasureMesh computes calibrated physical measurements of a mesh.
//
// Dimensions are the per-axis min/max extents scaled linearly; volume uses
// the signed tetrahedron (divergence theorem) sum, exact for a closed,
// consistently wound mesh, scaled by the cube of the factor; surface area
// sums triangle cross products, scaled by the square of the factor.
// Degenerate triangles are skipped; an empty mesh is a hard failure.
func MeasureMesh(m *Mesh, scaleFactor float64) (*Measurements, error) {
	if m == nil || len(m.Triangles) == 0 {
		return nil, fmt.Errorf("measure: %w", ErrInvalidMesh)
	}
	if scaleFactor <= 0 {
		return nil, fmt.Errorf("measure: non-positive scale factor %.4f", scaleFactor)
	}

	min := r3.Vector{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}
	max := r3.Vector{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64}
	for _, v := range m.Vertices {
		min.X = math.Min(min.X, v.X)
		min.Y = math.Min(min.Y, v.Y)
		min.Z = math.Min(min.Z, v.Z)
		max.X = math.Max(max.X, v.X)
		max.Y = math.Max(max.Y, v.Y)
		max.Z = math.Max(max.Z, v.Z)
	}

	var signedVolume, area float64
	for _, t := range m.Triangles {
		v0 := m.Vertices[t[0]]
		v1 := m.Vertices[t[1]]
		v2 := m.Vertices[t[2]]

		cross := v1.Sub(v0).Cross(v2.Sub(v0))
		if cross.Norm() < degenerateAreaEps {
			continue
		}
		area += cross.Norm() / 2.0
		signedVolume += v0.Dot(v1.Cross(v2)) / 6.0
	}

	size := max.Sub(min)
	return &Measurements{
		DimensionsCm:   size.Mul(scaleFactor * mToCm),
		VolumeCm3:      math.Abs(signedVolume) * scaleFactor * scaleFactor * scaleFactor * m3ToCm3,
		SurfaceAreaCm2: area * scaleFactor * scaleFactor * m2ToCm2,
	}, nil
}
