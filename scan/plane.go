package scan

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// Plane is a least-squares plane through a point set, described by its
// centroid and unit normal.
type Plane struct {
	Centroid r3.Vector
	Normal   r3.Vector

	// MaxDeviation is the largest point-to-plane distance among the
	// fitted points, a coplanarity measure.
	MaxDeviation float64
}

// FitPlane fits a least-squares plane through the given points using SVD:
// the plane normal is the right singular vector of the centered point
// matrix with the smallest singular value. Needs at least 3 points.
func FitPlane(points []r3.Vector) (Plane, error) {
	if len(points) < 3 {
		return Plane{}, fmt.Errorf("plane fit needs at least 3 points, got %d", len(points))
	}

	var centroid r3.Vector
	for _, p := range points {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1.0 / float64(len(points)))

	centered := mat.NewDense(len(points), 3, nil)
	for i, p := range points {
		d := p.Sub(centroid)
		centered.SetRow(i, []float64{d.X, d.Y, d.Z})
	}

	var svd mat.SVD
	if ok := svd.Factorize(centered, mat.SVDThin); !ok {
		return Plane{}, fmt.Errorf("plane fit: SVD failed to factorize")
	}
	var v mat.Dense
	svd.VTo(&v)

	// Columns of V are ordered by descending singular value; the last is
	// the direction of least variance, i.e. the plane normal.
	normal := r3.Vector{X: v.At(0, 2), Y: v.At(1, 2), Z: v.At(2, 2)}
	if normal.Norm() == 0 {
		return Plane{}, fmt.Errorf("plane fit: degenerate point set")
	}
	normal = normal.Normalize()

	plane := Plane{Centroid: centroid, Normal: normal}
	for _, p := range points {
		if d := math.Abs(plane.DistanceTo(p)); d > plane.MaxDeviation {
			plane.MaxDeviation = d
		}
	}
	return plane, nil
}

// DistanceTo returns the signed point-to-plane distance.
func (p Plane) DistanceTo(pt r3.Vector) float64 {
	return pt.Sub(p.Centroid).Dot(p.Normal)
}

// ViewingAngleDeg returns the angle in degrees between the plane normal
// and the camera viewing axis (+Z in camera space). Zero means the plane
// faces the camera head-on.
func (p Plane) ViewingAngleDeg() float64 {
	cos := math.Abs(p.Normal.Dot(r3.Vector{X: 0, Y: 0, Z: 1}))
	if cos > 1 {
		cos = 1
	}
	return math.Acos(cos) * 180.0 / math.Pi
}
