package scan

import (
	"time"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
)

// Observation is a single detector frame: the reference object's four corner
// points in normalized image space plus the depth and orientation context
// needed to reconstruct its real-world size. Produced once per accepted
// sensor frame and consumed immediately.
type Observation struct {
	DeviceID string `json:"deviceId"`

	// Corners are normalized [0,1] image coordinates in TL, TR, BR, BL order.
	Corners [4]orb.Point `json:"corners"`

	// Confidence is the detector's own confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// CenterDepth is the depth sample at the object's center, in meters.
	// Zero means no depth was available this frame.
	CenterDepth float64 `json:"centerDepth"`

	// CornerDepths optionally carries a per-corner depth sample. When nil,
	// CenterDepth is used for all four corners.
	CornerDepths *[4]float64 `json:"cornerDepths,omitempty"`

	// DeviceNormal is the device orientation normal (e.g. from gravity).
	DeviceNormal r3.Vector `json:"deviceNormal"`

	Timestamp time.Time `json:"timestamp"`

	Intrinsics CameraIntrinsics `json:"intrinsics"`
	Pose       CameraPose       `json:"pose"`
}

// Center returns the 2-D centroid of the corner quad in normalized
// image coordinates.
func (o *Observation) Center() orb.Point {
	var cx, cy float64
	for _, c := range o.Corners {
		cx += c.X()
		cy += c.Y()
	}
	return orb.Point{cx / 4, cy / 4}
}

// Ring returns the corner quad as a closed orb.Ring, for use with the
// orb/planar helpers.
func (o *Observation) Ring() orb.Ring {
	return orb.Ring{
		orb.Point(o.Corners[0]),
		orb.Point(o.Corners[1]),
		orb.Point(o.Corners[2]),
		orb.Point(o.Corners[3]),
		orb.Point(o.Corners[0]),
	}
}

// CameraIntrinsics holds the pinhole camera model parameters, in pixels.
type CameraIntrinsics struct {
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Cx     float64 `json:"cx"`
	Cy     float64 `json:"cy"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// Valid reports whether the intrinsics describe a usable pinhole model.
func (ci CameraIntrinsics) Valid() bool {
	return ci.Fx > 0 && ci.Fy > 0 && ci.Width > 0 && ci.Height > 0
}

// CameraPose is a row-major 4x4 camera-to-world rigid transform.
// The zero value is treated as identity.
type CameraPose [16]float64

// IdentityPose returns the identity camera pose.
func IdentityPose() CameraPose {
	return CameraPose{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// IsZero reports whether the pose is entirely unset.
func (p CameraPose) IsZero() bool {
	for _, v := range p {
		if v != 0 {
			return false
		}
	}
	return true
}

// Apply transforms a camera-space point into the pose's world frame.
func (p CameraPose) Apply(v r3.Vector) r3.Vector {
	if p.IsZero() {
		return v
	}
	return r3.Vector{
		X: p[0]*v.X + p[1]*v.Y + p[2]*v.Z + p[3],
		Y: p[4]*v.X + p[5]*v.Y + p[6]*v.Z + p[7],
		Z: p[8]*v.X + p[9]*v.Y + p[10]*v.Z + p[11],
	}
}

// RotateOnly applies just the rotation component of the pose, for
// transforming direction vectors such as plane normals.
func (p CameraPose) RotateOnly(v r3.Vector) r3.Vector {
	if p.IsZero() {
		return v
	}
	return r3.Vector{
		X: p[0]*v.X + p[1]*v.Y + p[2]*v.Z,
		Y: p[4]*v.X + p[5]*v.Y + p[6]*v.Z,
		Z: p[8]*v.X + p[9]*v.Y + p[10]*v.Z,
	}
}

// MetricKind identifies one of the five quality sub-scores. The numeric
// order is also the tie-break precedence when selecting corrective feedback.
type MetricKind int

const (
	MetricDistance MetricKind = iota
	MetricAlignment
	MetricCentering
	MetricStability
	MetricSizeMatch
	metricCount
)

// String implements fmt.Stringer.
func (k MetricKind) String() string {
	switch k {
	case MetricDistance:
		return "distance"
	case MetricAlignment:
		return "alignment"
	case MetricCentering:
		return "centering"
	case MetricStability:
		return "stability"
	case MetricSizeMatch:
		return "sizeMatch"
	}
	return "unknown"
}

// QualityMetrics holds the five sub-scores for one observation, each in
// [0,1], plus their composite mean.
type QualityMetrics struct {
	Distance  float64 `json:"distance"`
	Alignment float64 `json:"alignment"`
	Centering float64 `json:"centering"`
	Stability float64 `json:"stability"`
	SizeMatch float64 `json:"sizeMatch"`
	Overall   float64 `json:"overall"`
}

// Score returns the sub-score for the given metric kind.
func (q QualityMetrics) Score(k MetricKind) float64 {
	switch k {
	case MetricDistance:
		return q.Distance
	case MetricAlignment:
		return q.Alignment
	case MetricCentering:
		return q.Centering
	case MetricStability:
		return q.Stability
	case MetricSizeMatch:
		return q.SizeMatch
	}
	return 0
}

// CalibrationSample is one accepted real-world size estimate. Immutable once
// created; owned exclusively by the SampleAggregator.
type CalibrationSample struct {
	// SizeM is the measured real-world width of the reference object, meters.
	SizeM float64 `json:"sizeM"`

	// Confidence is the per-sample confidence in [0,1].
	Confidence float64 `json:"confidence"`

	Timestamp time.Time `json:"timestamp"`
}

// CalibrationResult is the immutable outcome of a successful finalization.
type CalibrationResult struct {
	// ScaleFactor converts scene units into real-world physical units.
	ScaleFactor float64 `json:"scaleFactor"`

	// Confidence in [0.5, 1.0], derived from sample dispersion.
	Confidence float64 `json:"confidence"`

	Timestamp time.Time `json:"timestamp"`

	// SampleMeasurements are the raw (untrimmed) size samples, in meters.
	SampleMeasurements []float64 `json:"sampleMeasurements"`
}

// Mesh is an immutable triangle mesh snapshot: vertex positions in scene
// units plus a triangle index list.
type Mesh struct {
	Vertices  []r3.Vector
	Triangles [][3]int
}

// MeshTopologyResult describes the topological health of a mesh.
// Computed fresh per mesh, never mutated.
type MeshTopologyResult struct {
	IsWatertight         bool    `json:"isWatertight"`
	BoundaryEdgeCount    int     `json:"boundaryEdgeCount"`
	NonManifoldEdgeCount int     `json:"nonManifoldEdgeCount"`
	EstimatedHoleCount   int     `json:"estimatedHoleCount"`
	EulerCharacteristic  int     `json:"eulerCharacteristic"`
	QualityScore         float64 `json:"qualityScore"`
}

// Measurements are the calibrated physical measurements of a mesh.
type Measurements struct {
	// DimensionsCm is the axis-aligned bounding box size in centimeters.
	DimensionsCm r3.Vector `json:"dimensionsCm"`

	VolumeCm3      float64 `json:"volumeCm3"`
	SurfaceAreaCm2 float64 `json:"surfaceAreaCm2"`
}
