package scan

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// feedbackWeights rank the five sub-scores for corrective feedback.
// priority = weight - score*priorityScale, so a low score on a
// high-weight metric wins. Index order matches MetricKind, which is also
// the tie-break precedence.
var feedbackWeights = [metricCount]float64{
	MetricDistance:  1.0,
	MetricAlignment: 0.9,
	MetricCentering: 0.8,
	MetricStability: 0.7,
	MetricSizeMatch: 0.6,
}

const priorityScale = 0.5

// QualityScorer converts one observation into five sub-scores and a
// composite score. It holds only configuration; scoring has no side
// effects beyond the returned QualityMetrics.
type QualityScorer struct {
	cfg QualityConfig
	ref ReferenceObject

	// referenceNormal is the plane normal the device should be parallel
	// to; for a flat-lying card this is straight up.
	referenceNormal [3]float64
}

// NewQualityScorer creates a scorer for the given reference object.
func NewQualityScorer(cfg QualityConfig, ref ReferenceObject) *QualityScorer {
	return &QualityScorer{
		cfg:             cfg,
		ref:             ref,
		referenceNormal: [3]float64{0, 0, 1},
	}
}

// Score computes the quality metrics for obs. prev may be nil when no
// previous frame exists; the stability jitter is then zero.
func (s *QualityScorer) Score(obs, prev *Observation) QualityMetrics {
	q := QualityMetrics{
		Distance:  s.distanceScore(obs),
		Alignment: s.alignmentScore(obs),
		Centering: s.centeringScore(obs),
		Stability: s.stabilityScore(obs, prev),
		SizeMatch: s.sizeMatchScore(obs),
	}
	q.Overall = (q.Distance + q.Alignment + q.Centering + q.Stability + q.SizeMatch) / 5.0
	return q
}

func (s *QualityScorer) distanceScore(obs *Observation) float64 {
	if obs.CenterDepth <= 0 || s.cfg.DistanceToleranceM <= 0 {
		return 0
	}
	dev := math.Abs(obs.CenterDepth - s.ref.IdealDistanceM)
	return clamp01(1.0 - dev/s.cfg.DistanceToleranceM)
}

func (s *QualityScorer) alignmentScore(obs *Observation) float64 {
	n := obs.DeviceNormal
	mag := math.Sqrt(n.X*n.X + n.Y*n.Y + n.Z*n.Z)
	if mag == 0 || s.cfg.AlignmentTolerance <= 0 {
		return 0
	}
	r := s.referenceNormal
	parallelism := math.Abs(n.X*r[0]+n.Y*r[1]+n.Z*r[2]) / mag
	return clamp01((parallelism - (1.0 - s.cfg.AlignmentTolerance)) / s.cfg.AlignmentTolerance)
}

func (s *QualityScorer) centeringScore(obs *Observation) float64 {
	if s.cfg.CenteringTolerance <= 0 {
		return 0
	}
	center := quadCentroid(obs)
	offset := planar.Distance(center, orb.Point{0.5, 0.5})
	return clamp01(1.0 - offset/s.cfg.CenteringTolerance)
}

func (s *QualityScorer) stabilityScore(obs, prev *Observation) float64 {
	if s.cfg.MaxJitter <= 0 {
		return 0
	}
	jitter := 0.0
	if prev != nil {
		jitter = planar.Distance(quadCentroid(obs), quadCentroid(prev))
	}
	return clamp01(1.0 - jitter/s.cfg.MaxJitter)
}

func (s *QualityScorer) sizeMatchScore(obs *Observation) float64 {
	expected := s.ref.AspectRatio()
	if expected <= 0 || s.cfg.AspectTolerance <= 0 {
		return 0
	}
	observed := observedAspect(obs)
	if observed <= 0 {
		return 0
	}
	return clamp01(1.0 - math.Abs(observed-expected)/s.cfg.AspectTolerance)
}

// PriorityFeedback returns the metric most in need of correction: the one
// with the highest priority, ties broken by the fixed precedence order
// distance > alignment > centering > stability > sizeMatch.
func PriorityFeedback(q QualityMetrics) MetricKind {
	best := MetricDistance
	bestPriority := math.Inf(-1)
	for k := MetricDistance; k < metricCount; k++ {
		priority := feedbackWeights[k] - q.Score(k)*priorityScale
		if priority > bestPriority {
			bestPriority = priority
			best = k
		}
	}
	return best
}

// quadCentroid returns the centroid of the observation's corner quad.
// The ring centroid degenerates to the vertex mean when the quad has no
// area (collinear corners), so fall back to Center in that case.
func quadCentroid(obs *Observation) orb.Point {
	centroid, area := planar.CentroidArea(obs.Ring())
	if area == 0 {
		return obs.Center()
	}
	return centroid
}

// observedAspect returns the width/height ratio of the corner quad in
// pixel space, averaging the two opposite side pairs.
func observedAspect(obs *Observation) float64 {
	px := func(p orb.Point) orb.Point {
		return orb.Point{
			p.X() * float64(obs.Intrinsics.Width),
			p.Y() * float64(obs.Intrinsics.Height),
		}
	}
	if !obs.Intrinsics.Valid() {
		// Without intrinsics, fall back to normalized coordinates.
		px = func(p orb.Point) orb.Point { return p }
	}

	tl, tr := px(obs.Corners[0]), px(obs.Corners[1])
	br, bl := px(obs.Corners[2]), px(obs.Corners[3])

	width := (planar.Distance(tl, tr) + planar.Distance(bl, br)) / 2.0
	height := (planar.Distance(tl, bl) + planar.Distance(tr, br)) / 2.0
	if height == 0 {
		return 0
	}
	return width / height
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
