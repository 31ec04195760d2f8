package scan

import (
	"fmt"
	"log"
)

// SampleAggregator reconstructs a 3-D size estimate per accepted frame and
// collects independent calibration samples. It owns the sample list
// exclusively; samples are discarded on Reset.
//
// The aggregator is not safe for concurrent use; the session serializes
// access (observation processing is single-writer).
type SampleAggregator struct {
	cfg     AggregatorConfig
	ref     ReferenceObject
	samples []CalibrationSample
}

// NewSampleAggregator creates an aggregator for the given reference object.
func NewSampleAggregator(cfg AggregatorConfig, ref ReferenceObject) *SampleAggregator {
	if cfg.TargetSamples < 1 {
		cfg.TargetSamples = DefaultTargetSamples
	}
	return &SampleAggregator{cfg: cfg, ref: ref}
}

// AddObservation attempts to build a CalibrationSample from a
// post-hysteresis "good" observation:
//
//  1. Unproject the four corners into camera space via the pinhole model.
//  2. Fit a least-squares plane and reject steep viewing angles, which
//     bias size estimates.
//  3. Transform the corners into the pose's stable frame and measure the
//     real-world width as the average of the two opposite side pairs.
//  4. Reject sizes outside the sanity envelope.
//
// On acceptance the sample is appended and returned.
func (a *SampleAggregator) AddObservation(obs *Observation) (CalibrationSample, error) {
	if a.Full() {
		return CalibrationSample{}, fmt.Errorf("aggregator: %w", ErrSessionFinalized)
	}

	cameraPts, err := unprojectCameraSpace(obs)
	if err != nil {
		return CalibrationSample{}, err
	}

	plane, err := FitPlane(cameraPts[:])
	if err != nil {
		return CalibrationSample{}, fmt.Errorf("aggregator: %w", err)
	}
	angle := plane.ViewingAngleDeg()
	if angle > a.cfg.MaxPlaneAngleDeg {
		return CalibrationSample{}, fmt.Errorf("aggregator: angle %.1f° exceeds %.1f°: %w",
			angle, a.cfg.MaxPlaneAngleDeg, ErrSteepViewingAngle)
	}

	pts := cameraPts
	for i := range pts {
		pts[i] = obs.Pose.Apply(pts[i])
	}

	// Width as the average of the two opposite side pairs:
	// TL-TR and BL-BR.
	width := (pts[1].Sub(pts[0]).Norm() + pts[2].Sub(pts[3]).Norm()) / 2.0
	if width < a.cfg.MinSizeM || width > a.cfg.MaxSizeM {
		return CalibrationSample{}, fmt.Errorf("aggregator: width %.4fm outside [%.4f, %.4f]: %w",
			width, a.cfg.MinSizeM, a.cfg.MaxSizeM, ErrSizeOutOfRange)
	}

	sample := CalibrationSample{
		SizeM:      width,
		Confidence: sampleConfidence(obs.Confidence, angle, a.cfg.MaxPlaneAngleDeg),
		Timestamp:  obs.Timestamp,
	}
	a.samples = append(a.samples, sample)
	log.Printf("[CAL] %s: sample %d/%d accepted: size=%.2fmm angle=%.1f° conf=%.2f",
		obs.DeviceID, len(a.samples), a.cfg.TargetSamples, width*1000, angle, sample.Confidence)
	return sample, nil
}

// sampleConfidence derives a per-sample confidence from the detector
// confidence, discounted by how steep the viewing angle was.
func sampleConfidence(detector, angleDeg, maxAngleDeg float64) float64 {
	if maxAngleDeg <= 0 {
		return clamp01(detector)
	}
	return clamp01(detector * (1.0 - 0.5*angleDeg/maxAngleDeg))
}

// SampleCount returns the number of accepted samples.
func (a *SampleAggregator) SampleCount() int { return len(a.samples) }

// HasEnoughSamples reports whether the target sample count is reached.
func (a *SampleAggregator) HasEnoughSamples() bool {
	return len(a.samples) >= a.cfg.TargetSamples
}

// Full is an alias of HasEnoughSamples; collection stops once the target
// count is reached.
func (a *SampleAggregator) Full() bool { return a.HasEnoughSamples() }

// Samples returns a copy of the accepted samples.
func (a *SampleAggregator) Samples() []CalibrationSample {
	out := make([]CalibrationSample, len(a.samples))
	copy(out, a.samples)
	return out
}

// Reset discards all accumulated samples. Required at session start.
func (a *SampleAggregator) Reset() {
	a.samples = a.samples[:0]
}
