package scan

import (
	"fmt"
	"log"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// trimFraction is the share of samples discarded from each end before the
// mean is taken: a 20% two-sided trim rejects outliers without assuming a
// distribution.
const trimFraction = 0.2

// Finalize converts the accepted sample measurements and the reference
// object's known real-world size into a validated CalibrationResult.
//
// The scale factor comes from the trimmed mean of the sorted samples; the
// confidence comes from the dispersion of the untrimmed set, mapped
// monotonically into [0.5, 1.0]. Results outside the validation band fail
// with ErrPoorAlignment and the caller must resume collection or restart.
func Finalize(samples []CalibrationSample, ref ReferenceObject, cfg FinalizeConfig) (*CalibrationResult, error) {
	if len(samples) < 3 {
		return nil, fmt.Errorf("finalize: %d samples: %w", len(samples), ErrNotEnoughSamples)
	}

	sizes := make([]float64, len(samples))
	for i, s := range samples {
		sizes[i] = s.SizeM
	}

	measured := trimmedMean(sizes)
	if measured <= 0 {
		return nil, fmt.Errorf("finalize: non-positive measured size: %w", ErrPoorAlignment)
	}
	scaleFactor := ref.WidthM() / measured
	confidence := dispersionConfidence(sizes)

	if scaleFactor < cfg.MinScaleFactor || scaleFactor > cfg.MaxScaleFactor {
		return nil, fmt.Errorf("finalize: scale factor %.4f outside [%.2f, %.2f]: %w",
			scaleFactor, cfg.MinScaleFactor, cfg.MaxScaleFactor, ErrPoorAlignment)
	}
	if confidence < cfg.MinConfidence {
		return nil, fmt.Errorf("finalize: confidence %.2f below %.2f: %w",
			confidence, cfg.MinConfidence, ErrPoorAlignment)
	}

	log.Printf("[CAL] finalized: measured=%.2fmm known=%.2fmm factor=%.4f confidence=%.2f samples=%d",
		measured*1000, ref.WidthMM, scaleFactor, confidence, len(sizes))

	return &CalibrationResult{
		ScaleFactor:        scaleFactor,
		Confidence:         confidence,
		Timestamp:          time.Now(),
		SampleMeasurements: sizes,
	}, nil
}

// trimmedMean sorts a copy of the values and discards the top and bottom
// trimFraction before averaging. Degenerates to the plain mean when the
// trim would leave nothing.
func trimmedMean(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	k := int(float64(len(sorted)) * trimFraction)
	if len(sorted)-2*k < 1 {
		k = 0
	}
	return stat.Mean(sorted[k:len(sorted)-k], nil)
}

// dispersionConfidence maps the relative standard deviation of the
// untrimmed samples onto [0.5, 1.0]: a tight spread approaches 1.0, a
// spread of 25% or more bottoms out at 0.5.
func dispersionConfidence(values []float64) float64 {
	mean, std := stat.MeanStdDev(values, nil)
	if mean <= 0 {
		return 0.5
	}
	conf := 1.0 - 2.0*(std/mean)
	if conf < 0.5 {
		return 0.5
	}
	if conf > 1.0 {
		return 1.0
	}
	return conf
}
