package scan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shrinkQuad scales the corner quad around its center, simulating a
// smaller or larger apparent object at the same depth.
func shrinkQuad(obs *Observation, factor float64) {
	center := obs.Center()
	for i := range obs.Corners {
		obs.Corners[i][0] = center.X() + (obs.Corners[i].X()-center.X())*factor
		obs.Corners[i][1] = center.Y() + (obs.Corners[i].Y()-center.Y())*factor
	}
}

func TestAggregatorAcceptsHeadOnObservation(t *testing.T) {
	agg := NewSampleAggregator(DefaultAggregatorConfig(), DefaultReferenceObject())

	sample, err := agg.AddObservation(cardObservation(0.30))
	require.NoError(t, err)

	assert.InDelta(t, 0.0856, sample.SizeM, 1e-9)
	assert.InDelta(t, 0.95, sample.Confidence, 1e-6, "head-on view keeps the detector confidence")
	assert.Equal(t, 1, agg.SampleCount())
	assert.False(t, agg.HasEnoughSamples())
}

func TestAggregatorRejectsSteepViewingAngle(t *testing.T) {
	agg := NewSampleAggregator(DefaultAggregatorConfig(), DefaultReferenceObject())

	// One side of the card much closer than the other tilts the fitted
	// plane far past the acceptance limit.
	obs := cardObservation(0.30)
	obs.CornerDepths = &[4]float64{0.26, 0.34, 0.34, 0.26}

	_, err := agg.AddObservation(obs)
	assert.True(t, errors.Is(err, ErrSteepViewingAngle), "got %v", err)
	assert.Equal(t, 0, agg.SampleCount())
}

func TestAggregatorDiscountsConfidenceByAngle(t *testing.T) {
	agg := NewSampleAggregator(DefaultAggregatorConfig(), DefaultReferenceObject())

	// A slight tilt, inside the acceptance limit.
	obs := cardObservation(0.30)
	obs.CornerDepths = &[4]float64{0.298, 0.302, 0.302, 0.298}

	sample, err := agg.AddObservation(obs)
	require.NoError(t, err)
	assert.Less(t, sample.Confidence, 0.95)
	assert.Greater(t, sample.Confidence, 0.4)
}

func TestAggregatorRejectsSizeOutsideEnvelope(t *testing.T) {
	agg := NewSampleAggregator(DefaultAggregatorConfig(), DefaultReferenceObject())

	// Shrink the quad to a fraction of a millimeter.
	tiny := cardObservation(0.30)
	shrinkQuad(tiny, 0.005)
	_, err := agg.AddObservation(tiny)
	assert.True(t, errors.Is(err, ErrSizeOutOfRange), "got %v", err)

	// Blow it up past half a meter.
	huge := cardObservation(0.30)
	shrinkQuad(huge, 7.0)
	_, err = agg.AddObservation(huge)
	assert.True(t, errors.Is(err, ErrSizeOutOfRange), "got %v", err)

	assert.Equal(t, 0, agg.SampleCount())
}

func TestAggregatorStopsAtTargetCount(t *testing.T) {
	cfg := DefaultAggregatorConfig()
	cfg.TargetSamples = 2
	agg := NewSampleAggregator(cfg, DefaultReferenceObject())

	_, err := agg.AddObservation(cardObservation(0.30))
	require.NoError(t, err)
	_, err = agg.AddObservation(cardObservation(0.30))
	require.NoError(t, err)
	assert.True(t, agg.HasEnoughSamples())

	_, err = agg.AddObservation(cardObservation(0.30))
	assert.True(t, errors.Is(err, ErrSessionFinalized))
	assert.Equal(t, 2, agg.SampleCount())
}

func TestAggregatorSamplesReturnsCopy(t *testing.T) {
	agg := NewSampleAggregator(DefaultAggregatorConfig(), DefaultReferenceObject())
	_, err := agg.AddObservation(cardObservation(0.30))
	require.NoError(t, err)

	samples := agg.Samples()
	samples[0].SizeM = 99

	assert.InDelta(t, 0.0856, agg.Samples()[0].SizeM, 1e-9)

	agg.Reset()
	assert.Equal(t, 0, agg.SampleCount())
}

func TestAggregatorPropagatesSignalErrors(t *testing.T) {
	agg := NewSampleAggregator(DefaultAggregatorConfig(), DefaultReferenceObject())

	obs := cardObservation(0.30)
	obs.CenterDepth = 0
	_, err := agg.AddObservation(obs)
	assert.True(t, errors.Is(err, ErrInsufficientSignal))
}
