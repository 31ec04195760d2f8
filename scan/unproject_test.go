package scan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnprojectPinholeModel(t *testing.T) {
	obs := cardObservation(0.30)

	pts, err := UnprojectCorners(obs)
	require.NoError(t, err)

	// All corners sit at the observation depth.
	for i, p := range pts {
		assert.InDelta(t, 0.30, p.Z, 1e-12, "corner %d", i)
	}

	// The reconstructed quad has exactly the card's physical size.
	width := pts[1].Sub(pts[0]).Norm()
	height := pts[3].Sub(pts[0]).Norm()
	assert.InDelta(t, 0.0856, width, 1e-9)
	assert.InDelta(t, 0.05398, height, 1e-9)

	// The centered card unprojects symmetrically about the optical axis.
	assert.InDelta(t, -pts[1].X, pts[0].X, 1e-12)
	assert.InDelta(t, -pts[3].Y, pts[0].Y, 1e-12)
}

func TestUnprojectUsesCornerDepthsWhenPresent(t *testing.T) {
	obs := cardObservation(0.30)
	obs.CornerDepths = &[4]float64{0.28, 0.30, 0.30, 0.28}

	pts, err := UnprojectCorners(obs)
	require.NoError(t, err)
	assert.InDelta(t, 0.28, pts[0].Z, 1e-12)
	assert.InDelta(t, 0.30, pts[1].Z, 1e-12)

	// A zero per-corner depth falls back to the center depth.
	obs.CornerDepths = &[4]float64{0, 0.29, 0.29, 0}
	pts, err = UnprojectCorners(obs)
	require.NoError(t, err)
	assert.InDelta(t, 0.30, pts[0].Z, 1e-12)
	assert.InDelta(t, 0.29, pts[1].Z, 1e-12)
}

func TestUnprojectAppliesPose(t *testing.T) {
	obs := cardObservation(0.30)
	obs.Pose = IdentityPose()
	obs.Pose[3] = 1.0 // translate +1m in X
	obs.Pose[11] = 2.0

	pts, err := UnprojectCorners(obs)
	require.NoError(t, err)
	assert.InDelta(t, 2.30, pts[0].Z, 1e-12)

	// Rigid transforms preserve the measured width.
	width := pts[1].Sub(pts[0]).Norm()
	assert.InDelta(t, 0.0856, width, 1e-9)
}

func TestUnprojectRejectsBadInput(t *testing.T) {
	obs := cardObservation(0.30)
	obs.Intrinsics = CameraIntrinsics{}
	_, err := UnprojectCorners(obs)
	assert.Error(t, err)

	obs = cardObservation(0.30)
	obs.CenterDepth = 0
	_, err = UnprojectCorners(obs)
	assert.True(t, errors.Is(err, ErrInsufficientSignal))
}
