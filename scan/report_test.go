package scan

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSessionReportSVG(t *testing.T) {
	report := &SessionReport{
		DeviceID: "phone1",
		Scores:   []float64{0.2, 0.5, 0.72, 0.81, 0.85, 0.88},
		Samples:  []float64{0.0849, 0.0853, 0.0861, 0.0852},
		Enter:    DefaultEnterThreshold,
		Leave:    DefaultLeaveThreshold,
	}

	var buf bytes.Buffer
	require.NoError(t, report.RenderToSVG(&buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<svg") || strings.Contains(out, "<svg"))
	assert.Contains(t, out, "</svg>")
	assert.Greater(t, buf.Len(), 200, "chart paths present")
}

func TestRenderEmptyReport(t *testing.T) {
	report := &SessionReport{DeviceID: "phone1", Enter: 0.75, Leave: 0.6}

	var buf bytes.Buffer
	require.NoError(t, report.RenderToSVG(&buf))
	assert.Contains(t, buf.String(), "svg")
}

func TestNewSessionReportSnapshotsSession(t *testing.T) {
	session := NewCalibrationSession("phone1", sessionConfig(), nil)
	for i := 0; i < 4; i++ {
		require.NoError(t, session.Process(cardObservation(0.30)))
	}

	report := NewSessionReport(session, DefaultHysteresisConfig())
	assert.Equal(t, "phone1", report.DeviceID)
	assert.Len(t, report.Scores, 4)
	assert.Len(t, report.Samples, 4)
	assert.Nil(t, report.Result)

	var buf bytes.Buffer
	require.NoError(t, report.RenderToSVG(&buf))
	assert.NotZero(t, buf.Len())
}
