package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caliperd/caliper/scan"
)

// testConfig returns a config that decides hysteresis on the first frame,
// backed by a per-test calibration cache.
func testConfig(t *testing.T) *scan.Config {
	t.Helper()
	cfg := &scan.Config{
		Devices: []scan.DeviceConfig{
			{ID: "phone1", Topic: "caliper/phone1/observations"},
		},
		Hysteresis: scan.HysteresisConfig{
			WindowSize: 1,
			MinSamples: 1,
			Enter:      0.75,
			Leave:      0.60,
		},
		CalibrationCache: filepath.Join(t.TempDir(), "cache.json"),
	}
	cfg.Normalize()
	return cfg
}

// goodObservation builds a well-posed frame of the default ID-1 card,
// centered and parallel at the given depth.
func goodObservation(depth float64) *scan.Observation {
	ci := scan.CameraIntrinsics{Fx: 1000, Fy: 1000, Cx: 960, Cy: 720, Width: 1920, Height: 1440}
	ref := scan.DefaultReferenceObject()

	halfW := ci.Fx * ref.WidthM() / depth / 2.0
	halfH := ci.Fy * (ref.HeightMM / 1000.0) / depth / 2.0
	px := func(du, dv float64) orb.Point {
		return orb.Point{(ci.Cx + du) / float64(ci.Width), (ci.Cy + dv) / float64(ci.Height)}
	}

	return &scan.Observation{
		DeviceID: "phone1",
		Corners: [4]orb.Point{
			px(-halfW, -halfH), px(halfW, -halfH), px(halfW, halfH), px(-halfW, halfH),
		},
		Confidence:   0.95,
		CenterDepth:  depth,
		DeviceNormal: r3.Vector{Z: 1},
		Timestamp:    time.Now(),
		Intrinsics:   ci,
	}
}

func calibrateDevice(t *testing.T, app *App) {
	t.Helper()
	for i := 0; i < scan.DefaultTargetSamples; i++ {
		app.HandleObservation("phone1", goodObservation(0.30), nil)
	}
}

func TestAppCalibratesAndPersistsOnce(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)

	mock := scan.NewMockClient()
	mock.SetConnected(true)
	app.Publisher = scan.NewPublisher(mock, app.Config)

	calibrateDevice(t, app)

	// The result landed in the store.
	factor, ok := app.Store.ValidFactor("phone1", scan.DefaultCalibrationMaxAge)
	require.True(t, ok)
	assert.InDelta(t, 1.0, factor, 1e-6)

	// And was published, retained, exactly once.
	published := func() int {
		n := 0
		for _, m := range mock.PublishedMessages() {
			if m.Topic == "caliper/phone1/calibration" {
				n++
				assert.True(t, m.Retain)
			}
		}
		return n
	}
	assert.Equal(t, 1, published())

	// Further frames on the finalized session change nothing.
	app.HandleObservation("phone1", goodObservation(0.30), nil)
	app.HandleObservation("phone1", goodObservation(0.30), nil)
	assert.Equal(t, 1, published())
}

func TestAppIgnoresDecodeErrors(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)

	app.HandleObservation("phone1", nil, assert.AnError)
	assert.Empty(t, app.sessions, "a failed decode must not create a session")
}

func TestAppControlResetDiscardsSession(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		app.HandleObservation("phone1", goodObservation(0.30), nil)
	}
	require.Equal(t, 3, app.SessionFor("phone1").SampleCount())

	app.HandleControl("phone1", "reset")
	assert.Equal(t, 0, app.SessionFor("phone1").SampleCount())

	// Unknown commands are ignored.
	app.HandleControl("phone1", "dance")
}

func TestAppRecalibratesAfterReset(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)

	calibrateDevice(t, app)
	app.HandleControl("phone1", "reset")
	calibrateDevice(t, app)

	_, ok := app.Store.ValidFactor("phone1", scan.DefaultCalibrationMaxAge)
	assert.True(t, ok)
}

func TestAppFeedbackIsAdvisory(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)

	// No publisher wired: feedback events are dropped silently and the
	// pipeline keeps running.
	calibrateDevice(t, app)
	_, ok := app.SessionFor("phone1").Result()
	assert.True(t, ok)
}

func TestMeasureFileWithExplicitFactor(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cube.json")
	writeCubeJSON(t, path)

	var buf bytes.Buffer
	require.NoError(t, app.MeasureFile(path, "", 1.0, true, &buf))

	var resp measureResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.InDelta(t, 1.0, resp.ScaleFactor, 1e-9)
	assert.InDelta(t, 1e6, resp.Measurements.VolumeCm3, 1e-3)
	assert.True(t, resp.Topology.IsWatertight)
}

func TestMeasureFileUsesStoredCalibration(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, app.Store.Put("phone1", &scan.CalibrationResult{
		ScaleFactor: 2.0,
		Confidence:  0.9,
		Timestamp:   time.Now(),
	}))

	path := filepath.Join(t.TempDir(), "cube.json")
	writeCubeJSON(t, path)

	var buf bytes.Buffer
	require.NoError(t, app.MeasureFile(path, "phone1", 0, true, &buf))

	var resp measureResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.InDelta(t, 2.0, resp.ScaleFactor, 1e-9)
	assert.InDelta(t, 8e6, resp.Measurements.VolumeCm3, 1e-2)
}

func TestMeasureFileWithoutCalibrationFails(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cube.json")
	writeCubeJSON(t, path)

	var buf bytes.Buffer
	assert.Error(t, app.MeasureFile(path, "", 0, true, &buf), "no factor and no device")
	assert.Error(t, app.MeasureFile(path, "phone1", 0, true, &buf), "device never calibrated")
}
