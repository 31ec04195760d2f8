package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker: tcp://localhost:1883
devices:
  - id: phone1
    topic: caliper/phone1/observations
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://localhost:1883", config.MQTT.Broker)
	require.Len(t, config.Devices, 1)
	assert.Equal(t, "phone1", config.Devices[0].ID)

	// Unset sections come back as the tuned defaults.
	assert.Equal(t, 85.60, config.Reference.WidthMM)
	assert.Equal(t, DefaultEnterThreshold, config.Hysteresis.Enter)
	assert.Equal(t, DefaultTargetSamples, config.Aggregator.TargetSamples)
	assert.Equal(t, 8080, config.HTTPPort)
	assert.Equal(t, DefaultCalibrationCachePath, config.CalibrationCache)
}

func TestLoadConfigKeepsExplicitTuning(t *testing.T) {
	path := writeConfig(t, `
devices:
  - id: phone1
    topic: caliper/phone1/observations
reference:
  name: A4 sheet
  widthMM: 297
  heightMM: 210
  idealDistanceM: 0.5
hysteresis:
  windowSize: 5
  minSamples: 2
  enter: 0.8
  leave: 0.65
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "A4 sheet", config.Reference.Name)
	assert.Equal(t, 297.0, config.Reference.WidthMM)
	assert.Equal(t, 5, config.Hysteresis.WindowSize)
	assert.Equal(t, 0.8, config.Hysteresis.Enter)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"device without topic", `
devices:
  - id: phone1
`},
		{"device without id", `
devices:
  - topic: caliper/x/observations
`},
		{"enter not above leave", `
hysteresis:
  windowSize: 5
  minSamples: 2
  enter: 0.5
  leave: 0.5
`},
		{"negative reference size", `
reference:
  widthMM: -10
  heightMM: 50
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")

	config := &Config{
		Devices: []DeviceConfig{{ID: "phone1", Topic: "caliper/phone1/observations"}},
	}
	config.Normalize()
	require.NoError(t, SaveConfig(path, config))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.Devices, loaded.Devices)
	assert.Equal(t, config.Reference, loaded.Reference)
	assert.Equal(t, config.Hysteresis, loaded.Hysteresis)
}
