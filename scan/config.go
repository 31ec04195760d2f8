package scan

import "time"

// Defaults for the empirically tuned knobs. All of these are deliberately
// configurable; none of them is "correct", only a starting point.
const (
	// DefaultCalibrationMaxAge is how long a persisted calibration stays
	// valid before the caller must recalibrate.
	DefaultCalibrationMaxAge = 30 * 24 * time.Hour

	DefaultWindowSize       = 10
	DefaultMinWindowSamples = 3
	DefaultEnterThreshold   = 0.75
	DefaultLeaveThreshold   = 0.60

	DefaultMaxPlaneAngleDeg = 8.0
	DefaultTargetSamples    = 10

	DefaultMinScaleFactor = 0.7
	DefaultMaxScaleFactor = 1.3
	DefaultMinConfidence  = 0.6

	// DefaultMinEventInterval rate-limits state-visible feedback updates.
	DefaultMinEventInterval = 500 * time.Millisecond
)

// ReferenceObject describes the physical object of precisely known size
// used to derive the scale factor. The default is an ISO/IEC 7810 ID-1
// card (85.60 x 53.98 mm).
type ReferenceObject struct {
	Name           string  `yaml:"name" json:"name"`
	WidthMM        float64 `yaml:"widthMM" json:"widthMM"`
	HeightMM       float64 `yaml:"heightMM" json:"heightMM"`
	IdealDistanceM float64 `yaml:"idealDistanceM" json:"idealDistanceM"`
}

// WidthM returns the known width in meters.
func (r ReferenceObject) WidthM() float64 { return r.WidthMM / 1000.0 }

// AspectRatio returns the expected width/height ratio.
func (r ReferenceObject) AspectRatio() float64 {
	if r.HeightMM == 0 {
		return 0
	}
	return r.WidthMM / r.HeightMM
}

// DefaultReferenceObject returns the ID-1 payment card reference.
func DefaultReferenceObject() ReferenceObject {
	return ReferenceObject{
		Name:           "ID-1 card",
		WidthMM:        85.60,
		HeightMM:       53.98,
		IdealDistanceM: 0.30,
	}
}

// QualityConfig holds the tolerances for the five quality sub-scores.
type QualityConfig struct {
	// DistanceToleranceM is the depth deviation (meters) at which the
	// distance score reaches zero.
	DistanceToleranceM float64 `yaml:"distanceToleranceM" json:"distanceToleranceM"`

	// AlignmentTolerance is the parallelism band mapped onto [0,1].
	AlignmentTolerance float64 `yaml:"alignmentTolerance" json:"alignmentTolerance"`

	// CenteringTolerance is the normalized screen offset at which the
	// centering score reaches zero.
	CenteringTolerance float64 `yaml:"centeringTolerance" json:"centeringTolerance"`

	// MaxJitter is the normalized frame-to-frame center displacement at
	// which the stability score reaches zero.
	MaxJitter float64 `yaml:"maxJitter" json:"maxJitter"`

	// AspectTolerance is the aspect-ratio deviation at which the
	// size-match score reaches zero.
	AspectTolerance float64 `yaml:"aspectTolerance" json:"aspectTolerance"`
}

// DefaultQualityConfig returns the tuned scoring tolerances.
func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		DistanceToleranceM: 0.15,
		AlignmentTolerance: 0.30,
		CenteringTolerance: 0.35,
		MaxJitter:          0.05,
		AspectTolerance:    0.50,
	}
}

// HysteresisConfig controls temporal smoothing and the asymmetric
// good/not-good decision thresholds.
type HysteresisConfig struct {
	WindowSize int `yaml:"windowSize" json:"windowSize"`

	// MinSamples is the number of window entries required before any
	// decision is made.
	MinSamples int `yaml:"minSamples" json:"minSamples"`

	// Enter is the smoothed score required to become "good".
	Enter float64 `yaml:"enter" json:"enter"`

	// Leave is the smoothed score below which "good" is abandoned.
	// Enter > Leave; the gap is what prevents flicker.
	Leave float64 `yaml:"leave" json:"leave"`

	// MinEventInterval rate-limits feedback events. It never delays
	// sample acceptance, only state-visible output.
	MinEventInterval time.Duration `yaml:"minEventInterval" json:"minEventInterval"`
}

// DefaultHysteresisConfig returns the tuned smoothing parameters.
func DefaultHysteresisConfig() HysteresisConfig {
	return HysteresisConfig{
		WindowSize:       DefaultWindowSize,
		MinSamples:       DefaultMinWindowSamples,
		Enter:            DefaultEnterThreshold,
		Leave:            DefaultLeaveThreshold,
		MinEventInterval: DefaultMinEventInterval,
	}
}

// AggregatorConfig controls per-sample acceptance in the aggregator.
type AggregatorConfig struct {
	// MaxPlaneAngleDeg rejects samples whose fitted plane is viewed at a
	// steeper angle than this; steep viewing angles bias size estimates.
	MaxPlaneAngleDeg float64 `yaml:"maxPlaneAngleDeg" json:"maxPlaneAngleDeg"`

	// TargetSamples is the number of accepted samples to collect before
	// finalization is attempted.
	TargetSamples int `yaml:"targetSamples" json:"targetSamples"`

	// MinSizeM / MaxSizeM is the sanity envelope for a measured size.
	MinSizeM float64 `yaml:"minSizeM" json:"minSizeM"`
	MaxSizeM float64 `yaml:"maxSizeM" json:"maxSizeM"`
}

// DefaultAggregatorConfig returns the sample-acceptance envelope for a
// card-sized reference object.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		MaxPlaneAngleDeg: DefaultMaxPlaneAngleDeg,
		TargetSamples:    DefaultTargetSamples,
		MinSizeM:         0.001,
		MaxSizeM:         0.5,
	}
}

// FinalizeConfig holds the validation band for a finalized calibration.
type FinalizeConfig struct {
	MinScaleFactor float64 `yaml:"minScaleFactor" json:"minScaleFactor"`
	MaxScaleFactor float64 `yaml:"maxScaleFactor" json:"maxScaleFactor"`
	MinConfidence  float64 `yaml:"minConfidence" json:"minConfidence"`
}

// DefaultFinalizeConfig returns the validation band defaults.
func DefaultFinalizeConfig() FinalizeConfig {
	return FinalizeConfig{
		MinScaleFactor: DefaultMinScaleFactor,
		MaxScaleFactor: DefaultMaxScaleFactor,
		MinConfidence:  DefaultMinConfidence,
	}
}

// DeviceConfig defines one scanner device from the config file.
type DeviceConfig struct {
	ID    string `yaml:"id" json:"id"`
	Topic string `yaml:"topic" json:"topic"`
}

// MQTTConfig holds MQTT connection settings.
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// Config is the full service configuration.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt" json:"mqtt"`
	Devices  []DeviceConfig `yaml:"devices" json:"devices"`
	HTTPPort int            `yaml:"httpPort,omitempty" json:"httpPort,omitempty"`

	Reference  ReferenceObject  `yaml:"reference" json:"reference"`
	Quality    QualityConfig    `yaml:"quality" json:"quality"`
	Hysteresis HysteresisConfig `yaml:"hysteresis" json:"hysteresis"`
	Aggregator AggregatorConfig `yaml:"aggregator" json:"aggregator"`
	Finalize   FinalizeConfig   `yaml:"finalize" json:"finalize"`

	// CalibrationCache is the path of the JSON calibration cache file.
	CalibrationCache string `yaml:"calibrationCache,omitempty" json:"calibrationCache,omitempty"`
}

// GetDeviceByID returns the device config for the given ID, or nil.
func (c *Config) GetDeviceByID(id string) *DeviceConfig {
	for i := range c.Devices {
		if c.Devices[i].ID == id {
			return &c.Devices[i]
		}
	}
	return nil
}

// Normalize fills zero-valued tuning sections with their defaults so a
// minimal config file still yields a working pipeline.
func (c *Config) Normalize() {
	if c.Reference == (ReferenceObject{}) {
		c.Reference = DefaultReferenceObject()
	}
	if c.Quality == (QualityConfig{}) {
		c.Quality = DefaultQualityConfig()
	}
	if c.Hysteresis == (HysteresisConfig{}) {
		c.Hysteresis = DefaultHysteresisConfig()
	}
	if c.Aggregator == (AggregatorConfig{}) {
		c.Aggregator = DefaultAggregatorConfig()
	}
	if c.Finalize == (FinalizeConfig{}) {
		c.Finalize = DefaultFinalizeConfig()
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = 8080
	}
	if c.CalibrationCache == "" {
		c.CalibrationCache = DefaultCalibrationCachePath
	}
}
