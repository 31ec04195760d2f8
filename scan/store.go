package scan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultCalibrationCachePath is the default path for the persisted
// calibration cache.
const DefaultCalibrationCachePath = ".calibration-cache.json"

// StoredCalibration is the persisted key/value form of a CalibrationResult.
type StoredCalibration struct {
	ScaleFactor        float64   `json:"scaleFactor"`
	Confidence         float64   `json:"confidence"`
	Timestamp          int64     `json:"timestamp"`
	SampleMeasurements []float64 `json:"sampleMeasurements,omitempty"`
}

// Expired reports whether the stored calibration is older than maxAge.
// Staleness is caller-enforced; the core pipeline has no intrinsic
// timeouts.
func (sc StoredCalibration) Expired(maxAge time.Duration) bool {
	if sc.Timestamp == 0 {
		return true
	}
	return time.Since(time.Unix(sc.Timestamp, 0)) > maxAge
}

// calibrationCache is the on-disk JSON envelope.
type calibrationCache struct {
	Devices     map[string]StoredCalibration `json:"devices"`
	LastUpdated int64                        `json:"lastUpdated"`
}

// CalibrationStore persists per-device calibration results as a JSON
// cache file and enforces the validity window on reads.
type CalibrationStore struct {
	mu    sync.RWMutex
	path  string
	cache calibrationCache
}

// NewCalibrationStore creates a store backed by the given cache path.
// An existing cache file is loaded; a missing one is not an error.
func NewCalibrationStore(path string) (*CalibrationStore, error) {
	st := &CalibrationStore{
		path:  path,
		cache: calibrationCache{Devices: make(map[string]StoredCalibration)},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return nil, fmt.Errorf("reading calibration cache: %w", err)
	}
	if err := json.Unmarshal(data, &st.cache); err != nil {
		return nil, fmt.Errorf("parsing calibration cache: %w", err)
	}
	if st.cache.Devices == nil {
		st.cache.Devices = make(map[string]StoredCalibration)
	}
	return st, nil
}

// Put stores a finalized result for the device and persists the cache.
func (st *CalibrationStore) Put(deviceID string, result *CalibrationResult) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.cache.Devices[deviceID] = StoredCalibration{
		ScaleFactor:        result.ScaleFactor,
		Confidence:         result.Confidence,
		Timestamp:          result.Timestamp.Unix(),
		SampleMeasurements: result.SampleMeasurements,
	}
	st.cache.LastUpdated = time.Now().Unix()
	return st.save()
}

// Get returns the stored calibration for the device, if present.
func (st *CalibrationStore) Get(deviceID string) (StoredCalibration, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sc, ok := st.cache.Devices[deviceID]
	return sc, ok
}

// ValidFactor returns the device's scale factor when a stored calibration
// exists and is within maxAge, else (0, false).
func (st *CalibrationStore) ValidFactor(deviceID string, maxAge time.Duration) (float64, bool) {
	sc, ok := st.Get(deviceID)
	if !ok || sc.Expired(maxAge) {
		return 0, false
	}
	return sc.ScaleFactor, true
}

// Devices returns a snapshot of all stored calibrations by device ID.
func (st *CalibrationStore) Devices() map[string]StoredCalibration {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]StoredCalibration, len(st.cache.Devices))
	for k, v := range st.cache.Devices {
		out[k] = v
	}
	return out
}

// Delete removes a device's calibration and persists the cache.
func (st *CalibrationStore) Delete(deviceID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.cache.Devices, deviceID)
	st.cache.LastUpdated = time.Now().Unix()
	return st.save()
}

// save writes the cache file; callers hold the write lock.
func (st *CalibrationStore) save() error {
	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	data, err := json.MarshalIndent(st.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling calibration cache: %w", err)
	}
	if err := os.WriteFile(st.path, data, 0o644); err != nil {
		return fmt.Errorf("writing calibration cache: %w", err)
	}
	return nil
}
