package scan

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState is the coarse user-visible state of a calibration session.
type SessionState int

const (
	// StateSearching means no usable detection signal has arrived yet.
	StateSearching SessionState = iota

	// StateAdjusting means observations arrive but quality is too low.
	StateAdjusting

	// StateCapturing means quality is good and samples are being collected.
	StateCapturing

	// StateCalibrated means a validated result has been produced.
	StateCalibrated
)

// String implements fmt.Stringer.
func (s SessionState) String() string {
	switch s {
	case StateSearching:
		return "searching"
	case StateAdjusting:
		return "adjusting"
	case StateCapturing:
		return "capturing"
	case StateCalibrated:
		return "calibrated"
	}
	return "unknown"
}

// FeedbackEvent is emitted after a state transition or (rate-limited) on
// progress updates. Consumers render or publish it; it is never a live
// mutated field.
type FeedbackEvent struct {
	DeviceID    string       `json:"deviceId"`
	SessionID   uuid.UUID    `json:"sessionId"`
	State       SessionState `json:"state"`
	Metric      MetricKind   `json:"metric"`
	Tip         string       `json:"tip"`
	Smoothed    float64      `json:"smoothed"`
	SampleCount int          `json:"sampleCount"`
	Timestamp   time.Time    `json:"timestamp"`
}

// EventHandler consumes feedback events. Handlers are invoked synchronously
// from Process and must not call back into the session.
type EventHandler func(FeedbackEvent)

// CalibrationSession runs the full observation pipeline for one device:
// quality scoring, temporal smoothing with hysteresis, sample aggregation,
// and finalization into a CalibrationResult.
//
// Observation processing is single-writer: each observation is fully
// scored, smoothed, and (if accepted) aggregated before the next one. The
// internal mutex serializes callers that ignore that discipline.
type CalibrationSession struct {
	mu sync.Mutex

	id       uuid.UUID
	deviceID string

	ref         ReferenceObject
	finalizeCfg FinalizeConfig

	scorer     *QualityScorer
	controller *HysteresisController
	aggregator *SampleAggregator

	handler EventHandler

	prev    *Observation
	result  *CalibrationResult
	history []float64

	lastEventAt time.Time
	lastState   SessionState
	minInterval time.Duration

	now func() time.Time
}

// NewCalibrationSession creates a session wired from the given config.
// handler may be nil.
func NewCalibrationSession(deviceID string, cfg Config, handler EventHandler) *CalibrationSession {
	cfg.Normalize()
	return &CalibrationSession{
		id:          uuid.New(),
		deviceID:    deviceID,
		ref:         cfg.Reference,
		finalizeCfg: cfg.Finalize,
		scorer:      NewQualityScorer(cfg.Quality, cfg.Reference),
		controller:  NewHysteresisController(cfg.Hysteresis),
		aggregator:  NewSampleAggregator(cfg.Aggregator, cfg.Reference),
		handler:     handler,
		minInterval: cfg.Hysteresis.MinEventInterval,
		lastState:   StateSearching,
		now:         time.Now,
	}
}

// ID returns the session's unique identifier.
func (cs *CalibrationSession) ID() uuid.UUID { return cs.id }

// DeviceID returns the device this session belongs to.
func (cs *CalibrationSession) DeviceID() string { return cs.deviceID }

// Process runs one observation through the pipeline.
//
// Sensor-level problems (no detection, no depth) are absorbed: the frame
// is skipped with no state change and ErrInsufficientSignal is returned
// for the caller's information only. Validation failures surface as
// ErrPoorAlignment; sample collection then restarts within the session.
// After a successful finalization Process returns ErrSessionFinalized.
func (cs *CalibrationSession) Process(obs *Observation) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.result != nil {
		return ErrSessionFinalized
	}
	if obs == nil || obs.Confidence <= 0 || (obs.CenterDepth <= 0 && obs.CornerDepths == nil) {
		return ErrInsufficientSignal
	}

	q := cs.scorer.Score(obs, cs.prev)
	prev := *obs
	cs.prev = &prev

	good, decided, transitioned := cs.controller.Observe(q.Overall)
	cs.history = append(cs.history, cs.controller.Smoothed())
	if !decided {
		// Window not yet stable: no decision, no state change.
		return nil
	}

	state := StateAdjusting
	if good {
		state = StateCapturing
	}
	cs.emit(state, q, obs, transitioned)

	if !good {
		return nil
	}

	if _, err := cs.aggregator.AddObservation(obs); err != nil {
		// Per-sample rejections (steep angle, size envelope) are local;
		// collection simply continues.
		if !errors.Is(err, ErrSessionFinalized) {
			log.Printf("[SESSION] %s: sample rejected: %v", cs.deviceID, err)
		}
	}

	if !cs.aggregator.HasEnoughSamples() {
		return nil
	}

	result, err := Finalize(cs.aggregator.Samples(), cs.ref, cs.finalizeCfg)
	if err != nil {
		// Explicit failure: discard the bad batch and collect again.
		log.Printf("[SESSION] %s: %v; restarting collection", cs.deviceID, err)
		cs.aggregator.Reset()
		cs.emit(StateAdjusting, q, obs, true)
		return fmt.Errorf("session %s: %w", cs.deviceID, err)
	}

	cs.result = result
	cs.emit(StateCalibrated, q, obs, true)
	log.Printf("[SESSION] %s: calibrated: factor=%.4f confidence=%.2f",
		cs.deviceID, result.ScaleFactor, result.Confidence)
	return nil
}

// emit delivers a feedback event to the handler. Events are rate-limited
// by minInterval except for the first transition into a new state; the
// debounce only throttles consumers, it never blocks sample acceptance.
func (cs *CalibrationSession) emit(state SessionState, q QualityMetrics, obs *Observation, transitioned bool) {
	now := cs.now()
	firstInState := state != cs.lastState
	if !transitioned && !firstInState && now.Sub(cs.lastEventAt) < cs.minInterval {
		return
	}
	cs.lastEventAt = now
	cs.lastState = state

	if cs.handler == nil {
		return
	}
	metric := PriorityFeedback(q)
	cs.handler(FeedbackEvent{
		DeviceID:    cs.deviceID,
		SessionID:   cs.id,
		State:       state,
		Metric:      metric,
		Tip:         Tip(metric, obs, cs.ref),
		Smoothed:    cs.controller.Smoothed(),
		SampleCount: cs.aggregator.SampleCount(),
		Timestamp:   now,
	})
}

// Result returns the finalized calibration, if any.
func (cs *CalibrationSession) Result() (*CalibrationResult, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.result, cs.result != nil
}

// SampleCount returns the number of accepted samples so far.
func (cs *CalibrationSession) SampleCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.aggregator.SampleCount()
}

// Smoothed returns the current windowed mean score.
func (cs *CalibrationSession) Smoothed() float64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.controller.Smoothed()
}

// State returns the last emitted session state.
func (cs *CalibrationSession) State() SessionState {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.result != nil {
		return StateCalibrated
	}
	return cs.lastState
}

// Samples returns a copy of the accepted calibration samples.
func (cs *CalibrationSession) Samples() []CalibrationSample {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.aggregator.Samples()
}

// History returns a copy of the smoothed-score timeline, for reporting.
func (cs *CalibrationSession) History() []float64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]float64, len(cs.history))
	copy(out, cs.history)
	return out
}

// Reset atomically discards all accumulated samples, smoothing state, and
// any result. No partial result is ever exposed: callers observing the
// session before and after see either the old complete state or a clean
// one.
func (cs *CalibrationSession) Reset() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.controller.Reset()
	cs.aggregator.Reset()
	cs.prev = nil
	cs.result = nil
	cs.history = cs.history[:0]
	cs.lastState = StateSearching
	cs.lastEventAt = time.Time{}
	log.Printf("[SESSION] %s: reset", cs.deviceID)
}
