package scan

import "errors"

var (
	// ErrInsufficientSignal is returned when a frame carries no usable
	// reference-object detection or depth. Recoverable: skip the frame.
	ErrInsufficientSignal = errors.New("no reference object or depth in frame")

	// ErrQualityTooLow is returned when the smoothed score is below the
	// acceptance threshold. Recoverable: keep collecting.
	ErrQualityTooLow = errors.New("smoothed detection quality too low")

	// ErrWindowNotStable is returned while the smoothing window holds too
	// few entries for any good/not-good decision.
	ErrWindowNotStable = errors.New("smoothing window not yet stable")

	// ErrSteepViewingAngle is returned when the fitted reference plane is
	// viewed at too steep an angle for an unbiased size estimate.
	ErrSteepViewingAngle = errors.New("reference plane viewing angle too steep")

	// ErrSizeOutOfRange is returned when a measured reference size falls
	// outside the sanity envelope.
	ErrSizeOutOfRange = errors.New("measured reference size outside sanity envelope")

	// ErrNotEnoughSamples is returned when finalization is attempted with
	// fewer samples than required.
	ErrNotEnoughSamples = errors.New("not enough calibration samples")

	// ErrPoorAlignment is returned when finalization produces a scale
	// factor or confidence outside the validated band. The caller must
	// resume collection or restart the session.
	ErrPoorAlignment = errors.New("calibration failed validation")

	// ErrSessionFinalized is returned when observations arrive after a
	// session has produced its result. A new session requires a reset.
	ErrSessionFinalized = errors.New("calibration session already finalized")

	// ErrInvalidMesh is returned for an empty or irreparably degenerate
	// mesh. Fatal for that measurement; no partial result is returned.
	ErrInvalidMesh = errors.New("mesh is empty or degenerate")
)
