package scan

// ScoreWindow is a bounded FIFO of recent overall scores. Pushing beyond
// capacity evicts the oldest entry.
type ScoreWindow struct {
	scores   []float64
	capacity int
}

// NewScoreWindow creates a window with the given capacity.
func NewScoreWindow(capacity int) *ScoreWindow {
	if capacity < 1 {
		capacity = DefaultWindowSize
	}
	return &ScoreWindow{
		scores:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Push appends a score, evicting the oldest entry when full.
func (w *ScoreWindow) Push(score float64) {
	if len(w.scores) == w.capacity {
		copy(w.scores, w.scores[1:])
		w.scores[len(w.scores)-1] = score
		return
	}
	w.scores = append(w.scores, score)
}

// Len returns the number of scores currently held.
func (w *ScoreWindow) Len() int { return len(w.scores) }

// Mean returns the mean of the held scores, or 0 when empty.
func (w *ScoreWindow) Mean() float64 {
	if len(w.scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range w.scores {
		sum += s
	}
	return sum / float64(len(w.scores))
}

// Reset discards all held scores.
func (w *ScoreWindow) Reset() {
	w.scores = w.scores[:0]
}

// HysteresisController filters per-frame scores through a ScoreWindow and
// decides, with asymmetric enter/leave thresholds, when the observation
// stream is "good enough" to use. A single cutoff would oscillate on small
// fluctuations; the enter > leave gap prevents that.
type HysteresisController struct {
	cfg    HysteresisConfig
	window *ScoreWindow
	good   bool
}

// NewHysteresisController creates a controller with the given config.
func NewHysteresisController(cfg HysteresisConfig) *HysteresisController {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = DefaultWindowSize
	}
	if cfg.MinSamples < 1 {
		cfg.MinSamples = DefaultMinWindowSamples
	}
	return &HysteresisController{
		cfg:    cfg,
		window: NewScoreWindow(cfg.WindowSize),
	}
}

// Observe pushes a new overall score and returns the updated state.
// decided is false until the window holds MinSamples entries; no state
// change happens before that. transitioned is true only on the frame the
// good/not-good state flips.
func (h *HysteresisController) Observe(score float64) (good, decided, transitioned bool) {
	h.window.Push(score)
	if h.window.Len() < h.cfg.MinSamples {
		return h.good, false, false
	}

	smoothed := h.window.Mean()
	was := h.good
	if h.good {
		if smoothed < h.cfg.Leave {
			h.good = false
		}
	} else {
		if smoothed >= h.cfg.Enter {
			h.good = true
		}
	}
	return h.good, true, h.good != was
}

// Smoothed returns the current windowed mean score.
func (h *HysteresisController) Smoothed() float64 { return h.window.Mean() }

// IsGood returns the current hysteresis state.
func (h *HysteresisController) IsGood() bool { return h.good }

// Reset clears the window and returns to the not-good state. Required at
// calibration-session start.
func (h *HysteresisController) Reset() {
	h.window.Reset()
	h.good = false
}
