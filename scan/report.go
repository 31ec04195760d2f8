package scan

import (
	"fmt"
	"io"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/svg"
)

// Report canvas layout, in millimeters.
const (
	reportWidth   = 160.0
	reportHeight  = 100.0
	reportPadding = 10.0
)

// SessionReport renders a calibration session as an SVG chart: the
// smoothed-score timeline against the enter/leave thresholds, plus the
// spread of accepted size samples. Useful for debugging why a session
// converged slowly or failed validation.
type SessionReport struct {
	DeviceID string
	Scores   []float64
	Samples  []float64 // measured sizes, meters
	Enter    float64
	Leave    float64
	Result   *CalibrationResult
}

// NewSessionReport snapshots a session into a renderable report.
func NewSessionReport(cs *CalibrationSession, cfg HysteresisConfig) *SessionReport {
	samples := cs.Samples()
	sizes := make([]float64, len(samples))
	for i, s := range samples {
		sizes[i] = s.SizeM
	}
	r := &SessionReport{
		DeviceID: cs.DeviceID(),
		Scores:   cs.History(),
		Samples:  sizes,
		Enter:    cfg.Enter,
		Leave:    cfg.Leave,
	}
	if result, ok := cs.Result(); ok {
		r.Result = result
	}
	return r
}

// RenderToSVG writes the report as an SVG document.
func (r *SessionReport) RenderToSVG(w io.Writer) error {
	renderer := svg.New(w, reportWidth, reportHeight, nil)

	bg := canvas.DefaultStyle
	bg.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(reportWidth, reportHeight), bg, canvas.Identity)

	plotW := reportWidth - 2*reportPadding
	plotH := reportHeight - 2*reportPadding

	// Score in [0,1] onto plot coordinates.
	toY := func(score float64) float64 {
		return reportPadding + clamp01(score)*plotH
	}
	toX := func(i, n int) float64 {
		if n <= 1 {
			return reportPadding
		}
		return reportPadding + float64(i)/float64(n-1)*plotW
	}

	// Plot frame.
	frame := canvas.DefaultStyle
	frame.Fill = canvas.Paint{Color: canvas.Transparent}
	frame.Stroke = canvas.Paint{Color: canvas.Black}
	frame.StrokeWidth = 0.3
	framePath := &canvas.Path{}
	framePath.MoveTo(reportPadding, reportPadding)
	framePath.LineTo(reportPadding+plotW, reportPadding)
	framePath.LineTo(reportPadding+plotW, reportPadding+plotH)
	framePath.LineTo(reportPadding, reportPadding+plotH)
	framePath.Close()
	renderer.RenderPath(framePath, frame, canvas.Identity)

	// Enter/leave threshold lines: the hysteresis band the timeline must
	// cross and hold.
	for _, th := range []struct {
		value float64
		color canvas.Paint
	}{
		{r.Enter, canvas.Paint{Color: canvas.Seagreen}},
		{r.Leave, canvas.Paint{Color: canvas.Orangered}},
	} {
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: canvas.Transparent}
		style.Stroke = th.color
		style.StrokeWidth = 0.25
		p := &canvas.Path{}
		p.MoveTo(reportPadding, toY(th.value))
		p.LineTo(reportPadding+plotW, toY(th.value))
		renderer.RenderPath(p, style, canvas.Identity)
	}

	// Smoothed score timeline.
	if len(r.Scores) > 0 {
		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: canvas.Transparent}
		style.Stroke = canvas.Paint{Color: canvas.Steelblue}
		style.StrokeWidth = 0.5
		p := &canvas.Path{}
		for i, s := range r.Scores {
			x, y := toX(i, len(r.Scores)), toY(s)
			if i == 0 {
				p.MoveTo(x, y)
			} else {
				p.LineTo(x, y)
			}
		}
		renderer.RenderPath(p, style, canvas.Identity)
	}

	// Sample spread: one tick per accepted sample along the bottom edge,
	// positioned by its deviation from the sample mean (±5% full scale).
	if len(r.Samples) > 0 {
		var mean float64
		for _, s := range r.Samples {
			mean += s
		}
		mean /= float64(len(r.Samples))

		style := canvas.DefaultStyle
		style.Fill = canvas.Paint{Color: canvas.Transparent}
		style.Stroke = canvas.Paint{Color: canvas.Dimgray}
		style.StrokeWidth = 0.4
		for _, s := range r.Samples {
			dev := 0.0
			if mean > 0 {
				dev = (s - mean) / mean / 0.05 // full scale at ±5%
			}
			if dev < -1 {
				dev = -1
			}
			if dev > 1 {
				dev = 1
			}
			x := reportPadding + (dev+1)/2*plotW
			p := &canvas.Path{}
			p.MoveTo(x, reportPadding-3)
			p.LineTo(x, reportPadding-1)
			renderer.RenderPath(p, style, canvas.Identity)
		}
	}

	if err := renderer.Close(); err != nil {
		return fmt.Errorf("closing SVG renderer: %w", err)
	}
	return nil
}
