package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caliperd/caliper/scan"
)

// maxMeshBytes limits /measure request bodies to 100 MB.
const maxMeshBytes = 100 << 20

// newHTTPServer creates the HTTP handler with all endpoints.
func newHTTPServer(app *App) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := struct {
			Status        string    `json:"status"`
			Timestamp     time.Time `json:"timestamp"`
			MQTTConnected bool      `json:"mqttConnected"`
		}{
			Status:        "ok",
			Timestamp:     time.Now(),
			MQTTConnected: app.MQTT.IsConnected(),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("[HTTP] error encoding health status: %v", err)
		}
	})

	// Calibration status for all known devices: stored results with
	// validity, plus live session progress.
	mux.HandleFunc("/calibration", func(w http.ResponseWriter, r *http.Request) {
		type deviceStatus struct {
			ScaleFactor  float64 `json:"scaleFactor,omitempty"`
			Confidence   float64 `json:"confidence,omitempty"`
			Timestamp    int64   `json:"timestamp,omitempty"`
			Valid        bool    `json:"valid"`
			SessionState string  `json:"sessionState,omitempty"`
			SampleCount  int     `json:"sampleCount,omitempty"`
		}

		statuses := make(map[string]deviceStatus)
		for id, sc := range app.Store.Devices() {
			statuses[id] = deviceStatus{
				ScaleFactor: sc.ScaleFactor,
				Confidence:  sc.Confidence,
				Timestamp:   sc.Timestamp,
				Valid:       !sc.Expired(scan.DefaultCalibrationMaxAge),
			}
		}
		app.mu.Lock()
		for id, session := range app.sessions {
			ds := statuses[id]
			ds.SessionState = session.State().String()
			ds.SampleCount = session.SampleCount()
			statuses[id] = ds
		}
		app.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statuses); err != nil {
			log.Printf("[HTTP] error encoding calibration status: %v", err)
		}
	})

	// Measure a posted mesh. The body is the mesh JSON wire format, or
	// Wavefront OBJ with Content-Type text/plain. The scale factor comes
	// from ?scale= or from the ?device= calibration cache entry.
	mux.HandleFunc("/measure", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}

		body := http.MaxBytesReader(w, r.Body, maxMeshBytes)
		var mesh *scan.Mesh
		var err error
		if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
			mesh, err = scan.ParseOBJ(body)
		} else {
			var data []byte
			if data, err = io.ReadAll(body); err == nil {
				mesh, err = scan.ParseMeshJSON(data)
			}
		}
		if err != nil {
			http.Error(w, "Invalid mesh: "+err.Error(), http.StatusBadRequest)
			return
		}

		factor, httpErr := resolveScaleFactor(app, r)
		if httpErr != "" {
			http.Error(w, httpErr, http.StatusConflict)
			return
		}

		repaired, topo := scan.EnsureClosed(mesh, &scan.FanRepairer{})
		measurements, err := scan.MeasureMesh(repaired, factor)
		if err != nil {
			http.Error(w, "Measurement failed: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		resp := measureResponse{
			ScaleFactor:  factor,
			Measurements: measurements,
			Topology:     topo,
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("[HTTP] error encoding measurement: %v", err)
		}
	})

	// Session report SVG for debugging a device's calibration run.
	mux.HandleFunc("/report.svg", func(w http.ResponseWriter, r *http.Request) {
		device := r.URL.Query().Get("device")
		if device == "" {
			http.Error(w, "device parameter required", http.StatusBadRequest)
			return
		}
		app.mu.Lock()
		session, ok := app.sessions[device]
		app.mu.Unlock()
		if !ok {
			http.Error(w, "No session for device "+device, http.StatusNotFound)
			return
		}

		report := scan.NewSessionReport(session, app.Config.Hysteresis)
		w.Header().Set("Content-Type", "image/svg+xml")
		if err := report.RenderToSVG(w); err != nil {
			log.Printf("[HTTP] error rendering report for %s: %v", device, err)
		}
	})

	return mux
}

// resolveScaleFactor picks the scale factor for a measurement request:
// an explicit ?scale= wins, otherwise the ?device= cache entry must hold
// a valid (non-expired) calibration.
func resolveScaleFactor(app *App, r *http.Request) (float64, string) {
	if s := r.URL.Query().Get("scale"); s != "" {
		factor, err := strconv.ParseFloat(s, 64)
		if err != nil || factor <= 0 {
			return 0, "Invalid scale parameter"
		}
		return factor, ""
	}

	device := r.URL.Query().Get("device")
	if device == "" {
		return 0, "Either scale or device parameter is required"
	}
	factor, ok := app.Store.ValidFactor(device, scan.DefaultCalibrationMaxAge)
	if !ok {
		return 0, "No valid calibration for device " + device
	}
	return factor, ""
}
