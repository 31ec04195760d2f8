package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/caliperd/caliper/scan"
)

// App wires the calibration pipeline, persistence, MQTT, and HTTP layers.
// All instances are explicitly constructed and injected; there are no
// process-wide singletons.
type App struct {
	Config    *scan.Config
	Store     *scan.CalibrationStore
	MQTT      *scan.MQTTClient
	Publisher *scan.Publisher

	mu        sync.Mutex
	sessions  map[string]*scan.CalibrationSession
	persisted map[string]bool // session results already written to the store
}

// NewApp creates an App with its calibration store loaded.
func NewApp(config *scan.Config) (*App, error) {
	store, err := scan.NewCalibrationStore(config.CalibrationCache)
	if err != nil {
		return nil, fmt.Errorf("opening calibration store: %w", err)
	}
	return &App{
		Config:    config,
		Store:     store,
		sessions:  make(map[string]*scan.CalibrationSession),
		persisted: make(map[string]bool),
	}, nil
}

// SessionFor returns the device's calibration session, creating one on
// first use.
func (a *App) SessionFor(deviceID string) *scan.CalibrationSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[deviceID]; ok {
		return s
	}
	s := scan.NewCalibrationSession(deviceID, *a.Config, a.onFeedback)
	a.sessions[deviceID] = s
	return s
}

// onFeedback forwards session feedback events to MQTT. Publish failures
// are logged and dropped; feedback is advisory.
func (a *App) onFeedback(event scan.FeedbackEvent) {
	if a.Publisher == nil {
		return
	}
	if err := a.Publisher.PublishFeedback(event); err != nil {
		log.Printf("[APP] feedback publish for %s failed: %v", event.DeviceID, err)
	}
}

// HandleObservation is the ObservationHandler registered with the MQTT
// client. Decode errors and sensor-level skips are absorbed here; a
// finalized result is persisted and published exactly once.
func (a *App) HandleObservation(deviceID string, obs *scan.Observation, err error) {
	if err != nil {
		return // decode error already logged by the MQTT layer
	}

	session := a.SessionFor(deviceID)
	if procErr := session.Process(obs); procErr != nil {
		switch {
		case errors.Is(procErr, scan.ErrInsufficientSignal),
			errors.Is(procErr, scan.ErrSessionFinalized):
			// Absorbed: skip the frame.
		case errors.Is(procErr, scan.ErrPoorAlignment):
			log.Printf("[APP] %s: calibration attempt failed validation, collection restarted", deviceID)
		default:
			log.Printf("[APP] %s: observation error: %v", deviceID, procErr)
		}
	}

	result, ok := session.Result()
	if !ok {
		return
	}

	a.mu.Lock()
	already := a.persisted[session.ID().String()]
	if !already {
		a.persisted[session.ID().String()] = true
	}
	a.mu.Unlock()
	if already {
		return
	}

	if err := a.Store.Put(deviceID, result); err != nil {
		log.Printf("[APP] %s: failed to persist calibration: %v", deviceID, err)
	}
	if a.Publisher != nil {
		if err := a.Publisher.PublishResult(deviceID, result); err != nil {
			log.Printf("[APP] %s: failed to publish calibration: %v", deviceID, err)
		}
	}
}

// HandleControl processes session control commands from MQTT.
// Both "reset" and "abort" atomically discard all accumulated state.
func (a *App) HandleControl(deviceID, command string) {
	switch command {
	case "reset", "abort":
		a.SessionFor(deviceID).Reset()
		a.mu.Lock()
		delete(a.sessions, deviceID)
		a.mu.Unlock()
	default:
		log.Printf("[APP] %s: unknown control command %q", deviceID, command)
	}
}

// RunService starts the MQTT and/or HTTP layers and blocks until SIGINT
// or SIGTERM.
func (a *App) RunService(mqttEnabled, httpEnabled bool) error {
	if mqttEnabled {
		client, err := scan.NewMQTTClient(a.Config, a.HandleObservation)
		if err != nil {
			return fmt.Errorf("starting MQTT: %w", err)
		}
		if client != nil {
			client.SetControlHandler(a.HandleControl)
			a.MQTT = client
			a.Publisher = scan.NewPublisher(client.Raw(), a.Config)
			defer client.Disconnect()
		}
	}

	if httpEnabled {
		addr := fmt.Sprintf(":%d", a.Config.HTTPPort)
		server := &http.Server{Addr: addr, Handler: newHTTPServer(a)}
		go func() {
			log.Printf("[HTTP] listening on %s", addr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("[HTTP] server error: %v", err)
			}
		}()
		defer server.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("Received %v, shutting down", sig)
	return nil
}

// MeasureFile loads a mesh file, repairs it if requested, measures it
// with the device's stored calibration (or an explicit factor), and
// writes the result as JSON.
func (a *App) MeasureFile(path, deviceID string, factor float64, repair bool, w io.Writer) error {
	mesh, err := scan.LoadMeshFile(path)
	if err != nil {
		return err
	}

	if factor <= 0 {
		if deviceID == "" {
			return fmt.Errorf("no -scale given and no -device to look up in the calibration cache")
		}
		var ok bool
		factor, ok = a.Store.ValidFactor(deviceID, scan.DefaultCalibrationMaxAge)
		if !ok {
			return fmt.Errorf("no valid calibration for device %s (missing or older than %s)",
				deviceID, scan.DefaultCalibrationMaxAge)
		}
	}

	var repairer scan.Repairer
	if repair {
		repairer = &scan.FanRepairer{}
	}
	measured, topo := scan.EnsureClosed(mesh, repairer)

	measurements, err := scan.MeasureMesh(measured, factor)
	if err != nil {
		return err
	}

	out := measureResponse{
		ScaleFactor:  factor,
		Measurements: measurements,
		Topology:     topo,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// measureResponse is the JSON envelope shared by the CLI measure mode and
// the HTTP /measure endpoint.
type measureResponse struct {
	ScaleFactor  float64                 `json:"scaleFactor"`
	Measurements *scan.Measurements      `json:"measurements"`
	Topology     scan.MeshTopologyResult `json:"topology"`
}
