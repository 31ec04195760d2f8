package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/caliperd/caliper/scan"
)

// Version is set at build time via -ldflags
var Version = "dev"

var (
	configFile       = flag.String("config", "config.yaml", "Path to configuration file")
	calibrationCache = flag.String("calibration-cache", "", "Path to calibration cache file (default: from config)")
	mqttMode         = flag.Bool("mqtt", false, "Run MQTT service mode for live observation ingestion")
	httpMode         = flag.Bool("http", false, "Enable HTTP server for calibration status and measurement")
	httpPort         = flag.Int("http-port", 0, "HTTP server port (default: from config)")
	measureFile      = flag.String("measure", "", "Measure a mesh file (.obj or JSON) and exit")
	deviceID         = flag.String("device", "", "Device ID for calibration lookup in measure mode")
	scaleFactor      = flag.Float64("scale", 0, "Scale factor override for measure mode (skips cache lookup)")
	noRepair         = flag.Bool("no-repair", false, "Skip built-in hole filling in measure mode")
	showVersion      = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("caliper %s\n", Version)
		return
	}

	config, err := loadOrDefaultConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *calibrationCache != "" {
		config.CalibrationCache = *calibrationCache
	}
	if *httpPort != 0 {
		config.HTTPPort = *httpPort
	}

	app, err := NewApp(config)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	if *measureFile != "" {
		if err := app.MeasureFile(*measureFile, *deviceID, *scaleFactor, !*noRepair, os.Stdout); err != nil {
			log.Fatalf("Measurement failed: %v", err)
		}
		return
	}

	if !*mqttMode && !*httpMode {
		flag.Usage()
		log.Fatal("Nothing to do: pass -mqtt and/or -http, or -measure FILE")
	}

	if err := app.RunService(*mqttMode, *httpMode); err != nil {
		log.Fatalf("Service failed: %v", err)
	}
}

// loadOrDefaultConfig loads the YAML config; a missing file is fine for
// measure-only runs and yields the defaults.
func loadOrDefaultConfig(path string) (*scan.Config, error) {
	config, err := scan.LoadConfig(path)
	if err != nil {
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			log.Printf("Config %s not found, using defaults", path)
			config = &scan.Config{}
			config.Normalize()
			return config, nil
		}
		return nil, err
	}
	return config, nil
}
