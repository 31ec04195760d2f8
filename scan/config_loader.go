package scan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the service configuration from a YAML file and fills
// unset tuning sections with defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	config.Normalize()

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

func validateConfig(c *Config) error {
	for i, d := range c.Devices {
		if d.ID == "" {
			return fmt.Errorf("devices[%d].id is required", i)
		}
		if d.Topic == "" {
			return fmt.Errorf("devices[%d].topic is required for %s", i, d.ID)
		}
	}
	if c.Reference.WidthMM <= 0 || c.Reference.HeightMM <= 0 {
		return fmt.Errorf("reference object dimensions must be positive (got %.2f x %.2f mm)",
			c.Reference.WidthMM, c.Reference.HeightMM)
	}
	if c.Hysteresis.Enter <= c.Hysteresis.Leave {
		return fmt.Errorf("hysteresis.enter (%.2f) must be greater than hysteresis.leave (%.2f)",
			c.Hysteresis.Enter, c.Hysteresis.Leave)
	}
	if c.Finalize.MinScaleFactor >= c.Finalize.MaxScaleFactor {
		return fmt.Errorf("finalize.minScaleFactor (%.2f) must be below maxScaleFactor (%.2f)",
			c.Finalize.MinScaleFactor, c.Finalize.MaxScaleFactor)
	}
	return nil
}
