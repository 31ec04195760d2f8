package scan

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes feedback events and calibration results to MQTT so
// external consumers (UI, voice feedback) can react without polling.
type Publisher struct {
	client mqtt.Client
	prefix string
}

// NewPublisher creates a publisher. A nil client disables publishing.
// The topic prefix comes from MQTT_PUBLISH_PREFIX, then the config, then
// "caliper".
func NewPublisher(client mqtt.Client, cfg *Config) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" && cfg != nil && cfg.MQTT.PublishPrefix != "" {
		prefix = cfg.MQTT.PublishPrefix
	}
	if prefix == "" {
		prefix = "caliper"
	}
	return &Publisher{client: client, prefix: prefix}
}

// PublishFeedback publishes a feedback event to
// {prefix}/{device}/feedback. Events are fire-and-forget (QoS 0, not
// retained): a missed tip is replaced by the next one.
func (p *Publisher) PublishFeedback(event FeedbackEvent) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling feedback event: %w", err)
	}
	topic := fmt.Sprintf("%s/%s/feedback", p.prefix, event.DeviceID)
	token := p.client.Publish(topic, 0, false, payload)
	token.Wait()
	return token.Error()
}

// PublishResult publishes a finalized calibration to
// {prefix}/{device}/calibration, retained so late subscribers see the
// latest result.
func (p *Publisher) PublishResult(deviceID string, result *CalibrationResult) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling calibration result: %w", err)
	}
	topic := fmt.Sprintf("%s/%s/calibration", p.prefix, deviceID)
	token := p.client.Publish(topic, 1, true, payload)
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("[MQTT] published calibration for %s to %s", deviceID, topic)
	return nil
}
