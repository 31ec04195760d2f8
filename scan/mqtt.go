package scan

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/geo/r3"
	"github.com/paulmach/orb"
)

// ObservationHandler is called for every decoded detector observation.
// On decode failure the raw payload error is passed with a nil observation.
type ObservationHandler func(deviceID string, obs *Observation, err error)

// ControlHandler is called when a device publishes a session control
// command ("reset" or "abort") on its control topic.
type ControlHandler func(deviceID, command string)

// MQTTClient manages the MQTT connection and per-device observation
// subscriptions. The detector pushes Observation JSON onto each device's
// topic; the handler pulls and processes them one at a time.
type MQTTClient struct {
	client             mqtt.Client
	config             *Config
	observationHandler ObservationHandler
	controlHandler     ControlHandler
	isConnected        bool
	mu                 sync.RWMutex
}

// NewMQTTClient creates and connects an MQTT client for the configured
// devices. If no broker is configured (config and MQTT_BROKER env var both
// empty), MQTT is disabled and (nil, nil) is returned.
func NewMQTTClient(config *Config, handler ObservationHandler) (*MQTTClient, error) {
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}
	if broker == "" {
		log.Println("MQTT disabled: no broker configured")
		return nil, nil
	}
	if config == nil || len(config.Devices) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no device configuration provided")
	}

	c := &MQTTClient{
		config:             config,
		observationHandler: handler,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "caliper"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)

	// Observations must arrive in order per device; the pipeline is
	// sequential by design.
	opts.SetOrderMatters(true)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)
	go c.connectWithRetry()
	return c, nil
}

// newMQTTClientWithMock wires a pre-built (mock) client, for tests.
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler ObservationHandler) *MQTTClient {
	return &MQTTClient{
		client:             client,
		config:             config,
		observationHandler: handler,
	}
}

// connectWithRetry attempts the initial connect with exponential backoff.
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	const maxRetryDelay = 60 * time.Second

	for {
		log.Println("[MQTT] connecting to broker...")
		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("[MQTT] connected")
				c.setConnected(true)
				return
			}
			log.Printf("[MQTT] connection failed: %v", token.Error())
		} else {
			log.Println("[MQTT] connection timeout")
		}

		log.Printf("[MQTT] retrying in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to every configured device's observation topic and
// its derived control topic.
func (c *MQTTClient) onConnect(client mqtt.Client) {
	log.Println("[MQTT] connected, subscribing to device topics...")
	c.setConnected(true)

	for _, device := range c.config.Devices {
		if device.Topic == "" {
			log.Printf("[MQTT] warning: device %s has no topic configured", device.ID)
			continue
		}

		token := client.Subscribe(device.Topic, 0, c.createObservationHandler(device.ID))
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("[MQTT] error subscribing to %s: %v", device.Topic, token.Error())
		} else {
			log.Printf("[MQTT] subscribed to %s for device %s", device.Topic, device.ID)
		}

		ctl := deriveControlTopic(device.Topic)
		ctlToken := client.Subscribe(ctl, 0, c.createControlHandler(device.ID))
		if ctlToken.WaitTimeout(5*time.Second) && ctlToken.Error() != nil {
			log.Printf("[MQTT] error subscribing to %s: %v", ctl, ctlToken.Error())
		}
	}
}

func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("[MQTT] reconnecting...")
}

// createObservationHandler decodes observation payloads for one device.
func (c *MQTTClient) createObservationHandler(deviceID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		obs, err := DecodeObservation(deviceID, msg.Payload())
		if err != nil {
			log.Printf("[MQTT] error decoding observation for %s: %v", deviceID, err)
		}
		if c.observationHandler != nil {
			c.observationHandler(deviceID, obs, err)
		}
	}
}

// createControlHandler forwards session control commands for one device.
func (c *MQTTClient) createControlHandler(deviceID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		command := strings.TrimSpace(string(msg.Payload()))
		if command == "" {
			return
		}
		log.Printf("[MQTT] control command for %s: %s", deviceID, command)
		handler := c.getControlHandler()
		if handler != nil {
			handler(deviceID, command)
		}
	}
}

// SetControlHandler registers the session control callback.
func (c *MQTTClient) SetControlHandler(handler ControlHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controlHandler = handler
}

func (c *MQTTClient) getControlHandler() ControlHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.controlHandler
}

// deriveControlTopic converts an observation topic to its control topic.
// Example: "caliper/phone1/observations" -> "caliper/phone1/control".
func deriveControlTopic(observationTopic string) string {
	parts := strings.Split(observationTopic, "/")
	parts[len(parts)-1] = "control"
	return strings.Join(parts, "/")
}

// IsConnected returns true if the MQTT client is connected. Safe on a
// nil client (MQTT disabled).
func (c *MQTTClient) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection.
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("[MQTT] disconnecting...")
		c.client.Disconnect(250)
		c.setConnected(false)
	}
}

// Raw returns the underlying paho client, for wiring the publisher.
func (c *MQTTClient) Raw() mqtt.Client {
	if c == nil {
		return nil
	}
	return c.client
}

// observationPayload is the JSON wire format published by the detector.
type observationPayload struct {
	Corners      [][2]float64     `json:"corners"`
	Confidence   float64          `json:"confidence"`
	CenterDepth  float64          `json:"centerDepth"`
	CornerDepths []float64        `json:"cornerDepths,omitempty"`
	DeviceNormal [3]float64       `json:"deviceNormal"`
	TimestampMS  int64            `json:"timestampMs"`
	Intrinsics   CameraIntrinsics `json:"intrinsics"`
	Pose         []float64        `json:"pose,omitempty"`
}

// DecodeObservation parses a detector observation payload.
func DecodeObservation(deviceID string, payload []byte) (*Observation, error) {
	var p observationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("parsing observation JSON: %w", err)
	}
	if len(p.Corners) != 4 {
		return nil, fmt.Errorf("observation needs 4 corners, got %d", len(p.Corners))
	}

	obs := &Observation{
		DeviceID:    deviceID,
		Confidence:  p.Confidence,
		CenterDepth: p.CenterDepth,
		DeviceNormal: r3.Vector{
			X: p.DeviceNormal[0],
			Y: p.DeviceNormal[1],
			Z: p.DeviceNormal[2],
		},
		Timestamp:  time.UnixMilli(p.TimestampMS),
		Intrinsics: p.Intrinsics,
	}
	for i := 0; i < 4; i++ {
		obs.Corners[i] = orb.Point{p.Corners[i][0], p.Corners[i][1]}
	}
	if len(p.CornerDepths) == 4 {
		var depths [4]float64
		copy(depths[:], p.CornerDepths)
		obs.CornerDepths = &depths
	}
	if len(p.Pose) == 16 {
		copy(obs.Pose[:], p.Pose)
	} else if len(p.Pose) != 0 {
		return nil, fmt.Errorf("pose needs 16 values (row-major 4x4), got %d", len(p.Pose))
	}
	return obs, nil
}
