package publisher

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jgoulah/gridmeter/internal/config"
	"github.com/jgoulah/gridmeter/pkg/models"
	"github.com/jgoulah/gridmeter/pkg/wire"
)

// Publisher sends usage readings to Home Assistant and/or an MQTT broker
type Publisher struct {
	client     mqtt.Client
	mqttConfig config.MQTTConfig
	haConfig   config.HAConfig
	httpClient *http.Client
}

// New creates a new publisher (supports both MQTT and HA HTTP API)
func New(mqttCfg config.MQTTConfig, haCfg config.HAConfig) (*Publisher, error) {
	if err := validateHA(haCfg); err != nil {
		return nil, err
	}

	var client mqtt.Client
	if mqttCfg.Enabled {
		if mqttCfg.Broker == "" {
			return nil, fmt.Errorf("MQTT broker address is required when enabled")
		}

		clientID := mqttCfg.ClientID
		if clientID == "" {
			clientID = "gridmeter-" + uuid.NewString()[:8]
		}

		// Configure MQTT client options
		opts := mqtt.NewClientOptions()
		opts.AddBroker(fmt.Sprintf("tcp://%s", mqttCfg.Broker))
		opts.SetClientID(clientID)
		opts.SetAutoReconnect(true)
		opts.SetConnectRetry(true)
		opts.SetConnectTimeout(10 * time.Second)

		if mqttCfg.Username != "" {
			opts.SetUsername(mqttCfg.Username)
		}
		if mqttCfg.Password != "" {
			opts.SetPassword(mqttCfg.Password)
		}

		client = mqtt.NewClient(opts)
		if err := connect(client, connectTimeout); err != nil {
			return nil, err
		}
	}

	return newPublisher(client, mqttCfg, haCfg), nil
}

var connectTimeout = 10 * time.Second

// connect waits for the initial connection; with connect retry enabled the
// token only completes once a broker answers.
func connect(client mqtt.Client, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return fmt.Errorf("connecting to MQTT broker: timed out after %s", timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}
	return nil
}

func newPublisher(client mqtt.Client, mqttCfg config.MQTTConfig, haCfg config.HAConfig) *Publisher {
	return &Publisher{
		client:     client,
		mqttConfig: mqttCfg,
		haConfig:   haCfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether at least one destination is configured
func (p *Publisher) Enabled() bool {
	return p.haConfig.Enabled || p.client != nil
}

// Publish sends a reading to every enabled destination
func (p *Publisher) Publish(reading models.UsageData) error {
	if !reading.Method.IsValid() {
		return &models.InvalidUsageMethodError{Value: fmt.Sprintf("%d", reading.Method)}
	}
	if !p.Enabled() {
		return fmt.Errorf("neither Home Assistant nor MQTT publishing is enabled in config")
	}

	if p.haConfig.Enabled {
		if err := p.PublishHA(reading); err != nil {
			return fmt.Errorf("home assistant: %w", err)
		}
	}
	if p.client != nil {
		if err := p.PublishMQTT(reading); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	return nil
}

// Topic returns the MQTT topic for a reading: <prefix>/<service>/<method slug>
func Topic(prefix string, reading models.UsageData) string {
	service := reading.Service
	if service == "" {
		service = "unknown"
	}
	return fmt.Sprintf("%s/%s/%s", prefix, service, reading.Method.Slug())
}

// MQTTPayload encodes a reading in the configured MQTT format
func MQTTPayload(format string, reading models.UsageData) ([]byte, error) {
	switch format {
	case "cbor":
		return wire.EncodeUsage(reading)
	case "", "json":
		return json.Marshal(reading)
	default:
		return nil, fmt.Errorf("unsupported MQTT payload format %q", format)
	}
}

// PublishMQTT publishes a reading to the broker with QoS 1
func (p *Publisher) PublishMQTT(reading models.UsageData) error {
	if p.client == nil {
		return fmt.Errorf("MQTT publishing is not enabled in config")
	}

	payload, err := MQTTPayload(p.mqttConfig.Format, reading)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	topic := Topic(p.mqttConfig.GetTopicPrefix(), reading)
	token := p.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("publishing to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %s: %w", topic, err)
	}
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
