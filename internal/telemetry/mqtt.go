package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hvac_gateway/internal/models"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQoS            = 1
)

// MQTTConfig configures NewMQTTSink.
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	// Topic may contain {device}, replaced with the device name.
	Topic  string
	Device string
}

// publisher is the part of paho.Client the sink uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes each snapshot as retained JSON, so new subscribers get
// the latest state straight away.
type MQTTSink struct {
	client publisher
	topic  string
}

// NewMQTTSink connects to the broker.
func NewMQTTSink(cfg MQTTConfig) (*MQTTSink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "hvac-gateway"
	}
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	if err := connect(client, cfg.Broker, mqttConnectTimeout); err != nil {
		return nil, err
	}
	return newMQTTSink(client, cfg.Topic, cfg.Device), nil
}

// connector is the part of paho.Client used while connecting.
type connector interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
}

// connect waits for the first connection. On failure the client is
// disconnected so its retry loop stops.
func connect(client connector, broker string, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return nil
}

func newMQTTSink(client publisher, topic, device string) *MQTTSink {
	if topic == "" {
		topic = "hvac/{device}/state"
	}
	return &MQTTSink{client: client, topic: strings.ReplaceAll(topic, "{device}", device)}
}

// Topic is the resolved publish topic.
func (s *MQTTSink) Topic() string { return s.topic }

// Publish sends the flat snapshot.
func (s *MQTTSink) Publish(ctx context.Context, st models.DeviceState) error {
	payload, err := json.Marshal(st.Flat())
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	token := s.client.Publish(s.topic, mqttQoS, true, payload)
	timeout := mqttPublishTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt publish to %s: timeout", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", s.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(1000)
	return nil
}
