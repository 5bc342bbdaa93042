package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Envelope wraps an event with its bus topic for transports that publish
// everything to a single destination topic (MQTT, Kafka).
type Envelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// mqttClient is the subset of mqtt.Client used by MQTTPublisher.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes JSON envelopes to a single MQTT topic.
type MQTTPublisher struct {
	client  mqttClient
	topic   string
	timeout time.Duration
}

// NewMQTTPublisher connects to broker (e.g. "tcp://localhost:1883") and
// publishes every event to topic at QoS 1.
func NewMQTTPublisher(broker, topic, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT at %s: %w", broker, token.Error())
	}
	return newMQTTPublisher(client, topic), nil
}

func newMQTTPublisher(client mqttClient, topic string) *MQTTPublisher {
	return &MQTTPublisher{client: client, topic: topic, timeout: 5 * time.Second}
}

func (p *MQTTPublisher) Publish(ctx context.Context, topic string, event any) error {
	payload, err := encodeEnvelope(topic, event)
	if err != nil {
		return err
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return fmt.Errorf("publishing to MQTT topic %s: timed out", p.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to MQTT topic %s: %w", p.topic, err)
	}
	return nil
}

func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}

func encodeEnvelope(topic string, event any) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	return json.Marshal(Envelope{Topic: topic, Data: data})
}
