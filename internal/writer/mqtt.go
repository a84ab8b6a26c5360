// internal/writer/mqtt.go
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// publisher is the part of an MQTT client the sink needs.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTClient wraps a paho client.
type MQTTClient struct {
	client mqtt.Client
}

// DialMQTT connects to the broker with auto-reconnect.
func DialMQTT(cfg MQTTConfig) (*MQTTClient, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", cfg.Broker, token.Error())
	}

	return &MQTTClient{client: client}, nil
}

func (c *MQTTClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("mqtt: publish %s: %w", topic, token.Error())
	}
	return nil
}

func (c *MQTTClient) Close() error {
	c.client.Disconnect(250)
	return nil
}

// mqttSink publishes each record as JSON to <prefix>/<kind>/<source>.
type mqttSink struct {
	pub      publisher
	prefix   string
	qos      byte
	retained bool
}

func NewMQTTSink(pub publisher, prefix string, qos byte, retained bool) Writer {
	return &mqttSink{pub: pub, prefix: prefix, qos: qos, retained: retained}
}

// Topic returns the topic a record is published to.
func Topic(prefix string, rec Record) string {
	return fmt.Sprintf("%s/%s/%s", prefix, rec.Kind, rec.Source)
}

func (s *mqttSink) Write(_ context.Context, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("mqtt: encode: %w", err)
	}
	return s.pub.Publish(Topic(s.prefix, rec), s.qos, s.retained, payload)
}
