// internal/alerting/sinks.go
package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"

	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
)

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes alerts as JSON to a topic, keyed by metric so each
// metric's alerts stay ordered within a partition.
type KafkaSink struct {
	writer kafkaMessageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
	}}
}

func (*KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, alert telemetry.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(alert.Metric),
		Value: payload,
		Time:  alert.Timestamp,
		Headers: []kafka.Header{
			{Key: "tier", Value: []byte(alert.Tier)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.writer.Close() }

// MQTTSink publishes alerts to <topic>/<metric>.
type MQTTSink struct {
	client  mqtt.Client
	topic   string
	timeout time.Duration
}

// DialMQTT connects to broker and returns a sink on topic.
func DialMQTT(broker, clientID, topic string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return NewMQTTSink(c, topic), nil
}

func NewMQTTSink(client mqtt.Client, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, timeout: 5 * time.Second}
}

func (*MQTTSink) Name() string { return "mqtt" }

func (s *MQTTSink) Publish(_ context.Context, alert telemetry.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	token := s.client.Publish(s.topic+"/"+string(alert.Metric), 1, false, payload)
	if !token.WaitTimeout(s.timeout) {
		return errors.New("mqtt publish timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
