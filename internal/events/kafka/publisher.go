// Package kafka publishes domain events to a Kafka topic, keyed by parcel id
// so every event for one parcel lands on the same partition in order.
package kafka

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	"parcel-sorter/internal/common/errors"
	"parcel-sorter/internal/common/logging"
	"parcel-sorter/internal/events"
)

// Config holds the Kafka backend settings.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.ConfigError("kafka brokers are required")
	}
	if c.Topic == "" {
		return errors.ConfigError("kafka topic is required")
	}
	return nil
}

// Publisher implements events.Publisher on a confluent-kafka-go producer.
type Publisher struct {
	producer *kafka.Producer
	topic    string
	logger   logging.Logger
}

// NewPublisher creates a connected Kafka producer.
func NewPublisher(config *Config) (*Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientID := config.ClientID
	if clientID == "" {
		clientID = "parcel-sorter"
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(config.Brokers, ","),
		"client.id":         clientID,
	})
	if err != nil {
		return nil, errors.ConnectionError("failed to create Kafka producer", err)
	}

	return &Publisher{
		producer: producer,
		topic:    config.Topic,
		logger: logging.WithFields(
			logging.String("component", "kafka-publisher"),
			logging.String("topic", config.Topic),
		),
	}, nil
}

// Publish sends one event and waits for the broker's delivery report, so a
// failed produce surfaces to the caller instead of vanishing into the
// producer's background queue.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.InternalError("failed to marshal event", err)
	}

	deliveries := make(chan kafka.Event, 1)
	message := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &p.topic,
			Partition: kafka.PartitionAny,
		},
		Key:       []byte(event.ParcelID),
		Value:     body,
		Timestamp: event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.producer.Produce(message, deliveries); err != nil {
		return errors.ConnectionError("failed to produce event to Kafka", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case delivery := <-deliveries:
		report, ok := delivery.(*kafka.Message)
		if !ok {
			return errors.InternalError("unexpected Kafka delivery report", nil)
		}
		if report.TopicPartition.Error != nil {
			return errors.ConnectionError("Kafka delivery failed", report.TopicPartition.Error)
		}
	}

	p.logger.Debug("event published",
		logging.String("event_type", string(event.Type)),
		logging.String("event_id", event.ID),
	)
	return nil
}

// Close flushes outstanding messages and shuts the producer down.
func (p *Publisher) Close() error {
	p.producer.Flush(5000)
	p.producer.Close()
	return nil
}
