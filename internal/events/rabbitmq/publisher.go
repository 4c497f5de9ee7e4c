// Package rabbitmq publishes domain events to a RabbitMQ topic exchange,
// using the event type as the routing key.
package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/streadway/amqp"

	"parcel-sorter/internal/common/errors"
	"parcel-sorter/internal/common/logging"
	"parcel-sorter/internal/events"
)

// Config holds the RabbitMQ backend settings.
type Config struct {
	URL      string
	Exchange string
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.ConfigError("rabbitmq url is required")
	}
	if c.Exchange == "" {
		return errors.ConfigError("rabbitmq exchange is required")
	}
	return nil
}

// Publisher implements events.Publisher over a single AMQP connection.
// Publishes are serialized on one channel; the sorter's event volume does
// not warrant a connection pool.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   logging.Logger
}

// NewPublisher connects to RabbitMQ and declares the durable topic exchange.
func NewPublisher(config *Config) (*Publisher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, errors.ConnectionError("failed to connect to RabbitMQ", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.ConnectionError("failed to open RabbitMQ channel", err)
	}

	if err := channel.ExchangeDeclare(config.Exchange, "topic", true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, errors.InternalError("failed to declare exchange "+config.Exchange, err)
	}

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: config.Exchange,
		logger: logging.WithFields(
			logging.String("component", "rabbitmq-publisher"),
			logging.String("exchange", config.Exchange),
		),
	}, nil
}

// Publish sends one event as a persistent JSON message routed by event type.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return errors.InternalError("failed to marshal event", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return errors.ConnectionError("rabbitmq publisher is closed", nil)
	}

	err = p.channel.Publish(
		p.exchange,
		string(event.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
	if err != nil {
		return errors.ConnectionError("failed to publish event to RabbitMQ", err)
	}

	p.logger.Debug("event published",
		logging.String("event_type", string(event.Type)),
		logging.String("event_id", event.ID),
	)
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
