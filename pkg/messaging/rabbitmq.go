package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"quiz-trainer/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes quiz events (bank loaded, session finished) so
// other tools can follow the learner's progress. Each event queue is durable
// and declared the first time it is used.
type RabbitMQClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	mu       sync.Mutex
	declared map[string]bool
}

func NewRabbitMQClient(cfg *config.RabbitMQConfig) (*RabbitMQClient, error) {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid event broker port %q: %w", cfg.Port, err)
	}
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.Host,
		Port:     port,
		Username: cfg.User,
		Password: cfg.Password,
		Vhost:    "/",
	}

	conn, err := amqp.Dial(uri.String())
	if err != nil {
		return nil, fmt.Errorf("failed to reach event broker at %s:%d: %w", cfg.Host, port, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open event channel: %w", err)
	}

	return &RabbitMQClient{
		conn:     conn,
		channel:  channel,
		declared: make(map[string]bool),
	}, nil
}

func (c *RabbitMQClient) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *RabbitMQClient) ensureQueue(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.declared[name] {
		return nil
	}
	// durable, kept when unused, shared, waits for the broker
	if _, err := c.channel.QueueDeclare(name, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare event queue %s: %w", name, err)
	}
	c.declared[name] = true
	return nil
}

// PublishJSON encodes event and delivers it as a persistent message on
// queueName through the default exchange.
func (c *RabbitMQClient) PublishJSON(ctx context.Context, queueName string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", queueName, err)
	}
	if err := c.ensureQueue(queueName); err != nil {
		return err
	}

	err = c.channel.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         queueName,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", queueName, err)
	}
	return nil
}
