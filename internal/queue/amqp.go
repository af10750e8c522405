package queue

import (
	"context"
	"fmt"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPConfig carries the broker connection settings. Nothing here is read
// from the process environment; callers build it from their own configuration.
type AMQPConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	Heartbeat time.Duration
}

// AMQPConnector opens RabbitMQ connections.
type AMQPConnector struct {
	cfg AMQPConfig
}

func NewAMQPConnector(cfg AMQPConfig) *AMQPConnector {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 10 * time.Second
	}
	return &AMQPConnector{cfg: cfg}
}

// Connect dials the broker and opens a channel.
func (c *AMQPConnector) Connect(ctx context.Context) (Broker, error) {
	addr := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		url.QueryEscape(c.cfg.User),
		url.QueryEscape(c.cfg.Password),
		c.cfg.Host,
		c.cfg.Port,
	)
	conn, err := amqp.DialConfig(addr, amqp.Config{Heartbeat: c.cfg.Heartbeat})
	if err != nil {
		return nil, fmt.Errorf("amqp dial %s:%d: %w", c.cfg.Host, c.cfg.Port, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp open channel: %w", err)
	}
	return &amqpBroker{conn: conn, ch: ch}, nil
}

type amqpBroker struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func (b *amqpBroker) Declare(ctx context.Context, name string) error {
	_, err := b.ch.QueueDeclare(
		name,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return fmt.Errorf("amqp declare %q: %w", name, err)
	}
	return nil
}

func (b *amqpBroker) Publish(ctx context.Context, queue string, body []byte) error {
	err := b.ch.PublishWithContext(ctx,
		"",    // default exchange
		queue, // routing key = queue name
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("amqp publish to %q: %w", queue, err)
	}
	return nil
}

func (b *amqpBroker) Get(ctx context.Context, queue string) ([]byte, bool, error) {
	msg, ok, err := b.ch.Get(queue, true /* autoAck */)
	if err != nil {
		return nil, false, fmt.Errorf("amqp get from %q: %w", queue, err)
	}
	if !ok {
		return nil, false, nil
	}
	return msg.Body, true, nil
}

func (b *amqpBroker) Close() error {
	chErr := b.ch.Close()
	connErr := b.conn.Close()
	if chErr != nil {
		return chErr
	}
	return connErr
}
