package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue receives every asset event.
const DefaultQueue = "lostfound.assets"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends events as persistent JSON messages to a durable queue
// on the default exchange.
type AMQPPublisher struct {
	mu     sync.Mutex
	conn   *amqp.Connection
	ch     amqpChannel
	queue  string
	logger logging.Logger
}

// DialAMQP connects, opens a channel and declares the queue.
func DialAMQP(url, queue string, logger logging.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("amqp queue declare: %w", err)
	}

	p := newAMQPPublisher(ch, queue, logger)
	p.conn = conn
	return p, nil
}

func newAMQPPublisher(ch amqpChannel, queue string, logger logging.Logger) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, queue: queue, logger: logger.With("module", "events")}
}

// Publish sends ev as a persistent JSON message to the queue.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At,
		Type:         ev.Type,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.logger.Warn(ctx, "publish failed", "type", ev.Type, "asset_id", ev.AssetID, "error", err)
		return fmt.Errorf("amqp publish: %w", err)
	}

	return nil
}

// Close releases the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
