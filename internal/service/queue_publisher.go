// Package service holds the outbound adapters of the booking workflow:
// event publishers for RabbitMQ and NATS.  Publish errors are logged and
// returned so callers may ignore them without failing the request.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	q "github.com/iliyamo/fuchiball-booking/internal/queue"
)

// AMQPPublisher publishes events to the topic exchange over one long-lived
// connection, redialing lazily after the broker drops it.
type AMQPPublisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := q.DeclareExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("exchange declare: %w", err)
	}
	p.ch = ch
	return ch, nil
}

// Publish sends event as a persistent JSON message with routing key key.
func (p *AMQPPublisher) Publish(ctx context.Context, key string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).WithField("key", key).Error("rabbitmq: marshal event failed")
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("rabbitmq: no channel")
		return err
	}
	err = ch.PublishWithContext(ctx, q.Exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		log.WithError(err).WithField("key", key).Warn("rabbitmq: publish failed")
		return err
	}
	return nil
}

// Close releases the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

// NopPublisher drops every event.  It stands in when no broker is
// configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, key string, event any) error {
	log.WithField("key", key).Debug("events disabled; dropping event")
	return nil
}
