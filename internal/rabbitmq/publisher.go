// Package rabbitmq publishes connection lifecycle and audit events to a
// topic exchange. When the broker is not configured or unreachable the
// service keeps running on a noop publisher.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrConnectionLost is returned once the broker connection has closed.
var ErrConnectionLost = errors.New("rabbitmq connection lost")

const publishTimeout = 5 * time.Second

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	PublishJSON(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// NewPublisher dials amqpURL and declares exchange as a durable topic.
// Any failure yields a noop publisher carrying the reason.
func NewPublisher(amqpURL, exchange string, log *slog.Logger) Publisher {
	if amqpURL == "" {
		return newNoop("empty amqp url", log)
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return newNoop(fmt.Sprintf("dial: %v", err), log)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return newNoop(fmt.Sprintf("open channel: %v", err), log)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return newNoop(fmt.Sprintf("declare exchange %q: %v", exchange, err), log)
	}

	p := &amqpPublisher{conn: conn, ch: ch, exchange: exchange, log: log.With("exchange", exchange)}
	go p.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))
	p.log.Info("rabbitmq publisher connected")
	return p
}

type amqpPublisher struct {
	conn     *amqp.Connection
	exchange string
	log      *slog.Logger
	lost     atomic.Bool

	// amqp channels must not be shared between concurrent publishers.
	mu sync.Mutex
	ch *amqp.Channel
}

func (p *amqpPublisher) watch(closed <-chan *amqp.Error) {
	if err, ok := <-closed; ok && err != nil {
		p.log.Error("rabbitmq connection closed", "code", err.Code, "reason", err.Reason)
	}
	p.lost.Store(true)
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return p.PublishJSON(ctx, routingKey, event, nil)
}

func (p *amqpPublisher) PublishJSON(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	if p.lost.Load() {
		return ErrConnectionLost
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", routingKey, err)
	}

	table := make(amqp.Table, len(headers))
	for key, value := range headers {
		table[key] = value
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         routingKey,
		Timestamp:    time.Now().UTC(),
		Headers:      table,
		Body:         body,
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	return p.conn.Close()
}

type noopPublisher struct {
	reason string
	log    *slog.Logger
}

func newNoop(reason string, log *slog.Logger) noopPublisher {
	log.Warn("rabbitmq disabled, events are only logged", "reason", reason)
	return noopPublisher{reason: reason, log: log}
}

func (p noopPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	return p.PublishJSON(ctx, routingKey, event, nil)
}

func (p noopPublisher) PublishJSON(_ context.Context, routingKey string, event any, headers map[string]string) error {
	p.log.Debug("rabbitmq noop publish", "routing_key", routingKey, "event", fmt.Sprintf("%T", event), "request_id", headers["x-request-id"])
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// PublisherMode reports "amqp" or "noop".
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

// PublisherNoopReason explains why a noop publisher is in use.
func PublisherNoopReason(p Publisher) string {
	if noop, ok := p.(noopPublisher); ok {
		return noop.reason
	}
	return ""
}
