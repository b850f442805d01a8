package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Exchange that carries reservation events.  Routing keys are the event
// types.
const (
	ExchangeName = "store-reservation.events"
	ExchangeType = "topic"
)

const publishTimeout = 3 * time.Second

// Publisher sends reservation events to a durable topic exchange over one
// long-lived connection.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	appID   string
	log     *zap.Logger
}

// NewPublisher dials url and declares the events exchange.
func NewPublisher(url, appID string, log *zap.Logger) (*Publisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	log.Info("publisher connected", zap.String("exchange", ExchangeName))
	return &Publisher{conn: conn, channel: ch, appID: appID, log: log}, nil
}

func declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		ExchangeName,
		ExchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

// Publish sends ev as a persistent JSON message routed by its type.  A
// closed channel is reopened once before giving up.
func (p *Publisher) Publish(ctx context.Context, ev ReservationEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.EventID,
		Type:         ev.Type,
		AppId:        p.appID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publishLocked(ctx, ev.Type, msg)
	if errors.Is(err, amqp.ErrClosed) {
		p.log.Warn("publisher channel closed, reopening")
		if rerr := p.reopenLocked(); rerr != nil {
			return rerr
		}
		err = p.publishLocked(ctx, ev.Type, msg)
	}
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

func (p *Publisher) publishLocked(ctx context.Context, key string, msg amqp.Publishing) error {
	if p.channel == nil {
		return amqp.ErrClosed
	}
	return p.channel.PublishWithContext(ctx, ExchangeName, key, false, false, msg)
}

func (p *Publisher) reopenLocked() error {
	if p.conn == nil || p.conn.IsClosed() {
		return fmt.Errorf("failed to reopen channel: %w", amqp.ErrClosed)
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to reopen channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		ch.Close()
		return err
	}
	p.channel = ch
	return nil
}

// IsHealthy reports whether the broker connection is open.
func (p *Publisher) IsHealthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && !p.conn.IsClosed()
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
