package rabbit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jcuenca6779/urbandrive/internal/config"
	"github.com/jcuenca6779/urbandrive/internal/domain"
	"github.com/jcuenca6779/urbandrive/pkg/e"
)

const (
	reconnectInitialDelay = 2 * time.Second
	reconnectMaxDelay     = 60 * time.Second
)

// Publisher owns one long-lived connection to the topic exchange. A mutex
// guards (re)connection so only one attempt runs at a time; steady-state
// publishes go through the channel without taking it.
type Publisher struct {
	logger   *slog.Logger
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	connected    atomic.Bool
	reconnecting atomic.Bool
	closed       atomic.Bool
}

func NewPublisher(cfg config.RabbitConfig, logger *slog.Logger) *Publisher {
	return &Publisher{
		logger:   logger,
		url:      cfg.URL,
		exchange: cfg.Exchange,
	}
}

// Start establishes the initial connection. Callers may treat a failure as
// non-fatal: the first publish retries the connect.
func (p *Publisher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connect()
}

// connect must be called with p.mu held.
func (p *Publisher) connect() error {
	const op = "rabbit.Publisher.connect"

	// Drop whatever is left of the previous session; a channel-level fault
	// can leave the connection itself open.
	if p.ch != nil && !p.ch.IsClosed() {
		_ = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Close()
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.connected.Store(false)
		return e.Wrap(op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		p.connected.Store(false)
		_ = conn.Close()
		return e.Wrap(op, err)
	}

	if err := ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		p.connected.Store(false)
		_ = ch.Close()
		_ = conn.Close()
		return e.Wrap(op, err)
	}

	p.conn = conn
	p.ch = ch
	p.connected.Store(true)

	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	go p.watchClose(closeCh)

	p.logger.Info("connected to RabbitMQ, exchange declared",
		slog.String("exchange", p.exchange))
	return nil
}

func (p *Publisher) watchClose(closeCh chan *amqp.Error) {
	amqpErr, ok := <-closeCh
	if !ok || p.closed.Load() {
		return
	}

	p.connected.Store(false)
	p.logger.Warn("RabbitMQ connection closed unexpectedly",
		slog.String("error", amqpErr.Error()))

	if p.reconnecting.CompareAndSwap(false, true) {
		go p.reconnectLoop()
	}
}

// reconnectLoop retries forever with capped exponential backoff until the
// connection is back or the publisher is closed.
func (p *Publisher) reconnectLoop() {
	defer p.reconnecting.Store(false)

	delay := reconnectInitialDelay
	for !p.closed.Load() {
		time.Sleep(delay)

		p.mu.Lock()
		if p.connected.Load() {
			p.mu.Unlock()
			return
		}
		err := p.connect()
		p.mu.Unlock()

		if err == nil {
			p.logger.Info("RabbitMQ reconnected")
			return
		}

		p.logger.Error("RabbitMQ reconnect failed",
			slog.Any("error", err),
			slog.Duration("next_attempt_in", delay))
		delay = nextDelay(delay)
	}
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > reconnectMaxDelay {
		d = reconnectMaxDelay
	}
	return d
}

// ensureConnected returns the channel to publish on. The pointer is captured
// while the mutex is held so callers never race a background reconnect
// swapping p.ch.
func (p *Publisher) ensureConnected() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected.Load() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p.ch, nil
}

// Publish sends one persistent event with routing key = event type. A failed
// publish is returned to the caller and never retried here; whether that is
// acceptable is the caller's decision.
func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	const op = "rabbit.Publisher.Publish"

	if p.closed.Load() {
		return e.Wrap(op, e.ErrNotConnected)
	}
	ch, err := p.ensureConnected()
	if err != nil {
		p.logger.Error("publish skipped, broker unreachable",
			slog.String("event_type", ev.Type),
			slog.Any("error", err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return e.Wrap(op, err)
	}

	err = ch.PublishWithContext(ctx,
		p.exchange,
		ev.Type, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		p.connected.Store(false)
		p.logger.Error("publish failed",
			slog.String("event_type", ev.Type),
			slog.Int64("user_id", ev.UserID),
			slog.Any("error", err))
		return e.Wrap(op, err)
	}

	p.logger.Info("event published",
		slog.String("event_type", ev.Type),
		slog.Int64("user_id", ev.UserID))
	return nil
}

func (p *Publisher) Close() {
	p.closed.Store(true)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		_ = p.ch.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Close()
	}
	p.connected.Store(false)
	p.logger.Info("RabbitMQ publisher closed")
}
