package rabbit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jcuenca6779/urbandrive/internal/config"
	"github.com/jcuenca6779/urbandrive/internal/domain"
	"github.com/jcuenca6779/urbandrive/pkg/e"
)

const consumerRetryDelay = 5 * time.Second

// MessageHandler processes one delivery body. Returning nil acknowledges the
// message; any error drops it without requeue.
type MessageHandler interface {
	Handle(ctx context.Context, body []byte) error
}

// Consumer binds a durable queue to the incident-lifecycle exchange and
// feeds each delivery to the handler. It reconnects forever until the
// context is cancelled.
type Consumer struct {
	logger      *slog.Logger
	url         string
	exchange    string
	queue       string
	routingKeys []string
	handler     MessageHandler

	wg sync.WaitGroup
}

func NewConsumer(cfg config.RabbitConfig, handler MessageHandler, logger *slog.Logger) *Consumer {
	return &Consumer{
		logger:   logger,
		url:      cfg.URL,
		exchange: cfg.Exchange,
		queue:    cfg.Queue,
		routingKeys: []string{
			domain.EventReportCreated,
			domain.EventReportVerified,
			// Legacy producers still publish verified-class events under the
			// old name.
			domain.EventReportValidated,
		},
		handler: handler,
	}
}

// Start launches the consume loop in the background. Cancel the context to
// stop, then Wait for the loop to drain.
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

func (c *Consumer) Wait() {
	c.wg.Wait()
}

func (c *Consumer) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			c.logger.Info("consumer stopped", slog.String("reason", ctx.Err().Error()))
			return
		}

		if err := c.consume(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			c.logger.Error("consumer connection lost",
				slog.Any("error", err),
				slog.Duration("retry_in", consumerRetryDelay))

			select {
			case <-ctx.Done():
			case <-time.After(consumerRetryDelay):
			}
		}
	}
}

func (c *Consumer) consume(ctx context.Context) error {
	const op = "rabbit.Consumer.consume"

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return e.Wrap(op, err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		c.exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return e.Wrap(op, err)
	}

	queue, err := ch.QueueDeclare(
		c.queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return e.Wrap(op, err)
	}

	for _, key := range c.routingKeys {
		if err := ch.QueueBind(queue.Name, key, c.exchange, false, nil); err != nil {
			return e.Wrap(op, err)
		}
		c.logger.Info("queue bound",
			slog.String("queue", queue.Name),
			slog.String("exchange", c.exchange),
			slog.String("routing_key", key))
	}

	deliveries, err := ch.Consume(
		queue.Name,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return e.Wrap(op, err)
	}

	c.logger.Info("consuming", slog.String("queue", queue.Name))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return e.Wrap(op, e.ErrNotConnected)
			}
			c.dispatch(ctx, d)
		}
	}
}

// dispatch acks on success and drops the delivery without requeue on any
// processing error; poison messages are not retried and no dead-letter
// exchange is declared.
func (c *Consumer) dispatch(ctx context.Context, d amqp.Delivery) {
	err := c.handler.Handle(ctx, d.Body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("ack failed", slog.Any("error", ackErr))
		}
		return
	}

	if errors.Is(err, e.ErrMalformedEvent) {
		c.logger.Error("dropping malformed message",
			slog.String("routing_key", d.RoutingKey),
			slog.Any("error", err))
	} else {
		c.logger.Error("message processing failed, dropping",
			slog.String("routing_key", d.RoutingKey),
			slog.Any("error", err))
	}

	if nackErr := d.Nack(false, false); nackErr != nil {
		c.logger.Error("nack failed", slog.Any("error", nackErr))
	}
}
