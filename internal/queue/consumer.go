package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ErrReject marks a message that can never succeed. Handler errors wrapping it
// are rejected without requeue and go to the dead-letter queue.
var ErrReject = errors.New("message rejected")

// Handler processes one message body. Errors wrapping ErrReject drop the message;
// any other error requeues it.
type Handler func(ctx context.Context, body []byte) error

// Consumer runs a fixed number of worker slots against the work queue
type Consumer struct {
	client  *Client
	workers int
	handler Handler
	logger  zerolog.Logger
}

// NewConsumer creates a consumer with the given number of worker slots
func NewConsumer(client *Client, workers int, handler Handler, logger zerolog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		client:  client,
		workers: workers,
		handler: handler,
		logger:  logger.With().Str("component", "consumer").Logger(),
	}
}

// Run blocks until ctx is cancelled. Each worker resubscribes after a reconnect.
func (c *Consumer) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.worker(ctx, id)
		}(i)
	}
	wg.Wait()
	c.logger.Info().Msg("Consumer stopped")
}

func (c *Consumer) worker(ctx context.Context, id int) {
	logger := c.logger.With().Int("worker", id).Logger()
	for {
		if err := c.client.WaitReady(ctx); err != nil {
			return
		}

		if err := c.consume(ctx, id); err != nil {
			logger.Warn().Err(err).Msg("Subscription ended")
			select {
			case <-ctx.Done():
				return
			case <-c.client.after():
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// consume drains one subscription until its channel closes or ctx is done
func (c *Consumer) consume(ctx context.Context, id int) error {
	ch, err := c.client.Channel()
	if err != nil {
		return err
	}
	defer func() {
		if !ch.IsClosed() {
			_ = ch.Close()
		}
	}()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.client.Queue(), fmt.Sprintf("chatlens-%d", id), false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks after successful processing. Rejected messages are dead-lettered,
// other failures are requeued after the reconnect delay, and a delivery caught by
// shutdown is left unacked so the broker redelivers it.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	err := c.handler(ctx, d.Body)
	if err == nil {
		if err := d.Ack(false); err != nil {
			c.logger.Error().Err(err).Msg("Failed to ack message")
		}
		return
	}

	logger := c.logger.With().
		Err(err).
		Uint64("delivery_tag", d.DeliveryTag).
		Int("bytes", len(d.Body)).
		Logger()

	switch {
	case errors.Is(err, ErrReject):
		logger.Error().Msg("Rejecting message")
		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.Error().Err(nackErr).Msg("Failed to nack message")
		}
	case ctx.Err() != nil:
		logger.Info().Msg("Shutting down, leaving message for redelivery")
	default:
		logger.Warn().Msg("Processing failed, requeueing message")
		select {
		case <-ctx.Done():
			return
		case <-c.client.after():
		}
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error().Err(nackErr).Msg("Failed to requeue message")
		}
	}
}
