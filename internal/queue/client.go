// Package queue wraps RabbitMQ with a reconnecting connection, a fail-fast publisher
// and a pool of manually acknowledging consumers.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ErrNotReady is returned while the broker connection is down
var ErrNotReady = errors.New("broker connection not ready")

// Config holds the broker settings
type Config struct {
	URL             string
	Queue           string
	DeadLetterQueue string // empty disables dead-lettering
	ReconnectDelay  time.Duration
}

// Client owns the single broker connection of the process
type Client struct {
	cfg    Config
	logger zerolog.Logger
	dial   func(url string) (*amqp.Connection, error)

	mu      sync.RWMutex
	conn    *amqp.Connection
	pub     *amqp.Channel
	readyCh chan struct{} // closed while connected

	pubMu sync.Mutex
}

// NewClient creates a disconnected client. Call Run to connect.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 10 * time.Second
	}
	return &Client{
		cfg:     cfg,
		logger:  logger.With().Str("component", "queue").Logger(),
		dial:    amqp.Dial,
		readyCh: make(chan struct{}),
	}
}

// Queue is the name of the work queue
func (c *Client) Queue() string {
	return c.cfg.Queue
}

// Run keeps the connection alive until ctx is cancelled, redialling after a fixed delay
func (c *Client) Run(ctx context.Context) {
	for {
		closed, err := c.connect()
		if err != nil {
			c.logger.Error().Err(err).Dur("retry_in", c.cfg.ReconnectDelay).Msg("Failed to connect to RabbitMQ")
		} else {
			c.logger.Info().Str("queue", c.cfg.Queue).Msg("Connected to RabbitMQ")
			select {
			case <-ctx.Done():
				c.Close()
				return
			case amqpErr := <-closed:
				c.markDown()
				c.logger.Warn().Interface("reason", amqpErr).Msg("RabbitMQ connection closed, reconnecting")
			}
		}

		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *Client) connect() (chan *amqp.Error, error) {
	conn, err := c.dial(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declare(ch, c.cfg); err != nil {
		_ = conn.Close()
		return nil, err
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.mu.Lock()
	c.conn = conn
	c.pub = ch
	close(c.readyCh)
	c.mu.Unlock()

	return closed, nil
}

func declare(ch *amqp.Channel, cfg Config) error {
	var args amqp.Table
	if cfg.DeadLetterQueue != "" {
		if _, err := ch.QueueDeclare(cfg.DeadLetterQueue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter queue: %w", err)
		}
		args = amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": cfg.DeadLetterQueue,
		}
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	return nil
}

func (c *Client) markDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = nil
	c.pub = nil
	select {
	case <-c.readyCh:
		c.readyCh = make(chan struct{})
	default:
	}
}

// Ready reports whether the connection is up
func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// WaitReady blocks until the connection is up or ctx is done
func (c *Client) WaitReady(ctx context.Context) error {
	c.mu.RLock()
	ready := c.readyCh
	c.mu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) after() <-chan time.Time {
	return time.After(c.cfg.ReconnectDelay)
}

// Channel opens a new channel on the current connection
func (c *Client) Channel() (*amqp.Channel, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, ErrNotReady
	}
	return conn.Channel()
}

// Publish sends a persistent JSON message to the work queue. It fails fast with
// ErrNotReady instead of blocking while the broker is unreachable.
func (c *Client) Publish(ctx context.Context, body []byte) error {
	c.mu.RLock()
	ch := c.pub
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return ErrNotReady
	}

	c.pubMu.Lock()
	defer c.pubMu.Unlock()

	err := ch.PublishWithContext(ctx, "", c.cfg.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		if errors.Is(err, amqp.ErrClosed) {
			return ErrNotReady
		}
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close shuts the connection down
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	c.markDown()
	if conn != nil && !conn.IsClosed() {
		if err := conn.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("Error closing RabbitMQ connection")
		}
	}
}
