// Package amqp publishes and consumes ledger events over RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	applog "cambi/internal/log"
)

const (
	publishTimeout = 5 * time.Second
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
)

var (
	// ErrChannelClosed is returned by Consume when the broker closes the
	// delivery channel.
	ErrChannelClosed = errors.New("message channel closed")
	// ErrPublishUnavailable is returned while the publish breaker is open.
	ErrPublishUnavailable = errors.New("circuit breaker is open: event not published")
)

// Handler processes one event. Returning an error requeues the delivery.
type Handler func(ctx context.Context, ev *LedgerEvent) error

type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *applog.Logger
	breaker      *gobreaker.CircuitBreaker
	// dial (re)establishes conn and channel; connect outside tests.
	dial func() error

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
	closed  bool

	// dialMu keeps concurrent publishers from redialling at once.
	dialMu sync.Mutex
}

// NewClient dials the broker and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string, logger *applog.Logger) (*Client, error) {
	c := newClient(url, exchangeName, queueName, logger)
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func newClient(url, exchangeName, queueName string, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	logger = logger.WithComponent(applog.ComponentAMQP)
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
		breaker:      newPublishBreaker(openTimeout, logger),
	}
	c.dial = c.connect
	return c
}

func newPublishBreaker(timeout time.Duration, logger *applog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "amqp-publish",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WarnContext(context.Background(), "Circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := setup(channel, c.exchangeName, c.queueName); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		channel.Close()
		conn.Close()
		return ErrChannelClosed
	}
	c.conn, c.channel = conn, channel
	return nil
}

func setup(ch *amqp091.Channel, exchangeName, queueName string) error {
	err := ch.ExchangeDeclare(
		exchangeName, // name
		"direct",     // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key equals the queue name on the direct exchange.
	if err := ch.QueueBind(queueName, queueName, exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (c *Client) currentChannel() *amqp091.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// publishChannel returns an open channel, redialling if the broker dropped
// the previous connection. It runs inside the breaker, so a dead broker is
// only redialled once the breaker lets a trial request through.
func (c *Client) publishChannel() (*amqp091.Channel, error) {
	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	c.mu.Lock()
	ch, closed := c.channel, c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrChannelClosed
	}
	if ch != nil && !ch.IsClosed() {
		return ch, nil
	}

	c.closeConn()
	if err := c.dial(); err != nil {
		return nil, fmt.Errorf("reconnect: %w", err)
	}
	c.logger.InfoContext(context.Background(), "Reconnected to AMQP broker", "exchange", c.exchangeName)
	if ch = c.currentChannel(); ch == nil {
		return nil, ErrChannelClosed
	}
	return ch, nil
}

// PublishLedgerEvent publishes one event. It satisfies ledger.EventPublisher.
func (c *Client) PublishLedgerEvent(ctx context.Context, eventType, entryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := NewLedgerEvent(eventType, entryID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		ch, err := c.publishChannel()
		if err != nil {
			return nil, err
		}
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		return nil, ch.PublishWithContext(
			pubCtx,
			c.exchangeName, // exchange
			c.queueName,    // routing key
			false,          // mandatory
			false,          // immediate
			amqp091.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp091.Persistent,
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrPublishUnavailable
	}
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	c.logger.DebugContext(ctx, "Published ledger event",
		"type", eventType,
		applog.FieldEntryID, entryID,
		"exchange", c.exchangeName)
	return nil
}

// Consume delivers events to handler until ctx ends or the channel closes.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	ch := c.currentChannel()
	if ch == nil {
		return ErrChannelClosed
	}
	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming ledger events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return ErrChannelClosed
			}
			c.handleDelivery(ctx, delivery, handler)
		}
	}
}

// handleDelivery acks processed events, drops undecodable ones and requeues
// ones the handler failed on.
func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	ev, err := LedgerEventFromJSON(d.Body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Failed to unmarshal message", applog.FieldError, err)
		_ = d.Nack(false, false)
		return
	}

	if err := handler(ctx, ev); err != nil {
		c.logger.ErrorContext(ctx, "Failed to handle ledger event",
			applog.FieldError, err,
			"type", ev.Type,
			applog.FieldEntryID, ev.EntryID)
		_ = d.Nack(false, true)
		return
	}

	_ = d.Ack(false)
	c.logger.DebugContext(ctx, "Processed ledger event",
		"type", ev.Type,
		applog.FieldEntryID, ev.EntryID)
}

// Run consumes until ctx ends, reconnecting with exponential backoff when
// the broker connection drops.
func (c *Client) Run(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		err := c.Consume(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "AMQP connection lost, reconnecting",
			applog.FieldError, err,
			"attempt", attempt+1,
			"backoff", wait.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		c.closeConn()
		if err := c.dial(); err != nil {
			c.logger.WarnContext(ctx, "Reconnect failed", applog.FieldError, err)
			attempt++
			continue
		}
		attempt = 0
	}
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChannelClosed) || errors.Is(err, amqp091.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
