// Package amqpbroker implements broker.Broker on RabbitMQ.
//
// A Client owns one connection and one confirm-mode channel. It never
// reconnects on its own: when the connection or channel drops the client
// moves to Disconnected and every operation fails with
// broker.ErrChannelUnavailable until Connect is called again.
package amqpbroker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/swiftlogistics/platform/pkg/broker"
)

type Config struct {
	URL string

	// ConnectionName shows up in the RabbitMQ management UI.
	ConnectionName string

	// DialTimeout bounds the TCP and AMQP handshake. Zero means 30s.
	DialTimeout time.Duration

	// PublishTimeout bounds the wait for a publisher confirm when the
	// caller's context has no deadline. Zero means 5s.
	PublishTimeout time.Duration

	Logger *slog.Logger
}

type Client struct {
	cfg Config
	log *slog.Logger

	mu    sync.Mutex
	state broker.State
	conn  *amqp.Connection
	ch    *amqp.Channel
}

var _ broker.Broker = (*Client)(nil)

func New(cfg Config) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{cfg: cfg, log: log.With("component", "amqp")}
}

func (c *Client) State() broker.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the broker, opens a channel in confirm mode and starts the
// close and return listeners. It is a no-op while already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case broker.Connected:
		c.mu.Unlock()
		return nil
	case broker.Connecting, broker.Closing:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("amqp: connect while %s", state)
	}
	c.state = broker.Connecting
	c.mu.Unlock()

	conn, ch, err := c.dial(ctx)
	if err != nil {
		c.setState(broker.Disconnected)
		c.log.Error("connect failed", "error", err)
		return err
	}

	c.mu.Lock()
	c.conn, c.ch = conn, ch
	c.state = broker.Connected
	c.mu.Unlock()

	go c.watch(conn, ch)
	go c.drainReturns(ch.NotifyReturn(make(chan amqp.Return, 16)))

	c.log.Info("connected", "connection_name", c.cfg.ConnectionName)
	return nil
}

func (c *Client) dial(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	props := amqp.NewConnectionProperties()
	if c.cfg.ConnectionName != "" {
		props.SetClientConnectionName(c.cfg.ConnectionName)
	}

	conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{
		Properties: props,
		Heartbeat:  10 * time.Second,
		Dial: func(network, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: c.cfg.DialTimeout}
			return d.DialContext(ctx, network, addr)
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("amqp: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp: open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("amqp: enable confirms: %w", err)
	}
	return conn, ch, nil
}

// watch marks the client disconnected when either the connection or the
// channel goes away. A dead channel takes the connection down with it
// since the client has no way to use the connection without one.
func (c *Client) watch(conn *amqp.Connection, ch *amqp.Channel) {
	connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	var reason *amqp.Error
	select {
	case reason = <-connClosed:
	case reason = <-chClosed:
	}

	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn, c.ch = nil, nil
		if c.state != broker.Closing {
			c.state = broker.Disconnected
		}
	}
	c.mu.Unlock()

	if !current {
		return
	}
	if reason != nil {
		c.log.Warn("connection lost", "code", reason.Code, "reason", reason.Reason, "server", reason.Server)
	}
	if !conn.IsClosed() {
		_ = conn.Close()
	}
}

func (c *Client) drainReturns(returns <-chan amqp.Return) {
	for r := range returns {
		c.log.Warn("unroutable message returned",
			"exchange", r.Exchange,
			"routing_key", r.RoutingKey,
			"message_id", r.MessageId,
			"reply_code", r.ReplyCode,
			"reply_text", r.ReplyText,
		)
	}
}

func (c *Client) setState(s broker.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) channel() (*amqp.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != broker.Connected || c.ch == nil {
		return nil, broker.ErrChannelUnavailable
	}
	return c.ch, nil
}

func (c *Client) Health(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != broker.Connected || c.conn == nil || c.conn.IsClosed() || c.ch.IsClosed() {
		return broker.ErrChannelUnavailable
	}
	return nil
}

// Close shuts the channel and connection. It is safe to call repeatedly
// and in any state.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == broker.Closing || (c.state == broker.Disconnected && c.conn == nil) {
		c.mu.Unlock()
		return nil
	}
	c.state = broker.Closing
	conn, ch := c.conn, c.ch
	c.conn, c.ch = nil, nil
	c.mu.Unlock()

	var errs []error
	if ch != nil {
		if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	c.setState(broker.Disconnected)
	c.log.Info("closed")
	return errors.Join(errs...)
}

// mapError translates server-side AMQP errors into broker sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		switch amqpErr.Code {
		case amqp.PreconditionFailed:
			return fmt.Errorf("%w: %s", broker.ErrTopologyMismatch, amqpErr.Reason)
		case amqp.NotFound:
			return fmt.Errorf("%w: %s", broker.ErrNotFound, amqpErr.Reason)
		}
	}
	if errors.Is(err, amqp.ErrClosed) {
		return broker.ErrChannelUnavailable
	}
	return err
}

func newConsumerTag() string {
	return "ctag-" + uuid.NewString()
}
