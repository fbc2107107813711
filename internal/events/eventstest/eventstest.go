// Package eventstest captures published events in tests.
package eventstest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/broker/memory"
	"github.com/swiftlogistics/platform/pkg/idx"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

// NewBroker returns a connected in-memory broker with topology declared.
func NewBroker(t *testing.T, topologies ...broker.Topology) *memory.Broker {
	t.Helper()
	b := memory.New(slogx.Discard())
	require.NoError(t, b.Connect(context.Background()))
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, broker.Merge(topologies...).Declare(context.Background(), b))
	return b
}

// Capture receives every message published to a set of exchanges.
type Capture struct {
	sub broker.Subscription
}

// Listen binds a private queue to every exchange with pattern "#".
func Listen(t *testing.T, b broker.Broker, exchanges ...string) *Capture {
	t.Helper()
	ctx := context.Background()
	name := "test.capture." + idx.New().String()

	require.NoError(t, b.DeclareQueue(ctx, broker.QueueSpec{Name: name}))
	for _, ex := range exchanges {
		require.NoError(t, b.BindQueue(ctx, broker.Binding{Queue: name, Exchange: ex, Pattern: "#"}))
	}

	sub, err := b.Subscribe(ctx, name, broker.SubscribeOptions{Prefetch: 100})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Cancel() })
	return &Capture{sub: sub}
}

// Next waits for the next message and acknowledges it.
func (c *Capture) Next(t *testing.T) broker.Message {
	t.Helper()
	select {
	case d, ok := <-c.sub.Deliveries():
		require.True(t, ok, "capture subscription closed")
		require.NoError(t, d.Ack())
		return d.Message
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return broker.Message{}
	}
}

// Expect waits for the next message, checks its routing key and decodes it
// into v.
func (c *Capture) Expect(t *testing.T, routingKey string, v any) broker.Message {
	t.Helper()
	msg := c.Next(t)
	require.Equal(t, routingKey, msg.RoutingKey)
	if v != nil {
		require.NoError(t, broker.Decode(msg, v))
	}
	return msg
}

// None asserts nothing else arrives shortly.
func (c *Capture) None(t *testing.T) {
	t.Helper()
	select {
	case d, ok := <-c.sub.Deliveries():
		if ok {
			t.Fatalf("unexpected event %q", d.RoutingKey)
		}
	case <-time.After(50 * time.Millisecond):
	}
}
