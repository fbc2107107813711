package broker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/broker/memory"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

const (
	workQueue = "order-service.new-orders"
	deadQueue = "order-service.dead"
	eventsEx  = "swiftlogistics.orders"
	deadEx    = "swiftlogistics.dead-letter"
)

func setupServe(t *testing.T) *memory.Broker {
	t.Helper()
	b := memory.New(slogx.Discard())
	ctx := context.Background()
	require.NoError(t, b.Connect(ctx))
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, broker.Topology{
		Exchanges: []broker.ExchangeSpec{
			{Name: eventsEx, Kind: broker.Topic, Durable: true},
			{Name: deadEx, Kind: broker.Topic, Durable: true},
		},
		Queues: []broker.QueueSpec{
			{Name: workQueue, Durable: true},
			{Name: deadQueue, Durable: true},
		},
		Bindings: []broker.Binding{
			{Queue: workQueue, Exchange: eventsEx, Pattern: "order.created"},
			{Queue: deadQueue, Exchange: deadEx, Pattern: "#"},
		},
	}.Declare(ctx, b))
	return b
}

// serve runs Serve in the background and returns a stop function that
// cancels it and reports its result.
func serve(t *testing.T, b *memory.Broker, h broker.Handler, retry broker.RetryPolicy) func() error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := b.Subscribe(ctx, workQueue, broker.SubscribeOptions{Prefetch: 1})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- broker.Serve(ctx, sub, h, broker.ServeOptions{
			Queue:     workQueue,
			Retry:     retry,
			Publisher: b,
			Logger:    slogx.Discard(),
		})
	}()

	return func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("serve did not stop")
			return nil
		}
	}
}

func publishOrder(t *testing.T, b *memory.Broker) {
	t.Helper()
	ok, err := b.Publish(context.Background(), eventsEx, "order.created", map[string]string{"orderId": "o1"}, broker.DefaultPublishOptions())
	require.NoError(t, err)
	require.True(t, ok)
}

func settled(b *memory.Broker, queue string) func() bool {
	return func() bool { return b.Depth(queue) == 0 && b.Unacked(queue) == 0 }
}

func TestServeAcksOnSuccess(t *testing.T) {
	b := setupServe(t)
	var calls atomic.Int32
	stop := serve(t, b, func(context.Context, broker.Message) error {
		calls.Add(1)
		return nil
	}, broker.RetryPolicy{})

	publishOrder(t, b)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, settled(b, workQueue), time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
}

func TestServeUnlimitedRetryRequeues(t *testing.T) {
	b := setupServe(t)
	var calls atomic.Int32
	var lastRedelivered atomic.Bool
	stop := serve(t, b, func(_ context.Context, msg broker.Message) error {
		lastRedelivered.Store(msg.Redelivered)
		if calls.Add(1) < 3 {
			return errors.New("downstream unavailable")
		}
		return nil
	}, broker.RetryPolicy{})

	publishOrder(t, b)
	require.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, settled(b, workQueue), time.Second, 5*time.Millisecond)
	require.True(t, lastRedelivered.Load())
	require.NoError(t, stop())
}

func TestServeBoundedRetryDeadLetters(t *testing.T) {
	b := setupServe(t)
	var calls atomic.Int32
	stop := serve(t, b, func(context.Context, broker.Message) error {
		calls.Add(1)
		return errors.New("always fails")
	}, broker.RetryPolicy{MaxAttempts: 3, DeadLetterExchange: deadEx})

	publishOrder(t, b)
	require.Eventually(t, func() bool { return b.Depth(deadQueue) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, int32(3), calls.Load())
	require.Eventually(t, settled(b, workQueue), time.Second, 5*time.Millisecond)
	require.NoError(t, stop())

	sub, err := b.Subscribe(context.Background(), deadQueue, broker.SubscribeOptions{})
	require.NoError(t, err)
	defer sub.Cancel()

	d := <-sub.Deliveries()
	require.Equal(t, 3, broker.RetryCount(d.Headers))
	require.Equal(t, "order.created", d.RoutingKey)
	require.Equal(t, eventsEx, d.Exchange)
	require.Equal(t, eventsEx, d.Headers[broker.OriginalExchangeHeader])
	require.Equal(t, "order.created", d.Headers[broker.OriginalRoutingKeyHeader])
	require.Equal(t, "broker: handler failure: always fails", d.Headers[broker.FailureReasonHeader])
	require.NoError(t, d.Ack())
}

func TestServeRetryKeepsOriginalRouting(t *testing.T) {
	b := setupServe(t)
	seen := make(chan broker.Message, 3)
	var calls atomic.Int32
	stop := serve(t, b, func(_ context.Context, msg broker.Message) error {
		seen <- msg
		if calls.Add(1) < 3 {
			return errors.New("not yet")
		}
		return nil
	}, broker.RetryPolicy{MaxAttempts: 5, DeadLetterExchange: deadEx})

	publishOrder(t, b)

	first := <-seen
	require.Equal(t, "order.created", first.RoutingKey)
	require.NotContains(t, first.Headers, broker.OriginalRoutingKeyHeader)

	for attempt := 1; attempt <= 2; attempt++ {
		retry := <-seen
		require.Equal(t, workQueue, retry.RoutingKey, "retries go straight to the queue")
		require.Equal(t, attempt, broker.RetryCount(retry.Headers))
		require.Equal(t, eventsEx, retry.Headers[broker.OriginalExchangeHeader])
		require.Equal(t, "order.created", retry.Headers[broker.OriginalRoutingKeyHeader])
	}

	require.Eventually(t, settled(b, workQueue), time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
	require.Zero(t, b.Depth(deadQueue))
}

func TestServeUnlimitedRetryWaitsBackoff(t *testing.T) {
	b := setupServe(t)
	const backoff = 60 * time.Millisecond

	calls := make(chan time.Time, 2)
	var n atomic.Int32
	stop := serve(t, b, func(context.Context, broker.Message) error {
		calls <- time.Now()
		if n.Add(1) < 2 {
			return errors.New("downstream unavailable")
		}
		return nil
	}, broker.RetryPolicy{Backoff: backoff})

	publishOrder(t, b)
	first, second := <-calls, <-calls
	require.GreaterOrEqual(t, second.Sub(first), backoff)
	require.Eventually(t, settled(b, workQueue), time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
}

func TestServeBoundedRetryWithoutDeadLetterRejects(t *testing.T) {
	b := setupServe(t)
	var calls atomic.Int32
	stop := serve(t, b, func(context.Context, broker.Message) error {
		calls.Add(1)
		return errors.New("always fails")
	}, broker.RetryPolicy{MaxAttempts: 2})

	publishOrder(t, b)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, settled(b, workQueue), time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
	require.Equal(t, int32(2), calls.Load())
}

func TestServeRecoversPanics(t *testing.T) {
	b := setupServe(t)
	var calls atomic.Int32
	stop := serve(t, b, func(context.Context, broker.Message) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}, broker.RetryPolicy{})

	publishOrder(t, b)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, settled(b, workQueue), time.Second, 5*time.Millisecond)
	require.NoError(t, stop())
}

func TestServeRequeuesWhenRetryRepublishFails(t *testing.T) {
	b := setupServe(t)
	b.RejectPublishes(false)

	seen := make(chan broker.Message, 4)
	var calls atomic.Int32
	stop := serve(t, b, func(_ context.Context, msg broker.Message) error {
		seen <- msg
		if calls.Add(1) == 1 {
			b.RejectPublishes(true)
			return errors.New("first attempt fails")
		}
		return nil
	}, broker.RetryPolicy{MaxAttempts: 5})

	publishOrder(t, b)

	first := <-seen
	require.False(t, first.Redelivered)

	second := <-seen
	require.True(t, second.Redelivered, "original goes back when the retry copy is rejected")
	require.Zero(t, broker.RetryCount(second.Headers))
	require.NoError(t, stop())
}

func TestServeReportsLostSubscription(t *testing.T) {
	b := setupServe(t)
	sub, err := b.Subscribe(context.Background(), workQueue, broker.SubscribeOptions{})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- broker.Serve(context.Background(), sub, func(context.Context, broker.Message) error { return nil },
			broker.ServeOptions{Queue: workQueue, Logger: slogx.Discard()})
	}()

	require.NoError(t, b.Close())
	select {
	case err := <-done:
		require.ErrorIs(t, err, broker.ErrSubscriptionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return after the connection closed")
	}
}

func TestServeBoundedRetryNeedsPublisher(t *testing.T) {
	err := broker.Serve(context.Background(), nil, nil, broker.ServeOptions{Retry: broker.RetryPolicy{MaxAttempts: 2}})
	require.Error(t, err)
}
