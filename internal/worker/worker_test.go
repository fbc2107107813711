package worker_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/internal/worker"
	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/broker/memory"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

const (
	testExchange = "swiftlogistics.orders"
	testQueue    = "order-service.new-orders"
)

func testTopology() broker.Topology {
	return broker.Topology{
		Exchanges: []broker.ExchangeSpec{{Name: testExchange, Kind: broker.Topic, Durable: true}},
		Queues:    []broker.QueueSpec{{Name: testQueue, Durable: true}},
		Bindings:  []broker.Binding{{Queue: testQueue, Exchange: testExchange, Pattern: "order.*"}},
	}
}

func newWorker(t *testing.T, b broker.Broker, handler broker.Handler) *worker.Worker {
	t.Helper()
	w := worker.New(b, worker.Options{
		Name:             "test-worker",
		Topology:         testTopology(),
		Consumers:        []worker.Consumer{{Queue: testQueue, Handler: handler}},
		ReconnectInitial: 10 * time.Millisecond,
		ReconnectMax:     50 * time.Millisecond,
		Logger:           slogx.Discard(),
	})
	return w
}

func publish(t *testing.T, b broker.Broker, key string) {
	t.Helper()
	ok, err := b.Publish(context.Background(), testExchange, key, map[string]string{"orderId": key}, broker.DefaultPublishOptions())
	require.NoError(t, err)
	require.True(t, ok)
}

func stop(t *testing.T, w *worker.Worker) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
}

func TestWorkerConsumes(t *testing.T) {
	b := memory.New(slogx.Discard())
	var handled atomic.Int32
	w := newWorker(t, b, func(context.Context, broker.Message) error {
		handled.Add(1)
		return nil
	})

	require.NoError(t, w.Start(context.Background()))
	publish(t, b, "order.created")
	publish(t, b, "order.updated")

	require.Eventually(t, func() bool { return handled.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return b.Unacked(testQueue) == 0 }, time.Second, 10*time.Millisecond)

	stop(t, w)
	require.Equal(t, broker.Disconnected, b.State())
}

func TestWorkerReconnects(t *testing.T) {
	b := memory.New(slogx.Discard())
	var handled atomic.Int32
	w := newWorker(t, b, func(context.Context, broker.Message) error {
		handled.Add(1)
		return nil
	})
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { stop(t, w) })

	publish(t, b, "order.created")
	require.Eventually(t, func() bool { return handled.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	b.Restart()

	require.Eventually(t, func() bool {
		return w.Sessions() >= 2 && b.State() == broker.Connected
	}, 2*time.Second, 10*time.Millisecond)

	publish(t, b, "order.created")
	require.Eventually(t, func() bool { return handled.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestWorkerRequeuesFailures(t *testing.T) {
	b := memory.New(slogx.Discard())
	var calls atomic.Int32
	w := newWorker(t, b, func(context.Context, broker.Message) error {
		if calls.Add(1) < 3 {
			return context.DeadlineExceeded
		}
		return nil
	})
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { stop(t, w) })

	publish(t, b, "order.created")

	require.Eventually(t, func() bool { return calls.Load() == 3 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return b.Depth(testQueue) == 0 && b.Unacked(testQueue) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWorkerStartFailsOnBadTopology(t *testing.T) {
	b := memory.New(slogx.Discard())
	w := worker.New(b, worker.Options{
		Name: "broken",
		Topology: broker.Topology{
			Queues:   []broker.QueueSpec{{Name: testQueue, Durable: true}},
			Bindings: []broker.Binding{{Queue: testQueue, Exchange: "missing", Pattern: "#"}},
		},
		Logger: slogx.Discard(),
	})

	err := w.Start(context.Background())
	require.ErrorIs(t, err, broker.ErrNotFound)
	require.NoError(t, w.Stop(context.Background()))
}

func TestHealthHandler(t *testing.T) {
	b := memory.New(slogx.Discard())
	w := newWorker(t, b, func(context.Context, broker.Message) error { return nil })
	h := w.HealthHandler()

	get := func(path string) (*httptest.ResponseRecorder, worker.HealthResponse) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		var resp worker.HealthResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		return rec, resp
	}

	rec, _ := get("/livez")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := get("/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "disconnected", resp.Broker)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { stop(t, w) })

	rec, resp = get("/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "connected", resp.Broker)
	require.Equal(t, "test-worker", resp.Service)
}
