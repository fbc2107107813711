package service_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/internal/auth/service"
	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/events/eventstest"
	"github.com/swiftlogistics/platform/internal/session"
	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/internal/store/drivers/sqlite"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

var testSecret = []byte("test-secret-with-enough-entropy-0123456789")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	clock    *clock
	store    store.Store
	sessions *session.Memory
	tokens   *service.TokenService
	accounts *service.AccountService
	orders   *service.OrderService
	events   *eventstest.Capture
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	sessions := session.NewMemory()
	sessions.Now = clk.Now

	tokens, err := service.NewTokenService(service.TokenConfig{
		Secret: testSecret,
		TTL:    24 * time.Hour,
		Now:    clk.Now,
	}, sessions)
	require.NoError(t, err)

	b := eventstest.NewBroker(t, events.GatewayTopology())
	capture := eventstest.Listen(t, b, events.ExchangeEvents, events.ExchangeOrders)
	pub := events.NewPublisher(b, slogx.Discard())

	return &harness{
		clock:    clk,
		store:    st,
		sessions: sessions,
		tokens:   tokens,
		accounts: &service.AccountService{Store: st, Tokens: tokens, Events: pub, Now: clk.Now},
		orders:   &service.OrderService{Store: st, Events: pub, Now: clk.Now},
		events:   capture,
	}
}
