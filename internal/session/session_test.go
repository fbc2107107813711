package session_test

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/internal/session"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

type harness struct {
	store   session.Store
	advance func(time.Duration)
}

func newRedisHarness(t *testing.T) (harness, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	store, err := session.NewRedis(session.RedisConfig{URL: "redis://" + mr.Addr() + "/0"}, slogx.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return harness{store: store, advance: mr.FastForward}, mr
}

func newMemoryHarness() harness {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := session.NewMemory()
	m.Now = func() time.Time { return now }
	return harness{store: m, advance: func(d time.Duration) { now = now.Add(d) }}
}

func TestStores(t *testing.T) {
	harnesses := map[string]func(t *testing.T) harness{
		"redis": func(t *testing.T) harness {
			h, _ := newRedisHarness(t)
			return h
		},
		"memory": func(*testing.T) harness { return newMemoryHarness() },
	}

	for name, mk := range harnesses {
		t.Run(name, func(t *testing.T) {
			t.Run("session lifecycle", func(t *testing.T) {
				h := mk(t)
				ctx := context.Background()

				_, err := h.store.Session(ctx, "u1")
				require.ErrorIs(t, err, session.ErrNotFound)

				require.NoError(t, h.store.PutSession(ctx, "u1", "tok-a", time.Hour))
				got, err := h.store.Session(ctx, "u1")
				require.NoError(t, err)
				require.Equal(t, "tok-a", got)

				// A newer login replaces the previous session.
				require.NoError(t, h.store.PutSession(ctx, "u1", "tok-b", time.Hour))
				got, err = h.store.Session(ctx, "u1")
				require.NoError(t, err)
				require.Equal(t, "tok-b", got)

				require.NoError(t, h.store.DeleteSession(ctx, "u1"))
				_, err = h.store.Session(ctx, "u1")
				require.ErrorIs(t, err, session.ErrNotFound)

				// Deleting a missing session is fine.
				require.NoError(t, h.store.DeleteSession(ctx, "u1"))
			})

			t.Run("session expires", func(t *testing.T) {
				h := mk(t)
				ctx := context.Background()

				require.NoError(t, h.store.PutSession(ctx, "u1", "tok", time.Minute))
				h.advance(61 * time.Second)
				_, err := h.store.Session(ctx, "u1")
				require.ErrorIs(t, err, session.ErrNotFound)
			})

			t.Run("revocation lives as long as the token", func(t *testing.T) {
				h := mk(t)
				ctx := context.Background()

				revoked, err := h.store.IsRevoked(ctx, "tok")
				require.NoError(t, err)
				require.False(t, revoked)

				require.NoError(t, h.store.Revoke(ctx, "tok", 10*time.Minute))
				revoked, err = h.store.IsRevoked(ctx, "tok")
				require.NoError(t, err)
				require.True(t, revoked)

				h.advance(9 * time.Minute)
				revoked, err = h.store.IsRevoked(ctx, "tok")
				require.NoError(t, err)
				require.True(t, revoked)

				h.advance(2 * time.Minute)
				revoked, err = h.store.IsRevoked(ctx, "tok")
				require.NoError(t, err)
				require.False(t, revoked)
			})

			t.Run("non-positive ttl is not stored", func(t *testing.T) {
				h := mk(t)
				ctx := context.Background()

				require.NoError(t, h.store.Revoke(ctx, "old", 0))
				require.NoError(t, h.store.Revoke(ctx, "older", -time.Second))

				for _, tok := range []string{"old", "older"} {
					revoked, err := h.store.IsRevoked(ctx, tok)
					require.NoError(t, err)
					require.False(t, revoked)
				}
			})

			t.Run("ping", func(t *testing.T) {
				require.NoError(t, mk(t).store.Ping(context.Background()))
			})
		})
	}
}

func TestRedisKeyLayout(t *testing.T) {
	h, mr := newRedisHarness(t)
	ctx := context.Background()

	require.NoError(t, h.store.PutSession(ctx, "CL01", "tok", 24*time.Hour))
	require.NoError(t, h.store.Revoke(ctx, "tok", time.Hour))

	got, err := mr.Get("session:CL01")
	require.NoError(t, err)
	require.Equal(t, "tok", got)
	require.Equal(t, 24*time.Hour, mr.TTL("session:CL01"))

	got, err = mr.Get("blacklist:tok")
	require.NoError(t, err)
	require.Equal(t, session.RevokedMarker, got)
	require.Equal(t, time.Hour, mr.TTL("blacklist:tok"))
}

func TestRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	var logs bytes.Buffer
	store, err := session.NewRedis(session.RedisConfig{Addr: mr.Addr(), MaxRetries: -1},
		slog.New(slog.NewJSONHandler(&logs, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	mr.Close()

	ctx := context.Background()
	require.Error(t, store.Ping(ctx))
	_, err = store.IsRevoked(ctx, "tok")
	require.Error(t, err)
	require.Error(t, store.Revoke(ctx, "tok", time.Minute))
	_, err = store.Session(ctx, "u1")
	require.Error(t, err)
	require.NotErrorIs(t, err, session.ErrNotFound)

	require.Contains(t, logs.String(), `"msg":"revocation lookup failed"`)
	require.Contains(t, logs.String(), `"msg":"revoke failed"`)
	require.Contains(t, logs.String(), `"component":"session_store"`)
	require.NotContains(t, logs.String(), `"tok"`)
}

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := session.NewRedis(session.RedisConfig{URL: "http://nope"}, nil)
	require.Error(t, err)
}

func TestRedisWindowCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	counter := session.NewRedisWindowCounter(client)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		wc, err := counter.Incr(ctx, "strict:10.0.0.1", time.Hour)
		require.NoError(t, err)
		require.Equal(t, i, wc.Count)
		require.True(t, wc.ResetAt.After(time.Now()))
	}

	other, err := counter.Incr(ctx, "strict:10.0.0.2", time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), other.Count)

	start := time.Now().Truncate(time.Hour).Unix()
	got, err := mr.Get("ratelimit:strict:10.0.0.1:" + strconv.FormatInt(start, 10))
	require.NoError(t, err)
	require.Equal(t, "3", got)
}
