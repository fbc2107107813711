package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swiftlogistics/platform/pkg/cryptox"
	"github.com/swiftlogistics/platform/pkg/httpx"
)

// RedisConfig carries every connection option in one place.
type RedisConfig struct {
	// URL is a redis:// or rediss:// URL. It wins over Addr, Password and DB.
	URL string

	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MaxRetries   int
}

func (c RedisConfig) options() (*redis.Options, error) {
	opts := &redis.Options{Addr: c.Addr, Password: c.Password, DB: c.DB}
	if c.URL != "" {
		parsed, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("session: parse redis url: %w", err)
		}
		opts = parsed
	}
	if opts.Addr == "" {
		opts.Addr = "localhost:6379"
	}

	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	if c.ReadTimeout > 0 {
		opts.ReadTimeout = c.ReadTimeout
	}
	if c.WriteTimeout > 0 {
		opts.WriteTimeout = c.WriteTimeout
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.MaxRetries != 0 {
		opts.MaxRetries = c.MaxRetries
	}
	return opts, nil
}

// Redis is the production Store.
type Redis struct {
	client redis.UniversalClient
	log    *slog.Logger
}

var _ Store = (*Redis)(nil)

// NewRedis builds a client from cfg. It does not dial; use Ping to check
// connectivity.
func NewRedis(cfg RedisConfig, log *slog.Logger) (*Redis, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	return NewRedisFromClient(redis.NewClient(opts), log), nil
}

func NewRedisFromClient(client redis.UniversalClient, log *slog.Logger) *Redis {
	if log == nil {
		log = slog.Default()
	}
	return &Redis{client: client, log: log.With("component", "session_store")}
}

// Client exposes the underlying client so other components can share the
// connection pool.
func (r *Redis) Client() redis.UniversalClient { return r.client }

func (r *Redis) PutSession(ctx context.Context, subjectID, token string, ttl time.Duration) error {
	if err := r.client.Set(ctx, SessionKey(subjectID), token, ttl).Err(); err != nil {
		return fmt.Errorf("session: put %s: %w", subjectID, err)
	}
	return nil
}

func (r *Redis) Session(ctx context.Context, subjectID string) (string, error) {
	token, err := r.client.Get(ctx, SessionKey(subjectID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("session: get %s: %w", subjectID, err)
	}
	return token, nil
}

func (r *Redis) DeleteSession(ctx context.Context, subjectID string) error {
	if err := r.client.Del(ctx, SessionKey(subjectID)).Err(); err != nil {
		return fmt.Errorf("session: delete %s: %w", subjectID, err)
	}
	return nil
}

func (r *Redis) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, BlacklistKey(token), RevokedMarker, ttl).Err(); err != nil {
		r.log.WarnContext(ctx, "revoke failed", "token", cryptox.FingerprintToken(token), "error", err)
		return fmt.Errorf("session: revoke: %w", err)
	}
	return nil
}

// IsRevoked reports lookup failures to the caller, which must treat the
// token as unusable.
func (r *Redis) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := r.client.Exists(ctx, BlacklistKey(token)).Result()
	if err != nil {
		r.log.WarnContext(ctx, "revocation lookup failed", "token", cryptox.FingerprintToken(token), "error", err)
		return false, fmt.Errorf("session: revocation lookup: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// RedisWindowCounter shares fixed-window rate limit counters across
// gateway replicas. Each window gets its own key so counts never carry
// over.
type RedisWindowCounter struct {
	client redis.UniversalClient
	now    func() time.Time
}

var _ httpx.WindowCounter = (*RedisWindowCounter)(nil)

func NewRedisWindowCounter(client redis.UniversalClient) *RedisWindowCounter {
	return &RedisWindowCounter{client: client, now: time.Now}
}

func (c *RedisWindowCounter) Incr(ctx context.Context, key string, window time.Duration) (httpx.WindowCount, error) {
	start := httpx.WindowStart(c.now(), window)
	resetAt := start.Add(window)
	redisKey := "ratelimit:" + key + ":" + strconv.FormatInt(start.Unix(), 10)

	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireAt(ctx, redisKey, resetAt.Add(time.Second))
		return nil
	})
	if err != nil {
		return httpx.WindowCount{}, fmt.Errorf("session: rate counter: %w", err)
	}
	return httpx.WindowCount{Count: incr.Val(), ResetAt: resetAt}, nil
}
