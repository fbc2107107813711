package worker

import (
	"time"

	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/store/drivers"
	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/envx"
)

// Config is the environment shared by every consumer process.
type Config struct {
	Env                 string        // Environment (default: development)
	LogLevel            string        // Log level (default: info)
	LogFormat           string        // Log format (default: json)
	HealthPort          int           // Port of the health server, 0 disables it (default: 8081)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	RabbitMQURL          string
	BrokerPrefetch       int           // Unacknowledged deliveries per consumer (default: 10)
	BrokerWorkers        int           // Handler goroutines per consumer (default: 1)
	BrokerPublishTimeout time.Duration // Bound on publishes made from handlers (default: 5s)
	BrokerContentType    string        // Event encoding, application/json or application/cbor (default: json)

	// Retry is the failure policy for every consumer. The zero value
	// requeues forever.
	Retry broker.RetryPolicy

	ReconnectInitial time.Duration // First reconnect delay (default: 1s)
	ReconnectMax     time.Duration // Cap on the reconnect delay (default: 30s)

	Store drivers.Config
}

func LoadConfig() Config {
	return Config{
		Env:                 envx.String("ENV", "development"),
		LogLevel:            envx.String("LOG_LEVEL", "info"),
		LogFormat:           envx.String("LOG_FORMAT", "json"),
		HealthPort:          envx.Int("HEALTH_PORT", 8081),
		ShutdownGracePeriod: envx.Duration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		RabbitMQURL:          envx.String("RABBITMQ_URL", "amqp://localhost:5672"),
		BrokerPrefetch:       envx.Int("BROKER_PREFETCH", 10),
		BrokerWorkers:        envx.Int("BROKER_WORKERS", 1),
		BrokerPublishTimeout: envx.Duration("BROKER_PUBLISH_TIMEOUT", 5*time.Second),
		BrokerContentType:    envx.String("BROKER_CONTENT_TYPE", broker.ContentTypeJSON),

		Retry: broker.RetryPolicy{
			MaxAttempts:        envx.Int("RETRY_MAX_ATTEMPTS", 0),
			Backoff:            envx.Duration("RETRY_BACKOFF", time.Second),
			MaxBackoff:         envx.Duration("RETRY_MAX_BACKOFF", time.Minute),
			DeadLetterExchange: envx.String("RETRY_DEAD_LETTER_EXCHANGE", events.ExchangeDeadLetter),
		},

		ReconnectInitial: envx.Duration("RECONNECT_INITIAL", time.Second),
		ReconnectMax:     envx.Duration("RECONNECT_MAX", 30*time.Second),

		Store: drivers.Config{
			Driver:        envx.String("STORE_DRIVER", drivers.SQLite),
			SQLitePath:    envx.String("SQLITE_PATH", "swiftlogistics.db"),
			MongoURI:      envx.String("MONGODB_URI", "mongodb://localhost:27017"),
			MongoDatabase: envx.String("MONGODB_DATABASE", "swiftlogistics"),
		},
	}
}

// ConsumeOptions builds the per-consumer options from the config.
func (c Config) ConsumeOptions() broker.ConsumeOptions {
	return broker.ConsumeOptions{
		Prefetch: c.BrokerPrefetch,
		Workers:  c.BrokerWorkers,
		Retry:    c.Retry,
	}
}
