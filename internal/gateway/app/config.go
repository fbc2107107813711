package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/swiftlogistics/platform/internal/auth/service"
	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/session"
	"github.com/swiftlogistics/platform/internal/store/drivers"
	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/envx"
)

const (
	StoreSQLite = drivers.SQLite
	StoreMongo  = drivers.Mongo
)

type Config struct {
	Env                 string        // Environment (development, staging, production) (default: development)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 3000)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	JWTSecret   string        // Required: HMAC secret for access tokens
	JWTIssuer   string        // Optional: issuer claim (default: swiftlogistics)
	JWTAudience string        // Optional: audience claim (default: swiftlogistics-users)
	TokenTTL    time.Duration // Optional: token lifetime (default: 24h)

	Redis session.RedisConfig

	RabbitMQURL          string        // AMQP URL (default: amqp://localhost:5672)
	BrokerPublishTimeout time.Duration // Bound on a single event publish (default: 5s)
	BrokerContentType    string        // Event encoding, application/json or application/cbor (default: json)

	StoreDriver     string   // sqlite or mongo (default: sqlite)
	SQLitePath      string   // Path to the SQLite database file (default: swiftlogistics.db)
	MongoURI        string   // MongoDB connection string (default: mongodb://localhost:27017)
	MongoDatabase   string   // MongoDB database name (default: swiftlogistics)
	ClientURLs      []string // CORS origins of the client portal (default: http://localhost:3001)
	OwnershipPolicy string   // permissive or strict (default: permissive)

	AdminEmail    string // Optional: creates the first admin on boot
	AdminName     string
	AdminPassword string
}

func LoadConfig() Config {
	return Config{
		Env:                 envx.String("ENV", "development"),
		LogLevel:            envx.String("LOG_LEVEL", "info"),
		LogFormat:           envx.String("LOG_FORMAT", "json"),
		Port:                envx.Int("PORT", 3000),
		ShutdownGracePeriod: envx.Duration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		JWTSecret:   envx.String("JWT_SECRET", ""),
		JWTIssuer:   envx.String("JWT_ISSUER", service.DefaultIssuer),
		JWTAudience: envx.String("JWT_AUDIENCE", service.DefaultAudience),
		TokenTTL:    envx.Duration("TOKEN_TTL", 24*time.Hour),

		Redis: session.RedisConfig{
			URL:          envx.String("REDIS_URL", "redis://localhost:6379"),
			DialTimeout:  envx.Duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envx.Duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envx.Duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:     envx.Int("REDIS_POOL_SIZE", 0),
			MaxRetries:   envx.Int("REDIS_MAX_RETRIES", 0),
		},

		RabbitMQURL:          envx.String("RABBITMQ_URL", "amqp://localhost:5672"),
		BrokerPublishTimeout: envx.Duration("BROKER_PUBLISH_TIMEOUT", events.DefaultPublishTimeout),
		BrokerContentType:    envx.String("BROKER_CONTENT_TYPE", broker.ContentTypeJSON),

		StoreDriver:     envx.String("STORE_DRIVER", StoreSQLite),
		SQLitePath:      envx.String("SQLITE_PATH", "swiftlogistics.db"),
		MongoURI:        envx.String("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase:   envx.String("MONGODB_DATABASE", "swiftlogistics"),
		ClientURLs:      envx.List("CLIENT_URL", []string{"http://localhost:3001"}),
		OwnershipPolicy: envx.String("OWNERSHIP_POLICY", "permissive"),

		AdminEmail:    envx.String("ADMIN_EMAIL", ""),
		AdminName:     envx.String("ADMIN_NAME", ""),
		AdminPassword: envx.String("ADMIN_PASSWORD", ""),
	}
}

// Validate rejects configurations the gateway cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL))
	}
	switch c.StoreDriver {
	case StoreSQLite, StoreMongo:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}
	switch c.BrokerContentType {
	case "", broker.ContentTypeJSON, broker.ContentTypeCBOR:
	default:
		errs = append(errs, fmt.Errorf("unsupported BROKER_CONTENT_TYPE %q", c.BrokerContentType))
	}
	return errors.Join(errs...)
}
