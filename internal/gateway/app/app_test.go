package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swiftlogistics/platform/internal/events"
	"github.com/swiftlogistics/platform/internal/session"
	"github.com/swiftlogistics/platform/internal/store/drivers/sqlite"
	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/broker/memory"
	"github.com/swiftlogistics/platform/pkg/gatewaysdk"
	"github.com/swiftlogistics/platform/pkg/slogx"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := LoadConfig()
		require.Equal(t, 3000, cfg.Port)
		require.Equal(t, StoreSQLite, cfg.StoreDriver)
		require.Equal(t, 24*time.Hour, cfg.TokenTTL)
		require.Equal(t, "swiftlogistics", cfg.JWTIssuer)
		require.Equal(t, "swiftlogistics-users", cfg.JWTAudience)
		require.Equal(t, events.DefaultPublishTimeout, cfg.BrokerPublishTimeout)
		require.Equal(t, broker.ContentTypeJSON, cfg.BrokerContentType)
		require.Equal(t, "permissive", cfg.OwnershipPolicy)
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("PORT", "8081")
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("TOKEN_TTL", "1h")
		t.Setenv("REDIS_URL", "redis://cache:6380/2")
		t.Setenv("REDIS_POOL_SIZE", "25")
		t.Setenv("STORE_DRIVER", "mongo")
		t.Setenv("MONGODB_DATABASE", "logistics")
		t.Setenv("CLIENT_URL", "https://portal.example, https://admin.example")
		t.Setenv("OWNERSHIP_POLICY", "strict")
		t.Setenv("BROKER_CONTENT_TYPE", "application/cbor")

		cfg := LoadConfig()
		require.Equal(t, 8081, cfg.Port)
		require.Equal(t, "s3cret", cfg.JWTSecret)
		require.Equal(t, time.Hour, cfg.TokenTTL)
		require.Equal(t, "redis://cache:6380/2", cfg.Redis.URL)
		require.Equal(t, 25, cfg.Redis.PoolSize)
		require.Equal(t, StoreMongo, cfg.StoreDriver)
		require.Equal(t, "logistics", cfg.MongoDatabase)
		require.Equal(t, []string{"https://portal.example", "https://admin.example"}, cfg.ClientURLs)
		require.Equal(t, "strict", cfg.OwnershipPolicy)
		require.Equal(t, broker.ContentTypeCBOR, cfg.BrokerContentType)
	})
}

func TestConfigValidate(t *testing.T) {
	valid := Config{JWTSecret: "x", TokenTTL: time.Hour, StoreDriver: StoreSQLite}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"zero ttl", func(c *Config) { c.TokenTTL = 0 }, "TOKEN_TTL"},
		{"unknown driver", func(c *Config) { c.StoreDriver = "postgres" }, "STORE_DRIVER"},
		{"unknown content type", func(c *Config) { c.BrokerContentType = "text/xml" }, "BROKER_CONTENT_TYPE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func testConfig() Config {
	return Config{
		Env:                 "test",
		LogLevel:            "error",
		LogFormat:           "text",
		ShutdownGracePeriod: time.Second,
		JWTSecret:           "app-test-secret-0123456789abcdef",
		TokenTTL:            24 * time.Hour,
		StoreDriver:         StoreSQLite,
		ClientURLs:          []string{"http://portal.test"},
		AdminEmail:          "Admin@SwiftLogistics.test",
		AdminPassword:       "admin-password",
	}
}

func testDeps(t *testing.T, path string) Deps {
	t.Helper()
	st, err := sqlite.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return Deps{
		Store:    st,
		Sessions: session.NewMemory(),
		Broker:   memory.New(slogx.Discard()),
	}
}

func TestNewWithDeps(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gateway.db")
	deps := testDeps(t, dbPath)

	application, err := NewWithDeps(testConfig(), deps)
	require.NoError(t, err)

	t.Run("declares gateway topology", func(t *testing.T) {
		ok, err := deps.Broker.Publish(context.Background(), events.ExchangeEvents, "notification.system",
			map[string]string{"k": "v"}, broker.DefaultPublishOptions())
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 1, deps.Broker.(*memory.Broker).Depth(events.QueueGatewayNotifications))
	})

	t.Run("bootstraps admin from config", func(t *testing.T) {
		body, _ := json.Marshal(gatewaysdk.LoginRequest{Email: "admin@swiftlogistics.test", Password: "admin-password"})
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		application.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp gatewaysdk.AuthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "admin", resp.Data.User.Role)
		require.NotEmpty(t, resp.Data.Token)
	})

	t.Run("readiness reports dependencies", func(t *testing.T) {
		rec := httptest.NewRecorder()
		application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var health gatewaysdk.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
		require.Equal(t, "ok", health.Status)
		require.Equal(t, BuildVersion, health.Version)
	})

	t.Run("second boot keeps existing admin", func(t *testing.T) {
		again := Deps{Store: deps.Store, Sessions: session.NewMemory(), Broker: memory.New(slogx.Discard())}
		_, err := NewWithDeps(testConfig(), again)
		require.NoError(t, err)
	})
}

func TestNewWithDepsErrors(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig()
		cfg.JWTSecret = ""
		_, err := NewWithDeps(cfg, testDeps(t, filepath.Join(t.TempDir(), "a.db")))
		require.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("missing dependencies", func(t *testing.T) {
		_, err := NewWithDeps(testConfig(), Deps{})
		require.Error(t, err)
	})

	t.Run("unknown ownership policy", func(t *testing.T) {
		cfg := testConfig()
		cfg.OwnershipPolicy = "lenient"
		_, err := NewWithDeps(cfg, testDeps(t, filepath.Join(t.TempDir(), "b.db")))
		require.ErrorContains(t, err, "lenient")
	})

	t.Run("incomplete bootstrap", func(t *testing.T) {
		cfg := testConfig()
		cfg.AdminPassword = ""
		_, err := NewWithDeps(cfg, testDeps(t, filepath.Join(t.TempDir(), "c.db")))
		require.ErrorContains(t, err, "bootstrap")
	})
}
