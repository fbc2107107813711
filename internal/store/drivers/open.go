// Package drivers opens the store backend selected by configuration.
package drivers

import (
	"context"
	"fmt"

	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/internal/store/drivers/mongo"
	"github.com/swiftlogistics/platform/internal/store/drivers/sqlite"
)

const (
	SQLite = "sqlite"
	Mongo  = "mongo"
)

// Config selects and locates a store backend.
type Config struct {
	Driver        string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string
}

// Open connects to the configured backend. Migrations are left to the
// caller.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	var (
		db  store.Store
		err error
	)
	switch cfg.Driver {
	case Mongo:
		db, err = mongo.NewStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case SQLite, "":
		host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.SQLitePath)
		db, err = sqlite.NewStore(host)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}
