// Package backend opens a parklot store by driver name.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/parklot/store"
	"github.com/xraph/parklot/store/memory"
	"github.com/xraph/parklot/store/mongo"
	"github.com/xraph/parklot/store/postgres"
	"github.com/xraph/parklot/store/sqlite"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config selects and addresses a backend.
type Config struct {
	// Driver is one of memory, postgres, sqlite or mongo. Empty means memory.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DSN is the connection string: a postgres URL, a SQLite file path or a
	// mongodb URI.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`

	// Database names the MongoDB database (default: "parklot").
	Database string `json:"database" mapstructure:"database" yaml:"database"`

	// LockTimeout bounds how long an atomic section waits for locks.
	LockTimeout time.Duration `json:"lock_timeout" mapstructure:"lock_timeout" yaml:"lock_timeout"`
}

// Open builds the store cfg describes. Callers own the result and must
// Close it; Open does not migrate.
func Open(ctx context.Context, cfg Config) (store.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver != "" && driver != DriverMemory && cfg.DSN == "" {
		return nil, fmt.Errorf("parklot: store driver %q needs a dsn", driver)
	}

	switch driver {
	case "", DriverMemory:
		return memory.New(memory.WithLockTimeout(cfg.LockTimeout)), nil
	case DriverPostgres, "pg", "postgresql":
		return postgres.Open(ctx, cfg.DSN, postgres.WithLockTimeout(cfg.LockTimeout))
	case DriverSQLite, "sqlite3":
		return sqlite.Open(cfg.DSN, sqlite.WithLockTimeout(cfg.LockTimeout))
	case DriverMongo, "mongodb":
		database := cfg.Database
		if database == "" {
			database = "parklot"
		}
		return mongo.Open(cfg.DSN, database, mongo.WithLockTimeout(cfg.LockTimeout))
	}
	return nil, fmt.Errorf("parklot: unknown store driver %q", cfg.Driver)
}
