package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"pointflow/internal/config"
	"pointflow/pkg/logger"
)

// Dialect holds the few statements that differ between SQLite and PostgreSQL.
type Dialect struct {
	Name         string
	IdentityType string
}

var (
	SQLite   = Dialect{Name: config.StorageSQLite, IdentityType: "INTEGER PRIMARY KEY AUTOINCREMENT"}
	Postgres = Dialect{Name: config.StoragePostgres, IdentityType: "BIGSERIAL PRIMARY KEY"}
)

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.StorageSQLite:
		return SQLite, nil
	case config.StoragePostgres:
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("no SQL dialect for driver %q", driver)
	}
}

// Open connects to the configured SQL store and retries the initial ping with
// exponential backoff.
func Open(ctx context.Context, cfg config.DatabaseConfig, log logger.Logger) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	dsn := cfg.SQLitePath
	if dialect == Postgres {
		dsn = cfg.PostgresDSN()
	}

	db, err := sql.Open(dialect.Name, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open database: %w", err)
	}

	if dialect == SQLite {
		// SQLite allows a single writer; one connection also keeps ":memory:"
		// databases shared across calls.
		db.SetMaxOpenConns(1)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 15 * time.Second

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Database not reachable, retrying", map[string]interface{}{
			"driver": dialect.Name,
			"error":  err.Error(),
			"wait":   wait.String(),
		})
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(policy, ctx), notify); err != nil {
		db.Close()
		return nil, Dialect{}, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Database connection established", map[string]interface{}{"driver": dialect.Name})

	return db, dialect, nil
}
