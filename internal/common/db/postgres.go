// Package db wraps database/sql with the connection lifecycle and
// transaction helper every service's repository layer relies on.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	_ "github.com/lib/pq"

	"github.com/mercuriabank/backend/internal/common/config"
	"github.com/mercuriabank/backend/internal/common/logger"
)

type DB struct {
	*sql.DB
	logger *logger.Logger
}

// Connect opens a connection pool and verifies it with a ping.
func Connect(cfg config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Infof("connected to database %s:%s/%s", cfg.Host, cfg.Port, cfg.DBName)
	return &DB{DB: sqlDB, logger: log}, nil
}

// WaitForDB blocks until a connection attempt succeeds or ctx is done,
// backing off exponentially (with jitter) between attempts. This is the
// first of the three sequential startup steps spec §9 calls for: wait for
// the database, then migrate, then seed.
func WaitForDB(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	backoff := 250 * time.Millisecond
	const maxBackoff = 10 * time.Second

	for attempt := 1; ; attempt++ {
		database, err := Connect(cfg, log)
		if err == nil {
			return database, nil
		}

		log.Warnf("database not ready (attempt %d): %v", attempt, err)

		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up waiting for database: %w", ctx.Err())
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Health runs a trivial round-trip query against the pool.
func (d *DB) Health(ctx context.Context) error {
	return d.PingContext(ctx)
}

// WithTransaction runs fn inside a transaction, committing on nil error and
// rolling back otherwise. Every mutating wallet operation and every payments
// status transition uses this to get the atomicity spec §4.2 and §5
// require; payments intent creation and hold-id recording do not.
func (d *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
