package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DefaultLockTimeout bounds how long a stock transaction waits for a row lock.
const DefaultLockTimeout = 5 * time.Second

// txRunner runs a unit of work in a transaction that holds row locks.
// Lock races get exactly one retry of the whole unit; a second failure
// surfaces as ErrConcurrencyConflict.
type txRunner struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
	log         *zap.Logger
}

func newTxRunner(pool *pgxpool.Pool, lockTimeout time.Duration, log *zap.Logger) txRunner {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return txRunner{pool: pool, lockTimeout: lockTimeout, log: log}
}

func (r txRunner) run(ctx context.Context, op string, fn func(tx pgx.Tx) error) error {
	err := r.once(ctx, fn)
	if err == nil || !isRetryable(err) {
		return err
	}
	r.log.Warn("retrying stock transaction after lock conflict",
		zap.String("op", op), zap.String("sqlstate", pgErrorCode(err)))

	err = r.once(ctx, fn)
	if err != nil && isRetryable(err) {
		r.log.Warn("stock transaction conflict persisted",
			zap.String("op", op), zap.String("sqlstate", pgErrorCode(err)))
		return fmt.Errorf("%s: %w", op, ErrConcurrencyConflict)
	}
	return err
}

func (r txRunner) once(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// SET LOCAL does not accept bind parameters.
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set lock timeout: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isRetryable(err) {
			return err
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

