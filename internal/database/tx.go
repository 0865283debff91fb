package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/multierr"
)

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	// MaxRetries bounds the extra attempts WithRetry makes after the first.
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultTxOptions is read committed; row locks taken by the conditional
// updates do the serializing.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel: sql.LevelReadCommitted,
		MaxRetries:     3,
		BaseBackoff:    50 * time.Millisecond,
	}
}

// UnitOfWork runs inside one transaction. Returning an error rolls everything
// back; tx must not be retained after it returns.
type UnitOfWork func(ctx context.Context, tx *sql.Tx) error

func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn UnitOfWork) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: opts.IsolationLevel, ReadOnly: opts.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return multierr.Append(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WithRetry re-runs the whole unit of work while it fails with a retryable
// Postgres error, sleeping a jittered, doubling backoff in between. Any other
// error is returned as is.
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn UnitOfWork) error {
	backoff := opts.BaseBackoff
	if backoff <= 0 {
		backoff = DefaultTxOptions().BaseBackoff
	}

	for attempt := 0; ; attempt++ {
		err := WithTransaction(ctx, db, opts, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt >= opts.MaxRetries {
			return fmt.Errorf("transaction failed after %d attempts: %w", attempt+1, err)
		}

		timer := time.NewTimer(backoff + time.Duration(rand.Int63n(int64(backoff/4)+1)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return multierr.Append(err, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}
}
