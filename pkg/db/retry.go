package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const retryBackoff = 25 * time.Millisecond

// WithTxRetry runs fn inside a transaction, retrying up to attempts times
// when the transaction loses a lock race. Any other failure surfaces
// immediately; exhaustion returns the last error.
func (c *Client) WithTxRetry(ctx context.Context, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}
		err = c.WithTx(ctx, fn)
		if err == nil || !isLockConflict(err) {
			return err
		}
	}
	return err
}

// isLockConflict matches postgres serialization failures and deadlocks, the
// only errors where a fresh read can produce a different decision.
func isLockConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}
