package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// migrationLockKey is the pg advisory lock id shared by every paygate migrator.
const migrationLockKey int64 = 0x7061_7967_6174 // "paygat"

const lockRetryInterval = 500 * time.Millisecond

var ErrLockTimeout = errors.New("migration lock held by another process")

type unlockFunc func(ctx context.Context) error

// acquireAdvisoryLock waits for the session-level migration lock until ctx is done,
// so replicas started together migrate one after another.
func acquireAdvisoryLock(ctx context.Context, db *sql.DB) (unlockFunc, error) {
	if db == nil {
		return nil, errors.New("advisory lock requires database handle")
	}

	// Session locks belong to one connection; pin it for lock and unlock.
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	ticker := time.NewTicker(lockRetryInterval)
	defer ticker.Stop()
	for {
		var locked bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockKey).Scan(&locked); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("acquire advisory lock: %w", err)
		}
		if locked {
			break
		}
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	return func(unlockCtx context.Context) error {
		defer conn.Close()
		var released bool
		if err := conn.QueryRowContext(unlockCtx, "SELECT pg_advisory_unlock($1)", migrationLockKey).Scan(&released); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		if !released {
			return errors.New("advisory lock was not held by this session")
		}
		return nil
	}, nil
}
