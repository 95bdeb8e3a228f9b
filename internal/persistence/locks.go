package persistence

import (
	"context"
	"fmt"
	"time"
)

// Acquire takes the avatar's tick lease for ttl. A held lease that has not
// expired yet is left alone and Acquire reports false.
func (db *DB) Acquire(ctx context.Context, avatarID string, ttl time.Duration) (bool, error) {
	now := db.now()
	res, err := db.conn.ExecContext(ctx, `INSERT INTO agent_locks (avatar_id, lock_until) VALUES (?, ?)
		ON CONFLICT (avatar_id) DO UPDATE SET lock_until = excluded.lock_until
		WHERE agent_locks.lock_until <= ?`,
		avatarID, now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", avatarID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Release drops the avatar's lease.
func (db *DB) Release(ctx context.Context, avatarID string) error {
	if _, err := db.conn.ExecContext(ctx, "DELETE FROM agent_locks WHERE avatar_id = ?", avatarID); err != nil {
		return fmt.Errorf("release lock %s: %w", avatarID, err)
	}
	return nil
}
