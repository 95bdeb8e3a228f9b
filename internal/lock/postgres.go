// Package lock provides a per-avatar tick lease shared across processes,
// backed by a PostgreSQL row per avatar.
package lock

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/talgya/agentmind/internal/storage"
)

// Schema creates the lease table. Safe to apply repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS agent_tick_locks (
    avatar_id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    lock_until TIMESTAMPTZ NOT NULL
);
`

// Postgres implements storage.Locker. Lease expiry is judged by the database
// clock so that engines on different hosts agree.
type Postgres struct {
	db    *sql.DB
	owner string
}

var _ storage.Locker = (*Postgres)(nil)

// NewPostgres connects to dsn and applies Schema.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("lock: open: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("lock: ping: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("lock: apply schema: %w", err)
	}
	return &Postgres{db: db, owner: uuid.NewString()}, nil
}

// Close closes the pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Acquire takes the lease unless another owner holds one that has not expired.
// Re-acquiring a lease this process already holds extends it.
func (p *Postgres) Acquire(ctx context.Context, avatarID string, ttl time.Duration) (bool, error) {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO agent_tick_locks (avatar_id, owner, lock_until)
		VALUES ($1, $2, now() + $3::bigint * interval '1 millisecond')
		ON CONFLICT (avatar_id) DO UPDATE
		SET owner = EXCLUDED.owner, lock_until = EXCLUDED.lock_until
		WHERE agent_tick_locks.lock_until <= now() OR agent_tick_locks.owner = EXCLUDED.owner`,
		avatarID, p.owner, ttl.Milliseconds())
	if err != nil {
		return false, fmt.Errorf("lock: acquire %s: %w", avatarID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("lock: acquire %s: %w", avatarID, err)
	}
	return n == 1, nil
}

// Release drops the lease if this process still owns it.
func (p *Postgres) Release(ctx context.Context, avatarID string) error {
	_, err := p.db.ExecContext(ctx,
		"DELETE FROM agent_tick_locks WHERE avatar_id = $1 AND owner = $2", avatarID, p.owner)
	if err != nil {
		return fmt.Errorf("lock: release %s: %w", avatarID, err)
	}
	return nil
}
