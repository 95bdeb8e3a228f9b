// Package persistence provides the SQLite-backed agent store. One database
// holds personalities, need state, the social graph, world locations, the
// interaction log, avatar presence, tick leases and the decision audit trail.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/agentmind/internal/storage"
)

// DB wraps a SQLite connection. It implements storage.Store, storage.Seeder,
// storage.Locker and audit.Sink.
type DB struct {
	conn *sqlx.DB
	now  func() time.Time
}

var (
	_ storage.Store  = (*DB)(nil)
	_ storage.Seeder = (*DB)(nil)
	_ storage.Locker = (*DB)(nil)
)

// Open opens or creates a SQLite database at the given path. ":memory:" gives
// a private in-memory database.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite has a single writer; one connection also keeps ":memory:" on one database.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	db := &DB{conn: conn, now: time.Now}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SetClock replaces the clock used for leases and presence timestamps.
func (db *DB) SetClock(now func() time.Time) {
	db.now = now
}

// Ping checks the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agent_personality (
		avatar_id TEXT PRIMARY KEY,
		sociability REAL NOT NULL,
		curiosity REAL NOT NULL,
		agreeableness REAL NOT NULL,
		energy_baseline REAL NOT NULL,
		world_affinities TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_state (
		avatar_id TEXT PRIMARY KEY,
		energy REAL NOT NULL,
		hunger REAL NOT NULL,
		loneliness REAL NOT NULL,
		mood REAL NOT NULL,
		current_action TEXT NOT NULL,
		current_action_target TEXT,
		action_started_at INTEGER,
		action_expires_at INTEGER,
		last_tick INTEGER
	);

	CREATE TABLE IF NOT EXISTS agent_locks (
		avatar_id TEXT PRIMARY KEY,
		lock_until INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS social_memory (
		id TEXT PRIMARY KEY,
		from_avatar_id TEXT NOT NULL,
		to_avatar_id TEXT NOT NULL,
		sentiment REAL NOT NULL,
		familiarity REAL NOT NULL,
		interaction_count INTEGER NOT NULL,
		last_interaction INTEGER,
		last_conversation_topic TEXT NOT NULL DEFAULT '',
		UNIQUE (from_avatar_id, to_avatar_id)
	);

	CREATE TABLE IF NOT EXISTS world_locations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location_type TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		effects TEXT NOT NULL,
		cooldown_seconds INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_interactions (
		id TEXT PRIMARY KEY,
		avatar_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		interaction_type TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		cooldown_until INTEGER NOT NULL,
		completed_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS user_positions (
		avatar_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		is_online INTEGER NOT NULL,
		conversation_state TEXT NOT NULL,
		conversation_target_id TEXT NOT NULL DEFAULT '',
		conversation_since INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS agent_decisions (
		id TEXT PRIMARY KEY,
		avatar_id TEXT NOT NULL,
		at INTEGER NOT NULL,
		action_type TEXT NOT NULL,
		interrupt TEXT NOT NULL,
		utility REAL NOT NULL,
		record_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_social_from ON social_memory(from_avatar_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_avatar ON agent_interactions(avatar_id, cooldown_until);
	CREATE INDEX IF NOT EXISTS idx_positions_target ON user_positions(conversation_target_id, conversation_state, conversation_since);
	CREATE INDEX IF NOT EXISTS idx_state_expires ON agent_state(action_expires_at);
	CREATE INDEX IF NOT EXISTS idx_decisions_avatar ON agent_decisions(avatar_id, at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// notFound maps sql.ErrNoRows onto storage.ErrNotFound.
func notFound(what, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, storage.ErrNotFound)
	}
	return fmt.Errorf("%s %s: %w", what, id, err)
}

func toNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
