package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/talgya/agentmind/internal/audit"
)

var _ audit.Sink = (*DB)(nil)

// Write stores an audit record in agent_decisions.
func (db *DB) Write(ctx context.Context, r audit.Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode decision %s: %w", r.ID, err)
	}
	_, err = db.conn.ExecContext(ctx, `INSERT INTO agent_decisions
		(id, avatar_id, at, action_type, interrupt, utility, record_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.AvatarID, r.At.UnixNano(), string(r.Selected.Kind), string(r.Selected.Interrupt),
		r.Selected.Utility, string(body),
	)
	if err != nil {
		return fmt.Errorf("store decision %s: %w", r.ID, err)
	}
	return nil
}

// RecentDecisions returns up to limit audit records for the avatar, newest first.
func (db *DB) RecentDecisions(ctx context.Context, avatarID string, limit int) ([]audit.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	var bodies []string
	err := db.conn.SelectContext(ctx, &bodies, `SELECT record_json FROM agent_decisions
		WHERE avatar_id = ? ORDER BY at DESC, id DESC LIMIT ?`, avatarID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent decisions %s: %w", avatarID, err)
	}
	out := make([]audit.Record, 0, len(bodies))
	for _, b := range bodies {
		var r audit.Record
		if err := json.Unmarshal([]byte(b), &r); err != nil {
			return nil, fmt.Errorf("decode decision: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}
