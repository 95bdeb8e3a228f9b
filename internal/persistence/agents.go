package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/agentmind/internal/agents"
	"github.com/talgya/agentmind/internal/storage"
)

type personalityRow struct {
	AvatarID       string  `db:"avatar_id"`
	Sociability    float64 `db:"sociability"`
	Curiosity      float64 `db:"curiosity"`
	Agreeableness  float64 `db:"agreeableness"`
	EnergyBaseline float64 `db:"energy_baseline"`
	Affinities     string  `db:"world_affinities"`
}

type stateRow struct {
	AvatarID        string         `db:"avatar_id"`
	Energy          float64        `db:"energy"`
	Hunger          float64        `db:"hunger"`
	Loneliness      float64        `db:"loneliness"`
	Mood            float64        `db:"mood"`
	CurrentAction   string         `db:"current_action"`
	CurrentTarget   sql.NullString `db:"current_action_target"`
	ActionStartedAt sql.NullInt64  `db:"action_started_at"`
	ActionExpiresAt sql.NullInt64  `db:"action_expires_at"`
	LastTick        sql.NullInt64  `db:"last_tick"`
	LockUntil       sql.NullInt64  `db:"lock_until"`
}

type socialRow struct {
	ID               string        `db:"id"`
	From             string        `db:"from_avatar_id"`
	To               string        `db:"to_avatar_id"`
	Sentiment        float64       `db:"sentiment"`
	Familiarity      float64       `db:"familiarity"`
	InteractionCount int           `db:"interaction_count"`
	LastInteraction  sql.NullInt64 `db:"last_interaction"`
	LastTopic        string        `db:"last_conversation_topic"`
}

func (r socialRow) memory() agents.SocialMemory {
	return agents.SocialMemory{
		ID:               r.ID,
		From:             r.From,
		To:               r.To,
		Sentiment:        r.Sentiment,
		Familiarity:      r.Familiarity,
		InteractionCount: r.InteractionCount,
		LastInteraction:  fromNanos(r.LastInteraction),
		LastTopic:        r.LastTopic,
	}
}

// GetPersonality loads the avatar's traits.
func (db *DB) GetPersonality(ctx context.Context, avatarID string) (*agents.Personality, error) {
	var row personalityRow
	err := db.conn.GetContext(ctx, &row, "SELECT * FROM agent_personality WHERE avatar_id = ?", avatarID)
	if err != nil {
		return nil, notFound("personality", avatarID, err)
	}
	p := &agents.Personality{
		AvatarID:       row.AvatarID,
		Sociability:    row.Sociability,
		Curiosity:      row.Curiosity,
		Agreeableness:  row.Agreeableness,
		EnergyBaseline: row.EnergyBaseline,
	}
	if err := json.Unmarshal([]byte(row.Affinities), &p.Affinities); err != nil {
		return nil, fmt.Errorf("personality %s: decode affinities: %w", avatarID, err)
	}
	return p, nil
}

// SavePersonality inserts or replaces the avatar's traits.
func (db *DB) SavePersonality(ctx context.Context, p *agents.Personality) error {
	if p == nil || p.AvatarID == "" {
		return fmt.Errorf("save personality: %w", storage.ErrInvalidInput)
	}
	c := p.Clamp()
	p = &c
	affJSON, err := json.Marshal(p.Affinities)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx, `INSERT OR REPLACE INTO agent_personality
		(avatar_id, sociability, curiosity, agreeableness, energy_baseline, world_affinities)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.AvatarID, p.Sociability, p.Curiosity, p.Agreeableness, p.EnergyBaseline, string(affJSON),
	)
	if err != nil {
		return fmt.Errorf("save personality %s: %w", p.AvatarID, err)
	}
	return nil
}

// GetState loads the avatar's needs and current action, with the lease expiry.
func (db *DB) GetState(ctx context.Context, avatarID string) (*agents.NeedState, error) {
	var row stateRow
	err := db.conn.GetContext(ctx, &row, `SELECT s.*, l.lock_until
		FROM agent_state s LEFT JOIN agent_locks l ON l.avatar_id = s.avatar_id
		WHERE s.avatar_id = ?`, avatarID)
	if err != nil {
		return nil, notFound("state", avatarID, err)
	}
	s := &agents.NeedState{
		AvatarID:        row.AvatarID,
		Energy:          row.Energy,
		Hunger:          row.Hunger,
		Loneliness:      row.Loneliness,
		Mood:            row.Mood,
		CurrentAction:   agents.ActionKind(row.CurrentAction),
		ActionStartedAt: fromNanos(row.ActionStartedAt),
		ActionExpiresAt: fromNanos(row.ActionExpiresAt),
		LastTick:        fromNanos(row.LastTick),
		LockUntil:       fromNanos(row.LockUntil),
	}
	if row.CurrentTarget.Valid && row.CurrentTarget.String != "" {
		var t agents.Target
		if err := json.Unmarshal([]byte(row.CurrentTarget.String), &t); err != nil {
			return nil, fmt.Errorf("state %s: decode target: %w", avatarID, err)
		}
		s.CurrentTarget = &t
	}
	clamped := s.Clamp()
	return &clamped, nil
}

// SaveState inserts or replaces the avatar's needs. The lease is not touched.
func (db *DB) SaveState(ctx context.Context, s *agents.NeedState) error {
	if s == nil || s.AvatarID == "" {
		return fmt.Errorf("save state: %w", storage.ErrInvalidInput)
	}
	c := s.Clamp()
	s = &c
	var target sql.NullString
	if s.CurrentTarget != nil {
		b, err := json.Marshal(s.CurrentTarget)
		if err != nil {
			return err
		}
		target = sql.NullString{String: string(b), Valid: true}
	}
	_, err := db.conn.ExecContext(ctx, `INSERT OR REPLACE INTO agent_state
		(avatar_id, energy, hunger, loneliness, mood, current_action, current_action_target,
		 action_started_at, action_expires_at, last_tick)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.AvatarID, s.Energy, s.Hunger, s.Loneliness, s.Mood, string(s.CurrentAction), target,
		toNanos(s.ActionStartedAt), toNanos(s.ActionExpiresAt), toNanos(s.LastTick),
	)
	if err != nil {
		return fmt.Errorf("save state %s: %w", s.AvatarID, err)
	}
	return nil
}

// ReadyAgents lists avatars whose current action has run out.
func (db *DB) ReadyAgents(ctx context.Context, now time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	var ids []string
	err := db.conn.SelectContext(ctx, &ids, `SELECT avatar_id FROM agent_state
		WHERE action_expires_at IS NULL OR action_expires_at <= ?
		ORDER BY COALESCE(action_expires_at, 0), avatar_id
		LIMIT ?`, now.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("ready agents: %w", err)
	}
	return ids, nil
}

// SocialMemories returns every relationship the avatar holds.
func (db *DB) SocialMemories(ctx context.Context, from string) ([]agents.SocialMemory, error) {
	var rows []socialRow
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM social_memory WHERE from_avatar_id = ? ORDER BY to_avatar_id", from)
	if err != nil {
		return nil, fmt.Errorf("social memories %s: %w", from, err)
	}
	out := make([]agents.SocialMemory, len(rows))
	for i, r := range rows {
		out[i] = r.memory()
	}
	return out, nil
}

// UpdateSocialMemory upserts the from→to relationship inside a transaction.
func (db *DB) UpdateSocialMemory(ctx context.Context, from, to string, sentimentDelta, familiarityDelta float64, topic string, now time.Time) (*agents.SocialMemory, error) {
	if from == "" || to == "" || from == to {
		return nil, fmt.Errorf("social memory %q→%q: %w", from, to, storage.ErrInvalidInput)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var row socialRow
	err = tx.GetContext(ctx, &row,
		"SELECT * FROM social_memory WHERE from_avatar_id = ? AND to_avatar_id = ?", from, to)
	var cur agents.SocialMemory
	switch {
	case errors.Is(err, sql.ErrNoRows):
		cur = agents.SocialMemory{ID: uuid.NewString(), From: from, To: to}
	case err != nil:
		return nil, fmt.Errorf("social memory %s→%s: %w", from, to, err)
	default:
		cur = row.memory()
	}

	cur = cur.Apply(sentimentDelta, familiarityDelta, topic, now)
	_, err = tx.ExecContext(ctx, `INSERT INTO social_memory
		(id, from_avatar_id, to_avatar_id, sentiment, familiarity, interaction_count, last_interaction, last_conversation_topic)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (from_avatar_id, to_avatar_id) DO UPDATE SET
			sentiment = excluded.sentiment,
			familiarity = excluded.familiarity,
			interaction_count = excluded.interaction_count,
			last_interaction = excluded.last_interaction,
			last_conversation_topic = excluded.last_conversation_topic`,
		cur.ID, cur.From, cur.To, cur.Sentiment, cur.Familiarity, cur.InteractionCount,
		toNanos(cur.LastInteraction), cur.LastTopic,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert social memory %s→%s: %w", from, to, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &cur, nil
}
