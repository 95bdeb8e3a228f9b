package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/agentmind/internal/agents"
	"github.com/talgya/agentmind/internal/storage"
)

type locationRow struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	Category string `db:"location_type"`
	X        int    `db:"x"`
	Y        int    `db:"y"`
	Effects  string `db:"effects"`
	Cooldown int64  `db:"cooldown_seconds"`
	Duration int64  `db:"duration_seconds"`
}

type presenceRow struct {
	AvatarID           string `db:"avatar_id"`
	DisplayName        string `db:"display_name"`
	X                  int    `db:"x"`
	Y                  int    `db:"y"`
	Online             bool   `db:"is_online"`
	Conversation       string `db:"conversation_state"`
	ConversationTarget string `db:"conversation_target_id"`
	ConversationSince  int64  `db:"conversation_since"`
	UpdatedAt          int64  `db:"updated_at"`
}

func (r presenceRow) presence() agents.Presence {
	return agents.Presence{
		AvatarID:           r.AvatarID,
		DisplayName:        r.DisplayName,
		Position:           agents.Position{X: r.X, Y: r.Y},
		Online:             r.Online,
		Conversation:       agents.ConversationState(r.Conversation),
		ConversationTarget: r.ConversationTarget,
		ConversationSince:  time.Unix(0, r.ConversationSince).UTC(),
		UpdatedAt:          time.Unix(0, r.UpdatedAt).UTC(),
	}
}

// ListLocations returns every point of interest.
func (db *DB) ListLocations(ctx context.Context) ([]agents.Location, error) {
	var rows []locationRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT * FROM world_locations ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	out := make([]agents.Location, 0, len(rows))
	for _, r := range rows {
		loc := agents.Location{
			ID:       r.ID,
			Name:     r.Name,
			Category: agents.LocationCategory(r.Category),
			Position: agents.Position{X: r.X, Y: r.Y},
			Cooldown: time.Duration(r.Cooldown) * time.Second,
			Duration: time.Duration(r.Duration) * time.Second,
		}
		if err := json.Unmarshal([]byte(r.Effects), &loc.Effects); err != nil {
			return nil, fmt.Errorf("location %s: decode effects: %w", r.ID, err)
		}
		out = append(out, loc)
	}
	return out, nil
}

// SaveLocation inserts or replaces a point of interest.
func (db *DB) SaveLocation(ctx context.Context, loc agents.Location) error {
	if loc.ID == "" || !loc.Category.Valid() {
		return fmt.Errorf("save location %q: %w", loc.ID, storage.ErrInvalidInput)
	}
	effects, err := json.Marshal(loc.Effects)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx, `INSERT OR REPLACE INTO world_locations
		(id, name, location_type, x, y, effects, cooldown_seconds, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		loc.ID, loc.Name, string(loc.Category), loc.Position.X, loc.Position.Y, string(effects),
		int64(loc.Cooldown/time.Second), int64(loc.Duration/time.Second),
	)
	if err != nil {
		return fmt.Errorf("save location %s: %w", loc.ID, err)
	}
	return nil
}

// ActiveCooldowns returns the locations still cooling down for the avatar.
func (db *DB) ActiveCooldowns(ctx context.Context, avatarID string, now time.Time) (map[string]bool, error) {
	var ids []string
	err := db.conn.SelectContext(ctx, &ids, `SELECT DISTINCT location_id FROM agent_interactions
		WHERE avatar_id = ? AND cooldown_until > ?`, avatarID, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("cooldowns %s: %w", avatarID, err)
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// RecordInteraction logs a location use and starts its cooldown.
func (db *DB) RecordInteraction(ctx context.Context, avatarID string, loc agents.Location, now time.Time) (*agents.Interaction, error) {
	if avatarID == "" || loc.ID == "" {
		return nil, fmt.Errorf("record interaction: %w", storage.ErrInvalidInput)
	}
	in := agents.Interaction{
		ID:            uuid.NewString(),
		AvatarID:      avatarID,
		LocationID:    loc.ID,
		Category:      loc.Category,
		StartedAt:     now,
		CooldownUntil: now.Add(loc.Cooldown),
	}
	_, err := db.conn.ExecContext(ctx, `INSERT INTO agent_interactions
		(id, avatar_id, location_id, interaction_type, started_at, cooldown_until)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.AvatarID, in.LocationID, string(in.Category), in.StartedAt.UnixNano(), in.CooldownUntil.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("record interaction %s@%s: %w", avatarID, loc.ID, err)
	}
	return &in, nil
}

// CompleteInteractions closes every open interaction of the avatar.
func (db *DB) CompleteInteractions(ctx context.Context, avatarID string, at time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		"UPDATE agent_interactions SET completed_at = ? WHERE avatar_id = ? AND completed_at IS NULL",
		at.UnixNano(), avatarID)
	if err != nil {
		return fmt.Errorf("complete interactions %s: %w", avatarID, err)
	}
	return nil
}

// Interactions returns the avatar's interaction log, oldest first.
func (db *DB) Interactions(ctx context.Context, avatarID string) ([]agents.Interaction, error) {
	var rows []struct {
		ID            string        `db:"id"`
		AvatarID      string        `db:"avatar_id"`
		LocationID    string        `db:"location_id"`
		Category      string        `db:"interaction_type"`
		StartedAt     int64         `db:"started_at"`
		CooldownUntil int64         `db:"cooldown_until"`
		CompletedAt   sql.NullInt64 `db:"completed_at"`
	}
	err := db.conn.SelectContext(ctx, &rows,
		"SELECT * FROM agent_interactions WHERE avatar_id = ? ORDER BY started_at, id", avatarID)
	if err != nil {
		return nil, fmt.Errorf("interactions %s: %w", avatarID, err)
	}
	out := make([]agents.Interaction, len(rows))
	for i, r := range rows {
		out[i] = agents.Interaction{
			ID:            r.ID,
			AvatarID:      r.AvatarID,
			LocationID:    r.LocationID,
			Category:      agents.LocationCategory(r.Category),
			StartedAt:     time.Unix(0, r.StartedAt).UTC(),
			CooldownUntil: time.Unix(0, r.CooldownUntil).UTC(),
			CompletedAt:   fromNanos(r.CompletedAt),
		}
	}
	return out, nil
}

// GetPresence returns the avatar's live position row.
func (db *DB) GetPresence(ctx context.Context, avatarID string) (*agents.Presence, error) {
	var row presenceRow
	if err := db.conn.GetContext(ctx, &row, "SELECT * FROM user_positions WHERE avatar_id = ?", avatarID); err != nil {
		return nil, notFound("presence", avatarID, err)
	}
	p := row.presence()
	return &p, nil
}

// SavePresence inserts or replaces an avatar's presence row. Without an
// explicit ConversationSince the stored one is kept while the conversation
// state and target are unchanged, and reset to UpdatedAt otherwise.
func (db *DB) SavePresence(ctx context.Context, p agents.Presence) error {
	if p.AvatarID == "" {
		return fmt.Errorf("save presence: %w", storage.ErrInvalidInput)
	}
	if p.Conversation == "" {
		p.Conversation = agents.ConversationIdle
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = db.now()
	}
	explicit := !p.ConversationSince.IsZero()
	if !explicit {
		p.ConversationSince = p.UpdatedAt
	}
	_, err := db.conn.ExecContext(ctx, `INSERT INTO user_positions
		(avatar_id, display_name, x, y, is_online, conversation_state, conversation_target_id, conversation_since, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (avatar_id) DO UPDATE SET
			display_name = excluded.display_name,
			x = excluded.x,
			y = excluded.y,
			is_online = excluded.is_online,
			conversation_since = CASE
				WHEN ? = 0
					AND user_positions.conversation_state = excluded.conversation_state
					AND user_positions.conversation_target_id = excluded.conversation_target_id
				THEN user_positions.conversation_since
				ELSE excluded.conversation_since END,
			conversation_state = excluded.conversation_state,
			conversation_target_id = excluded.conversation_target_id,
			updated_at = excluded.updated_at`,
		p.AvatarID, p.DisplayName, p.Position.X, p.Position.Y, p.Online,
		string(p.Conversation), p.ConversationTarget, p.ConversationSince.UnixNano(), p.UpdatedAt.UnixNano(),
		explicit,
	)
	if err != nil {
		return fmt.Errorf("save presence %s: %w", p.AvatarID, err)
	}
	return nil
}

// SetPosition moves an existing avatar.
func (db *DB) SetPosition(ctx context.Context, avatarID string, pos agents.Position) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE user_positions SET x = ?, y = ?, updated_at = ? WHERE avatar_id = ?",
		pos.X, pos.Y, db.now().UnixNano(), avatarID)
	if err != nil {
		return fmt.Errorf("set position %s: %w", avatarID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("presence %s: %w", avatarID, storage.ErrNotFound)
	}
	return nil
}

// NearbyEntities lists other avatars within radius, nearest first.
func (db *DB) NearbyEntities(ctx context.Context, avatarID string, radius float64) ([]agents.NearbyEntity, error) {
	self, err := db.GetPresence(ctx, avatarID)
	if err != nil {
		return nil, err
	}
	r := int(math.Ceil(radius))
	var rows []presenceRow
	err = db.conn.SelectContext(ctx, &rows, `SELECT * FROM user_positions
		WHERE avatar_id != ? AND x BETWEEN ? AND ? AND y BETWEEN ? AND ?`,
		avatarID, self.Position.X-r, self.Position.X+r, self.Position.Y-r, self.Position.Y+r)
	if err != nil {
		return nil, fmt.Errorf("nearby %s: %w", avatarID, err)
	}

	var out []agents.NearbyEntity
	for _, row := range rows {
		p := row.presence()
		d := agents.Distance(self.Position, p.Position)
		if d > radius {
			continue
		}
		out = append(out, agents.NearbyEntity{
			ID:          p.AvatarID,
			DisplayName: p.DisplayName,
			Position:    p.Position,
			Distance:    d,
			Online:      p.Online,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// PendingRequests lists avatars waiting on this one to accept a conversation,
// in the order the requests were made.
func (db *DB) PendingRequests(ctx context.Context, avatarID string) ([]agents.ConversationRequest, error) {
	var rows []presenceRow
	err := db.conn.SelectContext(ctx, &rows, `SELECT * FROM user_positions
		WHERE conversation_target_id = ? AND conversation_state = ?
		ORDER BY conversation_since, avatar_id`, avatarID, string(agents.ConversationPending))
	if err != nil {
		return nil, fmt.Errorf("pending requests %s: %w", avatarID, err)
	}
	out := make([]agents.ConversationRequest, len(rows))
	for i, row := range rows {
		p := row.presence()
		out[i] = agents.ConversationRequest{
			InitiatorID:   p.AvatarID,
			InitiatorName: p.DisplayName,
			Human:         p.Online,
			Position:      p.Position,
			ReceivedAt:    p.ConversationSince,
		}
	}
	return out, nil
}
