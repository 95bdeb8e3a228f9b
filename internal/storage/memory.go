package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/agentmind/internal/agents"
)

type pair struct{ from, to string }

// Memory is an in-process Store, Seeder and Locker. All methods are safe for
// concurrent use.
type Memory struct {
	mu            sync.Mutex
	now           func() time.Time
	personalities map[string]agents.Personality
	states        map[string]agents.NeedState
	social        map[pair]agents.SocialMemory
	locations     map[string]agents.Location
	interactions  []agents.Interaction
	presence      map[string]agents.Presence
	leases        map[string]time.Time
}

var (
	_ Store  = (*Memory)(nil)
	_ Seeder = (*Memory)(nil)
	_ Locker = (*Memory)(nil)
)

// NewMemory returns an empty store that uses the wall clock for leases.
func NewMemory() *Memory {
	return &Memory{
		now:           time.Now,
		personalities: make(map[string]agents.Personality),
		states:        make(map[string]agents.NeedState),
		social:        make(map[pair]agents.SocialMemory),
		locations:     make(map[string]agents.Location),
		presence:      make(map[string]agents.Presence),
		leases:        make(map[string]time.Time),
	}
}

// SetClock replaces the clock used to expire leases.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) GetPersonality(ctx context.Context, avatarID string) (*agents.Personality, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.personalities[avatarID]
	if !ok {
		return nil, fmt.Errorf("personality %s: %w", avatarID, ErrNotFound)
	}
	p.Affinities = copyAffinities(p.Affinities)
	return &p, nil
}

func (m *Memory) SavePersonality(ctx context.Context, p *agents.Personality) error {
	if p == nil || p.AvatarID == "" {
		return fmt.Errorf("save personality: %w", ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.personalities[p.AvatarID] = p.Clamp()
	return nil
}

func (m *Memory) GetState(ctx context.Context, avatarID string) (*agents.NeedState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[avatarID]
	if !ok {
		return nil, fmt.Errorf("state %s: %w", avatarID, ErrNotFound)
	}
	return &s, nil
}

func (m *Memory) SaveState(ctx context.Context, s *agents.NeedState) error {
	if s == nil || s.AvatarID == "" {
		return fmt.Errorf("save state: %w", ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := s.Clamp()
	if s.CurrentTarget != nil {
		t := *s.CurrentTarget
		cp.CurrentTarget = &t
	}
	m.states[s.AvatarID] = cp
	return nil
}

func (m *Memory) ReadyAgents(ctx context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type ready struct {
		id      string
		expires time.Time
	}
	var rs []ready
	for id, s := range m.states {
		if s.ActionExpiresAt == nil {
			rs = append(rs, ready{id: id})
			continue
		}
		if !s.ActionExpiresAt.After(now) {
			rs = append(rs, ready{id: id, expires: *s.ActionExpiresAt})
		}
	}
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].expires.Equal(rs[j].expires) {
			return rs[i].expires.Before(rs[j].expires)
		}
		return rs[i].id < rs[j].id
	})

	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.id
	}
	return ids, nil
}

func (m *Memory) SocialMemories(ctx context.Context, from string) ([]agents.SocialMemory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []agents.SocialMemory
	for k, v := range m.social {
		if k.from == from {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].To < out[j].To })
	return out, nil
}

func (m *Memory) UpdateSocialMemory(ctx context.Context, from, to string, sentimentDelta, familiarityDelta float64, topic string, now time.Time) (*agents.SocialMemory, error) {
	if from == "" || to == "" || from == to {
		return nil, fmt.Errorf("social memory %q→%q: %w", from, to, ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := pair{from, to}
	cur, ok := m.social[k]
	if !ok {
		cur = agents.SocialMemory{ID: uuid.NewString(), From: from, To: to}
	}
	cur = cur.Apply(sentimentDelta, familiarityDelta, topic, now)
	m.social[k] = cur
	return &cur, nil
}

func (m *Memory) ListLocations(ctx context.Context) ([]agents.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]agents.Location, 0, len(m.locations))
	for _, l := range m.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ActiveCooldowns(ctx context.Context, avatarID string, now time.Time) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool)
	for _, in := range m.interactions {
		if in.AvatarID == avatarID && in.CooldownUntil.After(now) {
			out[in.LocationID] = true
		}
	}
	return out, nil
}

func (m *Memory) RecordInteraction(ctx context.Context, avatarID string, loc agents.Location, now time.Time) (*agents.Interaction, error) {
	if avatarID == "" || loc.ID == "" {
		return nil, fmt.Errorf("record interaction: %w", ErrInvalidInput)
	}
	in := agents.Interaction{
		ID:            uuid.NewString(),
		AvatarID:      avatarID,
		LocationID:    loc.ID,
		Category:      loc.Category,
		StartedAt:     now,
		CooldownUntil: now.Add(loc.Cooldown),
	}
	m.mu.Lock()
	m.interactions = append(m.interactions, in)
	m.mu.Unlock()
	return &in, nil
}

func (m *Memory) CompleteInteractions(ctx context.Context, avatarID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.interactions {
		in := &m.interactions[i]
		if in.AvatarID == avatarID && in.CompletedAt == nil {
			t := at
			in.CompletedAt = &t
		}
	}
	return nil
}

// Interactions returns the full interaction log of an avatar, oldest first.
func (m *Memory) Interactions(avatarID string) []agents.Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []agents.Interaction
	for _, in := range m.interactions {
		if in.AvatarID == avatarID {
			out = append(out, in)
		}
	}
	return out
}

func (m *Memory) GetPresence(ctx context.Context, avatarID string) (*agents.Presence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presence[avatarID]
	if !ok {
		return nil, fmt.Errorf("presence %s: %w", avatarID, ErrNotFound)
	}
	return &p, nil
}

func (m *Memory) SetPosition(ctx context.Context, avatarID string, pos agents.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presence[avatarID]
	if !ok {
		return fmt.Errorf("presence %s: %w", avatarID, ErrNotFound)
	}
	p.Position = pos
	p.UpdatedAt = m.now()
	m.presence[avatarID] = p
	return nil
}

func (m *Memory) NearbyEntities(ctx context.Context, avatarID string, radius float64) ([]agents.NearbyEntity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	self, ok := m.presence[avatarID]
	if !ok {
		return nil, fmt.Errorf("presence %s: %w", avatarID, ErrNotFound)
	}
	var out []agents.NearbyEntity
	for id, p := range m.presence {
		if id == avatarID {
			continue
		}
		d := agents.Distance(self.Position, p.Position)
		if d > radius {
			continue
		}
		out = append(out, agents.NearbyEntity{
			ID:          id,
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

func (m *Memory) PendingRequests(ctx context.Context, avatarID string) ([]agents.ConversationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []agents.ConversationRequest
	for id, p := range m.presence {
		if p.ConversationTarget != avatarID || p.Conversation != agents.ConversationPending {
			continue
		}
		out = append(out, agents.ConversationRequest{
			InitiatorID:   id,
			InitiatorName: p.DisplayName,
			Human:         p.Online,
			Position:      p.Position,
			ReceivedAt:    p.ConversationSince,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ReceivedAt.Equal(out[j].ReceivedAt) {
			return out[i].ReceivedAt.Before(out[j].ReceivedAt)
		}
		return out[i].InitiatorID < out[j].InitiatorID
	})
	return out, nil
}

func (m *Memory) SaveLocation(ctx context.Context, loc agents.Location) error {
	if loc.ID == "" || !loc.Category.Valid() {
		return fmt.Errorf("save location %q: %w", loc.ID, ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[loc.ID] = loc
	return nil
}

func (m *Memory) SavePresence(ctx context.Context, p agents.Presence) error {
	if p.AvatarID == "" {
		return fmt.Errorf("save presence: %w", ErrInvalidInput)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Conversation == "" {
		p.Conversation = agents.ConversationIdle
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = m.now()
	}
	if p.ConversationSince.IsZero() {
		p.ConversationSince = p.UpdatedAt
		if old, ok := m.presence[p.AvatarID]; ok &&
			old.Conversation == p.Conversation && old.ConversationTarget == p.ConversationTarget {
			p.ConversationSince = old.ConversationSince
		}
	}
	m.presence[p.AvatarID] = p
	return nil
}

// Acquire takes a lease that expires after ttl unless released first.
func (m *Memory) Acquire(ctx context.Context, avatarID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if until, held := m.leases[avatarID]; held && until.After(now) {
		return false, nil
	}
	m.leases[avatarID] = now.Add(ttl)
	return true, nil
}

func (m *Memory) Release(ctx context.Context, avatarID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, avatarID)
	return nil
}

func copyAffinities(in map[agents.LocationCategory]float64) map[agents.LocationCategory]float64 {
	if in == nil {
		return nil
	}
	out := make(map[agents.LocationCategory]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
