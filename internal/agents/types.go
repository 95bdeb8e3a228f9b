// Package agents provides the agent data model: personality, needs, social memory,
// world locations, and the per-decision snapshot the decision engine scores against.
package agents

import (
	"time"
)

// Personality holds the stable traits of an agent. Created once, never mutated.
// All traits range from 0.0 to 1.0.
type Personality struct {
	AvatarID       string                       `json:"avatar_id"`
	Sociability    float64                      `json:"sociability"`
	Curiosity      float64                      `json:"curiosity"`
	Agreeableness  float64                      `json:"agreeableness"`
	EnergyBaseline float64                      `json:"energy_baseline"`
	Affinities     map[LocationCategory]float64 `json:"world_affinities"`
}

// Affinity returns the agent's preference for a location category.
// Categories without a recorded preference are neutral (0.5).
func (p *Personality) Affinity(c LocationCategory) float64 {
	if p == nil {
		return 0.5
	}
	a, ok := p.Affinities[c]
	if !ok {
		return 0.5
	}
	return clamp01(a)
}

// Clamp returns a copy with every trait and affinity forced into [0,1].
// The affinity map is copied, never shared with p.
func (p Personality) Clamp() Personality {
	p.Sociability = clamp01(p.Sociability)
	p.Curiosity = clamp01(p.Curiosity)
	p.Agreeableness = clamp01(p.Agreeableness)
	p.EnergyBaseline = clamp01(p.EnergyBaseline)
	if p.Affinities != nil {
		aff := make(map[LocationCategory]float64, len(p.Affinities))
		for c, v := range p.Affinities {
			aff[c] = clamp01(v)
		}
		p.Affinities = aff
	}
	return p
}

// NeedState is the mutable per-agent row: needs plus the current action bookkeeping.
// Energy, Hunger and Loneliness range 0.0–1.0; Mood ranges -1.0 to +1.0.
type NeedState struct {
	AvatarID        string     `json:"avatar_id"`
	Energy          float64    `json:"energy"`
	Hunger          float64    `json:"hunger"`
	Loneliness      float64    `json:"loneliness"`
	Mood            float64    `json:"mood"`
	CurrentAction   ActionKind `json:"current_action"`
	CurrentTarget   *Target    `json:"current_action_target,omitempty"`
	ActionStartedAt *time.Time `json:"action_started_at,omitempty"`
	ActionExpiresAt *time.Time `json:"action_expires_at,omitempty"`
	LastTick        *time.Time `json:"last_tick,omitempty"`
	LockUntil       *time.Time `json:"tick_lock_until,omitempty"`
}

// SocialMemory is the directed relationship record one agent holds about another.
type SocialMemory struct {
	ID               string     `json:"id"`
	From             string     `json:"from_avatar_id"`
	To               string     `json:"to_avatar_id"`
	Sentiment        float64    `json:"sentiment"`   // -1.0 (hatred) to 1.0 (fondness)
	Familiarity      float64    `json:"familiarity"` // 0.0 to 1.0
	InteractionCount int        `json:"interaction_count"`
	LastInteraction  *time.Time `json:"last_interaction,omitempty"`
	LastTopic        string     `json:"last_conversation_topic,omitempty"`
}

// LocationCategory enumerates the kinds of points of interest in the world.
type LocationCategory string

const (
	CategoryFood        LocationCategory = "food"
	CategoryRestArea    LocationCategory = "rest_area"
	CategoryKaraoke     LocationCategory = "karaoke"
	CategorySocialHub   LocationCategory = "social_hub"
	CategoryWanderPoint LocationCategory = "wander_point"
)

// Categories lists every location category in a stable order.
var Categories = []LocationCategory{
	CategoryFood,
	CategoryRestArea,
	CategoryKaraoke,
	CategorySocialHub,
	CategoryWanderPoint,
}

// Valid reports whether c is a known category.
func (c LocationCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// NeedDelta is a set of additive changes to an agent's needs.
type NeedDelta struct {
	Energy     float64 `json:"energy,omitempty" yaml:"energy"`
	Hunger     float64 `json:"hunger,omitempty" yaml:"hunger"`
	Loneliness float64 `json:"loneliness,omitempty" yaml:"loneliness"`
	Mood       float64 `json:"mood,omitempty" yaml:"mood"`
}

// Location is a static point of interest.
type Location struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Category LocationCategory `json:"location_type"`
	Position Position         `json:"position"`
	Effects  NeedDelta        `json:"effects"`
	Cooldown time.Duration    `json:"cooldown"`
	Duration time.Duration    `json:"duration"`
}

// Interaction records an agent using a location. The location stays on cooldown
// for that agent until CooldownUntil.
type Interaction struct {
	ID            string           `json:"id"`
	AvatarID      string           `json:"avatar_id"`
	LocationID    string           `json:"location_id"`
	Category      LocationCategory `json:"interaction_type"`
	StartedAt     time.Time        `json:"started_at"`
	CooldownUntil time.Time        `json:"cooldown_until"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

// ConversationState is where an avatar stands in the conversation subsystem.
type ConversationState string

const (
	ConversationIdle    ConversationState = "IDLE"
	ConversationPending ConversationState = "PENDING_REQUEST"
	ConversationActive  ConversationState = "IN_CONVERSATION"
)

// Presence is an avatar's live position and conversation status.
type Presence struct {
	AvatarID           string            `json:"avatar_id"`
	DisplayName        string            `json:"display_name"`
	Position           Position          `json:"position"`
	Online             bool              `json:"is_online"`
	Conversation       ConversationState `json:"conversation_state"`
	ConversationTarget string            `json:"conversation_target_id,omitempty"`
	// ConversationSince is when Conversation or ConversationTarget last
	// changed. Moving does not touch it, so it orders pending requests.
	ConversationSince time.Time `json:"conversation_since"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NearbyEntity is another avatar within perception range, rebuilt every tick.
// Sentiment and Familiarity are only meaningful when Known is true.
type NearbyEntity struct {
	ID          string   `json:"avatar_id"`
	DisplayName string   `json:"display_name,omitempty"`
	Position    Position `json:"position"`
	Distance    float64  `json:"distance"`
	Online      bool     `json:"is_online"`
	Known       bool     `json:"known"`
	Sentiment   float64  `json:"sentiment"`
	Familiarity float64  `json:"familiarity"`
}

// ConversationRequest is an inbound, not yet answered request to talk.
type ConversationRequest struct {
	InitiatorID   string    `json:"initiator_id"`
	InitiatorName string    `json:"initiator_name,omitempty"`
	Human         bool      `json:"human"`
	Position      Position  `json:"position"`
	ReceivedAt    time.Time `json:"received_at"`
}

// Snapshot is the immutable view of the world from one agent's perspective,
// built once per decision.
type Snapshot struct {
	AvatarID        string
	Position        Position
	Personality     Personality
	State           NeedState
	Memories        map[string]SocialMemory // keyed by target avatar ID
	Nearby          []NearbyEntity
	Locations       []Location
	Cooldowns       map[string]bool // location IDs currently unusable
	InConversation  bool
	PendingRequests []ConversationRequest
	Now             time.Time
}

// Memory returns the social memory held about avatar id, if any.
func (s *Snapshot) Memory(id string) (SocialMemory, bool) {
	m, ok := s.Memories[id]
	return m, ok
}

// OnCooldown reports whether the location is currently blocked for this agent.
func (s *Snapshot) OnCooldown(locationID string) bool {
	return s.Cooldowns[locationID]
}

// Location looks up a location by ID.
func (s *Snapshot) Location(id string) (Location, bool) {
	for _, l := range s.Locations {
		if l.ID == id {
			return l, true
		}
	}
	return Location{}, false
}

// Entity looks up a nearby entity by ID.
func (s *Snapshot) Entity(id string) (NearbyEntity, bool) {
	for _, e := range s.Nearby {
		if e.ID == id {
			return e, true
		}
	}
	return NearbyEntity{}, false
}
