// Package storage defines the persistence boundary of the decision engine.
//
// The engine depends on small, focused interfaces that can be implemented
// independently and composed. Memory is the in-process implementation used by
// tests and the demo server; the persistence package provides SQLite.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/talgya/agentmind/internal/agents"
)

var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// PersonalityStore holds the immutable trait rows.
type PersonalityStore interface {
	// GetPersonality returns ErrNotFound when the avatar has none yet.
	GetPersonality(ctx context.Context, avatarID string) (*agents.Personality, error)

	// SavePersonality creates or replaces the personality row.
	SavePersonality(ctx context.Context, p *agents.Personality) error
}

// StateStore holds the mutable need state of each agent.
type StateStore interface {
	// GetState returns ErrNotFound when the avatar has none yet.
	GetState(ctx context.Context, avatarID string) (*agents.NeedState, error)

	// SaveState creates or replaces the state row.
	SaveState(ctx context.Context, s *agents.NeedState) error

	// ReadyAgents lists avatars whose current action has expired at now,
	// oldest expiry first. limit <= 0 means no limit.
	ReadyAgents(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// SocialStore holds the directed relationship graph.
type SocialStore interface {
	// SocialMemories returns every memory held by from.
	SocialMemories(ctx context.Context, from string) ([]agents.SocialMemory, error)

	// UpdateSocialMemory upserts the from→to memory, applying clamped deltas
	// and incrementing the interaction count by one.
	UpdateSocialMemory(ctx context.Context, from, to string, sentimentDelta, familiarityDelta float64, topic string, now time.Time) (*agents.SocialMemory, error)
}

// WorldStore holds locations and the interaction log that drives cooldowns.
type WorldStore interface {
	ListLocations(ctx context.Context) ([]agents.Location, error)

	// ActiveCooldowns returns the IDs of locations the avatar used whose
	// cooldown has not yet passed at now.
	ActiveCooldowns(ctx context.Context, avatarID string, now time.Time) (map[string]bool, error)

	// RecordInteraction logs a use of loc starting at now. The location is on
	// cooldown for the avatar until now + loc.Cooldown.
	RecordInteraction(ctx context.Context, avatarID string, loc agents.Location, now time.Time) (*agents.Interaction, error)

	// CompleteInteractions stamps every open interaction of the avatar as done.
	CompleteInteractions(ctx context.Context, avatarID string, at time.Time) error
}

// PresenceStore exposes where avatars are and who wants to talk to whom.
type PresenceStore interface {
	// GetPresence returns ErrNotFound for unknown avatars.
	GetPresence(ctx context.Context, avatarID string) (*agents.Presence, error)

	SetPosition(ctx context.Context, avatarID string, pos agents.Position) error

	// NearbyEntities lists other avatars within radius, nearest first.
	// Sentiment and familiarity are left for the caller to fill in.
	NearbyEntities(ctx context.Context, avatarID string, radius float64) ([]agents.NearbyEntity, error)

	// PendingRequests lists unanswered conversation requests addressed to
	// the avatar in the order they were made.
	PendingRequests(ctx context.Context, avatarID string) ([]agents.ConversationRequest, error)
}

// Locker provides a per-avatar mutual exclusion lease.
type Locker interface {
	// Acquire takes the lease for ttl. It reports false, without error, when
	// someone else holds an unexpired lease.
	Acquire(ctx context.Context, avatarID string, ttl time.Duration) (bool, error)

	// Release gives the lease back. Releasing an unheld lease is not an error.
	Release(ctx context.Context, avatarID string) error
}

// Store is everything the tick orchestrator reads and writes.
type Store interface {
	PersonalityStore
	StateStore
	SocialStore
	WorldStore
	PresenceStore
}

// Seeder loads static world data and avatar presence. Used by the seed
// command and tests, never by the engine itself.
type Seeder interface {
	SaveLocation(ctx context.Context, loc agents.Location) error
	SavePresence(ctx context.Context, p agents.Presence) error
}
