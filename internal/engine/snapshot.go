package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/talgya/agentmind/internal/agents"
	"github.com/talgya/agentmind/internal/storage"
)

// snapshot gathers everything the decision pass needs. Agents without a
// personality or state get random ones, persisted before use.
func (e *Engine) snapshot(ctx context.Context, avatarID string, now time.Time, rng *rand.Rand) (*agents.Snapshot, error) {
	pres, err := e.Store.GetPresence(ctx, avatarID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAvatar, avatarID)
	}
	if err != nil {
		return nil, err
	}

	personality, err := e.loadPersonality(ctx, avatarID, rng)
	if err != nil {
		return nil, err
	}
	state, err := e.loadState(ctx, avatarID, rng)
	if err != nil {
		return nil, err
	}

	mems, err := e.Store.SocialMemories(ctx, avatarID)
	if err != nil {
		return nil, err
	}
	byTarget := make(map[string]agents.SocialMemory, len(mems))
	for _, m := range mems {
		byTarget[m.To] = m
	}

	nearby, err := e.Store.NearbyEntities(ctx, avatarID, e.Config.FleeRadius())
	if err != nil {
		return nil, err
	}
	for i := range nearby {
		if m, ok := byTarget[nearby[i].ID]; ok {
			nearby[i].Known = true
			nearby[i].Sentiment = m.Sentiment
			nearby[i].Familiarity = m.Familiarity
		}
	}

	locs, err := e.Store.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	cooldowns, err := e.Store.ActiveCooldowns(ctx, avatarID, now)
	if err != nil {
		return nil, err
	}
	requests, err := e.Store.PendingRequests(ctx, avatarID)
	if err != nil {
		return nil, err
	}

	return &agents.Snapshot{
		AvatarID:        avatarID,
		Position:        pres.Position,
		Personality:     *personality,
		State:           *state,
		Memories:        byTarget,
		Nearby:          nearby,
		Locations:       locs,
		Cooldowns:       cooldowns,
		InConversation:  pres.Conversation == agents.ConversationActive,
		PendingRequests: requests,
		Now:             now,
	}, nil
}

func (e *Engine) loadPersonality(ctx context.Context, avatarID string, rng *rand.Rand) (*agents.Personality, error) {
	p, err := e.Store.GetPersonality(ctx, avatarID)
	if !errors.Is(err, storage.ErrNotFound) {
		return p, err
	}
	fresh := agents.RandomPersonality(rng, avatarID)
	if err := e.Store.SavePersonality(ctx, &fresh); err != nil {
		return nil, fmt.Errorf("initialize personality: %w", err)
	}
	slog.Info("agent personality initialized", "avatar", avatarID, "sociability", fresh.Sociability)
	return &fresh, nil
}

func (e *Engine) loadState(ctx context.Context, avatarID string, rng *rand.Rand) (*agents.NeedState, error) {
	s, err := e.Store.GetState(ctx, avatarID)
	if !errors.Is(err, storage.ErrNotFound) {
		return s, err
	}
	fresh := agents.RandomState(rng, avatarID)
	if err := e.Store.SaveState(ctx, &fresh); err != nil {
		return nil, fmt.Errorf("initialize state: %w", err)
	}
	slog.Info("agent state initialized", "avatar", avatarID)
	return &fresh, nil
}
