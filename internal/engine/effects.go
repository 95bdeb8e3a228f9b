package engine

import (
	"context"
	"time"

	"github.com/talgya/agentmind/internal/agents"
	"github.com/talgya/agentmind/internal/decision"
)

// Relationship bump for starting a conversation.
const (
	initiateSentiment   = 0.05
	initiateFamiliarity = 0.1
)

// apply carries out the decision: need deltas on the decayed state, movement,
// interaction records and relationship updates. The returned state is not
// yet persisted.
func (e *Engine) apply(ctx context.Context, snap *agents.Snapshot, d decision.Decision, now time.Time) (agents.NeedState, agents.Position, error) {
	cfg := e.Config
	s := snap.State
	pos := snap.Position

	switch {
	case d.Kind == agents.ActionWalkToLocation:
		if d.Target == nil {
			break
		}
		loc, known := snap.Location(d.Target.ID)
		dest := d.Target.Position
		if known {
			dest = loc.Position
		}
		pos = agents.StepToward(pos, dest, cfg.MaxStep)
		if known && agents.Distance(pos, dest) <= cfg.InteractionRadius {
			s = agents.ApplyDelta(s, loc.Effects)
			if _, err := e.Store.RecordInteraction(ctx, snap.AvatarID, loc, now); err != nil {
				return s, pos, err
			}
		} else {
			s = agents.ApplyDelta(s, cfg.Effect(d.Kind))
		}

	case d.Kind.IsInteraction():
		if d.Target == nil {
			break
		}
		loc, ok := snap.Location(d.Target.ID)
		if !ok {
			break
		}
		s = agents.ApplyDelta(s, loc.Effects)
		if _, err := e.Store.RecordInteraction(ctx, snap.AvatarID, loc, now); err != nil {
			return s, pos, err
		}

	case d.Kind == agents.ActionInitiateConversation:
		s = agents.ApplyDelta(s, cfg.Effect(d.Kind))
		if d.Target != nil && d.Target.ID != "" {
			if _, err := e.Store.UpdateSocialMemory(ctx, snap.AvatarID, d.Target.ID,
				initiateSentiment, initiateFamiliarity, "", now); err != nil {
				return s, pos, err
			}
		}

	default:
		s = agents.ApplyDelta(s, cfg.Effect(d.Kind))
		if d.Kind.Moves() && d.Target != nil {
			pos = agents.StepToward(pos, d.Target.Position, cfg.MaxStep)
		}
	}

	if pos != snap.Position {
		if err := e.Store.SetPosition(ctx, snap.AvatarID, pos); err != nil {
			return s, snap.Position, err
		}
	}
	return s, pos, nil
}
