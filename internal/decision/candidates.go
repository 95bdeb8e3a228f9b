package decision

import (
	"math"
	"math/rand"
	"time"

	"github.com/talgya/agentmind/internal/agents"
)

// Candidate is one feasible action together with its score breakdown.
// Component scores are stored already weighted.
type Candidate struct {
	Kind        agents.ActionKind `json:"action_type"`
	Target      *agents.Target    `json:"target,omitempty"`
	Need        float64           `json:"need_satisfaction"`
	Personality float64           `json:"personality_alignment"`
	Social      float64           `json:"social_memory_bias"`
	Affinity    float64           `json:"world_affinity"`
	Recency     float64           `json:"recency_penalty"`
	Noise       float64           `json:"randomness"`
	Utility     float64           `json:"utility_score"`
}

// InterruptReason names the condition that pre-empted normal scoring.
type InterruptReason string

const (
	InterruptNone                InterruptReason = ""
	InterruptCriticalHunger      InterruptReason = "critical_hunger"
	InterruptCriticalEnergy      InterruptReason = "critical_energy"
	InterruptExhausted           InterruptReason = "exhausted"
	InterruptConversationRequest InterruptReason = "conversation_request"
)

// Decision is the selected action.
type Decision struct {
	Kind      agents.ActionKind `json:"action_type"`
	Target    *agents.Target    `json:"target,omitempty"`
	Utility   float64           `json:"utility_score"`
	Duration  time.Duration     `json:"duration"`
	Interrupt InterruptReason   `json:"interrupt,omitempty"`
}

// Candidates enumerates every action the agent could take right now.
// Idle and Wander are always present.
func Candidates(snap *agents.Snapshot, cfg Config, rng *rand.Rand) []Candidate {
	wander := WanderTarget(snap, cfg, rng)
	out := []Candidate{
		{Kind: agents.ActionIdle},
		{Kind: agents.ActionWander, Target: &agents.Target{Kind: agents.TargetPosition, Position: wander}},
	}

	for _, loc := range snap.Locations {
		if snap.OnCooldown(loc.ID) {
			continue
		}
		kind := agents.ActionWalkToLocation
		if agents.Distance(snap.Position, loc.Position) <= cfg.InteractionRadius {
			k, ok := agents.InteractionFor(loc.Category)
			if !ok {
				continue
			}
			kind = k
		}
		out = append(out, Candidate{Kind: kind, Target: locationTarget(loc)})
	}

	if snap.InConversation {
		return append(out, Candidate{Kind: agents.ActionLeaveConversation})
	}

	for _, e := range snap.Nearby {
		m, known := snap.Memory(e.ID)
		switch {
		case known && m.Sentiment < cfg.AvoidSentiment && e.Distance <= cfg.FleeRadius():
			out = append(out, Candidate{
				Kind: agents.ActionAvoidAvatar,
				Target: &agents.Target{
					Kind:     agents.TargetAvatar,
					ID:       e.ID,
					Name:     e.DisplayName,
					Position: fleeFrom(snap.Position, e.Position, cfg),
				},
			})
		case e.Distance <= cfg.ConversationRadius:
			out = append(out, Candidate{
				Kind: agents.ActionInitiateConversation,
				Target: &agents.Target{
					Kind:     agents.TargetAvatar,
					ID:       e.ID,
					Name:     e.DisplayName,
					Position: e.Position,
				},
			})
		}
	}
	return out
}

func locationTarget(loc agents.Location) *agents.Target {
	return &agents.Target{
		Kind:     agents.TargetLocation,
		ID:       loc.ID,
		Name:     loc.Name,
		Position: loc.Position,
	}
}

// fleeFrom reflects self away from other by the flee distance.
func fleeFrom(self, other agents.Position, cfg Config) agents.Position {
	dx := float64(self.X - other.X)
	dy := float64(self.Y - other.Y)
	d := math.Max(1, math.Hypot(dx, dy))
	p := agents.Position{
		X: int(float64(self.X) + dx/d*cfg.FleeDistance),
		Y: int(float64(self.Y) + dy/d*cfg.FleeDistance),
	}
	return cfg.Bounds.Clamp(p, cfg.FleeMargin)
}
