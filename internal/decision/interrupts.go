package decision

import (
	"math/rand"

	"github.com/talgya/agentmind/internal/agents"
)

const (
	urgentUtility   = 10.0
	fallbackUtility = 5.0
)

// CheckInterrupts looks for conditions that bypass scoring entirely. Critical
// hunger beats critical energy, which beats pending conversation requests.
func CheckInterrupts(snap *agents.Snapshot, cfg Config, rng *rand.Rand) (Decision, bool) {
	s := snap.State

	if s.Hunger > cfg.Critical.Hunger {
		if loc, ok := nearest(snap, agents.CategoryFood); ok {
			return goTo(snap, loc, cfg, InterruptCriticalHunger), true
		}
	}

	if s.Energy < cfg.Critical.Energy {
		if loc, ok := nearest(snap, agents.CategoryRestArea); ok {
			return goTo(snap, loc, cfg, InterruptCriticalEnergy), true
		}
		return Decision{
			Kind:      agents.ActionIdle,
			Utility:   fallbackUtility,
			Duration:  cfg.ForcedIdle,
			Interrupt: InterruptExhausted,
		}, true
	}

	for _, req := range snap.PendingRequests {
		utility := urgentUtility
		if !req.Human {
			if rng.Float64() >= snap.Personality.Agreeableness {
				continue
			}
			utility = fallbackUtility
		}
		return Decision{
			Kind: agents.ActionJoinConversation,
			Target: &agents.Target{
				Kind:     agents.TargetAvatar,
				ID:       req.InitiatorID,
				Name:     req.InitiatorName,
				Position: req.Position,
			},
			Utility:   utility,
			Duration:  cfg.Duration(agents.ActionJoinConversation),
			Interrupt: InterruptConversationRequest,
		}, true
	}

	return Decision{}, false
}

// nearest returns the closest location of category c that is not on cooldown.
func nearest(snap *agents.Snapshot, c agents.LocationCategory) (agents.Location, bool) {
	var (
		best  agents.Location
		bestD float64
		found bool
	)
	for _, loc := range snap.Locations {
		if loc.Category != c || snap.OnCooldown(loc.ID) {
			continue
		}
		d := agents.Distance(snap.Position, loc.Position)
		if !found || d < bestD {
			best, bestD, found = loc, d, true
		}
	}
	return best, found
}

// goTo interacts with loc when already there, otherwise walks to it.
func goTo(snap *agents.Snapshot, loc agents.Location, cfg Config, why InterruptReason) Decision {
	c := Candidate{Kind: agents.ActionWalkToLocation, Target: locationTarget(loc)}
	if agents.Distance(snap.Position, loc.Position) <= cfg.InteractionRadius {
		if k, ok := agents.InteractionFor(loc.Category); ok {
			c.Kind = k
		}
	}
	return Decision{
		Kind:      c.Kind,
		Target:    c.Target,
		Utility:   urgentUtility,
		Duration:  DurationOf(c, snap, cfg),
		Interrupt: why,
	}
}
