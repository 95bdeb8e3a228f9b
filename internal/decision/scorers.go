package decision

import (
	"math"
	"time"

	"github.com/talgya/agentmind/internal/agents"
)

// Resolved is a candidate's target looked up in the snapshot. Any field may be
// nil: positions resolve to nothing, avatars may have no memory.
type Resolved struct {
	Location *agents.Location
	Entity   *agents.NearbyEntity
	Memory   *agents.SocialMemory
}

// Resolve looks up the location, avatar and social memory a candidate points at.
func Resolve(c Candidate, snap *agents.Snapshot) Resolved {
	var r Resolved
	if c.Target == nil || c.Target.ID == "" {
		return r
	}
	switch c.Target.Kind {
	case agents.TargetLocation:
		if loc, ok := snap.Location(c.Target.ID); ok {
			r.Location = &loc
		}
	case agents.TargetAvatar:
		if e, ok := snap.Entity(c.Target.ID); ok {
			r.Entity = &e
		}
		if m, ok := snap.Memory(c.Target.ID); ok {
			r.Memory = &m
		}
	}
	return r
}

// effectiveKind maps walking to a location onto the interaction it leads to.
func effectiveKind(kind agents.ActionKind, r Resolved) agents.ActionKind {
	if kind != agents.ActionWalkToLocation || r.Location == nil {
		return kind
	}
	if k, ok := agents.InteractionFor(r.Location.Category); ok {
		return k
	}
	return kind
}

// NeedSatisfaction rewards actions that relieve the most pressing needs.
func NeedSatisfaction(kind agents.ActionKind, s agents.NeedState, r Resolved, cfg Config) float64 {
	if kind == agents.ActionIdle {
		return (1 - s.Energy) * 0.05
	}

	score := 0.1 // any concrete activity beats standing around
	switch effectiveKind(kind, r) {
	case agents.ActionInteractFood:
		score += s.Hunger * 1.5
		if s.Hunger > cfg.Critical.Hunger {
			score += 0.5
		}
	case agents.ActionInteractRest:
		score += (1 - s.Energy) * 1.5
		if s.Energy < cfg.Critical.Energy {
			score += 0.5
		}
	case agents.ActionInitiateConversation, agents.ActionJoinConversation:
		score += s.Loneliness * 1.2
		if s.Loneliness > cfg.Critical.Loneliness {
			score += 0.4
		}
	case agents.ActionInteractKaraoke:
		score += s.Loneliness*0.8 + (1-s.Mood)*0.25
	case agents.ActionInteractSocialHub:
		score += s.Loneliness * 0.6
	case agents.ActionWander, agents.ActionInteractWanderPoint:
		score += 0.2
	}
	return score
}

// PersonalityAlignment rewards actions that match stable traits.
func PersonalityAlignment(kind agents.ActionKind, p agents.Personality, r Resolved) float64 {
	kind = effectiveKind(kind, r)
	score := 0.0
	switch kind {
	case agents.ActionInitiateConversation, agents.ActionJoinConversation, agents.ActionInteractSocialHub:
		score += p.Sociability * 0.8
	}
	switch kind {
	case agents.ActionWander, agents.ActionInteractWanderPoint:
		score += p.Curiosity * 0.6
	}
	if kind == agents.ActionJoinConversation {
		score += p.Agreeableness * 0.3
	}
	switch kind {
	case agents.ActionIdle, agents.ActionInteractRest:
		score += (1 - p.EnergyBaseline) * 0.4
	case agents.ActionWander, agents.ActionInteractKaraoke:
		score += p.EnergyBaseline * 0.3
	}
	return score
}

// SocialBias scores avatar-targeted actions by the relationship with the target.
func SocialBias(kind agents.ActionKind, r Resolved, cfg Config) float64 {
	if r.Entity == nil {
		return 0
	}

	score := 0.0
	if m := r.Memory; m != nil {
		if kind == agents.ActionInitiateConversation {
			score += m.Sentiment*0.5 + m.Familiarity*0.3
			if m.InteractionCount > 3 {
				score += 0.1
			}
			if m.InteractionCount > 10 {
				score += 0.1
			}
		}
		if m.Sentiment < -0.5 {
			score -= 0.5
		}
		if kind == agents.ActionAvoidAvatar {
			score += math.Abs(m.Sentiment) * 1.5
			if r.Entity.Distance <= cfg.VeryClose {
				score += 0.5
			}
		}
	} else {
		score += 0.15
	}

	if r.Entity.Online && kind == agents.ActionInitiateConversation {
		score += 0.2
	}
	return score
}

// WorldAffinity maps the agent's preference for the target location's category
// through AffinityCurve. Zero for actions without a location.
func WorldAffinity(kind agents.ActionKind, p agents.Personality, r Resolved) float64 {
	if r.Location == nil {
		return 0
	}
	if kind != agents.ActionWalkToLocation && !kind.IsInteraction() {
		return 0
	}
	return AffinityCurve(p.Affinity(r.Location.Category))
}

// AffinityCurve turns a [0,1] preference into a score. The curve is segmented
// so that strong preferences dominate weak ones.
func AffinityCurve(a float64) float64 {
	switch {
	case math.IsNaN(a) || a < 0:
		a = 0
	case a > 1:
		a = 1
	}
	switch {
	case a < 0.3:
		return -0.3 + a
	case a < 0.6:
		return 0.1
	case a < 0.8:
		return 0.4 + (a - 0.6)
	default:
		return 0.9 + 1.5*(a-0.8)
	}
}

// RecencyPenalty discourages re-approaching someone just talked to and
// targeting a location that is on cooldown. The result is subtracted.
func RecencyPenalty(kind agents.ActionKind, r Resolved, snap *agents.Snapshot, cfg Config) float64 {
	penalty := 0.0
	if kind == agents.ActionInitiateConversation && r.Memory != nil {
		if since, ok := r.Memory.Since(snap.Now); ok {
			penalty += recencyDecay(since, cfg)
		}
	}
	if r.Location != nil && snap.OnCooldown(r.Location.ID) {
		penalty += cfg.CooldownPenalty
	}
	return penalty
}

func recencyDecay(since time.Duration, cfg Config) float64 {
	if since < 0 {
		since = 0
	}
	if since >= cfg.RecentWindow {
		return 0
	}
	return cfg.ConversationPenalty * (1 - float64(since)/float64(cfg.RecentWindow))
}
