package decision

import (
	"math"
	"math/rand"

	"github.com/talgya/agentmind/internal/agents"
)

// WanderTarget picks a wander destination that drifts toward liked avatars and
// away from disliked ones, blended with a random heading.
func WanderTarget(snap *agents.Snapshot, cfg Config, rng *rand.Rand) agents.Position {
	angle := rng.Float64() * 2 * math.Pi
	dist := cfg.WanderMinDistance + rng.Float64()*(cfg.WanderMaxDistance-cfg.WanderMinDistance)
	rx, ry := math.Cos(angle)*dist, math.Sin(angle)*dist

	dx, dy := rx, ry
	if len(snap.Nearby) > 0 {
		sx, sy := socialPull(snap)
		if mag := math.Hypot(sx, sy); mag > 0 {
			sx, sy = sx/mag*dist, sy/mag*dist
		}
		dx = cfg.SocialWanderInfluence*sx + cfg.WanderRandomness*rx
		dy = cfg.SocialWanderInfluence*sy + cfg.WanderRandomness*ry
	}

	target := agents.Position{
		X: int(float64(snap.Position.X) + dx),
		Y: int(float64(snap.Position.Y) + dy),
	}
	return cfg.Bounds.Clamp(target, cfg.WanderMargin)
}

// socialPull sums a unit vector toward every nearby avatar, signed and scaled
// by how the agent feels about it.
func socialPull(snap *agents.Snapshot) (float64, float64) {
	var sx, sy float64
	s := snap.State
	for _, e := range snap.Nearby {
		dx := float64(e.Position.X - snap.Position.X)
		dy := float64(e.Position.Y - snap.Position.Y)
		d := math.Max(1, math.Hypot(dx, dy))

		sentiment, familiarity := 0.0, 0.0
		if m, ok := snap.Memory(e.ID); ok {
			sentiment, familiarity = m.Sentiment, m.Familiarity
		} else if s.Loneliness > 0.5 {
			sentiment = 0.1
		}

		strength := sentiment / (1 + 0.1*d) * (1 + 0.5*familiarity)
		if sentiment > 0 && s.Loneliness > 0.5 {
			strength *= 1 + s.Loneliness
		}
		if sentiment < 0 && s.Mood < 0.3 {
			strength *= 1.5
		}
		sx += dx / d * strength
		sy += dy / d * strength
	}
	return sx, sy
}
