package decision

import (
	"time"

	"github.com/talgya/agentmind/internal/agents"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func neutralPersonality() agents.Personality {
	return agents.Personality{
		AvatarID:       "npc",
		Sociability:    0.5,
		Curiosity:      0.5,
		Agreeableness:  0.5,
		EnergyBaseline: 0.5,
		Affinities: map[agents.LocationCategory]float64{
			agents.CategoryFood:    0.5,
			agents.CategoryKaraoke: 0.5,
		},
	}
}

func baseSnapshot() *agents.Snapshot {
	return &agents.Snapshot{
		AvatarID:    "npc",
		Position:    agents.Position{X: 20, Y: 20},
		Personality: neutralPersonality(),
		State: agents.NeedState{
			AvatarID:      "npc",
			Energy:        0.5,
			Hunger:        0.5,
			Loneliness:    0.5,
			Mood:          0.5,
			CurrentAction: agents.ActionIdle,
		},
		Memories:  map[string]agents.SocialMemory{},
		Cooldowns: map[string]bool{},
		Now:       testNow,
	}
}

func food(id string, x, y int) agents.Location {
	return agents.Location{
		ID:       id,
		Name:     "Noodle Bar " + id,
		Category: agents.CategoryFood,
		Position: agents.Position{X: x, Y: y},
		Effects:  agents.NeedDelta{Hunger: -0.4, Mood: 0.05},
		Cooldown: 10 * time.Minute,
	}
}

func rest(id string, x, y int) agents.Location {
	return agents.Location{
		ID:       id,
		Name:     "Bench " + id,
		Category: agents.CategoryRestArea,
		Position: agents.Position{X: x, Y: y},
		Effects:  agents.NeedDelta{Energy: 0.3},
		Cooldown: 5 * time.Minute,
	}
}

func neighbor(id string, x, y int, from agents.Position) agents.NearbyEntity {
	p := agents.Position{X: x, Y: y}
	return agents.NearbyEntity{ID: id, DisplayName: "avatar " + id, Position: p, Distance: agents.Distance(from, p)}
}

func kinds(cands []Candidate) []agents.ActionKind {
	out := make([]agents.ActionKind, len(cands))
	for i, c := range cands {
		out[i] = c.Kind
	}
	return out
}

func find(cands []Candidate, kind agents.ActionKind, targetID string) (Candidate, bool) {
	for _, c := range cands {
		if c.Kind != kind {
			continue
		}
		if targetID == "" || (c.Target != nil && c.Target.ID == targetID) {
			return c, true
		}
	}
	return Candidate{}, false
}
