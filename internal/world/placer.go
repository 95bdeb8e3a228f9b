package world

import (
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/agentmind/internal/agents"
)

type scoredTile struct {
	pos   agents.Position
	score float64
}

// scoreTiles rates every tile inside the margin, best first.
func scoreTiles(cfg GenConfig, noise opensimplex.Noise) []scoredTile {
	var tiles []scoredTile
	for y := cfg.Margin; y <= cfg.Bounds.Height-cfg.Margin; y++ {
		for x := cfg.Margin; x <= cfg.Bounds.Width-cfg.Margin; x++ {
			tiles = append(tiles, scoredTile{
				pos:   agents.Position{X: x, Y: y},
				score: octaveNoise(noise, float64(x), float64(y), 3, 0.08, 0.5),
			})
		}
	}
	sort.SliceStable(tiles, func(i, j int) bool {
		return tiles[i].score > tiles[j].score
	})
	return tiles
}

func tooClose(p agents.Position, existing []agents.Location, minDist float64) bool {
	for _, l := range existing {
		if agents.Distance(p, l.Position) < minDist {
			return true
		}
	}
	return false
}

// ScatterAvatars gives each id a random free position inside the margin,
// away from every location tile.
func ScatterAvatars(cfg GenConfig, ids []string, locs []agents.Location, rng *rand.Rand) []agents.Presence {
	taken := make(map[agents.Position]bool, len(locs)+len(ids))
	for _, l := range locs {
		taken[l.Position] = true
	}

	w := cfg.Bounds.Width - 2*cfg.Margin + 1
	h := cfg.Bounds.Height - 2*cfg.Margin + 1
	out := make([]agents.Presence, 0, len(ids))
	for _, id := range ids {
		var p agents.Position
		for tries := 0; tries < 100; tries++ {
			p = agents.Position{X: cfg.Margin + rng.Intn(w), Y: cfg.Margin + rng.Intn(h)}
			if !taken[p] {
				break
			}
		}
		taken[p] = true
		out = append(out, agents.Presence{
			AvatarID:     id,
			DisplayName:  id,
			Position:     p,
			Conversation: agents.ConversationIdle,
		})
	}
	return out
}
