// Location generation using layered simplex noise. Each category samples its
// own noise layer over the tile grid and claims the best-scoring tiles that
// keep their distance from everything already placed.
package world

import (
	"fmt"
	"math/rand"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/agentmind/internal/agents"
)

// GenConfig holds location generation parameters.
type GenConfig struct {
	Bounds     agents.Bounds
	Seed       int64 // 0 = random
	Margin     int   // tiles kept free along every edge
	MinSpacing float64
	Counts     map[agents.LocationCategory]int
}

// DefaultGenConfig returns the stock town layout on the default world size.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Bounds:     agents.Bounds{Width: 75, Height: 56},
		Seed:       0,
		Margin:     3,
		MinSpacing: 6,
		Counts: map[agents.LocationCategory]int{
			agents.CategoryFood:        3,
			agents.CategoryRestArea:    2,
			agents.CategoryKaraoke:     1,
			agents.CategorySocialHub:   2,
			agents.CategoryWanderPoint: 6,
		},
	}
}

// template is what every location of a category shares.
type template struct {
	name     string
	effects  agents.NeedDelta
	cooldown time.Duration
	duration time.Duration
}

var templates = map[agents.LocationCategory]template{
	agents.CategoryFood: {
		name:     "Food Stall",
		effects:  agents.NeedDelta{Hunger: -0.4, Mood: 0.05},
		cooldown: 10 * time.Minute,
		duration: 90 * time.Second,
	},
	agents.CategoryRestArea: {
		name:     "Rest Area",
		effects:  agents.NeedDelta{Energy: 0.4, Mood: 0.02},
		cooldown: 15 * time.Minute,
		duration: 2 * time.Minute,
	},
	agents.CategoryKaraoke: {
		name:     "Karaoke Bar",
		effects:  agents.NeedDelta{Energy: -0.1, Loneliness: -0.1, Mood: 0.3},
		cooldown: 20 * time.Minute,
		duration: 3 * time.Minute,
	},
	agents.CategorySocialHub: {
		name:     "Plaza",
		effects:  agents.NeedDelta{Loneliness: -0.25, Mood: 0.1},
		cooldown: 10 * time.Minute,
		duration: 2 * time.Minute,
	},
	agents.CategoryWanderPoint: {
		name:     "Lookout",
		effects:  agents.NeedDelta{Energy: -0.05, Mood: 0.1},
		cooldown: 5 * time.Minute,
		duration: time.Minute,
	},
}

// Generate places locations for every category in cfg.Counts. The same
// non-zero seed always yields the same layout. Fewer locations than asked
// for are returned when the grid cannot fit them at MinSpacing.
func Generate(cfg GenConfig) []agents.Location {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	var placed []agents.Location
	for i, cat := range agents.Categories {
		want := cfg.Counts[cat]
		if want <= 0 {
			continue
		}
		noise := opensimplex.NewNormalized(seed + int64(i))
		tmpl := templates[cat]

		n := 0
		for _, t := range scoreTiles(cfg, noise) {
			if n >= want {
				break
			}
			if tooClose(t.pos, placed, cfg.MinSpacing) {
				continue
			}
			n++
			placed = append(placed, agents.Location{
				ID:       fmt.Sprintf("%s-%d", cat, n),
				Name:     fmt.Sprintf("%s %d", tmpl.name, n),
				Category: cat,
				Position: t.pos,
				Effects:  tmpl.effects,
				Cooldown: tmpl.cooldown,
				Duration: tmpl.duration,
			})
		}
	}
	return placed
}

// octaveNoise samples multi-octave noise, normalized back to the layer's range.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
