// Agent spawning: random personality and starting needs for avatars that
// enter the engine without stored data.
package agents

import "math/rand"

// RandomPersonality draws a moderate, slightly varied personality.
func RandomPersonality(rng *rand.Rand, avatarID string) Personality {
	return Personality{
		AvatarID:       avatarID,
		Sociability:    between(rng, 0.3, 0.7),
		Curiosity:      between(rng, 0.3, 0.7),
		Agreeableness:  between(rng, 0.4, 0.7),
		EnergyBaseline: between(rng, 0.4, 0.7),
		Affinities: map[LocationCategory]float64{
			CategoryFood:        between(rng, 0.3, 0.7),
			CategoryKaraoke:     between(rng, 0.2, 0.7),
			CategoryRestArea:    between(rng, 0.3, 0.6),
			CategorySocialHub:   between(rng, 0.3, 0.7),
			CategoryWanderPoint: between(rng, 0.3, 0.6),
		},
	}
}

// RandomState draws fresh, mostly satisfied starting needs.
func RandomState(rng *rand.Rand, avatarID string) NeedState {
	return NeedState{
		AvatarID:      avatarID,
		Energy:        between(rng, 0.7, 0.9),
		Hunger:        between(rng, 0.2, 0.4),
		Loneliness:    between(rng, 0.3, 0.5),
		Mood:          between(rng, 0.3, 0.7),
		CurrentAction: ActionIdle,
	}
}

func between(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
