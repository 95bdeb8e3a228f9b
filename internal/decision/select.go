package decision

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/talgya/agentmind/internal/agents"
)

// ErrNoCandidates means selection was asked to choose from nothing. The
// generator always emits Idle and Wander, so this is a broken invariant.
var ErrNoCandidates = errors.New("decision: no candidates to select from")

// Score fills in the weighted component scores and utility of every candidate.
// The input slice is not modified.
func Score(cands []Candidate, snap *agents.Snapshot, cfg Config, rng *rand.Rand) []Candidate {
	w := cfg.Weights
	out := make([]Candidate, len(cands))
	for i, c := range cands {
		r := Resolve(c, snap)
		c.Need = NeedSatisfaction(c.Kind, snap.State, r, cfg) * w.Need
		c.Personality = PersonalityAlignment(c.Kind, snap.Personality, r) * w.Personality
		c.Social = SocialBias(c.Kind, r, cfg) * w.Social
		c.Affinity = WorldAffinity(c.Kind, snap.Personality, r) * w.Affinity
		c.Recency = RecencyPenalty(c.Kind, r, snap, cfg) * w.Recency
		c.Noise = rng.NormFloat64() * 0.1 * w.Randomness
		c.Utility = c.Need + c.Personality + c.Social + c.Affinity - c.Recency + c.Noise
		out[i] = c
	}
	return out
}

// Viable drops non-positive candidates, unless that would leave nothing.
func Viable(cands []Candidate) []Candidate {
	var pos []Candidate
	for _, c := range cands {
		if c.Utility > 0 {
			pos = append(pos, c)
		}
	}
	if len(pos) == 0 {
		return cands
	}
	return pos
}

// Softmax converts utilities into a probability distribution. Lower
// temperatures concentrate mass on the best utility.
func Softmax(utilities []float64, temperature float64) []float64 {
	if len(utilities) == 0 {
		return nil
	}
	top := math.Inf(-1)
	for _, u := range utilities {
		if u/temperature > top {
			top = u / temperature
		}
	}
	probs := make([]float64, len(utilities))
	sum := 0.0
	for i, u := range utilities {
		probs[i] = math.Exp(u/temperature - top)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Select samples one candidate from the softmax distribution of utilities.
// A single candidate is returned as is, without drawing.
func Select(cands []Candidate, temperature float64, rng *rand.Rand) (Candidate, error) {
	switch len(cands) {
	case 0:
		return Candidate{}, ErrNoCandidates
	case 1:
		return cands[0], nil
	}

	utilities := make([]float64, len(cands))
	for i, c := range cands {
		utilities[i] = c.Utility
	}
	probs := Softmax(utilities, temperature)

	r := rng.Float64()
	cumulative := 0.0
	for i, p := range probs {
		cumulative += p
		if cumulative >= r {
			return cands[i], nil
		}
	}
	return cands[len(cands)-1], nil
}

// DurationOf returns how long a selected candidate lasts. Interactions use
// the location's own duration when it has one.
func DurationOf(c Candidate, snap *agents.Snapshot, cfg Config) time.Duration {
	if c.Kind.IsInteraction() && c.Target != nil {
		if loc, ok := snap.Location(c.Target.ID); ok && loc.Duration > 0 {
			return loc.Duration
		}
	}
	return cfg.Duration(c.Kind)
}
