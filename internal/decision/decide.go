package decision

import (
	"fmt"
	"math/rand"

	"github.com/talgya/agentmind/internal/agents"
)

// Outcome is a decision plus the scored candidates it was drawn from.
// Candidates is empty when an interrupt fired.
type Outcome struct {
	Decision   Decision
	Candidates []Candidate
}

// Decide runs one full decision pass over snap: interrupts first, then
// generation, scoring and softmax selection.
func Decide(snap *agents.Snapshot, cfg Config, rng *rand.Rand) (Outcome, error) {
	if d, ok := CheckInterrupts(snap, cfg, rng); ok {
		return Outcome{Decision: d}, nil
	}

	scored := Score(Candidates(snap, cfg, rng), snap, cfg, rng)
	chosen, err := Select(Viable(scored), cfg.Temperature, rng)
	if err != nil {
		return Outcome{Candidates: scored}, fmt.Errorf("select action for %s: %w", snap.AvatarID, err)
	}

	return Outcome{
		Decision: Decision{
			Kind:     chosen.Kind,
			Target:   chosen.Target,
			Utility:  chosen.Utility,
			Duration: DurationOf(chosen, snap, cfg),
		},
		Candidates: scored,
	}, nil
}
