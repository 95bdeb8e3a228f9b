// Need decay and effect application. Needs drift between decisions and are
// pushed back by whatever the agent does.
package agents

import (
	"math"
	"time"
)

// DecayPeriod is the reference interval the decay rates are expressed against.
const DecayPeriod = 300 * time.Second

// DecayRates are the per-period drift amounts for each need.
type DecayRates struct {
	Energy     float64 `yaml:"energy"`
	Hunger     float64 `yaml:"hunger"`
	Loneliness float64 `yaml:"loneliness"`
	Mood       float64 `yaml:"mood"`
}

// Decay drifts needs over elapsed time: energy drains, hunger and loneliness
// build, mood relaxes toward neutral. The input is not modified.
func Decay(s NeedState, elapsed time.Duration, r DecayRates) NeedState {
	if elapsed < 0 {
		elapsed = 0
	}
	f := elapsed.Seconds() / DecayPeriod.Seconds()

	s.Energy = clamp01(s.Energy - r.Energy*f)
	s.Hunger = clamp01(s.Hunger + r.Hunger*f)
	s.Loneliness = clamp01(s.Loneliness + r.Loneliness*f)
	s.Mood = clampMood(s.Mood * (1 - r.Mood*f))
	return s
}

// ApplyDelta adds d to the needs, keeping every value in range.
func ApplyDelta(s NeedState, d NeedDelta) NeedState {
	s.Energy = clamp01(s.Energy + finite(d.Energy))
	s.Hunger = clamp01(s.Hunger + finite(d.Hunger))
	s.Loneliness = clamp01(s.Loneliness + finite(d.Loneliness))
	s.Mood = clampMood(s.Mood + finite(d.Mood))
	return s
}

// Clamp forces every need back into its valid range.
func (s NeedState) Clamp() NeedState {
	s.Energy = clamp01(s.Energy)
	s.Hunger = clamp01(s.Hunger)
	s.Loneliness = clamp01(s.Loneliness)
	s.Mood = clampMood(s.Mood)
	return s
}

func finite(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clampMood(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, -1, 1)
}
