package agents

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var testRates = DecayRates{Energy: 0.02, Hunger: 0.015, Loneliness: 0.02, Mood: 0.01}

func TestDecayOnePeriod(t *testing.T) {
	s := NeedState{Energy: 0.5, Hunger: 0.5, Loneliness: 0.5, Mood: 0.5}
	got := Decay(s, DecayPeriod, testRates)

	assert.InDelta(t, 0.48, got.Energy, 1e-9)
	assert.InDelta(t, 0.515, got.Hunger, 1e-9)
	assert.InDelta(t, 0.52, got.Loneliness, 1e-9)
	assert.InDelta(t, 0.495, got.Mood, 1e-9)
	assert.Equal(t, 0.5, s.Energy, "input must not be modified")
}

func TestDecayLongAbsenceSaturates(t *testing.T) {
	s := NeedState{Energy: 0.3, Hunger: 0.9, Loneliness: 0.9, Mood: -0.8}
	got := Decay(s, 1000*time.Hour, testRates)

	assert.Equal(t, 0.0, got.Energy)
	assert.Equal(t, 1.0, got.Hunger)
	assert.Equal(t, 1.0, got.Loneliness)
	assert.GreaterOrEqual(t, got.Mood, -1.0)
	assert.LessOrEqual(t, got.Mood, 1.0)
}

func TestDecayNegativeElapsedIsNoop(t *testing.T) {
	s := NeedState{Energy: 0.4, Hunger: 0.4, Loneliness: 0.4, Mood: 0.4}
	assert.Equal(t, s, Decay(s, -time.Minute, testRates))
}

func TestApplyDeltaClamps(t *testing.T) {
	cases := []struct {
		name  string
		delta NeedDelta
	}{
		{"huge positive", NeedDelta{Energy: 100, Hunger: 100, Loneliness: 100, Mood: 100}},
		{"huge negative", NeedDelta{Energy: -100, Hunger: -100, Loneliness: -100, Mood: -100}},
		{"infinite", NeedDelta{Energy: math.Inf(1), Hunger: math.Inf(-1), Loneliness: math.Inf(1), Mood: math.Inf(-1)}},
		{"nan", NeedDelta{Energy: math.NaN(), Hunger: math.NaN(), Loneliness: math.NaN(), Mood: math.NaN()}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyDelta(NeedState{Energy: 0.5, Hunger: 0.5, Loneliness: 0.5, Mood: 0}, tc.delta)
			assertInRange(t, got)
		})
	}
}

func TestApplyDeltaNaNLeavesValue(t *testing.T) {
	s := NeedState{Energy: 0.3, Hunger: 0.6, Loneliness: 0.2, Mood: -0.4}
	got := ApplyDelta(s, NeedDelta{Energy: math.NaN(), Hunger: math.NaN(), Loneliness: math.NaN(), Mood: math.NaN()})
	assert.Equal(t, s, got)
}

func TestRandomDeltasStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := RandomState(rng, "a")
	for i := 0; i < 1000; i++ {
		d := NeedDelta{
			Energy:     rng.NormFloat64() * 3,
			Hunger:     rng.NormFloat64() * 3,
			Loneliness: rng.NormFloat64() * 3,
			Mood:       rng.NormFloat64() * 3,
		}
		s = ApplyDelta(s, d)
		s = Decay(s, time.Duration(rng.Intn(10000))*time.Second, testRates)
		assertInRange(t, s)
	}
}

func assertInRange(t *testing.T, s NeedState) {
	t.Helper()
	for name, v := range map[string]float64{"energy": s.Energy, "hunger": s.Hunger, "loneliness": s.Loneliness} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			t.Errorf("%s = %v, want within [0,1]", name, v)
		}
	}
	if s.Mood < -1 || s.Mood > 1 || math.IsNaN(s.Mood) {
		t.Errorf("mood = %v, want within [-1,1]", s.Mood)
	}
}
