// Package decision implements the scoring pass that picks an agent's next
// action: candidate generation, the five scorers, softmax selection, and the
// interrupt filter that pre-empts all of it.
package decision

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/agentmind/internal/agents"
)

// Weights scale each scorer before summation.
type Weights struct {
	Need        float64 `yaml:"need"`
	Personality float64 `yaml:"personality"`
	Social      float64 `yaml:"social"`
	Affinity    float64 `yaml:"affinity"`
	Recency     float64 `yaml:"recency"`
	Randomness  float64 `yaml:"randomness"`
}

// Thresholds mark where a need becomes critical.
type Thresholds struct {
	Hunger     float64 `yaml:"hunger"`     // above
	Energy     float64 `yaml:"energy"`     // below
	Loneliness float64 `yaml:"loneliness"` // above
}

// Config is the full tuning surface of the engine. It is a plain value:
// callers load or build one and pass it everywhere it is needed.
type Config struct {
	Weights     Weights    `yaml:"weights"`
	Temperature float64    `yaml:"temperature"`
	Critical    Thresholds `yaml:"critical"`

	ConversationRadius float64 `yaml:"conversation_radius"`
	AvoidRadiusExtra   float64 `yaml:"avoid_radius_extra"`
	AvoidSentiment     float64 `yaml:"avoid_sentiment"`
	VeryClose          float64 `yaml:"very_close"`
	InteractionRadius  float64 `yaml:"interaction_radius"`
	FleeDistance       float64 `yaml:"flee_distance"`
	WanderMinDistance  float64 `yaml:"wander_min_distance"`
	WanderMaxDistance  float64 `yaml:"wander_max_distance"`

	RecentWindow        time.Duration `yaml:"recent_window"`
	ConversationPenalty float64       `yaml:"conversation_penalty"`
	CooldownPenalty     float64       `yaml:"cooldown_penalty"`

	Decay        agents.DecayRates `yaml:"decay"`
	DecayDefault time.Duration     `yaml:"decay_default"` // elapsed assumed when an agent has never ticked

	SocialWanderInfluence float64 `yaml:"social_wander_influence"`
	WanderRandomness      float64 `yaml:"wander_randomness"`

	Bounds       agents.Bounds `yaml:"bounds"`
	WanderMargin int           `yaml:"wander_margin"`
	FleeMargin   int           `yaml:"flee_margin"`
	MaxStep      float64       `yaml:"max_step"`

	Durations       map[agents.ActionKind]time.Duration    `yaml:"durations"`
	DefaultDuration time.Duration                          `yaml:"default_duration"`
	ForcedIdle      time.Duration                          `yaml:"forced_idle"`
	Effects         map[agents.ActionKind]agents.NeedDelta `yaml:"effects"`

	LockTTL time.Duration `yaml:"lock_ttl"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Need:        1.0,
			Personality: 0.6,
			Social:      0.4,
			Affinity:    0.5,
			Recency:     0.3,
			Randomness:  0.2,
		},
		Temperature: 0.5,
		Critical:    Thresholds{Hunger: 0.85, Energy: 0.15, Loneliness: 0.7},

		ConversationRadius: 8,
		AvoidRadiusExtra:   4,
		AvoidSentiment:     -0.3,
		VeryClose:          3,
		InteractionRadius:  2,
		FleeDistance:       5,
		WanderMinDistance:  5,
		WanderMaxDistance:  15,

		RecentWindow:        2 * time.Hour,
		ConversationPenalty: 0.5,
		CooldownPenalty:     1.0,

		Decay:        agents.DecayRates{Energy: 0.02, Hunger: 0.015, Loneliness: 0.02, Mood: 0.01},
		DecayDefault: agents.DecayPeriod,

		SocialWanderInfluence: 0.5,
		WanderRandomness:      0.5,

		Bounds:       agents.Bounds{Width: 75, Height: 56},
		WanderMargin: 2,
		FleeMargin:   1,
		MaxStep:      3,

		Durations: map[agents.ActionKind]time.Duration{
			agents.ActionIdle:                 30 * time.Second,
			agents.ActionWander:               60 * time.Second,
			agents.ActionWalkToLocation:       45 * time.Second,
			agents.ActionInteractFood:         45 * time.Second,
			agents.ActionInteractKaraoke:      60 * time.Second,
			agents.ActionInteractRest:         30 * time.Second,
			agents.ActionInteractSocialHub:    60 * time.Second,
			agents.ActionInteractWanderPoint:  30 * time.Second,
			agents.ActionInitiateConversation: 120 * time.Second,
			agents.ActionJoinConversation:     120 * time.Second,
			agents.ActionLeaveConversation:    5 * time.Second,
			agents.ActionAvoidAvatar:          20 * time.Second,
		},
		DefaultDuration: 30 * time.Second,
		ForcedIdle:      30 * time.Second,
		Effects: map[agents.ActionKind]agents.NeedDelta{
			agents.ActionIdle:                 {Energy: 0.05, Mood: 0.01},
			agents.ActionWander:               {Energy: -0.03, Mood: 0.02},
			agents.ActionWalkToLocation:       {Energy: -0.02},
			agents.ActionInitiateConversation: {Energy: -0.05, Loneliness: -0.2},
			agents.ActionJoinConversation:     {Loneliness: -0.15, Mood: 0.05},
		},

		LockTTL: 60 * time.Second,
	}
}

// LoadConfig reads a YAML tuning profile. Keys absent from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("decision profile %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("decision profile %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects tunings the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Temperature <= 0 || math.IsNaN(c.Temperature) {
		errs = append(errs, fmt.Errorf("temperature must be positive, got %v", c.Temperature))
	}
	if math.Abs(c.SocialWanderInfluence+c.WanderRandomness-1) > 1e-6 {
		errs = append(errs, fmt.Errorf("social_wander_influence + wander_randomness must be 1, got %v",
			c.SocialWanderInfluence+c.WanderRandomness))
	}
	if c.WanderMinDistance < 0 || c.WanderMaxDistance < c.WanderMinDistance {
		errs = append(errs, fmt.Errorf("wander distance range [%v,%v] is invalid", c.WanderMinDistance, c.WanderMaxDistance))
	}
	if c.Bounds.Width <= 2*c.WanderMargin || c.Bounds.Height <= 2*c.WanderMargin {
		errs = append(errs, fmt.Errorf("bounds %dx%d too small for margin %d", c.Bounds.Width, c.Bounds.Height, c.WanderMargin))
	}
	if c.RecentWindow <= 0 {
		errs = append(errs, errors.New("recent_window must be positive"))
	}
	if c.MaxStep <= 0 {
		errs = append(errs, errors.New("max_step must be positive"))
	}
	if c.LockTTL <= 0 {
		errs = append(errs, errors.New("lock_ttl must be positive"))
	}
	for k := range c.Durations {
		if !k.Valid() {
			errs = append(errs, fmt.Errorf("durations: unknown action %q", k))
		}
	}
	for k := range c.Effects {
		if !k.Valid() {
			errs = append(errs, fmt.Errorf("effects: unknown action %q", k))
		}
	}
	return errors.Join(errs...)
}

// FleeRadius is how close a disliked avatar must be before avoiding it is considered.
func (c Config) FleeRadius() float64 {
	return c.ConversationRadius + c.AvoidRadiusExtra
}

// Duration returns how long an action of kind k lasts.
func (c Config) Duration(k agents.ActionKind) time.Duration {
	if d, ok := c.Durations[k]; ok {
		return d
	}
	return c.DefaultDuration
}

// Effect returns the need delta applied when an action of kind k starts.
func (c Config) Effect(k agents.ActionKind) agents.NeedDelta {
	return c.Effects[k]
}
