package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/talgya/agentmind/internal/agents"
)

// ErrCircuitOpen is returned while the breaker rejects calls to a failing store.
var ErrCircuitOpen = errors.New("storage circuit breaker is open")

// BreakerConfig tunes the circuit breaker in front of a store.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before probing again.
	Timeout time.Duration
	// HalfOpenRequests is how many probe calls are let through while half-open.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig trips after 5 straight failures and probes after 10s.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, Timeout: 10 * time.Second, HalfOpenRequests: 1}
}

// Guard wraps a Store so that every call goes through a circuit breaker.
// Not-found and invalid-input results are answers, not failures, and never
// trip the circuit.
type Guard struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker
}

var _ Store = (*Guard)(nil)

// NewGuard wraps inner with a breaker named name.
func NewGuard(name string, inner Store, cfg BreakerConfig) *Guard {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrInvalidInput) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("store circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &Guard{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the breaker state: "closed", "open" or "half-open".
func (g *Guard) State() string {
	return g.breaker.State().String()
}

func call[T any](g *Guard, fn func() (T, error)) (T, error) {
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, ErrCircuitOpen
	}
	v, _ := res.(T)
	return v, err
}

func exec(g *Guard, fn func() error) error {
	_, err := call(g, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func (g *Guard) GetPersonality(ctx context.Context, avatarID string) (*agents.Personality, error) {
	return call(g, func() (*agents.Personality, error) { return g.inner.GetPersonality(ctx, avatarID) })
}

func (g *Guard) SavePersonality(ctx context.Context, p *agents.Personality) error {
	return exec(g, func() error { return g.inner.SavePersonality(ctx, p) })
}

func (g *Guard) GetState(ctx context.Context, avatarID string) (*agents.NeedState, error) {
	return call(g, func() (*agents.NeedState, error) { return g.inner.GetState(ctx, avatarID) })
}

func (g *Guard) SaveState(ctx context.Context, s *agents.NeedState) error {
	return exec(g, func() error { return g.inner.SaveState(ctx, s) })
}

func (g *Guard) ReadyAgents(ctx context.Context, now time.Time, limit int) ([]string, error) {
	return call(g, func() ([]string, error) { return g.inner.ReadyAgents(ctx, now, limit) })
}

func (g *Guard) SocialMemories(ctx context.Context, from string) ([]agents.SocialMemory, error) {
	return call(g, func() ([]agents.SocialMemory, error) { return g.inner.SocialMemories(ctx, from) })
}

func (g *Guard) UpdateSocialMemory(ctx context.Context, from, to string, sentimentDelta, familiarityDelta float64, topic string, now time.Time) (*agents.SocialMemory, error) {
	return call(g, func() (*agents.SocialMemory, error) {
		return g.inner.UpdateSocialMemory(ctx, from, to, sentimentDelta, familiarityDelta, topic, now)
	})
}

func (g *Guard) ListLocations(ctx context.Context) ([]agents.Location, error) {
	return call(g, func() ([]agents.Location, error) { return g.inner.ListLocations(ctx) })
}

func (g *Guard) ActiveCooldowns(ctx context.Context, avatarID string, now time.Time) (map[string]bool, error) {
	return call(g, func() (map[string]bool, error) { return g.inner.ActiveCooldowns(ctx, avatarID, now) })
}

func (g *Guard) RecordInteraction(ctx context.Context, avatarID string, loc agents.Location, now time.Time) (*agents.Interaction, error) {
	return call(g, func() (*agents.Interaction, error) { return g.inner.RecordInteraction(ctx, avatarID, loc, now) })
}

func (g *Guard) CompleteInteractions(ctx context.Context, avatarID string, at time.Time) error {
	return exec(g, func() error { return g.inner.CompleteInteractions(ctx, avatarID, at) })
}

func (g *Guard) GetPresence(ctx context.Context, avatarID string) (*agents.Presence, error) {
	return call(g, func() (*agents.Presence, error) { return g.inner.GetPresence(ctx, avatarID) })
}

func (g *Guard) SetPosition(ctx context.Context, avatarID string, pos agents.Position) error {
	return exec(g, func() error { return g.inner.SetPosition(ctx, avatarID, pos) })
}

func (g *Guard) NearbyEntities(ctx context.Context, avatarID string, radius float64) ([]agents.NearbyEntity, error) {
	return call(g, func() ([]agents.NearbyEntity, error) { return g.inner.NearbyEntities(ctx, avatarID, radius) })
}

func (g *Guard) PendingRequests(ctx context.Context, avatarID string) ([]agents.ConversationRequest, error) {
	return call(g, func() ([]agents.ConversationRequest, error) { return g.inner.PendingRequests(ctx, avatarID) })
}
