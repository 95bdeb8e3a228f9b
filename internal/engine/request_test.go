package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/agentmind/internal/agents"
	"github.com/talgya/agentmind/internal/storage"
)

func TestRequestActionFallsBackWhenBusy(t *testing.T) {
	ctx := context.Background()
	e, mem, sink := newTestEngine(t)
	addAgent(t, mem, "a", agents.Position{X: 10, Y: 10}, hungry())
	ok, err := mem.Acquire(ctx, "a", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := e.RequestAction(ctx, "a", RetryPolicy{Attempts: 2, Delay: time.Millisecond})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Fallback)
	assert.Equal(t, agents.ActionIdle, res.Decision.Kind)
	assert.Equal(t, 30*time.Second, res.Decision.Duration)
	assert.Equal(t, agents.Position{X: 10, Y: 10}, res.Position)
	assert.Equal(t, 0.9, res.State.Hunger, "no decay applied")
	assert.Zero(t, sink.count())
}

func TestRequestActionTicksWhenFree(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)
	addAgent(t, mem, "a", agents.Position{X: 10, Y: 10}, hungry())

	res, err := e.RequestAction(ctx, "a", DefaultRetryPolicy())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Fallback)
}

func TestRequestActionStopsOnCancel(t *testing.T) {
	e, mem, _ := newTestEngine(t)
	addAgent(t, mem, "a", agents.Position{X: 10, Y: 10}, hungry())
	_, err := mem.Acquire(context.Background(), "a", time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.RequestAction(ctx, "a", RetryPolicy{Attempts: 5, Delay: time.Hour})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestInitializeAgent(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)

	given := &agents.Personality{Sociability: 0.9, Curiosity: 0.1}
	p, s, err := e.InitializeAgent(ctx, "a", given)
	require.NoError(t, err)
	assert.Equal(t, "a", p.AvatarID)
	assert.Equal(t, agents.ActionIdle, s.CurrentAction)

	stored, err := mem.GetPersonality(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 0.9, stored.Sociability)

	p, _, err = e.InitializeAgent(ctx, "b", nil)
	require.NoError(t, err)
	assert.Equal(t, "b", p.AvatarID)
	assert.GreaterOrEqual(t, p.Agreeableness, 0.4)

	_, _, err = e.InitializeAgent(ctx, "", nil)
	assert.True(t, errors.Is(err, storage.ErrInvalidInput))
}

func TestInitializeAgentClampsSuppliedTraits(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)

	given := &agents.Personality{
		AvatarID:      "caller",
		Sociability:   7,
		Curiosity:     -3,
		Agreeableness: 2,
		Affinities:    map[agents.LocationCategory]float64{agents.CategoryKaraoke: 1.5},
	}
	p, _, err := e.InitializeAgent(ctx, "x", given)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Sociability)

	stored, err := mem.GetPersonality(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored.Sociability)
	assert.Equal(t, 0.0, stored.Curiosity)
	assert.Equal(t, 1.0, stored.Agreeableness)
	assert.Equal(t, 1.0, stored.Affinities[agents.CategoryKaraoke])

	// the caller's value is left alone
	assert.Equal(t, "caller", given.AvatarID)
	assert.Equal(t, 7.0, given.Sociability)
	assert.Equal(t, 1.5, given.Affinities[agents.CategoryKaraoke])
}

func TestTickReadySkipsBusyAgents(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)
	addAgent(t, mem, "a", agents.Position{X: 10, Y: 10}, hungry())
	addAgent(t, mem, "b", agents.Position{X: 40, Y: 40}, hungry())
	later := t0.Add(time.Hour)
	addAgent(t, mem, "c", agents.Position{X: 50, Y: 40}, &agents.NeedState{ActionExpiresAt: &later})

	_, err := mem.Acquire(ctx, "b", time.Minute)
	require.NoError(t, err)

	results, err := e.TickReady(ctx, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].AvatarID)
}
