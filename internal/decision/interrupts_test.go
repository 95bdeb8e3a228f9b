package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/agentmind/internal/agents"
)

func TestInterruptCriticalHungerPicksNearestFood(t *testing.T) {
	cfg := DefaultConfig()
	snap := baseSnapshot()
	snap.State.Hunger = 0.9
	snap.Locations = []agents.Location{food("far", 60, 50), food("near", 25, 22), food("blocked", 21, 20)}
	snap.Cooldowns["blocked"] = true

	d, ok := CheckInterrupts(snap, cfg, newRand(1))
	require.True(t, ok)
	assert.Equal(t, agents.ActionWalkToLocation, d.Kind)
	assert.Equal(t, "near", d.Target.ID)
	assert.Equal(t, InterruptCriticalHunger, d.Interrupt)
	assert.Equal(t, cfg.Durations[agents.ActionWalkToLocation], d.Duration)
}

func TestInterruptCriticalHungerAtFood(t *testing.T) {
	cfg := DefaultConfig()
	snap := baseSnapshot()
	snap.State.Hunger = 0.95
	snap.Locations = []agents.Location{food("here", 21, 20)}

	d, ok := CheckInterrupts(snap, cfg, newRand(1))
	require.True(t, ok)
	assert.Equal(t, agents.ActionInteractFood, d.Kind)
}

func TestInterruptHungerWithoutFoodFallsThrough(t *testing.T) {
	cfg := DefaultConfig()
	snap := baseSnapshot()
	snap.State.Hunger = 0.95
	snap.Locations = []agents.Location{food("blocked", 30, 30)}
	snap.Cooldowns["blocked"] = true

	_, ok := CheckInterrupts(snap, cfg, newRand(1))
	assert.False(t, ok)
}

func TestInterruptCriticalEnergy(t *testing.T) {
	cfg := DefaultConfig()
	snap := baseSnapshot()
	snap.State.Energy = 0.05

	d, ok := CheckInterrupts(snap, cfg, newRand(1))
	require.True(t, ok)
	assert.Equal(t, agents.ActionIdle, d.Kind)
	assert.Equal(t, cfg.ForcedIdle, d.Duration)
	assert.Equal(t, InterruptExhausted, d.Interrupt)

	snap.Locations = []agents.Location{rest("bench", 40, 20)}
	d, ok = CheckInterrupts(snap, cfg, newRand(1))
	require.True(t, ok)
	assert.Equal(t, agents.ActionWalkToLocation, d.Kind)
	assert.Equal(t, "bench", d.Target.ID)
	assert.Equal(t, InterruptCriticalEnergy, d.Interrupt)
}

func TestInterruptHungerBeatsEnergy(t *testing.T) {
	cfg := DefaultConfig()
	snap := baseSnapshot()
	snap.State.Hunger = 0.9
	snap.State.Energy = 0.05
	snap.Locations = []agents.Location{rest("bench", 21, 20), food("f1", 40, 40)}

	d, ok := CheckInterrupts(snap, cfg, newRand(1))
	require.True(t, ok)
	assert.Equal(t, "f1", d.Target.ID)
}

func TestInterruptHumanRequestAlwaysAccepted(t *testing.T) {
	cfg := DefaultConfig()
	snap := baseSnapshot()
	snap.Personality.Agreeableness = 0
	snap.PendingRequests = []agents.ConversationRequest{
		{InitiatorID: "bot", Human: false},
		{InitiatorID: "player", InitiatorName: "Ada", Human: true, Position: agents.Position{X: 22, Y: 20}},
	}

	for seed := int64(0); seed < 50; seed++ {
		d, ok := CheckInterrupts(snap, cfg, newRand(seed))
		require.True(t, ok)
		assert.Equal(t, agents.ActionJoinConversation, d.Kind)
		assert.Equal(t, "player", d.Target.ID)
		assert.Equal(t, agents.TargetAvatar, d.Target.Kind)
		assert.Equal(t, InterruptConversationRequest, d.Interrupt)
	}
}

func TestInterruptRobotRequestFollowsAgreeableness(t *testing.T) {
	cfg := DefaultConfig()
	snap := baseSnapshot()
	snap.PendingRequests = []agents.ConversationRequest{{InitiatorID: "bot-1"}, {InitiatorID: "bot-2"}}

	snap.Personality.Agreeableness = 1
	d, ok := CheckInterrupts(snap, cfg, newRand(4))
	require.True(t, ok)
	assert.Equal(t, "bot-1", d.Target.ID, "first acceptable request wins")

	snap.Personality.Agreeableness = 0
	_, ok = CheckInterrupts(snap, cfg, newRand(4))
	assert.False(t, ok)

	snap.Personality.Agreeableness = 0.5
	accepted := 0
	for seed := int64(0); seed < 400; seed++ {
		if _, ok := CheckInterrupts(snap, cfg, newRand(seed)); ok {
			accepted++
		}
	}
	// 1 - 0.5*0.5 of agents accept one of two requests.
	assert.InDelta(t, 300, accepted, 50)
}

func TestNoInterruptForCalmAgent(t *testing.T) {
	cfg := DefaultConfig()
	snap := baseSnapshot()
	snap.Locations = []agents.Location{food("f1", 22, 22), rest("r1", 30, 30)}
	_, ok := CheckInterrupts(snap, cfg, newRand(1))
	assert.False(t, ok)
}
