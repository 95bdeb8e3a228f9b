package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/agentmind/internal/agents"
	"github.com/talgya/agentmind/internal/audit"
	"github.com/talgya/agentmind/internal/decision"
	"github.com/talgya/agentmind/internal/persistence"
	"github.com/talgya/agentmind/internal/storage"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type captureSink struct {
	mu   sync.Mutex
	recs []audit.Record
	err  error
}

func (c *captureSink) Write(_ context.Context, r audit.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs = append(c.recs, r)
	return c.err
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.recs)
}

func newTestEngine(t *testing.T) (*Engine, *storage.Memory, *captureSink) {
	t.Helper()
	mem := storage.NewMemory()
	mem.SetClock(func() time.Time { return t0 })
	e := New(mem, mem, decision.DefaultConfig())
	e.Now = func() time.Time { return t0 }
	e.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(7)) }
	sink := &captureSink{}
	e.Audit = sink
	return e, mem, sink
}

type seeder interface {
	storage.Store
	storage.Seeder
}

func addAgent(t *testing.T, s seeder, id string, pos agents.Position, state *agents.NeedState) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SavePresence(ctx, agents.Presence{AvatarID: id, DisplayName: id, Position: pos}))
	require.NoError(t, s.SavePersonality(ctx, &agents.Personality{
		AvatarID:       id,
		Sociability:    0.5,
		Curiosity:      0.5,
		Agreeableness:  0.5,
		EnergyBaseline: 0.5,
	}))
	if state != nil {
		state.AvatarID = id
		require.NoError(t, s.SaveState(ctx, state))
	}
}

func cafe(x, y int) agents.Location {
	return agents.Location{
		ID:       "cafe",
		Name:     "Cafe",
		Category: agents.CategoryFood,
		Position: agents.Position{X: x, Y: y},
		Effects:  agents.NeedDelta{Hunger: -0.4, Mood: 0.05},
		Cooldown: 10 * time.Minute,
		Duration: 90 * time.Second,
	}
}

func hungry() *agents.NeedState {
	return &agents.NeedState{Energy: 0.8, Hunger: 0.9, Loneliness: 0.3, Mood: 0.2, CurrentAction: agents.ActionIdle}
}

func TestTickHungryAgentWalksToFood(t *testing.T) {
	ctx := context.Background()
	e, mem, sink := newTestEngine(t)
	addAgent(t, mem, "a", agents.Position{X: 10, Y: 10}, hungry())
	require.NoError(t, mem.SaveLocation(ctx, cafe(20, 10)))

	res, err := e.Tick(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, agents.ActionWalkToLocation, res.Decision.Kind)
	require.NotNil(t, res.Decision.Target)
	assert.Equal(t, "cafe", res.Decision.Target.ID)
	assert.Equal(t, decision.InterruptCriticalHunger, res.Decision.Interrupt)
	assert.Equal(t, agents.Position{X: 13, Y: 10}, res.Position)

	// One default decay period, then the walking cost.
	assert.InDelta(t, 0.76, res.State.Energy, 1e-9)
	assert.InDelta(t, 0.915, res.State.Hunger, 1e-9)

	p, err := mem.GetPresence(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, agents.Position{X: 13, Y: 10}, p.Position)

	s, err := mem.GetState(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, agents.ActionWalkToLocation, s.CurrentAction)
	require.NotNil(t, s.LastTick)
	assert.True(t, t0.Equal(*s.LastTick))
	require.NotNil(t, s.ActionExpiresAt)
	assert.True(t, t0.Add(res.Decision.Duration).Equal(*s.ActionExpiresAt))

	require.Equal(t, 1, sink.count())
	rec := sink.recs[0]
	assert.Equal(t, "a", rec.AvatarID)
	assert.Equal(t, agents.Position{X: 10, Y: 10}, rec.Position)
	assert.Equal(t, agents.Position{X: 13, Y: 10}, rec.PositionAfter)
	assert.Empty(t, rec.Candidates, "interrupts skip scoring")
	assert.Empty(t, mem.Interactions("a"))
}

func TestTickWalkArrivalInteracts(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)
	addAgent(t, mem, "a", agents.Position{X: 10, Y: 10}, hungry())
	require.NoError(t, mem.SaveLocation(ctx, cafe(14, 10)))

	res, err := e.Tick(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, agents.ActionWalkToLocation, res.Decision.Kind)
	assert.Equal(t, agents.Position{X: 13, Y: 10}, res.Position)

	assert.InDelta(t, 0.515, res.State.Hunger, 1e-9)
	assert.InDelta(t, 0.78, res.State.Energy, 1e-9, "arrival replaces the walking cost")
	require.Len(t, mem.Interactions("a"), 1)

	cd, err := mem.ActiveCooldowns(ctx, "a", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, cd["cafe"])
}

func TestTickDirectInteraction(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)
	addAgent(t, mem, "a", agents.Position{X: 19, Y: 10}, hungry())
	require.NoError(t, mem.SaveLocation(ctx, cafe(20, 10)))

	res, err := e.Tick(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, agents.ActionInteractFood, res.Decision.Kind)
	assert.Equal(t, 90*time.Second, res.Decision.Duration)
	assert.Equal(t, agents.Position{X: 19, Y: 10}, res.Position)
	assert.InDelta(t, 0.515, res.State.Hunger, 1e-9)
	assert.Len(t, mem.Interactions("a"), 1)
}

func TestTickCompletesPreviousInteraction(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)
	now := t0
	e.Now = func() time.Time { return now }
	addAgent(t, mem, "a", agents.Position{X: 19, Y: 10}, hungry())
	require.NoError(t, mem.SaveLocation(ctx, cafe(20, 10)))

	_, err := e.Tick(ctx, "a")
	require.NoError(t, err)
	require.Len(t, mem.Interactions("a"), 1)
	assert.Nil(t, mem.Interactions("a")[0].CompletedAt)

	now = t0.Add(2 * time.Minute)
	res, err := e.Tick(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, res)
	in := mem.Interactions("a")[0]
	require.NotNil(t, in.CompletedAt)
	assert.True(t, now.Equal(*in.CompletedAt))
	assert.NotEqual(t, agents.ActionInteractFood, res.Decision.Kind, "cafe is cooling down")
}

func TestTickLazilyInitializesAgent(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)
	require.NoError(t, mem.SavePresence(ctx, agents.Presence{AvatarID: "new", Position: agents.Position{X: 30, Y: 30}}))

	res, err := e.Tick(ctx, "new")
	require.NoError(t, err)
	require.NotNil(t, res)

	p, err := mem.GetPersonality(ctx, "new")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p.Sociability, 0.3)
	assert.LessOrEqual(t, p.Sociability, 0.7)

	s, err := mem.GetState(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, res.Decision.Kind, s.CurrentAction)
}

func TestTickUnknownAvatarReleasesLease(t *testing.T) {
	ctx := context.Background()
	e, mem, sink := newTestEngine(t)

	res, err := e.Tick(ctx, "ghost")
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, ErrUnknownAvatar))
	assert.Zero(t, sink.count())

	ok, err := mem.Acquire(ctx, "ghost", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lease released after failure")
}

func TestTickBusyAgentIsNotAnError(t *testing.T) {
	ctx := context.Background()
	e, mem, sink := newTestEngine(t)
	addAgent(t, mem, "a", agents.Position{X: 10, Y: 10}, hungry())

	ok, err := mem.Acquire(ctx, "a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	res, err := e.Tick(ctx, "a")
	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.Zero(t, sink.count())

	s, err := mem.GetState(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, s.LastTick, "state untouched")
}

func TestTickAuditFailureDoesNotFailTick(t *testing.T) {
	ctx := context.Background()
	e, mem, sink := newTestEngine(t)
	sink.err = errors.New("disk full")
	addAgent(t, mem, "a", agents.Position{X: 10, Y: 10}, hungry())

	res, err := e.Tick(ctx, "a")
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestTickRecordsScoredCandidates(t *testing.T) {
	ctx := context.Background()
	e, mem, sink := newTestEngine(t)
	addAgent(t, mem, "a", agents.Position{X: 10, Y: 10}, &agents.NeedState{
		Energy: 0.5, Hunger: 0.5, Loneliness: 0.5, Mood: 0.5, CurrentAction: agents.ActionIdle,
	})
	require.NoError(t, mem.SaveLocation(ctx, cafe(30, 30)))

	res, err := e.Tick(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, decision.InterruptNone, res.Decision.Interrupt)
	assert.GreaterOrEqual(t, len(res.Candidates), 3)
	require.Equal(t, 1, sink.count())
	assert.Equal(t, res.Candidates, sink.recs[0].Candidates)
}

type gatedStore struct {
	storage.Store
	gate chan struct{}
}

func (g *gatedStore) GetPresence(ctx context.Context, id string) (*agents.Presence, error) {
	<-g.gate
	return g.Store.GetPresence(ctx, id)
}

type countingLocker struct {
	storage.Locker
	calls atomic.Int32
}

func (c *countingLocker) Acquire(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := c.Locker.Acquire(ctx, id, ttl)
	c.calls.Add(1)
	return ok, err
}

func TestConcurrentTicksYieldOneDecision(t *testing.T) {
	ctx := context.Background()
	e, mem, sink := newTestEngine(t)
	addAgent(t, mem, "a", agents.Position{X: 10, Y: 10}, hungry())

	gate := make(chan struct{})
	locker := &countingLocker{Locker: mem}
	e.Store = &gatedStore{Store: mem, gate: gate}
	e.Locker = locker

	var (
		wg      sync.WaitGroup
		results [2]*Result
		errs    [2]error
	)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = e.Tick(ctx, "a")
		}()
	}

	require.Eventually(t, func() bool { return locker.calls.Load() == 2 }, time.Second, time.Millisecond)
	close(gate)
	wg.Wait()

	decided := 0
	for i := range 2 {
		require.NoError(t, errs[i])
		if results[i] != nil {
			decided++
		}
	}
	assert.Equal(t, 1, decided)
	assert.Equal(t, 1, sink.count())
}

func TestApplyInitiateConversation(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)
	snap := &agents.Snapshot{
		AvatarID: "a",
		Position: agents.Position{X: 10, Y: 10},
		State:    agents.NeedState{AvatarID: "a", Energy: 0.5, Loneliness: 0.9},
	}
	d := decision.Decision{
		Kind:   agents.ActionInitiateConversation,
		Target: &agents.Target{Kind: agents.TargetAvatar, ID: "b", Position: agents.Position{X: 12, Y: 10}},
	}

	s, pos, err := e.apply(ctx, snap, d, t0)
	require.NoError(t, err)
	assert.Equal(t, snap.Position, pos)
	assert.InDelta(t, 0.45, s.Energy, 1e-9)
	assert.InDelta(t, 0.7, s.Loneliness, 1e-9)

	mems, err := mem.SocialMemories(ctx, "a")
	require.NoError(t, err)
	require.Len(t, mems, 1)
	assert.Equal(t, "b", mems[0].To)
	assert.InDelta(t, 0.05, mems[0].Sentiment, 1e-9)
	assert.InDelta(t, 0.1, mems[0].Familiarity, 1e-9)
	assert.Equal(t, 1, mems[0].InteractionCount)
}

func TestApplyAvoidMovesWithoutNeedChange(t *testing.T) {
	ctx := context.Background()
	e, mem, _ := newTestEngine(t)
	addAgent(t, mem, "a", agents.Position{X: 10, Y: 10}, nil)
	start := agents.NeedState{AvatarID: "a", Energy: 0.5, Hunger: 0.5, Loneliness: 0.5, Mood: 0.5}
	snap := &agents.Snapshot{AvatarID: "a", Position: agents.Position{X: 10, Y: 10}, State: start}
	d := decision.Decision{
		Kind:   agents.ActionAvoidAvatar,
		Target: &agents.Target{Kind: agents.TargetAvatar, ID: "b", Position: agents.Position{X: 15, Y: 10}},
	}

	s, pos, err := e.apply(ctx, snap, d, t0)
	require.NoError(t, err)
	assert.Equal(t, start, s)
	assert.Equal(t, agents.Position{X: 13, Y: 10}, pos)

	p, err := mem.GetPresence(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, pos, p.Position)
}

func TestApplyJoinAndLeave(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)
	start := agents.NeedState{AvatarID: "a", Energy: 0.5, Hunger: 0.5, Loneliness: 0.5, Mood: 0.5}
	snap := &agents.Snapshot{AvatarID: "a", State: start}

	s, _, err := e.apply(ctx, snap, decision.Decision{Kind: agents.ActionJoinConversation}, t0)
	require.NoError(t, err)
	assert.InDelta(t, 0.35, s.Loneliness, 1e-9)
	assert.InDelta(t, 0.55, s.Mood, 1e-9)

	s, _, err = e.apply(ctx, snap, decision.Decision{Kind: agents.ActionLeaveConversation}, t0)
	require.NoError(t, err)
	assert.Equal(t, start, s)
}

func TestTickOnSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := persistence.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetClock(func() time.Time { return t0 })

	e := New(db, db, decision.DefaultConfig())
	e.Audit = db
	e.Now = func() time.Time { return t0 }
	e.NewRand = func() *rand.Rand { return rand.New(rand.NewSource(3)) }
	addAgent(t, db, "a", agents.Position{X: 10, Y: 10}, hungry())
	require.NoError(t, db.SaveLocation(ctx, cafe(20, 10)))

	res, err := e.Tick(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, agents.ActionWalkToLocation, res.Decision.Kind)

	recs, err := db.RecentDecisions(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, agents.ActionWalkToLocation, recs[0].Selected.Kind)

	ok, err := db.Acquire(ctx, "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
