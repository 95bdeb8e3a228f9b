package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/agentmind/internal/agents"
	"github.com/talgya/agentmind/internal/decision"
)

var at = time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)

func sampleRecord(t *testing.T, seed int64) Record {
	t.Helper()
	cfg := decision.DefaultConfig()
	rng := rand.New(rand.NewSource(seed))
	snap := &agents.Snapshot{
		AvatarID:    "npc-1",
		Position:    agents.Position{X: 10, Y: 10},
		Personality: agents.RandomPersonality(rng, "npc-1"),
		State:       agents.RandomState(rng, "npc-1"),
		Locations: []agents.Location{
			{ID: "cafe", Name: "Cafe", Category: agents.CategoryFood, Position: agents.Position{X: 11, Y: 10}},
			{ID: "park", Name: "Park", Category: agents.CategoryWanderPoint, Position: agents.Position{X: 40, Y: 30}},
		},
		Nearby: []agents.NearbyEntity{{ID: "npc-2", Position: agents.Position{X: 13, Y: 10}, Distance: 3}},
		Now:    at,
	}
	out, err := decision.Decide(snap, cfg, rng)
	require.NoError(t, err)

	r := NewRecord(snap.AvatarID, at)
	r.Position = snap.Position
	r.State = snap.State
	r.Candidates = out.Candidates
	r.Selected = out.Decision
	r.PositionAfter = snap.Position
	r.StateAfter = agents.ApplyDelta(snap.State, cfg.Effect(out.Decision.Kind))
	return r
}

func TestJSONLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONL(dir, "decisions")
	w.now = func() time.Time { return at }

	ctx := context.Background()
	want := []Record{sampleRecord(t, 1), sampleRecord(t, 2), sampleRecord(t, 3)}
	for _, r := range want {
		require.NoError(t, w.Write(ctx, r))
	}
	require.NoError(t, w.Close())

	got, err := ReadJSONL(w.PathForHour("2024-06-01-12"))
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Selected.Kind, got[i].Selected.Kind)
		assert.Len(t, got[i].Candidates, len(want[i].Candidates))
	}
}

func TestJSONLRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONL(dir, "decisions")
	now := at
	w.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, w.Write(ctx, sampleRecord(t, 1)))
	now = now.Add(time.Hour)
	require.NoError(t, w.Write(ctx, sampleRecord(t, 2)))
	require.NoError(t, w.Write(ctx, sampleRecord(t, 3)))
	require.NoError(t, w.Close())

	files, err := filepath.Glob(filepath.Join(dir, "decisions-*.jsonl.zst"))
	require.NoError(t, err)
	assert.Len(t, files, 2)

	second, err := ReadJSONL(w.PathForHour("2024-06-01-13"))
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestJSONLAppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		w := NewJSONL(dir, "decisions")
		w.now = func() time.Time { return at }
		require.NoError(t, w.Write(ctx, sampleRecord(t, int64(i))))
		require.NoError(t, w.Close())
	}
	got, err := ReadJSONL(filepath.Join(dir, "decisions-2024-06-01-12.jsonl.zst"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestJSONLReadableBeforeClose(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONL(dir, "decisions")
	w.now = func() time.Time { return at }
	defer w.Close()

	ctx := context.Background()
	require.NoError(t, w.Write(ctx, sampleRecord(t, 1)))
	got, err := ReadJSONL(w.PathForHour("2024-06-01-12"))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, w.Write(ctx, sampleRecord(t, 2)))
	got, err = ReadJSONL(w.PathForHour("2024-06-01-12"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRecordMatchesSchema(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "decision_record.schema.json"))
	require.NoError(t, err)

	for seed := int64(0); seed < 25; seed++ {
		raw, err := json.Marshal(sampleRecord(t, seed))
		require.NoError(t, err)
		var v any
		require.NoError(t, json.Unmarshal(raw, &v))
		if err := s.Validate(v); err != nil {
			t.Fatalf("seed %d: %v\n%s", seed, err, raw)
		}
	}

	var bad any
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","avatar_id":"a"}`), &bad))
	assert.Error(t, s.Validate(bad))
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, Record) error { return f.err }

type countingSink struct{ n int }

func (c *countingSink) Write(context.Context, Record) error { c.n++; return nil }

func TestMultiTriesEverySink(t *testing.T) {
	boom := errors.New("boom")
	c := &countingSink{}
	m := Multi{failingSink{boom}, nil, c, Nop{}}

	err := m.Write(context.Background(), NewRecord("a", at))
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 1, c.n)
}

func TestJSONLUnwritableDir(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	w := NewJSONL(filepath.Join(blocker, "sub"), "decisions")
	assert.Error(t, w.Write(context.Background(), NewRecord("a", at)))
}
