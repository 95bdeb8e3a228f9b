// Package engine runs one decision cycle ("tick") for one agent at a time.
// Ticks are triggered from outside; the engine keeps no clock or loop of its own.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/talgya/agentmind/internal/agents"
	"github.com/talgya/agentmind/internal/audit"
	"github.com/talgya/agentmind/internal/decision"
	"github.com/talgya/agentmind/internal/entropy"
	"github.com/talgya/agentmind/internal/storage"
)

// ErrUnknownAvatar is returned when an avatar has no presence row.
var ErrUnknownAvatar = errors.New("unknown avatar")

// Engine drives agent decisions against a store.
type Engine struct {
	Store  storage.Store
	Locker storage.Locker
	Audit  audit.Sink // nil discards records
	Config decision.Config

	Now     func() time.Time
	NewRand func() *rand.Rand // one generator per tick
}

// New creates an engine with the wall clock and crypto-seeded generators.
func New(store storage.Store, locker storage.Locker, cfg decision.Config) *Engine {
	return &Engine{
		Store:   store,
		Locker:  locker,
		Audit:   audit.Nop{},
		Config:  cfg,
		Now:     time.Now,
		NewRand: entropy.NewRand,
	}
}

// Result is what one tick decided and the state it left behind.
type Result struct {
	AvatarID   string               `json:"avatar_id"`
	Decision   decision.Decision    `json:"decision"`
	Position   agents.Position      `json:"position"`
	State      agents.NeedState     `json:"state"`
	Candidates []decision.Candidate `json:"candidates,omitempty"`
	Fallback   bool                 `json:"fallback,omitempty"`
}

// Tick runs one decision cycle for the avatar. It returns nil, nil when
// another tick holds the avatar's lease.
//
// Side effects are applied in order and are not rolled back if a later step
// fails; a failed tick may leave a moved avatar or a recorded interaction.
func (e *Engine) Tick(ctx context.Context, avatarID string) (res *Result, err error) {
	held, err := e.Locker.Acquire(ctx, avatarID, e.Config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", avatarID, err)
	}
	if !held {
		slog.Debug("agent busy, tick skipped", "avatar", avatarID)
		return nil, nil
	}
	defer func() {
		if rerr := e.Locker.Release(context.WithoutCancel(ctx), avatarID); rerr != nil {
			slog.Warn("release lease failed", "avatar", avatarID, "error", rerr)
		}
		if err != nil {
			slog.Error("tick failed", "avatar", avatarID, "error", err)
		}
	}()

	now := e.now()
	rng := e.rand()

	snap, err := e.snapshot(ctx, avatarID, now, rng)
	if err != nil {
		return nil, err
	}

	elapsed := e.Config.DecayDefault
	if snap.State.LastTick != nil {
		elapsed = now.Sub(*snap.State.LastTick)
	}
	snap.State = agents.Decay(snap.State, elapsed, e.Config.Decay)

	out, err := decision.Decide(snap, e.Config, rng)
	if err != nil {
		return nil, err
	}
	d := out.Decision

	if err := e.Store.CompleteInteractions(ctx, avatarID, now); err != nil {
		return nil, err
	}
	state, pos, err := e.apply(ctx, snap, d, now)
	if err != nil {
		return nil, err
	}

	started, expires := now, now.Add(d.Duration)
	state.CurrentAction = d.Kind
	state.CurrentTarget = d.Target
	state.ActionStartedAt = &started
	state.ActionExpiresAt = &expires
	state.LastTick = &now
	if err := e.Store.SaveState(ctx, &state); err != nil {
		return nil, err
	}

	rec := audit.NewRecord(avatarID, now)
	rec.Position = snap.Position
	rec.State = snap.State
	if out.Candidates != nil {
		rec.Candidates = out.Candidates
	}
	rec.Selected = d
	rec.PositionAfter = pos
	rec.StateAfter = state
	if e.Audit != nil {
		if err := e.Audit.Write(ctx, rec); err != nil {
			slog.Warn("audit write failed", "avatar", avatarID, "error", err)
		}
	}

	slog.Debug("agent decided",
		"avatar", avatarID,
		"action", d.Kind,
		"utility", d.Utility,
		"interrupt", d.Interrupt,
		"candidates", len(out.Candidates),
	)
	return &Result{
		AvatarID:   avatarID,
		Decision:   d,
		Position:   pos,
		State:      state,
		Candidates: out.Candidates,
	}, nil
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Engine) rand() *rand.Rand {
	if e.NewRand == nil {
		return entropy.NewRand()
	}
	return e.NewRand()
}
