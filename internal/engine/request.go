package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/agentmind/internal/agents"
	"github.com/talgya/agentmind/internal/decision"
	"github.com/talgya/agentmind/internal/storage"
)

// RetryPolicy bounds how long RequestAction waits out a busy agent.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy tries three times, 200ms apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Delay: 200 * time.Millisecond}
}

// RequestAction ticks the avatar, retrying while another tick holds its
// lease. When every attempt finds the agent busy it returns an Idle decision
// marked Fallback and leaves stored state untouched.
func (e *Engine) RequestAction(ctx context.Context, avatarID string, policy RetryPolicy) (*Result, error) {
	attempts := max(policy.Attempts, 1)
	for i := 0; i < attempts; i++ {
		res, err := e.Tick(ctx, avatarID)
		if err != nil || res != nil {
			return res, err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(policy.Delay):
		}
	}

	slog.Info("agent still busy, falling back to idle", "avatar", avatarID, "attempts", attempts)
	return e.fallback(ctx, avatarID), nil
}

func (e *Engine) fallback(ctx context.Context, avatarID string) *Result {
	res := &Result{
		AvatarID: avatarID,
		Decision: decision.Decision{
			Kind:     agents.ActionIdle,
			Duration: e.Config.Duration(agents.ActionIdle),
		},
		Fallback: true,
	}
	if p, err := e.Store.GetPresence(ctx, avatarID); err == nil {
		res.Position = p.Position
	}
	if s, err := e.Store.GetState(ctx, avatarID); err == nil {
		res.State = *s
	}
	return res
}

// InitializeAgent stores a personality and fresh needs for the avatar,
// replacing any existing ones. A nil personality is drawn at random; a
// supplied one is copied and clamped into range.
func (e *Engine) InitializeAgent(ctx context.Context, avatarID string, p *agents.Personality) (*agents.Personality, *agents.NeedState, error) {
	if avatarID == "" {
		return nil, nil, fmt.Errorf("initialize agent: %w", storage.ErrInvalidInput)
	}
	rng := e.rand()
	var traits agents.Personality
	if p == nil {
		traits = agents.RandomPersonality(rng, avatarID)
	} else {
		traits = p.Clamp()
	}
	traits.AvatarID = avatarID
	p = &traits
	if err := e.Store.SavePersonality(ctx, p); err != nil {
		return nil, nil, err
	}
	s := agents.RandomState(rng, avatarID)
	if err := e.Store.SaveState(ctx, &s); err != nil {
		return nil, nil, err
	}
	slog.Info("agent initialized", "avatar", avatarID)
	return p, &s, nil
}

// TickReady ticks every agent whose current action has run out, up to limit.
// Busy agents are skipped. A failing agent is logged and does not stop the
// batch; the joined errors are returned alongside the results.
func (e *Engine) TickReady(ctx context.Context, limit int) ([]*Result, error) {
	ids, err := e.Store.ReadyAgents(ctx, e.now(), limit)
	if err != nil {
		return nil, err
	}
	var (
		out  []*Result
		errs []error
	)
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res, err := e.Tick(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		if res != nil {
			out = append(out, res)
		}
	}
	return out, errors.Join(errs...)
}
