// Package audit records every decision the engine makes: the scored
// candidates, the pick, and the state it was made from.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/agentmind/internal/agents"
	"github.com/talgya/agentmind/internal/decision"
)

// Record is one audited decision.
type Record struct {
	ID            string               `json:"id"`
	AvatarID      string               `json:"avatar_id"`
	At            time.Time            `json:"at"`
	Position      agents.Position      `json:"position"`
	State         agents.NeedState     `json:"state"`
	Candidates    []decision.Candidate `json:"candidates"`
	Selected      decision.Decision    `json:"selected"`
	PositionAfter agents.Position      `json:"position_after"`
	StateAfter    agents.NeedState     `json:"state_after"`
}

// NewRecord starts a record with a fresh ID.
func NewRecord(avatarID string, at time.Time) Record {
	return Record{ID: uuid.NewString(), AvatarID: avatarID, At: at, Candidates: []decision.Candidate{}}
}

// Sink receives audit records.
type Sink interface {
	Write(ctx context.Context, r Record) error
}

// Nop discards records.
type Nop struct{}

func (Nop) Write(context.Context, Record) error { return nil }

// Multi fans a record out to several sinks. Every sink is tried; the
// returned error joins all failures.
type Multi []Sink

func (m Multi) Write(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
