package agents

import "math"

// Position is an integer tile coordinate in the world.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Distance returns the straight-line distance between two positions.
func Distance(a, b Position) float64 {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Bounds is the playable world rectangle, [0,Width) × [0,Height).
type Bounds struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Clamp keeps p at least margin tiles inside the bounds.
func (b Bounds) Clamp(p Position, margin int) Position {
	return Position{
		X: clampInt(p.X, margin, b.Width-margin),
		Y: clampInt(p.Y, margin, b.Height-margin),
	}
}

// StepToward moves from toward to by at most maxStep tiles along the straight line.
// Fractional progress is truncated, matching how the world mover snaps to tiles.
func StepToward(from, to Position, maxStep float64) Position {
	dx := float64(to.X - from.X)
	dy := float64(to.Y - from.Y)
	d := math.Sqrt(dx*dx + dy*dy)
	if d == 0 {
		return from
	}
	factor := math.Min(1.0, maxStep/d)
	return Position{
		X: from.X + int(dx*factor),
		Y: from.Y + int(dy*factor),
	}
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
