// Package elo computes Elo rating updates for two-sided outcomes.
package elo

import "math"

const (
	DefaultK       = 32
	DefaultRating  = 1500
	DefaultFloor   = 0
	DefaultCeiling = 10000
)

// Engine is a stateless Elo calculator. New ratings are clamped to [Floor, Ceiling].
type Engine struct {
	K       float64
	Floor   int
	Ceiling int
}

// Result holds both sides' new ratings and the applied deltas.
type Result struct {
	NewA   int
	NewB   int
	DeltaA int
	DeltaB int
}

// New returns an engine with K=32 and the default rating bounds.
func New() Engine {
	return Engine{K: DefaultK, Floor: DefaultFloor, Ceiling: DefaultCeiling}
}

// Expected is the probability that a player rated a beats one rated b.
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Actual maps scores to 1, 0 or 0.5 for side A; side B gets the complement.
func Actual(scoreA, scoreB int) float64 {
	switch {
	case scoreA > scoreB:
		return 1
	case scoreA < scoreB:
		return 0
	default:
		return 0.5
	}
}

// Compute rates one outcome. Each side's delta is rounded on its own, so the
// pair may drift by one point from zero-sum.
func (e Engine) Compute(ratingA, ratingB, scoreA, scoreB int) Result {
	expectedA := Expected(ratingA, ratingB)
	actualA := Actual(scoreA, scoreB)

	newA := e.clamp(ratingA + int(math.Round(e.K*(actualA-expectedA))))
	newB := e.clamp(ratingB + int(math.Round(e.K*((1-actualA)-(1-expectedA)))))

	return Result{
		NewA:   newA,
		NewB:   newB,
		DeltaA: newA - ratingA,
		DeltaB: newB - ratingB,
	}
}

// Clamp keeps r within the engine's bounds.
func (e Engine) Clamp(r int) int {
	return e.clamp(r)
}

func (e Engine) clamp(r int) int {
	if e.Ceiling > e.Floor {
		if r < e.Floor {
			return e.Floor
		}
		if r > e.Ceiling {
			return e.Ceiling
		}
	}
	return r
}
