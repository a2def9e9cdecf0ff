// internal/game/engine.go
//
// Scoring and difficulty rules for a whack-a-cat session.
// Responsibilities:
//   - Create fresh round state (score 0, level 1, 5 lives, 2000ms).
//   - Apply a hit: score, and on every 10th point level up, grant a life
//     and shorten the on-screen time (floored at 500ms).
//   - Apply a miss: lose a life, end the session at 0.
//   - Place a cat at a pseudo-random spot inside the viewport.
//
// Package-level defaults are kept here for clarity.
package game

import (
	"math/rand"
	"time"
)

const (
	InitialLives      = 5
	InitialDurationMs = 2000
	MinDurationMs     = 500
	DurationStepMs    = 200
	PointsPerLevel    = 10
	EntitySize        = 80
)

// NewRoundState returns the counters of a freshly started session.
func NewRoundState() RoundState {
	return RoundState{
		Score:      0,
		Level:      1,
		Lives:      InitialLives,
		DurationMs: InitialDurationMs,
		Active:     true,
	}
}

// Hit records a caught cat.
// Returns the new state and whether this hit crossed a level boundary.
//
// Level-up (every positive multiple of PointsPerLevel):
//   - Level +1
//   - Lives +1
//   - DurationMs -DurationStepMs, clamped to MinDurationMs
func (s RoundState) Hit() (RoundState, bool) {
	if !s.Active {
		return s, false
	}
	s.Score++
	if s.Score%PointsPerLevel != 0 {
		return s, false
	}
	s.Level++
	s.Lives++
	s.DurationMs = max(MinDurationMs, s.DurationMs-DurationStepMs)
	return s, true
}

// Miss records a cat that got away.
// Lives never drop below zero; reaching zero deactivates the session.
func (s RoundState) Miss() RoundState {
	if !s.Active {
		return s
	}
	if s.Lives > 0 {
		s.Lives--
	}
	if s.Lives == 0 {
		s.Active = false
	}
	return s
}

// Duration is DurationMs as a time.Duration.
func (s RoundState) Duration() time.Duration {
	return time.Duration(s.DurationMs) * time.Millisecond
}

// Place picks a spot for a cat of the given size fully inside vp.
// A viewport smaller than the cat pins that axis to 0.
func Place(rng *rand.Rand, vp Viewport, size int) Spot {
	return Spot{
		X:    randBelow(rng, vp.Width-size),
		Y:    randBelow(rng, vp.Height-size),
		Size: size,
	}
}

// randBelow returns a value in [0, n) or 0 when n <= 0.
func randBelow(rng *rand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.Intn(n)
}
