// internal/game/types.go
//
// Core type definitions for the whack-a-cat round engine.
// Defines:
//   - Phase: where a session sits in the spawn/resolve cycle.
//   - RoundState: the score/level/lives/duration counters of one session.
//   - Viewport, Spot: the play area and an entity placement inside it.

package game

// Phase represents the controller state of a session.
// Possible values:
//   - "idle":      before the first start, and again after a session ends.
//   - "spawning":  trying to take an image and show the next cat.
//   - "waiting":   a cat is on screen and its countdown is armed.
//   - "hit":       the cat was clicked before the countdown fired.
//   - "timed_out": the countdown fired first.
//   - "ended":     lives are exhausted.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseSpawning Phase = "spawning"
	PhaseWaiting  Phase = "waiting"
	PhaseHit      Phase = "hit"
	PhaseTimedOut Phase = "timed_out"
	PhaseEnded    Phase = "ended"
)

// RoundState holds the counters of a single minigame session.
// It is a value: transitions return a new copy and never touch shared state.
type RoundState struct {
	Score      int  `json:"score"`      // Cats caught so far (never negative).
	Level      int  `json:"level"`      // Starts at 1, one step per 10 points.
	Lives      int  `json:"lives"`      // Starts at 5; 0 ends the session.
	DurationMs int  `json:"durationMs"` // How long a cat stays on screen.
	Active     bool `json:"active"`     // False once lives reach 0.
}

// Viewport is the play area a cat is placed in, in pixels.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Spot is the top-left corner and edge length of a placed cat.
type Spot struct {
	X    int `json:"x"`
	Y    int `json:"y"`
	Size int `json:"size"`
}
