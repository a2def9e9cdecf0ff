package game

import (
	"math/rand"
	"testing"
)

func TestNewRoundStateDefaults(t *testing.T) {
	s := NewRoundState()
	want := RoundState{Score: 0, Level: 1, Lives: 5, DurationMs: 2000, Active: true}
	if s != want {
		t.Fatalf("got %+v, want %+v", s, want)
	}
}

func TestTenHitsLevelUp(t *testing.T) {
	s := NewRoundState()
	ups := 0
	for i := 0; i < 10; i++ {
		var up bool
		s, up = s.Hit()
		if up {
			ups++
		}
	}
	want := RoundState{Score: 10, Level: 2, Lives: 6, DurationMs: 1800, Active: true}
	if s != want {
		t.Fatalf("got %+v, want %+v", s, want)
	}
	if ups != 1 {
		t.Fatalf("expected exactly one level-up, got %d", ups)
	}
}

func TestLevelTracksScoreAndDurationFloors(t *testing.T) {
	s := NewRoundState()
	prev := s.DurationMs
	for i := 1; i <= 250; i++ {
		s, _ = s.Hit()
		if s.Level != 1+s.Score/PointsPerLevel {
			t.Fatalf("score %d: level %d", s.Score, s.Level)
		}
		if s.DurationMs > prev {
			t.Fatalf("score %d: duration grew from %d to %d", s.Score, prev, s.DurationMs)
		}
		if s.DurationMs < MinDurationMs {
			t.Fatalf("score %d: duration %d below floor", s.Score, s.DurationMs)
		}
		prev = s.DurationMs
	}
	if s.DurationMs != MinDurationMs {
		t.Fatalf("expected duration to reach the floor, got %d", s.DurationMs)
	}
}

func TestMissEndsAtZeroLives(t *testing.T) {
	s := NewRoundState()
	for i := 1; i <= InitialLives; i++ {
		s = s.Miss()
		if s.Lives != InitialLives-i {
			t.Fatalf("miss %d: lives %d", i, s.Lives)
		}
		if s.Active != (i < InitialLives) {
			t.Fatalf("miss %d: active=%v", i, s.Active)
		}
	}
	s = s.Miss()
	if s.Lives != 0 {
		t.Fatalf("lives went negative: %d", s.Lives)
	}
	if s.Score != 0 || s.Level != 1 {
		t.Fatalf("unexpected final state %+v", s)
	}
}

func TestHitIgnoredAfterEnd(t *testing.T) {
	s := RoundState{Score: 3, Level: 1, Lives: 0, DurationMs: 2000}
	got, up := s.Hit()
	if got != s || up {
		t.Fatalf("inactive state changed: %+v", got)
	}
}

func TestPlaceStaysInsideViewport(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := []struct {
		name string
		vp   Viewport
	}{
		{"regular", Viewport{Width: 800, Height: 600}},
		{"exact", Viewport{Width: EntitySize, Height: EntitySize}},
		{"too small", Viewport{Width: 40, Height: 10}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				sp := Place(rng, tc.vp, EntitySize)
				if sp.X < 0 || sp.Y < 0 {
					t.Fatalf("negative spot %+v", sp)
				}
				if tc.vp.Width >= EntitySize && sp.X+sp.Size > tc.vp.Width {
					t.Fatalf("spot %+v overflows width %d", sp, tc.vp.Width)
				}
				if tc.vp.Height >= EntitySize && sp.Y+sp.Size > tc.vp.Height {
					t.Fatalf("spot %+v overflows height %d", sp, tc.vp.Height)
				}
			}
		})
	}
}
