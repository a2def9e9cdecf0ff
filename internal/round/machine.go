// internal/round/machine.go
//
// Synchronous round state machine for one whack-a-cat session.
//
//	idle → spawning → waiting → {hit, timed_out} → (spawning | ended → idle)
//
// The machine owns the RoundState value and the identity of the current
// round. It never blocks and never starts goroutines: timers, refills and
// event delivery are collaborators supplied through Config, which lets the
// Controller drive it from a single goroutine and tests drive it directly.
//
// Every armed countdown carries the round id it was armed for. Expire and
// Hit both check that id against the live round, so a stale timer or a late
// click can never resolve a round twice.

package round

import (
	"math/rand"
	"time"

	"github.com/robalobadob/catcatch/internal/game"
	"github.com/robalobadob/catcatch/internal/supply"
)

// DefaultViewport is used when a start request carries no usable size.
var DefaultViewport = game.Viewport{Width: 800, Height: 600}

// EventType names what happened in a session.
type EventType string

const (
	EventStarted EventType = "started"
	EventSpawned EventType = "spawned"
	EventHit     EventType = "hit"
	EventLevelUp EventType = "level_up"
	EventExpired EventType = "expired"
	EventStalled EventType = "stalled"
	EventEnded   EventType = "ended"
)

// Entity is the cat currently on screen.
type Entity struct {
	Round     uint64          `json:"round"`
	Image     supply.ImageRef `json:"image"`
	Spot      game.Spot       `json:"spot"`
	SpawnedAt time.Time       `json:"spawnedAt"`
	Deadline  time.Time       `json:"deadline"`
}

// Event is delivered to subscribers after every transition.
type Event struct {
	Type   EventType       `json:"type"`
	Round  uint64          `json:"round"`
	State  game.RoundState `json:"state"`
	Entity *Entity         `json:"entity,omitempty"`
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	Phase   game.Phase      `json:"phase"`
	Round   uint64          `json:"round"`
	State   game.RoundState `json:"state"`
	Entity  *Entity         `json:"entity,omitempty"`
	Stalled bool            `json:"stalled"`
	Queued  int             `json:"queued"`
}

// Supply is the part of supply.Queue the machine consumes.
type Supply interface {
	Take() (supply.ImageRef, bool)
	Low() bool
	Clear()
}

// Timer arms and cancels the per-round countdown.
// Arm replaces any countdown still armed.
type Timer interface {
	Arm(round uint64, d time.Duration)
	Cancel()
}

// Config wires a Machine to its collaborators.
// Refill must not block; it schedules a background refill.
type Config struct {
	Supply Supply
	Timer  Timer
	Refill func()
	Emit   func(Event)
	Rand   *rand.Rand
	Now    func() time.Time
}

// Machine is the round controller core. It is not safe for concurrent use.
type Machine struct {
	cfg      Config
	state    game.RoundState
	phase    game.Phase
	round    uint64
	current  *Entity
	stalled  bool
	viewport game.Viewport
}

// NewMachine returns an idle machine.
func NewMachine(cfg Config) *Machine {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Emit == nil {
		cfg.Emit = func(Event) {}
	}
	if cfg.Refill == nil {
		cfg.Refill = func() {}
	}
	st := game.NewRoundState()
	st.Active = false
	return &Machine{
		cfg:      cfg,
		state:    st,
		phase:    game.PhaseIdle,
		viewport: DefaultViewport,
	}
}

// Start resets the session and spawns the first cat.
// Calling Start mid-session restarts it; the old countdown is cancelled and
// its round id goes stale.
func (m *Machine) Start(vp game.Viewport) {
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = DefaultViewport
	}
	m.cfg.Timer.Cancel()
	m.viewport = vp
	m.state = game.NewRoundState()
	m.current = nil
	m.stalled = false
	m.phase = game.PhaseSpawning
	m.emit(EventStarted)
	m.spawn()
}

// Hit resolves the current round as caught.
// Returns false (and changes nothing) if round is not the live round.
func (m *Machine) Hit(round uint64) bool {
	if !m.live(round) {
		return false
	}
	m.cfg.Timer.Cancel()
	m.phase = game.PhaseHit
	m.current = nil

	var levelled bool
	m.state, levelled = m.state.Hit()
	m.emit(EventHit)
	if levelled {
		m.emit(EventLevelUp)
	}
	m.spawn()
	return true
}

// Expire resolves the current round as missed.
// A countdown for any other round is ignored.
func (m *Machine) Expire(round uint64) bool {
	if !m.live(round) {
		return false
	}
	m.phase = game.PhaseTimedOut
	m.current = nil
	m.state = m.state.Miss()
	m.emit(EventExpired)
	if !m.state.Active {
		m.end()
		return true
	}
	m.spawn()
	return true
}

// Refilled tells the machine that new images may be available.
// A stalled session spawns immediately; otherwise nothing happens.
func (m *Machine) Refilled() bool {
	if !m.stalled || !m.state.Active {
		return false
	}
	m.spawn()
	return m.phase == game.PhaseWaiting
}

// State returns a copy of the round counters.
func (m *Machine) State() game.RoundState { return m.state }

// Phase returns the current phase.
func (m *Machine) Phase() game.Phase { return m.phase }

// Round returns the id of the latest spawned round.
func (m *Machine) Round() uint64 { return m.round }

// Stalled reports whether the machine is waiting for images.
func (m *Machine) Stalled() bool { return m.stalled }

// Entity returns a copy of the cat on screen, or nil.
func (m *Machine) Entity() *Entity {
	if m.current == nil {
		return nil
	}
	e := *m.current
	return &e
}

// Snapshot returns a view of the machine. Queued is left for the caller.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Phase:   m.phase,
		Round:   m.round,
		State:   m.state,
		Entity:  m.Entity(),
		Stalled: m.stalled,
	}
}

func (m *Machine) live(round uint64) bool {
	return m.phase == game.PhaseWaiting && m.current != nil && m.current.Round == round
}

// spawn takes the next image and arms a countdown for it. With no image
// available the machine stalls until Refilled or Start.
func (m *Machine) spawn() {
	if !m.state.Active {
		return
	}
	m.phase = game.PhaseSpawning

	ref, ok := m.cfg.Supply.Take()
	if !ok {
		if !m.stalled {
			m.stalled = true
			m.emit(EventStalled)
		}
		m.cfg.Refill()
		return
	}
	m.stalled = false

	m.round++
	now := m.cfg.Now()
	d := m.state.Duration()
	m.current = &Entity{
		Round:     m.round,
		Image:     ref,
		Spot:      game.Place(m.cfg.Rand, m.viewport, game.EntitySize),
		SpawnedAt: now,
		Deadline:  now.Add(d),
	}
	m.phase = game.PhaseWaiting
	m.cfg.Timer.Arm(m.round, d)
	m.emit(EventSpawned)

	if m.cfg.Supply.Low() {
		m.cfg.Refill()
	}
}

// end reports the final result, drops the leftover images and prefetches a
// fresh batch for the next session.
func (m *Machine) end() {
	m.cfg.Timer.Cancel()
	m.phase = game.PhaseEnded
	m.stalled = false
	m.emit(EventEnded)
	m.cfg.Supply.Clear()
	m.cfg.Refill()
	m.phase = game.PhaseIdle
}

func (m *Machine) emit(t EventType) {
	m.cfg.Emit(Event{
		Type:   t,
		Round:  m.round,
		State:  m.state,
		Entity: m.Entity(),
	})
}
