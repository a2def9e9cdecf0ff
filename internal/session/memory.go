// internal/session/memory.go
//
// In-memory registry of live minigame sessions.
//
// Characteristics:
//   - Each session is a round.Controller running on its own goroutine with
//     its own image supply queue.
//   - Concurrency-safe via RWMutex (concurrent lookups allowed, writes exclusive).
//   - State is lost when the process restarts; sessions are never persisted.
//   - Idle sessions are stopped and dropped by Sweep.

package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/catcatch/internal/round"
	"github.com/robalobadob/catcatch/internal/supply"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Info is the registry view of one session.
type Info struct {
	ID        string    `json:"id"`
	IdleSince time.Time `json:"idleSince"`
}

// Registry holds live sessions keyed by id.
type Registry struct {
	mu       sync.RWMutex                 // guards sessions
	sessions map[string]*round.Controller // keyed by Controller.ID
	src      supply.Source
	batch    int
}

// NewRegistry builds an empty registry. New sessions prefetch batch images
// at a time from src.
func NewRegistry(src supply.Source, batch int) *Registry {
	return &Registry{
		sessions: make(map[string]*round.Controller),
		src:      src,
		batch:    batch,
	}
}

// Create starts a new idle session and returns it.
func (r *Registry) Create() *round.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := genID()
	for _, taken := r.sessions[id]; taken; _, taken = r.sessions[id] {
		id = genID()
	}
	c := round.NewController(id, supply.NewQueue(r.src, r.batch))
	r.sessions[id] = c
	go c.Run()
	log.Debug().Str("session", id).Msg("session created")
	return c
}

// Get looks up a session by id.
func (r *Registry) Get(id string) (*round.Controller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.sessions[id]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

// Remove stops and drops a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	c, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	c.Stop()
	return nil
}

// List returns every live session.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Info, 0, len(r.sessions))
	for id, c := range r.sessions {
		out = append(out, Info{ID: id, IdleSince: c.IdleSince()})
	}
	return out
}

// Sweep stops sessions nobody touched for maxIdle and returns how many.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	var stale []*round.Controller
	for id, c := range r.sessions {
		if c.IdleSince().Before(cutoff) {
			stale = append(stale, c)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, c := range stale {
		c.Stop()
	}
	if len(stale) > 0 {
		log.Info().Int("removed", len(stale)).Msg("swept idle sessions")
	}
	return len(stale)
}

// Close stops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.sessions {
		c.Stop()
		delete(r.sessions, id)
	}
}

// genID creates a 16-char URL-safe, crypto-random identifier (no padding).
func genID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
