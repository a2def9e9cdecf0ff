// internal/httpserver/routes_play.go
//
// HTTP routes for the whack-a-cat minigame:
//   - POST   /play            → create a session (prefetches images)
//   - GET    /play/{id}       → snapshot: phase, score/level/lives, cat on screen
//   - POST   /play/{id}/start → start or restart with the client's viewport
//   - POST   /play/{id}/hit   → click on a cat, identified by its round ticket
//   - DELETE /play/{id}       → discard the session
//
// The round controller owns all game state; handlers only translate requests
// into controller calls and attach a signed ticket to the cat on screen.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/catcatch/internal/game"
	"github.com/robalobadob/catcatch/internal/round"
	"github.com/robalobadob/catcatch/internal/session"
	"github.com/robalobadob/catcatch/internal/ticket"
)

// mountPlay registers all /play routes.
func (s *Server) mountPlay(r chi.Router) {
	r.Route("/play", func(r chi.Router) {
		// The WebSocket stream lives outside the handler timeout.
		r.Get("/{id}/ws", s.handlePlayWS)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(10 * time.Second))
			r.Use(jsonContentType)
			r.Post("/", s.handleCreatePlay)
			r.Get("/{id}", s.handleGetPlay)
			r.Post("/{id}/start", s.handleStartPlay)
			r.Post("/{id}/hit", s.handleHitPlay)
			r.Delete("/{id}", s.handleDeletePlay)
		})
	})
}

// playView is a snapshot plus the ticket for the cat on screen.
type playView struct {
	SessionID string `json:"sessionId"`
	round.Snapshot
	Ticket string `json:"ticket,omitempty"`
}

type startReq struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type hitReq struct {
	Ticket string `json:"ticket"`
}

type hitRes struct {
	Accepted bool     `json:"accepted"`
	State    playView `json:"state"`
}

// view attaches a ticket for the current entity, if any.
func (s *Server) view(id string, snap round.Snapshot) playView {
	v := playView{SessionID: id, Snapshot: snap}
	if snap.Entity != nil {
		tok, err := s.deps.Tickets.Issue(id, snap.Entity.Round, snap.Entity.Deadline)
		if err != nil {
			log.Error().Err(err).Str("session", id).Msg("issue ticket")
		}
		v.Ticket = tok
	}
	return v
}

// controller resolves {id}; it writes the 404 itself.
func (s *Server) controller(w http.ResponseWriter, r *http.Request) (*round.Controller, bool) {
	c, err := s.deps.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"no_session"}`, http.StatusNotFound)
		return nil, false
	}
	return c, true
}

// sessionError maps controller call errors to responses.
func sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, round.ErrStopped) {
		http.Error(w, `{"error":"no_session"}`, http.StatusGone)
		return
	}
	http.Error(w, `{"error":"timeout"}`, http.StatusServiceUnavailable)
}

func (s *Server) handleCreatePlay(w http.ResponseWriter, r *http.Request) {
	c := s.deps.Sessions.Create()
	snap, err := c.Snapshot(r.Context())
	if err != nil {
		sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(s.view(c.ID, snap))
}

func (s *Server) handleGetPlay(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	snap, err := c.Snapshot(r.Context())
	if err != nil {
		sessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(s.view(c.ID, snap))
}

func (s *Server) handleStartPlay(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var req startReq
	// An empty body starts with the default viewport.
	_ = json.NewDecoder(r.Body).Decode(&req)

	snap, err := c.Start(r.Context(), game.Viewport{Width: req.Width, Height: req.Height})
	if err != nil {
		sessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(s.view(c.ID, snap))
}

// handleHitPlay applies a click. Stale tickets and clicks on rounds that are
// already resolved answer 200 with accepted=false: they are not errors.
func (s *Server) handleHitPlay(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	var req hitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ticket == "" {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}

	claims, err := s.deps.Tickets.Verify(req.Ticket)
	switch {
	case errors.Is(err, ticket.ErrExpired):
		snap, err := c.Snapshot(r.Context())
		if err != nil {
			sessionError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(hitRes{Accepted: false, State: s.view(c.ID, snap)})
		return
	case err != nil:
		http.Error(w, `{"error":"invalid_ticket"}`, http.StatusBadRequest)
		return
	case claims.Session() != c.ID:
		http.Error(w, `{"error":"wrong_session"}`, http.StatusBadRequest)
		return
	}

	res, err := c.Hit(r.Context(), claims.Round)
	if err != nil {
		sessionError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(hitRes{Accepted: res.Accepted, State: s.view(c.ID, res.Snapshot)})
}

func (s *Server) handleDeletePlay(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.Remove(chi.URLParam(r, "id")); errors.Is(err, session.ErrNotFound) {
		http.Error(w, `{"error":"no_session"}`, http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}
