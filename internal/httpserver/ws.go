package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/catcatch/internal/game"
	"github.com/robalobadob/catcatch/internal/round"
	"github.com/robalobadob/catcatch/internal/ticket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 25 * time.Second
	wsCallWait   = 5 * time.Second
)

// wsCommand is a client → server frame.
//
//	{"t":"start","width":800,"height":600}
//	{"t":"hit","ticket":"..."}
type wsCommand struct {
	T      string `json:"t"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	Ticket string `json:"ticket,omitempty"`
}

// wsEvent is a session event plus the ticket for the cat it shows.
type wsEvent struct {
	round.Event
	Ticket string `json:"ticket,omitempty"`
}

type wsHitResult struct {
	Type     string `json:"type"` // "hit_result"
	Accepted bool   `json:"accepted"`
}

// wsSink adapts a WebSocket connection to round.Sink. Send only queues; a
// single writer goroutine owns the connection's write side.
type wsSink struct {
	conn    *websocket.Conn
	session string
	tickets *ticket.Signer
	out     chan []byte
	done    chan struct{}
	once    sync.Once
}

var errSlowClient = errors.New("websocket client too slow")

func newWSSink(conn *websocket.Conn, session string, tickets *ticket.Signer) *wsSink {
	s := &wsSink{
		conn:    conn,
		session: session,
		tickets: tickets,
		out:     make(chan []byte, 32),
		done:    make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

func (s *wsSink) Send(ev round.Event) error {
	frame := wsEvent{Event: ev}
	if ev.Entity != nil && ev.Type == round.EventSpawned {
		tok, err := s.tickets.Issue(s.session, ev.Entity.Round, ev.Entity.Deadline)
		if err != nil {
			return err
		}
		frame.Ticket = tok
	}
	b, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return s.queue(b)
}

func (s *wsSink) queue(b []byte) error {
	select {
	case <-s.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case s.out <- b:
		return nil
	default:
		return errSlowClient
	}
}

func (s *wsSink) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// writeLoop drains queued frames and keeps the connection alive with pings.
func (s *wsSink) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case b := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				s.Close()
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		}
	}
}

func (s *Server) upgrader() *websocket.Upgrader {
	origin := s.deps.ClientOrigin
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == origin || !s.deps.Production
		},
	}
}

// handlePlayWS streams session events and accepts start/hit commands.
func (s *Server) handlePlayWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.controller(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	conn.SetReadLimit(4 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	sink := newWSSink(conn, c.ID, s.deps.Tickets)
	id, err := s.subscribe(c, sink)
	if err != nil {
		_ = sink.Close()
		return
	}
	defer c.Unsubscribe(id)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("session", c.ID).Msg("websocket read")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		var cmd wsCommand
		if err := json.Unmarshal(msg, &cmd); err != nil {
			continue
		}
		if err := s.applyWS(c, sink, cmd); err != nil {
			return
		}
	}
}

func (s *Server) subscribe(c *round.Controller, sink *wsSink) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), wsCallWait)
	defer cancel()
	return c.Subscribe(ctx, sink)
}

// applyWS runs one client command. Only a dead session ends the stream.
func (s *Server) applyWS(c *round.Controller, sink *wsSink, cmd wsCommand) error {
	ctx, cancel := context.WithTimeout(context.Background(), wsCallWait)
	defer cancel()

	switch cmd.T {
	case "start":
		_, err := c.Start(ctx, game.Viewport{Width: cmd.Width, Height: cmd.Height})
		if errors.Is(err, round.ErrStopped) {
			return err
		}
	case "hit":
		accepted := false
		claims, err := s.deps.Tickets.Verify(cmd.Ticket)
		if err == nil && claims.Session() == c.ID {
			res, err := c.Hit(ctx, claims.Round)
			if errors.Is(err, round.ErrStopped) {
				return err
			}
			accepted = res.Accepted
		}
		b, _ := json.Marshal(wsHitResult{Type: "hit_result", Accepted: accepted})
		_ = sink.queue(b)
	}
	return nil
}
