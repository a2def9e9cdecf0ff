package round

import "github.com/robalobadob/catcatch/internal/game"

// Sink receives session events (a WebSocket connection in production).
// Send must not block for long; a Send error drops the sink.
type Sink interface {
	Send(Event) error
	Close() error
}

// Start: begin or restart the session
type Start struct {
	Viewport game.Viewport
	Reply    chan<- Snapshot
}

// Hit: the player clicked the cat of the given round
type Hit struct {
	Round uint64
	Reply chan<- HitResult
}

type HitResult struct {
	Accepted bool     `json:"accepted"`
	Snapshot Snapshot `json:"snapshot"`
}

// Query: read the current snapshot
type Query struct {
	Reply chan<- Snapshot
}

// Subscribe: attach a sink for live events
type Subscribe struct {
	Sink  Sink
	Reply chan<- int
}

// Unsubscribe: detach (and close) a sink
type Unsubscribe struct {
	ID int
}

// internal signals
type expire struct{ round uint64 }
type refilled struct{ added int }
