package round

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/catcatch/internal/game"
	"github.com/robalobadob/catcatch/internal/supply"
)

// ErrStopped is returned by calls on a controller that has shut down.
var ErrStopped = errors.New("session stopped")

const (
	refillRetryBase = 500 * time.Millisecond
	refillRetryMax  = 30 * time.Second
)

// Controller runs one Machine on its own goroutine. Every signal (player
// commands, countdown expiry, refill completion) arrives through Inbox and
// is handled to completion before the next one, so the machine, the
// countdown handle and the sink set need no locking.
type Controller struct {
	Inbox chan any
	ID    string

	m     *Machine
	queue *supply.Queue
	timer *time.Timer
	sinks map[int]Sink

	nextSink      int
	refilling     bool
	failedRefills int

	lastSeen atomic.Int64
	ctx      context.Context
	cancel   context.CancelFunc
	quit     chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger
}

// NewController builds a controller for session id fed by queue.
// Call Run on its own goroutine.
func NewController(id string, queue *supply.Queue) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		Inbox:  make(chan any, 64),
		ID:     id,
		queue:  queue,
		sinks:  make(map[int]Sink),
		ctx:    ctx,
		cancel: cancel,
		quit:   make(chan struct{}),
		logger: log.With().Str("session", id).Logger(),
	}
	c.m = NewMachine(Config{
		Supply: queue,
		Timer:  countdown{c},
		Refill: c.requestRefill,
		Emit:   c.broadcast,
	})
	c.touch()
	return c
}

// Run processes the inbox until Stop. The first batch of images is
// prefetched right away so the first start rarely stalls.
func (c *Controller) Run() {
	c.requestRefill()
	for {
		select {
		case <-c.quit:
			c.shutdown()
			return
		case msg := <-c.Inbox:
			c.handle(msg)
		}
	}
}

// Stop ends the goroutine started by Run. Safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		close(c.quit)
	})
}

// IdleSince reports when a player last interacted with the session.
func (c *Controller) IdleSince() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// Start begins (or restarts) the session and returns the resulting snapshot.
func (c *Controller) Start(ctx context.Context, vp game.Viewport) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := c.send(ctx, Start{Viewport: vp, Reply: reply}); err != nil {
		return Snapshot{}, err
	}
	return await(ctx, c.quit, reply)
}

// Hit delivers a click for round.
func (c *Controller) Hit(ctx context.Context, round uint64) (HitResult, error) {
	reply := make(chan HitResult, 1)
	if err := c.send(ctx, Hit{Round: round, Reply: reply}); err != nil {
		return HitResult{}, err
	}
	return await(ctx, c.quit, reply)
}

// Snapshot reads the current session view.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := c.send(ctx, Query{Reply: reply}); err != nil {
		return Snapshot{}, err
	}
	return await(ctx, c.quit, reply)
}

// Subscribe attaches sink and returns its id for Unsubscribe.
func (c *Controller) Subscribe(ctx context.Context, sink Sink) (int, error) {
	reply := make(chan int, 1)
	if err := c.send(ctx, Subscribe{Sink: sink, Reply: reply}); err != nil {
		return 0, err
	}
	return await(ctx, c.quit, reply)
}

// Unsubscribe detaches and closes a sink. Unknown ids are ignored.
func (c *Controller) Unsubscribe(id int) {
	c.post(Unsubscribe{ID: id})
}

func (c *Controller) handle(msg any) {
	switch m := msg.(type) {
	case Start:
		c.touch()
		c.m.Start(m.Viewport)
		c.logger.Debug().Int("w", m.Viewport.Width).Int("h", m.Viewport.Height).Msg("session started")
		m.Reply <- c.snapshot()
	case Hit:
		c.touch()
		ok := c.m.Hit(m.Round)
		if !ok {
			c.logger.Debug().Uint64("round", m.Round).Msg("ignored hit")
		}
		m.Reply <- HitResult{Accepted: ok, Snapshot: c.snapshot()}
	case Query:
		c.touch()
		m.Reply <- c.snapshot()
	case Subscribe:
		c.touch()
		c.nextSink++
		c.sinks[c.nextSink] = m.Sink
		m.Reply <- c.nextSink
	case Unsubscribe:
		if s, ok := c.sinks[m.ID]; ok {
			_ = s.Close()
			delete(c.sinks, m.ID)
		}
	case expire:
		c.m.Expire(m.round)
	case refilled:
		c.refilling = false
		if m.added == 0 {
			c.failedRefills++
		} else {
			c.failedRefills = 0
		}
		c.m.Refilled()
		// A session that ended while this refill was in flight cleared
		// what it brought; fetch again so the next start is not starved.
		if m.added > 0 && c.queue.Low() {
			c.requestRefill()
		}
	}
}

func (c *Controller) snapshot() Snapshot {
	s := c.m.Snapshot()
	s.Queued = c.queue.Len()
	return s
}

// broadcast fans an event out to every sink; failing sinks are dropped.
func (c *Controller) broadcast(ev Event) {
	var failed []int
	for id, s := range c.sinks {
		if err := s.Send(ev); err != nil {
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		_ = c.sinks[id].Close()
		delete(c.sinks, id)
	}
	if ev.Type == EventEnded {
		c.logger.Info().Int("score", ev.State.Score).Int("level", ev.State.Level).Msg("session ended")
	}
}

// requestRefill starts a background refill unless one is in flight.
// After refills that brought nothing, the next one waits with exponential
// backoff so a dead image source is not hammered by a stalled session.
func (c *Controller) requestRefill() {
	if c.refilling {
		return
	}
	c.refilling = true
	delay := time.Duration(0)
	if c.failedRefills > 0 {
		delay = refillRetryBase << min(c.failedRefills-1, 6)
		delay = min(delay, refillRetryMax)
	}
	go func() {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-c.quit:
				return
			}
		}
		n := c.queue.Refill(c.ctx)
		c.post(refilled{added: n})
	}()
}

func (c *Controller) shutdown() {
	if c.timer != nil {
		c.timer.Stop()
	}
	for id, s := range c.sinks {
		_ = s.Close()
		delete(c.sinks, id)
	}
}

func (c *Controller) touch() { c.lastSeen.Store(time.Now().UnixNano()) }

// post delivers an internal signal, giving up once the controller stopped.
func (c *Controller) post(msg any) {
	select {
	case c.Inbox <- msg:
	case <-c.quit:
	}
}

func (c *Controller) send(ctx context.Context, msg any) error {
	select {
	case <-c.quit:
		return ErrStopped
	default:
	}
	select {
	case c.Inbox <- msg:
		return nil
	case <-c.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, quit <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-quit:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// countdown arms round-tagged timers that post back into the inbox.
type countdown struct{ c *Controller }

func (t countdown) Arm(round uint64, d time.Duration) {
	t.Cancel()
	t.c.timer = time.AfterFunc(d, func() { t.c.post(expire{round: round}) })
}

func (t countdown) Cancel() {
	if t.c.timer != nil {
		t.c.timer.Stop()
		t.c.timer = nil
	}
}
