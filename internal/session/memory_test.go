package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/catcatch/internal/catapi"
	"github.com/robalobadob/catcatch/internal/round"
)

type staticSource struct{}

func (staticSource) Search(ctx context.Context, limit int) ([]catapi.Image, error) {
	return []catapi.Image{{ID: "a", URL: "https://cdn/a.jpg"}}, nil
}

func TestCreateGetRemove(t *testing.T) {
	r := NewRegistry(staticSource{}, 1)
	defer r.Close()

	c := r.Create()
	if c.ID == "" {
		t.Fatal("empty session id")
	}
	got, err := r.Get(c.ID)
	if err != nil || got != c {
		t.Fatalf("get = %v, %v", got, err)
	}
	if n := len(r.List()); n != 1 {
		t.Fatalf("list len = %d", n)
	}

	if err := r.Remove(c.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := r.Get(c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := r.Remove(c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: %v", err)
	}
	if _, err := c.Snapshot(context.Background()); !errors.Is(err, round.ErrStopped) {
		t.Fatalf("removed session still running: %v", err)
	}
}

func TestSweepDropsIdleSessions(t *testing.T) {
	r := NewRegistry(staticSource{}, 1)
	defer r.Close()

	old := r.Create()
	time.Sleep(20 * time.Millisecond)
	fresh := r.Create()

	if n := r.Sweep(10 * time.Millisecond); n != 1 {
		t.Fatalf("swept %d", n)
	}
	if _, err := r.Get(old.ID); !errors.Is(err, ErrNotFound) {
		t.Fatal("idle session survived")
	}
	if _, err := r.Get(fresh.ID); err != nil {
		t.Fatalf("fresh session swept: %v", err)
	}
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func TestSweepLogsOncePerPass(t *testing.T) {
	var buf lockedBuffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	r := NewRegistry(staticSource{}, 1)
	defer r.Close()
	r.Create()
	r.Create()
	time.Sleep(20 * time.Millisecond)

	if n := r.Sweep(time.Millisecond); n != 2 {
		t.Fatalf("swept %d", n)
	}
	if n := strings.Count(buf.String(), "swept idle sessions"); n != 1 {
		t.Fatalf("sweep logged %d times", n)
	}
	if n := r.Sweep(time.Millisecond); n != 0 {
		t.Fatalf("second sweep removed %d", n)
	}
	if n := strings.Count(buf.String(), "swept idle sessions"); n != 1 {
		t.Fatalf("empty sweep logged, total %d", n)
	}
}
