// Package supply buffers image references ahead of the minigame so that
// network latency hides behind gameplay.
//
// The queue is FIFO and unbounded; it is refilled in batches from a Source
// and drained one image per spawned cat. Taking from an empty queue reports
// "no image" instead of blocking.
package supply

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/catcatch/internal/catapi"
)

const (
	// DefaultBatch is how many images one refill asks for.
	DefaultBatch = 10
	// LowWater is the length below which callers should refill.
	LowWater = 5
)

// ImageRef is an opaque locator for a displayable image.
type ImageRef string

// Source produces batches of images (catapi.Client in production).
type Source interface {
	Search(ctx context.Context, limit int) ([]catapi.Image, error)
}

// Queue is the image prefetch buffer of one session.
type Queue struct {
	mu    sync.Mutex // guards items
	items []ImageRef
	src   Source
	batch int
}

// NewQueue builds an empty queue fed by src. batch <= 0 uses DefaultBatch.
func NewQueue(src Source, batch int) *Queue {
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Queue{src: src, batch: batch}
}

// Refill fetches one batch and appends it in fetch order.
// Failures are logged and swallowed; the queue is left unchanged.
// Returns the number of refs appended.
func (q *Queue) Refill(ctx context.Context) int {
	imgs, err := q.src.Search(ctx, q.batch)
	if err != nil {
		log.Warn().Err(err).Msg("refill image queue")
		return 0
	}
	refs := make([]ImageRef, 0, len(imgs))
	for _, img := range imgs {
		refs = append(refs, ImageRef(img.URL))
	}

	q.mu.Lock()
	q.items = append(q.items, refs...)
	n := len(q.items)
	q.mu.Unlock()

	log.Debug().Int("added", len(refs)).Int("queued", n).Msg("image queue refilled")
	return len(refs)
}

// Take removes and returns the oldest ref, or false when empty.
func (q *Queue) Take() (ImageRef, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	ref := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return ref, true
}

// Len reports the number of queued refs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Low reports whether the queue dropped below LowWater.
func (q *Queue) Low() bool { return q.Len() < LowWater }

// Clear drops every queued ref.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
