// Package gallery serves pages of cat pictures annotated with the visitor's
// favorites, and proxies single images for download.
package gallery

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/robalobadob/catcatch/internal/catapi"
	"github.com/robalobadob/catcatch/internal/prefs"
)

// DefaultBatch is the page size used when a request asks for none.
const DefaultBatch = 20

// MaxBatch bounds the page size a client may ask for.
const MaxBatch = 100

// loadTimeout bounds one shared upstream load.
const loadTimeout = 15 * time.Second

// Source fetches images (catapi.Client in production).
type Source interface {
	Search(ctx context.Context, limit int) ([]catapi.Image, error)
	Download(ctx context.Context, url string) (io.ReadCloser, string, error)
}

// Favorites reports which URLs a visitor saved.
type Favorites interface {
	FavoriteSet(ctx context.Context, owner string) (map[string]struct{}, error)
}

// Card is one gallery tile.
type Card struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Favorite bool   `json:"favorite"`
}

// Service builds gallery pages.
type Service struct {
	src   Source
	favs  Favorites
	batch int
	loads singleflight.Group // one upstream load per owner at a time
}

func New(src Source, favs Favorites, batch int) *Service {
	if batch <= 0 {
		batch = DefaultBatch
	}
	return &Service{src: src, favs: favs, batch: batch}
}

// Page loads the next batch of images for owner. Concurrent calls for the
// same owner and size share one upstream request and receive the same page.
func (s *Service) Page(ctx context.Context, owner string, limit int) ([]Card, error) {
	if limit <= 0 {
		limit = s.batch
	}
	limit = min(limit, MaxBatch)

	v, err, shared := s.loads.Do(owner+"|"+strconv.Itoa(limit), func() (any, error) {
		// Shared by every caller; one cancelled request must not fail the rest.
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		imgs, err := s.src.Search(lctx, limit)
		if err != nil {
			return nil, err
		}
		return imgs, nil
	})
	if err != nil {
		log.Error().Err(err).Str("owner", owner).Msg("load gallery page")
		return nil, fmt.Errorf("load gallery: %w", err)
	}
	if shared {
		log.Debug().Str("owner", owner).Msg("gallery load coalesced")
	}
	imgs := v.([]catapi.Image)

	saved, err := s.favs.FavoriteSet(ctx, owner)
	if err != nil {
		// Cards still render; stars just show as unset.
		log.Warn().Err(err).Str("owner", owner).Msg("read favorites for gallery")
		saved = map[string]struct{}{}
	}

	cards := make([]Card, 0, len(imgs))
	for _, img := range imgs {
		_, fav := saved[img.URL]
		cards = append(cards, Card{
			ID:       prefs.FavoriteID(img.URL),
			URL:      img.URL,
			Width:    img.Width,
			Height:   img.Height,
			Favorite: fav,
		})
	}
	return cards, nil
}

// Download opens url for saving. The caller closes the body.
func (s *Service) Download(ctx context.Context, url string) (io.ReadCloser, string, error) {
	return s.src.Download(ctx, url)
}

// DownloadName is the attachment name offered for a saved image.
func DownloadName(now time.Time) string {
	return "gatinho-" + strconv.FormatInt(now.UnixMilli(), 10) + ".jpg"
}
