package gallery

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robalobadob/catcatch/internal/catapi"
)

type fakeSource struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeSource) Search(ctx context.Context, limit int) ([]catapi.Image, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return []catapi.Image{{ID: "1", URL: "https://cdn/1.jpg"}, {ID: "2", URL: "https://cdn/2.jpg"}}, nil
}

func (f *fakeSource) Download(ctx context.Context, url string) (io.ReadCloser, string, error) {
	return io.NopCloser(strings.NewReader("img")), "image/jpeg", nil
}

type fakeFavs map[string]struct{}

func (f fakeFavs) FavoriteSet(ctx context.Context, owner string) (map[string]struct{}, error) {
	return f, nil
}

func TestPageMarksFavorites(t *testing.T) {
	svc := New(&fakeSource{}, fakeFavs{"https://cdn/2.jpg": {}}, 0)
	cards, err := svc.Page(context.Background(), "me", 0)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(cards) != 2 || cards[0].Favorite || !cards[1].Favorite {
		t.Fatalf("cards = %+v", cards)
	}
	if cards[0].ID == "" || cards[0].ID == cards[1].ID {
		t.Fatalf("bad ids %q %q", cards[0].ID, cards[1].ID)
	}
}

func TestPageCoalescesConcurrentLoads(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	svc := New(src, fakeFavs{}, 20)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Page(context.Background(), "me", 20); err != nil {
				t.Errorf("page: %v", err)
			}
		}()
	}
	// Let every caller join the in-flight load before it finishes.
	time.Sleep(50 * time.Millisecond)
	close(src.release)
	wg.Wait()

	if n := src.calls.Load(); n != 1 {
		t.Fatalf("upstream calls = %d", n)
	}
}

func TestPageSurvivesFirstCallerCancel(t *testing.T) {
	src := &fakeSource{release: make(chan struct{})}
	svc := New(src, fakeFavs{}, 20)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := svc.Page(ctx, "me", 20)
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := svc.Page(context.Background(), "me", 20)
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	close(src.release)

	if err := <-second; err != nil {
		t.Fatalf("second caller failed with the first one's cancel: %v", err)
	}
	<-first
}

func TestPageUpstreamError(t *testing.T) {
	svc := New(&fakeSource{err: errors.New("down")}, fakeFavs{}, 20)
	if _, err := svc.Page(context.Background(), "me", 5); err == nil {
		t.Fatal("expected error")
	}
}

func TestDownloadName(t *testing.T) {
	got := DownloadName(time.UnixMilli(1700000000123))
	if got != "gatinho-1700000000123.jpg" {
		t.Fatalf("name = %q", got)
	}
}
