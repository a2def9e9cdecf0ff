package prefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/robalobadob/catcatch/assets"
	"github.com/robalobadob/catcatch/internal/db"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.Migrate(conn, assets.Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(conn)
}

func TestFavoritesAddNoDuplicates(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	for _, u := range []string{"a", "b", "a"} {
		if err := s.AddFavorite(ctx, "me", u); err != nil {
			t.Fatalf("add %s: %v", u, err)
		}
	}
	favs, err := s.Favorites(ctx, "me")
	if err != nil {
		t.Fatalf("favorites: %v", err)
	}
	if len(favs) != 2 || favs[0].URL != "a" || favs[1].URL != "b" {
		t.Fatalf("favorites = %+v", favs)
	}
	if favs[0].ID != FavoriteID("a") {
		t.Fatalf("id = %q", favs[0].ID)
	}
	if n, _ := s.FavoriteCount(ctx, "other"); n != 0 {
		t.Fatalf("other owner sees %d favorites", n)
	}
}

func TestToggleTwiceRestores(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	on, err := s.ToggleFavorite(ctx, "me", "x")
	if err != nil || !on {
		t.Fatalf("first toggle = %v, %v", on, err)
	}
	if ok, _ := s.IsFavorite(ctx, "me", "x"); !ok {
		t.Fatal("x should be a favorite")
	}
	on, err = s.ToggleFavorite(ctx, "me", "x")
	if err != nil || on {
		t.Fatalf("second toggle = %v, %v", on, err)
	}
	if n, _ := s.FavoriteCount(ctx, "me"); n != 0 {
		t.Fatalf("count = %d", n)
	}
}

func TestRemoveFavoriteByID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_ = s.AddFavorite(ctx, "me", "a")
	_ = s.AddFavorite(ctx, "me", "b")

	found, err := s.RemoveFavoriteByID(ctx, "me", FavoriteID("a"))
	if err != nil || !found {
		t.Fatalf("remove = %v, %v", found, err)
	}
	found, _ = s.RemoveFavoriteByID(ctx, "me", "nope")
	if found {
		t.Fatal("removed unknown id")
	}
	set, _ := s.FavoriteSet(ctx, "me")
	if _, ok := set["b"]; !ok || len(set) != 1 {
		t.Fatalf("set = %v", set)
	}
	if err := s.RemoveFavorite(ctx, "me", "missing"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestCorruptFavoritesReadAsEmpty(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if err := s.Put(ctx, "me", "favorites", "{not json"); err != nil {
		t.Fatalf("put: %v", err)
	}
	favs, err := s.Favorites(ctx, "me")
	if err != nil || len(favs) != 0 {
		t.Fatalf("favorites = %v, %v", favs, err)
	}
	if err := s.AddFavorite(ctx, "me", "a"); err != nil {
		t.Fatalf("add after corrupt: %v", err)
	}
	raw, _, _ := s.Get(ctx, "me", "favorites")
	if raw != `["a"]` {
		t.Fatalf("raw = %s", raw)
	}
}

func TestThemeDefaultAndToggle(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if th, _ := s.Theme(ctx, "me"); th != ThemeLight {
		t.Fatalf("default theme = %s", th)
	}
	if th, _ := s.ToggleTheme(ctx, "me"); th != ThemeDark {
		t.Fatalf("toggle 1 = %s", th)
	}
	if th, _ := s.ToggleTheme(ctx, "me"); th != ThemeLight {
		t.Fatalf("toggle 2 = %s", th)
	}
	if err := s.SetTheme(ctx, "me", "pink"); err != ErrBadTheme {
		t.Fatalf("set bad theme: %v", err)
	}
	if err := s.SetTheme(ctx, "me", ThemeDark); err != nil {
		t.Fatalf("set dark: %v", err)
	}
	if th, _ := s.Theme(ctx, "me"); th != ThemeDark {
		t.Fatalf("theme = %s", th)
	}
}
