// Package prefs persists per-visitor preferences in a flat key-value table:
// the favorite image list and the color theme. It is the server-side
// equivalent of the browser's localStorage and stores values the same way
// (favorites as a JSON array of URLs, theme as a plain string).
package prefs

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const (
	keyFavorites = "favorites"
	keyTheme     = "theme"
)

// Theme is the page color scheme.
type Theme string

const (
	ThemeLight Theme = "light-theme"
	ThemeDark  Theme = "dark-theme"
)

// ErrBadTheme is returned by SetTheme for unknown values.
var ErrBadTheme = errors.New("unknown theme")

// Favorite is one saved image.
type Favorite struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Store reads and writes preferences. Owners are opaque visitor ids.
type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// FavoriteID is a short stable id for url, usable in paths.
func FavoriteID(url string) string {
	sum := blake2b.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}

// Get returns the raw value stored under key.
func (s *Store) Get(ctx context.Context, owner, key string) (string, bool, error) {
	return get(ctx, s.db, owner, key)
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, owner, key, value string) error {
	return put(ctx, s.db, owner, key, value)
}

// Favorites lists saved images in the order they were added.
func (s *Store) Favorites(ctx context.Context, owner string) ([]Favorite, error) {
	urls, err := loadFavorites(ctx, s.db, owner)
	if err != nil {
		return nil, err
	}
	out := make([]Favorite, 0, len(urls))
	for _, u := range urls {
		out = append(out, Favorite{ID: FavoriteID(u), URL: u})
	}
	return out, nil
}

// FavoriteSet returns the saved URLs as a set.
func (s *Store) FavoriteSet(ctx context.Context, owner string) (map[string]struct{}, error) {
	urls, err := loadFavorites(ctx, s.db, owner)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	return set, nil
}

// FavoriteCount returns how many images are saved.
func (s *Store) FavoriteCount(ctx context.Context, owner string) (int, error) {
	urls, err := loadFavorites(ctx, s.db, owner)
	return len(urls), err
}

// IsFavorite reports whether url is saved.
func (s *Store) IsFavorite(ctx context.Context, owner, url string) (bool, error) {
	urls, err := loadFavorites(ctx, s.db, owner)
	if err != nil {
		return false, err
	}
	return indexOf(urls, url) >= 0, nil
}

// AddFavorite saves url unless it is already saved.
func (s *Store) AddFavorite(ctx context.Context, owner, url string) error {
	return s.updateFavorites(ctx, owner, func(urls []string) []string {
		if indexOf(urls, url) >= 0 {
			return urls
		}
		return append(urls, url)
	})
}

// RemoveFavorite drops url. Removing an unsaved url is not an error.
func (s *Store) RemoveFavorite(ctx context.Context, owner, url string) error {
	return s.updateFavorites(ctx, owner, func(urls []string) []string {
		return without(urls, url)
	})
}

// RemoveFavoriteByID drops the favorite with the given FavoriteID.
// Returns false when no saved image has that id.
func (s *Store) RemoveFavoriteByID(ctx context.Context, owner, id string) (bool, error) {
	found := false
	err := s.updateFavorites(ctx, owner, func(urls []string) []string {
		for _, u := range urls {
			if FavoriteID(u) == id {
				found = true
				return without(urls, u)
			}
		}
		return urls
	})
	return found, err
}

// ToggleFavorite flips url and returns whether it is now saved.
func (s *Store) ToggleFavorite(ctx context.Context, owner, url string) (bool, error) {
	var saved bool
	err := s.updateFavorites(ctx, owner, func(urls []string) []string {
		if indexOf(urls, url) >= 0 {
			saved = false
			return without(urls, url)
		}
		saved = true
		return append(urls, url)
	})
	return saved, err
}

// Theme returns the stored theme, ThemeLight when unset.
func (s *Store) Theme(ctx context.Context, owner string) (Theme, error) {
	v, ok, err := get(ctx, s.db, owner, keyTheme)
	if err != nil {
		return "", err
	}
	if !ok || Theme(v) != ThemeDark {
		return ThemeLight, nil
	}
	return ThemeDark, nil
}

// SetTheme stores t.
func (s *Store) SetTheme(ctx context.Context, owner string, t Theme) error {
	if t != ThemeLight && t != ThemeDark {
		return ErrBadTheme
	}
	return put(ctx, s.db, owner, keyTheme, string(t))
}

// ToggleTheme flips between light and dark and returns the new theme.
func (s *Store) ToggleTheme(ctx context.Context, owner string) (Theme, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	next := ThemeDark
	if v, ok, err := get(ctx, tx, owner, keyTheme); err != nil {
		return "", err
	} else if ok && Theme(v) == ThemeDark {
		next = ThemeLight
	}
	if err := put(ctx, tx, owner, keyTheme, string(next)); err != nil {
		return "", err
	}
	return next, tx.Commit()
}

// updateFavorites runs a read-modify-write of the favorites list in one tx.
func (s *Store) updateFavorites(ctx context.Context, owner string, fn func([]string) []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	urls, err := loadFavorites(ctx, tx, owner)
	if err != nil {
		return err
	}
	b, err := json.Marshal(fn(urls))
	if err != nil {
		return err
	}
	if err := put(ctx, tx, owner, keyFavorites, string(b)); err != nil {
		return err
	}
	return tx.Commit()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func get(ctx context.Context, q querier, owner, key string) (string, bool, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT value FROM kv WHERE owner=? AND key=?`, owner, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return v, true, nil
}

func put(ctx context.Context, q querier, owner, key, value string) error {
	_, err := q.ExecContext(ctx, `
        INSERT INTO kv (owner, key, value, updated_at)
        VALUES (?, ?, ?, strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
        ON CONFLICT(owner, key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		owner, key, value,
	)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// loadFavorites decodes the stored list. A corrupt value reads as empty,
// the way the browser falls back to "[]".
func loadFavorites(ctx context.Context, q querier, owner string) ([]string, error) {
	v, ok, err := get(ctx, q, owner, keyFavorites)
	if err != nil || !ok {
		return []string{}, err
	}
	var urls []string
	if err := json.Unmarshal([]byte(v), &urls); err != nil || urls == nil {
		return []string{}, nil
	}
	return urls, nil
}

func indexOf(urls []string, url string) int {
	for i, u := range urls {
		if u == url {
			return i
		}
	}
	return -1
}

func without(urls []string, url string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u != url {
			out = append(out, u)
		}
	}
	return out
}
