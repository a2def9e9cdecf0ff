// internal/httpserver/routes_gallery.go
//
// HTTP routes for the gallery page:
//   - GET    /gallery              → next page of cat cards (stars pre-marked)
//   - GET    /gallery/download     → save an image (attachment, or redirect on failure)
//   - GET    /favorites            → saved images
//   - POST   /favorites            → save {url}
//   - POST   /favorites/toggle     → flip {url}, returns new state + count
//   - GET    /favorites/count      → counter for the header badge
//   - DELETE /favorites/{id}       → unsave by id
//   - GET    /prefs/theme          → current theme
//   - PUT    /prefs/theme          → set {theme}
//   - POST   /prefs/theme/toggle   → flip light/dark

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/catcatch/internal/catapi"
	"github.com/robalobadob/catcatch/internal/gallery"
	"github.com/robalobadob/catcatch/internal/prefs"
)

// mountGallery registers gallery, favorites and theme routes.
func (s *Server) mountGallery(r chi.Router) {
	r.Get("/gallery", s.handleGallery)
	r.Get("/gallery/download", s.handleDownload)

	r.Route("/favorites", func(r chi.Router) {
		r.Get("/", s.handleListFavorites)
		r.Post("/", s.handleAddFavorite)
		r.Post("/toggle", s.handleToggleFavorite)
		r.Get("/count", s.handleFavoriteCount)
		r.Delete("/{id}", s.handleRemoveFavorite)
	})

	r.Route("/prefs/theme", func(r chi.Router) {
		r.Get("/", s.handleGetTheme)
		r.Put("/", s.handleSetTheme)
		r.Post("/toggle", s.handleToggleTheme)
	})
}

// ------------------------------ gallery ------------------------------------

type galleryRes struct {
	Cards []gallery.Card `json:"cards"`
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	owner := s.ensureAnonID(w, r)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cards, err := s.deps.Gallery.Page(r.Context(), owner, limit)
	if err != nil {
		http.Error(w, `{"error":"upstream_failed"}`, http.StatusBadGateway)
		return
	}
	_ = json.NewEncoder(w).Encode(galleryRes{Cards: cards})
}

// handleDownload streams the image as an attachment. If an allow-listed image
// cannot be fetched, the client is redirected to it so the user can save it
// by hand. Anything else is rejected before any redirect.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		http.Error(w, `{"error":"missing_url"}`, http.StatusBadRequest)
		return
	}
	body, ct, err := s.deps.Gallery.Download(r.Context(), raw)
	switch {
	case errors.Is(err, catapi.ErrBadURL):
		http.Error(w, `{"error":"bad_url"}`, http.StatusBadRequest)
		return
	case errors.Is(err, catapi.ErrHostNotAllowed):
		http.Error(w, `{"error":"host_not_allowed"}`, http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("url", raw).Msg("download failed, redirecting")
		http.Redirect(w, r, raw, http.StatusFound)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+gallery.DownloadName(time.Now())+`"`)
	if _, err := io.Copy(w, body); err != nil {
		log.Warn().Err(err).Str("url", raw).Msg("stream download")
	}
}

// ----------------------------- favorites -----------------------------------

type favoriteReq struct {
	URL string `json:"url"`
}

type favoritesRes struct {
	Favorites []prefs.Favorite `json:"favorites"`
	Count     int              `json:"count"`
}

type toggleRes struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
	Count    int    `json:"count"`
}

// decodeFavorite reads {url}; it writes the error response itself.
func decodeFavorite(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req favoriteReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return "", false
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		http.Error(w, `{"error":"missing_url"}`, http.StatusBadRequest)
		return "", false
	}
	return req.URL, true
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	owner := s.ensureAnonID(w, r)
	favs, err := s.deps.Prefs.Favorites(r.Context(), owner)
	if err != nil {
		log.Error().Err(err).Msg("list favorites")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(favoritesRes{Favorites: favs, Count: len(favs)})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	owner := s.ensureAnonID(w, r)
	url, ok := decodeFavorite(w, r)
	if !ok {
		return
	}
	if err := s.deps.Prefs.AddFavorite(r.Context(), owner, url); err != nil {
		log.Error().Err(err).Msg("add favorite")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	s.writeToggle(w, r, owner, url, true)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	owner := s.ensureAnonID(w, r)
	url, ok := decodeFavorite(w, r)
	if !ok {
		return
	}
	saved, err := s.deps.Prefs.ToggleFavorite(r.Context(), owner, url)
	if err != nil {
		log.Error().Err(err).Msg("toggle favorite")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	s.writeToggle(w, r, owner, url, saved)
}

func (s *Server) writeToggle(w http.ResponseWriter, r *http.Request, owner, url string, saved bool) {
	n, err := s.deps.Prefs.FavoriteCount(r.Context(), owner)
	if err != nil {
		log.Warn().Err(err).Msg("count favorites")
	}
	_ = json.NewEncoder(w).Encode(toggleRes{ID: prefs.FavoriteID(url), Favorite: saved, Count: n})
}

func (s *Server) handleFavoriteCount(w http.ResponseWriter, r *http.Request) {
	owner := s.ensureAnonID(w, r)
	n, err := s.deps.Prefs.FavoriteCount(r.Context(), owner)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]int{"count": n})
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	owner := s.ensureAnonID(w, r)
	found, err := s.deps.Prefs.RemoveFavoriteByID(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		log.Error().Err(err).Msg("remove favorite")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, `{"error":"not_found"}`, http.StatusNotFound)
		return
	}
	n, _ := s.deps.Prefs.FavoriteCount(r.Context(), owner)
	_ = json.NewEncoder(w).Encode(map[string]int{"count": n})
}

// ------------------------------- theme -------------------------------------

type themeBody struct {
	Theme prefs.Theme `json:"theme"`
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	owner := s.ensureAnonID(w, r)
	t, err := s.deps.Prefs.Theme(r.Context(), owner)
	if err != nil {
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(themeBody{Theme: t})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	owner := s.ensureAnonID(w, r)
	var body themeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"bad_json"}`, http.StatusBadRequest)
		return
	}
	if err := s.deps.Prefs.SetTheme(r.Context(), owner, body.Theme); err != nil {
		if errors.Is(err, prefs.ErrBadTheme) {
			http.Error(w, `{"error":"bad_theme"}`, http.StatusBadRequest)
			return
		}
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) handleToggleTheme(w http.ResponseWriter, r *http.Request) {
	owner := s.ensureAnonID(w, r)
	t, err := s.deps.Prefs.ToggleTheme(r.Context(), owner)
	if err != nil {
		log.Error().Err(err).Msg("toggle theme")
		http.Error(w, `{"error":"db_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(themeBody{Theme: t})
}
