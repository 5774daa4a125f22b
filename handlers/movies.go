package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"filmlog/models"
	"filmlog/services/movies"
)

type moviesService interface {
	GetByTMDB(ctx context.Context, tmdbID int64) (models.Movie, error)
	Providers(ctx context.Context, movieID int64) ([]models.Provider, error)
}

var _ moviesService = (*movies.Store)(nil)

type MoviesHandler struct {
	Service moviesService
}

func NewMoviesHandler(service moviesService) *MoviesHandler {
	return &MoviesHandler{Service: service}
}

// Get returns a stored movie. Movies are only known once someone has added
// them to a list.
// GET /api/movies/{tmdbID}
func (h *MoviesHandler) Get(w http.ResponseWriter, r *http.Request) {
	movie, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

// GET /api/movies/{tmdbID}/providers
func (h *MoviesHandler) Providers(w http.ResponseWriter, r *http.Request) {
	movie, ok := h.load(w, r)
	if !ok {
		return
	}
	providers, err := h.Service.Providers(r.Context(), movie.ID)
	if err != nil {
		log.Printf("[movies] providers for %d: %v", movie.ID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, providers)
}

func (h *MoviesHandler) load(w http.ResponseWriter, r *http.Request) (models.Movie, bool) {
	tmdbID, ok := pathInt64(r, "tmdbID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid tmdb id")
		return models.Movie{}, false
	}
	movie, err := h.Service.GetByTMDB(r.Context(), tmdbID)
	if errors.Is(err, movies.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return models.Movie{}, false
	}
	if err != nil {
		log.Printf("[movies] load %d: %v", tmdbID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return models.Movie{}, false
	}
	return movie, true
}
