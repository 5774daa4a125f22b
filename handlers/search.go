package handlers

import (
	"context"
	"errors"
	"net/http"

	"filmlog/models"
	"filmlog/services/search"
)

type searchService interface {
	Search(ctx context.Context, viewerID, query string) ([]models.SearchResult, error)
}

var _ searchService = (*search.Service)(nil)

type SearchHandler struct {
	Service searchService
}

func NewSearchHandler(service searchService) *SearchHandler {
	return &SearchHandler{Service: service}
}

// GET /api/search?q=
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.Service.Search(r.Context(), UserIDFromContext(r.Context()), r.URL.Query().Get("q"))
	switch {
	case errors.Is(err, search.ErrQueryRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeRecordError(w, err)
	default:
		writeJSON(w, http.StatusOK, results)
	}
}
