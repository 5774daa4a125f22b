package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"filmlog/models"
	"filmlog/services/feed"
)

type feedService interface {
	Feed(ctx context.Context, viewerID string, page int) (models.FeedPage, error)
}

var _ feedService = (*feed.Service)(nil)

type FeedHandler struct {
	Service feedService
}

func NewFeedHandler(service feedService) *FeedHandler {
	return &FeedHandler{Service: service}
}

// Feed returns the activity stream for the caller, or the global stream for
// anonymous requests.
// GET /api/feed?page=N
func (h *FeedHandler) Feed(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid page")
			return
		}
		page = n
	}

	result, err := h.Service.Feed(r.Context(), UserIDFromContext(r.Context()), page)
	if err != nil {
		log.Printf("[feed] page %d: %v", page, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
