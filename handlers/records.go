package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"filmlog/models"
	"filmlog/services/metadata"
	"filmlog/services/movies"
	"filmlog/services/records"
)

type recordsService interface {
	AddToList(ctx context.Context, userID string, tmdbID int64, list models.ListID) (records.AddResult, error)
	Get(ctx context.Context, userID string, recordID int64) (models.Record, error)
	List(ctx context.Context, userID string, list models.ListID, query string) ([]models.Record, error)
	SetRating(ctx context.Context, userID string, recordID int64, rating int) (models.Record, error)
	SetComment(ctx context.Context, userID string, recordID int64, comment string) (models.Record, error)
	SetQualityFlags(ctx context.Context, userID string, recordID int64, update models.QualityFlagsUpdate) (models.Record, error)
	Remove(ctx context.Context, userID string, recordID int64) error
	Reorder(ctx context.Context, userID string, positions []models.RecordPosition) (int, error)
}

var _ recordsService = (*records.Service)(nil)

type RecordsHandler struct {
	Service recordsService
}

func NewRecordsHandler(service recordsService) *RecordsHandler {
	return &RecordsHandler{Service: service}
}

// Add puts a movie on one of the caller's lists.
// POST /api/records
func (h *RecordsHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body struct {
		TMDBID int64         `json:"tmdbId"`
		List   models.ListID `json:"list"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Service.AddToList(r.Context(), userID, body.TMDBID, body.List)
	if err != nil {
		// A title the provider does not know is a normal outcome for the client.
		if errors.Is(err, metadata.ErrNotFound) || errors.Is(err, metadata.ErrNoCrossReference) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "movie_not_found"})
			return
		}
		writeRecordError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "result": res})
}

// List returns the caller's records on a list, optionally filtered by ?q=.
// GET /api/lists/{list}
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	list, err := models.ParseListID(mux.Vars(r)["list"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.Service.List(r.Context(), userID, list, r.URL.Query().Get("q"))
	if err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// GET /api/records/{recordID}
func (h *RecordsHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withRecord(w, r, func(ctx context.Context, userID string, id int64) (any, error) {
		return h.Service.Get(ctx, userID, id)
	})
}

// PUT /api/records/{recordID}/rating
func (h *RecordsHandler) SetRating(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rating int `json:"rating"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.withRecord(w, r, func(ctx context.Context, userID string, id int64) (any, error) {
		return h.Service.SetRating(ctx, userID, id, body.Rating)
	})
}

// PUT /api/records/{recordID}/comment
func (h *RecordsHandler) SetComment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Comment string `json:"comment"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.withRecord(w, r, func(ctx context.Context, userID string, id int64) (any, error) {
		return h.Service.SetComment(ctx, userID, id, body.Comment)
	})
}

// PATCH /api/records/{recordID}/quality
func (h *RecordsHandler) SetQuality(w http.ResponseWriter, r *http.Request) {
	var body models.QualityFlagsUpdate
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.withRecord(w, r, func(ctx context.Context, userID string, id int64) (any, error) {
		return h.Service.SetQualityFlags(ctx, userID, id, body)
	})
}

// DELETE /api/records/{recordID}
func (h *RecordsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathInt64(r, "recordID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	if err := h.Service.Remove(r.Context(), userID, id); err != nil {
		writeRecordError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reorder assigns display positions to the caller's records.
// PUT /api/records/order
func (h *RecordsHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var body []models.RecordPosition
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.Service.Reorder(r.Context(), userID, body)
	if err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (h *RecordsHandler) withRecord(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, userID string, id int64) (any, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathInt64(r, "recordID")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	out, err := fn(r.Context(), userID, id)
	if err != nil {
		writeRecordError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// writeRecordError maps service and provider errors to statuses. Records
// owned by someone else are reported as missing.
func writeRecordError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, records.ErrNotFound), errors.Is(err, movies.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, records.ErrInvalidList),
		errors.Is(err, records.ErrInvalidRating),
		errors.Is(err, records.ErrCommentTooLong),
		errors.Is(err, records.ErrUserIDRequired),
		errors.Is(err, movies.ErrInvalidTMDBID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, movies.ErrDuplicateIMDB):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, metadata.ErrRateLimited):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "rate_limited", "error": err.Error()})
	case metadata.IsProviderError(err):
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "provider_error", "error": err.Error()})
	default:
		log.Printf("[records] request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
